package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/model"
	"dropout_risk_backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func ptr[T any](v T) *T { return &v }

func feature(userID uint, course string, completion float64, passed *bool) model.StudentFeature {
	return model.StudentFeature{
		UserID:             userID,
		CourseID:           course,
		MoocCompletionRate: completion,
		IsPassed:           passed,
	}
}

func TestStudentFeatureUpsertReplacesPair(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentFeatureRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, []model.StudentFeature{
		feature(1, "c1", 10, nil),
		feature(2, "c1", 20, ptr(true)),
		feature(1, "c2", 30, ptr(false)),
	}))
	require.NoError(t, repo.Upsert(ctx, []model.StudentFeature{feature(1, "c1", 55, ptr(false))}))

	records, err := repo.FindByCourse(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint(1), records[0].UserID)
	assert.Equal(t, 55.0, records[0].MoocCompletionRate)
	require.NotNil(t, records[0].IsPassed)
	assert.False(t, *records[0].IsPassed)

	labeled, err := repo.FindLabeled(ctx)
	require.NoError(t, err)
	assert.Len(t, labeled, 3)

	ids, err := repo.CourseIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestFindByCourseAndUserPutsStudentFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentFeatureRepository(newTestDB(t))
	require.NoError(t, repo.Upsert(ctx, []model.StudentFeature{
		feature(1, "c1", 10, nil),
		feature(2, "c1", 20, nil),
		feature(3, "c1", 30, nil),
		feature(2, "c2", 40, nil),
	}))

	records, err := repo.FindByCourseAndUser(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint(2), records[0].UserID)
	for _, r := range records {
		assert.Equal(t, "c1", r.CourseID)
	}

	_, err = repo.FindByCourseAndUser(ctx, "c1", 9)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSavePredictionsKeepsOneLatestPerPair(t *testing.T) {
	ctx := context.Background()
	repo := NewPredictionRepository(newTestDB(t))
	now := time.Now()

	first := []model.Prediction{
		{UserID: 1, CourseID: "c1", ModelName: "m", FailRiskScore: 80, RiskLevel: model.RiskHigh, PredictedAt: now},
		{UserID: 2, CourseID: "c1", ModelName: "m", FailRiskScore: 20, RiskLevel: model.RiskLow, PredictedAt: now},
	}
	require.NoError(t, repo.SavePredictions(ctx, first))
	second := []model.Prediction{
		{UserID: 1, CourseID: "c1", ModelName: "m", FailRiskScore: 45, RiskLevel: model.RiskMedium, PredictedAt: now.Add(time.Hour)},
	}
	require.NoError(t, repo.SavePredictions(ctx, second))

	latest, err := repo.FindLatestByCourse(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint(1), latest[0].UserID)
	assert.Equal(t, 45.0, latest[0].FailRiskScore)
	assert.Equal(t, 20.0, latest[1].FailRiskScore)

	p, err := repo.FindLatest(ctx, 1, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.RiskMedium, p.RiskLevel)

	history, err := repo.FindHistory(ctx, 1, "c1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsLatest)
	assert.False(t, history[1].IsLatest)
}

func TestUpsertBenchmark(t *testing.T) {
	ctx := context.Background()
	repo := NewBenchmarkRepository(newTestDB(t))

	require.NoError(t, repo.UpsertBenchmark(ctx, &model.CourseStatsBenchmark{CourseID: "c1", ProgressAvgCompletion: 40, TotalStudents: 3}))
	require.NoError(t, repo.UpsertBenchmark(ctx, &model.CourseStatsBenchmark{CourseID: "c1", ProgressAvgCompletion: 60, TotalStudents: 4}))

	b, err := repo.FindByCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, b.ProgressAvgCompletion)
	assert.Equal(t, 4, b.TotalStudents)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.FindByCourse(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestModelRegistryActivate(t *testing.T) {
	ctx := context.Background()
	repo := NewModelRegistryRepository(newTestDB(t))

	require.NoError(t, repo.Register(ctx, &model.ModelRegistry{ModelName: "m", ModelVersion: "v1", AUC: 0.8, TrainedAt: time.Now()}))
	require.NoError(t, repo.Register(ctx, &model.ModelRegistry{ModelName: "m", ModelVersion: "v2", AUC: 0.85, TrainedAt: time.Now()}))

	_, err := repo.FindActive(ctx, "m")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Activate(ctx, "m", "v1"))
	require.NoError(t, repo.Activate(ctx, "m", "v2"))
	active, err := repo.FindActive(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "v2", active.ModelVersion)

	// a registered version is never replaced
	err = repo.Register(ctx, &model.ModelRegistry{ModelName: "m", ModelVersion: "v2", AUC: 0.9, TrainedAt: time.Now()})
	assert.ErrorIs(t, err, ml.ErrModelVersionExists)
	active, err = repo.FindActive(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, 0.85, active.AUC)

	exists, err := repo.Exists(ctx, "m", "v2")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "m", "v3")
	require.NoError(t, err)
	assert.False(t, exists)

	list, err := repo.List(ctx, "m")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.ErrorIs(t, repo.Activate(ctx, "m", "v9"), gorm.ErrRecordNotFound)
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	u := &model.User{Name: "张老师", Email: "t@example.com", Password: "hash", Role: model.Teacher}
	require.NoError(t, repo.Create(u))
	assert.NotZero(t, u.ID)

	found, err := repo.FindByEmail("t@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	require.NoError(t, repo.UpdateLastLogin(u.ID))
	found, err = repo.FindByID(u.ID)
	require.NoError(t, err)
	assert.NotNil(t, found.LastLogin)

	assert.Error(t, repo.Create(&model.User{Name: "dup", Email: "t@example.com", Password: "x"}))
}
