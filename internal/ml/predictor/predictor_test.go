package predictor

import (
	"context"
	"math"
	"testing"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/internal/ml/classifier"
	"dropout_risk_backend/internal/ml/features"
	"dropout_risk_backend/internal/ml/mltest"
	"dropout_risk_backend/internal/ml/trainer"
	"dropout_risk_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedModel(t *testing.T) (*trainer.TrainedModel, []model.StudentFeature) {
	t.Helper()
	return trainedWithCohort(t, features.ExcludeSelf)
}

func trainedWithCohort(t *testing.T, cohort features.CohortMode) (*trainer.TrainedModel, []model.StudentFeature) {
	t.Helper()
	hp := classifier.DefaultGBDTParams()
	hp.Iterations = 60
	hp.LearningRate = 0.1
	hp.Depth = 3
	records := mltest.Records(250, 3, 11)
	res, err := trainer.Run(context.Background(), records, trainer.RunConfig{
		Name:            "dropout_predictor_test",
		Version:         "v1",
		TestSize:        0.2,
		Seed:            7,
		Hyperparameters: hp,
		Features:        features.Options{Now: mltest.Now, Cohort: cohort},
	}, nil, nil)
	require.NoError(t, err)
	return res.Model, records
}

func TestClassifyRiskBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  model.RiskLevel
	}{
		{0, model.RiskLow},
		{39.999, model.RiskLow},
		{40, model.RiskMedium},
		{69.999, model.RiskMedium},
		{70, model.RiskHigh},
		{100, model.RiskHigh},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyRisk(c.score), "score %v", c.score)
	}
}

func TestClassifyRiskIsMonotonic(t *testing.T) {
	rank := map[model.RiskLevel]int{model.RiskLow: 0, model.RiskMedium: 1, model.RiskHigh: 2}
	prev := 0
	for s := 0.0; s <= 100; s += 0.25 {
		r := rank[ClassifyRisk(s)]
		assert.GreaterOrEqual(t, r, prev)
		prev = r
	}
}

func TestHealthyStudentGetsDefaultSuggestion(t *testing.T) {
	grade := 85.0
	r := &model.StudentFeature{
		MoocCompletionRate:          90,
		MoocGradePercentage:         &grade,
		VideoCompletionRate:         90,
		QuizAvgScore:                85,
		DiscussionTotalInteractions: 3,
	}
	got := GenerateSuggestions(r, 1, model.RiskLow)
	require.Len(t, got, 1)
	assert.Equal(t, "success", got[0].Type)
}

func TestSuggestionRulesFireInOrder(t *testing.T) {
	grade := 30.0
	r := &model.StudentFeature{
		MoocCompletionRate:  20,
		MoocGradePercentage: &grade,
		VideoCompletionRate: 15,
		QuizAvgScore:        30,
	}

	got := GenerateSuggestions(r, 20, model.RiskMedium)
	types := make([]string, len(got))
	for i, s := range got {
		types[i] = s.Type
	}
	assert.Equal(t, []string{"urgent", "warning", "academic", "progress", "engagement", "content", "assessment"}, types)

	// HIGH risk puts every high priority suggestion first, keeping rule order
	got = GenerateSuggestions(r, 20, model.RiskHigh)
	assert.Equal(t, "urgent", got[0].Type)
	assert.Equal(t, "academic", got[1].Type)
	assert.Equal(t, PriorityLow, got[len(got)-1].Priority)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Priority.rank(), got[i].Priority.rank())
	}
}

func TestUnknownGradeIsNotConsulted(t *testing.T) {
	r := &model.StudentFeature{MoocCompletionRate: 90, VideoCompletionRate: 90, QuizAvgScore: 90, DiscussionTotalInteractions: 1}
	got := GenerateSuggestions(r, 0, model.RiskLow)
	require.Len(t, got, 1)
	assert.Equal(t, "success", got[0].Type)
}

func TestNewRejectsInvalidModel(t *testing.T) {
	_, err := New(nil)
	assert.True(t, ml.IsModelLoadError(err))

	_, err = New(&trainer.TrainedModel{Booster: classifier.NewGBDT(classifier.DefaultGBDTParams())})
	assert.True(t, ml.IsModelLoadError(err))
}

func TestPredictMatchesFeatureEngineer(t *testing.T) {
	m, records := trainedModel(t)
	p, err := New(m)
	require.NoError(t, err)

	current := mltest.Unlabeled(records[:40])
	opts := features.Options{Now: mltest.Now}
	results, err := p.Predict(current, opts)
	require.NoError(t, err)
	require.Len(t, results, len(current))

	proba, missing, err := m.PredictProba(features.Build(current, opts))
	require.NoError(t, err)
	assert.Empty(t, missing)
	for i, r := range results {
		assert.Equal(t, current[i].UserID, r.StudentID)
		assert.Equal(t, current[i].CourseID, r.CourseID)
		assert.Equal(t, proba[i]*100, r.RiskScore)
		assert.Equal(t, ClassifyRisk(r.RiskScore), r.RiskLevel)
		assert.NotEmpty(t, r.Suggestions)
		if r.RiskLevel == model.RiskHigh {
			assert.Equal(t, "urgent", r.Suggestions[0].Type)
		}
	}
}

func TestPredictUsesTrainedCohort(t *testing.T) {
	m, records := trainedWithCohort(t, features.IncludeSelf)
	require.Equal(t, "include_self", m.Manifest.Cohort)
	p, err := New(m)
	require.NoError(t, err)

	current := mltest.Unlabeled(records[:60])
	// the caller asks for the other mode; the manifest wins
	results, err := p.Predict(current, features.Options{Now: mltest.Now, Cohort: features.ExcludeSelf})
	require.NoError(t, err)

	proba, _, err := m.PredictProba(features.Build(current, features.Options{Now: mltest.Now, Cohort: features.IncludeSelf}))
	require.NoError(t, err)
	for i, r := range results {
		assert.InDelta(t, proba[i]*100, r.RiskScore, 1e-12)
	}
}

func TestPredictWithoutRecords(t *testing.T) {
	m, _ := trainedModel(t)
	p, err := New(m)
	require.NoError(t, err)
	_, err = p.Predict(nil, features.Options{})
	assert.ErrorIs(t, err, ml.ErrDataUnavailable)
}

func TestPredictDefaultsMissingFeatures(t *testing.T) {
	m, records := trainedModel(t)
	renamed := *m
	renamed.Manifest.FeatureNames = append([]string(nil), m.Manifest.FeatureNames...)
	// a column an older feature engineer produced
	renamed.Manifest.FeatureNames[0] = "legacy_signal"

	var reported []string
	p, err := New(&renamed, WithMismatchHook(func(missing []string) { reported = missing }))
	require.NoError(t, err)

	results, err := p.Predict(mltest.Unlabeled(records[:5]), features.Options{Now: mltest.Now})
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy_signal"}, reported)
	for _, r := range results {
		assert.False(t, math.IsNaN(r.RiskScore))
		assert.True(t, r.RiskScore >= 0 && r.RiskScore <= 100)
	}
}

func TestLoadFromStore(t *testing.T) {
	ctx := context.Background()
	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = Load(ctx, store, "missing")
	assert.True(t, ml.IsModelLoadError(err))

	m, records := trainedModel(t)
	require.NoError(t, trainer.Save(ctx, store, m, nil))
	p, err := Load(ctx, store, m.Manifest.Name)
	require.NoError(t, err)

	opts := features.Options{Now: mltest.Now}
	want, err := func() ([]Result, error) {
		direct, err := New(m)
		require.NoError(t, err)
		return direct.Predict(records[:20], opts)
	}()
	require.NoError(t, err)
	got, err := p.Predict(records[:20], opts)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i].RiskScore, got[i].RiskScore, 1e-9)
	}
}
