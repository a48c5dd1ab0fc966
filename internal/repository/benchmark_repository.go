package repository

import (
	"context"

	"dropout_risk_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BenchmarkRepository struct {
	DB *gorm.DB
}

func NewBenchmarkRepository(db *gorm.DB) *BenchmarkRepository {
	return &BenchmarkRepository{DB: db}
}

// UpsertBenchmark replaces the cached aggregates of a course.
func (r *BenchmarkRepository) UpsertBenchmark(ctx context.Context, b *model.CourseStatsBenchmark) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"assessment_avg_score",
				"progress_avg_completion",
				"video_avg_completion",
				"discussion_avg_interactions",
				"discussion_max_interactions",
				"total_students",
				"computed_at",
				"updated_at",
			}),
		}).
		Create(b).Error
}

func (r *BenchmarkRepository) FindByCourse(ctx context.Context, courseID string) (*model.CourseStatsBenchmark, error) {
	var b model.CourseStatsBenchmark
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BenchmarkRepository) FindAll(ctx context.Context) ([]model.CourseStatsBenchmark, error) {
	var list []model.CourseStatsBenchmark
	err := r.DB.WithContext(ctx).Order("course_id").Find(&list).Error
	return list, err
}
