package repository

import (
	"context"

	"dropout_risk_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

type StudentFeatureRepository struct {
	DB *gorm.DB
}

func NewStudentFeatureRepository(db *gorm.DB) *StudentFeatureRepository {
	return &StudentFeatureRepository{DB: db}
}

// FindByCourse returns the snapshots of a course ordered by user.
func (r *StudentFeatureRepository) FindByCourse(ctx context.Context, courseID string) ([]model.StudentFeature, error) {
	var records []model.StudentFeature
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("user_id").
		Find(&records).Error
	return records, err
}

// FindByCourseAndUser returns the student's snapshot together with the rest
// of the course, so the cohort can be aggregated. The student's row comes
// first. ErrRecordNotFound is returned when the student is not enrolled.
func (r *StudentFeatureRepository) FindByCourseAndUser(ctx context.Context, courseID string, userID uint) ([]model.StudentFeature, error) {
	var self model.StudentFeature
	err := r.DB.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		First(&self).Error
	if err != nil {
		return nil, err
	}

	var others []model.StudentFeature
	err = r.DB.WithContext(ctx).
		Where("course_id = ? AND user_id <> ?", courseID, userID).
		Order("user_id").
		Find(&others).Error
	if err != nil {
		return nil, err
	}
	return append([]model.StudentFeature{self}, others...), nil
}

// FindLabeled returns every snapshot with a known pass/fail outcome.
func (r *StudentFeatureRepository) FindLabeled(ctx context.Context) ([]model.StudentFeature, error) {
	var records []model.StudentFeature
	err := r.DB.WithContext(ctx).
		Where("is_passed IS NOT NULL").
		Order("course_id, user_id").
		Find(&records).Error
	return records, err
}

// FindAll returns every snapshot. Training uses it so the cohort
// aggregates also see students without an outcome.
func (r *StudentFeatureRepository) FindAll(ctx context.Context) ([]model.StudentFeature, error) {
	var records []model.StudentFeature
	err := r.DB.WithContext(ctx).
		Order("course_id, user_id").
		Find(&records).Error
	return records, err
}

func (r *StudentFeatureRepository) CourseIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).
		Model(&model.StudentFeature{}).
		Distinct("course_id").
		Order("course_id").
		Pluck("course_id", &ids).Error
	return ids, err
}

// Upsert inserts snapshots or replaces the existing row of each
// (user, course) pair.
func (r *StudentFeatureRepository) Upsert(ctx context.Context, records []model.StudentFeature) error {
	if len(records) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(records, upsertBatchSize).Error
}
