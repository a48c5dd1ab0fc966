package repository

import (
	"context"

	"dropout_risk_backend/internal/model"

	"gorm.io/gorm"
)

type PredictionRepository struct {
	DB *gorm.DB
}

func NewPredictionRepository(db *gorm.DB) *PredictionRepository {
	return &PredictionRepository{DB: db}
}

// SavePredictions stores a batch and marks it as the latest prediction of
// every (user, course) pair it covers. Older rows are kept as history.
func (r *PredictionRepository) SavePredictions(ctx context.Context, predictions []model.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byCourse := make(map[string][]uint)
		for i := range predictions {
			p := &predictions[i]
			p.IsLatest = true
			byCourse[p.CourseID] = append(byCourse[p.CourseID], p.UserID)
		}
		for courseID, users := range byCourse {
			if err := tx.Model(&model.Prediction{}).
				Where("course_id = ? AND user_id IN ? AND is_latest = ?", courseID, users, true).
				Update("is_latest", false).Error; err != nil {
				return err
			}
		}
		return tx.CreateInBatches(predictions, upsertBatchSize).Error
	})
}

// FindLatestByCourse returns the current prediction of every student of a
// course, riskiest first.
func (r *PredictionRepository) FindLatestByCourse(ctx context.Context, courseID string) ([]model.Prediction, error) {
	var predictions []model.Prediction
	err := r.DB.WithContext(ctx).
		Where("course_id = ? AND is_latest = ?", courseID, true).
		Order("fail_risk_score DESC, user_id").
		Find(&predictions).Error
	return predictions, err
}

func (r *PredictionRepository) FindLatest(ctx context.Context, userID uint, courseID string) (*model.Prediction, error) {
	var p model.Prediction
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND is_latest = ?", userID, courseID, true).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PredictionRepository) FindHistory(ctx context.Context, userID uint, courseID string, limit int) ([]model.Prediction, error) {
	var predictions []model.Prediction
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("predicted_at DESC, id DESC").
		Limit(limit).
		Find(&predictions).Error
	return predictions, err
}
