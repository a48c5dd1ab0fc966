package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/internal/ml/features"
	"dropout_risk_backend/internal/ml/predictor"
	"dropout_risk_backend/internal/model"
	"dropout_risk_backend/internal/repository"
	"dropout_risk_backend/pkg/logger"
	"dropout_risk_backend/pkg/monitoring"
	"dropout_risk_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PredictionService scores students with the active predictor and keeps
// the scores as prediction history. The predictor can be swapped while
// requests are in flight. Feature settings such as the cohort mode come
// from the model manifest, never from the running config.
type PredictionService struct {
	FeatureRepo    *repository.StudentFeatureRepository
	PredictionRepo *repository.PredictionRepository

	mu        sync.RWMutex
	predictor *predictor.Predictor
	modelPath string
}

func NewPredictionService(
	featureRepo *repository.StudentFeatureRepository,
	predictionRepo *repository.PredictionRepository,
) *PredictionService {
	return &PredictionService{
		FeatureRepo:    featureRepo,
		PredictionRepo: predictionRepo,
	}
}

// PredictorOptions wires the predictor into the service logger and the
// feature mismatch counter.
func PredictorOptions() []predictor.Option {
	return []predictor.Option{
		predictor.WithLogger(logger.Log),
		predictor.WithMismatchHook(func([]string) {
			monitoring.FeatureMismatchTotal.Inc()
		}),
	}
}

// LoadPredictor reads a saved model with the service options applied.
func LoadPredictor(ctx context.Context, store artifact.Store, name string) (*predictor.Predictor, error) {
	return predictor.Load(ctx, store, name, PredictorOptions()...)
}

// SetPredictor installs p. location is recorded on every prediction.
func (s *PredictionService) SetPredictor(p *predictor.Predictor, location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictor = p
	s.modelPath = location
}

func (s *PredictionService) Predictor() (*predictor.Predictor, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.predictor == nil {
		return nil, "", ml.ErrModelNotLoaded
	}
	return s.predictor, s.modelPath, nil
}

// Serving uses the stored days_since_last_activity counter, as training does.
func (s *PredictionService) options() features.Options {
	return features.Options{}
}

// PredictCourse scores every student of a course and stores the scores as
// their latest predictions.
func (s *PredictionService) PredictCourse(ctx context.Context, courseID string) ([]model.Prediction, error) {
	ctx, span := tracing.Tracer.Start(ctx, "PredictionService.PredictCourse")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID))

	p, location, err := s.Predictor()
	if err != nil {
		return nil, err
	}
	records, err := s.FeatureRepo.FindByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("course %s: %w", courseID, ml.ErrDataUnavailable)
	}

	results, err := p.Predict(records, s.options())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	predictions, err := s.toPredictions(p, location, records, results)
	if err != nil {
		return nil, err
	}
	if err := s.PredictionRepo.SavePredictions(ctx, predictions); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save predictions: %w", err)
	}
	countLevels(predictions)
	span.SetAttributes(attribute.Int("students", len(predictions)))
	return predictions, nil
}

// PredictStudent scores one student. The rest of the course is loaded as
// the comparison cohort but only the student's prediction is stored.
func (s *PredictionService) PredictStudent(ctx context.Context, courseID string, userID uint) (*model.Prediction, error) {
	ctx, span := tracing.Tracer.Start(ctx, "PredictionService.PredictStudent")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID), attribute.Int("user_id", int(userID)))

	p, location, err := s.Predictor()
	if err != nil {
		return nil, err
	}
	records, err := s.FeatureRepo.FindByCourseAndUser(ctx, courseID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("student %d in %s: %w", userID, courseID, ml.ErrDataUnavailable)
	}
	if err != nil {
		return nil, err
	}

	results, err := p.Predict(records, s.options())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	predictions, err := s.toPredictions(p, location, records[:1], results[:1])
	if err != nil {
		return nil, err
	}
	if err := s.PredictionRepo.SavePredictions(ctx, predictions); err != nil {
		return nil, fmt.Errorf("save prediction: %w", err)
	}
	countLevels(predictions)
	return &predictions[0], nil
}

// PredictAll runs PredictCourse for every course with snapshots. A course
// that fails is logged and skipped; the count of stored predictions is
// returned.
func (s *PredictionService) PredictAll(ctx context.Context) (int, error) {
	if _, _, err := s.Predictor(); err != nil {
		return 0, err
	}
	courses, err := s.FeatureRepo.CourseIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(courses) == 0 {
		return 0, ml.ErrDataUnavailable
	}
	total := 0
	for _, courseID := range courses {
		predictions, err := s.PredictCourse(ctx, courseID)
		if err != nil {
			logger.Log.Error("课程预测失败", zap.String("course_id", courseID), zap.Error(err))
			continue
		}
		total += len(predictions)
	}
	return total, nil
}

// LatestForCourse returns the stored predictions without rescoring.
func (s *PredictionService) LatestForCourse(ctx context.Context, courseID string) ([]model.Prediction, error) {
	predictions, err := s.PredictionRepo.FindLatestByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("course %s: %w", courseID, ml.ErrDataUnavailable)
	}
	return predictions, nil
}

func (s *PredictionService) toPredictions(p *predictor.Predictor, location string, records []model.StudentFeature, results []predictor.Result) ([]model.Prediction, error) {
	manifest := p.Model().Manifest
	now := time.Now()
	out := make([]model.Prediction, len(results))
	for i, r := range results {
		suggestions, err := json.Marshal(r.Suggestions)
		if err != nil {
			return nil, err
		}
		rec := &records[i]
		out[i] = model.Prediction{
			UserID:                 r.StudentID,
			CourseID:               r.CourseID,
			ModelName:              manifest.Name,
			ModelVersion:           manifest.Version,
			ModelPath:              location,
			FailRiskScore:          r.RiskScore,
			RiskLevel:              r.RiskLevel,
			Suggestions:            string(suggestions),
			SnapshotGrade:          rec.MoocGradePercentage,
			SnapshotCompletionRate: rec.MoocCompletionRate,
			SnapshotDaysInactive:   r.DaysInactive,
			PredictedAt:            now,
			IsLatest:               true,
		}
	}
	return out, nil
}

func countLevels(predictions []model.Prediction) {
	for i := range predictions {
		monitoring.PredictionsTotal.WithLabelValues(string(predictions[i].RiskLevel)).Inc()
	}
}
