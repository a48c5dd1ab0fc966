package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dropout_risk_backend/internal/config"
	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/ml/evaluation"
	"dropout_risk_backend/internal/ml/features"
	"dropout_risk_backend/internal/ml/metrics"
	"dropout_risk_backend/internal/ml/predictor"
	"dropout_risk_backend/internal/ml/trainer"
	"dropout_risk_backend/internal/model"
	"dropout_risk_backend/internal/repository"
	"dropout_risk_backend/pkg/logger"
	"dropout_risk_backend/pkg/monitoring"
	"dropout_risk_backend/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CohortMode maps the model.cohort setting.
func CohortMode(name string) features.CohortMode {
	return features.ParseCohortMode(name)
}

// TrainingService runs training and evaluation jobs on the stored
// snapshots. Only one job runs at a time.
type TrainingService struct {
	FeatureRepo  *repository.StudentFeatureRepository
	RegistryRepo *repository.ModelRegistryRepository
	Store        artifact.Store
	Predictions  *PredictionService
	// Benchmarks, when set, follows cohort changes on Reconfigure.
	Benchmarks *BenchmarkService

	jobMu  sync.Mutex
	cfgMu  sync.RWMutex
	modelC config.ModelConfig
}

func NewTrainingService(
	featureRepo *repository.StudentFeatureRepository,
	registryRepo *repository.ModelRegistryRepository,
	store artifact.Store,
	predictions *PredictionService,
	cfg config.ModelConfig,
) *TrainingService {
	return &TrainingService{
		FeatureRepo:  featureRepo,
		RegistryRepo: registryRepo,
		Store:        store,
		Predictions:  predictions,
		modelC:       cfg,
	}
}

func (s *TrainingService) modelConfig() config.ModelConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.modelC
}

// TrainRequest overrides the configured model name and version.
type TrainRequest struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Activate bool   `json:"activate"`
}

// TrainOutcome is what a finished training run reports.
type TrainOutcome struct {
	Registry   *model.ModelRegistry `json:"registry"`
	Evaluation *trainer.Evaluation  `json:"evaluation"`
	Manifest   trainer.Manifest     `json:"manifest"`
	Duration   float64              `json:"durationSeconds"`
	Active     bool                 `json:"active"`
}

// ArtifactName is the store name of one model version.
func ArtifactName(name, version string) string {
	return name + "-" + version
}

// defaultVersion stamps the training time plus a random suffix, so two
// runs started in the same second still get distinct versions.
func defaultVersion() string {
	return time.Now().Format("v20060102-150405") + "-" + uuid.NewString()[:8]
}

// Train fits a model on every labeled snapshot, saves it and registers the
// version. Versions are write-once: an existing name and version fails with
// ml.ErrModelVersionExists before anything is trained. With req.Activate
// the version becomes the active model and the prediction service switches
// to it.
func (s *TrainingService) Train(ctx context.Context, req TrainRequest) (*TrainOutcome, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	ctx, span := tracing.Tracer.Start(ctx, "TrainingService.Train")
	defer span.End()

	mc := s.modelConfig()
	name := req.Name
	if name == "" {
		name = mc.ActiveName
	}
	version := req.Version
	if version == "" {
		version = defaultVersion()
	}
	span.SetAttributes(attribute.String("model", name), attribute.String("version", version))

	exists, err := s.RegistryRepo.Exists(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%s %s: %w", name, version, ml.ErrModelVersionExists)
	}

	records, err := s.trainingRecords(ctx, mc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	artifactName := ArtifactName(name, version)
	res, err := trainer.Run(ctx, records, trainer.RunConfig{
		Name:            artifactName,
		Version:         version,
		TestSize:        mc.TestSize,
		ValidationSize:  mc.ValidationSize,
		Seed:            mc.Seed,
		Hyperparameters: mc.Hyperparameters,
		Features:        features.Options{Cohort: CohortMode(mc.Cohort)},
	}, s.Store, logger.Log)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	monitoring.TrainingDuration.WithLabelValues("train").Observe(res.Duration.Seconds())
	monitoring.LastModelAUC.WithLabelValues(name).Set(res.Evaluation.Report.AUC)

	report := res.Evaluation.Report
	entry := &model.ModelRegistry{
		ModelName:    name,
		ModelVersion: version,
		ModelPath:    s.Store.Location(trainer.ModelKey(artifactName)),
		ArtifactName: artifactName,
		FeatureCount: len(res.Model.Manifest.FeatureNames),
		AUC:          report.AUC,
		F1:           report.F1,
		Precision:    report.Precision,
		Recall:       report.Recall,
		Accuracy:     report.Accuracy,
		TrainRows:    res.TrainRows,
		TestRows:     res.TestRows,
		TrainedAt:    res.Model.Manifest.TrainedAt,
	}
	if err := s.RegistryRepo.Register(ctx, entry); err != nil {
		return nil, fmt.Errorf("register model: %w", err)
	}

	out := &TrainOutcome{
		Registry:   entry,
		Evaluation: res.Evaluation,
		Manifest:   res.Model.Manifest,
		Duration:   res.Duration.Seconds(),
	}
	if req.Activate {
		p, err := predictor.New(res.Model, PredictorOptions()...)
		if err != nil {
			return nil, err
		}
		if err := s.RegistryRepo.Activate(ctx, name, version); err != nil {
			return nil, fmt.Errorf("activate model: %w", err)
		}
		entry.IsActive = true
		if s.Predictions != nil {
			s.Predictions.SetPredictor(p, entry.ModelPath)
		}
		out.Active = true
	}
	logger.Log.Info("模型训练完成",
		zap.String("model", name),
		zap.String("version", version),
		zap.Float64("auc", report.AUC),
		zap.Bool("active", out.Active))
	return out, nil
}

// KFold cross-validates the configured hyperparameters. k <= 0 uses the
// configured fold count.
func (s *TrainingService) KFold(ctx context.Context, k int) (*evaluation.KFoldResult, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	ctx, span := tracing.Tracer.Start(ctx, "TrainingService.KFold")
	defer span.End()

	mc := s.modelConfig()
	if k <= 0 {
		k = mc.KFolds
	}
	x, y, err := s.labeledFrame(ctx, mc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	start := time.Now()
	hp := mc.Hyperparameters
	hp.Seed = mc.Seed
	res, err := evaluation.RunKFold(x, y, k, hp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	monitoring.TrainingDuration.WithLabelValues("kfold").Observe(time.Since(start).Seconds())
	if res.Unstable {
		logger.Log.Warn("模型在各折间不稳定", zap.Float64("auc_std", res.Summary[metrics.MetricAUC].Std))
	}
	return res, nil
}

// Compare runs the standard model set on identical folds.
func (s *TrainingService) Compare(ctx context.Context, k int) (*evaluation.Comparison, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	ctx, span := tracing.Tracer.Start(ctx, "TrainingService.Compare")
	defer span.End()

	mc := s.modelConfig()
	if k <= 0 {
		k = mc.KFolds
	}
	x, y, err := s.labeledFrame(ctx, mc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	start := time.Now()
	cmp, err := evaluation.CompareModels(x, y, k, mc.Seed, evaluation.DefaultModels(mc.Hyperparameters, mc.ForestTrees))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	monitoring.TrainingDuration.WithLabelValues("compare").Observe(time.Since(start).Seconds())
	return cmp, nil
}

// ActiveModel returns the registry entry of the active version.
func (s *TrainingService) ActiveModel(ctx context.Context) (*model.ModelRegistry, error) {
	entry, err := s.RegistryRepo.FindActive(ctx, s.modelConfig().ActiveName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ml.ErrModelNotLoaded
	}
	return entry, err
}

// LoadActive loads the active version into the prediction service. Without
// a registry entry the artifact named model.active_name is tried.
func (s *TrainingService) LoadActive(ctx context.Context) error {
	mc := s.modelConfig()
	artifactName := mc.ActiveName
	location := s.Store.Location(trainer.ModelKey(artifactName))
	entry, err := s.RegistryRepo.FindActive(ctx, mc.ActiveName)
	switch {
	case err == nil:
		artifactName = entry.ArtifactName
		location = entry.ModelPath
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	p, err := LoadPredictor(ctx, s.Store, artifactName)
	if err != nil {
		return err
	}
	s.Predictions.SetPredictor(p, location)
	logger.Log.Info("预测模型已加载",
		zap.String("artifact", artifactName),
		zap.String("version", p.Model().Manifest.Version))
	return nil
}

// Reconfigure applies a reloaded model section. The cohort mode applies to
// later training runs and to student comparisons; a loaded model keeps the
// mode of its manifest. The predictor is reloaded when the active model
// name changed.
func (s *TrainingService) Reconfigure(ctx context.Context, mc config.ModelConfig) error {
	s.cfgMu.Lock()
	changed := s.modelC.ActiveName != mc.ActiveName
	s.modelC = mc
	s.cfgMu.Unlock()

	if s.Benchmarks != nil {
		s.Benchmarks.SetCohort(CohortMode(mc.Cohort))
	}

	if !changed {
		return nil
	}
	return s.LoadActive(ctx)
}

func (s *TrainingService) trainingRecords(ctx context.Context, mc config.ModelConfig) ([]model.StudentFeature, error) {
	records, err := s.FeatureRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ml.ErrDataUnavailable
	}
	labeled := 0
	for i := range records {
		if records[i].IsPassed != nil {
			labeled++
		}
	}
	if labeled < mc.MinLabeledRows {
		return nil, fmt.Errorf("%w: %d labeled rows, need %d", ml.ErrInsufficientTrainingData, labeled, mc.MinLabeledRows)
	}
	return records, nil
}

func (s *TrainingService) labeledFrame(ctx context.Context, mc config.ModelConfig) (*dataset.Frame, []int, error) {
	records, err := s.trainingRecords(ctx, mc)
	if err != nil {
		return nil, nil, err
	}
	f := features.Build(records, features.Options{Cohort: CohortMode(mc.Cohort)})
	return trainer.LabeledFeatures(f, features.TargetColumn)
}
