package trainer

import (
	"context"
	"fmt"
	"time"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/internal/ml/classifier"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/ml/features"
	"dropout_risk_backend/internal/model"

	"go.uber.org/zap"
)

// RunConfig drives one end-to-end training run.
type RunConfig struct {
	Name     string
	Version  string
	TestSize float64
	// ValidationSize is the share of the training side held back for early
	// stopping. Zero, or a training side too small to split, lets the test
	// split drive early stopping instead.
	ValidationSize  float64
	Seed            int64
	Hyperparameters classifier.GBDTParams
	Features        features.Options
}

// Result is the outcome of Run. TrainRows counts the whole training side,
// validation rows included.
type Result struct {
	Model          *TrainedModel
	Evaluation     *Evaluation
	TrainRows      int
	ValidationRows int
	TestRows       int
	Duration       time.Duration
}

// Run builds features from records, trains on a stratified split, evaluates
// on the test side and, when store is non-nil, saves the artifacts. Early
// stopping watches a validation slice of the training side so the test
// metrics stay unbiased.
func Run(ctx context.Context, records []model.StudentFeature, cfg RunConfig, store artifact.Store, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(records) == 0 {
		return nil, ml.ErrDataUnavailable
	}
	start := time.Now()

	frame := features.Build(records, cfg.Features)
	split, err := PrepareData(frame, features.TargetColumn, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	xFit, yFit, eval, stopping := earlyStoppingSet(split, cfg.ValidationSize, cfg.Seed, log)
	log.Info("训练数据准备完成",
		zap.String("model", cfg.Name),
		zap.Int("train_rows", len(yFit)),
		zap.Int("validation_rows", len(eval.Y)),
		zap.Int("test_rows", len(split.YTest)),
		zap.String("early_stopping", stopping),
		zap.Int("features", len(split.FeatureNames)),
		zap.Strings("categorical", split.CategoricalFeatures))

	m, err := Train(xFit, yFit, cfg.Hyperparameters, eval)
	if err != nil {
		return nil, err
	}
	m.Manifest.Name = cfg.Name
	m.Manifest.Version = cfg.Version
	m.Manifest.Cohort = cfg.Features.Cohort.String()
	m.Manifest.EarlyStopping = stopping

	ev, err := Evaluate(m, split.XTest, split.YTest)
	if err != nil {
		return nil, err
	}
	log.Info("模型评估完成",
		zap.String("model", cfg.Name),
		zap.String("run_id", m.Manifest.RunID),
		zap.Int("trees", len(m.Booster.Trees)),
		zap.Float64("auc", ev.Report.AUC),
		zap.Float64("precision", ev.Report.Precision),
		zap.Float64("recall", ev.Report.Recall),
		zap.Float64("f1", ev.Report.F1))

	if store != nil {
		if err := Save(ctx, store, m, ev); err != nil {
			return nil, fmt.Errorf("save model: %w", err)
		}
	}
	validationRows := 0
	if stopping == EarlyStoppingValidation {
		validationRows = len(eval.Y)
	}
	return &Result{
		Model:          m,
		Evaluation:     ev,
		TrainRows:      len(split.YTrain),
		ValidationRows: validationRows,
		TestRows:       len(split.YTest),
		Duration:       time.Since(start),
	}, nil
}

// earlyStoppingSet carves a stratified validation slice out of the training
// side. It falls back to the test split when size is zero or the training
// side cannot be split with both classes on each part.
func earlyStoppingSet(split *Split, size float64, seed int64, log *zap.Logger) (*dataset.Frame, []int, *EvalSet, string) {
	testSet := &EvalSet{X: split.XTest, Y: split.YTest}
	if size <= 0 {
		return split.XTrain, split.YTrain, testSet, EarlyStoppingTest
	}
	fit, val, err := dataset.StratifiedSplit(split.YTrain, size, seed+1)
	if err != nil {
		log.Warn("训练集过小，早停改用测试集", zap.Error(err))
		return split.XTrain, split.YTrain, testSet, EarlyStoppingTest
	}
	return split.XTrain.Subset(fit), dataset.Pick(split.YTrain, fit),
		&EvalSet{X: split.XTrain.Subset(val), Y: dataset.Pick(split.YTrain, val)},
		EarlyStoppingValidation
}
