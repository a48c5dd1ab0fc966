// Package trainer fits the gradient boosting fail-risk model, scores it on a
// held-out split and persists it through an artifact store.
package trainer

import (
	"fmt"
	"time"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/classifier"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/ml/features"
	"dropout_risk_backend/internal/ml/metrics"

	"github.com/google/uuid"
)

// TopFeatureCount is how many ranked features an evaluation reports.
const TopFeatureCount = 20

// Split is a stratified train/test partition of the labeled rows, restricted
// to model columns.
type Split struct {
	XTrain, XTest       *dataset.Frame
	YTrain, YTest       []int
	FeatureNames        []string
	CategoricalFeatures []string
}

// LabeledFeatures keeps the rows of f whose target is known, labels them
// fail (1) or pass (0) and restricts the columns to model columns. NaN
// numeric values are replaced by 0.
func LabeledFeatures(f *dataset.Frame, target string) (*dataset.Frame, []int, error) {
	if k, ok := f.Kind(target); !ok || k != dataset.Numeric {
		return nil, nil, fmt.Errorf("prepare data: target column %q missing or not numeric", target)
	}
	labels, rows := dataset.FailLabels(f.Numeric(target))
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: no rows with a known outcome", ml.ErrInsufficientTrainingData)
	}
	names, categorical := features.ModelColumns(f)
	catSet := make(map[string]bool, len(categorical))
	for _, c := range categorical {
		catSet[c] = true
	}
	x, _ := f.Subset(rows).Select(names, catSet)
	return x, labels, nil
}

// PrepareData runs LabeledFeatures and splits the result with the class
// ratio preserved.
func PrepareData(f *dataset.Frame, target string, testSize float64, seed int64) (*Split, error) {
	x, labels, err := LabeledFeatures(f, target)
	if err != nil {
		return nil, err
	}
	train, test, err := dataset.StratifiedSplit(labels, testSize, seed)
	if err != nil {
		return nil, err
	}

	var categorical []string
	for _, name := range x.Names() {
		if k, _ := x.Kind(name); k == dataset.Categorical {
			categorical = append(categorical, name)
		}
	}
	return &Split{
		XTrain:              x.Subset(train),
		XTest:               x.Subset(test),
		YTrain:              dataset.Pick(labels, train),
		YTest:               dataset.Pick(labels, test),
		FeatureNames:        x.Names(),
		CategoricalFeatures: categorical,
	}, nil
}

// EvalSet is the held-out data used for early stopping.
type EvalSet struct {
	X *dataset.Frame
	Y []int
}

// Early stopping sources recorded in Manifest.EarlyStopping.
const (
	EarlyStoppingNone       = "none"
	EarlyStoppingValidation = "validation"
	EarlyStoppingTest       = "test"
)

// Train fits a GBDT on every column of xTrain. Categorical columns are
// ordinal encoded with a vocabulary learned from xTrain and split natively
// by the trees. When eval is set the ensemble stops early on eval AUC and
// is cut back to its best iteration.
func Train(xTrain *dataset.Frame, yTrain []int, hp classifier.GBDTParams, eval *EvalSet) (*TrainedModel, error) {
	if xTrain.Len() == 0 || xTrain.Len() != len(yTrain) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ml.ErrInsufficientTrainingData, xTrain.Len(), len(yTrain))
	}
	names := xTrain.Names()
	var categorical []string
	for _, name := range names {
		if features.IsExcluded(name) {
			return nil, fmt.Errorf("train: column %q must not be used as a feature", name)
		}
		if k, _ := xTrain.Kind(name); k == dataset.Categorical {
			categorical = append(categorical, name)
		}
	}

	enc := dataset.FitOrdinalEncoder(xTrain, names)
	train, err := enc.Encode(xTrain, names)
	if err != nil {
		return nil, err
	}

	var evalData *classifier.Dataset
	if eval != nil && eval.X != nil && eval.X.Len() > 0 {
		catSet := make(map[string]bool, len(categorical))
		for _, c := range categorical {
			catSet[c] = true
		}
		sel, _ := eval.X.Select(names, catSet)
		m, err := enc.Encode(sel, names)
		if err != nil {
			return nil, err
		}
		evalData = &classifier.Dataset{X: m.Rows, Y: eval.Y, Categorical: m.Categorical}
	}

	booster := classifier.NewGBDT(hp)
	if err := booster.Fit(&classifier.Dataset{X: train.Rows, Y: yTrain, Categorical: train.Categorical}, evalData); err != nil {
		return nil, fmt.Errorf("fit booster: %w", err)
	}

	evalRows, stopping := 0, EarlyStoppingNone
	if evalData != nil {
		evalRows, stopping = evalData.Rows(), EarlyStoppingValidation
	}
	model := &TrainedModel{
		Manifest: Manifest{
			RunID:               uuid.NewString(),
			Algorithm:           booster.Name(),
			FeatureNames:        names,
			CategoricalFeatures: categorical,
			Categories:          enc.Categories,
			Hyperparameters:     booster.Params,
			TrainRows:           xTrain.Len(),
			EvalRows:            evalRows,
			TrainFailRate:       dataset.FailRate(yTrain),
			BestIteration:       booster.BestIteration,
			EarlyStopping:       stopping,
			TrainedAt:           time.Now().UTC(),
		},
		Encoder: enc,
		Booster: booster,
	}
	return model, nil
}

// Evaluation is the held-out performance of a model.
type Evaluation struct {
	Model       string               `json:"model"`
	Version     string               `json:"version"`
	RunID       string               `json:"run_id"`
	Report      metrics.Report       `json:"metrics"`
	TopFeatures []metrics.Importance `json:"top_features"`
	EvaluatedAt time.Time            `json:"evaluated_at"`
}

// Evaluate scores m on xTest at the default 0.5 threshold and ranks the
// booster's feature importance.
func Evaluate(m *TrainedModel, xTest *dataset.Frame, yTest []int) (*Evaluation, error) {
	if xTest.Len() != len(yTest) {
		return nil, fmt.Errorf("evaluate: %d rows, %d labels", xTest.Len(), len(yTest))
	}
	proba, _, err := m.PredictProba(xTest)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Model:       m.Manifest.Name,
		Version:     m.Manifest.Version,
		RunID:       m.Manifest.RunID,
		Report:      metrics.Evaluate(yTest, proba, metrics.DefaultThreshold),
		TopFeatures: metrics.TopFeatures(m.Manifest.FeatureNames, m.Booster.FeatureImportance(), TopFeatureCount),
		EvaluatedAt: time.Now().UTC(),
	}, nil
}
