// Package evaluation estimates model performance and its variance with
// stratified K-fold cross-validation.
package evaluation

import (
	"fmt"

	"dropout_risk_backend/internal/ml/classifier"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/ml/metrics"
	"dropout_risk_backend/internal/ml/trainer"
)

// UnstableAUCStd is the AUC standard deviation across folds above which a
// model is flagged unstable.
const UnstableAUCStd = 0.05

// Stability labels of a metric's standard deviation across folds.
const (
	VeryStable       = "Very Stable"
	Stable           = "Stable"
	ModeratelyStable = "Moderately Stable"
	Unstable         = "Unstable"
)

// StabilityLabel buckets a standard deviation: below 0.02 very stable,
// below 0.05 stable, below 0.10 moderately stable, otherwise unstable.
func StabilityLabel(std float64) string {
	switch {
	case std < 0.02:
		return VeryStable
	case std < 0.05:
		return Stable
	case std < 0.10:
		return ModeratelyStable
	default:
		return Unstable
	}
}

// FoldResult is the performance of the model trained on one fold.
type FoldResult struct {
	Fold          int            `json:"fold"`
	TrainRows     int            `json:"train_rows"`
	TestRows      int            `json:"test_rows"`
	TrainFailRate float64        `json:"train_fail_rate"`
	TestFailRate  float64        `json:"test_fail_rate"`
	BestIteration int            `json:"best_iteration,omitempty"`
	Metrics       metrics.Report `json:"metrics"`
}

type KFoldResult struct {
	K         int                        `json:"k"`
	Rows      int                        `json:"rows"`
	FailRate  float64                    `json:"fail_rate"`
	Folds     []FoldResult               `json:"folds"`
	Summary   map[string]metrics.Summary `json:"summary"`
	Stability map[string]string          `json:"stability"`
	// Unstable is set when the AUC std exceeds UnstableAUCStd.
	Unstable bool `json:"unstable"`
}

// RunKFold trains one GBDT per stratified fold and scores it on the held
// out fold, which also serves as its early stopping set. Folds are drawn
// with hp.Seed and fold i trains with seed hp.Seed+i.
func RunKFold(x *dataset.Frame, y []int, k int, hp classifier.GBDTParams) (*KFoldResult, error) {
	if x.Len() != len(y) {
		return nil, fmt.Errorf("kfold: %d rows, %d labels", x.Len(), len(y))
	}
	folds, err := dataset.StratifiedKFold(y, k, hp.Seed)
	if err != nil {
		return nil, err
	}

	res := &KFoldResult{K: k, Rows: len(y), FailRate: dataset.FailRate(y)}
	reports := make([]metrics.Report, 0, k)
	for i, fold := range folds {
		yTrain, yTest := dataset.Pick(y, fold.Train), dataset.Pick(y, fold.Test)
		xTest := x.Subset(fold.Test)

		foldHP := hp
		foldHP.Seed = hp.Seed + int64(i)
		m, err := trainer.Train(x.Subset(fold.Train), yTrain, foldHP, &trainer.EvalSet{X: xTest, Y: yTest})
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}
		ev, err := trainer.Evaluate(m, xTest, yTest)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}
		reports = append(reports, ev.Report)
		res.Folds = append(res.Folds, FoldResult{
			Fold:          i + 1,
			TrainRows:     len(yTrain),
			TestRows:      len(yTest),
			TrainFailRate: dataset.FailRate(yTrain),
			TestFailRate:  dataset.FailRate(yTest),
			BestIteration: m.Booster.BestIteration,
			Metrics:       ev.Report,
		})
	}

	res.Summary = metrics.SummarizeReports(reports)
	res.Stability = make(map[string]string, len(res.Summary))
	for name, s := range res.Summary {
		res.Stability[name] = StabilityLabel(s.Std)
	}
	res.Unstable = res.Summary[metrics.MetricAUC].Std > UnstableAUCStd
	return res, nil
}
