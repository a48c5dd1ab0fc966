// Package metrics scores binary fail/pass predictions.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// DefaultThreshold turns a fail probability into a predicted label.
const DefaultThreshold = 0.5

// ConfusionMatrix counts predictions with fail as the positive class.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Rows returns [[TN FP] [FN TP]].
func (c ConfusionMatrix) Rows() [2][2]int {
	return [2][2]int{{c.TN, c.FP}, {c.FN, c.TP}}
}

type Report struct {
	AUC       float64         `json:"auc_roc" yaml:"auc_roc"`
	Accuracy  float64         `json:"accuracy" yaml:"accuracy"`
	Precision float64         `json:"precision" yaml:"precision"`
	Recall    float64         `json:"recall" yaml:"recall"`
	F1        float64         `json:"f1" yaml:"f1"`
	Confusion ConfusionMatrix `json:"confusion_matrix" yaml:"confusion_matrix"`
	Support   int             `json:"support" yaml:"support"`
}

// Names of the scalar metrics, in report order.
const (
	MetricAUC       = "auc_roc"
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
)

var MetricNames = []string{MetricAUC, MetricAccuracy, MetricPrecision, MetricRecall, MetricF1}

// Value returns a scalar metric by name.
func (r Report) Value(name string) float64 {
	switch name {
	case MetricAUC:
		return r.AUC
	case MetricAccuracy:
		return r.Accuracy
	case MetricPrecision:
		return r.Precision
	case MetricRecall:
		return r.Recall
	case MetricF1:
		return r.F1
	}
	return math.NaN()
}

// Evaluate computes the report for fail labels y and fail probabilities.
// Undefined ratios (no predicted or no actual positives) are reported as 0.
func Evaluate(y []int, proba []float64, threshold float64) Report {
	var c ConfusionMatrix
	for i, p := range proba {
		predicted := p >= threshold
		actual := y[i] == 1
		switch {
		case predicted && actual:
			c.TP++
		case predicted:
			c.FP++
		case actual:
			c.FN++
		default:
			c.TN++
		}
	}
	r := Report{Confusion: c, Support: len(y), AUC: AUC(y, proba)}
	if len(y) > 0 {
		r.Accuracy = float64(c.TP+c.TN) / float64(len(y))
	}
	r.Precision = ratio(c.TP, c.TP+c.FP)
	r.Recall = ratio(c.TP, c.TP+c.FN)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	return r
}

// AUC returns the area under the ROC curve. It is 0.5 when y holds a single
// class.
func AUC(y []int, proba []float64) float64 {
	var pos int
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return 0.5
	}
	scores := make([]float64, len(proba))
	copy(scores, proba)
	classes := make([]bool, len(y))
	for i, v := range y {
		classes[i] = v == 1
	}
	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Summary describes a metric across folds. Std is the population standard
// deviation.
type Summary struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{Mean: mean, Std: std, Min: floats.Min(values), Max: floats.Max(values)}
}

// SummarizeReports summarizes every scalar metric of reports.
func SummarizeReports(reports []Report) map[string]Summary {
	out := make(map[string]Summary, len(MetricNames))
	for _, name := range MetricNames {
		values := make([]float64, len(reports))
		for i, r := range reports {
			values[i] = r.Value(name)
		}
		out[name] = Summarize(values)
	}
	return out
}

// Importance is one entry of a ranked feature importance list.
type Importance struct {
	Feature    string  `json:"feature" yaml:"feature"`
	Importance float64 `json:"importance" yaml:"importance"`
}

// TopFeatures ranks features by importance, highest first, and keeps n.
// Ties keep the input order.
func TopFeatures(names []string, importance []float64, n int) []Importance {
	neg := make([]float64, len(importance))
	for i, v := range importance {
		neg[i] = -v
	}
	idx := make([]int, len(neg))
	floats.ArgsortStable(neg, idx)
	if n > len(idx) || n <= 0 {
		n = len(idx)
	}
	out := make([]Importance, n)
	for i := 0; i < n; i++ {
		out[i] = Importance{Feature: names[idx[i]], Importance: importance[idx[i]]}
	}
	return out
}
