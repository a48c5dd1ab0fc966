// Package classifier implements the binary classifiers used by the training
// and evaluation pipeline. Every model predicts the probability of the
// positive (fail) class.
package classifier

import (
	"errors"
	"fmt"
	"math"
)

var errEmptyTrainingSet = errors.New("classifier: empty training set")

// Dataset is a dense design matrix with binary labels. Categorical marks the
// columns holding ordinal category codes; negative codes mean unknown.
type Dataset struct {
	X           [][]float64
	Y           []int
	Categorical []bool
}

func (d *Dataset) Rows() int {
	return len(d.X)
}

func (d *Dataset) Cols() int {
	if len(d.X) == 0 {
		return len(d.Categorical)
	}
	return len(d.X[0])
}

func (d *Dataset) validate() error {
	if d == nil || len(d.X) == 0 {
		return errEmptyTrainingSet
	}
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("classifier: %d rows but %d labels", len(d.X), len(d.Y))
	}
	if d.Categorical != nil && len(d.Categorical) != len(d.X[0]) {
		return fmt.Errorf("classifier: categorical mask has %d entries for %d columns", len(d.Categorical), len(d.X[0]))
	}
	return nil
}

func (d *Dataset) isCategorical(j int) bool {
	return d.Categorical != nil && d.Categorical[j]
}

// Classifier is a binary probabilistic model.
type Classifier interface {
	Name() string
	// Fit trains on train. eval may be nil; models that support early
	// stopping monitor it.
	Fit(train, eval *Dataset) error
	PredictProba(X [][]float64) []float64
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func logOdds(p float64) float64 {
	const eps = 1e-6
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}

func positiveRate(y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	var pos int
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	return float64(pos) / float64(len(y))
}
