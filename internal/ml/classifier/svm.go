package classifier

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

type SVMParams struct {
	C      float64 `json:"c" yaml:"c"`
	Epochs int     `json:"epochs" yaml:"epochs"`
	Seed   int64   `json:"seed" yaml:"seed"`
}

func DefaultSVMParams() SVMParams {
	return SVMParams{C: 1, Epochs: 30, Seed: 42}
}

// LinearSVM is a soft-margin linear SVM trained with Pegasos stochastic
// sub-gradient steps. Probabilities come from a sigmoid fitted on the
// training decision values (Platt scaling).
type LinearSVM struct {
	Params  SVMParams `json:"params"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	PlattA  float64   `json:"platt_a"`
	PlattB  float64   `json:"platt_b"`
}

func NewLinearSVM(p SVMParams) *LinearSVM {
	d := DefaultSVMParams()
	if p.C <= 0 {
		p.C = d.C
	}
	if p.Epochs <= 0 {
		p.Epochs = d.Epochs
	}
	return &LinearSVM{Params: p}
}

func (m *LinearSVM) Name() string { return "svm" }

func (m *LinearSVM) Fit(train, _ *Dataset) error {
	if err := train.validate(); err != nil {
		return err
	}
	n, d := train.Rows(), train.Cols()
	lambda := 1 / (m.Params.C * float64(n))
	w := make([]float64, d)
	var b float64
	rng := rand.New(rand.NewSource(m.Params.Seed))

	t := 0
	for epoch := 0; epoch < m.Params.Epochs; epoch++ {
		for _, i := range rng.Perm(n) {
			t++
			eta := 1 / (lambda * float64(t))
			y := 2*float64(train.Y[i]) - 1
			margin := y * (floats.Dot(w, train.X[i]) + b)
			// the bias is a regularized constant feature
			floats.Scale(1-eta*lambda, w)
			b *= 1 - eta*lambda
			if margin < 1 {
				floats.AddScaled(w, eta*y, train.X[i])
				b += eta * y
			}
			// project back onto the ball of radius 1/sqrt(lambda)
			norm := math.Sqrt(floats.Dot(w, w) + b*b)
			if limit := 1 / math.Sqrt(lambda); norm > limit {
				floats.Scale(limit/norm, w)
				b *= limit / norm
			}
		}
	}
	m.Weights, m.Bias = w, b

	decision := make([][]float64, n)
	for i, x := range train.X {
		decision[i] = []float64{m.decision(x)}
	}
	platt := NewLogisticRegression(LogisticParams{C: 1e6})
	if err := platt.Fit(&Dataset{X: decision, Y: train.Y}, nil); err != nil {
		return err
	}
	m.PlattA, m.PlattB = platt.Weights[0], platt.Intercept
	return nil
}

func (m *LinearSVM) decision(x []float64) float64 {
	return floats.Dot(m.Weights, x) + m.Bias
}

func (m *LinearSVM) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = sigmoid(m.PlattA*m.decision(x) + m.PlattB)
	}
	return out
}
