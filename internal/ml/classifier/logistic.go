package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type LogisticParams struct {
	// C is the inverse L2 regularization strength.
	C       float64 `json:"c" yaml:"c"`
	MaxIter int     `json:"max_iter" yaml:"max_iter"`
	Tol     float64 `json:"tol" yaml:"tol"`
}

func DefaultLogisticParams() LogisticParams {
	return LogisticParams{C: 1, MaxIter: 1000, Tol: 1e-6}
}

// LogisticRegression is L2-regularized logistic regression fitted with
// damped Newton steps. The intercept is not regularized.
type LogisticRegression struct {
	Params    LogisticParams `json:"params"`
	Weights   []float64      `json:"weights"`
	Intercept float64        `json:"intercept"`
}

func NewLogisticRegression(p LogisticParams) *LogisticRegression {
	d := DefaultLogisticParams()
	if p.C <= 0 {
		p.C = d.C
	}
	if p.MaxIter <= 0 {
		p.MaxIter = d.MaxIter
	}
	if p.Tol <= 0 {
		p.Tol = d.Tol
	}
	return &LogisticRegression{Params: p}
}

func (m *LogisticRegression) Name() string { return "logistic_regression" }

func (m *LogisticRegression) Fit(train, _ *Dataset) error {
	if err := train.validate(); err != nil {
		return err
	}
	d := train.Cols()
	dim := d + 1 // last coefficient is the intercept
	theta := make([]float64, dim)
	theta[d] = logOdds(positiveRate(train.Y))

	loss := m.loss(train, theta)
	grad := make([]float64, dim)
	hess := make([]float64, dim*dim)
	for it := 0; it < m.Params.MaxIter; it++ {
		m.derivatives(train, theta, grad, hess)
		step, err := solveSPD(dim, hess, grad)
		if err != nil {
			return fmt.Errorf("logistic regression: %w", err)
		}

		// halve the Newton step until the objective decreases
		next := make([]float64, dim)
		improved := false
		for scale := 1.0; scale > 1e-4; scale /= 2 {
			for i := range next {
				next[i] = theta[i] - scale*step[i]
			}
			if l := m.loss(train, next); l <= loss {
				loss = l
				improved = true
				break
			}
		}
		if !improved {
			break
		}
		delta := floats.Distance(theta, next, math.Inf(1))
		copy(theta, next)
		if delta < m.Params.Tol {
			break
		}
	}
	m.Weights = theta[:d]
	m.Intercept = theta[d]
	return nil
}

func (m *LogisticRegression) linear(x, theta []float64) float64 {
	d := len(theta) - 1
	return floats.Dot(x, theta[:d]) + theta[d]
}

func (m *LogisticRegression) loss(data *Dataset, theta []float64) float64 {
	var l float64
	for i, x := range data.X {
		z := m.linear(x, theta)
		// log(1 + e^z) - y*z, computed stably
		l += math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z))) - float64(data.Y[i])*z
	}
	d := len(theta) - 1
	return l + floats.Dot(theta[:d], theta[:d])/(2*m.Params.C)
}

func (m *LogisticRegression) derivatives(data *Dataset, theta, grad, hess []float64) {
	dim := len(theta)
	d := dim - 1
	for i := range grad {
		grad[i] = 0
	}
	for i := range hess {
		hess[i] = 0
	}
	for i, x := range data.X {
		p := sigmoid(m.linear(x, theta))
		r := p - float64(data.Y[i])
		w := math.Max(p*(1-p), 1e-10)
		for a := 0; a < dim; a++ {
			xa := 1.0
			if a < d {
				xa = x[a]
			}
			grad[a] += r * xa
			for b := a; b < dim; b++ {
				xb := 1.0
				if b < d {
					xb = x[b]
				}
				hess[a*dim+b] += w * xa * xb
			}
		}
	}
	for a := 0; a < d; a++ {
		grad[a] += theta[a] / m.Params.C
		hess[a*dim+a] += 1 / m.Params.C
	}
	hess[d*dim+d] += 1e-8
	for a := 0; a < dim; a++ {
		for b := 0; b < a; b++ {
			hess[a*dim+b] = hess[b*dim+a]
		}
	}
}

// solveSPD solves A x = b for a symmetric positive definite A given row-major.
func solveSPD(n int, a, b []float64) ([]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(n, a)); !ok {
		return nil, errors.New("hessian is not positive definite")
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, mat.NewVecDense(n, b)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

func (m *LogisticRegression) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = sigmoid(floats.Dot(x, m.Weights) + m.Intercept)
	}
	return out
}
