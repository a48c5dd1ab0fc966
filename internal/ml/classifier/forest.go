package classifier

import (
	"math"
	"math/rand"
)

type ForestParams struct {
	Trees          int   `json:"trees" yaml:"trees"`
	MaxDepth       int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf int   `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxBins        int   `json:"max_bins" yaml:"max_bins"`
	Seed           int64 `json:"seed" yaml:"seed"`
}

func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 500, MaxDepth: 10, MinSamplesLeaf: 1, MaxBins: 64, Seed: 42}
}

// RandomForest averages bootstrapped trees that each consider a random
// sqrt-sized feature subset at every split. Categorical codes are treated as
// ordered values.
type RandomForest struct {
	Params ForestParams `json:"params"`
	Forest []*Tree      `json:"forest"`
}

func NewRandomForest(p ForestParams) *RandomForest {
	d := DefaultForestParams()
	if p.Trees <= 0 {
		p.Trees = d.Trees
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if p.MaxBins < 2 || p.MaxBins > math.MaxUint16 {
		p.MaxBins = d.MaxBins
	}
	return &RandomForest{Params: p}
}

func (f *RandomForest) Name() string { return "random_forest" }

func (f *RandomForest) Fit(train, _ *Dataset) error {
	if err := train.validate(); err != nil {
		return err
	}
	p := f.Params
	data := newBinned(&Dataset{X: train.X, Y: train.Y}, p.MaxBins)
	n := train.Rows()

	grad := make([]float64, n)
	hess := make([]float64, n)
	for i, y := range train.Y {
		grad[i] = -float64(y)
		hess[i] = 1
	}
	maxFeatures := int(math.Max(1, math.Floor(math.Sqrt(float64(train.Cols())))))
	tp := treeParams{
		maxDepth:    p.MaxDepth,
		minLeaf:     p.MinSamplesLeaf,
		shrinkage:   1,
		maxFeatures: maxFeatures,
		minGain:     1e-12,
	}

	rng := rand.New(rand.NewSource(p.Seed))
	f.Forest = make([]*Tree, 0, p.Trees)
	rows := make([]int, n)
	for t := 0; t < p.Trees; t++ {
		for i := range rows {
			rows[i] = rng.Intn(n)
		}
		f.Forest = append(f.Forest, buildTree(data, grad, hess, rows, tp, rng))
	}
	return nil
}

func (f *RandomForest) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(f.Forest) == 0 {
		return out
	}
	for i, x := range X {
		var s float64
		for _, t := range f.Forest {
			s += t.Predict(x)
		}
		out[i] = math.Min(math.Max(s/float64(len(f.Forest)), 0), 1)
	}
	return out
}
