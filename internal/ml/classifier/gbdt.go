package classifier

import (
	"math"
	"math/rand"

	"dropout_risk_backend/internal/ml/metrics"
)

// GBDTParams configures gradient boosting. Field names follow the usual
// boosting library vocabulary so manifests stay readable.
type GBDTParams struct {
	Iterations          int     `json:"iterations" yaml:"iterations" mapstructure:"iterations"`
	LearningRate        float64 `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`
	Depth               int     `json:"depth" yaml:"depth" mapstructure:"depth"`
	L2LeafReg           float64 `json:"l2_leaf_reg" yaml:"l2_leaf_reg" mapstructure:"l2_leaf_reg"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds" yaml:"early_stopping_rounds" mapstructure:"early_stopping_rounds"`
	MinDataInLeaf       int     `json:"min_data_in_leaf" yaml:"min_data_in_leaf" mapstructure:"min_data_in_leaf"`
	Subsample           float64 `json:"subsample" yaml:"subsample" mapstructure:"subsample"`
	MaxBins             int     `json:"max_bins" yaml:"max_bins" mapstructure:"max_bins"`
	Seed                int64   `json:"seed" yaml:"seed" mapstructure:"seed"`
	// NativeCategorical lets trees split categorical columns on category
	// sets. When false those columns are treated as ordered codes.
	NativeCategorical bool `json:"native_categorical" yaml:"native_categorical" mapstructure:"native_categorical"`
}

func DefaultGBDTParams() GBDTParams {
	return GBDTParams{
		Iterations:          1000,
		LearningRate:        0.05,
		Depth:               6,
		L2LeafReg:           3,
		EarlyStoppingRounds: 50,
		MinDataInLeaf:       1,
		Subsample:           0.8,
		MaxBins:             64,
		Seed:                42,
		NativeCategorical:   true,
	}
}

// withDefaults fills zero fields with the defaults.
func (p GBDTParams) withDefaults() GBDTParams {
	d := DefaultGBDTParams()
	if p.Iterations <= 0 {
		p.Iterations = d.Iterations
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Depth <= 0 {
		p.Depth = d.Depth
	}
	if p.L2LeafReg < 0 {
		p.L2LeafReg = d.L2LeafReg
	}
	if p.MinDataInLeaf <= 0 {
		p.MinDataInLeaf = d.MinDataInLeaf
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}
	if p.MaxBins < 2 {
		p.MaxBins = d.MaxBins
	}
	if p.MaxBins > math.MaxUint16 {
		p.MaxBins = math.MaxUint16
	}
	return p
}

// GBDT is a gradient boosted tree ensemble trained on binary log-loss.
type GBDT struct {
	Params        GBDTParams `json:"params"`
	BaseScore     float64    `json:"base_score"`
	Trees         []*Tree    `json:"trees"`
	BestIteration int        `json:"best_iteration"`
	BestScore     float64    `json:"best_score"`
	Importance    []float64  `json:"importance"`
	NumFeatures   int        `json:"num_features"`
}

func NewGBDT(p GBDTParams) *GBDT {
	return &GBDT{Params: p.withDefaults()}
}

func (m *GBDT) Name() string {
	if m.Params.NativeCategorical {
		return "gradient_boosting"
	}
	return "gradient_boosting_ordinal"
}

// Fit boosts trees on train. With a non-empty eval set, AUC on eval is
// tracked every iteration, training stops after EarlyStoppingRounds
// iterations without improvement and the ensemble is cut back to the best
// iteration.
func (m *GBDT) Fit(train, eval *Dataset) error {
	if err := train.validate(); err != nil {
		return err
	}
	p := m.Params.withDefaults()
	m.Params = p
	m.NumFeatures = train.Cols()

	mask := train.Categorical
	if !p.NativeCategorical {
		mask = nil
	}
	data := newBinned(&Dataset{X: train.X, Y: train.Y, Categorical: mask}, p.MaxBins)

	n := train.Rows()
	m.BaseScore = logOdds(positiveRate(train.Y))
	m.Trees = m.Trees[:0]
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = m.BaseScore
	}

	useEval := eval != nil && eval.Rows() > 0
	var evalRaw []float64
	if useEval {
		evalRaw = make([]float64, eval.Rows())
		for i := range evalRaw {
			evalRaw[i] = m.BaseScore
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	grad := make([]float64, n)
	hess := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	tp := treeParams{
		maxDepth:  p.Depth,
		minLeaf:   p.MinDataInLeaf,
		lambda:    p.L2LeafReg,
		shrinkage: p.LearningRate,
		minGain:   1e-10,
	}

	m.BestIteration = -1
	m.BestScore = math.Inf(-1)
	proba := make([]float64, 0)
	for it := 0; it < p.Iterations; it++ {
		for i := range raw {
			pr := sigmoid(raw[i])
			grad[i] = pr - float64(train.Y[i])
			hess[i] = math.Max(pr*(1-pr), 1e-16)
		}
		rows := all
		if p.Subsample < 1 {
			rows = subsample(rng, n, p.Subsample)
		}
		tree := buildTree(data, grad, hess, rows, tp, rng)
		m.Trees = append(m.Trees, tree)
		for i, x := range train.X {
			raw[i] += tree.Predict(x)
		}

		if !useEval {
			continue
		}
		proba = proba[:0]
		for i, x := range eval.X {
			evalRaw[i] += tree.Predict(x)
			proba = append(proba, sigmoid(evalRaw[i]))
		}
		score := metrics.AUC(eval.Y, proba)
		if score > m.BestScore {
			m.BestScore = score
			m.BestIteration = it
		}
		if p.EarlyStoppingRounds > 0 && it-m.BestIteration >= p.EarlyStoppingRounds {
			break
		}
	}

	if useEval && m.BestIteration >= 0 {
		m.Trees = m.Trees[:m.BestIteration+1]
	} else {
		m.BestIteration = len(m.Trees) - 1
		m.BestScore = 0
	}
	m.computeImportance()
	return nil
}

func subsample(rng *rand.Rand, n int, frac float64) []int {
	k := int(math.Ceil(float64(n) * frac))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	return perm
}

// computeImportance normalizes total split gain per feature to sum to 100.
func (m *GBDT) computeImportance() {
	imp := make([]float64, m.NumFeatures)
	for _, t := range m.Trees {
		t.addGain(imp)
	}
	m.Importance = normalize100(imp)
}

func normalize100(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return v
	}
	for i := range v {
		v[i] = v[i] / sum * 100
	}
	return v
}

// RawScore returns the log-odds of the fail class.
func (m *GBDT) RawScore(x []float64) float64 {
	s := m.BaseScore
	for _, t := range m.Trees {
		s += t.Predict(x)
	}
	return s
}

func (m *GBDT) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = sigmoid(m.RawScore(x))
	}
	return out
}

func (m *GBDT) FeatureImportance() []float64 {
	return m.Importance
}
