package classifier

import (
	"encoding/json"
	"math/rand"
	"testing"

	"dropout_risk_backend/internal/ml/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds rows where the label depends on column 0 only; column 1
// is noise and column 2 a categorical code.
func separable(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	d := &Dataset{Categorical: []bool{false, false, true}}
	for i := 0; i < n; i++ {
		x0 := rng.Float64()
		y := 0
		if x0 > 0.6 {
			y = 1
		}
		d.X = append(d.X, []float64{x0, rng.NormFloat64(), float64(rng.Intn(3))})
		d.Y = append(d.Y, y)
	}
	return d
}

// categoryDriven labels rows by category code alone: codes 1 and 3 fail.
func categoryDriven(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	d := &Dataset{Categorical: []bool{true, false}}
	for i := 0; i < n; i++ {
		code := rng.Intn(4)
		y := 0
		if code == 1 || code == 3 {
			y = 1
		}
		d.X = append(d.X, []float64{float64(code), rng.Float64()})
		d.Y = append(d.Y, y)
	}
	return d
}

func fastGBDT() GBDTParams {
	p := DefaultGBDTParams()
	p.Iterations = 200
	p.LearningRate = 0.1
	p.Depth = 3
	p.EarlyStoppingRounds = 20
	return p
}

func TestGBDTLearnsSeparableData(t *testing.T) {
	train, eval := separable(400, 1), separable(200, 2)
	m := NewGBDT(fastGBDT())
	require.NoError(t, m.Fit(train, eval))

	auc := metrics.AUC(eval.Y, m.PredictProba(eval.X))
	assert.Greater(t, auc, 0.97)
	assert.Equal(t, "gradient_boosting", m.Name())

	// early stopping restores the best iteration
	assert.Len(t, m.Trees, m.BestIteration+1)
	assert.InDelta(t, m.BestScore, auc, 1e-12)

	// the informative column dominates importance
	require.Len(t, m.Importance, 3)
	assert.Greater(t, m.Importance[0], m.Importance[1])
	var sum float64
	for _, v := range m.Importance {
		sum += v
	}
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestGBDTWithoutEvalKeepsAllTrees(t *testing.T) {
	p := fastGBDT()
	p.Iterations = 15
	m := NewGBDT(p)
	require.NoError(t, m.Fit(separable(100, 3), nil))
	assert.Len(t, m.Trees, 15)
	assert.Equal(t, 14, m.BestIteration)
}

func TestGBDTNativeCategoricalSplits(t *testing.T) {
	train, test := categoryDriven(400, 4), categoryDriven(200, 5)
	m := NewGBDT(fastGBDT())
	require.NoError(t, m.Fit(train, test))
	assert.Greater(t, metrics.AUC(test.Y, m.PredictProba(test.X)), 0.99)

	var sawSet bool
	for _, tree := range m.Trees {
		for _, n := range tree.Nodes {
			if !n.Leaf && n.Feature == 0 {
				require.NotNil(t, n.Categories)
				sawSet = true
			}
		}
	}
	assert.True(t, sawSet)
}

func TestGBDTOrdinalName(t *testing.T) {
	p := fastGBDT()
	p.NativeCategorical = false
	assert.Equal(t, "gradient_boosting_ordinal", NewGBDT(p).Name())
}

func TestGBDTIsSeeded(t *testing.T) {
	train, eval := separable(200, 6), separable(100, 7)
	a, b := NewGBDT(fastGBDT()), NewGBDT(fastGBDT())
	require.NoError(t, a.Fit(train, eval))
	require.NoError(t, b.Fit(train, eval))
	assert.Equal(t, a.PredictProba(eval.X), b.PredictProba(eval.X))
}

func TestGBDTJSONRoundTrip(t *testing.T) {
	train := categoryDriven(200, 8)
	m := NewGBDT(fastGBDT())
	require.NoError(t, m.Fit(train, categoryDriven(100, 9)))

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var loaded GBDT
	require.NoError(t, json.Unmarshal(raw, &loaded))

	want := m.PredictProba(train.X)
	got := loaded.PredictProba(train.X)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestUnknownCategoryGoesRight(t *testing.T) {
	n := Node{Categories: []int{0, 2}}
	assert.True(t, n.goesLeft(2))
	assert.False(t, n.goesLeft(1))
	assert.False(t, n.goesLeft(-1))
}

func TestBinMapperOpenEnded(t *testing.T) {
	m := newBinMapper([]float64{3, 1, 2, 2}, false, 64)
	assert.Equal(t, 3, m.bins)
	assert.Equal(t, 0, m.bin(0.5))
	assert.Equal(t, 1, m.bin(2))
	assert.Equal(t, 2, m.bin(100))

	c := newBinMapper([]float64{0, 2, 1}, true, 64)
	assert.Equal(t, 4, c.bins)
	assert.Equal(t, 0, c.bin(-1))
	assert.Equal(t, 0, c.bin(7))
	assert.Equal(t, 3, c.bin(2))
}

func TestBaselineClassifiersLearnSeparableData(t *testing.T) {
	train, test := separable(300, 10), separable(150, 11)
	forest := NewRandomForest(ForestParams{Trees: 30, MaxDepth: 6, Seed: 1})
	models := []Classifier{
		NewLogisticRegression(LogisticParams{}),
		forest,
		NewLinearSVM(SVMParams{}),
	}
	for _, m := range models {
		t.Run(m.Name(), func(t *testing.T) {
			require.NoError(t, m.Fit(train, nil))
			proba := m.PredictProba(test.X)
			for _, p := range proba {
				assert.True(t, p >= 0 && p <= 1)
			}
			assert.Greater(t, metrics.AUC(test.Y, proba), 0.9)
		})
	}
}

func TestFitRejectsEmptyData(t *testing.T) {
	for _, m := range []Classifier{
		NewGBDT(fastGBDT()),
		NewRandomForest(ForestParams{Trees: 2}),
		NewLogisticRegression(LogisticParams{}),
		NewLinearSVM(SVMParams{}),
	} {
		assert.Error(t, m.Fit(&Dataset{}, nil), m.Name())
	}
	bad := &Dataset{X: [][]float64{{1}}, Y: []int{0, 1}}
	assert.Error(t, NewGBDT(fastGBDT()).Fit(bad, nil))
}
