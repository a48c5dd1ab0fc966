package dataset

import (
	"errors"
	"math"
	"testing"

	"dropout_risk_backend/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(pass, fail int) []int {
	y := make([]int, pass+fail)
	for i := pass; i < len(y); i++ {
		y[i] = LabelFail
	}
	return y
}

func TestFailLabelsSkipsUnknown(t *testing.T) {
	y, rows := FailLabels([]float64{1, 0, math.NaN(), 0, 1})
	assert.Equal(t, []int{LabelPass, LabelFail, LabelFail, LabelPass}, y)
	assert.Equal(t, []int{0, 1, 3, 4}, rows)
}

func TestStratifiedKFoldKeepsFailRate(t *testing.T) {
	for _, tc := range []struct{ pass, fail, k int }{
		{150, 50, 5},
		{80, 23, 5},
		{300, 45, 10},
	} {
		y := labels(tc.pass, tc.fail)
		p := FailRate(y)
		folds, err := StratifiedKFold(y, tc.k, 42)
		require.NoError(t, err)
		require.Len(t, folds, tc.k)

		seen := make(map[int]int)
		for _, fold := range folds {
			assert.InDelta(t, p, FailRate(Pick(y, fold.Test)), 0.05)
			assert.Len(t, fold.Train, len(y)-len(fold.Test))
			for _, r := range fold.Test {
				seen[r]++
			}
		}
		// every row is tested exactly once
		assert.Len(t, seen, len(y))
		for _, c := range seen {
			assert.Equal(t, 1, c)
		}
	}
}

func TestStratifiedKFoldIsSeeded(t *testing.T) {
	y := labels(60, 20)
	a, err := StratifiedKFold(y, 4, 7)
	require.NoError(t, err)
	b, err := StratifiedKFold(y, 4, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStratifiedKFoldInsufficient(t *testing.T) {
	_, err := StratifiedKFold(labels(20, 3), 5, 1)
	assert.True(t, errors.Is(err, ml.ErrInsufficientTrainingData))

	_, err = StratifiedKFold(labels(20, 10), 1, 1)
	assert.True(t, errors.Is(err, ml.ErrInsufficientTrainingData))
}

func TestStratifiedSplit(t *testing.T) {
	y := labels(120, 40)
	train, test, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 32)
	assert.Len(t, train, 128)
	assert.InDelta(t, 0.25, FailRate(Pick(y, test)), 1e-9)
	assert.InDelta(t, 0.25, FailRate(Pick(y, train)), 1e-9)
}

func TestStratifiedSplitNeedsBothClasses(t *testing.T) {
	_, _, err := StratifiedSplit([]int{0, 0, 0, 1}, 0.5, 1)
	assert.ErrorIs(t, err, ml.ErrInsufficientTrainingData)

	_, _, err = StratifiedSplit([]int{0, 0, 1, 1}, 1.5, 1)
	assert.Error(t, err)
}

func TestSelectFillsMissingColumns(t *testing.T) {
	f := NewFrame([]RowKey{{UserID: 1}, {UserID: 2}})
	f.SetNumeric("a", []float64{1, math.NaN()})
	f.SetCategorical("mode", []string{"audit", ""})
	f.SetNumeric("level", []float64{3, 4})

	out, missing := f.Select([]string{"mode", "ghost", "a", "ghost_cat", "level"},
		map[string]bool{"mode": true, "ghost_cat": true, "level": true})

	assert.Equal(t, []string{"mode", "ghost", "a", "ghost_cat", "level"}, out.Names())
	assert.Equal(t, []string{"ghost", "ghost_cat"}, missing)
	assert.Equal(t, []string{"audit", MissingCategory}, out.Categorical("mode"))
	assert.Equal(t, []float64{0, 0}, out.Numeric("ghost"))
	assert.Equal(t, []float64{1, 0}, out.Numeric("a"))
	assert.Equal(t, []string{MissingCategory, MissingCategory}, out.Categorical("ghost_cat"))
	assert.Equal(t, []string{"3", "4"}, out.Categorical("level"))
}

func TestSubsetKeepsRowOrder(t *testing.T) {
	f := NewFrame([]RowKey{{UserID: 1}, {UserID: 2}, {UserID: 3}})
	f.SetNumeric("x", []float64{10, 20, 30})
	sub := f.Subset([]int{2, 0})
	assert.Equal(t, []float64{30, 10}, sub.Numeric("x"))
	assert.Equal(t, uint(3), sub.Keys()[0].UserID)
}

func TestOrdinalEncoderUnknownSentinel(t *testing.T) {
	train := NewFrame(make([]RowKey, 3))
	train.SetCategorical("mode", []string{"verified", "audit", "audit"})
	train.SetNumeric("x", []float64{1, 2, 3})
	enc := FitOrdinalEncoder(train, []string{"mode", "x"})

	assert.Equal(t, []string{"audit", "verified"}, enc.Categories["mode"])
	assert.Equal(t, 2, enc.Cardinality("mode"))

	serve := NewFrame(make([]RowKey, 2))
	serve.SetCategorical("mode", []string{"honor", "verified"})
	serve.SetNumeric("x", []float64{5, 6})
	m, err := enc.Encode(serve, []string{"mode", "x"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, m.Categorical)
	assert.Equal(t, [][]float64{{UnknownCode, 5}, {1, 6}}, m.Rows)

	_, err = enc.Encode(serve, []string{"nope"})
	assert.Error(t, err)
}

func TestStandardScalerSkipsCategorical(t *testing.T) {
	m := &Matrix{
		Names:       []string{"x", "cat", "const"},
		Categorical: []bool{false, true, false},
		Rows:        [][]float64{{1, 0, 5}, {3, 1, 5}},
	}
	s := FitStandardScaler(m)
	out := s.Transform(m)
	assert.Equal(t, [][]float64{{-1, 0, 0}, {1, 1, 0}}, out.Rows)
	// the input is left untouched
	assert.Equal(t, 1.0, m.Rows[0][0])
}
