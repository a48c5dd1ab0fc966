package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAUCPerfectAndInverted(t *testing.T) {
	y := []int{0, 0, 1, 1}
	assert.InDelta(t, 1.0, AUC(y, []float64{0.1, 0.2, 0.8, 0.9}), 1e-12)
	assert.InDelta(t, 0.0, AUC(y, []float64{0.9, 0.8, 0.2, 0.1}), 1e-12)
}

func TestAUCCountsTiesAsHalf(t *testing.T) {
	// one positive ties with one negative
	y := []int{0, 1, 0, 1}
	assert.InDelta(t, 0.875, AUC(y, []float64{0.2, 0.5, 0.5, 0.9}), 1e-12)
	assert.InDelta(t, 0.5, AUC(y, []float64{0.3, 0.3, 0.3, 0.3}), 1e-12)
}

func TestAUCSingleClass(t *testing.T) {
	assert.Equal(t, 0.5, AUC([]int{1, 1, 1}, []float64{0.2, 0.4, 0.9}))
}

func TestEvaluateConfusionMatrix(t *testing.T) {
	y := []int{1, 1, 1, 0, 0, 0, 0, 0}
	p := []float64{0.9, 0.6, 0.3, 0.7, 0.2, 0.1, 0.4, 0.5}
	r := Evaluate(y, p, DefaultThreshold)

	assert.Equal(t, ConfusionMatrix{TN: 3, FP: 2, FN: 1, TP: 2}, r.Confusion)
	assert.Equal(t, [2][2]int{{3, 2}, {1, 2}}, r.Confusion.Rows())
	assert.InDelta(t, 5.0/8, r.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, r.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, r.Recall, 1e-12)
	assert.InDelta(t, 2*0.5*(2.0/3)/(0.5+2.0/3), r.F1, 1e-12)
	assert.Equal(t, 8, r.Support)
}

func TestEvaluateNoPositivePredictions(t *testing.T) {
	r := Evaluate([]int{1, 0}, []float64{0.1, 0.2}, DefaultThreshold)
	assert.Zero(t, r.Precision)
	assert.Zero(t, r.Recall)
	assert.Zero(t, r.F1)
}

func TestSummarizeUsesPopulationStd(t *testing.T) {
	s := Summarize([]float64{0.7, 0.8, 0.9})
	assert.InDelta(t, 0.8, s.Mean, 1e-9)
	assert.InDelta(t, 0.0816496580927726, s.Std, 1e-9)
	assert.Equal(t, 0.7, s.Min)
	assert.Equal(t, 0.9, s.Max)
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummarizeReports(t *testing.T) {
	out := SummarizeReports([]Report{{AUC: 0.6, F1: 0.2}, {AUC: 0.8, F1: 0.4}})
	assert.InDelta(t, 0.7, out[MetricAUC].Mean, 1e-12)
	assert.InDelta(t, 0.1, out[MetricF1].Std, 1e-12)
	assert.Len(t, out, len(MetricNames))
}

func TestTopFeatures(t *testing.T) {
	top := TopFeatures([]string{"a", "b", "c", "d"}, []float64{5, 40, 5, 50}, 3)
	assert.Equal(t, []Importance{{"d", 50}, {"b", 40}, {"a", 5}}, top)
	assert.Len(t, TopFeatures([]string{"a"}, []float64{1}, 20), 1)
}
