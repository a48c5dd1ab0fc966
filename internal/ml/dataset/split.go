package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"dropout_risk_backend/internal/ml"
)

// Label values. The positive class is the outcome we want to predict.
const (
	LabelPass = 0
	LabelFail = 1
)

// FailLabels turns a tri-state pass flag column (1 pass, 0 fail, NaN unknown)
// into binary fail labels. Rows with an unknown outcome are skipped; the
// returned rows slice lists the frame rows that were kept.
func FailLabels(passed []float64) (labels []int, rows []int) {
	for i, v := range passed {
		if math.IsNaN(v) {
			continue
		}
		rows = append(rows, i)
		if v == 0 {
			labels = append(labels, LabelFail)
		} else {
			labels = append(labels, LabelPass)
		}
	}
	return labels, rows
}

// FailRate returns the share of LabelFail in y.
func FailRate(y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	var fails int
	for _, v := range y {
		if v == LabelFail {
			fails++
		}
	}
	return float64(fails) / float64(len(y))
}

// ClassCounts returns the number of pass and fail labels.
func ClassCounts(y []int) (pass, fail int) {
	for _, v := range y {
		if v == LabelFail {
			fail++
		} else {
			pass++
		}
	}
	return pass, fail
}

// Pick returns y[rows...].
func Pick(y []int, rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}

func classIndices(y []int, rng *rand.Rand) [2][]int {
	var byClass [2][]int
	for i, v := range y {
		c := 0
		if v == LabelFail {
			c = 1
		}
		byClass[c] = append(byClass[c], i)
	}
	for c := range byClass {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	return byClass
}

// StratifiedSplit partitions row indices into train and test sets, keeping
// the fail rate of y in both. The test share of every class is rounded to
// the nearest row but kept within [1, n-1] so each side sees both classes.
func StratifiedSplit(y []int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	pass, fail := ClassCounts(y)
	if pass < 2 || fail < 2 {
		return nil, nil, fmt.Errorf("%w: %d pass and %d fail rows, need at least 2 of each",
			ml.ErrInsufficientTrainingData, pass, fail)
	}

	rng := rand.New(rand.NewSource(seed))
	for _, idx := range classIndices(y, rng) {
		nTest := int(math.Round(float64(len(idx)) * testSize))
		if nTest < 1 {
			nTest = 1
		}
		if nTest > len(idx)-1 {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// Fold is one train/test partition of a K-fold split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold deals every class round-robin into k folds after a seeded
// shuffle, so fold class counts differ by at most one row per class. Each
// class needs at least k rows.
func StratifiedKFold(y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: k must be at least 2, got %d", ml.ErrInsufficientTrainingData, k)
	}
	pass, fail := ClassCounts(y)
	if pass < k || fail < k {
		return nil, fmt.Errorf("%w: %d pass and %d fail rows cannot fill %d folds",
			ml.ErrInsufficientTrainingData, pass, fail, k)
	}

	rng := rand.New(rand.NewSource(seed))
	assign := make([]int, len(y))
	offset := 0
	for _, idx := range classIndices(y, rng) {
		for i, row := range idx {
			assign[row] = (offset + i) % k
		}
		// continue the rotation so small folds don't all get the extra rows
		offset = (offset + len(idx)) % k
	}

	folds := make([]Fold, k)
	for row, f := range assign {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, row)
			} else {
				folds[j].Train = append(folds[j].Train, row)
			}
		}
	}
	return folds, nil
}
