package evaluation

import (
	"fmt"

	"dropout_risk_backend/internal/ml/classifier"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/ml/metrics"
)

// ModelSpec describes one contender of a comparison.
type ModelSpec struct {
	Name string
	// New returns an untrained model for the given fold seed.
	New func(seed int64) classifier.Classifier
	// Scale standardizes numeric columns with statistics of the training
	// fold. Categorical codes are left as is.
	Scale bool
}

// DefaultModels is the standard comparison set: logistic regression,
// random forest, linear SVM and gradient boosting with native and with
// ordinal categorical handling.
func DefaultModels(hp classifier.GBDTParams, forestTrees int) []ModelSpec {
	ordinal := hp
	ordinal.NativeCategorical = false
	native := hp
	native.NativeCategorical = true
	return []ModelSpec{
		{
			Name: "logistic_regression",
			New: func(int64) classifier.Classifier {
				return classifier.NewLogisticRegression(classifier.DefaultLogisticParams())
			},
			Scale: true,
		},
		{
			Name: "random_forest",
			New: func(seed int64) classifier.Classifier {
				p := classifier.DefaultForestParams()
				if forestTrees > 0 {
					p.Trees = forestTrees
				}
				p.Seed = seed
				return classifier.NewRandomForest(p)
			},
		},
		{
			Name: "svm",
			New: func(seed int64) classifier.Classifier {
				p := classifier.DefaultSVMParams()
				p.Seed = seed
				return classifier.NewLinearSVM(p)
			},
			Scale: true,
		},
		{
			Name: "gradient_boosting",
			New: func(seed int64) classifier.Classifier {
				p := native
				p.Seed = seed
				return classifier.NewGBDT(p)
			},
		},
		{
			Name: "gradient_boosting_ordinal",
			New: func(seed int64) classifier.Classifier {
				p := ordinal
				p.Seed = seed
				return classifier.NewGBDT(p)
			},
		},
	}
}

type ModelResult struct {
	Model   string                     `json:"model"`
	Folds   []FoldResult               `json:"folds"`
	Summary map[string]metrics.Summary `json:"summary"`
}

type Comparison struct {
	K        int           `json:"k"`
	Rows     int           `json:"rows"`
	FailRate float64       `json:"fail_rate"`
	Models   []ModelResult `json:"models"`
	// Best maps each metric to the model with the highest mean.
	Best map[string]string `json:"best"`
}

// CompareModels runs every model on the same stratified folds. Each fold
// learns its own category vocabulary and, for scaled models, its own
// standardization from the training rows only. Models that support early
// stopping watch the held out fold.
func CompareModels(x *dataset.Frame, y []int, k int, seed int64, specs []ModelSpec) (*Comparison, error) {
	if x.Len() != len(y) {
		return nil, fmt.Errorf("compare: %d rows, %d labels", x.Len(), len(y))
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("compare: no models")
	}
	folds, err := dataset.StratifiedKFold(y, k, seed)
	if err != nil {
		return nil, err
	}

	type prepared struct {
		train, test       *classifier.Dataset
		scaledTr, scaledT *classifier.Dataset
	}
	names := x.Names()
	data := make([]prepared, len(folds))
	for i, fold := range folds {
		xTrain := x.Subset(fold.Train)
		enc := dataset.FitOrdinalEncoder(xTrain, names)
		mTrain, err := enc.Encode(xTrain, names)
		if err != nil {
			return nil, err
		}
		mTest, err := enc.Encode(x.Subset(fold.Test), names)
		if err != nil {
			return nil, err
		}
		scaler := dataset.FitStandardScaler(mTrain)
		sTrain, sTest := scaler.Transform(mTrain), scaler.Transform(mTest)

		yTrain, yTest := dataset.Pick(y, fold.Train), dataset.Pick(y, fold.Test)
		data[i] = prepared{
			train:    &classifier.Dataset{X: mTrain.Rows, Y: yTrain, Categorical: mTrain.Categorical},
			test:     &classifier.Dataset{X: mTest.Rows, Y: yTest, Categorical: mTest.Categorical},
			scaledTr: &classifier.Dataset{X: sTrain.Rows, Y: yTrain, Categorical: sTrain.Categorical},
			scaledT:  &classifier.Dataset{X: sTest.Rows, Y: yTest, Categorical: sTest.Categorical},
		}
	}

	cmp := &Comparison{K: k, Rows: len(y), FailRate: dataset.FailRate(y), Best: make(map[string]string)}
	for _, spec := range specs {
		mr := ModelResult{Model: spec.Name}
		reports := make([]metrics.Report, 0, len(folds))
		for i, d := range data {
			train, test := d.train, d.test
			if spec.Scale {
				train, test = d.scaledTr, d.scaledT
			}
			model := spec.New(seed)
			if err := model.Fit(train, test); err != nil {
				return nil, fmt.Errorf("%s fold %d: %w", spec.Name, i+1, err)
			}
			report := metrics.Evaluate(test.Y, model.PredictProba(test.X), metrics.DefaultThreshold)
			reports = append(reports, report)
			mr.Folds = append(mr.Folds, FoldResult{
				Fold:          i + 1,
				TrainRows:     train.Rows(),
				TestRows:      test.Rows(),
				TrainFailRate: dataset.FailRate(train.Y),
				TestFailRate:  dataset.FailRate(test.Y),
				Metrics:       report,
			})
		}
		mr.Summary = metrics.SummarizeReports(reports)
		cmp.Models = append(cmp.Models, mr)
	}

	for _, name := range metrics.MetricNames {
		best, bestMean := "", -1.0
		for _, mr := range cmp.Models {
			if mean := mr.Summary[name].Mean; mean > bestMean {
				best, bestMean = mr.Model, mean
			}
		}
		cmp.Best[name] = best
	}
	return cmp, nil
}
