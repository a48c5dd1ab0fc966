package trainer

import (
	"errors"
	"fmt"
	"time"

	"dropout_risk_backend/internal/ml/classifier"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/ml/features"
)

// Manifest describes a trained model. It is stored next to the booster and
// is the single source of the feature layout used at prediction time.
type Manifest struct {
	Name                string                `json:"name" yaml:"name"`
	Version             string                `json:"version" yaml:"version"`
	RunID               string                `json:"run_id" yaml:"run_id"`
	Algorithm           string                `json:"algorithm" yaml:"algorithm"`
	FeatureNames        []string              `json:"feature_names" yaml:"feature_names"`
	CategoricalFeatures []string              `json:"categorical_features" yaml:"categorical_features"`
	Categories          map[string][]string   `json:"categories" yaml:"categories"`
	Hyperparameters     classifier.GBDTParams `json:"hyperparameters" yaml:"hyperparameters"`
	TrainRows           int                   `json:"train_rows" yaml:"train_rows"`
	EvalRows            int                   `json:"eval_rows" yaml:"eval_rows"`
	TrainFailRate       float64               `json:"train_fail_rate" yaml:"train_fail_rate"`
	BestIteration       int                   `json:"best_iteration" yaml:"best_iteration"`
	// Cohort is the comparison group mode the features were built with.
	// Prediction rebuilds features with the same mode.
	Cohort string `json:"cohort" yaml:"cohort"`
	// EarlyStopping names the rows early stopping watched: "validation"
	// (carved from the training side), "test" or "none".
	EarlyStopping string    `json:"early_stopping" yaml:"early_stopping"`
	TrainedAt     time.Time `json:"trained_at" yaml:"trained_at"`
}

// CohortMode is the feature cohort the model was trained with.
func (m *Manifest) CohortMode() features.CohortMode {
	return features.ParseCohortMode(m.Cohort)
}

// categoricalSet returns the categorical features as a lookup set.
func (m *Manifest) categoricalSet() map[string]bool {
	set := make(map[string]bool, len(m.CategoricalFeatures))
	for _, name := range m.CategoricalFeatures {
		set[name] = true
	}
	return set
}

// TrainedModel is immutable once trained or loaded.
type TrainedModel struct {
	Manifest Manifest
	Encoder  *dataset.OrdinalEncoder
	Booster  *classifier.GBDT
}

var errInvalidModel = errors.New("invalid trained model")

// Validate checks that the booster and the manifest agree and that no
// leakage column slipped into the feature list.
func (m *TrainedModel) Validate() error {
	if m == nil || m.Booster == nil {
		return fmt.Errorf("%w: no booster", errInvalidModel)
	}
	if len(m.Booster.Trees) == 0 {
		return fmt.Errorf("%w: booster has no trees", errInvalidModel)
	}
	names := m.Manifest.FeatureNames
	if len(names) == 0 {
		return fmt.Errorf("%w: manifest lists no features", errInvalidModel)
	}
	if m.Booster.NumFeatures != len(names) {
		return fmt.Errorf("%w: booster expects %d features, manifest lists %d",
			errInvalidModel, m.Booster.NumFeatures, len(names))
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if features.IsExcluded(name) {
			return fmt.Errorf("%w: feature %q is an excluded column", errInvalidModel, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate feature %q", errInvalidModel, name)
		}
		seen[name] = true
	}
	for _, name := range m.Manifest.CategoricalFeatures {
		if !seen[name] {
			return fmt.Errorf("%w: categorical feature %q not in feature list", errInvalidModel, name)
		}
	}
	if m.Encoder == nil {
		return fmt.Errorf("%w: no category encoder", errInvalidModel)
	}
	return nil
}

// Matrix selects the manifest columns from f in manifest order and encodes
// them. Columns f does not have are filled with defaults and returned as
// missing.
func (m *TrainedModel) Matrix(f *dataset.Frame) (*dataset.Matrix, []string, error) {
	sel, missing := f.Select(m.Manifest.FeatureNames, m.Manifest.categoricalSet())
	mat, err := m.Encoder.Encode(sel, m.Manifest.FeatureNames)
	if err != nil {
		return nil, missing, err
	}
	return mat, missing, nil
}

// PredictProba returns the fail probability of every row of f, along with
// the manifest columns that had to be defaulted.
func (m *TrainedModel) PredictProba(f *dataset.Frame) ([]float64, []string, error) {
	mat, missing, err := m.Matrix(f)
	if err != nil {
		return nil, missing, err
	}
	return m.Booster.PredictProba(mat.Rows), missing, nil
}
