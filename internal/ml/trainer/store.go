package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/internal/ml/classifier"
	"dropout_risk_backend/internal/ml/dataset"

	"gopkg.in/yaml.v3"
)

// Artifact keys of a model saved under name.
func ModelKey(name string) string    { return name + ".model.json" }
func ManifestKey(name string) string { return name + ".manifest.yaml" }
func MetricsKey(name string) string  { return name + ".metrics.json" }

// Save writes the booster, the manifest and, when given, the evaluation of
// m under m.Manifest.Name. The manifest is written last so a reader never
// sees a manifest pointing at a half-written booster. A name that already
// has a manifest is refused with ml.ErrModelVersionExists.
func Save(ctx context.Context, store artifact.Store, m *TrainedModel, eval *Evaluation) error {
	name := m.Manifest.Name
	if name == "" {
		return errors.New("save model: manifest has no name")
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("save model %q: %w", name, err)
	}
	if err := ensureAbsent(ctx, store, name); err != nil {
		return err
	}

	booster, err := json.Marshal(m.Booster)
	if err != nil {
		return fmt.Errorf("encode booster: %w", err)
	}
	if err := store.Put(ctx, ModelKey(name), booster); err != nil {
		return fmt.Errorf("write booster: %w", err)
	}
	if eval != nil {
		raw, err := json.MarshalIndent(eval, "", "  ")
		if err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
		if err := store.Put(ctx, MetricsKey(name), raw); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	manifest, err := yaml.Marshal(&m.Manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := store.Put(ctx, ManifestKey(name), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func ensureAbsent(ctx context.Context, store artifact.Store, name string) error {
	_, err := store.Get(ctx, ManifestKey(name))
	switch {
	case err == nil:
		return fmt.Errorf("save model %q: %w", name, ml.ErrModelVersionExists)
	case errors.Is(err, artifact.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check model %q: %w", name, err)
	}
}

// Load reads a model saved under name. Any missing, unreadable or
// inconsistent artifact is reported as a *ml.ModelLoadError.
func Load(ctx context.Context, store artifact.Store, name string) (*TrainedModel, error) {
	loadErr := func(err error) error {
		return &ml.ModelLoadError{Model: name, Err: err}
	}

	raw, err := store.Get(ctx, ManifestKey(name))
	if err != nil {
		return nil, loadErr(err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, loadErr(fmt.Errorf("decode manifest: %w", err))
	}

	raw, err = store.Get(ctx, ModelKey(name))
	if err != nil {
		return nil, loadErr(err)
	}
	var booster classifier.GBDT
	if err := json.Unmarshal(raw, &booster); err != nil {
		return nil, loadErr(fmt.Errorf("decode booster: %w", err))
	}

	m := &TrainedModel{
		Manifest: manifest,
		Encoder:  dataset.NewOrdinalEncoder(manifest.Categories),
		Booster:  &booster,
	}
	if err := m.Validate(); err != nil {
		return nil, loadErr(err)
	}
	return m, nil
}

// LoadEvaluation reads the metrics saved with a model.
func LoadEvaluation(ctx context.Context, store artifact.Store, name string) (*Evaluation, error) {
	raw, err := store.Get(ctx, MetricsKey(name))
	if err != nil {
		return nil, err
	}
	var eval Evaluation
	if err := json.Unmarshal(raw, &eval); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return &eval, nil
}
