// Package predictor scores students with a trained model and turns the
// scores into risk levels and intervention suggestions.
package predictor

import (
	"context"
	"fmt"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/artifact"
	"dropout_risk_backend/internal/ml/features"
	"dropout_risk_backend/internal/ml/trainer"
	"dropout_risk_backend/internal/model"

	"go.uber.org/zap"
)

// Result is the risk estimate of one student in one course.
type Result struct {
	StudentID    uint            `json:"studentId"`
	CourseID     string          `json:"courseId"`
	RiskScore    float64         `json:"riskScore"`
	RiskLevel    model.RiskLevel `json:"riskLevel"`
	Suggestions  []Suggestion    `json:"suggestions"`
	DaysInactive float64         `json:"daysInactive"`
}

// Predictor is safe for concurrent use; it never mutates its model.
type Predictor struct {
	model      *trainer.TrainedModel
	log        *zap.Logger
	onMismatch func(missing []string)
}

type Option func(*Predictor)

func WithLogger(log *zap.Logger) Option {
	return func(p *Predictor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithMismatchHook is called once per Predict call that had to default
// manifest columns missing from the feature frame.
func WithMismatchHook(fn func(missing []string)) Option {
	return func(p *Predictor) { p.onMismatch = fn }
}

// New wraps a trained model. It fails when the model is not usable, so a
// predictor never falls back to a default score.
func New(m *trainer.TrainedModel, opts ...Option) (*Predictor, error) {
	if err := m.Validate(); err != nil {
		name := ""
		if m != nil {
			name = m.Manifest.Name
		}
		return nil, &ml.ModelLoadError{Model: name, Err: err}
	}
	p := &Predictor{model: m, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Load reads the model saved under name from store.
func Load(ctx context.Context, store artifact.Store, name string, opts ...Option) (*Predictor, error) {
	m, err := trainer.Load(ctx, store, name)
	if err != nil {
		return nil, err
	}
	return New(m, opts...)
}

func (p *Predictor) Model() *trainer.TrainedModel {
	return p.model
}

// Predict rebuilds the features of records with the shared feature
// engineer and scores them. The cohort mode always comes from the model
// manifest; opts.Cohort is ignored. Columns the model expects but the
// frame lacks are filled with defaults and logged; the rows are still
// scored.
func (p *Predictor) Predict(records []model.StudentFeature, opts features.Options) ([]Result, error) {
	if len(records) == 0 {
		return nil, ml.ErrDataUnavailable
	}
	opts.Cohort = p.model.Manifest.CohortMode()
	frame := features.Build(records, opts)
	proba, missing, err := p.model.PredictProba(frame)
	if err != nil {
		return nil, fmt.Errorf("score students: %w", err)
	}
	if len(missing) > 0 {
		p.log.Warn("特征缺失，使用默认值",
			zap.String("model", p.model.Manifest.Name),
			zap.Strings("missing", missing),
			zap.Int("rows", len(records)))
		if p.onMismatch != nil {
			p.onMismatch(missing)
		}
	}

	out := make([]Result, len(records))
	counts := make(map[model.RiskLevel]int, 3)
	for i := range records {
		r := &records[i]
		score := proba[i] * 100
		level := ClassifyRisk(score)
		counts[level]++
		days := features.DaysInactive(r, opts.Now)
		out[i] = Result{
			StudentID:    r.UserID,
			CourseID:     r.CourseID,
			RiskScore:    score,
			RiskLevel:    level,
			Suggestions:  GenerateSuggestions(r, days, level),
			DaysInactive: days,
		}
	}
	p.log.Info("风险预测完成",
		zap.String("model", p.model.Manifest.Name),
		zap.Int("students", len(out)),
		zap.Int("high", counts[model.RiskHigh]),
		zap.Int("medium", counts[model.RiskMedium]),
		zap.Int("low", counts[model.RiskLow]))
	return out, nil
}
