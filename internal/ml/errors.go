// Package ml holds the error taxonomy shared by the feature, training,
// prediction and evaluation packages.
package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means no student records matched the request.
	ErrDataUnavailable = errors.New("no student data available")
	// ErrInsufficientTrainingData means the labeled rows cannot be split
	// into the requested train/test partitions with both classes present.
	ErrInsufficientTrainingData = errors.New("insufficient labeled data for training")
	// ErrModelNotLoaded is returned by services that have no active predictor.
	ErrModelNotLoaded = errors.New("no prediction model loaded")
	// ErrModelVersionExists means a trained version is already stored under
	// the same name and version. Trained models are never replaced.
	ErrModelVersionExists = errors.New("model version already exists")
)

// ModelLoadError reports a missing or corrupt model artifact. The predictor
// cannot score until a valid model is trained again.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// IsModelLoadError reports whether err wraps a *ModelLoadError.
func IsModelLoadError(err error) bool {
	var target *ModelLoadError
	return errors.As(err, &target)
}
