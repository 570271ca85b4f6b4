// Package model defines the build/fit/predict contract the training core
// depends on, and a CPU binding of it built on internal/nn.
//
// The core never looks behind Handle: a Factory turns an input shape and a
// Configuration into a trainable Handle, Fit trains it on labelled samples
// and Predict returns one probability per sample.
package model

import (
	"context"

	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/tensor"
)

// Factory builds untrained models.
type Factory interface {
	Build(inputShape tensor.Shape, cfg Configuration) (Handle, error)
}

// Handle is a trainable binary classifier. A Handle is not safe for
// concurrent use.
type Handle interface {
	// Fit trains on train for the given number of epochs, calling
	// obs.OnEpochEnd after each epoch when obs is non-nil.
	Fit(ctx context.Context, train []dataset.Sample, epochs int, obs EpochObserver, opts ...FitOption) error

	// Predict returns the probability of class 1 for each sample, in order.
	Predict(samples []dataset.Sample) ([]float64, error)
}

// FitOptions holds the optional inputs of Handle.Fit.
type FitOptions struct {
	Validation []dataset.Sample
}

// FitOption configures a single Fit call.
type FitOption func(*FitOptions)

// WithValidation scores samples at the end of every epoch alongside the
// training metrics. The samples are never trained on.
func WithValidation(samples []dataset.Sample) FitOption {
	return func(o *FitOptions) {
		o.Validation = samples
	}
}

// ApplyFitOptions folds opts into a FitOptions value.
func ApplyFitOptions(opts ...FitOption) FitOptions {
	var o FitOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EpochObserver is notified synchronously at the end of every epoch.
// Epochs are numbered from 1.
type EpochObserver interface {
	OnEpochEnd(epoch int, h Handle)
}

// EpochObserverFunc adapts a function to EpochObserver.
type EpochObserverFunc func(epoch int, h Handle)

// OnEpochEnd calls f(epoch, h).
func (f EpochObserverFunc) OnEpochEnd(epoch int, h Handle) {
	f(epoch, h)
}

// Checkpointer is implemented by handles whose weights can be exported.
type Checkpointer interface {
	StateDict() map[string]*tensor.Tensor
}
