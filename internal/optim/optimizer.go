// Package optim implements optimization algorithms for training the engine's modules.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers read the gradients accumulated on each nn.Parameter by the
// modules' Backward passes.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//
//	for _, batch := range batches {
//	    optimizer.ZeroGrad()
//	    probs := model.Forward(batch.X)
//	    loss.Forward(probs, batch.Y)
//	    model.Backward(loss.Backward())
//	    optimizer.Step()
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/chirality/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters in-place.
	Step()

	// ZeroGrad clears all parameter gradients.
	//
	// This should be called before each backward pass to prevent
	// gradient accumulation from previous iterations.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// Names of the optimizers accepted by New.
const (
	NameAdam = "adam"
	NameSGD  = "sgd"
)

// New builds the optimizer registered under name.
func New(name string, params []*nn.Parameter, cfg Config) (Optimizer, error) {
	switch name {
	case NameAdam, "":
		return NewAdam(params, AdamConfig{LR: cfg.LR}), nil
	case NameSGD:
		return NewSGD(params, SGDConfig{LR: cfg.LR}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

func zeroGrads(params []*nn.Parameter) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
