// Package nn implements the neural network modules of the chirality engine.
//
// This package provides building blocks for the 3-D CNN:
//   - Module interface: Forward, Backward and Parameters
//   - Parameter: trainable tensor with an accumulated gradient
//   - Conv3D, MaxPool3D: volumetric convolution and pooling
//   - Flatten, GlobalAvgPool3D, GlobalMaxPool3D: volume-to-feature reductions
//   - Linear: fully connected layer (gonum/mat)
//   - Activations: ReLU, Sigmoid
//   - BCELoss: binary cross-entropy on probabilities
//   - Sequential: container for stacking layers
//
// There is no gradient tape. Every module caches what its backward pass
// needs during Forward, so Backward must follow the matching Forward call.
package nn

import (
	"github.com/born-ml/chirality/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(64, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 1, rng),
//	    nn.NewSigmoid(),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor and
	// caches the activations needed by Backward.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Backward takes dLoss/dOutput of the last Forward call, accumulates
	// parameter gradients and returns dLoss/dInput.
	Backward(gradOutput *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	// Modules without weights return an empty slice.
	Parameters() []*Parameter
}
