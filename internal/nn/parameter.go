package nn

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/chirality/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The gradient buffer has the same shape as the value and accumulates
// across Backward calls until ZeroGrad.
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
	grad   *tensor.Tensor // Accumulated gradient
}

// NewParameter creates a new trainable parameter with a zeroed gradient.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
		grad:   tensor.Zeros(t.Shape()),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// AccumulateGrad adds delta to the gradient.
// Panics if delta has a different length than the parameter.
func (p *Parameter) AccumulateGrad(delta []float64) {
	floats.Add(p.grad.Data(), delta)
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad.Fill(0)
}
