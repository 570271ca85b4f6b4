package nn

import (
	"math"

	"github.com/born-ml/chirality/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
type ReLU struct {
	input *tensor.Tensor
}

// NewReLU creates a new ReLU activation.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU.
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	r.input = input
	output := tensor.Zeros(input.Shape())
	y := output.Data()
	for i, v := range input.Data() {
		if v > 0 {
			y[i] = v
		}
	}
	return output
}

// Backward passes gradients through where the input was positive.
func (r *ReLU) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	gradInput := tensor.Zeros(gradOutput.Shape())
	dx := gradInput.Data()
	x := r.input.Data()
	for i, g := range gradOutput.Data() {
		if x[i] > 0 {
			dx[i] = g
		}
	}
	return gradInput
}

// Parameters returns an empty slice.
func (r *ReLU) Parameters() []*Parameter {
	return []*Parameter{}
}

// String returns a string representation of the layer.
func (r *ReLU) String() string {
	return "ReLU()"
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
type Sigmoid struct {
	output *tensor.Tensor
}

// NewSigmoid creates a new Sigmoid activation.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

// Forward applies the logistic function.
func (s *Sigmoid) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := tensor.Zeros(input.Shape())
	y := output.Data()
	for i, v := range input.Data() {
		y[i] = sigmoid(v)
	}
	s.output = output
	return output
}

// Backward computes g * y * (1 - y).
func (s *Sigmoid) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	gradInput := tensor.Zeros(gradOutput.Shape())
	dx := gradInput.Data()
	y := s.output.Data()
	for i, g := range gradOutput.Data() {
		dx[i] = g * y[i] * (1 - y[i])
	}
	return gradInput
}

// Parameters returns an empty slice.
func (s *Sigmoid) Parameters() []*Parameter {
	return []*Parameter{}
}

// String returns a string representation of the layer.
func (s *Sigmoid) String() string {
	return "Sigmoid()"
}

// sigmoid avoids overflow of exp for large |x|.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
