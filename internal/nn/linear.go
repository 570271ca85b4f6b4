package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/chirality/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// The matrix products run on gonum/mat views over the tensor buffers, so
// optimizer updates to the weight tensor are seen on the next Forward.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]

	input *tensor.Tensor // cached by Forward
}

// NewLinear creates a new Linear layer with Xavier weights and zero bias.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weightShape := tensor.Shape{outFeatures, inFeatures}
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, rng)),
		bias:        NewParameter("bias", Zeros(tensor.Shape{outFeatures})),
	}
}

// Forward computes the output of the linear layer.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[1]))
	}

	l.input = input
	batch := shape[0]

	output := tensor.Zeros(tensor.Shape{batch, l.outFeatures})
	x := mat.NewDense(batch, l.inFeatures, input.Data())
	y := mat.NewDense(batch, l.outFeatures, output.Data())
	y.Mul(x, l.weightMatrix().T())

	b := l.bias.Tensor().Data()
	for i := 0; i < batch; i++ {
		floats.Add(y.RawRowView(i), b)
	}

	return output
}

// Backward accumulates dW = G.T @ X and db = sum(G), and returns dX = G @ W.
func (l *Linear) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if l.input == nil {
		panic("Linear.Backward: called before Forward")
	}
	batch := l.input.Shape()[0]
	if !gradOutput.Shape().Equal(tensor.Shape{batch, l.outFeatures}) {
		panic(fmt.Sprintf("Linear.Backward: gradient shape %v, expected [%d %d]",
			gradOutput.Shape(), batch, l.outFeatures))
	}

	g := mat.NewDense(batch, l.outFeatures, gradOutput.Data())
	x := mat.NewDense(batch, l.inFeatures, l.input.Data())

	dw := mat.NewDense(l.outFeatures, l.inFeatures, nil)
	dw.Mul(g.T(), x)
	l.weight.AccumulateGrad(dw.RawMatrix().Data)

	for i := 0; i < batch; i++ {
		l.bias.AccumulateGrad(g.RawRowView(i))
	}

	gradInput := tensor.Zeros(tensor.Shape{batch, l.inFeatures})
	dx := mat.NewDense(batch, l.inFeatures, gradInput.Data())
	dx.Mul(g, l.weightMatrix())

	return gradInput
}

func (l *Linear) weightMatrix() *mat.Dense {
	return mat.NewDense(l.outFeatures, l.inFeatures, l.weight.Tensor().Data())
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// String returns a string representation of the layer.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.inFeatures, l.outFeatures)
}
