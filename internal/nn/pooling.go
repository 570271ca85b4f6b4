package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/chirality/internal/tensor"
)

// Flatten collapses every axis after the batch axis.
//
// Input shape:  [batch, ...]
// Output shape: [batch, prod(...)]
type Flatten struct {
	inputShape tensor.Shape
}

// NewFlatten creates a new Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward returns a [batch, features] view of the input.
func (f *Flatten) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("flatten: expected at least 2D input, got %dD", len(shape)))
	}
	f.inputShape = shape.Clone()
	return input.Reshape(shape[0], input.NumElements()/shape[0])
}

// Backward restores the cached input shape.
func (f *Flatten) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	return gradOutput.Reshape(f.inputShape...)
}

// Parameters returns an empty slice.
func (f *Flatten) Parameters() []*Parameter {
	return []*Parameter{}
}

// String returns a string representation of the layer.
func (f *Flatten) String() string {
	return "Flatten()"
}

// GlobalAvgPool3D averages each channel's volume to one value.
//
// Input shape:  [batch, channels, D, H, W]
// Output shape: [batch, channels]
type GlobalAvgPool3D struct {
	inputShape tensor.Shape
}

// NewGlobalAvgPool3D creates a new global average pooling layer.
func NewGlobalAvgPool3D() *GlobalAvgPool3D {
	return &GlobalAvgPool3D{}
}

// Forward computes the per-channel mean.
func (g *GlobalAvgPool3D) Forward(input *tensor.Tensor) *tensor.Tensor {
	n, c, vol := volumeDims("globalavgpool3d", input)
	g.inputShape = input.Shape().Clone()

	output := tensor.Zeros(tensor.Shape{n, c})
	x := input.Data()
	y := output.Data()
	for i := range y {
		y[i] = floats.Sum(x[i*vol:(i+1)*vol]) / float64(vol)
	}
	return output
}

// Backward spreads each gradient evenly over its volume.
func (g *GlobalAvgPool3D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	gradInput := tensor.Zeros(g.inputShape)
	vol := gradInput.NumElements() / gradOutput.NumElements()
	dx := gradInput.Data()
	for i, v := range gradOutput.Data() {
		share := v / float64(vol)
		for j := i * vol; j < (i+1)*vol; j++ {
			dx[j] = share
		}
	}
	return gradInput
}

// Parameters returns an empty slice.
func (g *GlobalAvgPool3D) Parameters() []*Parameter {
	return []*Parameter{}
}

// String returns a string representation of the layer.
func (g *GlobalAvgPool3D) String() string {
	return "GlobalAvgPool3D()"
}

// GlobalMaxPool3D keeps each channel's maximum.
//
// Input shape:  [batch, channels, D, H, W]
// Output shape: [batch, channels]
type GlobalMaxPool3D struct {
	inputShape tensor.Shape
	argmax     []int
}

// NewGlobalMaxPool3D creates a new global max pooling layer.
func NewGlobalMaxPool3D() *GlobalMaxPool3D {
	return &GlobalMaxPool3D{}
}

// Forward computes the per-channel maximum.
func (g *GlobalMaxPool3D) Forward(input *tensor.Tensor) *tensor.Tensor {
	n, c, vol := volumeDims("globalmaxpool3d", input)
	g.inputShape = input.Shape().Clone()

	output := tensor.Zeros(tensor.Shape{n, c})
	g.argmax = make([]int, n*c)
	x := input.Data()
	y := output.Data()
	for i := range y {
		idx := floats.MaxIdx(x[i*vol : (i+1)*vol])
		g.argmax[i] = i*vol + idx
		y[i] = x[i*vol+idx]
	}
	return output
}

// Backward routes each gradient to the winning cell.
func (g *GlobalMaxPool3D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	gradInput := tensor.Zeros(g.inputShape)
	dx := gradInput.Data()
	for i, v := range gradOutput.Data() {
		dx[g.argmax[i]] += v
	}
	return gradInput
}

// Parameters returns an empty slice.
func (g *GlobalMaxPool3D) Parameters() []*Parameter {
	return []*Parameter{}
}

// String returns a string representation of the layer.
func (g *GlobalMaxPool3D) String() string {
	return "GlobalMaxPool3D()"
}

func volumeDims(op string, input *tensor.Tensor) (n, c, vol int) {
	shape := input.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("%s: expected 5D input [N,C,D,H,W], got %dD", op, len(shape)))
	}
	return shape[0], shape[1], shape[2] * shape[3] * shape[4]
}
