// Package tensor provides the dense tensor used by the chirality training engine.
//
// A Tensor is a row-major float64 buffer plus a Shape. Tensors carry no
// device or autodiff state: modules in internal/nn cache what they need for
// their own backward pass.
//
// Layout conventions used across the engine:
//   - volumes: [batch, channels, depth, height, width]
//   - features: [batch, features]
//   - samples handed in by the dataset loader: [9, 9, 9, 1]
package tensor

import (
	"fmt"
)

// Tensor is a dense, row-major float64 tensor.
type Tensor struct {
	shape Shape
	data  []float64
}

// Zeros creates a zero-filled tensor of the given shape.
// Panics if the shape has a non-positive dimension.
func Zeros(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.Zeros: %v", err))
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromSlice wraps data in a tensor of the given shape.
//
// The slice is used as the backing store (no copy). Returns an error if
// len(data) does not match the number of elements in shape.
//
// Example:
//
//	t, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Tensor{shape: shape.Clone(), data: data}, nil
}

// Stack joins equally shaped tensors along a new leading axis.
//
// Stacking n tensors of shape S yields a tensor of shape [n, S...]. The
// result owns a fresh buffer.
func Stack(ts []*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("stack: no tensors")
	}
	inner := ts[0].shape
	size := inner.NumElements()

	shape := make(Shape, 0, len(inner)+1)
	shape = append(shape, len(ts))
	shape = append(shape, inner...)

	out := Zeros(shape)
	for i, t := range ts {
		if !t.shape.Equal(inner) {
			return nil, fmt.Errorf("stack: tensor %d has shape %v, expected %v", i, t.shape, inner)
		}
		copy(out.data[i*size:(i+1)*size], t.data)
	}
	return out, nil
}

// Shape returns the tensor's shape. Callers must not modify it.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Writes are visible to the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.shape.Offset(indices...)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.shape.Offset(indices...)] = value
}

// Reshape returns a view with a new shape sharing the same buffer.
// Panics if the element count changes.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	shape := Shape(dims)
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("reshape: cannot view %v (%d elements) as %v", t.shape, len(t.data), shape))
	}
	return &Tensor{shape: shape.Clone(), data: t.data}
}

// Slice returns a view of rows [from, to) along the leading axis.
func (t *Tensor) Slice(from, to int) *Tensor {
	if len(t.shape) == 0 || from < 0 || to > t.shape[0] || from >= to {
		panic(fmt.Sprintf("slice: invalid range [%d, %d) for shape %v", from, to, t.shape))
	}
	row := len(t.data) / t.shape[0]
	shape := t.shape.Clone()
	shape[0] = to - from
	return &Tensor{shape: shape, data: t.data[from*row : to*row]}
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[float64]%v", t.shape)
}
