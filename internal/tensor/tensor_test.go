package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{81, 9, 1}, Shape{9, 9, 9}.ComputeStrides())
	assert.Equal(t, []int{729, 81, 9, 1, 1}, Shape{2, 9, 9, 9, 1}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestShape_Offset(t *testing.T) {
	s := Shape{9, 9, 9}
	assert.Equal(t, 0, s.Offset(0, 0, 0))
	assert.Equal(t, 2*81+3*9+4, s.Offset(2, 3, 4))
	assert.Panics(t, func() { s.Offset(9, 0, 0) })
	assert.Panics(t, func() { s.Offset(1, 2) })
}

func TestFromSlice(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 6.0, x.At(1, 2))
	assert.Equal(t, 2.0, x.At(0, 1))

	_, err = FromSlice([]float64{1, 2, 3}, Shape{2, 3})
	require.Error(t, err)

	_, err = FromSlice(nil, Shape{0, 3})
	require.Error(t, err)
}

func TestReshape_SharesBuffer(t *testing.T) {
	x := Zeros(Shape{9, 9, 9})
	y := x.Reshape(9, 9, 9, 1)

	y.Set(3.5, 1, 2, 3, 0)
	assert.Equal(t, 3.5, x.At(1, 2, 3))
	assert.Panics(t, func() { x.Reshape(10, 10) })
}

func TestStack(t *testing.T) {
	a := Full(Shape{2, 2}, 1)
	b := Full(Shape{2, 2}, 2)

	s, err := Stack([]*Tensor{a, b})
	require.NoError(t, err)
	assert.True(t, s.Shape().Equal(Shape{2, 2, 2}))
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2, 2}, s.Data())

	// The stacked tensor owns its buffer.
	a.Fill(9)
	assert.Equal(t, 1.0, s.At(0, 0, 0))

	_, err = Stack([]*Tensor{a, Zeros(Shape{3})})
	require.Error(t, err)
	_, err = Stack(nil)
	require.Error(t, err)
}

func TestSlice(t *testing.T) {
	x, err := FromSlice([]float64{0, 1, 2, 3, 4, 5}, Shape{3, 2})
	require.NoError(t, err)

	rows := x.Slice(1, 3)
	assert.True(t, rows.Shape().Equal(Shape{2, 2}))
	assert.Equal(t, []float64{2, 3, 4, 5}, rows.Data())
	assert.Panics(t, func() { x.Slice(2, 4) })
}

func TestClone(t *testing.T) {
	x := Full(Shape{3}, 1)
	y := x.Clone()
	y.Fill(0)
	assert.Equal(t, []float64{1, 1, 1}, x.Data())
}
