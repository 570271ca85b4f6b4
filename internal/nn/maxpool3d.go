package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/chirality/internal/parallel"
	"github.com/born-ml/chirality/internal/tensor"
)

// MaxPool3D is a 3D max pooling layer with "same" padding.
//
// The output extent along each axis is ceil(in / stride). When the last
// window runs past the input, the missing cells are ignored rather than
// treated as zeros, so a window always takes the max of real values.
// Padding is split before/after the way TensorFlow does it, with the
// extra cell going after.
//
// Input shape:  [batch, channels, D, H, W]
// Output shape: [batch, channels, ceil(D/s), ceil(H/s), ceil(W/s)]
//
// Example:
//
//	pool := nn.NewMaxPool3D(2, 2, parallel.DefaultConfig())
//	output := pool.Forward(input) // [N,32,7,7,7] -> [N,32,4,4,4]
type MaxPool3D struct {
	kernelSize int
	stride     int
	cfg        parallel.Config

	inputShape tensor.Shape
	argmax     []int // flat input offset of each output's max, set by Forward
}

// NewMaxPool3D creates a new 3D max pooling layer.
func NewMaxPool3D(kernelSize, stride int, cfg parallel.Config) *MaxPool3D {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool3d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool3d: invalid stride %d", stride))
	}

	return &MaxPool3D{
		kernelSize: kernelSize,
		stride:     stride,
		cfg:        cfg,
	}
}

// ComputeOutputSize returns the pooled extent of an axis of length n.
func (m *MaxPool3D) ComputeOutputSize(n int) int {
	return (n + m.stride - 1) / m.stride
}

// padBefore returns the number of virtual cells in front of an axis of length n.
func (m *MaxPool3D) padBefore(n int) int {
	out := m.ComputeOutputSize(n)
	total := max((out-1)*m.stride+m.kernelSize-n, 0)
	return total / 2
}

// window returns the clipped [lo, hi) input range for output index o.
func (m *MaxPool3D) window(o, n, pad int) (int, int) {
	lo := o*m.stride - pad
	hi := lo + m.kernelSize
	return max(lo, 0), min(hi, n)
}

// Forward performs the forward pass.
//
// Input: [batch, channels, D, H, W]
// Output: [batch, channels, ceil(D/s), ceil(H/s), ceil(W/s)].
func (m *MaxPool3D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("maxpool3d: expected 5D input [N,C,D,H,W], got %dD", len(shape)))
	}

	n, c, d, h, w := shape[0], shape[1], shape[2], shape[3], shape[4]
	od, oh, ow := m.ComputeOutputSize(d), m.ComputeOutputSize(h), m.ComputeOutputSize(w)
	pd, ph, pw := m.padBefore(d), m.padBefore(h), m.padBefore(w)

	output := tensor.Zeros(tensor.Shape{n, c, od, oh, ow})
	m.inputShape = shape.Clone()
	m.argmax = make([]int, output.NumElements())

	x := input.Data()
	y := output.Data()
	inVol := d * h * w
	outVol := od * oh * ow

	parallel.ForBatch(n, c, func(b, ch int) {
		base := (b*c + ch) * inVol
		outBase := (b*c + ch) * outVol
		for z := 0; z < od; z++ {
			z0, z1 := m.window(z, d, pd)
			for r := 0; r < oh; r++ {
				r0, r1 := m.window(r, h, ph)
				for q := 0; q < ow; q++ {
					q0, q1 := m.window(q, w, pw)

					best := math.Inf(-1)
					bestIdx := -1
					for iz := z0; iz < z1; iz++ {
						for ir := r0; ir < r1; ir++ {
							for iq := q0; iq < q1; iq++ {
								idx := base + (iz*h+ir)*w + iq
								if x[idx] > best || bestIdx < 0 {
									best = x[idx]
									bestIdx = idx
								}
							}
						}
					}

					o := outBase + (z*oh+r)*ow + q
					y[o] = best
					m.argmax[o] = bestIdx
				}
			}
		}
	}, m.cfg)

	return output
}

// Backward routes each output gradient to the input cell that won the max.
func (m *MaxPool3D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if m.argmax == nil {
		panic("maxpool3d: Backward called before Forward")
	}
	if gradOutput.NumElements() != len(m.argmax) {
		panic(fmt.Sprintf("maxpool3d: gradient has %d elements, expected %d",
			gradOutput.NumElements(), len(m.argmax)))
	}

	gradInput := tensor.Zeros(m.inputShape)
	dx := gradInput.Data()
	g := gradOutput.Data()

	// Windows never cross (sample, channel) volumes, so volumes are disjoint.
	vols := m.inputShape[0] * m.inputShape[1]
	outVol := len(m.argmax) / vols
	parallel.For(vols, func(v int) {
		for o := v * outVol; o < (v+1)*outVol; o++ {
			dx[m.argmax[o]] += g[o]
		}
	}, m.cfg)

	return gradInput
}

// Parameters returns all trainable parameters (empty for MaxPool3D).
func (m *MaxPool3D) Parameters() []*Parameter {
	return []*Parameter{}
}

// String returns a string representation of the layer.
func (m *MaxPool3D) String() string {
	return fmt.Sprintf("MaxPool3D(kernel_size=%d, stride=%d, padding=same)", m.kernelSize, m.stride)
}
