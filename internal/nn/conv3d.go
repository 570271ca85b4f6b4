package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/chirality/internal/parallel"
	"github.com/born-ml/chirality/internal/tensor"
)

// Conv3D is a 3D convolutional layer with stride 1 and no padding.
//
// Input shape:  [batch, in_channels, depth, height, width]
// Weight shape: [out_channels, in_channels, k, k, k]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, depth-k+1, height-k+1, width-k+1]
//
// Example:
//
//	// 1 channel -> 32 channels, 3x3x3 kernel
//	conv := nn.NewConv3D(1, 32, 3, rng, parallel.DefaultConfig())
//	output := conv.Forward(input) // [N,1,9,9,9] -> [N,32,7,7,7]
type Conv3D struct {
	inChannels  int
	outChannels int
	kernel      int

	weight *Parameter // [out_channels, in_channels, k, k, k]
	bias   *Parameter // [out_channels]

	cfg   parallel.Config
	input *tensor.Tensor // cached by Forward
}

// NewConv3D creates a new 3D convolutional layer with Xavier initialization.
//
// For Conv3D:
//
//	fan_in  = in_channels * k^3
//	fan_out = out_channels * k^3
func NewConv3D(inChannels, outChannels, kernel int, rng *rand.Rand, cfg parallel.Config) *Conv3D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv3d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernel <= 0 {
		panic(fmt.Sprintf("conv3d: invalid kernel size %d", kernel))
	}

	volume := kernel * kernel * kernel
	weightShape := tensor.Shape{outChannels, inChannels, kernel, kernel, kernel}
	weight := Xavier(inChannels*volume, outChannels*volume, weightShape, rng)

	return &Conv3D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernel:      kernel,
		weight:      NewParameter("conv3d.weight", weight),
		bias:        NewParameter("conv3d.bias", Zeros(tensor.Shape{outChannels})),
		cfg:         cfg,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, D, H, W]
// Output: [batch, out_channels, D-k+1, H-k+1, W-k+1].
func (c *Conv3D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("conv3d: expected 5D input [N,C,D,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv3d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	n, d, h, w := shape[0], shape[2], shape[3], shape[4]
	k := c.kernel
	od, oh, ow := d-k+1, h-k+1, w-k+1
	if od <= 0 || oh <= 0 || ow <= 0 {
		panic(fmt.Sprintf("conv3d: kernel %d too large for input %dx%dx%d", k, d, h, w))
	}

	c.input = input
	output := tensor.Zeros(tensor.Shape{n, c.outChannels, od, oh, ow})

	x := input.Data()
	y := output.Data()
	wt := c.weight.Tensor().Data()
	b := c.bias.Tensor().Data()
	inVol := d * h * w
	outVol := od * oh * ow
	kVol := k * k * k

	parallel.ForBatch(n, c.outChannels, func(bi, co int) {
		dst := y[(bi*c.outChannels+co)*outVol : (bi*c.outChannels+co+1)*outVol]
		for i := range dst {
			dst[i] = b[co]
		}
		for ci := 0; ci < c.inChannels; ci++ {
			src := x[(bi*c.inChannels+ci)*inVol:]
			kern := wt[(co*c.inChannels+ci)*kVol:]
			for kd := 0; kd < k; kd++ {
				for kh := 0; kh < k; kh++ {
					for kw := 0; kw < k; kw++ {
						wv := kern[(kd*k+kh)*k+kw]
						for z := 0; z < od; z++ {
							for r := 0; r < oh; r++ {
								row := src[((z+kd)*h+r+kh)*w+kw:]
								out := dst[(z*oh+r)*ow:]
								for q := 0; q < ow; q++ {
									out[q] += wv * row[q]
								}
							}
						}
					}
				}
			}
		}
	}, c.cfg)

	return output
}

// Backward accumulates weight and bias gradients and returns dLoss/dInput.
func (c *Conv3D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if c.input == nil {
		panic("conv3d: Backward called before Forward")
	}
	shape := c.input.Shape()
	n, d, h, w := shape[0], shape[2], shape[3], shape[4]
	k := c.kernel
	od, oh, ow := d-k+1, h-k+1, w-k+1
	expected := tensor.Shape{n, c.outChannels, od, oh, ow}
	if !gradOutput.Shape().Equal(expected) {
		panic(fmt.Sprintf("conv3d: gradient shape %v != output shape %v", gradOutput.Shape(), expected))
	}

	x := c.input.Data()
	g := gradOutput.Data()
	wt := c.weight.Tensor().Data()
	wGrad := c.weight.Grad().Data()
	bGrad := c.bias.Grad().Data()
	inVol := d * h * w
	outVol := od * oh * ow
	kVol := k * k * k

	// Each output channel owns its slice of the weight and bias gradients.
	parallel.For(c.outChannels, func(co int) {
		for bi := 0; bi < n; bi++ {
			gv := g[(bi*c.outChannels+co)*outVol : (bi*c.outChannels+co+1)*outVol]
			for _, v := range gv {
				bGrad[co] += v
			}
			for ci := 0; ci < c.inChannels; ci++ {
				src := x[(bi*c.inChannels+ci)*inVol:]
				kg := wGrad[(co*c.inChannels+ci)*kVol:]
				for kd := 0; kd < k; kd++ {
					for kh := 0; kh < k; kh++ {
						for kw := 0; kw < k; kw++ {
							sum := 0.0
							for z := 0; z < od; z++ {
								for r := 0; r < oh; r++ {
									row := src[((z+kd)*h+r+kh)*w+kw:]
									gr := gv[(z*oh+r)*ow:]
									for q := 0; q < ow; q++ {
										sum += gr[q] * row[q]
									}
								}
							}
							kg[(kd*k+kh)*k+kw] += sum
						}
					}
				}
			}
		}
	}, c.cfg)

	// Each sample owns its slice of the input gradient.
	gradInput := tensor.Zeros(shape)
	dx := gradInput.Data()
	parallel.For(n, func(bi int) {
		for co := 0; co < c.outChannels; co++ {
			gv := g[(bi*c.outChannels+co)*outVol:]
			for ci := 0; ci < c.inChannels; ci++ {
				dst := dx[(bi*c.inChannels+ci)*inVol:]
				kern := wt[(co*c.inChannels+ci)*kVol:]
				for kd := 0; kd < k; kd++ {
					for kh := 0; kh < k; kh++ {
						for kw := 0; kw < k; kw++ {
							wv := kern[(kd*k+kh)*k+kw]
							for z := 0; z < od; z++ {
								for r := 0; r < oh; r++ {
									row := dst[((z+kd)*h+r+kh)*w+kw:]
									gr := gv[(z*oh+r)*ow:]
									for q := 0; q < ow; q++ {
										row[q] += wv * gr[q]
									}
								}
							}
						}
					}
				}
			}
		}
	}, c.cfg)

	return gradInput
}

// Parameters returns [weight, bias].
func (c *Conv3D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the weight parameter.
func (c *Conv3D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv3D) Bias() *Parameter {
	return c.bias
}

// ComputeOutputSize returns the output extent for a cubic input of side n.
func (c *Conv3D) ComputeOutputSize(n int) int {
	return n - c.kernel + 1
}

// String returns a string representation of the layer.
func (c *Conv3D) String() string {
	return fmt.Sprintf("Conv3D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d, %d))",
		c.inChannels, c.outChannels, c.kernel, c.kernel, c.kernel)
}
