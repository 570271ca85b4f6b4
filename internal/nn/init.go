package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/chirality/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// The random source is explicit so that a seeded model builds identical
// weights on every run.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return t
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros(shape tensor.Shape) *tensor.Tensor {
	return tensor.Zeros(shape)
}
