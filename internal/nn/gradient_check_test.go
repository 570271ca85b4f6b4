package nn

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/chirality/internal/tensor"
)

// projection reduces a module output to a scalar: L = sum(out * proj).
// Its gradient w.r.t. out is proj itself.
func projection(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	p := tensor.Zeros(shape)
	for i := range p.Data() {
		p.Data()[i] = rng.Float64()*2 - 1
	}
	return p
}

func scalarLoss(m Module, x, proj *tensor.Tensor) float64 {
	out := m.Forward(x)
	sum := 0.0
	for i, v := range out.Data() {
		sum += v * proj.Data()[i]
	}
	return sum
}

// checkGradients compares analytic input and parameter gradients with
// central differences.
func checkGradients(t *testing.T, m Module, x *tensor.Tensor, tol float64) {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))

	out := m.Forward(x)
	proj := projection(out.Shape(), rng)
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
	gradInput := m.Backward(proj.Clone())

	const h = 1e-5
	numeric := func(buf []float64, i int) float64 {
		orig := buf[i]
		buf[i] = orig + h
		plus := scalarLoss(m, x, proj)
		buf[i] = orig - h
		minus := scalarLoss(m, x, proj)
		buf[i] = orig
		return (plus - minus) / (2 * h)
	}

	for i := range x.Data() {
		require.InDelta(t, numeric(x.Data(), i), gradInput.Data()[i], tol, "input grad %d", i)
	}
	for _, p := range m.Parameters() {
		analytic := p.Grad().Clone()
		for i := range p.Tensor().Data() {
			got := analytic.Data()[i]
			want := numeric(p.Tensor().Data(), i)
			require.InDelta(t, want, got, tol, "%s grad %d", p.Name(), i)
		}
	}
}

func randomTensor(shape tensor.Shape, seed uint64) *tensor.Tensor {
	rng := rand.New(rand.NewPCG(seed, seed))
	t := tensor.Zeros(shape)
	for i := range t.Data() {
		t.Data()[i] = rng.Float64()*2 - 1
	}
	return t
}
