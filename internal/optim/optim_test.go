package optim_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/chirality/internal/nn"
	"github.com/born-ml/chirality/internal/optim"
	"github.com/born-ml/chirality/internal/tensor"
)

func scalarParam(t *testing.T, value float64) *nn.Parameter {
	t.Helper()
	x, err := tensor.FromSlice([]float64{value}, tensor.Shape{1})
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	param := scalarParam(t, 2.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	param.AccumulateGrad([]float64{1.0})
	optimizer.Step()

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	assert.InDelta(t, 1.9, param.Tensor().Data()[0], 1e-12)
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	param := scalarParam(t, 1.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	param.AccumulateGrad([]float64{1.0})
	optimizer.Step() // v = 1, x = 0.9
	optimizer.ZeroGrad()
	param.AccumulateGrad([]float64{1.0})
	optimizer.Step() // v = 1.9, x = 0.71

	assert.InDelta(t, 0.71, param.Tensor().Data()[0], 1e-12)
}

// TestAdam_FirstStep checks that the first bias-corrected step moves by lr.
func TestAdam_FirstStep(t *testing.T) {
	param := scalarParam(t, 1.0)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.01})

	param.AccumulateGrad([]float64{0.5})
	optimizer.Step()

	// m_hat = g, v_hat = g², update = lr * g / (|g| + eps) ≈ lr
	assert.InDelta(t, 0.99, param.Tensor().Data()[0], 1e-6)
	assert.Equal(t, 1, optimizer.GetTimestep())
	assert.Equal(t, 0.01, optimizer.GetLR())
}

// TestAdam_MinimizesQuadratic runs Adam on f(x) = (x - 3)².
func TestAdam_MinimizesQuadratic(t *testing.T) {
	param := scalarParam(t, 0.0)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.1})

	for i := 0; i < 500; i++ {
		optimizer.ZeroGrad()
		x := param.Tensor().Data()[0]
		param.AccumulateGrad([]float64{2 * (x - 3)})
		optimizer.Step()
	}

	assert.InDelta(t, 3.0, param.Tensor().Data()[0], 1e-2)
}

// TestAdam_TrainsLogisticModel fits a single linear unit with BCE.
func TestAdam_TrainsLogisticModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	model := nn.NewSequential(nn.NewLinear(2, 1, rng), nn.NewSigmoid())
	loss := nn.NewBCELoss()
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.05})

	// Linearly separable: label is 1 when x0 > x1.
	x := tensor.Zeros(tensor.Shape{64, 2})
	y := tensor.Zeros(tensor.Shape{64, 1})
	for i := 0; i < 64; i++ {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		x.Set(a, i, 0)
		x.Set(b, i, 1)
		if a > b {
			y.Set(1, i, 0)
		}
	}

	first := math.Inf(1)
	var last float64
	for epoch := 0; epoch < 200; epoch++ {
		optimizer.ZeroGrad()
		last = loss.Forward(model.Forward(x), y)
		if epoch == 0 {
			first = last
		}
		model.Backward(loss.Backward())
		optimizer.Step()
	}

	assert.Less(t, last, first/2)
}

func TestNew(t *testing.T) {
	param := scalarParam(t, 0)

	opt, err := optim.New(optim.NameAdam, []*nn.Parameter{param}, optim.Config{LR: 0.002})
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam{}, opt)
	assert.Equal(t, 0.002, opt.GetLR())

	opt, err = optim.New(optim.NameSGD, []*nn.Parameter{param}, optim.Config{})
	require.NoError(t, err)
	assert.IsType(t, &optim.SGD{}, opt)
	assert.Equal(t, 0.01, opt.GetLR())

	_, err = optim.New("rmsprop", []*nn.Parameter{param}, optim.Config{})
	require.Error(t, err)
}
