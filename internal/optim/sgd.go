package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/chirality/internal/nn"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
//	v = momentum * v + grad
//	param = param - lr * v
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter][]float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	for _, param := range s.params {
		grad := param.Grad().Data()
		if s.momentum == 0 {
			floats.AddScaled(param.Tensor().Data(), -s.lr, grad)
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = make([]float64, len(grad))
			s.velocities[param] = velocity
		}
		floats.Scale(s.momentum, velocity)
		floats.Add(velocity, grad)
		floats.AddScaled(param.Tensor().Data(), -s.lr, velocity)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}
