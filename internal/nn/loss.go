package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/chirality/internal/tensor"
)

// BCEEpsilon clips probabilities away from 0 and 1 before taking logs.
const BCEEpsilon = 1e-7

// BCELoss computes binary cross-entropy on probabilities.
//
// Loss = -mean(y*log(p) + (1-y)*log(1-p))
//
// Predictions are expected to come out of a Sigmoid; they are clipped to
// [eps, 1-eps].
//
// Example:
//
//	bce := nn.NewBCELoss()
//	loss := bce.Forward(model.Forward(x), targets)
//	model.Backward(bce.Backward())
type BCELoss struct {
	predictions *tensor.Tensor
	targets     *tensor.Tensor
}

// NewBCELoss creates a new binary cross-entropy loss.
func NewBCELoss() *BCELoss {
	return &BCELoss{}
}

// Forward computes the mean loss over all elements.
func (l *BCELoss) Forward(predictions, targets *tensor.Tensor) float64 {
	if predictions.NumElements() != targets.NumElements() {
		panic(fmt.Sprintf("BCELoss: predictions %v and targets %v differ in size",
			predictions.Shape(), targets.Shape()))
	}
	l.predictions = predictions
	l.targets = targets

	p := predictions.Data()
	y := targets.Data()
	sum := 0.0
	for i := range p {
		pi := clip(p[i])
		sum += y[i]*math.Log(pi) + (1-y[i])*math.Log(1-pi)
	}
	return -sum / float64(len(p))
}

// Backward returns dLoss/dPredictions for the last Forward call.
func (l *BCELoss) Backward() *tensor.Tensor {
	if l.predictions == nil {
		panic("BCELoss: Backward called before Forward")
	}
	grad := tensor.Zeros(l.predictions.Shape())
	g := grad.Data()
	p := l.predictions.Data()
	y := l.targets.Data()
	n := float64(len(p))
	for i := range p {
		pi := clip(p[i])
		g[i] = (pi - y[i]) / (pi * (1 - pi)) / n
	}
	return grad
}

func clip(p float64) float64 {
	return math.Min(math.Max(p, BCEEpsilon), 1-BCEEpsilon)
}
