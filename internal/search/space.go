package search

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/chirality/internal/model"
)

// ErrEmptyConfigurationSpace is returned when the space has no points.
var ErrEmptyConfigurationSpace = errors.New("empty configuration space")

// InvalidParameterError reports an unusable candidate value.
type InvalidParameterError struct {
	Parameter string
	Value     any
}

// Error implements the error interface.
func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid value %v for parameter %s", e.Value, e.Parameter)
}

// Parameter names.
const (
	ParamPooling       = "pooling"
	ParamHiddenLayers  = "hidden_layers"
	ParamNodesPerLayer = "nodes_per_layer"
	ParamEpochs        = "epochs"
)

// Space maps each tunable parameter to its candidate values.
type Space struct {
	Pooling       []model.Pooling
	HiddenLayers  []int
	NodesPerLayer []int
	Epochs        []int
}

// DefaultSpace is the single-point space flatten / 4 / 128 / 50.
func DefaultSpace() Space {
	return Space{
		Pooling:       []model.Pooling{model.PoolingFlatten},
		HiddenLayers:  []int{4},
		NodesPerLayer: []int{128},
		Epochs:        []int{50},
	}
}

// Size returns the number of points in the Cartesian product.
func (s Space) Size() int {
	return len(s.Pooling) * len(s.HiddenLayers) * len(s.NodesPerLayer) * len(s.Epochs)
}

// Validate checks every candidate value.
func (s Space) Validate() error {
	for _, p := range s.Pooling {
		if !p.Valid() {
			return &InvalidParameterError{Parameter: ParamPooling, Value: p}
		}
	}
	for _, ints := range []struct {
		name   string
		values []int
	}{
		{ParamHiddenLayers, s.HiddenLayers},
		{ParamNodesPerLayer, s.NodesPerLayer},
		{ParamEpochs, s.Epochs},
	} {
		for _, v := range ints.values {
			if v <= 0 {
				return &InvalidParameterError{Parameter: ints.name, Value: v}
			}
		}
	}
	return nil
}

// Points enumerates the Cartesian product in field order, the last field
// (Epochs) varying fastest.
func (s Space) Points() []model.Configuration {
	points := make([]model.Configuration, 0, s.Size())
	for _, p := range s.Pooling {
		for _, h := range s.HiddenLayers {
			for _, n := range s.NodesPerLayer {
				for _, e := range s.Epochs {
					points = append(points, model.Configuration{
						Pooling:       p,
						HiddenLayers:  h,
						NodesPerLayer: n,
						Epochs:        e,
					})
				}
			}
		}
	}
	return points
}
