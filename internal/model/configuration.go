package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Pooling selects how the convolutional feature volume is reduced before the
// dense head.
type Pooling string

// Supported pooling strategies.
const (
	PoolingFlatten   Pooling = "flatten"
	PoolingGlobalAvg Pooling = "global_avg"
	PoolingGlobalMax Pooling = "global_max"
)

// Poolings lists every supported strategy.
var Poolings = []Pooling{PoolingFlatten, PoolingGlobalAvg, PoolingGlobalMax}

// ErrInvalidConfiguration is wrapped by every Configuration validation error.
var ErrInvalidConfiguration = errors.New("invalid model configuration")

// ParsePooling parses a pooling name, ignoring case and surrounding spaces.
func ParsePooling(s string) (Pooling, error) {
	p := Pooling(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", errors.Wrapf(ErrInvalidConfiguration, "unknown pooling %q", s)
	}
	return p, nil
}

// Valid reports whether p is a supported strategy.
func (p Pooling) Valid() bool {
	switch p {
	case PoolingFlatten, PoolingGlobalAvg, PoolingGlobalMax:
		return true
	default:
		return false
	}
}

// Configuration is one point of the search space.
type Configuration struct {
	Pooling       Pooling
	HiddenLayers  int
	NodesPerLayer int
	Epochs        int
}

// Validate checks that the pooling is known and every count is positive.
func (c Configuration) Validate() error {
	if !c.Pooling.Valid() {
		return errors.Wrapf(ErrInvalidConfiguration, "unknown pooling %q", c.Pooling)
	}
	if c.HiddenLayers <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "hidden layers must be positive, got %d", c.HiddenLayers)
	}
	if c.NodesPerLayer <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "nodes per layer must be positive, got %d", c.NodesPerLayer)
	}
	if c.Epochs <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "epochs must be positive, got %d", c.Epochs)
	}
	return nil
}

// String returns the configuration as key=value pairs.
func (c Configuration) String() string {
	return fmt.Sprintf("pooling=%s hidden_layers=%d nodes_per_layer=%d epochs=%d",
		c.Pooling, c.HiddenLayers, c.NodesPerLayer, c.Epochs)
}

// Slug returns a file-name friendly identifier, e.g. "flatten-h4-n128-e50".
func (c Configuration) Slug() string {
	return fmt.Sprintf("%s-h%d-n%d-e%d", c.Pooling, c.HiddenLayers, c.NodesPerLayer, c.Epochs)
}
