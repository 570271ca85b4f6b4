package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePooling(t *testing.T) {
	tests := []struct {
		in   string
		want Pooling
	}{
		{"flatten", PoolingFlatten},
		{"global_avg", PoolingGlobalAvg},
		{" Global_Max ", PoolingGlobalMax},
	}
	for _, tt := range tests {
		got, err := ParsePooling(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParsePooling("average")
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestConfiguration_Validate(t *testing.T) {
	valid := Configuration{Pooling: PoolingFlatten, HiddenLayers: 4, NodesPerLayer: 128, Epochs: 50}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"unknown pooling", func(c *Configuration) { c.Pooling = "sum" }},
		{"zero hidden layers", func(c *Configuration) { c.HiddenLayers = 0 }},
		{"negative nodes", func(c *Configuration) { c.NodesPerLayer = -1 }},
		{"zero epochs", func(c *Configuration) { c.Epochs = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfiguration))
		})
	}
}

func TestConfiguration_Names(t *testing.T) {
	cfg := Configuration{Pooling: PoolingGlobalAvg, HiddenLayers: 2, NodesPerLayer: 64, Epochs: 10}

	assert.Equal(t, "pooling=global_avg hidden_layers=2 nodes_per_layer=64 epochs=10", cfg.String())
	assert.Equal(t, "global_avg-h2-n64-e10", cfg.Slug())
}
