package model

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/parallel"
	"github.com/born-ml/chirality/internal/tensor"
)

var smallShape = tensor.Shape{7, 7, 7, 1}

func smallConfig(pooling Pooling) Configuration {
	return Configuration{Pooling: pooling, HiddenLayers: 1, NodesPerLayer: 8, Epochs: 2}
}

// constantSamples returns n samples alternating label 1 (all +1) and label 0
// (all -1).
func constantSamples(n int, shape tensor.Shape) []dataset.Sample {
	samples := make([]dataset.Sample, n)
	for i := range samples {
		label := (i + 1) % 2
		value := -1.0
		if label == 1 {
			value = 1.0
		}
		samples[i] = dataset.Sample{Index: i, Tensor: tensor.Full(shape, value), Label: label}
	}
	return samples
}

func newTestFactory(t *testing.T, opts ...CNNOption) *CNNFactory {
	opts = append([]CNNOption{
		WithLogger(zaptest.NewLogger(t)),
		WithParallel(parallel.NewConfig(2)),
	}, opts...)
	return NewCNNFactory(opts...)
}

func TestCNNFactory_BuildParameterCount(t *testing.T) {
	f := newTestFactory(t)

	// 9 -> conv 7 -> pool 4 -> conv 2 -> pool 1: every pooling sees 64 features.
	for _, pooling := range Poolings {
		h, err := f.Build(dataset.SampleShape, smallConfig(pooling))
		require.NoError(t, err)

		cnn, ok := h.(*CNN)
		require.True(t, ok)
		conv := 32*27 + 32 + 64*32*27 + 64
		head := 64*8 + 8 + 8 + 1
		assert.Equal(t, conv+head, cnn.NumParameters(), pooling)
		// 6 feature layers + pooling + 2 hidden + 2 output.
		assert.Equal(t, 11, cnn.Network().Len())
	}
}

func TestCNNFactory_BuildHiddenLayers(t *testing.T) {
	h, err := newTestFactory(t).Build(dataset.SampleShape,
		Configuration{Pooling: PoolingGlobalMax, HiddenLayers: 3, NodesPerLayer: 16, Epochs: 1})
	require.NoError(t, err)
	assert.Equal(t, 6+1+3*2+2, h.(*CNN).Network().Len())
}

func TestCNNFactory_BuildErrors(t *testing.T) {
	f := newTestFactory(t)

	_, err := f.Build(tensor.Shape{9, 9, 9}, smallConfig(PoolingFlatten))
	assert.True(t, errors.Is(err, ErrInvalidInputShape))

	_, err = f.Build(tensor.Shape{5, 5, 5, 1}, smallConfig(PoolingFlatten))
	assert.True(t, errors.Is(err, ErrInvalidInputShape))

	_, err = f.Build(smallShape, Configuration{Pooling: "sum", HiddenLayers: 1, NodesPerLayer: 1, Epochs: 1})
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = newTestFactory(t, WithOptimizer("lbfgs")).Build(smallShape, smallConfig(PoolingFlatten))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `create optimizer: unknown optimizer "lbfgs"`)
}

func TestCNN_PredictRangeAndDeterminism(t *testing.T) {
	samples := constantSamples(5, smallShape)
	samples[2].Tensor = tensor.Full(smallShape, 0.3)

	predict := func() []float64 {
		h, err := newTestFactory(t, WithBatchSize(2)).Build(smallShape, smallConfig(PoolingFlatten))
		require.NoError(t, err)
		probs, err := h.Predict(samples)
		require.NoError(t, err)
		return probs
	}

	a := predict()
	require.Len(t, a, len(samples))
	for _, p := range a {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
	assert.Equal(t, a, predict())
}

func TestCNN_PredictEmpty(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	probs, err := h.Predict(nil)
	require.NoError(t, err)
	assert.Empty(t, probs)
}

func TestCNN_PredictShapeMismatch(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	_, err = h.Predict(constantSamples(1, dataset.SampleShape))
	assert.True(t, errors.Is(err, ErrInvalidInputShape))
}

func TestCNN_FitSeparatesClasses(t *testing.T) {
	samples := constantSamples(8, smallShape)
	core, logs := observer.New(zap.InfoLevel)
	f := newTestFactory(t, WithLearningRate(0.01), WithBatchSize(4), WithLogger(zap.New(core)))
	h, err := f.Build(smallShape, Configuration{Pooling: PoolingGlobalAvg, HiddenLayers: 1, NodesPerLayer: 8, Epochs: 40})
	require.NoError(t, err)

	require.NoError(t, h.Fit(context.Background(), samples, 40, nil, WithValidation(samples)))

	entries := logs.FilterMessage("epoch finished").All()
	require.Len(t, entries, 40)
	last := entries[len(entries)-1].ContextMap()
	assert.Equal(t, 1.0, last["val_accuracy"])
	assert.Equal(t, 1.0, last["val_recall"])

	probs, err := h.Predict(samples)
	require.NoError(t, err)
	for i, s := range samples {
		if s.Label == 1 {
			assert.Greater(t, probs[i], 0.5, "sample %d", i)
		} else {
			assert.Less(t, probs[i], 0.5, "sample %d", i)
		}
	}
}

func TestCNN_FitCallsObserverEachEpoch(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingGlobalMax))
	require.NoError(t, err)

	var epochs []int
	obs := EpochObserverFunc(func(epoch int, got Handle) {
		assert.Same(t, h, got)
		epochs = append(epochs, epoch)
	})

	require.NoError(t, h.Fit(context.Background(), constantSamples(3, smallShape), 3, obs))
	assert.Equal(t, []int{1, 2, 3}, epochs)
}

func TestCNN_FitSurvivesObserverPanic(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	calls := 0
	obs := EpochObserverFunc(func(int, Handle) {
		calls++
		panic("observer failure")
	})

	require.NoError(t, h.Fit(context.Background(), constantSamples(2, smallShape), 2, obs))
	assert.Equal(t, 2, calls)
}

func TestCNN_FitCanceled(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = h.Fit(ctx, constantSamples(2, smallShape), 1, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCNN_FitErrors(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	assert.True(t, errors.Is(h.Fit(context.Background(), nil, 1, nil), ErrEmptyTrainingSet))
	assert.Error(t, h.Fit(context.Background(), constantSamples(2, smallShape), 0, nil))
}

func TestCNN_StateDict(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	ckpt, ok := h.(Checkpointer)
	require.True(t, ok)

	state := ckpt.StateDict()
	assert.Contains(t, state, "0.conv3d.weight")
	assert.Contains(t, state, "3.conv3d.bias")
	assert.Equal(t, []int{32, 1, 3, 3, 3}, []int(state["0.conv3d.weight"].Shape()))
}

func TestChannelsFirst(t *testing.T) {
	// [1, 1, 1, 2, 2]: two voxels with two channels each.
	x, err := tensor.FromSlice([]float64{1, 10, 2, 20}, tensor.Shape{1, 1, 1, 2, 2})
	require.NoError(t, err)

	out := channelsFirst(x)
	assert.Equal(t, []int{1, 2, 1, 1, 2}, []int(out.Shape()))
	assert.Equal(t, []float64{1, 2, 10, 20}, out.Data())
}

func TestGatherRows(t *testing.T) {
	x, err := tensor.FromSlice([]float64{0, 1, 2, 3, 4, 5}, tensor.Shape{3, 2})
	require.NoError(t, err)

	out := gatherRows(x, []int{2, 0})
	assert.Equal(t, []float64{4, 5, 0, 1}, out.Data())
}

func TestCNN_FitLogsEpochMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h, err := newTestFactory(t, WithLogger(zap.New(core))).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	samples := constantSamples(8, smallShape)
	require.NoError(t, h.Fit(context.Background(), samples[:6], 2, nil, WithValidation(samples[6:])))

	entries := logs.FilterMessage("epoch finished").All()
	require.Len(t, entries, 2)
	for i, e := range entries {
		assert.Equal(t, zap.InfoLevel, e.Level)
		fields := e.ContextMap()
		assert.Equal(t, int64(i+1), fields["epoch"])
		assert.Equal(t, int64(2), fields["epochs"])

		for _, key := range []string{"loss", "accuracy", "recall", "f1", "val_loss", "val_accuracy", "val_recall", "val_f1"} {
			v, ok := fields[key].(float64)
			require.True(t, ok, key)
			assert.False(t, math.IsNaN(v), key)
			assert.GreaterOrEqual(t, v, 0.0, key)
		}
		for _, key := range []string{"accuracy", "recall", "f1", "val_accuracy", "val_recall", "val_f1"} {
			assert.LessOrEqual(t, fields[key].(float64), 1.0, key)
		}
		assert.Greater(t, fields["val_loss"].(float64), 0.0)
	}
}

func TestCNN_FitWithoutValidation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h, err := newTestFactory(t, WithLogger(zap.New(core))).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	require.NoError(t, h.Fit(context.Background(), constantSamples(4, smallShape), 1, nil))

	entries := logs.FilterMessage("epoch finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Contains(t, fields, "loss")
	assert.Contains(t, fields, "f1")
	assert.NotContains(t, fields, "val_loss")
}

func TestCNN_FitValidationShapeMismatch(t *testing.T) {
	h, err := newTestFactory(t).Build(smallShape, smallConfig(PoolingFlatten))
	require.NoError(t, err)

	err = h.Fit(context.Background(), constantSamples(2, smallShape), 1, nil,
		WithValidation(constantSamples(1, dataset.SampleShape)))
	assert.True(t, errors.Is(err, ErrInvalidInputShape))
}

func TestApplyFitOptions(t *testing.T) {
	assert.Empty(t, ApplyFitOptions().Validation)

	val := constantSamples(3, smallShape)
	assert.Len(t, ApplyFitOptions(WithValidation(val)).Validation, 3)
}
