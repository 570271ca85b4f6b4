// Package training runs one load, split, fit and evaluate cycle for a model
// configuration.
package training

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/metrics"
	"github.com/born-ml/chirality/internal/model"
	"github.com/born-ml/chirality/internal/serialization"
	"github.com/born-ml/chirality/internal/tensor"
)

// DefaultProgram is the program name attached to progress logs.
const DefaultProgram = "chirality"

// ErrInputShapeMismatch is returned when the samples do not have the
// requested input shape.
var ErrInputShapeMismatch = errors.New("input shape does not match samples")

// Orchestrator evaluates model configurations against a dataset file.
type Orchestrator struct {
	factory       model.Factory
	loader        *dataset.Loader
	splitSeed     uint64
	cache         bool
	checkpointDir string
	program       string
	logger        *zap.Logger

	mu       sync.Mutex
	datasets map[string]*dataset.Dataset
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLoader sets the dataset loader.
func WithLoader(l *dataset.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = l
	}
}

// WithSplitSeed sets the train/test split seed.
func WithSplitSeed(seed uint64) Option {
	return func(o *Orchestrator) {
		o.splitSeed = seed
	}
}

// WithDatasetCache enables or disables reuse of loaded datasets across
// evaluations of the same path.
func WithDatasetCache(enabled bool) Option {
	return func(o *Orchestrator) {
		o.cache = enabled
	}
}

// WithCheckpointDir saves the fitted weights of every evaluated model under
// dir. An empty dir disables checkpoints.
func WithCheckpointDir(dir string) Option {
	return func(o *Orchestrator) {
		o.checkpointDir = dir
	}
}

// WithProgram sets the program name used in epoch logs.
func WithProgram(name string) Option {
	return func(o *Orchestrator) {
		o.program = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator returns an Orchestrator building models with factory.
func NewOrchestrator(factory model.Factory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:   factory,
		splitSeed: dataset.DefaultSplitSeed,
		cache:     true,
		program:   DefaultProgram,
		logger:    zap.NewNop(),
		datasets:  make(map[string]*dataset.Dataset),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.loader == nil {
		o.loader = dataset.NewLoader(dataset.WithLogger(o.logger))
	}
	return o
}

// Evaluate loads path, splits it, trains a model built from cfg on the train
// part and scores it on the test part. DatasetSize in the result is the size
// of the filtered dataset.
func (o *Orchestrator) Evaluate(ctx context.Context, path string, testFraction float64,
	inputShape tensor.Shape, cfg model.Configuration,
) (metrics.Result, error) {
	ds, err := o.dataset(path)
	if err != nil {
		return metrics.Result{}, errors.Wrap(err, "load dataset")
	}
	if ds.Len() > 0 && !ds.Samples[0].Tensor.Shape().Equal(inputShape) {
		return metrics.Result{}, errors.Wrapf(ErrInputShapeMismatch, "samples have shape %v, want %v",
			ds.Samples[0].Tensor.Shape(), inputShape)
	}

	split, err := dataset.TrainTestSplit(ds, testFraction, o.splitSeed)
	if err != nil {
		return metrics.Result{}, errors.Wrap(err, "split dataset")
	}
	o.logger.Debug("split dataset",
		zap.Int("train", len(split.Train)),
		zap.Int("test", len(split.Test)),
		zap.Int("train_positives", dataset.Positives(split.Train)))

	h, err := o.factory.Build(inputShape, cfg)
	if err != nil {
		return metrics.Result{}, errors.Wrap(err, "build model")
	}

	obs := NewMetricsObserver(o.program, split.Test, o.logger)
	if err := h.Fit(ctx, split.Train, cfg.Epochs, obs, model.WithValidation(split.Test)); err != nil {
		return metrics.Result{}, errors.Wrap(err, "fit model")
	}

	probs, err := h.Predict(split.Test)
	if err != nil {
		return metrics.Result{}, errors.Wrap(err, "predict")
	}
	res, err := metrics.Evaluate(dataset.Labels(split.Test), probs)
	if err != nil {
		return metrics.Result{}, errors.Wrap(err, "evaluate")
	}
	res.DatasetSize = ds.Len()

	if err := o.checkpoint(h, cfg, res); err != nil {
		return metrics.Result{}, errors.Wrap(err, "save checkpoint")
	}
	return res, nil
}

// dataset returns the dataset at path, loading it at most once when caching
// is enabled.
func (o *Orchestrator) dataset(path string) (*dataset.Dataset, error) {
	if !o.cache {
		return o.loader.Load(path)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if ds, ok := o.datasets[path]; ok {
		return ds, nil
	}
	ds, err := o.loader.Load(path)
	if err != nil {
		return nil, err
	}
	o.datasets[path] = ds
	return ds, nil
}

func (o *Orchestrator) checkpoint(h model.Handle, cfg model.Configuration, res metrics.Result) error {
	if o.checkpointDir == "" {
		return nil
	}
	ckpt, ok := h.(model.Checkpointer)
	if !ok {
		o.logger.Debug("model does not support checkpoints", zap.Stringer("config", cfg))
		return nil
	}

	if err := os.MkdirAll(o.checkpointDir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(o.checkpointDir, cfg.Slug()+".safetensors")
	meta := map[string]string{
		"pooling":         string(cfg.Pooling),
		"hidden_layers":   strconv.Itoa(cfg.HiddenLayers),
		"nodes_per_layer": strconv.Itoa(cfg.NodesPerLayer),
		"epochs":          strconv.Itoa(cfg.Epochs),
		"score":           strconv.FormatFloat(res.Score(), 'g', -1, 64),
	}
	if err := serialization.WriteSafeTensors(path, ckpt.StateDict(), meta); err != nil {
		return err
	}
	o.logger.Info("saved checkpoint", zap.String("path", path))
	return nil
}
