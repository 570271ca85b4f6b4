package model

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/metrics"
	"github.com/born-ml/chirality/internal/nn"
	"github.com/born-ml/chirality/internal/optim"
	"github.com/born-ml/chirality/internal/parallel"
	"github.com/born-ml/chirality/internal/tensor"
)

// Feature extractor geometry.
const (
	Conv1Filters = 32
	Conv2Filters = 64
	KernelSize   = 3
	PoolSize     = 2
)

// Training defaults.
const (
	DefaultBatchSize    = 32
	DefaultLearningRate = 0.001
	DefaultSeed         = 42
)

var (
	// ErrInvalidInputShape is returned by Build for shapes other than
	// [depth, height, width, channels] large enough for both convolutions.
	ErrInvalidInputShape = errors.New("invalid input shape")
	// ErrEmptyTrainingSet is returned by Fit when there is nothing to train on.
	ErrEmptyTrainingSet = errors.New("empty training set")
)

// CNNFactory builds 3D convolutional classifiers:
//
//	Conv3D(32) -> ReLU -> MaxPool3D -> Conv3D(64) -> ReLU -> MaxPool3D ->
//	{Flatten | GlobalAvgPool3D | GlobalMaxPool3D} ->
//	HiddenLayers x (Linear(NodesPerLayer) -> ReLU) -> Linear(1) -> Sigmoid
//
// trained with binary cross-entropy.
type CNNFactory struct {
	batchSize    int
	learningRate float64
	seed         uint64
	optimizer    string
	parallel     parallel.Config
	logger       *zap.Logger
}

// CNNOption configures a CNNFactory.
type CNNOption func(*CNNFactory)

// WithBatchSize sets the mini-batch size.
func WithBatchSize(n int) CNNOption {
	return func(f *CNNFactory) {
		f.batchSize = n
	}
}

// WithLearningRate sets the optimizer learning rate.
func WithLearningRate(lr float64) CNNOption {
	return func(f *CNNFactory) {
		f.learningRate = lr
	}
}

// WithSeed sets the seed for weight initialization and shuffling.
func WithSeed(seed uint64) CNNOption {
	return func(f *CNNFactory) {
		f.seed = seed
	}
}

// WithOptimizer selects the optimizer by name (see optim.New).
func WithOptimizer(name string) CNNOption {
	return func(f *CNNFactory) {
		f.optimizer = name
	}
}

// WithParallel sets the worker configuration of the conv and pool kernels.
func WithParallel(cfg parallel.Config) CNNOption {
	return func(f *CNNFactory) {
		f.parallel = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CNNOption {
	return func(f *CNNFactory) {
		f.logger = logger
	}
}

// NewCNNFactory returns a factory with Adam, batch size 32 and seed 42
// unless overridden.
func NewCNNFactory(opts ...CNNOption) *CNNFactory {
	f := &CNNFactory{
		batchSize:    DefaultBatchSize,
		learningRate: DefaultLearningRate,
		seed:         DefaultSeed,
		optimizer:    optim.NameAdam,
		parallel:     parallel.DefaultConfig(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build implements Factory. inputShape is [depth, height, width, channels].
func (f *CNNFactory) Build(inputShape tensor.Shape, cfg Configuration) (Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f.batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", f.batchSize)
	}
	if len(inputShape) != 4 {
		return nil, errors.Wrapf(ErrInvalidInputShape, "want [depth height width channels], got %v", inputShape)
	}
	if err := inputShape.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidInputShape, err.Error())
	}

	//nolint:gosec // G404: reproducible initialization, not security sensitive
	initRNG := rand.New(rand.NewPCG(f.seed, 0))
	channels := inputShape[3]

	conv1 := nn.NewConv3D(channels, Conv1Filters, KernelSize, initRNG, f.parallel)
	pool1 := nn.NewMaxPool3D(PoolSize, PoolSize, f.parallel)
	conv2 := nn.NewConv3D(Conv1Filters, Conv2Filters, KernelSize, initRNG, f.parallel)
	pool2 := nn.NewMaxPool3D(PoolSize, PoolSize, f.parallel)

	volume := 1
	for _, n := range inputShape[:3] {
		n = pool2.ComputeOutputSize(conv2.ComputeOutputSize(pool1.ComputeOutputSize(conv1.ComputeOutputSize(n))))
		if n <= 0 {
			return nil, errors.Wrapf(ErrInvalidInputShape, "%v is too small for two %d^3 convolutions", inputShape, KernelSize)
		}
		volume *= n
	}

	net := nn.NewSequential(conv1, nn.NewReLU(), pool1, conv2, nn.NewReLU(), pool2)

	features := Conv2Filters
	switch cfg.Pooling {
	case PoolingFlatten:
		net.Add(nn.NewFlatten())
		features = Conv2Filters * volume
	case PoolingGlobalAvg:
		net.Add(nn.NewGlobalAvgPool3D())
	case PoolingGlobalMax:
		net.Add(nn.NewGlobalMaxPool3D())
	}

	in := features
	for i := 0; i < cfg.HiddenLayers; i++ {
		net.Add(nn.NewLinear(in, cfg.NodesPerLayer, initRNG))
		net.Add(nn.NewReLU())
		in = cfg.NodesPerLayer
	}
	net.Add(nn.NewLinear(in, 1, initRNG))
	net.Add(nn.NewSigmoid())

	opt, err := optim.New(f.optimizer, net.Parameters(), optim.Config{LR: f.learningRate})
	if err != nil {
		return nil, errors.Wrap(err, "create optimizer")
	}

	h := &CNN{
		cfg:        cfg,
		inputShape: inputShape.Clone(),
		net:        net,
		loss:       nn.NewBCELoss(),
		optimizer:  opt,
		batchSize:  f.batchSize,
		//nolint:gosec // G404: reproducible shuffling, not security sensitive
		rng:    rand.New(rand.NewPCG(f.seed, f.seed)),
		logger: f.logger,
	}

	f.logger.Debug("built model",
		zap.Stringer("config", cfg),
		zap.Stringer("input_shape", inputShape),
		zap.Int("features", features),
		zap.Int("parameters", h.NumParameters()))

	return h, nil
}

// CNN is the Handle returned by CNNFactory.
type CNN struct {
	cfg        Configuration
	inputShape tensor.Shape
	net        *nn.Sequential
	loss       *nn.BCELoss
	optimizer  optim.Optimizer
	batchSize  int
	rng        *rand.Rand
	logger     *zap.Logger
}

// Configuration returns the configuration the model was built from.
func (m *CNN) Configuration() Configuration {
	return m.cfg
}

// Network returns the underlying module stack.
func (m *CNN) Network() *nn.Sequential {
	return m.net
}

// NumParameters returns the number of trainable scalars.
func (m *CNN) NumParameters() int {
	n := 0
	for _, p := range m.net.Parameters() {
		n += p.Tensor().NumElements()
	}
	return n
}

// StateDict implements Checkpointer.
func (m *CNN) StateDict() map[string]*tensor.Tensor {
	return m.net.StateDict()
}

// Fit implements Handle. Samples are reshuffled every epoch; ctx is checked
// before each mini-batch.
//
// Every epoch logs, at info, the mean training loss together with accuracy,
// recall and smoothed F1 of the mini-batch predictions. With WithValidation
// the same figures are logged for the validation samples, prefixed "val_".
func (m *CNN) Fit(ctx context.Context, train []dataset.Sample, epochs int, obs EpochObserver, opts ...FitOption) error {
	if len(train) == 0 {
		return ErrEmptyTrainingSet
	}
	if epochs <= 0 {
		return errors.Errorf("epochs must be positive, got %d", epochs)
	}
	fo := ApplyFitOptions(opts...)

	x, err := m.inputs(train)
	if err != nil {
		return err
	}
	y := labelTensor(train)

	var xVal, yVal *tensor.Tensor
	if len(fo.Validation) > 0 {
		if xVal, err = m.inputs(fo.Validation); err != nil {
			return errors.Wrap(err, "validation samples")
		}
		yVal = labelTensor(fo.Validation)
	}

	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= epochs; epoch++ {
		start := time.Now()
		m.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		total := 0.0
		var conf metrics.Confusion
		for lo := 0; lo < len(order); lo += m.batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			hi := min(lo+m.batchSize, len(order))
			idx := order[lo:hi]

			m.optimizer.ZeroGrad()
			probs := m.net.Forward(gatherRows(x, idx))
			loss := m.loss.Forward(probs, gatherRows(y, idx))
			for i, p := range probs.Data() {
				conf.Add(train[idx[i]].Label, p)
			}
			m.net.Backward(m.loss.Backward())
			m.optimizer.Step()

			total += loss * float64(len(idx))
		}

		fields := []zap.Field{
			zap.Int("epoch", epoch),
			zap.Int("epochs", epochs),
			zap.Float64("loss", total/float64(len(order))),
			zap.Float64("accuracy", conf.Accuracy()),
			zap.Float64("recall", conf.Recall()),
			zap.Float64("f1", conf.SmoothedF1()),
		}
		if xVal != nil {
			fields = append(fields, m.validate(xVal, yVal)...)
		}
		fields = append(fields, zap.Duration("elapsed", time.Since(start)))
		m.logger.Info("epoch finished", fields...)

		if obs != nil {
			m.notify(obs, epoch)
		}
	}
	return nil
}

// validate scores the model on a prepared validation batch.
func (m *CNN) validate(x, y *tensor.Tensor) []zap.Field {
	probs := m.forward(x)
	loss := nn.NewBCELoss().Forward(probs, y)

	var conf metrics.Confusion
	for i, p := range probs.Data() {
		conf.Add(int(y.Data()[i]), p)
	}
	return []zap.Field{
		zap.Float64("val_loss", loss),
		zap.Float64("val_accuracy", conf.Accuracy()),
		zap.Float64("val_recall", conf.Recall()),
		zap.Float64("val_f1", conf.SmoothedF1()),
	}
}

// Predict implements Handle.
func (m *CNN) Predict(samples []dataset.Sample) ([]float64, error) {
	if len(samples) == 0 {
		return []float64{}, nil
	}
	x, err := m.inputs(samples)
	if err != nil {
		return nil, err
	}
	return m.forward(x).Data(), nil
}

// forward runs x through the network in batches and returns the [N, 1]
// probabilities.
func (m *CNN) forward(x *tensor.Tensor) *tensor.Tensor {
	n := x.Shape()[0]
	out := tensor.Zeros(tensor.Shape{n, 1})
	idx := make([]int, 0, m.batchSize)
	for lo := 0; lo < n; lo += m.batchSize {
		hi := min(lo+m.batchSize, n)
		idx = idx[:0]
		for i := lo; i < hi; i++ {
			idx = append(idx, i)
		}
		copy(out.Data()[lo:hi], m.net.Forward(gatherRows(x, idx)).Data())
	}
	return out
}

// notify runs the observer, recovering from panics so that a failing
// observer never stops training.
func (m *CNN) notify(obs EpochObserver, epoch int) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("epoch observer panicked", zap.Int("epoch", epoch), zap.Any("panic", r))
		}
	}()
	obs.OnEpochEnd(epoch, m)
}

// inputs stacks the samples into a channels-first [N, C, D, H, W] batch.
func (m *CNN) inputs(samples []dataset.Sample) (*tensor.Tensor, error) {
	for _, s := range samples {
		if !s.Tensor.Shape().Equal(m.inputShape) {
			return nil, errors.Wrapf(ErrInvalidInputShape, "sample %d has shape %v, model expects %v",
				s.Index, s.Tensor.Shape(), m.inputShape)
		}
	}
	batch, err := dataset.Batch(samples)
	if err != nil {
		return nil, errors.Wrap(err, "stack samples")
	}
	return channelsFirst(batch), nil
}

// labelTensor returns the [N, 1] label column of samples.
func labelTensor(samples []dataset.Sample) *tensor.Tensor {
	y := tensor.Zeros(tensor.Shape{len(samples), 1})
	for i, s := range samples {
		y.Data()[i] = float64(s.Label)
	}
	return y
}

// channelsFirst converts [N, D, H, W, C] to [N, C, D, H, W].
func channelsFirst(x *tensor.Tensor) *tensor.Tensor {
	s := x.Shape()
	n, d, h, w, c := s[0], s[1], s[2], s[3], s[4]
	if c == 1 {
		return x.Reshape(n, 1, d, h, w)
	}

	out := tensor.Zeros(tensor.Shape{n, c, d, h, w})
	src, dst := x.Data(), out.Data()
	vol := d * h * w
	for b := 0; b < n; b++ {
		for v := 0; v < vol; v++ {
			for ch := 0; ch < c; ch++ {
				dst[(b*c+ch)*vol+v] = src[(b*vol+v)*c+ch]
			}
		}
	}
	return out
}

// gatherRows copies the listed leading-axis rows of x into a new tensor.
func gatherRows(x *tensor.Tensor, idx []int) *tensor.Tensor {
	shape := x.Shape().Clone()
	rowSize := x.NumElements() / shape[0]
	shape[0] = len(idx)

	out := tensor.Zeros(shape)
	src, dst := x.Data(), out.Data()
	for i, r := range idx {
		copy(dst[i*rowSize:(i+1)*rowSize], src[r*rowSize:(r+1)*rowSize])
	}
	return out
}
