package training

import (
	"sync"

	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/metrics"
	"github.com/born-ml/chirality/internal/model"
)

// EpochMetrics is the held-out evaluation after one epoch.
type EpochMetrics struct {
	Epoch  int
	Result metrics.Result
}

// MetricsObserver evaluates the model on the test set after every epoch.
// Failures are logged and never interrupt training.
type MetricsObserver struct {
	program string
	test    []dataset.Sample
	labels  []int
	logger  *zap.Logger

	mu      sync.Mutex
	history []EpochMetrics
}

// NewMetricsObserver returns an observer scoring against test. program is
// included in every log line.
func NewMetricsObserver(program string, test []dataset.Sample, logger *zap.Logger) *MetricsObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsObserver{
		program: program,
		test:    test,
		labels:  dataset.Labels(test),
		logger:  logger,
	}
}

// OnEpochEnd implements model.EpochObserver.
func (o *MetricsObserver) OnEpochEnd(epoch int, h model.Handle) {
	probs, err := h.Predict(o.test)
	if err != nil {
		o.logger.Warn("epoch evaluation failed: predict", zap.Int("epoch", epoch), zap.Error(err))
		return
	}
	res, err := metrics.Evaluate(o.labels, probs)
	if err != nil {
		o.logger.Warn("epoch evaluation failed: score", zap.Int("epoch", epoch), zap.Error(err))
		return
	}

	o.mu.Lock()
	o.history = append(o.history, EpochMetrics{Epoch: epoch, Result: res})
	o.mu.Unlock()

	o.logger.Info("epoch metrics",
		zap.String("program", o.program),
		zap.Int("epoch", epoch),
		zap.Float64("accuracy", res.Accuracy),
		zap.Float64("precision", res.Precision),
		zap.Float64("recall", res.Recall),
		zap.Float64("f1", res.F1))
}

// History returns a copy of the recorded per-epoch metrics.
func (o *MetricsObserver) History() []EpochMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]EpochMetrics(nil), o.history...)
}
