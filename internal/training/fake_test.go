package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/model"
	"github.com/born-ml/chirality/internal/tensor"
)

// fakeFactory builds fakeHandles that predict from the sample labels.
type fakeFactory struct {
	buildErr error
	fitErr   error
	builds   []model.Configuration
	handles  []*fakeHandle
}

func (f *fakeFactory) Build(_ tensor.Shape, cfg model.Configuration) (model.Handle, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	f.builds = append(f.builds, cfg)
	h := &fakeHandle{fitErr: f.fitErr}
	f.handles = append(f.handles, h)
	return h, nil
}

type fakeHandle struct {
	fitErr         error
	trainSize      int
	validationSize int
	epochs         []int
}

func (h *fakeHandle) Fit(_ context.Context, train []dataset.Sample, epochs int, obs model.EpochObserver, opts ...model.FitOption) error {
	if h.fitErr != nil {
		return h.fitErr
	}
	h.trainSize = len(train)
	h.validationSize = len(model.ApplyFitOptions(opts...).Validation)
	for e := 1; e <= epochs; e++ {
		h.epochs = append(h.epochs, e)
		if obs != nil {
			obs.OnEpochEnd(e, h)
		}
	}
	return nil
}

func (h *fakeHandle) Predict(samples []dataset.Sample) ([]float64, error) {
	probs := make([]float64, len(samples))
	for i, s := range samples {
		probs[i] = 0.1 + 0.8*float64(s.Label)
	}
	return probs, nil
}

func (h *fakeHandle) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{"w": tensor.Full(tensor.Shape{2}, 0.5)}
}

// failingHandle always fails to predict.
type failingHandle struct{}

func (failingHandle) Fit(context.Context, []dataset.Sample, int, model.EpochObserver, ...model.FitOption) error {
	return nil
}

func (failingHandle) Predict([]dataset.Sample) ([]float64, error) {
	return nil, errors.New("predict failed")
}

// writeDataset writes a CSV with the given chiral0 values, all retained.
func writeDataset(t *testing.T, chiralities ...string) string {
	t.Helper()

	tokens := make([]string, dataset.TensorSize)
	for i := range tokens {
		tokens[i] = fmt.Sprint(i % 7)
	}
	grid := strings.Join(tokens, " ")

	var b strings.Builder
	b.WriteString("chiral_length,chiral0,tensor\n")
	for _, c := range chiralities {
		fmt.Fprintf(&b, "1,%s,\"%s\"\n", c, grid)
	}

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}
