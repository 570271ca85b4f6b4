// Package dataset turns a molecule CSV into labelled 9x9x9 samples.
//
// The input file is a CSV with a header row. Three columns are used:
//
//	chiral_length  number of chiral centers; only rows equal to 1 are kept
//	chiral0        chirality of the first center ("R" is the positive class)
//	tensor         729 whitespace-separated numbers, a 9x9x9 grid in row-major order
//
// Other columns are ignored.
package dataset

import (
	"github.com/pkg/errors"

	"github.com/born-ml/chirality/internal/tensor"
)

// Grid geometry of a sample.
const (
	GridSize   = 9
	TensorSize = GridSize * GridSize * GridSize
)

// SampleShape is the shape of every sample tensor: a 9x9x9 grid with a
// single trailing channel.
var SampleShape = tensor.Shape{GridSize, GridSize, GridSize, 1}

// Sample is one labelled molecule. Samples are not modified after loading.
type Sample struct {
	Index  int            // 0-based data row in the source file
	Tensor *tensor.Tensor // SampleShape
	Label  int            // 1 for "R", 0 otherwise
}

// Dataset is the ordered list of samples that passed the filter.
type Dataset struct {
	Source  string
	Samples []Sample
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Labels returns the labels in dataset order.
func (d *Dataset) Labels() []int {
	return Labels(d.Samples)
}

// Labels returns the labels of samples in order.
func Labels(samples []Sample) []int {
	labels := make([]int, len(samples))
	for i, s := range samples {
		labels[i] = s.Label
	}
	return labels
}

// Positives counts samples labelled 1.
func Positives(samples []Sample) int {
	n := 0
	for _, s := range samples {
		n += s.Label
	}
	return n
}

// Batch stacks the sample tensors into one [n, 9, 9, 9, 1] tensor.
func Batch(samples []Sample) (*tensor.Tensor, error) {
	ts := make([]*tensor.Tensor, len(samples))
	for i, s := range samples {
		ts[i] = s.Tensor
	}
	out, err := tensor.Stack(ts)
	if err != nil {
		return nil, errors.Wrap(err, "batch")
	}
	return out, nil
}
