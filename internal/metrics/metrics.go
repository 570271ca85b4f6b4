// Package metrics scores binary predictions.
//
// Precision, recall and F1 are computed per class and averaged with each
// class weighted by its support (the number of true instances). A class
// whose precision or recall has a zero denominator contributes 0.
package metrics

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// DefaultThreshold maps probabilities strictly above it to class 1.
const DefaultThreshold = 0.5

var (
	// ErrLengthMismatch is returned when truth and predictions differ in length.
	ErrLengthMismatch = errors.New("metrics: length mismatch")
	// ErrNoSamples is returned for empty inputs.
	ErrNoSamples = errors.New("metrics: no samples")
)

// Result holds the evaluation of one trained model.
type Result struct {
	DatasetSize int     `csv:"Length of Filtered Dataset"`
	Accuracy    float64 `csv:"Accuracy"`
	Precision   float64 `csv:"Precision"`
	Recall      float64 `csv:"Recall"`
	F1          float64 `csv:"F1 Score"`
}

// Score returns the arithmetic mean of accuracy, precision, recall and F1.
func (r Result) Score() float64 {
	mean, err := stats.Mean(stats.Float64Data{r.Accuracy, r.Precision, r.Recall, r.F1})
	if err != nil {
		return 0
	}
	return mean
}

// String returns a one-line summary.
func (r Result) String() string {
	return fmt.Sprintf("accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f",
		r.Accuracy, r.Precision, r.Recall, r.F1)
}

// Threshold converts probabilities into hard 0/1 predictions: p > threshold
// becomes 1, everything else 0.
func Threshold(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p > threshold {
			out[i] = 1
		}
	}
	return out
}

// Evaluate thresholds probs at DefaultThreshold and scores them against yTrue.
// DatasetSize is left for the caller to fill in.
func Evaluate(yTrue []int, probs []float64) (Result, error) {
	if len(yTrue) != len(probs) {
		return Result{}, errors.Wrapf(ErrLengthMismatch, "%d labels, %d predictions", len(yTrue), len(probs))
	}
	return Score(yTrue, Threshold(probs, DefaultThreshold))
}

// Score computes accuracy and weighted precision, recall and F1 for hard
// predictions.
func Score(yTrue, yPred []int) (Result, error) {
	if len(yTrue) != len(yPred) {
		return Result{}, errors.Wrapf(ErrLengthMismatch, "%d labels, %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Result{}, ErrNoSamples
	}

	counts := make(map[int]*classCounts)
	get := func(c int) *classCounts {
		cc, ok := counts[c]
		if !ok {
			cc = &classCounts{}
			counts[c] = cc
		}
		return cc
	}

	correct := 0
	for i, truth := range yTrue {
		pred := yPred[i]
		get(truth).support++
		if truth == pred {
			correct++
			get(truth).tp++
		} else {
			get(pred).fp++
			get(truth).fn++
		}
	}

	classes := make([]int, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	var res Result
	total := float64(len(yTrue))
	for _, c := range classes {
		cc := counts[c]
		p := safeDiv(cc.tp, cc.tp+cc.fp)
		r := safeDiv(cc.tp, cc.tp+cc.fn)
		var f1 float64
		if p+r > 0 {
			f1 = 2 * p * r / (p + r)
		}
		w := float64(cc.support) / total
		res.Precision += w * p
		res.Recall += w * r
		res.F1 += w * f1
	}
	res.Accuracy = float64(correct) / total

	return res, nil
}

type classCounts struct {
	tp, fp, fn, support int
}

func safeDiv(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
