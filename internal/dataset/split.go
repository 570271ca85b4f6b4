package dataset

import (
	"math"
	"math/rand/v2"
)

// DefaultSplitSeed seeds the train/test permutation.
const DefaultSplitSeed = 42

// Split is a train/test partition of a dataset.
type Split struct {
	Train []Sample
	Test  []Sample
}

// TrainTestSplit partitions ds into disjoint train and test sets.
//
// The test set receives ceil(testFraction * n) samples drawn by a seeded
// permutation; the rest form the train set. The same seed and dataset always
// yield the same partition. Both sets must be non-empty.
func TrainTestSplit(ds *Dataset, testFraction float64, seed uint64) (*Split, error) {
	n := ds.Len()
	if math.IsNaN(testFraction) || testFraction <= 0 || testFraction >= 1 {
		return nil, &InvalidSplitError{Fraction: testFraction, Size: n, Reason: "test fraction must be in (0, 1)"}
	}
	if n == 0 {
		return nil, &InvalidSplitError{Fraction: testFraction, Size: n, Reason: "dataset is empty"}
	}

	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest >= n {
		return nil, &InvalidSplitError{Fraction: testFraction, Size: n, Reason: "train set would be empty"}
	}

	//nolint:gosec // G404: reproducible split, not security sensitive
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	split := &Split{
		Train: make([]Sample, 0, n-nTest),
		Test:  make([]Sample, 0, nTest),
	}
	for i, idx := range perm {
		if i < nTest {
			split.Test = append(split.Test, ds.Samples[idx])
		} else {
			split.Train = append(split.Train, ds.Samples[idx])
		}
	}
	return split, nil
}
