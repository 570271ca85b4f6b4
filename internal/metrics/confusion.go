package metrics

// SmoothingEpsilon is added to the denominators of the smoothed F1 so that
// it stays defined on batches without positives.
const SmoothingEpsilon = 1e-7

// Confusion counts binary outcomes for the positive class (label 1).
type Confusion struct {
	TP, FP, TN, FN int
}

// Add records one prediction, thresholded at DefaultThreshold.
func (c *Confusion) Add(label int, prob float64) {
	pred := prob > DefaultThreshold
	switch {
	case label == 1 && pred:
		c.TP++
	case label == 1:
		c.FN++
	case pred:
		c.FP++
	default:
		c.TN++
	}
}

// Total returns the number of recorded predictions.
func (c Confusion) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Accuracy returns the fraction of correct predictions, 0 when empty.
func (c Confusion) Accuracy() float64 {
	return safeDiv(c.TP+c.TN, c.Total())
}

// Recall returns the positive-class recall, 0 without positives.
func (c Confusion) Recall() float64 {
	return safeDiv(c.TP, c.TP+c.FN)
}

// SmoothedF1 returns the positive-class F1 with SmoothingEpsilon added to
// every denominator.
func (c Confusion) SmoothedF1() float64 {
	tp := float64(c.TP)
	p := tp / (float64(c.TP+c.FP) + SmoothingEpsilon)
	r := tp / (float64(c.TP+c.FN) + SmoothingEpsilon)
	return 2 * p * r / (p + r + SmoothingEpsilon)
}
