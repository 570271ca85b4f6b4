package dataset

import (
	"fmt"
)

// DataSourceError reports a dataset file that cannot be opened or decoded.
type DataSourceError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// MalformedTensorError reports a retained row whose tensor field does not
// hold exactly TensorSize numbers.
type MalformedTensorError struct {
	Row   int    // 0-based data row in the source file (-1 when unknown)
	Count int    // number of whitespace-separated tokens found
	Token string // offending token when parsing failed
	Err   error  // parse error, if any
}

// Error implements the error interface.
func (e *MalformedTensorError) Error() string {
	prefix := "malformed tensor"
	if e.Row >= 0 {
		prefix = fmt.Sprintf("row %d: malformed tensor", e.Row)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: token %q: %v", prefix, e.Token, e.Err)
	}
	return fmt.Sprintf("%s: got %d values, want %d", prefix, e.Count, TensorSize)
}

// Unwrap returns the underlying parse error.
func (e *MalformedTensorError) Unwrap() error {
	return e.Err
}

// InvalidSplitError reports a test fraction outside (0, 1) or a dataset that
// cannot be partitioned into two non-empty subsets.
type InvalidSplitError struct {
	Fraction float64
	Size     int
	Reason   string
}

// Error implements the error interface.
func (e *InvalidSplitError) Error() string {
	return fmt.Sprintf("invalid split (test fraction %v, %d samples): %s", e.Fraction, e.Size, e.Reason)
}
