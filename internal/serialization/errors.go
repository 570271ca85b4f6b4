package serialization

import "errors"

// Common errors.
var (
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
	ErrOutOfBounds      = errors.New("tensor extends beyond data section")
	ErrUnsupportedDType = errors.New("unsupported dtype")
	ErrShapeMismatch    = errors.New("tensor byte range does not match its shape")
)

// MaxHeaderSize bounds the JSON header read from disk.
const MaxHeaderSize = 100 << 20
