package backend

import (
	"errors"
	"fmt"
)

// Contract error kinds. Every backend reports failures through these
// sentinels (possibly wrapped with detail), so callers can branch on
// errors.Is regardless of the bound variant.
var (
	// ErrIndexOutOfRange is returned for any spectrum index outside the
	// backend's range.
	ErrIndexOutOfRange = errors.New("spectrum index out of range")

	// ErrUnsupportedOperation is returned for writes on non-writable
	// backends or on fields a backend treats as immutable.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnsupportedFormat is returned when an export destination is
	// not supported by the chosen exporter.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrSourceUnavailable is returned when a backend cannot open the
	// storage it is asked to bind to.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrLengthMismatch is returned when a write payload or assigned
	// column does not align with the written range.
	ErrLengthMismatch = errors.New("length mismatch")
)

// IndexOutOfRangeError reports the offending index alongside the valid
// range. It unwraps to ErrIndexOutOfRange.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("spectrum index %d out of range [0, %d)", e.Index, e.Count)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }

// CheckIndices validates every index against a backend of count
// spectra.
func CheckIndices(indices []int, count int) error {
	for _, i := range indices {
		if i < 0 || i >= count {
			return &IndexOutOfRangeError{Index: i, Count: count}
		}
	}
	return nil
}
