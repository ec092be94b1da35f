package spectra

import (
	"fmt"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/metadata"
)

// Collection-level error kinds. Backend errors pass through unchanged,
// so a caller can branch on one set of sentinels regardless of which
// storage variant produced the failure.
var (
	// ErrIndexOutOfRange is returned when a spectrum index is outside
	// the collection's range.
	ErrIndexOutOfRange = backend.ErrIndexOutOfRange

	// ErrUnsupportedOperation is returned for mutations the bound
	// backend cannot carry out, such as materializing the processing
	// queue into a read-only backend.
	ErrUnsupportedOperation = backend.ErrUnsupportedOperation

	// ErrUnsupportedFormat is returned when an export destination is
	// not supported by the chosen backend.
	ErrUnsupportedFormat = backend.ErrUnsupportedFormat

	// ErrSourceUnavailable is returned when a backend cannot open its
	// source.
	ErrSourceUnavailable = backend.ErrSourceUnavailable

	// ErrLengthMismatch is returned when an assigned variable's length
	// is neither the collection length nor a scalar.
	ErrLengthMismatch = backend.ErrLengthMismatch

	// ErrTypeMismatch is returned when a value assigned to a core
	// spectra variable does not match the variable's declared type.
	ErrTypeMismatch = metadata.ErrTypeMismatch
)

// PartitionError tags a failure from one dispatch partition with the
// storage location and the collection positions the partition covered.
// The underlying backend or processing error is available via
// errors.Unwrap.
type PartitionError struct {
	// Storage is the dataStorage value the partition was keyed on.
	Storage string

	// First and Last are the smallest and largest collection positions
	// in the partition.
	First, Last int

	// Err is the underlying failure.
	Err error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %q (spectra %d-%d): %v", e.Storage, e.First, e.Last, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }
