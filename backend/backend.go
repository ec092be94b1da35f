// Package backend defines the storage contract of spectra collections.
//
// A collection owns exactly one Backend at a time and reaches all
// storage through this contract: nothing outside a backend package may
// depend on which concrete variant is bound. The variants shipped with
// this module are memory (everything held in RAM), mspfile (metadata in
// memory, peaks re-read from MSP sources per request) and peaksfile
// (metadata in memory, peaks in a columnar on-disk store), plus a
// SQLite-backed store in sqlitedb.
//
// Backends may be shared by several collections for reading. Writes are
// not safe against concurrent use of the same backend unless a concrete
// implementation documents otherwise; callers serialize them.
package backend

import (
	"context"
	"fmt"

	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

// Backend is the capability contract every storage variant satisfies.
type Backend interface {
	// SpectrumCount returns the number of spectra held by the backend.
	SpectrumCount() int

	// Metadata returns a metadata table projection for the requested
	// fields, or all stored fields when fields is nil. Requested fields
	// the backend does not know are returned as Null columns, never as
	// an error: absence is a designed unknown state.
	Metadata(ctx context.Context, fields []string) (*metadata.Table, error)

	// Peaks returns one peak matrix per requested index, in request
	// order. Any index outside [0, SpectrumCount()) fails with
	// ErrIndexOutOfRange.
	Peaks(ctx context.Context, indices []int) ([]peaks.Matrix, error)

	// SupportsWrite reports whether the backend accepts writes at all.
	// Backends that return false fail every Write with
	// ErrUnsupportedOperation, never ignore one silently.
	SupportsWrite() bool

	// Write overwrites metadata and/or peak data for the given indices.
	// Backends with partially immutable storage fail per field: an MSP
	// raw-file backend accepts metadata updates but rejects peak
	// updates with ErrUnsupportedOperation.
	Write(ctx context.Context, indices []int, u Update) error

	// Reset discards any backend-level cached transformation and
	// returns to the originally-loaded state. It is a no-op for
	// backends without an internal cache, and cannot undo writes that
	// already reached storage.
	Reset(ctx context.Context) error

	// Close releases resources such as file handles. The backend is
	// unusable afterwards.
	Close() error
}

// Update is the payload of a Backend.Write: new peak matrices and/or
// metadata column fragments for the written indices. A nil field means
// "leave untouched".
type Update struct {
	// Peaks holds one matrix per written index, aligned with the
	// indices argument.
	Peaks []peaks.Matrix

	// Metadata holds per-field value fragments, each aligned with the
	// indices argument.
	Metadata map[string][]metadata.Value
}

// Validate checks that the update payload is aligned with n written
// indices.
func (u Update) Validate(n int) error {
	if u.Peaks != nil && len(u.Peaks) != n {
		return fmt.Errorf("%d peak matrices for %d indices: %w", len(u.Peaks), n, ErrLengthMismatch)
	}
	for field, vals := range u.Metadata {
		if len(vals) != n {
			return fmt.Errorf("field %q: %d values for %d indices: %w", field, len(vals), n, ErrLengthMismatch)
		}
	}
	return nil
}

// IsEmpty reports whether the update carries no data.
func (u Update) IsEmpty() bool {
	return u.Peaks == nil && len(u.Metadata) == 0
}

// Factory constructs a backend pre-loaded with materialized collection
// data. Collections use factories for backend migration: the current
// backend and queue are read out completely and handed over, so the new
// backend starts with the lazy state baked in.
type Factory func(ctx context.Context, t *metadata.Table, pk []peaks.Matrix) (Backend, error)

// PeakWriteSupporter is an optional capability reporting whether peak
// columns accept writes. Backends that keep peaks in read-only sources
// implement this returning false, so collections can reject a queue
// materialization before any partial write happens. Backends without
// this capability accept peak writes whenever SupportsWrite is true.
type PeakWriteSupporter interface {
	SupportsPeakWrite() bool
}

// MzHinter is an optional capability answering approximate m/z
// membership without reading peak data. A false answer is authoritative
// (the spectrum cannot contain such a peak); a true answer must be
// verified against real peak data. Hints describe stored data, so they
// are only usable while no processing queue is pending.
type MzHinter interface {
	MayContainMz(index int, mz, tolerance float64) bool
}

// Exporter writes a materialized spectra view to an external
// destination. Fields the destination format cannot represent are
// silently dropped; callers discover the loss by comparing field sets
// after a round trip. Exporters fail with ErrUnsupportedFormat when the
// destination is not one of theirs.
type Exporter interface {
	Export(ctx context.Context, t *metadata.Table, pk []peaks.Matrix, destination string, opts ExportOptions) error
}

// ExportOptions tunes an export.
type ExportOptions struct {
	// Overwrite allows replacing an existing destination.
	Overwrite bool

	// Fields restricts the exported metadata fields. Nil exports every
	// representable field.
	Fields []string
}
