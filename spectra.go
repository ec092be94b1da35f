package spectra

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/backend/memory"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
	"github.com/manogenome/Spectra/processing"
)

// part pairs one backend with the processing queue applied to its peak
// data. A freshly constructed collection has exactly one part; Combine
// is the only operation that produces more.
type part struct {
	backend backend.Backend
	queue   *processing.Queue
}

// rowRef locates one spectrum: the part it came from and its row index
// inside that part's backend.
type rowRef struct {
	part int
	row  int
}

// Spectra is an ordered collection of mass spectra. It owns a metadata
// table copy, references one backend per part and carries a lazy
// processing queue applied to peak data on every read.
//
// Collections are cheap views over their backends: Subset, the filter
// family, AddProcessing and Combine share backend instances and never
// copy peak data. Concurrent reads on an unchanging collection are
// safe; SetVar, ApplyProcessing and Reset mutate the receiver and must
// be serialized by the caller.
type Spectra struct {
	parts []part
	rows  []rowRef
	table *metadata.Table
	opts  options
}

// New creates a collection from tabular metadata plus explicit peak
// lists, bound to a fresh in-memory backend. The table may be nil when
// the spectra carry no metadata yet.
func New(t *metadata.Table, pk []peaks.Matrix, optFns ...Option) (*Spectra, error) {
	b, err := memory.New(t, pk)
	if err != nil {
		return nil, err
	}
	return FromBackend(context.Background(), b, optFns...)
}

// FromBackend creates a collection over an existing backend. The
// backend's metadata is read once into the collection's table copy.
func FromBackend(ctx context.Context, b backend.Backend, optFns ...Option) (*Spectra, error) {
	table, err := b.Metadata(ctx, nil)
	if err != nil {
		return nil, err
	}
	if table.Len() != b.SpectrumCount() {
		return nil, fmt.Errorf("backend reports %d spectra but %d metadata rows: %w",
			b.SpectrumCount(), table.Len(), ErrLengthMismatch)
	}

	rows := make([]rowRef, b.SpectrumCount())
	for i := range rows {
		rows[i] = rowRef{part: 0, row: i}
	}

	return &Spectra{
		parts: []part{{backend: b, queue: processing.NewQueue()}},
		rows:  rows,
		table: table,
		opts:  applyOptions(optFns),
	}, nil
}

// Len returns the number of spectra in the collection.
func (s *Spectra) Len() int { return len(s.rows) }

// SpectraVariables returns the available variable names: every core
// variable followed by the extra variables the collection carries, in
// table order.
func (s *Spectra) SpectraVariables() []string {
	names := metadata.CoreFields()
	for _, name := range s.table.Fields() {
		if !metadata.IsCoreField(name) {
			names = append(names, name)
		}
	}
	return names
}

// Var returns the named variable as one value per spectrum. Spectra
// lacking the field read as the Null sentinel; unknown names yield an
// all-Null column rather than an error.
func (s *Spectra) Var(name string) []metadata.Value {
	out := make([]metadata.Value, s.Len())
	col, ok := s.table.Column(name)
	if !ok {
		for i := range out {
			out[i] = metadata.Null()
		}
		return out
	}
	copy(out, col)
	return out
}

// SetVar assigns the named variable. value may be a slice with one
// element per spectrum or a scalar, which is broadcast to every row.
// Core variables are type checked (ErrTypeMismatch); slices of any
// other length fail with ErrLengthMismatch. Peak data cannot be
// assigned this way: the names "mz" and "intensity" are rejected with
// ErrUnsupportedOperation, peak mutation goes through the processing
// queue or Backend.Write only.
//
// The assignment updates this collection's table copy; the backend and
// other collections sharing it are untouched.
func (s *Spectra) SetVar(name string, value any) error {
	if name == "mz" || name == "intensity" {
		return fmt.Errorf("variable %q holds peak data: %w", name, ErrUnsupportedOperation)
	}

	col, err := s.columnFromAny(value)
	if err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}
	return s.table.SetColumn(name, col)
}

func (s *Spectra) columnFromAny(value any) ([]metadata.Value, error) {
	broadcast := func(v metadata.Value) []metadata.Value {
		col := make([]metadata.Value, s.Len())
		for i := range col {
			col[i] = v
		}
		return col
	}

	switch v := value.(type) {
	case []metadata.Value:
		if len(v) != s.Len() {
			return nil, fmt.Errorf("%d values for %d spectra: %w", len(v), s.Len(), ErrLengthMismatch)
		}
		return slices.Clone(v), nil
	case metadata.Value:
		return broadcast(v), nil
	default:
		mv, err := metadata.FromAny(value)
		if err != nil {
			return nil, err
		}
		if arr, ok := mv.AsArray(); ok {
			if len(arr) != s.Len() {
				return nil, fmt.Errorf("%d values for %d spectra: %w", len(arr), s.Len(), ErrLengthMismatch)
			}
			return slices.Clone(arr), nil
		}
		return broadcast(mv), nil
	}
}

// BuildIndexes builds secondary indexes over the discrete and numeric
// core variables the filter family queries, so metadata filters answer
// from bitmaps and range trees instead of row scans. Indexing is
// optional; every filter falls back to a scan without it. Any
// SetVar call invalidates the indexes.
func (s *Spectra) BuildIndexes() {
	s.table.BuildIndex(
		[]string{
			metadata.FieldMsLevel,
			metadata.FieldPolarity,
			metadata.FieldAcquisitionNum,
			metadata.FieldPrecursorCharge,
			metadata.FieldDataOrigin,
			metadata.FieldDataStorage,
		},
		[]string{
			metadata.FieldRtime,
			metadata.FieldPrecursorMz,
			metadata.FieldIsolationWindowLowerMz,
			metadata.FieldIsolationWindowUpperMz,
		},
	)
}

// AddProcessing returns a new collection with the steps appended to the
// processing queue of every part. The backends are untouched: the steps
// run lazily on each subsequent peak read, in insertion order.
func (s *Spectra) AddProcessing(steps ...processing.Step) *Spectra {
	out := s.clone()
	for i := range out.parts {
		out.parts[i].queue = out.parts[i].queue.Append(steps...)
	}
	return out
}

// ProcessingNames returns the queued step names in application order.
// After Combine the parts may carry different queues; the names of the
// first part are returned, which is every part's queue for collections
// that never went through Combine.
func (s *Spectra) ProcessingNames() []string {
	return s.parts[0].queue.Names()
}

// Reset empties the processing queue of every part and asks each
// distinct backend to drop any internally cached transformation.
// Subsequent reads reflect the backend's stored data. Reset cannot
// recover data overwritten by a prior ApplyProcessing: that write was
// final.
func (s *Spectra) Reset(ctx context.Context) error {
	seen := make(map[backend.Backend]bool, len(s.parts))
	for i := range s.parts {
		b := s.parts[i].backend
		if !seen[b] {
			seen[b] = true
			if err := b.Reset(ctx); err != nil {
				return err
			}
		}
		s.parts[i].queue = processing.NewQueue()
	}
	return nil
}

// ApplyProcessing materializes the processing queue: peaks are read
// with the queue applied and written back to storage, then the queue is
// emptied. The write is destructive and final; a later Reset does not
// recover the pre-transformation data.
//
// Every part's backend must be writable, peak columns included, or the
// call fails with ErrUnsupportedOperation before any data is touched.
func (s *Spectra) ApplyProcessing(ctx context.Context) error {
	started := time.Now()

	for _, p := range s.parts {
		if !p.backend.SupportsWrite() {
			return fmt.Errorf("backend is read-only: %w", ErrUnsupportedOperation)
		}
		if pw, ok := p.backend.(backend.PeakWriteSupporter); ok && !pw.SupportsPeakWrite() {
			return fmt.Errorf("backend peak data is read-only: %w", ErrUnsupportedOperation)
		}
	}

	steps := 0
	for _, p := range s.parts {
		steps = max(steps, p.queue.Len())
	}
	if steps == 0 {
		return nil
	}

	pk, err := s.Peaks(ctx)
	if err != nil {
		s.opts.metricsCollector.RecordApply(steps, time.Since(started), err)
		return err
	}

	// One write per part, positions grouped in collection order.
	for pi := range s.parts {
		var (
			rows []int
			ms   []peaks.Matrix
		)
		for pos, ref := range s.rows {
			if ref.part != pi {
				continue
			}
			rows = append(rows, ref.row)
			ms = append(ms, pk[pos])
		}
		if len(rows) == 0 {
			continue
		}
		if err := s.parts[pi].backend.Write(ctx, rows, backend.Update{Peaks: ms}); err != nil {
			s.opts.metricsCollector.RecordApply(steps, time.Since(started), err)
			return err
		}
	}

	for i := range s.parts {
		s.parts[i].queue = processing.NewQueue()
	}

	s.opts.metricsCollector.RecordApply(steps, time.Since(started), nil)
	s.opts.logger.LogApply(ctx, steps, s.Len())
	return nil
}

// Subset returns a new collection holding the given spectra, in the
// given order. Duplicate indices are kept as requested. The backends
// are shared and the processing queue is carried over unchanged; only
// metadata rows are copied.
func (s *Spectra) Subset(indices ...int) (*Spectra, error) {
	if err := backend.CheckIndices(indices, s.Len()); err != nil {
		return nil, err
	}

	table, err := s.table.Select(indices)
	if err != nil {
		return nil, err
	}

	rows := make([]rowRef, len(indices))
	for i, idx := range indices {
		rows[i] = s.rows[idx]
	}

	return &Spectra{
		parts: slices.Clone(s.parts),
		rows:  rows,
		table: table,
		opts:  s.opts,
	}, nil
}

// Slice returns the subcollection covering positions [lo, hi).
func (s *Spectra) Slice(lo, hi int) (*Spectra, error) {
	if lo < 0 || hi > s.Len() || lo > hi {
		return nil, &backend.IndexOutOfRangeError{Index: hi, Count: s.Len()}
	}
	indices := make([]int, hi-lo)
	for i := range indices {
		indices[i] = lo + i
	}
	return s.Subset(indices...)
}

// Combine concatenates collections in argument order. The result's
// variable set is the union of all inputs'; rows lacking a variable
// another input carries read as the Null sentinel. Each input's
// backends keep their own processing queues, applied only to the
// spectra that originated from them. Options are taken from the first
// collection.
func Combine(collections ...*Spectra) (*Spectra, error) {
	if len(collections) == 0 {
		return nil, errors.New("spectra: nothing to combine")
	}
	if len(collections) == 1 {
		return collections[0].clone(), nil
	}

	out := &Spectra{opts: collections[0].opts}
	table := collections[0].table
	for _, c := range collections[1:] {
		table = table.Append(c.table)
	}
	out.table = table

	for _, c := range collections {
		offset := len(out.parts)
		out.parts = append(out.parts, c.parts...)
		for _, ref := range c.rows {
			out.rows = append(out.rows, rowRef{part: offset + ref.part, row: ref.row})
		}
	}
	return out, nil
}

// SetBackend migrates the collection to a new backend built by factory:
// all peak data is read through the current queue, the materialized
// spectra are handed to the factory, and the result replaces the old
// backends. The queue is emptied, since its effect is baked into the
// new backend's stored data. This is the one operation guaranteed to
// fully materialize lazy state regardless of backend writability.
//
// The receiver is unchanged; the migrated collection is returned. Old
// backends are not closed, as other collections may still reference
// them.
func (s *Spectra) SetBackend(ctx context.Context, factory backend.Factory) (*Spectra, error) {
	started := time.Now()

	pk, err := s.Peaks(ctx)
	if err != nil {
		s.opts.metricsCollector.RecordMigration(time.Since(started), err)
		return nil, err
	}

	b, err := factory(ctx, s.table.Clone(), pk)
	if err != nil {
		s.opts.metricsCollector.RecordMigration(time.Since(started), err)
		return nil, err
	}

	out, err := FromBackend(ctx, b)
	if err != nil {
		s.opts.metricsCollector.RecordMigration(time.Since(started), err)
		return nil, err
	}
	out.opts = s.opts

	s.opts.metricsCollector.RecordMigration(time.Since(started), nil)
	s.opts.logger.LogMigration(ctx, out.Len())
	return out, nil
}

// Close closes every distinct backend referenced by the collection.
// Backends are shared by subsets and combinations; close a collection
// only when no other view over the same backends is in use.
func (s *Spectra) Close() error {
	seen := make(map[backend.Backend]bool, len(s.parts))
	var errs []error
	for _, p := range s.parts {
		if seen[p.backend] {
			continue
		}
		seen[p.backend] = true
		if err := p.backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// clone returns a copy sharing backends but owning its parts slice and
// table, so queue rebinds and SetVar on one view never leak into
// another.
func (s *Spectra) clone() *Spectra {
	return &Spectra{
		parts: slices.Clone(s.parts),
		rows:  s.rows,
		table: s.table.Clone(),
		opts:  s.opts,
	}
}
