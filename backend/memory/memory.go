// Package memory implements the in-memory storage backend.
//
// Everything lives in RAM: the metadata table and one peak matrix per
// spectrum. All fields are writable and reads have no I/O latency,
// making this the default backend for small collections and the target
// of choice when materializing lazy state. The cost is memory
// proportional to the full peak data.
package memory

import (
	"context"
	"sync"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

// DataStorage is the dataStorage value reported for in-memory spectra.
const DataStorage = "<memory>"

// Backend holds spectra entirely in memory. It is safe for concurrent
// use: reads take a shared lock and writes are serialized internally,
// including writers coming from different collections.
type Backend struct {
	mu    sync.RWMutex
	table *metadata.Table
	data  []peaks.Matrix
}

var _ backend.Backend = (*Backend)(nil)

// New creates an in-memory backend holding copies of the given table
// and peak lists. The dataStorage field is rewritten to DataStorage for
// every spectrum, since memory is now where the data lives.
func New(t *metadata.Table, pk []peaks.Matrix) (*Backend, error) {
	if t == nil {
		t = metadata.NewTable(len(pk))
	}
	if t.Len() != len(pk) {
		return nil, backend.ErrLengthMismatch
	}

	data := make([]peaks.Matrix, len(pk))
	for i, m := range pk {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		data[i] = m.Clone()
	}

	table := t.Clone()
	storage := make([]metadata.Value, table.Len())
	for i := range storage {
		storage[i] = metadata.String(DataStorage)
	}
	if err := table.SetColumn(metadata.FieldDataStorage, storage); err != nil {
		return nil, err
	}

	return &Backend{table: table, data: data}, nil
}

// Factory returns a backend.Factory creating in-memory backends, for
// use with backend migration.
func Factory() backend.Factory {
	return func(_ context.Context, t *metadata.Table, pk []peaks.Matrix) (backend.Backend, error) {
		return New(t, pk)
	}
}

// SpectrumCount returns the number of spectra.
func (b *Backend) SpectrumCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.data)
}

// Metadata returns a copy of the stored table, projected to the
// requested fields when fields is non-nil.
func (b *Backend) Metadata(_ context.Context, fields []string) (*metadata.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if fields == nil {
		return b.table.Clone(), nil
	}
	return b.table.Project(fields), nil
}

// Peaks returns copies of the stored matrices for the given indices, in
// request order.
func (b *Backend) Peaks(ctx context.Context, indices []int) ([]peaks.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := backend.CheckIndices(indices, len(b.data)); err != nil {
		return nil, err
	}

	out := make([]peaks.Matrix, len(indices))
	for i, idx := range indices {
		out[i] = b.data[idx].Clone()
	}
	return out, nil
}

// SupportsWrite reports true: every field of an in-memory backend is
// writable.
func (b *Backend) SupportsWrite() bool { return true }

// Write overwrites peak data and/or metadata for the given indices.
func (b *Backend) Write(ctx context.Context, indices []int, u backend.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.Validate(len(indices)); err != nil {
		return err
	}

	// Validate before touching anything so a rejected payload cannot
	// leave a partial write behind.
	for _, m := range u.Peaks {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	for field, vals := range u.Metadata {
		for _, v := range vals {
			if err := metadata.CheckField(field, v); err != nil {
				return err
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := backend.CheckIndices(indices, len(b.data)); err != nil {
		return err
	}

	for i, idx := range indices {
		if u.Peaks != nil {
			b.data[idx] = u.Peaks[i].Clone()
		}
		for field, vals := range u.Metadata {
			if err := b.table.Set(idx, field, vals[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reset is a no-op: an in-memory backend has no cache distinct from its
// storage, so written data is its current state.
func (b *Backend) Reset(context.Context) error { return nil }

// Close is a no-op.
func (b *Backend) Close() error { return nil }
