// Package mspfile implements the on-demand raw-file backend over MSP
// text spectral libraries.
//
// Opening a library decodes every entry once: header and comment fields
// go into an in-memory metadata table, and each entry's byte range in
// its source is recorded. Peak data is not retained; every Peaks call
// re-reads exactly the requested entries through ranged reads on the
// source blob. That keeps memory at metadata size regardless of peak
// volume, at the cost of read latency per request.
//
// Sources are resolved through a blobstore.Store, so a library may live
// on local disk, in memory or in an S3/MinIO bucket. Peak data is
// read-only: writes to metadata update the in-memory table, writes to
// peaks fail with backend.ErrUnsupportedOperation. Reset restores the
// metadata to its originally-decoded state.
package mspfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/blobstore"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/msp"
	"github.com/manogenome/Spectra/peaks"
)

// entryRef locates one spectrum's bytes inside a source blob.
type entryRef struct {
	source int // index into b.blobs
	offset int64
	length int64
}

// Backend serves spectra from one or more MSP libraries. Reads are safe
// for concurrent use; metadata writes are serialized internally.
type Backend struct {
	mu       sync.RWMutex
	store    blobstore.BlobStore
	sources  []string
	blobs    []blobstore.Blob
	refs     []entryRef
	table    *metadata.Table
	pristine *metadata.Table
	closed   bool
}

var (
	_ backend.Backend            = (*Backend)(nil)
	_ backend.PeakWriteSupporter = (*Backend)(nil)
	_ backend.Exporter           = (*Backend)(nil)
)

// Open binds a backend to the given MSP libraries, decoded in argument
// order and logically concatenated. It fails with
// backend.ErrSourceUnavailable when a source cannot be opened, and with
// a *msp.SyntaxError when one is malformed.
func Open(ctx context.Context, store blobstore.BlobStore, sources ...string) (*Backend, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources given: %w", backend.ErrSourceUnavailable)
	}

	b := &Backend{store: store, sources: sources}
	var docs []metadata.Document

	for si, src := range sources {
		blob, err := store.Open(ctx, src)
		if err != nil {
			b.closeBlobs()
			return nil, fmt.Errorf("open %q: %w: %w", src, backend.ErrSourceUnavailable, err)
		}
		b.blobs = append(b.blobs, blob)

		rc, err := blob.ReadRange(ctx, 0, blob.Size())
		if err != nil {
			b.closeBlobs()
			return nil, fmt.Errorf("read %q: %w", src, err)
		}
		entries, err := msp.ReadAll(rc)
		rc.Close()
		if err != nil {
			b.closeBlobs()
			return nil, fmt.Errorf("decode %q: %w", src, err)
		}

		for _, e := range entries {
			doc := e.Fields.Clone()
			if e.Name != "" {
				doc["name"] = metadata.String(e.Name)
			}
			doc[metadata.FieldDataOrigin] = metadata.String(src)
			doc[metadata.FieldDataStorage] = metadata.String(src)
			docs = append(docs, doc)
			b.refs = append(b.refs, entryRef{source: si, offset: e.Offset, length: e.Length})
		}
	}

	table := metadata.NewTable(len(docs))
	for i, doc := range docs {
		if err := table.SetRow(i, doc); err != nil {
			b.closeBlobs()
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	b.table = table
	b.pristine = table.Clone()

	return b, nil
}

func (b *Backend) closeBlobs() {
	for _, blob := range b.blobs {
		blob.Close()
	}
	b.blobs = nil
}

// Sources returns the bound source names in open order.
func (b *Backend) Sources() []string {
	out := make([]string, len(b.sources))
	copy(out, b.sources)
	return out
}

// SpectrumCount returns the number of decoded entries across all
// sources.
func (b *Backend) SpectrumCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.refs)
}

// Metadata returns a copy of the decoded table, projected to the
// requested fields when fields is non-nil.
func (b *Backend) Metadata(_ context.Context, fields []string) (*metadata.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	if fields == nil {
		return b.table.Clone(), nil
	}
	return b.table.Project(fields), nil
}

// Peaks re-reads and re-decodes the requested entries from their
// sources, in request order.
func (b *Backend) Peaks(ctx context.Context, indices []int) ([]peaks.Matrix, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	if err := backend.CheckIndices(indices, len(b.refs)); err != nil {
		return nil, err
	}

	out := make([]peaks.Matrix, len(indices))
	for i, idx := range indices {
		m, err := b.readEntry(ctx, b.refs[idx])
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", idx, err)
		}
		out[i] = m
	}
	return out, nil
}

func (b *Backend) readEntry(ctx context.Context, ref entryRef) (peaks.Matrix, error) {
	rc, err := b.blobs[ref.source].ReadRange(ctx, ref.offset, ref.length)
	if err != nil {
		return peaks.Matrix{}, err
	}
	defer rc.Close()

	r := msp.NewReader(rc)
	if !r.Next() {
		if err := r.Err(); err != nil {
			return peaks.Matrix{}, err
		}
		return peaks.Matrix{}, io.ErrUnexpectedEOF
	}
	return r.Entry().Peaks, nil
}

// SupportsWrite reports true: metadata is writable. Peak columns are
// not, see SupportsPeakWrite.
func (b *Backend) SupportsWrite() bool { return true }

// SupportsPeakWrite reports false: peak data lives in the source
// libraries, which this backend never modifies.
func (b *Backend) SupportsPeakWrite() bool { return false }

// Write updates metadata for the given indices. Peak updates fail with
// backend.ErrUnsupportedOperation: the source libraries are read-only.
func (b *Backend) Write(ctx context.Context, indices []int, u backend.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.Peaks != nil {
		return fmt.Errorf("peak data of an MSP-backed store is read-only: %w", backend.ErrUnsupportedOperation)
	}
	if err := u.Validate(len(indices)); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	if err := backend.CheckIndices(indices, len(b.refs)); err != nil {
		return err
	}

	for field, vals := range u.Metadata {
		for _, v := range vals {
			if err := metadata.CheckField(field, v); err != nil {
				return err
			}
		}
	}
	for i, idx := range indices {
		for field, vals := range u.Metadata {
			if err := b.table.Set(idx, field, vals[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reset restores the metadata table to the state decoded at Open,
// discarding every Write since. Peak data is untouched, as it was never
// modified.
func (b *Backend) Reset(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	b.table = b.pristine.Clone()
	return nil
}

// Close releases the source blob handles. The source libraries
// themselves are left in place: the backend never owns them
// exclusively.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, blob := range b.blobs {
		if err := blob.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.blobs = nil
	return errors.Join(errs...)
}

// Export writes the given view as an MSP library named destination in
// the backend's blob store. Only the ".msp" destination format is
// supported; fields MSP cannot represent are dropped by the writer.
func (b *Backend) Export(ctx context.Context, t *metadata.Table, pk []peaks.Matrix, destination string, opts backend.ExportOptions) error {
	if !strings.EqualFold(path.Ext(destination), ".msp") {
		return fmt.Errorf("destination %q: %w", destination, backend.ErrUnsupportedFormat)
	}
	if t.Len() != len(pk) {
		return backend.ErrLengthMismatch
	}
	if !opts.Overwrite {
		if blob, err := b.store.Open(ctx, destination); err == nil {
			blob.Close()
			return fmt.Errorf("destination %q exists", destination)
		}
	}

	wb, err := b.store.Create(ctx, destination)
	if err != nil {
		return err
	}

	w := msp.NewWriter(wb)
	for i := 0; i < t.Len(); i++ {
		fields := t.Row(i)
		if opts.Fields != nil {
			kept := make(metadata.Document, len(opts.Fields))
			for _, name := range opts.Fields {
				if v, ok := fields[name]; ok {
					kept[name] = v
				}
			}
			fields = kept
		}

		name, _ := fields["name"].AsString()
		e := &msp.Entry{Name: name, Fields: fields, Peaks: pk[i]}
		if err := w.Write(e); err != nil {
			wb.Close()
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		wb.Close()
		return err
	}
	return wb.Close()
}

func errClosed() error {
	return errors.New("mspfile: backend is closed")
}
