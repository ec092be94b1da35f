// Package peaksfile implements the columnar on-disk peaks backend.
//
// Metadata stays in memory; peak data lives in a single store file with
// one compressed block per spectrum, read through a shared memory
// mapping. The file carries its own spectrum index, an optional set of
// per-spectrum m/z hint filters and a metadata section, all guarded by
// checksums, so a store reopens into the exact state it was written in.
//
// The backend is writable, at rewrite granularity: every Write
// materializes the current state, streams a new store file next to the
// old one and renames it into place. Concurrent reads are safe; writes
// are serialized internally but not against other backends opened on
// the same file.
package peaksfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/codec"
	"github.com/manogenome/Spectra/internal/hash"
	"github.com/manogenome/Spectra/internal/mmap"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
	"github.com/manogenome/Spectra/resource"
)

// StoreFileExt is the store file extension.
const StoreFileExt = ".spkc"

// Options configure store creation.
type Options struct {
	// Codec is the per-spectrum block compression. Defaults to snappy.
	Codec Codec

	// MzHints builds per-spectrum m/z bloom filters, making the backend
	// answer peak-content hints without block reads.
	MzHints bool
}

// Option configures store creation.
type Option func(o *Options)

// WithCodec selects the block compression codec.
func WithCodec(c Codec) Option {
	return func(o *Options) { o.Codec = c }
}

// WithMzHints enables per-spectrum m/z hint filters.
func WithMzHints() Option {
	return func(o *Options) { o.MzHints = true }
}

func defaultOptions() Options {
	return Options{Codec: CodecSnappy}
}

// Backend serves spectra from a columnar store file.
type Backend struct {
	mu     sync.RWMutex
	path   string
	owned  bool // transient store, removed on Close
	codec  Codec
	hints  []*bloom.BloomFilter // nil when the store has none
	refs   []blockRef
	table  *metadata.Table
	m      *mmap.Mapping
	closed bool
}

var (
	_ backend.Backend  = (*Backend)(nil)
	_ backend.MzHinter = (*Backend)(nil)
)

// Create writes a new store file at path holding the given spectra and
// opens a backend on it. The file is kept on Close. An existing file at
// path is replaced atomically.
func Create(ctx context.Context, path string, t *metadata.Table, pk []peaks.Matrix, opts ...Option) (*Backend, error) {
	return create(ctx, path, false, t, pk, opts...)
}

// CreateTemp writes a store file with a generated name under dir (the
// default temp directory when dir is empty) and opens a backend that
// owns it exclusively: the file is removed on Close.
func CreateTemp(ctx context.Context, dir string, t *metadata.Table, pk []peaks.Matrix, opts ...Option) (*Backend, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "peaks-"+uuid.NewString()+StoreFileExt)
	return create(ctx, path, true, t, pk, opts...)
}

// Factory returns a backend.Factory that materializes collections into
// transient stores under dir, for use with backend migration.
func Factory(dir string, opts ...Option) backend.Factory {
	return func(ctx context.Context, t *metadata.Table, pk []peaks.Matrix) (backend.Backend, error) {
		return CreateTemp(ctx, dir, t, pk, opts...)
	}
}

func create(ctx context.Context, path string, owned bool, t *metadata.Table, pk []peaks.Matrix, opts ...Option) (*Backend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !o.Codec.valid() {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidCodec, uint32(o.Codec))
	}

	if t == nil {
		t = metadata.NewTable(len(pk))
	}
	if t.Len() != len(pk) {
		return nil, backend.ErrLengthMismatch
	}
	for _, m := range pk {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}

	table := t.Clone()
	if err := setStorageColumn(table, path); err != nil {
		return nil, err
	}

	if err := writeStoreFile(ctx, path, o.Codec, o.MzHints, table, pk); err != nil {
		return nil, err
	}

	b, err := open(ctx, path)
	if err != nil {
		if owned {
			os.Remove(path)
		}
		return nil, err
	}
	b.owned = owned
	return b, nil
}

// Open opens an existing store file. The file is kept on Close.
func Open(ctx context.Context, path string) (*Backend, error) {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	return open(ctx, path)
}

func open(ctx context.Context, path string) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("peaksfile: open %q: %w: %v", path, backend.ErrSourceUnavailable, err)
	}
	// Peak reads land on scattered blocks, not on a linear scan.
	_ = m.Advise(mmap.AccessRandom)

	b, err := loadStore(m, path)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("peaksfile: open %q: %w: %w", path, backend.ErrSourceUnavailable, err)
	}
	return b, nil
}

func loadStore(m *mmap.Mapping, path string) (*Backend, error) {
	data := m.Bytes()
	if len(data) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: file too small", ErrCorrupted)
	}

	var h fileHeader
	if err := h.decode(data); err != nil {
		return nil, err
	}

	payload := data[headerSize : len(data)-trailerSize]
	trailer := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if crcOfPayload(payload) != trailer {
		return nil, fmt.Errorf("%w: payload checksum mismatch", ErrCorrupted)
	}

	end := uint64(len(data) - trailerSize)
	if h.IndexOff < headerSize || h.IndexOff > end {
		return nil, fmt.Errorf("%w: index out of bounds", ErrCorrupted)
	}
	// Bound the count by what the index section can hold before any
	// int conversion, so a garbage count cannot wrap the arithmetic
	// below or size an allocation.
	if h.Count > (end-h.IndexOff)/blockRefSize {
		return nil, fmt.Errorf("%w: index out of bounds", ErrCorrupted)
	}
	count := int(h.Count)

	refs, err := decodeIndex(data[h.IndexOff:], count)
	if err != nil {
		return nil, err
	}
	for i, r := range refs {
		stored := uint64(r.CompressedLen)
		if stored == 0 {
			stored = uint64(r.rawLen())
		}
		if r.Offset < headerSize || r.Offset+stored > h.IndexOff {
			return nil, fmt.Errorf("%w: block %d out of bounds", ErrCorrupted, i)
		}
	}

	var hints []*bloom.BloomFilter
	if h.hasHints() {
		if h.HintsOff < headerSize || h.HintsOff > end {
			return nil, fmt.Errorf("%w: hint section out of bounds", ErrCorrupted)
		}
		hints, err = decodeHints(data[h.HintsOff:end], count)
		if err != nil {
			return nil, err
		}
	}

	table := metadata.NewTable(count)
	if h.hasMeta() {
		if h.MetaOff < headerSize || h.MetaOff+4 > end {
			return nil, fmt.Errorf("%w: metadata section out of bounds", ErrCorrupted)
		}
		table, err = decodeTableMeta(data[h.MetaOff:end], count)
		if err != nil {
			return nil, err
		}
	}
	if err := setStorageColumn(table, path); err != nil {
		return nil, err
	}

	return &Backend{
		path:  path,
		codec: h.Codec,
		hints: hints,
		refs:  refs,
		table: table,
		m:     m,
	}, nil
}

// Path returns the store file path.
func (b *Backend) Path() string { return b.path }

// SpectrumCount returns the number of spectra in the store.
func (b *Backend) SpectrumCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.refs)
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

// Peaks decodes the blocks of the given indices, in request order.
// Reads are charged against the IO budget of a resource controller
// carried by ctx, when one is.
func (b *Backend) Peaks(ctx context.Context, indices []int) ([]peaks.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	if err := backend.CheckIndices(indices, len(b.refs)); err != nil {
		return nil, err
	}

	rc := resource.FromContext(ctx)
	data := b.m.Bytes()

	out := make([]peaks.Matrix, len(indices))
	for i, idx := range indices {
		ref := b.refs[idx]
		stored := int(ref.CompressedLen)
		if stored == 0 {
			stored = ref.rawLen()
		}
		if err := rc.AcquireIO(ctx, int64(stored)); err != nil {
			return nil, err
		}

		m, err := decodeBlock(data[ref.Offset:ref.Offset+uint64(stored)], ref, b.codec)
		if err != nil {
			return nil, fmt.Errorf("peaksfile: spectrum %d: %w", idx, err)
		}
		out[i] = m
	}
	return out, nil
}

// SupportsWrite reports true. Writes rewrite the store file.
func (b *Backend) SupportsWrite() bool { return true }

// Write overwrites peak data and/or metadata for the given indices and
// persists the result by streaming a replacement store file and
// renaming it into place. The old state stays untouched on any failure
// before the rename.
func (b *Backend) Write(ctx context.Context, indices []int, u backend.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.Validate(len(indices)); err != nil {
		return err
	}
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

	if b.closed {
		return errClosed()
	}
	if err := backend.CheckIndices(indices, len(b.refs)); err != nil {
		return err
	}
	if u.IsEmpty() {
		return nil
	}

	all, err := b.decodeAllLocked(ctx)
	if err != nil {
		return err
	}

	table := b.table.Clone()
	for i, idx := range indices {
		if u.Peaks != nil {
			all[idx] = u.Peaks[i]
		}
		for field, vals := range u.Metadata {
			if err := table.Set(idx, field, vals[i]); err != nil {
				return err
			}
		}
	}

	return b.rewriteLocked(ctx, table, all)
}

// Reset is a no-op: the store has no cached state apart from the file
// itself, and writes are final once renamed into place.
func (b *Backend) Reset(context.Context) error { return nil }

// Close unmaps the store and, for transient stores, removes the file.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	err := b.m.Close()
	if b.owned {
		if rmErr := os.Remove(b.path); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// MayContainMz answers the stored-peak content hint for one spectrum.
// Without hint filters, or for an unknown index, it answers true so the
// caller verifies against real peak data.
func (b *Backend) MayContainMz(index int, mz, tolerance float64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.hints == nil || index < 0 || index >= len(b.hints) {
		return true
	}
	return testHint(b.hints[index], mz, tolerance)
}

func (b *Backend) decodeAllLocked(ctx context.Context) ([]peaks.Matrix, error) {
	rc := resource.FromContext(ctx)
	data := b.m.Bytes()

	all := make([]peaks.Matrix, len(b.refs))
	for i, ref := range b.refs {
		stored := int(ref.CompressedLen)
		if stored == 0 {
			stored = ref.rawLen()
		}
		if err := rc.AcquireIO(ctx, int64(stored)); err != nil {
			return nil, err
		}
		m, err := decodeBlock(data[ref.Offset:ref.Offset+uint64(stored)], ref, b.codec)
		if err != nil {
			return nil, fmt.Errorf("peaksfile: spectrum %d: %w", i, err)
		}
		all[i] = m
	}
	return all, nil
}

// rewriteLocked streams the new state into a temp file, renames it over
// the store and remaps. The rename is the commit point.
func (b *Backend) rewriteLocked(ctx context.Context, table *metadata.Table, all []peaks.Matrix) error {
	if err := writeStoreFile(ctx, b.path, b.codec, b.hints != nil, table, all); err != nil {
		return err
	}

	old := b.m
	m, err := mmap.Open(b.path)
	if err != nil {
		// The rename went through but the new state cannot be mapped;
		// the backend has nothing consistent left to serve.
		b.closed = true
		old.Close()
		return fmt.Errorf("peaksfile: remap %q: %w", b.path, err)
	}

	nb, err := loadStore(m, b.path)
	if err != nil {
		b.closed = true
		m.Close()
		old.Close()
		return fmt.Errorf("peaksfile: remap %q: %w", b.path, err)
	}

	old.Close()
	b.codec = nb.codec
	b.hints = nb.hints
	b.refs = nb.refs
	b.table = nb.table
	b.m = nb.m
	return nil
}

// writeStoreFile streams a complete store file to a temporary name next
// to path and renames it into place. A resource controller carried in
// ctx throttles the stream: the rewrite holds one background worker
// slot and every written byte passes through the IO budget.
func writeStoreFile(ctx context.Context, path string, c Codec, withHints bool, table *metadata.Table, all []peaks.Matrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rc := resource.FromContext(ctx)
	if err := rc.AcquireBackground(ctx); err != nil {
		return err
	}
	defer rc.ReleaseBackground()

	f, err := os.CreateTemp(filepath.Dir(path), ".spkc-*")
	if err != nil {
		return fmt.Errorf("peaksfile: create store: %w", err)
	}
	tmp := f.Name()

	cleanup := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return err
	}

	w := resource.NewRateLimitedWriter(ctx, f, rc)
	if _, err := w.Write(make([]byte, headerSize)); err != nil {
		return cleanup(err)
	}

	sw, payloadSum := newSectionWriter(w)

	refs := make([]blockRef, len(all))
	for i, m := range all {
		block, ref, err := encodeBlock(m, c)
		if err != nil {
			return cleanup(err)
		}
		ref.Offset = sw.off
		refs[i] = ref
		if _, err := sw.Write(block); err != nil {
			return cleanup(err)
		}
	}

	h := fileHeader{
		Magic:    formatMagic,
		Version:  formatVersion,
		Codec:    c,
		Count:    uint64(len(all)),
		IndexOff: sw.off,
	}
	if _, err := sw.Write(encodeIndex(refs)); err != nil {
		return cleanup(err)
	}

	if withHints {
		hints := make([]*bloom.BloomFilter, len(all))
		for i, m := range all {
			hints[i] = buildHint(m)
		}
		encoded, err := encodeHints(hints)
		if err != nil {
			return cleanup(err)
		}
		h.Flags |= flagHasHints
		h.HintsOff = sw.off
		if _, err := sw.Write(encoded); err != nil {
			return cleanup(err)
		}
	}

	meta, err := encodeTableMeta(table)
	if err != nil {
		return cleanup(err)
	}
	h.Flags |= flagHasMeta
	h.MetaOff = sw.off
	if _, err := sw.Write(meta); err != nil {
		return cleanup(err)
	}

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint32(trailer[:], payloadSum())
	if _, err := w.Write(trailer[:]); err != nil {
		return cleanup(err)
	}

	if _, err := w.Seek(0, 0); err != nil {
		return cleanup(err)
	}
	if _, err := w.Write(h.encode()); err != nil {
		return cleanup(err)
	}

	if err := f.Sync(); err != nil {
		return cleanup(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("peaksfile: commit store: %w", err)
	}
	return nil
}

// tableMeta is the persisted form of the metadata table.
type tableMeta struct {
	Rows    int                         `json:"rows"`
	Fields  []string                    `json:"fields"`
	Columns map[string][]metadata.Value `json:"columns"`
}

func encodeTableMeta(t *metadata.Table) ([]byte, error) {
	tm := tableMeta{
		Rows:    t.Len(),
		Fields:  t.Fields(),
		Columns: make(map[string][]metadata.Value, len(t.Fields())),
	}
	for _, name := range tm.Fields {
		col, _ := t.Column(name)
		tm.Columns[name] = col
	}

	data, err := codec.Default.Marshal(tm)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(out, uint32(len(data)))
	copy(out[4:], data)
	return out, nil
}

func decodeTableMeta(data []byte, count int) (*metadata.Table, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: short metadata section", ErrCorrupted)
	}
	sz := int(binary.LittleEndian.Uint32(data))
	if 4+sz > len(data) {
		return nil, fmt.Errorf("%w: short metadata section", ErrCorrupted)
	}

	var tm tableMeta
	if err := codec.Default.Unmarshal(data[4:4+sz], &tm); err != nil {
		return nil, fmt.Errorf("%w: metadata section: %v", ErrCorrupted, err)
	}
	if tm.Rows != count {
		return nil, fmt.Errorf("%w: metadata for %d spectra, store has %d", ErrCorrupted, tm.Rows, count)
	}

	t := metadata.NewTable(tm.Rows)
	for _, name := range tm.Fields {
		col, ok := tm.Columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: metadata column %q missing", ErrCorrupted, name)
		}
		if err := t.SetColumn(name, col); err != nil {
			return nil, fmt.Errorf("%w: metadata column %q: %v", ErrCorrupted, name, err)
		}
	}
	return t, nil
}

func setStorageColumn(t *metadata.Table, path string) error {
	storage := make([]metadata.Value, t.Len())
	for i := range storage {
		storage[i] = metadata.String(path)
	}
	return t.SetColumn(metadata.FieldDataStorage, storage)
}

func errClosed() error {
	return fmt.Errorf("peaksfile: %w: store closed", backend.ErrSourceUnavailable)
}

func crcOfPayload(payload []byte) uint32 {
	return hash.CRC32C(payload)
}
