package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process memory. It backs tests and
// short-lived scratch libraries; nothing survives the process.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open returns a snapshot of the named blob. Later Puts under the same
// name do not show through an open handle.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &memBlob{data: bytes.Clone(data)}, nil
}

// Create returns a writable blob that becomes visible under name when
// closed. Until then, readers see the previous contents, if any.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memWriter{store: m, name: name}, nil
}

// Put stores data under name, replacing any previous blob.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	m.blobs[name] = bytes.Clone(data)
	m.mu.Unlock()
	return nil
}

// Delete removes the named blob. Deleting a missing blob is not an
// error.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List returns the names under prefix, sorted.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

type memBlob struct {
	data []byte
}

func (b *memBlob) Size() int64 { return int64(len(b.data)) }

func (b *memBlob) Close() error { return nil }

func (b *memBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.Size() {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.Size() {
		return nil, io.EOF
	}
	end := min(off+length, b.Size())
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

type memWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Sync() error { return nil }

func (w *memWriter) Close() error {
	w.store.mu.Lock()
	w.store.blobs[w.name] = bytes.Clone(w.buf.Bytes())
	w.store.mu.Unlock()
	return nil
}
