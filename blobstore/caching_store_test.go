package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manogenome/Spectra/internal/cache"
)

type mockBlob struct {
	data      []byte
	reads     int
	readBytes int
}

func (m *mockBlob) Close() error { return nil }
func (m *mockBlob) Size() int64  { return int64(len(m.data)) }
func (m *mockBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	m.readBytes += n
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mockBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(m.data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(m.data)))
	return io.NopCloser(newByteReader(m.data[off:end])), nil
}

func newByteReader(b []byte) io.Reader {
	r := byteReader(b)
	return &r
}

type byteReader []byte

func (r *byteReader) Read(p []byte) (int, error) {
	if len(*r) == 0 {
		return 0, io.EOF
	}
	n := copy(p, *r)
	*r = (*r)[n:]
	return n, nil
}

type mockStore struct {
	blobs map[string]*mockBlob
	opens int
}

func (m *mockStore) Open(ctx context.Context, name string) (Blob, error) {
	m.opens++
	if b, ok := m.blobs[name]; ok {
		return b, nil
	}
	return nil, ErrNotFound
}
func (m *mockStore) Create(ctx context.Context, name string) (WritableBlob, error) { return nil, nil }
func (m *mockStore) Put(ctx context.Context, name string, data []byte) error {
	if m.blobs == nil {
		m.blobs = make(map[string]*mockBlob)
	}
	m.blobs[name] = &mockBlob{data: data}
	return nil
}
func (m *mockStore) Delete(ctx context.Context, name string) error             { return nil }
func (m *mockStore) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }

func TestCachingStore_ReadAt(t *testing.T) {
	data := make([]byte, 1024) // 1KB
	for i := range data {
		data[i] = byte(i % 255)
	}

	inner := &mockStore{
		blobs: map[string]*mockBlob{
			"test": {data: data},
		},
	}

	c := cache.NewLRU(1024*1024, nil)       // 1MB cache
	store := NewCachingStore(inner, c, 256) // 256 bytes block size

	ctx := context.Background()
	blob, err := store.Open(ctx, "test")
	require.NoError(t, err)

	// 1. Read first block (bytes 0-100)
	buf := make([]byte, 100)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[:100], buf)

	// Inner blob should have been read (Block 0)
	mBlob := inner.blobs["test"]
	assert.Equal(t, 1, mBlob.reads)
	assert.Equal(t, 256, mBlob.readBytes) // Read full block 0 (256 bytes)

	// 2. Read same range again -> Should hit cache
	n, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, 1, mBlob.reads) // Reads count unchanged

	// 3. Read spanning two blocks (bytes 200-300). Block 0 is cached, block 1 is not.
	buf2 := make([]byte, 100)
	n, err = blob.ReadAt(ctx, buf2, 200)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[200:300], buf2)

	// Inner blob should have been read once more (for Block 1)
	assert.Equal(t, 2, mBlob.reads)
	assert.Equal(t, 256+256, mBlob.readBytes)

	// 4. Read Block 1 again -> cache hit
	_, err = blob.ReadAt(ctx, buf2, 260)
	require.NoError(t, err)
	assert.Equal(t, 2, mBlob.reads)
}

func TestCachingStore_Coalescing(t *testing.T) {
	data := make([]byte, 10*1024)
	inner := &mockStore{
		blobs: map[string]*mockBlob{
			"test": {data: data},
		},
	}
	store := NewCachingStore(inner, cache.NewLRU(1024*1024, nil), 1024)

	ctx := context.Background()
	blob, err := store.Open(ctx, "test")
	require.NoError(t, err)

	// Cold read of 10 blocks: one coalesced backend request.
	buf := make([]byte, 10*1024)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 10*1024, n)
	assert.Equal(t, 1, inner.blobs["test"].reads)
}

func TestCachingStore_SmallFile(t *testing.T) {
	data := []byte("hello")
	inner := &mockStore{
		blobs: map[string]*mockBlob{
			"small": {data: data},
		},
	}
	c := cache.NewLRU(1024, nil)
	store := NewCachingStore(inner, c, 256)

	ctx := context.Background()
	blob, err := store.Open(ctx, "small")
	require.NoError(t, err)

	// Short read at EOF.
	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 0)
	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, data, buf[:n])
}

func TestCachingStore_ReadRange(t *testing.T) {
	data := []byte("0123456789")
	inner := &mockStore{
		blobs: map[string]*mockBlob{
			"r": {data: data},
		},
	}
	store := NewCachingStore(inner, cache.NewLRU(1024, nil), 4)

	ctx := context.Background()
	blob, err := store.Open(ctx, "r")
	require.NoError(t, err)

	r, err := blob.ReadRange(ctx, 2, 5)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "23456", string(content))

	// Truncated at EOF.
	r, err = blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "89", string(content))

	// Offset past EOF.
	_, err = blob.ReadRange(ctx, 20, 5)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCachingStore_PutInvalidates(t *testing.T) {
	inner := &mockStore{}
	require.NoError(t, inner.Put(context.Background(), "v", []byte("old value")))

	c := cache.NewLRU(1024, nil)
	store := NewCachingStore(inner, c, 4)

	ctx := context.Background()
	blob, err := store.Open(ctx, "v")
	require.NoError(t, err)

	buf := make([]byte, 3)
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "old", string(buf))

	// Replace the blob; cached blocks must not survive.
	require.NoError(t, store.Put(ctx, "v", []byte("new value")))

	blob2, err := store.Open(ctx, "v")
	require.NoError(t, err)
	_, err = blob2.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "new", string(buf))
}
