package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing named data blobs
// (raw spectra libraries, peaks files, exports).
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new writable blob. The blob becomes visible
	// once its WritableBlob is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically, replacing any existing blob.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over [off, off+length).
	// Remote implementations can serve this with a single ranged request.
	// A range extending past the end of the blob is truncated; an offset
	// at or past the end returns io.EOF.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	Close() error
}

// WritableBlob is a write-only handle to a blob under construction.
// Close commits the blob; until then readers do not see it.
type WritableBlob interface {
	io.Writer
	// Sync flushes buffered data to stable storage where supported.
	Sync() error
	Close() error
}

// Mappable is an optional interface for Blobs that support zero-copy access.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}
