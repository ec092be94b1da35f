// Package blobstore provides storage abstraction for spectra data blobs.
//
// BlobStore is the interface for reading and writing named blobs: raw
// spectra libraries, peaks files, and exports. Implementations must be
// safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-memory store for tests
//   - s3.Store: Amazon S3 with range reads and parallel uploads
//   - minio.Store: S3-compatible object storage via the MinIO client
//   - CachingStore: read-through block cache wrapping any of the above
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for writing
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// For cloud backends, ReadRange allows efficient partial reads:
//
//	type Blob interface {
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, length) (io.ReadCloser, error)
//	    Size() int64
//	    Close() error
//	}
package blobstore
