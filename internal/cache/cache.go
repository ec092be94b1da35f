// Package cache keeps recently read blob blocks in memory.
//
// Remote spectral libraries are read in small ranged requests, often
// hitting the same regions over and over while a collection iterates.
// The caching blob store slices blobs into fixed blocks and parks them
// here, so repeated peak reads stop turning into network round trips.
// Admission is charged against the resource controller's memory budget
// when one is attached.
package cache

// Key addresses one block of one blob. Block is the block-aligned
// index within the blob, not a byte offset.
type Key struct {
	Source string
	Block  uint64
}

// BlockCache stores immutable byte blocks. Returned slices are shared
// and must not be written to.
type BlockCache interface {
	Get(key Key) ([]byte, bool)
	Set(key Key, b []byte)

	// Drop removes every block belonging to the named source. Called
	// when a blob is overwritten or deleted.
	Drop(source string)

	Stats() Stats
}

// Stats is a point-in-time hit/miss counter snapshot.
type Stats struct {
	Hits   int64
	Misses int64
}
