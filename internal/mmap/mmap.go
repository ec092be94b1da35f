// Package mmap maps store files read-only into memory.
//
// Peak store files for large experiments run into the gigabytes, and
// reads hit small blocks scattered across the whole file. Mapping the
// file gives zero-copy access to every block without pulling the file
// through read buffers:
//
//	m, err := mmap.Open("run42.spkc")
//	if err != nil { ... }
//	defer m.Close()
//	m.Advise(mmap.AccessRandom)
//	payload := m.Bytes()
//
// A Mapping is safe for concurrent reads. Close is idempotent, but the
// caller owns the guarantee that no goroutine touches Bytes after
// Close returns; the slice points at unmapped memory afterwards.
//
// Unix platforms map with mmap(2) and pass access hints to madvise(2).
// Windows maps with CreateFileMapping/MapViewOfFile and ignores hints.
package mmap

import (
	"errors"
	"os"
	"sync/atomic"
)

// AccessPattern hints the kernel at the expected read pattern.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	AccessSequential
	AccessRandom
	AccessWillNeed
)

// ErrClosed is returned for operations on a closed mapping.
var ErrClosed = errors.New("mmap: mapping is closed")

// Mapping is a read-only memory-mapped file.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func() error
}

// Open maps the file at path read-only. An empty file yields an empty
// mapping with no backing pages.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &Mapping{}, nil
	}

	data, unmap, err := mapFile(f, int(fi.Size()))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Bytes returns the mapped file contents. The slice is only valid
// until Close; nil after.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Len returns the mapped size in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Advise passes an access-pattern hint to the kernel. Hints are
// advisory; failures to apply one are not reported as errors.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return advise(m.data, pattern)
}

// Close unmaps the file. Idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap == nil {
		return nil
	}
	return m.unmap()
}
