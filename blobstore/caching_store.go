package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/manogenome/Spectra/internal/cache"
)

// fetchFanout caps concurrent backend requests per read, so a cold
// read over a large range does not exhaust connections.
const fetchFanout = 16

// CachingStore wraps a BlobStore with block-level read caching. It is
// meant for remote stores, where every small peak read would otherwise
// become its own ranged request.
type CachingStore struct {
	inner     BlobStore
	blocks    cache.BlockCache
	blockSize int64
}

var _ BlobStore = (*CachingStore)(nil)

// NewCachingStore wraps inner with the given block cache. blockSize
// defaults to 4KiB when not positive.
func NewCachingStore(inner BlobStore, blocks cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &CachingStore{inner: inner, blocks: blocks, blockSize: blockSize}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachedBlob{inner: b, blocks: s.blocks, name: name, blockSize: s.blockSize}, nil
}

// Create drops cached blocks of name: whatever lands in the new blob
// supersedes them. Writes themselves are passed straight through.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.blocks.Drop(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.blocks.Drop(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.blocks.Drop(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// cachedBlob serves reads block by block out of the cache, fetching
// missing runs from the wrapped blob.
type cachedBlob struct {
	inner     Blob
	blocks    cache.BlockCache
	name      string
	blockSize int64
}

var _ Blob = (*cachedBlob)(nil)

func (b *cachedBlob) Close() error { return b.inner.Close() }

func (b *cachedBlob) Size() int64 { return b.inner.Size() }

func (b *cachedBlob) key(block int64) cache.Key {
	return cache.Key{Source: b.name, Block: uint64(block)}
}

func (b *cachedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	first := off / b.blockSize
	last := (off + int64(len(p)) - 1) / b.blockSize
	if err := b.fetchMissing(ctx, first, last); err != nil {
		return 0, err
	}

	total := 0
	for blk := first; blk <= last; blk++ {
		data, err := b.block(ctx, blk)
		if err != nil {
			return total, err
		}

		blkStart := blk * b.blockSize
		from := max(blkStart, off) - blkStart
		want := min(blkStart+b.blockSize, off+int64(len(p))) - blkStart
		if from >= int64(len(data)) {
			break // short final block
		}
		want = min(want, int64(len(data)))
		total += copy(p[blkStart+from-off:], data[from:want])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fetchMissing loads uncached blocks in [first, last], coalescing
// consecutive misses into single ranged requests issued concurrently.
func (b *cachedBlob) fetchMissing(ctx context.Context, first, last int64) error {
	type span struct{ start, count int64 }
	var missing []span

	open := int64(-1)
	for blk := first; blk <= last; blk++ {
		if _, ok := b.blocks.Get(b.key(blk)); ok {
			if open >= 0 {
				missing = append(missing, span{open, blk - open})
				open = -1
			}
			continue
		}
		if open < 0 {
			open = blk
		}
	}
	if open >= 0 {
		missing = append(missing, span{open, last - open + 1})
	}
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchFanout)
	for _, run := range missing {
		g.Go(func() error {
			start := run.start * b.blockSize
			size := run.count * b.blockSize
			if total := b.Size(); start >= total {
				return nil
			} else if start+size > total {
				size = total - start
			}

			buf := make([]byte, size)
			n, err := b.inner.ReadAt(gctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}

			for i := int64(0); i < run.count; i++ {
				lo := i * b.blockSize
				if lo >= int64(n) {
					break
				}
				hi := min(lo+b.blockSize, int64(n))
				// Own copy per block, so one entry does not pin the
				// whole run buffer.
				blockData := make([]byte, hi-lo)
				copy(blockData, buf[lo:hi])
				b.blocks.Set(b.key(run.start+i), blockData)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *cachedBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.blocks.Get(b.key(blk)); ok {
		return data, nil
	}

	// Evicted between fetchMissing and here; read around the cache.
	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	data := buf[:n]
	if n > 0 {
		b.blocks.Set(b.key(blk), data)
	}
	return data, nil
}

func (b *cachedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.Size() {
		return nil, io.EOF
	}
	end := min(off+length, b.Size())
	return io.NopCloser(&blobSection{blob: b, ctx: ctx, off: off, end: end}), nil
}

// blobSection adapts a byte range of a cached blob to io.Reader.
type blobSection struct {
	blob *cachedBlob
	ctx  context.Context
	off  int64
	end  int64
}

func (r *blobSection) Read(p []byte) (int, error) {
	if r.off >= r.end {
		return 0, io.EOF
	}
	if remaining := r.end - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	return n, err
}
