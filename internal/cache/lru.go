package cache

import (
	"sync"
	"sync/atomic"

	"github.com/manogenome/Spectra/resource"
)

// LRU is a byte-capacity-bounded block cache with least-recently-used
// eviction. All block bytes admitted are charged against the attached
// resource controller; when the controller refuses the memory, the
// block is simply not cached.
type LRU struct {
	mu    sync.Mutex
	limit int64
	used  int64
	table map[Key]*node
	head  *node // most recent
	tail  *node // eviction candidate
	rc    *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type node struct {
	key        Key
	data       []byte
	prev, next *node
}

var _ BlockCache = (*LRU)(nil)

// NewLRU returns a cache holding at most limit bytes of block data.
func NewLRU(limit int64, rc *resource.Controller) *LRU {
	return &LRU{
		limit: limit,
		table: make(map[Key]*node),
		rc:    rc,
	}
}

func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.table[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.moveToFront(n)
	return n.data, true
}

func (c *LRU) Set(key Key, b []byte) {
	size := int64(len(b))
	if size > c.limit {
		// Larger than the whole cache, never admitted.
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.table[key]; ok {
		c.replace(n, b)
		return
	}

	// Make room locally before charging the controller, so evicted
	// bytes are returned to the budget first.
	for c.used+size > c.limit && c.tail != nil {
		c.remove(c.tail)
	}
	if !c.rc.TryAcquireMemory(size) {
		return
	}

	n := &node{key: key, data: b}
	c.table[key] = n
	c.pushFront(n)
	c.used += size
}

func (c *LRU) replace(n *node, b []byte) {
	oldSize, newSize := int64(len(n.data)), int64(len(b))
	if newSize > oldSize && !c.rc.TryAcquireMemory(newSize-oldSize) {
		// Keep the old block rather than exceed the budget.
		c.moveToFront(n)
		return
	}
	if newSize < oldSize {
		c.rc.ReleaseMemory(oldSize - newSize)
	}
	n.data = b
	c.used += newSize - oldSize
	c.moveToFront(n)
	for c.used > c.limit && c.tail != nil {
		c.remove(c.tail)
	}
}

func (c *LRU) Drop(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, n := range c.table {
		if key.Source == source {
			c.remove(n)
		}
	}
}

func (c *LRU) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Used returns the current number of cached bytes.
func (c *LRU) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *LRU) remove(n *node) {
	c.unlink(n)
	delete(c.table, n.key)
	size := int64(len(n.data))
	c.used -= size
	c.rc.ReleaseMemory(size)
}

func (c *LRU) pushFront(n *node) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU) moveToFront(n *node) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *LRU) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
