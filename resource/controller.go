package resource

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds the budgets a Controller enforces. Zero values mean
// "track only" for memory and "unlimited" for IO.
type Config struct {
	// MemoryLimitBytes caps managed memory, primarily block-cache
	// contents. 0 tracks usage without enforcing a limit.
	MemoryLimitBytes int64

	// MaxBackgroundWorkers bounds concurrent background jobs and, when
	// set, the number of storage partitions read in parallel. Defaults
	// to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec throttles blob reads charged through
	// AcquireIO. 0 disables throttling.
	IOLimitBytesPerSec int64
}

// Controller arbitrates memory, worker, and IO budgets shared across
// collections. A nil *Controller is valid and grants everything, so
// call sites never need a guard.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil when memory is unlimited
	memUsed atomic.Int64

	workers *semaphore.Weighted

	io *rate.Limiter // nil when IO is unlimited
}

// NewController builds a Controller from cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}
	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireMemory reserves bytes, blocking until the budget allows it or
// ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves bytes without blocking. It reports false
// when the reservation would exceed the limit.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns a prior reservation to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit, 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// Workers returns the background worker budget, 0 when no controller
// is attached.
func (c *Controller) Workers() int {
	if c == nil {
		return 0
	}
	return int(c.cfg.MaxBackgroundWorkers)
}

// AcquireBackground claims a worker slot, blocking while all slots are
// busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// TryAcquireBackground claims a worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.workers.TryAcquire(1)
}

// ReleaseBackground returns a worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireIO waits until the throughput budget admits the given read or
// write size.
func (c *Controller) AcquireIO(ctx context.Context, bytes int64) error {
	if c == nil || c.io == nil {
		return nil
	}
	if bytes > math.MaxInt32 {
		bytes = math.MaxInt32
	}
	return c.io.WaitN(ctx, int(bytes))
}

// TryAcquireIO consumes throughput budget without blocking.
func (c *Controller) TryAcquireIO(bytes int64) bool {
	if c == nil || c.io == nil {
		return true
	}
	if bytes > math.MaxInt32 {
		bytes = math.MaxInt32
	}
	return c.io.AllowN(time.Now(), int(bytes))
}
