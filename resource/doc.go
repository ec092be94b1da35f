// Package resource implements a Controller for shared limits and governance.
//
// The Controller provides centralized management of three resource types:
//
//   - Memory: track and limit memory held by block caches over remote spectra sources
//   - Concurrency: limit background workers (prefetch, file rewrites)
//   - IO: rate-limit background IO so it does not starve foreground peak reads
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. AcquireMemory blocks until the reservation fits or the
// context is canceled; TryAcquireMemory fails fast, which is what cache
// admission wants:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if !rc.TryAcquireMemory(blockSize) {
//	    // cache full - skip admission, caller reads through
//	}
//	defer rc.ReleaseMemory(blockSize)
//
// # Background Worker Limits
//
// Limits concurrent background operations (prefetch, peaks file rewrites):
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 4,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// # IO Rate Limiting
//
// Token bucket rate limiter for background IO:
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024, // 100MB/s
//	})
//
//	if err := rc.AcquireIO(ctx, 4096); err != nil {
//	    return err
//	}
//
//	// Rate-limited writer/reader wrappers
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//	r := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use. The underlying
// implementations use atomic operations and sync primitives.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
