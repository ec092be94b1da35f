package spectra

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics. Implement this interface to integrate with monitoring
// systems like Prometheus.
type MetricsCollector interface {
	// RecordPeaksRead is called after each peak read.
	// count is the number of spectra read, partitions the number of
	// storage partitions dispatched, duration the total time taken.
	RecordPeaksRead(count, partitions int, duration time.Duration, err error)

	// RecordFilter is called after each filter application.
	// in and out are the collection lengths before and after.
	RecordFilter(name string, in, out int)

	// RecordApply is called after each processing queue
	// materialization. steps is the queue length that was applied.
	RecordApply(steps int, duration time.Duration, err error)

	// RecordMigration is called after each backend migration.
	RecordMigration(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPeaksRead(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFilter(string, int, int)                  {}
func (NoopMetricsCollector) RecordApply(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordMigration(time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external
// dependencies.
type BasicMetricsCollector struct {
	ReadCount      atomic.Int64
	ReadSpectra    atomic.Int64
	ReadErrors     atomic.Int64
	ReadTotalNanos atomic.Int64
	FilterCount    atomic.Int64
	FilterDropped  atomic.Int64
	ApplyCount     atomic.Int64
	ApplyErrors    atomic.Int64
	MigrationCount atomic.Int64
}

// RecordPeaksRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPeaksRead(count, partitions int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadSpectra.Add(int64(count))
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordFilter implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilter(name string, in, out int) {
	b.FilterCount.Add(1)
	b.FilterDropped.Add(int64(in - out))
}

// RecordApply implements MetricsCollector.
func (b *BasicMetricsCollector) RecordApply(steps int, duration time.Duration, err error) {
	b.ApplyCount.Add(1)
	if err != nil {
		b.ApplyErrors.Add(1)
	}
}

// RecordMigration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMigration(duration time.Duration, err error) {
	b.MigrationCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:      b.ReadCount.Load(),
		ReadSpectra:    b.ReadSpectra.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		ReadAvgNanos:   b.getAvgReadNanos(),
		FilterCount:    b.FilterCount.Load(),
		FilterDropped:  b.FilterDropped.Load(),
		ApplyCount:     b.ApplyCount.Load(),
		ApplyErrors:    b.ApplyErrors.Load(),
		MigrationCount: b.MigrationCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgReadNanos() int64 {
	count := b.ReadCount.Load()
	if count == 0 {
		return 0
	}
	return b.ReadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount      int64
	ReadSpectra    int64
	ReadErrors     int64
	ReadAvgNanos   int64
	FilterCount    int64
	FilterDropped  int64
	ApplyCount     int64
	ApplyErrors    int64
	MigrationCount int64
}
