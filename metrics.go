package gridfilter

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    rebuildCounter  prometheus.Counter
//	    applyHistogram  prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordRebuild(duration time.Duration, err error) {
//	    p.rebuildCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordRebuild is called after each full cache rebuild.
	// duration is the total time taken, err is nil if successful.
	RecordRebuild(duration time.Duration, err error)

	// RecordDelta is called after each incremental cache update.
	// added and removed are the row counts of the delta.
	RecordDelta(added, removed int, duration time.Duration, err error)

	// RecordSynchronize is called after each synchronization pass.
	// strategy names the pass performed; suppressed marks dropped edits.
	RecordSynchronize(strategy string, suppressed bool, duration time.Duration)

	// RecordApply is called after each filter application.
	// degraded marks an application that recovered into an unfiltered result.
	RecordApply(kind string, degraded bool, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRebuild(time.Duration, error)            {}
func (NoopMetricsCollector) RecordDelta(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordSynchronize(string, bool, time.Duration) {}
func (NoopMetricsCollector) RecordApply(string, bool, time.Duration)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RebuildCount      atomic.Int64
	RebuildErrors     atomic.Int64
	RebuildTotalNanos atomic.Int64
	DeltaCount        atomic.Int64
	DeltaErrors       atomic.Int64
	DeltaRowsAdded    atomic.Int64
	DeltaRowsRemoved  atomic.Int64
	SyncCount         atomic.Int64
	SyncSuppressed    atomic.Int64
	ApplyCount        atomic.Int64
	ApplyDegraded     atomic.Int64
	ApplyTotalNanos   atomic.Int64
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(duration time.Duration, err error) {
	b.RebuildCount.Add(1)
	b.RebuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}

// RecordDelta implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelta(added, removed int, duration time.Duration, err error) {
	b.DeltaCount.Add(1)
	b.DeltaRowsAdded.Add(int64(added))
	b.DeltaRowsRemoved.Add(int64(removed))
	if err != nil {
		b.DeltaErrors.Add(1)
	}
}

// RecordSynchronize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSynchronize(strategy string, suppressed bool, duration time.Duration) {
	b.SyncCount.Add(1)
	if suppressed {
		b.SyncSuppressed.Add(1)
	}
}

// RecordApply implements MetricsCollector.
func (b *BasicMetricsCollector) RecordApply(kind string, degraded bool, duration time.Duration) {
	b.ApplyCount.Add(1)
	b.ApplyTotalNanos.Add(duration.Nanoseconds())
	if degraded {
		b.ApplyDegraded.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RebuildCount:     b.RebuildCount.Load(),
		RebuildErrors:    b.RebuildErrors.Load(),
		RebuildAvgNanos:  b.getAvgRebuildNanos(),
		DeltaCount:       b.DeltaCount.Load(),
		DeltaErrors:      b.DeltaErrors.Load(),
		DeltaRowsAdded:   b.DeltaRowsAdded.Load(),
		DeltaRowsRemoved: b.DeltaRowsRemoved.Load(),
		SyncCount:        b.SyncCount.Load(),
		SyncSuppressed:   b.SyncSuppressed.Load(),
		ApplyCount:       b.ApplyCount.Load(),
		ApplyDegraded:    b.ApplyDegraded.Load(),
		ApplyAvgNanos:    b.getAvgApplyNanos(),
	}
}

func (b *BasicMetricsCollector) getAvgRebuildNanos() int64 {
	count := b.RebuildCount.Load()
	if count == 0 {
		return 0
	}
	return b.RebuildTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgApplyNanos() int64 {
	count := b.ApplyCount.Load()
	if count == 0 {
		return 0
	}
	return b.ApplyTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RebuildCount     int64
	RebuildErrors    int64
	RebuildAvgNanos  int64
	DeltaCount       int64
	DeltaErrors      int64
	DeltaRowsAdded   int64
	DeltaRowsRemoved int64
	SyncCount        int64
	SyncSuppressed   int64
	ApplyCount       int64
	ApplyDegraded    int64
	ApplyAvgNanos    int64
}
