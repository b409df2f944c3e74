package spatialsync

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// metrics/prometheus for a Prometheus implementation.
//
// MetricsCollector also satisfies comm.Observer, so the same collector can be
// passed to comm.Instrumented.
type MetricsCollector interface {
	// RecordSynchronize is called after each point synchronization.
	// total is the process-wide point count.
	RecordSynchronize(total int, duration time.Duration, err error)

	// RecordResolve is called after each ownership resolution.
	// retained is the number of points kept by the calling rank.
	RecordResolve(retained, total int, duration time.Duration, err error)

	// RecordRadiusSearch is called after each parallel radius search.
	// found is the number of matches over all queries.
	RecordRadiusSearch(queries, found int, duration time.Duration, err error)

	// RecordCollective is called after each collective of an instrumented
	// communicator. bytes is the size of all received blocks.
	RecordCollective(bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSynchronize(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordResolve(int, int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordRadiusSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCollective(int, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	SyncCount        atomic.Int64
	SyncErrors       atomic.Int64
	SyncPoints       atomic.Int64
	SyncTotalNanos   atomic.Int64
	ResolveCount     atomic.Int64
	ResolveErrors    atomic.Int64
	ResolveRetained  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchQueries    atomic.Int64
	SearchResults    atomic.Int64
	SearchTotalNanos atomic.Int64
	CollectiveCount  atomic.Int64
	CollectiveErrors atomic.Int64
	CollectiveBytes  atomic.Int64
}

// RecordSynchronize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSynchronize(total int, duration time.Duration, err error) {
	b.SyncCount.Add(1)
	b.SyncTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SyncErrors.Add(1)
		return
	}
	b.SyncPoints.Add(int64(total))
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(retained, total int, duration time.Duration, err error) {
	b.ResolveCount.Add(1)
	if err != nil {
		b.ResolveErrors.Add(1)
		return
	}
	b.ResolveRetained.Add(int64(retained))
}

// RecordRadiusSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRadiusSearch(queries, found int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
		return
	}
	b.SearchQueries.Add(int64(queries))
	b.SearchResults.Add(int64(found))
}

// RecordCollective implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCollective(bytes int, duration time.Duration, err error) {
	b.CollectiveCount.Add(1)
	b.CollectiveBytes.Add(int64(bytes))
	if err != nil {
		b.CollectiveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SyncCount:        b.SyncCount.Load(),
		SyncErrors:       b.SyncErrors.Load(),
		SyncPoints:       b.SyncPoints.Load(),
		SyncAvgNanos:     avg(b.SyncTotalNanos.Load(), b.SyncCount.Load()),
		ResolveCount:     b.ResolveCount.Load(),
		ResolveErrors:    b.ResolveErrors.Load(),
		ResolveRetained:  b.ResolveRetained.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchQueries:    b.SearchQueries.Load(),
		SearchResults:    b.SearchResults.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		CollectiveCount:  b.CollectiveCount.Load(),
		CollectiveErrors: b.CollectiveErrors.Load(),
		CollectiveBytes:  b.CollectiveBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SyncCount        int64
	SyncErrors       int64
	SyncPoints       int64
	SyncAvgNanos     int64
	ResolveCount     int64
	ResolveErrors    int64
	ResolveRetained  int64
	SearchCount      int64
	SearchErrors     int64
	SearchQueries    int64
	SearchResults    int64
	SearchAvgNanos   int64
	CollectiveCount  int64
	CollectiveErrors int64
	CollectiveBytes  int64
}
