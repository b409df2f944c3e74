package spatialsync

import "runtime"

// ResolveMode selects how ranks agree on the relevant ranks of each point.
type ResolveMode int

const (
	// ResolvePerPoint issues one small collective per synchronized point.
	// Every rank must iterate the same global points in the same order.
	ResolvePerPoint ResolveMode = iota

	// ResolveBatched exchanges one compressed inclusion bitmap per rank for
	// all points at once. Results are identical to ResolvePerPoint.
	ResolveBatched
)

func (m ResolveMode) String() string {
	switch m {
	case ResolvePerPoint:
		return "per-point"
	case ResolveBatched:
		return "batched"
	default:
		return "unknown"
	}
}

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resolveMode      ResolveMode
	workers          int
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		resolveMode:      ResolvePerPoint,
		workers:          runtime.GOMAXPROCS(0),
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Option configures the Synchronizer and ParallelRadiusSearch.
type Option func(*options)

// WithLogger configures a structured logger.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &spatialsync.BasicMetricsCollector{}
//	s := spatialsync.NewSynchronizer(c, spatialsync.WithMetricsCollector(metrics))
//	// ... run searches ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResolveMode selects the ownership resolution strategy.
// All ranks of a group must use the same mode.
func WithResolveMode(m ResolveMode) Option {
	return func(o *options) {
		o.resolveMode = m
	}
}

// WithWorkers bounds the goroutines used by ParallelRadiusSearch.
// Values <= 0 fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}
