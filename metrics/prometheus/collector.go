// Package prometheus exports spatialsync metrics to Prometheus.
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/spatialsync"
)

// DefaultNamespace prefixes all metric names.
const DefaultNamespace = "spatialsync"

// Collector implements spatialsync.MetricsCollector with Prometheus
// histograms and counters.
type Collector struct {
	opLatency       *prom.HistogramVec
	syncPoints      prom.Histogram
	retainedPoints  prom.Histogram
	queries         prom.Counter
	results         prom.Counter
	collectiveBytes prom.Counter
}

var _ spatialsync.MetricsCollector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*config)

type config struct {
	namespace   string
	constLabels prom.Labels
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// WithConstLabels attaches fixed labels, e.g. the rank, to every metric.
func WithConstLabels(l prom.Labels) Option {
	return func(c *config) { c.constLabels = l }
}

// New creates a Collector and registers its metrics with reg.
func New(reg prom.Registerer, optFns ...Option) (*Collector, error) {
	cfg := config{namespace: DefaultNamespace}
	for _, fn := range optFns {
		fn(&cfg)
	}

	c := &Collector{
		opLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace:   cfg.namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of synchronization, resolution, search and collective operations",
			Buckets:     prom.DefBuckets,
			ConstLabels: cfg.constLabels,
		}, []string{"op", "status"}),
		syncPoints: prom.NewHistogram(prom.HistogramOpts{
			Namespace:   cfg.namespace,
			Name:        "synchronized_points",
			Help:        "Global number of points per synchronization",
			Buckets:     prom.ExponentialBuckets(1, 4, 12),
			ConstLabels: cfg.constLabels,
		}),
		retainedPoints: prom.NewHistogram(prom.HistogramOpts{
			Namespace:   cfg.namespace,
			Name:        "retained_points",
			Help:        "Points retained by this rank per ownership resolution",
			Buckets:     prom.ExponentialBuckets(1, 4, 12),
			ConstLabels: cfg.constLabels,
		}),
		queries: prom.NewCounter(prom.CounterOpts{
			Namespace:   cfg.namespace,
			Name:        "radius_queries_total",
			Help:        "Total radius queries executed",
			ConstLabels: cfg.constLabels,
		}),
		results: prom.NewCounter(prom.CounterOpts{
			Namespace:   cfg.namespace,
			Name:        "radius_results_total",
			Help:        "Total objects returned by radius queries",
			ConstLabels: cfg.constLabels,
		}),
		collectiveBytes: prom.NewCounter(prom.CounterOpts{
			Namespace:   cfg.namespace,
			Name:        "collective_received_bytes_total",
			Help:        "Total bytes received by collectives",
			ConstLabels: cfg.constLabels,
		}),
	}

	for _, m := range []prom.Collector{c.opLatency, c.syncPoints, c.retainedPoints, c.queries, c.results, c.collectiveBytes} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordSynchronize implements spatialsync.MetricsCollector.
func (c *Collector) RecordSynchronize(total int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("synchronize", status(err)).Observe(d.Seconds())
	if err == nil {
		c.syncPoints.Observe(float64(total))
	}
}

// RecordResolve implements spatialsync.MetricsCollector.
func (c *Collector) RecordResolve(retained, _ int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("resolve", status(err)).Observe(d.Seconds())
	if err == nil {
		c.retainedPoints.Observe(float64(retained))
	}
}

// RecordRadiusSearch implements spatialsync.MetricsCollector.
func (c *Collector) RecordRadiusSearch(queries, found int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("radius_search", status(err)).Observe(d.Seconds())
	if err == nil {
		c.queries.Add(float64(queries))
		c.results.Add(float64(found))
	}
}

// RecordCollective implements spatialsync.MetricsCollector.
func (c *Collector) RecordCollective(bytes int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("collective", status(err)).Observe(d.Seconds())
	c.collectiveBytes.Add(float64(bytes))
}
