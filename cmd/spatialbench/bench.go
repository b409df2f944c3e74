package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/spatialsync"
	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/geom"
	"github.com/hupe1980/spatialsync/index/flat"
	"github.com/hupe1980/spatialsync/index/grid"
	promcollector "github.com/hupe1980/spatialsync/metrics/prometheus"
	"github.com/hupe1980/spatialsync/testutil"
)

// domainBox is the region all ranks share. Each rank owns a slab of 10
// units along x.
func domainBox(size int) geom.BoundingBox {
	return geom.NewBoundingBox(geom.Vec3{1, 1, 1}, geom.Vec3{1 + 10*float64(size), 11, 11})
}

func newLogger(w io.Writer, cfg Config) (*spatialsync.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	switch cfg.LogFormat {
	case "json":
		return spatialsync.NewJSONLogger(w, level), nil
	case "text":
		return spatialsync.NewTextLogger(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
}

// collectors fans records out to several collectors.
type collectors []spatialsync.MetricsCollector

func (cs collectors) RecordSynchronize(total int, d time.Duration, err error) {
	for _, c := range cs {
		c.RecordSynchronize(total, d, err)
	}
}

func (cs collectors) RecordResolve(retained, total int, d time.Duration, err error) {
	for _, c := range cs {
		c.RecordResolve(retained, total, d, err)
	}
}

func (cs collectors) RecordRadiusSearch(queries, found int, d time.Duration, err error) {
	for _, c := range cs {
		c.RecordRadiusSearch(queries, found, d, err)
	}
}

func (cs collectors) RecordCollective(bytes int, d time.Duration, err error) {
	for _, c := range cs {
		c.RecordCollective(bytes, d, err)
	}
}

// startMetrics serves Prometheus metrics on addr and returns the collector
// and a shutdown function.
func startMetrics(addr string, labels prom.Labels, logger *spatialsync.Logger) (spatialsync.MetricsCollector, func(context.Context) error, error) {
	reg := prom.NewRegistry()
	coll, err := promcollector.New(reg, promcollector.WithConstLabels(labels))
	if err != nil {
		return nil, nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return coll, srv.Shutdown, nil
}

// instrument wraps c with collective timing and stall warnings.
func instrument(c comm.Communicator, cfg Config, logger *spatialsync.Logger, mc spatialsync.MetricsCollector) comm.Communicator {
	opts := []comm.InstrumentOption{comm.WithLogger(logger.Logger), comm.WithObserver(mc)}
	if cfg.StallAfter > 0 {
		opts = append(opts, comm.WithStallThreshold(cfg.StallAfter, cfg.StallAfter))
	}
	return comm.Instrumented(c, opts...)
}

// runRank executes the benchmark on one rank: generate points, resolve
// ownership against the rank's slab, and search around every retained point
// within the rank's owned nodes.
func runRank(ctx context.Context, c comm.Communicator, cfg Config, logger *spatialsync.Logger, mc spatialsync.MetricsCollector) (RankReport, error) {
	rank, size := c.Rank(), c.Size()
	mode, err := cfg.resolveMode()
	if err != nil {
		return RankReport{}, err
	}

	box := domainBox(size)
	points := testutil.NewRNG(cfg.Seed).UniformPoints(cfg.Points*size, box)
	parts := testutil.WithGhosts(testutil.SlabPartition(points, box, size), box, cfg.Halo)
	nodes := parts[rank]

	opts := []spatialsync.Option{
		spatialsync.WithLogger(logger),
		spatialsync.WithMetricsCollector(mc),
		spatialsync.WithResolveMode(mode),
		spatialsync.WithWorkers(cfg.Workers),
	}
	s := spatialsync.NewSynchronizer(c, opts...)

	var info spatialsync.SearchInfo
	start := time.Now()
	ids, err := s.ResolveOwnership(ctx, spatialsync.Nodes(nodes), testutil.SlabBox(box, size, rank), cfg.Threshold, &info)
	if err != nil {
		return RankReport{}, fmt.Errorf("rank %d: resolve: %w", rank, err)
	}
	resolveTime := time.Since(start)

	owned := make([]testutil.Node, 0, len(nodes))
	for _, n := range nodes {
		if !c.IsDistributed() || n.Rank == rank {
			owned = append(owned, n)
		}
	}

	var index spatialsync.RadiusSearcher[testutil.Node]
	switch cfg.Index {
	case "flat":
		index = flat.New(owned, testutil.Node.Coordinates)
	default:
		index = grid.New(owned, testutil.Node.Coordinates)
	}

	radii := make([]float64, info.Len())
	for i := range radii {
		radii[i] = cfg.Radius
	}
	var out spatialsync.SearchResults[testutil.Node]
	start = time.Now()
	if err := spatialsync.ParallelRadiusSearch(ctx, &info, radii, index, &out, cfg.Allocation, opts...); err != nil {
		return RankReport{}, fmt.Errorf("rank %d: search: %w", rank, err)
	}
	searchTime := time.Since(start)

	shared := 0
	for _, ranks := range info.Ranks {
		if len(ranks) > 1 {
			shared++
		}
	}

	return RankReport{
		Rank:     rank,
		Nodes:    len(nodes),
		Owned:    len(owned),
		Total:    len(ids),
		Retained: info.Len(),
		Shared:   shared,
		Found:    out.Found(),
		Resolve:  resolveTime.String(),
		Search:   searchTime.String(),
	}, nil
}
