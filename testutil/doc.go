// Package testutil provides testing utilities for spatialsync.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random points, splitting them into
// partitions, and computing exact radius-search ground truth.
//
// # Random Point Generation
//
//	rng := testutil.NewRNG(seed)
//	pts := rng.UniformPoints(1000, box)
//	pts = rng.ClusteredPoints(1000, 8, 0.5, box)
//
// # Partitioning
//
//	nodes := testutil.SlabPartition(pts, box, size)
//
// # Exact Search (Ground Truth)
//
//	idx := testutil.BruteForceRadius(pts, query, radius)
package testutil
