package spatialsync

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/spatialsync/geom"
	"github.com/hupe1980/spatialsync/index/grid"
	"github.com/hupe1980/spatialsync/internal/pool"
)

// DefaultAllocation is the default number of result slots per query.
const DefaultAllocation = pool.DefaultAllocation

// RadiusSearcher is a local spatial index over objects of type T.
//
// SearchInRadius writes up to len(results) objects within radius of q into
// results, with their distances at the same positions of distances, and
// returns how many it wrote. len(distances) == len(results).
// Implementations must be safe for concurrent searches.
type RadiusSearcher[T any] interface {
	SearchInRadius(q geom.Vec3, radius float64, results []T, distances []float64) int
}

// SearchResults holds, per query, the matched objects and their distances
// in the order the index produced them.
type SearchResults[T any] struct {
	Objects   [][]T
	Distances [][]float64
}

// Len returns the number of query slots.
func (r *SearchResults[T]) Len() int { return len(r.Objects) }

// Found returns the number of matches over all queries.
func (r *SearchResults[T]) Found() int {
	n := 0
	for _, objs := range r.Objects {
		n += len(objs)
	}
	return n
}

// PrepareOutput resizes out to n query slots.
func PrepareOutput[T any](n int, out *SearchResults[T]) {
	if len(out.Objects) != n {
		out.Objects = resizeSlots(out.Objects, n)
	}
	if len(out.Distances) != n {
		out.Distances = resizeSlots(out.Distances, n)
	}
}

func resizeSlots[S ~[]E, E any](s S, n int) S {
	if cap(s) >= n {
		clear(s[n:cap(s)])
		return s[:n]
	}
	return append(s[:cap(s)], make(S, n-cap(s))...)
}

// PrepareSearch resizes out to queries slots and builds a grid index over
// objects.
func PrepareSearch[T any](objects []T, position func(T) geom.Vec3, queries int, out *SearchResults[T]) *grid.Index[T] {
	PrepareOutput(queries, out)
	return grid.New(objects, position)
}

// ParallelRadiusSearch runs one bounded radius search per query on index
// and stores the results in out, which is resized to queries.Len() slots.
// radii[i] is the radius of query i.
//
// Queries run concurrently; each writes only its own slot. An index that
// finds more than allocation objects for a query is truncated silently, so
// callers that need every match must size allocation generously.
func ParallelRadiusSearch[T any](ctx context.Context, queries PointSource, radii []float64, index RadiusSearcher[T], out *SearchResults[T], allocation int, optFns ...Option) (err error) {
	o := applyOptions(optFns)
	n := queries.Len()

	start := time.Now()
	var found atomic.Int64
	defer func() {
		o.metricsCollector.RecordRadiusSearch(n, int(found.Load()), time.Since(start), err)
		o.logger.LogRadiusSearch(ctx, n, int(found.Load()), err)
	}()

	if len(radii) != n {
		return violation("ParallelRadiusSearch", "%d radii for %d queries", len(radii), n)
	}
	if allocation <= 0 {
		return ErrInvalidAllocation
	}
	PrepareOutput(n, out)
	if n == 0 {
		return nil
	}

	scratch := pool.For[T]()
	chunk := max(1, n/(4*o.workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := scratch.Get(allocation)
			defer scratch.Put(s)

			var local int
			for i := lo; i < hi; i++ {
				k := index.SearchInRadius(queries.Position(i), radii[i], s.Objects, s.Distances)
				k = min(max(k, 0), allocation)
				out.Objects[i] = append(out.Objects[i][:0], s.Objects[:k]...)
				out.Distances[i] = append(out.Distances[i][:0], s.Distances[:k]...)
				local += k
			}
			found.Add(int64(local))
			return nil
		})
	}
	return g.Wait()
}
