// Package flat implements a brute-force radius index.
//
// Every search scans all objects, so results come back in insertion order.
// Use it as ground truth or for small local point sets.
package flat

import "github.com/hupe1980/spatialsync/geom"

// Index is an immutable brute-force index over objects of type T.
// It is safe for concurrent searches.
type Index[T any] struct {
	objects []T
	points  []geom.Vec3
}

// New creates an Index. position maps each object to its coordinates and is
// evaluated once per object.
func New[T any](objects []T, position func(T) geom.Vec3) *Index[T] {
	points := make([]geom.Vec3, len(objects))
	for i, o := range objects {
		points[i] = position(o)
	}
	return &Index[T]{
		objects: objects,
		points:  points,
	}
}

// Len returns the number of indexed objects.
func (ix *Index[T]) Len() int { return len(ix.objects) }

// SearchInRadius writes up to len(results) objects with distance <= radius
// from q and returns their number.
func (ix *Index[T]) SearchInRadius(q geom.Vec3, radius float64, results []T, distances []float64) int {
	if radius < 0 {
		return 0
	}
	limit := min(len(results), len(distances))
	r2 := radius * radius
	n := 0
	for i, p := range ix.points {
		if n == limit {
			break
		}
		if d2 := geom.SquaredDistance(q, p); d2 <= r2 {
			results[n] = ix.objects[i]
			distances[n] = geom.Distance(q, p)
			n++
		}
	}
	return n
}
