// Package grid implements a uniform cell-grid radius index.
//
// Objects are bucketed into cubic cells spanning their bounding box. A
// search visits only the cells overlapping the query sphere's bounding cube
// and skips empty cells through an occupancy bitset.
package grid

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/spatialsync/geom"
)

const (
	// DefaultMaxCellsPerAxis bounds the grid resolution per axis.
	DefaultMaxCellsPerAxis = 128

	// targetPerCell is the mean occupancy the automatic cell width aims for.
	targetPerCell = 4
)

type config struct {
	cellWidth       float64
	maxCellsPerAxis int
}

// Option configures an Index.
type Option func(*config)

// WithCellWidth fixes the cell edge length. Non-positive values select the
// width automatically.
func WithCellWidth(w float64) Option {
	return func(c *config) { c.cellWidth = w }
}

// WithMaxCellsPerAxis bounds the number of cells per axis.
func WithMaxCellsPerAxis(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxCellsPerAxis = n
		}
	}
}

// Index is an immutable grid index over objects of type T.
// It is safe for concurrent searches.
type Index[T any] struct {
	objects []T
	points  []geom.Vec3

	origin geom.Vec3
	width  float64
	dims   [3]int

	// order lists object indexes grouped by cell; cell c owns
	// order[start[c]:start[c+1]].
	order    []int32
	start    []int32
	occupied *bitset.BitSet
}

// New creates an Index. position maps each object to its coordinates and is
// evaluated once per object.
func New[T any](objects []T, position func(T) geom.Vec3, optFns ...Option) *Index[T] {
	cfg := config{maxCellsPerAxis: DefaultMaxCellsPerAxis}
	for _, fn := range optFns {
		fn(&cfg)
	}

	points := make([]geom.Vec3, len(objects))
	for i, o := range objects {
		points[i] = position(o)
	}
	box := geom.BoundingBoxOf(points)

	ix := &Index[T]{
		objects: objects,
		points:  points,
		origin:  box.Min,
		width:   cellWidth(box, len(points), cfg),
	}
	for a := range 3 {
		extent := box.Max[a] - box.Min[a]
		ix.dims[a] = int(math.Min(extent/ix.width, float64(cfg.maxCellsPerAxis-1))) + 1
	}
	if len(points) > 0 {
		// Widen cells when the per-axis bound clipped the grid.
		for a := range 3 {
			if need := (box.Max[a] - box.Min[a]) / float64(ix.dims[a]); need >= ix.width {
				ix.width = math.Nextafter(need, math.Inf(1))
			}
		}
	}
	ix.build()
	return ix
}

func cellWidth(box geom.BoundingBox, n int, cfg config) float64 {
	if cfg.cellWidth > 0 {
		return cfg.cellWidth
	}
	if n == 0 {
		return 1
	}
	ext := box.Max.Sub(box.Min)
	longest := max(ext[0], ext[1], ext[2])
	if longest <= 0 {
		return 1
	}
	perAxis := math.Cbrt(float64(n) / targetPerCell)
	perAxis = math.Max(1, math.Min(perAxis, float64(cfg.maxCellsPerAxis)))
	return longest / perAxis
}

func (ix *Index[T]) cells() int { return ix.dims[0] * ix.dims[1] * ix.dims[2] }

func (ix *Index[T]) cellOf(p geom.Vec3) int {
	var c [3]int
	for a := range 3 {
		c[a] = min(max(int((p[a]-ix.origin[a])/ix.width), 0), ix.dims[a]-1)
	}
	return (c[2]*ix.dims[1]+c[1])*ix.dims[0] + c[0]
}

// build sorts object indexes into cells with a counting pass.
func (ix *Index[T]) build() {
	n := ix.cells()
	ix.start = make([]int32, n+1)
	ix.occupied = bitset.New(uint(n))
	ix.order = make([]int32, len(ix.points))

	cellIDs := make([]int32, len(ix.points))
	for i, p := range ix.points {
		c := ix.cellOf(p)
		cellIDs[i] = int32(c)
		ix.start[c+1]++
		ix.occupied.Set(uint(c))
	}
	for c := range n {
		ix.start[c+1] += ix.start[c]
	}
	next := make([]int32, n)
	copy(next, ix.start[:n])
	for i, c := range cellIDs {
		ix.order[next[c]] = int32(i)
		next[c]++
	}
}

// Len returns the number of indexed objects.
func (ix *Index[T]) Len() int { return len(ix.objects) }

// Cells returns the number of cells and how many of them hold objects.
func (ix *Index[T]) Cells() (total, occupied int) {
	return ix.cells(), int(ix.occupied.Count())
}

// SearchInRadius writes up to len(results) objects with distance <= radius
// from q and returns their number. Results are grouped by cell.
func (ix *Index[T]) SearchInRadius(q geom.Vec3, radius float64, results []T, distances []float64) int {
	if radius < 0 || len(ix.points) == 0 {
		return 0
	}
	var lo, hi [3]int
	for a := range 3 {
		l := math.Floor((q[a] - radius - ix.origin[a]) / ix.width)
		h := math.Floor((q[a] + radius - ix.origin[a]) / ix.width)
		if h < 0 || l >= float64(ix.dims[a]) {
			return 0
		}
		lo[a] = int(math.Max(l, 0))
		hi[a] = int(math.Min(h, float64(ix.dims[a]-1)))
	}

	limit := min(len(results), len(distances))
	r2 := radius * radius
	n := 0
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			row := (z*ix.dims[1] + y) * ix.dims[0]
			for x := lo[0]; x <= hi[0]; x++ {
				c := row + x
				if !ix.occupied.Test(uint(c)) {
					continue
				}
				for _, j := range ix.order[ix.start[c]:ix.start[c+1]] {
					if n == limit {
						return n
					}
					p := ix.points[j]
					if geom.SquaredDistance(q, p) <= r2 {
						results[n] = ix.objects[j]
						distances[n] = geom.Distance(q, p)
						n++
					}
				}
			}
		}
	}
	return n
}
