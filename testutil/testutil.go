package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/spatialsync/geom"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UniformPoints generates num points uniformly distributed in box.
func (r *RNG) UniformPoints(num int, box geom.BoundingBox) []geom.Vec3 {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := box.Max.Sub(box.Min)
	points := make([]geom.Vec3, num)
	for i := range points {
		for a := range 3 {
			points[i][a] = box.Min[a] + r.rand.Float64()*span[a]
		}
	}
	return points
}

// ClusteredPoints generates num points scattered with Gaussian noise of
// the given spread around clusters random centers inside box.
// Useful for exercising uneven cell occupancy.
func (r *RNG) ClusteredPoints(num, clusters int, spread float64, box geom.BoundingBox) []geom.Vec3 {
	centers := r.UniformPoints(max(clusters, 1), box)

	r.mu.Lock()
	defer r.mu.Unlock()

	points := make([]geom.Vec3, num)
	for i := range points {
		c := centers[i%len(centers)]
		for a := range 3 {
			points[i][a] = c[a] + r.rand.NormFloat64()*spread
		}
	}
	return points
}

// Node is a point owned by one partition.
type Node struct {
	Index  uint64
	Coords geom.Vec3
	Rank   int
}

func (n Node) Coordinates() geom.Vec3 { return n.Coords }
func (n Node) ID() uint64             { return n.Index }
func (n Node) OwnerRank() int         { return n.Rank }

// SlabPartition assigns every point to one of size partitions by slicing
// box into equal slabs along x. Ids start at 1 in input order. The result
// holds the nodes of each rank in input order.
func SlabPartition(points []geom.Vec3, box geom.BoundingBox, size int) [][]Node {
	parts := make([][]Node, size)
	width := (box.Max[0] - box.Min[0]) / float64(size)
	for i, p := range points {
		r := 0
		if width > 0 {
			r = min(max(int((p[0]-box.Min[0])/width), 0), size-1)
		}
		parts[r] = append(parts[r], Node{Index: uint64(i + 1), Coords: p, Rank: r})
	}
	return parts
}

// SlabBox returns the x-slab of box that SlabPartition assigns to rank.
func SlabBox(box geom.BoundingBox, size, rank int) geom.BoundingBox {
	width := (box.Max[0] - box.Min[0]) / float64(size)
	b := box
	b.Min[0] = box.Min[0] + float64(rank)*width
	b.Max[0] = b.Min[0] + width
	return b
}

// WithGhosts returns a copy of parts where each rank additionally holds the
// nodes of other ranks whose x coordinate lies within halo of its slab.
// Ghosts keep the owning rank of the original node.
func WithGhosts(parts [][]Node, box geom.BoundingBox, halo float64) [][]Node {
	size := len(parts)
	out := make([][]Node, size)
	for r := range parts {
		slab := SlabBox(box, size, r)
		out[r] = append(out[r], parts[r]...)
		for o := range parts {
			if o == r {
				continue
			}
			for _, n := range parts[o] {
				if x := n.Coords[0]; x > slab.Min[0]-halo && x < slab.Max[0]+halo {
					out[r] = append(out[r], n)
				}
			}
		}
	}
	return out
}

// BruteForceRadius returns the indexes of all points with distance <= radius
// from q, in input order.
func BruteForceRadius(points []geom.Vec3, q geom.Vec3, radius float64) []int {
	var out []int
	r2 := radius * radius
	for i, p := range points {
		if geom.SquaredDistance(q, p) <= r2 {
			out = append(out, i)
		}
	}
	return out
}
