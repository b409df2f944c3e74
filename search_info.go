package spatialsync

import (
	"fmt"
	"slices"

	"github.com/hupe1980/spatialsync/geom"
)

// SearchInfo holds the synchronized points a partition must consider,
// in insertion order.
//
// Invariant: len(PointCoordinates) == 3*len(Indexes) == 3*len(Ranks) and
// len(SearchRanks) == len(Indexes).
//
// A SearchInfo is owned by the caller. Operations reset or append to it in
// place and never retain it.
type SearchInfo struct {
	// PointCoordinates holds x, y, z of every retained point.
	PointCoordinates []float64
	// Indexes holds the id of every retained point.
	Indexes []uint64
	// SearchRanks holds the owning rank of every retained point.
	SearchRanks []int
	// Ranks holds, per retained point, the ranks that also retain it.
	Ranks [][]int
}

// Len returns the number of retained points.
func (s *SearchInfo) Len() int { return len(s.Indexes) }

// Position returns the coordinates of retained point i.
func (s *SearchInfo) Position(i int) geom.Vec3 {
	return geom.FromSlice(s.PointCoordinates, i)
}

// ID returns the id of retained point i.
func (s *SearchInfo) ID(i int) uint64 { return s.Indexes[i] }

// OwnerRank returns the owning rank of retained point i.
func (s *SearchInfo) OwnerRank(i int) int { return s.SearchRanks[i] }

// Capabilities implements PointSource. Retained points keep their ids and
// owners, so a SearchInfo can be synchronized again.
func (s *SearchInfo) Capabilities() Capability { return CapOwnerRank | CapStableID }

// Append adds one retained point. ranks is stored as given.
func (s *SearchInfo) Append(p geom.Vec3, id uint64, searchRank int, ranks []int) {
	s.PointCoordinates = p.AppendTo(s.PointCoordinates)
	s.Indexes = append(s.Indexes, id)
	s.SearchRanks = append(s.SearchRanks, searchRank)
	s.Ranks = append(s.Ranks, ranks)
}

// Reserve ensures room for at least n points without reallocation.
func (s *SearchInfo) Reserve(n int) {
	if n <= 0 {
		return
	}
	s.PointCoordinates = grow(s.PointCoordinates, 3*n)
	s.Indexes = grow(s.Indexes, n)
	s.SearchRanks = grow(s.SearchRanks, n)
	s.Ranks = grow(s.Ranks, n)
}

// Shrink releases capacity beyond the current length. Contents are unchanged.
func (s *SearchInfo) Shrink() {
	s.PointCoordinates = shrink(s.PointCoordinates)
	s.Indexes = shrink(s.Indexes)
	s.SearchRanks = shrink(s.SearchRanks)
	s.Ranks = shrink(s.Ranks)
}

// Clear drops all points and their storage.
func (s *SearchInfo) Clear() {
	*s = SearchInfo{}
}

func (s *SearchInfo) truncate(n int) {
	s.PointCoordinates = s.PointCoordinates[:3*n]
	s.Indexes = s.Indexes[:n]
	s.SearchRanks = s.SearchRanks[:n]
	s.Ranks = s.Ranks[:n]
}

// Validate reports a broken length invariant.
func (s *SearchInfo) Validate() error {
	n := len(s.Indexes)
	if len(s.PointCoordinates) != 3*n || len(s.Ranks) != n || len(s.SearchRanks) != n {
		return violation("SearchInfo", "%d coordinates, %d indexes, %d search ranks, %d rank sets",
			len(s.PointCoordinates), n, len(s.SearchRanks), len(s.Ranks))
	}
	return nil
}

var _ PointSource = (*SearchInfo)(nil)

// String summarizes the container for logs.
func (s *SearchInfo) String() string {
	return fmt.Sprintf("SearchInfo{points: %d}", s.Len())
}

// grow returns s with capacity for at least n elements in total.
func grow[T any](s []T, n int) []T {
	if n <= cap(s) {
		return s
	}
	return slices.Grow(s, n-len(s))
}

func shrink[T any](s []T) []T {
	if cap(s) == len(s) {
		return s
	}
	return slices.Clone(s)
}

// resize returns s with length n, reusing its storage when possible.
// Contents are unspecified.
func resize[T any](s []T, n int) []T {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]T, n)
}
