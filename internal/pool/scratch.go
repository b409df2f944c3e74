// Package pool provides reusable scratch buffers for bounded radius searches.
// Uses sync.Pool so concurrent queries reuse buffers without locking.
package pool

import (
	"reflect"
	"sync"
)

// DefaultAllocation is the default number of result slots per query.
const DefaultAllocation = 1000

// maxRetained bounds the capacity kept in the pool. Larger buffers are
// dropped on Put.
const maxRetained = DefaultAllocation * 64

// Scratch is a fixed-capacity result buffer for one query.
type Scratch[T any] struct {
	Objects   []T
	Distances []float64
}

// Reset clears the buffers and zeroes stale object references.
func (s *Scratch[T]) Reset() {
	clear(s.Objects[:cap(s.Objects)])
	s.Objects = s.Objects[:0]
	s.Distances = s.Distances[:0]
}

// ScratchPool hands out Scratch buffers of at least a given size.
type ScratchPool[T any] struct {
	pool sync.Pool
}

// NewScratchPool creates an empty pool.
func NewScratchPool[T any]() *ScratchPool[T] {
	return &ScratchPool[T]{}
}

// pools holds one *ScratchPool[T] per element type.
var pools sync.Map

// For returns the process-wide pool for T. Buffers returned by one search
// are reused by the next.
func For[T any]() *ScratchPool[T] {
	key := reflect.TypeFor[T]()
	if p, ok := pools.Load(key); ok {
		return p.(*ScratchPool[T])
	}
	p, _ := pools.LoadOrStore(key, NewScratchPool[T]())
	return p.(*ScratchPool[T])
}

// Get retrieves a Scratch with len(Objects) == len(Distances) == n.
// Call Put when done.
func (p *ScratchPool[T]) Get(n int) *Scratch[T] {
	s, _ := p.pool.Get().(*Scratch[T])
	if s == nil {
		s = &Scratch[T]{}
	}
	if cap(s.Objects) < n {
		s.Objects = make([]T, n)
	}
	if cap(s.Distances) < n {
		s.Distances = make([]float64, n)
	}
	s.Objects = s.Objects[:n]
	s.Distances = s.Distances[:n]
	return s
}

// Put returns a Scratch to the pool for reuse.
func (p *ScratchPool[T]) Put(s *Scratch[T]) {
	if s == nil || cap(s.Objects) > maxRetained {
		return
	}
	s.Reset()
	p.pool.Put(s)
}
