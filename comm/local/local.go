// Package local runs the ranks of a group as goroutines of one process.
//
// It is the substrate for tests and for single-process multi-rank runs:
//
//	err := local.Run(ctx, 4, func(ctx context.Context, c comm.Communicator) error {
//	    res, err := sync.Synchronize(ctx, points)
//	    ...
//	})
package local

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/spatialsync/comm"
	"golang.org/x/sync/errgroup"
)

// Group is a set of in-process ranks sharing rendezvous state.
type Group struct {
	size int

	mu     sync.Mutex
	rounds map[uint64]*round
}

type round struct {
	blocks  [][]byte
	arrived int
	done    chan struct{}
}

// NewGroup creates a group of size ranks.
func NewGroup(size int) *Group {
	if size < 1 {
		size = 1
	}
	return &Group{
		size:   size,
		rounds: make(map[uint64]*round),
	}
}

// Size returns the number of ranks.
func (g *Group) Size() int { return g.size }

// Communicator returns the communicator of rank. Each communicator must be
// used by a single goroutine, like a process-level rank.
func (g *Group) Communicator(rank int) (*Comm, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("%w: %d of %d", comm.ErrInvalidRank, rank, g.size)
	}
	return &Comm{group: g, rank: rank}, nil
}

// Comm is one rank of a Group.
type Comm struct {
	group *Group
	rank  int
	seq   uint64
}

var _ comm.Communicator = (*Comm)(nil)

// Rank implements comm.Communicator.
func (c *Comm) Rank() int { return c.rank }

// Size implements comm.Communicator.
func (c *Comm) Size() int { return c.group.size }

// IsDistributed implements comm.Communicator. A group is distributed even
// with a single rank, so single-rank groups exercise the collective paths.
func (c *Comm) IsDistributed() bool { return true }

// AllGatherBytes implements comm.Communicator. Calls are matched by their
// sequence number on each rank.
func (c *Comm) AllGatherBytes(ctx context.Context, send []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seq := c.seq
	c.seq++

	g := c.group
	g.mu.Lock()
	r, ok := g.rounds[seq]
	if !ok {
		r = &round{
			blocks: make([][]byte, g.size),
			done:   make(chan struct{}),
		}
		g.rounds[seq] = r
	}
	r.blocks[c.rank] = slices.Clone(send)
	r.arrived++
	if r.arrived == g.size {
		delete(g.rounds, seq)
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
		return slices.Clone(r.blocks), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run executes fn once per rank of a new group of the given size, each on its
// own goroutine. The first error cancels the context of the other ranks so
// they do not stay blocked in a collective.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c comm.Communicator) error) error {
	g := NewGroup(size)
	eg, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < g.size; rank++ {
		c, err := g.Communicator(rank)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return fn(ctx, c)
		})
	}
	return eg.Wait()
}
