package comm

import (
	"context"
	"slices"
)

// Communicator is the collective-communication capability of one rank.
// Implementations must deliver blocks in rank order and must match calls
// positionally across ranks.
type Communicator interface {
	// Rank returns the rank of the caller in [0, Size()).
	Rank() int

	// Size returns the number of ranks in the group.
	Size() int

	// IsDistributed reports whether collectives involve other processes or
	// goroutines. Serial communicators return false and callers skip
	// communication entirely.
	IsDistributed() bool

	// AllGatherBytes contributes send and blocks until every rank has
	// contributed. The result holds one block per rank in rank order.
	// Returned blocks may be shared between ranks and must not be modified.
	AllGatherBytes(ctx context.Context, send []byte) ([][]byte, error)
}

// Serial is the single-partition communicator.
type Serial struct{}

var _ Communicator = Serial{}

// Rank implements Communicator.
func (Serial) Rank() int { return 0 }

// Size implements Communicator.
func (Serial) Size() int { return 1 }

// IsDistributed implements Communicator.
func (Serial) IsDistributed() bool { return false }

// AllGatherBytes implements Communicator.
func (Serial) AllGatherBytes(ctx context.Context, send []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return [][]byte{slices.Clone(send)}, nil
}
