// Package comm defines the collective-communication capability used by the
// search layer and the typed collectives built on top of it.
//
// A Communicator only has to move opaque byte blocks: AllGatherBytes
// contributes one block per rank and returns all blocks in rank order. The
// typed operations of the layer are generic helpers over that primitive:
//
//	total, err := comm.SumAll(ctx, c, localCount)
//	err = comm.AllGather(ctx, c, []int{localCount}, counts)
//	err = comm.AllGatherv(ctx, c, sendCoords, allCoords, sizes, offsets)
//
// # Lockstep
//
// Collectives are matched by position, not by content. Every rank must issue
// the same collectives in the same order; a rank that skips or reorders a
// call leaves the others blocked. Contexts bound that wait, and the typed
// helpers check received block sizes, reporting ErrCollectiveMismatch instead
// of silently misaligning data. Both checks are additions over plain
// blocking collectives.
//
// # Implementations
//
//   - Serial: single partition, identity exchange, IsDistributed() == false
//   - comm/local: ranks as goroutines of one process
//   - comm/tcp: ranks as processes connected through a hub
package comm
