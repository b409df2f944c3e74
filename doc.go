// Package spatialsync provides the synchronization layer for distributed
// spatial search.
//
// Every partition (rank) of a group owns a disjoint set of points. For one
// search call spatialsync builds a transient, globally ordered view of all
// points, narrows it to the points a rank must consider, and runs local
// radius searches over them.
//
// # Quick Start
//
// Every rank runs the same program against its own communicator:
//
//	s := spatialsync.NewSynchronizer(c)
//	res, _ := s.Synchronize(ctx, spatialsync.Nodes(localNodes))
//	// res.Coordinates and res.IDs hold the points of all ranks,
//	// rank 0's first, then rank 1's, and so on.
//
// # Ownership Resolution
//
// ResolveOwnership keeps the points that fall into the calling rank's
// region (expanded by a threshold) or that the rank owns, and records which
// other ranks keep them too:
//
//	var info spatialsync.SearchInfo
//	_, _ = s.ResolveOwnership(ctx, spatialsync.Nodes(localNodes), box, 0.1, &info)
//	for i := range info.Len() {
//	    fmt.Println(info.Indexes[i], info.Ranks[i])
//	}
//
// Two strategies produce the same result: ResolvePerPoint (one small
// collective per point) and ResolveBatched (one bitmap exchange per call),
// selected with WithResolveMode.
//
// # Radius Search
//
//	ix := grid.New(objects, position)
//	var out spatialsync.SearchResults[Object]
//	_ = spatialsync.ParallelRadiusSearch(ctx, &info, radii, ix, &out, spatialsync.DefaultAllocation)
//
// # Communicators
//
// The comm package defines the collective interface. comm.Serial is the
// single-partition communicator; comm/local runs ranks as goroutines of one
// process and comm/tcp connects ranks over TCP.
//
// # Collectives
//
// All operations of a Synchronizer are collective. Every rank must call the
// same operations with the same stages in the same order. Pass a context
// with a deadline to bound how long a rank waits for the others.
package spatialsync
