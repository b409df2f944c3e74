package spatialsync

import (
	"context"
	"time"

	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/geom"
)

// Synchronizer builds globally ordered views of points distributed over the
// ranks of a communicator.
//
// Every operation is collective: all ranks of the group must call the same
// operations with the same stages in the same order. A rank that skips or
// reorders a call stalls the others until their contexts expire.
type Synchronizer struct {
	comm comm.Communicator
	opts options
	log  *Logger
}

// NewSynchronizer creates a Synchronizer on top of c.
func NewSynchronizer(c comm.Communicator, optFns ...Option) *Synchronizer {
	o := applyOptions(optFns)
	return &Synchronizer{
		comm: c,
		opts: o,
		log:  o.logger.WithRank(c.Rank(), c.Size()),
	}
}

// Communicator returns the underlying communicator.
func (s *Synchronizer) Communicator() comm.Communicator { return s.comm }

// SyncOption enables an optional stage of the synchronization pipeline.
type SyncOption func(*syncPlan)

type syncPlan struct {
	ownerRanks bool
	counterIDs bool
	radii      []float64
	withRadii  bool
}

// WithOwnerRanks tags every synchronized point with the rank that
// contributed it (SyncResult.Ranks).
func WithOwnerRanks() SyncOption {
	return func(p *syncPlan) { p.ownerRanks = true }
}

// WithRadii synchronizes one search radius per point (SyncResult.Radii).
// radii is aligned either with the local points that take part in the
// exchange or with the whole source; in the latter case entries of
// non-local points are dropped.
//
// In a serial run, or when no rank has points, SyncResult.Radii is radii
// itself.
func WithRadii(radii []float64) SyncOption {
	return func(p *syncPlan) {
		p.radii = radii
		p.withRadii = true
	}
}

// WithCounterIDs replaces ids by the bare local sequence index of each
// point, without partition offset. Ids are no longer unique across ranks.
func WithCounterIDs() SyncOption {
	return func(p *syncPlan) { p.counterIDs = true }
}

// SyncResult is the partition-major view produced by Synchronize.
// Point i of rank r sits at Offsets[r]+i.
type SyncResult struct {
	// LocalCount is the number of points this rank contributed.
	LocalCount int
	// Total is the number of points over all ranks.
	Total int
	// Counts holds the contribution of every rank.
	Counts []int
	// Offsets holds the exclusive prefix sum of Counts.
	Offsets []int

	Coordinates []float64
	IDs         []uint64
	// Ranks is nil unless WithOwnerRanks was given.
	Ranks []int
	// Radii is nil unless WithRadii was given.
	Radii []float64
}

// Position returns the coordinates of synchronized point i.
func (r *SyncResult) Position(i int) geom.Vec3 {
	return geom.FromSlice(r.Coordinates, i)
}

func (r *SyncResult) reset() {
	r.LocalCount, r.Total = 0, 0
	r.Counts = r.Counts[:0]
	r.Offsets = r.Offsets[:0]
	r.Coordinates = r.Coordinates[:0]
	r.IDs = r.IDs[:0]
	r.Ranks = nil
	r.Radii = nil
}

// CountPoints returns the number of points this rank contributes and the
// sum over all ranks.
func (s *Synchronizer) CountPoints(ctx context.Context, src PointSource) (local, total int, err error) {
	local = localCount(src, s.comm)
	if local < 0 {
		return 0, 0, violation("CountPoints", "negative local count %d", local)
	}
	total, err = comm.SumAll(ctx, s.comm, local)
	if err != nil {
		return 0, 0, err
	}
	if total < 0 {
		return 0, 0, violation("CountPoints", "negative total count %d", total)
	}
	return local, total, nil
}

// Synchronize gathers the points of src from every rank.
func (s *Synchronizer) Synchronize(ctx context.Context, src PointSource, stages ...SyncOption) (*SyncResult, error) {
	res := &SyncResult{}
	if err := s.SynchronizeInto(ctx, src, res, stages...); err != nil {
		return nil, err
	}
	return res, nil
}

// SynchronizeInto is Synchronize writing into dst, reusing its storage.
// Output slices are resized once to their final length. On error dst is
// left empty.
func (s *Synchronizer) SynchronizeInto(ctx context.Context, src PointSource, dst *SyncResult, stages ...SyncOption) (err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			dst.reset()
		}
		s.opts.metricsCollector.RecordSynchronize(dst.Total, time.Since(start), err)
		s.log.LogSynchronize(ctx, dst.LocalCount, dst.Total, err)
	}()

	var plan syncPlan
	for _, fn := range stages {
		fn(&plan)
	}

	c := s.comm
	rank, size := c.Rank(), c.Size()
	distributed := c.IsDistributed()

	local := localCount(src, c)
	if local < 0 {
		return violation("Synchronize", "negative local count %d", local)
	}
	if plan.withRadii && len(plan.radii) != local && len(plan.radii) != src.Len() {
		return violation("Synchronize", "%d radii for %d local points of %d", len(plan.radii), local, src.Len())
	}

	dst.Counts = resize(dst.Counts, size)
	if distributed {
		if err := comm.AllGather(ctx, c, []int{local}, dst.Counts); err != nil {
			return err
		}
	} else {
		dst.Counts[0] = local
	}
	dst.Offsets = resize(dst.Offsets, size)
	total := 0
	for r, n := range dst.Counts {
		if n < 0 {
			return violation("Synchronize", "rank %d reported negative count %d", r, n)
		}
		dst.Offsets[r] = total
		total += n
	}
	if total < 0 {
		return violation("Synchronize", "negative total count %d", total)
	}
	dst.LocalCount, dst.Total = local, total

	first := dst.Offsets[rank]
	if !distributed {
		// Serial: fill the outputs in local order.
		dst.Coordinates = resize(dst.Coordinates, 3*total)
		dst.IDs = resize(dst.IDs, total)
		fillLocal(src, c, plan, first, dst.Coordinates, dst.IDs, nil)
		if plan.ownerRanks {
			dst.Ranks = make([]int, total)
		}
		if plan.withRadii {
			dst.Radii = plan.radii
		}
		return nil
	}

	sendCoords := make([]float64, 3*local)
	sendIDs := make([]uint64, local)
	var sendRadii []float64
	if plan.withRadii {
		sendRadii = plan.radii
		if len(plan.radii) != local {
			sendRadii = make([]float64, local)
		}
	}
	fillLocal(src, c, plan, first, sendCoords, sendIDs, sendRadii)

	dst.Coordinates = resize(dst.Coordinates, 3*total)
	dst.IDs = resize(dst.IDs, total)

	sizes3 := make([]int, size)
	offsets3 := make([]int, size)
	for r := range size {
		sizes3[r] = 3 * dst.Counts[r]
		offsets3[r] = 3 * dst.Offsets[r]
	}
	if err := comm.AllGatherv(ctx, c, sendCoords, dst.Coordinates, sizes3, offsets3); err != nil {
		return err
	}
	if err := comm.AllGatherv(ctx, c, sendIDs, dst.IDs, dst.Counts, dst.Offsets); err != nil {
		return err
	}

	if plan.ownerRanks {
		sendRanks := make([]int, local)
		for i := range sendRanks {
			sendRanks[i] = rank
		}
		dst.Ranks = make([]int, total)
		if err := comm.AllGatherv(ctx, c, sendRanks, dst.Ranks, dst.Counts, dst.Offsets); err != nil {
			return err
		}
	}

	if plan.withRadii {
		radii, err := gatherRadii(ctx, c, dst.Counts, dst.Offsets, total, sendRadii)
		if err != nil {
			return err
		}
		if total == 0 {
			radii = plan.radii
		}
		dst.Radii = radii
	}
	return nil
}

// SynchronizeRadius gathers per-point radii laid out by counts, the number
// of points of every rank. In a serial run, or when counts sum to zero,
// radii is returned unchanged.
func (s *Synchronizer) SynchronizeRadius(ctx context.Context, counts []int, radii []float64) ([]float64, error) {
	c := s.comm
	if !c.IsDistributed() {
		return radii, nil
	}
	if len(counts) != c.Size() {
		return nil, violation("SynchronizeRadius", "%d counts for %d ranks", len(counts), c.Size())
	}
	offsets := make([]int, len(counts))
	total := 0
	for r, n := range counts {
		if n < 0 {
			return nil, violation("SynchronizeRadius", "rank %d has negative count %d", r, n)
		}
		offsets[r] = total
		total += n
	}
	if total == 0 {
		return radii, nil
	}
	return gatherRadii(ctx, c, counts, offsets, total, radii)
}

func gatherRadii(ctx context.Context, c comm.Communicator, counts, offsets []int, total int, send []float64) ([]float64, error) {
	if total == 0 {
		return nil, nil
	}
	all := make([]float64, total)
	if err := comm.AllGatherv(ctx, c, send, all, counts, offsets); err != nil {
		return nil, err
	}
	return all, nil
}

// isLocal reports whether point i takes part in the exchange on the
// calling rank. Ghosts only drop out in distributed runs.
func isLocal(src PointSource, c comm.Communicator, caps Capability, i int) bool {
	if !c.IsDistributed() || !caps.Has(CapOwnerRank) {
		return true
	}
	return src.OwnerRank(i) == c.Rank()
}

func localCount(src PointSource, c comm.Communicator) int {
	caps := src.Capabilities()
	n := src.Len()
	if !c.IsDistributed() || !caps.Has(CapOwnerRank) {
		return n
	}
	local := 0
	for i := range n {
		if isLocal(src, c, caps, i) {
			local++
		}
	}
	return local
}

// fillLocal writes coordinates, ids and, when radii is non-nil and not the
// caller's slice, radii of the local points.
func fillLocal(src PointSource, c comm.Communicator, plan syncPlan, first int, coords []float64, ids []uint64, radii []float64) {
	caps := src.Capabilities()
	copyRadii := radii != nil && len(plan.radii) != len(radii)
	counter := 0
	for i := range src.Len() {
		if !isLocal(src, c, caps, i) {
			continue
		}
		p := src.Position(i)
		copy(coords[3*counter:3*counter+3], p[:])
		switch {
		case plan.counterIDs:
			ids[counter] = uint64(counter)
		case caps.Has(CapStableID):
			ids[counter] = src.ID(i)
		default:
			ids[counter] = uint64(first + counter)
		}
		if copyRadii {
			radii[counter] = plan.radii[i]
		}
		counter++
	}
}

// SynchronizePoints gathers coordinates and ids of src over all ranks of c.
func SynchronizePoints(ctx context.Context, c comm.Communicator, src PointSource, optFns ...Option) ([]float64, []uint64, error) {
	res, err := NewSynchronizer(c, optFns...).Synchronize(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	return res.Coordinates, res.IDs, nil
}

// SynchronizePointsWithRanks is SynchronizePoints that also returns the
// owning rank of every point.
func SynchronizePointsWithRanks(ctx context.Context, c comm.Communicator, src PointSource, optFns ...Option) ([]float64, []uint64, []int, error) {
	res, err := NewSynchronizer(c, optFns...).Synchronize(ctx, src, WithOwnerRanks())
	if err != nil {
		return nil, nil, nil, err
	}
	return res.Coordinates, res.IDs, res.Ranks, nil
}

// SynchronizePointsWithRadius is SynchronizePoints that also returns the
// radius of every point.
func SynchronizePointsWithRadius(ctx context.Context, c comm.Communicator, src PointSource, radii []float64, optFns ...Option) ([]float64, []uint64, []float64, error) {
	res, err := NewSynchronizer(c, optFns...).Synchronize(ctx, src, WithRadii(radii))
	if err != nil {
		return nil, nil, nil, err
	}
	return res.Coordinates, res.IDs, res.Radii, nil
}
