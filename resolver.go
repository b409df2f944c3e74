package spatialsync

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/geom"
)

// ResolveOwnership synchronizes the points of src and appends to info every
// point this rank must consider: points inside region expanded by
// threshold, and points owned by this rank. Each retained point carries the
// owning rank and the sorted ranks that retain it as well.
//
// In a serial run a point is retained only when inside the region, with
// relevant ranks {0}.
//
// Retained points are appended to info, which is shrunk at the end; on
// error info is restored to its previous length. The returned slice holds the
// ids of all synchronized points in global order. stages may add
// WithCounterIDs; owner rank tagging is always enabled.
func (s *Synchronizer) ResolveOwnership(ctx context.Context, src PointSource, region geom.Region, threshold float64, info *SearchInfo, stages ...SyncOption) (ids []uint64, err error) {
	start := time.Now()
	retained, total := 0, 0
	defer func() {
		s.opts.metricsCollector.RecordResolve(retained, total, time.Since(start), err)
		s.log.LogResolve(ctx, retained, total, err)
	}()

	stages = append(stages[:len(stages):len(stages)], WithOwnerRanks())
	res, err := s.Synchronize(ctx, src, stages...)
	if err != nil {
		return nil, err
	}
	total = res.Total

	base := info.Len()
	info.Reserve(base + total)

	switch {
	case !s.comm.IsDistributed():
		resolveSerial(res, region, threshold, info)
	case s.opts.resolveMode == ResolveBatched:
		err = s.resolveBatched(ctx, res, region, threshold, info)
	default:
		err = s.resolvePerPoint(ctx, res, region, threshold, info)
	}
	if err != nil {
		info.truncate(base)
		return nil, err
	}

	info.Shrink()
	retained = info.Len() - base
	return res.IDs, nil
}

func resolveSerial(res *SyncResult, region geom.Region, threshold float64, info *SearchInfo) {
	for i := range res.Total {
		p := res.Position(i)
		if region.ContainsTol(p, threshold) {
			info.Append(p, res.IDs[i], 0, []int{0})
		}
	}
}

// resolvePerPoint issues one AllGather per synchronized point. Every rank
// walks the same global points, which keeps the collectives matched.
func (s *Synchronizer) resolvePerPoint(ctx context.Context, res *SyncResult, region geom.Region, threshold float64, info *SearchInfo) error {
	rank, size := s.comm.Rank(), s.comm.Size()
	flag := make([]int, 1)
	announced := make([]int, size)

	for i := range res.Total {
		p := res.Position(i)
		owner := res.Ranks[i]
		include := region.ContainsTol(p, threshold) || owner == rank

		flag[0] = -1
		if include {
			flag[0] = rank
		}
		if err := comm.AllGather(ctx, s.comm, flag, announced); err != nil {
			return fmt.Errorf("resolve point %d: %w", i, err)
		}
		if !include {
			continue
		}
		relevant := make([]int, 0, size)
		for _, r := range announced {
			if r >= 0 && r < size {
				relevant = append(relevant, r)
			}
		}
		info.Append(p, res.IDs[i], owner, relevant)
	}
	return nil
}

// resolveBatched exchanges one inclusion bitmap per rank covering all
// synchronized points.
func (s *Synchronizer) resolveBatched(ctx context.Context, res *SyncResult, region geom.Region, threshold float64, info *SearchInfo) error {
	rank, size := s.comm.Rank(), s.comm.Size()
	if uint64(res.Total) > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrTooManyPoints, res.Total)
	}

	included := roaring.New()
	for i := range res.Total {
		if res.Ranks[i] == rank || region.ContainsTol(res.Position(i), threshold) {
			included.Add(uint32(i))
		}
	}
	included.RunOptimize()

	var buf bytes.Buffer
	if _, err := included.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode inclusion bitmap: %w", err)
	}
	blocks, err := s.comm.AllGatherBytes(ctx, buf.Bytes())
	if err != nil {
		return fmt.Errorf("exchange inclusion bitmaps: %w", err)
	}
	if len(blocks) != size {
		return fmt.Errorf("%w: got %d bitmaps from %d ranks", comm.ErrCollectiveMismatch, len(blocks), size)
	}

	peers := make([]*roaring.Bitmap, size)
	for r, b := range blocks {
		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(b)); err != nil {
			return fmt.Errorf("%w: rank %d bitmap: %v", comm.ErrCollectiveMismatch, r, err)
		}
		peers[r] = bm
	}

	it := included.Iterator()
	for it.HasNext() {
		i := it.Next()
		relevant := make([]int, 0, size)
		for r, bm := range peers {
			if bm.Contains(i) {
				relevant = append(relevant, r)
			}
		}
		idx := int(i)
		info.Append(res.Position(idx), res.IDs[idx], res.Ranks[idx], relevant)
	}
	return nil
}
