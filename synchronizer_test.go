package spatialsync_test

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spatialsync"
	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/comm/local"
	"github.com/hupe1980/spatialsync/geom"
	"github.com/hupe1980/spatialsync/testutil"
)

var domain = geom.NewBoundingBox(geom.Vec3{1, 1, 1}, geom.Vec3{31, 11, 11})

// runRanks runs fn on every rank of an in-process group and returns the
// per-rank results.
func runRanks[R any](t *testing.T, size int, fn func(ctx context.Context, c comm.Communicator) (R, error)) []R {
	t.Helper()
	out := make([]R, size)
	err := local.Run(context.Background(), size, func(ctx context.Context, c comm.Communicator) error {
		r, err := fn(ctx, c)
		out[c.Rank()] = r
		return err
	})
	require.NoError(t, err)
	return out
}

func TestSynchronize_SerialRoundTrip(t *testing.T) {
	ctx := context.Background()
	pts := testutil.NewRNG(1).UniformPoints(50, domain)

	s := spatialsync.NewSynchronizer(comm.Serial{})
	res, err := s.Synchronize(ctx, spatialsync.Positions(pts))
	require.NoError(t, err)

	assert.Equal(t, 50, res.LocalCount)
	assert.Equal(t, 50, res.Total)
	assert.Equal(t, []int{50}, res.Counts)
	assert.Equal(t, []int{0}, res.Offsets)
	require.Len(t, res.Coordinates, 150)
	require.Len(t, res.IDs, 50)
	for i, p := range pts {
		assert.Equal(t, p, res.Position(i))
		assert.Equal(t, uint64(i), res.IDs[i])
	}
	assert.Nil(t, res.Ranks)
	assert.Nil(t, res.Radii)
}

func TestSynchronize_SerialKeepsForeignNodes(t *testing.T) {
	// Locality only filters in distributed runs.
	nodes := []spatialsync.Node{
		{Index: 7, Coords: geom.Vec3{1, 2, 3}, Rank: 0},
		{Index: 9, Coords: geom.Vec3{4, 5, 6}, Rank: 3},
	}
	s := spatialsync.NewSynchronizer(comm.Serial{})
	res, err := s.Synchronize(context.Background(), spatialsync.Nodes(nodes), spatialsync.WithOwnerRanks())
	require.NoError(t, err)

	assert.Equal(t, []uint64{7, 9}, res.IDs)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, res.Coordinates)
	assert.Equal(t, []int{0, 0}, res.Ranks)
}

func TestSynchronize_Conservation(t *testing.T) {
	const size = 4
	pts := testutil.NewRNG(2).UniformPoints(200, domain)
	parts := testutil.WithGhosts(testutil.SlabPartition(pts, domain, size), domain, 1.5)

	results := runRanks(t, size, func(ctx context.Context, c comm.Communicator) (*spatialsync.SyncResult, error) {
		s := spatialsync.NewSynchronizer(c)
		return s.Synchronize(ctx, spatialsync.Nodes(parts[c.Rank()]), spatialsync.WithOwnerRanks())
	})

	sum := 0
	for _, res := range results {
		sum += res.LocalCount
	}
	assert.Equal(t, len(pts), sum)

	for rank, res := range results {
		assert.Equal(t, len(pts), res.Total, "rank %d", rank)
		assert.Len(t, res.Coordinates, 3*res.Total)
		assert.Len(t, res.IDs, res.Total)
		assert.Len(t, res.Ranks, res.Total)
		assert.Equal(t, results[0].Counts, res.Counts)
		assert.Equal(t, results[0].Offsets, res.Offsets)
		assert.Equal(t, results[0].Coordinates, res.Coordinates)
		assert.Equal(t, results[0].IDs, res.IDs)
	}

	// Partition-major: rank r's owned nodes in local order at Offsets[r].
	res := results[0]
	for r := range size {
		owned := testutil.SlabPartition(pts, domain, size)[r]
		require.Equal(t, len(owned), res.Counts[r])
		for i, n := range owned {
			g := res.Offsets[r] + i
			assert.Equal(t, n.Index, res.IDs[g])
			assert.Equal(t, n.Coords, res.Position(g))
			assert.Equal(t, r, res.Ranks[g])
		}
	}
}

func TestSynchronize_SyntheticIDs(t *testing.T) {
	const size = 3
	results := runRanks(t, size, func(ctx context.Context, c comm.Communicator) (*spatialsync.SyncResult, error) {
		pts := make([]geom.Vec3, c.Rank()+1)
		for i := range pts {
			pts[i] = geom.Vec3{float64(c.Rank()), float64(i), 0}
		}
		return spatialsync.NewSynchronizer(c).Synchronize(ctx, spatialsync.Positions(pts))
	})

	for _, res := range results {
		assert.Equal(t, []int{1, 2, 3}, res.Counts)
		assert.Equal(t, []int{0, 1, 3}, res.Offsets)
		assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5}, res.IDs)
		assert.Equal(t, geom.Vec3{2, 2, 0}, res.Position(5))
	}
}

func TestSynchronize_CounterIDs(t *testing.T) {
	results := runRanks(t, 2, func(ctx context.Context, c comm.Communicator) (*spatialsync.SyncResult, error) {
		nodes := []spatialsync.Node{
			{Index: 100, Rank: c.Rank()},
			{Index: 200, Rank: 1 - c.Rank()},
			{Index: 300, Rank: c.Rank()},
		}
		return spatialsync.NewSynchronizer(c).Synchronize(ctx, spatialsync.Nodes(nodes), spatialsync.WithCounterIDs())
	})

	for _, res := range results {
		assert.Equal(t, []uint64{0, 1, 0, 1}, res.IDs)
	}
}

func TestSynchronize_Radii(t *testing.T) {
	t.Run("serial returns input", func(t *testing.T) {
		radii := []float64{1, 2, 3}
		res, err := spatialsync.NewSynchronizer(comm.Serial{}).Synchronize(context.Background(),
			spatialsync.Positions(make([]geom.Vec3, 3)), spatialsync.WithRadii(radii))
		require.NoError(t, err)
		require.Len(t, res.Radii, 3)
		assert.Same(t, &radii[0], &res.Radii[0])
	})

	t.Run("local aligned", func(t *testing.T) {
		results := runRanks(t, 3, func(ctx context.Context, c comm.Communicator) ([]float64, error) {
			radii := make([]float64, c.Rank())
			for i := range radii {
				radii[i] = float64(10*c.Rank() + i)
			}
			res, err := spatialsync.NewSynchronizer(c).Synchronize(ctx,
				spatialsync.Positions(make([]geom.Vec3, c.Rank())), spatialsync.WithRadii(radii))
			if err != nil {
				return nil, err
			}
			return res.Radii, nil
		})
		for _, radii := range results {
			assert.Equal(t, []float64{10, 20, 21}, radii)
		}
	})

	t.Run("source aligned drops ghosts", func(t *testing.T) {
		results := runRanks(t, 2, func(ctx context.Context, c comm.Communicator) ([]float64, error) {
			nodes := []spatialsync.Node{
				{Index: 1, Rank: c.Rank()},
				{Index: 2, Rank: 1 - c.Rank()},
			}
			radii := []float64{float64(c.Rank()) + 0.5, -1}
			res, err := spatialsync.NewSynchronizer(c).Synchronize(ctx, spatialsync.Nodes(nodes), spatialsync.WithRadii(radii))
			if err != nil {
				return nil, err
			}
			return res.Radii, nil
		})
		for _, radii := range results {
			assert.Equal(t, []float64{0.5, 1.5}, radii)
		}
	})

	t.Run("zero total returns input", func(t *testing.T) {
		results := runRanks(t, 2, func(ctx context.Context, c comm.Communicator) ([]float64, error) {
			radii := []float64{}
			res, err := spatialsync.NewSynchronizer(c).Synchronize(ctx, spatialsync.Positions(nil), spatialsync.WithRadii(radii))
			if err != nil {
				return nil, err
			}
			return res.Radii, nil
		})
		for _, radii := range results {
			assert.NotNil(t, radii)
			assert.Empty(t, radii)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := spatialsync.NewSynchronizer(comm.Serial{}).Synchronize(context.Background(),
			spatialsync.Positions(make([]geom.Vec3, 3)), spatialsync.WithRadii([]float64{1}))
		require.ErrorIs(t, err, spatialsync.ErrContractViolation)

		var cv *spatialsync.ContractViolationError
		require.ErrorAs(t, err, &cv)
		assert.Equal(t, "Synchronize", cv.Op)
	})
}

func TestSynchronizeRadius(t *testing.T) {
	ctx := context.Background()

	radii := []float64{4}
	got, err := spatialsync.NewSynchronizer(comm.Serial{}).SynchronizeRadius(ctx, []int{1}, radii)
	require.NoError(t, err)
	assert.Equal(t, radii, got)

	results := runRanks(t, 2, func(ctx context.Context, c comm.Communicator) ([]float64, error) {
		s := spatialsync.NewSynchronizer(c)
		send := []float64{float64(c.Rank())}
		if c.Rank() == 1 {
			send = append(send, 9)
		}
		return s.SynchronizeRadius(ctx, []int{1, 2}, send)
	})
	for _, r := range results {
		assert.Equal(t, []float64{0, 1, 9}, r)
	}

	err = local.Run(ctx, 2, func(ctx context.Context, c comm.Communicator) error {
		_, err := spatialsync.NewSynchronizer(c).SynchronizeRadius(ctx, []int{1}, nil)
		return err
	})
	assert.ErrorIs(t, err, spatialsync.ErrContractViolation)
}

func TestCountPoints(t *testing.T) {
	results := runRanks(t, 3, func(ctx context.Context, c comm.Communicator) ([2]int, error) {
		nodes := []spatialsync.Node{{Rank: c.Rank()}, {Rank: (c.Rank() + 1) % 3}, {Rank: c.Rank()}}
		l, total, err := spatialsync.NewSynchronizer(c).CountPoints(ctx, spatialsync.Nodes(nodes))
		return [2]int{l, total}, err
	})
	for _, r := range results {
		assert.Equal(t, [2]int{2, 6}, r)
	}

	l, total, err := spatialsync.NewSynchronizer(comm.Serial{}).CountPoints(context.Background(),
		spatialsync.Nodes([]spatialsync.Node{{Rank: 0}, {Rank: 5}}))
	require.NoError(t, err)
	assert.Equal(t, 2, l)
	assert.Equal(t, 2, total)
}

func TestSynchronizeInto_ReusesStorage(t *testing.T) {
	ctx := context.Background()
	s := spatialsync.NewSynchronizer(comm.Serial{})

	var res spatialsync.SyncResult
	require.NoError(t, s.SynchronizeInto(ctx, spatialsync.Positions(make([]geom.Vec3, 8)), &res))
	coords := &res.Coordinates[0]

	pts := []geom.Vec3{{1, 2, 3}, {4, 5, 6}}
	require.NoError(t, s.SynchronizeInto(ctx, spatialsync.Positions(pts), &res))
	assert.Same(t, coords, &res.Coordinates[0])
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, res.Coordinates)
	assert.Equal(t, 2, res.Total)

	err := s.SynchronizeInto(ctx, spatialsync.Positions(pts), &res, spatialsync.WithRadii([]float64{1}))
	require.Error(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Coordinates)
}

func TestSynchronize_Wrappers(t *testing.T) {
	ctx := context.Background()
	src := spatialsync.Positions([]geom.Vec3{{1, 1, 1}, {2, 2, 2}})

	coords, ids, err := spatialsync.SynchronizePoints(ctx, comm.Serial{}, src)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, coords)
	assert.Equal(t, []uint64{0, 1}, ids)

	_, _, ranks, err := spatialsync.SynchronizePointsWithRanks(ctx, comm.Serial{}, src)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, ranks)

	_, _, radii, err := spatialsync.SynchronizePointsWithRadius(ctx, comm.Serial{}, src, []float64{0.5, 0.25})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, radii)
}

func TestSynchronize_Metrics(t *testing.T) {
	metrics := &spatialsync.BasicMetricsCollector{}
	s := spatialsync.NewSynchronizer(comm.Serial{}, spatialsync.WithMetricsCollector(metrics))

	_, err := s.Synchronize(context.Background(), spatialsync.Positions(make([]geom.Vec3, 5)))
	require.NoError(t, err)
	_, err = s.Synchronize(context.Background(), spatialsync.Positions(nil), spatialsync.WithRadii([]float64{1}))
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.SyncCount)
	assert.Equal(t, int64(1), stats.SyncErrors)
	assert.Equal(t, int64(5), stats.SyncPoints)
}

func TestSynchronize_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := local.Run(ctx, 2, func(ctx context.Context, c comm.Communicator) error {
		_, err := spatialsync.NewSynchronizer(c).Synchronize(ctx, spatialsync.Positions(make([]geom.Vec3, 2)))
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// countingComm is rank 0 of a two-rank group whose peer always contributes
// the same 8-byte count.
type countingComm struct {
	peerCount int64
	calls     atomic.Int32
}

func (c *countingComm) Rank() int           { return 0 }
func (c *countingComm) Size() int           { return 2 }
func (c *countingComm) IsDistributed() bool { return true }
func (c *countingComm) AllGatherBytes(_ context.Context, send []byte) ([][]byte, error) {
	c.calls.Add(1)
	peer := binary.LittleEndian.AppendUint64(nil, uint64(c.peerCount))
	return [][]byte{send, peer}, nil
}

func TestSynchronize_NegativePeerCount(t *testing.T) {
	ctx := context.Background()
	pts := testutil.NewRNG(4).UniformPoints(3, domain)

	dst := &spatialsync.SyncResult{}
	require.NoError(t, spatialsync.NewSynchronizer(comm.Serial{}).SynchronizeInto(ctx, spatialsync.Positions(pts), dst))
	require.Equal(t, 3, dst.Total)

	c := &countingComm{peerCount: -5}
	metrics := &spatialsync.BasicMetricsCollector{}
	s := spatialsync.NewSynchronizer(c, spatialsync.WithMetricsCollector(metrics))

	err := s.SynchronizeInto(ctx, spatialsync.Positions(pts), dst, spatialsync.WithOwnerRanks())
	require.Error(t, err)
	assert.True(t, errors.Is(err, spatialsync.ErrContractViolation))

	var cv *spatialsync.ContractViolationError
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "Synchronize", cv.Op)

	assert.Equal(t, int32(1), c.calls.Load())
	assert.Zero(t, dst.Total)
	assert.Zero(t, dst.LocalCount)
	assert.Empty(t, dst.Counts)
	assert.Empty(t, dst.Offsets)
	assert.Empty(t, dst.Coordinates)
	assert.Empty(t, dst.IDs)
	assert.Nil(t, dst.Ranks)
	assert.Equal(t, int64(1), metrics.GetStats().SyncErrors)
}

func TestCountPoints_NegativeTotal(t *testing.T) {
	pts := testutil.NewRNG(5).UniformPoints(2, domain)
	c := &countingComm{peerCount: -5}

	_, _, err := spatialsync.NewSynchronizer(c).CountPoints(context.Background(), spatialsync.Positions(pts))
	require.ErrorIs(t, err, spatialsync.ErrContractViolation)
	assert.Equal(t, int32(1), c.calls.Load())
}
