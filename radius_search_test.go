package spatialsync_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spatialsync"
	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/geom"
	"github.com/hupe1980/spatialsync/index/flat"
	"github.com/hupe1980/spatialsync/index/grid"
	"github.com/hupe1980/spatialsync/testutil"
)

type object struct {
	id  int
	pos geom.Vec3
}

func objectPosition(o object) geom.Vec3 { return o.pos }

func TestParallelRadiusSearch_SingleMatch(t *testing.T) {
	objects := []object{{id: 1, pos: geom.Vec3{3, 0, 0}}}
	ix := flat.New(objects, objectPosition)
	queries := []geom.Vec3{{0, 0, 0}, {100, 0, 0}, {0, 100, 0}}

	var out spatialsync.SearchResults[object]
	err := spatialsync.ParallelRadiusSearch(context.Background(), spatialsync.Positions(queries),
		[]float64{5, 5, 5}, ix, &out, spatialsync.DefaultAllocation)
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	require.Len(t, out.Objects[0], 1)
	assert.Equal(t, 1, out.Objects[0][0].id)
	assert.InDelta(t, 3.0, out.Distances[0][0], 1e-12)
	assert.Empty(t, out.Objects[1])
	assert.Empty(t, out.Distances[1])
	assert.Empty(t, out.Objects[2])
	assert.Empty(t, out.Distances[2])
	assert.Equal(t, 1, out.Found())
}

func TestParallelRadiusSearch_MatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(11)
	pts := rng.UniformPoints(3000, domain)
	objects := make([]object, len(pts))
	for i, p := range pts {
		objects[i] = object{id: i, pos: p}
	}
	queries := rng.UniformPoints(400, domain)
	radii := make([]float64, len(queries))
	for i := range radii {
		radii[i] = 0.5 + 2*rng.Float64()
	}

	for _, workers := range []int{1, 3, 16} {
		var out spatialsync.SearchResults[object]
		ix := spatialsync.PrepareSearch(objects, objectPosition, len(queries), &out)
		err := spatialsync.ParallelRadiusSearch(context.Background(), spatialsync.Positions(queries), radii, ix, &out,
			len(objects), spatialsync.WithWorkers(workers))
		require.NoError(t, err)

		for i, q := range queries {
			want := testutil.BruteForceRadius(pts, q, radii[i])
			got := make([]int, len(out.Objects[i]))
			for j, o := range out.Objects[i] {
				got[j] = o.id
				assert.InDelta(t, geom.Distance(q, o.pos), out.Distances[i][j], 1e-12)
			}
			sort.Ints(got)
			if len(want) == 0 {
				assert.Empty(t, got)
				continue
			}
			assert.Equal(t, want, got, "query %d workers %d", i, workers)
		}
	}
}

func TestParallelRadiusSearch_Truncates(t *testing.T) {
	objects := make([]object, 10)
	ix := grid.New(objects, objectPosition)

	var out spatialsync.SearchResults[object]
	err := spatialsync.ParallelRadiusSearch(context.Background(), spatialsync.Positions([]geom.Vec3{{}}),
		[]float64{1}, ix, &out, 4)
	require.NoError(t, err)
	assert.Len(t, out.Objects[0], 4)
	assert.Len(t, out.Distances[0], 4)
}

func TestParallelRadiusSearch_ReusesOutput(t *testing.T) {
	ix := flat.New([]object{{id: 1}}, objectPosition)
	out := spatialsync.SearchResults[object]{
		Objects:   [][]object{{{id: 9}, {id: 9}}, {{id: 9}}, {{id: 9}}, {{id: 9}}},
		Distances: [][]float64{{7, 7}, {7}, {7}, {7}},
	}

	err := spatialsync.ParallelRadiusSearch(context.Background(), spatialsync.Positions([]geom.Vec3{{}, {50, 0, 0}}),
		[]float64{1, 1}, ix, &out, 8)
	require.NoError(t, err)

	require.Equal(t, 2, out.Len())
	assert.Equal(t, []object{{id: 1}}, out.Objects[0])
	assert.Equal(t, []float64{0}, out.Distances[0])
	assert.Empty(t, out.Objects[1])
}

func TestParallelRadiusSearch_OverSearchInfo(t *testing.T) {
	var info spatialsync.SearchInfo
	_, err := spatialsync.NewSynchronizer(comm.Serial{}).ResolveOwnership(context.Background(),
		spatialsync.Positions([]geom.Vec3{{2, 2, 2}, {4, 4, 4}}), cube(1, 5), 0, &info)
	require.NoError(t, err)

	ix := flat.New([]object{{id: 7, pos: geom.Vec3{2, 2, 3}}}, objectPosition)
	var out spatialsync.SearchResults[object]
	err = spatialsync.ParallelRadiusSearch(context.Background(), &info, []float64{1.5, 1.5}, ix, &out, 16)
	require.NoError(t, err)

	assert.Len(t, out.Objects[0], 1)
	assert.Empty(t, out.Objects[1])
}

func TestParallelRadiusSearch_Errors(t *testing.T) {
	ix := flat.New([]object{{id: 1}}, objectPosition)
	queries := spatialsync.Positions([]geom.Vec3{{}, {}})
	var out spatialsync.SearchResults[object]

	err := spatialsync.ParallelRadiusSearch(context.Background(), queries, []float64{1}, ix, &out, 8)
	assert.ErrorIs(t, err, spatialsync.ErrContractViolation)

	err = spatialsync.ParallelRadiusSearch(context.Background(), queries, []float64{1, 1}, ix, &out, 0)
	assert.ErrorIs(t, err, spatialsync.ErrInvalidAllocation)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = spatialsync.ParallelRadiusSearch(ctx, queries, []float64{1, 1}, ix, &out, 8)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelRadiusSearch_Empty(t *testing.T) {
	ix := flat.New([]object{{id: 1}}, objectPosition)
	out := spatialsync.SearchResults[object]{Objects: [][]object{{{id: 3}}}, Distances: [][]float64{{1}}}

	err := spatialsync.ParallelRadiusSearch(context.Background(), spatialsync.Positions(nil), nil, ix, &out, 8)
	require.NoError(t, err)
	assert.Zero(t, out.Len())
}

func TestParallelRadiusSearch_Metrics(t *testing.T) {
	metrics := &spatialsync.BasicMetricsCollector{}
	ix := flat.New([]object{{id: 1}, {id: 2, pos: geom.Vec3{0.5, 0, 0}}}, objectPosition)

	var out spatialsync.SearchResults[object]
	err := spatialsync.ParallelRadiusSearch(context.Background(), spatialsync.Positions([]geom.Vec3{{}, {}}),
		[]float64{1, 0.1}, ix, &out, 8, spatialsync.WithMetricsCollector(metrics))
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(2), stats.SearchQueries)
	assert.Equal(t, int64(3), stats.SearchResults)
}

func TestPrepareOutput(t *testing.T) {
	var out spatialsync.SearchResults[int]
	spatialsync.PrepareOutput(5, &out)
	assert.Len(t, out.Objects, 5)
	assert.Len(t, out.Distances, 5)

	out.Objects[4] = []int{1}
	spatialsync.PrepareOutput(2, &out)
	assert.Len(t, out.Objects, 2)
	spatialsync.PrepareOutput(5, &out)
	assert.Nil(t, out.Objects[4])
}
