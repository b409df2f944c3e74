package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spatialsync"
	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/geom"
	"github.com/hupe1980/spatialsync/index/flat"
)

func TestCollector(t *testing.T) {
	reg := prom.NewRegistry()
	c, err := New(reg, WithConstLabels(prom.Labels{"rank": "0"}))
	require.NoError(t, err)

	c.RecordSynchronize(10, time.Millisecond, nil)
	c.RecordResolve(4, 10, time.Millisecond, nil)
	c.RecordRadiusSearch(3, 7, time.Millisecond, nil)
	c.RecordRadiusSearch(3, 0, time.Millisecond, errors.New("x"))
	c.RecordCollective(128, time.Millisecond, nil)

	assert.InDelta(t, 3.0, promtest.ToFloat64(c.queries), 1e-9)
	assert.InDelta(t, 7.0, promtest.ToFloat64(c.results), 1e-9)
	assert.InDelta(t, 128.0, promtest.ToFloat64(c.collectiveBytes), 1e-9)
	assert.Equal(t, 5, promtest.CollectAndCount(c.opLatency))
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prom.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)

	_, err = New(reg, WithNamespace("other"))
	assert.NoError(t, err)
}

func TestCollector_Wired(t *testing.T) {
	c, err := New(prom.NewRegistry())
	require.NoError(t, err)

	ix := flat.New([]geom.Vec3{{}}, func(p geom.Vec3) geom.Vec3 { return p })
	var out spatialsync.SearchResults[geom.Vec3]
	err = spatialsync.ParallelRadiusSearch(context.Background(), spatialsync.Positions([]geom.Vec3{{}, {}}),
		[]float64{1, 1}, ix, &out, 4, spatialsync.WithMetricsCollector(c))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, promtest.ToFloat64(c.results), 1e-9)

	ic := comm.Instrumented(comm.Serial{}, comm.WithObserver(c))
	_, err = spatialsync.NewSynchronizer(ic, spatialsync.WithMetricsCollector(c)).
		Synchronize(context.Background(), spatialsync.Positions([]geom.Vec3{{}}))
	require.NoError(t, err)
}
