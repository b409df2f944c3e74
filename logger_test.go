package spatialsync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/spatialsync/comm"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).WithRank(1, 4)

	l.LogSynchronize(context.Background(), 3, 12, nil)
	assert.Contains(t, buf.String(), `"msg":"points synchronized"`)
	assert.Contains(t, buf.String(), `"rank":1`)
	assert.Contains(t, buf.String(), `"total":12`)

	buf.Reset()
	l.WithCount(5).LogResolve(context.Background(), 0, 12, errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"count":5`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestLogger_Constructors(t *testing.T) {
	var jsonBuf, textBuf bytes.Buffer

	NewJSONLogger(&jsonBuf, slog.LevelDebug).LogSynchronize(context.Background(), 2, 4, nil)
	assert.Contains(t, jsonBuf.String(), `"msg":"points synchronized"`)

	NewTextLogger(&textBuf, slog.LevelDebug).LogRadiusSearch(context.Background(), 3, 7, nil)
	assert.Contains(t, textBuf.String(), "level=DEBUG")
	assert.Contains(t, textBuf.String(), "results=7")

	textBuf.Reset()
	NewTextLogger(&textBuf, slog.LevelInfo).LogSynchronize(context.Background(), 2, 4, nil)
	assert.Empty(t, textBuf.String())
}

func TestOptions(t *testing.T) {
	o := applyOptions([]Option{WithLogger(nil), WithMetricsCollector(nil), WithWorkers(-1), WithResolveMode(ResolveBatched)})

	assert.NotNil(t, o.logger)
	assert.Equal(t, NoopMetricsCollector{}, o.metricsCollector)
	assert.Positive(t, o.workers)
	assert.Equal(t, ResolveBatched, o.resolveMode)
	assert.Equal(t, "batched", o.resolveMode.String())
	assert.Equal(t, "unknown", ResolveMode(9).String())
}

func TestBasicMetricsCollector_Collective(t *testing.T) {
	m := &BasicMetricsCollector{}
	var _ comm.Observer = m

	m.RecordCollective(64, 0, nil)
	m.RecordCollective(0, 0, errors.New("x"))

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.CollectiveCount)
	assert.Equal(t, int64(1), stats.CollectiveErrors)
	assert.Equal(t, int64(64), stats.CollectiveBytes)
}

func TestContractViolationError(t *testing.T) {
	err := violation("Op", "%d things", 3)
	assert.EqualError(t, err, "Op: contract violation: 3 things")
	assert.ErrorIs(t, err, ErrContractViolation)
}
