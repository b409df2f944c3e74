package spatialsync

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with search-layer context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON-formatted logs to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text logs to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRank adds the partition rank to the logger.
func (l *Logger) WithRank(rank, size int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank, "size", size),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogSynchronize logs a point synchronization.
func (l *Logger) LogSynchronize(ctx context.Context, local, total int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "point synchronization failed",
			"local", local,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "points synchronized",
			"local", local,
			"total", total,
		)
	}
}

// LogResolve logs an ownership resolution.
func (l *Logger) LogResolve(ctx context.Context, retained, total int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ownership resolution failed",
			"total", total,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "ownership resolved",
			"retained", retained,
			"total", total,
		)
	}
}

// LogRadiusSearch logs a parallel radius search.
func (l *Logger) LogRadiusSearch(ctx context.Context, queries, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "radius search failed",
			"queries", queries,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "radius search completed",
			"queries", queries,
			"results", found,
		)
	}
}
