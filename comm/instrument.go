package comm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Observer receives one record per collective.
type Observer interface {
	RecordCollective(bytes int, duration time.Duration, err error)
}

type instrumentOptions struct {
	logger        *slog.Logger
	observer      Observer
	stallAfter    time.Duration
	stallInterval time.Duration
}

// InstrumentOption configures Instrumented.
type InstrumentOption func(*instrumentOptions)

// WithLogger sets the logger used for stall warnings.
func WithLogger(l *slog.Logger) InstrumentOption {
	return func(o *instrumentOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the receiver of per-collective records.
func WithObserver(obs Observer) InstrumentOption {
	return func(o *instrumentOptions) {
		o.observer = obs
	}
}

// WithStallThreshold logs a warning when a collective is still waiting
// after d. Zero disables stall detection. Warnings are throttled to one per
// interval.
func WithStallThreshold(d, interval time.Duration) InstrumentOption {
	return func(o *instrumentOptions) {
		o.stallAfter = d
		o.stallInterval = interval
	}
}

type instrumented struct {
	Communicator
	opts  instrumentOptions
	seq   atomic.Uint64
	stall *rate.Sometimes
}

// Instrumented wraps c with timing records and stall diagnostics. A stalled
// collective usually means another rank skipped or reordered a call.
func Instrumented(c Communicator, optFns ...InstrumentOption) Communicator {
	opts := instrumentOptions{
		logger:        slog.New(slog.DiscardHandler),
		stallInterval: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &instrumented{
		Communicator: c,
		opts:         opts,
		stall:        &rate.Sometimes{First: 1, Interval: opts.stallInterval},
	}
}

// AllGatherBytes implements Communicator.
func (i *instrumented) AllGatherBytes(ctx context.Context, send []byte) ([][]byte, error) {
	seq := i.seq.Add(1)
	start := time.Now()

	if i.opts.stallAfter > 0 {
		timer := time.AfterFunc(i.opts.stallAfter, func() {
			i.stall.Do(func() {
				i.opts.logger.WarnContext(ctx, "collective stalled",
					"rank", i.Rank(),
					"size", i.Size(),
					"seq", seq,
					"waited", time.Since(start),
				)
			})
		})
		defer timer.Stop()
	}

	blocks, err := i.Communicator.AllGatherBytes(ctx, send)

	if i.opts.observer != nil {
		n := 0
		for _, b := range blocks {
			n += len(b)
		}
		i.opts.observer.RecordCollective(n, time.Since(start), err)
	}
	if err != nil {
		i.opts.logger.ErrorContext(ctx, "collective failed",
			"rank", i.Rank(),
			"seq", seq,
			"error", err,
		)
	}
	return blocks, err
}
