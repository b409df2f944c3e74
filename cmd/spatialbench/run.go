package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/spatialsync"
	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/comm/local"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all ranks as goroutines of this process",
		Long: "Run executes the benchmark on an in-process group. With --ranks 1 the " +
			"serial communicator is used and no collectives take place.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runLocal(cmd, cfg)
		},
	}
	cmd.Flags().IntP("ranks", "n", 4, "number of ranks")
	return cmd
}

func runLocal(cmd *cobra.Command, cfg Config) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger = &spatialsync.Logger{Logger: logger.With("run_id", runID)}

	basic := &spatialsync.BasicMetricsCollector{}
	mc := collectors{basic}
	if cfg.MetricsAddr != "" {
		pc, shutdown, err := startMetrics(cfg.MetricsAddr, prom.Labels{"run_id": runID}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
		mc = append(mc, pc)
	}

	reports := make([]RankReport, cfg.Ranks)
	start := time.Now()
	if cfg.Ranks == 1 {
		reports[0], err = runRank(ctx, comm.Serial{}, cfg, logger.WithRank(0, 1), mc)
	} else {
		err = local.Run(ctx, cfg.Ranks, func(ctx context.Context, c comm.Communicator) error {
			rl := logger.WithRank(c.Rank(), c.Size())
			r, err := runRank(ctx, instrument(c, cfg, rl, mc), cfg, rl, mc)
			reports[c.Rank()] = r
			return err
		})
	}
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), cfg.Output, Report{
		RunID:   runID,
		Mode:    cfg.Mode,
		Index:   cfg.Index,
		Size:    cfg.Ranks,
		Elapsed: time.Since(start).String(),
		Comm:    commStats(basic),
		Ranks:   reports,
	})
}
