package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/spatialsync"
	"github.com/hupe1980/spatialsync/comm/tcp"
)

func newNodeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run one rank of a multi-process group over TCP",
		Long: "Node joins a TCP group: rank 0 listens on --hub, every other rank dials it. " +
			"All ranks must share --size, --token and the benchmark flags.",
		Example: "  token=$(spatialbench token)\n" +
			"  spatialbench node --rank 0 --size 2 --token $token &\n" +
			"  spatialbench node --rank 1 --size 2 --token $token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runNode(cmd, cfg)
		},
	}
	f := cmd.Flags()
	f.Int("rank", 0, "rank of this process")
	f.Int("size", 1, "number of processes in the group")
	f.String("hub", "127.0.0.1:7946", "address of rank 0")
	f.String("token", "", "group token shared by all ranks")
	f.String("compression", "lz4", "frame compression: none, lz4 or zstd")
	f.Int64("memory-limit", 0, "bound on in-flight receive buffers in bytes (0 = unlimited)")
	f.Int64("io-limit", 0, "bound on outbound bytes per second (0 = unlimited)")
	return cmd
}

func runNode(cmd *cobra.Command, cfg Config) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	token, err := uuid.Parse(cfg.Node.Token)
	if err != nil {
		return fmt.Errorf("invalid token %q: %w", cfg.Node.Token, err)
	}
	compression, err := tcp.ParseCompression(cfg.Node.Compression)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	logger = logger.WithRank(cfg.Node.Rank, cfg.Node.Size)

	basic := &spatialsync.BasicMetricsCollector{}
	mc := collectors{basic}
	if cfg.MetricsAddr != "" {
		pc, shutdown, err := startMetrics(cfg.MetricsAddr, rankLabel(cfg.Node.Rank), logger)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
		mc = append(mc, pc)
	}

	c, err := tcp.Connect(ctx, tcp.Config{
		Rank:               cfg.Node.Rank,
		Size:               cfg.Node.Size,
		HubAddr:            cfg.Node.Hub,
		Token:              token,
		Compression:        compression,
		MemoryLimitBytes:   cfg.Node.MemoryLimit,
		IOLimitBytesPerSec: cfg.Node.IOLimit,
		Logger:             logger.Logger,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	start := time.Now()
	r, err := runRank(ctx, instrument(c, cfg, logger, mc), cfg, logger, mc)
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), cfg.Output, Report{
		RunID:   token.String(),
		Mode:    cfg.Mode,
		Index:   cfg.Index,
		Size:    cfg.Node.Size,
		Elapsed: time.Since(start).String(),
		Comm:    commStats(basic),
		Ranks:   []RankReport{r},
	})
}

func rankLabel(rank int) prom.Labels {
	return prom.Labels{"rank": strconv.Itoa(rank)}
}
