package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root spatialbench command with all subcommands
// registered. Each call uses its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "spatialbench",
		Short:         "spatialbench: distributed spatial search benchmark",
		Long:          "spatialbench generates partitioned point sets, resolves ownership across ranks and runs parallel radius searches.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(v, cmd)
		},
	}

	// Global flags. Names double as config keys.
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to config file")
	pf.Int("points", 10000, "points per rank")
	pf.Float64("radius", 0.5, "search radius")
	pf.Float64("threshold", 0.5, "bounding box expansion for ownership resolution")
	pf.Float64("halo", 1.0, "width of the ghost layer each rank holds")
	pf.Int64("seed", 42, "random seed shared by all ranks")
	pf.String("mode", "batched", "ownership resolution: per-point or batched")
	pf.String("index", "grid", "local index: grid or flat")
	pf.Int("allocation", 1000, "result slots per query")
	pf.Int("workers", 0, "search goroutines per rank (0 = GOMAXPROCS)")
	pf.Duration("timeout", 0, "abort the run after this duration")
	pf.Duration("stall-after", 0, "warn about collectives blocked longer than this")
	pf.StringP("output", "o", "text", "report format: text or yaml")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newRunCmd(v),
		newNodeCmd(v),
		newTokenCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up v with defaults, env bindings, flag bindings, and an
// optional config file so the standard precedence (flag > env > file >
// defaults) is handled uniformly.
func initViper(v *viper.Viper, cmd *cobra.Command) error {
	setDefaults(v)
	setupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("spatialbench")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/spatialbench")
		// No config file is fine; defaults and env vars still apply.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}

	// Bound flags only win when set on the command line.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	if err := v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}
