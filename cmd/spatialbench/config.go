package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/spatialsync"
)

// Config holds the settings of one benchmark run.
type Config struct {
	Ranks       int           `mapstructure:"ranks"`
	Points      int           `mapstructure:"points"`
	Radius      float64       `mapstructure:"radius"`
	Threshold   float64       `mapstructure:"threshold"`
	Halo        float64       `mapstructure:"halo"`
	Seed        int64         `mapstructure:"seed"`
	Mode        string        `mapstructure:"mode"`
	Index       string        `mapstructure:"index"`
	Allocation  int           `mapstructure:"allocation"`
	Workers     int           `mapstructure:"workers"`
	Timeout     time.Duration `mapstructure:"timeout"`
	StallAfter  time.Duration `mapstructure:"stall-after"`
	Output      string        `mapstructure:"output"`
	LogLevel    string        `mapstructure:"log-level"`
	LogFormat   string        `mapstructure:"log-format"`
	MetricsAddr string        `mapstructure:"metrics-addr"`

	Node NodeConfig `mapstructure:",squash"`
}

// NodeConfig holds the TCP settings of the node command.
type NodeConfig struct {
	Rank        int    `mapstructure:"rank"`
	Size        int    `mapstructure:"size"`
	Hub         string `mapstructure:"hub"`
	Token       string `mapstructure:"token"`
	Compression string `mapstructure:"compression"`
	MemoryLimit int64  `mapstructure:"memory-limit"`
	IOLimit     int64  `mapstructure:"io-limit"`
}

// setDefaults registers the lowest-precedence values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ranks", 4)
	v.SetDefault("points", 10000)
	v.SetDefault("radius", 0.5)
	v.SetDefault("threshold", 0.5)
	v.SetDefault("halo", 1.0)
	v.SetDefault("seed", 42)
	v.SetDefault("mode", spatialsync.ResolveBatched.String())
	v.SetDefault("index", "grid")
	v.SetDefault("allocation", spatialsync.DefaultAllocation)
	v.SetDefault("workers", 0)
	v.SetDefault("timeout", 5*time.Minute)
	v.SetDefault("stall-after", 30*time.Second)
	v.SetDefault("output", "text")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("metrics-addr", "")
	v.SetDefault("rank", 0)
	v.SetDefault("size", 1)
	v.SetDefault("hub", "127.0.0.1:7946")
	v.SetDefault("token", "")
	v.SetDefault("compression", "lz4")
	v.SetDefault("memory-limit", 0)
	v.SetDefault("io-limit", 0)
}

// setupEnv maps SPATIALBENCH_LOG_LEVEL to log-level and so on.
func setupEnv(v *viper.Viper) {
	v.SetEnvPrefix("SPATIALBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []string
	if c.Ranks < 1 {
		errs = append(errs, "ranks must be positive")
	}
	if c.Points < 0 {
		errs = append(errs, "points must not be negative")
	}
	if c.Radius < 0 {
		errs = append(errs, "radius must not be negative")
	}
	if c.Allocation < 1 {
		errs = append(errs, "allocation must be positive")
	}
	if _, err := c.resolveMode(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Index {
	case "grid", "flat":
	default:
		errs = append(errs, fmt.Sprintf("unknown index %q", c.Index))
	}
	switch c.Output {
	case "text", "yaml":
	default:
		errs = append(errs, fmt.Sprintf("unknown output %q", c.Output))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) resolveMode() (spatialsync.ResolveMode, error) {
	switch c.Mode {
	case spatialsync.ResolvePerPoint.String():
		return spatialsync.ResolvePerPoint, nil
	case spatialsync.ResolveBatched.String():
		return spatialsync.ResolveBatched, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", c.Mode)
	}
}
