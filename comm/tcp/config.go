package tcp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/internal/wire"
)

// Compression selects the frame payload compression of a group.
type Compression = wire.Compression

// Frame compression algorithms.
const (
	CompressionNone = wire.CompressionNone
	CompressionLZ4  = wire.CompressionLZ4
	CompressionZSTD = wire.CompressionZSTD
)

// ParseCompression maps a name ("none", "lz4", "zstd") to a Compression.
func ParseCompression(name string) (Compression, error) {
	return wire.ParseCompression(name)
}

// Config describes one rank of a TCP group.
type Config struct {
	// Rank of this process in [0, Size).
	Rank int

	// Size is the number of ranks in the group.
	Size int

	// HubAddr is the address rank 0 listens on and the other ranks dial.
	HubAddr string

	// Token identifies the group. Peers presenting another token are rejected.
	Token uuid.UUID

	// Compression applied to outbound frames.
	Compression Compression

	// DialRetryInterval is the pause between dial attempts while the hub is
	// not reachable yet. If 0, defaults to 100ms.
	DialRetryInterval time.Duration

	// MemoryLimitBytes bounds the in-flight receive buffers. If 0, unlimited.
	MemoryLimitBytes int64

	// IOLimitBytesPerSec bounds outbound throughput. If 0, unlimited.
	IOLimitBytesPerSec int64

	// Logger receives connection lifecycle events. If nil, logs are discarded.
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Size < 1 {
		return fmt.Errorf("tcp: size must be positive, got %d", c.Size)
	}
	if c.Rank < 0 || c.Rank >= c.Size {
		return fmt.Errorf("%w: %d of %d", comm.ErrInvalidRank, c.Rank, c.Size)
	}
	if c.HubAddr == "" {
		return fmt.Errorf("tcp: hub address is required")
	}
	if c.DialRetryInterval <= 0 {
		c.DialRetryInterval = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}
