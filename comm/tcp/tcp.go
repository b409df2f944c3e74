package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/spatialsync/comm"
	"github.com/hupe1980/spatialsync/internal/resource"
	"github.com/hupe1980/spatialsync/internal/wire"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrHandshake is returned when a peer is rejected by the hub.
	ErrHandshake = errors.New("tcp: handshake rejected")

	// ErrClosed is returned by collectives on a closed or broken communicator.
	ErrClosed = errors.New("tcp: communicator closed")
)

const (
	ackOK       byte = 0
	ackRejected byte = 1
)

// Listener is the hub side before all peers have joined.
type Listener struct {
	cfg Config
	ln  net.Listener
}

// Listen binds the hub address. Only rank 0 listens.
func Listen(ctx context.Context, cfg Config) (*Listener, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Rank != 0 {
		return nil, fmt.Errorf("%w: only rank 0 listens, got rank %d", comm.ErrInvalidRank, cfg.Rank)
	}

	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", cfg.HubAddr)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", cfg.HubAddr, err)
	}
	return &Listener{cfg: cfg, ln: ln}, nil
}

// Addr returns the bound address (useful with port 0).
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close releases the listening socket.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept waits until every peer rank has joined and returns the hub
// communicator. The listener is closed when Accept returns.
func (l *Listener) Accept(ctx context.Context) (*Comm, error) {
	defer l.ln.Close()
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	c := newComm(l.cfg)
	c.peers = make([]net.Conn, l.cfg.Size)
	joined := 1

	for joined < l.cfg.Size {
		conn, err := l.ln.Accept()
		if err != nil {
			c.closeConns()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("tcp: accept: %w", err)
		}

		rank, err := c.admit(conn)
		if err != nil {
			l.cfg.Logger.WarnContext(ctx, "peer rejected",
				"remote", conn.RemoteAddr().String(),
				"error", err,
			)
			_ = conn.Close()
			continue
		}

		c.peers[rank] = conn
		joined++
		l.cfg.Logger.DebugContext(ctx, "peer joined",
			"rank", rank,
			"remote", conn.RemoteAddr().String(),
			"joined", joined,
			"size", l.cfg.Size,
		)
	}

	l.cfg.Logger.InfoContext(ctx, "group connected", "size", l.cfg.Size, "token", l.cfg.Token.String())
	return c, nil
}

// admit reads the hello of conn and answers it.
func (c *Comm) admit(conn net.Conn) (int, error) {
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetDeadline(time.Time{})

	f, err := wire.ReadFrame(conn, c.rc)
	if err != nil {
		return 0, err
	}
	if f.Kind != wire.KindHello {
		return 0, fmt.Errorf("%w: expected hello, got kind %d", ErrHandshake, f.Kind)
	}
	h, err := wire.DecodeHello(f.Payload)
	if err != nil {
		return 0, err
	}

	var reason string
	switch {
	case h.Token != c.cfg.Token:
		reason = "token mismatch"
	case h.Size != c.cfg.Size:
		reason = fmt.Sprintf("size %d, hub expects %d", h.Size, c.cfg.Size)
	case h.Rank <= 0 || h.Rank >= c.cfg.Size:
		reason = fmt.Sprintf("rank %d out of range", h.Rank)
	case c.peers[h.Rank] != nil:
		reason = fmt.Sprintf("rank %d already joined", h.Rank)
	}

	if reason != "" {
		_, _ = wire.WriteFrame(conn, wire.Frame{Kind: wire.KindAck, Payload: append([]byte{ackRejected}, reason...)}, wire.CompressionNone)
		return 0, fmt.Errorf("%w: %s", ErrHandshake, reason)
	}
	if _, err := wire.WriteFrame(conn, wire.Frame{Kind: wire.KindAck, Payload: []byte{ackOK}}, wire.CompressionNone); err != nil {
		return 0, err
	}
	return h.Rank, nil
}

// Dial connects a peer rank to the hub, retrying until the hub accepts or
// ctx is done.
func Dial(ctx context.Context, cfg Config) (*Comm, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Rank == 0 {
		return nil, fmt.Errorf("%w: rank 0 is the hub and does not dial", comm.ErrInvalidRank)
	}

	var d net.Dialer
	var conn net.Conn
	for {
		var err error
		conn, err = d.DialContext(ctx, "tcp", cfg.HubAddr)
		if err == nil {
			break
		}
		cfg.Logger.DebugContext(ctx, "hub not reachable, retrying", "addr", cfg.HubAddr, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("tcp: dial %s: %w", cfg.HubAddr, ctx.Err())
		case <-time.After(cfg.DialRetryInterval):
		}
	}

	c := newComm(cfg)
	c.hub = conn

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	hello := wire.EncodeHello(wire.Hello{Rank: cfg.Rank, Size: cfg.Size, Token: cfg.Token})
	if _, err := wire.WriteFrame(conn, wire.Frame{Kind: wire.KindHello, Payload: hello}, wire.CompressionNone); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tcp: send hello: %w", err)
	}
	ack, err := wire.ReadFrame(conn, c.rc)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tcp: read ack: %w", err)
	}
	if ack.Kind != wire.KindAck || len(ack.Payload) == 0 || ack.Payload[0] != ackOK {
		_ = conn.Close()
		reason := ""
		if len(ack.Payload) > 1 {
			reason = string(ack.Payload[1:])
		}
		return nil, fmt.Errorf("%w: %s", ErrHandshake, reason)
	}
	if !stop() {
		_ = conn.Close()
		return nil, ctx.Err()
	}

	cfg.Logger.DebugContext(ctx, "joined group", "rank", cfg.Rank, "size", cfg.Size, "hub", cfg.HubAddr)
	return c, nil
}

// Connect joins the group as described by cfg: rank 0 listens and waits for
// all peers, every other rank dials the hub.
func Connect(ctx context.Context, cfg Config) (*Comm, error) {
	if cfg.Rank != 0 {
		return Dial(ctx, cfg)
	}
	l, err := Listen(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return l.Accept(ctx)
}

// Comm is one rank of a TCP group.
type Comm struct {
	cfg Config
	rc  *resource.Controller

	peers []net.Conn // hub only, indexed by rank
	hub   net.Conn   // peers only

	seq uint64

	mu     sync.Mutex
	closed bool
}

var _ comm.Communicator = (*Comm)(nil)

func newComm(cfg Config) *Comm {
	return &Comm{
		cfg: cfg,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   cfg.MemoryLimitBytes,
			IOLimitBytesPerSec: cfg.IOLimitBytesPerSec,
		}),
	}
}

// Rank implements comm.Communicator.
func (c *Comm) Rank() int { return c.cfg.Rank }

// Size implements comm.Communicator.
func (c *Comm) Size() int { return c.cfg.Size }

// IsDistributed implements comm.Communicator.
func (c *Comm) IsDistributed() bool { return true }

// AllGatherBytes implements comm.Communicator.
func (c *Comm) AllGatherBytes(ctx context.Context, send []byte) ([][]byte, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seq := c.seq
	c.seq++

	stop := context.AfterFunc(ctx, func() {
		c.expireConns()
	})
	defer func() {
		if !stop() {
			// Deadlines were forced into the past: the group lost lockstep.
			c.markClosed()
		}
	}()

	var (
		blocks [][]byte
		err    error
	)
	if c.cfg.Rank == 0 {
		blocks, err = c.gatherAtHub(ctx, seq, send)
	} else {
		blocks, err = c.gatherAtPeer(ctx, seq, send)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return blocks, nil
}

func (c *Comm) gatherAtPeer(ctx context.Context, seq uint64, send []byte) ([][]byte, error) {
	w := resource.NewRateLimitedWriter(ctx, c.hub, c.rc)
	if _, err := wire.WriteFrame(w, wire.Frame{Seq: seq, Kind: wire.KindGather, Payload: send}, c.cfg.Compression); err != nil {
		return nil, fmt.Errorf("tcp: rank %d send round %d: %w", c.cfg.Rank, seq, err)
	}

	f, err := wire.ReadFrame(c.hub, c.rc)
	if err != nil {
		return nil, fmt.Errorf("tcp: rank %d receive round %d: %w", c.cfg.Rank, seq, err)
	}
	if err := checkRound(f, seq); err != nil {
		return nil, err
	}

	blocks, err := wire.DecodeBlocks(f.Payload)
	if err != nil {
		return nil, err
	}
	if len(blocks) != c.cfg.Size {
		return nil, fmt.Errorf("%w: round %d has %d blocks for %d ranks", comm.ErrCollectiveMismatch, seq, len(blocks), c.cfg.Size)
	}
	return blocks, nil
}

func (c *Comm) gatherAtHub(ctx context.Context, seq uint64, send []byte) ([][]byte, error) {
	blocks := make([][]byte, c.cfg.Size)
	blocks[0] = slices.Clone(send)

	g, gctx := errgroup.WithContext(ctx)
	for rank := 1; rank < c.cfg.Size; rank++ {
		conn := c.peers[rank]
		g.Go(func() error {
			f, err := wire.ReadFrame(conn, c.rc)
			if err == nil {
				err = checkRound(f, seq)
			}
			if err != nil {
				if gctx.Err() == nil {
					// First failure: the round cannot complete, so release
					// the other readers and every waiting peer.
					c.abort()
				}
				return fmt.Errorf("tcp: hub receive round %d from rank %d: %w", seq, rank, err)
			}
			blocks[rank] = f.Payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := wire.EncodeBlocks(blocks)

	g, gctx = errgroup.WithContext(ctx)
	for rank := 1; rank < c.cfg.Size; rank++ {
		conn := c.peers[rank]
		g.Go(func() error {
			w := resource.NewRateLimitedWriter(gctx, conn, c.rc)
			if _, err := wire.WriteFrame(w, wire.Frame{Seq: seq, Kind: wire.KindGather, Payload: combined}, c.cfg.Compression); err != nil {
				if gctx.Err() == nil {
					c.abort()
				}
				return fmt.Errorf("tcp: hub send round %d to rank %d: %w", seq, rank, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func checkRound(f wire.Frame, seq uint64) error {
	if f.Kind != wire.KindGather {
		return fmt.Errorf("%w: expected gather frame, got kind %d", comm.ErrCollectiveMismatch, f.Kind)
	}
	if f.Seq != seq {
		return fmt.Errorf("%w: expected round %d, got %d", comm.ErrCollectiveMismatch, seq, f.Seq)
	}
	return nil
}

func (c *Comm) conns() []net.Conn {
	if c.hub != nil {
		return []net.Conn{c.hub}
	}
	out := make([]net.Conn, 0, len(c.peers))
	for _, p := range c.peers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (c *Comm) expireConns() {
	for _, conn := range c.conns() {
		_ = conn.SetDeadline(time.Now())
	}
}

// abort marks the communicator closed and closes its connections so that
// blocked reads on this rank and on its peers return.
func (c *Comm) abort() {
	c.markClosed()
	c.closeConns()
}

func (c *Comm) closeConns() {
	for _, conn := range c.conns() {
		_ = conn.Close()
	}
}

func (c *Comm) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Comm) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Close closes all connections of this rank.
func (c *Comm) Close() error {
	c.mu.Lock()
	if c.closed && c.connsClosed() {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for _, conn := range c.conns() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.hub = nil
	c.peers = nil
	return errors.Join(errs...)
}

func (c *Comm) connsClosed() bool {
	return c.hub == nil && c.peers == nil
}
