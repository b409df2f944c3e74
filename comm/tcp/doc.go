// Package tcp connects the ranks of a group running as separate processes.
//
// Rank 0 is the hub: it listens on Config.HubAddr and every other rank dials
// it. A collective round is one frame from each peer to the hub and one
// combined frame back, so every round costs 2*(Size-1) frames regardless of
// payload layout.
//
//	c, err := tcp.Connect(ctx, tcp.Config{
//	    Rank:        rank,
//	    Size:        4,
//	    HubAddr:     "10.0.0.1:7946",
//	    Token:       token, // shared by all ranks
//	    Compression: tcp.CompressionLZ4,
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
// A canceled context breaks the communicator: the lockstep position of the
// group is lost, so later calls return ErrClosed.
package tcp
