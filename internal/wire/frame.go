package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrCorruptFrame is returned when a frame cannot be decoded.
	ErrCorruptFrame = errors.New("corrupt frame")

	// ErrFrameTooLarge is returned when a payload does not fit the format.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Kind tags the purpose of a frame.
type Kind uint8

const (
	// KindHello opens a connection (peer -> hub).
	KindHello Kind = 1
	// KindAck answers a hello (hub -> peer).
	KindAck Kind = 2
	// KindGather carries one collective round.
	KindGather Kind = 3
)

const headerSize = 18

// Frame is one message on a connection.
type Frame struct {
	Seq     uint64
	Kind    Kind
	Payload []byte
}

// Accountant tracks in-flight buffer memory. *resource.Controller implements it.
type Accountant interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// WriteFrame encodes f with compression c and writes it to w in a single
// Write call. Returns the number of bytes written.
func WriteFrame(w io.Writer, f Frame, c Compression) (int, error) {
	if uint64(len(f.Payload)) > math.MaxUint32 {
		return 0, ErrFrameTooLarge
	}

	stored, err := compress(f.Payload, c)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		c = CompressionNone
	}

	data := f.Payload
	if stored != nil {
		data = stored
	}

	buf := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint64(buf[0:], f.Seq)
	buf[8] = byte(f.Kind)
	buf[9] = byte(c)
	binary.LittleEndian.PutUint32(buf[10:], uint32(len(f.Payload)))
	binary.LittleEndian.PutUint32(buf[14:], uint32(len(stored))) // 0 = uncompressed
	copy(buf[headerSize:], data)

	return w.Write(buf)
}

// ReadFrame reads one frame from r. The body buffer is accounted against acct
// while it is in flight; acct may be nil.
func ReadFrame(r io.Reader, acct Accountant) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	f := Frame{
		Seq:  binary.LittleEndian.Uint64(hdr[0:]),
		Kind: Kind(hdr[8]),
	}
	c := Compression(hdr[9])
	rawSize := int(binary.LittleEndian.Uint32(hdr[10:]))
	storedSize := int(binary.LittleEndian.Uint32(hdr[14:]))

	bodySize := rawSize
	if storedSize != 0 {
		bodySize = storedSize
	}

	if acct != nil {
		if err := acct.AcquireMemory(int64(bodySize)); err != nil {
			return Frame{}, fmt.Errorf("%w: %d byte body: %w", ErrFrameTooLarge, bodySize, err)
		}
		defer acct.ReleaseMemory(int64(bodySize))
	}

	body := make([]byte, bodySize)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}

	if storedSize == 0 {
		f.Payload = body
		return f, nil
	}

	payload, err := decompress(body, rawSize, c)
	if err != nil {
		return Frame{}, err
	}
	f.Payload = payload
	return f, nil
}
