package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// EncodeBlocks packs per-rank blocks as [count u32][len u32 * count][data...].
func EncodeBlocks(blocks [][]byte) []byte {
	total := 4 + 4*len(blocks)
	for _, b := range blocks {
		total += len(b)
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(blocks)))
	pos := 4 + 4*len(blocks)
	for i, b := range blocks {
		binary.LittleEndian.PutUint32(buf[4+4*i:], uint32(len(b)))
		copy(buf[pos:], b)
		pos += len(b)
	}
	return buf
}

// DecodeBlocks reverses EncodeBlocks. The returned blocks alias data.
func DecodeBlocks(data []byte) ([][]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: block table too small", ErrCorruptFrame)
	}
	count := int(binary.LittleEndian.Uint32(data[0:]))
	if len(data) < 4+4*count {
		return nil, fmt.Errorf("%w: block table truncated", ErrCorruptFrame)
	}

	blocks := make([][]byte, count)
	pos := 4 + 4*count
	for i := 0; i < count; i++ {
		n := int(binary.LittleEndian.Uint32(data[4+4*i:]))
		if pos+n > len(data) {
			return nil, fmt.Errorf("%w: block %d extends beyond payload", ErrCorruptFrame, i)
		}
		blocks[i] = data[pos : pos+n : pos+n]
		pos += n
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptFrame, len(data)-pos)
	}
	return blocks, nil
}

// Hello is the first frame a peer sends to the hub.
type Hello struct {
	Rank  int
	Size  int
	Token uuid.UUID
}

const helloSize = 4 + 4 + 16

// EncodeHello serializes h.
func EncodeHello(h Hello) []byte {
	buf := make([]byte, helloSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.Rank))
	binary.LittleEndian.PutUint32(buf[4:], uint32(h.Size))
	copy(buf[8:], h.Token[:])
	return buf
}

// DecodeHello parses a hello payload.
func DecodeHello(data []byte) (Hello, error) {
	if len(data) != helloSize {
		return Hello{}, fmt.Errorf("%w: hello has %d bytes", ErrCorruptFrame, len(data))
	}
	h := Hello{
		Rank: int(binary.LittleEndian.Uint32(data[0:])),
		Size: int(binary.LittleEndian.Uint32(data[4:])),
	}
	copy(h.Token[:], data[8:])
	return h, nil
}
