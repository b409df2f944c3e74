package comm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Scalar is an element type the typed collectives can move.
// Every element travels as 8 little-endian bytes.
type Scalar interface {
	int | int32 | int64 | uint32 | uint64 | float64
}

const scalarSize = 8

// SumAll returns the sum of value over all ranks.
func SumAll(ctx context.Context, c Communicator, value int) (int, error) {
	if !c.IsDistributed() {
		return value, nil
	}
	all := make([]int, c.Size())
	if err := AllGather(ctx, c, []int{value}, all); err != nil {
		return 0, err
	}
	var total int
	for _, v := range all {
		total += v
	}
	return total, nil
}

// AllGather gathers equally sized contributions of every rank into recv.
// len(recv) must be Size()*len(send); rank r's block lands at r*len(send).
func AllGather[T Scalar](ctx context.Context, c Communicator, send, recv []T) error {
	n := len(send)
	if len(recv) != c.Size()*n {
		return fmt.Errorf("%w: allgather recv has %d elements, want %d", ErrInvalidLayout, len(recv), c.Size()*n)
	}
	if !c.IsDistributed() {
		copy(recv, send)
		return nil
	}

	blocks, err := c.AllGatherBytes(ctx, encode(send))
	if err != nil {
		return err
	}
	if len(blocks) != c.Size() {
		return fmt.Errorf("%w: got %d blocks from %d ranks", ErrCollectiveMismatch, len(blocks), c.Size())
	}
	for r, b := range blocks {
		if len(b) != scalarSize*n {
			return &MismatchError{Rank: r, Want: scalarSize * n, Got: len(b)}
		}
		decode(recv[r*n:(r+1)*n], b)
	}
	return nil
}

// AllGatherv gathers variable-size contributions into recv. Rank r sends
// sizes[r] elements, stored at recv[offsets[r]:offsets[r]+sizes[r]].
func AllGatherv[T Scalar](ctx context.Context, c Communicator, send, recv []T, sizes, offsets []int) error {
	if err := checkLayout(c, len(send), len(recv), sizes, offsets); err != nil {
		return err
	}
	if !c.IsDistributed() {
		copy(recv[offsets[0]:], send)
		return nil
	}

	blocks, err := c.AllGatherBytes(ctx, encode(send))
	if err != nil {
		return err
	}
	if len(blocks) != c.Size() {
		return fmt.Errorf("%w: got %d blocks from %d ranks", ErrCollectiveMismatch, len(blocks), c.Size())
	}
	for r, b := range blocks {
		if len(b) != scalarSize*sizes[r] {
			return &MismatchError{Rank: r, Want: scalarSize * sizes[r], Got: len(b)}
		}
		decode(recv[offsets[r]:offsets[r]+sizes[r]], b)
	}
	return nil
}

func checkLayout(c Communicator, sendLen, recvLen int, sizes, offsets []int) error {
	size := c.Size()
	if len(sizes) != size || len(offsets) != size {
		return fmt.Errorf("%w: %d sizes and %d offsets for %d ranks", ErrInvalidLayout, len(sizes), len(offsets), size)
	}
	for r := 0; r < size; r++ {
		if sizes[r] < 0 || offsets[r] < 0 || offsets[r]+sizes[r] > recvLen {
			return fmt.Errorf("%w: rank %d block [%d,+%d) outside recv of %d", ErrInvalidLayout, r, offsets[r], sizes[r], recvLen)
		}
	}
	rank := c.Rank()
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: %d of %d", ErrInvalidRank, rank, size)
	}
	if sendLen != sizes[rank] {
		return fmt.Errorf("%w: rank %d sends %d elements, layout expects %d", ErrInvalidLayout, rank, sendLen, sizes[rank])
	}
	return nil
}

func encode[T Scalar](vals []T) []byte {
	buf := make([]byte, scalarSize*len(vals))
	switch s := any(vals).(type) {
	case []float64:
		for i, v := range s {
			binary.LittleEndian.PutUint64(buf[scalarSize*i:], math.Float64bits(v))
		}
	case []int:
		for i, v := range s {
			binary.LittleEndian.PutUint64(buf[scalarSize*i:], uint64(int64(v)))
		}
	case []int32:
		for i, v := range s {
			binary.LittleEndian.PutUint64(buf[scalarSize*i:], uint64(int64(v)))
		}
	case []int64:
		for i, v := range s {
			binary.LittleEndian.PutUint64(buf[scalarSize*i:], uint64(v))
		}
	case []uint32:
		for i, v := range s {
			binary.LittleEndian.PutUint64(buf[scalarSize*i:], uint64(v))
		}
	case []uint64:
		for i, v := range s {
			binary.LittleEndian.PutUint64(buf[scalarSize*i:], v)
		}
	}
	return buf
}

// decode assumes len(src) == scalarSize*len(dst).
func decode[T Scalar](dst []T, src []byte) {
	switch d := any(dst).(type) {
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[scalarSize*i:]))
		}
	case []int:
		for i := range d {
			d[i] = int(int64(binary.LittleEndian.Uint64(src[scalarSize*i:])))
		}
	case []int32:
		for i := range d {
			d[i] = int32(int64(binary.LittleEndian.Uint64(src[scalarSize*i:])))
		}
	case []int64:
		for i := range d {
			d[i] = int64(binary.LittleEndian.Uint64(src[scalarSize*i:]))
		}
	case []uint32:
		for i := range d {
			d[i] = uint32(binary.LittleEndian.Uint64(src[scalarSize*i:]))
		}
	case []uint64:
		for i := range d {
			d[i] = binary.LittleEndian.Uint64(src[scalarSize*i:])
		}
	}
}
