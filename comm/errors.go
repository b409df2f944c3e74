package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectiveMismatch is returned when ranks issued collectives that do
	// not line up (different sizes or a different call).
	ErrCollectiveMismatch = errors.New("collective mismatch")

	// ErrInvalidRank is returned when a rank is outside [0, size).
	ErrInvalidRank = errors.New("invalid rank")

	// ErrInvalidLayout is returned when sizes/offsets do not describe the
	// receive buffer.
	ErrInvalidLayout = errors.New("invalid gather layout")
)

// MismatchError reports a block of unexpected size received from a rank.
//
// errors.Is(err, ErrCollectiveMismatch) holds for every MismatchError.
type MismatchError struct {
	Rank int
	Want int
	Got  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("collective mismatch: rank %d sent %d bytes, expected %d", e.Rank, e.Got, e.Want)
}

func (e *MismatchError) Unwrap() error { return ErrCollectiveMismatch }
