package spatialsync

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation marks programming errors: negative counts,
	// mismatched container sizes, corrupted communication state. They are not
	// recoverable; callers should abort the search.
	ErrContractViolation = errors.New("contract violation")

	// ErrInvalidAllocation is returned by ParallelRadiusSearch when the
	// per-query allocation is not positive.
	ErrInvalidAllocation = errors.New("invalid search allocation")

	// ErrTooManyPoints is returned by batched resolution when the global point
	// count does not fit the 32-bit bitmap index space.
	ErrTooManyPoints = errors.New("too many points for batched resolution")
)

// ContractViolationError describes a broken invariant detected by an
// operation.
//
// errors.Is(err, ErrContractViolation) holds for every ContractViolationError.
type ContractViolationError struct {
	Op     string
	Detail string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("%s: contract violation: %s", e.Op, e.Detail)
}

func (e *ContractViolationError) Unwrap() error { return ErrContractViolation }

func violation(op, format string, args ...any) error {
	return &ContractViolationError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
