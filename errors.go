package memvec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidCandidateCount is returned when candidateCount is
	// smaller than k.
	ErrInvalidCandidateCount = errors.New("candidateCount must be >= k")
)

// ErrDimensionMismatch indicates a query/collection dimensionality
// mismatch. Rejected synchronously before any I/O.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }
