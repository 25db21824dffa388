package domain

import (
	"errors"
	"fmt"
)

// Aggregation precondition errors.
var (
	// ErrNoResults indicates that aggregation received zero chunk results.
	ErrNoResults = errors.New("no chunk results to aggregate")

	// ErrResultCountMismatch indicates that the number of chunk results
	// does not match the number of descriptors.
	ErrResultCountMismatch = errors.New("chunk result count does not match descriptor count")

	// ErrIndexMismatch indicates that a chunk result's index does not
	// match its position, breaking the contiguous 0..N-1 invariant.
	ErrIndexMismatch = errors.New("chunk result index out of order")

	// ErrNonPositiveWeight indicates that a chunk carries a zero or
	// negative aggregation weight.
	ErrNonPositiveWeight = errors.New("chunk weight must be positive")
)

// ChunkFailedError reports the chunk and underlying failure that aborted a
// run. The scheduler wraps the first fatal per-chunk error in this type so
// callers can tell which chunk and which failure class invalidated the
// evaluation.
type ChunkFailedError struct {
	// Index is the chunk whose evaluation failed.
	Index int

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *ChunkFailedError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *ChunkFailedError) Unwrap() error { return e.Err }

// NewChunkFailedError wraps err with the failing chunk's index.
func NewChunkFailedError(index int, err error) *ChunkFailedError {
	return &ChunkFailedError{Index: index, Err: err}
}

// BudgetExceededError reports that a run crossed one of its optional
// resource ceilings. The guard checks accumulated usage between chunk
// claims, so the reported Used value includes the chunk that crossed the
// line.
type BudgetExceededError struct {
	// LimitType names the exhausted resource, "tokens" or "calls".
	LimitType string

	// Limit is the configured ceiling.
	Limit int64

	// Used is the accumulated usage at the time of the check.
	Used int64
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("run budget exceeded: %s limit %d, used %d", e.LimitType, e.Limit, e.Used)
}

// NewBudgetExceededError creates a BudgetExceededError for the given
// resource and amounts.
func NewBudgetExceededError(limitType string, limit, used int64) *BudgetExceededError {
	return &BudgetExceededError{LimitType: limitType, Limit: limit, Used: used}
}
