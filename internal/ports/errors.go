package ports

import (
	"context"
	"errors"
)

// ErrChunkTooLarge reports that a chunk's estimated prompt cost exceeds the
// model's context budget minus the safety margin. The request is never
// dispatched; no retry can help, so the error aborts the run.
var ErrChunkTooLarge = errors.New("chunk exceeds model context budget")

// IsFatal reports whether err must abort the whole evaluation run instead
// of being retried. Oversized chunks are fatal, as is any error in the
// chain that classifies itself fatal via a Fatal() method, such as a
// provider rejecting the model or the request outright.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChunkTooLarge) {
		return true
	}
	var f interface{ Fatal() bool }
	if errors.As(err, &f) {
		return f.Fatal()
	}
	return false
}

// IsRetryable reports whether a failed judge call may be attempted again.
// Fatal errors and canceled contexts are never retryable. Errors that
// classify themselves via an IsRetryable() method decide for themselves;
// anything else is presumed a transient transport problem and retried up
// to the attempt ceiling.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}
