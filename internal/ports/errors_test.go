package ports

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// classifiedError stands in for a provider error that carries its own
// fatality and retryability classification.
type classifiedError struct {
	fatal     bool
	retryable bool
}

func (e *classifiedError) Error() string     { return "classified provider error" }
func (e *classifiedError) Fatal() bool       { return e.fatal }
func (e *classifiedError) IsRetryable() bool { return e.retryable }

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "chunk too large", err: ErrChunkTooLarge, want: true},
		{name: "wrapped chunk too large", err: fmt.Errorf("chunk 3: %w", ErrChunkTooLarge), want: true},
		{name: "self classified fatal", err: &classifiedError{fatal: true}, want: true},
		{name: "wrapped self classified fatal", err: fmt.Errorf("evaluate: %w", &classifiedError{fatal: true}), want: true},
		{name: "self classified non fatal", err: &classifiedError{retryable: true}, want: false},
		{name: "plain error", err: errors.New("connection reset"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "fatal never retries", err: &classifiedError{fatal: true, retryable: true}, want: false},
		{name: "chunk too large never retries", err: ErrChunkTooLarge, want: false},
		{name: "canceled context never retries", err: fmt.Errorf("call: %w", context.Canceled), want: false},
		{name: "deadline exceeded retries", err: context.DeadlineExceeded, want: true},
		{name: "self classified retryable", err: &classifiedError{retryable: true}, want: true},
		{name: "self classified terminal", err: &classifiedError{}, want: false},
		{name: "unclassified transport error retries", err: errors.New("connection reset"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
