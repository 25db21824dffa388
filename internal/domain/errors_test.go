package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFailedError(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		err     error
		wantMsg string
	}{
		{
			name:    "wraps transport failure",
			index:   3,
			err:     errors.New("connection reset"),
			wantMsg: "chunk 3: connection reset",
		},
		{
			name:    "wraps oversize failure",
			index:   0,
			err:     errors.New("chunk exceeds the model context window"),
			wantMsg: "chunk 0: chunk exceeds the model context window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewChunkFailedError(tt.index, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.index, err.Index)
			assert.True(t, errors.Is(err, tt.err), "should unwrap to underlying error")
		})
	}
}

func TestChunkFailedError_As(t *testing.T) {
	wrapped := fmt.Errorf("run aborted: %w", NewChunkFailedError(7, errors.New("boom")))

	var chunkErr *ChunkFailedError
	require.True(t, errors.As(wrapped, &chunkErr))
	assert.Equal(t, 7, chunkErr.Index)
}

func TestBudgetExceededError(t *testing.T) {
	tests := []struct {
		name      string
		limitType string
		limit     int64
		used      int64
		wantMsg   string
	}{
		{
			name:      "token ceiling",
			limitType: "tokens",
			limit:     100000,
			used:      100320,
			wantMsg:   "run budget exceeded: tokens limit 100000, used 100320",
		},
		{
			name:      "call ceiling",
			limitType: "calls",
			limit:     50,
			used:      51,
			wantMsg:   "run budget exceeded: calls limit 50, used 51",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBudgetExceededError(tt.limitType, tt.limit, tt.used)

			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.limitType, err.LimitType)
			assert.Equal(t, tt.limit, err.Limit)
			assert.Equal(t, tt.used, err.Used)
		})
	}
}

func TestAggregationErrors(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrNoResults, "no chunk results to aggregate"},
		{ErrResultCountMismatch, "chunk result count does not match descriptor count"},
		{ErrIndexMismatch, "chunk result index out of order"},
		{ErrNonPositiveWeight, "chunk weight must be positive"},
	}

	for _, tt := range tests {
		assert.EqualError(t, tt.err, tt.wantMsg)
	}
}
