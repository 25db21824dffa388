package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingCollector records the labels of the last histogram sample
// on top of the shared mock collector's aggregation.
type capturingCollector struct {
	*mockMetricsCollector
	lastLabels map[string]string
}

func (c *capturingCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	c.lastLabels = labels
	c.mockMetricsCollector.RecordHistogram(metric, value, labels)
}

// metricsFixture wires a mock core with the given model behind
// MetricsMiddleware and a fresh collector.
func metricsFixture(model string) (*MockCoreJudge, *mockMetricsCollector, CoreJudge) {
	mock := NewMockCoreJudge()
	mock.Model = model
	collector := newMockMetricsCollector()
	return mock, collector, MetricsMiddleware(collector)(mock)
}

func TestMetricsMiddleware_StatusLabels(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, mock *MockCoreJudge) context.Context
		wantErr    bool
		wantStatus string
	}{
		{
			name:       "success",
			setup:      func(*testing.T, *MockCoreJudge) context.Context { return context.Background() },
			wantStatus: "success",
		},
		{
			name: "provider failure",
			setup: func(_ *testing.T, mock *MockCoreJudge) context.Context {
				mock.Error = errors.New("service error")
				return context.Background()
			},
			wantErr:    true,
			wantStatus: "error",
		},
		{
			name: "circuit rejection",
			setup: func(_ *testing.T, mock *MockCoreJudge) context.Context {
				mock.Error = ErrCircuitOpen
				return context.Background()
			},
			wantErr:    true,
			wantStatus: "circuit_open",
		},
		{
			name: "deadline expiry",
			setup: func(t *testing.T, mock *MockCoreJudge) context.Context {
				mock.ResponseDelay = 200 * time.Millisecond
				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				t.Cleanup(cancel)
				return ctx
			},
			wantErr:    true,
			wantStatus: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreJudge()
			mock.Model = "gpt-4"
			collector := &capturingCollector{mockMetricsCollector: newMockMetricsCollector()}
			wrapped := MetricsMiddleware(collector)(mock)

			ctx := tt.setup(t, mock)
			_, err := wrapped.DoRequest(ctx, Request{UserContent: "score this"})

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			require.NotNil(t, collector.lastLabels, "every outcome records a latency sample")
			assert.Equal(t, tt.wantStatus, collector.lastLabels["status"])
			assert.Equal(t, "gpt-4", collector.lastLabels["model"])
			assert.Equal(t, "openai", collector.lastLabels["provider"])

			assert.Equal(t, 1.0, collector.counters["llm_requests_total:openai"],
				"request counter covers failures too")
		})
	}
}

func TestMetricsMiddleware_TokensOnlyOnSuccess(t *testing.T) {
	t.Run("successful call accumulates input and output", func(t *testing.T) {
		mock, collector, wrapped := metricsFixture("gpt-4")
		mock.Response.TokensIn = 150
		mock.Response.TokensOut = 75

		_, err := wrapped.DoRequest(context.Background(), Request{UserContent: "score this"})

		require.NoError(t, err)
		assert.Equal(t, 225.0, collector.counters["llm_tokens_total:openai"],
			"input and output land in the same counter, split by the token_type label")
	})

	t.Run("failed call records no token counts", func(t *testing.T) {
		mock, collector, wrapped := metricsFixture("claude-3-sonnet")
		mock.Error = errors.New("service error")

		_, err := wrapped.DoRequest(context.Background(), Request{UserContent: "score this"})

		require.Error(t, err)
		assert.NotContains(t, collector.counters, "llm_tokens_total:anthropic")
		assert.Contains(t, collector.histograms, "llm_latency_seconds:anthropic",
			"latency is still recorded for failures")
	})
}

func TestMetricsMiddleware_ProviderLabelFromModel(t *testing.T) {
	tests := []struct {
		model    string
		provider string
	}{
		{"gpt-4", "openai"},
		{"gpt-3.5-turbo", "openai"},
		{"claude-3-sonnet", "anthropic"},
		{"claude-3-haiku", "anthropic"},
		{"gemini-pro", "google"},
		{"gemini-1.5-flash", "google"},
		{"custom-model", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			_, collector, wrapped := metricsFixture(tt.model)

			_, err := wrapped.DoRequest(context.Background(), Request{UserContent: "score this"})

			require.NoError(t, err)
			assert.Contains(t, collector.histograms, "llm_latency_seconds:"+tt.provider)
		})
	}
}

func TestMetricsMiddleware_LatencyReflectsCallDuration(t *testing.T) {
	mock, collector, wrapped := metricsFixture("gpt-4")
	mock.ResponseDelay = 100 * time.Millisecond

	start := time.Now()
	_, err := wrapped.DoRequest(context.Background(), Request{UserContent: "score this"})
	actual := time.Since(start)

	require.NoError(t, err)

	recorded := collector.histograms["llm_latency_seconds:openai"]
	assert.Greater(t, recorded, 0.08, "sample should cover the core's delay")
	assert.Less(t, recorded, actual.Seconds()+0.01, "sample cannot exceed the observed wall time")
}

func TestMetricsMiddleware_AccumulatesAcrossCalls(t *testing.T) {
	mock, collector, wrapped := metricsFixture("claude-3-sonnet")

	for i := range 3 {
		_, err := wrapped.DoRequest(context.Background(), Request{UserContent: "score this"})
		require.NoError(t, err, "call %d", i+1)
	}

	assert.Equal(t, 3.0, collector.counters["llm_requests_total:anthropic"])

	mock.Error = errors.New("service error")
	_, err := wrapped.DoRequest(context.Background(), Request{UserContent: "score this"})
	require.Error(t, err)

	assert.Equal(t, 4.0, collector.counters["llm_requests_total:anthropic"],
		"the failed call still increments the counter")
}

func TestMetricsMiddleware_NilCollector(t *testing.T) {
	mock := NewMockCoreJudge()
	wrapped := MetricsMiddleware(nil)(mock)

	resp, err := wrapped.DoRequest(context.Background(), Request{UserContent: "score this"})

	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Text)
	assert.Equal(t, 1, mock.GetCallCount(), "recording is optional, forwarding is not")
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	mock, _, wrapped := metricsFixture("gpt-4")

	assert.Equal(t, "gpt-4", wrapped.GetModel())
	wrapped.SetModel("new-model")
	assert.Equal(t, "new-model", mock.GetModel())

	ctx := context.WithValue(context.Background(), testContextKey, "test-value")
	req := Request{SystemPrompt: "system instructions", UserContent: "score this", MaxOutputTokens: 100}

	_, err := wrapped.DoRequest(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, req, mock.LastRequest)
	assert.Equal(t, "test-value", mock.LastContext.Value(testContextKey))
}
