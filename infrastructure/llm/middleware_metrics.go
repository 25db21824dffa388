package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ahrav/go-verso/internal/ports"
)

// metricsJudge records latency, request counts, and token usage for
// every judge call passing through it.
type metricsJudge struct {
	next      CoreJudge
	collector ports.MetricsCollector
}

// MetricsMiddleware instruments a judge core with the given collector.
// A nil collector disables recording while leaving the call path
// intact.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreJudge) CoreJudge {
		return &metricsJudge{next: next, collector: collector}
	}
}

// DoRequest forwards the request and records its outcome. Latency and
// request counts are recorded for every call; token counts only for
// successful ones, since failed calls report no usable usage.
func (m *metricsJudge) DoRequest(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := m.next.DoRequest(ctx, req)
	if m.collector == nil {
		return resp, err
	}

	model := m.next.GetModel()
	labels := map[string]string{
		"provider": providerFromModel(model),
		"model":    model,
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		labels["token_type"] = "input"
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensIn), labels)

		labels["token_type"] = "output"
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensOut), labels)
	}

	return resp, err
}

func (m *metricsJudge) GetModel() string { return m.next.GetModel() }

func (m *metricsJudge) SetModel(model string) { m.next.SetModel(model) }

// requestStatus labels the outcome of a judge call, distinguishing
// circuit rejections and deadline expirations from ordinary failures.
func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case ctx.Err() == context.DeadlineExceeded:
		return "timeout"
	default:
		return "error"
	}
}

// providerFromModel infers the provider label from the model name, so
// metrics stay grouped by provider even though the middleware only
// sees the core it wraps.
func providerFromModel(model string) string {
	switch {
	case strings.Contains(model, "gpt"):
		return "openai"
	case strings.Contains(model, "claude"):
		return "anthropic"
	case strings.Contains(model, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}
