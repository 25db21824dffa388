// Package testutils provides deterministic test doubles and synthetic
// bilingual content for exercising the evaluation pipeline without live
// judge providers.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-verso/internal/ports"
)

// JudgeOutcome is one scripted result of a mock judge call: either a
// response or an error, never both.
type JudgeOutcome struct {
	// Response is returned when Err is nil.
	Response ports.JudgeResponse

	// Err is returned instead of a response when set.
	Err error
}

// PatternOutcome maps a substring of the user prompt to an outcome, so a
// multi-chunk run can give each chunk its own scripted response.
type PatternOutcome struct {
	// Pattern is matched against the request's user content by substring.
	Pattern string

	// Outcome is returned for matching requests.
	Outcome JudgeOutcome
}

// MockJudgeClient implements ports.JudgeClient with deterministic,
// scriptable behavior. Outcomes are chosen with the following precedence:
// the enqueued script (consumed call by call), then the first matching
// pattern, then the default outcome. The zero default is a complete
// payload scoring 82, so an unconfigured mock always satisfies the
// evaluator.
//
// The client is safe for concurrent use and records every request it
// sees, the number of calls in flight, and the high-water mark of that
// count, which lets scheduler tests pin down effective concurrency.
type MockJudgeClient struct {
	mu sync.Mutex

	model string

	script   []JudgeOutcome
	patterns []PatternOutcome
	fallback JudgeOutcome

	calls     []ports.JudgeRequest
	active    int
	maxActive int

	delay time.Duration

	// holdRemaining implements HoldFirst: the first N callers park on
	// holdGate until all N are in flight, then the gate stays open.
	holdRemaining int
	holdGate      chan struct{}
}

// NewMockJudgeClient creates a mock identifying itself as model, with a
// complete valid payload as its default outcome.
func NewMockJudgeClient(model string) *MockJudgeClient {
	return &MockJudgeClient{
		model:    model,
		fallback: CompleteOutcome(82),
	}
}

// Enqueue appends scripted outcomes consumed one per call, before any
// pattern or default lookup.
func (m *MockJudgeClient) Enqueue(outcomes ...JudgeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, outcomes...)
}

// AddPattern registers an outcome for requests whose user content contains
// pattern. Patterns are checked in registration order.
func (m *MockJudgeClient) AddPattern(pattern string, outcome JudgeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, PatternOutcome{Pattern: pattern, Outcome: outcome})
}

// SetDefault replaces the outcome used when no script entry or pattern
// applies.
func (m *MockJudgeClient) SetDefault(outcome JudgeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = outcome
}

// SetDelay makes every call take at least d, simulating judge latency so
// concurrent calls overlap.
func (m *MockJudgeClient) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// HoldFirst parks the first n calls until all n are in flight, then lets
// every call through. With n equal to the worker count this makes the
// concurrency high-water mark deterministic instead of a race the test
// hopes to win.
func (m *MockJudgeClient) HoldFirst(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdRemaining = n
	m.holdGate = make(chan struct{})
}

// Evaluate implements ports.JudgeClient.
func (m *MockJudgeClient) Evaluate(ctx context.Context, req ports.JudgeRequest) (ports.JudgeResponse, error) {
	if err := ctx.Err(); err != nil {
		return ports.JudgeResponse{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	call := len(m.calls)
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}

	var gate chan struct{}
	if m.holdRemaining > 0 {
		m.holdRemaining--
		if m.holdRemaining == 0 {
			close(m.holdGate)
		} else {
			gate = m.holdGate
		}
	}

	var (
		outcome  JudgeOutcome
		scripted bool
	)
	if len(m.script) > 0 {
		outcome, m.script = m.script[0], m.script[1:]
		scripted = true
	}
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-ctx.Done():
			return ports.JudgeResponse{}, ctx.Err()
		case <-gate:
		}
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ports.JudgeResponse{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	if !scripted {
		outcome = m.matchOutcome(req.UserContent)
	}
	if outcome.Err != nil {
		return ports.JudgeResponse{}, outcome.Err
	}

	resp := outcome.Response
	if resp.RequestID == "" {
		resp.RequestID = fmt.Sprintf("mock-req-%d", call)
	}
	return resp, nil
}

// matchOutcome picks the first registered pattern contained in the user
// content, falling back to the default outcome.
func (m *MockJudgeClient) matchOutcome(userContent string) JudgeOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patterns {
		if p.Pattern != "" && strings.Contains(userContent, p.Pattern) {
			return p.Outcome
		}
	}
	return m.fallback
}

// EstimateTokens implements ports.JudgeClient with the same 4-characters-
// per-token approximation the production estimators default to.
func (m *MockJudgeClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

// GetModel implements ports.JudgeClient.
func (m *MockJudgeClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel updates the mock's model identifier.
func (m *MockJudgeClient) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// Requests returns a copy of every request received, in arrival order.
func (m *MockJudgeClient) Requests() []ports.JudgeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.JudgeRequest(nil), m.calls...)
}

// CallCount reports how many calls the mock has received.
func (m *MockJudgeClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MaxActive reports the high-water mark of simultaneous calls.
func (m *MockJudgeClient) MaxActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Reset clears the script, patterns, recorded calls, and concurrency
// counters, keeping the model and default outcome.
func (m *MockJudgeClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = nil
	m.patterns = nil
	m.calls = nil
	m.active = 0
	m.maxActive = 0
	m.holdRemaining = 0
	m.holdGate = nil
}

// Verify interface compliance at compile time.
var _ ports.JudgeClient = (*MockJudgeClient)(nil)
