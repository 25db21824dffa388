package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errAlternatingFailure = errors.New("alternating failure")

// MockCoreJudge is a configurable CoreJudge for middleware tests.
// Fields may be set directly before the first request; DoRequest
// serializes access, so concurrent callers see consistent counts.
type MockCoreJudge struct {
	mu sync.Mutex

	// Response and Error control what DoRequest returns. Error wins
	// when both are set.
	Response Response
	Error    error
	Model    string

	// ResponseDelay stalls each call, honoring context cancellation,
	// so timeout middleware can be exercised deterministically.
	ResponseDelay time.Duration

	// AlternateErrors fails every second call, for driving a circuit
	// breaker through mixed outcomes.
	AlternateErrors bool

	CallCount   int
	LastRequest Request
	LastContext context.Context
}

// NewMockCoreJudge returns a mock that succeeds with a small canned
// response.
func NewMockCoreJudge() *MockCoreJudge {
	return &MockCoreJudge{
		Response: Response{
			Text:      "test response",
			TokensIn:  10,
			TokensOut: 20,
		},
		Model: "test-model",
	}
}

// DoRequest records the call, applies the configured delay, and
// returns the configured outcome.
func (m *MockCoreJudge) DoRequest(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastRequest = req
	m.LastContext = ctx

	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	if m.AlternateErrors && m.CallCount%2 == 0 {
		if m.Error != nil {
			return Response{}, m.Error
		}
		return Response{}, errAlternatingFailure
	}

	if m.Error != nil {
		return Response{}, m.Error
	}
	return m.Response, nil
}

func (m *MockCoreJudge) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

func (m *MockCoreJudge) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount reports how many times DoRequest has been invoked.
func (m *MockCoreJudge) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
