package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is rejecting calls outright
// because the provider has failed too many times in a row.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState identifies where the breaker sits in its
// closed/open/half-open cycle.
type CircuitBreakerState int

const (
	// StateClosed passes every call through; the provider is considered
	// healthy.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects every call until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets a probe call through after cooldown; its outcome
	// decides between reopening and closing.
	StateHalfOpen
)

// CircuitBreakerMetrics receives breaker outcomes for monitoring. All
// methods are called synchronously after each judge call.
type CircuitBreakerMetrics interface {
	// RecordState reports the breaker state after a call.
	RecordState(state CircuitBreakerState)

	// RecordTrip reports a call rejected by an open breaker.
	RecordTrip()

	// RecordSuccess reports a call that reached the provider and succeeded.
	RecordSuccess()

	// RecordFailure reports a call that reached the provider and failed.
	RecordFailure()
}

// CircuitBreaker counts consecutive provider failures and cuts calls off
// once they reach maxFailures, retesting after a cooldown. Calls are
// serialized under the breaker's lock so state transitions observe every
// outcome in order.
type CircuitBreaker struct {
	mu          sync.RWMutex
	state       CircuitBreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
}

// NewCircuitBreaker creates a closed breaker that opens after maxFailures
// consecutive errors and stays open for cooldown before probing.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// Call runs fn through the breaker. An open breaker inside its cooldown
// returns ErrCircuitOpen without invoking fn; once the cooldown elapses
// the next call probes the provider in the half-open state.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.failures = 0
	cb.state = StateClosed
	return nil
}

// recordFailure bumps the consecutive failure count and opens the breaker
// when the threshold is reached. A half-open probe failure reopens
// immediately regardless of the count.
func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// circuitBreakedJudge wraps a judge core with a CircuitBreaker so a
// provider outage fails fast instead of burning every worker's backoff
// budget against a dead endpoint.
type circuitBreakedJudge struct {
	next    CoreJudge
	cb      *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware creates breaker middleware without metrics.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics creates breaker middleware that
// reports outcomes and state changes to metrics. All clients built from
// one middleware value share one breaker.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next CoreJudge) CoreJudge {
		return &circuitBreakedJudge{
			next:    next,
			cb:      cb,
			metrics: metrics,
		}
	}
}

// DoRequest executes the request through the breaker, failing fast with
// ErrCircuitOpen while the provider is considered down.
func (c *circuitBreakedJudge) DoRequest(ctx context.Context, req Request) (Response, error) {
	var resp Response

	err := c.cb.Call(func() error {
		var callErr error
		resp, callErr = c.next.DoRequest(ctx, req)
		return callErr
	})

	if c.metrics != nil {
		switch err {
		case nil:
			c.metrics.RecordSuccess()
		case ErrCircuitOpen:
			c.metrics.RecordTrip()
		default:
			c.metrics.RecordFailure()
		}
		c.metrics.RecordState(c.cb.GetState())
	}

	return resp, err
}

func (c *circuitBreakedJudge) GetModel() string { return c.next.GetModel() }

func (c *circuitBreakedJudge) SetModel(m string) { c.next.SetModel(m) }
