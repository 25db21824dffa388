package llm

import (
	"context"
	"time"
)

// timeoutJudge caps the wall-clock time of each judge call. A chunk
// whose provider call hangs would otherwise hold its retry slot for
// the life of the run.
type timeoutJudge struct {
	next    CoreJudge
	timeout time.Duration
}

// TimeoutMiddleware bounds every request with a per-call deadline,
// layered onto whatever deadline the caller's context already has.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreJudge) CoreJudge {
		return &timeoutJudge{next: next, timeout: timeout}
	}
}

// DoRequest forwards the request under a derived deadline context.
// Expiry surfaces as context.DeadlineExceeded, which the error
// classifiers map to a retryable timeout.
func (t *timeoutJudge) DoRequest(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, req)
}

func (t *timeoutJudge) GetModel() string { return t.next.GetModel() }

func (t *timeoutJudge) SetModel(m string) { t.next.SetModel(m) }
