package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedJudge paces judge calls through a shared token bucket so
// concurrent chunk workers collectively respect the provider's rate
// limits instead of discovering them through 429 responses.
type rateLimitedJudge struct {
	next    CoreJudge
	limiter *rate.Limiter
}

// RateLimitMiddleware enforces a sustained requests-per-second rate
// with the given burst allowance. All cores wrapped by one middleware
// instance share a single bucket.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreJudge) CoreJudge {
		return &rateLimitedJudge{next: next, limiter: limiter}
	}
}

// DoRequest blocks until a token is available or the context ends,
// then forwards the request.
func (r *rateLimitedJudge) DoRequest(ctx context.Context, req Request) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, req)
}

func (r *rateLimitedJudge) GetModel() string { return r.next.GetModel() }

func (r *rateLimitedJudge) SetModel(m string) { r.next.SetModel(m) }
