// Package llm provides judge clients for LLM providers with built-in
// support for rate limiting, circuit breaking, metrics, and tracing.
//
// The package abstracts multiple providers (OpenAI, Anthropic, Google)
// behind the ports.JudgeClient interface while adding operational
// cross-cutting concerns through a middleware pattern. Applications can
// switch judge providers or add resilience features without changing
// evaluation code.
//
// A provider core implements CoreJudge; Middleware values wrap it with
// cross-cutting behavior; Client adds the pre-flight context budget
// check and adapts results to ports.JudgeClient. The Registry routes
// "provider/model" identifiers to cached clients, and the default token
// estimator is script aware so CJK-heavy chunks are not undercounted.
//
// For example:
//
//	judge, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:   "claude-4-sonnet",
//	    Timeout: time.Minute,
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(10, 20),
//	        llm.CircuitBreakerMiddleware(3, 20*time.Second),
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	resp, err := judge.Evaluate(ctx, ports.JudgeRequest{
//	    SystemPrompt:    systemPrompt,
//	    UserContent:     chunkContent,
//	    MaxOutputTokens: 2048,
//	    StrictJSON:      true,
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

// Default context budget parameters applied when ClientConfig leaves the
// corresponding field zero.
const (
	// DefaultContextWindow is the assumed model context size in tokens.
	DefaultContextWindow = 128000

	// DefaultSafetyMargin is the token headroom reserved on top of the
	// estimated prompt cost, absorbing estimator drift.
	DefaultSafetyMargin = 1024

	// DefaultMaxOutputTokens is the output budget used when a request
	// does not carry one.
	DefaultMaxOutputTokens = 2048
)

// Request is the provider-facing form of one judging call.
// Providers map it onto their native chat or generation APIs.
type Request struct {
	// SystemPrompt carries the judging instructions and response schema.
	SystemPrompt string

	// UserContent carries the chunk material under review.
	UserContent string

	// MaxOutputTokens bounds the generated answer. Always positive by
	// the time a provider sees it.
	MaxOutputTokens int

	// StrictJSON requests the provider's JSON-constrained output mode
	// where one exists. Providers without such a mode ignore it; the
	// schema instructions in SystemPrompt still apply.
	StrictJSON bool
}

// Response is the provider-neutral result of one judging call.
type Response struct {
	// Text is the generated answer.
	Text string

	// RequestID is the provider's identifier for the call, empty when
	// the provider does not echo one.
	RequestID string

	// TokensIn and TokensOut report token usage, estimated when the
	// provider omits usage metadata.
	TokensIn  int
	TokensOut int

	// Truncated reports that generation stopped because MaxOutputTokens
	// ran out rather than because the answer finished.
	Truncated bool
}

// CoreJudge defines the minimal interface that judge providers implement.
// It abstracts the raw provider call so the middleware system can wrap any
// conforming implementation.
type CoreJudge interface {
	// DoRequest sends one request to the provider and returns its
	// response with usage and truncation metadata.
	DoRequest(ctx context.Context, req Request) (Response, error)

	// GetModel reports the model requests are sent with.
	GetModel() string

	// SetModel updates the model used for subsequent requests.
	SetModel(model string)
}

// TokenEstimator converts text into an approximate token count.
// Estimates feed the pre-flight context budget check, so they should err
// high rather than low.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) int
}

// Middleware wraps a CoreJudge implementation to add cross-cutting
// functionality such as rate limiting, circuit breaking, or tracing
// without modifying provider logic.
type Middleware func(CoreJudge) CoreJudge

// ClientConfig holds all configuration for creating a judge client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use for requests.
	Model string

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the default.
	BaseURL string

	// Timeout caps individual request duration. Zero means no client
	// level timeout.
	Timeout time.Duration

	// ContextWindow is the model's context size in tokens.
	// Zero adopts DefaultContextWindow.
	ContextWindow int

	// SafetyMargin is the reserved token headroom for the pre-flight
	// budget check. Zero adopts DefaultSafetyMargin.
	SafetyMargin int

	// TokenEstimator provides custom token counting logic. If nil, a
	// cached script-aware estimator is used.
	TokenEstimator TokenEstimator

	// Middleware is applied to the provider core in the order given,
	// first entry outermost.
	Middleware []Middleware
}

// Client implements ports.JudgeClient around a middleware-wrapped provider
// core. It owns the pre-flight context budget check; everything past that
// check is a single best-effort provider call.
type Client struct {
	core          CoreJudge
	estimator     TokenEstimator
	contextWindow int
	safetyMargin  int
}

var _ ports.JudgeClient = (*Client)(nil)

// NewClient creates a judge client for the given provider type.
// It assembles the middleware chain and validates configuration before
// returning a ready-to-use client.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse order so the first middleware is the
	// outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewCachingTokenEstimator(NewScriptAwareTokenEstimator(), 0)
	}

	contextWindow := config.ContextWindow
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	safetyMargin := config.SafetyMargin
	if safetyMargin <= 0 {
		safetyMargin = DefaultSafetyMargin
	}

	return &Client{
		core:          core,
		estimator:     estimator,
		contextWindow: contextWindow,
		safetyMargin:  safetyMargin,
	}, nil
}

// Evaluate performs the pre-flight context budget check and then makes a
// single provider call. When the estimated prompt cost does not fit in
// contextWindow minus the safety margin and the output budget, the call
// is never dispatched and ports.ErrChunkTooLarge is returned.
func (c *Client) Evaluate(ctx context.Context, req ports.JudgeRequest) (ports.JudgeResponse, error) {
	maxOutput := req.MaxOutputTokens
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputTokens
	}

	estimate := c.estimator.EstimateTokens(req.SystemPrompt) + c.estimator.EstimateTokens(req.UserContent)
	budget := c.contextWindow - c.safetyMargin - maxOutput
	if estimate > budget {
		return ports.JudgeResponse{}, fmt.Errorf(
			"prompt estimate %d tokens over budget %d (context %d, margin %d, output %d): %w",
			estimate, budget, c.contextWindow, c.safetyMargin, maxOutput, ports.ErrChunkTooLarge)
	}

	resp, err := c.core.DoRequest(ctx, Request{
		SystemPrompt:    req.SystemPrompt,
		UserContent:     req.UserContent,
		MaxOutputTokens: maxOutput,
		StrictJSON:      req.StrictJSON,
	})
	if err != nil {
		return ports.JudgeResponse{}, err
	}

	return ports.JudgeResponse{
		RawText:   resp.Text,
		RequestID: resp.RequestID,
		Usage:     domain.TokenUsage{InputTokens: resp.TokensIn, OutputTokens: resp.TokensOut},
		Truncated: resp.Truncated,
	}, nil
}

// EstimateTokens returns an approximate token count for text using the
// configured estimator.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreJudge implementation from configuration.
// The signature lets the provider registry create instances without
// knowing their implementation details.
type ProviderFactory func(ClientConfig) (CoreJudge, error)

// Provider factory registry. Providers register themselves in init so
// custom providers can be added without modifying this package.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a judge provider factory under a type
// name for use with NewClient and the Registry.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
