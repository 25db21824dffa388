// Package ports defines the boundary interfaces between the evaluation core
// and the outside world: the judge model that scores translation chunks, the
// sink that receives lifecycle events, and the collector that records
// operational metrics. The application layer depends only on these
// interfaces; infrastructure packages provide the implementations.
package ports

import (
	"context"

	"github.com/ahrav/go-verso/internal/domain"
)

// JudgeClient is the boundary to one configured judge model.
// Implementations handle provider-specific authentication, request
// formatting, and response mapping. A call is single best-effort: retry
// policy lives with the caller, not the client.
type JudgeClient interface {
	// Evaluate sends one judging request and returns the raw response.
	// Implementations must check the request's token cost against the
	// model's context budget before dispatch and return ErrChunkTooLarge
	// without calling the provider when it cannot fit.
	Evaluate(ctx context.Context, req JudgeRequest) (JudgeResponse, error)

	// EstimateTokens approximates the token count of text for the
	// client's model. Used for pre-flight context budget checks; the
	// estimation method varies by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier served by this client.
	// Useful for logging and metrics labels.
	GetModel() string
}

// JudgeRequest is a single judging call: the evaluation instructions, the
// chunk content under review, and the output budget.
type JudgeRequest struct {
	// SystemPrompt carries the judging instructions and the required
	// response schema.
	SystemPrompt string

	// UserContent carries the source chunk, its translation, and any
	// author intention notes.
	UserContent string

	// MaxOutputTokens bounds the length of the judge's answer. Callers
	// grow this budget across retries when responses truncate.
	MaxOutputTokens int

	// StrictJSON asks the provider for a JSON-constrained response mode
	// where the provider supports one. Content is validated downstream
	// either way.
	StrictJSON bool
}

// JudgeResponse is the raw outcome of one judging call, before any parsing
// or shape validation.
type JudgeResponse struct {
	// RawText is the unparsed response body.
	RawText string

	// RequestID is the provider's identifier for this call, when the
	// provider echoes one. Recorded in the final report for audit.
	RequestID string

	// Usage reports the token consumption the provider attributed to
	// this call. Zero when the provider omits usage data.
	Usage domain.TokenUsage

	// Truncated reports that the provider stopped generating because the
	// output token budget ran out. Callers treat a truncated answer like
	// a missing one and retry with a larger budget.
	Truncated bool
}

// JudgeResolver resolves a "provider/model" identifier to a ready client.
// Implementations own credential lookup and client caching.
type JudgeResolver interface {
	// Resolve returns the client serving model. It fails when the
	// provider is unknown or its credentials are missing.
	Resolve(model string) (JudgeClient, error)
}
