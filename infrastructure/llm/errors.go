package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the provider cores.
var (
	// ErrEmptyAPIKey reports a provider configured without credentials.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse reports a provider response with no content.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice reports a completion with an empty choice list.
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorType buckets provider failures into categories the evaluation
// pipeline can act on. The category decides whether a failed chunk is
// retried, and whether a failure aborts the whole run.
type ErrorType int

const (
	// ErrorTypeUnknown covers failures no classifier recognized.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication covers rejected or missing credentials.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit covers provider quota and throughput limits.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest covers malformed requests and bad parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound covers unknown models and endpoints.
	ErrorTypeNotFound
	// ErrorTypeServerError covers failures on the provider's side.
	ErrorTypeServerError
	// ErrorTypeContentPolicy covers requests blocked by safety filters.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork covers connection and cancellation failures.
	ErrorTypeNetwork
	// ErrorTypeTimeout covers deadline expirations.
	ErrorTypeTimeout
)

// errorTypeNames maps each ErrorType to the label used in error text.
// ErrorTypeUnknown stays blank so unclassified errors read cleanly.
var errorTypeNames = [...]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// ProviderError is the normalized error every provider core returns.
// The scheduler consults Fatal and IsRetryable, through the ports
// error helpers, to choose between retrying a chunk and aborting the
// run.
type ProviderError struct {
	// Type is the classified failure category.
	Type ErrorType
	// Provider names the provider that produced the failure.
	Provider string
	// StatusCode carries the HTTP status when one was available.
	StatusCode int
	// Message is the human-readable description surfaced to callers.
	Message string
	// WrappedError preserves the original error for errors.Is and
	// errors.As inspection.
	WrappedError error
}

// NewProviderError builds a classified ProviderError wrapping the
// original failure.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// Error renders the provider, status, category, message, and wrapped
// cause, skipping whichever parts are absent.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")

	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if name := e.typeString(); name != "" {
		fmt.Fprintf(&b, " [%s]", name)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.WrappedError != nil {
		fmt.Fprintf(&b, ": %v", e.WrappedError)
	}

	return b.String()
}

// Unwrap exposes the original failure to the errors package.
func (e *ProviderError) Unwrap() error {
	return e.WrappedError
}

// IsRetryable reports whether the same request could plausibly succeed
// on another attempt. Rate limits, server errors, network failures,
// and timeouts are transient; everything else is not.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// Fatal reports whether the request can never succeed as constructed.
// Bad credentials, malformed requests, unknown models, and safety
// blocks fail identically on every retry, so they abort the run.
func (e *ProviderError) Fatal() bool {
	switch e.Type {
	case ErrorTypeAuthentication, ErrorTypeBadRequest, ErrorTypeNotFound, ErrorTypeContentPolicy:
		return true
	default:
		return false
	}
}

func (e *ProviderError) typeString() string {
	if e.Type < 0 || int(e.Type) >= len(errorTypeNames) {
		return ""
	}
	return errorTypeNames[e.Type]
}

// ErrorClassifier turns raw provider failures into ProviderError
// values for one named provider.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError maps an HTTP status onto a failure category.
// Authentication and rate limit responses get uniform messages since
// provider phrasing varies; other categories keep the provider's own
// message.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	switch statusCode {
	case 401, 403:
		return NewProviderError(ec.Provider, ErrorTypeAuthentication, statusCode,
			fmt.Sprintf("%s authentication failed", ec.Provider), err)
	case 429:
		return NewProviderError(ec.Provider, ErrorTypeRateLimit, statusCode,
			fmt.Sprintf("%s rate limit exceeded", ec.Provider), err)
	case 400:
		return NewProviderError(ec.Provider, ErrorTypeBadRequest, statusCode, message, err)
	case 404:
		return NewProviderError(ec.Provider, ErrorTypeNotFound, statusCode, message, err)
	case 500, 502, 503, 504:
		return NewProviderError(ec.Provider, ErrorTypeServerError, statusCode, message, err)
	}

	errType := ErrorTypeUnknown
	switch {
	case statusCode >= 500:
		errType = ErrorTypeServerError
	case statusCode >= 400:
		errType = ErrorTypeBadRequest
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError maps context expiration and cancellation onto
// timeout and network categories so they stay retryable.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}
