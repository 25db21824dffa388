package llm

import (
	"fmt"
	"net/url"
	"time"
)

// Request timeout clamp bounds. Judge calls on long chunks routinely take
// tens of seconds, so the floor keeps a misconfigured profile from starving
// every call and the ceiling keeps one from parking a worker indefinitely.
const (
	// MinTimeout is the lowest accepted request timeout.
	MinTimeout = time.Second
	// MaxTimeout is the highest accepted request timeout.
	MaxTimeout = 10 * time.Minute
)

// ValidateBaseURL normalizes an endpoint override. Empty input is allowed
// and selects the provider's default endpoint; anything else must parse as
// an absolute http or https URL with a host.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	u, err := url.Parse(baseURL)
	switch {
	case err != nil:
		return "", fmt.Errorf("invalid URL format: %w", err)
	case u.Scheme == "":
		return "", fmt.Errorf("URL must include a scheme (e.g., http:// or https://)")
	case u.Scheme != "http" && u.Scheme != "https":
		return "", fmt.Errorf("URL scheme must be http or https, but got: %s", u.Scheme)
	case u.Host == "":
		return "", fmt.Errorf("URL must include a host")
	}

	return u.String(), nil
}

// ValidateTimeout clamps a configured timeout into [MinTimeout, MaxTimeout].
// Zero and negative values pass through as zero, selecting the client
// default.
func ValidateTimeout(timeout time.Duration) time.Duration {
	switch {
	case timeout <= 0:
		return 0
	case timeout < MinTimeout:
		return MinTimeout
	case timeout > MaxTimeout:
		return MaxTimeout
	default:
		return timeout
	}
}
