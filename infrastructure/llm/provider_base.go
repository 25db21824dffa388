package llm

import "sync"

// BaseProvider carries the model name shared by every provider core.
// Cores embed it; the registry repoints a cached core through SetModel
// when a request routes to a different model of the same provider.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model name. Safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model used for subsequent requests. Safe for
// concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// TokenCounter fills in usage numbers when a provider response omits its
// metering metadata. The byte-ratio estimate is deliberately crude;
// provider-reported counts always win.
type TokenCounter struct {
	// CharactersPerToken is the assumed bytes-per-token ratio.
	CharactersPerToken float64
}

// NewTokenCounter returns a counter with the common 4-bytes-per-token
// approximation.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens approximates the token count of text from its byte length.
func (c *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / c.CharactersPerToken)
}

// GetTokenCount prefers the provider-reported count and falls back to an
// estimate over text when the report is absent or zero.
func (c *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return c.EstimateTokens(text)
}
