package llm

import (
	"sync"
	"unicode"
)

// Token estimates feed the pre-flight context budget check in
// Client.Evaluate, so every estimator here leans toward overcounting.
// An estimate that is too high rejects a chunk that might have fit; an
// estimate that is too low sends a request the provider truncates.

// CharacterBasedTokenEstimator divides character count by a fixed
// ratio. Reasonable for uniform Latin prose, poor for mixed-script
// text.
type CharacterBasedTokenEstimator struct{ charsPerToken float64 }

// NewCharacterBasedTokenEstimator returns an estimator using the given
// characters-per-token ratio. Non-positive ratios fall back to 4.0,
// the conventional figure for GPT-family tokenizers on English text.
func NewCharacterBasedTokenEstimator(charactersPerToken float64) *CharacterBasedTokenEstimator {
	if charactersPerToken <= 0 {
		charactersPerToken = 4.0
	}
	return &CharacterBasedTokenEstimator{charsPerToken: charactersPerToken}
}

// EstimateTokens divides the byte length by the configured ratio.
func (e *CharacterBasedTokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(text)) / e.charsPerToken)
}

// ScriptAwareTokenEstimator prices each rune by its script. CJK
// scripts tokenize at roughly one token per character while Latin text
// averages about four characters per token; treating a bilingual
// prompt as uniformly Latin undercounts its CJK half by a factor of
// four, letting oversized prompts slip past the budget check.
type ScriptAwareTokenEstimator struct {
	// LatinCharsPerToken is the ratio applied to non-CJK runes.
	// Zero falls back to 4.0.
	LatinCharsPerToken float64
}

// NewScriptAwareTokenEstimator returns an estimator tuned for mixed
// CJK and Latin content.
func NewScriptAwareTokenEstimator() *ScriptAwareTokenEstimator {
	return &ScriptAwareTokenEstimator{LatinCharsPerToken: 4.0}
}

// EstimateTokens counts CJK runes at one token each and divides the
// rest by the Latin ratio, rounding up.
func (e *ScriptAwareTokenEstimator) EstimateTokens(text string) int {
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}

	ratio := int(e.LatinCharsPerToken)
	if ratio <= 0 {
		ratio = 4
	}
	return cjk + (other+ratio-1)/ratio
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// CachingTokenEstimator memoizes another estimator's results. The
// system prompt repeats on every chunk of a run, so its estimate
// becomes a map lookup after the first call. Safe for concurrent use.
type CachingTokenEstimator struct {
	underlying TokenEstimator
	mu         sync.Mutex
	cache      map[string]int
	maxSize    int
}

// NewCachingTokenEstimator wraps an estimator with a bounded cache.
// Non-positive sizes fall back to 1000 entries.
func NewCachingTokenEstimator(underlying TokenEstimator, maxSize int) *CachingTokenEstimator {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &CachingTokenEstimator{
		underlying: underlying,
		cache:      make(map[string]int),
		maxSize:    maxSize,
	}
}

// EstimateTokens returns the cached estimate when one exists. Misses
// are computed outside the lock so a slow underlying estimator never
// serializes concurrent workers, then stored if the cache has room.
// A full cache stops admitting entries rather than evicting.
func (e *CachingTokenEstimator) EstimateTokens(text string) int {
	e.mu.Lock()
	tokens, hit := e.cache[text]
	e.mu.Unlock()
	if hit {
		return tokens
	}

	tokens = e.underlying.EstimateTokens(text)

	e.mu.Lock()
	if len(e.cache) < e.maxSize {
		e.cache[text] = tokens
	}
	e.mu.Unlock()

	return tokens
}

// ClearCache discards all memoized estimates.
func (e *CachingTokenEstimator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]int)
}

// CacheSize reports the number of memoized estimates.
func (e *CachingTokenEstimator) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}
