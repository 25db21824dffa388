package llm

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharacterBasedTokenEstimator_ScalesWithByteLength(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		ratio float64
		want  int
	}{
		{"simple text", "Hello world", 4.0, 2},
		{"single character", "A", 1.0, 1},
		{"empty text", "", 4.0, 0},
		{"long text", "This is a longer text with more characters", 5.0, 8},
		{"unicode text", "Hello 世界! 🌍", 3.0, 6}, // byte length, not rune count
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			estimator := NewCharacterBasedTokenEstimator(tt.ratio)
			assert.Equal(t, tt.want, estimator.EstimateTokens(tt.text))
		})
	}
}

func TestCharacterBasedTokenEstimator_DefaultRatio(t *testing.T) {
	text := "test string"
	want := len(text) / 4

	for _, ratio := range []float64{0, -2.5} {
		estimator := NewCharacterBasedTokenEstimator(ratio)
		assert.Equal(t, want, estimator.EstimateTokens(text),
			"ratio %v should fall back to the default", ratio)
	}
}

func TestScriptAwareTokenEstimator_CountsCJKRunesIndividually(t *testing.T) {
	estimator := NewScriptAwareTokenEstimator()

	tests := []struct {
		name           string
		text           string
		expectedTokens int
	}{
		{
			name:           "pure latin rounds up",
			text:           "Hello world",
			expectedTokens: 3, // ceil(11 / 4) = 3
		},
		{
			name:           "pure han",
			text:           "春眠不觉晓",
			expectedTokens: 5, // one token per ideograph
		},
		{
			name:           "mixed latin and han",
			text:           "The translation: 春眠不觉晓",
			expectedTokens: 10, // ceil(17 latin / 4) + 5 han = 5 + 5
		},
		{
			name:           "hiragana",
			text:           "こんにちは",
			expectedTokens: 5,
		},
		{
			name:           "katakana",
			text:           "カタカナ",
			expectedTokens: 4,
		},
		{
			name:           "hangul",
			text:           "안녕하세요",
			expectedTokens: 5,
		},
		{
			name:           "empty text",
			text:           "",
			expectedTokens: 0,
		},
		{
			name:           "exact latin boundary",
			text:           "abcd",
			expectedTokens: 1, // ceil(4 / 4) = 1
		},
		{
			name:           "latin just over boundary",
			text:           "abcde",
			expectedTokens: 2, // ceil(5 / 4) = 2
		},
		{
			name:           "emoji treated as latin",
			text:           "🌍",
			expectedTokens: 1, // single non-CJK rune, ceil(1 / 4) = 1
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := estimator.EstimateTokens(tt.text)
			assert.Equal(t, tt.expectedTokens, tokens, "token estimate should match expected")
		})
	}
}

func TestScriptAwareTokenEstimator_OvercountsRelativeToUniformRatio(t *testing.T) {
	// Given bilingual content with a substantial CJK half
	text := "The spring dawn: 春眠不觉晓，处处闻啼鸟"

	scriptAware := NewScriptAwareTokenEstimator()
	uniform := NewCharacterBasedTokenEstimator(4.0)

	// When estimating with both strategies
	awareTokens := scriptAware.EstimateTokens(text)
	uniformTokens := uniform.EstimateTokens(text)

	// Then the script-aware estimate should never be lower, since CJK runes
	// cost roughly one token each rather than a quarter token
	assert.GreaterOrEqual(t, awareTokens, uniformTokens,
		"script-aware estimate should not undercount CJK content")
}

func TestScriptAwareTokenEstimator_UsesDefaultRatioForZeroValue(t *testing.T) {
	// Given a zero-value estimator (no ratio configured)
	estimator := &ScriptAwareTokenEstimator{}

	// When estimating pure latin text
	tokens := estimator.EstimateTokens("abcdefgh")

	// Then it should fall back to the default 4.0 ratio
	assert.Equal(t, 2, tokens, "should use default ratio, ceil(8 / 4) = 2")
}

func TestCachingTokenEstimator(t *testing.T) {
	// A 1.0 ratio makes the expected token count equal the text length.
	newEstimator := func(maxSize int) *CachingTokenEstimator {
		return NewCachingTokenEstimator(NewCharacterBasedTokenEstimator(1.0), maxSize)
	}

	t.Run("repeat lookups hit the cache", func(t *testing.T) {
		estimator := newEstimator(10)

		first := estimator.EstimateTokens("cached test text")
		assert.Equal(t, 16, first)
		assert.Equal(t, first, estimator.EstimateTokens("cached test text"))
		assert.Equal(t, first, estimator.EstimateTokens("cached test text"))
		assert.Equal(t, 1, estimator.CacheSize())
	})

	t.Run("distinct texts get distinct entries", func(t *testing.T) {
		estimator := newEstimator(10)

		assert.Equal(t, 5, estimator.EstimateTokens("short"))
		assert.Equal(t, 27, estimator.EstimateTokens("a much longer piece of text"))
		assert.Equal(t, 2, estimator.CacheSize())
	})

	t.Run("cache stops growing at max size", func(t *testing.T) {
		estimator := newEstimator(2)

		estimator.EstimateTokens("first")
		estimator.EstimateTokens("second")
		estimator.EstimateTokens("third")

		assert.Equal(t, 2, estimator.CacheSize())
		assert.Equal(t, 5, estimator.EstimateTokens("third"), "estimates past the cap still compute")
	})

	t.Run("clear empties the cache", func(t *testing.T) {
		estimator := newEstimator(10)

		estimator.EstimateTokens("some text")
		assert.Equal(t, 1, estimator.CacheSize())

		estimator.ClearCache()
		assert.Equal(t, 0, estimator.CacheSize())
	})

	t.Run("zero max size falls back to the default", func(t *testing.T) {
		estimator := newEstimator(0)

		assert.Equal(t, 4, estimator.EstimateTokens("test"))
		assert.Equal(t, 1, estimator.CacheSize())
	})
}

func TestCachingTokenEstimator_ConcurrentAccess(t *testing.T) {
	underlying := NewScriptAwareTokenEstimator()
	cachingEstimator := NewCachingTokenEstimator(underlying, 100)

	expected := underlying.EstimateTokens("shared prompt text")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// Mix repeated and unique texts to exercise both cache paths.
			tokens := cachingEstimator.EstimateTokens("shared prompt text")
			assert.Equal(t, expected, tokens, "concurrent estimate should match")
			cachingEstimator.EstimateTokens(fmt.Sprintf("unique text %d", id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, expected, cachingEstimator.EstimateTokens("shared prompt text"),
		"cached result should survive concurrent access")
}

func TestTokenEstimators_ConsistencyAcrossCalls(t *testing.T) {
	text := "A consistent piece of text for estimation"

	estimators := []struct {
		name      string
		estimator TokenEstimator
	}{
		{"character-based", NewCharacterBasedTokenEstimator(4.0)},
		{"script-aware", NewScriptAwareTokenEstimator()},
		{"caching", NewCachingTokenEstimator(NewScriptAwareTokenEstimator(), 10)},
	}

	for _, e := range estimators {
		t.Run(e.name, func(t *testing.T) {
			first := e.estimator.EstimateTokens(text)
			second := e.estimator.EstimateTokens(text)
			assert.Equal(t, first, second, "repeated estimation should be deterministic")
			assert.Positive(t, first, "estimate should be positive for non-empty text")
		})
	}
}

func TestTokenEstimators_HandleEmptyText(t *testing.T) {
	estimators := []struct {
		name      string
		estimator TokenEstimator
	}{
		{"character-based", NewCharacterBasedTokenEstimator(4.0)},
		{"script-aware", NewScriptAwareTokenEstimator()},
		{"caching", NewCachingTokenEstimator(NewScriptAwareTokenEstimator(), 10)},
	}

	for _, e := range estimators {
		t.Run(e.name, func(t *testing.T) {
			assert.Equal(t, 0, e.estimator.EstimateTokens(""), "empty text should estimate zero tokens")
		})
	}
}
