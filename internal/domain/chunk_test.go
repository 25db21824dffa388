package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  int
	}{
		{name: "below minimum", score: -5, want: MinScore},
		{name: "at minimum", score: 0, want: 0},
		{name: "in range", score: 73, want: 73},
		{name: "at maximum", score: 100, want: 100},
		{name: "above maximum", score: 140, want: MaxScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampScore(tt.score))
		})
	}
}

func TestCriteriaAndAspectsAreStable(t *testing.T) {
	assert.Equal(t, []string{CriterionAccuracy, CriterionFluency, CriterionStyle, CriterionTerminology}, Criteria())
	assert.Equal(t, []string{AspectAssessment, AspectStrengths, AspectWeaknesses, AspectSuggestions}, Aspects())

	// Callers receive fresh slices; mutating one must not leak into the next.
	Criteria()[0] = "mutated"
	assert.Equal(t, CriterionAccuracy, Criteria()[0])
}

func TestBilingualTextIsEmpty(t *testing.T) {
	assert.True(t, BilingualText{}.IsEmpty())
	assert.True(t, BilingualText{Primary: "  ", Secondary: "\n"}.IsEmpty())
	assert.False(t, BilingualText{Primary: "ok"}.IsEmpty())
	assert.False(t, BilingualText{Secondary: "好"}.IsEmpty())
}

func TestTokenUsageAdd(t *testing.T) {
	total := TokenUsage{}.
		Add(TokenUsage{InputTokens: 120, OutputTokens: 40}).
		Add(TokenUsage{InputTokens: 80, OutputTokens: 10})
	assert.Equal(t, TokenUsage{InputTokens: 200, OutputTokens: 50}, total)
	assert.Equal(t, 250, total.Total())
}

func TestChunkResultSortMissingFields(t *testing.T) {
	r := ChunkResult{MissingFields: []string{
		"quantitative.Style",
		"overallScore",
		"quantitative.Accuracy.score",
		"qualitative.assessment",
	}}
	r.SortMissingFields()
	assert.Equal(t, []string{
		"overallScore",
		"qualitative.assessment",
		"quantitative.Accuracy.score",
		"quantitative.Style",
	}, r.MissingFields)
}
