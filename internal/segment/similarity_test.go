package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verso/internal/domain"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		want  float64
		delta float64
	}{
		{name: "identical", a: "the same text", b: "the same text", want: 1.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "case folded", a: "HELLO World", b: "hello world", want: 1.0},
		{name: "one edit in seven", a: "kitten", b: "sitting", want: 1.0 - 3.0/7.0, delta: 0.001},
		{name: "disjoint", a: "abcd", b: "wxyz", want: 0.0},
		{name: "cjk edit distance", a: "春眠不觉晓", b: "春眠不觉夜", want: 0.8, delta: 0.001},
		{name: "empty against text", a: "", b: "text", want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if tt.delta > 0 {
				assert.InDelta(t, tt.want, got, tt.delta)
			} else {
				assert.Equal(t, tt.want, got)
			}
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestDetectCopyThrough(t *testing.T) {
	source := "The untranslated passage stays in English from start to finish."
	descriptors := []domain.ChunkDescriptor{
		{Index: 0, SourceChunk: "山重水复疑无路，柳暗花明又一村。", TranslationChunk: "Beyond the hills and streams where no road seems to go, willows and blossoms open onto another village."},
		{Index: 1, SourceChunk: source, TranslationChunk: source},
		{Index: 2, SourceChunk: "第三段原文。", TranslationChunk: "   "},
	}

	warnings := DetectCopyThrough(descriptors, 0.92)

	require.Len(t, warnings, 1)
	assert.Equal(t, 1, warnings[0].Index)
	assert.Equal(t, domain.WarningCopyThrough, warnings[0].Kind)
	assert.Contains(t, warnings[0].Detail, "identical to the source")
}

func TestDetectCopyThroughNearMiss(t *testing.T) {
	source := strings.Repeat("an identical run of words ", 10)
	almost := strings.Replace(source, "identical", "identicaI", 1)

	warnings := DetectCopyThrough([]domain.ChunkDescriptor{
		{Index: 0, SourceChunk: source, TranslationChunk: almost},
	}, 0.92)

	require.Len(t, warnings, 1)
}

func TestDetectCopyThroughDisabled(t *testing.T) {
	descriptors := []domain.ChunkDescriptor{
		{Index: 0, SourceChunk: "same", TranslationChunk: "same"},
	}
	assert.Nil(t, DetectCopyThrough(descriptors, 0))
	assert.Nil(t, DetectCopyThrough(descriptors, -1))
	assert.Nil(t, DetectCopyThrough(descriptors, 1.5))
}
