package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/testutils"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
			found: true,
		},
		{
			name:  "prose around object",
			input: `Here is my evaluation: {"a": {"b": 2}} I hope it helps.`,
			want:  `{"a": {"b": 2}}`,
			found: true,
		},
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
			found: true,
		},
		{
			name:  "generic fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
			found: true,
		},
		{
			name:  "fence with code then bare object",
			input: "```python\nprint(1)\n```\nresult: {\"a\": 1}",
			want:  `{"a": 1}`,
			found: true,
		},
		{
			name:  "brace inside string",
			input: `{"text": "closing } inside"}`,
			want:  `{"text": "closing } inside"}`,
			found: true,
		},
		{
			name:  "escaped quote inside string",
			input: `{"text": "quote \" and } brace"}`,
			want:  `{"text": "quote \" and } brace"}`,
			found: true,
		},
		{
			name:  "unbalanced object",
			input: `{"a": 1`,
			found: false,
		},
		{
			name:  "no json at all",
			input: "I cannot respond in JSON.",
			found: false,
		},
		{
			name:  "empty response",
			input: "",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractJSON(tt.input)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecodeJudgeResponse(t *testing.T) {
	parsed, err := decodeJudgeResponse(testutils.MarshalJudgePayload(testutils.JudgePayload(88)))
	require.NoError(t, err)
	require.NotNil(t, parsed.OverallScore)
	assert.Equal(t, float64(88), *parsed.OverallScore)
	assert.Len(t, parsed.Quantitative, 4)
	assert.Len(t, parsed.Qualitative, 4)

	_, err = decodeJudgeResponse(`{"quantitative": [1, 2]}`)
	require.Error(t, err)
}

func TestAssembleChunkResult_Complete(t *testing.T) {
	parsed, err := decodeJudgeResponse(testutils.MarshalJudgePayload(testutils.JudgePayload(88)))
	require.NoError(t, err)

	result, missing, overall := assembleChunkResult(3, parsed)
	assert.Empty(t, missing)
	require.NotNil(t, overall)
	assert.Equal(t, 88, *overall)

	assert.Equal(t, 3, result.Index)
	assert.Equal(t, 88, result.OverallScore)
	require.Len(t, result.RubricScores, 4)
	require.Len(t, result.Qualitative, 4)
	for _, criterion := range domain.Criteria() {
		assert.Equal(t, 88, result.RubricScores[criterion].Score)
		assert.NotEmpty(t, result.RubricScores[criterion].Commentary.Primary)
		assert.NotEmpty(t, result.RubricScores[criterion].Commentary.Secondary)
	}
	assert.False(t, result.FallbackApplied)
}

func TestAssembleChunkResult_CaseInsensitiveKeys(t *testing.T) {
	payload := testutils.JudgePayload(70)
	quantitative := payload[domain.SectionQuantitative].(map[string]any)
	quantitative["FLUENCY"] = quantitative[domain.CriterionFluency]
	delete(quantitative, domain.CriterionFluency)
	qualitative := payload[domain.SectionQualitative].(map[string]any)
	qualitative["Strengths"] = qualitative[domain.AspectStrengths]
	delete(qualitative, domain.AspectStrengths)

	parsed, err := decodeJudgeResponse(testutils.MarshalJudgePayload(payload))
	require.NoError(t, err)

	result, missing, _ := assembleChunkResult(0, parsed)
	assert.Empty(t, missing)
	assert.Equal(t, 70, result.RubricScores[domain.CriterionFluency].Score)
	assert.NotEmpty(t, result.Qualitative[domain.AspectStrengths].Primary)
}

func TestAssembleChunkResult_MissingPaths(t *testing.T) {
	payload := testutils.JudgePayload(90)
	testutils.DeleteCriterionScore(payload, domain.CriterionFluency)
	testutils.DeleteCriterionCommentary(payload, domain.CriterionStyle)
	testutils.DeleteAspect(payload, domain.AspectWeaknesses)
	testutils.DeleteOverallScore(payload)

	parsed, err := decodeJudgeResponse(testutils.MarshalJudgePayload(payload))
	require.NoError(t, err)

	result, missing, overall := assembleChunkResult(0, parsed)
	assert.Nil(t, overall)
	assert.Equal(t, []string{
		"overallScore",
		"qualitative.weaknesses",
		"quantitative.Fluency",
		"quantitative.Style.commentary",
	}, missing)

	// Style kept its score even though its commentary went missing, and
	// Fluency kept its commentary even though its score went missing.
	assert.Equal(t, 90, result.RubricScores[domain.CriterionStyle].Score)
	assert.NotEmpty(t, result.RubricScores[domain.CriterionFluency].Commentary.Primary)
}

func TestAssembleChunkResult_BlankLanguageIsMissing(t *testing.T) {
	payload := testutils.JudgePayload(80)
	quantitative := payload[domain.SectionQuantitative].(map[string]any)
	entry := quantitative[domain.CriterionAccuracy].(map[string]any)
	entry["commentary"].(map[string]any)["secondary"] = "   "

	parsed, err := decodeJudgeResponse(testutils.MarshalJudgePayload(payload))
	require.NoError(t, err)

	_, missing, _ := assembleChunkResult(0, parsed)
	assert.Equal(t, []string{"quantitative.Accuracy.commentary"}, missing)
}

func TestAssembleChunkResult_ClampsWireScores(t *testing.T) {
	payload := testutils.JudgePayload(80)
	quantitative := payload[domain.SectionQuantitative].(map[string]any)
	quantitative[domain.CriterionAccuracy].(map[string]any)["score"] = 150
	quantitative[domain.CriterionFluency].(map[string]any)["score"] = -3
	quantitative[domain.CriterionStyle].(map[string]any)["score"] = 72.6
	payload[domain.FieldOverallScore] = 100.4

	parsed, err := decodeJudgeResponse(testutils.MarshalJudgePayload(payload))
	require.NoError(t, err)

	result, missing, overall := assembleChunkResult(0, parsed)
	assert.Empty(t, missing)
	assert.Equal(t, 100, result.RubricScores[domain.CriterionAccuracy].Score)
	assert.Equal(t, 0, result.RubricScores[domain.CriterionFluency].Score)
	assert.Equal(t, 73, result.RubricScores[domain.CriterionStyle].Score)
	require.NotNil(t, overall)
	assert.Equal(t, 100, *overall)
}

func TestAssembleChunkResult_EmptyResponse(t *testing.T) {
	result, missing, overall := assembleChunkResult(0, &judgeResponse{})
	assert.Nil(t, overall)
	// 4 criteria, 4 aspects, and the overall score.
	assert.Len(t, missing, 9)
	assert.Len(t, result.RubricScores, 4)
	assert.Len(t, result.Qualitative, 4)
}

func TestSynthesizeFallback_PatchesOnlyMissing(t *testing.T) {
	payload := testutils.JudgePayload(64)
	testutils.DeleteCriterionScore(payload, domain.CriterionTerminology)
	testutils.DeleteAspect(payload, domain.AspectStrengths)

	parsed, err := decodeJudgeResponse(testutils.MarshalJudgePayload(payload))
	require.NoError(t, err)
	result, missing, overall := assembleChunkResult(1, parsed)
	require.NotNil(t, overall)

	synthesizeFallback(&result, missing, *overall)

	assert.True(t, result.FallbackApplied)
	assert.Equal(t, []string{"qualitative.strengths", "quantitative.Terminology"}, result.MissingFields)

	// The patched score takes the last known overall; the commentary the
	// judge did supply for that criterion survives.
	terminology := result.RubricScores[domain.CriterionTerminology]
	assert.Equal(t, 64, terminology.Score)
	assert.NotEqual(t, domain.FallbackNoticePrimary, terminology.Commentary.Primary)

	strengths := result.Qualitative[domain.AspectStrengths]
	assert.Equal(t, domain.FallbackNoticePrimary, strengths.Primary)
	assert.Equal(t, domain.FallbackNoticeSecondary, strengths.Secondary)

	// Fields the judge supplied are untouched.
	assert.Equal(t, 64, result.OverallScore)
	assert.Equal(t, 64, result.RubricScores[domain.CriterionAccuracy].Score)
	assert.NotEqual(t, domain.FallbackNoticePrimary, result.Qualitative[domain.AspectAssessment].Primary)
}

func TestSynthesizeFallback_EmptyShell(t *testing.T) {
	result, missing, overall := assembleChunkResult(0, &judgeResponse{})
	require.Nil(t, overall)

	synthesizeFallback(&result, missing, domain.NeutralFallbackScore)

	assert.Equal(t, domain.NeutralFallbackScore, result.OverallScore)
	for _, criterion := range domain.Criteria() {
		assert.Equal(t, domain.NeutralFallbackScore, result.RubricScores[criterion].Score)
		assert.Equal(t, domain.FallbackNoticePrimary, result.RubricScores[criterion].Commentary.Primary)
		assert.Equal(t, domain.FallbackNoticeSecondary, result.RubricScores[criterion].Commentary.Secondary)
	}
	for _, aspect := range domain.Aspects() {
		assert.Equal(t, domain.FallbackNoticePrimary, result.Qualitative[aspect].Primary)
		assert.Equal(t, domain.FallbackNoticeSecondary, result.Qualitative[aspect].Secondary)
	}
	assert.Len(t, result.MissingFields, 9)
}

func TestSynthesizeFallback_ClampsNeutral(t *testing.T) {
	result, missing, _ := assembleChunkResult(0, &judgeResponse{})
	synthesizeFallback(&result, missing, 400)
	assert.Equal(t, 100, result.OverallScore)
}

func TestClampWireScore(t *testing.T) {
	assert.Equal(t, 100, clampWireScore(150))
	assert.Equal(t, 0, clampWireScore(-3))
	assert.Equal(t, 73, clampWireScore(72.6))
	assert.Equal(t, 72, clampWireScore(72.4))
	assert.Equal(t, 80, clampWireScore(80))
}
