package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

// Fixed bilingual filler used by payload builders. Both languages are
// non-empty so built payloads pass the evaluator's completeness check.
const (
	payloadPrimary   = "The translation carries the passage faithfully and reads well."
	payloadSecondary = "译文忠实传达了本段内容，行文流畅。"
)

// JudgePayload returns a complete judge response payload as a mutable
// map: every rubric criterion scored at overall with bilingual
// commentary, every qualitative aspect filled, and the overall score set.
// Tests delete or rewrite entries to fabricate partial responses.
func JudgePayload(overall int) map[string]any {
	quantitative := make(map[string]any, len(domain.Criteria()))
	for _, criterion := range domain.Criteria() {
		quantitative[criterion] = map[string]any{
			"score": overall,
			"commentary": map[string]any{
				"primary":   payloadPrimary,
				"secondary": payloadSecondary,
			},
		}
	}
	qualitative := make(map[string]any, len(domain.Aspects()))
	for _, aspect := range domain.Aspects() {
		qualitative[aspect] = map[string]any{
			"primary":   payloadPrimary,
			"secondary": payloadSecondary,
		}
	}
	return map[string]any{
		domain.SectionQuantitative: quantitative,
		domain.SectionQualitative:  qualitative,
		domain.FieldOverallScore:   overall,
	}
}

// MarshalJudgePayload encodes a payload map to the JSON text a judge
// would return. It panics on marshal failure, which only a test bug can
// cause.
func MarshalJudgePayload(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("testutils: marshal judge payload: %v", err))
	}
	return string(raw)
}

// DeleteCriterionScore removes the score field from one criterion,
// leaving its commentary in place.
func DeleteCriterionScore(payload map[string]any, criterion string) {
	quantitative := payload[domain.SectionQuantitative].(map[string]any)
	entry := quantitative[criterion].(map[string]any)
	delete(entry, "score")
}

// DeleteCriterionCommentary removes the commentary from one criterion,
// leaving its score in place.
func DeleteCriterionCommentary(payload map[string]any, criterion string) {
	quantitative := payload[domain.SectionQuantitative].(map[string]any)
	entry := quantitative[criterion].(map[string]any)
	delete(entry, "commentary")
}

// DeleteAspect removes one qualitative aspect entirely.
func DeleteAspect(payload map[string]any, aspect string) {
	qualitative := payload[domain.SectionQualitative].(map[string]any)
	delete(qualitative, aspect)
}

// DeleteOverallScore removes the overall score field.
func DeleteOverallScore(payload map[string]any) {
	delete(payload, domain.FieldOverallScore)
}

// CompleteOutcome returns an outcome carrying a fully valid payload at
// the given overall score, with a fixed token usage of 200 input and 120
// output.
func CompleteOutcome(overall int) JudgeOutcome {
	return JudgeOutcome{
		Response: ports.JudgeResponse{
			RawText: MarshalJudgePayload(JudgePayload(overall)),
			Usage:   domain.TokenUsage{InputTokens: 200, OutputTokens: 120},
		},
	}
}

// PayloadOutcome returns an outcome carrying the given payload map with
// the same fixed usage as CompleteOutcome.
func PayloadOutcome(payload map[string]any) JudgeOutcome {
	return JudgeOutcome{
		Response: ports.JudgeResponse{
			RawText: MarshalJudgePayload(payload),
			Usage:   domain.TokenUsage{InputTokens: 200, OutputTokens: 120},
		},
	}
}

// TruncatedOutcome returns an outcome whose text was clipped mid-payload
// with the provider reporting it hit the output-token cap.
func TruncatedOutcome() JudgeOutcome {
	return JudgeOutcome{
		Response: ports.JudgeResponse{
			RawText:   `{"quantitative": {"Accuracy": {"score": 80, "comment`,
			Usage:     domain.TokenUsage{InputTokens: 200, OutputTokens: 64},
			Truncated: true,
		},
	}
}

// ProseOutcome returns an outcome whose text contains no JSON at all.
func ProseOutcome() JudgeOutcome {
	return JudgeOutcome{
		Response: ports.JudgeResponse{
			RawText: "I would rate this translation quite highly overall.",
			Usage:   domain.TokenUsage{InputTokens: 200, OutputTokens: 16},
		},
	}
}
