package domain

import "sort"

// Rubric criteria scored for every chunk. The set is fixed; judges are
// instructed to return exactly these keys under the "quantitative" section
// of their JSON response.
const (
	CriterionAccuracy    = "Accuracy"
	CriterionFluency     = "Fluency"
	CriterionStyle       = "Style"
	CriterionTerminology = "Terminology"
)

// Qualitative aspects the judge writes free-form bilingual commentary for,
// returned under the "qualitative" section of the JSON response.
const (
	AspectAssessment  = "assessment"
	AspectStrengths   = "strengths"
	AspectWeaknesses  = "weaknesses"
	AspectSuggestions = "suggestions"
)

// Wire section names used in the judge's JSON response and in dotted
// missing-field paths such as "quantitative.Fluency.score".
const (
	SectionQuantitative = "quantitative"
	SectionQualitative  = "qualitative"
	FieldOverallScore   = "overallScore"
)

// Score bounds for every rubric and overall score.
const (
	MinScore = 0
	MaxScore = 100
)

// NeutralFallbackScore fills missing rubric or overall scores during
// fallback synthesis when no overall score was parsed for the chunk.
const NeutralFallbackScore = 75

// Fallback disclosure strings substituted for commentary the judge failed
// to supply. Both languages are fixed so a fallback is always recognizable
// in the report regardless of the configured language pair.
const (
	FallbackNoticePrimary   = "Automated fallback: the judge returned an incomplete response and neutral defaults were applied to this field."
	FallbackNoticeSecondary = "自动回退：评审返回的结果不完整，该字段已填入中性默认值。"
)

// Criteria returns the fixed rubric criteria in canonical order.
func Criteria() []string {
	return []string{CriterionAccuracy, CriterionFluency, CriterionStyle, CriterionTerminology}
}

// Aspects returns the fixed qualitative aspects in canonical order.
func Aspects() []string {
	return []string{AspectAssessment, AspectStrengths, AspectWeaknesses, AspectSuggestions}
}

// ClampScore bounds a score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// BilingualText is one piece of commentary written in the run's primary and
// secondary languages (English and Chinese by default).
type BilingualText struct {
	// Primary holds the primary-language text.
	Primary string `json:"primary" validate:"required"`

	// Secondary holds the secondary-language text.
	Secondary string `json:"secondary" validate:"required"`
}

// IsEmpty reports whether both languages are empty.
func (b BilingualText) IsEmpty() bool { return b.Primary == "" && b.Secondary == "" }

// CriterionScore is one rubric criterion's result for a chunk or for the
// aggregated report: an integer score in [0,100] plus bilingual commentary.
type CriterionScore struct {
	Score      int           `json:"score" validate:"min=0,max=100"`
	Commentary BilingualText `json:"commentary"`
}

// TokenUsage echoes the judge's token accounting for one call or, summed,
// for a whole run.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Add returns the element-wise sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// ChunkDescriptor is one unit of judge work: a source chunk and its
// proportionally aligned translation slice. Descriptors are created once by
// the segmentation stage and are read-only afterward; Index is the join key
// across every later stage.
type ChunkDescriptor struct {
	// Index is the 0-based, contiguous position of the chunk.
	Index int `json:"index"`

	// SourceChunk is the source text dispatched to the judge, including
	// any overlap prefix carried from the previous chunk.
	SourceChunk string `json:"sourceChunk"`

	// TranslationChunk is the proportional translation slice for the same
	// index. Translation slices never carry overlap.
	TranslationChunk string `json:"translationChunk"`

	// SourceLength and TranslationLength are rune counts of the dispatched
	// texts. SourceLength doubles as the chunk's aggregation weight.
	SourceLength      int `json:"sourceLength"`
	TranslationLength int `json:"translationLength"`
}

// ChunkResult is the validated outcome of evaluating one chunk, produced by
// the chunk evaluator either from a complete judge response or from fallback
// synthesis. Results are immutable once returned; exactly one exists per
// descriptor in a successful run.
type ChunkResult struct {
	// Index joins the result back to its descriptor.
	Index int `json:"index" validate:"min=0"`

	// RubricScores holds one entry per rubric criterion.
	RubricScores map[string]CriterionScore `json:"rubricScores" validate:"len=4,dive"`

	// OverallScore is the judge's holistic score for the chunk, in [0,100].
	OverallScore int `json:"overallScore" validate:"min=0,max=100"`

	// Qualitative holds one bilingual entry per qualitative aspect.
	Qualitative map[string]BilingualText `json:"qualitative" validate:"len=4,dive"`

	// JudgeRequestID echoes the judge service's request identifier when
	// the provider supplies one; used for audit trails.
	JudgeRequestID string `json:"judgeRequestId,omitempty"`

	// Usage sums the judge's token accounting across every call made for
	// this chunk, retries included.
	Usage TokenUsage `json:"usage"`

	// AttemptsUsed counts judge calls made for this chunk, including the
	// attempt that succeeded or triggered fallback.
	AttemptsUsed int `json:"attemptsUsed" validate:"min=1"`

	// FallbackApplied records that one or more fields were synthesized.
	// It is a soft degradation signal, not a failure.
	FallbackApplied bool `json:"fallbackApplied"`

	// MissingFields lists the dotted wire paths that required synthesis,
	// sorted lexicographically. Empty on a clean success.
	MissingFields []string `json:"missingFields,omitempty"`
}

// SortMissingFields orders MissingFields lexicographically so results and
// reports encode deterministically.
func (r *ChunkResult) SortMissingFields() { sort.Strings(r.MissingFields) }
