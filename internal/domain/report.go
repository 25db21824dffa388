package domain

// WarningKind classifies a lint finding attached to the final report.
type WarningKind string

// Lint warning kinds.
const (
	// WarningCopyThrough flags a chunk whose translation is nearly
	// identical to its source, which usually means the passage was never
	// translated.
	WarningCopyThrough WarningKind = "copy-through"
)

// ChunkWarning is a non-fatal lint finding about one chunk. Warnings ride
// in the report metadata and never influence scores.
type ChunkWarning struct {
	// Index identifies the chunk the finding applies to.
	Index int `json:"index"`

	// Kind classifies the finding.
	Kind WarningKind `json:"kind"`

	// Detail is a short human-readable explanation.
	Detail string `json:"detail"`
}

// ChunkStats summarizes one chunk's evaluation for the report metadata.
type ChunkStats struct {
	Index             int        `json:"index"`
	SourceLength      int        `json:"sourceLength"`
	TranslationLength int        `json:"translationLength"`
	OverallScore      int        `json:"overallScore"`
	AttemptsUsed      int        `json:"attemptsUsed"`
	FallbackApplied   bool       `json:"fallbackApplied"`
	MissingFields     []string   `json:"missingFields,omitempty"`
	Usage             TokenUsage `json:"usage"`
}

// EvaluationMeta carries the audit trail of a run: what was evaluated, how
// it was chunked, which judge calls were made, and what they cost.
type EvaluationMeta struct {
	// RunID uniquely identifies this evaluation run across events, spans,
	// and the report.
	RunID string `json:"runId"`

	// Model is the judge identifier the run was executed against.
	Model string `json:"model"`

	// ChunkCount, ChunkSize, and Overlap record the effective chunking
	// parameters of the run.
	ChunkCount int `json:"chunkCount"`
	ChunkSize  int `json:"chunkSize"`
	Overlap    int `json:"overlap"`

	// RequestIDs lists judge request identifiers in chunk order; chunks
	// whose provider returned no identifier are skipped.
	RequestIDs []string `json:"requestIds,omitempty"`

	// TokenTotals sums token usage across all chunks.
	TokenTotals TokenUsage `json:"tokenTotals"`

	// PerChunkStats holds one summary per chunk, in index order.
	PerChunkStats []ChunkStats `json:"perChunkStats"`

	// Warnings holds lint findings, in index order.
	Warnings []ChunkWarning `json:"warnings,omitempty"`
}

// FinalEvaluation is the aggregated report for one run: length-weighted
// scores, merged bilingual commentary, and the run's audit metadata. It is
// derived solely from the ordered chunk results; recomputing it from the
// same inputs yields an identical value.
type FinalEvaluation struct {
	// OverallScore is the length-weighted average of all chunk overall
	// scores, rounded to the nearest integer in [0,100].
	OverallScore int `json:"overallScore"`

	// RubricScores holds the length-weighted score and merged commentary
	// per rubric criterion.
	RubricScores map[string]CriterionScore `json:"rubricScores"`

	// Qualitative holds merged bilingual commentary per aspect.
	Qualitative map[string]BilingualText `json:"qualitative"`

	// Meta is the run's audit trail.
	Meta EvaluationMeta `json:"meta"`
}

// FallbackCount reports how many chunks required fallback synthesis.
func (f *FinalEvaluation) FallbackCount() int {
	n := 0
	for _, s := range f.Meta.PerChunkStats {
		if s.FallbackApplied {
			n++
		}
	}
	return n
}
