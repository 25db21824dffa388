// Package domain contains the pure data model of the translation evaluation
// pipeline: the evaluation request, chunk descriptors and results, the final
// report, lifecycle events, and the deterministic aggregation that folds
// per-chunk results into one report.
//
// Everything in this package is side-effect free. Entities are created per
// evaluation run and discarded once the FinalEvaluation has been returned;
// nothing here outlives a single pipeline call.
package domain

import "strings"

// Default chunking parameters applied to an EvaluationRequest when the
// caller leaves the corresponding field zero.
const (
	// DefaultChunkSize is the target chunk size in runes.
	DefaultChunkSize = 3200

	// DefaultOverlap is the number of runes carried from the tail of one
	// chunk into the head of the next.
	DefaultOverlap = 200
)

// EvaluationRequest describes one evaluation run: a source text, its
// translation, and the parameters controlling chunking and judge routing.
// The request is immutable input; Normalize returns an adjusted copy rather
// than mutating in place.
type EvaluationRequest struct {
	// Source is the original text the translation is judged against.
	Source string `json:"source" validate:"required"`

	// Translation is the translated text under evaluation.
	Translation string `json:"translation" validate:"required"`

	// AuthorIntention optionally describes the author's intent, register,
	// or stylistic goals. When present it is forwarded to the judge as
	// additional context.
	AuthorIntention string `json:"authorIntention,omitempty"`

	// Model identifies the judge in "provider/model" form,
	// e.g. "openai/gpt-4o" or "anthropic/claude-4-sonnet".
	Model string `json:"model" validate:"required"`

	// ChunkSize is the target size of a source chunk in runes.
	// Zero adopts DefaultChunkSize before validation.
	ChunkSize int `json:"chunkSize" validate:"gt=0"`

	// Overlap is the number of runes duplicated from the previous chunk's
	// pre-overlap tail into the next chunk. Zero disables overlap; the
	// value must stay below ChunkSize.
	Overlap int `json:"overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// Normalize returns a copy of the request with zero chunking parameters
// replaced by the supplied defaults and surrounding whitespace trimmed from
// the model identifier. An explicit Overlap of zero is respected when the
// caller chose a ChunkSize; the overlap default only applies alongside the
// chunk size default. The texts are never touched; spacing inside the
// source and translation is significant to segmentation.
func (r EvaluationRequest) Normalize(chunkSize, overlap int) EvaluationRequest {
	if r.ChunkSize == 0 {
		r.ChunkSize = chunkSize
		if r.Overlap == 0 {
			r.Overlap = overlap
		}
	}
	r.Model = strings.TrimSpace(r.Model)
	return r
}
