package domain

import (
	"fmt"
	"math"
	"strings"
)

// maxCommentarySamples bounds how many per-chunk commentary strings are
// stitched into one merged commentary. The merge is a representative
// sample, not a resummarization; three samples keep the report readable
// for long texts while still covering more than the opening chunk.
const maxCommentarySamples = 3

// AggregateMeta carries the run-level inputs the aggregator cannot derive
// from descriptors and results alone.
type AggregateMeta struct {
	// RunID identifies the evaluation run.
	RunID string

	// Model is the judge identifier the run executed against.
	Model string

	// ChunkSize and Overlap are the effective chunking parameters.
	ChunkSize int
	Overlap   int

	// Warnings are lint findings to attach to the report, in index order.
	Warnings []ChunkWarning
}

// Aggregate folds completed chunk results into one FinalEvaluation.
//
// Scores are combined as a weighted average with each chunk weighted by its
// source length, Σ(score·weight)/Σ(weight), rounded to the nearest integer
// and clamped to [0,100]. Longer passages therefore count for more than
// short trailing chunks. Commentary is merged by sampling the first
// maxCommentarySamples non-empty trimmed strings per language in chunk
// order and joining them with spaces.
//
// Aggregate is pure and deterministic: calling it twice with the same
// inputs yields identical reports. Results must arrive in index order with
// exactly one result per descriptor; descriptors must carry positive
// source lengths.
func Aggregate(descriptors []ChunkDescriptor, results []ChunkResult, meta AggregateMeta) (*FinalEvaluation, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	if len(results) != len(descriptors) {
		return nil, fmt.Errorf("%w: %d results, %d descriptors",
			ErrResultCountMismatch, len(results), len(descriptors))
	}

	weights := make([]int, len(descriptors))
	for i, d := range descriptors {
		if results[i].Index != i {
			return nil, fmt.Errorf("%w: position %d holds index %d",
				ErrIndexMismatch, i, results[i].Index)
		}
		if d.SourceLength <= 0 {
			return nil, fmt.Errorf("%w: chunk %d has source length %d",
				ErrNonPositiveWeight, i, d.SourceLength)
		}
		weights[i] = d.SourceLength
	}

	overall := make([]int, len(results))
	for i, r := range results {
		overall[i] = r.OverallScore
	}

	rubric := make(map[string]CriterionScore, len(Criteria()))
	for _, criterion := range Criteria() {
		scores := make([]int, len(results))
		commentary := make([]BilingualText, len(results))
		for i, r := range results {
			entry, ok := r.RubricScores[criterion]
			if !ok {
				return nil, fmt.Errorf("chunk %d: missing rubric criterion %q", i, criterion)
			}
			scores[i] = entry.Score
			commentary[i] = entry.Commentary
		}
		rubric[criterion] = CriterionScore{
			Score:      weightedAverage(scores, weights),
			Commentary: mergeBilingual(commentary),
		}
	}

	qualitative := make(map[string]BilingualText, len(Aspects()))
	for _, aspect := range Aspects() {
		texts := make([]BilingualText, len(results))
		for i, r := range results {
			texts[i] = r.Qualitative[aspect]
		}
		qualitative[aspect] = mergeBilingual(texts)
	}

	stats := make([]ChunkStats, len(results))
	requestIDs := make([]string, 0, len(results))
	var totals TokenUsage
	for i, r := range results {
		stats[i] = ChunkStats{
			Index:             r.Index,
			SourceLength:      descriptors[i].SourceLength,
			TranslationLength: descriptors[i].TranslationLength,
			OverallScore:      r.OverallScore,
			AttemptsUsed:      r.AttemptsUsed,
			FallbackApplied:   r.FallbackApplied,
			MissingFields:     append([]string(nil), r.MissingFields...),
			Usage:             r.Usage,
		}
		if r.JudgeRequestID != "" {
			requestIDs = append(requestIDs, r.JudgeRequestID)
		}
		totals = totals.Add(r.Usage)
	}

	return &FinalEvaluation{
		OverallScore: weightedAverage(overall, weights),
		RubricScores: rubric,
		Qualitative:  qualitative,
		Meta: EvaluationMeta{
			RunID:         meta.RunID,
			Model:         meta.Model,
			ChunkCount:    len(results),
			ChunkSize:     meta.ChunkSize,
			Overlap:       meta.Overlap,
			RequestIDs:    requestIDs,
			TokenTotals:   totals,
			PerChunkStats: stats,
			Warnings:      append([]ChunkWarning(nil), meta.Warnings...),
		},
	}, nil
}

// weightedAverage computes Σ(score·weight)/Σ(weight) rounded to the
// nearest integer and clamped to the score bounds. Weights are assumed
// positive; callers validate them first.
func weightedAverage(scores, weights []int) int {
	var sum, totalWeight int64
	for i, s := range scores {
		sum += int64(s) * int64(weights[i])
		totalWeight += int64(weights[i])
	}
	if totalWeight == 0 {
		return MinScore
	}
	avg := float64(sum) / float64(totalWeight)
	return ClampScore(int(math.Round(avg)))
}

// mergeBilingual joins the first maxCommentarySamples non-empty trimmed
// strings per language, in chunk order, with single spaces. The languages
// are sampled independently so a chunk missing one language does not
// suppress its other half.
func mergeBilingual(texts []BilingualText) BilingualText {
	return BilingualText{
		Primary:   sampleJoin(texts, func(t BilingualText) string { return t.Primary }),
		Secondary: sampleJoin(texts, func(t BilingualText) string { return t.Secondary }),
	}
}

// sampleJoin collects up to maxCommentarySamples non-empty trimmed values
// selected by pick and joins them with spaces.
func sampleJoin(texts []BilingualText, pick func(BilingualText) string) string {
	samples := make([]string, 0, maxCommentarySamples)
	for _, t := range texts {
		if trimmed := strings.TrimSpace(pick(t)); trimmed != "" {
			samples = append(samples, trimmed)
			if len(samples) == maxCommentarySamples {
				break
			}
		}
	}
	return strings.Join(samples, " ")
}
