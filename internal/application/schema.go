package application

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-verso/internal/domain"
)

// judgeResponse is the wire shape the judge is instructed to return. Every
// field is a pointer so that absence survives decoding and can be reported
// as a missing-field path rather than a silent zero.
type judgeResponse struct {
	// Quantitative maps rubric criterion names to scored entries. Keys are
	// matched case-insensitively against the fixed criterion set.
	Quantitative map[string]judgeCriterion `json:"quantitative"`

	// Qualitative maps aspect names to bilingual commentary.
	Qualitative map[string]judgeBilingual `json:"qualitative"`

	// OverallScore is the judge's holistic score for the chunk.
	OverallScore *float64 `json:"overallScore"`
}

// judgeCriterion is one rubric entry in the judge's response.
type judgeCriterion struct {
	Score      *float64        `json:"score"`
	Commentary *judgeBilingual `json:"commentary"`
}

// judgeBilingual is one commentary pair in the judge's response.
type judgeBilingual struct {
	Primary   *string `json:"primary"`
	Secondary *string `json:"secondary"`
}

// keyFolder matches criterion and aspect keys case-insensitively so a judge
// writing "fluency" or "FLUENCY" still lands on the canonical "Fluency".
var keyFolder = cases.Fold()

// extractJSON pulls the JSON object out of a raw judge response that may
// wrap it in markdown code fences or surround it with prose. It first tries
// a ```json fence, then a generic fence whose body starts with a brace, and
// finally scans for a balanced top-level object, tracking string and escape
// state so braces inside strings do not confuse the match.
//
// The second return value is false when no JSON object could be found.
func extractJSON(response string) (string, bool) {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if candidate != "" {
				return candidate, true
			}
		}
	}

	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + len("```")
		// Skip a language identifier on the fence line.
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate, true
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return "", false
	}

	braceCount := 0
	inString := false
	escapeNext := false
	for i := start; i < len(response); i++ {
		char := response[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return response[start : i+1], true
			}
		}
	}

	return "", false
}

// decodeJudgeResponse unmarshals an extracted JSON payload into the wire
// shape. A decode error means the payload is present but malformed, which
// callers classify separately from a missing payload.
func decodeJudgeResponse(payload string) (*judgeResponse, error) {
	var parsed judgeResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// assembleChunkResult converts a decoded judge response into a ChunkResult
// for the given chunk index and reports which required fields were absent.
//
// Every rubric criterion and qualitative aspect is present in the returned
// maps even when the judge omitted it, so fallback synthesis can patch
// values in place. Scores are rounded and clamped to the valid range.
// A criterion without a score is reported under its criterion path; a
// criterion whose score arrived but whose commentary is absent or blank in
// either language is reported under its commentary path. The returned
// overall pointer carries the parsed overall score when one was present,
// letting callers remember it across attempts for fallback synthesis.
func assembleChunkResult(index int, parsed *judgeResponse) (domain.ChunkResult, []string, *int) {
	result := domain.ChunkResult{
		Index:        index,
		RubricScores: make(map[string]domain.CriterionScore, len(domain.Criteria())),
		Qualitative:  make(map[string]domain.BilingualText, len(domain.Aspects())),
	}
	var missing []string

	quantitative := foldKeys(parsed.Quantitative)
	for _, criterion := range domain.Criteria() {
		entry, ok := quantitative[keyFolder.String(criterion)]
		score := domain.CriterionScore{}
		if ok && entry.Commentary != nil {
			score.Commentary = toBilingual(*entry.Commentary)
		}
		switch {
		case !ok || entry.Score == nil:
			missing = append(missing, domain.SectionQuantitative+"."+criterion)
		default:
			score.Score = clampWireScore(*entry.Score)
			if !hasBothLanguages(score.Commentary) {
				missing = append(missing, domain.SectionQuantitative+"."+criterion+".commentary")
			}
		}
		result.RubricScores[criterion] = score
	}

	qualitative := foldKeys(parsed.Qualitative)
	for _, aspect := range domain.Aspects() {
		var text domain.BilingualText
		if entry, ok := qualitative[keyFolder.String(aspect)]; ok {
			text = toBilingual(entry)
		}
		if !hasBothLanguages(text) {
			missing = append(missing, domain.SectionQualitative+"."+aspect)
		}
		result.Qualitative[aspect] = text
	}

	var overall *int
	if parsed.OverallScore != nil {
		score := clampWireScore(*parsed.OverallScore)
		overall = &score
		result.OverallScore = score
	} else {
		missing = append(missing, domain.FieldOverallScore)
	}

	sort.Strings(missing)
	return result, missing, overall
}

// synthesizeFallback patches the missing fields of an assembled result so
// the pipeline always terminates with a complete ChunkResult. Missing
// scores take the neutral value, missing commentary languages take the
// fixed disclosure strings, and fields the judge did supply are preserved.
// The result is marked FallbackApplied with the missing paths recorded in
// sorted order.
func synthesizeFallback(result *domain.ChunkResult, missing []string, neutral int) {
	neutral = domain.ClampScore(neutral)

	for _, path := range missing {
		switch {
		case path == domain.FieldOverallScore:
			result.OverallScore = neutral

		case strings.HasPrefix(path, domain.SectionQuantitative+"."):
			rest := strings.TrimPrefix(path, domain.SectionQuantitative+".")
			criterion, field, _ := strings.Cut(rest, ".")
			entry := result.RubricScores[criterion]
			if field == "" {
				entry.Score = neutral
			}
			fillBilingual(&entry.Commentary)
			result.RubricScores[criterion] = entry

		case strings.HasPrefix(path, domain.SectionQualitative+"."):
			aspect := strings.TrimPrefix(path, domain.SectionQualitative+".")
			text := result.Qualitative[aspect]
			fillBilingual(&text)
			result.Qualitative[aspect] = text
		}
	}

	result.FallbackApplied = true
	result.MissingFields = append([]string(nil), missing...)
	result.SortMissingFields()
}

// foldKeys rebuilds a wire map with case-folded keys for canonical lookup.
func foldKeys[V any](entries map[string]V) map[string]V {
	folded := make(map[string]V, len(entries))
	for key, value := range entries {
		folded[keyFolder.String(key)] = value
	}
	return folded
}

// toBilingual converts a wire commentary pair, treating absent languages as
// empty strings.
func toBilingual(entry judgeBilingual) domain.BilingualText {
	var text domain.BilingualText
	if entry.Primary != nil {
		text.Primary = *entry.Primary
	}
	if entry.Secondary != nil {
		text.Secondary = *entry.Secondary
	}
	return text
}

// hasBothLanguages reports whether both commentary languages carry
// non-blank text. A blank language counts as missing; fallback replaces it
// with the disclosure string.
func hasBothLanguages(text domain.BilingualText) bool {
	return strings.TrimSpace(text.Primary) != "" && strings.TrimSpace(text.Secondary) != ""
}

// fillBilingual replaces blank commentary languages with the fixed
// disclosure strings, leaving supplied text untouched.
func fillBilingual(text *domain.BilingualText) {
	if strings.TrimSpace(text.Primary) == "" {
		text.Primary = domain.FallbackNoticePrimary
	}
	if strings.TrimSpace(text.Secondary) == "" {
		text.Secondary = domain.FallbackNoticeSecondary
	}
}

// clampWireScore rounds a wire score to the nearest integer and clamps it
// to the valid range. Judges occasionally return fractional scores even
// when instructed otherwise.
func clampWireScore(score float64) int {
	return domain.ClampScore(int(math.Round(score)))
}
