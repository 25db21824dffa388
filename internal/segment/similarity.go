package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-verso/internal/domain"
)

// foldCaser is a package-level Unicode case folder so comparisons do not
// allocate a new caser per string.
var foldCaser = cases.Fold()

// Similarity reports how alike two strings are on a 0 to 1 scale, where 1
// means identical and 0 maximally different. The score is the Levenshtein
// edit distance normalized by the longer rune count, computed after Unicode
// case folding. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = foldCaser.String(a), foldCaser.String(b)
	if a == b {
		return 1.0
	}

	// The levenshtein library operates on runes, so the normalizing length
	// must be a rune count as well.
	distance := levenshtein.ComputeDistance(a, b)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		similarity = 0
	}
	return similarity
}

// DetectCopyThrough flags chunks whose translation is nearly identical to
// their source, which usually means a passage was left untranslated. A
// chunk is flagged when its similarity reaches threshold. The returned
// warnings are advisory report metadata and never alter scores.
//
// Thresholds outside (0, 1] disable the lint. Chunks with a blank
// translation are skipped; an empty slice is a sizing artifact, not an
// untranslated passage.
func DetectCopyThrough(descriptors []domain.ChunkDescriptor, threshold float64) []domain.ChunkWarning {
	if threshold <= 0 || threshold > 1 {
		return nil
	}

	var warnings []domain.ChunkWarning
	for _, d := range descriptors {
		if strings.TrimSpace(d.TranslationChunk) == "" {
			continue
		}
		sim := Similarity(d.SourceChunk, d.TranslationChunk)
		if sim < threshold {
			continue
		}
		warnings = append(warnings, domain.ChunkWarning{
			Index: d.Index,
			Kind:  domain.WarningCopyThrough,
			Detail: fmt.Sprintf("translation is %.0f%% identical to the source; the passage may be untranslated",
				sim*100),
		})
	}
	return warnings
}
