// Package segment splits source texts into bounded, order-preserving chunks
// and slices their translations into index-aligned pieces.
//
// All sizes and offsets are expressed in runes, not bytes. The evaluation
// corpus is CJK-heavy, where byte counts overstate text length threefold and
// byte-offset cuts can land inside a multi-byte sequence.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split divides text into chunks of at most targetSize runes.
//
// Text that fits within targetSize is returned as a single chunk. Longer
// text is split on blank-line paragraph boundaries, greedily packing
// paragraphs until the next one would overflow the chunk. A paragraph that
// alone exceeds targetSize is re-split on sentence boundaries by the same
// greedy rule, and a single sentence still longer than targetSize is cut at
// rune boundaries. Separators stay attached to the piece they terminate, so
// concatenating the returned chunks reproduces text exactly.
//
// The empty string yields no chunks; Split never returns an empty chunk.
func Split(text string, targetSize int) []string {
	if text == "" {
		return nil
	}
	if targetSize <= 0 || utf8.RuneCountInString(text) <= targetSize {
		return []string{text}
	}
	return pack(splitParagraphs(text), targetSize, func(paragraph string) []string {
		return pack(splitSentences(paragraph), targetSize, func(sentence string) []string {
			return hardSplit(sentence, targetSize)
		})
	})
}

// SplitWithOverlap splits text as Split does, then prefixes every chunk
// after the first with the last overlap runes of the previous chunk's
// pre-overlap text. The duplicated tail hands the judge cross-boundary
// context without moving chunk boundaries.
//
// Zero overlap or a single-chunk split returns the base chunks unchanged.
func SplitWithOverlap(text string, targetSize, overlap int) []string {
	base := Split(text, targetSize)
	if overlap <= 0 || len(base) <= 1 {
		return base
	}
	chunks := make([]string, len(base))
	chunks[0] = base[0]
	for i := 1; i < len(base); i++ {
		chunks[i] = tailRunes(base[i-1], overlap) + base[i]
	}
	return chunks
}

// ProportionalSlice cuts text into n contiguous pieces by rune offset,
// piece i spanning [i*len/n, (i+1)*len/n). The pieces concatenate back to
// the input exactly. Translations are sliced this way rather than segmented
// on their own boundaries so that piece i always pairs with source chunk i,
// even though the two languages distribute characters differently; the
// alignment is positional, not semantic.
//
// n <= 1 returns the whole text as one piece. A text shorter than n runes
// produces some empty pieces; callers depend on the count, not on every
// piece being non-empty.
func ProportionalSlice(text string, n int) []string {
	if n <= 1 {
		return []string{text}
	}
	runes := []rune(text)
	total := len(runes)
	pieces := make([]string, n)
	for i := range pieces {
		pieces[i] = string(runes[i*total/n : (i+1)*total/n])
	}
	return pieces
}

// pack greedily packs pieces into chunks of at most targetSize runes,
// flushing the running buffer whenever the next piece would overflow it.
// Pieces larger than targetSize are handed to resplit and its output is
// emitted as finished chunks.
func pack(pieces []string, targetSize int, resplit func(string) []string) []string {
	chunks := make([]string, 0, len(pieces))
	var buf strings.Builder
	buffered := 0
	flush := func() {
		if buffered > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			buffered = 0
		}
	}
	for _, piece := range pieces {
		size := utf8.RuneCountInString(piece)
		if size > targetSize {
			flush()
			chunks = append(chunks, resplit(piece)...)
			continue
		}
		if buffered+size > targetSize {
			flush()
		}
		buf.WriteString(piece)
		buffered += size
	}
	flush()
	return chunks
}

// splitParagraphs cuts text after every blank-line run (two or more
// consecutive newlines), keeping the run attached to the paragraph it
// terminates.
func splitParagraphs(text string) []string {
	var paragraphs []string
	runes := []rune(text)
	start, i := 0, 0
	for i < len(runes) {
		if runes[i] != '\n' {
			i++
			continue
		}
		j := i
		for j < len(runes) && runes[j] == '\n' {
			j++
		}
		if j-i >= 2 {
			paragraphs = append(paragraphs, string(runes[start:j]))
			start = j
		}
		i = j
	}
	if start < len(runes) {
		paragraphs = append(paragraphs, string(runes[start:]))
	}
	return paragraphs
}

// splitSentences cuts text after sentence terminators, absorbing runs of
// terminators, any closing quotes or brackets, and trailing whitespace into
// the finished sentence. Latin and CJK terminators are both recognized.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start, i := 0, 0
	for i < len(runes) {
		if !isTerminator(runes[i]) {
			i++
			continue
		}
		for i < len(runes) && (isTerminator(runes[i]) || isClosingMark(runes[i])) {
			i++
		}
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		sentences = append(sentences, string(runes[start:i]))
		start = i
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// hardSplit cuts text every targetSize runes. Last resort for a single
// sentence that overflows a chunk on its own.
func hardSplit(text string, targetSize int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+targetSize-1)/targetSize)
	for start := 0; start < len(runes); start += targetSize {
		end := start + targetSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// tailRunes returns the last n runes of s, or all of s when it is shorter.
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isClosingMark(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»',
		'”', '’', '」', '』', '）', '】', '》', '〉':
		return true
	}
	return false
}
