package testutils

// Synthetic corpus builders. Both produce deterministic prose with real
// sentence boundaries so segmentation behaves as it does on natural text,
// cut to an exact rune count so tests can assert chunk weights.

const (
	englishSentence = "The caravan crossed the ridge at dawn, and the river below kept its slow silver course. "
	chineseSentence = "商队在黎明时分翻过山脊，下方的河流依旧缓缓闪着银光。"
)

// SyntheticEnglish returns English prose of exactly runeCount runes.
func SyntheticEnglish(runeCount int) string {
	return synthetic(englishSentence, runeCount)
}

// SyntheticChinese returns Chinese prose of exactly runeCount runes.
func SyntheticChinese(runeCount int) string {
	return synthetic(chineseSentence, runeCount)
}

func synthetic(sentence string, runeCount int) string {
	if runeCount <= 0 {
		return ""
	}
	unit := []rune(sentence)
	out := make([]rune, 0, runeCount+len(unit))
	for len(out) < runeCount {
		out = append(out, unit...)
	}
	return string(out[:runeCount])
}
