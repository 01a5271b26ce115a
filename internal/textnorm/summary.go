package textnorm

import (
	"strings"
	"unicode/utf8"
)

// Summary describes a text about to be typed.
type Summary struct {
	Chars int
	Words int
	Lines int
}

// Summarize counts characters, words and lines.
func Summarize(text string) Summary {
	if text == "" {
		return Summary{}
	}
	return Summary{
		Chars: utf8.RuneCountInString(text),
		Words: len(strings.Fields(text)),
		Lines: strings.Count(text, "\n") + 1,
	}
}

// EstimatedSeconds is the nominal typing time at wpm, ignoring pauses.
func (s Summary) EstimatedSeconds(wpm float64) float64 {
	if wpm <= 0 {
		return 0
	}
	return float64(s.Words) / wpm * 60
}

var previewReplacer = strings.NewReplacer("\n", "↵", "\t", "→", "\r", "")

// Preview renders control characters visibly and cuts the text to limit runes.
func Preview(text string, limit int) string {
	text = previewReplacer.Replace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
