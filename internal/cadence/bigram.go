package cadence

import "unicode"

const (
	familiarBigramFactor = 0.85
	awkwardBigramFactor  = 1.2
)

// Common English digraphs, typed from muscle memory.
var familiarBigrams = map[string]struct{}{
	"th": {}, "he": {}, "in": {}, "er": {}, "an": {}, "re": {}, "on": {}, "at": {},
	"en": {}, "nd": {}, "ti": {}, "es": {}, "or": {}, "te": {}, "of": {}, "ed": {},
	"is": {}, "it": {}, "al": {}, "ar": {}, "st": {}, "to": {}, "nt": {}, "ng": {},
	"se": {}, "ha": {}, "as": {}, "ou": {}, "io": {}, "le": {}, "ve": {}, "co": {},
	"me": {}, "de": {}, "hi": {}, "ri": {}, "ro": {}, "ic": {}, "ne": {}, "ea": {},
	"ra": {}, "ce": {},
}

// BigramMultiplier biases the delay of ch typed right after prev.
func BigramMultiplier(prev, ch rune) float64 {
	p := unicode.ToLower(prev)
	c := unicode.ToLower(ch)
	if !unicode.IsLetter(p) || !unicode.IsLetter(c) {
		return 1
	}
	if _, ok := familiarBigrams[string([]rune{p, c})]; ok {
		return familiarBigramFactor
	}
	if isAwkward(p) || isAwkward(c) {
		return awkwardBigramFactor
	}
	return 1
}

func isAwkward(r rune) bool {
	return r == 'q' || r == 'x' || r == 'z'
}
