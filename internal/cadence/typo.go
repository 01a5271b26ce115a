package cadence

import (
	"time"
	"unicode"
)

const (
	minNoticeDelay  = 80 * time.Millisecond
	maxNoticeDelay  = 250 * time.Millisecond
	minCorrectDelay = 30 * time.Millisecond
	maxCorrectDelay = 120 * time.Millisecond
)

// Detour is a wrong keystroke followed by its correction.
type Detour struct {
	Wrong   rune
	Notice  time.Duration
	Correct time.Duration
}

// Typo decides when a letter is preceded by a corrected mistake.
type Typo struct {
	rnd    Rand
	chance float64
}

// NewTypo returns an injector firing with the given probability per letter.
func NewTypo(rnd Rand, chance float64) *Typo {
	return &Typo{rnd: rnd, chance: chance}
}

// Maybe returns a detour to run before ch is emitted.
func (t *Typo) Maybe(ch rune) (Detour, bool) {
	if t.chance <= 0 || !unicode.IsLetter(ch) {
		return Detour{}, false
	}
	if t.rnd.Float64() >= t.chance {
		return Detour{}, false
	}
	return Detour{
		Wrong:   rune('a' + t.rnd.Intn(26)),
		Notice:  uniformDuration(t.rnd, minNoticeDelay, maxNoticeDelay),
		Correct: uniformDuration(t.rnd, minCorrectDelay, maxCorrectDelay),
	}, true
}
