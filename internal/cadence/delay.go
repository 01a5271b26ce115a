package cadence

import "time"

const (
	// MinDelay is the floor applied to every character delay.
	MinDelay = 10 * time.Millisecond
	// maxJitter bounds the additive noise on each delay.
	maxJitter = 10 * time.Millisecond

	charsPerWord = 5.0
)

// Overlay is a stochastic timing event layered over one keystroke.
type Overlay int

// Overlay events, in priority order.
const (
	OverlayNone Overlay = iota
	OverlayBurst
	OverlayHesitation
	OverlayMicroPause
)

// String returns the overlay name.
func (o Overlay) String() string {
	switch o {
	case OverlayBurst:
		return "burst"
	case OverlayHesitation:
		return "hesitation"
	case OverlayMicroPause:
		return "micro-pause"
	default:
		return "none"
	}
}

// Model computes per-character delays.
type Model struct {
	params Params
	rnd    Rand
}

// NewModel returns a delay model for one run.
func NewModel(params Params, rnd Rand) *Model {
	return &Model{params: params, rnd: rnd}
}

// Params returns the model parameters.
func (m *Model) Params() Params {
	return m.params
}

// Delay returns the wait after emitting ch at position out of total characters.
func (m *Model) Delay(ch, prev rune, position, total int, flow FlowState) time.Duration {
	wpm := m.params.EffectiveWPM(position, total)
	cps := wpm * charsPerWord / 60
	base := Spread(m.rnd, 1/cps, m.params.WPMVariation)

	factor := classMultiplier(m.rnd, Classify(ch, prev))
	factor *= BigramMultiplier(prev, ch)
	factor *= flow.Multiplier()
	_, overlay := m.overlay()
	factor *= overlay

	seconds := base * factor
	d := time.Duration(seconds*float64(time.Second)) + uniformDuration(m.rnd, -maxJitter, maxJitter)
	if d < MinDelay {
		return MinDelay
	}
	return d
}

// overlay draws once against cumulative burst, hesitation and micro-pause bands.
func (m *Model) overlay() (Overlay, float64) {
	r := m.rnd.Float64()
	threshold := m.params.BurstChance
	if r < threshold {
		return OverlayBurst, Uniform(m.rnd, 0.2, 0.6)
	}
	threshold += m.params.HesitationChance
	if r < threshold {
		return OverlayHesitation, Uniform(m.rnd, 2.0, 3.5)
	}
	threshold += m.params.MicroPauseChance
	if r < threshold {
		return OverlayMicroPause, Uniform(m.rnd, 1.2, 1.8)
	}
	return OverlayNone, 1
}
