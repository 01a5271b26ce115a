// Package cadence models human keystroke timing.
package cadence

import "fmt"

// Default timing parameters.
const (
	DefaultBaseWPM          = 85
	DefaultWPMVariation     = 0.3
	DefaultFatigueFactor    = 0.12
	DefaultBurstChance      = 0.10
	DefaultHesitationChance = 0.04
	DefaultMicroPauseChance = 0.15
	DefaultTypoChance       = 0.006
)

// Params holds the per-run timing configuration.
type Params struct {
	BaseWPM          float64
	WPMVariation     float64
	FatigueFactor    float64
	BurstChance      float64
	HesitationChance float64
	MicroPauseChance float64
	TypoChance       float64
}

// DefaultParams returns the stock timing parameters.
func DefaultParams() Params {
	return Params{
		BaseWPM:          DefaultBaseWPM,
		WPMVariation:     DefaultWPMVariation,
		FatigueFactor:    DefaultFatigueFactor,
		BurstChance:      DefaultBurstChance,
		HesitationChance: DefaultHesitationChance,
		MicroPauseChance: DefaultMicroPauseChance,
		TypoChance:       DefaultTypoChance,
	}
}

// WithWPM returns a copy of p using the given base speed.
func (p Params) WithWPM(wpm float64) Params {
	p.BaseWPM = wpm
	return p
}

// Validate reports the first invalid field.
func (p Params) Validate() error {
	if p.BaseWPM <= 0 {
		return fmt.Errorf("wpm must be > 0")
	}
	if p.WPMVariation < 0 || p.WPMVariation >= 1 {
		return fmt.Errorf("wpm variation must be in [0, 1)")
	}
	if p.FatigueFactor < 0 {
		return fmt.Errorf("fatigue factor must be >= 0")
	}
	for name, v := range map[string]float64{
		"burst chance":       p.BurstChance,
		"hesitation chance":  p.HesitationChance,
		"micro-pause chance": p.MicroPauseChance,
		"typo chance":        p.TypoChance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if p.BurstChance+p.HesitationChance+p.MicroPauseChance > 1 {
		return fmt.Errorf("burst, hesitation and micro-pause chances must sum to <= 1")
	}
	return nil
}

// EffectiveWPM applies fatigue for the given progress through the text.
func (p Params) EffectiveWPM(position, total int) float64 {
	ratio := 0.0
	if total > 0 {
		ratio = float64(position) / float64(total)
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return p.BaseWPM / (1 + p.FatigueFactor*ratio)
}
