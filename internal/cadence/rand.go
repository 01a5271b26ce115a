package cadence

import (
	"math/rand"
	"time"
)

// Rand is the random source used by the timing model.
// *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NewRand returns a source seeded with the current time.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewSeededRand returns a deterministic source.
func NewSeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Uniform draws from [lo, hi).
func Uniform(rnd Rand, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}

// maxSpread keeps Spread strictly positive for a positive mean.
const maxSpread = 0.95

// Spread samples a value centered on mean with relative spread fraction.
// The result is never negative.
func Spread(rnd Rand, mean, fraction float64) float64 {
	if fraction <= 0 {
		return mean
	}
	if fraction > maxSpread {
		fraction = maxSpread
	}
	v := mean * Uniform(rnd, 1-fraction, 1+fraction)
	if v < 0 {
		return 0
	}
	return v
}

func uniformDuration(rnd Rand, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(rnd.Float64()*float64(hi-lo))
}
