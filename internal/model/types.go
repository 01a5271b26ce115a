// Package model defines shared data structures.
package model

import "time"

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeFailed    = "failed"
)

// TypingConfig defines typing settings resolved from flags and config.
type TypingConfig struct {
	WPM             float64
	WPMVariation    float64
	Fatigue         float64
	Burst           float64
	Hesitation      float64
	MicroPause      float64
	Typo            float64
	Countdown       time.Duration
	ProgressEvery   int
	CheckpointEvery int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Outcome     string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// RunStats captures one finished emission run.
type RunStats struct {
	RunID         string
	StartedAt     time.Time
	EndedAt       time.Time
	Outcome       string
	BaseWPM       float64
	StartPosition int
	EndPosition   int
	TotalChars    int
	TypedChars    int
	Typos         int
	DurationMs    int64
	Error         string
}

// FlowStats stores how many characters were typed in one flow state.
type FlowStats struct {
	Flow  string
	Chars int
}

// Aggregated per-flow stats for reporting.

// FlowAggregate aggregates flow stats across runs.
type FlowAggregate struct {
	Flow  string
	Chars int
	Runs  int
}

// RunAggregate summarizes a run for reporting.
type RunAggregate struct {
	RunID      int64
	EndedAt    time.Time
	Outcome    string
	BaseWPM    float64
	TypedChars int
	Typos      int
	DurationMs int64
}

// Checkpoint is the resume offset for a normalized text.
type Checkpoint struct {
	TextHash  string
	Position  int
	Total     int
	UpdatedAt time.Time
}
