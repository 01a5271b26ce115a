package cadence

// FlowState is a short-lived rhythm bias applied to a run of characters.
type FlowState int

// Flow states.
const (
	Steady FlowState = iota
	Rushed
	Careful
	Thinking
)

// FlowStates lists every flow state.
var FlowStates = []FlowState{Steady, Rushed, Careful, Thinking}

// String returns the flow name.
func (f FlowState) String() string {
	switch f {
	case Steady:
		return "steady"
	case Rushed:
		return "rushed"
	case Careful:
		return "careful"
	case Thinking:
		return "thinking"
	default:
		return "unknown"
	}
}

// Multiplier returns the delay factor of the flow state.
func (f FlowState) Multiplier() float64 {
	switch f {
	case Rushed:
		return 0.7
	case Careful:
		return 1.4
	case Thinking:
		return 1.8
	default:
		return 1.0
	}
}

// ParseFlowState maps a name back to its state.
func ParseFlowState(name string) (FlowState, bool) {
	for _, f := range FlowStates {
		if f.String() == name {
			return f, true
		}
	}
	return Steady, false
}

const (
	minFlowInterval = 12
	maxFlowInterval = 50
)

// Flow rotates the flow state every 12-50 emitted characters.
type Flow struct {
	rnd       Rand
	state     FlowState
	countdown int
}

// NewFlow starts in a random state with a fresh countdown.
func NewFlow(rnd Rand) *Flow {
	f := &Flow{rnd: rnd}
	f.state = f.pick()
	f.reseed()
	return f
}

// State returns the current flow state.
func (f *Flow) State() FlowState {
	return f.state
}

// Tick counts one emitted character and reports whether the state was re-drawn.
func (f *Flow) Tick() (FlowState, bool) {
	f.countdown--
	if f.countdown > 0 {
		return f.state, false
	}
	f.state = f.pick()
	f.reseed()
	return f.state, true
}

func (f *Flow) pick() FlowState {
	return FlowStates[f.rnd.Intn(len(FlowStates))]
}

func (f *Flow) reseed() {
	f.countdown = minFlowInterval + f.rnd.Intn(maxFlowInterval-minFlowInterval+1)
}
