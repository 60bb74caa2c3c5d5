package lifecycle

// State is one of the five primary lifecycle states. Transitions between
// them only happen through Machine, which runs the registered callbacks
// and refuses invalid transitions.
type State string

const (
	// StateUnconfigured is the initial state: no device resources held.
	StateUnconfigured State = "unconfigured"

	// StateInactive holds a configured session but does not stream.
	StateInactive State = "inactive"

	// StateActive streams frames via the acquisition loop.
	StateActive State = "active"

	// StateFinalized is terminal: the machine accepts no further
	// transitions and the process is expected to exit.
	StateFinalized State = "finalized"

	// StateErrorProcessing is the transient state entered while the
	// error callback decides between recovery and finalization.
	StateErrorProcessing State = "error_processing"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateUnconfigured, StateInactive, StateActive, StateFinalized, StateErrorProcessing:
		return true
	}
	return false
}

// CallbackResult is the outcome a transition callback reports back to the
// machine.
type CallbackResult int

const (
	// ResultSuccess completes the transition.
	ResultSuccess CallbackResult = iota

	// ResultFailure aborts the transition and returns to the prior state.
	ResultFailure

	// ResultError routes the machine through error processing.
	ResultError
)

// String returns the result name for logs.
func (r CallbackResult) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}
