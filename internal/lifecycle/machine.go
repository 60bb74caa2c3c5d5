package lifecycle

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors returned by Machine transitions.
var (
	// ErrInvalidTransition is returned when a transition is requested
	// from a state that does not permit it.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")

	// ErrTransitionFailed is returned when the transition callback
	// reported failure and the machine stayed in (or fell back to) its
	// prior state.
	ErrTransitionFailed = errors.New("lifecycle: transition failed")

	// ErrErrorProcessed is returned when the transition callback raised
	// an error and the machine went through error processing instead of
	// completing the transition.
	ErrErrorProcessed = errors.New("lifecycle: transition raised error")
)

// Callbacks receives the transition work. Exactly one callback runs per
// transition; callbacks never run concurrently with each other.
type Callbacks interface {
	// OnConfigure acquires device resources. Failure leaves the machine
	// unconfigured with no resources held.
	OnConfigure() CallbackResult

	// OnActivate starts streaming. It only runs from inactive.
	OnActivate() CallbackResult

	// OnDeactivate stops streaming but keeps the session.
	OnDeactivate() CallbackResult

	// OnCleanup releases the session, returning to unconfigured.
	OnCleanup() CallbackResult

	// OnShutdown releases everything on the way to finalized. from is
	// the state the shutdown was requested in. The machine finalizes
	// regardless of the result.
	OnShutdown(from State) CallbackResult

	// OnError runs during error processing. ResultSuccess recovers to
	// unconfigured; anything else finalizes the machine.
	OnError(from State) CallbackResult
}

// Logger is the subset of logging the machine needs. A nil logger is
// replaced with a no-op implementation.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NotifyFunc observes completed state changes. It runs on the caller's
// goroutine after the state has settled, outside the transition lock, so
// it may publish but must not call back into the machine.
type NotifyFunc func(from, to State, transition string)

// Machine is the lifecycle state machine. The zero value is not usable;
// construct with New.
type Machine struct {
	mu     sync.Mutex
	state  State
	cb     Callbacks
	log    Logger
	notify NotifyFunc
}

// New returns a machine in the unconfigured state. notify may be nil.
func New(cb Callbacks, log Logger, notify NotifyFunc) *Machine {
	if log == nil {
		log = noopLogger{}
	}
	if notify == nil {
		notify = func(State, State, string) {}
	}
	return &Machine{
		state:  StateUnconfigured,
		cb:     cb,
		log:    log,
		notify: notify,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Configure transitions unconfigured -> inactive.
func (m *Machine) Configure() error {
	return m.transition("configure", StateUnconfigured, StateInactive, m.cb.OnConfigure)
}

// Activate transitions inactive -> active.
func (m *Machine) Activate() error {
	return m.transition("activate", StateInactive, StateActive, m.cb.OnActivate)
}

// Deactivate transitions active -> inactive.
func (m *Machine) Deactivate() error {
	return m.transition("deactivate", StateActive, StateInactive, m.cb.OnDeactivate)
}

// Cleanup transitions inactive -> unconfigured.
func (m *Machine) Cleanup() error {
	return m.transition("cleanup", StateInactive, StateUnconfigured, m.cb.OnCleanup)
}

// transition runs one guarded transition. The callback executes while the
// externally visible state is still `from`; the state only advances once
// the callback reports success.
func (m *Machine) transition(name string, from, to State, cb func() CallbackResult) error {
	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, name, cur)
	}

	m.log.Info("lifecycle transition", "transition", name, "from", from, "to", to)
	result := cb()

	switch result {
	case ResultSuccess:
		m.state = to
		m.mu.Unlock()
		m.notify(from, to, name)
		return nil

	case ResultFailure:
		m.mu.Unlock()
		m.log.Warn("lifecycle transition failed", "transition", name, "state", from)
		return fmt.Errorf("%w: %s", ErrTransitionFailed, name)

	default:
		m.log.Error("lifecycle transition raised error", "transition", name, "from", from)
		settled := m.processErrorLocked(from)
		m.mu.Unlock()
		m.notify(from, StateErrorProcessing, "error")
		m.notify(StateErrorProcessing, settled, "error_resolved")
		return fmt.Errorf("%w: %s", ErrErrorProcessed, name)
	}
}

// Shutdown transitions any non-terminal state to finalized. Calling it on
// an already finalized machine is a no-op.
func (m *Machine) Shutdown() error {
	m.mu.Lock()
	from := m.state
	if from == StateFinalized {
		m.mu.Unlock()
		return nil
	}

	m.log.Info("lifecycle transition", "transition", "shutdown", "from", from)
	if result := m.cb.OnShutdown(from); result != ResultSuccess {
		m.log.Warn("shutdown callback did not succeed", "result", result.String())
	}
	m.state = StateFinalized
	m.mu.Unlock()

	m.notify(from, StateFinalized, "shutdown")
	return nil
}

// RaiseError pushes the machine through error processing from outside a
// transition, typically when the acquisition loop hits a hard failure.
// It is a no-op once the machine is finalized.
func (m *Machine) RaiseError() {
	m.mu.Lock()
	if m.state == StateFinalized || m.state == StateErrorProcessing {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.log.Error("lifecycle error raised", "from", from)
	to := m.processErrorLocked(from)
	m.mu.Unlock()

	m.notify(from, StateErrorProcessing, "error")
	m.notify(StateErrorProcessing, to, "error_resolved")
}

// processErrorLocked runs error processing while holding m.mu, so the
// error callback cannot overlap another transition. It returns the state
// the machine settled in; the caller unlocks and notifies.
func (m *Machine) processErrorLocked(from State) State {
	m.state = StateErrorProcessing

	result := m.cb.OnError(from)

	to := StateUnconfigured
	if result != ResultSuccess {
		to = StateFinalized
		m.log.Error("error processing failed, finalizing", "result", result.String())
	}
	m.state = to
	return to
}
