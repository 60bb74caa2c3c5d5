package node

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
	"github.com/nerrad567/gray-logic-tof/internal/lifecycle"
)

// Telemetry receives frame metrics. Implementations must be cheap; the
// acquisition loop calls RecordFrame once per frame.
type Telemetry interface {
	RecordFrame(interval time.Duration, buffers int)
	RecordTimeout()
}

// Store persists the parameter set and the lifecycle audit trail. All
// writes are best effort from the node's point of view.
type Store interface {
	SaveParams(params map[string]string) error
	RecordTransition(from, to, transition string) error
}

// LevelSetter adjusts log verbosity at runtime for the hot log_level
// parameter. *logging.Logger satisfies it.
type LevelSetter interface {
	SetLevel(level string)
}

// loopStopSlack is added to the frame timeout when joining the
// acquisition loop: one full wait plus scheduling headroom.
const loopStopSlack = time.Second

// Options configures a Node.
type Options struct {
	CameraID  string
	Dialer    camera.Dialer
	Bus       Bus
	Logger    Logger
	Levels    LevelSetter
	Telemetry Telemetry
	Store     Store
	Params    Params
	QoS       byte
}

// Node owns the camera session and implements the lifecycle callbacks.
// The host drives it through a lifecycle.Machine; the node itself never
// initiates transitions, it only reports errors and reconfigure requests
// through channels.
type Node struct {
	cameraID  string
	dialer    camera.Dialer
	bus       Bus
	pub       *StreamPublisher
	log       Logger
	levels    LevelSetter
	telemetry Telemetry
	store     Store

	// mu guards params, the session pointer and the loop handle.
	// sessionMu serializes operations on the device; it is held for at
	// most one device call at a time, never across several.
	mu        sync.Mutex
	sessionMu sync.Mutex
	params    Params
	session   *camera.Session
	loop      *acqLoop

	errCh         chan error
	reconfigureCh chan struct{}
}

// New builds a node in its pre-configure state.
func New(opts Options) (*Node, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}

	n := &Node{
		cameraID:      opts.CameraID,
		dialer:        opts.Dialer,
		bus:           opts.Bus,
		log:           log,
		levels:        opts.Levels,
		telemetry:     opts.Telemetry,
		store:         opts.Store,
		params:        opts.Params.clone(),
		errCh:         make(chan error, 1),
		reconfigureCh: make(chan struct{}, 1),
	}
	n.pub = NewStreamPublisher(opts.Bus, codec, opts.CameraID, opts.QoS, log)
	return n, nil
}

// Errors delivers hard acquisition failures to the host driver, which is
// expected to respond by raising a lifecycle error.
func (n *Node) Errors() <-chan error { return n.errCh }

// ReconfigureRequests signals that an accepted parameter batch needs the
// host to cycle the node through configure again.
func (n *Node) ReconfigureRequests() <-chan struct{} { return n.reconfigureCh }

// Params returns a copy of the current parameter set.
func (n *Node) Params() Params {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params.clone()
}

// ApplyParams validates and commits a parameter batch. Hot parameters
// take effect immediately; a batch touching session-affecting parameters
// additionally signals a reconfigure request.
func (n *Node) ApplyParams(updates map[string]string) BatchResult {
	n.mu.Lock()
	result := n.params.ApplyBatch(updates)
	params := n.params
	n.mu.Unlock()

	if !result.Accepted {
		n.log.Warn("parameter batch rejected", "reason", result.Reason)
		return result
	}

	if n.levels != nil && slices.Contains(result.Changed, "log_level") {
		n.levels.SetLevel(params.LogLevel)
	}
	n.persistParams(params)

	n.log.Info("parameters updated",
		"changed", result.Changed, "needs_reentry", result.NeedsReentry)

	if result.NeedsReentry {
		select {
		case n.reconfigureCh <- struct{}{}:
		default:
		}
	}
	return result
}

// NotifyTransition is wired as the lifecycle machine's notify hook: it
// retains the new state on the lifecycle topic and records the audit row.
func (n *Node) NotifyTransition(from, to lifecycle.State, transition string) {
	PublishLifecycle(n.bus, n.cameraID, to, transition, n.log)
	if n.store != nil {
		if err := n.store.RecordTransition(string(from), string(to), transition); err != nil {
			n.log.Warn("recording transition failed", "error", err)
		}
	}
}

// =============================================================================
// Lifecycle callbacks
// =============================================================================

// OnConfigure opens the camera session with the current buffer selection.
// Failure leaves no resources behind and the node retriable.
func (n *Node) OnConfigure() lifecycle.CallbackResult {
	params := n.Params()

	buffers, err := params.BufferKinds()
	if err != nil {
		n.log.Error("invalid buffer selection", "error", err)
		return lifecycle.ResultFailure
	}

	n.sessionMu.Lock()
	session, err := camera.Open(context.Background(), n.dialer, params.Endpoint(), buffers)
	n.sessionMu.Unlock()
	if err != nil {
		n.log.Error("opening camera session failed",
			"address", params.Address, "error", err)
		return lifecycle.ResultFailure
	}

	if params.SyncClocks {
		n.sessionMu.Lock()
		err := session.SyncClock(time.Now())
		n.sessionMu.Unlock()
		if err != nil {
			// One attempt, warn and move on. Frame timestamps fall back
			// to local receipt time when the device clock is unset.
			n.log.Warn("camera clock sync failed", "error", err)
		}
	}

	n.mu.Lock()
	n.session = session
	n.mu.Unlock()

	if n.levels != nil {
		n.levels.SetLevel(params.LogLevel)
	}
	n.persistParams(params)

	n.log.Info("camera session open",
		"address", params.Address, "buffers", len(buffers))
	return lifecycle.ResultSuccess
}

// OnActivate opens the publish gate and starts the acquisition loop.
func (n *Node) OnActivate() lifecycle.CallbackResult {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.session == nil {
		n.log.Error("activate without a session")
		return lifecycle.ResultFailure
	}

	n.pub.Activate()
	n.loop = n.startLoop()
	n.log.Info("acquisition started")
	return lifecycle.ResultSuccess
}

// OnDeactivate stops the loop, waits for it to join, then closes the
// publish gate. The session stays open. A loop that refuses to join makes
// the session unsafe, which escalates to error processing.
func (n *Node) OnDeactivate() lifecycle.CallbackResult {
	if err := n.joinLoop(); err != nil {
		n.log.Error("stopping acquisition failed", "error", err)
		return lifecycle.ResultError
	}
	n.pub.Deactivate()
	n.log.Info("acquisition stopped")
	return lifecycle.ResultSuccess
}

// OnCleanup tears the session down, returning the node to its
// pre-configure state.
func (n *Node) OnCleanup() lifecycle.CallbackResult {
	n.closeSession()
	n.log.Info("camera session closed")
	return lifecycle.ResultSuccess
}

// OnShutdown releases everything, best effort. The machine finalizes
// regardless, so there is nothing to fail into.
func (n *Node) OnShutdown(from lifecycle.State) lifecycle.CallbackResult {
	if from == lifecycle.StateActive {
		if err := n.joinLoop(); err != nil {
			n.log.Warn("acquisition loop left behind during shutdown", "error", err)
		}
		n.pub.Deactivate()
	}
	n.closeSession()
	n.log.Info("node shut down", "from", from)
	return lifecycle.ResultSuccess
}

// OnError is the error-processing callback: release everything and report
// whether the node is clean enough to recover to unconfigured.
func (n *Node) OnError(from lifecycle.State) lifecycle.CallbackResult {
	stuck := false
	if err := n.joinLoop(); err != nil {
		n.log.Error("acquisition loop stuck during error processing", "error", err)
		stuck = true
	}
	n.pub.Deactivate()
	n.closeSession()

	if stuck {
		return lifecycle.ResultFailure
	}
	n.log.Info("error processing complete, resources released", "from", from)
	return lifecycle.ResultSuccess
}

// =============================================================================
// Device operations for the control services
// =============================================================================

// DumpConfiguration reads the device configuration for the dump request.
func (n *Node) DumpConfiguration() ([]byte, error) {
	session := n.currentSession()
	n.sessionMu.Lock()
	defer n.sessionMu.Unlock()
	return session.DumpConfiguration()
}

// ApplyConfiguration writes a JSON configuration blob for the config
// request.
func (n *Node) ApplyConfiguration(blob []byte) error {
	session := n.currentSession()
	n.sessionMu.Lock()
	defer n.sessionMu.Unlock()
	return session.ApplyConfiguration(blob)
}

// SetSoftPower drives the imager's soft power state for the soft_on and
// soft_off requests.
func (n *Node) SetSoftPower(on bool) error {
	session := n.currentSession()
	n.sessionMu.Lock()
	defer n.sessionMu.Unlock()
	return session.SetSoftPower(on)
}

// =============================================================================
// Internals
// =============================================================================

// currentSession snapshots the session pointer. A nil session is safe:
// camera.Session methods return ErrNoSession on it.
func (n *Node) currentSession() *camera.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session
}

// joinLoop stops the acquisition goroutine if one is running and clears
// the handle. Grace is one full frame wait plus slack; when the timeout
// parameter shrank after the loop entered its wait, the in-flight bound
// wins so the join cannot give up on a goroutine that is merely blocked.
func (n *Node) joinLoop() error {
	n.mu.Lock()
	loop := n.loop
	n.loop = nil
	wait := n.params.FrameTimeout()
	n.mu.Unlock()

	if loop == nil {
		return nil
	}
	if inFlight := time.Duration(loop.wait.Load()); inFlight > wait {
		wait = inFlight
	}
	return loop.stopLoop(wait + loopStopSlack)
}

// closeSession releases the session handles. Safe to call repeatedly and
// with no session open.
func (n *Node) closeSession() {
	n.mu.Lock()
	session := n.session
	n.session = nil
	n.mu.Unlock()

	n.sessionMu.Lock()
	defer n.sessionMu.Unlock()
	if err := session.Close(); err != nil {
		n.log.Warn("closing camera session", "error", err)
	}
}

func (n *Node) persistParams(params Params) {
	if n.store == nil {
		return
	}
	if err := n.store.SaveParams(params.Map()); err != nil {
		n.log.Warn("persisting parameters failed", "error", err)
	}
}

func (n *Node) recordFrame(interval time.Duration, buffers int) {
	if n.telemetry != nil {
		n.telemetry.RecordFrame(interval, buffers)
	}
}

func (n *Node) recordTimeout() {
	if n.telemetry != nil {
		n.telemetry.RecordTimeout()
	}
}
