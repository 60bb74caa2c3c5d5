package camera

import (
	"context"
	"fmt"
	"time"
)

// Endpoint describes how to reach one camera.
type Endpoint struct {
	// Address is the camera's network address.
	Address string

	// XMLRPCPort is the configuration/command port.
	XMLRPCPort int

	// PCICPort is the data streaming port.
	PCICPort int

	// Password is the camera edit-session credential (empty if unset).
	Password string
}

// Dialer establishes connections to a camera. Production code uses the pcic
// driver; tests substitute fakes. The device protocol itself lives entirely
// behind this boundary.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (DeviceConn, error)
}

// DeviceConn is the live command connection to one camera.
type DeviceConn interface {
	// Stream requests the given buffer selection and returns the
	// acquisition handle delivering matching frames. Returns
	// ErrUnsupportedBuffer if the device rejects the selection.
	Stream(buffers []BufferKind) (FrameSource, error)

	// DumpConfiguration reads the full device configuration as a JSON blob.
	DumpConfiguration() ([]byte, error)

	// ApplyConfiguration writes a (partial) JSON configuration to the device.
	ApplyConfiguration(blob []byte) error

	// SetPower switches the imager's soft power state.
	SetPower(on bool) error

	// SyncClock sets the device clock to the given time.
	SyncClock(now time.Time) error

	// Close releases the connection. Closing also unblocks any pending
	// frame wait on sources derived from this connection.
	Close() error
}

// FrameSource is the acquisition handle delivering frames.
type FrameSource interface {
	// WaitForFrame blocks until a frame arrives, the timeout elapses
	// (ErrFrameTimeout), or the source is closed (ErrSessionClosed).
	// It must return promptly on close, never hang past the timeout.
	WaitForFrame(timeout time.Duration) (*Frame, error)

	// Close releases the acquisition handle.
	Close() error
}

// Session owns the live pair of handles to one camera: the command
// connection and the acquisition handle. Both are present ("live") or both
// absent ("torn down"); Open never returns a partially constructed session.
//
// A Session is not internally synchronized. The node guards every access,
// including Open and Close, with its session lock.
type Session struct {
	conn    DeviceConn
	source  FrameSource
	buffers []BufferKind
}

// Open establishes the connection and acquisition handle, requesting the
// given buffer selection.
//
// Returns ErrConnectionFailed (wrapped) on network or auth failure and
// ErrUnsupportedBuffer if the device rejects the selection. On any failure
// the partially opened connection is closed before returning; no handles
// leak.
func Open(ctx context.Context, dialer Dialer, ep Endpoint, buffers []BufferKind) (*Session, error) {
	conn, err := dialer.Dial(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", ep.Address, err)
	}

	source, err := conn.Stream(buffers)
	if err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("requesting buffers: %w", err)
	}

	return &Session{
		conn:    conn,
		source:  source,
		buffers: buffers,
	}, nil
}

// Close releases both handles. Idempotent: closing an already-closed or nil
// session is a no-op, because the cleanup, shutdown and error teardown paths
// may overlap.
func (s *Session) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}

	// Close the acquisition handle first so a concurrent WaitForFrame
	// unblocks before the connection underneath it goes away.
	if s.source != nil {
		s.source.Close() //nolint:errcheck // Source close is best effort during teardown
		s.source = nil
	}

	err := s.conn.Close()
	s.conn = nil

	if err != nil {
		return fmt.Errorf("closing camera connection: %w", err)
	}
	return nil
}

// Live reports whether the session currently holds its handles.
func (s *Session) Live() bool {
	return s != nil && s.conn != nil && s.source != nil
}

// Buffers returns the selection this session was opened with.
func (s *Session) Buffers() []BufferKind {
	if s == nil {
		return nil
	}
	return s.buffers
}

// WaitForFrame blocks until the next frame, the timeout, or close.
// Called only by the acquisition loop, under the session lock.
func (s *Session) WaitForFrame(timeout time.Duration) (*Frame, error) {
	if !s.Live() {
		return nil, ErrSessionClosed
	}
	return s.source.WaitForFrame(timeout)
}

// SetSoftPower sends a soft power command to the device. The connection and
// acquisition handles are not altered.
func (s *Session) SetSoftPower(on bool) error {
	if !s.Live() {
		return ErrNoSession
	}
	if err := s.conn.SetPower(on); err != nil {
		return fmt.Errorf("%w: soft power: %w", ErrDeviceCommand, err)
	}
	return nil
}

// DumpConfiguration reads the device configuration.
func (s *Session) DumpConfiguration() ([]byte, error) {
	if !s.Live() {
		return nil, ErrNoSession
	}
	blob, err := s.conn.DumpConfiguration()
	if err != nil {
		return nil, fmt.Errorf("%w: dump: %w", ErrDeviceCommand, err)
	}
	return blob, nil
}

// ApplyConfiguration writes a JSON configuration blob to the device.
func (s *Session) ApplyConfiguration(blob []byte) error {
	if !s.Live() {
		return ErrNoSession
	}
	if err := s.conn.ApplyConfiguration(blob); err != nil {
		return fmt.Errorf("%w: config: %w", ErrDeviceCommand, err)
	}
	return nil
}

// SyncClock sets the device clock. Best effort; callers treat failure as a
// warning, not a teardown.
func (s *Session) SyncClock(now time.Time) error {
	if !s.Live() {
		return ErrNoSession
	}
	if err := s.conn.SyncClock(now); err != nil {
		return fmt.Errorf("%w: clock sync: %w", ErrDeviceCommand, err)
	}
	return nil
}
