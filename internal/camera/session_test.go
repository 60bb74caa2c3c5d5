package camera

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeConn implements DeviceConn for session tests.
type fakeConn struct {
	closed    bool
	streamErr error
	powerErr  error
	power     []bool
	dump      []byte
	applied   [][]byte
	source    *fakeSource
}

func (c *fakeConn) Stream(buffers []BufferKind) (FrameSource, error) {
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	if c.source == nil {
		c.source = &fakeSource{}
	}
	return c.source, nil
}

func (c *fakeConn) DumpConfiguration() ([]byte, error) { return c.dump, nil }

func (c *fakeConn) ApplyConfiguration(blob []byte) error {
	c.applied = append(c.applied, blob)
	return nil
}

func (c *fakeConn) SyncClock(now time.Time) error { return nil }

func (c *fakeConn) Close() error { c.closed = true; return nil }

func (c *fakeConn) SetPower(on bool) error {
	if c.powerErr != nil {
		return c.powerErr
	}
	c.power = append(c.power, on)
	return nil
}

// fakeSource implements FrameSource.
type fakeSource struct {
	closed bool
	frames chan *Frame
}

func (s *fakeSource) WaitForFrame(timeout time.Duration) (*Frame, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	select {
	case f := <-s.frames:
		return f, nil
	case <-time.After(timeout):
		return nil, ErrFrameTimeout
	}
}

func (s *fakeSource) Close() error { s.closed = true; return nil }

// fakeDialer implements Dialer.
type fakeDialer struct {
	conn    *fakeConn
	dialErr error
}

func (d *fakeDialer) Dial(ctx context.Context, ep Endpoint) (DeviceConn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.conn, nil
}

func testEndpoint() Endpoint {
	return Endpoint{Address: "192.168.0.69", XMLRPCPort: 80, PCICPort: 50010}
}

func TestOpen(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{}}

	s, err := Open(context.Background(), dialer, testEndpoint(), []BufferKind{BufferXYZ})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if !s.Live() {
		t.Error("Live() = false after successful Open")
	}
}

func TestOpen_DialFailure(t *testing.T) {
	dialer := &fakeDialer{dialErr: ErrConnectionFailed}

	_, err := Open(context.Background(), dialer, testEndpoint(), nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Open() error = %v, want ErrConnectionFailed", err)
	}
}

func TestOpen_StreamFailureClosesConn(t *testing.T) {
	conn := &fakeConn{streamErr: ErrUnsupportedBuffer}
	dialer := &fakeDialer{conn: conn}

	_, err := Open(context.Background(), dialer, testEndpoint(), []BufferKind{BufferRGB})
	if !errors.Is(err, ErrUnsupportedBuffer) {
		t.Fatalf("Open() error = %v, want ErrUnsupportedBuffer", err)
	}

	// No partial construction: the dialed connection must not leak.
	if !conn.closed {
		t.Error("connection not closed after stream failure")
	}
}

func TestClose_Idempotent(t *testing.T) {
	conn := &fakeConn{}
	dialer := &fakeDialer{conn: conn}

	s, err := Open(context.Background(), dialer, testEndpoint(), []BufferKind{BufferXYZ})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if s.Live() {
		t.Error("Live() = true after Close")
	}

	var nilSession *Session
	if err := nilSession.Close(); err != nil {
		t.Errorf("Close() on nil session error = %v, want nil", err)
	}
}

func TestWaitForFrame_AfterClose(t *testing.T) {
	conn := &fakeConn{source: &fakeSource{frames: make(chan *Frame, 1)}}
	dialer := &fakeDialer{conn: conn}

	s, err := Open(context.Background(), dialer, testEndpoint(), []BufferKind{BufferXYZ})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// Even with a frame queued, a closed session must never hand it out.
	conn.source.frames <- &Frame{CapturedAt: time.Now()}
	s.Close()

	_, err = s.WaitForFrame(time.Second)
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("WaitForFrame() after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestControlOps_NoSession(t *testing.T) {
	var s *Session

	if err := s.SetSoftPower(true); !errors.Is(err, ErrNoSession) {
		t.Errorf("SetSoftPower() error = %v, want ErrNoSession", err)
	}
	if _, err := s.DumpConfiguration(); !errors.Is(err, ErrNoSession) {
		t.Errorf("DumpConfiguration() error = %v, want ErrNoSession", err)
	}
	if err := s.ApplyConfiguration([]byte("{}")); !errors.Is(err, ErrNoSession) {
		t.Errorf("ApplyConfiguration() error = %v, want ErrNoSession", err)
	}
}

func TestSetSoftPower_CommandError(t *testing.T) {
	conn := &fakeConn{powerErr: errors.New("imager busy")}
	dialer := &fakeDialer{conn: conn}

	s, err := Open(context.Background(), dialer, testEndpoint(), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	err = s.SetSoftPower(false)
	if !errors.Is(err, ErrDeviceCommand) {
		t.Errorf("SetSoftPower() error = %v, want ErrDeviceCommand", err)
	}
	if s.Live() != true {
		t.Error("command failure must leave the session live")
	}
}
