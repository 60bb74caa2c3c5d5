package pcic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
)

// Protocol constants.
const (
	// dialTimeout is the timeout for the TCP connection attempt.
	dialTimeout = 10 * time.Second

	// commandTimeout is the maximum time to wait for a command response.
	commandTimeout = 5 * time.Second

	// frameTicket is the reserved ticket for asynchronous frame messages.
	frameTicket = "0000"

	// frameChanSize bounds buffered frames between reader and consumer.
	// The acquisition loop normally drains faster than the device frame
	// rate; when it falls behind, newest frames are dropped.
	frameChanSize = 4

	// maxMessageSize caps a single framed message (a full frame with all
	// buffers fits comfortably; anything larger is a protocol error).
	maxMessageSize = 64 << 20 // 64MB

	// ticketMin/ticketMax bound the command ticket range. 0000 is
	// reserved for frame data.
	ticketMin = 1000
	ticketMax = 9999
)

// Dialer is the production camera.Dialer over the PCIC TCP interface.
type Dialer struct{}

// NewDialer returns a Dialer ready for use.
func NewDialer() *Dialer {
	return &Dialer{}
}

// Dial connects to the camera's PCIC port and authenticates if a password
// is configured. Network and authentication failures both map to
// camera.ErrConnectionFailed so configure stays retriable.
func (Dialer) Dial(ctx context.Context, ep camera.Endpoint) (camera.DeviceConn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	tcp, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ep.Address, strconv.Itoa(ep.PCICPort)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", camera.ErrConnectionFailed, err)
	}

	c := &conn{
		tcp:     tcp,
		reader:  bufio.NewReader(tcp),
		pending: make(map[string]chan []byte),
		frames:  make(chan *camera.Frame, frameChanSize),
		closed:  make(chan struct{}),
		ticket:  ticketMin,
	}
	go c.readLoop()

	if ep.Password != "" {
		if _, err := c.command("a" + ep.Password); err != nil {
			c.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("%w: authentication: %w", camera.ErrConnectionFailed, err)
		}
	}

	return c, nil
}

// conn is the live PCIC connection: one writer (command senders, serialized
// by mu) and one reader goroutine demultiplexing responses and frames.
type conn struct {
	tcp    net.Conn
	reader *bufio.Reader

	mu      sync.Mutex // guards writes, pending, ticket, closing
	pending map[string]chan []byte
	ticket  int
	closing bool

	frames    chan *camera.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

// command sends one framed command and waits for the device's response.
// A response of "!" (optionally followed by detail) is a command failure.
func (c *conn) command(content string) ([]byte, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, camera.ErrSessionClosed
	}

	ticket := strconv.Itoa(c.ticket)
	c.ticket++
	if c.ticket > ticketMax {
		c.ticket = ticketMin
	}

	respCh := make(chan []byte, 1)
	c.pending[ticket] = respCh

	// <ticket>L<length:9>\r\n<ticket><content>\r\n
	body := ticket + content + "\r\n"
	header := fmt.Sprintf("%sL%09d\r\n", ticket, len(body))
	_, err := c.tcp.Write([]byte(header + body))
	c.mu.Unlock()

	if err != nil {
		c.dropPending(ticket)
		return nil, fmt.Errorf("pcic: write: %w", err)
	}

	select {
	case resp := <-respCh:
		if len(resp) > 0 && resp[0] == '!' {
			return nil, fmt.Errorf("pcic: device rejected command: %s", resp[1:])
		}
		return resp, nil
	case <-time.After(commandTimeout):
		c.dropPending(ticket)
		return nil, fmt.Errorf("pcic: no response within %v", commandTimeout)
	case <-c.closed:
		return nil, camera.ErrSessionClosed
	}
}

func (c *conn) dropPending(ticket string) {
	c.mu.Lock()
	delete(c.pending, ticket)
	c.mu.Unlock()
}

// readLoop demultiplexes the inbound stream until the connection dies.
func (c *conn) readLoop() {
	defer c.teardown()

	for {
		ticket, content, err := c.readMessage()
		if err != nil {
			return
		}

		if ticket == frameTicket {
			c.handleFrame(content)
			continue
		}

		c.mu.Lock()
		respCh, ok := c.pending[ticket]
		if ok {
			delete(c.pending, ticket)
		}
		c.mu.Unlock()

		if ok {
			respCh <- content
		}
		// Unmatched tickets (late responses after timeout) are dropped.
	}
}

// readMessage reads one framed message and returns its ticket and content.
func (c *conn) readMessage() (string, []byte, error) {
	head := make([]byte, 16) // <ticket:4>L<length:9>\r\n
	if _, err := io.ReadFull(c.reader, head); err != nil {
		return "", nil, err
	}
	ticket := string(head[:4])
	if head[4] != 'L' || head[14] != '\r' || head[15] != '\n' {
		return "", nil, fmt.Errorf("pcic: malformed message header %q", head)
	}
	length, err := strconv.Atoi(string(head[5:14]))
	if err != nil || length < 6 || length > maxMessageSize {
		return "", nil, fmt.Errorf("pcic: bad message length %q", head[5:14])
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return "", nil, err
	}
	if string(body[:4]) != ticket {
		return "", nil, fmt.Errorf("pcic: ticket mismatch (%s vs %s)", body[:4], ticket)
	}

	// Strip repeated ticket and trailing CRLF.
	return ticket, body[4 : length-2], nil
}

// handleFrame parses a frame envelope and queues it. When the consumer has
// fallen behind, the oldest buffered frame is evicted so the queue holds
// the freshest frames.
func (c *conn) handleFrame(content []byte) {
	const star, stop = "star", "stop"
	if len(content) < len(star)+len(stop) ||
		string(content[:4]) != star || string(content[len(content)-4:]) != stop {
		return
	}

	frame, err := parseFrame(content[4 : len(content)-4])
	if err != nil {
		return
	}

	for {
		select {
		case c.frames <- frame:
			return
		default:
		}
		select {
		case <-c.frames:
		default:
		}
	}
}

// teardown fails pending commands and signals closure to frame waiters.
func (c *conn) teardown() {
	c.mu.Lock()
	c.closing = true
	c.pending = make(map[string]chan []byte)
	c.mu.Unlock()

	// Pending waiters unblock through the closed channel; their response
	// channels are buffered and simply abandoned.
	c.closeOnce.Do(func() { close(c.closed) })
}

// Stream requests the buffer selection and returns the acquisition handle.
func (c *conn) Stream(buffers []camera.BufferKind) (camera.FrameSource, error) {
	schema, err := schemaJSON(buffers)
	if err != nil {
		return nil, err
	}

	if _, err := c.command("c" + schema); err != nil {
		return nil, fmt.Errorf("%w: %w", camera.ErrUnsupportedBuffer, err)
	}

	return &frameSource{conn: c, done: make(chan struct{})}, nil
}

// schemaJSON builds the flexible-layouter schema the firmware expects.
func schemaJSON(buffers []camera.BufferKind) (string, error) {
	elements := make([]map[string]string, 0, len(buffers))
	for _, b := range buffers {
		if !b.Valid() {
			return "", fmt.Errorf("%w: %q", camera.ErrUnsupportedBuffer, b)
		}
		elements = append(elements, map[string]string{"type": "blob", "id": string(b)})
	}

	schema := map[string]any{
		"layouter": "flexible",
		"format":   map[string]string{"dataencoding": "binary"},
		"elements": elements,
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("pcic: encoding schema: %w", err)
	}
	return string(data), nil
}

// DumpConfiguration reads the device configuration blob.
func (c *conn) DumpConfiguration() ([]byte, error) {
	return c.command("D")
}

// ApplyConfiguration writes a JSON configuration blob.
func (c *conn) ApplyConfiguration(blob []byte) error {
	_, err := c.command("A" + string(blob))
	return err
}

// SetPower switches the imager's soft power state.
func (c *conn) SetPower(on bool) error {
	cmd := "p0"
	if on {
		cmd = "p1"
	}
	_, err := c.command(cmd)
	return err
}

// SyncClock sets the device clock.
func (c *conn) SyncClock(now time.Time) error {
	_, err := c.command("t" + now.UTC().Format(time.RFC3339Nano))
	return err
}

// Close tears down the TCP connection. The reader exits, pending commands
// fail, and any blocked WaitForFrame returns camera.ErrSessionClosed.
func (c *conn) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	err := c.tcp.Close()
	c.closeOnce.Do(func() { close(c.closed) })
	if err != nil {
		return fmt.Errorf("pcic: close: %w", err)
	}
	return nil
}

// frameSource is the acquisition handle over one conn.
type frameSource struct {
	conn     *conn
	done     chan struct{}
	doneOnce sync.Once
}

// WaitForFrame blocks until the next frame, the timeout, or close of either
// the source or the underlying connection.
func (s *frameSource) WaitForFrame(timeout time.Duration) (*camera.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-s.conn.frames:
		return frame, nil
	case <-timer.C:
		return nil, camera.ErrFrameTimeout
	case <-s.done:
		return nil, camera.ErrSessionClosed
	case <-s.conn.closed:
		return nil, camera.ErrSessionClosed
	}
}

// Close releases the acquisition handle. The device is asked to stop
// streaming (best effort); the TCP connection stays up for the owner.
func (s *frameSource) Close() error {
	s.doneOnce.Do(func() {
		close(s.done)
		s.conn.command("c{\"layouter\":\"flexible\",\"format\":{\"dataencoding\":\"binary\"},\"elements\":[]}") //nolint:errcheck // Best effort stop
	})
	return nil
}
