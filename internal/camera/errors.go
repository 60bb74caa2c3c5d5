package camera

import "errors"

// Domain-specific errors for camera operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the camera is unreachable or
	// rejects the credential. Configure fails but remains retriable.
	ErrConnectionFailed = errors.New("camera: connection failed")

	// ErrUnsupportedBuffer is returned when the device rejects the
	// requested buffer selection.
	ErrUnsupportedBuffer = errors.New("camera: unsupported buffer selection")

	// ErrFrameTimeout is returned when no frame arrives within the wait
	// bound. Transient; the acquisition loop logs and continues.
	ErrFrameTimeout = errors.New("camera: frame wait timed out")

	// ErrSessionClosed is returned when a wait is unblocked by the session
	// (or underlying connection) being closed. It is the prompt
	// cancellation result, never a silent hang.
	ErrSessionClosed = errors.New("camera: session closed")

	// ErrNoSession is returned by control operations when no live session
	// exists.
	ErrNoSession = errors.New("camera: no live session")

	// ErrDeviceCommand is returned when a control request fails against a
	// live session. The session itself is left untouched.
	ErrDeviceCommand = errors.New("camera: device command failed")
)
