// Package camera models the device session to one networked 3D
// time-of-flight camera.
//
// A Session is the live pair of handles to the device: the command
// connection (DeviceConn) and the acquisition handle (FrameSource). The
// session exists only between the configure and cleanup lifecycle
// transitions; the node arbitrates all access with a single session lock
// shared between the acquisition loop and control request handlers.
//
// The device wire protocol is an external concern hidden behind the Dialer
// boundary; the pcic subpackage provides the production implementation and
// tests substitute fakes.
//
// Buffer selection is expressed either as an explicit list of BufferKind
// values or, for compatibility with older deployments, as a legacy 16-bit
// schema mask translated by BuffersFromSchemaMask.
package camera
