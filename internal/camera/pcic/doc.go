// Package pcic implements the production camera dialer over the device's
// PCIC-style TCP interface.
//
// The protocol is ticketed: every command is framed with a four-digit
// ticket, and the device echoes the ticket on the matching response.
// Frame data arrives asynchronously under the reserved ticket 0000 as a
// sequence of binary chunks, one per requested buffer kind. A single
// reader goroutine demultiplexes the stream into per-ticket response
// channels and a buffered frame channel.
//
// Message framing:
//
//	<ticket>L<length:9 digits>\r\n<ticket><content>\r\n
//
// where length covers "<ticket><content>\r\n".
//
// Cancellation: closing the connection tears down the reader, fails all
// pending commands and closes the frame channel, so a blocked WaitForFrame
// returns camera.ErrSessionClosed promptly instead of hanging.
package pcic
