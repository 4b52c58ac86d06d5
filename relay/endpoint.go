// Package relay implements the session rendezvous and bidirectional byte
// relay engine of ssh-relay. It abstracts the three endpoint kinds (SSH
// channel, local process, process stdio) behind a single Endpoint interface
// so that the piping loop and the session control flow never care what is on
// the other end.
package relay

import (
	"errors"
	"io"
)

// ErrEndpointClosed is returned by operations on an endpoint after Close.
var ErrEndpointClosed = errors.New("endpoint closed")

// Endpoint is a duplex stream with distinct output and error substreams,
// exit-status reporting in both directions, and an idempotent Close.
//
// The accessors are named from the far side's point of view: Out is data the
// far side produced, In is data the far side will consume. An endpoint with
// no distinct error substream returns nil from Err / ErrIn; the piping loop
// treats a nil reader as permanently at EOF and discards writes to a nil
// writer.
type Endpoint interface {
	// Out returns the far side's output stream. Never nil.
	Out() io.Reader
	// Err returns the far side's error stream, or nil.
	Err() io.Reader
	// In returns the stream consumed by the far side. Never nil.
	In() io.Writer
	// ErrIn returns the writer feeding the far side's error stream, or nil.
	ErrIn() io.Writer

	// CloseWrite signals end-of-input to the far side without closing the
	// output streams.
	CloseWrite() error

	// ExitStatus reports the far side's completion code. The boolean is
	// false until the far side has signalled completion, and stays false
	// forever on endpoints that cannot report one. Callers must drain Out
	// and Err first.
	ExitStatus() (int, bool)
	// SendExitStatus reports a completion code to the far side. Endpoints
	// with no way to deliver it return nil.
	SendExitStatus(code int) error

	// Closed reports whether Close has been called.
	Closed() bool
	// Close releases the underlying transport or process resources. It is
	// idempotent and safe to call concurrently with in-flight reads and
	// writes, which it unblocks.
	Close() error
}
