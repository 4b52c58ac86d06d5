package relay

import (
	"io"
	"os"
	"sync/atomic"
)

// DirectEndpoint exposes the proxy process's own standard streams as a
// relay target. It is used when the proxy is invoked in-line (for example as
// an ssh ProxyCommand hop) and the session should be mirrored onto the
// local terminal rather than a spawned process or a remote host.
//
// The streams belong to the process, so Close only marks the endpoint
// closed; it never closes the files underneath.
type DirectEndpoint struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	closed atomic.Bool
}

var _ Endpoint = (*DirectEndpoint)(nil)

// NewDirectEndpoint builds an endpoint over explicit streams. errOut may be
// nil.
func NewDirectEndpoint(in io.Reader, out, errOut io.Writer) *DirectEndpoint {
	return &DirectEndpoint{in: in, out: out, errOut: errOut}
}

// NewStdioEndpoint builds an endpoint over the process's stdin, stdout and
// stderr.
func NewStdioEndpoint() *DirectEndpoint {
	return NewDirectEndpoint(os.Stdin, os.Stdout, os.Stderr)
}

func (e *DirectEndpoint) Out() io.Reader { return e.in }

// Err returns nil: the terminal has no readable error stream, the relay
// treats it as permanently at EOF.
func (e *DirectEndpoint) Err() io.Reader { return nil }

func (e *DirectEndpoint) In() io.Writer    { return e.out }
func (e *DirectEndpoint) ErrIn() io.Writer { return e.errOut }

func (e *DirectEndpoint) CloseWrite() error { return nil }

// ExitStatus never reports: the terminal does not complete.
func (e *DirectEndpoint) ExitStatus() (int, bool) { return 0, false }

func (e *DirectEndpoint) SendExitStatus(code int) error { return nil }

func (e *DirectEndpoint) Closed() bool {
	return e.closed.Load()
}

func (e *DirectEndpoint) Close() error {
	e.closed.Store(true)
	return nil
}
