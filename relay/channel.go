package relay

import (
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
)

// ChannelEndpoint wraps an ssh.Channel, typically the inbound "session"
// channel of a connected caller. The channel itself carries the output and
// input streams; stderr is the channel's extended data stream. Exit status
// travels as an "exit-status" channel request.
type ChannelEndpoint struct {
	ch ssh.Channel

	mu     sync.Mutex
	status int
	ready  bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Endpoint = (*ChannelEndpoint)(nil)

// NewChannelEndpoint wraps an accepted SSH channel. The endpoint takes
// ownership of the channel and closes it on Close.
func NewChannelEndpoint(ch ssh.Channel) *ChannelEndpoint {
	return &ChannelEndpoint{ch: ch}
}

func (e *ChannelEndpoint) Out() io.Reader { return e.ch }
func (e *ChannelEndpoint) Err() io.Reader { return e.ch.Stderr() }
func (e *ChannelEndpoint) In() io.Writer  { return e.ch }

func (e *ChannelEndpoint) ErrIn() io.Writer { return e.ch.Stderr() }

// CloseWrite sends EOF on the channel, leaving the read side open.
func (e *ChannelEndpoint) CloseWrite() error {
	return e.ch.CloseWrite()
}

// ExitStatus reports a status previously recorded with SetExitStatus.
func (e *ChannelEndpoint) ExitStatus() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.ready
}

// SetExitStatus records a status received from the channel peer, making it
// visible through ExitStatus.
func (e *ChannelEndpoint) SetExitStatus(code int) {
	e.mu.Lock()
	e.status = code
	e.ready = true
	e.mu.Unlock()
}

// SendExitStatus forwards a completion code to the channel peer.
// See https://datatracker.ietf.org/doc/html/rfc4254#section-6.10
func (e *ChannelEndpoint) SendExitStatus(code int) error {
	if e.closed.Load() {
		return ErrEndpointClosed
	}
	type exit struct {
		Status uint32
	}
	_, err := e.ch.SendRequest("exit-status", false, ssh.Marshal(&exit{Status: uint32(code)}))
	return err
}

func (e *ChannelEndpoint) Closed() bool {
	return e.closed.Load()
}

func (e *ChannelEndpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = e.ch.Close()
	})
	return e.closeErr
}
