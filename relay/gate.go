package relay

import (
	"context"
	"errors"
	"time"
)

// DefaultCommandWindow is how long a session waits for the caller to issue
// an exec request before giving up.
const DefaultCommandWindow = 10 * time.Second

// gateBacklog bounds requests accepted after the first. They are kept but
// never drained: one command is honored per session, the rest are discarded
// with the session.
const gateBacklog = 8

// ErrCommandTimeout is returned by Gate.Await when the caller issued no
// exec request within the rendezvous window.
var ErrCommandTimeout = errors.New("no command received within timeout")

// Exec is one exec request: the channel endpoint it arrived on and the
// command string the caller wants to run.
type Exec struct {
	Endpoint *ChannelEndpoint
	Command  string
}

// Gate is the rendezvous between the connection's request-handling
// goroutines, which deliver exec requests as they arrive, and the session
// goroutine, which consumes exactly one.
type Gate struct {
	ch chan Exec
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan Exec, gateBacklog)}
}

// Deliver hands an exec request to the session. It never blocks: once the
// backlog is full further requests are dropped. Reports whether the request
// was queued.
func (g *Gate) Deliver(ep *ChannelEndpoint, command string) bool {
	select {
	case g.ch <- Exec{Endpoint: ep, Command: command}:
		return true
	default:
		return false
	}
}

// Await blocks until a request is available, the window elapses, or ctx is
// cancelled. Only the first delivered request is ever returned; a given
// gate yields at most one request to each Await call and sessions call it
// once.
func (g *Gate) Await(ctx context.Context, window time.Duration) (Exec, error) {
	if window <= 0 {
		window = DefaultCommandWindow
	}
	t := time.NewTimer(window)
	defer t.Stop()
	select {
	case ex := <-g.ch:
		return ex, nil
	case <-t.C:
		return Exec{}, ErrCommandTimeout
	case <-ctx.Done():
		return Exec{}, ctx.Err()
	}
}
