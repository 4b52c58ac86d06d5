package relay

import (
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
)

// RemoteEndpoint wraps a session opened on an outbound SSH connection. It
// owns both the session and, when provided, the client connection carrying
// it: closing the endpoint closes both.
type RemoteEndpoint struct {
	client *ssh.Client
	sess   *ssh.Session

	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader

	mu     sync.Mutex
	waited bool
	status int
	ready  bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Endpoint = (*RemoteEndpoint)(nil)

// NewRemoteEndpoint prepares the session's pipes. client may be nil when the
// caller manages the connection lifetime itself.
func NewRemoteEndpoint(client *ssh.Client, sess *ssh.Session) (*RemoteEndpoint, error) {
	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return nil, err
	}
	return &RemoteEndpoint{
		client: client,
		sess:   sess,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// Start issues the command on the remote session.
func (e *RemoteEndpoint) Start(command string) error {
	return e.sess.Start(command)
}

func (e *RemoteEndpoint) Out() io.Reader   { return e.stdout }
func (e *RemoteEndpoint) Err() io.Reader   { return e.stderr }
func (e *RemoteEndpoint) In() io.Writer    { return e.stdin }
func (e *RemoteEndpoint) ErrIn() io.Writer { return nil }

// CloseWrite closes the remote command's stdin.
func (e *RemoteEndpoint) CloseWrite() error {
	return e.stdin.Close()
}

// ExitStatus waits for the remote command once and reports its completion
// code. Both output streams must be drained before the first call.
func (e *RemoteEndpoint) ExitStatus() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.waited {
		e.waited = true
		switch err := e.sess.Wait().(type) {
		case nil:
			e.status, e.ready = 0, true
		case *ssh.ExitError:
			e.status, e.ready = err.ExitStatus(), true
		default:
			// missing status or transport failure, status stays unknown
		}
	}
	return e.status, e.ready
}

// SendExitStatus is a no-op: an SSH client cannot report a status to the
// server side of the session.
func (e *RemoteEndpoint) SendExitStatus(code int) error { return nil }

func (e *RemoteEndpoint) Closed() bool {
	return e.closed.Load()
}

func (e *RemoteEndpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = e.sess.Close()
		if e.client != nil {
			if err := e.client.Close(); err != nil && e.closeErr == nil {
				e.closeErr = err
			}
		}
	})
	return e.closeErr
}
