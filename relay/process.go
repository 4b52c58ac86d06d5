package relay

import (
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

// ProcessEndpoint wraps a local child process behind stdin/stdout/stderr
// pipes. Close kills the process if it is still running, so a session can
// tear down without waiting for a stuck command.
type ProcessEndpoint struct {
	cmd *exec.Cmd

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu     sync.Mutex
	waited bool
	status int
	ready  bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Endpoint = (*ProcessEndpoint)(nil)

// NewProcessEndpoint attaches pipes to the command. The command must not
// have been started yet.
func NewProcessEndpoint(cmd *exec.Cmd) (*ProcessEndpoint, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	return &ProcessEndpoint{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// Start launches the process.
func (e *ProcessEndpoint) Start() error {
	return e.cmd.Start()
}

func (e *ProcessEndpoint) Out() io.Reader   { return e.stdout }
func (e *ProcessEndpoint) Err() io.Reader   { return e.stderr }
func (e *ProcessEndpoint) In() io.Writer    { return e.stdin }
func (e *ProcessEndpoint) ErrIn() io.Writer { return nil }

// CloseWrite closes the process's stdin so it sees EOF.
func (e *ProcessEndpoint) CloseWrite() error {
	return e.stdin.Close()
}

// ExitStatus reaps the process once and reports its completion code. Both
// output pipes must be drained before the first call.
func (e *ProcessEndpoint) ExitStatus() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wait()
}

// wait reaps the process. Caller holds e.mu.
func (e *ProcessEndpoint) wait() (int, bool) {
	if !e.waited {
		e.waited = true
		switch err := e.cmd.Wait().(type) {
		case nil:
			e.status, e.ready = 0, true
		case *exec.ExitError:
			e.status, e.ready = err.ExitCode(), true
		default:
			// pipe or wait failure, status stays unknown
		}
	}
	return e.status, e.ready
}

// SendExitStatus is a no-op: a child process has no peer to report to.
func (e *ProcessEndpoint) SendExitStatus(code int) error { return nil }

func (e *ProcessEndpoint) Closed() bool {
	return e.closed.Load()
}

// Close closes the pipes and kills the process if it has not exited yet.
// The kill is unconditional: by the time a session tears down, a process
// that is still running is a process nobody will drain.
func (e *ProcessEndpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = e.stdin.Close()
		e.mu.Lock()
		if !e.waited && e.cmd.Process != nil {
			if err := e.cmd.Process.Kill(); err != nil && e.closeErr == nil {
				e.closeErr = err
			}
		}
		e.wait()
		e.mu.Unlock()
	})
	return e.closeErr
}
