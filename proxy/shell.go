package proxy

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// attachShell attaches an interactive pty-backed shell to the channel. This
// sits outside the exec/relay flow: a caller that asks for a shell instead
// of a command gets the proxy host's shell directly (exec mode only).
func (cs *channelSession) attachShell() error {
	sess := cs.sess
	cfg := sess.server.config
	args := []string{}
	switch filepath.Base(cfg.Shell) {
	case "bash", "fish":
		args = append(args, "-l")
	}
	shell := exec.Command(cfg.Shell, args...)
	if cfg.WorkDir != "" {
		shell.Dir = cfg.WorkDir
	}
	env := sess.envList()
	if !hasEnv(env, "TERM") {
		env = append(env, "TERM=xterm-256color")
	}
	shell.Env = env

	closeFunc := func() {
		cs.ch.Close()
		if shell.Process != nil {
			if err := shell.Process.Signal(os.Interrupt); err != nil && !processGone(err) {
				sess.errorf("Failed to interrupt shell: %s", err)
			}
			time.Sleep(100 * time.Millisecond)
			if err := shell.Process.Kill(); err != nil && !processGone(err) {
				sess.errorf("Failed to kill shell: %s", err)
			}
			if _, err := shell.Process.Wait(); err != nil {
				sess.debugf("Process wait error: %s", err)
			}
		}
		sess.debugf("Shell session closed")
	}

	shellf, err := startPTY(shell)
	if err != nil {
		closeFunc()
		return fmt.Errorf("could not start pty: %w", err)
	}

	// dequeue resizes
	go func() {
		for payload := range cs.resizes {
			w, h := parseDims(payload)
			SetWinsize(shellf, w, h)
		}
	}()

	// pipe channel to shell and visa-versa
	var once sync.Once
	go func() {
		_, err := io.Copy(cs.ch, shellf)
		if err != nil && !ptyClosed(err) {
			sess.debugf("Shell to connection copy error: %s", err)
		}
		once.Do(closeFunc)
	}()
	go func() {
		_, err := io.Copy(shellf, cs.ch)
		if err != nil && !ptyClosed(err) {
			sess.debugf("Connection to shell copy error: %s", err)
		}
		once.Do(closeFunc)
	}()

	sess.debugf("Shell attached")

	go func() {
		// proactively listen for process death, for those ptys that
		// don't signal on EOF
		if shell.Process != nil {
			if _, err := shell.Process.Wait(); err != nil && !waitBenign(err) {
				sess.errorf("Shell process wait error: %s", err)
			}
			// closing the pty is idempotent and ensures the copy goroutines exit
			shellf.Close()
		}
		sess.debugf("Shell terminated")
		once.Do(closeFunc)
	}()

	return nil
}

func hasEnv(env []string, key string) bool {
	k := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, k) {
			return true
		}
	}
	return false
}

func processGone(err error) bool {
	s := err.Error()
	return strings.Contains(s, "process already finished") ||
		strings.Contains(s, "already exited") ||
		strings.Contains(s, "not supported")
}

func ptyClosed(err error) bool {
	s := err.Error()
	return strings.Contains(s, "file already closed") ||
		strings.Contains(s, "input/output error") ||
		strings.Contains(s, "use of closed")
}

func waitBenign(err error) bool {
	s := err.Error()
	return strings.Contains(s, "wait: no child processes") ||
		strings.Contains(s, "exit status") ||
		strings.Contains(s, "Wait was already called")
}
