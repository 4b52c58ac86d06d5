//go:build !windows

package relay_test

import (
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/jpillora/ssh-relay/relay"
)

func startProcess(t *testing.T, command string) *relay.ProcessEndpoint {
	t.Helper()
	ep, err := relay.NewProcessEndpoint(exec.Command("sh", "-c", command))
	if err != nil {
		t.Fatalf("new process endpoint: %v", err)
	}
	if err := ep.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return ep
}

func TestProcessEndpointEcho(t *testing.T) {
	t.Parallel()
	ep := startProcess(t, "echo hello")
	defer ep.Close()
	out, err := io.ReadAll(ep.Out())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if _, err := io.ReadAll(ep.Err()); err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	if string(out) != "hello\n" {
		t.Fatalf("stdout %q, want %q", out, "hello\n")
	}
	code, ok := ep.ExitStatus()
	if !ok || code != 0 {
		t.Fatalf("exit status %d/%v, want 0", code, ok)
	}
}

func TestProcessEndpointStdin(t *testing.T) {
	t.Parallel()
	ep := startProcess(t, "cat")
	defer ep.Close()
	if _, err := io.WriteString(ep.In(), "ping\n"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	if err := ep.CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}
	out, err := io.ReadAll(ep.Out())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	io.ReadAll(ep.Err())
	if string(out) != "ping\n" {
		t.Fatalf("stdout %q, want %q", out, "ping\n")
	}
}

func TestProcessEndpointStderr(t *testing.T) {
	t.Parallel()
	ep := startProcess(t, "echo oops 1>&2")
	defer ep.Close()
	errOut, err := io.ReadAll(ep.Err())
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	io.ReadAll(ep.Out())
	if !strings.Contains(string(errOut), "oops") {
		t.Fatalf("stderr %q, want it to contain %q", errOut, "oops")
	}
}

func TestProcessEndpointExitCode(t *testing.T) {
	t.Parallel()
	ep := startProcess(t, "exit 3")
	defer ep.Close()
	io.ReadAll(ep.Out())
	io.ReadAll(ep.Err())
	code, ok := ep.ExitStatus()
	if !ok || code != 3 {
		t.Fatalf("exit status %d/%v, want 3", code, ok)
	}
}

func TestProcessEndpointCloseKills(t *testing.T) {
	t.Parallel()
	ep := startProcess(t, "sleep 60")
	done := make(chan error, 1)
	go func() { done <- ep.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("close did not kill a running process")
	}
	if !ep.Closed() {
		t.Fatal("endpoint not marked closed")
	}
	// idempotent
	if err := ep.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
