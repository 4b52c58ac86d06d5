package relay_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jpillora/ssh-relay/relay"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeEndpoint is an in-memory Endpoint. The test plays the far side: it
// writes far-side output into feedOut/feedErr and reads what the far side
// consumed out of in/errIn.
type fakeEndpoint struct {
	feedOut *io.PipeWriter
	out     *io.PipeReader
	feedErr *io.PipeWriter
	errOut  *io.PipeReader
	in      syncBuffer
	errIn   syncBuffer

	mu         sync.Mutex
	status     int
	ready      bool
	sent       []int
	closeWrite int
	closed     bool
}

func newFakeEndpoint() *fakeEndpoint {
	f := &fakeEndpoint{}
	f.out, f.feedOut = io.Pipe()
	f.errOut, f.feedErr = io.Pipe()
	return f
}

func (f *fakeEndpoint) Out() io.Reader   { return f.out }
func (f *fakeEndpoint) Err() io.Reader   { return f.errOut }
func (f *fakeEndpoint) In() io.Writer    { return &f.in }
func (f *fakeEndpoint) ErrIn() io.Writer { return &f.errIn }

func (f *fakeEndpoint) CloseWrite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeWrite++
	return nil
}

func (f *fakeEndpoint) setExit(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.ready = code, true
}

func (f *fakeEndpoint) ExitStatus() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.ready
}

func (f *fakeEndpoint) SendExitStatus(code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, code)
	return nil
}

func (f *fakeEndpoint) sentStatuses() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.sent...)
}

func (f *fakeEndpoint) closeWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeWrite
}

func (f *fakeEndpoint) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeEndpoint) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.out.Close()
	f.errOut.Close()
	f.feedOut.Close()
	f.feedErr.Close()
	return nil
}

// eofFarSide closes the far side's output streams, as if the far side
// finished producing.
func (f *fakeEndpoint) eofFarSide() {
	f.feedOut.Close()
	f.feedErr.Close()
}

// runPipe runs Pipe and tears both endpoints down afterwards, mirroring a
// session's close sequence.
func runPipe(t *testing.T, caller, target *fakeEndpoint) {
	t.Helper()
	err := relay.Pipe(caller, target)
	caller.Close()
	target.Close()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
}

func TestPipeForwardsOutputAndStatus(t *testing.T) {
	t.Parallel()
	caller := newFakeEndpoint()
	target := newFakeEndpoint()
	target.setExit(0)
	go func() {
		target.feedOut.Write([]byte("hello\n"))
		target.eofFarSide()
	}()
	runPipe(t, caller, target)
	if got := caller.in.String(); got != "hello\n" {
		t.Fatalf("caller saw %q, want %q", got, "hello\n")
	}
	if got := caller.sentStatuses(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("caller saw statuses %v, want [0]", got)
	}
}

func TestPipeKeepsErrorStreamSeparate(t *testing.T) {
	t.Parallel()
	caller := newFakeEndpoint()
	target := newFakeEndpoint()
	go func() {
		target.feedOut.Write([]byte("to stdout"))
		target.feedErr.Write([]byte("to stderr"))
		target.eofFarSide()
	}()
	runPipe(t, caller, target)
	if got := caller.in.String(); got != "to stdout" {
		t.Fatalf("caller stdout %q, want %q", got, "to stdout")
	}
	if got := caller.errIn.String(); got != "to stderr" {
		t.Fatalf("caller stderr %q, want %q", got, "to stderr")
	}
}

func TestPipePreservesByteOrder(t *testing.T) {
	t.Parallel()
	payload := make([]byte, 1<<20)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}
	caller := newFakeEndpoint()
	target := newFakeEndpoint()
	go func() {
		// uneven chunks to exercise partial reads
		for _, chunk := range splitChunks(payload, 7919) {
			target.feedOut.Write(chunk)
		}
		target.eofFarSide()
	}()
	runPipe(t, caller, target)
	if !bytes.Equal(caller.in.Bytes(), payload) {
		t.Fatal("relayed bytes differ from source")
	}
}

func TestPipeForwardsCallerInput(t *testing.T) {
	t.Parallel()
	caller := newFakeEndpoint()
	target := newFakeEndpoint()
	go func() {
		caller.feedOut.Write([]byte("stdin payload"))
		caller.feedOut.Close()
	}()
	target.eofFarSide()
	err := relay.Pipe(caller, target)
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	waitFor(t, func() bool { return target.in.String() == "stdin payload" })
	waitFor(t, func() bool { return target.closeWrites() == 1 })
	caller.Close()
	target.Close()
}

func TestPipeForwardsNonZeroStatus(t *testing.T) {
	t.Parallel()
	caller := newFakeEndpoint()
	target := newFakeEndpoint()
	target.setExit(5)
	target.eofFarSide()
	runPipe(t, caller, target)
	if got := caller.sentStatuses(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("caller saw statuses %v, want [5]", got)
	}
}

func TestPipeSkipsStatusWithoutCompletion(t *testing.T) {
	t.Parallel()
	caller := newFakeEndpoint()
	target := newFakeEndpoint()
	target.eofFarSide()
	runPipe(t, caller, target)
	if got := caller.sentStatuses(); len(got) != 0 {
		t.Fatalf("caller saw statuses %v, want none", got)
	}
}

func TestPipeSkipsStatusWhenCallerClosed(t *testing.T) {
	t.Parallel()
	caller := newFakeEndpoint()
	target := newFakeEndpoint()
	target.setExit(0)
	target.eofFarSide()
	caller.Close()
	if err := relay.Pipe(caller, target); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	target.Close()
	if got := caller.sentStatuses(); len(got) != 0 {
		t.Fatalf("caller saw statuses %v, want none after close", got)
	}
}

// syncBuffer is a goroutine-safe bytes.Buffer sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func splitChunks(p []byte, size int) [][]byte {
	var chunks [][]byte
	for len(p) > 0 {
		n := size
		if n > len(p) {
			n = len(p)
		}
		chunks = append(chunks, p[:n])
		p = p[n:]
	}
	return chunks
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
