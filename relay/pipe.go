package relay

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// copyBufferSize matches the SSH maximum packet size.
const copyBufferSize = 32 * 1024

// Pipe relays bytes between the inbound caller endpoint and the resolved
// target endpoint. Three directions run independently so a stalled sink on
// one never starves the others:
//
//	caller output -> target input   (the caller's keystrokes / piped stdin)
//	target output -> caller input   (the command's stdout)
//	target error  -> caller error   (the command's stderr)
//
// Each direction ends when its source reaches EOF, or on an I/O failure,
// which is treated as EOF for that direction only. When the caller's input
// ends, end-of-input is propagated to the target so a reading command
// terminates. Pipe returns once both target output streams are drained and,
// when the target reported a completion code and the caller endpoint is
// still open, forwards that code to the caller.
//
// The caller-input direction may outlive Pipe when the caller holds its
// input open after the target has finished; the session's teardown Close
// unblocks it.
func Pipe(caller, target Endpoint) error {
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	record := func(err error) {
		if err != nil {
			mu.Lock()
			errs = multierror.Append(errs, err)
			mu.Unlock()
		}
	}

	go func() {
		_, err := copyStream(target.In(), caller.Out())
		record(err)
		if err := target.CloseWrite(); err != nil && !benign(err) {
			record(err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := copyStream(caller.In(), target.Out())
		record(err)
	}()
	go func() {
		defer wg.Done()
		_, err := copyStream(caller.ErrIn(), target.Err())
		record(err)
	}()
	wg.Wait()

	if code, ok := target.ExitStatus(); ok && !caller.Closed() {
		// best effort: a caller that already disconnected observes a
		// plain close, not an error
		_ = caller.SendExitStatus(code)
	}

	mu.Lock()
	defer mu.Unlock()
	return errs.ErrorOrNil()
}

// copyStream moves src into dst until EOF. A nil src is permanently at EOF;
// a nil dst discards. Errors caused by an endpoint being closed underneath
// the copy are not reported.
func copyStream(dst io.Writer, src io.Reader) (int64, error) {
	if src == nil {
		return 0, nil
	}
	if dst == nil {
		dst = io.Discard
	}
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(dst, src, buf)
	if benign(err) {
		err = nil
	}
	return n, err
}

// benign reports whether err is nil, EOF, or a side effect of closing an
// endpoint mid-copy.
func benign(err error) bool {
	if err == nil || err == io.EOF {
		return true
	}
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "file already closed") ||
		strings.Contains(s, "use of closed") ||
		strings.Contains(s, "broken pipe")
}
