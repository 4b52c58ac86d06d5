package xnet

import (
	"io"
	"net"
	"sync"
	"time"
)

// StdioConn is a net.Conn over a read/write stream pair, typically the
// process's own stdin and stdout. It lets the SSH handshake run over stdio
// so the proxy can serve a single inbound session when invoked in-line,
// for example as an ssh ProxyCommand.
type StdioConn struct {
	in  io.Reader
	out io.Writer

	closeOnce sync.Once
	closeErr  error
}

var _ net.Conn = (*StdioConn)(nil)

// NewStreamConn wraps an arbitrary stream pair.
func NewStreamConn(in io.Reader, out io.Writer) *StdioConn {
	return &StdioConn{in: in, out: out}
}

func (c *StdioConn) Read(p []byte) (int, error) {
	return c.in.Read(p)
}

func (c *StdioConn) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// Close closes whichever underlying streams are closable.
func (c *StdioConn) Close() error {
	c.closeOnce.Do(func() {
		if wc, ok := c.out.(io.Closer); ok {
			c.closeErr = wc.Close()
		}
		if rc, ok := c.in.(io.Closer); ok {
			if err := rc.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}

type stdioAddr struct{}

func (stdioAddr) Network() string { return "stdio" }
func (stdioAddr) String() string  { return "stdio" }

func (c *StdioConn) LocalAddr() net.Addr  { return stdioAddr{} }
func (c *StdioConn) RemoteAddr() net.Addr { return stdioAddr{} }

// Deadlines are not supported on arbitrary streams; the SSH layer does not
// set them.
func (c *StdioConn) SetDeadline(t time.Time) error      { return nil }
func (c *StdioConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *StdioConn) SetWriteDeadline(t time.Time) error { return nil }
