// Package proxy assembles the ssh-relay server: it accepts inbound SSH
// connections without authenticating the caller, waits for the caller's
// command, resolves a target endpoint according to the configured mode, and
// relays the session's byte streams and exit status between the two.
package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/jpillora/jplog"
	"github.com/jpillora/ssh-relay/proxy/key"
	"github.com/jpillora/ssh-relay/relay"
	"github.com/jpillora/ssh-relay/xnet"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Server accepts inbound connections and runs one Session per connection.
type Server struct {
	config    Config
	sshConfig *ssh.ServerConfig
	resolver  TargetResolver
	window    time.Duration
	registry  *registry
}

// NewServer creates a new Server. The host key and outbound identity are
// loaded (or generated) once here; Config is not consulted for key material
// again.
func NewServer(c Config) (*Server, error) {
	if l := c.Logger; l == nil && !c.LogQuiet {
		// logs go to stderr: in stdio mode stdout IS the SSH transport
		// and a single stray log line there breaks the handshake
		h := jplog.Handler(os.Stderr)
		if c.LogVerbose {
			h = h.Verbose()
		}
		l = slog.New(h)
		c.Logger = l
	}
	s := &Server{config: c, registry: newRegistry()}
	hostSigner, identity, err := s.loadKeys()
	if err != nil {
		return nil, err
	}
	// callers are deliberately not authenticated: the "none" method
	// always succeeds and nothing stronger is advertised
	sc := &ssh.ServerConfig{NoClientAuth: true}
	sc.AddHostKey(hostSigner)
	s.sshConfig = sc
	s.infof("Host key fingerprint is %s", key.Fingerprint(hostSigner.PublicKey()))
	s.infof("Caller authentication disabled")

	s.window = relay.DefaultCommandWindow
	if c.CommandTimeout > 0 {
		s.window = time.Duration(c.CommandTimeout) * time.Second
	}

	resolver, err := s.buildResolver(identity)
	if err != nil {
		return nil, err
	}
	s.resolver = resolver
	return s, nil
}

// loadKeys loads the host key and the outbound identity. The identity
// defaults to the host key, so the proxy always logs in to targets as
// itself even when no separate key is configured.
func (s *Server) loadKeys() (hostSigner, identity ssh.Signer, err error) {
	c := s.config
	keyBytes := c.KeyBytes
	if keyBytes == nil && c.KeyFile != "" {
		b, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load keyfile: %w", err)
		}
		keyBytes = b
		s.infof("Key from file %s", c.KeyFile)
	}
	if keyBytes == nil {
		b, err := key.Generate(c.KeySeed, c.KeySeedEC)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
		}
		keyBytes = b
		if c.KeySeed == "" {
			s.infof("Key from system rng")
		} else {
			s.infof("Key from seed")
		}
	}
	hostSigner, err = ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	identity = hostSigner
	identityBytes := c.IdentityBytes
	if identityBytes == nil && c.IdentityFile != "" {
		b, err := os.ReadFile(c.IdentityFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load identity file: %w", err)
		}
		identityBytes = b
	}
	if identityBytes != nil {
		identity, err = ssh.ParsePrivateKey(identityBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse identity key: %w", err)
		}
	}
	return hostSigner, identity, nil
}

func (s *Server) buildResolver(identity ssh.Signer) (TargetResolver, error) {
	switch s.config.Mode {
	case ModeExec:
		shell, err := ShellPath(s.config.Shell)
		if err != nil {
			return nil, err
		}
		s.config.Shell = shell
		s.debugf("Session shell %s", shell)
		return &ProcessResolver{Shell: shell, WorkDir: s.config.WorkDir}, nil
	case ModeRelay:
		r := &RemoteResolver{Identity: identity}
		if s.config.Target != "" {
			spec, err := parseTarget(s.config.Target)
			if err != nil {
				return nil, err
			}
			r.Target = &spec
		}
		if s.config.KnownHosts != "" {
			cb, err := knownhosts.New(s.config.KnownHosts)
			if err != nil {
				return nil, fmt.Errorf("failed to load known hosts: %w", err)
			}
			r.HostKeys = cb
			s.infof("Host key verification enabled (%s)", s.config.KnownHosts)
		} else {
			r.HostKeys = ssh.InsecureIgnoreHostKey()
			s.infof("Outbound host keys are not verified")
		}
		return r, nil
	case ModeDirect:
		return &DirectResolver{}, nil
	case "":
		return nil, fmt.Errorf("missing mode")
	default:
		return nil, fmt.Errorf("unknown mode %q", s.config.Mode)
	}
}

// Start listening on the configured port
func (s *Server) Start() error {
	return s.StartContext(context.Background())
}

// StartContext listens on the configured port with context
func (s *Server) StartContext(ctx context.Context) error {
	h := s.config.Host
	p := s.config.Port
	if p == "" {
		p = "2222"
	}
	l, err := net.Listen("tcp", h+":"+p)
	if err != nil {
		return fmt.Errorf("failed to listen on %s", p)
	}
	return s.StartWithContext(ctx, l)
}

// StartWith starts the server with the provided listener.
// Ignores the Host and Port in the config.
func (s *Server) StartWith(l net.Listener) error {
	return s.StartWithContext(context.Background(), l)
}

// StartWithContext starts the server with the provided listener and context.
// Cancelling the context stops accepting new connections; in-flight
// sessions run to completion on their own goroutines and are never waited
// for.
func (s *Server) StartWithContext(ctx context.Context, l net.Listener) error {
	defer l.Close()
	s.infof("Listening on %s...", l.Addr())
	go func() {
		<-ctx.Done()
		s.infof("Closing server")
		l.Close()
	}()
	for {
		tcpConn, err := l.Accept()
		if err != nil {
			// expected when the listener is closed via context
			if opErr, ok := err.(*net.OpError); ok && opErr.Err.Error() == "use of closed network connection" {
				return nil
			}
			s.errorf("Failed to accept incoming connection (%s)", err)
			continue
		}
		go s.HandleConn(tcpConn)
	}
}

// ServeStdio serves a single session whose SSH transport runs over the
// process's stdin and stdout, then returns. Cancelling the context tears
// the session down.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.ServeStreams(ctx, os.Stdin, os.Stdout)
}

// ServeStreams serves a single session whose SSH transport runs over the
// given stream pair, then returns. Cancelling the context tears the
// session down.
func (s *Server) ServeStreams(ctx context.Context, in io.Reader, out io.Writer) error {
	conn := xnet.NewStreamConn(in, out)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	s.HandleConn(conn)
	return nil
}

// Sessions returns the number of in-flight sessions.
func (s *Server) Sessions() int {
	return s.registry.Len()
}

func (s *Server) debugf(f string, args ...interface{}) {
	if !s.config.LogQuiet {
		// debug logs only emit if enabled on the slogger (verbose is enabled)
		s.config.Logger.Debug(fmt.Sprintf(f, args...))
	}
}

func (s *Server) infof(f string, args ...interface{}) {
	if !s.config.LogQuiet {
		s.config.Logger.Info(fmt.Sprintf(f, args...))
	}
}

func (s *Server) errorf(f string, args ...interface{}) {
	if !s.config.LogQuiet {
		s.config.Logger.Error(fmt.Sprintf(f, args...))
	}
}
