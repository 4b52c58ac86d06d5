package proxy

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/jpillora/ssh-relay/relay"
	"golang.org/x/crypto/ssh"
)

// Session is one inbound connection's lifecycle: handshake, command
// rendezvous, target resolution, relay, teardown. Sessions are fully
// isolated from each other; everything a session owns is released in
// teardown exactly once.
type Session struct {
	server *Server
	conn   *ssh.ServerConn
	gate   *relay.Gate

	mu  sync.Mutex
	env map[string]string
}

func newSession(s *Server, conn *ssh.ServerConn) *Session {
	return &Session{
		server: s,
		conn:   conn,
		gate:   relay.NewGate(),
		env:    map[string]string{},
	}
}

// User returns the username the caller logged in with. The login is not
// authenticated; in relay mode it can still select the outbound login name.
func (s *Session) User() string {
	return s.conn.User()
}

// Env returns a session variable set by the caller.
func (s *Session) Env(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.env[name]
	return v, ok
}

func (s *Session) setEnv(name, value string) {
	// the routing variable is always honored, IgnoreEnv only filters
	// variables destined for spawned commands
	if s.server.config.IgnoreEnv && name != HostVariable {
		s.debugf("Ignoring env %s", name)
		return
	}
	s.debugf("env: %s=%s", name, value)
	s.mu.Lock()
	s.env[name] = value
	s.mu.Unlock()
}

// envList returns the environment for a spawned command: the proxy's own
// environment with the caller's variables appended.
func (s *Session) envList() []string {
	env := os.Environ()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.env {
		if k == HostVariable {
			continue
		}
		env = append(env, k+"="+v)
	}
	return env
}

// run drives the session state machine: await the caller's command, resolve
// the target, relay, tear down. All failures are local to the session.
func (s *Session) run(chans <-chan ssh.NewChannel, reqs <-chan *ssh.Request) {
	go ssh.DiscardRequests(reqs)
	go s.acceptChannels(chans)

	ex, err := s.gate.Await(context.Background(), s.server.window)
	if err != nil {
		s.errorf("Session from %s: %s", s.conn.RemoteAddr(), err)
		s.teardown(nil, nil)
		return
	}
	caller := ex.Endpoint

	target, err := s.server.resolver.Resolve(s, ex.Command)
	if err != nil {
		s.errorf("Failed to resolve target: %s", err)
		s.teardown(caller, nil)
		return
	}

	s.debugf("Relaying command %q", ex.Command)
	if err := relay.Pipe(caller, target); err != nil {
		s.debugf("Relay ended: %s", err)
	}
	s.teardown(caller, target)
}

// teardown releases the session's resources. Every close runs regardless
// of the others failing; failures are logged, never propagated.
func (s *Session) teardown(caller, target relay.Endpoint) {
	var result *multierror.Error
	if caller != nil {
		result = multierror.Append(result, caller.Close())
	}
	if target != nil {
		result = multierror.Append(result, target.Close())
	}
	result = multierror.Append(result, s.conn.Close())
	if err := result.ErrorOrNil(); err != nil {
		s.debugf("Teardown: %s", err)
	}
	s.debugf("Session closed")
}

// acceptChannels accepts "session" channels and serves their requests.
// Only the first exec request delivered through the gate is relayed;
// channels opened after that still get their requests answered but their
// commands are discarded with the session.
func (s *Session) acceptChannels(chans <-chan ssh.NewChannel) {
	for nc := range chans {
		if nc.ChannelType() != "session" {
			s.debugf("Unknown channel type: %s", nc.ChannelType())
			if err := nc.Reject(ssh.UnknownChannelType, fmt.Sprintf("unknown channel type: %s", nc.ChannelType())); err != nil {
				s.errorf("Failed to reject channel: %s", err)
			}
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			s.errorf("Could not accept channel: %s", err)
			continue
		}
		s.debugf("Channel accepted")
		cs := &channelSession{
			sess:     s,
			ch:       ch,
			endpoint: relay.NewChannelEndpoint(ch),
			resizes:  make(chan []byte, 10),
		}
		go cs.serveRequests(requests)
	}
}

func (s *Session) debugf(f string, args ...interface{}) {
	s.server.debugf(f, args...)
}

func (s *Session) errorf(f string, args ...interface{}) {
	s.server.errorf(f, args...)
}
