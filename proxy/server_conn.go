package proxy

import (
	"io"
	"net"

	"golang.org/x/crypto/ssh"
)

// HandleConn runs the SSH handshake on a raw connection and drives the
// resulting session to completion. It returns when the session is over.
func (s *Server) HandleConn(tcpConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, s.sshConfig)
	if err != nil {
		if err != io.EOF {
			s.errorf("Failed to handshake (%s)", err)
		}
		tcpConn.Close()
		return
	}
	s.debugf("New SSH connection from %s (%s)", sshConn.RemoteAddr(), sshConn.ClientVersion())

	sess := newSession(s, sshConn)
	id := s.registry.add(sess)
	defer s.registry.remove(id)
	sess.run(chans, reqs)
}
