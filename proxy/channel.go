package proxy

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/jpillora/ssh-relay/relay"
)

// channelSession serves the requests of one accepted "session" channel and
// feeds exec requests into the session's gate.
type channelSession struct {
	sess     *Session
	ch       ssh.Channel
	endpoint *relay.ChannelEndpoint
	resizes  chan []byte
}

func (cs *channelSession) serveRequests(requests <-chan *ssh.Request) {
	defer close(cs.resizes)

	if ka := cs.sess.server.config.KeepAlive; ka > 0 {
		ticking := make(chan bool, 1)
		go cs.keepAlive(time.Duration(ka)*time.Second, ticking)
		defer close(ticking)
	}

	for req := range requests {
		cs.sess.debugf("Session request: %s", req.Type)
		ok, err := cs.handleRequest(req)
		if err != nil {
			cs.sess.debugf("Request %q failed: %s", req.Type, err)
			ok = false
		}
		if req.WantReply {
			if err := req.Reply(ok, nil); err != nil {
				cs.sess.errorf("Failed to reply to request %q: %s", req.Type, err)
			}
		}
	}
	cs.sess.debugf("Closing handler for session requests")
}

func (cs *channelSession) handleRequest(req *ssh.Request) (bool, error) {
	switch req.Type {
	case "env":
		e := struct{ Name, Value string }{}
		if err := ssh.Unmarshal(req.Payload, &e); err != nil {
			return false, fmt.Errorf("failed to unmarshal env: %w", err)
		}
		cs.sess.setEnv(e.Name, e.Value)
		return true, nil
	case "exec":
		command, err := parseString(req.Payload)
		if err != nil {
			return false, err
		}
		if !cs.sess.gate.Deliver(cs.endpoint, command) {
			cs.sess.debugf("Discarded exec request %q", command)
		}
		return true, nil
	case "shell":
		if cs.sess.server.config.Mode != ModeExec {
			return false, nil
		}
		return true, cs.attachShell()
	case "pty-req":
		if len(req.Payload) < 4 {
			return false, fmt.Errorf("malformed pty-req payload")
		}
		termLen := req.Payload[3]
		if len(req.Payload) < int(termLen)+4 {
			return false, fmt.Errorf("malformed pty-req payload")
		}
		return cs.queueResize(req.Payload[termLen+4:]), nil
	case "window-change":
		return cs.queueResize(req.Payload), nil
	case "subsystem":
		name, err := parseString(req.Payload)
		if err != nil {
			return false, err
		}
		if name == "sftp" && cs.sess.server.config.SFTP && cs.sess.server.config.Mode == ModeExec {
			go cs.startSFTP()
			return true, nil
		}
		cs.sess.debugf("Unsupported subsystem requested: %q", name)
		return false, nil
	default:
		return false, nil
	}
}

// queueResize offers terminal dimensions to a shell consumer. Only exec
// mode can attach a shell, the other modes refuse pty traffic outright.
// The send never blocks: a caller flooding resizes must not stall the
// request loop, so overflow is dropped.
func (cs *channelSession) queueResize(payload []byte) bool {
	if cs.sess.server.config.Mode != ModeExec {
		return false
	}
	select {
	case cs.resizes <- payload:
		return true
	default:
		cs.sess.debugf("Discarded resize request")
		return false
	}
}

// parseString decodes an RFC 4254 string payload: [uint32 length][bytes].
func parseString(payload []byte) (string, error) {
	if len(payload) < 4 {
		return "", fmt.Errorf("malformed request payload")
	}
	length := binary.BigEndian.Uint32(payload)
	if uint32(len(payload)-4) != length {
		return "", fmt.Errorf("length mismatch in payload")
	}
	return string(payload[4:]), nil
}

// keepAlive sends periodic ping requests to keep the channel alive
func (cs *channelSession) keepAlive(interval time.Duration, ticking <-chan bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := cs.ch.SendRequest("ping", false, nil); err != nil {
				cs.sess.debugf("Failed to send keep alive ping: %s", err)
			}
		case <-ticking:
			return
		}
	}
}
