package proxy

import (
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/jpillora/ssh-relay/relay"
	"golang.org/x/crypto/ssh"
)

// TargetResolver turns a caller's command into a started target endpoint.
// The three implementations correspond to the three session modes; they
// differ only here, the rest of the session flow is shared.
type TargetResolver interface {
	Resolve(sess *Session, command string) (relay.Endpoint, error)
}

// ProcessResolver spawns the command as a local child process.
type ProcessResolver struct {
	Shell   string
	WorkDir string
}

func (r *ProcessResolver) Resolve(sess *Session, command string) (relay.Endpoint, error) {
	cmd := exec.Command(r.Shell, "-c", command)
	cmd.Env = sess.envList()
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}
	ep, err := relay.NewProcessEndpoint(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare command: %w", err)
	}
	if err := ep.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn command: %w", err)
	}
	sess.debugf("Spawned %q", command)
	return ep, nil
}

// remoteDialTimeout bounds the outbound TCP connect.
const remoteDialTimeout = 10 * time.Second

// RemoteResolver opens an outbound SSH connection and runs the command
// there. The connection always authenticates with the proxy's own
// identity; the caller's credentials are never involved. The caller picks
// the destination with the routing variable, falling back to the static
// Target. A routing string with an empty user, or a static target without
// one, borrows the inbound login name.
type RemoteResolver struct {
	Target   *relay.HostSpec
	Identity ssh.Signer
	HostKeys ssh.HostKeyCallback
}

func (r *RemoteResolver) Resolve(sess *Session, command string) (relay.Endpoint, error) {
	var spec relay.HostSpec
	if v, ok := sess.Env(HostVariable); ok {
		parsed, err := relay.ParseHostSpec(v)
		if err != nil {
			return nil, fmt.Errorf("bad %s routing value: %w", HostVariable, err)
		}
		spec = parsed
	} else if r.Target != nil {
		spec = *r.Target
	} else {
		return nil, fmt.Errorf("no outbound target: caller set no %s variable and no static target is configured", HostVariable)
	}
	if spec.User == "" {
		spec.User = sess.User()
	}

	sess.server.infof("Connecting to ssh host %s ...", spec)
	client, err := ssh.Dial("tcp", spec.Addr(), &ssh.ClientConfig{
		User:            spec.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(r.Identity)},
		HostKeyCallback: r.HostKeys,
		Timeout:         remoteDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", spec, err)
	}
	sshSess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open session on %s: %w", spec, err)
	}
	ep, err := relay.NewRemoteEndpoint(client, sshSess)
	if err != nil {
		sshSess.Close()
		client.Close()
		return nil, fmt.Errorf("failed to prepare session on %s: %w", spec, err)
	}
	if err := ep.Start(command); err != nil {
		ep.Close()
		return nil, fmt.Errorf("failed to run command on %s: %w", spec, err)
	}
	return ep, nil
}

// DirectResolver mirrors the session onto the proxy's own terminal. The
// command is carried by the session but nothing is spawned; it is only the
// exec payload the far end of the terminal acts on.
type DirectResolver struct {
	// In, Out and ErrOut replace the process's stdio when any is set.
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

func (r *DirectResolver) Resolve(sess *Session, command string) (relay.Endpoint, error) {
	sess.debugf("Direct session for command %q", command)
	if r.In != nil || r.Out != nil || r.ErrOut != nil {
		return relay.NewDirectEndpoint(r.In, r.Out, r.ErrOut), nil
	}
	return relay.NewStdioEndpoint(), nil
}
