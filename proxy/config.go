package proxy

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/jpillora/ssh-relay/relay"
	"gopkg.in/yaml.v3"
)

// Session modes. The mode selects how a session's target endpoint is
// resolved; everything else about a session is identical across modes.
const (
	// ModeExec spawns the caller's command as a local child process.
	ModeExec = "exec"
	// ModeRelay opens an outbound SSH connection with the proxy's own
	// identity and runs the command there.
	ModeRelay = "relay"
	// ModeDirect mirrors the session onto the proxy's own terminal
	// streams without spawning anything.
	ModeDirect = "direct"
)

// HostVariable is the reserved session variable a caller sets (via an "env"
// request, before exec) to choose the outbound target in relay mode.
const HostVariable = "__HOST__"

// Config is the configuration for the proxy server
type Config struct {
	Host           string `opts:"help=listening interface (defaults to all)" yaml:"host"`
	Port           string `opts:"short=p,help=listening port (defaults to 2222)" yaml:"port"`
	Mode           string `opts:"mode=arg,help=session mode (exec / relay / direct)" yaml:"mode"`
	Target         string `opts:"help=static outbound target ([user@]host[:port]) for relay mode" yaml:"target"`
	Shell          string `opts:"help=shell used to run commands in exec mode,env=SHELL" yaml:"shell"`
	WorkDir        string `opts:"name=workdir,help=working directory for spawned commands" yaml:"workdir"`
	KeyFile        string `opts:"name=keyfile,help=a filepath to the host private key" yaml:"keyfile"`
	KeySeed        string `opts:"name=keyseed,env,help=a string to use to seed key generation" yaml:"keyseed"`
	KeySeedEC      bool   `opts:"name=keyseed-ec,env,help=use elliptic curve for key generation" yaml:"keyseed-ec"`
	IdentityFile   string `opts:"name=identity,help=private key for outbound logins (defaults to the host key)" yaml:"identity"`
	KnownHosts     string `opts:"name=known-hosts,help=host key verification file for outbound connections (accept any host key when unset)" yaml:"known-hosts"`
	CommandTimeout int    `opts:"name=command-timeout,help=seconds to wait for the caller's command (defaults to 10)" yaml:"command-timeout"`
	KeepAlive      int    `opts:"name=keepalive,help=session keep alive interval seconds (0 to disable)" yaml:"keepalive"`
	SFTP           bool   `opts:"short=s,help=enable the SFTP subsystem in exec mode (disabled by default)" yaml:"sftp"`
	IgnoreEnv      bool   `opts:"name=noenv,help=ignore non-routing environment variables from the caller" yaml:"noenv"`
	Stdio          bool   `opts:"help=serve a single session over stdin/stdout instead of listening" yaml:"stdio"`
	ConfigFile     string `opts:"name=config,help=path to a YAML config file" yaml:"-"`
	LogVerbose     bool   `opts:"name=verbose,short=v,help=verbose logs" yaml:"verbose"`
	LogQuiet       bool   `opts:"name=quiet,short=q,help=no logs" yaml:"quiet"`
	// programmatic options
	KeyBytes      []byte       `opts:"-" yaml:"-"`
	IdentityBytes []byte       `opts:"-" yaml:"-"`
	Logger        *slog.Logger `opts:"-" yaml:"-"`
}

// LoadFile merges the YAML file at path into c. Values present in the file
// override values already set; absent keys leave c untouched.
func LoadFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// parseTarget parses the static relay target. Unlike a caller routing
// string it may omit the username, which then comes from the inbound login.
func parseTarget(s string) (relay.HostSpec, error) {
	if !strings.Contains(s, "@") {
		s = "@" + s
	}
	return relay.ParseHostSpec(s)
}

// ShellPath returns the full path to a shell executable.
// If shell is empty, defaults to "powershell" on Windows and "bash" otherwise.
// Returns an error if the shell cannot be found.
func ShellPath(shell string) (string, error) {
	if shell == "" {
		if runtime.GOOS == "windows" {
			shell = "powershell"
		} else {
			shell = "bash"
		}
	}
	path, err := exec.LookPath(shell)
	if err != nil {
		return "", fmt.Errorf("failed to find shell: %s", shell)
	}
	return path, nil
}
