package relay

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the standard SSH port, applied when a routing string
// carries no explicit port.
const DefaultPort = 22

// ErrHostSpec is wrapped by all ParseHostSpec failures.
var ErrHostSpec = errors.New("invalid host spec")

// HostSpec is a parsed outbound routing address. Immutable once parsed.
type HostSpec struct {
	User string
	Host string
	Port int
}

// ParseHostSpec parses a routing string of the form "user@host[:port]".
// The port defaults to 22 when omitted.
func ParseHostSpec(s string) (HostSpec, error) {
	user, rest, found := strings.Cut(s, "@")
	if !found {
		return HostSpec{}, fmt.Errorf("%w %q: missing '@' separator", ErrHostSpec, s)
	}
	host, portStr, hasPort := strings.Cut(rest, ":")
	if host == "" {
		return HostSpec{}, fmt.Errorf("%w %q: empty host", ErrHostSpec, s)
	}
	port := DefaultPort
	if hasPort {
		n, err := strconv.Atoi(portStr)
		if err != nil || n < 0 {
			return HostSpec{}, fmt.Errorf("%w %q: bad port %q", ErrHostSpec, s, portStr)
		}
		port = n
	}
	return HostSpec{User: user, Host: host, Port: port}, nil
}

// Addr returns the dialable "host:port" form.
func (h HostSpec) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

func (h HostSpec) String() string {
	return h.User + "@" + h.Addr()
}
