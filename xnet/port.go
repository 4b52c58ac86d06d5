// Package xnet provides small networking helpers used by the proxy and its
// tests: random-port listeners, an in-memory listener/dialer pair, and a
// net.Conn over process stdio.
package xnet

import (
	"fmt"
	"net"
)

// GetRandomListener creates a listener on a random loopback port and
// returns it along with its address.
func GetRandomListener() (net.Listener, string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	addr := listener.Addr().(*net.TCPAddr)
	return listener, addr.String(), nil
}

// FindFreePort returns an available TCP port.
// It works by binding to port 0, which causes the OS to assign an available port.
func FindFreePort() (int, error) {
	listener, addr, err := GetRandomListener()
	if err != nil {
		return 0, fmt.Errorf("failed to find free port: %w", err)
	}
	listener.Close()

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return 0, err
	}
	return tcpAddr.Port, nil
}
