//go:build windows

package proxy

import (
	"errors"
	"os/exec"
)

func init() {
	startPTY = func(cmd *exec.Cmd) (PTY, error) {
		return nil, errors.New("interactive shells are not supported on windows")
	}
}

// SetWinsize is a no-op on windows.
func SetWinsize(t FdHolder, w, h uint32) {}
