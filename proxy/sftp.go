package proxy

import (
	"io"
	"os"

	"github.com/pkg/sftp"
)

// startSFTP serves the SFTP subsystem over the channel. Only offered in
// exec mode: the other modes own no local filesystem a caller should see.
func (cs *channelSession) startSFTP() {
	defer cs.ch.Close()
	s := cs.sess.server
	opts := []sftp.ServerOption{}
	if wd := s.config.WorkDir; wd != "" {
		opts = append(opts, sftp.WithServerWorkingDirectory(wd))
	} else if d, err := os.UserHomeDir(); err == nil {
		opts = append(opts, sftp.WithServerWorkingDirectory(d))
	}
	if s.config.LogVerbose {
		opts = append(opts, sftp.WithDebug(os.Stderr))
	}
	sftpServer, err := sftp.NewServer(cs.ch, opts...)
	if err != nil {
		s.debugf("Failed to create SFTP server: %v", err)
		return
	}
	if err := sftpServer.Serve(); err != nil && err != io.EOF {
		s.debugf("SFTP request error: %s", err)
	} else {
		s.debugf("SFTP request served")
	}
}
