//go:build windows

package sync

import (
	"errors"
	"net"
	"os"
	"path/filepath"
)

var errHotlinkPipeUnsupported = errors.New("hotlink: named pipe ipc not implemented; set SYFTBOX_HOTLINK_IPC=tcp")

func ensureHotlinkIPCPlatform(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return errHotlinkPipeUnsupported
}

func listenHotlinkIPCPlatform(path string) (net.Listener, error) {
	return nil, errHotlinkPipeUnsupported
}
