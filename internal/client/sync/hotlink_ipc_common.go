package sync

import (
	"net"
	"os"
	"runtime"
	"strings"
)

const (
	hotlinkIPCModeEnv    = "SYFTBOX_HOTLINK_IPC"
	hotlinkIPCTCPAddrEnv = "SYFTBOX_HOTLINK_TCP_ADDR"
	hotlinkIPCModeTCP    = "tcp"
)

func hotlinkIPCMode() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv(hotlinkIPCModeEnv)))
}

func hotlinkIPCMarkerName() string {
	if hotlinkIPCMode() == hotlinkIPCModeTCP {
		return "stream.tcp"
	}
	if runtime.GOOS == "windows" {
		return "stream.pipe"
	}
	return "stream.sock"
}

func hotlinkIPCTCPAddr() string {
	return strings.TrimSpace(os.Getenv(hotlinkIPCTCPAddrEnv))
}

// ensureHotlinkIPC writes the discovery marker for the given rpc directory
// and prepares the transport behind it.
func ensureHotlinkIPC(path string) error {
	if hotlinkIPCMode() == hotlinkIPCModeTCP {
		return ensureHotlinkIPCTCP(path)
	}
	return ensureHotlinkIPCPlatform(path)
}

// listenHotlinkIPC opens the local listener the marker at path points at.
func listenHotlinkIPC(path string) (net.Listener, error) {
	if hotlinkIPCMode() == hotlinkIPCModeTCP {
		return listenHotlinkIPCTCP(path)
	}
	return listenHotlinkIPCPlatform(path)
}
