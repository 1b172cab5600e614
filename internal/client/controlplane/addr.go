package controlplane

import (
	"fmt"
	"net"
	"strings"
)

// addrToURL converts a bind address like "localhost:7938" or ":7938" into
// an http base URL. Bare hosts, bare ports and full URLs are rejected.
func addrToURL(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("empty address")
	}
	if strings.Contains(addr, "://") {
		return "", fmt.Errorf("address %q must not contain a scheme", addr)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if port == "" {
		return "", fmt.Errorf("invalid address %q: missing port", addr)
	}
	if host == "" {
		host = "0.0.0.0"
	}

	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port)), nil
}
