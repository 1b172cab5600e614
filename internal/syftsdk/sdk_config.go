package syftsdk

import (
	"net/url"
	"os"
	"strconv"

	"github.com/openmined/syftbox-client/internal/utils"
)

const (
	DefaultBaseURL = "https://syftbox.net"
)

// SyftSDKConfig is the configuration for the SyftSDK
type SyftSDKConfig struct {
	BaseURL      string // BaseURL is required
	Email        string // Email is required
	RefreshToken string // RefreshToken is required for authenticated calls
	AccessToken  string // AccessToken is optional
}

func (c *SyftSDKConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}

	if err := utils.ValidateEmail(c.Email); err != nil {
		return ErrInvalidEmail
	}

	return nil
}

// isDevURL reports whether the server URL points at a local dev server.
func isDevURL(serverURL string) bool {
	u, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return true
	}
	return false
}

// isAuthDisabled reports whether auth should be skipped. SYFTBOX_AUTH_ENABLED
// wins when set; otherwise local dev servers run without auth.
func isAuthDisabled(serverURL string) bool {
	if v := os.Getenv("SYFTBOX_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err == nil {
			return !enabled
		}
	}
	return isDevURL(serverURL)
}
