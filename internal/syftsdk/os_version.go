package syftsdk

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// hostPlatform returns an "OS/version" token for the User-Agent, e.g.
// "darwin/14.5" or "ubuntu/24.04". Falls back to the bare GOOS when host
// detection fails.
func hostPlatform() string {
	info, err := host.Info()
	if err != nil || info.Platform == "" {
		return runtime.GOOS
	}

	platform := strings.ToLower(strings.ReplaceAll(info.Platform, " ", "-"))
	if info.PlatformVersion == "" {
		return platform
	}
	return fmt.Sprintf("%s/%s", platform, info.PlatformVersion)
}
