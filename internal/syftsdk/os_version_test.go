package syftsdk

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostPlatform(t *testing.T) {
	platform := hostPlatform()
	assert.NotEmpty(t, platform)
	assert.Equal(t, strings.ToLower(platform), platform, "platform token should be lowercase")
	assert.NotContains(t, platform, " ", "platform token should not contain spaces")
}

func TestSyftBoxUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(SyftBoxUserAgent, "SyftBox/"))
	assert.Contains(t, SyftBoxUserAgent, runtime.GOARCH)

	// format: SyftBox/version (revision; platform; arch)
	assert.Contains(t, SyftBoxUserAgent, "(")
	assert.True(t, strings.HasSuffix(SyftBoxUserAgent, ")"))
}
