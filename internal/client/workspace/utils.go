package workspace

import (
	"path/filepath"
	"regexp"
	"strings"
)

// regexDatasitePath matches sync keys that start with an email followed
// by a slash, e.g. "user@example.com/public/data.csv".
var regexDatasitePath = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+/`)

// IsValidPath reports whether the sync key names a file inside a datasite.
func IsValidPath(path string) bool {
	return regexDatasitePath.MatchString(path)
}

// NormPath cleans a path, converts backslashes to slashes and trims any
// leading slash. Sync keys are always in this form.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.TrimLeft(path, "/")
}
