package aclspec

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// ACLFileName is the well-known name of access control files.
	ACLFileName = "syft.pub.yaml"

	// Everyone is the wildcard principal.
	Everyone = "*"

	// AllFiles is the catch-all rule pattern.
	AllFiles = "**"

	Terminal    = true
	NotTerminal = false
)

// IsACLFile reports whether path refers to an ACL file.
func IsACLFile(path string) bool {
	return strings.HasSuffix(path, ACLFileName)
}

// AsACLPath returns the ACL file path for a directory, or the path itself
// if it already names an ACL file.
func AsACLPath(path string) string {
	if IsACLFile(path) {
		return path
	}
	return filepath.Join(path, ACLFileName)
}

// WithoutACLPath strips the ACL file name from the path.
func WithoutACLPath(path string) string {
	return strings.TrimSuffix(path, ACLFileName)
}

// Exists reports whether a non-empty ACL file exists at path.
// Symlinked ACL files are rejected.
func Exists(path string) bool {
	stat, err := os.Lstat(AsACLPath(path))
	if err != nil {
		return false
	}
	if stat.Mode()&os.ModeSymlink != 0 {
		return false
	}
	return stat.Size() > 0
}
