package sync

import (
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// RPC traffic and ACL files jump the normal sync queue. ACL changes must
// land before the data they govern.
var defaultPriorityFiles = []string{
	"**/*.request",
	"**/*.response",
	"**/syft.pub.yaml",
}

// SyncPriorityList decides which paths take the priority lane, using
// gitignore-style patterns matched relative to the datasites dir.
type SyncPriorityList struct {
	baseDir  string
	priority *gitignore.GitIgnore
}

func NewSyncPriorityList(baseDir string) *SyncPriorityList {
	priority := gitignore.CompileIgnoreLines(defaultPriorityFiles...)
	return &SyncPriorityList{baseDir: baseDir, priority: priority}
}

func (s *SyncPriorityList) ShouldPrioritize(path string) bool {
	relPath, err := filepath.Rel(s.baseDir, path)
	if err != nil {
		// outside baseDir
		return false
	}
	if relPath == "." || strings.HasPrefix(relPath, "..") {
		relPath = normalizeRelPath(s.baseDir, path)
		if relPath == "" {
			return false
		}
	}
	return s.priority.MatchesPath(relPath)
}

func normalizeRelPath(baseDir, target string) string {
	base := resolvePath(baseDir)
	path := resolvePath(target)
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return ""
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return rel
}

func resolvePath(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		if resolved, err := filepath.Abs(abs); err == nil {
			abs = resolved
		}
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
