package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/openmined/syftbox-client/internal/aclspec"
	"github.com/openmined/syftbox-client/internal/utils"
)

const (
	appsDir            = "apps"
	datasitesDir       = "datasites"
	publicDir          = "public"
	metadataDir        = ".data"
	lockFile           = "syftbox.lock"
	legacyMetadataFile = ".metadata.json"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another process")

// Workspace is the on-disk layout of a SyftBox data directory. All synced
// content lives under DatasitesDir, keyed by owner email.
type Workspace struct {
	Owner         string
	Root          string
	AppsDir       string
	DatasitesDir  string
	MetadataDir   string
	UserDir       string
	UserPublicDir string

	flock *flock.Flock
}

func NewWorkspace(rootDir string, user string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve path %q: %w", rootDir, err)
	}

	lockPath := filepath.Join(root, metadataDir, lockFile)

	return &Workspace{
		Owner:         user,
		Root:          root,
		AppsDir:       filepath.Join(root, appsDir),
		DatasitesDir:  filepath.Join(root, datasitesDir),
		MetadataDir:   filepath.Join(root, metadataDir),
		UserDir:       filepath.Join(root, datasitesDir, user),
		UserPublicDir: filepath.Join(root, datasitesDir, user, publicDir),
		flock:         flock.New(lockPath),
	}, nil
}

// Lock takes an exclusive lock on the workspace so that only one daemon
// operates on it at a time.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("create directory %q: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	// don't remove a lock file some other process holds
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock workspace: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// Setup locks the workspace, creates the directory layout and writes the
// default ACL files for the owner's datasite.
func (w *Workspace) Setup() error {
	if w.isLegacyWorkspace() {
		newPath := w.Root + ".old"
		if err := os.Rename(w.Root, newPath); err != nil {
			return fmt.Errorf("move legacy workspace to %q: %w", newPath, err)
		}
		slog.Warn("legacy workspace detected. moved to " + newPath)
	}

	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "root", w.Root)

	dirs := []string{w.AppsDir, w.MetadataDir, w.UserPublicDir}
	for _, dir := range dirs {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	if err := setFolderIcon(w.Root); err != nil {
		slog.Warn("failed to set folder icon", "error", err)
	}

	if err := w.createDefaultACL(); err != nil {
		return fmt.Errorf("create default acl: %w", err)
	}

	return nil
}

func (w *Workspace) createDefaultACL() error {
	if !aclspec.Exists(w.UserDir) {
		rootRuleset := aclspec.NewRuleSet(
			w.UserDir,
			aclspec.NotTerminal,
			aclspec.NewDefaultRule(aclspec.PrivateAccess(), aclspec.DefaultLimits()),
		)
		if err := rootRuleset.Save(); err != nil {
			return fmt.Errorf("root acl create error: %w", err)
		}
	}

	if !aclspec.Exists(w.UserPublicDir) {
		publicRuleset := aclspec.NewRuleSet(
			w.UserPublicDir,
			aclspec.NotTerminal,
			aclspec.NewDefaultRule(aclspec.PublicReadAccess(), aclspec.DefaultLimits()),
		)
		if err := publicRuleset.Save(); err != nil {
			return fmt.Errorf("public acl create error: %w", err)
		}
	}

	return nil
}

// DatasiteAbsPath maps a sync key onto an absolute path under the
// datasites directory.
func (w *Workspace) DatasiteAbsPath(relPath string) string {
	return filepath.Join(w.DatasitesDir, relPath)
}

// DatasiteRelPath maps an absolute path back to its sync key.
func (w *Workspace) DatasiteRelPath(absPath string) (string, error) {
	relPath, err := filepath.Rel(w.DatasitesDir, absPath)
	if err != nil {
		return "", err
	}
	return NormPath(relPath), nil
}

// PathOwner returns the datasite email that owns the given sync key.
func (w *Workspace) PathOwner(relPath string) string {
	parts := strings.SplitN(NormPath(relPath), "/", 2)
	if len(parts) == 0 || parts[0] == "" || parts[0] == "." {
		return ""
	}
	return parts[0]
}

// IsOwner reports whether the workspace owner owns the given sync key.
func (w *Workspace) IsOwner(relPath string) bool {
	return w.PathOwner(relPath) == w.Owner
}

func (w *Workspace) IsValidPath(relPath string) bool {
	return IsValidPath(relPath)
}

func (w *Workspace) isLegacyWorkspace() bool {
	// pre-datasites layouts kept a .metadata.json at the root
	return utils.FileExists(filepath.Join(w.Root, legacyMetadataFile))
}
