package sync

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/openmined/syftbox-client/internal/utils"
)

const journalVersion = 1

// journalSnapshot is the on-disk shape of the journal file.
type journalSnapshot struct {
	Version int                      `json:"version"`
	Entries map[string]*FileMetadata `json:"entries"`
}

// SyncJournal persists the last-synced state of every file as a JSON
// snapshot. All mutations are checkpointed atomically by writing to a
// temp file and renaming it over the journal.
type SyncJournal struct {
	mu      sync.RWMutex
	path    string
	entries map[string]*FileMetadata
	open    bool
}

// NewSyncJournal creates a SyncJournal backed by a JSON file at path.
func NewSyncJournal(path string) (*SyncJournal, error) {
	return &SyncJournal{
		path: path,
	}, nil
}

// Open loads the journal snapshot from disk, starting empty if none exists.
func (s *SyncJournal) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return fmt.Errorf("sync journal already open")
	}

	if err := utils.EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read journal %s: %w", s.path, err)
		}
		s.entries = make(map[string]*FileMetadata)
		s.open = true
		return nil
	}

	var snap journalSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// a corrupt journal means a full resync, not a dead client
		slog.Error("sync journal corrupt, starting fresh", "path", s.path, "error", err)
		s.entries = make(map[string]*FileMetadata)
		s.open = true
		return nil
	}

	if snap.Entries == nil {
		snap.Entries = make(map[string]*FileMetadata)
	}
	s.entries = snap.Entries
	s.open = true
	return nil
}

// Close checkpoints the journal and releases it.
func (s *SyncJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return fmt.Errorf("sync journal not open")
	}
	if err := s.checkpointLocked(); err != nil {
		slog.Error("failed to checkpoint sync journal", "error", err)
		return err
	}
	s.open = false
	slog.Debug("sync journal closed")
	return nil
}

// Get retrieves the metadata for a specific path, nil if unknown.
func (s *SyncJournal) Get(path SyncPath) (*FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.entries[path]
	if !ok {
		return nil, nil
	}
	cp := *meta
	return &cp, nil
}

// ContentsChanged reports whether the etag differs from the journaled one.
// Unknown paths count as changed.
func (s *SyncJournal) ContentsChanged(path SyncPath, etag string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.entries[path]
	if !ok {
		return true, nil
	}
	return meta.ETag != etag, nil
}

// Set inserts or updates the metadata for a path and checkpoints the journal.
func (s *SyncJournal) Set(state *FileMetadata) error {
	if state == nil {
		return fmt.Errorf("cannot set nil state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *state
	s.entries[state.Path] = &cp
	if err := s.checkpointLocked(); err != nil {
		return fmt.Errorf("failed to set state for path %s: %w", state.Path, err)
	}
	slog.Debug("sync journal set", "path", state.Path, "etag", state.ETag)
	return nil
}

// GetPaths retrieves all paths known to the journal.
func (s *SyncJournal) GetPaths() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.entries))
	for path := range s.entries {
		paths = append(paths, path)
	}
	return paths, nil
}

// GetState retrieves the entire state map from the journal.
func (s *SyncJournal) GetState() (map[string]*FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := make(map[string]*FileMetadata, len(s.entries))
	maps.Copy(state, s.entries)
	return state, nil
}

// Count returns the number of entries in the journal.
func (s *SyncJournal) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}

// Delete removes an entry from the journal by its path.
func (s *SyncJournal) Delete(path SyncPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[path]; !ok {
		return nil
	}
	delete(s.entries, path)
	if err := s.checkpointLocked(); err != nil {
		return fmt.Errorf("failed to delete path %s: %w", path, err)
	}
	return nil
}

// Destroy closes the journal and moves the snapshot aside as a timestamped backup.
func (s *SyncJournal) Destroy() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}

	timestamp := time.Now().Format("20060102150405")
	if err := os.Rename(s.path, fmt.Sprintf("%s.%s.bak", s.path, timestamp)); err != nil {
		return fmt.Errorf("failed to rename journal file: %w", err)
	}
	return nil
}

// checkpointLocked writes the snapshot to a temp file and renames it into
// place so a crash mid-write never leaves a truncated journal.
func (s *SyncJournal) checkpointLocked() error {
	snap := &journalSnapshot{
		Version: journalVersion,
		Entries: s.entries,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp-%s", s.path, uuid.NewString())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write journal temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace journal: %w", err)
	}
	return nil
}
