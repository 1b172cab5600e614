package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSyncJournal_ContentsChanged_ETagOnly(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.json")
	j, err := NewSyncJournal(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Open(); err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	path := SyncPath("alice@example.com/public/a.txt")
	meta := &FileMetadata{
		Path:         path,
		ETag:         "etag1",
		Version:      "v1",
		Size:         10,
		LastModified: time.Now().Add(-time.Hour),
	}
	if err := j.Set(meta); err != nil {
		t.Fatal(err)
	}

	changed, err := j.ContentsChanged(path, "etag1")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("expected ContentsChanged=false when etag identical")
	}

	changed, err = j.ContentsChanged(path, "etag2")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected ContentsChanged=true when etag differs")
	}
}

func TestSyncJournal_SurvivesReopen(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.json")
	j, err := NewSyncJournal(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Open(); err != nil {
		t.Fatal(err)
	}

	meta := &FileMetadata{
		Path:         "alice@example.com/public/a.txt",
		ETag:         "etag1",
		Version:      "v1",
		Size:         10,
		LastModified: time.Now().Truncate(time.Second),
	}
	if err := j.Set(meta); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j2, err := NewSyncJournal(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := j2.Open(); err != nil {
		t.Fatal(err)
	}
	defer j2.Close()

	got, err := j2.Get(meta.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected entry to survive reopen")
	}
	if got.ETag != meta.ETag || got.Size != meta.Size {
		t.Fatalf("reloaded entry mismatch: %+v", got)
	}

	count, err := j2.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry, got %d", count)
	}
}

func TestSyncJournal_CorruptFileStartsFresh(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.json")
	if err := os.WriteFile(journalPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	j, err := NewSyncJournal(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Open(); err != nil {
		t.Fatalf("corrupt journal should not fail open: %v", err)
	}
	defer j.Close()

	count, err := j.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected empty journal, got %d entries", count)
	}
}
