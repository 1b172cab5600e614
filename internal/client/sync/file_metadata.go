package sync

import (
	"time"
)

// SyncPath is a datasite-relative path, e.g. "alice@example.com/public/a.txt".
type SyncPath = string

type FileMetadata struct {
	Path         SyncPath  `json:"path"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	Version      string    `json:"version"`
	LastModified time.Time `json:"lastModified"`
}
