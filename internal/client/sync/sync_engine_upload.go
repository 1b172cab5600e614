package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftbox-client/internal/syftsdk"
)

const (
	maxUploadConcurrency = 4

	partSizeEnv            = "SBDEV_PART_SIZE"
	partUploadTimeoutEnv   = "SBDEV_PART_UPLOAD_TIMEOUT"
	partUploadTimeoutMsEnv = "SYFTBOX_PART_UPLOAD_TIMEOUT_MS"
)

// upload
func (se *SyncEngine) handleRemoteWrites(ctx context.Context, batch BatchRemoteWrite) {
	if len(batch) == 0 {
		return
	}

	for _, op := range batch {
		se.syncStatus.SetSyncing(op.RelPath)
	}

	partSize := parsePartSizeEnv()
	partUploadTimeout := parsePartUploadTimeoutEnv()

	processUpload := func(ctx context.Context, op *SyncOperation) {
		defer se.syncStatus.SetCompleted(op.RelPath)

		if skip, reason := shouldSkipUpload(op, se.workspace.Owner); skip {
			slog.Debug("sync", "type", SyncStandard, "op", OpSkipped, "reason", reason, "path", op.RelPath)
			return
		}

		if changed, err := se.journal.ContentsChanged(op.RelPath, op.Local.ETag); err != nil {
			slog.Warn("journal check", "error", err)
		} else if !changed {
			slog.Debug("sync", "type", SyncStandard, "op", OpSkipped, "reason", "contents unchanged", "path", op.RelPath)
			return
		}

		localAbsPath := se.workspace.DatasiteAbsPath(op.RelPath)

		info, upCtx, cancel, alreadyActive := se.uploadRegistry.TryRegister(op.RelPath, localAbsPath, op.Local.Size)
		if alreadyActive {
			slog.Debug("sync", "type", SyncStandard, "op", OpSkipped, "reason", "upload already in flight", "path", op.RelPath)
			return
		}
		defer cancel()

		res, err := se.sdk.Blob.Upload(upCtx, &syftsdk.UploadParams{
			Key:               op.RelPath,
			FilePath:          localAbsPath,
			ResumeDir:         se.uploadRegistry.resumeDir,
			Fingerprint:       fileFingerprint(localAbsPath),
			PartSize:          partSize,
			PartUploadTimeout: partUploadTimeout,
			CheckPaused: func() bool {
				return se.uploadRegistry.IsPaused(info.ID)
			},
			AdvancedCallback: func(p syftsdk.UploadProgress) {
				se.uploadRegistry.UpdateProgress(info.ID, p.UploadedBytes, p.CompletedParts, p.PartSize, p.PartCount)
				if p.TotalBytes > 0 {
					se.syncStatus.SetProgress(op.RelPath, float64(p.UploadedBytes)/float64(p.TotalBytes)*100.0)
				}
			},
		})
		if err != nil {
			se.uploadRegistry.SetError(info.ID, err)
			se.syncStatus.SetError(op.RelPath, err)
			slog.Error("sync", "type", SyncStandard, "op", OpWriteRemote, "path", op.RelPath, "error", err)
			return
		}
		se.uploadRegistry.SetCompleted(info.ID)

		lastModified, err := time.Parse(time.RFC3339, res.LastModified)
		if err != nil {
			lastModified = time.Now()
		}
		slog.Info("sync", "type", SyncStandard, "op", OpWriteRemote, "path", op.RelPath, "size", humanize.Bytes(uint64(res.Size)))
		se.journal.Set(&FileMetadata{
			Path:         op.RelPath,
			ETag:         res.ETag,
			Size:         res.Size,
			LastModified: lastModified,
		})
	}

	var wg sync.WaitGroup
	opsChan := make(chan *SyncOperation, len(batch))

	// Start worker goroutines
	wg.Add(maxUploadConcurrency)
	for range maxUploadConcurrency {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return // Context cancelled
				case op, ok := <-opsChan:
					if !ok {
						return // Channel closed
					}
					processUpload(ctx, op)
				}
			}
		}()
	}

	// Send operations to the channel
	for _, op := range batch {
		opsChan <- op
	}
	close(opsChan) // Close channel to signal no more operations

	// Wait for all worker goroutines to finish processing
	wg.Wait()
}

// shouldSkipUpload reports whether the upload can be skipped outright,
// with a loggable reason.
func shouldSkipUpload(op *SyncOperation, owner string) (bool, string) {
	if op.Local == nil {
		return true, "no local metadata"
	}
	if op.Remote != nil && normalizeETag(op.Remote.ETag) == normalizeETag(op.Local.ETag) {
		return true, "remote etag matches local"
	}
	if op.Remote != nil && !isOwnerSyncPath(owner, op.RelPath) &&
		op.Remote.Size == op.Local.Size &&
		isMultipartETag(normalizeETag(op.Remote.ETag)) != isMultipartETag(normalizeETag(op.Local.ETag)) {
		// multipart etags never equal a plain md5; for files we don't own,
		// matching sizes are good enough
		return true, "multipart etag, size unchanged"
	}
	return false, ""
}

// isOwnerSyncPath reports whether the sync key belongs to the owner's
// datasite.
func isOwnerSyncPath(owner string, relPath SyncPath) bool {
	return owner != "" && strings.HasPrefix(relPath, owner+"/")
}

// fileFingerprint derives the session fingerprint used to invalidate a
// stale multipart checkpoint when the file changed under it.
func fileFingerprint(absPath string) string {
	info, err := os.Stat(absPath)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
}

// parsePartSizeEnv reads the multipart part size override. Accepts plain
// bytes or a B/KB/MB/GB suffix. Returns 0 when unset or invalid.
func parsePartSizeEnv() int64 {
	raw := strings.TrimSpace(os.Getenv(partSizeEnv))
	if raw == "" {
		return 0
	}

	upper := strings.ToUpper(raw)
	mult := int64(1)
	switch {
	case strings.HasSuffix(upper, "GB"):
		mult = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	case strings.HasSuffix(upper, "MB"):
		mult = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "KB"):
		mult = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "B"):
		upper = strings.TrimSuffix(upper, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n * mult
}

// parsePartUploadTimeoutEnv reads the per-part upload timeout. The duration
// form (SBDEV_PART_UPLOAD_TIMEOUT="750ms") wins over the millisecond form
// (SYFTBOX_PART_UPLOAD_TIMEOUT_MS=750). Returns 0 when unset or invalid.
func parsePartUploadTimeoutEnv() time.Duration {
	if raw := strings.TrimSpace(os.Getenv(partUploadTimeoutEnv)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return 0
		}
		return d
	}
	if raw := strings.TrimSpace(os.Getenv(partUploadTimeoutMsEnv)); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			return 0
		}
		return time.Duration(ms) * time.Millisecond
	}
	return 0
}
