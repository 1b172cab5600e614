package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/syftbox-client/internal/syftmsg"
	"github.com/openmined/syftbox-client/internal/syftsdk"
	"github.com/openmined/syftbox-client/internal/utils"
)

// handlePriorityDownload processes a file write message received with high priority.
func (se *SyncEngine) handlePriorityDownload(msg *syftmsg.Message) {
	// unwrap the message
	createMsg, ok := msg.Data.(syftmsg.FileWrite)
	if !ok {
		slog.Error("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "error", "invalid message data", "data", msg.Data)
		return
	}

	syncRelPath := SyncPath(createMsg.Path)

	// ACL files belonging to a staged manifest are held back and applied
	// in manifest order once the set is complete
	if isACLFilePath(createMsg.Path) {
		datasite := pathDatasite(createMsg.Path)
		if datasite != "" && se.aclStaging.HasPendingManifest(datasite) {
			if se.aclStaging.StageACL(datasite, createMsg.Path, createMsg.Content, createMsg.ETag) {
				slog.Info("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "path", createMsg.Path, "staged", true)
				return
			}
		}
		se.aclStaging.NoteACLActivity(datasite)
	}

	// set sync status
	se.syncStatus.SetSyncing(syncRelPath)
	slog.Info("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "path", createMsg.Path, "size", createMsg.Length, "etag", createMsg.ETag)

	// prep local path
	localAbsPath := se.workspace.DatasiteAbsPath(createMsg.Path)

	// a priority file was just downloaded, we don't wanna fire an event for THIS write
	se.watcher.IgnoreOnce(localAbsPath)

	// a write without inline content means the file was too big for the
	// socket; fetch it through the blob API instead
	if createMsg.IsNotify() {
		if err := se.fetchRemoteFile(syncRelPath, createMsg.ETag, createMsg.Length); err != nil {
			se.syncStatus.SetError(syncRelPath, err)
			slog.Error("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "path", createMsg.Path, "error", err)
			return
		}
		se.syncStatus.SetCompleted(syncRelPath)
		return
	}

	if createMsg.Length == 0 {
		if err := writeEmptyFile(localAbsPath); err != nil {
			se.syncStatus.SetError(syncRelPath, err)
			slog.Error("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "error", err)
			return
		}
	} else {
		// temporary directory for the file
		tmpDir := filepath.Join(se.workspace.Root, ".syft-tmp")

		// write the file to the temporary directory and
		// then move it to the local path
		if err := writeFileWithIntegrityCheck(tmpDir, localAbsPath, createMsg.Content, createMsg.ETag); err != nil {
			se.syncStatus.SetError(syncRelPath, err)
			slog.Error("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "error", err)
			return
		}
	}

	// journal the inbound write so the next tick doesn't re-download it
	if healJournalGapsEnabled() {
		se.journal.Set(&FileMetadata{
			Path:         syncRelPath,
			ETag:         createMsg.ETag,
			Size:         createMsg.Length,
			LastModified: time.Now(),
			Version:      "",
		})
	}

	// mark as completed
	se.syncStatus.SetCompleted(syncRelPath)
}

// fetchRemoteFile downloads a single file through the blob API and moves it
// into the datasites tree.
func (se *SyncEngine) fetchRemoteFile(relPath SyncPath, etag string, size int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	resp, err := se.sdk.Blob.Download(ctx, &syftsdk.PresignedParams{
		Keys: []string{relPath},
	})
	if err != nil {
		return fmt.Errorf("presign %s: %w", relPath, err)
	}
	if len(resp.URLs) == 0 {
		if len(resp.Errors) > 0 {
			return fmt.Errorf("presign %s: %w", relPath, resp.Errors[0])
		}
		return fmt.Errorf("presign %s: no url", relPath)
	}

	tempDir, err := os.MkdirTemp("", "syftbox-blobs-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	dlPath, err := syftsdk.DownloadFile(ctx, &syftsdk.DownloadJob{
		URL:       resp.URLs[0].URL,
		TargetDir: tempDir,
		Name:      filepath.Base(relPath),
	})
	if err != nil {
		return err
	}

	targetPath := se.workspace.DatasiteAbsPath(relPath)
	se.watcher.IgnoreOnce(targetPath)
	if err := copyLocal(dlPath, targetPath); err != nil {
		return err
	}

	if healJournalGapsEnabled() {
		se.journal.Set(&FileMetadata{
			Path:         relPath,
			ETag:         etag,
			Size:         size,
			LastModified: time.Now(),
		})
	}
	return nil
}

// writeEmptyFile truncates (or creates) the file at path.
func writeEmptyFile(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}
