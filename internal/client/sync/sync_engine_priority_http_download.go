package sync

import (
	"crypto/md5"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/openmined/syftbox-client/internal/syftmsg"
)

// processHttpMessage materializes an RPC message routed through the server
// as a `<id>.request` or `<id>.response` file under the URL's rpc directory.
func (se *SyncEngine) processHttpMessage(msg *syftmsg.Message) {
	httpMsg, ok := msg.Data.(syftmsg.HttpMsg)
	if !ok {
		slog.Error("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "error", "invalid message data", "data", msg.Data)
		return
	}

	var fileExt string
	switch httpMsg.Type {
	case syftmsg.HttpMsgTypeRequest:
		fileExt = ".request"
	case syftmsg.HttpMsgTypeResponse:
		fileExt = ".response"
	default:
		slog.Debug("sync http unhandled type", "type", httpMsg.Type)
		return
	}

	// rpc message file name
	fileName := httpMsg.Id + fileExt
	relPath := filepath.Join(httpMsg.SyftURL.ToLocalPath(), fileName)
	syncRelPath := SyncPath(relPath)

	etag := fmt.Sprintf("%x", md5.Sum(httpMsg.Body))

	se.syncStatus.SetSyncing(syncRelPath)
	slog.Info("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "path", relPath, "size", len(httpMsg.Body), "etag", etag)

	// rpc message file path
	rpcLocalAbsPath := se.workspace.DatasiteAbsPath(relPath)

	// a priority file was just downloaded, we don't wanna fire an event for THIS write
	se.watcher.IgnoreOnce(rpcLocalAbsPath)

	tmpDir := filepath.Join(se.workspace.Root, ".syft-tmp")
	if err := writeFileWithIntegrityCheck(tmpDir, rpcLocalAbsPath, httpMsg.Body, etag); err != nil {
		se.syncStatus.SetError(syncRelPath, err)
		slog.Error("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "path", relPath, "etag", etag, "error", err)
		return
	}

	fileSize := int64(len(httpMsg.Body))

	// update the journal
	if healJournalGapsEnabled() {
		se.journal.Set(&FileMetadata{
			Path:         syncRelPath,
			ETag:         etag,
			Size:         fileSize,
			LastModified: time.Now(),
			Version:      "",
		})
	}

	se.syncStatus.SetCompleted(syncRelPath)

	slog.Info("sync", "type", SyncPriority, "op", OpWriteLocal, "msgType", msg.Type, "msgId", msg.Id, "path", relPath, "size", fileSize, "etag", etag)
}
