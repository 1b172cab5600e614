package sync

import (
	"log/slog"

	"github.com/openmined/syftbox-client/internal/syftmsg"
)

func (se *SyncEngine) handlePriorityError(msg *syftmsg.Message) {
	// unwrap the message
	errMsg, ok := msg.Data.(syftmsg.Error)
	if !ok {
		slog.Error("sync priority", "op", OpError, "msgId", msg.Id, "error", "invalid message data", "data", msg.Data)
		return
	}

	// set sync status
	se.syncStatus.SetSyncing(errMsg.Path)
	defer se.syncStatus.SetCompleted(errMsg.Path)
	slog.Info("sync priority", "op", OpError, "msgType", msg.Type, "msgId", msg.Id, "code", errMsg.Code, "path", errMsg.Path, "message", errMsg.Message)

	// handle the error
	switch errMsg.Code {
	case 403:
		// mark the file as rejected
		localPath := se.workspace.DatasiteAbsPath(errMsg.Path)
		if err := markRejected(localPath); err != nil {
			slog.Warn("sync priority", "op", OpError, "msgType", msg.Type, "msgId", msg.Id, "code", errMsg.Code, "path", errMsg.Path, "error", err)
		}
	default:
		slog.Debug("sync priority", "op", OpError, "msgType", msg.Type, "msgId", msg.Id, "code", errMsg.Code)
	}
}
