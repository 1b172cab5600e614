package sync

// SyncType distinguishes the periodic reconcile loop from the
// watcher-driven fast path in logs.
type SyncType string

const (
	SyncStandard SyncType = "standard"
	SyncPriority SyncType = "priority"
)

type OpType string

const (
	OpWriteRemote  OpType = "WriteRemote"
	OpWriteLocal   OpType = "WriteLocal"
	OpDeleteRemote OpType = "DeleteRemote"
	OpDeleteLocal  OpType = "DeleteLocal"
	OpConflict     OpType = "Conflict"
	OpError        OpType = "Error"
	OpSkipped      OpType = "Skipped"
)

type SyncOperation struct {
	Type       OpType
	RelPath    SyncPath
	Local      *FileMetadata
	Remote     *FileMetadata
	LastSynced *FileMetadata
}
