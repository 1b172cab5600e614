package sync

// Per-category operation batches produced by reconciliation. Writes and
// deletes are keyed by sync path; the set types track paths that need no
// transfer.
type (
	BatchLocalDelete  map[string]*SyncOperation
	BatchRemoteDelete map[string]*SyncOperation
	BatchLocalWrite   map[string]*SyncOperation
	BatchRemoteWrite  map[string]*SyncOperation
	BatchConflict     map[string]*SyncOperation

	BatchUnchanged map[string]struct{}
	BatchCleanups  map[string]struct{}
	BatchIgnored   map[string]struct{}
)

// ReconcileOperations is the full outcome of one reconciliation pass over
// local state, remote state and the journal.
type ReconcileOperations struct {
	LocalWrites    BatchLocalWrite
	RemoteWrites   BatchRemoteWrite
	LocalDeletes   BatchLocalDelete
	RemoteDeletes  BatchRemoteDelete
	Conflicts      BatchConflict
	UnchangedPaths BatchUnchanged
	Cleanups       BatchCleanups
	Ignored        BatchIgnored
}

func NewReconcileOperations() *ReconcileOperations {
	return &ReconcileOperations{
		LocalWrites:    make(BatchLocalWrite),
		RemoteWrites:   make(BatchRemoteWrite),
		LocalDeletes:   make(BatchLocalDelete),
		RemoteDeletes:  make(BatchRemoteDelete),
		Conflicts:      make(BatchConflict),
		UnchangedPaths: make(BatchUnchanged),
		Cleanups:       make(BatchCleanups),
		Ignored:        make(BatchIgnored),
	}
}

// HasChanges reports whether the pass produced any work to apply.
func (r *ReconcileOperations) HasChanges() bool {
	return len(r.LocalWrites) > 0 ||
		len(r.RemoteWrites) > 0 ||
		len(r.LocalDeletes) > 0 ||
		len(r.RemoteDeletes) > 0 ||
		len(r.Conflicts) > 0 ||
		len(r.Cleanups) > 0
}
