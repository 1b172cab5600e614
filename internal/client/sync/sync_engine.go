package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmined/syftbox-client/internal/client/workspace"
	"github.com/openmined/syftbox-client/internal/syftmsg"
	"github.com/openmined/syftbox-client/internal/syftsdk"
)

const (
	fullSyncInterval = 5 * time.Second
	journalFileName  = "journal.json"

	healJournalGapsEnv = "SYFTBOX_SYNC_HEAL_JOURNAL_GAPS"
)

var (
	ErrSyncAlreadyRunning = errors.New("sync already running")
)

type SyncEngine struct {
	workspace      *workspace.Workspace
	sdk            *syftsdk.SyftSDK
	journal        *SyncJournal
	localState     *SyncLocalState
	syncStatus     *SyncStatus
	watcher        *FileWatcher
	ignoreList     *SyncIgnoreList
	priorityList   *SyncPriorityList
	uploadRegistry *UploadRegistry
	hotlink        *HotlinkManager
	aclStaging     *ACLStagingManager

	// aclReady is set once the owner's ACL files have gone out with the
	// initial sync. Until then non-ACL priority uploads are deferred to
	// standard sync so peers never see data before the rules guarding it.
	aclReady atomic.Bool

	wg     sync.WaitGroup
	muSync sync.Mutex
}

func NewSyncEngine(
	workspace *workspace.Workspace,
	sdk *syftsdk.SyftSDK,
	ignore *SyncIgnoreList,
	priority *SyncPriorityList,
) (*SyncEngine, error) {
	journalPath := filepath.Join(workspace.MetadataDir, journalFileName)
	journal, err := NewSyncJournal(journalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync journal: %w", err)
	}
	if err := journal.Open(); err != nil {
		return nil, fmt.Errorf("failed to open sync journal: %w", err)
	}

	se := &SyncEngine{
		sdk:            sdk,
		workspace:      workspace,
		watcher:        NewFileWatcher(workspace.DatasitesDir),
		ignoreList:     ignore,
		priorityList:   priority,
		journal:        journal,
		localState:     NewSyncLocalState(workspace.DatasitesDir),
		syncStatus:     NewSyncStatus(),
		uploadRegistry: NewUploadRegistry(filepath.Join(workspace.MetadataDir, uploadSessionsDirName)),
		hotlink:        NewHotlinkManager(workspace, sdk),
	}
	se.aclStaging = NewACLStagingManager(se.applyStagedACLs)
	return se, nil
}

// Status exposes per-file sync state for the control plane.
func (se *SyncEngine) Status() *SyncStatus {
	return se.syncStatus
}

// Uploads exposes the upload registry for the control plane.
func (se *SyncEngine) Uploads() *UploadRegistry {
	return se.uploadRegistry
}

func (se *SyncEngine) Start(ctx context.Context) error {
	slog.Info("sync start")

	if err := se.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	if err := se.uploadRegistry.LoadFromDisk(); err != nil {
		slog.Warn("failed to load upload sessions", "error", err)
	}

	// run sync once and wait before starting watcher//websocket
	slog.Info("running initial sync")
	if err := se.runFullSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("failed to run initial sync", "error", err)
	}

	// own ACLs are on the server now, the fast path may send data
	se.aclReady.Store(true)

	// connect to websocket
	slog.Info("listening for websocket events")
	if err := se.sdk.Events.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to connect websocket: %w", err)
	}

	se.hotlink.StartLocalReaders(ctx)

	se.wg.Add(1)
	go func() {
		defer se.wg.Done()

		// using a timer and not a ticker to avoid queued ticks when
		// runFullSync takes more than fullSyncInterval to complete
		timer := time.NewTimer(fullSyncInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				err := se.runFullSync(ctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("failed to run sync", "error", err)
				}
				timer.Reset(fullSyncInterval)
			}
		}
	}()

	se.wg.Add(1)
	go func() {
		defer se.wg.Done()
		se.handleSocketEvents(ctx)
	}()

	se.wg.Add(1)
	go func() {
		defer se.wg.Done()
		se.handleWatcherEvents(ctx)
	}()

	return nil
}

func (se *SyncEngine) Stop() error {
	slog.Info("sync stop")
	se.watcher.Stop()
	se.hotlink.Close()
	se.uploadRegistry.Close()
	se.syncStatus.Close()
	return se.journal.Close()
}

// RunSync performs a full sync of the local and remote states
func (se *SyncEngine) RunSync(ctx context.Context) error {
	return se.runFullSync(ctx)
}

func (se *SyncEngine) runFullSync(ctx context.Context) error {
	if !se.muSync.TryLock() {
		return ErrSyncAlreadyRunning
	}
	defer se.muSync.Unlock()

	tStart := time.Now()

	remoteState, err := se.getRemoteState(ctx)
	if err != nil {
		return fmt.Errorf("get remote state: %w", err)
	}
	tRemoteState := time.Since(tStart)

	tlocal := time.Now()
	localState, err := se.localState.Scan()
	if err != nil {
		return fmt.Errorf("scan local state: %w", err)
	}
	tLocalState := time.Since(tlocal)

	journalCount, err := se.journal.Count()
	if err != nil {
		return fmt.Errorf("get journal count: %w", err)
	}

	// journal is empty, but you have local files!
	if journalCount == 0 && len(localState) > 0 && len(remoteState) > 0 {
		slog.Info("rebuilding journal")
		se.rebuildJournal(localState, remoteState)
	}

	tjournal := time.Now()
	journalState, err := se.journal.GetState()
	if err != nil {
		return fmt.Errorf("get journal state: %w", err)
	}
	tJournalState := time.Since(tjournal)

	treconcile := time.Now()
	result := se.reconcile(localState, remoteState, journalState)
	tReconcile := time.Since(treconcile)

	if result.HasChanges() {
		slog.Debug("reconcile decisions", "downloads", result.LocalWrites, "uploads", result.RemoteWrites, "remoteDeletes", result.RemoteDeletes, "localDeletes", result.LocalDeletes, "conflicts", result.Conflicts)
	}

	se.executeReconcileOperations(ctx, result)
	tTotal := time.Since(tStart)

	if result.HasChanges() {
		slog.Info("full sync",
			"downloads", len(result.LocalWrites),
			"uploads", len(result.RemoteWrites),
			"localDeletes", len(result.LocalDeletes),
			"remoteDeletes", len(result.RemoteDeletes),
			"conflicts", len(result.Conflicts),
			"unchanged", len(result.UnchangedPaths),
			"cleanups", len(result.Cleanups),
			"ignored", len(result.Ignored),
			"syncing", se.syncStatus.GetSyncingFileCount(),
			"tsRemoteState", tRemoteState,
			"tsLocalState", tLocalState,
			"tsJournalState", tJournalState,
			"tsReconcile", tReconcile,
			"tsTotal", tTotal,
		)
	}

	return nil
}

func (se *SyncEngine) reconcile(localState, remoteState, journalState map[SyncPath]*FileMetadata) *ReconcileOperations {
	allPaths := make(map[SyncPath]struct{})
	reconcileOps := NewReconcileOperations()

	for path := range journalState {
		allPaths[path] = struct{}{}
	}
	for path := range localState {
		allPaths[path] = struct{}{}
	}
	for path := range remoteState {
		allPaths[path] = struct{}{}
	}

	for path := range allPaths {
		local, localExists := localState[path]
		remote, remoteExists := remoteState[path]
		journal, journalExists := journalState[path]

		// check if it's already in conflict
		isConflict := se.isConflict(path)
		isSyncing := se.isSyncing(path)
		isIgnored := se.ignoreList.ShouldIgnore(path)
		isEmpty := localExists && local.Size == 0
		// ACL files under a pending manifest stay untouched until the
		// staged set applies or its grace period lapses
		isPendingACL := se.aclStaging != nil && se.aclStaging.IsPendingACLPath(path)

		if isConflict || isSyncing || isIgnored || isEmpty || isPendingACL {
			reconcileOps.Ignored[path] = struct{}{}
			continue
		}

		localModified := localExists && journalExists && se.hasModified(local, journal)
		remoteModified := remoteExists && journalExists && se.hasModified(remote, journal)
		localCreated := localExists && !journalExists && !remoteExists
		remoteCreated := remoteExists && !journalExists && !localExists
		localDeleted := !localExists && journalExists && remoteExists
		remoteDeleted := !remoteExists && journalExists && localExists

		// early checks
		if !localExists && !remoteExists && journalExists {
			// Both deleted cleanly (relative to journal)
			reconcileOps.Cleanups[path] = struct{}{}
			continue
		}

		// conflicts
		if (localModified && remoteModified) ||
			(localCreated && remoteCreated) {
			// Conflict Case: Local Create/Modify + Remote Create/Modify
			reconcileOps.Conflicts[path] = &SyncOperation{Type: OpConflict, RelPath: path, Local: local, Remote: remote, LastSynced: journal}
			continue
		}

		// Regular Sync
		if localCreated || localModified {
			// Local New/Modify + Remote Unchanged
			reconcileOps.RemoteWrites[path] = &SyncOperation{Type: OpWriteRemote, RelPath: path, Local: local, Remote: remote, LastSynced: journal}
		} else if remoteCreated || remoteModified {
			// Local Unchanged + Remote New/Modify
			reconcileOps.LocalWrites[path] = &SyncOperation{Type: OpWriteLocal, RelPath: path, Local: local, Remote: remote, LastSynced: journal}
		} else if localDeleted {
			// Local Delete + Remote Exists
			reconcileOps.RemoteDeletes[path] = &SyncOperation{Type: OpDeleteRemote, RelPath: path, Local: local, Remote: remote, LastSynced: journal}
		} else if remoteDeleted {
			// Remote Delete + Local Exists
			reconcileOps.LocalDeletes[path] = &SyncOperation{Type: OpDeleteLocal, RelPath: path, Local: local, Remote: remote, LastSynced: journal}
		} else {
			// Local Unchanged + Remote Unchanged
			se.healJournalGap(path, remote, journal)
			reconcileOps.UnchangedPaths[path] = struct{}{}
			continue
		}
	}

	return reconcileOps
}

// healJournalGap re-journals the remote metadata when a file compares as
// unchanged but the journaled etag no longer matches the server's. This
// happens after multipart uploads, where the server reports a multipart
// etag that never equals the local md5.
func (se *SyncEngine) healJournalGap(path SyncPath, remote, journal *FileMetadata) {
	if se.journal == nil || remote == nil || journal == nil {
		return
	}
	if !healJournalGapsEnabled() {
		return
	}
	if normalizeETag(remote.ETag) == normalizeETag(journal.ETag) {
		return
	}
	healed := *journal
	healed.Path = path
	healed.ETag = remote.ETag
	healed.Size = remote.Size
	if err := se.journal.Set(&healed); err != nil {
		slog.Warn("sync journal heal failed", "path", path, "error", err)
	} else {
		slog.Debug("sync journal healed", "path", path, "etag", remote.ETag)
	}
}

func healJournalGapsEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(healJournalGapsEnv))) {
	case "0", "off", "false", "disabled":
		return false
	default:
		return true
	}
}

func (se *SyncEngine) executeReconcileOperations(ctx context.Context, result *ReconcileOperations) {
	var wg sync.WaitGroup
	// run batch operations in parallel
	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(result.RemoteWrites) > 0 {
			se.handleRemoteWrites(ctx, result.RemoteWrites)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(result.LocalWrites) > 0 {
			se.handleLocalWrites(ctx, result.LocalWrites)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(result.RemoteDeletes) > 0 {
			se.handleRemoteDeletes(ctx, result.RemoteDeletes)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(result.LocalDeletes) > 0 {
			se.handleLocalDeletes(ctx, result.LocalDeletes)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(result.Conflicts) > 0 {
			se.handleConflicts(ctx, result.Conflicts)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		// cleanup the journal
		for path := range result.Cleanups {
			se.journal.Delete(path)
		}
	}()

	wg.Wait()
}

// hasModified reports whether f1 differs from f2. Versions win when both
// sides have one; otherwise etags are compared, with a special case for
// multipart etags which never equal a plain md5.
func (se *SyncEngine) hasModified(f1, f2 *FileMetadata) bool {
	// Both missing
	if f1 == nil && f2 == nil {
		return false
	}

	// One exists, one doesn't (Create or Delete relative to the other)
	if f1 == nil || f2 == nil {
		return true
	}

	if f1.Version != "" && f2.Version != "" {
		return f1.Version != f2.Version
	}

	e1 := normalizeETag(f1.ETag)
	e2 := normalizeETag(f2.ETag)
	if e1 != "" && e2 != "" {
		if isMultipartETag(e1) != isMultipartETag(e2) {
			// one side is a multipart etag, so the md5 comparison is
			// meaningless. Fall back to size, and for the owner's own
			// files stay conservative and re-upload.
			if f1.Size != f2.Size {
				return true
			}
			return se.isOwnedPath(f1.Path)
		}
		return e1 != e2
	}

	if f1.Size != f2.Size {
		return true
	}

	return !f1.LastModified.Equal(f2.LastModified)
}

func (se *SyncEngine) isOwnedPath(path SyncPath) bool {
	return se.workspace != nil && se.workspace.IsOwner(path)
}

// normalizeETag strips the quotes some S3 backends wrap around etags.
func normalizeETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), `"`)
}

// isMultipartETag reports whether the etag has a multipart part-count
// suffix ("<md5>-<n>").
func isMultipartETag(etag string) bool {
	return strings.Contains(etag, "-")
}

func (se *SyncEngine) isSyncing(path SyncPath) bool {
	return se.syncStatus.IsSyncing(path)
}

func (se *SyncEngine) isConflict(path SyncPath) bool {
	// if there's a dir basename.conflicted/
	name := filepath.Base(path)
	conflictedDir := filepath.Join(filepath.Dir(path), name+".conflicted")
	info, err := os.Stat(conflictedDir)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func (se *SyncEngine) isPriorityFile(absPath string) bool {
	return se.priorityList.ShouldPrioritize(absPath)
}

func (se *SyncEngine) getRemoteState(ctx context.Context) (map[SyncPath]*FileMetadata, error) {
	resp, err := se.sdk.Datasite.GetView(ctx, &syftsdk.DatasiteViewParams{})
	if err != nil {
		return nil, err
	}

	remoteState := make(map[SyncPath]*FileMetadata)
	for _, file := range resp.Files {
		remoteState[file.Key] = &FileMetadata{
			Path:         file.Key,
			ETag:         file.ETag,
			Size:         int64(file.Size),
			LastModified: file.LastModified,
			Version:      "",
		}
	}

	return remoteState, nil
}

func (se *SyncEngine) rebuildJournal(localState, remoteState map[SyncPath]*FileMetadata) {
	allPaths := make(map[SyncPath]struct{})
	for path := range localState {
		allPaths[path] = struct{}{}
	}
	for path := range remoteState {
		allPaths[path] = struct{}{}
	}

	for path := range allPaths {
		local, localExists := localState[path]
		remote, remoteExists := remoteState[path]

		if localExists && remoteExists && local.ETag == remote.ETag {
			se.journal.Set(local)
		}
	}
}

func (se *SyncEngine) handleSocketEvents(ctx context.Context) {
	socketEvents := se.sdk.Events.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-socketEvents:
			if !ok {
				slog.Debug("handleSocketEvents channel closed")
				return
			}
			switch msg.Type {
			case syftmsg.MsgSystem:
				go se.handleSystem(msg)
			case syftmsg.MsgError:
				go se.handlePriorityError(msg)
			case syftmsg.MsgFileWrite, syftmsg.MsgFileNotify:
				go se.handlePriorityDownload(msg)
			case syftmsg.MsgFileDelete:
				go se.handleRemoteFileDelete(msg)
			case syftmsg.MsgHttp:
				go se.processHttpMessage(msg)
			case syftmsg.MsgACLManifest:
				go se.handleACLManifest(msg)
			case syftmsg.MsgHotlinkOpen:
				go se.hotlink.HandleOpen(msg)
			case syftmsg.MsgHotlinkAccept:
				go se.hotlink.HandleAccept(msg)
			case syftmsg.MsgHotlinkReject:
				go se.hotlink.HandleReject(msg)
			case syftmsg.MsgHotlinkData:
				go se.hotlink.HandleData(msg)
			case syftmsg.MsgHotlinkClose:
				go se.hotlink.HandleClose(msg)
			case syftmsg.MsgHotlinkSignal:
				go se.hotlink.HandleSignal(msg)
			default:
				slog.Debug("websocket unhandled type", "type", msg.Type)
			}
		}
	}
}

func (se *SyncEngine) handleWatcherEvents(ctx context.Context) {
	watcherEvents := se.watcher.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcherEvents:
			if !ok {
				return
			}
			path := event.Path()
			if se.ignoreList.ShouldIgnore(path) ||
				!se.priorityList.ShouldPrioritize(path) {
				continue
			}
			go se.handlePriorityUpload(path)
		}
	}
}

// handleACLManifest stages an incoming ACL manifest. The staged set applies
// once every ACL file it names has arrived, in manifest order.
func (se *SyncEngine) handleACLManifest(msg *syftmsg.Message) {
	manifest, ok := msg.Data.(syftmsg.ACLManifest)
	if !ok {
		slog.Error("acl manifest invalid payload", "msgId", msg.Id, "data", msg.Data)
		return
	}
	se.aclStaging.SetManifest(&manifest)
}

// applyStagedACLs writes a complete staged ACL set to disk in manifest
// order. Invoked by the staging manager once all files have arrived.
func (se *SyncEngine) applyStagedACLs(datasite string, acls []*StagedACL) {
	tmpDir := filepath.Join(se.workspace.Root, ".syft-tmp")
	for _, acl := range acls {
		localAbsPath := se.workspace.DatasiteAbsPath(acl.Path)
		se.watcher.IgnoreOnce(localAbsPath)

		if err := writeFileWithIntegrityCheck(tmpDir, localAbsPath, acl.Content, acl.ETag); err != nil {
			slog.Error("acl staging apply failed", "datasite", datasite, "path", acl.Path, "error", err)
			continue
		}

		se.journal.Set(&FileMetadata{
			Path:         acl.Path,
			ETag:         acl.ETag,
			Size:         int64(len(acl.Content)),
			LastModified: time.Now(),
		})
		slog.Info("acl staging applied", "datasite", datasite, "path", acl.Path)
	}
	se.aclStaging.NoteACLActivity(datasite)
}

// handleRemoteFileDelete removes a file deleted on the server.
func (se *SyncEngine) handleRemoteFileDelete(msg *syftmsg.Message) {
	deleteMsg, ok := msg.Data.(syftmsg.FileDelete)
	if !ok {
		slog.Error("file delete invalid payload", "msgId", msg.Id, "data", msg.Data)
		return
	}

	syncRelPath := SyncPath(deleteMsg.Path)
	if se.aclStaging.IsPendingACLPath(syncRelPath) {
		slog.Warn("sync", "type", SyncPriority, "op", OpSkipped, "reason", "pending acl manifest", "path", syncRelPath)
		return
	}

	localAbsPath := se.workspace.DatasiteAbsPath(deleteMsg.Path)
	if err := os.Remove(localAbsPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("sync", "type", SyncPriority, "op", OpDeleteLocal, "path", syncRelPath, "error", err)
		return
	}
	se.journal.Delete(syncRelPath)
	slog.Info("sync", "type", SyncPriority, "op", OpDeleteLocal, "path", syncRelPath)
}

func (se *SyncEngine) handleSystem(msg *syftmsg.Message) {
	systemMsg, ok := msg.Data.(syftmsg.System)
	if !ok {
		return
	}
	slog.Info("handle", "msgType", msg.Type, "msgId", msg.Id, "serverVersion", systemMsg.SystemVersion)
}
