package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/syftbox-client/internal/client/workspace"
	"github.com/openmined/syftbox-client/internal/syftsdk"
)

type SyncManager struct {
	sdk       *syftsdk.SyftSDK
	workspace *workspace.Workspace
	engine    *SyncEngine
	ignore    *SyncIgnoreList
	priority  *SyncPriorityList
}

func NewManager(workspace *workspace.Workspace, sdk *syftsdk.SyftSDK) (*SyncManager, error) {
	ignore := NewSyncIgnoreList(workspace.DatasitesDir)
	ignore.Load()
	priority := NewSyncPriorityList(workspace.DatasitesDir)
	engine, err := NewSyncEngine(workspace, sdk, ignore, priority)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync engine: %w", err)
	}

	return &SyncManager{
		sdk:       sdk,
		workspace: workspace,
		ignore:    ignore,
		priority:  priority,
		engine:    engine,
	}, nil
}

// Engine returns the underlying sync engine.
func (m *SyncManager) Engine() *SyncEngine {
	return m.engine
}

// Status exposes per-path sync state for the control plane.
func (m *SyncManager) Status() *SyncStatus {
	return m.engine.Status()
}

// Uploads exposes the resumable upload registry.
func (m *SyncManager) Uploads() *UploadRegistry {
	return m.engine.Uploads()
}

// TriggerSync kicks off an immediate sync pass without waiting for the
// next tick. Errors surface through the status tracker.
func (m *SyncManager) TriggerSync() {
	go func() {
		if err := m.engine.RunSync(context.Background()); err != nil {
			slog.Error("manual sync failed", "error", err)
		}
	}()
}

func (m *SyncManager) Start(ctx context.Context) error {
	slog.Info("sync manager start")
	if err := m.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	return nil
}

func (m *SyncManager) Stop() error {
	slog.Info("sync manager stop")
	return m.engine.Stop()
}
