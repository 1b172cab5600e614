package datasite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/syftbox-client/internal/client/apps"
	"github.com/openmined/syftbox-client/internal/client/config"
	"github.com/openmined/syftbox-client/internal/client/sync"
	"github.com/openmined/syftbox-client/internal/client/workspace"
	"github.com/openmined/syftbox-client/internal/syftsdk"
)

// Datasite wires the workspace, server SDK, sync manager and app runtime
// for a single provisioned user.
type Datasite struct {
	config       *config.Config
	sdk          *syftsdk.SyftSDK
	workspace    *workspace.Workspace
	appScheduler *apps.AppScheduler
	appManager   *apps.AppManager
	sync         *sync.SyncManager
}

// New builds a datasite from a config. It performs no network calls, so a
// datasite can be constructed while the server is unreachable.
func New(cfg *config.Config) (*Datasite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ws, err := workspace.NewWorkspace(cfg.DataDir, cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	sdk, err := syftsdk.New(&syftsdk.SyftSDKConfig{
		BaseURL:      cfg.ServerURL,
		Email:        cfg.Email,
		RefreshToken: cfg.RefreshToken,
		AccessToken:  cfg.AccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("create sdk: %w", err)
	}

	syncMgr, err := sync.NewManager(ws, sdk)
	if err != nil {
		return nil, fmt.Errorf("create sync manager: %w", err)
	}

	appMgr := apps.NewManager(ws.AppsDir, ws.MetadataDir)
	appSched := apps.NewAppScheduler(appMgr, cfg.Path)

	ds := &Datasite{
		config:       cfg,
		sdk:          sdk,
		workspace:    ws,
		appScheduler: appSched,
		appManager:   appMgr,
		sync:         syncMgr,
	}

	// Persist rotated refresh tokens so the next start can authenticate.
	sdk.OnTokenUpdate(func(_ string, refreshToken string) {
		ds.updateRefreshToken(refreshToken)
	})

	return ds, nil
}

func (d *Datasite) Start(ctx context.Context) error {
	slog.Info("datasite start", "datadir", d.config.DataDir, "email", d.config.Email, "server", d.config.ServerURL)

	if err := d.workspace.Lock(); err != nil {
		return err
	}
	if err := d.workspace.Setup(); err != nil {
		return fmt.Errorf("setup workspace: %w", err)
	}

	if err := syftsdk.WaitForHealthy(ctx, d.config.ServerURL); err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	if err := d.sdk.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	if err := d.sync.Start(ctx); err != nil {
		return fmt.Errorf("start sync: %w", err)
	}

	if d.config.AppsEnabled {
		if err := d.appScheduler.Start(ctx); err != nil {
			slog.Error("app scheduler start failed", "error", err)
		}
	} else {
		slog.Info("apps disabled")
	}

	return nil
}

func (d *Datasite) Stop() {
	slog.Info("datasite stop")
	d.appScheduler.Stop()
	if err := d.sync.Stop(); err != nil {
		slog.Error("sync stop", "error", err)
	}
	d.sdk.Close()
	if err := d.workspace.Unlock(); err != nil {
		slog.Error("workspace unlock", "error", err)
	}
}

// updateRefreshToken persists a rotated refresh token. Empty or unchanged
// tokens are ignored.
func (d *Datasite) updateRefreshToken(token string) {
	if token == "" || token == d.config.RefreshToken {
		return
	}
	d.config.RefreshToken = token
	if err := d.config.Save(); err != nil {
		slog.Error("persist refresh token", "error", err)
	}
}

func (d *Datasite) GetConfig() *config.Config {
	return d.config
}

func (d *Datasite) GetSDK() *syftsdk.SyftSDK {
	return d.sdk
}

func (d *Datasite) GetWorkspace() *workspace.Workspace {
	return d.workspace
}

func (d *Datasite) GetAppScheduler() *apps.AppScheduler {
	return d.appScheduler
}

func (d *Datasite) GetAppManager() *apps.AppManager {
	return d.appManager
}

func (d *Datasite) GetSyncManager() *sync.SyncManager {
	return d.sync
}
