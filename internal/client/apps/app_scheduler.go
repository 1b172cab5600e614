package apps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

var (
	appScanInterval = 5 * time.Second

	ErrAppNotFound       = errors.New("app not found")
	ErrRefreshInProgress = errors.New("app scan already in progress")
)

// AppScheduler keeps the set of running app processes in step with the set
// of installed apps. New installs get launched, uninstalls get torn down.
type AppScheduler struct {
	manager       *AppManager
	configPath    string
	runningApps   map[string]*App
	runningAppsWg sync.WaitGroup
	mu            sync.RWMutex
	scanMu        sync.Mutex
}

func NewAppScheduler(mgr *AppManager, configPath string) *AppScheduler {
	return &AppScheduler{
		manager:     mgr,
		configPath:  configPath,
		runningApps: make(map[string]*App),
	}
}

func (s *AppScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Info("scheduler start", "appdir", s.manager.AppsDir)

	go func() {
		ticker := time.NewTicker(appScanInterval)
		defer ticker.Stop()

		s.scanApps()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scanApps()
			}
		}
	}()

	return nil
}

func (s *AppScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Debug("scheduler stopping")
	s.stopAllAppsLocked()
	s.runningAppsWg.Wait()
	slog.Debug("scheduler stopped")
}

func (s *AppScheduler) GetApp(appId string) (*App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.runningApps[appId]
	if !ok {
		return nil, ErrAppNotFound
	}

	return app, nil
}

// StartApp relaunches a scheduled app that has exited. Returns
// ErrAlreadyRunning if the process is still up.
func (s *AppScheduler) StartApp(appId string) (*App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.runningApps[appId]
	if !ok {
		return nil, ErrAppNotFound
	}

	if app.GetStatus() == StatusRunning {
		return app, ErrAlreadyRunning
	}

	go func() {
		if err := s.runAppLifecycle(app); err != nil {
			slog.Error("scheduler failed to start app", "app", app.Info().ID, "error", err)
		}
	}()

	return app, nil
}

func (s *AppScheduler) StopApp(appId string) (*App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.runningApps[appId]
	if !ok {
		return nil, ErrAppNotFound
	}

	return app, app.Stop()
}

func (s *AppScheduler) GetApps() []*App {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Collect(maps.Values(s.runningApps))
}

// Refresh runs an app scan immediately instead of waiting for the next
// tick. Returns ErrRefreshInProgress if a scan is already running.
func (s *AppScheduler) Refresh() error {
	if !s.scanMu.TryLock() {
		return ErrRefreshInProgress
	}
	defer s.scanMu.Unlock()

	s.scanAppsLocked()
	return nil
}

func (s *AppScheduler) scanApps() {
	// skip the tick if a scan is already running
	if !s.scanMu.TryLock() {
		return
	}
	defer s.scanMu.Unlock()

	s.scanAppsLocked()
}

// scanAppsLocked diffs the installed apps against the scheduled ones and
// launches or removes whatever changed since the last scan. Caller holds
// scanMu.
func (s *AppScheduler) scanAppsLocked() {
	appList, err := s.manager.ListApps()
	if err != nil {
		slog.Error("failed to list apps", "error", err)
		return
	}

	installed := make(map[string]*AppInfo, len(appList))
	for _, app := range appList {
		installed[app.ID] = app
	}

	s.mu.RLock()
	var toSchedule []*AppInfo
	var toRemove []string
	for appID, info := range installed {
		if _, ok := s.runningApps[appID]; !ok {
			toSchedule = append(toSchedule, info)
		}
	}
	for appID := range s.runningApps {
		if _, ok := installed[appID]; !ok {
			toRemove = append(toRemove, appID)
		}
	}
	s.mu.RUnlock()

	for _, info := range toSchedule {
		go func() {
			if err := s.scheduleApp(info); err != nil {
				slog.Error("scheduler failed to schedule app", "app", info.ID, "error", err)
			}
		}()
	}

	for _, appID := range toRemove {
		if err := s.removeApp(appID); err != nil {
			slog.Error("scheduler remove app error", "app", appID, "error", err)
		}
	}
}

func (s *AppScheduler) scheduleApp(appInfo *AppInfo) error {
	app, err := NewApp(appInfo, s.configPath)
	if err != nil {
		slog.Error("failed to create app", "app", appInfo.ID, "error", err)
		return err
	}

	s.mu.Lock()
	s.runningApps[appInfo.ID] = app
	s.mu.Unlock()

	return s.runAppLifecycle(app)
}

// runAppLifecycle starts the app process and blocks until it exits.
func (s *AppScheduler) runAppLifecycle(app *App) error {
	if app == nil {
		return fmt.Errorf("app is nil")
	}

	appId := app.Info().ID

	s.runningAppsWg.Add(1)
	defer s.runningAppsWg.Done()

	if err := app.Start(); err != nil {
		slog.Error("scheduler failed to start app", "app", appId, "error", err)
		return err
	}
	slog.Info("scheduler started app", "app", appId, "pid", app.Process().Pid, "port", app.port)

	code, err := app.Wait()
	if err != nil {
		switch code {
		case 137:
			slog.Warn("scheduler app exited with SIGKILL", "app", appId)
		case 143:
			slog.Warn("scheduler app exited with SIGTERM", "app", appId)
		default:
			slog.Warn("scheduler app exited", "app", appId, "exitcode", code, "error", err)
		}
	} else {
		slog.Info("scheduler app exited", "app", appId, "exitcode", code)
	}
	// TODO restart crashed apps with a backoff instead of waiting for a reinstall
	return nil
}

func (s *AppScheduler) removeApp(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.runningApps[appID]
	if !ok {
		return nil
	}

	delete(s.runningApps, appID)
	slog.Debug("scheduler removed app", "app", appID)
	return app.Stop()
}

func (s *AppScheduler) stopAllAppsLocked() {
	for _, app := range s.runningApps {
		if app.GetStatus() == StatusRunning {
			slog.Info("scheduler stopping app", "app", app.info.ID)
			if err := app.Stop(); err != nil {
				slog.Error("failed to stop app", "app", app.info.ID, "error", err)
			}
		}
	}
}
