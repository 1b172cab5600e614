package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openmined/syftbox-client/internal/client/controlplane"
	"github.com/openmined/syftbox-client/internal/client/datasitemgr"
)

// ClientDaemon runs the datasite manager and the local control plane as
// one long-lived process.
type ClientDaemon struct {
	mgr *datasitemgr.DatasiteManager
	cps *controlplane.CPServer
}

func NewClientDaemon(config *controlplane.CPServerConfig) (*ClientDaemon, error) {
	if config.AuthToken == "" {
		config.AuthToken = strings.ReplaceAll(uuid.NewString(), "-", "")
		slog.Info("generated control plane token", "token", config.AuthToken)
	}

	mgr := datasitemgr.New()
	if config.ConfigPath != "" {
		mgr.SetConfigPath(config.ConfigPath)
	}

	cps, err := controlplane.New(config, mgr)
	if err != nil {
		return nil, err
	}

	// Provisioned datasites advertise the control plane URL and token so
	// local apps can call back into the daemon.
	mgr.SetRuntimeConfig(&datasitemgr.RuntimeConfig{
		ClientURL:   cps.BaseURL(),
		ClientToken: config.AuthToken,
	})

	return &ClientDaemon{
		mgr: mgr,
		cps: cps,
	}, nil
}

func (c *ClientDaemon) Start(ctx context.Context) error {
	slog.Info("client daemon start")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := c.mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start datasite manager: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		if err := c.cps.Start(ctx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		return nil
	})

	// Handle shutdown on context cancellation
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("received interrupt signal, stopping daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return c.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client daemon failure", "error", err)
		return err
	}

	slog.Info("client daemon stopped")
	return nil
}

func (c *ClientDaemon) Stop(ctx context.Context) error {
	c.mgr.Stop()
	if err := c.cps.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop control plane: %w", err)
	}
	return nil
}
