package controlplane

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/syftbox-client/internal/client/datasitemgr"
	"github.com/openmined/syftbox-client/internal/client/middleware"
	"github.com/openmined/syftbox-client/internal/utils"
)

// CPServer is the local HTTP control plane. It exposes daemon status,
// sync state and app management to UIs and scripts on localhost.
type CPServer struct {
	config      *CPServerConfig
	server      *http.Server
	baseURL     string
	datasiteMgr *datasitemgr.DatasiteManager
}

func New(config *CPServerConfig, datasiteMgr *datasitemgr.DatasiteManager) (*CPServer, error) {
	baseURL, err := addrToURL(config.Addr)
	if err != nil {
		return nil, err
	}

	routes := SetupRoutes(datasiteMgr, &RouteConfig{
		Auth: middleware.TokenAuthConfig{
			Token: config.AuthToken,
		},
		ClientURL: baseURL,
	})

	httpServer := &http.Server{
		Addr:    config.Addr,
		Handler: routes,
		// Timeouts to prevent slow client attacks
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Connection control
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return &CPServer{
		config:      config,
		server:      httpServer,
		baseURL:     baseURL,
		datasiteMgr: datasiteMgr,
	}, nil
}

// BaseURL is the http URL the control plane serves on.
func (s *CPServer) BaseURL() string {
	return s.baseURL
}

func (s *CPServer) Start(ctx context.Context) error {
	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", s.config.Addr), "token", utils.MaskSecret(s.config.AuthToken))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (s *CPServer) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
