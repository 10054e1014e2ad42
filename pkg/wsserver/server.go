// Package wsserver bootstraps the HTTP/WS listener: chi router, JWT auth
// boundary, and the WebSocket upgrade endpoint that hands connections to
// pkg/session.
package wsserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/metrics"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/upload"
	"github.com/marmos91/relayfs/pkg/userstore"
	"github.com/marmos91/relayfs/pkg/wsserver/auth"
)

// Server wraps an *http.Server bound to the router built by NewRouter. It
// supports graceful shutdown and is safe to Stop multiple times.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer wires a Server from config, the session registry, the user
// store, and the upload coordinator. nowNS supplies the clock used to mint
// download codes; pass time.Now().UnixNano in production and a fixed or
// fake clock in tests. wsMetrics may be nil to disable metrics collection.
func NewServer(config Config, reg *registry.Registry, users userstore.UserStore, uploads *upload.Coordinator, nowNS func() int64, wsMetrics metrics.WSMetrics) (*Server, error) {
	config.applyDefaults()

	jwtService, err := auth.NewService(auth.Config{
		Secret:               config.JWT.Secret,
		Issuer:               config.JWT.Issuer,
		AccessTokenDuration:  config.JWT.AccessTokenDuration,
		RefreshTokenDuration: config.JWT.RefreshTokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("wsserver: building JWT service: %w", err)
	}

	router := NewRouter(reg, users, uploads, jwtService, nowNS, wsMetrics)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{server: httpServer, config: config}, nil
}

// Start listens and blocks until ctx is cancelled or the server fails,
// initiating a graceful shutdown on cancellation.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("ws server listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("ws server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("ws server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("ws server shutdown error: %w", err)
			logger.Error("ws server shutdown error", "error", err)
		} else {
			logger.Info("ws server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is bound to.
func (s *Server) Port() int {
	return s.config.Port
}
