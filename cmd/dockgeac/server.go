package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dockgeac/dockgeac/internal/shell/adapter"
	"github.com/dockgeac/dockgeac/internal/shell/api"
	"github.com/dockgeac/dockgeac/internal/shell/engine"
	"github.com/dockgeac/dockgeac/internal/shell/lockstore"
	"github.com/dockgeac/dockgeac/internal/shell/observer"
	"github.com/dockgeac/dockgeac/internal/shell/runtime"
	"github.com/dockgeac/dockgeac/internal/shell/settings"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitSettingsError   = 2
	ExitRuntimeError    = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server wires the engine, adapter, observer and HTTP façade together.
type Server struct {
	config     *Config
	httpServer *http.Server
	settings   *settings.Store
	observer   *observer.Observer
	watcher    *engine.Watcher
	logger     *slog.Logger
}

// NewServer creates a server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.Data.StacksDir, 0o755); err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	settingsStore, err := settings.NewStore(filepath.Join(cfg.Data.Dir, "settings.db"))
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitSettingsError}
	}

	driver := runtime.NewCLIDriver(cfg.Runtime.Binary, logger)
	locks := lockstore.NewStore(cfg.Data.Dir)
	rt := adapter.NewApple(driver, locks, logger)

	if !rt.Available(context.Background()) {
		logger.Warn("container runtime not available; operations will fail until it is",
			"binary", cfg.Runtime.Binary)
	}

	eng := engine.New(cfg.Data.StacksDir, rt, locks, settingsStore, logger)

	watcher, err := engine.NewWatcher(eng, logger)
	if err != nil {
		logger.Warn("stacks directory watcher unavailable", "error", err)
	}

	obs := observer.New(driver, cfg.Observer.Interval, logger)
	obs.Subscribe(func(event observer.Event) {
		switch event.Type {
		case observer.ContainerCreated, observer.ContainerRemoved:
			eng.InvalidateCache()
		case observer.PollError:
			logger.Debug("observer poll failed", "error", event.Err)
		}
	})

	handler := api.NewHandler(eng, rt, cfg.Auth.SharedSecret, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		settings:   settingsStore,
		observer:   obs,
		watcher:    watcher,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	s.observer.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{Op: "Start", Err: err, ExitCode: ExitHTTPServerError}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.observer.Stop()

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Error("watcher close error", "error", err)
		}
	}

	if err := s.settings.Close(); err != nil {
		s.logger.Error("settings close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
