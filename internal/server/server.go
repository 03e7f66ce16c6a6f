// Package server runs the report handlers behind a plain HTTP listener for
// local development, translating requests into API Gateway proxy events.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procodus.dev/voltage/internal/api"
	"procodus.dev/voltage/pkg/metrics"
)

// maxBodyBytes caps request bodies like the API Gateway payload limit.
const maxBodyBytes = 10 << 20

// Server represents the local API HTTP server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	router     *api.Router
	config     *ServerConfig
	onShutdown []func() error
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger
	Router *api.Router

	// HTTP server configuration
	HTTPPort int

	// Stage is reported as the API Gateway stage of every request.
	Stage string
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Router == nil {
		return nil, errors.New("router cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	return &Server{
		logger: cfg.Logger,
		router: cfg.Router,
		config: cfg,
	}, nil
}

// OnShutdown registers fn to run after the HTTP server stopped.
func (s *Server) OnShutdown(fn func() error) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Run starts the server and blocks until a signal, ctx cancellation or a
// listener error.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting API server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			return errors.Join(err, s.Shutdown())
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server and runs the shutdown hooks.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down API server")

	var shutdownErr error

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	for _, fn := range s.onShutdown {
		if err := fn(); err != nil {
			s.logger.Error("shutdown hook failed", "error", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}

	if shutdownErr != nil {
		s.logger.Error("API server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("API server shutdown completed successfully")
	return nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	for _, resource := range s.router.Resources() {
		mux.HandleFunc(resource, s.handleResource(resource))
	}

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
