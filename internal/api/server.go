package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slok/runq/internal/log"
)

// ServerConfig is the configuration for the HTTP API server.
type ServerConfig struct {
	ListenAddr string
	Registry   *Registry
	// ShutdownTimeout is the max time waiting for in-flight requests on shutdown.
	ShutdownTimeout time.Duration
	Logger          log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8765"
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Server"})
	return nil
}

// Server is the HTTP API server.
type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          log.Logger
}

// NewServer creates a new HTTP API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Server{
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           cfg.Registry.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
	}, nil
}

// Run starts the server and blocks until ctx is cancelled. It performs a
// graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("HTTP API listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		s.logger.Infof("shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		return nil
	}
}
