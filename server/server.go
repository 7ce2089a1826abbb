// Package server exposes the registry and the health monitor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/monitor"
	"github.com/itsneelabh/kindreg/registry"
	"github.com/itsneelabh/kindreg/telemetry"
)

// MirrorReader reads back the snapshot mirrored to an external store.
type MirrorReader interface {
	Load(ctx context.Context) (*registry.MirroredSnapshot, error)
}

// Server serves the registry API.
type Server struct {
	config   *core.Config
	registry *registry.Registry
	monitor  *monitor.Monitor
	mirror   MirrorReader
	logger   core.Logger

	middlewares []func(http.Handler) http.Handler
	router      *chi.Mux

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		s.logger = core.ComponentLogger(logger, "kindreg/server")
	}
}

// WithMirror enables GET /api/mirror backed by m.
func WithMirror(m MirrorReader) Option {
	return func(s *Server) {
		s.mirror = m
	}
}

// WithMiddlewares appends middleware after the built-in chain.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// New creates a server for reg and mon. A nil config means
// core.DefaultConfig.
func New(cfg *core.Config, reg *registry.Registry, mon *monitor.Monitor, opts ...Option) *Server {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	s := &Server{
		config:   cfg,
		registry: reg,
		monitor:  mon,
		logger:   &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(core.RequestIDMiddleware)
	r.Use(core.RecoveryMiddleware(s.logger))
	r.Use(core.LoggingMiddleware(s.logger, s.config.Development.Enabled))
	r.Use(core.CORSMiddleware(&s.config.HTTP.CORS))
	if s.config.Telemetry.Enabled {
		r.Use(telemetry.TracingMiddleware(s.config.Telemetry.ServiceName, s.config.HTTP.HealthCheckPath))
	}
	for _, mw := range s.middlewares {
		r.Use(mw)
	}

	healthPath := s.config.HTTP.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	r.Get(healthPath, s.handleHealth)
	r.Get("/readiness", s.handleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/registry", s.handleRegistry)
		r.Get("/registry/{tag}", s.handleTag)
		r.Get("/report", s.handleReport)
		r.Get("/mirror", s.handleMirror)
	})

	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully within HTTP.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return &core.FrameworkError{Op: "server.Start", Kind: "server", Err: core.ErrAlreadyStarted}
	}

	addr := net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return &core.FrameworkError{
			Op:   "server.Start",
			Kind: "server",
			ID:   addr,
			Err:  fmt.Errorf("%w: %w", core.ErrConnectionFailed, err),
		}
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.config.HTTP.ReadTimeout,
		ReadHeaderTimeout: s.config.HTTP.ReadHeaderTimeout,
		WriteTimeout:      s.config.HTTP.WriteTimeout,
		IdleTimeout:       s.config.HTTP.IdleTimeout,
		MaxHeaderBytes:    s.config.HTTP.MaxHeaderBytes,
	}
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", map[string]interface{}{
		"address": ln.Addr().String(),
		"health":  s.config.HTTP.HealthCheckPath,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the server, waiting up to HTTP.ShutdownTimeout for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if s.config.HTTP.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.HTTP.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("Shutting down HTTP server", nil)
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}
