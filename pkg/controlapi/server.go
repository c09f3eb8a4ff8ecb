package controlapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nimbusfs/nimbusfs/internal/logger"
)

// Config configures a control API instance. Port 0 picks a random free
// loopback port, useful for tests and for avoiding collisions between
// concurrently mounted instances.
type Config struct {
	Port     int
	Secret   string
	Duration time.Duration
}

// Server is a loopback-only HTTP server exposing GET /status.
type Server struct {
	server       *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
}

// NewServer creates a control API server bound to 127.0.0.1 and mints
// the one bearer token callers must present to query it.
func NewServer(cfg Config, provider StatsProvider) (*Server, string, error) {
	jwtService, err := NewJWTService(JWTConfig{Secret: cfg.Secret, Duration: cfg.Duration})
	if err != nil {
		return nil, "", fmt.Errorf("controlapi: %w", err)
	}
	token, err := jwtService.IssueToken()
	if err != nil {
		return nil, "", fmt.Errorf("controlapi: issue token: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	h := &statusHandler{provider: provider}
	r.Group(func(r chi.Router) {
		r.Use(jwtAuth(jwtService))
		r.Get("/status", h.status)
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, "", fmt.Errorf("controlapi: listen: %w", err)
	}

	return &Server{
		server:   &http.Server{Handler: r},
		listener: ln,
	}, token, nil
}

// Start serves requests until ctx is cancelled, then gracefully shuts
// down and returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("control API listening", "addr", s.listener.Addr().String())
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("control API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("control API shutdown: %w", err)
		}
	})
	return shutdownErr
}

// Addr returns the listener's bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}
