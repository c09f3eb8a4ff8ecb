package refserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nimbusfs/nimbusfs/internal/logger"
)

// Server is an HTTP server fronting the reference remote store.
//
// Endpoints:
//   - GET    /api/info/{p}   stat
//   - GET    /api/list/{p}   directory listing
//   - GET    /api/data/{p}   ranged read
//   - PUT    /api/data/{p}   ranged write
//   - POST   /api/create/{p}?directory={bool}
//   - POST   /api/rename
//   - DELETE /api/delete/{p}
//
// The server supports graceful shutdown, mirroring the teacher's own API
// server lifecycle.
type Server struct {
	server       *http.Server
	listener     net.Listener
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a server rooted at config.Root. The server is created
// in a stopped state; call Start to begin serving requests.
func NewServer(config Config) (*Server, error) {
	config.applyDefaults()
	if config.Root == "" {
		return nil, fmt.Errorf("refserver: Root is required")
	}

	router := NewRouter(config.Root)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", config.Port))
	if err != nil {
		return nil, fmt.Errorf("refserver: listen: %w", err)
	}

	return &Server{
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		listener: ln,
		config:   config,
	}, nil
}

// Start serves requests until ctx is cancelled, then gracefully shuts
// down and returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("reference remote server listening", "addr", s.listener.Addr().String(), "root", s.config.Root)
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
		return fmt.Errorf("reference remote server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("reference remote server shutdown: %w", err)
		}
	})
	return shutdownErr
}

// Addr returns the listener's bound address, including the port actually
// chosen when Config.Port was 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}
