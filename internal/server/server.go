// Package server wraps net/http with the graceful lifecycle shared by
// the exposition and relay listeners.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Server is a named HTTP listener with context-driven shutdown.
type Server struct {
	name   string
	addr   string
	server *http.Server
}

// New creates a server for the handler on the given port.
func New(name string, port int, handler http.Handler) *Server {
	addr := fmt.Sprintf(":%d", port)
	return &Server{
		name: name,
		addr: addr,
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// Start begins serving and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		slog.Info("starting server", "name", s.name, "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

// shutdown gracefully stops the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down server", "name", s.name)
	return s.server.Shutdown(ctx)
}
