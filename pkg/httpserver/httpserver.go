// Package httpserver provides a gracefully-stoppable HTTP server.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pawbridge/console-backend/internal/logging"
	"go.opencensus.io/plugin/ochttp"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Config holds server config
type Config struct {
	Port string
}

// Server serves HTTP on a listener opened by NewServer until its context ends.
type Server struct {
	listener net.Listener
}

// NewServer opens the listener, so the server accepts connections as soon as it returns.
func NewServer(ctx context.Context, config *Config) (*Server, error) {
	addr := ":" + config.Port
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on %s: %w", addr, err)
	}
	return &Server{listener: listener}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// ServeHTTPHandler serves handler traced by opencensus.
func (s *Server) ServeHTTPHandler(ctx context.Context, handler http.Handler) error {
	return s.ServeHTTP(ctx, &http.Server{
		Handler:           &ochttp.Handler{Handler: handler},
		ReadHeaderTimeout: readHeaderTimeout,
	})
}

// ServeHTTP blocks serving srv. When ctx is done the server is shut down, waiting up to 5s for open requests.
func (s *Server) ServeHTTP(ctx context.Context, srv *http.Server) error {
	logger := logging.FromContext(ctx).Named("httpserver.Serve")

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Debugf("Context closed, shutting down %v", s.Addr())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	logger.Debugf("Serving stopped")
	return nil
}
