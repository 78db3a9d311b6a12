// Package server binds the HTTP listener and supervises the serving loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// Server serves one handler on one port.
type Server struct {
	Port int
	Env  string

	handler    http.Handler
	logger     *slog.Logger
	supervisor *Supervisor
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server. Faults from the serving loop go to sink.
func New(handler http.Handler, port int, env string, logger *slog.Logger, sink FaultSink) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &Server{
		Port:       port,
		Env:        env,
		handler:    handler,
		logger:     logger,
		supervisor: NewSupervisor(sink),
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
	}
}

// Start binds the port, logs the startup line and serves in the background.
// It returns once the listener is bound; a bind failure is returned and
// nothing is logged as running.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.Port, err)
	}
	s.listener = ln

	s.logger.Info(fmt.Sprintf("Server running in %s mode on port %d", s.Env, s.boundPort()),
		slog.String("env", s.Env),
		slog.Int("port", s.boundPort()),
	)

	s.supervisor.Go("http server", func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return nil
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.supervisor.Wait()
	return err
}

// Supervisor exposes the supervisor so other background work shares the
// same fault sink.
func (s *Server) Supervisor() *Supervisor {
	return s.supervisor
}

func (s *Server) boundPort() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return s.Port
}
