// Package health serves liveness and status probes for a running consumer.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// StatusFunc reports the current state of the process. Its result is encoded as JSON.
type StatusFunc func() any

// Server exposes /healthz and /statusz on an HTTP listener.
type Server struct {
	logger     zerolog.Logger
	addr       string
	httpServer *http.Server
	mux        *http.ServeMux

	mu         sync.RWMutex
	actualAddr string
}

// NewServer creates a Server for addr. status may be nil, in which case /statusz is not registered.
func NewServer(addr string, status StatusFunc, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthzHandler)
	if status != nil {
		mux.HandleFunc("/statusz", StatuszHandler(status))
	}

	return &Server{
		logger: logger.With().Str("component", "HealthServer").Logger(),
		addr:   addr,
		mux:    mux,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start listens on the configured address and serves in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info().Str("address", s.Addr()).Msg("Health server listening.")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Health server failed.")
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for in-flight probes until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during health server shutdown.")
		return err
	}
	s.logger.Info().Msg("Health server stopped.")
	return nil
}

// Addr returns the address the server is listening on, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.actualAddr == "" {
		return s.addr
	}
	return s.actualAddr
}

// Mux returns the underlying ServeMux.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// HealthzHandler responds to liveness probes.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// StatuszHandler writes the result of status as JSON.
func StatuszHandler(status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
