// Package http serves the local status endpoints: Prometheus metrics,
// liveness and a JSON status document.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bft-labs/seedstream/internal/ports"
)

// StatusFunc returns the document served on /status.
type StatusFunc func() any

// HealthFunc returns nil while the session is healthy.
type HealthFunc func() error

// Server is the status HTTP server.
type Server struct {
	srv    *http.Server
	logger ports.Logger
}

// NewRouter builds the status routes. A nil metrics handler leaves
// /metrics unrouted.
func NewRouter(metrics http.Handler, status StatusFunc, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		if status == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "status unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, status())
	})

	return r
}

// NewServer creates a server on addr serving NewRouter.
func NewServer(addr string, handler http.Handler, logger ports.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start listens and serves in the background. It returns the bound
// address, which differs from the configured one when the port is 0.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	s.logger.Info("status server listening", ports.String("addr", addr))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", ports.Err(err))
		}
	}()
	return addr, nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
