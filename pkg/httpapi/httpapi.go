// Package httpapi exposes the core's liveness/readiness/metrics surface.
// This is not the admin UI (out of scope per spec §1) — just the minimal
// chi-routed health endpoints an orchestration platform needs to schedule
// and monitor the process.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the process is ready to serve refreshes.
// Typically backed by the automation bus connection state and the
// persistence store's reachability.
type ReadinessChecker interface {
	Ready(ctx context.Context) (bool, map[string]string)
}

// Server is the health/metrics HTTP server.
type Server struct {
	httpServer *http.Server
	ready      ReadinessChecker
}

// New builds a Server bound to addr. registry is the http.Handler served at
// /metrics.
func New(addr string, ready ReadinessChecker, registry http.Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	s := &Server{ready: ready}

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Handle("/metrics", registry)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// NewPrometheusHandler is a convenience wrapper for callers that don't build
// their own registry-scoped handler.
func NewPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}

	ok, details := s.ready.Ready(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  boolStatus(ok),
		"details": details,
	})
}

func boolStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}
