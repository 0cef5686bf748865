// Package api exposes the routing pipeline over HTTP.
//
// Endpoints: POST /route resolves one utterance, GET /decisions reads
// the audit trail, GET /stats reports routing counters, GET /healthz
// is the liveness probe.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/katavoz/KataRoute/internal/models"
	"github.com/katavoz/KataRoute/internal/router"
)

// RouteService is the router surface the API consumes.
type RouteService interface {
	Route(ctx context.Context, utt models.Utterance) models.RoutingResult
	Stats() router.Stats
}

// DecisionLog reads persisted audit records.
type DecisionLog interface {
	Recent(ctx context.Context, limit int) ([]models.DecisionRecord, error)
}

// Server serves the HTTP API.
type Server struct {
	routes     RouteService
	decisions  DecisionLog
	mux        chi.Router
	httpServer *http.Server
}

// NewServer wires the handlers onto a chi router.
func NewServer(addr string, routes RouteService, decisions DecisionLog) *Server {
	s := &Server{routes: routes, decisions: decisions}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/route", s.handleRoute)
	r.Get("/decisions", s.handleDecisions)
	r.Get("/stats", s.handleStats)

	s.mux = r
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks serving HTTP until the server shuts down.
func (s *Server) Start() error {
	slog.Info("Server.Start: listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
