// Package api serves rebalance proposals over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/metrics"
	"github.com/rustyeddy/levered/rebalance"
)

// Proposer computes proposals.
type Proposer interface {
	CalculateProposal(ctx context.Context, portfolioID string) (rebalance.Proposal, error)
}

// Acceptor applies accepted proposals.
type Acceptor interface {
	Accept(ctx context.Context, p rebalance.Proposal) error
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API.
type Server struct {
	router   *mux.Router
	server   *http.Server
	proposer Proposer
	acceptor Acceptor
	health   Pinger
	metrics  *metrics.Registry
	gatherer prometheus.Gatherer
}

// NewServer wires the routes. m and gatherer may be nil; without a gatherer
// /metrics is not served.
func NewServer(cfg config.ServerConfig, proposer Proposer, acceptor Acceptor, health Pinger, m *metrics.Registry, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		proposer: proposer,
		acceptor: acceptor,
		health:   health,
		metrics:  m,
		gatherer: gatherer,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.accessLogMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/portfolios/{id}/proposal", s.handleProposal).Methods(http.MethodGet)
	s.router.HandleFunc("/portfolios/{id}/accept", s.handleAccept).Methods(http.MethodPost)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "no such route")
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
