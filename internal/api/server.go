// Package api exposes the monitoring data over HTTP. Routes mirror the
// stores: meter reading ingestion and feeds, the capacity report, metric
// series and site queries.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/processor"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

// Stores bundles the read-side dependencies of the API.
type Stores struct {
	Sites    store.SiteStore
	Metrics  store.MetricStore
	Feed     store.FeedStore
	Capacity store.CapacityStore
}

// Server handles HTTP requests for the monitoring API.
type Server struct {
	router   *mux.Router
	log      zerolog.Logger
	pipeline *processor.Pipeline
	stores   Stores
	limiter  store.RateLimiter
	limit    store.Limit
}

// Option configures optional server behavior.
type Option func(*Server)

// WithRateLimiter applies the limiter to every API route.
func WithRateLimiter(limiter store.RateLimiter, limit store.Limit) Option {
	return func(s *Server) {
		s.limiter = limiter
		s.limit = limit
	}
}

// NewServer builds the API server and its routes.
func NewServer(pipeline *processor.Pipeline, stores Stores, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		log:      log,
		pipeline: pipeline,
		stores:   stores,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requestLogger)
	if s.limiter != nil {
		api.Use(s.rateLimit)
	}

	api.HandleFunc("/meterreadings", s.handleCreateMeterReadings).Methods(http.MethodPost)
	api.HandleFunc("/meterreadings", s.handleGlobalFeed).Methods(http.MethodGet)
	api.HandleFunc("/meterreadings/{siteId:[0-9]+}", s.handleSiteFeed).Methods(http.MethodGet)
	api.HandleFunc("/capacity", s.handleCapacityReport).Methods(http.MethodGet)
	api.HandleFunc("/metrics/{siteId:[0-9]+}", s.handleSiteMetrics).Methods(http.MethodGet)
	api.HandleFunc("/sites", s.handleListSites).Methods(http.MethodGet)
	api.HandleFunc("/sites/{siteId:[0-9]+}", s.handleGetSite).Methods(http.MethodGet)
}

// Handler returns the root handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
