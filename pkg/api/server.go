// Package api serves segments and lookups over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssargent/freyja-vlog/pkg/logging"
	"github.com/ssargent/freyja-vlog/pkg/metrics"
)

// Server holds the API server state
type Server struct {
	store   ISegmentStore
	config  ServerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server
func NewServer(store ISegmentStore, config ServerConfig, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		store:   store,
		config:  config,
		metrics: m,
		logger:  logging.OrDiscard(logger),
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	m := s.metrics
	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(apiKeyMiddleware(s.config.APIKey, m))
		}

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/stats", m.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))

		// Segments
		r.Get("/segments", m.InstrumentHandler("GET", "/api/v1/segments", s.handleListSegments))
		r.Post("/segments", m.InstrumentHandler("POST", "/api/v1/segments", s.handleFlush))
		r.Get("/segments/{id}", m.InstrumentHandler("GET", "/api/v1/segments/{id}", s.handleGetSegment))
		r.Delete("/segments/{id}", m.InstrumentHandler("DELETE", "/api/v1/segments/{id}", s.handleRemoveSegment))
		r.Get("/segments/{id}/records", m.InstrumentHandler("GET", "/api/v1/segments/{id}/records", s.handleRecords))
		r.Get("/segments/{id}/verify", m.InstrumentHandler("GET", "/api/v1/segments/{id}/verify", s.handleVerify))

		// Lookups
		r.Get("/kv", m.InstrumentHandler("GET", "/api/v1/kv", s.handleListKeys))
		r.Get("/kv/{key}", m.InstrumentHandler("GET", "/api/v1/kv/{key}", s.handleGet))
	})

	return r
}

// StartServer serves until ctx is canceled, then shuts down gracefully
func StartServer(ctx context.Context, store ISegmentStore, config ServerConfig, m *metrics.Metrics, logger *slog.Logger) error {
	server := NewServer(store, config, m, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Bind, config.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("starting REST API server", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		server.logger.Info("shutting down REST API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
