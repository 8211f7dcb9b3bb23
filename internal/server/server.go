package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/api"
	"github.com/fragezeichen/roulette/internal/config"
	"github.com/fragezeichen/roulette/internal/handlers"
	"github.com/fragezeichen/roulette/internal/headers"
	"github.com/fragezeichen/roulette/internal/middleware"
	"github.com/fragezeichen/roulette/internal/ratelimit"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	logger     logrus.FieldLogger
}

// New creates a new HTTP server with all routes and middleware. limiter may
// be nil when rate limiting is disabled.
func New(
	logger logrus.FieldLogger,
	cfg *config.Config,
	service api.Service,
	limiter ratelimit.Service,
) (*Server, error) {
	mux := http.NewServeMux()

	routes := []struct {
		pattern string
		handler http.Handler
	}{
		{"GET /health", handlers.Health(service.Size)},
		{"GET /metrics", promhttp.Handler()},
		{"GET /api/v1/random", api.NewRandomHandler(service, logger)},
		{"GET /api/v1/catalog", api.NewCatalogHandler(service, logger)},
		{"GET /api/v1/buckets", api.NewBucketsHandler(service, logger)},
		{"GET /api/v1/stats", api.NewStatsHandler(service, logger)},
		{"POST /api/v1/admin/refresh", api.NewRefreshHandler(service, logger)},
	}

	for _, route := range routes {
		mux.Handle(route.pattern, route.handler)
		logger.WithField("route", route.pattern).Info("Registered route")
	}

	headerManager, err := headers.NewManager(cfg.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to create header policies: %w", err)
	}

	// Apply middleware chain: Headers → RateLimit → Logging → Metrics → Recovery
	var handler http.Handler = mux

	handler = middleware.Headers(headerManager, logger)(handler)

	if limiter != nil {
		handler = middleware.RateLimit(logger, cfg.RateLimiting, limiter)(handler)
		logger.WithField("rules", len(cfg.RateLimiting.Rules)).Info("Rate limiting enabled")
	}

	handler = middleware.Logging(logger)(handler)
	handler = middleware.Metrics()(handler)
	handler = middleware.Recovery(logger)(handler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}, nil
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server (blocking call).
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	return s.httpServer.Shutdown(ctx)
}
