// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"
	"github.com/woozymasta/mtalist/internal/cache"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/game"
	"github.com/woozymasta/mtalist/internal/logger"
	"github.com/woozymasta/mtalist/internal/models"
	"golang.org/x/time/rate"
)

const (
	// limiterIdle is how long the bucket of a silent client is kept.
	limiterIdle = 10 * time.Minute

	// limiterSize caps the number of tracked clients.
	limiterSize = 65536
)

// New creates a new Server serving snapshots from strategy.
func New(strategy cache.Strategy, cfg *config.Config) *Server {
	origins := make(map[string]struct{}, len(cfg.Server.AllowedOrigins))
	anyOrigin := false
	for _, o := range cfg.Server.AllowedOrigins {
		if o == "*" {
			anyOrigin = true
			continue
		}
		origins[o] = struct{}{}
	}

	s := &Server{
		strategy:       strategy,
		query:          game.QueryServer,
		limiters:       newLimiters(limiterIdle),
		allowedOrigins: origins,
		anyOrigin:      anyOrigin,
		queryOptions:   cfg.Query,
		address:        cfg.Server.Address,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.RateLimit.Count,
		hardLimitWin:   cfg.RateLimit.Window,
		writeTimeout:   cfg.List.Timeout + 5*time.Second,
	}

	// a zero TTL would mean entries never expire
	if cfg.Query.CacheTTL > 0 && cfg.Query.CacheSize > 0 {
		s.liveCache = expirable.NewLRU[string, *models.LiveInfo](cfg.Query.CacheSize, nil, cfg.Query.CacheTTL)
	}

	return s
}

// newLimiters returns the per-client bucket store forgetting clients silent for idle.
func newLimiters(idle time.Duration) *expirable.LRU[string, *rate.Limiter] {
	return expirable.NewLRU[string, *rate.Limiter](limiterSize, nil, idle)
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/list", http.HandlerFunc(s.handleList))
	mux.Handle("GET /api/server", s.RateLimitMiddleware(http.HandlerFunc(s.handleServerQuery)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /", http.HandlerFunc(s.handleIndex))

	return s.LoggingMiddleware(s.CORSMiddleware(mux))
}

// Serve listens on the configured address until ctx is canceled, then shuts the
// server down gracefully. It matches the suture.Service interface.
func (s *Server) Serve(ctx context.Context) error {
	log := logger.Component("http")

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.address).Msg("Server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		// a listener that cannot bind will not recover on restart
		return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func (s *Server) String() string {
	return "http"
}
