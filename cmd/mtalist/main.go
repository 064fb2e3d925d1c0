// main is the entry point of the mtalist application.
// It initializes the configuration, logger, GeoIP provider, the master list cache and its
// refresh strategy, and runs the HTTP server under a supervisor.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"
	"github.com/woozymasta/mtalist/internal/cache"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/geoip"
	"github.com/woozymasta/mtalist/internal/logger"
	"github.com/woozymasta/mtalist/internal/probe"
	"github.com/woozymasta/mtalist/internal/server"
	"github.com/woozymasta/mtalist/internal/upstream"
	"github.com/woozymasta/mtalist/internal/vars"
)

// fakeRotate is how often the development upstream publishes a new list.
const fakeRotate = time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().
		Str("version", vars.Version).
		Str("strategy", cfg.List.Strategy).
		Msg("Starting mtalist service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GeoIP
	geo := openGeoIP(ctx, cfg.GeoIP)
	defer func() {
		if err := geo.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GeoIP provider")
		}
	}()

	var enrich cache.Enricher
	if geo != nil {
		enrich = geo.Enrich
	}

	// Master list
	store := cache.New()
	strategy, err := cache.NewStrategy(cfg.List, store, newSource(cfg.List), enrich)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize refresh strategy")
		return 1
	}

	if cfg.Probe.Enabled() {
		return runProbe(ctx, cfg, strategy, store)
	}

	sup := suture.New("mtalist", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn().Str("event", e.String()).Msg("Supervisor event")
		},
	})
	sup.Add(strategy)
	sup.Add(server.New(strategy, cfg))
	if geo != nil && cfg.GeoIP.URL != "" {
		sup.Add(geoip.NewUpdater(geo, cfg.GeoIP))
	}

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Supervisor stopped")
		return 1
	}

	log.Info().Msg("Server exited")
	return 0
}

// openGeoIP makes sure the database is present and opens it. Country lookup is
// optional, any failure disables it.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	if cfg.Path == "" {
		log.Info().Msg("GeoIP path is empty, country detection disabled")
		return nil
	}

	log.Info().Msg("Checking GeoIP database...")
	if _, err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geo, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return geo
}

func newSource(cfg config.List) upstream.Source {
	if cfg.FakeCount > 0 {
		log.Warn().Int("count", cfg.FakeCount).Msg("Serving generated master list, development mode")
		return upstream.NewFake(cfg.FakeCount, fakeRotate)
	}

	return upstream.NewHTTP(cfg)
}

// runProbe fetches the list once, live-queries the servers and prints a table.
func runProbe(ctx context.Context, cfg *config.Config, strategy cache.Strategy, store *cache.Cache) int {
	limit, err := cfg.Probe.Limit()
	if err != nil {
		log.Error().Err(err).Msg("Invalid probe limit")
		return 1
	}

	if err := strategy.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to fetch master list")
		return 1
	}

	results := probe.Run(ctx, store.Snapshot().Servers(), limit, cfg.Probe.Workers, cfg.Query)
	probe.Print(os.Stdout, results)

	return 0
}
