package geoip

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/logger"
)

// Updater re-downloads the database once it is older than the configured interval
// and hot-swaps the provider reader. It is meant to run under a supervisor.
type Updater struct {
	provider *Provider
	cfg      config.GeoIP
}

// NewUpdater returns an updater for p.
func NewUpdater(p *Provider, cfg config.GeoIP) *Updater {
	return &Updater{provider: p, cfg: cfg}
}

// Serve checks the database every interval until ctx is done.
func (u *Updater) Serve(ctx context.Context) error {
	log := logger.Component("geoip")

	if u.cfg.Interval <= 0 {
		return fmt.Errorf("%w: geoip update interval must be positive, got %s", suture.ErrDoNotRestart, u.cfg.Interval)
	}

	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		changed, err := EnsureDB(ctx, u.cfg.Path, u.cfg.URL, u.cfg.Interval)
		if err != nil {
			log.Warn().Err(err).Msg("GeoIP database update failed")
			continue
		}
		if !changed {
			continue
		}

		if err := u.provider.Reload(u.cfg.Path); err != nil {
			log.Warn().Err(err).Msg("GeoIP database reload failed")
			continue
		}
		log.Info().Str("path", u.cfg.Path).Msg("GeoIP database reloaded")
	}
}

func (u *Updater) String() string {
	return "geoip-updater"
}
