package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/woozymasta/mtalist/internal/ase"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/logger"
	"github.com/woozymasta/mtalist/internal/metrics"
	"github.com/woozymasta/mtalist/internal/models"
	"github.com/woozymasta/mtalist/internal/upstream"
)

// Strategy keeps a Cache up to date. Serve runs the background part, if any, until ctx is done;
// it matches the suture.Service interface.
type Strategy interface {
	// Serve runs background refreshing until ctx is canceled.
	Serve(ctx context.Context) error

	// Snapshot returns the snapshot readers should see.
	Snapshot(ctx context.Context) *Snapshot

	// Refresh runs one refresh cycle now.
	Refresh(ctx context.Context) error

	// String returns the strategy name.
	String() string
}

// Enricher adds data that is not on the wire to freshly decoded records.
type Enricher func(servers []models.Server)

// NewStrategy builds the strategy selected by cfg.Strategy.
func NewStrategy(cfg config.List, c *Cache, src upstream.Source, enrich Enricher) (Strategy, error) {
	r := newRefresher(cfg.Strategy, c, src, enrich)

	switch cfg.Strategy {
	case config.StrategyPeriodic:
		return &Periodic{refresher: r, interval: cfg.Interval}, nil
	case config.StrategyConditional:
		return &Conditional{refresher: r, interval: cfg.Interval}, nil
	case config.StrategyDebounced:
		return newDebounced(r, cfg.Cooldown), nil
	}

	return nil, fmt.Errorf("unknown refresh strategy %q", cfg.Strategy)
}

// refresher is the part shared by all strategies: fetch, decode, enrich and replace.
type refresher struct {
	cache  *Cache
	source upstream.Source
	enrich Enricher
	log    zerolog.Logger
	name   string

	// serializes refresh cycles, there is a single writer at a time
	mu sync.Mutex
}

func newRefresher(name string, c *Cache, src upstream.Source, enrich Enricher) *refresher {
	return &refresher{
		cache:  c,
		source: src,
		enrich: enrich,
		name:   name,
		log:    logger.Component("cache").With().Str("strategy", name).Logger(),
	}
}

func (r *refresher) String() string {
	return r.name
}

// fetch downloads and decodes the full list and publishes it. On any error the
// current snapshot stays in place.
func (r *refresher) fetch(ctx context.Context, modified string) error {
	start := time.Now()
	defer func() {
		metrics.RefreshSeconds.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
	}()

	body, err := r.source.Fetch(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues(r.name, metrics.ResultFetchErr).Inc()
		return fmt.Errorf("fetch master list: %w", err)
	}

	h, servers, err := ase.DecodeWithHeader(body)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues(r.name, metrics.ResultDecodeErr).Inc()
		return fmt.Errorf("decode master list: %w", err)
	}

	if u := h.Flags.Unknown(); u != 0 {
		r.log.Debug().Str("flags", h.Flags.String()).Msg("Master list carries unknown fields, skipped by entry length")
	}

	if r.enrich != nil {
		r.enrich(servers)
	}

	snap := r.cache.Replace(servers, modified)

	metrics.RefreshTotal.WithLabelValues(r.name, metrics.ResultOK).Inc()
	metrics.ListServers.Set(float64(snap.Len()))
	metrics.ListPlayers.Set(float64(snap.Players()))
	metrics.ListBytes.Set(float64(len(body)))
	metrics.ListUpdatedSeconds.Set(float64(snap.Updated().Unix()))

	r.log.Debug().
		Int("servers", snap.Len()).
		Int("bytes", len(body)).
		Uint16("version", h.Version).
		Str("modified", modified).
		Dur("duration", time.Since(start)).
		Msg("Master list refreshed")

	return nil
}

// every runs fn immediately and then on each tick until ctx is done.
func (r *refresher) every(ctx context.Context, interval time.Duration, fn func(context.Context) error) error {
	r.log.Info().Dur("interval", interval).Msg("Refresh loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn().Err(err).Msg("Master list refresh failed, keeping previous snapshot")
		}

		select {
		case <-ctx.Done():
			r.log.Info().Msg("Refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Periodic refetches the whole list on a fixed interval regardless of upstream changes.
type Periodic struct {
	*refresher
	interval time.Duration
}

// Serve runs the refresh loop.
func (p *Periodic) Serve(ctx context.Context) error {
	return p.every(ctx, p.interval, p.Refresh)
}

// Refresh fetches the list now.
func (p *Periodic) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.fetch(ctx, "")
}

// Snapshot returns the current snapshot without blocking on the network.
func (p *Periodic) Snapshot(_ context.Context) *Snapshot {
	return p.cache.Snapshot()
}

// Conditional checks the upstream last modification token on every tick and only
// downloads the list when the token differs from the one of the current snapshot.
type Conditional struct {
	*refresher
	interval time.Duration
}

// Serve runs the revalidation loop.
func (c *Conditional) Serve(ctx context.Context) error {
	return c.every(ctx, c.interval, c.Refresh)
}

// Refresh revalidates now. A failed or empty token check falls back to a full fetch.
func (c *Conditional) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.source.LastModified(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("Last-Modified check failed, doing full fetch")
		token = ""
	}

	current := c.cache.Snapshot()
	if token != "" && !current.Empty() && token == current.Modified() {
		metrics.RefreshTotal.WithLabelValues(c.name, metrics.ResultSkipped).Inc()
		c.log.Trace().Str("modified", token).Msg("Master list unchanged")
		return nil
	}

	return c.fetch(ctx, token)
}

// Snapshot returns the current snapshot without blocking on the network.
func (c *Conditional) Snapshot(_ context.Context) *Snapshot {
	return c.cache.Snapshot()
}

// Debounced refreshes on read. The first read after the cooldown expired fetches the list
// synchronously; reads during the fetch or the cooldown get the current snapshot at once.
type Debounced struct {
	*refresher
	now      func() time.Time
	until    time.Time
	cooldown time.Duration
	gate     sync.Mutex
	busy     bool
}

// newDebounced wraps a refresher with a read-triggered cooldown gate.
func newDebounced(r *refresher, cooldown time.Duration) *Debounced {
	return &Debounced{refresher: r, cooldown: cooldown, now: time.Now}
}

// Serve has nothing to do in the background; it blocks until ctx is done.
func (d *Debounced) Serve(ctx context.Context) error {
	d.log.Info().Dur("cooldown", d.cooldown).Msg("Refreshing on demand")
	<-ctx.Done()

	return ctx.Err()
}

// Snapshot refreshes first when the cooldown allows it.
func (d *Debounced) Snapshot(ctx context.Context) *Snapshot {
	if !d.acquire() {
		metrics.RefreshTotal.WithLabelValues(d.name, metrics.ResultDebounced).Inc()
		return d.cache.Snapshot()
	}

	// the fetch outlives a reader that gives up, others may still want the result
	err := d.Refresh(context.WithoutCancel(ctx))
	d.release()
	if err != nil {
		d.log.Warn().Err(err).Msg("Master list refresh failed, serving previous snapshot")
	}

	return d.cache.Snapshot()
}

// Refresh fetches the list now, bypassing the cooldown gate.
func (d *Debounced) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.fetch(ctx, "")
}

func (d *Debounced) acquire() bool {
	d.gate.Lock()
	defer d.gate.Unlock()

	if d.busy || d.now().Before(d.until) {
		return false
	}
	d.busy = true

	return true
}

// release closes the gate for one cooldown, failed fetches included.
func (d *Debounced) release() {
	d.gate.Lock()
	defer d.gate.Unlock()

	d.busy = false
	d.until = d.now().Add(d.cooldown)
}
