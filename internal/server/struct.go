package server

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/woozymasta/mtalist/internal/cache"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/models"
	"golang.org/x/time/rate"
)

// queryFunc performs a live query of one game server.
type queryFunc func(ctx context.Context, ip string, port uint16, opts config.Query) (*models.LiveInfo, error)

// Server holds the dependencies, configuration, and runtime state required
// to serve the cached master list and live queries over HTTP.
type Server struct {
	// strategy decides how fresh the served snapshot is; with the debounced
	// strategy a list request may trigger a refresh.
	strategy cache.Strategy

	// query performs live server queries, game.QueryServer outside of tests.
	query queryFunc

	// liveCache memoizes live query results per ip:port for a short time so bursts
	// of page loads do not flood game servers. Nil when memoization is disabled.
	liveCache *expirable.LRU[string, *models.LiveInfo]

	// limiters holds one token bucket per client IP; idle entries expire.
	limiters *expirable.LRU[string, *rate.Limiter]

	// limitersMu makes get-or-create on limiters atomic.
	limitersMu sync.Mutex

	// allowedOrigins is the set of origins allowed by CORS.
	allowedOrigins map[string]struct{}

	// queryOptions holds timeouts and ports for live queries.
	queryOptions config.Query

	// address is the listen address of the HTTP server.
	address string

	// hardLimitCount is the maximum number of live query requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the rate limiter.
	hardLimitWin time.Duration

	// writeTimeout bounds a response; a debounced list request may wait for a full fetch.
	writeTimeout time.Duration

	// anyOrigin is set when "*" is among the allowed origins.
	anyOrigin bool

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}
