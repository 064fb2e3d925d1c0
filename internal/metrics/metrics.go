// Package metrics declares the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh and query results.
const (
	ResultOK        = "ok"
	ResultSkipped   = "skipped"
	ResultFetchErr  = "fetch_error"
	ResultDecodeErr = "decode_error"
	ResultDebounced = "debounced"
	ResultCached    = "cached"
	ResultError     = "error"
)

var (
	// RefreshTotal counts refresh attempts by strategy and result.
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mtalist",
		Subsystem: "list",
		Name:      "refresh_total",
		Help:      "Master list refresh attempts by strategy and result.",
	}, []string{"strategy", "result"})
	// RefreshSeconds observes how long a fetch and decode took.
	RefreshSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mtalist",
		Subsystem: "list",
		Name:      "refresh_seconds",
		Help:      "Duration of master list fetch and decode.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"strategy"})
	// ListServers is the number of servers in the current snapshot.
	ListServers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mtalist",
		Subsystem: "list",
		Name:      "servers",
		Help:      "Servers in the current snapshot.",
	})
	// ListPlayers is the player total of the current snapshot.
	ListPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mtalist",
		Subsystem: "list",
		Name:      "players",
		Help:      "Players reported by the current snapshot.",
	})
	// ListBytes is the size of the last decoded body.
	ListBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mtalist",
		Subsystem: "list",
		Name:      "body_bytes",
		Help:      "Size of the last decoded master list body.",
	})
	// ListUpdatedSeconds is the unix time of the last successful refresh.
	ListUpdatedSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mtalist",
		Subsystem: "list",
		Name:      "updated_timestamp_seconds",
		Help:      "Unix time of the last successful refresh.",
	})
	// QueryTotal counts live queries served by the API by result.
	QueryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mtalist",
		Subsystem: "query",
		Name:      "total",
		Help:      "Live server queries by result.",
	}, []string{"result"})
)
