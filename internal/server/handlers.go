package server

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mtalist/assets"
	"github.com/woozymasta/mtalist/internal/game"
	"github.com/woozymasta/mtalist/internal/metrics"
	"github.com/woozymasta/mtalist/internal/vars"
)

// handleIndex serves the landing page (landing.min.html).
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	content, err := assets.ReadFile("landing.min.html")
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
}

// handleList returns the cached master list as a JSON array.
// The body is encoded once per snapshot, so an unchanged list answers
// If-None-Match with 304.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snap := s.strategy.Snapshot(r.Context())

	body, etag, err := snap.JSON()
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode master list")
		http.Error(w, "Encoding Error", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Server-Count", strconv.Itoa(snap.Len()))
	if !snap.Empty() {
		h.Set("Last-Modified", snap.Updated().UTC().Format(http.TimeFormat))
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// handleServerQuery performs a live query to a specific game server IP and port.
// Query params: ?ip=1.2.3.4&port=22003
func (s *Server) handleServerQuery(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	portStr := r.URL.Query().Get("port")

	if ip == "" || portStr == "" {
		http.Error(w, "Missing ip or port", http.StatusBadRequest)
		return
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		http.Error(w, "Invalid ip", http.StatusBadRequest)
		return
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		http.Error(w, "Invalid port", http.StatusBadRequest)
		return
	}

	key := game.Key(ip, uint16(port))
	if s.liveCache != nil {
		if info, ok := s.liveCache.Get(key); ok {
			metrics.QueryTotal.WithLabelValues(metrics.ResultCached).Inc()
			writeJSON(w, http.StatusOK, info)
			return
		}
	}

	info, err := s.query(r.Context(), ip, uint16(port), s.queryOptions)
	if err != nil {
		metrics.QueryTotal.WithLabelValues(metrics.ResultError).Inc()
		log.Debug().Err(err).Str("server", key).Msg("Live query failed")
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
		return
	}

	metrics.QueryTotal.WithLabelValues(metrics.ResultOK).Inc()
	if s.liveCache != nil {
		s.liveCache.Add(key, info)
	}

	writeJSON(w, http.StatusOK, info)
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
