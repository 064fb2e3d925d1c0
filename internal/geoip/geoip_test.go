package geoip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/models"
)

func TestEnsureDB(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasPrefix(r.UserAgent(), "mtalist/") {
			t.Errorf("User-Agent = %q", r.UserAgent())
		}
		_, _ = w.Write([]byte("mmdb"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	ctx := context.Background()

	changed, err := EnsureDB(ctx, path, srv.URL, time.Hour)
	if err != nil {
		t.Fatalf("EnsureDB() error = %v", err)
	}
	if !changed || hits.Load() != 1 {
		t.Errorf("missing file: changed = %v, hits = %d", changed, hits.Load())
	}
	if data, _ := os.ReadFile(path); string(data) != "mmdb" {
		t.Errorf("file content = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	changed, err = EnsureDB(ctx, path, srv.URL, time.Hour)
	if err != nil || changed || hits.Load() != 1 {
		t.Errorf("fresh file: changed = %v, err = %v, hits = %d", changed, err, hits.Load())
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	changed, err = EnsureDB(ctx, path, srv.URL, time.Hour)
	if err != nil || !changed || hits.Load() != 2 {
		t.Errorf("stale file: changed = %v, err = %v, hits = %d", changed, err, hits.Load())
	}
}

func TestEnsureDBErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()

	if _, err := EnsureDB(context.Background(), filepath.Join(dir, "a.mmdb"), srv.URL, time.Hour); err == nil {
		t.Error("EnsureDB() error = nil for 404")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.mmdb")); !os.IsNotExist(err) {
		t.Error("failed download created the database file")
	}

	if _, err := EnsureDB(context.Background(), filepath.Join(dir, "b.mmdb"), "", time.Hour); err == nil {
		t.Error("EnsureDB() error = nil without url")
	}
}

func TestOpenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mmdb")
	if err := os.WriteFile(path, []byte("not a database"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Error("Open() error = nil for a broken database")
	}
}

func TestNilProvider(t *testing.T) {
	var p *Provider

	servers := []models.Server{{IP: "8.8.8.8", Country: "keep"}}
	p.Enrich(servers)

	if servers[0].Country != "keep" {
		t.Errorf("nil provider changed Country to %q", servers[0].Country)
	}
	if got := p.CountryCode("8.8.8.8"); got != "" {
		t.Errorf("CountryCode() = %q, want empty", got)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClosedProvider(t *testing.T) {
	p := &Provider{}

	servers := []models.Server{{IP: "8.8.8.8"}, {IP: "bogus"}}
	p.Enrich(servers)

	for _, s := range servers {
		if s.Country != "" {
			t.Errorf("Country = %q without a database", s.Country)
		}
	}
}

func TestUpdaterRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Hour} {
		u := NewUpdater(&Provider{}, config.GeoIP{Path: "x.mmdb", Interval: interval})

		err := u.Serve(context.Background())
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("interval %s: Serve() error = %v, want ErrDoNotRestart", interval, err)
		}
	}
}

func TestUpdaterStopsOnCancel(t *testing.T) {
	u := NewUpdater(&Provider{}, config.GeoIP{Path: filepath.Join(t.TempDir(), "x.mmdb"), Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := u.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
}
