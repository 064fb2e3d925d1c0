package upstream

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/mtalist/internal/ase"
	"github.com/woozymasta/mtalist/internal/config"
)

func TestHTTPFetchAndLastModified(t *testing.T) {
	body := []byte{0, 16, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	modified := "Wed, 21 Oct 2015 07:28:00 GMT"

	var gets, heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.UserAgent(), "mtalist/") {
			t.Errorf("User-Agent = %q, want mtalist/ prefix", r.UserAgent())
		}
		w.Header().Set("Last-Modified", modified)
		switch r.Method {
		case http.MethodGet:
			gets.Add(1)
			_, _ = w.Write(body)
		case http.MethodHead:
			heads.Add(1)
		}
	}))
	defer srv.Close()

	src := NewHTTP(config.List{URL: srv.URL, Timeout: time.Second})

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("Fetch() = %v, want %v", got, body)
	}

	token, err := src.LastModified(context.Background())
	if err != nil {
		t.Fatalf("LastModified() error = %v", err)
	}
	if token != modified {
		t.Errorf("LastModified() = %q, want %q", token, modified)
	}

	if gets.Load() != 1 || heads.Load() != 1 {
		t.Errorf("requests = %d GET, %d HEAD, want 1 and 1", gets.Load(), heads.Load())
	}
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTP(config.List{URL: srv.URL, Timeout: time.Second})

	_, err := src.Fetch(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch() error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Errorf("StatusError.Code = %d, want %d", statusErr.Code, http.StatusBadGateway)
	}

	if _, err := src.LastModified(context.Background()); !errors.As(err, &statusErr) {
		t.Errorf("LastModified() error = %v, want *StatusError", err)
	}
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src := NewHTTP(config.List{URL: url, Timeout: time.Second})
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("Fetch() error = nil for a closed server")
	}
}

func TestFakeRotates(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(10, time.Minute)
	f.now = func() time.Time { return now }

	first, err := f.LastModified(context.Background())
	if err != nil {
		t.Fatalf("LastModified() error = %v", err)
	}

	body, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	servers, err := ase.Decode(body)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(servers) != 10 {
		t.Errorf("len(servers) = %d, want 10", len(servers))
	}

	now = now.Add(30 * time.Second)
	if same, _ := f.LastModified(context.Background()); same != first {
		t.Errorf("LastModified() = %q before rotation, want %q", same, first)
	}

	now = now.Add(time.Minute)
	if next, _ := f.LastModified(context.Background()); next == first {
		t.Errorf("LastModified() = %q after rotation, want a new token", next)
	}
}
