// Package upstream fetches the raw master list from the server directory.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/vars"
)

// maxBodySize caps the master list body; the real list is a few hundred kilobytes.
const maxBodySize = 32 << 20

// Source provides the master list body and its last modification token.
type Source interface {
	// Fetch returns the complete response body.
	Fetch(ctx context.Context) ([]byte, error)

	// LastModified returns a token that changes whenever the body changes.
	// An empty token means the source can not tell.
	LastModified(ctx context.Context) (string, error)
}

// StatusError is returned for non 2xx upstream responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

// HTTP reads the list from an HTTP(S) URL.
type HTTP struct {
	client    *http.Client
	url       string
	userAgent string
}

// NewHTTP creates an HTTP source from the list configuration.
func NewHTTP(cfg config.List) *HTTP {
	return &HTTP{
		client:    &http.Client{Timeout: cfg.Timeout},
		url:       cfg.URL,
		userAgent: vars.UserAgent(cfg.UserAgent),
	}
}

// Fetch performs GET on the list URL.
func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.url, err)
	}

	return body, nil
}

// LastModified performs HEAD on the list URL and returns its Last-Modified header.
func (h *HTTP) LastModified(ctx context.Context) (string, error) {
	resp, err := h.do(ctx, http.MethodHead)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()

	return resp.Header.Get("Last-Modified"), nil
}

func (h *HTTP) do(ctx context.Context, method string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, h.url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &StatusError{Method: method, URL: h.url, Code: resp.StatusCode}
	}

	return resp, nil
}

// ModifiedFormat renders times as HTTP Last-Modified tokens.
func ModifiedFormat(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
