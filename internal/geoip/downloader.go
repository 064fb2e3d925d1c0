// Package geoip keeps a MaxMind country database on disk and resolves server addresses to country codes.
package geoip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/mtalist/internal/logger"
	"github.com/woozymasta/mtalist/internal/vars"
)

// EnsureDB checks that the database at path exists and is younger than maxAge.
// Otherwise it downloads a fresh copy from url. It reports whether the file changed.
func EnsureDB(ctx context.Context, path, url string, maxAge time.Duration) (bool, error) {
	log := logger.Component("geoip")

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if time.Since(info.ModTime()) < maxAge {
			log.Debug().Str("path", path).Msg("GeoIP database is up to date")
			return false, nil
		}
		log.Info().Str("path", path).Msg("GeoIP database is outdated, updating...")
	case os.IsNotExist(err):
		log.Info().Str("path", path).Msg("GeoIP database missing, downloading...")
	default:
		return false, err
	}

	if url == "" {
		return false, fmt.Errorf("no download url for %s", path)
	}

	if err := downloadFile(ctx, path, url); err != nil {
		return false, err
	}

	return true, nil
}

// downloadFile writes url to path through a temporary file so readers never see a partial database.
func downloadFile(ctx context.Context, path string, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", vars.UserAgent(""))

	resp, err := http.DefaultClient.Do(req) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download GeoIP database: unexpected status %d", resp.StatusCode)
	}

	tmpPath := path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
