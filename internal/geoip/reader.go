package geoip

import (
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/woozymasta/mtalist/internal/models"
)

// Provider wraps the GeoIP2 reader. The reader can be swapped at runtime after the
// database was updated; a nil Provider resolves nothing.
type Provider struct {
	db *geoip2.Reader
	mu sync.RWMutex
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Reload opens path and replaces the current reader with it.
func (p *Provider) Reload(path string) error {
	db, err := geoip2.Open(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.db
	p.db = db
	p.mu.Unlock()

	if old != nil {
		return old.Close()
	}

	return nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil

	return err
}

// CountryCode looks up the ISO country code (e.g., "US", "DE") for a given IP address string.
// It returns an empty string if the IP is invalid or the country cannot be determined.
func (p *Provider) CountryCode(ipStr string) string {
	if p == nil {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// Enrich sets Country on every record. Many servers share an address, so each
// address is looked up once per call.
func (p *Provider) Enrich(servers []models.Server) {
	if p == nil {
		return
	}

	seen := make(map[string]string)
	for i := range servers {
		code, ok := seen[servers[i].IP]
		if !ok {
			code = p.CountryCode(servers[i].IP)
			seen[servers[i].IP] = code
		}
		servers[i].Country = code
	}
}
