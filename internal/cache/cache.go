// Package cache keeps the in-memory snapshot of the master list and the strategies that refresh it.
package cache

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/mtalist/internal/models"
)

// Snapshot is one complete decoded master list. It is never modified after it was published.
type Snapshot struct {
	updated  time.Time
	modified string
	servers  []models.Server

	once sync.Once
	body []byte
	etag string
	err  error
}

// Servers returns a deep copy of the records, safe for the caller to modify.
func (s *Snapshot) Servers() []models.Server {
	out := slices.Clone(s.servers)
	for i := range out {
		out[i].PlayerList = slices.Clone(out[i].PlayerList)
		out[i].SearchIgnore = slices.Clone(out[i].SearchIgnore)
	}

	return out
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.servers)
}

// Updated returns when the snapshot was published, zero for the initial empty snapshot.
func (s *Snapshot) Updated() time.Time {
	return s.updated
}

// Modified returns the upstream last modification token the snapshot was built from.
func (s *Snapshot) Modified() string {
	return s.modified
}

// Empty reports whether no refresh has succeeded yet.
func (s *Snapshot) Empty() bool {
	return s.updated.IsZero()
}

// Players returns the sum of player counts over all records.
func (s *Snapshot) Players() int {
	total := 0
	for i := range s.servers {
		total += int(s.servers[i].Players)
	}

	return total
}

// JSON returns the records encoded as a JSON array and a strong ETag of that body.
// Encoding happens once per snapshot.
func (s *Snapshot) JSON() ([]byte, string, error) {
	s.once.Do(func() {
		s.body, s.err = json.Marshal(s.servers)
		if s.err == nil {
			s.etag = fmt.Sprintf(`"%016x"`, xxhash.Sum64(s.body))
		}
	})

	return s.body, s.etag, s.err
}

// Cache owns the current snapshot. Readers and the refreshing writer may run concurrently;
// a reader always gets either the old or the new snapshot as a whole.
type Cache struct {
	mu      sync.RWMutex
	current *Snapshot
}

// New returns a cache holding an empty snapshot.
func New() *Cache {
	return &Cache{current: &Snapshot{servers: []models.Server{}}}
}

// Snapshot returns the current snapshot.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// Replace publishes a new snapshot built from servers. The cache takes ownership of the slice.
func (c *Cache) Replace(servers []models.Server, modified string) *Snapshot {
	if servers == nil {
		servers = []models.Server{}
	}

	snap := &Snapshot{
		servers:  servers,
		modified: modified,
		updated:  time.Now(),
	}

	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()

	return snap
}
