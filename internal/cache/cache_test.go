package cache

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/woozymasta/mtalist/internal/models"
)

func TestCacheStartsEmpty(t *testing.T) {
	c := New()
	snap := c.Snapshot()

	if !snap.Empty() {
		t.Error("Empty() = false for a new cache")
	}
	if snap.Len() != 0 {
		t.Errorf("Len() = %d, want 0", snap.Len())
	}

	body, etag, err := snap.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if string(body) != "[]" {
		t.Errorf("JSON() = %s, want []", body)
	}
	if etag == "" {
		t.Error("JSON() returned an empty ETag")
	}
}

func TestCacheReplace(t *testing.T) {
	c := New()
	before := c.Snapshot()

	servers := []models.Server{{IP: "1.2.3.4", Port: 22003, Players: 3}, {IP: "5.6.7.8", Port: 22005, Players: 4}}
	published := c.Replace(servers, "token")

	after := c.Snapshot()
	if after != published {
		t.Error("Snapshot() does not return the published snapshot")
	}
	if after == before {
		t.Error("Replace() mutated the previous snapshot instead of replacing it")
	}
	if before.Len() != 0 {
		t.Errorf("previous snapshot Len() = %d, want 0", before.Len())
	}
	if after.Empty() || after.Len() != 2 || after.Modified() != "token" {
		t.Errorf("snapshot = empty %v, len %d, modified %q", after.Empty(), after.Len(), after.Modified())
	}
	if after.Players() != 7 {
		t.Errorf("Players() = %d, want 7", after.Players())
	}
}

func TestSnapshotServersIsACopy(t *testing.T) {
	c := New()
	c.Replace([]models.Server{{IP: "1.2.3.4", Name: "one", PlayerList: []string{"a", "b"}}}, "")

	copied := c.Snapshot().Servers()
	copied[0].Name = "changed"
	copied[0].PlayerList[0] = "changed"

	again := c.Snapshot().Servers()
	if again[0].Name != "one" || again[0].PlayerList[0] != "a" {
		t.Errorf("snapshot modified through Servers(): %+v", again[0])
	}
}

func TestSnapshotJSON(t *testing.T) {
	c := New()
	snap := c.Replace([]models.Server{{IP: "10.0.0.5", Port: 22003, Name: "Test Server"}}, "")

	body, etag, err := snap.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var decoded []models.Server
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 1 || decoded[0].Name != "Test Server" {
		t.Errorf("decoded = %+v", decoded)
	}

	body2, etag2, _ := snap.JSON()
	if !bytes.Equal(body, body2) || etag != etag2 {
		t.Error("JSON() is not stable for one snapshot")
	}

	other := c.Replace([]models.Server{{IP: "10.0.0.6", Port: 22003}}, "")
	if _, etag3, _ := other.JSON(); etag3 == etag {
		t.Error("different snapshots share an ETag")
	}
}

func TestCacheConcurrentReaders(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				snap := c.Snapshot()
				n := snap.Len()
				servers := snap.Servers()
				if len(servers) != n {
					t.Errorf("snapshot changed while reading: %d != %d", len(servers), n)
					return
				}
				for _, s := range servers {
					if int(s.Players) != n {
						t.Errorf("mixed snapshot: record of list %d in list of %d", s.Players, n)
						return
					}
				}
			}
		}()
	}

	for n := 1; n <= 200; n++ {
		servers := make([]models.Server, n)
		for i := range servers {
			servers[i] = models.Server{IP: "127.0.0.1", Players: uint16(n)}
		}
		c.Replace(servers, "")
	}

	close(stop)
	wg.Wait()
}
