package upstream

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/woozymasta/mtalist/internal/fake"
)

// Fake serves a generated list from memory. The list is regenerated, and its
// last modification token changes, once per rotate period.
type Fake struct {
	mu      sync.Mutex
	rand    *rand.Rand
	now     func() time.Time
	body    []byte
	built   time.Time
	count   int
	rotate  time.Duration
	version uint32
}

// NewFake creates a source of count random servers.
func NewFake(count int, rotate time.Duration) *Fake {
	return &Fake{
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		count:  count,
		rotate: rotate,
	}
}

// Fetch returns the current generated list.
func (f *Fake) Fetch(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.refresh(); err != nil {
		return nil, err
	}

	return f.body, nil
}

// LastModified returns the generation time of the current list.
func (f *Fake) LastModified(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.refresh(); err != nil {
		return "", err
	}

	return ModifiedFormat(f.built), nil
}

func (f *Fake) refresh() error {
	now := f.now()
	if f.body != nil && now.Sub(f.built) < f.rotate {
		return nil
	}

	f.version++
	body, err := fake.GenerateList(f.rand, f.count, f.version)
	if err != nil {
		return err
	}
	f.body = body
	f.built = now.Truncate(time.Second)

	return nil
}
