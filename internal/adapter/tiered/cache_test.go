package tiered_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/GovForge/internal/adapter/tiered"
	"github.com/Strob0t/GovForge/internal/port/cache/cachetest"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func TestTiered_Compliance(t *testing.T) {
	cachetest.Run(t, tiered.New(newMemCache(), newMemCache(), time.Minute), nil)
}

func TestTiered_L2HitBackfillsL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 2*time.Second)
	ctx := context.Background()

	l2.data["proposal.p1"] = []byte("v")
	val, found, err := c.Get(ctx, "proposal.p1")
	if err != nil || !found || string(val) != "v" {
		t.Fatalf("expected L2 hit, got %q %v %v", val, found, err)
	}
	if string(l1.data["proposal.p1"]) != "v" {
		t.Fatal("expected L1 backfill")
	}
	if l1.ttls["proposal.p1"] != 2*time.Second {
		t.Fatalf("backfill should use the L1 TTL, got %v", l1.ttls["proposal.p1"])
	}
}

func TestTiered_SetCapsL1TTL(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 2*time.Second)
	_ = c.Set(context.Background(), "k", []byte("v"), time.Hour)
	if l1.ttls["k"] != 2*time.Second || l2.ttls["k"] != time.Hour {
		t.Fatalf("unexpected TTLs l1=%v l2=%v", l1.ttls["k"], l2.ttls["k"])
	}
}

func TestTiered_L2OutageDegrades(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.err = errors.New("nats down")
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("L2 outage must not fail Set: %v", err)
	}
	val, found, err := c.Get(ctx, "k")
	if err != nil || !found || string(val) != "v" {
		t.Fatalf("expected L1 hit during outage, got %q %v %v", val, found, err)
	}
	if _, found, err := c.Get(ctx, "other"); err != nil || found {
		t.Fatalf("L2 outage on miss should report a clean miss, got %v %v", found, err)
	}
	if err := c.Delete(ctx, "k"); err == nil {
		t.Fatal("L2 delete failure should be reported")
	}
	if _, ok := l1.data["k"]; ok {
		t.Fatal("L1 entry must be removed even when L2 fails")
	}
}
