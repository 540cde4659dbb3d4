// Package cachetest holds the behaviour every cache.Cache implementation must share.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/GovForge/internal/port/cache"
)

// Run exercises c. sync is called after writes for caches that apply them
// asynchronously; it may be nil.
func Run(t *testing.T, c cache.Cache, sync func()) {
	t.Helper()
	ctx := context.Background()
	settle := func() {
		if sync != nil {
			sync()
		}
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "proposal.p1", []byte(`{"id":"p1"}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle()
		val, found, err := c.Get(ctx, "proposal.p1")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != `{"id":"p1"}` {
			t.Fatalf("expected stored value, got %q found=%v", val, found)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "proposal.missing")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "proposal.del", []byte("x"), time.Minute)
		settle()
		if err := c.Delete(ctx, "proposal.del"); err != nil {
			t.Fatal(err)
		}
		settle()
		if _, found, _ := c.Get(ctx, "proposal.del"); found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "proposal.never"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "proposal.ow", []byte("v1"), time.Minute)
		settle()
		_ = c.Set(ctx, "proposal.ow", []byte("v2"), time.Minute)
		settle()
		val, found, err := c.Get(ctx, "proposal.ow")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %q", val)
		}
	})
}
