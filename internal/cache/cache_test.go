package cache

import (
	"context"
	"testing"
	"time"

	"tracklistify/internal/logger"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), ttl, logger.New(false))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetAndGet(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Get on empty cache must miss")
	}

	if err := c.Set(ctx, "seg1", `{"title":"Strobe"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	payload, ok := c.Get(ctx, "seg1")
	if !ok {
		t.Fatal("Get missed a fresh entry")
	}
	if payload != `{"title":"Strobe"}` {
		t.Errorf("payload = %q", payload)
	}
}

func TestSetReplaces(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "seg1", "old"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "seg1", "new"); err != nil {
		t.Fatal(err)
	}
	payload, ok := c.Get(ctx, "seg1")
	if !ok || payload != "new" {
		t.Errorf("Get = %q (%v), want new entry", payload, ok)
	}
	if n, err := c.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count = %d (%v), want 1", n, err)
	}
}

func TestExpiredEntryMissesAndPurges(t *testing.T) {
	c := openTestCache(t, time.Nanosecond)
	ctx := context.Background()

	if err := c.Set(ctx, "seg1", "payload"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get(ctx, "seg1"); ok {
		t.Error("expired entry must miss")
	}
	if n, _ := c.Count(ctx); n != 0 {
		t.Errorf("expired row not purged, count = %d", n)
	}
}

func TestClear(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, key, "payload"); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ := c.Count(ctx); n != 0 {
		t.Errorf("count after Clear = %d, want 0", n)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	if _, ok := c.Get(ctx, "key"); ok {
		t.Error("nil cache must miss")
	}
	if err := c.Set(ctx, "key", "payload"); err != nil {
		t.Errorf("nil cache Set = %v", err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Errorf("nil cache Clear = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("nil cache Close = %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := Open(dir, time.Hour, logger.New(false))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "seg1", "payload"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(dir, time.Hour, logger.New(false))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if payload, ok := c.Get(ctx, "seg1"); !ok || payload != "payload" {
		t.Errorf("Get after reopen = %q (%v)", payload, ok)
	}
}
