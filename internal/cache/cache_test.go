package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), time.Minute, nil)
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet(t *testing.T) {
	c := openTestCache(t)

	if err := c.Set("diff:D12345", "raw diff text", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, ok, err := c.Get("diff:D12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if v != "raw diff text" {
		t.Errorf("expected stored value, got %q", v)
	}
}

func TestGetMiss(t *testing.T) {
	c := openTestCache(t)

	_, ok, err := c.Get("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected miss for absent key")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := openTestCache(t)

	if err := c.Set("short", "v", 100*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	_, ok, err := c.Get("short")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expired entry must behave as a miss")
	}

	// Lazy eviction: the row is gone after the expired read.
	var count int
	if err := c.conn.QueryRow("SELECT COUNT(*) FROM cache_entries WHERE key = 'short'").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Error("expired entry should be evicted on read")
	}
}

func TestOverwrite(t *testing.T) {
	c := openTestCache(t)

	c.Set("k", "first", 0)
	c.Set("k", "second", 0)

	v, ok, _ := c.Get("k")
	if !ok || v != "second" {
		t.Errorf("expected last write to win, got %q (hit=%v)", v, ok)
	}
}

func TestInvalidatePattern(t *testing.T) {
	c := openTestCache(t)

	c.Set("diff:D1", "a", 0)
	c.Set("diff:D2", "b", 0)
	c.Set("review:D1", "c", 0)

	n, err := c.Invalidate("diff:*")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	if _, ok, _ := c.Get("review:D1"); !ok {
		t.Error("unmatched key should survive invalidation")
	}
}

func TestInvalidateTreatsUnderscoreLiterally(t *testing.T) {
	c := openTestCache(t)

	c.Set("diff:feat_x", "a", 0)
	c.Set("diff:featax", "b", 0)
	c.Set("diff:100%done", "c", 0)

	n, err := c.Invalidate("diff:feat_x")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if n != 1 {
		t.Errorf("underscore must not act as a wildcard: removed %d", n)
	}
	if _, ok, _ := c.Get("diff:featax"); !ok {
		t.Error("sibling key deleted by wildcard leak")
	}

	n, err = c.Invalidate("diff:100%done")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if n != 1 {
		t.Errorf("percent must match literally: removed %d", n)
	}

	// "*" is still the one wildcard.
	if n, _ := c.Invalidate("diff:*"); n != 1 {
		t.Errorf("expected 1 remaining diff key, removed %d", n)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := openTestCache(t)

	type payload struct {
		Revision string `json:"revision"`
		Count    int    `json:"count"`
	}

	if err := c.SetJSON("p", payload{Revision: "D9", Count: 3}, 0); err != nil {
		t.Fatalf("set json: %v", err)
	}

	var got payload
	ok, err := c.GetJSON("p", &got)
	if err != nil {
		t.Fatalf("get json: %v", err)
	}
	if !ok || got.Revision != "D9" || got.Count != 3 {
		t.Errorf("unexpected payload: %+v (hit=%v)", got, ok)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")

	c1, err := Open(path, time.Minute, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c1.Set("durable", "v", time.Hour)
	c1.Close()

	c2, err := Open(path, time.Minute, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	v, ok, _ := c2.Get("durable")
	if !ok || v != "v" {
		t.Errorf("entry should survive restart, got %q (hit=%v)", v, ok)
	}
}
