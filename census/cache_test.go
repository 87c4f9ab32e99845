package census

import (
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	mc, err := NewMemoryCache(4, time.Minute)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}

	mc.Set("a", []byte("one"))
	got, ok := mc.Get("a")
	if !ok || string(got) != "one" {
		t.Errorf("Get(a) = %q, %v; want one, true", got, ok)
	}
	if _, ok := mc.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	mc, err := NewMemoryCache(4, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}

	mc.Set("a", []byte("one"))
	time.Sleep(25 * time.Millisecond)
	if _, ok := mc.Get("a"); ok {
		t.Error("Get(a) after TTL = true, want false")
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	mc, err := NewMemoryCache(2, 0)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}

	mc.Set("a", []byte("1"))
	mc.Set("b", []byte("2"))
	mc.Set("c", []byte("3"))

	if _, ok := mc.Get("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := mc.Get("c"); !ok {
		t.Error("newest entry evicted")
	}
}

func TestNoopCache(t *testing.T) {
	nc := NewNoopCache()
	nc.Set("a", []byte("one"))
	if _, ok := nc.Get("a"); ok {
		t.Error("NoopCache stored a value")
	}
}
