package memcache

import (
	"testing"
	"time"
)

func TestSetGetDel(t *testing.T) {
	c := New(16, time.Hour)

	if _, ok, _ := c.Get("k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	if err := c.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := c.Get("k")
	if err != nil || !ok || string(val) != "v" {
		t.Fatalf("get: val=%q ok=%v err=%v", val, ok, err)
	}
	if err := c.Del("k", "other"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok, _ := c.Get("k"); ok {
		t.Fatal("key survived delete")
	}
}

func TestPerEntryTTL(t *testing.T) {
	c := New(16, time.Hour)
	if err := c.Set("k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := c.Get("k"); ok {
		t.Fatal("entry outlived its ttl")
	}
}

func TestOverwriteIsIdempotent(t *testing.T) {
	c := New(16, time.Hour)
	_ = c.Set("k", []byte("v1"), time.Minute)
	_ = c.Set("k", []byte("v2"), time.Minute)
	val, ok, _ := c.Get("k")
	if !ok || string(val) != "v2" {
		t.Fatalf("expected latest write, got %q ok=%v", val, ok)
	}
}
