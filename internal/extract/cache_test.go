package extract_test

import (
	"os"
	"path/filepath"
	"testing"

	"mvir/internal/extract"
)

func TestResponseCache_KeyIsDeterministic(t *testing.T) {
	cache := extract.NewResponseCache(t.TempDir())

	k1 := cache.Key("mock", "mock-model", 0.2, 2000, "prompt text")
	k2 := cache.Key("mock", "mock-model", 0.2, 2000, "prompt text")
	if k1 != k2 {
		t.Errorf("same inputs produced different keys: %q vs %q", k1, k2)
	}

	variants := []string{
		cache.Key("other", "mock-model", 0.2, 2000, "prompt text"),
		cache.Key("mock", "other-model", 0.2, 2000, "prompt text"),
		cache.Key("mock", "mock-model", 0.7, 2000, "prompt text"),
		cache.Key("mock", "mock-model", 0.2, 4000, "prompt text"),
		cache.Key("mock", "mock-model", 0.2, 2000, "other prompt"),
	}
	for i, k := range variants {
		if k == k1 {
			t.Errorf("variant %d collided with the base key", i)
		}
	}
}

func TestResponseCache_SetGetRoundTrip(t *testing.T) {
	cache := extract.NewResponseCache(t.TempDir())
	key := cache.Key("mock", "mock-model", 0, 2000, "p")

	if _, ok := cache.Get(key); ok {
		t.Fatal("Get hit before Set")
	}
	if err := cache.Set(key, `{"meta": {}}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get missed after Set")
	}
	if got != `{"meta": {}}` {
		t.Errorf("Get = %q", got)
	}
}

func TestResponseCache_CorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	cache := extract.NewResponseCache(dir)
	key := cache.Key("mock", "mock-model", 0, 2000, "p")

	if err := cache.Set(key, "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, key+".json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}
	if _, ok := cache.Get(key); ok {
		t.Error("Get hit on a corrupt entry, want miss")
	}
}
