package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLLMCache_SaveGet(t *testing.T) {
	tmp := t.TempDir()
	c := &LLMCache{Dir: tmp}
	key := KeyFrom("model", "prompt")
	data := []byte(`{"content":"<html></html>"}`)
	if err := c.Save(context.Background(), key, data); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != string(data) {
		t.Fatalf("mismatch")
	}
	if _, ok, _ := c.Get(context.Background(), KeyFrom("model", "other")); ok {
		t.Fatal("expected miss for different prompt")
	}
}

func TestLLMCache_EntryRoundTripKeepsTruncation(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	key := KeyFrom("m", "p")
	if err := c.SaveEntry(context.Background(), key, Entry{Model: "m", Content: "<body>", Truncated: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	e, ok, err := c.GetEntry(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if !e.Truncated || e.Content != "<body>" || e.SavedAt.IsZero() {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestLLMCache_MalformedEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := &LLMCache{Dir: dir}
	key := KeyFrom("m", "p")
	if err := os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.GetEntry(context.Background(), key); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestLLMCache_LRUEnforcement(t *testing.T) {
	tmp := t.TempDir()
	c := &LLMCache{Dir: tmp}
	keys := []string{KeyFrom("m", "p1"), KeyFrom("m", "p2"), KeyFrom("m", "p3")}
	base := time.Now().Add(-time.Hour)
	for i, k := range keys {
		if err := c.Save(context.Background(), k, []byte(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(filepath.Join(tmp, k+".json"), ts, ts); err != nil {
			t.Fatal(err)
		}
	}
	// Get refreshes p1 so p2 becomes the oldest.
	if _, ok, _ := c.Get(context.Background(), keys[0]); !ok {
		t.Fatal("expected hit")
	}
	removed, err := EnforceLLMCacheLimits(tmp, 0, 2)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(tmp, keys[1]+".json")); !os.IsNotExist(err) {
		t.Fatal("expected least recently used entry evicted")
	}
}

func TestPurgeLLMCacheByAge(t *testing.T) {
	tmp := t.TempDir()
	c := &LLMCache{Dir: tmp}
	oldKey, newKey := KeyFrom("m", "old"), KeyFrom("m", "new")
	for _, k := range []string{oldKey, newKey} {
		if err := c.Save(context.Background(), k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(tmp, oldKey+".json"), past, past); err != nil {
		t.Fatal(err)
	}
	removed, err := PurgeLLMCacheByAge(tmp, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removed, got %d err=%v", removed, err)
	}
	if n, _ := PurgeLLMCacheByAge(tmp, 0); n != 0 {
		t.Fatal("zero age must not purge")
	}
}

func TestClearDir(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "c")
	c := &LLMCache{Dir: tmp}
	if err := c.Save(context.Background(), "k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(tmp); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty dir, got %v err=%v", entries, err)
	}
	if err := ClearDir("  "); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
