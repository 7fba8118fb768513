package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// An existing loose directory is tightened and entries are written 0600.
func TestLLMCache_StrictPermsTightensExistingDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "llm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	c := &LLMCache{Dir: dir, StrictPerms: true}
	key := KeyFrom("model", "system\n\nuser")
	if err := c.SaveEntry(context.Background(), key, Entry{Model: "model", Content: "<html></html>"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for path, want := range map[string]os.FileMode{dir: 0o700, filepath.Join(dir, key+".json"): 0o600} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if got := info.Mode() & 0o777; got != want {
			t.Fatalf("%s mode = %o, want %o", filepath.Base(path), got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, key+".json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}
