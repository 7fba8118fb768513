package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// LLMCache stores generation responses on disk, one JSON file per key.
type LLMCache struct {
	Dir string
	// StrictPerms enforces 0700 on the cache directory and 0600 on entries.
	StrictPerms bool
}

// Entry is a cached generation. Truncated responses are stored too so a
// replay reproduces the same repair path.
type Entry struct {
	Model     string    `json:"model"`
	Content   string    `json:"content"`
	Truncated bool      `json:"truncated,omitempty"`
	SavedAt   time.Time `json:"savedAt"`
}

func (c *LLMCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

// KeyFrom builds a cache key from the model name and the full prompt text.
func KeyFrom(model string, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *LLMCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns cached bytes if present. A hit refreshes the file mtime so
// EnforceLLMCacheLimits evicts least recently used entries first.
func (c *LLMCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes bytes to the cache through a temp file and rename.
func (c *LLMCache) Save(_ context.Context, key string, data []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	p := c.pathFor(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// GetEntry decodes a cached Entry. Malformed files count as a miss.
func (c *LLMCache) GetEntry(ctx context.Context, key string) (Entry, bool, error) {
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// SaveEntry encodes and stores an Entry, stamping SavedAt when unset.
func (c *LLMCache) SaveEntry(ctx context.Context, key string, e Entry) error {
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.Save(ctx, key, b)
}
