package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

func listEntries(dir string) ([]cacheFile, error) {
	var files []cacheFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, cacheFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

// PurgeLLMCacheByAge removes entries whose modification time is older than
// maxAge. A non-positive maxAge disables purging.
func PurgeLLMCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	files, err := listEntries(dir)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, f := range files {
		if now.Sub(f.modTime) <= maxAge {
			continue
		}
		if os.Remove(f.path) == nil {
			removed++
		}
	}
	return removed, nil
}

// EnforceLLMCacheLimits evicts least recently used entries until the cache
// holds at most maxCount entries and maxBytes bytes. Zero disables a limit.
func EnforceLLMCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	if maxBytes <= 0 && maxCount <= 0 {
		return 0, nil
	}
	files, err := listEntries(dir)
	if err != nil {
		return 0, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	var total int64
	for _, f := range files {
		total += f.size
	}
	count := len(files)
	removed := 0
	for _, f := range files {
		overCount := maxCount > 0 && count > maxCount
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		count--
		total -= f.size
		removed++
	}
	return removed, nil
}
