package app

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/gosite/internal/site"
)

const (
	manifestFile = "manifest.json"
	reportFile   = "report.pdf"
	planFile     = "plan.json"
	sumsFile     = "SHA256SUMS"
)

// writeSite writes every file of the set under dir in file-set order. Names
// are flat; anything with a path separator is rejected.
func writeSite(dir string, files *site.FileMap) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir output: %w", err)
	}
	var werr error
	files.Each(func(name, content string) {
		if werr != nil {
			return
		}
		if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			werr = fmt.Errorf("write site: unsafe file name %q", name)
			return
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			werr = fmt.Errorf("write %s: %w", name, err)
		}
	})
	return werr
}

// pageNames lists the .html entries of a file set.
func pageNames(files *site.FileMap) []string {
	var out []string
	for _, n := range files.Names() {
		if strings.HasSuffix(n, ".html") {
			out = append(out, n)
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// writeSHA256SUMS lists the digests of the regular files in dir in
// sha256sum format.
func writeSHA256SUMS(dir string) error {
	names, err := bundleNames(dir)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, name := range names {
		if name == sumsFile {
			continue
		}
		sum, err := sha256File(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		b.WriteString(sum)
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(dir, sumsFile), []byte(b.String()), 0o644)
}

// bundleNames returns the sorted regular files of dir, skipping archives.
func bundleNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), ".tar.gz") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// tarGzDirectory archives the files of srcDir under a top-level directory
// named after it. Entries are sorted and carry a fixed mtime so the same
// files always produce the same archive.
func tarGzDirectory(srcDir, outPath string) error {
	names, err := bundleNames(srcDir)
	if err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	base := filepath.Base(filepath.Clean(srcDir))
	epoch := time.Unix(0, 0).UTC()

	werr := func() error {
		for _, name := range names {
			data, err := os.ReadFile(filepath.Join(srcDir, name))
			if err != nil {
				return err
			}
			hdr := &tar.Header{
				Name:     base + "/" + name,
				Mode:     0o644,
				Size:     int64(len(data)),
				ModTime:  epoch,
				Typeflag: tar.TypeReg,
				Format:   tar.FormatPAX,
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if _, err := tw.Write(data); err != nil {
				return err
			}
		}
		return nil
	}()
	for _, c := range []io.Closer{tw, gz, out} {
		if err := c.Close(); err != nil && werr == nil {
			werr = err
		}
	}
	return werr
}
