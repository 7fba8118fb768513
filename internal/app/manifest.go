package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/hyperifyio/gosite/internal/extract"
	"github.com/hyperifyio/gosite/internal/pipeline"
	"github.com/hyperifyio/gosite/internal/site"
)

// manifestEntry is a compact record of one written file.
type manifestEntry struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	SHA256   string `json:"sha256"`
	Bytes    int    `json:"bytes"`
	State    string `json:"state,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Score    *int   `json:"score,omitempty"`
}

// manifestMeta captures run details that aid reproducibility.
type manifestMeta struct {
	SiteName     string    `json:"siteName"`
	Mode         string    `json:"mode"`
	Model        string    `json:"model"`
	LLMBaseURL   string    `json:"llmBaseUrl"`
	ScopeID      string    `json:"scopeId"`
	Success      bool      `json:"success"`
	QualityScore int       `json:"qualityScore"`
	Warnings     []string  `json:"warnings"`
	Errors       []string  `json:"errors"`
	LLMCache     bool      `json:"llmCache"`
	Version      string    `json:"version"`
	Commit       string    `json:"commit"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Duration     string    `json:"duration"`
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of the given text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// buildManifestEntries records every file in file-set order. Page files also
// carry the final state, attempt count and score from their report.
func buildManifestEntries(files *site.FileMap, pages []pipeline.PageReport) []manifestEntry {
	byName := make(map[string]pipeline.PageReport, len(pages))
	for _, p := range pages {
		byName[p.Filename] = p
	}
	out := make([]manifestEntry, 0, files.Len())
	files.Each(func(name, content string) {
		e := manifestEntry{Name: name, SHA256: computeSHA256Hex(content), Bytes: len(content)}
		if strings.HasSuffix(name, ".html") {
			e.Title = extract.FromHTML(content).Title
		}
		if p, ok := byName[name]; ok {
			score := p.Score
			e.State, e.Attempts, e.Score = string(p.State), p.Attempts, &score
		}
		out = append(out, e)
	})
	return out
}

// marshalManifestJSON encodes the manifest.json sidecar.
func marshalManifestJSON(meta manifestMeta, entries []manifestEntry) ([]byte, error) {
	payload := struct {
		Meta  manifestMeta    `json:"meta"`
		Files []manifestEntry `json:"files"`
	}{Meta: meta, Files: entries}
	return json.MarshalIndent(payload, "", "  ")
}
