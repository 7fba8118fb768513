package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFile_YAMLAndApply(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gosite.yaml")
	content := `inputs: [a.md, b.md]
output: public
llm:
  base: http://localhost:11434/v1
  model: llama3
  callTimeout: 45s
  stream: true
generation:
  retryBudget: 3
  thresholds:
    acceptable: 150
    rich: 800
  apiBase: https://api.example.com
cache:
  dir: .cache
  maxAge: 24h
  only: true
bundle: true
concurrency: 4
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Flag defaults are replaced; the explicit model flag is kept.
	cfg := Config{OutputDir: DefaultOutputDir, CacheDir: DefaultCacheDir, Concurrency: DefaultConcurrency, LLMModel: "from-flag"}
	ApplyFileConfig(&cfg, fc)
	if len(cfg.InputPaths) != 2 || cfg.OutputDir != "public" || cfg.LLMModel != "from-flag" {
		t.Fatalf("unexpected basics: %+v", cfg)
	}
	if cfg.CallTimeout != 45*time.Second || !cfg.Stream || cfg.RetryBudget != 3 {
		t.Fatalf("unexpected llm/generation: %+v", cfg)
	}
	if cfg.Thresholds.Acceptable != 150 || cfg.Thresholds.Rich != 800 || cfg.APIBase != "https://api.example.com" {
		t.Fatalf("unexpected generation: %+v", cfg)
	}
	if cfg.CacheDir != ".cache" || cfg.CacheMaxAge != 24*time.Hour || !cfg.CacheOnly || !cfg.Bundle || cfg.Concurrency != 4 {
		t.Fatalf("unexpected cache/output: %+v", cfg)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gosite.json")
	if err := os.WriteFile(p, []byte(`{"output":"dist","llm":{"model":"m"},"pdfReport":true}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var cfg Config
	ApplyFileConfig(&cfg, fc)
	if cfg.OutputDir != "dist" || cfg.LLMModel != "m" || !cfg.PDFReport {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, err := LoadConfigFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(Config{Prompt: "x", OutputDir: "site", LLMModel: "m"}); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	err := ValidateConfig(Config{CacheOnly: true, Concurrency: -1})
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"input prompt", "output directory", "cache directory", "concurrency"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
	if strings.Contains(err.Error(), "model is required") {
		t.Fatalf("cache-only runs do not need a model: %v", err)
	}
}
