package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperifyio/gosite/internal/app"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY", "OPENAI_API_KEY", "GOSITE_OUT", "GOSITE_CONFIG", "CACHE_DIR", "GOSITE_STORE", "GOSITE_CONCURRENCY"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_FlagsOverEnvOverFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gosite.yaml")
	if err := os.WriteFile(cfgPath, []byte("output: from-file\nllm:\n  model: file-model\n  base: http://file/v1\nconcurrency: 6\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LLM_MODEL", "env-model")

	cfg, _, err := loadConfig([]string{"-config", cfgPath, "-out", "from-flag", "-thresholds", "120,600", "a.md", "b.md"}, io.Discard)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.OutputDir != "from-flag" {
		t.Fatalf("flag must win, got %q", cfg.OutputDir)
	}
	if cfg.LLMModel != "env-model" {
		t.Fatalf("env must win over file, got %q", cfg.LLMModel)
	}
	if cfg.LLMBaseURL != "http://file/v1" || cfg.Concurrency != 6 {
		t.Fatalf("file values must survive unset flags: %+v", cfg)
	}
	if cfg.CacheDir != app.DefaultCacheDir {
		t.Fatalf("expected default cache dir, got %q", cfg.CacheDir)
	}
	if len(cfg.InputPaths) != 2 || cfg.Thresholds.Acceptable != 120 || cfg.Thresholds.Rich != 600 {
		t.Fatalf("unexpected inputs/thresholds: %+v", cfg)
	}
}

func TestLoadConfig_MissingInputIsConfigError(t *testing.T) {
	clearEnv(t)
	if _, _, err := loadConfig(nil, io.Discard); err == nil {
		t.Fatalf("expected an error without inputs")
	}
	if _, _, err := loadConfig([]string{"-thresholds", "lots", "-prompt", "x"}, io.Discard); err == nil {
		t.Fatalf("expected an error for malformed thresholds")
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("bakery: %w", app.ErrIncomplete), exitIncomplete},
		{errors.Join(errors.New("x"), fmt.Errorf("y: %w", app.ErrNoPages)), exitIncomplete},
		{errors.New("init app: boom"), exitConfig},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Fatalf("exitCode(%v)=%d, want %d", c.err, got, c.want)
		}
	}
}
