package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/gosite/internal/validate"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	t.Setenv("BAZ", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR=\"beta gamma\"\nBAZ=delta # trailing\nnot a pair\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want beta gamma", got)
	}
	if got := os.Getenv("BAZ"); got != "delta" {
		t.Fatalf("BAZ=%q, want delta", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvToConfig_FromEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CACHE_DIR", "/tmp/gosite-cache")
	t.Setenv("CACHE_MAX_AGE", "2h")
	t.Setenv("GOSITE_THRESHOLDS", "150,700")
	t.Setenv("GOSITE_RETRY_BUDGET", "4")
	t.Setenv("LLM_STREAM", "yes")

	cfg := Config{Thresholds: validate.Thresholds{Acceptable: 120}}
	ApplyEnvToConfig(&cfg)
	if cfg.LLMAPIKey != "sk-test" {
		t.Fatalf("LLMAPIKey=%q, want fallback from OPENAI_API_KEY", cfg.LLMAPIKey)
	}
	if cfg.CacheDir != "/tmp/gosite-cache" || cfg.CacheMaxAge != 2*time.Hour {
		t.Fatalf("cache settings: %q %v", cfg.CacheDir, cfg.CacheMaxAge)
	}
	if cfg.Thresholds.Acceptable != 120 || cfg.Thresholds.Rich != 700 {
		t.Fatalf("explicit acceptable threshold must win, got %+v", cfg.Thresholds)
	}
	if cfg.RetryBudget != 4 || !cfg.Stream {
		t.Fatalf("RetryBudget=%d Stream=%v", cfg.RetryBudget, cfg.Stream)
	}
}

func TestApplyEnvOverrides_ReplacesFileValues(t *testing.T) {
	t.Setenv("LLM_MODEL", "local-model")
	t.Setenv("GOSITE_OUT", "")
	cfg := Config{LLMModel: "from-file", OutputDir: "from-file"}
	ApplyEnvOverrides(&cfg)
	if cfg.LLMModel != "local-model" {
		t.Fatalf("LLMModel=%q, want env value", cfg.LLMModel)
	}
	if cfg.OutputDir != "from-file" {
		t.Fatalf("empty env must not clear OutputDir, got %q", cfg.OutputDir)
	}
}
