package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = os.Getenv("LLM_MODEL")
	}
	if cfg.LLMAPIKey == "" {
		// OPENAI_API_KEY is accepted so hosted endpoints work without renaming
		v := os.Getenv("LLM_API_KEY")
		if v == "" {
			v = os.Getenv("OPENAI_API_KEY")
		}
		cfg.LLMAPIKey = v
	}
	if cfg.APIBase == "" {
		cfg.APIBase = os.Getenv("GOSITE_API_BASE")
	}
	if cfg.ScopeID == "" {
		cfg.ScopeID = os.Getenv("GOSITE_SCOPE_ID")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.Getenv("GOSITE_OUT")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.StorePath == "" {
		cfg.StorePath = os.Getenv("GOSITE_STORE")
	}

	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setDuration(&cfg.CallTimeout, "LLM_CALL_TIMEOUT")

	if cfg.RetryBudget == 0 {
		if n, ok := envInt("GOSITE_RETRY_BUDGET"); ok {
			cfg.RetryBudget = n
		}
	}
	if cfg.Concurrency == 0 {
		if n, ok := envInt("GOSITE_CONCURRENCY"); ok && n > 0 {
			cfg.Concurrency = n
		}
	}
	// GOSITE_THRESHOLDS is "<acceptable>" or "<acceptable>,<rich>"
	if cfg.Thresholds.Acceptable == 0 || cfg.Thresholds.Rich == 0 {
		if s := strings.TrimSpace(os.Getenv("GOSITE_THRESHOLDS")); s != "" {
			parts := strings.Split(s, ",")
			if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil && n > 0 && cfg.Thresholds.Acceptable == 0 {
				cfg.Thresholds.Acceptable = n
			}
			if len(parts) >= 2 {
				if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && n > 0 && cfg.Thresholds.Rich == 0 {
					cfg.Thresholds.Rich = n
				}
			}
		}
	}

	setBool(&cfg.Stream, "LLM_STREAM")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.CacheOnly, "CACHE_ONLY")
	setBool(&cfg.Verbose, "VERBOSE")
}

// ApplyEnvOverrides lets environment values replace settings that came from
// a config file. Flags are applied after this and win over both.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	override := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	override(&cfg.LLMBaseURL, "LLM_BASE_URL")
	override(&cfg.LLMModel, "LLM_MODEL")
	override(&cfg.LLMAPIKey, "LLM_API_KEY", "OPENAI_API_KEY")
	override(&cfg.APIBase, "GOSITE_API_BASE")
	override(&cfg.OutputDir, "GOSITE_OUT")
	override(&cfg.CacheDir, "CACHE_DIR")
	override(&cfg.StorePath, "GOSITE_STORE")
}

func setBool(dst *bool, envKey string) {
	if *dst {
		return
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
	case "1", "true", "yes", "on":
		*dst = true
	}
}

func setDuration(dst *time.Duration, envKey string) {
	if *dst != 0 {
		return
	}
	if s := strings.TrimSpace(os.Getenv(envKey)); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
