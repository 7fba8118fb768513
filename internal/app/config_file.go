package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/gosite/internal/validate"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map onto the flag groups.
type FileConfig struct {
	Inputs []string `yaml:"inputs" json:"inputs"`
	Output string   `yaml:"output" json:"output"`

	LLM struct {
		BaseURL     string        `yaml:"base" json:"base"`
		Model       string        `yaml:"model" json:"model"`
		APIKey      string        `yaml:"key" json:"key"`
		CallTimeout time.Duration `yaml:"callTimeout" json:"callTimeout"`
		Stream      *bool         `yaml:"stream" json:"stream"`
		Temperature float32       `yaml:"temperature" json:"temperature"`
	} `yaml:"llm" json:"llm"`

	Generation struct {
		RetryBudget *int                `yaml:"retryBudget" json:"retryBudget"`
		Thresholds  validate.Thresholds `yaml:"thresholds" json:"thresholds"`
		APIBase     string              `yaml:"apiBase" json:"apiBase"`
		ScopeID     string              `yaml:"scopeId" json:"scopeId"`
	} `yaml:"generation" json:"generation"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		Only        bool          `yaml:"only" json:"only"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxCount    int           `yaml:"maxCount" json:"maxCount"`
	} `yaml:"cache" json:"cache"`

	Store     string `yaml:"store" json:"store"`
	Bundle    bool   `yaml:"bundle" json:"bundle"`
	PDFReport bool   `yaml:"pdfReport" json:"pdfReport"`

	Concurrency int  `yaml:"concurrency" json:"concurrency"`
	DryRun      bool `yaml:"dryRun" json:"dryRun"`
	Verbose     bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are unset or still at their flag default.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}

	if len(cfg.InputPaths) == 0 && len(fc.Inputs) > 0 {
		cfg.InputPaths = append([]string{}, fc.Inputs...)
	}
	if (cfg.OutputDir == "" || cfg.OutputDir == DefaultOutputDir) && fc.Output != "" {
		cfg.OutputDir = fc.Output
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if (cfg.LLMModel == "" || cfg.LLMModel == DefaultModel) && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.CallTimeout == 0 && fc.LLM.CallTimeout > 0 {
		cfg.CallTimeout = fc.LLM.CallTimeout
	}
	if fc.LLM.Stream != nil {
		cfg.Stream = *fc.LLM.Stream
	}
	if cfg.Temperature == 0 && fc.LLM.Temperature > 0 {
		cfg.Temperature = fc.LLM.Temperature
	}

	if cfg.RetryBudget == 0 && fc.Generation.RetryBudget != nil {
		cfg.RetryBudget = *fc.Generation.RetryBudget
	}
	if cfg.Thresholds.Acceptable == 0 && fc.Generation.Thresholds.Acceptable > 0 {
		cfg.Thresholds.Acceptable = fc.Generation.Thresholds.Acceptable
	}
	if cfg.Thresholds.Rich == 0 && fc.Generation.Thresholds.Rich > 0 {
		cfg.Thresholds.Rich = fc.Generation.Thresholds.Rich
	}
	if cfg.APIBase == "" && fc.Generation.APIBase != "" {
		cfg.APIBase = fc.Generation.APIBase
	}
	if cfg.ScopeID == "" && fc.Generation.ScopeID != "" {
		cfg.ScopeID = fc.Generation.ScopeID
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if !cfg.CacheOnly && fc.Cache.Only {
		cfg.CacheOnly = true
	}
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if cfg.CacheMaxCount == 0 && fc.Cache.MaxCount > 0 {
		cfg.CacheMaxCount = fc.Cache.MaxCount
	}

	if cfg.StorePath == "" && fc.Store != "" {
		cfg.StorePath = fc.Store
	}
	if !cfg.Bundle && fc.Bundle {
		cfg.Bundle = true
	}
	if !cfg.PDFReport && fc.PDFReport {
		cfg.PDFReport = true
	}
	if (cfg.Concurrency == 0 || cfg.Concurrency == DefaultConcurrency) && fc.Concurrency > 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if !cfg.DryRun && fc.DryRun {
		cfg.DryRun = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig checks that the settings needed for a run are present.
func ValidateConfig(cfg Config) error {
	var errs []error
	if len(cfg.InputPaths) == 0 && strings.TrimSpace(cfg.Prompt) == "" {
		errs = append(errs, errors.New("config: an input prompt file or -prompt is required"))
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		errs = append(errs, errors.New("config: output directory is required"))
	}
	if !cfg.DryRun && !cfg.CacheOnly && strings.TrimSpace(cfg.LLMModel) == "" {
		errs = append(errs, errors.New("config: LLM model is required"))
	}
	if cfg.CacheOnly && strings.TrimSpace(cfg.CacheDir) == "" {
		errs = append(errs, errors.New("config: cache-only mode requires a cache directory"))
	}
	if cfg.Concurrency < 0 {
		errs = append(errs, errors.New("config: concurrency must not be negative"))
	}
	if cfg.Thresholds.Rich > 0 && cfg.Thresholds.Acceptable > cfg.Thresholds.Rich {
		errs = append(errs, fmt.Errorf("config: acceptable threshold %d exceeds rich threshold %d", cfg.Thresholds.Acceptable, cfg.Thresholds.Rich))
	}
	return errors.Join(errs...)
}
