package app

import (
	"time"

	"github.com/hyperifyio/gosite/internal/validate"
)

// Defaults applied by the CLI flag set and recognized by ApplyFileConfig as
// "not set explicitly".
const (
	DefaultOutputDir   = "site"
	DefaultCacheDir    = ".gosite-cache"
	DefaultModel       = "gpt-4o-mini"
	DefaultConcurrency = 2
)

// Config holds runtime configuration for the application.
type Config struct {
	// InputPaths are root-prompt files; each produces one site. Prompt, when
	// set, is used instead of reading files.
	InputPaths []string
	Prompt     string
	OutputDir  string

	// LLM
	LLMBaseURL  string
	LLMModel    string
	LLMAPIKey   string
	CallTimeout time.Duration
	Stream      bool
	Temperature float32

	// Generation
	RetryBudget int
	Thresholds  validate.Thresholds
	APIBase     string
	ScopeID     string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheOnly        bool
	CacheMaxBytes    int64
	CacheMaxCount    int

	// Outputs
	StorePath string
	Bundle    bool
	PDFReport bool

	Concurrency int
	DryRun      bool
	Verbose     bool
}
