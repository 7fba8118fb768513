package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosite/internal/app"
)

const (
	exitOK         = 0
	exitConfig     = 1
	exitIncomplete = 2
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("dotenv load failed")
	}

	cfg, showVersion, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(exitConfig)
	}
	if showVersion {
		fmt.Println(app.VersionString())
		os.Exit(exitOK)
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(exitCode(run(ctx, cfg)))
}

// exitCode maps run errors: 2 when a site is incomplete or has no pages, 1 on
// anything else that stopped the run.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrIncomplete), errors.Is(err, app.ErrNoPages):
		log.Warn().Err(err).Msg("run finished with incomplete sites")
		return exitIncomplete
	default:
		log.Error().Err(err).Msg("run failed")
		return exitConfig
	}
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}

// loadConfig layers explicit flags over environment over the config file
// over defaults, then validates the result.
func loadConfig(args []string, stderr io.Writer) (app.Config, bool, error) {
	fs := flag.NewFlagSet("gosite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		flagCfg     app.Config
		configPath  string
		inputs      string
		thresholds  string
		showVersion bool
	)
	fs.StringVar(&configPath, "config", os.Getenv("GOSITE_CONFIG"), "Path to a YAML or JSON config file")
	fs.StringVar(&inputs, "input", "", "Comma-separated root-prompt files (positional arguments are added)")
	fs.StringVar(&flagCfg.Prompt, "prompt", "", "Inline root prompt instead of input files")
	fs.StringVar(&flagCfg.OutputDir, "out", app.DefaultOutputDir, "Output directory")
	fs.StringVar(&flagCfg.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&flagCfg.LLMModel, "llm.model", app.DefaultModel, "Model name")
	fs.StringVar(&flagCfg.LLMAPIKey, "llm.key", "", "API key for the OpenAI-compatible server")
	fs.DurationVar(&flagCfg.CallTimeout, "llm.timeout", 0, "Timeout per generation call (default 90s)")
	fs.BoolVar(&flagCfg.Stream, "llm.stream", false, "Stream completions")
	fs.IntVar(&flagCfg.RetryBudget, "retries", 0, "Regenerations per page after the first attempt (0 = default 2, -1 = none)")
	fs.StringVar(&thresholds, "thresholds", "", "Visible-text floors as <acceptable>,<rich> characters (default 100,500)")
	fs.StringVar(&flagCfg.APIBase, "api.base", "", "Base URL of the forms and analytics endpoints (default same origin)")
	fs.StringVar(&flagCfg.ScopeID, "scope", "", "Scope id sent by the injected scripts (default a new UUID per site)")
	fs.StringVar(&flagCfg.CacheDir, "cache.dir", app.DefaultCacheDir, "Cache directory path; empty disables caching")
	fs.DurationVar(&flagCfg.CacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&flagCfg.CacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.BoolVar(&flagCfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.BoolVar(&flagCfg.CacheOnly, "cache.only", false, "Serve generations from the cache only; misses fall back")
	fs.Int64Var(&flagCfg.CacheMaxBytes, "cache.maxBytes", 0, "Evict oldest cache entries above this size; 0 disables")
	fs.IntVar(&flagCfg.CacheMaxCount, "cache.maxCount", 0, "Evict oldest cache entries above this count; 0 disables")
	fs.StringVar(&flagCfg.StorePath, "store", "", "SQLite database recording finished runs")
	fs.BoolVar(&flagCfg.Bundle, "bundle", false, "Write SHA256SUMS and a .tar.gz next to each site")
	fs.BoolVar(&flagCfg.PDFReport, "report.pdf", false, "Write a PDF build report into each site directory")
	fs.IntVar(&flagCfg.Concurrency, "concurrency", app.DefaultConcurrency, "Sites generated in parallel")
	fs.BoolVar(&flagCfg.DryRun, "dry-run", false, "Write the deterministic plan without calling the model")
	fs.BoolVar(&flagCfg.Verbose, "v", false, "Verbose logging")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, false, err
	}
	if showVersion {
		return app.Config{}, true, nil
	}
	for _, p := range append(strings.Split(inputs, ","), fs.Args()...) {
		if p = strings.TrimSpace(p); p != "" {
			flagCfg.InputPaths = append(flagCfg.InputPaths, p)
		}
	}
	if thresholds != "" {
		if _, err := fmt.Sscanf(thresholds, "%d,%d", &flagCfg.Thresholds.Acceptable, &flagCfg.Thresholds.Rich); err != nil {
			return app.Config{}, false, fmt.Errorf("-thresholds %q: want <acceptable>,<rich>", thresholds)
		}
	}

	var cfg app.Config
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return app.Config{}, false, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	app.ApplyEnvToConfig(&cfg)

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(&cfg, flagCfg, set, len(flagCfg.InputPaths) > 0)

	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, false, err
	}
	return cfg, false, nil
}

// applyFlags copies explicitly set flags over cfg and fills what is still
// empty from the flag defaults.
func applyFlags(cfg *app.Config, f app.Config, set map[string]bool, haveInputs bool) {
	pick := func(name string, explicit bool) bool { return set[name] || explicit }

	if haveInputs {
		cfg.InputPaths = f.InputPaths
	}
	if pick("prompt", false) {
		cfg.Prompt = f.Prompt
	}
	if pick("out", cfg.OutputDir == "") {
		cfg.OutputDir = f.OutputDir
	}
	if pick("llm.base", false) {
		cfg.LLMBaseURL = f.LLMBaseURL
	}
	if pick("llm.model", cfg.LLMModel == "") {
		cfg.LLMModel = f.LLMModel
	}
	if pick("llm.key", false) {
		cfg.LLMAPIKey = f.LLMAPIKey
	}
	if pick("llm.timeout", false) {
		cfg.CallTimeout = f.CallTimeout
	}
	if pick("llm.stream", false) {
		cfg.Stream = f.Stream
	}
	if pick("retries", false) {
		cfg.RetryBudget = f.RetryBudget
	}
	if pick("thresholds", false) {
		cfg.Thresholds = f.Thresholds
	}
	if pick("api.base", false) {
		cfg.APIBase = f.APIBase
	}
	if pick("scope", false) {
		cfg.ScopeID = f.ScopeID
	}
	if pick("cache.dir", cfg.CacheDir == "") {
		cfg.CacheDir = f.CacheDir
	}
	if pick("cache.maxAge", false) {
		cfg.CacheMaxAge = f.CacheMaxAge
	}
	if pick("cache.clear", false) {
		cfg.CacheClear = f.CacheClear
	}
	if pick("cache.strictPerms", false) {
		cfg.CacheStrictPerms = f.CacheStrictPerms
	}
	if pick("cache.only", false) {
		cfg.CacheOnly = f.CacheOnly
	}
	if pick("cache.maxBytes", false) {
		cfg.CacheMaxBytes = f.CacheMaxBytes
	}
	if pick("cache.maxCount", false) {
		cfg.CacheMaxCount = f.CacheMaxCount
	}
	if pick("store", false) {
		cfg.StorePath = f.StorePath
	}
	if pick("bundle", false) {
		cfg.Bundle = f.Bundle
	}
	if pick("report.pdf", false) {
		cfg.PDFReport = f.PDFReport
	}
	if pick("concurrency", cfg.Concurrency == 0) {
		cfg.Concurrency = f.Concurrency
	}
	if pick("dry-run", false) {
		cfg.DryRun = f.DryRun
	}
	if pick("v", false) {
		cfg.Verbose = f.Verbose
	}
}
