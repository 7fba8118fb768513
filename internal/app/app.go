package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/gosite/internal/brief"
	"github.com/hyperifyio/gosite/internal/cache"
	"github.com/hyperifyio/gosite/internal/llm"
	"github.com/hyperifyio/gosite/internal/pipeline"
	"github.com/hyperifyio/gosite/internal/planner"
	"github.com/hyperifyio/gosite/internal/policy"
	"github.com/hyperifyio/gosite/internal/progress"
	"github.com/hyperifyio/gosite/internal/store"
)

var (
	// ErrNoPages is returned when a run ends without any page in its file
	// set. The CLI maps it to exit code 2.
	ErrNoPages = errors.New("no pages generated")
	// ErrIncomplete is returned when at least one site finished with
	// Success == false. The files are still written.
	ErrIncomplete = errors.New("site incomplete")
)

type App struct {
	cfg   Config
	gen   llm.Generator
	store *store.Store
	sink  progress.Sink
}

// input is one root prompt and where its site goes.
type input struct {
	Name   string
	Prompt string
	Dir    string
}

// SiteSummary describes one finished site for callers and logs.
type SiteSummary struct {
	Name         string
	Dir          string
	RunID        string
	Success      bool
	QualityScore int
	Files        int
	Warnings     int
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	a := &App{cfg: cfg, sink: progress.Log{Level: progressLevel(cfg.Verbose)}}

	provider := llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, newLLMHTTPClient(cfg.CallTimeout))
	base := &llm.OpenAIGenerator{
		Client:      provider,
		Model:       cfg.LLMModel,
		Temperature: cfg.Temperature,
		CallTimeout: cfg.CallTimeout,
	}
	if cfg.Stream {
		base.Stream = provider
	}
	a.gen = base

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeLLMCacheByAge(cfg.CacheDir, cfg.CacheMaxAge); err == nil && n > 0 {
				log.Info().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxCount > 0 {
			_, _ = cache.EnforceLLMCacheLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxCount)
		}
		var inner llm.Generator = base
		if cfg.CacheOnly {
			inner = nil
		}
		a.gen = &llm.CachingGenerator{
			Inner:     inner,
			Cache:     &cache.LLMCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms},
			Model:     cfg.LLMModel,
			CacheOnly: cfg.CacheOnly,
		}
	}

	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		a.store = st
	}

	if !cfg.DryRun && !cfg.CacheOnly {
		preflight(ctx, provider)
	}
	return a, nil
}

// preflight lists models as a connectivity check. It only warns, so the
// generation calls surface the real error and the pipeline falls back.
func preflight(ctx context.Context, lister llm.ModelLister) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) > 0 {
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	} else {
		log.Warn().Msg("LLM returned zero models")
	}
}

func progressLevel(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}
}

// Run generates every configured site. Independent prompts run concurrently
// up to Concurrency; one failing site does not cancel the others.
func (a *App) Run(ctx context.Context) error {
	_, err := a.RunSites(ctx)
	return err
}

// RunSites is Run returning the per-site summaries in input order.
func (a *App) RunSites(ctx context.Context) ([]SiteSummary, error) {
	inputs, err := a.loadInputs()
	if err != nil {
		return nil, err
	}
	if a.cfg.DryRun {
		return nil, a.dryRun(ctx, inputs)
	}

	summaries := make([]SiteSummary, len(inputs))
	errs := make([]error, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			s, err := a.runOne(gctx, in)
			summaries[i], errs[i] = s, err
			// Only cancellation stops the batch.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summaries, err
	}
	return summaries, errors.Join(errs...)
}

func (a *App) orchestrator() *pipeline.Orchestrator {
	return &pipeline.Orchestrator{
		Generator: a.gen,
		Planner: &planner.Detector{
			Primary:  &planner.LLMPlanner{Generator: a.gen, Verbose: a.cfg.Verbose},
			Fallback: &planner.FallbackPlanner{},
		},
		Sink:        a.sink,
		Injector:    policy.Injector{APIBase: a.cfg.APIBase},
		Thresholds:  a.cfg.Thresholds,
		RetryBudget: a.cfg.RetryBudget,
		Model:       a.cfg.LLMModel,
		ScopeID:     a.cfg.ScopeID,
	}
}

func (a *App) runOne(ctx context.Context, in input) (SiteSummary, error) {
	started := time.Now()
	logger := log.With().Str("site", in.Name).Logger()
	logger.Info().Str("out", in.Dir).Msg("generating site")

	out, err := a.orchestrator().Run(ctx, in.Prompt)
	if err != nil {
		return SiteSummary{Name: in.Name, Dir: in.Dir}, fmt.Errorf("%s: %w", in.Name, err)
	}
	res := out.Result
	summary := SiteSummary{
		Name:         in.Name,
		Dir:          in.Dir,
		Success:      res.Success,
		QualityScore: res.QualityScore,
		Warnings:     len(res.Warnings),
	}
	if res.Files == nil || len(pageNames(res.Files)) == 0 {
		return summary, fmt.Errorf("%s: %w", in.Name, ErrNoPages)
	}
	summary.Files = res.Files.Len()

	if err := writeSite(in.Dir, res.Files); err != nil {
		return summary, err
	}
	meta := manifestMeta{
		SiteName:     out.Request.SiteName,
		Mode:         string(res.Mode),
		Model:        a.cfg.LLMModel,
		LLMBaseURL:   a.cfg.LLMBaseURL,
		ScopeID:      out.ScopeID,
		Success:      res.Success,
		QualityScore: res.QualityScore,
		Warnings:     nonNilStrings(res.Warnings),
		Errors:       nonNilStrings(res.Errors),
		LLMCache:     a.cfg.CacheDir != "",
		Version:      BuildVersion,
		Commit:       BuildCommit,
		GeneratedAt:  time.Now().UTC(),
		Duration:     time.Since(started).Round(time.Millisecond).String(),
	}
	data, err := marshalManifestJSON(meta, buildManifestEntries(res.Files, out.Pages))
	if err != nil {
		return summary, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(in.Dir, manifestFile), data, 0o644); err != nil {
		return summary, fmt.Errorf("write manifest: %w", err)
	}
	if a.cfg.PDFReport {
		if err := writeReportPDF(out, meta, filepath.Join(in.Dir, reportFile)); err != nil {
			logger.Warn().Err(err).Msg("pdf report failed")
		}
	}
	if a.cfg.Bundle {
		if err := writeSHA256SUMS(in.Dir); err != nil {
			return summary, err
		}
		if err := tarGzDirectory(in.Dir, strings.TrimRight(in.Dir, string(filepath.Separator))+".tar.gz"); err != nil {
			return summary, fmt.Errorf("tar bundle: %w", err)
		}
	}
	if a.store != nil {
		id, err := a.store.SaveRun(ctx, storeRun(out))
		if err != nil {
			logger.Warn().Err(err).Msg("store save failed")
		} else {
			summary.RunID = id
		}
	}

	ev := logger.Info()
	if !res.Success {
		ev = logger.Warn()
	}
	ev.Bool("success", res.Success).Int("score", res.QualityScore).Int("files", summary.Files).
		Int("warnings", len(res.Warnings)).Int("errors", len(res.Errors)).Msg("site written")
	if !res.Success {
		return summary, fmt.Errorf("%s: %w", in.Name, ErrIncomplete)
	}
	return summary, nil
}

// dryRun writes the deterministic plan of every input without calling the
// generation service.
func (a *App) dryRun(ctx context.Context, inputs []input) error {
	det := &planner.Detector{Fallback: &planner.FallbackPlanner{}}
	for _, in := range inputs {
		plan, err := det.Plan(ctx, brief.Parse(in.Prompt))
		if err != nil {
			return fmt.Errorf("%s: %w", in.Name, err)
		}
		if err := os.MkdirAll(in.Dir, 0o755); err != nil {
			return fmt.Errorf("mkdir output: %w", err)
		}
		if err := writeJSON(filepath.Join(in.Dir, planFile), plan.Request(in.Prompt)); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
		log.Info().Str("site", in.Name).Str("mode", string(plan.Mode)).Int("pages", len(plan.Pages)).Msg("wrote dry-run plan")
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
