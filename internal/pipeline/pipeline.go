// Package pipeline turns a root prompt into a validated set of site files.
// One Orchestrator run plans the site, generates the shared assets once, then
// walks every page through generate, validate, repair and bounded
// regeneration, and finally scores the whole file set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosite/internal/assets"
	"github.com/hyperifyio/gosite/internal/brief"
	"github.com/hyperifyio/gosite/internal/budget"
	"github.com/hyperifyio/gosite/internal/extract"
	"github.com/hyperifyio/gosite/internal/llm"
	"github.com/hyperifyio/gosite/internal/planner"
	"github.com/hyperifyio/gosite/internal/policy"
	"github.com/hyperifyio/gosite/internal/progress"
	"github.com/hyperifyio/gosite/internal/repair"
	"github.com/hyperifyio/gosite/internal/site"
	"github.com/hyperifyio/gosite/internal/template"
	"github.com/hyperifyio/gosite/internal/validate"
)

const (
	// DefaultRetryBudget is the number of regenerations after the first
	// attempt.
	DefaultRetryBudget = 2
	// DefaultContextTokens bounds the accepted-pages context of a
	// regeneration prompt.
	DefaultContextTokens = 1500
	// DefaultPageTokens is the output size requested for a page.
	DefaultPageTokens = 6000
	// DefaultAssetTokens is the output size requested for the shared assets.
	DefaultAssetTokens = 3000
)

// Orchestrator runs one request at a time. It holds no per-run state, so one
// value may serve concurrent runs when its Generator and Sink allow it.
type Orchestrator struct {
	Generator llm.Generator
	// Planner detects the site shape; nil uses the model planner with the
	// deterministic fallback.
	Planner    planner.Planner
	Sink       progress.Sink
	Injector   policy.Injector
	Thresholds validate.Thresholds
	// RetryBudget is the number of regenerations per page. Zero means
	// DefaultRetryBudget; negative disables regeneration.
	RetryBudget int
	// Model is used for prompt sizing only.
	Model         string
	ContextTokens int
	PageTokens    int
	// ScopeID is sent by the injected runtime scripts; empty generates one
	// per run.
	ScopeID string
}

// PageReport describes how one page ended.
type PageReport struct {
	Filename string      `json:"filename"`
	State    PageState   `json:"state"`
	Attempts int         `json:"attempts"`
	Score    int         `json:"score"`
	History  []PageState `json:"history"`
}

// Outcome is a finished run: the request that was generated, the result, and
// the per-page reports in generation order.
type Outcome struct {
	Request site.GenerationRequest `json:"request"`
	ScopeID string                 `json:"scopeId"`
	Result  site.PipelineResult    `json:"result"`
	Pages   []PageReport           `json:"pages"`
}

// Run plans the site from rootPrompt and generates it.
func (o *Orchestrator) Run(ctx context.Context, rootPrompt string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	sink := o.sink()
	sink.Emit(progress.Event{Step: progress.StepDetecting, Detail: "analyzing prompt"})
	b := brief.Parse(rootPrompt)
	plan, err := o.planner().Plan(ctx, b)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, fmt.Errorf("plan: %w", err)
	}
	sink.Emit(progress.Event{Step: progress.StepDetecting, Detail: fmt.Sprintf("%s, %d page(s)", plan.Mode, len(plan.Pages))})
	return o.Generate(ctx, plan.Request(rootPrompt))
}

// Generate runs the page protocol for an already planned request. Only a
// cancelled or expired ctx makes it fail; every other problem ends up in the
// result's warnings or errors.
func (o *Orchestrator) Generate(ctx context.Context, req site.GenerationRequest) (Outcome, error) {
	pages, renamed := site.UniquePages(req.Pages)
	req.Pages = pages
	if req.Mode == "" {
		req.Mode = site.ModeMarkup
	}
	r := &run{
		o:       o,
		req:     req,
		scopeID: o.ScopeID,
		sink:    o.sink(),
		files:   site.NewFileMap(),
	}
	if r.scopeID == "" {
		r.scopeID = uuid.NewString()
	}
	for _, note := range renamed {
		r.warn("%s", note)
	}
	if err := r.execute(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Request: req, ScopeID: r.scopeID, Result: r.result, Pages: r.reports}, nil
}

func (o *Orchestrator) sink() progress.Sink {
	if o.Sink == nil {
		return progress.Nop{}
	}
	return o.Sink
}

func (o *Orchestrator) planner() planner.Planner {
	if o.Planner != nil {
		return o.Planner
	}
	var primary planner.Planner
	if o.Generator != nil {
		primary = &planner.LLMPlanner{Generator: o.Generator}
	}
	return &planner.Detector{Primary: primary, Fallback: &planner.FallbackPlanner{}}
}

func (o *Orchestrator) retryBudget() int {
	switch {
	case o.RetryBudget < 0:
		return 0
	case o.RetryBudget == 0:
		return DefaultRetryBudget
	}
	return o.RetryBudget
}

// run is the state of one Generate call.
type run struct {
	o        *Orchestrator
	req      site.GenerationRequest
	scopeID  string
	sink     progress.Sink
	shared   site.SharedAssets
	files    *site.FileMap
	accepted []site.PageArtifact
	reports  []PageReport
	warnings []string
	result   site.PipelineResult
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	log.Warn().Str("stage", "pipeline").Msg(msg)
}

func (r *run) execute(ctx context.Context) error {
	if err := r.generateShared(ctx); err != nil {
		return err
	}
	r.files.Set(site.StylesheetFile, r.shared.Stylesheet)
	r.files.Set(site.ScriptFile, r.shared.Script)

	for i, page := range pagesToGenerate(r.req) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.sink.Emit(progress.Event{Step: progress.GeneratingPage(i + 1), Detail: page.Filename()})
		if err := r.generatePage(ctx, i, page); err != nil {
			return err
		}
	}
	if r.req.Mode == site.ModeSPA {
		r.writeDeepLinks()
	}
	r.finish()
	r.sink.Emit(progress.Event{Step: progress.StepComplete, Detail: fmt.Sprintf("score %d", r.result.QualityScore)})
	return nil
}

// pagesToGenerate is the page list of the request, except in spa mode where
// only the home page is generated, as the shell holding one section per page.
func pagesToGenerate(req site.GenerationRequest) []site.PageSpec {
	if req.Mode != site.ModeSPA || len(req.Pages) == 0 {
		return req.Pages
	}
	names := make([]string, 0, len(req.Pages))
	for _, p := range req.Pages {
		names = append(names, p.DisplayName)
	}
	shell := assets.Home(req)
	shell.Description = "single document with one routed section per page: " + strings.Join(names, ", ")
	return []site.PageSpec{shell}
}

// writeDeepLinks gives every other spa page its own file pointing into the
// shell. Deep links inherit the shell's final state.
func (r *run) writeDeepLinks() {
	shellFile := assets.Home(r.req).Filename()
	shell, ok := r.files.Get(shellFile)
	if !ok {
		return
	}
	state := StateAccepted
	for _, rep := range r.reports {
		if rep.Filename == shellFile {
			state = rep.State
		}
	}
	for _, p := range r.req.Pages {
		name := p.Filename()
		if name == shellFile {
			continue
		}
		r.files.Set(name, assets.DeepLink(shell, shellFile, p.Slug))
		r.reports = append(r.reports, PageReport{Filename: name, State: state, History: []PageState{state}})
	}
}

func (r *run) generateShared(ctx context.Context) error {
	r.sink.Emit(progress.Event{Step: progress.StepGeneratingStyles, Detail: site.StylesheetFile + ", " + site.ScriptFile})
	defaults := assets.Defaults(r.req)
	var generated site.SharedAssets
	if r.o.Generator == nil {
		r.warn("shared assets: no generator configured")
	} else {
		system, user := template.AssetsPrompt(r.req)
		resp, err := r.o.Generator.Generate(ctx, llm.Request{SystemPrompt: system, UserPrompt: user, MaxOutputTokens: r.outputTokens(system, user, DefaultAssetTokens)})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			r.warn("shared assets: generation failed: %v", err)
		} else {
			generated = assets.Parse(resp.Content)
		}
	}
	shared, substituted := assets.Merge(generated, defaults)
	for _, field := range substituted {
		r.warn("shared assets: built-in %s used", field)
	}
	r.shared = shared
	return nil
}

func (r *run) outputTokens(system, user string, want int) int {
	return budget.OutputTokens(r.o.Model, budget.EstimatePromptTokens(system, user, nil), want)
}

func (r *run) pageTokens() int {
	if r.o.PageTokens > 0 {
		return r.o.PageTokens
	}
	return DefaultPageTokens
}

// generatePage drives one page to accepted or fallback.
func (r *run) generatePage(ctx context.Context, index int, page site.PageSpec) error {
	filename := page.Filename()
	track := newTrack(filename)
	budgetLeft := r.o.retryBudget()
	var problems []string

	for {
		track.attempt++
		in := template.PageInput{Request: r.req, Page: page, Index: index, Assets: r.shared}
		var system, user string
		if track.attempt == 1 {
			system, user = template.PagePrompt(in)
		} else {
			if err := track.to(StateRegenerating); err != nil {
				return err
			}
			r.sink.Emit(progress.Event{Step: progress.StepRegenerating, Detail: fmt.Sprintf("%s attempt %d", filename, track.attempt)})
			in.Problems = problems
			in.Context = r.regenerationContext()
			system, user = template.RegenerationPrompt(in)
		}

		content, style, script, why, err := r.attempt(ctx, track, system, user)
		if err != nil {
			return err
		}
		if why == nil {
			doc := assets.Embed(content, style, script)
			doc = assets.Apply(doc, r.shared)
			doc = r.o.Injector.Inject(doc, r.scopeID)
			if err := track.to(StateAccepted); err != nil {
				return err
			}
			r.accept(track, doc)
			return nil
		}

		problems = why
		if err := track.to(StateNeedsRegeneration); err != nil {
			return err
		}
		log.Debug().Str("stage", "pipeline").Str("page", filename).Int("attempt", track.attempt).Strs("problems", why).Msg("page rejected")
		if budgetLeft == 0 {
			break
		}
		budgetLeft--
	}

	if err := track.to(StateExhausted); err != nil {
		return err
	}
	if err := track.to(StateFallback); err != nil {
		return err
	}
	r.warn("%s: regeneration budget exhausted after %d attempt(s), fallback page used (%s)", filename, track.attempt, strings.Join(problems, "; "))
	doc := r.o.Injector.Inject(assets.Fallback(r.req, page, r.shared), r.scopeID)
	r.files.Set(filename, doc)
	r.reports = append(r.reports, PageReport{Filename: filename, State: track.state, Attempts: track.attempt, History: track.history})
	return nil
}

// attempt generates, extracts, validates and repairs once. It returns the
// accepted markup with any page-level style and script, or the reasons the
// attempt was rejected. Only a done ctx or an invalid transition is an error.
func (r *run) attempt(ctx context.Context, track *pageTrack, system, user string) (content, style, script string, rejected []string, err error) {
	if r.o.Generator == nil {
		return "", "", "", []string{"no generator configured"}, nil
	}
	resp, genErr := r.o.Generator.Generate(ctx, llm.Request{SystemPrompt: system, UserPrompt: user, MaxOutputTokens: r.outputTokens(system, user, r.pageTokens())})
	if ctx.Err() != nil {
		return "", "", "", nil, ctx.Err()
	}
	if genErr != nil {
		msg := "generation failed: " + genErr.Error()
		if errors.Is(genErr, llm.ErrEmptyResponse) {
			msg = "the response was empty"
		}
		return "", "", "", []string{msg}, nil
	}

	res := extract.Extract(resp.Content)
	if strings.TrimSpace(res.Markup) == "" {
		return "", "", "", []string{"no HTML document could be found in the response"}, nil
	}
	if err := track.to(StateGenerated); err != nil {
		return "", "", "", nil, err
	}
	if resp.Truncated {
		log.Debug().Str("stage", "pipeline").Str("page", track.filename).Msg("response truncated at output limit")
	}

	content = res.Markup
	r.sink.Emit(progress.Event{Step: progress.StepValidating, Detail: track.filename})
	report := validate.ValidatePage(content, r.o.Thresholds)
	if validate.HasStructuralCriticals(report) {
		r.sink.Emit(progress.Event{Step: progress.StepFixing, Detail: track.filename})
		content = repair.Repair(content, report.Issues)
		report = validate.ValidatePage(content, r.o.Thresholds)
		if validate.HasStructuralCriticals(report) {
			if norm, nerr := extract.Normalize(content); nerr == nil {
				content = repair.Repair(norm, nil)
				report = validate.ValidatePage(content, r.o.Thresholds)
			}
		}
	} else {
		content = repair.Repair(content, []validate.Issue{})
	}
	if err := track.to(StateValidated); err != nil {
		return "", "", "", nil, err
	}
	if report.Passed {
		return content, res.Style, res.Script, nil, nil
	}
	for _, is := range report.Criticals() {
		rejected = append(rejected, is.Message)
	}
	if resp.Truncated {
		rejected = append(rejected, "the response was cut off at the output limit; write a shorter page")
	}
	return "", "", "", rejected, nil
}

func (r *run) accept(track *pageTrack, doc string) {
	r.files.Set(track.filename, doc)
	r.accepted = append(r.accepted, site.PageArtifact{Filename: track.filename, Content: doc, Attempt: track.attempt})
	r.reports = append(r.reports, PageReport{Filename: track.filename, State: track.state, Attempts: track.attempt, History: track.history})
}

// finish is the completeness pass over the whole file set.
func (r *run) finish() {
	res := site.PipelineResult{Files: r.files, Mode: r.req.Mode, Success: true}
	total, scored, missing := 0, 0, 0
	for _, p := range r.req.Pages {
		name := p.Filename()
		content, ok := r.files.Get(name)
		if !ok || strings.TrimSpace(content) == "" {
			missing++
			res.Errors = append(res.Errors, name+": page missing from the file set")
			res.Success = false
			continue
		}
		report := validate.ValidatePage(content, r.o.Thresholds)
		score := report.Score
		if r.stateOf(name) == StateFallback {
			score = validate.Clamp(score - validate.PenaltyFallback)
		}
		total += score
		scored++
		r.setScore(name, score)
		if validate.HasStructuralCriticals(report) {
			res.Success = false
			for _, is := range report.Criticals() {
				res.Errors = append(res.Errors, name+": "+is.Message)
			}
			continue
		}
		for _, is := range report.Criticals() {
			r.warnings = append(r.warnings, name+": "+is.Message)
		}
	}
	if scored > 0 {
		res.QualityScore = validate.Clamp(total/scored - validate.PenaltyMissingPage*missing)
	}
	res.Warnings = r.warnings
	r.result = res
}

func (r *run) stateOf(filename string) PageState {
	for _, rep := range r.reports {
		if rep.Filename == filename {
			return rep.State
		}
	}
	return ""
}

func (r *run) setScore(filename string, score int) {
	for i := range r.reports {
		if r.reports[i].Filename == filename {
			r.reports[i].Score = score
		}
	}
}
