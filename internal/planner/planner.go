package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosite/internal/brief"
	"github.com/hyperifyio/gosite/internal/llm"
	"github.com/hyperifyio/gosite/internal/site"
)

// MaxPages caps the number of pages in one plan.
const MaxPages = 8

// DefaultSiteName is used when neither the prompt nor the model names the site.
const DefaultSiteName = "My Site"

// Plan is the detected shape of the site.
type Plan struct {
	Mode     site.Mode       `json:"mode"`
	SiteName string          `json:"siteName"`
	Pages    []site.PageSpec `json:"pages"`
}

// Request turns the plan into the immutable orchestration input.
func (p Plan) Request(rootPrompt string) site.GenerationRequest {
	pages := make([]site.PageSpec, len(p.Pages))
	copy(pages, p.Pages)
	return site.GenerationRequest{RootPrompt: rootPrompt, SiteName: p.SiteName, Mode: p.Mode, Pages: pages}
}

// Planner detects mode, site name and pages from a root prompt.
type Planner interface {
	Plan(ctx context.Context, b brief.Brief) (Plan, error)
}

// ErrInsufficientPlan is returned when a model plan has no usable pages.
var ErrInsufficientPlan = errors.New("insufficient planner output")

// LLMPlanner asks the generation service for a plan and enforces a JSON-only
// contract.
type LLMPlanner struct {
	Generator llm.Generator
	Verbose   bool
}

const systemMessage = "You are a website planning assistant. Respond with strict JSON only, no narration. " +
	"The JSON schema is {\"mode\": \"markup\"|\"spa\"|\"framework\", \"siteName\": string, \"pages\": [{\"slug\": string, \"name\": string, \"description\": string}] (1..8)}. " +
	"The first page is the home page with slug \"index\". Slugs are lowercase words joined by dashes. Use mode \"spa\" only when a single-page app is requested and \"framework\" only when a component framework is named."

// Plan implements Planner. Model output that is not JSON, or that has no pages,
// is an error so callers can fall back.
func (p *LLMPlanner) Plan(ctx context.Context, b brief.Brief) (Plan, error) {
	if p == nil || p.Generator == nil {
		return Plan{}, llm.ErrNotConfigured
	}
	user := buildUserPrompt(b)
	if p.Verbose {
		log.Debug().Str("stage", "planner").Int("system_len", len(systemMessage)).Int("user_len", len(user)).Msg("planner prompt")
	}
	resp, err := p.Generator.Generate(ctx, llm.Request{SystemPrompt: systemMessage, UserPrompt: user, MaxOutputTokens: 800})
	if err != nil {
		return Plan{}, fmt.Errorf("planner call: %w", err)
	}
	plan, err := parsePlan(resp.Content)
	if err != nil {
		return Plan{}, err
	}
	if len(plan.Pages) == 0 {
		return Plan{}, ErrInsufficientPlan
	}
	plan.Pages = sanitizePages(plan.Pages)
	return applyBrief(plan, b), nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

func parsePlan(raw string) (Plan, error) {
	obj := jsonObjectRe.FindString(raw)
	if obj == "" {
		return Plan{}, fmt.Errorf("parse planner json: %w", ErrInsufficientPlan)
	}
	var payload struct {
		Mode     string `json:"mode"`
		SiteName string `json:"siteName"`
		Pages    []struct {
			Slug        string `json:"slug"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"pages"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return Plan{}, fmt.Errorf("parse planner json: %w", err)
	}
	plan := Plan{Mode: site.ParseMode(payload.Mode), SiteName: strings.TrimSpace(payload.SiteName)}
	for _, pg := range payload.Pages {
		plan.Pages = append(plan.Pages, site.PageSpec{Slug: pg.Slug, DisplayName: pg.Name, Description: pg.Description})
	}
	return plan, nil
}

// FallbackPlanner plans deterministically from the brief: its own page list
// when it has one, otherwise the home page plus pages named by keyword.
type FallbackPlanner struct{}

func (p *FallbackPlanner) Plan(_ context.Context, b brief.Brief) (Plan, error) {
	pages := b.Pages
	if len(pages) == 0 {
		pages = keywordPages(b.Raw)
	}
	return applyBrief(Plan{Mode: site.ModeMarkup, Pages: sanitizePages(pages)}, b), nil
}

// Detector tries Primary and falls back to Fallback on any error. A brief that
// already names the site and its pages skips the model call.
type Detector struct {
	Primary  Planner
	Fallback Planner
}

func (d *Detector) Plan(ctx context.Context, b brief.Brief) (Plan, error) {
	fallback := d.Fallback
	if fallback == nil {
		fallback = &FallbackPlanner{}
	}
	if d.Primary == nil || (b.SiteName != "" && len(b.Pages) > 0) {
		return fallback.Plan(ctx, b)
	}
	plan, err := d.Primary.Plan(ctx, b)
	if err == nil {
		return plan, nil
	}
	if ctx.Err() != nil {
		return Plan{}, ctx.Err()
	}
	log.Warn().Err(err).Str("stage", "planner").Msg("model plan failed; using deterministic plan")
	return fallback.Plan(ctx, b)
}

// applyBrief lets what the prompt states explicitly win over the plan.
func applyBrief(plan Plan, b brief.Brief) Plan {
	if b.ModeExplicit {
		plan.Mode = b.Mode
	}
	if plan.Mode == "" {
		plan.Mode = site.ModeMarkup
	}
	if b.SiteName != "" {
		plan.SiteName = b.SiteName
	}
	if plan.SiteName == "" {
		plan.SiteName = DefaultSiteName
	}
	if len(b.Pages) > 0 {
		plan.Pages = sanitizePages(b.Pages)
	}
	if len(plan.Pages) == 0 {
		plan.Pages = sanitizePages(nil)
	}
	return plan
}

func buildUserPrompt(b brief.Brief) string {
	var sb strings.Builder
	sb.WriteString("Root prompt:\n")
	sb.WriteString(strings.TrimSpace(b.Raw))
	if b.SiteName != "" {
		sb.WriteString("\n\nSite name: ")
		sb.WriteString(b.SiteName)
	}
	if b.ModeExplicit {
		sb.WriteString("\nMode: ")
		sb.WriteString(string(b.Mode))
	}
	if len(b.Pages) > 0 {
		sb.WriteString("\nRequested pages:")
		for _, pg := range b.Pages {
			sb.WriteString("\n- ")
			sb.WriteString(pg.DisplayName)
		}
	}
	return sb.String()
}

// sanitizePages slugifies, drops duplicates, puts the home page first
// (adding one when missing) and caps the list at MaxPages.
func sanitizePages(in []site.PageSpec) []site.PageSpec {
	var home *site.PageSpec
	rest := make([]site.PageSpec, 0, len(in))
	seen := map[string]bool{}
	for _, pg := range in {
		slug := site.Slugify(pg.Slug)
		if slug == "" {
			slug = site.Slugify(pg.DisplayName)
		}
		if slug == "" {
			continue
		}
		if slug == "home" || slug == "homepage" || slug == "index" {
			slug = "index"
		}
		if seen[slug] {
			continue
		}
		seen[slug] = true
		pg.Slug = slug
		pg.DisplayName = strings.TrimSpace(pg.DisplayName)
		pg.Description = strings.TrimSpace(pg.Description)
		if pg.DisplayName == "" || slug == "index" {
			pg.DisplayName = site.DisplayNameFromSlug(slug)
		}
		if slug == "index" {
			p := pg
			home = &p
			continue
		}
		rest = append(rest, pg)
	}
	if home == nil {
		home = &site.PageSpec{Slug: "index", DisplayName: "Home"}
	}
	out := append([]site.PageSpec{*home}, rest...)
	if len(out) > MaxPages {
		out = out[:MaxPages]
	}
	return out
}
