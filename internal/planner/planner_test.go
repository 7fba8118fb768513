package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperifyio/gosite/internal/brief"
	"github.com/hyperifyio/gosite/internal/llm"
	"github.com/hyperifyio/gosite/internal/site"
)

func fixed(content string, err error) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{Content: content}, err
	})
}

func slugs(pages []site.PageSpec) string {
	var out []string
	for _, p := range pages {
		out = append(out, p.Slug)
	}
	return strings.Join(out, ",")
}

func TestFallbackPlanner_KeywordPages(t *testing.T) {
	b := brief.Parse("A bakery site with our menu, a photo gallery and a contact form")
	plan, err := (&FallbackPlanner{}).Plan(context.Background(), b)
	if err != nil {
		t.Fatalf("fallback plan error: %v", err)
	}
	if got := slugs(plan.Pages); got != "index,menu,gallery,contact" {
		t.Fatalf("unexpected pages %q", got)
	}
	if plan.SiteName != DefaultSiteName || plan.Mode != site.ModeMarkup {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestFallbackPlanner_NoKeywordsGetsDefaults(t *testing.T) {
	plan, _ := (&FallbackPlanner{}).Plan(context.Background(), brief.Parse("Something nice"))
	if got := slugs(plan.Pages); got != "index,about,contact" {
		t.Fatalf("unexpected pages %q", got)
	}
}

func TestLLMPlanner_ParsesAndSanitizes(t *testing.T) {
	raw := "```json\n" + `{"mode": "spa", "siteName": "Fern", "pages": [
		{"slug": "About Us", "name": "About us"},
		{"slug": "home", "name": "Start"},
		{"slug": "about-us", "name": "Dup"},
		{"slug": "", "name": "Class Schedule", "description": " weekly "},
		{"slug": "a"}, {"slug": "b"}, {"slug": "c"}, {"slug": "d"}, {"slug": "e"}, {"slug": "f"}
	]}` + "\n```"
	p := &LLMPlanner{Generator: fixed(raw, nil)}
	plan, err := p.Plan(context.Background(), brief.Brief{Mode: site.ModeMarkup})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Mode != site.ModeSPA || plan.SiteName != "Fern" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if got := slugs(plan.Pages); got != "index,about-us,class-schedule,a,b,c,d,e" {
		t.Fatalf("unexpected pages %q", got)
	}
	if plan.Pages[0].DisplayName != "Home" || plan.Pages[2].Description != "weekly" {
		t.Fatalf("unexpected page fields %+v", plan.Pages)
	}
}

func TestLLMPlanner_ExplicitBriefWins(t *testing.T) {
	p := &LLMPlanner{Generator: fixed(`{"mode": "framework", "siteName": "Model Name", "pages": [{"slug": "index"}]}`, nil)}
	b := brief.Brief{SiteName: "Given", Mode: site.ModeMarkup, ModeExplicit: true}
	plan, err := p.Plan(context.Background(), b)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.SiteName != "Given" || plan.Mode != site.ModeMarkup {
		t.Fatalf("brief should win, got %+v", plan)
	}
}

func TestLLMPlanner_Errors(t *testing.T) {
	if _, err := (&LLMPlanner{}).Plan(context.Background(), brief.Brief{}); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := (&LLMPlanner{Generator: fixed("no json here", nil)}).Plan(context.Background(), brief.Brief{}); !errors.Is(err, ErrInsufficientPlan) {
		t.Fatalf("expected ErrInsufficientPlan, got %v", err)
	}
	if _, err := (&LLMPlanner{Generator: fixed(`{"pages": []}`, nil)}).Plan(context.Background(), brief.Brief{}); !errors.Is(err, ErrInsufficientPlan) {
		t.Fatalf("expected ErrInsufficientPlan for empty pages, got %v", err)
	}
}

func TestDetector_FallsBackOnError(t *testing.T) {
	d := &Detector{Primary: &LLMPlanner{Generator: fixed("", llm.ErrEmptyResponse)}}
	plan, err := d.Plan(context.Background(), brief.Parse("Pricing for a small studio"))
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	if got := slugs(plan.Pages); got != "index,pricing" {
		t.Fatalf("unexpected pages %q", got)
	}
}

func TestDetector_SkipsModelWhenBriefIsComplete(t *testing.T) {
	called := false
	d := &Detector{Primary: &LLMPlanner{Generator: llm.GeneratorFunc(func(context.Context, llm.Request) (llm.Response, error) {
		called = true
		return llm.Response{}, nil
	})}}
	plan, err := d.Plan(context.Background(), brief.Parse("Name: Crumb\nPages: Menu, Contact"))
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	if called {
		t.Fatalf("model should not be called")
	}
	if got := slugs(plan.Pages); got != "index,menu,contact" {
		t.Fatalf("unexpected pages %q", got)
	}
}

func TestDetector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Detector{Primary: &LLMPlanner{Generator: fixed("", context.Canceled)}}
	if _, err := d.Plan(ctx, brief.Brief{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPlan_RequestCopiesPages(t *testing.T) {
	plan := Plan{SiteName: "x", Pages: []site.PageSpec{{Slug: "index"}}}
	req := plan.Request("prompt")
	plan.Pages[0].Slug = "changed"
	if req.Pages[0].Slug != "index" || req.RootPrompt != "prompt" {
		t.Fatalf("request should own its pages, got %+v", req)
	}
}
