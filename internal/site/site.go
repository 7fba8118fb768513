package site

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode selects how the artifact is generated.
type Mode string

const (
	// ModeMarkup produces one static document per page.
	ModeMarkup Mode = "markup"
	// ModeSPA produces a single shell document with hash-routed sections.
	ModeSPA Mode = "spa"
	// ModeFramework was requested as a component framework but is still
	// delivered as plain markup.
	ModeFramework Mode = "framework"
)

// ParseMode maps free-form input onto a Mode, defaulting to ModeMarkup.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spa", "single-page", "single page", "single page app":
		return ModeSPA
	case "framework", "react", "vue", "svelte", "next", "nextjs", "next.js":
		return ModeFramework
	default:
		return ModeMarkup
	}
}

// Shared asset filenames.
const (
	StylesheetFile = "style.css"
	ScriptFile     = "script.js"
)

// PageSpec describes one page to generate. Slug is unique per request.
type PageSpec struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// IsHome reports whether the page is the site entry point.
func (p PageSpec) IsHome() bool {
	return p.Slug == "index"
}

// Filename returns index.html for the home page and {slug}.html otherwise.
func (p PageSpec) Filename() string {
	if p.IsHome() {
		return "index.html"
	}
	return p.Slug + ".html"
}

// GenerationRequest is the immutable input of one orchestration run.
type GenerationRequest struct {
	RootPrompt string     `json:"rootPrompt"`
	SiteName   string     `json:"siteName"`
	Mode       Mode       `json:"mode"`
	Pages      []PageSpec `json:"pages"`
}

// Filenames lists the page filenames in request order.
func (r GenerationRequest) Filenames() []string {
	out := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		out = append(out, p.Filename())
	}
	return out
}

// SharedAssets are generated once per request and read by every page step.
type SharedAssets struct {
	Stylesheet string `json:"stylesheet"`
	Script     string `json:"script"`
	Nav        string `json:"nav"`
	Footer     string `json:"footer"`
}

// PageArtifact is the output of a single generation attempt for one page.
// A later attempt supersedes an earlier one; artifacts are never mutated.
type PageArtifact struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Attempt  int    `json:"attempt"`
}

// PipelineResult is the terminal artifact of one run.
type PipelineResult struct {
	Files        *FileMap `json:"files"`
	Mode         Mode     `json:"mode"`
	Warnings     []string `json:"warnings"`
	Errors       []string `json:"errors"`
	QualityScore int      `json:"qualityScore"`
	Success      bool     `json:"success"`
}

// UniquePages slugifies every page and renames the ones whose filename is
// already taken, so each spec owns exactly one file. It returns one note per
// renamed page.
func UniquePages(pages []PageSpec) ([]PageSpec, []string) {
	out := make([]PageSpec, 0, len(pages))
	taken := map[string]bool{StylesheetFile: true, ScriptFile: true}
	var notes []string
	for i, p := range pages {
		slug := Slugify(p.Slug)
		if slug == "" {
			slug = Slugify(p.DisplayName)
		}
		if slug == "" {
			slug = "page-" + strconv.Itoa(i+1)
		}
		base := slug
		for n := 2; taken[(PageSpec{Slug: slug}).Filename()]; n++ {
			slug = base + "-" + strconv.Itoa(n)
		}
		if slug != base {
			notes = append(notes, fmt.Sprintf("page %q renamed to %q, its filename was already taken", p.Slug, slug))
		}
		p.Slug = slug
		if strings.TrimSpace(p.DisplayName) == "" {
			p.DisplayName = DisplayNameFromSlug(slug)
		}
		taken[p.Filename()] = true
		out = append(out, p)
	}
	return out, notes
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of non-alphanumerics into a
// single dash.
func Slugify(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = slugRe.ReplaceAllString(v, "-")
	return strings.Trim(v, "-")
}

// DisplayNameFromSlug turns "about-us" into "About Us".
func DisplayNameFromSlug(slug string) string {
	if slug == "index" || slug == "home" {
		return "Home"
	}
	words := strings.ReplaceAll(strings.TrimSpace(slug), "-", " ")
	return cases.Title(language.English).String(words)
}
