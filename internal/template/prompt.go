package template

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/gosite/internal/assets"
	"github.com/hyperifyio/gosite/internal/site"
)

// PageInput carries what one page prompt needs.
type PageInput struct {
	Request site.GenerationRequest
	Page    site.PageSpec
	Index   int
	Assets  site.SharedAssets
	// Context is Markdown of pages already accepted; used on regeneration.
	Context string
	// Problems are the report messages of the rejected attempt.
	Problems []string
}

// AssetsPrompt builds the one-off request for the shared stylesheet, script,
// nav and footer.
func AssetsPrompt(req site.GenerationRequest) (system string, user string) {
	system = "You are a senior front-end designer. You write the shared assets of a small website: one stylesheet, one script, a navigation fragment and a footer fragment. " +
		"Respond with four fenced blocks in this order: ```css, ```js, then one ```html block containing exactly one <nav> element and one <footer> element. No prose."
	var sb strings.Builder
	sb.WriteString("Site name: ")
	sb.WriteString(req.SiteName)
	sb.WriteString("\nMode: ")
	sb.WriteString(ModeName(req.Mode))
	sb.WriteString("\n\nBrief:\n")
	sb.WriteString(strings.TrimSpace(req.RootPrompt))
	sb.WriteString("\n\nPages (the nav must link every one of these targets):")
	writePageList(&sb, req)
	sb.WriteString("\n\nRequirements:")
	sb.WriteString("\n- The stylesheet is responsive, styles nav.site-nav, footer.site-footer, main and section, and marks the active link with .active")
	sb.WriteString("\n- The script uses addEventListener only and must not depend on markup that may be missing")
	if req.Mode == site.ModeSPA {
		sb.WriteString("\n- The script shows the [data-route] section whose id matches location.hash and hides the others")
	}
	sb.WriteString("\n- The nav has class=\"site-nav\"; the footer has class=\"site-footer\"")
	return system, sb.String()
}

// PagePrompt builds the first request for a page.
func PagePrompt(in PageInput) (system string, user string) {
	p := ProfileFor(in.Request.Mode)
	return p.SystemPrompt, pageUser(in, p)
}

// RegenerationPrompt asks for a page again, listing what was wrong with the
// previous attempt and the pages already accepted.
func RegenerationPrompt(in PageInput) (system string, user string) {
	p := ProfileFor(in.Request.Mode)
	var sb strings.Builder
	sb.WriteString(pageUser(in, p))
	if len(in.Problems) > 0 {
		sb.WriteString("\n\nThe previous attempt was rejected:")
		for _, m := range in.Problems {
			sb.WriteString("\n- ")
			sb.WriteString(m)
		}
		sb.WriteString("\nWrite the whole page again and fix every problem.")
	}
	if strings.TrimSpace(in.Context) != "" {
		sb.WriteString("\n\nPages already written (Markdown), keep tone and facts consistent with them:\n\n")
		sb.WriteString(in.Context)
	}
	return p.SystemPrompt, sb.String()
}

func pageUser(in PageInput, p Profile) string {
	req := in.Request
	var sb strings.Builder
	if req.Mode == site.ModeSPA {
		sb.WriteString(fmt.Sprintf("Write %s, the only document of %q; every page below is one of its sections.", in.Page.Filename(), req.SiteName))
	} else {
		sb.WriteString(fmt.Sprintf("Write %s (page %d of %d) for %q.", in.Page.Filename(), in.Index+1, len(req.Pages), req.SiteName))
	}
	sb.WriteString("\nPage: ")
	sb.WriteString(in.Page.DisplayName)
	if d := strings.TrimSpace(in.Page.Description); d != "" {
		sb.WriteString("\nPurpose: ")
		sb.WriteString(d)
	}
	sb.WriteString("\n\nBrief:\n")
	sb.WriteString(strings.TrimSpace(req.RootPrompt))
	if len(p.Outline) > 0 {
		sb.WriteString("\n\nStructure:")
		for _, h := range p.Outline {
			sb.WriteString("\n- ")
			sb.WriteString(h)
		}
	}
	if p.UserPromptHint != "" {
		sb.WriteString("\n\n")
		sb.WriteString(p.UserPromptHint)
	}
	sb.WriteString("\n\nLink targets:")
	writePageList(&sb, req)
	sb.WriteString(fmt.Sprintf("\n\nLink <link rel=\"stylesheet\" href=%q> in the head and <script src=%q></script> at the end of the body.", site.StylesheetFile, site.ScriptFile))
	if in.Assets.Nav != "" {
		sb.WriteString("\nUse this navigation verbatim at the top of the body:\n")
		sb.WriteString(in.Assets.Nav)
	}
	if in.Assets.Footer != "" {
		sb.WriteString("\nUse this footer verbatim at the end of the body:\n")
		sb.WriteString(in.Assets.Footer)
	}
	return sb.String()
}

func writePageList(sb *strings.Builder, req site.GenerationRequest) {
	for _, pg := range req.Pages {
		sb.WriteString("\n- ")
		sb.WriteString(pg.DisplayName)
		sb.WriteString(": ")
		sb.WriteString(assets.Href(pg, req.Mode))
		if d := strings.TrimSpace(pg.Description); d != "" {
			sb.WriteString(" (")
			sb.WriteString(d)
			sb.WriteString(")")
		}
	}
}
