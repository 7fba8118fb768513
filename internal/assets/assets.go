// Package assets owns the files every page shares: the stylesheet, the
// script, and the nav and footer fragments. It builds the built-in defaults,
// parses generated assets, and links them into finished pages.
package assets

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/hyperifyio/gosite/internal/extract"
	"github.com/hyperifyio/gosite/internal/markup"
	"github.com/hyperifyio/gosite/internal/site"
)

var (
	navSpanRe    = regexp.MustCompile(`(?is)<nav\b[^>]*>.*?</nav\s*>`)
	footerSpanRe = regexp.MustCompile(`(?is)<footer\b[^>]*>.*?</footer\s*>`)
	navOpenRe    = regexp.MustCompile(`(?i)<nav[\s>]`)
	footerOpenRe = regexp.MustCompile(`(?i)<footer[\s>]`)
	headOpenRe   = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	headCloseRe  = regexp.MustCompile(`(?i)</head\s*>`)
	bodyOpenRe   = regexp.MustCompile(`(?i)<body(?:\s[^>]*)?>`)
	bodyCloseRe  = regexp.MustCompile(`(?i)</body\s*>`)
	headerSpanRe = regexp.MustCompile(`(?is)^\s*<header\b[^>]*>.*?</header\s*>`)
	stylesheetRe = regexp.MustCompile(`(?i)<link\b[^>]*href\s*=\s*["']?(?:\./)?` + regexp.QuoteMeta(site.StylesheetFile))
	scriptRefRe  = regexp.MustCompile(`(?i)<script\b[^>]*src\s*=\s*["']?(?:\./)?` + regexp.QuoteMeta(site.ScriptFile))
)

// Href returns the link target of page in the given mode.
func Href(p site.PageSpec, mode site.Mode) string {
	if mode == site.ModeSPA {
		return "#" + p.Slug
	}
	return p.Filename()
}

// NavFragment renders a nav linking every page in request order.
func NavFragment(req site.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(`<nav class="site-nav" aria-label="Main">`)
	b.WriteString(`<a class="brand" href="` + Href(Home(req), req.Mode) + `">` + html.EscapeString(req.SiteName) + `</a>`)
	b.WriteString(`<ul>`)
	for _, p := range req.Pages {
		b.WriteString(`<li><a href="` + Href(p, req.Mode) + `">` + html.EscapeString(p.DisplayName) + `</a></li>`)
	}
	b.WriteString(`</ul></nav>`)
	return b.String()
}

// FooterFragment renders the shared footer.
func FooterFragment(req site.GenerationRequest) string {
	return `<footer class="site-footer"><p>&copy; ` + html.EscapeString(req.SiteName) + `. All rights reserved.</p></footer>`
}

// Home returns the entry page of req: the index page, else the first page.
func Home(req site.GenerationRequest) site.PageSpec {
	for _, p := range req.Pages {
		if p.IsHome() {
			return p
		}
	}
	if len(req.Pages) > 0 {
		return req.Pages[0]
	}
	return site.PageSpec{Slug: "index", DisplayName: "Home"}
}

// Defaults returns the built-in assets used when generation fails.
func Defaults(req site.GenerationRequest) site.SharedAssets {
	script := defaultScript
	if req.Mode == site.ModeSPA {
		script += "\n" + spaRouterScript
	}
	return site.SharedAssets{
		Stylesheet: defaultStylesheet,
		Script:     script,
		Nav:        NavFragment(req),
		Footer:     FooterFragment(req),
	}
}

// Merge fills every empty field of generated from defaults.
func Merge(generated, defaults site.SharedAssets) (site.SharedAssets, []string) {
	var substituted []string
	if strings.TrimSpace(generated.Stylesheet) == "" {
		generated.Stylesheet = defaults.Stylesheet
		substituted = append(substituted, "stylesheet")
	}
	if strings.TrimSpace(generated.Script) == "" {
		generated.Script = defaults.Script
		substituted = append(substituted, "script")
	}
	if strings.TrimSpace(generated.Nav) == "" {
		generated.Nav = defaults.Nav
		substituted = append(substituted, "nav")
	}
	if strings.TrimSpace(generated.Footer) == "" {
		generated.Footer = defaults.Footer
		substituted = append(substituted, "footer")
	}
	return generated, substituted
}

// Parse reads a shared-asset response: fenced css/js/html blocks or a JSON
// object with css, js, nav and footer keys. Missing parts stay empty.
func Parse(raw string) site.SharedAssets {
	var out site.SharedAssets
	if obj, ok := parseJSON(raw); ok {
		out = obj
	} else {
		res := extract.Extract(raw)
		out.Stylesheet = res.Style
		out.Script = res.Script
		out.Nav = navSpanRe.FindString(res.Markup)
		out.Footer = footerSpanRe.FindString(res.Markup)
		if out.Nav == "" {
			out.Nav = navSpanRe.FindString(raw)
		}
		if out.Footer == "" {
			out.Footer = footerSpanRe.FindString(raw)
		}
	}
	out.Stylesheet = strings.TrimSpace(out.Stylesheet)
	out.Script = strings.TrimSpace(out.Script)
	out.Nav = strings.TrimSpace(out.Nav)
	out.Footer = strings.TrimSpace(out.Footer)
	// Unbalanced fragments are dropped so the defaults fill in.
	if out.Nav != "" && (!markup.Balanced(out.Nav) || !navOpenRe.MatchString(out.Nav)) {
		out.Nav = ""
	}
	if out.Footer != "" && !markup.Balanced(out.Footer) {
		out.Footer = ""
	}
	return out
}

func parseJSON(raw string) (site.SharedAssets, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return site.SharedAssets{}, false
	}
	var obj struct {
		CSS        string `json:"css"`
		Stylesheet string `json:"stylesheet"`
		JS         string `json:"js"`
		Script     string `json:"script"`
		Nav        string `json:"nav"`
		Footer     string `json:"footer"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return site.SharedAssets{}, false
	}
	out := site.SharedAssets{Stylesheet: obj.CSS, Script: obj.JS, Nav: obj.Nav, Footer: obj.Footer}
	if out.Stylesheet == "" {
		out.Stylesheet = obj.Stylesheet
	}
	if out.Script == "" {
		out.Script = obj.Script
	}
	return out, true
}

// Apply links the shared stylesheet and script into doc and inserts the
// shared nav and footer when the page has none. It is idempotent.
func Apply(doc string, a site.SharedAssets) string {
	blank := markup.BlankRaw(doc)
	if !stylesheetRe.MatchString(blank) {
		doc = insertHead(doc, `<link rel="stylesheet" href="`+site.StylesheetFile+`">`)
	}
	blank = markup.BlankRaw(doc)
	if a.Nav != "" && !navOpenRe.MatchString(blank) {
		if loc := bodyOpenRe.FindStringIndex(blank); loc != nil {
			at := loc[1]
			if h := headerSpanRe.FindStringIndex(blank[at:]); h != nil {
				at += h[1]
			}
			doc = doc[:at] + "\n" + a.Nav + doc[at:]
		}
	}
	blank = markup.BlankRaw(doc)
	if a.Footer != "" && !footerOpenRe.MatchString(blank) {
		doc = insertBodyEnd(doc, a.Footer)
	}
	if !scriptRefRe.MatchString(doc) {
		doc = insertBodyEnd(doc, `<script src="`+site.ScriptFile+`"></script>`)
	}
	return doc
}

// Embed adds page-specific style and script found next to the page markup.
// Blocks already present in the document are not added again.
func Embed(doc, style, script string) string {
	style = strings.TrimSpace(style)
	script = strings.TrimSpace(script)
	if style != "" && !strings.Contains(doc, style) {
		doc = insertHead(doc, "<style>\n"+style+"\n</style>")
	}
	if script != "" && !strings.Contains(doc, script) {
		doc = insertBodyEnd(doc, "<script>\n"+strings.ReplaceAll(script, "</script", `<\/script`)+"\n</script>")
	}
	return doc
}

// DeepLink turns the single-page shell into the document served at a section's
// own filename: the shell plus a canonical link and a refresh to
// shellFile#slug.
func DeepLink(shell, shellFile, slug string) string {
	target := html.EscapeString(shellFile + "#" + slug)
	if deepLinkRe.MatchString(markup.BlankRaw(shell)) {
		return shell
	}
	return insertHead(shell, `<link rel="canonical" href="`+target+`">`+"\n"+`<meta http-equiv="refresh" content="0; url=`+target+`">`)
}

var deepLinkRe = regexp.MustCompile(`(?i)<meta\b[^>]*http-equiv\s*=\s*["']?refresh`)

func insertHead(doc, snippet string) string {
	blank := markup.BlankRaw(doc)
	if loc := headCloseRe.FindStringIndex(blank); loc != nil {
		return doc[:loc[0]] + snippet + "\n" + doc[loc[0]:]
	}
	if loc := headOpenRe.FindStringIndex(blank); loc != nil {
		return doc[:loc[1]] + "\n" + snippet + doc[loc[1]:]
	}
	return doc
}

func insertBodyEnd(doc, snippet string) string {
	all := bodyCloseRe.FindAllStringIndex(markup.BlankRaw(doc), -1)
	if len(all) == 0 {
		return strings.TrimRight(doc, " \t\r\n") + "\n" + snippet
	}
	at := all[len(all)-1][0]
	return doc[:at] + snippet + "\n" + doc[at:]
}
