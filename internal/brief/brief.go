package brief

import (
	"bufio"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hyperifyio/gosite/internal/site"
)

// Brief is what can be read from a root prompt without asking a model. Every
// field may be empty; the planner fills the gaps.
type Brief struct {
	SiteName string
	// Mode is ModeMarkup unless the prompt names another mode; ModeExplicit
	// tells the two cases apart.
	Mode         site.Mode
	ModeExplicit bool
	Pages        []site.PageSpec
	// Raw is the original prompt.
	Raw string
}

var (
	headingRe    = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*$`)
	nameLineRe   = regexp.MustCompile(`(?i)^\s*(?:site\s*name|business\s*name|name|brand)\s*[:\-]\s*(.+?)\s*$`)
	modeLineRe   = regexp.MustCompile(`(?i)^\s*(?:mode|type|stack)\s*[:\-]\s*(.+?)\s*$`)
	pagesLineRe  = regexp.MustCompile(`(?i)^\s*pages?\s*[:\-]\s*(.*?)\s*$`)
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.+?)\s*$`)
	itemSplitRe  = regexp.MustCompile(`\s+[-\x{2013}\x{2014}]\s+|\s*:\s+`)
	forNameRe    = regexp.MustCompile(`\b(?:for|called|named)\s+(?:(?:a|an|the|my|our)\s+)?((?:[A-Z][\w'&.]*)(?:\s+(?:&\s+)?[A-Z][\w'&.]*)*)`)
	spaWordsRe   = regexp.MustCompile(`(?i)\b(?:single[\s-]page(?:\s+app(?:lication)?)?|spa)\b`)
	frameworkRe  = regexp.MustCompile(`(?i)\b(?:react|vue|svelte|next\.?js|angular|jsx)\b`)
	markupWordRe = regexp.MustCompile(`(?i)\b(?:static|plain\s+html|multi[\s-]page)\b`)
)

// Parse reads a root prompt. It is deterministic and never fails: a
// `Site name:` line or the first heading names the site, a `Pages:` line or
// the bullet list under it lists pages as `Name - description`, and mode
// keywords select the generation mode.
func Parse(input string) Brief {
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := Brief{Raw: input, Mode: site.ModeMarkup}
	var heading string
	inPages := false
	seen := map[string]bool{}
	add := func(item string) {
		p, ok := pageFromItem(item)
		if !ok || seen[p.Slug] {
			return
		}
		seen[p.Slug] = true
		b.Pages = append(b.Pages, p)
	}

	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" {
			inPages = false
			continue
		}
		if inPages {
			if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
				add(m[1])
				continue
			}
			inPages = false
		}
		if m := pagesLineRe.FindStringSubmatch(trimmed); m != nil {
			if m[1] == "" {
				inPages = true
				continue
			}
			for _, item := range strings.Split(m[1], ",") {
				add(item)
			}
			continue
		}
		if b.SiteName == "" {
			if m := nameLineRe.FindStringSubmatch(trimmed); m != nil {
				b.SiteName = cleanName(m[1])
				continue
			}
		}
		if !b.ModeExplicit {
			if m := modeLineRe.FindStringSubmatch(trimmed); m != nil {
				b.Mode, b.ModeExplicit = detectMode(m[1])
				if !b.ModeExplicit {
					b.Mode = site.ParseMode(m[1])
					b.ModeExplicit = true
				}
				continue
			}
		}
		if heading == "" {
			if m := headingRe.FindStringSubmatch(trimmed); m != nil {
				heading = cleanName(m[1])
			}
		}
	}

	if b.SiteName == "" {
		b.SiteName = heading
	}
	if b.SiteName == "" {
		if m := forNameRe.FindStringSubmatch(input); m != nil {
			b.SiteName = cleanName(m[1])
		}
	}
	if !b.ModeExplicit {
		b.Mode, b.ModeExplicit = detectMode(input)
	}
	return b
}

// detectMode looks for mode keywords. A framework name wins over a
// single-page hint since the framework page is still multi-page markup.
func detectMode(s string) (site.Mode, bool) {
	switch {
	case frameworkRe.MatchString(s):
		return site.ModeFramework, true
	case spaWordsRe.MatchString(s):
		return site.ModeSPA, true
	case markupWordRe.MatchString(s):
		return site.ModeMarkup, true
	}
	return site.ModeMarkup, false
}

func pageFromItem(item string) (site.PageSpec, bool) {
	item = strings.TrimSpace(strings.Trim(item, " \t.;"))
	if item == "" {
		return site.PageSpec{}, false
	}
	name, desc := item, ""
	if loc := itemSplitRe.FindStringIndex(item); loc != nil {
		name, desc = item[:loc[0]], strings.TrimSpace(item[loc[1]:])
	}
	name = cleanName(name)
	slug := site.Slugify(name)
	if slug == "" {
		return site.PageSpec{}, false
	}
	switch slug {
	case "home", "homepage", "home-page", "landing", "landing-page", "index":
		slug = "index"
	}
	display := name
	if display == strings.ToLower(display) {
		display = cases.Title(language.English).String(display)
	}
	if slug == "index" {
		display = "Home"
	}
	return site.PageSpec{Slug: slug, DisplayName: display, Description: desc}, true
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`*_\"'")
	s = strings.TrimSuffix(s, " page")
	return strings.TrimRight(strings.TrimSpace(s), " #:-.")
}
