package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Result holds the best-effort markup, stylesheet and script pulled out of a
// raw model response. Any field may be empty.
type Result struct {
	Markup string
	Style  string
	Script string
}

// Empty reports whether nothing usable was found. Callers treat this as an
// extraction failure.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Markup) == "" && strings.TrimSpace(r.Style) == "" && strings.TrimSpace(r.Script) == ""
}

// Extractor defines a minimal interface for response extraction strategies.
type Extractor interface {
	// Extract must be deterministic and never fail.
	Extract(raw string) Result
}

// FenceExtractor implements Extractor with Extract.
type FenceExtractor struct{}

func (FenceExtractor) Extract(raw string) Result {
	return Extract(raw)
}

var (
	// The closing fence is optional so truncated responses still yield a block.
	fenceRe       = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z0-9_+.#-]*)[^\\n]*\\n(.*?)(?:```|\\z)")
	fenceMarkerRe = regexp.MustCompile("(?m)^[ \\t]*```[^\\n]*$")
	fullDocRe     = regexp.MustCompile(`(?is)<!doctype[^>]*>.*?</html\s*>`)
	htmlSpanRe    = regexp.MustCompile(`(?is)<html[\s>].*?</html\s*>`)
	docStartRe    = regexp.MustCompile(`(?i)<!doctype|<html[\s>]`)
	headSpanRe    = regexp.MustCompile(`(?is)<head[\s>].*?</head\s*>`)
	bodySpanRe    = regexp.MustCompile(`(?is)<body[\s>].*</body\s*>`)
	firstTagRe    = regexp.MustCompile(`<[a-zA-Z!/]`)
	cssSniffRe    = regexp.MustCompile(`(?s)^\s*(?:@[a-z-]+|[.#:*a-zA-Z\[][^{<]*)\{[^}]*:[^}]*\}`)
	jsSniffRe     = regexp.MustCompile(`\b(?:function\s*\w*\s*\(|const\s+\w+\s*=|let\s+\w+\s*=|document\.|window\.|=>)`)
	markupSniffRe = regexp.MustCompile(`(?i)<(?:!doctype|html|head|body|div|section|main|header|nav|footer|h[1-6]|p|ul|a)[\s>]`)
)

// Extract pulls candidate markup, style and script out of raw text that may
// mix prose, fenced code blocks (possibly mislabeled), bare tag soup, or a
// JSON wrapper.
func Extract(raw string) Result {
	text := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if text == "" {
		return Result{}
	}
	if r, ok := fromJSON(text); ok {
		return r
	}

	blocks := fenceRe.FindAllStringSubmatch(text, -1)
	if len(blocks) == 0 {
		return Result{Markup: documentFrom(text)}
	}

	var markup, styles, scripts []string
	for _, m := range blocks {
		lang := strings.ToLower(strings.TrimSpace(m[1]))
		body := strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		switch classify(lang, body) {
		case kindJSON:
			if r, ok := fromJSON(body); ok {
				markup = appendNonEmpty(markup, r.Markup)
				styles = appendNonEmpty(styles, r.Style)
				scripts = appendNonEmpty(scripts, r.Script)
			}
		case kindStyle:
			styles = append(styles, body)
		case kindScript:
			scripts = append(scripts, body)
		default:
			markup = append(markup, body)
		}
	}

	res := Result{
		Style:  strings.Join(styles, "\n\n"),
		Script: strings.Join(scripts, "\n\n"),
	}
	if doc := lastCompleteDocument(markup); doc != "" {
		res.Markup = doc
	} else if len(markup) > 0 {
		res.Markup = documentFrom(strings.Join(markup, "\n"))
	}
	if res.Markup == "" {
		// Markup may sit outside the fences, e.g. a bare document followed by a
		// fenced stylesheet.
		outside := fenceRe.ReplaceAllString(text, "")
		res.Markup = documentFrom(outside)
	}
	if res.Markup == "" && res.Style == "" && res.Script == "" {
		res.Markup = documentFrom(fenceMarkerRe.ReplaceAllString(text, ""))
	}
	return res
}

type blockKind int

const (
	kindMarkup blockKind = iota
	kindStyle
	kindScript
	kindJSON
)

// classify trusts the fence label unless the content clearly contradicts it.
func classify(lang, body string) blockKind {
	looksMarkup := markupSniffRe.MatchString(body)
	switch lang {
	case "css", "scss", "less":
		if looksMarkup {
			return kindMarkup
		}
		return kindStyle
	case "js", "javascript", "mjs", "jsx", "ts", "typescript":
		if looksMarkup && !jsSniffRe.MatchString(body) {
			return kindMarkup
		}
		return kindScript
	case "json":
		return kindJSON
	}
	if looksMarkup {
		return kindMarkup
	}
	if strings.HasPrefix(body, "{") {
		return kindJSON
	}
	if !strings.Contains(body, "<") {
		if cssSniffRe.MatchString(body) && !jsSniffRe.MatchString(body) {
			return kindStyle
		}
		if jsSniffRe.MatchString(body) {
			return kindScript
		}
	}
	return kindMarkup
}

// documentFrom applies the span preference order: full document, html span,
// truncated document, body span, bare tag soup.
func documentFrom(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := lastMatch(fullDocRe, s); m != "" {
		return m
	}
	if m := lastMatch(htmlSpanRe, s); m != "" {
		return m
	}
	if loc := docStartRe.FindStringIndex(s); loc != nil {
		// Truncated document: keep it verbatim from its start, the repairer
		// closes what is left open.
		return trimDanglingTag(s[loc[0]:])
	}
	if body := bodySpanRe.FindString(s); body != "" {
		head := headSpanRe.FindString(s)
		return wrapShell(head, body)
	}
	loc := firstTagRe.FindStringIndex(s)
	if loc == nil {
		return ""
	}
	soup := s[loc[0]:]
	if end := strings.LastIndex(soup, ">"); end >= 0 {
		soup = soup[:end+1]
	}
	soup = strings.TrimSpace(soup)
	if soup == "" {
		return ""
	}
	return wrapShell("", "<body>\n"+soup+"\n</body>")
}

// lastCompleteDocument returns the last block holding a whole document, so a
// draft followed by a revision yields only the revision.
func lastCompleteDocument(blocks []string) string {
	for i := len(blocks) - 1; i >= 0; i-- {
		if m := lastMatch(fullDocRe, blocks[i]); m != "" {
			return m
		}
		if m := lastMatch(htmlSpanRe, blocks[i]); m != "" {
			return m
		}
	}
	return ""
}

func lastMatch(re *regexp.Regexp, s string) string {
	all := re.FindAllString(s, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

const shellHead = "<head>\n<meta charset=\"UTF-8\">\n<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n</head>"

func wrapShell(head, body string) string {
	if strings.TrimSpace(head) == "" {
		head = shellHead
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n")
	b.WriteString(head)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n</html>")
	return b.String()
}

// trimDanglingTag drops a trailing partial tag such as "<di" left by a
// truncated stream.
func trimDanglingTag(s string) string {
	lt := strings.LastIndex(s, "<")
	if lt >= 0 && !strings.Contains(s[lt:], ">") {
		s = s[:lt]
	}
	return strings.TrimSpace(s)
}

var (
	jsonMarkupKeys = []string{"html", "markup", "content", "code", "page"}
	jsonStyleKeys  = []string{"css", "style", "styles", "stylesheet"}
	jsonScriptKeys = []string{"js", "script", "scripts", "javascript"}
)

// fromJSON unwraps {"html": ..., "css": ..., "js": ...} or
// {"files": {"index.html": ..., "style.css": ...}} payloads.
func fromJSON(s string) (Result, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return Result{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return Result{}, false
	}
	var res Result
	if files, ok := obj["files"].(map[string]any); ok {
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, _ := files[name].(string)
			lower := strings.ToLower(name)
			switch {
			case strings.HasSuffix(lower, ".css"):
				res.Style = joinNonEmpty(res.Style, v)
			case strings.HasSuffix(lower, ".js"):
				res.Script = joinNonEmpty(res.Script, v)
			case strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm"):
				if res.Markup == "" || lower == "index.html" {
					res.Markup = v
				}
			}
		}
	}
	if res.Markup == "" {
		res.Markup = firstString(obj, jsonMarkupKeys)
	}
	if res.Style == "" {
		res.Style = firstString(obj, jsonStyleKeys)
	}
	if res.Script == "" {
		res.Script = firstString(obj, jsonScriptKeys)
	}
	if res.Markup != "" {
		res.Markup = documentFrom(res.Markup)
	}
	res.Style = strings.TrimSpace(res.Style)
	res.Script = strings.TrimSpace(res.Script)
	if res.Empty() {
		return Result{}, false
	}
	return res, true
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func appendNonEmpty(list []string, s string) []string {
	if strings.TrimSpace(s) == "" {
		return list
	}
	return append(list, s)
}

func joinNonEmpty(a, b string) string {
	if strings.TrimSpace(a) == "" {
		return b
	}
	if strings.TrimSpace(b) == "" {
		return a
	}
	return a + "\n\n" + b
}
