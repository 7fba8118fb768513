// Package repair patches the defects the validator can name. Every fix
// re-checks the document before touching it, so Repair is a fixed point:
// running it on its own output changes nothing.
package repair

import (
	"regexp"
	"strings"

	"github.com/hyperifyio/gosite/internal/markup"
	"github.com/hyperifyio/gosite/internal/validate"
)

// Sentinel attributes carried by injected blocks.
const (
	BridgeAttr    = `data-gap-bridge="true"`
	MainAttr      = `data-repair="main"`
	DefaultLang   = "en"
	metaCharset   = `<meta charset="UTF-8">`
	metaViewport  = `<meta name="viewport" content="width=device-width, initial-scale=1.0">`
	maxDescLength = 155
)

// Repairer implements Repair as a method for callers that take an interface.
type Repairer struct{}

func (Repairer) Repair(content string, issues []validate.Issue) string {
	return Repair(content, issues)
}

var (
	doctypeRe   = regexp.MustCompile(`(?i)<!doctype\s+html[^>]*>`)
	htmlOpenRe  = regexp.MustCompile(`(?i)<html(?:\s[^>]*)?>`)
	htmlCloseRe = regexp.MustCompile(`(?i)</html\s*>`)
	headOpenRe  = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	headCloseRe = regexp.MustCompile(`(?i)</head\s*>`)
	headSpanRe  = regexp.MustCompile(`(?is)<head(?:\s[^>]*)?>(.*?)</head\s*>`)
	bodyOpenRe  = regexp.MustCompile(`(?i)<body(?:\s[^>]*)?>`)
	bodyCloseRe = regexp.MustCompile(`(?i)</body\s*>`)
	titleRe     = regexp.MustCompile(`(?is)<title\b[^>]*>.*?</title\s*>`)
)

// Repair applies the structural fixes selected by issues, then the always-on
// micro repairs. A nil issue list selects every structural fix.
func Repair(content string, issues []validate.Issue) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	out := closeRawRegions(content)
	if wants(issues, validate.KindInvalidStructure) {
		out = keepLastDocument(out)
	}
	if wants(issues, validate.KindInvalidStructure) && validate.OrderingViolated(out) {
		out = rebuild(out)
	}
	if wants(issues, validate.KindMissingTag) {
		out = ensureSkeleton(out)
		out = ensureDoctype(out)
	}
	if wants(issues, validate.KindUnclosedTag) {
		out = closeUnclosed(out)
	}
	if isFullDocument(out) {
		out = micro(out)
	}
	return out
}

var (
	scriptOpenRe  = regexp.MustCompile(`(?i)<script\b[^>]*>`)
	scriptCloseRe = regexp.MustCompile(`(?i)</script\s*>`)
	styleOpenRe   = regexp.MustCompile(`(?i)<style\b[^>]*>`)
	styleCloseRe  = regexp.MustCompile(`(?i)</style\s*>`)
)

// closeRawRegions terminates a script, style or comment left open by a
// truncated response, so later passes can tell markup from code.
func closeRawRegions(s string) string {
	if i := strings.LastIndex(s, "<!--"); i >= 0 && !strings.Contains(s[i:], "-->") {
		s += "-->"
	}
	for _, p := range []struct {
		open, close *regexp.Regexp
		tag         string
	}{{scriptOpenRe, scriptCloseRe, "</script>"}, {styleOpenRe, styleCloseRe, "</style>"}} {
		opens := p.open.FindAllStringIndex(s, -1)
		if len(opens) == 0 {
			continue
		}
		last := opens[len(opens)-1]
		if !p.close.MatchString(s[last[1]:]) {
			s += p.tag
		}
	}
	return s
}

// keepLastDocument drops everything before the last <html> when a response
// carries several documents, together with that document's own doctype.
func keepLastDocument(s string) string {
	blank := markup.BlankRaw(s)
	all := htmlOpenRe.FindAllStringIndex(blank, -1)
	if len(all) < 2 {
		return s
	}
	start := all[len(all)-1][0]
	if docs := doctypeRe.FindAllStringIndex(blank[:start], -1); len(docs) > 0 {
		if d := docs[len(docs)-1]; strings.TrimSpace(blank[d[1]:start]) == "" {
			start = d[0]
		}
	}
	return s[start:]
}

func wants(issues []validate.Issue, kind validate.Kind) bool {
	if issues == nil {
		return true
	}
	for _, is := range issues {
		if is.Kind == kind {
			return true
		}
	}
	return false
}

// find locates re in s outside comments and script/style elements.
func find(re *regexp.Regexp, s string) []int {
	return re.FindStringIndex(markup.BlankRaw(s))
}

func lastIndex(re *regexp.Regexp, s string) []int {
	all := re.FindAllStringIndex(markup.BlankRaw(s), -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

var headElements = map[string]bool{
	"title": true, "meta": true, "link": true, "style": true, "script": true,
	"base": true, "noscript": true, "template": true,
}

// headEnd returns where an unterminated head ends: at <body> or at the first
// element that cannot live in a head.
func headEnd(s string, from int) int {
	blank := markup.BlankRaw(s)
	for _, t := range markup.Tags(blank[from:]) {
		if t.Close || headElements[t.Name] {
			continue
		}
		return from + t.Start
	}
	return len(s)
}

func isFullDocument(s string) bool {
	return find(headOpenRe, s) != nil && find(bodyOpenRe, s) != nil
}

func ensureDoctype(s string) string {
	if doctypeRe.MatchString(s) {
		return s
	}
	return "<!DOCTYPE html>\n" + strings.TrimLeft(s, " \t\r\n")
}

func shellHead() string {
	return "<head>\n" + metaCharset + "\n" + metaViewport + "\n</head>"
}

// ensureSkeleton synthesizes whichever of html, head and body is missing,
// keeping the original content inside.
func ensureSkeleton(s string) string {
	hasHTML := find(htmlOpenRe, s) != nil
	hasHead := find(headOpenRe, s) != nil
	hasBody := find(bodyOpenRe, s) != nil
	if hasHTML && hasHead && hasBody {
		return s
	}

	doctype := ""
	rest := s
	if loc := doctypeRe.FindStringIndex(rest); loc != nil && strings.TrimSpace(rest[:loc[0]]) == "" {
		doctype = rest[loc[0]:loc[1]]
		rest = rest[loc[1]:]
	}
	rest = strings.TrimSpace(rest)

	if !hasHTML && !hasHead && !hasBody {
		return joinDoc(doctype, `<html lang="`+DefaultLang+`">`, shellHead(), "<body>\n"+rest+"\n</body>", "</html>")
	}

	// Split off the html wrapper when present.
	htmlOpen := `<html lang="` + DefaultLang + `">`
	htmlClose := "</html>"
	inner := rest
	if loc := find(htmlOpenRe, inner); loc != nil {
		htmlOpen = inner[loc[0]:loc[1]]
		before := strings.TrimSpace(inner[:loc[0]])
		inner = inner[loc[1]:]
		if before != "" {
			inner = before + "\n" + inner
		}
	}
	if loc := lastIndex(htmlCloseRe, inner); loc != nil {
		tail := strings.TrimSpace(inner[loc[1]:])
		inner = inner[:loc[0]]
		if tail != "" {
			inner += "\n" + tail
		}
	}
	inner = strings.TrimSpace(inner)

	head := shellHead()
	if loc := headSpanRe.FindStringIndex(markup.BlankRaw(inner)); loc != nil {
		head = inner[loc[0]:loc[1]]
		inner = strings.TrimSpace(inner[:loc[0]] + inner[loc[1]:])
	} else if loc := find(headOpenRe, inner); loc != nil {
		end := headEnd(inner, loc[1])
		head = strings.TrimSpace(inner[loc[0]:end]) + "\n</head>"
		inner = strings.TrimSpace(inner[:loc[0]] + inner[end:])
	}

	body := inner
	if find(bodyOpenRe, inner) == nil {
		body = "<body>\n" + inner + "\n</body>"
	}
	return joinDoc(doctype, htmlOpen, head, body, htmlClose)
}

func joinDoc(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// rebuild reconstructs the document in canonical order from its head and
// body fragments.
func rebuild(s string) string {
	htmlOpen := `<html lang="` + DefaultLang + `">`
	if m := htmlOpenRe.FindString(s); m != "" {
		htmlOpen = m
	}
	head := shellHead()
	rest := s
	if loc := headSpanRe.FindStringSubmatchIndex(rest); loc != nil {
		head = "<head>" + rest[loc[2]:loc[3]] + "</head>"
		rest = rest[:loc[0]] + rest[loc[1]:]
	} else if t := titleRe.FindString(rest); t != "" {
		head = "<head>\n" + metaCharset + "\n" + metaViewport + "\n" + t + "\n</head>"
		rest = strings.Replace(rest, t, "", 1)
	}
	for _, re := range []*regexp.Regexp{doctypeRe, htmlOpenRe, htmlCloseRe, headOpenRe, headCloseRe, bodyOpenRe, bodyCloseRe} {
		rest = re.ReplaceAllString(rest, "")
	}
	bodyOpen := "<body>"
	if m := bodyOpenRe.FindString(s); m != "" {
		bodyOpen = m
	}
	return joinDoc("<!DOCTYPE html>", htmlOpen, head, bodyOpen+"\n"+strings.TrimSpace(rest)+"\n</body>", "</html>")
}

// closeUnclosed appends closing tags before </body>, or at the end when
// there is no body close, in reverse order of opening.
func closeUnclosed(s string) string {
	masked := markup.MaskRawBodies(s)
	var stack []string
	for _, t := range markup.Tags(masked) {
		if markup.IsVoid(t.Name) {
			continue
		}
		if t.Close {
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == t.Name {
					stack = append(stack[:i], stack[i+1:]...)
					break
				}
			}
			continue
		}
		if t.SelfClosing() {
			continue
		}
		stack = append(stack, t.Name)
	}

	var closes strings.Builder
	var headOpen, bodyOpen, htmlOpen bool
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case "html":
			htmlOpen = true
		case "head":
			headOpen = true
		case "body":
			bodyOpen = true
		default:
			closes.WriteString("</" + stack[i] + ">")
		}
	}

	out := s
	if headOpen {
		if loc := find(bodyOpenRe, out); loc != nil {
			out = out[:loc[0]] + "</head>\n" + out[loc[0]:]
		} else {
			out = strings.TrimRight(out, " \t\r\n") + "\n</head>"
		}
	}
	if c := closes.String(); c != "" {
		if loc := lastIndex(bodyCloseRe, out); loc != nil {
			out = out[:loc[0]] + c + "\n" + out[loc[0]:]
		} else if loc := lastIndex(htmlCloseRe, out); loc != nil {
			out = out[:loc[0]] + c + "\n" + out[loc[0]:]
		} else {
			out = strings.TrimRight(out, " \t\r\n") + c
		}
	}
	if bodyOpen {
		if loc := lastIndex(htmlCloseRe, out); loc != nil {
			out = out[:loc[0]] + "</body>\n" + out[loc[0]:]
		} else {
			out = strings.TrimRight(out, " \t\r\n") + "\n</body>"
		}
	}
	if htmlOpen {
		out = strings.TrimRight(out, " \t\r\n") + "\n</html>"
	}
	return out
}
