// Package markup holds the pattern helpers shared by the validator, the
// repairer and the policy injector. Nothing here parses HTML into a tree;
// every helper works on the raw text so rewrites keep the rest of the
// document byte for byte.
package markup

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	// rawRe matches regions whose bodies are not markup: comments and
	// script/style elements. An unterminated region runs to the end.
	rawRe = regexp.MustCompile(`(?is)<!--.*?(?:-->|\z)|<script\b[^>]*>.*?(?:</script\s*>|\z)|<style\b[^>]*>.*?(?:</style\s*>|\z)`)

	commentRe     = regexp.MustCompile(`(?s)<!--.*?(?:-->|\z)`)
	scriptBodyRe  = regexp.MustCompile(`(?is)(<script\b[^>]*>).*?(</script\s*>|\z)`)
	styleBodyRe   = regexp.MustCompile(`(?is)(<style\b[^>]*>).*?(</style\s*>|\z)`)
	anyTagRe      = regexp.MustCompile(`<[^>]*>`)
	inlineScripts = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script\s*>`)
)

// TagRe matches a single open or close tag. Group 1 is "/" for close tags,
// group 2 the element name, group 3 the raw attribute text. Quoted attribute
// values may contain ">".
var TagRe = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9-]*)((?:[^>"']|"[^"]*"|'[^']*')*)>`)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether name never takes a closing tag.
func IsVoid(name string) bool {
	return voidElements[strings.ToLower(name)]
}

// MapOutsideRaw applies fn to every stretch of content outside comments and
// script/style elements, in document order, and reassembles the result.
func MapOutsideRaw(content string, fn func(string) string) string {
	locs := rawRe.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return fn(content)
	}
	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, l := range locs {
		b.WriteString(fn(content[prev:l[0]]))
		b.WriteString(content[l[0]:l[1]])
		prev = l[1]
	}
	b.WriteString(fn(content[prev:]))
	return b.String()
}

// BlankRaw replaces comments and script/style elements with spaces of the
// same length, so offsets found in the result index into content.
func BlankRaw(content string) string {
	return rawRe.ReplaceAllStringFunc(content, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

// StripRaw removes comments and whole script/style elements.
func StripRaw(content string) string {
	return rawRe.ReplaceAllString(content, " ")
}

// MaskRawBodies removes comments and the bodies of script/style elements but
// keeps their tags, so tag counting still sees them.
func MaskRawBodies(content string) string {
	out := commentRe.ReplaceAllString(content, "")
	out = scriptBodyRe.ReplaceAllString(out, "${1}${2}")
	return styleBodyRe.ReplaceAllString(out, "${1}${2}")
}

// VisibleText strips raw regions and tags, decodes entities and collapses
// whitespace.
func VisibleText(content string) string {
	text := anyTagRe.ReplaceAllString(StripRaw(content), " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// VisibleTextLength is the rune count of VisibleText.
func VisibleTextLength(content string) int {
	return utf8.RuneCountInString(VisibleText(content))
}

// Tag is one match of TagRe.
type Tag struct {
	Start, End int
	Close      bool
	Name       string // lowercased
	Attrs      string
}

// SelfClosing reports whether the tag ends in "/>".
func (t Tag) SelfClosing() bool {
	return strings.HasSuffix(strings.TrimSpace(t.Attrs), "/")
}

// Tags lists every tag in s in order.
func Tags(s string) []Tag {
	locs := TagRe.FindAllStringSubmatchIndex(s, -1)
	out := make([]Tag, 0, len(locs))
	for _, l := range locs {
		out = append(out, Tag{
			Start: l[0],
			End:   l[1],
			Close: l[3] > l[2],
			Name:  strings.ToLower(s[l[4]:l[5]]),
			Attrs: s[l[6]:l[7]],
		})
	}
	return out
}

// OpenCounts counts open and close tags per element name, skipping void and
// self-closing tags. Callers pass masked content.
func OpenCounts(s string) (opens, closes map[string]int, order []string) {
	opens = map[string]int{}
	closes = map[string]int{}
	for _, t := range Tags(s) {
		if IsVoid(t.Name) {
			continue
		}
		if t.Close {
			closes[t.Name]++
			continue
		}
		if t.SelfClosing() {
			continue
		}
		if opens[t.Name] == 0 {
			order = append(order, t.Name)
		}
		opens[t.Name]++
	}
	return opens, closes, order
}

// Balanced reports whether every non-void element opened in s is closed.
func Balanced(s string) bool {
	opens, closes, _ := OpenCounts(MaskRawBodies(s))
	for name, n := range opens {
		if n > closes[name] {
			return false
		}
	}
	return true
}

var attrRes sync.Map

func attrRe(name string) *regexp.Regexp {
	key := strings.ToLower(name)
	if re, ok := attrRes.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?is)(^|\s)` + regexp.QuoteMeta(name) + `(?:\s*=\s*("[^"]*"|'[^']*'|[^\s"'>]+))?(?:\s|/|$)`)
	attrRes.Store(key, re)
	return re
}

// HasAttr reports whether the raw attribute text of a tag declares name.
func HasAttr(attrs, name string) bool {
	return attrRe(name).MatchString(attrs + " ")
}

// Attr returns the unquoted value of attribute name.
func Attr(attrs, name string) (string, bool) {
	m := attrRe(name).FindStringSubmatch(attrs + " ")
	if m == nil {
		return "", false
	}
	v := m[2]
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	return v, true
}

// AddAttr inserts attr just before the end of an open tag, keeping a
// trailing "/>" in place.
func AddAttr(tag, attr string) string {
	if strings.HasSuffix(tag, "/>") {
		return strings.TrimRight(tag[:len(tag)-2], " ") + " " + attr + " />"
	}
	return tag[:len(tag)-1] + " " + attr + ">"
}

// InlineScript is the attribute text and exact body of a script element
// without a src.
type InlineScript struct {
	Attrs string
	Body  string
}

// InlineScripts lists script elements that carry their code inline.
func InlineScripts(content string) []InlineScript {
	var out []InlineScript
	for _, m := range inlineScripts.FindAllStringSubmatch(content, -1) {
		if HasAttr(m[1], "src") {
			continue
		}
		out = append(out, InlineScript{Attrs: m[1], Body: m[2]})
	}
	return out
}

// EscapeAttr escapes text for use inside a double-quoted attribute value.
// Existing entities are kept as they are.
func EscapeAttr(s string) string {
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// InnerText returns the collapsed text of an element fragment.
func InnerText(fragment string) string {
	return strings.Join(strings.Fields(anyTagRe.ReplaceAllString(fragment, " ")), " ")
}
