// Package policy rewrites a finished document so it runs under a strict
// content security policy. Each injected block carries a data-policy marker;
// Inject is a no-op on its own output.
package policy

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperifyio/gosite/internal/markup"
)

// CSPVersion identifies CSPAllowList. Documents record the version they were
// issued with and are not rewritten when it changes.
const CSPVersion = "2024.1"

// Directive is one CSP directive with its allowed sources.
type Directive struct {
	Name    string
	Sources []string
}

// CSPAllowList is the fixed source allow-list. connect-src additionally gets
// the API origin and script-src the hashes of inline scripts.
var CSPAllowList = []Directive{
	{Name: "default-src", Sources: []string{"'self'"}},
	{Name: "script-src", Sources: []string{"'self'", "https://cdn.jsdelivr.net", "https://unpkg.com"}},
	{Name: "style-src", Sources: []string{"'self'", "'unsafe-inline'", "https://fonts.googleapis.com", "https://cdn.jsdelivr.net"}},
	{Name: "font-src", Sources: []string{"'self'", "data:", "https://fonts.gstatic.com"}},
	{Name: "img-src", Sources: []string{"'self'", "data:", "https://picsum.photos", "https://fastly.picsum.photos", "https://images.unsplash.com"}},
	{Name: "connect-src", Sources: []string{"'self'"}},
	{Name: "base-uri", Sources: []string{"'self'"}},
	{Name: "form-action", Sources: []string{"'self'"}},
}

// Endpoint paths of the external collaborators the injected scripts call.
const (
	FormsPath     = "/api/forms/submit"
	AnalyticsPath = "/api/analytics/track"
)

// Marker values of data-policy.
const (
	MarkerEvents    = "events"
	MarkerForms     = "forms"
	MarkerAnalytics = "analytics"
	MarkerNavActive = "nav-active"
)

const bindingsEnd = "/* end bindings */"

var (
	handlerRe     = regexp.MustCompile(`(?is)\son([a-z]+)\s*=\s*("[^"]*"|'[^']*'|[^\s"'>]+)`)
	evtIDRe       = regexp.MustCompile(`data-evt-id="evt-(\d+)"`)
	formTagRe     = regexp.MustCompile(`(?is)<form\b(?:[^>"']|"[^"]*"|'[^']*')*>`)
	navOpenRe     = regexp.MustCompile(`(?i)<nav[\s>]`)
	headOpenRe    = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	bodyOpenRe    = regexp.MustCompile(`(?i)<body[\s>]`)
	bodyCloseRe   = regexp.MustCompile(`(?i)</body\s*>`)
	cspMetaRe     = regexp.MustCompile(`(?i)<meta\b[^>]*http-equiv\s*=\s*["']?content-security-policy`)
	absoluteURLRe = regexp.MustCompile(`(?i)^(?:https?:)?//`)
)

var windowEvents = map[string]bool{
	"load": true, "unload": true, "beforeunload": true, "resize": true,
	"scroll": true, "hashchange": true, "popstate": true, "online": true, "offline": true,
}

// Injector applies the policy steps. APIBase prefixes the forms and
// analytics endpoints; empty means same origin.
type Injector struct {
	APIBase string
}

// Inject runs the steps in order: handlers, forms, analytics, active nav, and
// the CSP declaration last so its hashes cover every script added before it.
func (p Injector) Inject(content, scopeID string) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	out := p.rewriteHandlers(content)
	out = p.interceptForms(out, scopeID)
	out = p.injectAnalytics(out, scopeID)
	out = injectNavActive(out)
	return p.injectCSP(out)
}

// HasMarker reports whether a block with data-policy=marker exists.
func HasMarker(content, marker string) bool {
	return strings.Contains(content, `data-policy="`+marker+`"`)
}

type binding struct {
	target string
	event  string
	code   string
}

func (p Injector) rewriteHandlers(s string) string {
	next := 1
	for _, m := range evtIDRe.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}
	var bindings []binding
	out := markup.MapOutsideRaw(s, func(seg string) string {
		return markup.TagRe.ReplaceAllStringFunc(seg, func(tag string) string {
			if strings.HasPrefix(tag, "</") || !handlerRe.MatchString(tag) {
				return tag
			}
			name := strings.ToLower(markup.TagRe.FindStringSubmatch(tag)[2])
			attrs := tag[1+len(name) : len(tag)-1]
			id, ok := markup.Attr(attrs, "data-evt-id")
			if !ok || id == "" {
				id = "evt-" + strconv.Itoa(next)
				next++
			}
			for _, h := range handlerRe.FindAllStringSubmatch(tag, -1) {
				event := strings.ToLower(h[1])
				target := id
				if name == "body" && windowEvents[event] {
					target = "window"
				}
				bindings = append(bindings, binding{target: target, event: event, code: handlerCode(h[2])})
			}
			tag = handlerRe.ReplaceAllString(tag, "")
			if !ok {
				tag = markup.AddAttr(tag, `data-evt-id="`+id+`"`)
			}
			return tag
		})
	})
	if len(bindings) == 0 {
		return s
	}
	var lines strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&lines, "  bind(%s, %s, function (event) {\n    var r = (function (event) { %s }).call(this, event);\n    if (r === false) { event.preventDefault(); }\n  });\n", jsString(b.target), jsString(b.event), b.code)
	}
	if HasMarker(out, MarkerEvents) && strings.Contains(out, bindingsEnd) {
		i := strings.LastIndex(out, "  "+bindingsEnd)
		if i < 0 {
			i = strings.LastIndex(out, bindingsEnd)
		}
		return out[:i] + lines.String() + out[i:]
	}
	script := "<script data-policy=\"" + MarkerEvents + "\">\n(function () {\n" +
		"  function bind(id, type, fn) {\n" +
		"    var el = id === \"window\" ? window : document.querySelector('[data-evt-id=\"' + id + '\"]');\n" +
		"    if (el) { el.addEventListener(type, fn); }\n" +
		"  }\n" +
		lines.String() +
		"  " + bindingsEnd + "\n})();\n</script>"
	return insertBeforeBodyEnd(out, script)
}

// handlerCode unquotes and unescapes an attribute value into script text.
func handlerCode(raw string) string {
	v := raw
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	v = strings.TrimSpace(html.UnescapeString(v))
	v = strings.TrimPrefix(v, "javascript:")
	return strings.ReplaceAll(v, "</", `<\/`)
}

func (p Injector) endpoint(path string) string {
	return strings.TrimRight(p.APIBase, "/") + path
}

func (p Injector) interceptForms(s, scopeID string) string {
	n := 0
	out := markup.MapOutsideRaw(s, func(seg string) string {
		return formTagRe.ReplaceAllStringFunc(seg, func(tag string) string {
			n++
			attrs := tag[5 : len(tag)-1]
			if action, ok := markup.Attr(attrs, "action"); ok && absoluteURLRe.MatchString(strings.TrimSpace(action)) {
				return tag
			}
			if markup.HasAttr(attrs, "data-form-intercept") {
				return tag
			}
			formType := ""
			for _, a := range []string{"data-form-type", "name", "id"} {
				if v, ok := markup.Attr(attrs, a); ok && strings.TrimSpace(v) != "" {
					formType = strings.TrimSpace(v)
					break
				}
			}
			if formType == "" {
				formType = "form-" + strconv.Itoa(n)
			}
			if !markup.HasAttr(attrs, "data-form-type") {
				tag = markup.AddAttr(tag, `data-form-type="`+markup.EscapeAttr(formType)+`"`)
			}
			return markup.AddAttr(tag, "data-form-intercept")
		})
	})
	if !strings.Contains(out, "data-form-intercept") {
		return s
	}
	if HasMarker(out, MarkerForms) {
		return out
	}
	script := "<script data-policy=\"" + MarkerForms + "\">\n(function () {\n" +
		"  var endpoint = " + jsString(p.endpoint(FormsPath)) + ";\n" +
		"  var scopeId = " + jsString(scopeID) + ";\n" +
		"  document.querySelectorAll(\"form[data-form-intercept]\").forEach(function (form) {\n" +
		"    form.addEventListener(\"submit\", function (event) {\n" +
		"      event.preventDefault();\n" +
		"      var data = {};\n" +
		"      new FormData(form).forEach(function (value, key) { data[key] = typeof value === \"string\" ? value : value.name; });\n" +
		"      fetch(endpoint, {\n" +
		"        method: \"POST\",\n" +
		"        headers: {\"Content-Type\": \"application/json\"},\n" +
		"        body: JSON.stringify({scopeId: scopeId, formType: form.getAttribute(\"data-form-type\"), formData: data})\n" +
		"      }).then(function (res) {\n" +
		"        form.setAttribute(\"data-submitted\", res.ok ? \"ok\" : \"error\");\n" +
		"        if (res.ok) { form.reset(); }\n" +
		"      }).catch(function () {\n" +
		"        form.setAttribute(\"data-submitted\", \"error\");\n" +
		"      });\n" +
		"    });\n" +
		"  });\n" +
		"})();\n</script>"
	return insertBeforeBodyEnd(out, script)
}

func (p Injector) injectAnalytics(s, scopeID string) string {
	if HasMarker(s, MarkerAnalytics) || bodyOpenRe.FindStringIndex(markup.BlankRaw(s)) == nil {
		return s
	}
	script := "<script data-policy=\"" + MarkerAnalytics + "\">\n(function () {\n" +
		"  var endpoint = " + jsString(p.endpoint(AnalyticsPath)) + ";\n" +
		"  var scopeId = " + jsString(scopeID) + ";\n" +
		"  function track(event, properties) {\n" +
		"    var body = JSON.stringify({scopeId: scopeId, event: event, properties: properties || {}});\n" +
		"    if (navigator.sendBeacon && navigator.sendBeacon(endpoint, new Blob([body], {type: \"application/json\"}))) { return; }\n" +
		"    fetch(endpoint, {method: \"POST\", headers: {\"Content-Type\": \"application/json\"}, body: body, keepalive: true}).catch(function () {});\n" +
		"  }\n" +
		"  track(\"page_view\", {path: location.pathname, title: document.title, referrer: document.referrer});\n" +
		"  document.addEventListener(\"click\", function (event) {\n" +
		"    var el = event.target.closest ? event.target.closest(\"a, button, [data-track]\") : null;\n" +
		"    if (!el) { return; }\n" +
		"    track(\"click\", {tag: el.tagName.toLowerCase(), text: (el.textContent || \"\").trim().slice(0, 80), href: el.getAttribute(\"href\") || \"\"});\n" +
		"  });\n" +
		"})();\n</script>"
	return insertBeforeBodyEnd(s, script)
}

func injectNavActive(s string) string {
	if HasMarker(s, MarkerNavActive) || navOpenRe.FindStringIndex(markup.BlankRaw(s)) == nil {
		return s
	}
	script := "<script data-policy=\"" + MarkerNavActive + "\">\n(function () {\n" +
		"  function base(path) {\n" +
		"    var p = (path || \"\").split(\"#\")[0].split(\"?\")[0];\n" +
		"    var name = p.substring(p.lastIndexOf(\"/\") + 1);\n" +
		"    return name === \"\" ? \"index.html\" : name;\n" +
		"  }\n" +
		"  function mark() {\n" +
		"    var current = base(location.pathname);\n" +
		"    document.querySelectorAll(\"nav a[href]\").forEach(function (a) {\n" +
		"      var href = a.getAttribute(\"href\");\n" +
		"      var active = href.charAt(0) === \"#\" ? href === location.hash : base(href) === current;\n" +
		"      a.classList.toggle(\"active\", active);\n" +
		"      if (active) { a.setAttribute(\"aria-current\", \"page\"); } else { a.removeAttribute(\"aria-current\"); }\n" +
		"    });\n" +
		"  }\n" +
		"  mark();\n" +
		"  window.addEventListener(\"hashchange\", mark);\n" +
		"})();\n</script>"
	return insertBeforeBodyEnd(s, script)
}

// Policy builds the CSP string for doc: the allow-list plus hashes of its
// inline scripts, the API origin and the origins of external form actions.
func (p Injector) Policy(doc string) string {
	var hashes []string
	seen := map[string]bool{}
	for _, sc := range markup.InlineScripts(doc) {
		sum := sha256.Sum256([]byte(sc.Body))
		h := "'sha256-" + base64.StdEncoding.EncodeToString(sum[:]) + "'"
		if !seen[h] {
			seen[h] = true
			hashes = append(hashes, h)
		}
	}
	sort.Strings(hashes)
	parts := make([]string, 0, len(CSPAllowList))
	for _, d := range CSPAllowList {
		sources := append([]string(nil), d.Sources...)
		switch d.Name {
		case "script-src":
			sources = append(sources, hashes...)
		case "connect-src":
			if origin := originOf(p.APIBase); origin != "" {
				sources = append(sources, origin)
			}
		case "form-action":
			sources = append(sources, formOrigins(doc)...)
		}
		parts = append(parts, d.Name+" "+strings.Join(sources, " "))
	}
	return strings.Join(parts, "; ")
}

func (p Injector) injectCSP(s string) string {
	blank := markup.BlankRaw(s)
	if cspMetaRe.MatchString(blank) {
		return s
	}
	loc := headOpenRe.FindStringIndex(blank)
	if loc == nil {
		return s
	}
	meta := `<meta http-equiv="Content-Security-Policy" data-csp-version="` + CSPVersion + `" content="` + p.Policy(s) + `">`
	return s[:loc[1]] + "\n" + meta + s[loc[1]:]
}

func formOrigins(doc string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tag := range formTagRe.FindAllString(markup.BlankRaw(doc), -1) {
		action, ok := markup.Attr(tag[5:len(tag)-1], "action")
		if !ok || !absoluteURLRe.MatchString(strings.TrimSpace(action)) {
			continue
		}
		if o := originOf(action); o != "" && !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	sort.Strings(out)
	return out
}

func originOf(base string) string {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func insertBeforeBodyEnd(s, block string) string {
	all := bodyCloseRe.FindAllStringIndex(markup.BlankRaw(s), -1)
	if len(all) == 0 {
		return strings.TrimRight(s, " \t\r\n") + "\n" + block
	}
	at := all[len(all)-1][0]
	return s[:at] + block + "\n" + s[at:]
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
