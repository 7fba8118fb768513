package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperifyio/gosite/internal/markup"
)

// Kind classifies an Issue.
type Kind string

const (
	KindMissingTag         Kind = "missing_tag"
	KindUnclosedTag        Kind = "unclosed_tag"
	KindInvalidStructure   Kind = "invalid_structure"
	KindLowContent         Kind = "low_content"
	KindForbiddenConstruct Kind = "forbidden_construct"
)

// Severity is warning or critical. Only critical issues fail a report.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Issue is one finding of the validator. Tag names the element for
// missing_tag and unclosed_tag issues; Placeholder marks unresolved template
// tokens.
type Issue struct {
	Kind        Kind     `json:"kind"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Tag         string   `json:"tag,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

// Report is derived purely from content and recomputed whenever it changes.
type Report struct {
	Issues []Issue `json:"issues"`
	Score  int     `json:"score"`
	Passed bool    `json:"passed"`
}

// Criticals returns the critical issues in order.
func (r Report) Criticals() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			out = append(out, is)
		}
	}
	return out
}

// Thresholds are the visible-text floors of the low-content check, in
// characters.
type Thresholds struct {
	Acceptable int `json:"acceptable" yaml:"acceptable"`
	Rich       int `json:"rich" yaml:"rich"`
}

// DefaultThresholds returns the hand-tuned floors used when none are
// configured.
func DefaultThresholds() Thresholds {
	return Thresholds{Acceptable: 100, Rich: 500}
}

func (t Thresholds) orDefault() Thresholds {
	d := DefaultThresholds()
	if t.Acceptable <= 0 {
		t.Acceptable = d.Acceptable
	}
	if t.Rich <= 0 {
		t.Rich = d.Rich
	}
	if t.Rich < t.Acceptable {
		t.Rich = t.Acceptable
	}
	return t
}

// Score penalties.
const (
	PenaltyCritical    = 20
	PenaltyWarning     = 5
	PenaltyPlaceholder = 10
	PenaltyMissingPage = 25
	PenaltyFallback    = 30
)

var (
	doctypeRe     = regexp.MustCompile(`(?i)<!doctype\s+html`)
	htmlOpenRe    = regexp.MustCompile(`(?i)<html[\s>]`)
	headOpenRe    = regexp.MustCompile(`(?i)<head[\s>]`)
	bodyOpenRe    = regexp.MustCompile(`(?i)<body[\s>]`)
	charsetRe     = regexp.MustCompile(`(?i)<meta\b[^>]*\bcharset\s*=`)
	viewportRe    = regexp.MustCompile(`(?i)<meta\b[^>]*\bname\s*=\s*["']?viewport`)
	jsxTagRe      = regexp.MustCompile(`<[A-Z][A-Za-z0-9]*(?:\.[A-Za-z0-9]+)*(?:\s[^<>]*)?/>`)
	fragmentRe    = regexp.MustCompile(`<>|</>`)
	importExport  = regexp.MustCompile(`(?m)^[ \t]*(?:import\s+(?:[\w*{][^\n;]*\bfrom\s+|["'])|export\s+(?:default|const|let|var|function|class)\b)`)
	placeholderRe = regexp.MustCompile(`\{\{\s*[^{}]+?\s*\}\}|\$\{[^{}]+\}|\{[A-Za-z_$][\w$]*(?:\.[\w$]+)+\}`)
)

// Validate checks the structural rule set. It has no side effects.
func Validate(content string) Report {
	return report(structuralIssues(content))
}

// ValidatePage is Validate plus the low-content check used for multi-page
// completeness.
func ValidatePage(content string, t Thresholds) Report {
	issues := structuralIssues(content)
	if is, ok := lowContent(content, t); ok {
		issues = append(issues, is)
	}
	return report(issues)
}

// CheckCompleteness runs only the low-content and forbidden-construct checks.
func CheckCompleteness(content string, t Thresholds) []Issue {
	var issues []Issue
	if is, ok := lowContent(content, t); ok {
		issues = append(issues, is)
	}
	return append(issues, forbiddenIssues(markup.StripRaw(content))...)
}

// NeedsRegeneration is true when repair cannot help: the page is too thin or
// was written as component code instead of a plain document.
func NeedsRegeneration(r Report) bool {
	for _, is := range r.Issues {
		if is.Severity != SeverityCritical {
			continue
		}
		if is.Kind == KindLowContent || is.Kind == KindForbiddenConstruct {
			return true
		}
	}
	return false
}

// HasStructuralCriticals reports critical issues the repairer can address.
func HasStructuralCriticals(r Report) bool {
	for _, is := range r.Issues {
		if is.Severity != SeverityCritical {
			continue
		}
		switch is.Kind {
		case KindMissingTag, KindUnclosedTag, KindInvalidStructure:
			return true
		}
	}
	return false
}

// VisibleTextLength is the length of the text a reader would see.
func VisibleTextLength(content string) int {
	return markup.VisibleTextLength(content)
}

// Score starts at 100 and subtracts a penalty per issue; placeholder issues
// take PenaltyPlaceholder instead of the warning penalty.
func Score(issues []Issue) int {
	score := 100
	for _, is := range issues {
		switch {
		case is.Placeholder:
			score -= PenaltyPlaceholder
		case is.Severity == SeverityCritical:
			score -= PenaltyCritical
		default:
			score -= PenaltyWarning
		}
	}
	return Clamp(score)
}

// Clamp bounds a score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func report(issues []Issue) Report {
	passed := true
	for _, is := range issues {
		if is.Severity == SeverityCritical {
			passed = false
			break
		}
	}
	return Report{Issues: issues, Score: Score(issues), Passed: passed}
}

func structuralIssues(content string) []Issue {
	masked := markup.MaskRawBodies(content)
	var issues []Issue

	if !doctypeRe.MatchString(masked) {
		issues = append(issues, Issue{Kind: KindMissingTag, Severity: SeverityWarning, Tag: "!doctype", Message: "missing DOCTYPE declaration"})
	}
	htmlIdx := indexOf(htmlOpenRe, masked)
	headIdx := indexOf(headOpenRe, masked)
	bodyIdx := indexOf(bodyOpenRe, masked)
	for _, c := range []struct {
		tag string
		idx int
	}{{"html", htmlIdx}, {"head", headIdx}, {"body", bodyIdx}} {
		if c.idx < 0 {
			issues = append(issues, Issue{Kind: KindMissingTag, Severity: SeverityCritical, Tag: c.tag, Message: fmt.Sprintf("missing <%s> element", c.tag)})
		}
	}

	opens, closes, order := markup.OpenCounts(masked)
	for _, name := range order {
		if n := opens[name] - closes[name]; n > 0 {
			issues = append(issues, Issue{Kind: KindUnclosedTag, Severity: SeverityCritical, Tag: name, Message: fmt.Sprintf("<%s> opened %d more time(s) than closed", name, n)})
		}
	}

	for _, c := range []struct {
		tag string
		re  *regexp.Regexp
	}{{"html", htmlOpenRe}, {"head", headOpenRe}, {"body", bodyOpenRe}} {
		if n := len(c.re.FindAllStringIndex(masked, -1)); n > 1 {
			issues = append(issues, Issue{Kind: KindInvalidStructure, Severity: SeverityCritical, Tag: c.tag, Message: fmt.Sprintf("<%s> appears %d times, expected once", c.tag, n)})
		}
	}

	if OrderingViolated(content) {
		issues = append(issues, Issue{Kind: KindInvalidStructure, Severity: SeverityCritical, Message: "document elements out of order, expected <html> then <head> then <body>"})
	}

	if headIdx >= 0 || htmlIdx >= 0 {
		if !charsetRe.MatchString(masked) {
			issues = append(issues, Issue{Kind: KindMissingTag, Severity: SeverityWarning, Tag: "meta", Message: "missing charset meta"})
		}
		if !viewportRe.MatchString(masked) {
			issues = append(issues, Issue{Kind: KindMissingTag, Severity: SeverityWarning, Tag: "meta", Message: "missing viewport meta"})
		}
	}

	return append(issues, forbiddenIssues(markup.StripRaw(content))...)
}

// OrderingViolated reports whether <html>, <head> and <body> appear out of
// canonical order. Missing elements are not an ordering problem.
func OrderingViolated(content string) bool {
	masked := markup.MaskRawBodies(content)
	htmlIdx := indexOf(htmlOpenRe, masked)
	headIdx := indexOf(headOpenRe, masked)
	bodyIdx := indexOf(bodyOpenRe, masked)
	if htmlIdx >= 0 && headIdx >= 0 && headIdx < htmlIdx {
		return true
	}
	if headIdx >= 0 && bodyIdx >= 0 && bodyIdx < headIdx {
		return true
	}
	return htmlIdx >= 0 && bodyIdx >= 0 && bodyIdx < htmlIdx
}

// forbiddenIssues takes text with scripts and styles already removed.
func forbiddenIssues(text string) []Issue {
	var issues []Issue
	if m := jsxTagRe.FindString(text); m != "" {
		issues = append(issues, Issue{Kind: KindForbiddenConstruct, Severity: SeverityCritical, Message: "component tag in document: " + truncate(m, 60)})
	}
	if fragmentRe.MatchString(text) {
		issues = append(issues, Issue{Kind: KindForbiddenConstruct, Severity: SeverityCritical, Message: "component fragment <> in document"})
	}
	if m := importExport.FindString(text); m != "" {
		issues = append(issues, Issue{Kind: KindForbiddenConstruct, Severity: SeverityCritical, Message: "module statement outside script: " + truncate(strings.TrimSpace(m), 60)})
	}
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		issues = append(issues, Issue{Kind: KindForbiddenConstruct, Severity: SeverityWarning, Placeholder: true, Message: "unresolved template placeholder " + truncate(m, 60)})
	}
	return issues
}

func lowContent(content string, t Thresholds) (Issue, bool) {
	t = t.orDefault()
	n := markup.VisibleTextLength(content)
	switch {
	case n < t.Acceptable:
		return Issue{Kind: KindLowContent, Severity: SeverityCritical, Message: fmt.Sprintf("visible text has %d characters, need at least %d", n, t.Acceptable)}, true
	case n < t.Rich:
		return Issue{Kind: KindLowContent, Severity: SeverityWarning, Message: fmt.Sprintf("visible text has %d characters, %d or more reads as rich", n, t.Rich)}, true
	}
	return Issue{}, false
}

func indexOf(re *regexp.Regexp, s string) int {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
