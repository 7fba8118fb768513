package validate

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const goodDoc = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>Ok</title></head>
<body><main><h1>Welcome</h1><p>Hello there.</p><img src="a.png"><br></main></body>
</html>`

func kinds(r Report) []string {
	var out []string
	for _, is := range r.Issues {
		out = append(out, string(is.Kind)+":"+string(is.Severity)+":"+is.Tag)
	}
	return out
}

func TestValidate_CleanDocumentPasses(t *testing.T) {
	r := Validate(goodDoc)
	if !r.Passed || r.Score != 100 || len(r.Issues) != 0 {
		t.Fatalf("expected clean pass, got %+v", r)
	}
}

func TestValidate_IsPure(t *testing.T) {
	inputs := []string{goodDoc, "<body><div>", "", "<Card /> import x from 'y'", "<p>{{name}}</p>"}
	for _, in := range inputs {
		a, b := Validate(in), Validate(in)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Fatalf("validate not deterministic for %q (-a +b):\n%s", in, diff)
		}
	}
}

func TestValidate_MissingSkeleton(t *testing.T) {
	r := Validate("<h1>Hi</h1>")
	want := []string{
		"missing_tag:warning:!doctype",
		"missing_tag:critical:html",
		"missing_tag:critical:head",
		"missing_tag:critical:body",
	}
	if diff := cmp.Diff(want, kinds(r)); diff != "" {
		t.Fatalf("unexpected issues (-want +got):\n%s", diff)
	}
	if r.Passed {
		t.Fatal("expected failure")
	}
	if r.Score != 100-5-3*20 {
		t.Fatalf("unexpected score %d", r.Score)
	}
}

func TestValidate_UnclosedTagsIgnoreVoidScriptAndComments(t *testing.T) {
	doc := strings.Replace(goodDoc, "<p>Hello there.</p>", `<div><p>Hello <!-- <span> --> there.</p><script>var s = "<section>";</script><input type="text">`, 1)
	r := Validate(doc)
	want := []string{"unclosed_tag:critical:div"}
	if diff := cmp.Diff(want, kinds(r)); diff != "" {
		t.Fatalf("unexpected issues (-want +got):\n%s", diff)
	}
}

func TestValidate_OrderingViolation(t *testing.T) {
	r := Validate(`<!DOCTYPE html><html><body><p>x</p></body><head><meta charset="utf-8"><meta name="viewport" content="w"></head></html>`)
	found := false
	for _, is := range r.Issues {
		if is.Kind == KindInvalidStructure && is.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected invalid_structure, got %v", kinds(r))
	}
}

func TestValidate_MissingMetaIsWarningOnly(t *testing.T) {
	r := Validate(`<!DOCTYPE html><html><head><title>x</title></head><body><p>x</p></body></html>`)
	if !r.Passed {
		t.Fatalf("warnings must not fail: %v", kinds(r))
	}
	if len(r.Issues) != 2 || r.Score != 90 {
		t.Fatalf("expected two meta warnings, got %v score=%d", kinds(r), r.Score)
	}
}

func TestValidate_ForbiddenConstructs(t *testing.T) {
	cases := map[string]string{
		"jsx":      `<body><Hero title="x" /></body>`,
		"fragment": `<body><>text</></body>`,
		"import":   "<body>\nimport React from 'react'\n</body>",
		"export":   "<body>\nexport default function App() {}\n</body>",
	}
	for name, body := range cases {
		r := Validate(body)
		ok := false
		for _, is := range r.Issues {
			if is.Kind == KindForbiddenConstruct && is.Severity == SeverityCritical {
				ok = true
			}
		}
		if !ok {
			t.Fatalf("%s: expected critical forbidden_construct, got %v", name, kinds(r))
		}
		if !NeedsRegeneration(r) {
			t.Fatalf("%s: expected NeedsRegeneration", name)
		}
	}
}

func TestValidate_ModuleScriptIsAllowed(t *testing.T) {
	doc := strings.Replace(goodDoc, "</body>", "<script type=\"module\">\nimport { a } from './a.js'\nexport const b = 1\n</script></body>", 1)
	if r := Validate(doc); !r.Passed || len(r.Issues) != 0 {
		t.Fatalf("imports inside scripts must be ignored, got %v", kinds(r))
	}
}

func TestValidate_PlaceholdersArePenalizedWarnings(t *testing.T) {
	doc := strings.Replace(goodDoc, "Hello there.", "Hello {{ user.name }} and ${price} for {item.title}", 1)
	r := Validate(doc)
	if !r.Passed {
		t.Fatalf("placeholders are warnings, got %v", kinds(r))
	}
	if len(r.Issues) != 3 || r.Score != 100-3*PenaltyPlaceholder {
		t.Fatalf("expected 3 placeholder issues, got %v score=%d", kinds(r), r.Score)
	}
	if NeedsRegeneration(r) {
		t.Fatal("placeholders alone must not force regeneration")
	}
}

func pageWithText(n int) string {
	return "<!DOCTYPE html><html><head><meta charset=\"UTF-8\"><meta name=\"viewport\" content=\"width=device-width\"></head><body><main><p>" +
		strings.Repeat("a", n) + "</p></main><script>" + strings.Repeat("x", 1000) + "</script></body></html>"
}

func TestValidatePage_LowContentThresholds(t *testing.T) {
	th := DefaultThresholds()

	r := ValidatePage(pageWithText(40), th)
	if !NeedsRegeneration(r) || r.Passed {
		t.Fatalf("40 chars must need regeneration: %v", kinds(r))
	}

	r = ValidatePage(pageWithText(300), th)
	if NeedsRegeneration(r) || !r.Passed {
		t.Fatalf("300 chars is acceptable: %v", kinds(r))
	}
	if len(r.Issues) != 1 || r.Issues[0].Kind != KindLowContent || r.Issues[0].Severity != SeverityWarning {
		t.Fatalf("expected rich-content warning, got %v", kinds(r))
	}

	r = ValidatePage(pageWithText(600), th)
	if NeedsRegeneration(r) || len(r.Issues) != 0 {
		t.Fatalf("600 chars must not need regeneration: %v", kinds(r))
	}
}

func TestValidatePage_ThresholdsAreConfigurable(t *testing.T) {
	r := ValidatePage(pageWithText(40), Thresholds{Acceptable: 20, Rich: 30})
	if NeedsRegeneration(r) || len(r.Issues) != 0 {
		t.Fatalf("lowered floors should accept 40 chars: %v", kinds(r))
	}
}

func TestCheckCompleteness(t *testing.T) {
	issues := CheckCompleteness("<body><Widget /></body>", DefaultThresholds())
	if len(issues) != 2 || issues[0].Kind != KindLowContent || issues[1].Kind != KindForbiddenConstruct {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestScoreClamps(t *testing.T) {
	var many []Issue
	for i := 0; i < 10; i++ {
		many = append(many, Issue{Severity: SeverityCritical})
	}
	if Score(many) != 0 {
		t.Fatalf("expected clamp at 0")
	}
	if Clamp(120) != 100 {
		t.Fatalf("expected clamp at 100")
	}
}

func TestValidatePage_ZeroThresholdsUseDefaults(t *testing.T) {
	r := ValidatePage(pageWithText(300), Thresholds{})
	if len(r.Issues) != 1 || r.Issues[0].Kind != KindLowContent || r.Issues[0].Severity != SeverityWarning {
		t.Fatalf("expected rich-content warning with zero thresholds, got %v", kinds(r))
	}
	if !strings.Contains(r.Issues[0].Message, "500") {
		t.Fatalf("expected the default rich floor in %q", r.Issues[0].Message)
	}
	r = ValidatePage(pageWithText(300), Thresholds{Acceptable: 400})
	if !NeedsRegeneration(r) {
		t.Fatalf("raised acceptable floor must reject 300 chars: %v", kinds(r))
	}
}

func TestValidate_DuplicateSkeletonIsCritical(t *testing.T) {
	r := Validate(goodDoc + "\n" + goodDoc)
	want := []string{
		"invalid_structure:critical:html",
		"invalid_structure:critical:head",
		"invalid_structure:critical:body",
	}
	if diff := cmp.Diff(want, kinds(r)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if r.Passed || !HasStructuralCriticals(r) {
		t.Fatalf("duplicate documents must fail: %+v", r)
	}
	if r := Validate(`<!DOCTYPE html><html><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width"></head><body><header>x</header><script>document.write("<body>")</script></body></html>`); len(r.Issues) != 0 {
		t.Fatalf("header and script text are not skeleton elements: %v", kinds(r))
	}
}
