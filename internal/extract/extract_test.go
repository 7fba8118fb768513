package extract

import (
	"strings"
	"testing"
)

func TestFromHTML_PrefersMainOverBody(t *testing.T) {
	page := `<!doctype html>
    <html>
      <head><title>Test Page</title></head>
      <body>
        <nav>Nav should be ignored</nav>
        <main>
          <h1>Main Heading</h1>
          <p>This is the main content paragraph.</p>
        </main>
        <footer>Footer text</footer>
      </body>
    </html>`

	doc := FromHTML(page)
	if doc.Title != "Test Page" {
		t.Fatalf("expected title 'Test Page', got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Main Heading") || !strings.Contains(doc.Text, "This is the main content paragraph.") {
		t.Fatalf("expected main content, got %q", doc.Text)
	}
	if strings.Contains(doc.Text, "Nav should be ignored") || strings.Contains(doc.Text, "Footer text") {
		t.Fatalf("did not expect nav/footer text in extracted content: %q", doc.Text)
	}
}

func TestFromHTML_FallbackToBody(t *testing.T) {
	doc := FromHTML(`<html><head><title>No Main</title></head><body><h2>Body Heading</h2><p>Body paragraph</p></body></html>`)
	if doc.Title != "No Main" {
		t.Fatalf("expected title 'No Main', got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Body Heading") || !strings.Contains(doc.Text, "Body paragraph") {
		t.Fatalf("expected body text, got %q", doc.Text)
	}
}

func TestExtract_PrefersCompleteDocumentInsideProse(t *testing.T) {
	raw := "Sure! Here is your page:\n\n```HTML\n<!DOCTYPE html>\n<html><head><title>x</title></head><body><p>hi</p></body></html>\n```\nLet me know if you need changes."
	res := Extract(raw)
	want := "<!DOCTYPE html>\n<html><head><title>x</title></head><body><p>hi</p></body></html>"
	if res.Markup != want {
		t.Fatalf("expected verbatim document, got:\n%s", res.Markup)
	}
}

func TestExtract_MislabeledFenceStillYieldsMarkup(t *testing.T) {
	raw := "```css\n<html><body><h1>Wrong label</h1></body></html>\n```"
	res := Extract(raw)
	if !strings.Contains(res.Markup, "<h1>Wrong label</h1>") {
		t.Fatalf("expected markup from mislabeled fence, got %+v", res)
	}
	if res.Style != "" {
		t.Fatalf("did not expect style, got %q", res.Style)
	}
}

func TestExtract_SplitsStyleAndScriptFences(t *testing.T) {
	raw := "```html\n<body><h1>Hi</h1></body>\n```\n\n```css\nbody { color: red; }\n```\n\n```javascript\ndocument.addEventListener('DOMContentLoaded', () => {});\n```"
	res := Extract(raw)
	if !strings.Contains(res.Style, "color: red") {
		t.Fatalf("expected style, got %q", res.Style)
	}
	if !strings.Contains(res.Script, "DOMContentLoaded") {
		t.Fatalf("expected script, got %q", res.Script)
	}
	if !strings.Contains(res.Markup, "<!DOCTYPE html>") || !strings.Contains(res.Markup, "<body><h1>Hi</h1></body>") {
		t.Fatalf("expected wrapped body, got %q", res.Markup)
	}
}

func TestExtract_BodyFragmentIsWrappedInShell(t *testing.T) {
	res := Extract("<body><h1>Hello</h1></body>")
	for _, want := range []string{"<!DOCTYPE html>", "<html", "<head>", `<meta charset="UTF-8">`, "viewport", "<body><h1>Hello</h1></body>", "</html>"} {
		if !strings.Contains(res.Markup, want) {
			t.Fatalf("expected %q in:\n%s", want, res.Markup)
		}
	}
}

func TestExtract_BareTagSoupDropsProse(t *testing.T) {
	res := Extract("Here you go: <section><h2>Menu</h2><p>Soup</p></section> Enjoy!")
	if strings.Contains(res.Markup, "Here you go") || strings.Contains(res.Markup, "Enjoy") {
		t.Fatalf("expected prose to be dropped, got %q", res.Markup)
	}
	if !strings.Contains(res.Markup, "<body>\n<section><h2>Menu</h2><p>Soup</p></section>\n</body>") {
		t.Fatalf("expected soup wrapped in body, got %q", res.Markup)
	}
}

func TestExtract_TruncatedDocumentKeptFromStart(t *testing.T) {
	res := Extract("```html\n<!DOCTYPE html>\n<html><head></head><body><div><p>cut off</p><di")
	if !strings.HasPrefix(res.Markup, "<!DOCTYPE html>") {
		t.Fatalf("expected document start, got %q", res.Markup)
	}
	if strings.HasSuffix(res.Markup, "<di") {
		t.Fatalf("expected dangling partial tag trimmed, got %q", res.Markup)
	}
}

func TestExtract_JSONWrappedPayload(t *testing.T) {
	raw := `{"html": "<body><p>json page</p></body>", "css": "p { margin: 0; }", "js": "console.log(1)"}`
	res := Extract(raw)
	if !strings.Contains(res.Markup, "<p>json page</p>") || res.Style != "p { margin: 0; }" || res.Script != "console.log(1)" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExtract_JSONFilesMap(t *testing.T) {
	raw := "```json\n{\"files\": {\"index.html\": \"<html><body><p>a</p></body></html>\", \"style.css\": \"a{b:c}\"}}\n```"
	res := Extract(raw)
	if !strings.Contains(res.Markup, "<p>a</p>") || res.Style != "a{b:c}" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExtract_NothingUsableIsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "I cannot help with that request."} {
		if res := Extract(raw); !res.Empty() {
			t.Fatalf("expected empty result for %q, got %+v", raw, res)
		}
	}
}

func TestNormalize_ClosesDanglingTags(t *testing.T) {
	out, err := Normalize("<html><head><title>t</title></head><body><div><p>open")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for _, want := range []string{"</p>", "</div>", "</body>", "</html>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if _, err := Normalize("  "); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestFromHTML_HeadingsAndDescription(t *testing.T) {
	doc := FromHTML(`<html><head><title> Menu  | Crumb </title><meta name="description" content="Breads and pastries"></head>
<body><nav><h2>Skip me</h2></nav><main><h1>Menu</h1><p>Rye</p><section><h2>Pastries</h2><pre>a  b</pre></section></main></body></html>`)
	if doc.Title != "Menu | Crumb" || doc.Description != "Breads and pastries" {
		t.Fatalf("unexpected head fields: %+v", doc)
	}
	if len(doc.Headings) != 2 || doc.Headings[0] != "Menu" || doc.Headings[1] != "Pastries" {
		t.Fatalf("unexpected headings: %v", doc.Headings)
	}
	if !strings.Contains(doc.Text, "Menu\n\nRye") {
		t.Fatalf("expected block breaks, got %q", doc.Text)
	}
}

func TestExtract_DraftAndRevisionKeepsOnlyTheRevision(t *testing.T) {
	doc := func(title string) string {
		return "<!DOCTYPE html>\n<html lang=\"en\">\n<head><title>" + title + "</title></head>\n<body><h1>" + title + "</h1></body>\n</html>"
	}
	fenced := Extract("First draft:\n```html\n" + doc("Draft") + "\n```\nImproved version:\n```html\n" + doc("Final") + "\n```")
	if fenced.Markup != doc("Final") {
		t.Fatalf("expected only the revised document, got %q", fenced.Markup)
	}
	bare := Extract("Draft:\n" + doc("Draft") + "\n\nFinal:\n" + doc("Final"))
	if bare.Markup != doc("Final") {
		t.Fatalf("expected only the last bare document, got %q", bare.Markup)
	}
	if n := strings.Count(strings.ToLower(fenced.Markup), "<!doctype"); n != 1 {
		t.Fatalf("doctype count = %d", n)
	}
}
