package assets

import (
	"html"
	"strings"

	"github.com/hyperifyio/gosite/internal/site"
)

// FallbackMarker marks a page that was substituted after its retries ran out.
const FallbackMarker = `data-fallback="true"`

// Fallback renders a minimal page for p that passes the structural checks.
// It already links the shared assets and carries the shared nav and footer.
func Fallback(req site.GenerationRequest, p site.PageSpec, a site.SharedAssets) string {
	title := html.EscapeString(p.DisplayName)
	if req.SiteName != "" {
		title += " | " + html.EscapeString(req.SiteName)
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"UTF-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	b.WriteString("<title>" + title + "</title>\n")
	b.WriteString("<link rel=\"stylesheet\" href=\"" + site.StylesheetFile + "\">\n")
	b.WriteString("</head>\n<body>\n")
	if a.Nav != "" {
		b.WriteString(a.Nav + "\n")
	}
	b.WriteString("<main>\n<section " + FallbackMarker + ">\n")
	b.WriteString("<h1>" + html.EscapeString(p.DisplayName) + "</h1>\n")
	b.WriteString("<p>This page needs regeneration.</p>\n")
	b.WriteString("</section>\n</main>\n")
	if a.Footer != "" {
		b.WriteString(a.Footer + "\n")
	}
	b.WriteString("<script src=\"" + site.ScriptFile + "\"></script>\n")
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// IsFallback reports whether doc is a fallback page.
func IsFallback(doc string) bool {
	return strings.Contains(doc, FallbackMarker)
}
