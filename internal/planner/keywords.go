package planner

import (
	"regexp"

	"github.com/hyperifyio/gosite/internal/site"
)

type keywordPage struct {
	re   *regexp.Regexp
	page site.PageSpec
}

// keywordTable is checked in order; the order is the page order of the plan.
var keywordTable = []keywordPage{
	{regexp.MustCompile(`(?i)\babout\b`), site.PageSpec{Slug: "about", DisplayName: "About", Description: "who we are and what we stand for"}},
	{regexp.MustCompile(`(?i)\b(?:services?|offerings?)\b`), site.PageSpec{Slug: "services", DisplayName: "Services", Description: "what we offer"}},
	{regexp.MustCompile(`(?i)\bmenus?\b`), site.PageSpec{Slug: "menu", DisplayName: "Menu", Description: "the full menu with prices"}},
	{regexp.MustCompile(`(?i)\b(?:products?|shop|store)\b`), site.PageSpec{Slug: "products", DisplayName: "Products", Description: "the product catalogue"}},
	{regexp.MustCompile(`(?i)\b(?:pricing|prices)\b`), site.PageSpec{Slug: "pricing", DisplayName: "Pricing", Description: "plans and prices"}},
	{regexp.MustCompile(`(?i)\b(?:portfolio|projects)\b`), site.PageSpec{Slug: "portfolio", DisplayName: "Portfolio", Description: "selected work"}},
	{regexp.MustCompile(`(?i)\b(?:gallery|photos)\b`), site.PageSpec{Slug: "gallery", DisplayName: "Gallery", Description: "photo gallery"}},
	{regexp.MustCompile(`(?i)\b(?:team|staff)\b`), site.PageSpec{Slug: "team", DisplayName: "Team", Description: "the people behind the business"}},
	{regexp.MustCompile(`(?i)\b(?:events?|schedule|classes)\b`), site.PageSpec{Slug: "events", DisplayName: "Events", Description: "upcoming events and schedule"}},
	{regexp.MustCompile(`(?i)\bblog\b`), site.PageSpec{Slug: "blog", DisplayName: "Blog", Description: "latest articles"}},
	{regexp.MustCompile(`(?i)\b(?:faq|questions)\b`), site.PageSpec{Slug: "faq", DisplayName: "FAQ", Description: "frequently asked questions"}},
	{regexp.MustCompile(`(?i)\b(?:contact|booking|reservations?|location)\b`), site.PageSpec{Slug: "contact", DisplayName: "Contact", Description: "how to reach us, with a contact form"}},
}

// keywordPages returns the home page plus every page whose keyword appears in
// the prompt. A prompt with no keywords gets home, about and contact.
func keywordPages(prompt string) []site.PageSpec {
	out := []site.PageSpec{{Slug: "index", DisplayName: "Home", Description: "landing page"}}
	for _, k := range keywordTable {
		if k.re.MatchString(prompt) {
			out = append(out, k.page)
		}
	}
	if len(out) == 1 {
		out = append(out, keywordTable[0].page, keywordTable[len(keywordTable)-1].page)
	}
	return out
}
