package template

import (
	"strings"

	"github.com/hyperifyio/gosite/internal/site"
)

// Profile defines how pages are requested for one generation mode
type Profile struct {
	Mode        site.Mode
	Name        string
	Description string
	// Outline lists the sections a typical page of this mode carries.
	Outline        []string
	SystemPrompt   string
	UserPromptHint string
}

// GetProfile returns the profile for a free-form mode name
func GetProfile(mode string) Profile {
	return ProfileFor(site.ParseMode(mode))
}

// ProfileFor returns the profile of m, defaulting to the markup profile
func ProfileFor(m site.Mode) Profile {
	switch m {
	case site.ModeSPA:
		return spaProfile()
	case site.ModeFramework:
		return frameworkProfile()
	default:
		return markupProfile()
	}
}

const documentRules = "Return exactly one complete HTML5 document inside a single ```html fence: <!DOCTYPE html>, then <html lang=\"en\"> with a <head> (charset meta, viewport meta, title, meta description) followed by a <body>. " +
	"Close every element you open. Do not use inline event handler attributes such as onclick; attach behaviour in script.js. " +
	"Never write template placeholders such as {{name}}, ${value} or {item.image}: write real, specific copy instead. " +
	"Use real image URLs or leave images out. Do not explain the code."

func markupProfile() Profile {
	return Profile{
		Mode:        site.ModeMarkup,
		Name:        "Static Site",
		Description: "One static HTML document per page sharing style.css and script.js",
		Outline: []string{
			"Header with the shared navigation",
			"Hero or introduction",
			"Main content sections",
			"Call to action",
			"Shared footer",
		},
		SystemPrompt:   "You are a senior front-end developer writing production-ready static websites with semantic, accessible HTML. " + documentRules,
		UserPromptHint: "Write a full page with at least three substantial content sections and a single <h1>.",
	}
}

func spaProfile() Profile {
	return Profile{
		Mode:        site.ModeSPA,
		Name:        "Single Page App",
		Description: "One shell document whose sections are shown by hash routing",
		Outline: []string{
			"Shared navigation linking #section ids",
			"One <section id=\"slug\" data-route> per planned page",
			"Shared footer",
		},
		SystemPrompt:   "You are a senior front-end developer building a single-page website from plain HTML, CSS and JavaScript. Routing is handled by script.js through location.hash. " + documentRules,
		UserPromptHint: "Write one document. Give every planned page its own <section id=\"{slug}\" data-route> with substantial content; the navigation links to #{slug}.",
	}
}

func frameworkProfile() Profile {
	return Profile{
		Mode:        site.ModeFramework,
		Name:        "Framework Site",
		Description: "A component-framework request delivered as equivalent plain HTML",
		Outline: []string{
			"Header with the shared navigation",
			"Component-like sections written as plain elements",
			"Shared footer",
		},
		SystemPrompt: "You are a senior front-end developer. The user asked for a component framework, but the deliverable is the rendered result: plain HTML that looks and behaves like the framework version. " +
			"No JSX, no components such as <Card />, no fragments <>, and no import or export statements. " + documentRules,
		UserPromptHint: "Render the components as plain HTML elements with classes; keep interactivity in script.js.",
	}
}

// ModeName returns the display name of a mode's profile.
func ModeName(m site.Mode) string {
	return strings.TrimSpace(ProfileFor(m).Name)
}
