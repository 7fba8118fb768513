// Package stub is an OpenAI-compatible chat server that answers the site
// generator's prompts with deterministic content. It backs offline runs and
// end-to-end tests.
package stub

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/gosite/internal/site"
)

// Server serves /v1/models and /v1/chat/completions.
type Server struct {
	Model string
	// Pages overrides the response for a page filename, e.g. to force a
	// regeneration in tests.
	Pages map[string]string
	// ChunkSize is the streamed delta size in bytes; zero means 64.
	ChunkSize int

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how often each kind of prompt was answered: "plan",
// "assets", or a page filename.
func (s *Server) Calls() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.calls))
	for k, v := range s.calls {
		out[k] = v
	}
	return out
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", s.models)
	mux.HandleFunc("/v1/chat/completions", s.completions)
	return mux
}

func (s *Server) model() string {
	if strings.TrimSpace(s.Model) == "" {
		return "stub-model"
	}
	return s.Model
}

func (s *Server) models(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ModelsList{Models: []openai.Model{{ID: s.model(), Object: "model", OwnedBy: "gosite"}}})
}

func (s *Server) completions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	var system, user string
	for _, m := range req.Messages {
		switch m.Role {
		case openai.ChatMessageRoleSystem:
			system = m.Content
		case openai.ChatMessageRoleUser:
			user = m.Content
		}
	}
	kind, content, ok := s.respond(system, user)
	if !ok {
		http.Error(w, "unexpected prompt", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[kind]++
	s.mu.Unlock()

	if req.Stream {
		s.stream(w, content)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   s.model(),
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
	})
}

func (s *Server) stream(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	size := s.ChunkSize
	if size <= 0 {
		size = 64
	}
	id := "chatcmpl-" + uuid.NewString()
	send := func(delta string, finish openai.FinishReason) {
		b, _ := json.Marshal(openai.ChatCompletionStreamResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   s.model(),
			Choices: []openai.ChatCompletionStreamChoice{{
				Delta:        openai.ChatCompletionStreamChoiceDelta{Content: delta},
				FinishReason: finish,
			}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}
	for len(content) > 0 {
		n := min(size, len(content))
		for n < len(content) && n > 1 && !utf8.RuneStart(content[n]) {
			n--
		}
		send(content[:n], "")
		content = content[n:]
	}
	send("", openai.FinishReasonStop)
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

var (
	pageRe     = regexp.MustCompile(`^Write (\S+\.html)`)
	siteNameRe = regexp.MustCompile(`(?:for|of) "([^"]+)"`)
	spaRe      = regexp.MustCompile(`(?i)single[- ]page|\bspa\b`)
	pageHintRe = regexp.MustCompile(`(?m)^- ([^:\n]+): (\S+)`)
)

// respond picks the answer for a prompt pair by its kind.
func (s *Server) respond(system, user string) (kind, content string, ok bool) {
	switch {
	case strings.Contains(system, "website planning assistant"):
		return "plan", planResponse(user), true
	case strings.Contains(system, "shared assets"):
		return "assets", assetsResponse(user), true
	}
	m := pageRe.FindStringSubmatch(strings.TrimSpace(user))
	if m == nil {
		return "", "", false
	}
	name := m[1]
	if override, found := s.Pages[name]; found {
		return name, override, true
	}
	return name, pageResponse(name, siteName(user)), true
}

func siteName(prompt string) string {
	if m := siteNameRe.FindStringSubmatch(prompt); m != nil {
		return m[1]
	}
	return "Stub Site"
}

func planResponse(user string) string {
	type page struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	pages := []page{
		{Slug: "index", Name: "Home", Description: "Welcome and highlights"},
		{Slug: "about", Name: "About", Description: "Story and team"},
		{Slug: "contact", Name: "Contact", Description: "Address, hours and a message form"},
	}
	mode := "markup"
	if spaRe.MatchString(user) {
		mode = "spa"
	}
	b, _ := json.Marshal(map[string]any{"mode": mode, "siteName": "Stub Site", "pages": pages})
	return string(b)
}

func assetsResponse(user string) string {
	list := user
	if i := strings.Index(list, "\nPages ("); i >= 0 {
		list = list[i:]
	}
	if i := strings.Index(list, "\n\nRequirements"); i >= 0 {
		list = list[:i]
	}
	links := pageHintRe.FindAllStringSubmatch(list, -1)
	var nav strings.Builder
	nav.WriteString(`<nav class="site-nav">`)
	if len(links) == 0 {
		nav.WriteString(`<a href="index.html">Home</a>`)
	}
	for _, l := range links {
		fmt.Fprintf(&nav, `<a href="%s">%s</a>`, html.EscapeString(l[2]), html.EscapeString(l[1]))
	}
	nav.WriteString(`</nav>`)
	return "```css\n:root { --accent: #8a4b2a; }\nbody { margin: 0; font-family: Georgia, serif; }\n.site-nav a { margin-right: 1rem; color: var(--accent); }\n```\n\n" +
		"```js\ndocument.addEventListener('DOMContentLoaded', function () { document.body.classList.add('ready'); });\n```\n\n" +
		"```html\n" + nav.String() + "\n<footer class=\"site-footer\"><p>Made with care.</p></footer>\n```"
}

const prose = "We bake every loaf by hand in small batches before sunrise, using flour milled a few kilometres away and a sourdough starter that has been fed daily for more than a decade. " +
	"Our counter opens at seven with croissants, rye, seeded country bread and a rotating tart of the season. " +
	"Regulars know that the cinnamon buns sell out by ten, and that Saturday brings a long queue and a free taste of whatever we are testing that week. " +
	"We also run weekend workshops where you can learn to shape a boule, score it and read the crumb."

func pageResponse(filename, siteName string) string {
	title := site.DisplayNameFromSlug(strings.TrimSuffix(filename, ".html"))
	return "Here is " + filename + ".\n\n```html\n<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"UTF-8\">\n" +
		"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n<title>" + title + " | " + siteName + "</title>\n</head>\n<body>\n" +
		"<main>\n<h1>" + title + "</h1>\n<p>" + prose + "</p>\n<h2>Visit</h2>\n<p>Find us on Rua das Flores, open Tuesday to Sunday.</p>\n" +
		"<button onclick=\"alert('See you soon')\">Say hello</button>\n</main>\n</body>\n</html>\n```"
}
