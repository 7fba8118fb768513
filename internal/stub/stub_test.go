package stub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/gosite/internal/llm"
)

func newGenerator(t *testing.T, s *Server, stream bool) *llm.OpenAIGenerator {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	p := llm.NewOpenAIProvider(srv.URL+"/v1", "test", srv.Client())
	g := &llm.OpenAIGenerator{Client: p, Model: "stub-model", CallTimeout: 5 * time.Second}
	if stream {
		g.Stream = p
	}
	return g
}

func TestServer_StreamedPageMatchesNonStreamed(t *testing.T) {
	s := &Server{ChunkSize: 7}
	req := llm.Request{SystemPrompt: "You write static pages.", UserPrompt: `Write about.html (page 2 of 3) for "Crumb".`}

	once, err := newGenerator(t, s, false).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	streamed, err := newGenerator(t, s, true).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate stream: %v", err)
	}
	if once.Content != streamed.Content {
		t.Fatalf("streamed content differs:\n%s\n---\n%s", once.Content, streamed.Content)
	}
	if !strings.Contains(once.Content, "<title>About | Crumb</title>") {
		t.Fatalf("unexpected page: %s", once.Content)
	}
	if got := s.Calls()["about.html"]; got != 2 {
		t.Fatalf("expected 2 page calls, got %d", got)
	}
}

func TestServer_AnswersPlanAndAssets(t *testing.T) {
	s := &Server{}
	g := newGenerator(t, s, false)

	plan, err := g.Generate(context.Background(), llm.Request{SystemPrompt: "You are a website planning assistant.", UserPrompt: "A single-page portfolio"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(plan.Content, `"mode":"spa"`) || !strings.Contains(plan.Content, `"slug":"index"`) {
		t.Fatalf("unexpected plan: %s", plan.Content)
	}

	user := "Site name: Crumb\n\nBrief:\n- Menu: bread\n\nPages (the nav must link every one of these targets):\n- Home: index.html\n- About Us: about-us.html (story)\n\nRequirements:\n- x"
	a, err := g.Generate(context.Background(), llm.Request{SystemPrompt: "You write the shared assets of a small website.", UserPrompt: user})
	if err != nil {
		t.Fatalf("assets: %v", err)
	}
	if !strings.Contains(a.Content, `<a href="about-us.html">About Us</a>`) {
		t.Fatalf("expected nav link from the page list, got %s", a.Content)
	}
	if strings.Contains(a.Content, ">Menu<") {
		t.Fatalf("brief lines must not become links: %s", a.Content)
	}
}

func TestServer_RejectsUnknownPrompt(t *testing.T) {
	g := newGenerator(t, &Server{}, false)
	if _, err := g.Generate(context.Background(), llm.Request{SystemPrompt: "x", UserPrompt: "hello"}); err == nil {
		t.Fatalf("expected an error for an unknown prompt")
	}
}
