package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/gosite/internal/cache"
)

func sseServer(t *testing.T, chunks []string, finish string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for i, c := range chunks {
			choice := map[string]any{"index": 0, "delta": map[string]any{"content": c}}
			if i == len(chunks)-1 && finish != "" {
				choice["finish_reason"] = finish
			}
			b, _ := json.Marshal(map[string]any{
				"id":      "chunk",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   "stub",
				"choices": []any{choice},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIGenerator_StreamConcatenatesUntilDone(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := sseServer(t, []string{"<html>", "<body>hi</body>", "</html>"}, "stop", &seen)
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1", "test", srv.Client())
	g := &OpenAIGenerator{Stream: p, Model: "stub", CallTimeout: 5 * time.Second}
	resp, err := g.Generate(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "user", MaxOutputTokens: 2048})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "<html><body>hi</body></html>" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Truncated {
		t.Fatal("did not expect truncation")
	}
	if !seen.Stream || seen.MaxTokens != 2048 || len(seen.Messages) != 2 || seen.Messages[0].Content != "sys" {
		t.Fatalf("unexpected request: %+v", seen)
	}
}

func TestOpenAIGenerator_StreamReportsLengthTruncation(t *testing.T) {
	srv := sseServer(t, []string{"<html><body><p>cut"}, "length", nil)
	defer srv.Close()
	g := &OpenAIGenerator{Stream: NewOpenAIProvider(srv.URL+"/v1", "", srv.Client()), Model: "stub"}
	resp, err := g.Generate(context.Background(), Request{UserPrompt: "u"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !resp.Truncated {
		t.Fatal("expected truncated response")
	}
}

func TestOpenAIGenerator_EmptyStreamIsError(t *testing.T) {
	srv := sseServer(t, []string{"", "  "}, "stop", nil)
	defer srv.Close()
	g := &OpenAIGenerator{Stream: NewOpenAIProvider(srv.URL+"/v1", "", srv.Client()), Model: "stub"}
	if _, err := g.Generate(context.Background(), Request{UserPrompt: "u"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIGenerator_HTTPErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()
	g := &OpenAIGenerator{Stream: NewOpenAIProvider(srv.URL+"/v1", "", srv.Client()), Model: "stub"}
	if _, err := g.Generate(context.Background(), Request{UserPrompt: "u"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenAIGenerator_TimeoutBoundsCall(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	g := &OpenAIGenerator{Stream: NewOpenAIProvider(srv.URL+"/v1", "", srv.Client()), Model: "stub", CallTimeout: 50 * time.Millisecond}
	start := time.Now()
	if _, err := g.Generate(context.Background(), Request{UserPrompt: "u"}); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("call was not bounded by timeout")
	}
}

type fakeClient struct {
	content string
	finish  openai.FinishReason
	calls   int
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.content},
		FinishReason: f.finish,
	}}}, nil
}

func TestOpenAIGenerator_NonStreamingClient(t *testing.T) {
	fc := &fakeClient{content: "<p>x</p>", finish: openai.FinishReasonLength}
	g := &OpenAIGenerator{Client: fc, Model: "m"}
	resp, err := g.Generate(context.Background(), Request{UserPrompt: "u"})
	if err != nil || resp.Content != "<p>x</p>" || !resp.Truncated {
		t.Fatalf("unexpected: %+v err=%v", resp, err)
	}
	if _, err := (&OpenAIGenerator{Client: fc}).Generate(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCachingGenerator_ServesRepeatsFromCache(t *testing.T) {
	fc := &fakeClient{content: "<html></html>"}
	c := &CachingGenerator{Inner: &OpenAIGenerator{Client: fc, Model: "m"}, Cache: &cache.LLMCache{Dir: t.TempDir()}, Model: "m"}
	req := Request{SystemPrompt: "s", UserPrompt: "u"}
	for i := 0; i < 3; i++ {
		resp, err := c.Generate(context.Background(), req)
		if err != nil || resp.Content != "<html></html>" {
			t.Fatalf("call %d: %+v err=%v", i, resp, err)
		}
	}
	if fc.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", fc.calls)
	}
}

func TestCachingGenerator_CacheOnlyMiss(t *testing.T) {
	c := &CachingGenerator{Cache: &cache.LLMCache{Dir: t.TempDir()}, Model: "m", CacheOnly: true}
	if _, err := c.Generate(context.Background(), Request{UserPrompt: "u"}); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}
