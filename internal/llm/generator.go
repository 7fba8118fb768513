package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/gosite/internal/cache"
)

// Request is one call to the generation service.
type Request struct {
	SystemPrompt    string
	UserPrompt      string
	MaxOutputTokens int
}

// Response is the concatenated text of a finished completion. Truncated is
// set when the service stopped because it hit the output limit.
type Response struct {
	Content   string
	Truncated bool
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

var (
	// ErrEmptyResponse is returned when the service finished without content.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNotConfigured is returned when no backend or model is set.
	ErrNotConfigured = errors.New("generator not configured")
	// ErrCacheMiss is returned in cache-only mode when no entry exists.
	ErrCacheMiss = errors.New("cache-only: not found")
)

// DefaultCallTimeout bounds a single generation call.
const DefaultCallTimeout = 90 * time.Second

// OpenAIGenerator calls an OpenAI-compatible chat endpoint. When Stream is
// set the completion is read as a stream until its completion signal;
// otherwise Client is called once.
type OpenAIGenerator struct {
	Client      Client
	Stream      StreamClient
	Model       string
	Temperature float32
	// CallTimeout bounds each call; zero means DefaultCallTimeout.
	CallTimeout time.Duration
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if g == nil || strings.TrimSpace(g.Model) == "" || (g.Client == nil && g.Stream == nil) {
		return Response{}, ErrNotConfigured
	}
	timeout := g.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	creq := openai.ChatCompletionRequest{
		Model: g.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: g.Temperature,
		MaxTokens:   req.MaxOutputTokens,
		N:           1,
	}
	log.Debug().Str("stage", "generate").Str("model", g.Model).Int("system_len", len(req.SystemPrompt)).Int("user_len", len(req.UserPrompt)).Int("max_tokens", req.MaxOutputTokens).Msg("generation request")

	var (
		resp Response
		err  error
	)
	if g.Stream != nil {
		creq.Stream = true
		resp, err = g.generateStream(cctx, creq)
	} else {
		resp, err = g.generateOnce(cctx, creq)
	}
	if err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return Response{}, ErrEmptyResponse
	}
	return resp, nil
}

func (g *OpenAIGenerator) generateOnce(ctx context.Context, creq openai.ChatCompletionRequest) (Response, error) {
	out, err := g.Client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}
	c := out.Choices[0]
	return Response{Content: c.Message.Content, Truncated: c.FinishReason == openai.FinishReasonLength}, nil
}

func (g *OpenAIGenerator) generateStream(ctx context.Context, creq openai.ChatCompletionRequest) (Response, error) {
	stream, err := g.Stream.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return Response{}, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	var (
		sb        strings.Builder
		truncated bool
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, fmt.Errorf("read stream: %w", err)
		}
		for _, c := range chunk.Choices {
			sb.WriteString(c.Delta.Content)
			if c.FinishReason == openai.FinishReasonLength {
				truncated = true
			}
		}
	}
	return Response{Content: sb.String(), Truncated: truncated}, nil
}

// CachingGenerator serves repeated prompts from a file cache keyed by model
// and prompt text.
type CachingGenerator struct {
	Inner Generator
	Cache *cache.LLMCache
	Model string
	// CacheOnly fails with ErrCacheMiss instead of calling Inner.
	CacheOnly bool
}

func (c *CachingGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if c.Cache == nil {
		if c.CacheOnly {
			return Response{}, ErrCacheMiss
		}
		if c.Inner == nil {
			return Response{}, ErrNotConfigured
		}
		return c.Inner.Generate(ctx, req)
	}
	key := cache.KeyFrom(c.Model, req.SystemPrompt+"\n\n"+req.UserPrompt)
	if e, ok, _ := c.Cache.GetEntry(ctx, key); ok && strings.TrimSpace(e.Content) != "" {
		log.Debug().Str("stage", "generate").Str("key", key[:12]).Msg("cache hit")
		return Response{Content: e.Content, Truncated: e.Truncated}, nil
	}
	if c.CacheOnly {
		return Response{}, ErrCacheMiss
	}
	if c.Inner == nil {
		return Response{}, ErrNotConfigured
	}
	resp, err := c.Inner.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if err := c.Cache.SaveEntry(ctx, key, cache.Entry{Model: c.Model, Content: resp.Content, Truncated: resp.Truncated}); err != nil {
		log.Warn().Err(err).Str("stage", "generate").Msg("cache save failed")
	}
	return resp, nil
}
