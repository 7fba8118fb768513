package budget

import (
	"math"
	"strings"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// EstimatePromptTokens estimates the total tokens for a system message, a user
// message, and zero or more context blocks.
func EstimatePromptTokens(system string, user string, blocks []string) int {
	total := EstimateTokens(system) + EstimateTokens(user)
	for _, b := range blocks {
		total += EstimateTokens(b)
	}
	return total
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a sensible default.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "512k"):
		return 512_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.HasSuffix(name, "32k"):
		return 32_768
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// HeadroomTokens returns the safety margin subtracted from the model context:
// the larger of 5% of the context or 512 tokens.
func HeadroomTokens(modelName string) int {
	dyn := int(math.Ceil(float64(ModelContextTokens(modelName)) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// MinOutputTokens is the smallest output reservation worth requesting; a page
// needs room for at least a skeleton document.
const MinOutputTokens = 1024

// OutputTokens returns the max output size to request for a prompt of
// promptTokens: the wanted amount, capped by what remains of the context after
// headroom, and never below MinOutputTokens.
func OutputTokens(modelName string, promptTokens int, want int) int {
	remaining := ModelContextTokens(modelName) - HeadroomTokens(modelName) - promptTokens
	if want <= 0 || want > remaining {
		want = remaining
	}
	if want < MinOutputTokens {
		return MinOutputTokens
	}
	return want
}

// TrimToTokens shortens s to roughly maxTokens, cutting at the last line break
// inside the limit when there is one.
func TrimToTokens(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * 4
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\n") + "\n…"
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":            128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4.1":           1_000_000,
	"gpt-4.1-mini":      1_000_000,
	"gpt-4-turbo":       128_000,
	"gpt-3.5-turbo":     16_384,
	"claude-3-5-sonnet": 200_000,
	"claude-3-haiku":    200_000,
	"llama-3":           8_192,
	"llama-3.1":         128_000,
	"qwen2.5-coder":     32_768,
	"gpt-oss-20b":       131_072,
}
