package budget

import (
	"strings"
	"testing"
)

func TestEstimateTokensFromChars(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{400, 100},
	}
	for _, c := range cases {
		if got := EstimateTokensFromChars(c.in); got != c.want {
			t.Fatalf("EstimateTokensFromChars(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEstimatePromptTokens(t *testing.T) {
	// sys(6)->2, user(12)->3, blocks: 3->1, 4->1 => total 7
	if got := EstimatePromptTokens("system", "user message", []string{"abc", "defg"}); got != 7 {
		t.Fatalf("EstimatePromptTokens() = %d, want 7", got)
	}
}

func TestModelContextTokens(t *testing.T) {
	if ModelContextTokens("") != 8192 {
		t.Fatal("empty model should default to 8192")
	}
	if ModelContextTokens("GPT-4o") < 100_000 {
		t.Fatal("case-insensitive match for gpt-4o should be ~128k")
	}
	if ModelContextTokens("mystery-512k") != 512_000 {
		t.Fatal("numeric suffix heuristic 512k should map to 512k tokens")
	}
}

func TestOutputTokens_CapsAtRemainingContext(t *testing.T) {
	// 8192 context, 512 headroom, 6000 prompt => 1680 remain
	if got := OutputTokens("unknown", 6000, 8000); got != 1680 {
		t.Fatalf("expected 1680, got %d", got)
	}
	if got := OutputTokens("unknown", 8000, 8000); got != MinOutputTokens {
		t.Fatalf("expected floor %d, got %d", MinOutputTokens, got)
	}
	if got := OutputTokens("gpt-4o", 1000, 4000); got != 4000 {
		t.Fatalf("expected wanted size, got %d", got)
	}
}

func TestTrimToTokens(t *testing.T) {
	s := strings.Repeat("line of text\n", 100)
	out := TrimToTokens(s, 50)
	if len(out) > 50*4+4 {
		t.Fatalf("expected trimmed output, got %d chars", len(out))
	}
	if !strings.HasSuffix(out, "…") {
		t.Fatalf("expected ellipsis marker, got %q", out[len(out)-10:])
	}
	if TrimToTokens("short", 50) != "short" {
		t.Fatalf("short input should be unchanged")
	}
}
