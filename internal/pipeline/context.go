package pipeline

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosite/internal/budget"
	"github.com/hyperifyio/gosite/internal/markup"
)

// regenerationContext renders the accepted pages as Markdown, trimmed to the
// context budget. Each page gets an equal share.
func (r *run) regenerationContext() string {
	if len(r.accepted) == 0 {
		return ""
	}
	limit := r.o.ContextTokens
	if limit <= 0 {
		limit = DefaultContextTokens
	}
	share := limit / len(r.accepted)
	var sb strings.Builder
	for _, p := range r.accepted {
		md, err := pageMarkdown(p.Content)
		if err != nil {
			log.Debug().Err(err).Str("stage", "pipeline").Str("page", p.Filename).Msg("markdown conversion failed")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("## ")
		sb.WriteString(p.Filename)
		sb.WriteString("\n\n")
		sb.WriteString(budget.TrimToTokens(md, share))
	}
	return sb.String()
}

// pageMarkdown converts a page to Markdown without its scripts and styles.
func pageMarkdown(doc string) (string, error) {
	md, err := htmltomarkdown.ConvertString(markup.StripRaw(doc))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
