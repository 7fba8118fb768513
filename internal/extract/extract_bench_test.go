package extract

import (
	"strings"
	"testing"
)

func BenchmarkExtract(b *testing.B) {
	small := "```html\n<html><head><title>t</title></head><body><main><p>a</p></main></body></html>\n```"
	large := "Here is the page.\n\n```html\n" + makeHTML(200, 200) + "\n```\n\n```css\nbody { margin: 0; }\n```"

	b.Run("small", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Extract(small)
		}
	})
	b.Run("large", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Extract(large)
		}
	})
}

func BenchmarkFromHTML(b *testing.B) {
	medium := makeHTML(50, 60)
	for i := 0; i < b.N; i++ {
		_ = FromHTML(medium)
	}
}

func makeHTML(paras int, itemsPerList int) string {
	builder := new(strings.Builder)
	builder.WriteString("<html><head><title>demo</title></head><body><main>")
	for i := 0; i < paras; i++ {
		builder.WriteString("<h2>Heading</h2><p>")
		builder.WriteString(sampleText)
		builder.WriteString("</p>")
	}
	builder.WriteString("<ul>")
	for i := 0; i < itemsPerList; i++ {
		builder.WriteString("<li>")
		builder.WriteString(sampleText)
		builder.WriteString("</li>")
	}
	builder.WriteString("</ul></main></body></html>")
	return builder.String()
}

const sampleText = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."
