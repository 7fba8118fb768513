package extract

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// Document is the readable summary of a generated page.
type Document struct {
	Title string
	// Description is the content of <meta name="description">, if any.
	Description string
	// Headings are the h1-h3 texts of the content area in document order.
	Headings []string
	Text     string
}

// FromHTML summarizes a page: its title, description, headings and the
// readable text of <main> (else <article>, else <body>). Navigation, footers
// and scripts do not count as page text.
func FromHTML(input string) Document {
	root, err := html.Parse(strings.NewReader(input))
	if err != nil || root == nil {
		return Document{}
	}
	var doc Document
	if head := findFirst(root, "head"); head != nil {
		if t := findFirst(head, "title"); t != nil {
			doc.Title = collapse(nodeText(t))
		}
		doc.Description = metaDescription(head)
	}
	content := findFirst(root, "main")
	if content == nil {
		content = findFirst(root, "article")
	}
	if content == nil {
		content = findFirst(root, "body")
	}
	if content == nil {
		return doc
	}
	w := &textWalker{}
	w.walk(content)
	doc.Headings = w.headings
	doc.Text = normalizeWhitespace(w.b.String())
	return doc
}

// ErrNoDocument is returned by Normalize when the input has no parseable
// content.
var ErrNoDocument = errors.New("no document")

// Normalize re-serializes markup through an HTML5 parse tree, which closes
// dangling tags and completes the html/head/body skeleton. The parser
// lowercases element names, so forbidden-construct checks must run on the
// input before it is normalized. Callers keep the original text on error.
func Normalize(markup string) (string, error) {
	if strings.TrimSpace(markup) == "" {
		return "", ErrNoDocument
	}
	node, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	if findFirst(node, "body") == nil {
		return "", ErrNoDocument
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", err
	}
	out := buf.String()
	if !strings.HasPrefix(strings.ToLower(out), "<!doctype") {
		out = "<!DOCTYPE html>\n" + out
	}
	return out, nil
}

func metaDescription(head *html.Node) string {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "meta" {
			continue
		}
		var name, content string
		for _, a := range c.Attr {
			switch strings.ToLower(a.Key) {
			case "name":
				name = strings.ToLower(a.Val)
			case "content":
				content = a.Val
			}
		}
		if name == "description" {
			return collapse(content)
		}
	}
	return ""
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// skippedText are elements whose text is not part of the page content.
var skippedText = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "footer": true, "iframe": true, "svg": true,
}

// blockBreaks end a line of readable text; paragraphs and headings also end
// a block.
var blockBreaks = map[string]string{
	"p": "\n\n", "h1": "\n\n", "h2": "\n\n", "h3": "\n\n", "h4": "\n\n", "h5": "\n\n", "h6": "\n\n",
	"li": "\n", "br": "\n", "hr": "\n", "tr": "\n", "div": "\n", "section": "\n\n", "pre": "\n",
}

type textWalker struct {
	b        strings.Builder
	headings []string
	pre      int
}

func (w *textWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if w.pre > 0 {
			w.b.WriteString(n.Data)
		} else {
			w.b.WriteString(strings.NewReplacer("\t", " ", "\r", " ").Replace(n.Data))
		}
		return
	case html.ElementNode:
		if skippedText[n.Data] {
			return
		}
	}
	tag := ""
	if n.Type == html.ElementNode {
		tag = n.Data
	}
	switch tag {
	case "h1", "h2", "h3":
		if h := collapse(nodeText(n)); h != "" {
			w.headings = append(w.headings, h)
		}
	case "pre":
		w.pre++
		defer func() { w.pre-- }()
	}
	if brk, ok := blockBreaks[tag]; ok && tag != "br" && tag != "hr" {
		w.b.WriteString("\n")
		defer w.b.WriteString(brk)
	} else if ok {
		w.b.WriteString(brk)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// normalizeWhitespace collapses runs of spaces within lines and keeps at
// most one blank line between blocks.
func normalizeWhitespace(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = collapse(line)
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
