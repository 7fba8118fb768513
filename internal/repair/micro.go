package repair

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperifyio/gosite/internal/markup"
	"github.com/hyperifyio/gosite/internal/site"
)

var (
	charsetRe      = regexp.MustCompile(`(?i)<meta\b[^>]*\bcharset\s*=`)
	viewportRe     = regexp.MustCompile(`(?i)<meta\b[^>]*\bname\s*=\s*["']?viewport`)
	descriptionRe  = regexp.MustCompile(`(?i)<meta\b[^>]*\bname\s*=\s*["']?description`)
	h1SpanRe       = regexp.MustCompile(`(?is)<h1\b[^>]*>(.*?)</h1\s*>`)
	pSpanRe        = regexp.MustCompile(`(?is)<p\b[^>]*>(.*?)</p\s*>`)
	headingTagRe   = regexp.MustCompile(`(?i)<(/?)h([1-6])\b([^>]*)>`)
	headingOpenRe  = regexp.MustCompile(`(?i)<h([1-6])\b[^>]*>`)
	headerOpenRe   = regexp.MustCompile(`(?i)<header[\s>]`)
	navOpenRe      = regexp.MustCompile(`(?i)<nav(?:\s[^>]*)?>`)
	navCloseRe     = regexp.MustCompile(`(?i)</nav\s*>`)
	headerCloseRe  = regexp.MustCompile(`(?i)</header\s*>`)
	footerOpenRe   = regexp.MustCompile(`(?i)<footer[\s>]`)
	mainLikeRe     = regexp.MustCompile(`(?i)<main[\s>]|<article[\s>]|\brole\s*=\s*["']?main\b`)
	imgTagRe       = regexp.MustCompile(`(?is)<img\b(?:[^>"']|"[^"]*"|'[^']*')*>`)
	anchorTagRe    = regexp.MustCompile(`(?is)<a\s(?:[^>"']|"[^"]*"|'[^']*')*>`)
	doubledSrcRe   = regexp.MustCompile(`(?i)(<img\b[^>]*?\ssrc\s*=\s*)""[^"\s>]*"*`)
	srcAttrRe      = regexp.MustCompile(`(?is)\ssrc\s*=\s*(""[^\s>]*|"[^"]*"|'[^']*'|[^\s"'>]+)`)
	tokenNameRe    = regexp.MustCompile(`[A-Za-z_][\w.-]*`)
	externalHrefRe = regexp.MustCompile(`(?i)^(?:https?:)?//`)
)

// MinMainText is the visible text a body needs before it is wrapped in
// <main>.
const MinMainText = 200

// PlaceholderURL returns the stable placeholder image for seed.
func PlaceholderURL(seed string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/800/600", seed)
}

func micro(s string) string {
	s = ensureMeta(s)
	s = fixHeadings(s)
	s = ensureTitle(s)
	s = ensureDescription(s)
	s = wrapNav(s)
	s = wrapMain(s)
	s = fixImageAttrs(s)
	s = FixImageSources(s)
	return fixAnchors(s)
}

// insertIntoHead places snippet before </head>, or right after <head> when
// the head is not closed.
func insertIntoHead(s, snippet string, atStart bool) string {
	if !atStart {
		if loc := find(headCloseRe, s); loc != nil {
			return s[:loc[0]] + snippet + "\n" + s[loc[0]:]
		}
	}
	if loc := find(headOpenRe, s); loc != nil {
		return s[:loc[1]] + "\n" + snippet + s[loc[1]:]
	}
	return s
}

func ensureMeta(s string) string {
	blank := markup.BlankRaw(s)
	if !viewportRe.MatchString(blank) {
		s = insertIntoHead(s, metaViewport, true)
	}
	if !charsetRe.MatchString(blank) {
		s = insertIntoHead(s, metaCharset, true)
	}
	return s
}

func ensureTitle(s string) string {
	if find(titleRe, s) != nil {
		return s
	}
	loc := h1SpanRe.FindStringSubmatchIndex(markup.BlankRaw(s))
	if loc == nil {
		return s
	}
	text := markup.InnerText(s[loc[2]:loc[3]])
	if text == "" {
		return s
	}
	return insertIntoHead(s, "<title>"+text+"</title>", false)
}

func ensureDescription(s string) string {
	if descriptionRe.MatchString(markup.BlankRaw(s)) {
		return s
	}
	loc := pSpanRe.FindStringSubmatchIndex(markup.BlankRaw(s))
	if loc == nil {
		return s
	}
	text := html.UnescapeString(markup.InnerText(s[loc[2]:loc[3]]))
	if text == "" {
		return s
	}
	text = truncateWords(text, maxDescLength)
	return insertIntoHead(s, `<meta name="description" content="`+html.EscapeString(text)+`">`, false)
}

func truncateWords(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n]
	cut := string(r)
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// headingLevels lists heading levels in document order outside raw regions.
func headingLevels(s string) []int {
	var out []int
	for _, m := range headingOpenRe.FindAllStringSubmatch(markup.BlankRaw(s), -1) {
		out = append(out, int(m[1][0]-'0'))
	}
	return out
}

// renameHeadings rewrites the level of the i-th heading to target(i, level)
// and keeps its closing tag in step.
func renameHeadings(s string, target func(i, level int) int) string {
	var open [7][]int
	i := 0
	return markup.MapOutsideRaw(s, func(seg string) string {
		return headingTagRe.ReplaceAllStringFunc(seg, func(tag string) string {
			m := headingTagRe.FindStringSubmatch(tag)
			level := int(m[2][0] - '0')
			if m[1] == "/" {
				st := open[level]
				if len(st) == 0 {
					return tag
				}
				to := st[len(st)-1]
				open[level] = st[:len(st)-1]
				if to == level {
					return tag
				}
				return "</h" + strconv.Itoa(to) + m[3] + ">"
			}
			to := target(i, level)
			i++
			open[level] = append(open[level], to)
			if to == level {
				return tag
			}
			return "<h" + strconv.Itoa(to) + m[3] + ">"
		})
	})
}

func fixHeadings(s string) string {
	levels := headingLevels(s)
	if len(levels) == 0 {
		return s
	}
	firstH1, firstH2 := -1, -1
	for i, l := range levels {
		if l == 1 && firstH1 < 0 {
			firstH1 = i
		}
		if l == 2 && firstH2 < 0 {
			firstH2 = i
		}
	}
	if firstH1 < 0 && firstH2 >= 0 {
		s = renameHeadings(s, func(i, l int) int {
			if i == firstH2 {
				return 1
			}
			return l
		})
		firstH1 = firstH2
	}
	if firstH1 >= 0 {
		extra := false
		for i, l := range headingLevels(s) {
			if l == 1 && i != firstH1 {
				extra = true
				break
			}
		}
		if extra {
			s = renameHeadings(s, func(i, l int) int {
				if l == 1 && i != firstH1 {
					return 2
				}
				return l
			})
		}
	}
	return bridgeHeadings(s)
}

// bridgeHeadings inserts hidden headings where the level jumps by more than
// one step, so the outline has no gaps.
func bridgeHeadings(s string) string {
	locs := headingOpenRe.FindAllStringSubmatchIndex(markup.BlankRaw(s), -1)
	type insert struct {
		at   int
		text string
	}
	var inserts []insert
	prev := 0
	for _, l := range locs {
		level := int(s[l[2]] - '0')
		if prev > 0 && level > prev+1 {
			var b strings.Builder
			for k := prev + 1; k < level; k++ {
				fmt.Fprintf(&b, "<h%d hidden %s></h%d>", k, BridgeAttr, k)
			}
			inserts = append(inserts, insert{at: l[0], text: b.String()})
		}
		prev = level
	}
	for i := len(inserts) - 1; i >= 0; i-- {
		in := inserts[i]
		s = s[:in.at] + in.text + s[in.at:]
	}
	return s
}

func wrapNav(s string) string {
	if find(headerOpenRe, s) != nil {
		return s
	}
	open := find(navOpenRe, s)
	if open == nil {
		return s
	}
	closeLoc := navCloseRe.FindStringIndex(markup.BlankRaw(s[open[1]:]))
	if closeLoc == nil {
		return s
	}
	end := open[1] + closeLoc[1]
	return s[:open[0]] + "<header>" + s[open[0]:end] + "</header>" + s[end:]
}

func wrapMain(s string) string {
	blank := markup.BlankRaw(s)
	if mainLikeRe.MatchString(blank) {
		return s
	}
	bo := bodyOpenRe.FindStringIndex(blank)
	bc := lastIndex(bodyCloseRe, s)
	if bo == nil || bc == nil || bc[0] < bo[1] {
		return s
	}
	start, end := bo[1], bc[0]

	lead := strings.TrimLeft(blank[start:end], " \t\r\n")
	offset := end - start - len(lead)
	if strings.HasPrefix(strings.ToLower(lead), "<header") {
		if c := headerCloseRe.FindStringIndex(lead); c != nil {
			start += offset + c[1]
		}
	} else if strings.HasPrefix(strings.ToLower(lead), "<nav") {
		if c := navCloseRe.FindStringIndex(lead); c != nil {
			start += offset + c[1]
		}
	}
	if f := lastIndex(footerOpenRe, s[:end]); f != nil && f[0] >= start {
		end = f[0]
	}
	for {
		t := strings.TrimRight(s[start:end], " \t\r\n")
		lower := strings.ToLower(t)
		if !strings.HasSuffix(lower, "</script>") {
			break
		}
		i := strings.LastIndex(lower, "<script")
		if i < 0 {
			break
		}
		end = start + i
	}

	content := strings.TrimSpace(s[start:end])
	if content == "" || markup.VisibleTextLength(content) < MinMainText || !markup.Balanced(content) {
		return s
	}
	return s[:start] + "\n<main " + MainAttr + ">\n" + content + "\n</main>\n" + s[end:]
}

func fixImageAttrs(s string) string {
	return markup.MapOutsideRaw(s, func(seg string) string {
		return imgTagRe.ReplaceAllStringFunc(seg, func(tag string) string {
			attrs := tag[4 : len(tag)-1]
			if !markup.HasAttr(attrs, "alt") {
				tag = markup.AddAttr(tag, `alt=""`)
			}
			if !markup.HasAttr(attrs, "loading") {
				tag = markup.AddAttr(tag, `loading="lazy"`)
			}
			return tag
		})
	})
}

// FixImageSources replaces malformed image sources with a seeded placeholder.
// Malformed means missing, empty, "#", doubled quotes, or an unresolved
// template token. The seed comes from the token's variable name, then the alt
// text, then the image's position in the document.
func FixImageSources(s string) string {
	n := 0
	return markup.MapOutsideRaw(s, func(seg string) string {
		// A doubled-quote source can leave an odd quote count that hides the
		// tag's end; reduce it to an empty source first.
		seg = doubledSrcRe.ReplaceAllString(seg, `${1}""`)
		return imgTagRe.ReplaceAllStringFunc(seg, func(tag string) string {
			n++
			attrs := tag[4 : len(tag)-1]
			loc := srcAttrRe.FindStringSubmatchIndex(tag)
			if loc == nil {
				return markup.AddAttr(tag, `src="`+PlaceholderURL(imageSeed("", attrs, n))+`"`)
			}
			raw := tag[loc[2]:loc[3]]
			token, bad := malformedSource(raw)
			if !bad {
				return tag
			}
			return tag[:loc[0]] + ` src="` + PlaceholderURL(imageSeed(token, attrs, n)) + `"` + tag[loc[1]:]
		})
	})
}

// malformedSource classifies a raw src value and returns the template token
// text when there is one.
func malformedSource(raw string) (string, bool) {
	if strings.HasPrefix(raw, `""`) {
		return "", true
	}
	v := raw
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	v = strings.TrimSpace(v)
	if strings.ContainsAny(v, "{}") {
		return v, true
	}
	return "", v == "" || v == "#"
}

func imageSeed(token, attrs string, n int) string {
	if token != "" {
		if name := tokenNameRe.FindString(token); name != "" {
			if seed := site.Slugify(name); seed != "" {
				return seed
			}
		}
	}
	if alt, ok := markup.Attr(attrs, "alt"); ok {
		if seed := site.Slugify(html.UnescapeString(alt)); seed != "" {
			if len(seed) > 40 {
				seed = strings.TrimRight(seed[:40], "-")
			}
			return seed
		}
	}
	return "image-" + strconv.Itoa(n)
}

func fixAnchors(s string) string {
	return markup.MapOutsideRaw(s, func(seg string) string {
		return anchorTagRe.ReplaceAllStringFunc(seg, func(tag string) string {
			attrs := tag[2 : len(tag)-1]
			href, ok := markup.Attr(attrs, "href")
			if !ok || !externalHrefRe.MatchString(strings.TrimSpace(href)) || markup.HasAttr(attrs, "rel") {
				return tag
			}
			return markup.AddAttr(tag, `rel="noopener noreferrer"`)
		})
	})
}
