package worker

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

const (
	minTextLength = 100
	maxTextLength = 2000
)

// bodySelectors are tried in order; the first non-empty match wins.
// Colombian portals use a mix of semantic tags and CMS class names.
var bodySelectors = []string{
	"article",
	".article-content",
	".article-body",
	".entry-content",
	".post-content",
	".news-content",
	".contenido",
	"[itemprop=articleBody]",
}

// Article is the text extracted from one captured page.
type Article struct {
	Title string
	Text  string
}

// ExtractArticle pulls title and body text out of raw HTML. Returns
// types.ErrTextTooShort when the page yields less than minTextLength
// characters, which marks boilerplate-only captures for skipping.
func ExtractArticle(html []byte) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, &types.ParseError{Source: "article html", Err: err}
	}

	doc.Find("script, style, nav, footer, header, aside, iframe, noscript, form").Remove()

	title := extractTitle(doc)
	text := cleanText(extractBody(doc))

	if len(text) < minTextLength {
		return nil, types.ErrTextTooShort
	}
	if len(text) > maxTextLength {
		text = truncateUTF8(text, maxTextLength)
	}

	return &Article{Title: title, Text: text}, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := normalizeSpace(og); t != "" {
			return t
		}
	}
	if h1 := normalizeSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	title := doc.Find("title").Text()
	// Portals suffix the site name after a pipe.
	if idx := strings.Index(title, "|"); idx > 0 {
		title = title[:idx]
	}
	return normalizeSpace(title)
}

func extractBody(doc *goquery.Document) string {
	for _, sel := range bodySelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := collectParagraphs(node); len(text) >= minTextLength {
			return text
		}
	}

	// Fallback: the first 20 paragraphs anywhere on the page.
	var parts []string
	doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
		return len(parts) < 20
	})
	return strings.Join(parts, " ")
}

func collectParagraphs(node *goquery.Selection) string {
	var parts []string
	node.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return normalizeSpace(node.Text())
	}
	return strings.Join(parts, " ")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanText drops control characters and stray symbols that survive CMS
// markup, keeping letters, digits, whitespace, and sentence punctuation.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case strings.ContainsRune(`.,;:()¿?¡!"'%$-/«»“”€`, r):
			b.WriteRune(r)
		}
	}
	return normalizeSpace(b.String())
}

// truncateUTF8 cuts at a rune boundary at or below limit bytes.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
