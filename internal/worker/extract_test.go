package worker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

func paragraph(n int) string {
	return strings.Repeat(fmt.Sprintf("La economía colombiana creció en el periodo %d. ", n), 3)
}

func TestExtractArticleFromSemanticMarkup(t *testing.T) {
	html := `<html><head>
	  <title>Dólar sube | El Tiempo</title>
	  <meta property="og:title" content="El dólar sube frente al peso colombiano">
	</head><body>
	  <nav><a href="/">inicio</a></nav>
	  <article><p>` + paragraph(1) + `</p><p>` + paragraph(2) + `</p></article>
	  <footer>pie de página</footer>
	</body></html>`

	art, err := ExtractArticle([]byte(html))
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	if art.Title != "El dólar sube frente al peso colombiano" {
		t.Errorf("title = %q, want og:title content", art.Title)
	}
	if !strings.Contains(art.Text, "economía colombiana") {
		t.Errorf("text does not contain article body: %q", art.Text)
	}
	if strings.Contains(art.Text, "pie de página") || strings.Contains(art.Text, "inicio") {
		t.Error("navigation or footer text leaked into the body")
	}
}

func TestExtractArticleTitleFallbacks(t *testing.T) {
	// No og:title: first h1 wins.
	html := `<html><head><title>Portada | Portafolio</title></head>
	  <body><h1>  Banrep mantiene  la tasa </h1>
	  <div class="article-content"><p>` + paragraph(1) + paragraph(2) + `</p></div></body></html>`

	art, err := ExtractArticle([]byte(html))
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	if art.Title != "Banrep mantiene la tasa" {
		t.Errorf("title = %q, want whitespace-normalized h1", art.Title)
	}

	// No h1 either: <title> up to the pipe.
	html2 := `<html><head><title>Inflación cede en marzo | La República</title></head>
	  <body><article><p>` + paragraph(3) + paragraph(4) + `</p></article></body></html>`
	art2, err := ExtractArticle([]byte(html2))
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	if art2.Title != "Inflación cede en marzo" {
		t.Errorf("title = %q, want site suffix stripped", art2.Title)
	}
}

func TestExtractArticleParagraphFallback(t *testing.T) {
	// No recognized container: loose paragraphs carry the text.
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "<p>%s</p>", paragraph(i))
	}
	sb.WriteString("</body></html>")

	art, err := ExtractArticle([]byte(sb.String()))
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	// Fallback caps at 20 paragraphs; the 25th must not appear.
	if strings.Contains(art.Text, "periodo 25") {
		t.Error("paragraph fallback exceeded its 20-paragraph cap")
	}
}

func TestExtractArticleTooShort(t *testing.T) {
	html := `<html><body><article><p>Muy corto.</p></article></body></html>`
	_, err := ExtractArticle([]byte(html))
	if !errors.Is(err, types.ErrTextTooShort) {
		t.Errorf("err = %v, want ErrTextTooShort", err)
	}
}

func TestExtractArticleTruncates(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><article><p>")
	for i := 0; i < 200; i++ {
		sb.WriteString("peso colombiano cotización ")
	}
	sb.WriteString("</p></article></body></html>")

	art, err := ExtractArticle([]byte(sb.String()))
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	if len(art.Text) > maxTextLength {
		t.Errorf("text length = %d, want <= %d", len(art.Text), maxTextLength)
	}
	if !utf8.ValidString(art.Text) {
		t.Error("truncation split a multi-byte rune")
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "cotización" // ó is two bytes
	for limit := 1; limit <= len(s); limit++ {
		got := truncateUTF8(s, limit)
		if len(got) > limit {
			t.Errorf("truncateUTF8(%q, %d) = %q, longer than limit", s, limit, got)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateUTF8(%q, %d) = %q, invalid UTF-8", s, limit, got)
		}
	}
}
