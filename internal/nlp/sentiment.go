// Package nlp scores Spanish news text: sentiment classification plus an
// economic-keyword tally. The analyzer is deterministic and lexicon-based,
// so workers carry no model weights and need no external service.
package nlp

import (
	"math"
	"sort"
	"strings"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// Classification labels, in the dashboard's language.
const (
	Positive = "positivo"
	Neutral  = "neutral"
	Negative = "negativo"
)

var positiveWords = []string{
	"crecimiento", "aumento", "mejora", "ganancia", "ganancias", "sube",
	"subida", "alza", "récord", "recuperación", "recuperacion", "beneficio",
	"beneficios", "éxito", "exito", "fortalece", "impulso", "optimismo",
	"positivo", "avance", "expansión", "expansion", "superávit", "superavit",
	"rentabilidad", "valorización", "valorizacion", "repunte", "bonanza",
}

var negativeWords = []string{
	"caída", "caida", "pérdida", "pérdidas", "perdida", "perdidas", "baja",
	"desplome", "crisis", "recesión", "recesion", "déficit", "deficit",
	"desempleo", "quiebra", "devaluación", "devaluacion", "inflación",
	"inflacion", "riesgo", "incertidumbre", "negativo", "contracción",
	"contraccion", "deuda", "caen", "cae", "derrumbe", "colapso",
}

// Analyzer scores text sentiment and detects economic keywords.
type Analyzer struct {
	keywords []string
}

// NewAnalyzer creates an analyzer over the given economic keyword list.
func NewAnalyzer(keywords []string) *Analyzer {
	return &Analyzer{keywords: keywords}
}

// Analyze classifies the text's sentiment. Only the first 512 characters
// weigh in; headlines and ledes carry the signal in news copy.
func (a *Analyzer) Analyze(text string) types.Sentiment {
	if len(text) > 512 {
		text = text[:512]
	}
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !isSpanishLetter(r)
	})

	var pos, neg int
	for _, w := range words {
		if containsWord(positiveWords, w) {
			pos++
		}
		if containsWord(negativeWords, w) {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return types.Sentiment{Classification: Neutral}
	}

	polarity := float64(pos-neg) / float64(total)
	subjectivity := math.Min(1, float64(total)/float64(max(len(words), 1))*10)
	confidence := math.Abs(polarity)

	classification := Neutral
	switch {
	case polarity > 0.15:
		classification = Positive
	case polarity < -0.15:
		classification = Negative
	}

	return types.Sentiment{
		Polarity:       round3(polarity),
		Subjectivity:   round3(subjectivity),
		Classification: classification,
		Confidence:     round3(confidence),
	}
}

// DetectEconomicKeywords tallies keyword occurrences and derives a
// relevance score in [0,100].
func (a *Analyzer) DetectEconomicKeywords(text string) types.KeywordAnalysis {
	lower := strings.ToLower(text)

	var hits []types.KeywordHit
	occurrences := 0
	for _, kw := range a.keywords {
		count := strings.Count(lower, kw)
		if count > 0 {
			hits = append(hits, types.KeywordHit{Keyword: kw, Count: count})
			occurrences += count
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Count > hits[j].Count })

	total := len(hits)
	score := total*10 + occurrences*2
	if score > 100 {
		score = 100
	}
	if len(hits) > 10 {
		hits = hits[:10]
	}

	return types.KeywordAnalysis{
		Keywords:       hits,
		TotalKeywords:  total,
		RelevanceScore: score,
	}
}

func containsWord(list []string, w string) bool {
	for _, item := range list {
		if item == w {
			return true
		}
	}
	return false
}

func isSpanishLetter(r rune) bool {
	if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
		return true
	}
	switch r {
	case 'á', 'é', 'í', 'ó', 'ú', 'ñ', 'ü', 'Á', 'É', 'Í', 'Ó', 'Ú', 'Ñ', 'Ü':
		return true
	}
	return false
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
