package textproc

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// PhraseBoost is added when the document contains the whole query
	PhraseBoost = 0.3
	// KeywordBoostWeight scales the summed relevance of matching keywords
	KeywordBoostWeight = 0.5
)

// KeywordScore is a stored keyword and its relevance
type KeywordScore struct {
	Keyword        string
	RelevanceScore float64
}

// Relevance scores content against a search query:
// the share of query terms (longer than two characters) found in the content,
// plus PhraseBoost (capped at 1) when the content holds the whole query,
// plus KeywordBoostWeight times the relevance of keywords overlapping the query.
func Relevance(query, content string, keywords []KeywordScore) float64 {
	q := strings.TrimSpace(lower(query))
	if q == "" {
		return 0
	}
	return TermScore(q, content) + KeywordBoost(q, keywords)
}

// TermScore is the first two terms of Relevance
func TermScore(query, content string) float64 {
	q := strings.TrimSpace(lower(query))

	var terms []string
	for _, w := range words(q) {
		if utf8.RuneCountInString(w) > 2 {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return 0
	}

	text := lower(content)
	docTerms := make(map[string]struct{})
	for _, w := range words(text) {
		docTerms[w] = struct{}{}
	}

	matched := 0
	for _, t := range terms {
		if _, ok := docTerms[t]; ok {
			matched++
		}
	}
	score := float64(matched) / float64(len(terms))

	if strings.Contains(text, q) {
		score = math.Min(1, score+PhraseBoost)
	}
	return score
}

// KeywordBoost sums the relevance of keywords that contain or are contained in the query
func KeywordBoost(query string, keywords []KeywordScore) float64 {
	q := strings.TrimSpace(lower(query))
	if q == "" {
		return 0
	}
	var sum float64
	for _, k := range keywords {
		kw := lower(k.Keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(q, kw) || strings.Contains(kw, q) {
			sum += k.RelevanceScore
		}
	}
	return sum * KeywordBoostWeight
}
