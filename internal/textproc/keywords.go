package textproc

import (
	"sort"
	"unicode/utf8"
)

const (
	// MaxKeywords caps the keyword list of a document
	MaxKeywords = 20
	// MinKeywordLength is the shortest token kept as a keyword, in characters
	MinKeywordLength = 4
)

// Keyword is an extracted term with its normalized relevance
type Keyword struct {
	Word      string  `json:"keyword"`
	Relevance float64 `json:"relevanceScore"`
	Frequency int     `json:"frequency"`
}

// ExtractKeywords ranks the frequent non-stop-word terms of text.
// Relevance is frequency over the top frequency, so the first keyword scores 1.
// Ties keep first-seen order. At most MaxKeywords are returned.
func ExtractKeywords(text string) []Keyword {
	return ExtractKeywordsLang(text, DefaultLanguage)
}

// ExtractKeywordsLang is ExtractKeywords with the stop words of lang
func ExtractKeywordsLang(text, lang string) []Keyword {
	keywords := []Keyword{}
	stop := mustStopWords(lang)

	counts := make(map[string]int)
	var order []string
	for _, w := range words(lower(text)) {
		if utf8.RuneCountInString(w) < MinKeywordLength {
			continue
		}
		if _, skip := stop[w]; skip {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	if len(order) == 0 {
		return keywords
	}

	maxFreq := 0
	for _, c := range counts {
		maxFreq = max(maxFreq, c)
	}

	for _, w := range order {
		keywords = append(keywords, Keyword{
			Word:      w,
			Frequency: counts[w],
			Relevance: float64(counts[w]) / float64(maxFreq),
		})
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].Frequency > keywords[j].Frequency
	})

	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	return keywords
}
