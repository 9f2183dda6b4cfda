package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxSummarySentences caps the number of sentences in a summary
	MaxSummarySentences = 5
	// MaxSummaryChars is the character budget of a summary
	MaxSummaryChars = 500
)

// Summarize builds an extractive summary from the leading sentences of text.
// Sentences are taken in order until five are used or the next one would
// push the total past 500 characters. The first sentence is always kept.
func Summarize(text string) string {
	cleaned := Clean(text)
	if cleaned == "" {
		return ""
	}

	var (
		parts []string
		total int
	)
	for _, sentence := range SplitSentences(cleaned) {
		if len(parts) >= MaxSummarySentences {
			break
		}
		n := utf8.RuneCountInString(sentence)
		if len(parts) > 0 && total+n > MaxSummaryChars {
			break
		}
		parts = append(parts, sentence)
		total += n
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}

// SplitSentences cuts text after '.', '!' or '?' when whitespace follows.
// The terminator stays with its sentence; empty pieces are dropped.
func SplitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminator(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
