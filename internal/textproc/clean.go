package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const allowedPunctuation = ".,;:!?-"

// Clean keeps letters, digits, marks, underscores, whitespace and basic
// punctuation, then collapses whitespace runs to single spaces.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	stripped := strings.Map(func(r rune) rune {
		if allowedRune(r) {
			return r
		}
		return -1
	}, text)
	return strings.Join(strings.Fields(stripped), " ")
}

func allowedRune(r rune) bool {
	return isWordRune(r) || unicode.IsSpace(r) || strings.ContainsRune(allowedPunctuation, r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

// lower folds case with Turkish rules, then maps dotless ı to i so that
// I, İ, ı and i all fold to the same letter.
// A Caser is stateful, so one is made per call.
func lower(s string) string {
	return strings.ReplaceAll(cases.Lower(language.Turkish).String(s), "ı", "i")
}

// Lower is the case folding used by every scorer in this package
func Lower(s string) string {
	return lower(s)
}

// words splits s on runs of non-word runes
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !isWordRune(r)
	})
}
