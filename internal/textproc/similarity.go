package textproc

import (
	"math"
	"strings"
)

// TermVector is the bag-of-words count vector of a text
type TermVector struct {
	counts map[string]int
	norm2  int64
}

// NewTermVector cleans and lower-cases text, splits it on whitespace and counts the tokens
func NewTermVector(text string) TermVector {
	v := TermVector{counts: make(map[string]int)}
	for _, tok := range strings.Fields(lower(Clean(text))) {
		v.counts[tok]++
	}
	for _, c := range v.counts {
		v.norm2 += int64(c) * int64(c)
	}
	return v
}

// Len is the number of distinct terms
func (v TermVector) Len() int {
	return len(v.counts)
}

// Cosine is the cosine of the angle between a and b, or 0 when either is empty
func Cosine(a, b TermVector) float64 {
	if a.norm2 == 0 || b.norm2 == 0 {
		return 0
	}
	small, large := a, b
	if len(small.counts) > len(large.counts) {
		small, large = large, small
	}
	var dot int64
	for term, c := range small.counts {
		dot += int64(c) * int64(large.counts[term])
	}
	sim := float64(dot) / math.Sqrt(float64(a.norm2)*float64(b.norm2))
	return math.Max(0, math.Min(1, sim))
}

// Similarity is the raw-count cosine similarity of two texts, in [0,1]
func Similarity(a, b string) float64 {
	return Cosine(NewTermVector(a), NewTermVector(b))
}
