package textproc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeywordsEmpty(t *testing.T) {
	got := ExtractKeywords("")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, ExtractKeywords("   \n "))
	assert.Empty(t, ExtractKeywords("ve ile bir kadar"))
}

func TestExtractKeywordsRanking(t *testing.T) {
	text := "Mahkeme kararı. Mahkeme, davacının talebini reddetti. Karar kesinleşti; mahkeme masrafları davacıya ait."
	got := ExtractKeywords(text)
	require.NotEmpty(t, got)

	assert.Equal(t, "mahkeme", got[0].Word)
	assert.Equal(t, 3, got[0].Frequency)
	assert.Equal(t, 1.0, got[0].Relevance)

	for _, k := range got {
		assert.GreaterOrEqual(t, len([]rune(k.Word)), MinKeywordLength)
		assert.NotEqual(t, "ait", k.Word)
	}
}

func TestExtractKeywordsTiesKeepFirstSeenOrder(t *testing.T) {
	got := ExtractKeywords("zeta alfa beta zeta alfa beta")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"zeta", "alfa", "beta"}, []string{got[0].Word, got[1].Word, got[2].Word})
}

func TestExtractKeywordsBounds(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		for j := 0; j <= i%7; j++ {
			fmt.Fprintf(&b, "terim%02d ", i)
		}
	}
	got := ExtractKeywords(b.String())

	assert.Len(t, got, MaxKeywords)
	assert.Equal(t, 1.0, got[0].Relevance)
	for i, k := range got {
		assert.Greater(t, k.Relevance, 0.0)
		assert.LessOrEqual(t, k.Relevance, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, k.Relevance, got[i-1].Relevance)
		}
	}
}

func TestExtractKeywordsTurkishCasing(t *testing.T) {
	got := ExtractKeywords("İHTİYATİ tedbir ihtiyati")
	require.NotEmpty(t, got)
	assert.Equal(t, "ihtiyati", got[0].Word)
	assert.Equal(t, 2, got[0].Frequency)
}

func TestExtractKeywordsFoldsDottedAndDotlessI(t *testing.T) {
	got := ExtractKeywords("Islam islam Islam")
	require.Len(t, got, 1)
	assert.Equal(t, "islam", got[0].Word)
	assert.Equal(t, 3, got[0].Frequency)

	got = ExtractKeywords("KARARI kararı karari")
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Frequency)
}

func TestStopWords(t *testing.T) {
	tr, err := StopWords("tr")
	require.NoError(t, err)
	assert.Contains(t, tr, "için")

	_, err = StopWords("xx")
	assert.Error(t, err)
}
