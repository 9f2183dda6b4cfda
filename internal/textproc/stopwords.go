package textproc

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the corpus language
const DefaultLanguage = "tr"

//go:embed stopwords.yaml
var stopWordsYAML []byte

var (
	stopWordsOnce sync.Once
	stopWordSets  map[string]map[string]struct{}
	stopWordsErr  error
)

func loadStopWords() {
	raw := make(map[string][]string)
	if err := yaml.Unmarshal(stopWordsYAML, &raw); err != nil {
		stopWordsErr = fmt.Errorf("parse stopwords.yaml: %w", err)
		return
	}
	stopWordSets = make(map[string]map[string]struct{}, len(raw))
	for lang, words := range raw {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[lower(w)] = struct{}{}
		}
		stopWordSets[lang] = set
	}
}

// StopWords returns the stop-word set for lang
func StopWords(lang string) (map[string]struct{}, error) {
	stopWordsOnce.Do(loadStopWords)
	if stopWordsErr != nil {
		return nil, stopWordsErr
	}
	set, ok := stopWordSets[lang]
	if !ok {
		return nil, fmt.Errorf("no stop words for language %q", lang)
	}
	return set, nil
}

// mustStopWords panics when the embedded list is unusable, which is a build defect
func mustStopWords(lang string) map[string]struct{} {
	set, err := StopWords(lang)
	if err != nil {
		panic(err)
	}
	return set
}
