package ingest

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/textproc"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	casePartyPattern  = regexp.MustCompile(`CASE OF (.+?)(?: V\.?)? TURKEY`)
	caseNumberPattern = regexp.MustCompile(`(\d+)[-/](\d{4})`)
	yearPattern       = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})(?:[^0-9]|$)`)
	lawNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`KANUN[_ -]?NO[_ -]?(\d+)`),
		regexp.MustCompile(`(\d{3,5}) SAYILI`),
	}
)

// FileMetadata is what a file name tells about a document
type FileMetadata struct {
	CourtName    *string
	CaseNumber   *string
	LawNumber    *string
	DecisionDate *time.Time
}

// Stem is the file name without directory and extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFilename reads court, case number, law number and decision year from a file name.
// Years after now's year are ignored.
func ParseFilename(name string, now time.Time) FileMetadata {
	var meta FileMetadata
	upper := strings.ToUpper(strings.Join(strings.FieldsFunc(Stem(name), func(r rune) bool {
		return r == '_' || r == ' '
	}), " "))

	if m := casePartyPattern.FindStringSubmatch(upper); m != nil {
		court := cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(m[1])))
		if court != "" {
			meta.CourtName = &court
		}
	}

	if m := caseNumberPattern.FindStringSubmatch(upper); m != nil {
		number := m[1] + "-" + m[2]
		meta.CaseNumber = &number
		meta.DecisionDate = yearStart(m[2], now)
	} else if m := yearPattern.FindStringSubmatch(upper); m != nil {
		meta.DecisionDate = yearStart(m[1], now)
	}

	for _, p := range lawNumberPatterns {
		if m := p.FindStringSubmatch(upper); m != nil {
			law := m[1]
			meta.LawNumber = &law
			break
		}
	}
	return meta
}

func yearStart(s string, now time.Time) *time.Time {
	year, err := strconv.Atoi(s)
	if err != nil || year <= 1900 || year > now.Year() {
		return nil
	}
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

// DetectDocumentType classifies a document from its file name and content
func DetectDocumentType(fileName, content string) models.DocumentType {
	name := textproc.Lower(fileName)
	text := textproc.Lower(content)

	switch {
	case strings.Contains(name, "banka") || strings.Contains(text, textproc.Lower("bankacılık")):
		return models.TypeBankingLaw
	case strings.Contains(name, "mevzuat") || strings.Contains(name, "kanun") ||
		(strings.Contains(text, "madde") && strings.Contains(text, "yasa")):
		return models.TypeLegislation
	default:
		return models.TypeDecision
	}
}

const (
	minTitleLength = 10
	maxTitleLength = 200
)

// DeriveTitle uses the first non-empty line of text when it is a plausible
// heading, otherwise the file name stem
func DeriveTitle(text, fileName string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n := utf8.RuneCountInString(line); n > minTitleLength && n < maxTitleLength {
			return line
		}
		break
	}
	return Stem(fileName)
}
