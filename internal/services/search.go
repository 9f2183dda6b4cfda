package services

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/localnerve/juriiq/internal/logging"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/textproc"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	summaryFallbackLength = 200
	resultKeywordCount    = 5
)

// SearchInput is one search request
type SearchInput struct {
	Query    string
	Page     int
	PageSize int
	Filters  SearchFilters
	// UserID is recorded in the search history when set
	UserID uint64
}

// SearchResultItem is one ranked document
type SearchResultItem struct {
	ID            uint64              `json:"id"`
	Title         string              `json:"title"`
	Summary       string              `json:"summary"`
	DocumentType  models.DocumentType `json:"documentType"`
	CourtName     *string             `json:"courtName,omitempty"`
	CaseNumber    *string             `json:"caseNumber,omitempty"`
	LawNumber     *string             `json:"lawNumber,omitempty"`
	DecisionDate  *time.Time          `json:"decisionDate,omitempty"`
	FileName      string              `json:"fileName"`
	Score         float64             `json:"score"`
	ViewCount     int64               `json:"viewCount"`
	BookmarkCount int64               `json:"bookmarkCount"`
	Keywords      []string            `json:"keywords"`
}

// SearchResult is one page of ranked documents
type SearchResult struct {
	Documents  []SearchResultItem `json:"documents"`
	TotalCount int                `json:"totalCount"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

// ScoredDocument is a candidate with its relevance score
type ScoredDocument struct {
	Document *models.Document
	Score    float64
}

// SearchDocuments ranks the completed documents matching the filters against the query.
// Documents scoring zero or less are dropped; the rest are sorted by score, ties keeping
// newest first, and the page window is cut after the full sort. An empty query lists
// every match newest first. When in.UserID is set the search is appended to the user's
// history; a history failure is logged and never fails the search.
func SearchDocuments(db *gorm.DB, log *zap.Logger, in SearchInput) (*SearchResult, error) {
	log = logging.OrNop(log)
	page, pageSize := normalizePage(in.Page, in.PageSize)
	query := strings.TrimSpace(in.Query)

	candidates, err := SearchCandidates(db, in.Filters)
	if err != nil {
		return nil, err
	}

	ranked := RankDocuments(query, candidates)

	result := &SearchResult{
		Documents:  []SearchResultItem{},
		TotalCount: len(ranked),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(len(ranked)) / float64(pageSize))),
	}

	start := (page - 1) * pageSize
	if start < len(ranked) {
		end := min(start+pageSize, len(ranked))
		for _, sd := range ranked[start:end] {
			result.Documents = append(result.Documents, toResultItem(sd))
		}
	}

	if in.UserID != 0 {
		if err := RecordSearch(db, in.UserID, query, int64(result.TotalCount), in.Filters); err != nil {
			log.Warn("failed to record search history", zap.Uint64("userId", in.UserID), zap.Error(err))
		}
	}

	return result, nil
}

// RankDocuments scores candidates against query, drops non-positive scores and
// sorts descending. The sort is stable so equal scores keep candidate order.
func RankDocuments(query string, candidates []models.Document) []ScoredDocument {
	ranked := make([]ScoredDocument, 0, len(candidates))
	for i := range candidates {
		doc := &candidates[i]
		if !doc.Searchable() {
			continue
		}
		score := 1.0
		if query != "" {
			score = textproc.Relevance(query, doc.Content, keywordScores(doc.Keywords))
		}
		if score <= 0 {
			continue
		}
		ranked = append(ranked, ScoredDocument{Document: doc, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func toResultItem(sd ScoredDocument) SearchResultItem {
	doc := sd.Document
	keywords := make([]string, 0, resultKeywordCount)
	for _, k := range topKeywords(doc.Keywords, resultKeywordCount) {
		keywords = append(keywords, k.Keyword)
	}
	return SearchResultItem{
		ID:            doc.ID,
		Title:         doc.Title,
		Summary:       summaryOrExcerpt(doc),
		DocumentType:  doc.DocumentType,
		CourtName:     doc.CourtName,
		CaseNumber:    doc.CaseNumber,
		LawNumber:     doc.LawNumber,
		DecisionDate:  doc.DecisionDate,
		FileName:      doc.FileName,
		Score:         math.Round(sd.Score*1000) / 1000,
		ViewCount:     doc.ViewCount,
		BookmarkCount: doc.BookmarkCount,
		Keywords:      keywords,
	}
}

// summaryOrExcerpt falls back to the first 200 characters of content
func summaryOrExcerpt(doc *models.Document) string {
	if doc.Summary != nil && strings.TrimSpace(*doc.Summary) != "" {
		return *doc.Summary
	}
	if utf8.RuneCountInString(doc.Content) <= summaryFallbackLength {
		return doc.Content
	}
	return string([]rune(doc.Content)[:summaryFallbackLength]) + "..."
}

func topKeywords(keywords []models.DocumentKeyword, n int) []models.DocumentKeyword {
	sorted := make([]models.DocumentKeyword, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
