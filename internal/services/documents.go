package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/localnerve/juriiq/internal/logging"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/textproc"
	"github.com/localnerve/juriiq/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultRelatedLimit is the number of related documents on a detail page
const DefaultRelatedLimit = 5

// RelatedDocument is a document similar to another one
type RelatedDocument struct {
	ID           uint64              `json:"id"`
	Title        string              `json:"title"`
	DocumentType models.DocumentType `json:"documentType"`
	CourtName    *string             `json:"courtName,omitempty"`
	DecisionDate *time.Time          `json:"decisionDate,omitempty"`
	// Similarity is the cosine similarity as a whole percentage
	Similarity int `json:"similarity"`
}

// DocumentDetail is a document as shown on its detail page
type DocumentDetail struct {
	models.Document
	Content      string            `json:"content"`
	IsBookmarked bool              `json:"isBookmarked"`
	Related      []RelatedDocument `json:"related"`
}

// DocumentStatistics are the counters of one document
type DocumentStatistics struct {
	ID            uint64     `json:"id"`
	ViewCount     int64      `json:"viewCount"`
	BookmarkCount int64      `json:"bookmarkCount"`
	KeywordCount  int        `json:"keywordCount"`
	ContentLength int        `json:"contentLength"`
	WordCount     int        `json:"wordCount"`
	PageCount     int        `json:"pageCount"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

type vectorKey struct {
	id      uint64
	updated int64
}

// RelatedFinder scores documents against each other.
// Term vectors are cached by document id and last update, so an edited
// document is re-tokenized on its next lookup.
type RelatedFinder struct {
	cache *lru.Cache[vectorKey, textproc.TermVector]
}

// NewRelatedFinder returns a finder caching up to size term vectors
func NewRelatedFinder(size int) (*RelatedFinder, error) {
	if size < 1 {
		size = 1
	}
	cache, err := lru.New[vectorKey, textproc.TermVector](size)
	if err != nil {
		return nil, fmt.Errorf("create term vector cache: %w", err)
	}
	return &RelatedFinder{cache: cache}, nil
}

func (f *RelatedFinder) vector(doc *models.Document) textproc.TermVector {
	key := vectorKey{id: doc.ID, updated: doc.UpdatedAt.UnixNano()}
	if v, ok := f.cache.Get(key); ok {
		return v
	}
	v := textproc.NewTermVector(doc.Content)
	f.cache.Add(key, v)
	return v
}

// Related returns up to limit completed documents most similar to doc.
// Documents with zero similarity are left out.
func (f *RelatedFinder) Related(db *gorm.DB, doc *models.Document, limit int) ([]RelatedDocument, error) {
	if limit < 1 {
		limit = DefaultRelatedLimit
	}
	var others []models.Document
	err := quiet(db).
		Where("status = ? AND content <> '' AND id <> ?", models.StatusCompleted, doc.ID).
		Order("created_at DESC").Order("id DESC").
		Find(&others).Error
	if err != nil {
		return nil, types.Persistence("load related candidates", err)
	}

	self := f.vector(doc)
	type scored struct {
		doc *models.Document
		sim float64
	}
	var ranked []scored
	for i := range others {
		sim := textproc.Cosine(self, f.vector(&others[i]))
		if sim > 0 {
			ranked = append(ranked, scored{doc: &others[i], sim: sim})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].sim > ranked[j].sim
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	related := make([]RelatedDocument, 0, len(ranked))
	for _, r := range ranked {
		related = append(related, RelatedDocument{
			ID:           r.doc.ID,
			Title:        r.doc.Title,
			DocumentType: r.doc.DocumentType,
			CourtName:    r.doc.CourtName,
			DecisionDate: r.doc.DecisionDate,
			Similarity:   int(math.Round(r.sim * 100)),
		})
	}
	return related, nil
}

// GetDocumentDetail loads a completed document for display and counts the view.
// The view count and related lookup are best-effort.
func GetDocumentDetail(db *gorm.DB, log *zap.Logger, finder *RelatedFinder, id, userID uint64) (*DocumentDetail, error) {
	log = logging.OrNop(log)
	doc, err := GetSearchableDocument(db, id)
	if err != nil {
		return nil, err
	}

	if err := IncrementViewCount(db, id); err != nil {
		log.Warn("failed to increment view count", zap.Uint64("documentId", id), zap.Error(err))
	} else {
		doc.ViewCount++
	}

	detail := &DocumentDetail{Document: *doc, Content: doc.Content, Related: []RelatedDocument{}}

	if userID != 0 {
		bookmarked, err := IsBookmarked(db, userID, id)
		if err != nil {
			return nil, err
		}
		detail.IsBookmarked = bookmarked
	}

	if finder != nil {
		related, err := finder.Related(db, doc, DefaultRelatedLimit)
		if err != nil {
			log.Warn("failed to load related documents", zap.Uint64("documentId", id), zap.Error(err))
		} else {
			detail.Related = related
		}
	}

	return detail, nil
}

// GetDocumentStatistics reports the counters of a document
func GetDocumentStatistics(db *gorm.DB, id uint64) (*DocumentStatistics, error) {
	doc, err := GetDocument(db, id)
	if err != nil {
		return nil, err
	}
	return &DocumentStatistics{
		ID:            doc.ID,
		ViewCount:     doc.ViewCount,
		BookmarkCount: doc.BookmarkCount,
		KeywordCount:  len(doc.Keywords),
		ContentLength: utf8.RuneCountInString(doc.Content),
		WordCount:     len(strings.Fields(doc.Content)),
		PageCount:     doc.PageCount,
		ProcessedAt:   doc.ProcessedAt,
	}, nil
}

// RegenerateSummary rebuilds the summary of a completed document from its stored content
func RegenerateSummary(db *gorm.DB, id uint64) (string, error) {
	doc, err := GetSearchableDocument(db, id)
	if err != nil {
		return "", err
	}
	summary := textproc.Summarize(doc.Content)
	err = db.Model(&models.Document{}).Where("id = ?", id).Update("summary", summary).Error
	if err != nil {
		return "", types.Persistence("update summary", err)
	}
	return summary, nil
}
