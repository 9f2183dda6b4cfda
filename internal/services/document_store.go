// document_store.go
//
// Legal-document search and account portal
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of juriiq.
// juriiq is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// juriiq is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with juriiq.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"strings"
	"time"

	"github.com/localnerve/juriiq/internal/database"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/textproc"
	"github.com/localnerve/juriiq/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

// SearchFilters narrow the candidate set before scoring
type SearchFilters struct {
	DocumentTypes []models.DocumentType `json:"documentTypes,omitempty"`
	CourtName     string                `json:"courtName,omitempty"`
	DateFrom      *time.Time            `json:"dateFrom,omitempty"`
	DateTo        *time.Time            `json:"dateTo,omitempty"`
}

// IsZero reports whether no filter is set
func (f SearchFilters) IsZero() bool {
	return len(f.DocumentTypes) == 0 && strings.TrimSpace(f.CourtName) == "" && f.DateFrom == nil && f.DateTo == nil
}

func quiet(db *gorm.DB) *gorm.DB {
	return db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})
}

// GetDocumentByPath finds the document ingested from path
func GetDocumentByPath(db *gorm.DB, path string) (*models.Document, error) {
	var doc models.Document
	if err := quiet(db).Where("file_path = ?", path).First(&doc).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, types.NewNotFoundError("document", path)
		}
		return nil, types.Persistence("get document by path", err)
	}
	return &doc, nil
}

// GetDocument loads a document by id, with its keywords
func GetDocument(db *gorm.DB, id uint64) (*models.Document, error) {
	var doc models.Document
	err := quiet(db).
		Preload("Keywords", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("relevance_score DESC, id ASC")
		}).
		First(&doc, id).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, types.NewNotFoundError("document", id)
		}
		return nil, types.Persistence("get document", err)
	}
	return &doc, nil
}

// GetSearchableDocument loads a completed document, hiding pending and failed ones
func GetSearchableDocument(db *gorm.DB, id uint64) (*models.Document, error) {
	doc, err := GetDocument(db, id)
	if err != nil {
		return nil, err
	}
	if !doc.Searchable() {
		return nil, types.NewNotFoundError("document", id)
	}
	return doc, nil
}

// CreateDocument inserts a new document row
func CreateDocument(db *gorm.DB, doc *models.Document) error {
	if err := db.Create(doc).Error; err != nil {
		if database.IsDuplicate(err) {
			return types.NewConflictError("a document for this file already exists")
		}
		return types.Persistence("create document", err)
	}
	return nil
}

// UpdateDocument saves every column of doc
func UpdateDocument(db *gorm.DB, doc *models.Document) error {
	if err := db.Omit("Keywords").Save(doc).Error; err != nil {
		return types.Persistence("update document", err)
	}
	return nil
}

// ReplaceKeywords deletes the keyword rows of a document and inserts keywords in their place
func ReplaceKeywords(db *gorm.DB, documentID uint64, keywords []textproc.Keyword) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.DocumentKeyword{}).Error; err != nil {
			return types.Persistence("delete keywords", err)
		}
		if len(keywords) == 0 {
			return nil
		}
		rows := make([]models.DocumentKeyword, 0, len(keywords))
		for _, k := range keywords {
			rows = append(rows, models.DocumentKeyword{
				DocumentID:     documentID,
				Keyword:        k.Word,
				RelevanceScore: k.Relevance,
				Frequency:      k.Frequency,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return types.Persistence("insert keywords", err)
		}
		return nil
	})
}

// CompleteDocument stores the processed document and its keywords in one transaction.
// Either both land or neither does.
func CompleteDocument(db *gorm.DB, doc *models.Document, keywords []textproc.Keyword) error {
	return db.Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc()
		doc.Status = models.StatusCompleted
		doc.ErrorMessage = nil
		doc.ProcessedAt = &now
		if err := UpdateDocument(tx, doc); err != nil {
			return err
		}
		return ReplaceKeywords(tx, doc.ID, keywords)
	})
}

// MarkDocumentFailed records a processing failure on the document row
func MarkDocumentFailed(db *gorm.DB, id uint64, message string) error {
	err := db.Model(&models.Document{}).Where("id = ?", id).Updates(map[string]any{
		"status":        models.StatusFailed,
		"error_message": message,
	}).Error
	return types.Persistence("mark document failed", err)
}

// SearchCandidates returns the completed, non-empty documents matching filters,
// newest first, with keywords loaded
func SearchCandidates(db *gorm.DB, filters SearchFilters) ([]models.Document, error) {
	query := quiet(db).Model(&models.Document{}).
		Where("status = ? AND content <> ''", models.StatusCompleted)

	if db.Dialector.Name() == "mysql" {
		query = query.Clauses(hints.UseIndex("idx_documents_status"))
	}
	if len(filters.DocumentTypes) > 0 {
		query = query.Where("document_type IN ?", filters.DocumentTypes)
	}
	if court := strings.TrimSpace(filters.CourtName); court != "" {
		query = query.Where("LOWER(court_name) LIKE ?", "%"+strings.ToLower(court)+"%")
	}
	if filters.DateFrom != nil {
		query = query.Where("decision_date >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("decision_date <= ?", *filters.DateTo)
	}

	var docs []models.Document
	err := query.
		Preload("Keywords").
		Order("created_at DESC").
		Order("id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, types.Persistence("search candidates", err)
	}
	return docs, nil
}

// IncrementViewCount adds one view to a document
func IncrementViewCount(db *gorm.DB, id uint64) error {
	res := db.Model(&models.Document{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return types.Persistence("increment view count", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewNotFoundError("document", id)
	}
	return nil
}

// ListFailedDocuments returns documents whose last processing failed, newest first
func ListFailedDocuments(db *gorm.DB, limit int) ([]models.Document, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	docs := []models.Document{}
	err := quiet(db).Where("status = ?", models.StatusFailed).
		Order("updated_at DESC").Limit(limit).Find(&docs).Error
	return docs, types.Persistence("list failed documents", err)
}

// DeleteDocument removes a document with its keywords and bookmarks
func DeleteDocument(db *gorm.DB, id uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&doc, id).Error; err != nil {
			if database.IsNotFound(err) {
				return types.NewNotFoundError("document", id)
			}
			return types.Persistence("lock document", err)
		}
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentKeyword{}).Error; err != nil {
			return types.Persistence("delete keywords", err)
		}
		if err := tx.Where("document_id = ?", id).Delete(&models.Bookmark{}).Error; err != nil {
			return types.Persistence("delete bookmarks", err)
		}
		if err := tx.Delete(&doc).Error; err != nil {
			return types.Persistence("delete document", err)
		}
		return nil
	})
}

// CountDocumentsByStatus returns the number of documents in each status
func CountDocumentsByStatus(db *gorm.DB) (map[models.DocumentStatus]int64, error) {
	var rows []struct {
		Status models.DocumentStatus
		Count  int64
	}
	err := quiet(db).Model(&models.Document{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, types.Persistence("count documents", err)
	}
	out := make(map[models.DocumentStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// keywordScores adapts stored keywords for scoring
func keywordScores(keywords []models.DocumentKeyword) []textproc.KeywordScore {
	out := make([]textproc.KeywordScore, len(keywords))
	for i, k := range keywords {
		out[i] = textproc.KeywordScore{Keyword: k.Keyword, RelevanceScore: k.RelevanceScore}
	}
	return out
}
