package services

import (
	"github.com/localnerve/juriiq/internal/database"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxNotesLength = 2000

// AddBookmark saves a completed document for the user and bumps its bookmark count
func AddBookmark(db *gorm.DB, userID, documentID uint64, notes string) (*models.Bookmark, error) {
	if len([]rune(notes)) > maxNotesLength {
		return nil, types.NewValidationError("notes", "must be at most 2000 characters")
	}

	var bookmark models.Bookmark
	err := db.Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status", "content").First(&doc, documentID).Error; err != nil {
			if database.IsNotFound(err) {
				return types.NewNotFoundError("document", documentID)
			}
			return types.Persistence("lock document", err)
		}
		if !doc.Searchable() {
			return types.NewNotFoundError("document", documentID)
		}

		var count int64
		if err := tx.Model(&models.Bookmark{}).
			Where("user_id = ? AND document_id = ?", userID, documentID).
			Count(&count).Error; err != nil {
			return types.Persistence("check bookmark", err)
		}
		if count > 0 {
			return types.NewConflictError("document is already bookmarked")
		}

		bookmark = models.Bookmark{UserID: userID, DocumentID: documentID, Notes: notes}
		if err := tx.Create(&bookmark).Error; err != nil {
			if database.IsDuplicate(err) {
				return types.NewConflictError("document is already bookmarked")
			}
			return types.Persistence("create bookmark", err)
		}

		return types.Persistence("increment bookmark count", tx.Model(&models.Document{}).
			Where("id = ?", documentID).
			UpdateColumn("bookmark_count", gorm.Expr("bookmark_count + ?", 1)).Error)
	})
	if err != nil {
		return nil, err
	}
	return &bookmark, nil
}

// RemoveBookmark deletes the user's bookmark of a document and lowers its bookmark count
func RemoveBookmark(db *gorm.DB, userID, documentID uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND document_id = ?", userID, documentID).Delete(&models.Bookmark{})
		if res.Error != nil {
			return types.Persistence("delete bookmark", res.Error)
		}
		if res.RowsAffected == 0 {
			return types.NewNotFoundError("bookmark", documentID)
		}
		return types.Persistence("decrement bookmark count", tx.Model(&models.Document{}).
			Where("id = ? AND bookmark_count > 0", documentID).
			UpdateColumn("bookmark_count", gorm.Expr("bookmark_count - ?", 1)).Error)
	})
}

// UpdateBookmarkNotes replaces the notes of a bookmark
func UpdateBookmarkNotes(db *gorm.DB, userID, documentID uint64, notes string) (*models.Bookmark, error) {
	if len([]rune(notes)) > maxNotesLength {
		return nil, types.NewValidationError("notes", "must be at most 2000 characters")
	}
	var bookmark models.Bookmark
	err := quiet(db).Where("user_id = ? AND document_id = ?", userID, documentID).First(&bookmark).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, types.NewNotFoundError("bookmark", documentID)
		}
		return nil, types.Persistence("load bookmark", err)
	}
	if err := db.Model(&bookmark).Update("notes", notes).Error; err != nil {
		return nil, types.Persistence("update bookmark", err)
	}
	bookmark.Notes = notes
	return &bookmark, nil
}

// ListBookmarks returns the user's bookmarks, newest first, with document headers
func ListBookmarks(db *gorm.DB, userID uint64) ([]models.Bookmark, error) {
	var bookmarks []models.Bookmark
	err := quiet(db).
		Preload("Document", func(tx *gorm.DB) *gorm.DB {
			return tx.Omit("content")
		}).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&bookmarks).Error
	if err != nil {
		return nil, types.Persistence("list bookmarks", err)
	}
	return bookmarks, nil
}

// IsBookmarked reports whether the user bookmarked the document
func IsBookmarked(db *gorm.DB, userID, documentID uint64) (bool, error) {
	var count int64
	err := quiet(db).Model(&models.Bookmark{}).
		Where("user_id = ? AND document_id = ?", userID, documentID).
		Count(&count).Error
	if err != nil {
		return false, types.Persistence("check bookmark", err)
	}
	return count > 0, nil
}
