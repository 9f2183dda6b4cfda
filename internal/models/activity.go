package models

import (
	"time"
)

// Bookmark is a document saved by a user
type Bookmark struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint64    `gorm:"not null;uniqueIndex:idx_user_bookmark" json:"-"`
	DocumentID uint64    `gorm:"not null;uniqueIndex:idx_user_bookmark;index" json:"documentId"`
	Notes      string    `gorm:"size:2000" json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`

	Document *Document `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"document,omitempty"`
}

// SearchHistory is one search a user ran
type SearchHistory struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64    `gorm:"not null;index:idx_history_user_time" json:"-"`
	Query       string    `gorm:"size:500;not null" json:"query"`
	ResultCount int64     `gorm:"not null;default:0" json:"resultCount"`
	Filters     JSON      `json:"filters"`
	SearchedAt  time.Time `gorm:"not null;index:idx_history_user_time" json:"searchedAt"`
}

// TableName overrides the table name for SearchHistory
func (SearchHistory) TableName() string {
	return "search_history"
}
