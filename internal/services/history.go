package services

import (
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/types"
	"gorm.io/gorm"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// RecordSearch appends a search to the user's history
func RecordSearch(db *gorm.DB, userID uint64, query string, resultCount int64, filters SearchFilters) error {
	entry := models.SearchHistory{
		UserID:      userID,
		Query:       truncateRunes(query, 500),
		ResultCount: resultCount,
		SearchedAt:  db.NowFunc(),
	}
	if !filters.IsZero() {
		j, err := models.NewJSON(filters)
		if err != nil {
			return err
		}
		entry.Filters = j
	}
	return types.Persistence("record search", db.Create(&entry).Error)
}

// RecentSearches returns the user's latest searches, newest first
func RecentSearches(db *gorm.DB, userID uint64, limit int) ([]models.SearchHistory, error) {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	var entries []models.SearchHistory
	err := quiet(db).Where("user_id = ?", userID).
		Order("searched_at DESC").Order("id DESC").
		Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, types.Persistence("recent searches", err)
	}
	return entries, nil
}

// ClearSearchHistory deletes every history entry of the user
func ClearSearchHistory(db *gorm.DB, userID uint64) (int64, error) {
	res := db.Where("user_id = ?", userID).Delete(&models.SearchHistory{})
	return res.RowsAffected, types.Persistence("clear search history", res.Error)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
