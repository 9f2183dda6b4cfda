package services

import (
	"strings"
	"time"

	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/types"
	"gorm.io/gorm"
)

// UserListInput pages through accounts, optionally matching email or name
type UserListInput struct {
	Search          string
	BlacklistedOnly bool
	Page            int
	PageSize        int
}

// UserList is one page of accounts
type UserList struct {
	Users      []models.User `json:"users"`
	TotalCount int64         `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// AdminStatistics summarizes the portal for the admin dashboard
type AdminStatistics struct {
	Users            int64                           `json:"users"`
	ProUsers         int64                           `json:"proUsers"`
	BlacklistedUsers int64                           `json:"blacklistedUsers"`
	BlockedUsers     int64                           `json:"blockedUsers"`
	ActiveDevices    int64                           `json:"activeDevices"`
	Documents        map[models.DocumentStatus]int64 `json:"documents"`
	Bookmarks        int64                           `json:"bookmarks"`
	Searches         int64                           `json:"searches"`
	LastIngestion    *models.IngestionRun            `json:"lastIngestion,omitempty"`
}

// ListUsers returns a page of accounts, newest first
func ListUsers(db *gorm.DB, in UserListInput) (*UserList, error) {
	page, pageSize := normalizePage(in.Page, in.PageSize)

	filter := func(tx *gorm.DB) *gorm.DB {
		if s := strings.ToLower(strings.TrimSpace(in.Search)); s != "" {
			like := "%" + s + "%"
			tx = tx.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
		}
		if in.BlacklistedOnly {
			tx = tx.Where("is_blacklisted = ?", true)
		}
		return tx
	}

	var total int64
	if err := quiet(db).Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, types.Persistence("count users", err)
	}

	users := []models.User{}
	if err := quiet(db).Scopes(filter).Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; err != nil {
		return nil, types.Persistence("list users", err)
	}

	return &UserList{
		Users:      users,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// BlacklistUser bars an account from signing in
func BlacklistUser(db *gorm.DB, id uint64, reason string, now time.Time) (*models.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "blocked by administrator"
	}
	return updateUserLocked(db, id, func(u models.User) models.User {
		return ApplyBlacklist(u, truncateRunes(reason, 500), now)
	})
}

// UnblockUser lifts the blacklist and any temporary block, and forgets past failures
func UnblockUser(db *gorm.DB, id uint64) (*models.User, error) {
	var user *models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := lockUserByID(tx, id)
		if err != nil {
			return err
		}
		next := ApplyAdminUnblock(*locked)
		if err := UpdateUser(tx, &next); err != nil {
			return err
		}
		user = &next
		return ClearFailedAttempts(tx, id)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetSubscription moves an account to another tier. Devices already bound stay
// active; the new limit applies to the next new device.
func SetSubscription(db *gorm.DB, id uint64, tier models.SubscriptionType) (*models.User, error) {
	parsed, ok := models.ParseSubscriptionType(string(tier))
	if !ok {
		return nil, types.NewValidationError("subscriptionType", "must be Simple or Pro")
	}
	return updateUserLocked(db, id, func(u models.User) models.User {
		u.SubscriptionType = parsed
		return u
	})
}

func updateUserLocked(db *gorm.DB, id uint64, apply func(models.User) models.User) (*models.User, error) {
	var user *models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := lockUserByID(tx, id)
		if err != nil {
			return err
		}
		next := apply(*locked)
		if err := UpdateUser(tx, &next); err != nil {
			return err
		}
		user = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetAdminStatistics gathers the dashboard counters
func GetAdminStatistics(db *gorm.DB, now time.Time) (*AdminStatistics, error) {
	q := quiet(db)
	stats := &AdminStatistics{}

	counts := []struct {
		dest  *int64
		model any
		where string
		args  []any
	}{
		{&stats.Users, &models.User{}, "", nil},
		{&stats.ProUsers, &models.User{}, "subscription_type = ?", []any{models.SubscriptionPro}},
		{&stats.BlacklistedUsers, &models.User{}, "is_blacklisted = ?", []any{true}},
		{&stats.BlockedUsers, &models.User{}, "blocked_until > ?", []any{now}},
		{&stats.ActiveDevices, &models.Device{}, "is_active = ?", []any{true}},
		{&stats.Bookmarks, &models.Bookmark{}, "", nil},
		{&stats.Searches, &models.SearchHistory{}, "", nil},
	}
	for _, c := range counts {
		tx := q.Model(c.model)
		if c.where != "" {
			tx = tx.Where(c.where, c.args...)
		}
		if err := tx.Count(c.dest).Error; err != nil {
			return nil, types.Persistence("admin statistics", err)
		}
	}

	docs, err := CountDocumentsByStatus(db)
	if err != nil {
		return nil, err
	}
	stats.Documents = docs

	runs, err := RecentIngestionRuns(db, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		stats.LastIngestion = &runs[0]
	}
	return stats, nil
}
