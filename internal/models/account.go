package models

import (
	"strings"
	"time"
)

// SubscriptionType is the user's tier. It decides the device limit.
type SubscriptionType string

const (
	SubscriptionSimple SubscriptionType = "Simple"
	SubscriptionPro    SubscriptionType = "Pro"
)

// ParseSubscriptionType matches s case-insensitively against the known tiers
func ParseSubscriptionType(s string) (SubscriptionType, bool) {
	for _, t := range []SubscriptionType{SubscriptionSimple, SubscriptionPro} {
		if equalFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// User is a portal account
type User struct {
	ID                  uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Email               string           `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash        string           `gorm:"size:255;not null" json:"-"`
	FirstName           string           `gorm:"size:100" json:"firstName"`
	LastName            string           `gorm:"size:100" json:"lastName"`
	SubscriptionType    SubscriptionType `gorm:"size:16;not null;default:Simple" json:"subscriptionType"`
	IsAdmin             bool             `gorm:"not null;default:false" json:"isAdmin"`
	IsBlacklisted       bool             `gorm:"not null;default:false" json:"isBlacklisted"`
	BlacklistReason     *string          `gorm:"size:500" json:"blacklistReason,omitempty"`
	BlacklistedAt       *time.Time       `json:"blacklistedAt,omitempty"`
	BlockedUntil        *time.Time       `json:"blockedUntil,omitempty"`
	FailedLoginAttempts int              `gorm:"not null;default:0" json:"failedLoginAttempts"`
	LastFailedLoginAt   *time.Time       `json:"lastFailedLoginAt,omitempty"`
	LastLoginAt         *time.Time       `json:"lastLoginAt,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// FullName joins the name fields
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Device is a client a user has signed in from
type Device struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID       uint64    `gorm:"not null;uniqueIndex:idx_user_device;index:idx_user_active" json:"-"`
	DeviceID     string    `gorm:"size:255;not null;uniqueIndex:idx_user_device" json:"deviceId"`
	DeviceName   string    `gorm:"size:255" json:"deviceName"`
	DeviceType   string    `gorm:"size:50" json:"deviceType"`
	FirstLoginAt time.Time `gorm:"not null" json:"firstLoginAt"`
	LastLoginAt  time.Time `gorm:"not null" json:"lastLoginAt"`
	IsActive     bool      `gorm:"not null;default:true;index:idx_user_active" json:"isActive"`
}

// FailedLoginAttempt is one rejected password for a known user
type FailedLoginAttempt struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"not null;index:idx_failed_user_time"`
	IPAddress string    `gorm:"size:64"`
	UserAgent string    `gorm:"size:500"`
	AttemptAt time.Time `gorm:"not null;index:idx_failed_user_time"`
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
