package services

import (
	"time"

	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/models"
)

// The functions in this file are the only writers of the lockout and
// blacklist fields of a user. They take and return values and touch no store.

// ApplyFailedLogin records a rejected password. recentAttempts is the number of
// failures inside the window, this one included. The second result reports
// whether the account is now blocked.
func ApplyFailedLogin(u models.User, recentAttempts int, now time.Time, sec config.SecurityConfig) (models.User, bool) {
	u.FailedLoginAttempts++
	u.LastFailedLoginAt = &now
	if recentAttempts >= sec.MaxFailedLoginAttempts {
		until := now.Add(sec.AccountLockout)
		u.BlockedUntil = &until
		return u, true
	}
	return u, false
}

// ApplySuccessfulLogin resets the failure counter, lifts any block and stamps the login
func ApplySuccessfulLogin(u models.User, now time.Time) models.User {
	u.FailedLoginAttempts = 0
	u.BlockedUntil = nil
	u.LastLoginAt = &now
	return u
}

// LiftExpiredBlock clears a block whose time has passed.
// The second result reports whether anything changed.
func LiftExpiredBlock(u models.User, now time.Time) (models.User, bool) {
	if u.BlockedUntil == nil || now.Before(*u.BlockedUntil) {
		return u, false
	}
	u.BlockedUntil = nil
	return u, true
}

// BlockRemaining is the time left on an active block, or zero
func BlockRemaining(u models.User, now time.Time) time.Duration {
	if u.BlockedUntil == nil || !now.Before(*u.BlockedUntil) {
		return 0
	}
	return u.BlockedUntil.Sub(now)
}

// ApplyBlacklist bars the account until an admin unblocks it
func ApplyBlacklist(u models.User, reason string, now time.Time) models.User {
	u.IsBlacklisted = true
	u.BlacklistReason = &reason
	u.BlacklistedAt = &now
	return u
}

// ApplyAdminUnblock clears the blacklist, any block and the failure counter
func ApplyAdminUnblock(u models.User) models.User {
	u.IsBlacklisted = false
	u.BlacklistReason = nil
	u.BlacklistedAt = nil
	u.BlockedUntil = nil
	u.FailedLoginAttempts = 0
	return u
}

// DeviceLimit is the number of active devices allowed for the user's tier
func DeviceLimit(u models.User, sec config.SecurityConfig) int {
	if u.SubscriptionType == models.SubscriptionPro {
		return sec.MaxDevicesPro
	}
	return sec.MaxDevicesSimple
}
