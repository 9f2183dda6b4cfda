package services

import (
	"strings"
	"time"

	"github.com/localnerve/juriiq/internal/database"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NormalizeEmail is the stored form of an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserByEmail finds a user by email, ignoring case. Emails are stored
// normalized, so the lookup uses the unique index.
func GetUserByEmail(db *gorm.DB, email string) (*models.User, error) {
	return findUser(quiet(db), "email = ?", NormalizeEmail(email))
}

// GetUserByID loads a user by id
func GetUserByID(db *gorm.DB, id uint64) (*models.User, error) {
	return findUser(quiet(db), "id = ?", id)
}

// lockUserByEmail loads the user row for update. It must run inside a transaction.
func lockUserByEmail(tx *gorm.DB, email string) (*models.User, error) {
	return findUser(tx.Clauses(clause.Locking{Strength: "UPDATE"}), "email = ?", NormalizeEmail(email))
}

func lockUserByID(tx *gorm.DB, id uint64) (*models.User, error) {
	return findUser(tx.Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func findUser(db *gorm.DB, query string, arg any) (*models.User, error) {
	var user models.User
	if err := db.Where(query, arg).First(&user).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, types.NewNotFoundError("user", arg)
		}
		return nil, types.Persistence("get user", err)
	}
	return &user, nil
}

// CreateUser inserts a new account. A taken email is a conflict.
func CreateUser(db *gorm.DB, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := db.Create(user).Error; err != nil {
		if database.IsDuplicate(err) {
			return types.NewConflictError("user with this email already exists")
		}
		return types.Persistence("create user", err)
	}
	return nil
}

// UpdateUser writes every column of user
func UpdateUser(db *gorm.DB, user *models.User) error {
	return types.Persistence("update user", db.Save(user).Error)
}

// GetActiveDeviceCount counts the user's active devices
func GetActiveDeviceCount(db *gorm.DB, userID uint64) (int64, error) {
	var count int64
	err := db.Model(&models.Device{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, types.Persistence("count active devices", err)
}

// GetDevice finds a device the user has signed in from before
func GetDevice(db *gorm.DB, userID uint64, deviceID string) (*models.Device, error) {
	var device models.Device
	if err := db.Where("user_id = ? AND device_id = ?", userID, deviceID).First(&device).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, types.NewNotFoundError("device", deviceID)
		}
		return nil, types.Persistence("get device", err)
	}
	return &device, nil
}

// UpsertDevice inserts a new device or saves an existing one
func UpsertDevice(db *gorm.DB, device *models.Device) error {
	if device.ID == 0 {
		if err := db.Create(device).Error; err != nil {
			if database.IsDuplicate(err) {
				return types.NewConflictError("device is already registered")
			}
			return types.Persistence("create device", err)
		}
		return nil
	}
	return types.Persistence("update device", db.Save(device).Error)
}

// ListDevices returns the user's devices, most recently used first
func ListDevices(db *gorm.DB, userID uint64) ([]models.Device, error) {
	devices := []models.Device{}
	err := quiet(db).
		Where("user_id = ?", userID).
		Order("is_active DESC, last_login_at DESC, id DESC").
		Find(&devices).Error
	return devices, types.Persistence("list devices", err)
}

// DeactivateDevice frees a device slot. Tokens bound to the device stop validating.
func DeactivateDevice(db *gorm.DB, userID uint64, deviceID string) error {
	res := db.Model(&models.Device{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Update("is_active", false)
	if res.Error != nil {
		return types.Persistence("deactivate device", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows when the device is already inactive
		if _, err := GetDevice(db, userID, deviceID); err != nil {
			return err
		}
	}
	return nil
}

// AppendFailedLoginAttempt records a rejected password for the user
func AppendFailedLoginAttempt(db *gorm.DB, attempt *models.FailedLoginAttempt) error {
	return types.Persistence("record failed login", db.Create(attempt).Error)
}

// CountRecentFailedAttempts counts the user's failures at or after since
func CountRecentFailedAttempts(db *gorm.DB, userID uint64, since time.Time) (int64, error) {
	var count int64
	err := db.Model(&models.FailedLoginAttempt{}).
		Where("user_id = ? AND attempt_at >= ?", userID, since).
		Count(&count).Error
	return count, types.Persistence("count failed logins", err)
}

// ClearFailedAttempts drops the user's failure history
func ClearFailedAttempts(db *gorm.DB, userID uint64) error {
	return types.Persistence("clear failed logins",
		db.Where("user_id = ?", userID).Delete(&models.FailedLoginAttempt{}).Error)
}
