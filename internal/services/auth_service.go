package services

import (
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/logging"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// LoginInput is one sign-in attempt
type LoginInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	DeviceType string
	IPAddress  string
	UserAgent  string
}

// RegisterInput is a new account request
type RegisterInput struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	SubscriptionType models.SubscriptionType
}

// AuthResult is a signed-in session
type AuthResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *models.User   `json:"user"`
	Device    *models.Device `json:"device,omitempty"`
	NewDevice bool           `json:"newDevice,omitempty"`
}

// AccountGuard decides whether a sign-in may proceed. It owns the failed
// login window, the temporary block, the blacklist and the device limit.
type AccountGuard struct {
	Tokens   *TokenIssuer
	Security config.SecurityConfig
	Log      *zap.Logger

	// HashCost is the bcrypt cost for new passwords. Zero means bcrypt.DefaultCost.
	HashCost int
	// Now is the guard's clock. Nil means time.Now.
	Now func() time.Time
}

// NewAccountGuard returns a guard using the given token issuer and security settings
func NewAccountGuard(tokens *TokenIssuer, sec config.SecurityConfig, log *zap.Logger) *AccountGuard {
	return &AccountGuard{Tokens: tokens, Security: sec, Log: logging.OrNop(log)}
}

func (g *AccountGuard) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *AccountGuard) log() *zap.Logger {
	return logging.OrNop(g.Log)
}

func (g *AccountGuard) hashCost() int {
	if g.HashCost == 0 {
		return bcrypt.DefaultCost
	}
	return g.HashCost
}

// HashPassword returns the bcrypt hash of password at the guard's cost
func (g *AccountGuard) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.hashCost())
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

// burnCompare spends the same time as a real password check so unknown
// emails cannot be told apart from wrong passwords
func (g *AccountGuard) burnCompare(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("juriiq-unknown-account"), g.hashCost())
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Register creates a Simple or Pro account and signs it in without binding a device
func (g *AccountGuard) Register(db *gorm.DB, in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, types.NewValidationError("email", "is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, types.NewValidationError("email", "is not a valid address")
	}
	if len([]rune(in.Password)) < minPasswordLength {
		return nil, types.NewValidationError("password", "must be at least 8 characters")
	}

	tier := in.SubscriptionType
	if tier == "" {
		tier = models.SubscriptionSimple
	}
	if _, ok := models.ParseSubscriptionType(string(tier)); !ok {
		return nil, types.NewValidationError("subscriptionType", "must be Simple or Pro")
	}

	if _, err := GetUserByEmail(db, email); err == nil {
		return nil, types.NewConflictError("user with this email already exists")
	} else if !isNotFound(err) {
		return nil, err
	}

	hash, err := g.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:            email,
		PasswordHash:     hash,
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		SubscriptionType: tier,
	}
	if err := CreateUser(db, user); err != nil {
		return nil, err
	}

	g.log().Info("user registered", zap.Uint64("userId", user.ID), zap.String("tier", string(tier)))

	token, expiresAt, err := g.Tokens.Issue(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Login verifies credentials and the account's standing, binds the device and
// issues a token. The user row stays locked for the whole decision so
// concurrent attempts are counted one after another.
func (g *AccountGuard) Login(db *gorm.DB, in LoginInput) (*AuthResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, types.NewValidationError("", "email and password are required")
	}
	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		return nil, types.NewValidationError("deviceId", "is required")
	}

	now := g.now()
	sec := g.Security

	var (
		rejection error
		user      models.User
		device    *models.Device
		newDevice bool
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		found, err := lockUserByEmail(tx, in.Email)
		if err != nil {
			if isNotFound(err) {
				g.burnCompare(in.Password)
				rejection = types.ErrInvalidCredentials
				return nil
			}
			return err
		}
		user = *found

		if user.IsBlacklisted {
			reason := ""
			if user.BlacklistReason != nil {
				reason = *user.BlacklistReason
			}
			rejection = &types.BlacklistError{Reason: reason}
			return nil
		}

		if remaining := BlockRemaining(user, now); remaining > 0 {
			rejection = &types.LockoutError{Remaining: remaining}
			return nil
		}
		user, _ = LiftExpiredBlock(user, now)

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
			// failures are committed even though the login is rejected
			blocked, err := g.recordFailure(tx, &user, in, now)
			if err != nil {
				return err
			}
			rejection = types.ErrInvalidCredentials
			if blocked {
				rejection = &types.LockoutError{Remaining: sec.AccountLockout}
			}
			return nil
		}

		device, newDevice, err = g.bindDevice(tx, &user, deviceID, in, now)
		if err != nil {
			var dl *types.DeviceLimitError
			if errors.As(err, &dl) {
				rejection = dl
				return nil
			}
			return err
		}

		user = ApplySuccessfulLogin(user, now)
		if err := UpdateUser(tx, &user); err != nil {
			return err
		}
		return ClearFailedAttempts(tx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	if rejection != nil {
		g.logRejection(in, user.ID, rejection)
		return nil, rejection
	}

	token, expiresAt, err := g.Tokens.IssueForDevice(user.ID, user.Email, user.IsAdmin, device.DeviceID)
	if err != nil {
		return nil, err
	}

	g.log().Info("login succeeded",
		zap.Uint64("userId", user.ID),
		zap.String("deviceId", device.DeviceID),
		zap.Bool("newDevice", newDevice),
	)
	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      &user,
		Device:    device,
		NewDevice: newDevice,
	}, nil
}

// recordFailure stores the attempt and applies the sliding window.
// It reports whether the account is now blocked.
func (g *AccountGuard) recordFailure(tx *gorm.DB, user *models.User, in LoginInput, now time.Time) (bool, error) {
	attempt := &models.FailedLoginAttempt{
		UserID:    user.ID,
		IPAddress: truncateRunes(in.IPAddress, 64),
		UserAgent: truncateRunes(in.UserAgent, 500),
		AttemptAt: now,
	}
	if err := AppendFailedLoginAttempt(tx, attempt); err != nil {
		return false, err
	}

	recent, err := CountRecentFailedAttempts(tx, user.ID, now.Add(-g.Security.FailedLoginWindow))
	if err != nil {
		return false, err
	}

	next, blocked := ApplyFailedLogin(*user, int(recent), now, g.Security)
	if err := UpdateUser(tx, &next); err != nil {
		return false, err
	}
	*user = next
	return blocked, nil
}

// bindDevice finds or creates the device record. A device that is new or was
// deactivated needs a free slot under the tier's limit. Over the limit the
// result is a *types.DeviceLimitError and, under the blacklist policy, the
// blacklist has already been written to user.
func (g *AccountGuard) bindDevice(tx *gorm.DB, user *models.User, deviceID string, in LoginInput, now time.Time) (*models.Device, bool, error) {
	device, err := GetDevice(tx, user.ID, deviceID)
	isNew := false
	if err != nil {
		if !isNotFound(err) {
			return nil, false, err
		}
		isNew = true
		device = &models.Device{
			UserID:       user.ID,
			DeviceID:     truncateRunes(deviceID, 255),
			FirstLoginAt: now,
		}
	}

	if isNew || !device.IsActive {
		active, err := GetActiveDeviceCount(tx, user.ID)
		if err != nil {
			return nil, false, err
		}
		limit := DeviceLimit(*user, g.Security)
		if active >= int64(limit) {
			if g.Security.DeviceLimitPolicy != config.DeviceLimitRejectAndBlacklist {
				return nil, false, &types.DeviceLimitError{Limit: limit}
			}
			next := ApplyBlacklist(*user, "device limit exceeded", now)
			if err := UpdateUser(tx, &next); err != nil {
				return nil, false, err
			}
			*user = next
			return nil, false, &types.DeviceLimitError{Limit: limit, Blacklisted: true}
		}
	}

	if name := strings.TrimSpace(in.DeviceName); name != "" {
		device.DeviceName = truncateRunes(name, 255)
	}
	if kind := strings.TrimSpace(in.DeviceType); kind != "" {
		device.DeviceType = truncateRunes(kind, 50)
	}
	device.LastLoginAt = now
	device.IsActive = true

	if err := UpsertDevice(tx, device); err != nil {
		return nil, false, err
	}
	return device, isNew, nil
}

func (g *AccountGuard) logRejection(in LoginInput, userID uint64, rejection error) {
	fields := []zap.Field{
		zap.String("ip", in.IPAddress),
		zap.String("deviceId", in.DeviceID),
		zap.String("reason", rejection.Error()),
	}
	if userID != 0 {
		fields = append(fields, zap.Uint64("userId", userID))
	}

	var dl *types.DeviceLimitError
	if errors.As(rejection, &dl) && dl.Blacklisted {
		g.log().Warn("account blacklisted on device limit", fields...)
		return
	}
	g.log().Info("login rejected", fields...)
}

// Me returns the signed-in user's account
func Me(db *gorm.DB, userID uint64) (*models.User, error) {
	return GetUserByID(db, userID)
}

// EnsureAdmin creates the admin account when it does not exist yet, or
// promotes an existing account with that email
func (g *AccountGuard) EnsureAdmin(db *gorm.DB, email, password string) (*models.User, error) {
	existing, err := GetUserByEmail(db, email)
	if err == nil {
		if existing.IsAdmin {
			return existing, nil
		}
		existing.IsAdmin = true
		if err := UpdateUser(db, existing); err != nil {
			return nil, err
		}
		g.log().Info("promoted user to admin", zap.Uint64("userId", existing.ID))
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	if len([]rune(password)) < minPasswordLength {
		return nil, types.NewValidationError("password", "must be at least 8 characters")
	}
	hash, err := g.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.User{
		Email:            email,
		PasswordHash:     hash,
		FirstName:        "Admin",
		SubscriptionType: models.SubscriptionPro,
		IsAdmin:          true,
	}
	if err := CreateUser(db, admin); err != nil {
		return nil, err
	}
	g.log().Info("seeded admin account", zap.Uint64("userId", admin.ID))
	return admin, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFoundError
	return errors.As(err, &nf)
}
