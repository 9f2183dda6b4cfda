package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/testutil"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, _ := newTestGuard(config.DefaultSecurity())

	res, err := g.Register(db, RegisterInput{Email: "  Avukat@Example.com ", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "avukat@example.com", res.User.Email)
	assert.Equal(t, models.SubscriptionSimple, res.User.SubscriptionType)
	assert.NotEmpty(t, res.Token)
	assert.NotEqual(t, "long-enough", res.User.PasswordHash)

	found, err := GetUserByEmail(db, " AVUKAT@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, found.ID)

	_, err = g.Register(db, RegisterInput{Email: "AVUKAT@example.com", Password: "another-one"})
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Conflict)
	assert.Equal(t, "user with this email already exists", ve.Error())
}

func TestRegisterValidation(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, _ := newTestGuard(config.DefaultSecurity())

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing email", RegisterInput{Password: "long-enough"}, "email"},
		{"bad email", RegisterInput{Email: "not-an-email", Password: "long-enough"}, "email"},
		{"short password", RegisterInput{Email: "a@b.co", Password: "short"}, "password"},
		{"bad tier", RegisterInput{Email: "a@b.co", Password: "long-enough", SubscriptionType: "Gold"}, "subscriptionType"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Register(db, tt.in)
			var ve *types.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, _ := newTestGuard(config.DefaultSecurity())
	mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	_, err := loginAs(g, db, "nobody@example.com", "whatever", "laptop")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)

	_, err2 := loginAs(g, db, "user@example.com", "wrong-password", "laptop")
	assert.ErrorIs(t, err2, types.ErrInvalidCredentials)
	assert.Equal(t, err.Error(), err2.Error())
}

func TestLoginRequiresDevice(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, _ := newTestGuard(config.DefaultSecurity())
	mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	_, err := loginAs(g, db, "user@example.com", "correct-horse", "  ")
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "deviceId", ve.Field)
}

func TestLoginSuccessBindsDeviceAndIssuesToken(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, clock := newTestGuard(config.DefaultSecurity())
	user := mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	res, err := loginAs(g, db, "USER@example.com", "correct-horse", "laptop")
	require.NoError(t, err)
	assert.True(t, res.NewDevice)
	assert.Equal(t, "laptop", res.Device.DeviceID)
	assert.Equal(t, "laptop browser", res.Device.DeviceName)
	require.NotNil(t, res.User.LastLoginAt)
	assert.Equal(t, clock.Now(), *res.User.LastLoginAt)

	claims, err := g.Tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "laptop", claims.DeviceID)
	assert.Equal(t, RoleUser, claims.Role)

	again, err := loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	require.NoError(t, err)
	assert.False(t, again.NewDevice)

	count, err := GetActiveDeviceCount(db, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestLoginLockout(t *testing.T) {
	db := testutil.NewTestDB(t)
	sec := config.DefaultSecurity()
	g, clock := newTestGuard(sec)
	user := mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	for i := 1; i < sec.MaxFailedLoginAttempts; i++ {
		_, err := loginAs(g, db, "user@example.com", "wrong", "laptop")
		require.ErrorIs(t, err, types.ErrInvalidCredentials, "attempt %d", i)
	}

	_, err := loginAs(g, db, "user@example.com", "wrong", "laptop")
	var le *types.LockoutError
	require.True(t, errors.As(err, &le), "got %v", err)
	assert.Equal(t, 30, le.Minutes())

	// the right password does not help while blocked
	clock.Advance(10 * time.Minute)
	_, err = loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 20, le.Minutes())

	stored, err := GetUserByID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, sec.MaxFailedLoginAttempts, stored.FailedLoginAttempts)

	clock.Advance(21 * time.Minute)
	res, err := loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	require.NoError(t, err)
	assert.Zero(t, res.User.FailedLoginAttempts)
	assert.Nil(t, res.User.BlockedUntil)

	recent, err := CountRecentFailedAttempts(db, user.ID, clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, recent)
}

func TestLoginFailuresOutsideWindowDoNotCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	sec := config.DefaultSecurity()
	g, clock := newTestGuard(sec)
	mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	for i := 1; i < sec.MaxFailedLoginAttempts; i++ {
		_, err := loginAs(g, db, "user@example.com", "wrong", "laptop")
		require.ErrorIs(t, err, types.ErrInvalidCredentials)
	}

	clock.Advance(sec.FailedLoginWindow + time.Minute)
	_, err := loginAs(g, db, "user@example.com", "wrong", "laptop")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)

	_, err = loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	assert.NoError(t, err)
}

// The SQLite test pool has a single connection, so this only checks the
// counting. The row lock itself is exercised by TestWithMariaDB.
func TestConcurrentFailedLoginsAreCountedOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	sec := config.DefaultSecurity()
	g, _ := newTestGuard(sec)
	user := mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	const attempts = 12
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = loginAs(g, db, "user@example.com", "wrong", "laptop")
		}(i)
	}
	wg.Wait()

	invalid, locked := 0, 0
	for _, err := range errs {
		var le *types.LockoutError
		switch {
		case errors.Is(err, types.ErrInvalidCredentials):
			invalid++
		case errors.As(err, &le):
			locked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, sec.MaxFailedLoginAttempts-1, invalid)
	assert.Equal(t, attempts-sec.MaxFailedLoginAttempts+1, locked)

	var rows int64
	require.NoError(t, db.Model(&models.FailedLoginAttempt{}).Where("user_id = ?", user.ID).Count(&rows).Error)
	assert.EqualValues(t, sec.MaxFailedLoginAttempts, rows)
}

func TestDeviceLimitReject(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, _ := newTestGuard(config.DefaultSecurity())
	mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	_, err := loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	require.NoError(t, err)

	_, err = loginAs(g, db, "user@example.com", "correct-horse", "phone")
	var dl *types.DeviceLimitError
	require.True(t, errors.As(err, &dl), "got %v", err)
	assert.Equal(t, 1, dl.Limit)
	assert.False(t, dl.Blacklisted)

	// the known device still works and the account is not blacklisted
	_, err = loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	assert.NoError(t, err)
}

func TestDeviceLimitRejectAndBlacklist(t *testing.T) {
	db := testutil.NewTestDB(t)
	sec := config.DefaultSecurity()
	sec.DeviceLimitPolicy = config.DeviceLimitRejectAndBlacklist
	g, clock := newTestGuard(sec)
	user := mustRegister(t, db, g, "user@example.com", models.SubscriptionSimple)

	_, err := loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	require.NoError(t, err)

	_, err = loginAs(g, db, "user@example.com", "correct-horse", "phone")
	var dl *types.DeviceLimitError
	require.True(t, errors.As(err, &dl))
	assert.True(t, dl.Blacklisted)

	_, err = loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	var be *types.BlacklistError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, "device limit exceeded", be.Reason)

	_, err = UnblockUser(db, user.ID)
	require.NoError(t, err)
	clock.Advance(time.Minute)

	_, err = loginAs(g, db, "user@example.com", "correct-horse", "laptop")
	assert.NoError(t, err)
}

func TestDeviceLimitPro(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, _ := newTestGuard(config.DefaultSecurity())
	user := mustRegister(t, db, g, "pro@example.com", models.SubscriptionPro)

	for _, d := range []string{"d1", "d2", "d3", "d4"} {
		_, err := loginAs(g, db, "pro@example.com", "correct-horse", d)
		require.NoError(t, err, d)
	}

	_, err := loginAs(g, db, "pro@example.com", "correct-horse", "d5")
	var dl *types.DeviceLimitError
	require.True(t, errors.As(err, &dl))
	assert.Equal(t, 4, dl.Limit)

	require.NoError(t, DeactivateDevice(db, user.ID, "d2"))
	_, err = loginAs(g, db, "pro@example.com", "correct-horse", "d5")
	require.NoError(t, err)

	// a deactivated device needs a free slot like a new one
	_, err = loginAs(g, db, "pro@example.com", "correct-horse", "d2")
	assert.True(t, errors.As(err, &dl))

	devices, err := ListDevices(db, user.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 5)
}

func TestEnsureAdmin(t *testing.T) {
	db := testutil.NewTestDB(t)
	g, _ := newTestGuard(config.DefaultSecurity())

	admin, err := g.EnsureAdmin(db, "admin@example.com", "admin-password")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	again, err := g.EnsureAdmin(db, "admin@example.com", "admin-password")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	res, err := loginAs(g, db, "admin@example.com", "admin-password", "console")
	require.NoError(t, err)
	claims, err := g.Tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, RoleAdmin, claims.Role)
}
