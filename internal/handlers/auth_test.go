package handlers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/handlers"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.register("Lawyer@Example.com", models.SubscriptionPro)

	resp := env.do("GET", "/api/auth/me", nil, token)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var me models.User
	testutil.ParseJSON(t, resp, &me)
	assert.Equal(t, "lawyer@example.com", me.Email)
	assert.Equal(t, models.SubscriptionPro, me.SubscriptionType)
	assert.Equal(t, "1.0.0", resp.Header.Get("X-Api-Version"))
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register("taken@example.com", models.SubscriptionSimple)

	resp := env.do("POST", "/api/auth/register", handlers.RegisterRequest{
		Email: "TAKEN@example.com", Password: testPassword,
	}, "")
	env.expectError(resp, fiber.StatusConflict)

	resp = env.do("POST", "/api/auth/register", handlers.RegisterRequest{
		Email: "not-an-email", Password: testPassword,
	}, "")
	env.expectError(resp, fiber.StatusBadRequest)

	resp = env.do("POST", "/api/auth/register", handlers.RegisterRequest{
		Email: "new@example.com", Password: testPassword, SubscriptionType: "Gold",
	}, "")
	body := env.expectError(resp, fiber.StatusBadRequest)
	assert.Contains(t, body.Message, "subscriptionType")
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	env := newTestEnv(t)

	body := env.expectError(env.do("GET", "/api/auth/me", nil, ""), fiber.StatusUnauthorized)
	assert.Equal(t, "auth.authorization.user", body.Type)

	env.expectError(env.do("GET", "/api/bookmarks", nil, "garbage.token.value"), fiber.StatusUnauthorized)
}

func TestLoginCredentialsAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register("known@example.com", models.SubscriptionSimple)

	unknown := env.expectError(env.login("nobody@example.com", testPassword, "dev-1"), fiber.StatusUnauthorized)
	wrong := env.expectError(env.login("known@example.com", "wrong-password", "dev-1"), fiber.StatusUnauthorized)
	assert.Equal(t, unknown.Message, wrong.Message)
	assert.Equal(t, "auth.credentials", wrong.Type)

	env.expectError(env.login("known@example.com", testPassword, ""), fiber.StatusBadRequest)
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t)
	env.register("locked@example.com", models.SubscriptionSimple)

	for i := 0; i < 4; i++ {
		env.expectError(env.login("locked@example.com", "wrong-password", "dev-1"), fiber.StatusUnauthorized)
	}
	body := env.expectError(env.login("locked@example.com", "wrong-password", "dev-1"), fiber.StatusLocked)
	assert.Equal(t, 30, body.RemainingMinutes)
	assert.Equal(t, "auth.lockout", body.Type)

	// the right password is refused while the block lasts
	body = env.expectError(env.login("locked@example.com", testPassword, "dev-1"), fiber.StatusLocked)
	assert.Greater(t, body.RemainingMinutes, 0)
}

func TestDeviceLimitAndSignOut(t *testing.T) {
	env := newTestEnv(t)
	env.register("solo@example.com", models.SubscriptionSimple)

	phone := env.loginToken("solo@example.com", "phone")

	body := env.expectError(env.login("solo@example.com", testPassword, "laptop"), fiber.StatusForbidden)
	assert.Equal(t, "auth.deviceLimit", body.Type)

	// the same device may sign in again
	env.loginToken("solo@example.com", "phone")

	resp := env.do("GET", "/api/profile/devices", nil, phone)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var devices []models.Device
	testutil.ParseJSON(t, resp, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "phone", devices[0].DeviceID)
	assert.True(t, devices[0].IsActive)

	resp = env.do("DELETE", "/api/profile/devices/phone", nil, phone)
	testutil.AssertStatus(t, resp, fiber.StatusOK)

	// the signed out device's token stops working and the slot is free
	env.expectError(env.do("GET", "/api/auth/me", nil, phone), fiber.StatusUnauthorized)
	laptop := env.loginToken("solo@example.com", "laptop")

	env.expectError(env.do("DELETE", "/api/profile/devices/tablet", nil, laptop), fiber.StatusNotFound)
}
