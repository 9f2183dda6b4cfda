package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/testutil"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// newAuthApp mounts a protected route that echoes the caller's id
func newAuthApp(t *testing.T) (*fiber.App, *services.AccountGuard, *Auth) {
	t.Helper()
	db := testutil.NewTestDB(t)
	tokens := services.NewTokenIssuer(testSecret, "juriiq", time.Hour)
	guard := services.NewAccountGuard(tokens, config.DefaultSecurity(), nil)
	guard.HashCost = bcrypt.MinCost
	auth := &Auth{DB: db, Tokens: tokens}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var ce *types.CustomError
			if errors.As(err, &ce) {
				return c.Status(ce.Code).SendString(ce.Type)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	app.Use(VersionMiddleware())
	app.Get("/user", auth.AuthUser(), func(c *fiber.Ctx) error {
		claims := c.Locals(LocalsClaims).(*services.Claims)
		account := c.Locals(LocalsAccount).(*models.User)
		assert.Equal(t, claims.UserID, account.ID)
		return c.SendString(account.Email)
	})
	app.Get("/admin", auth.AuthAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, guard, auth
}

func get(t *testing.T, app *fiber.App, path, authorization string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthUser(t *testing.T) {
	app, guard, auth := newAuthApp(t)
	res, err := guard.Register(auth.DB, services.RegisterInput{
		Email: "user@example.com", Password: "correct-horse", SubscriptionType: models.SubscriptionSimple,
	})
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, get(t, app, "/user", "Bearer "+res.Token))
	assert.Equal(t, fiber.StatusOK, get(t, app, "/user", "bearer "+res.Token))
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/user", ""))
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/user", "Basic dXNlcjpwYXNz"))
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/user", "Bearer "))
	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/admin", "Bearer "+res.Token))

	// a token signed with another secret is refused
	forged, _, err := services.NewTokenIssuer("another-secret-that-is-long-enough-too", "juriiq", time.Hour).
		Issue(res.User.ID, res.User.Email, true)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/admin", "Bearer "+forged))
}

func TestAuthRechecksAccount(t *testing.T) {
	app, guard, auth := newAuthApp(t)
	res, err := guard.Register(auth.DB, services.RegisterInput{
		Email: "gone@example.com", Password: "correct-horse", SubscriptionType: models.SubscriptionSimple,
	})
	require.NoError(t, err)
	bearer := "Bearer " + res.Token

	_, err = services.BlacklistUser(auth.DB, res.User.ID, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/user", bearer))

	require.NoError(t, auth.DB.Delete(&models.User{}, res.User.ID).Error)
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/user", bearer))
}

func TestAuthAdmin(t *testing.T) {
	app, guard, auth := newAuthApp(t)
	admin, err := guard.EnsureAdmin(auth.DB, "root@example.com", "correct-horse")
	require.NoError(t, err)
	token, _, err := auth.Tokens.Issue(admin.ID, admin.Email, true)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, get(t, app, "/admin", "Bearer "+token))
}

func TestVersionMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(VersionMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("apiVersion").(string))
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Api-Version", "1.0")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, APIVersion, resp.Header.Get("X-Api-Version"))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, APIVersion, resp.Header.Get("X-Api-Version"))
}
