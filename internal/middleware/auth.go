package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/types"
	"gorm.io/gorm"
)

// Context keys set by the auth middleware
const (
	LocalsClaims  = "user"
	LocalsAccount = "account"
)

// Auth validates bearer tokens against the account store
type Auth struct {
	DB     *gorm.DB
	Tokens *services.TokenIssuer
}

// AuthAdmin validates that the request carries an admin token
func (a *Auth) AuthAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return a.authorize(c, true, "auth.authorization.admin")
	}
}

// AuthUser validates that the request carries a user token
func (a *Auth) AuthUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return a.authorize(c, false, "auth.authorization.user")
	}
}

// authorize performs the authorization check. The account is re-read on every
// request so a blacklist or a signed out device takes effect before the token expires.
func (a *Auth) authorize(c *fiber.Ctx, admin bool, errorType string) error {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "Bearer token not found",
			Type:    errorType,
		}
	}

	claims, err := a.Tokens.Validate(strings.TrimSpace(token))
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "Invalid or expired token",
			Type:    errorType,
		}
	}

	db := a.DB.WithContext(c.UserContext())
	user, err := services.GetUserByID(db, claims.UserID)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			return &types.CustomError{Code: fiber.StatusUnauthorized, Message: "Account not found", Type: errorType}
		}
		return err
	}
	if user.IsBlacklisted {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: (&types.BlacklistError{}).Error(),
			Type:    errorType,
		}
	}

	if claims.DeviceID != "" {
		device, err := services.GetDevice(db, user.ID, claims.DeviceID)
		if err != nil {
			var nf *types.NotFoundError
			if !errors.As(err, &nf) {
				return err
			}
		}
		if device == nil || !device.IsActive {
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: "Device has been signed out",
				Type:    errorType,
			}
		}
	}

	if admin && !user.IsAdmin {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Administrator access required",
			Type:    errorType,
		}
	}

	c.Locals(LocalsClaims, claims)
	c.Locals(LocalsAccount, user)

	return c.Next()
}
