package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/localnerve/juriiq/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthHandler handles registration and sign-in routes
type AuthHandler struct {
	DB    *gorm.DB
	Guard *services.AccountGuard
	Log   *zap.Logger
}

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	SubscriptionType string `json:"subscriptionType"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
}

// Register handles POST /api/auth/register
// @Summary Register an account
// @Description Create an account and return a token. The subscription defaults to Simple.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Account details"
// @Success 201 {object} services.AuthResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, h.Log, err, "auth.register")
	}

	tier := models.SubscriptionSimple
	if req.SubscriptionType != "" {
		t, ok := models.ParseSubscriptionType(req.SubscriptionType)
		if !ok {
			return errorResponse(c, h.Log, types.NewValidationError("subscriptionType", "must be Simple or Pro"), "auth.register")
		}
		tier = t
	}

	result, err := h.Guard.Register(h.DB.WithContext(c.UserContext()), services.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		SubscriptionType: tier,
	})
	if err != nil {
		return errorResponse(c, h.Log, err, "auth.register")
	}

	return utils.SuccessResponse(c, result, fiber.StatusCreated)
}

// Login handles POST /api/auth/login
// @Summary Sign in
// @Description Check credentials, lockout, blacklist and device limit, then return a device bound token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials and device"
// @Success 200 {object} services.AuthResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 423 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, h.Log, err, "auth.login")
	}

	result, err := h.Guard.Login(h.DB.WithContext(c.UserContext()), services.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		DeviceType: req.DeviceType,
		IPAddress:  c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return errorResponse(c, h.Log, err, "auth.login")
	}

	return utils.SuccessResponse(c, result, fiber.StatusOK)
}

// Me handles GET /api/auth/me
// @Summary Current account
// @Description Return the signed-in account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "auth.me")
	}

	user, err := services.Me(h.DB.WithContext(c.UserContext()), claims.UserID)
	if err != nil {
		return errorResponse(c, h.Log, err, "auth.me")
	}

	return utils.SuccessResponse(c, user, fiber.StatusOK)
}
