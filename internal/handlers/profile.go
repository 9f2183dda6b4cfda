package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/localnerve/juriiq/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileHandler handles the signed-in user's devices
type ProfileHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// ListDevices handles GET /api/profile/devices
// @Summary List my devices
// @Description Active devices first, most recently used first
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Device
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /profile/devices [get]
func (h *ProfileHandler) ListDevices(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "profile.devices")
	}

	devices, err := services.ListDevices(h.DB.WithContext(c.UserContext()), claims.UserID)
	if err != nil {
		return errorResponse(c, h.Log, err, "profile.devices")
	}

	return utils.SuccessResponse(c, devices, fiber.StatusOK)
}

// DeactivateDevice handles DELETE /api/profile/devices/:deviceId
// @Summary Sign out a device
// @Description Frees a device slot. Tokens bound to the device stop working.
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Param deviceId path string true "Device ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /profile/devices/{deviceId} [delete]
func (h *ProfileHandler) DeactivateDevice(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "profile.devices")
	}
	deviceID := strings.TrimSpace(c.Params("deviceId"))
	if deviceID == "" {
		return errorResponse(c, h.Log, types.NewValidationError("deviceId", "is required"), "profile.devices")
	}

	if err := services.DeactivateDevice(h.DB.WithContext(c.UserContext()), claims.UserID, deviceID); err != nil {
		return errorResponse(c, h.Log, err, "profile.devices")
	}

	return utils.MutationSuccessResponse(c, "Device signed out", 1)
}
