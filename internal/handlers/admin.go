package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/ingest"
	"github.com/localnerve/juriiq/internal/logging"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/localnerve/juriiq/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ingestor is the ingestion pipeline as used by the admin routes
type Ingestor interface {
	ingest.Runner
	Reprocess(ctx context.Context, id uint64) (*models.Document, error)
}

// AdminHandler handles account moderation and corpus maintenance routes
type AdminHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
	// Ingest is nil when ingestion is disabled
	Ingest Ingestor
	// Context lives as long as the server. Manual runs stop when it is cancelled.
	Context context.Context
}

// BlockRequest is the body of POST /api/admin/users/:id/block
type BlockRequest struct {
	Reason string `json:"reason"`
}

// SubscriptionRequest is the body of PUT /api/admin/users/:id/subscription
type SubscriptionRequest struct {
	SubscriptionType string `json:"subscriptionType"`
}

var errIngestionDisabled = &types.CustomError{
	Code:    fiber.StatusServiceUnavailable,
	Message: "document ingestion is disabled",
	Type:    "admin.ingestion",
}

// ListUsers handles GET /api/admin/users
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Email or name substring"
// @Param blacklisted query bool false "Only blacklisted accounts"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} services.UserList
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	list, err := services.ListUsers(h.DB.WithContext(c.UserContext()), services.UserListInput{
		Search:          c.Query("search"),
		BlacklistedOnly: c.QueryBool("blacklisted", false),
		Page:            c.QueryInt("page", 1),
		PageSize:        c.QueryInt("pageSize", services.DefaultPageSize),
	})
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.users")
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// BlockUser handles POST /api/admin/users/:id/block
// @Summary Blacklist an account
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body BlockRequest false "Reason"
// @Success 200 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/users/{id}/block [post]
func (h *AdminHandler) BlockUser(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.block")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.block")
	}
	if id == claims.UserID {
		return errorResponse(c, h.Log, types.NewValidationError("id", "administrators cannot blacklist themselves"), "admin.block")
	}
	var req BlockRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, h.Log, err, "admin.block")
	}

	user, err := services.BlacklistUser(h.DB.WithContext(c.UserContext()), id, req.Reason, time.Now().UTC())
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.block")
	}
	h.log().Info("user blacklisted", zap.Uint64("userId", id), zap.Uint64("by", claims.UserID))
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}

// UnblockUser handles POST /api/admin/users/:id/unblock
// @Summary Unblock an account
// @Description Clears the blacklist, the temporary block, the failed login counter and the attempt log
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/users/{id}/unblock [post]
func (h *AdminHandler) UnblockUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.unblock")
	}

	user, err := services.UnblockUser(h.DB.WithContext(c.UserContext()), id)
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.unblock")
	}
	h.log().Info("user unblocked", zap.Uint64("userId", id))
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}

// SetSubscription handles PUT /api/admin/users/:id/subscription
// @Summary Change subscription tier
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body SubscriptionRequest true "Simple or Pro"
// @Success 200 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/users/{id}/subscription [put]
func (h *AdminHandler) SetSubscription(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.subscription")
	}
	var req SubscriptionRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, h.Log, err, "admin.subscription")
	}
	tier, ok := models.ParseSubscriptionType(req.SubscriptionType)
	if !ok {
		return errorResponse(c, h.Log, types.NewValidationError("subscriptionType", "must be Simple or Pro"), "admin.subscription")
	}

	user, err := services.SetSubscription(h.DB.WithContext(c.UserContext()), id, tier)
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.subscription")
	}
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}

// ListUserDevices handles GET /api/admin/users/:id/devices
// @Summary List an account's devices
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {array} models.Device
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/users/{id}/devices [get]
func (h *AdminHandler) ListUserDevices(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.devices")
	}

	db := h.DB.WithContext(c.UserContext())
	if _, err := services.GetUserByID(db, id); err != nil {
		return errorResponse(c, h.Log, err, "admin.devices")
	}
	devices, err := services.ListDevices(db, id)
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.devices")
	}
	return utils.SuccessResponse(c, devices, fiber.StatusOK)
}

// DeactivateUserDevice handles DELETE /api/admin/users/:id/devices/:deviceId
// @Summary Sign out an account's device
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param deviceId path string true "Device ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/users/{id}/devices/{deviceId} [delete]
func (h *AdminHandler) DeactivateUserDevice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.devices")
	}
	deviceID := strings.TrimSpace(c.Params("deviceId"))
	if deviceID == "" {
		return errorResponse(c, h.Log, types.NewValidationError("deviceId", "is required"), "admin.devices")
	}

	if err := services.DeactivateDevice(h.DB.WithContext(c.UserContext()), id, deviceID); err != nil {
		return errorResponse(c, h.Log, err, "admin.devices")
	}
	return utils.MutationSuccessResponse(c, "Device signed out", 1)
}

// ProcessDocuments handles POST /api/admin/documents/process
// @Summary Run ingestion now
// @Description Process the input folder and wait for the run to finish
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ingest.RunResult
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/documents/process [post]
func (h *AdminHandler) ProcessDocuments(c *fiber.Ctx) error {
	if h.Ingest == nil {
		return errorResponse(c, h.Log, errIngestionDisabled, "admin.process")
	}

	result, err := h.Ingest.Run(h.runContext(c), ingest.TriggerManual)
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.process")
	}
	return utils.SuccessResponse(c, result, fiber.StatusOK)
}

// runContext is the server lifetime context when one is set
func (h *AdminHandler) runContext(c *fiber.Ctx) context.Context {
	if h.Context != nil {
		return h.Context
	}
	return c.UserContext()
}

// ListFailedDocuments handles GET /api/admin/documents/failed
// @Summary List failed documents
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum results"
// @Success 200 {array} models.Document
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/documents/failed [get]
func (h *AdminHandler) ListFailedDocuments(c *fiber.Ctx) error {
	docs, err := services.ListFailedDocuments(h.DB.WithContext(c.UserContext()), c.QueryInt("limit", services.MaxPageSize))
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.failed")
	}
	return utils.SuccessResponse(c, docs, fiber.StatusOK)
}

// ReprocessDocument handles POST /api/admin/documents/:id/reprocess
// @Summary Retry a failed document
// @Description Moves the file back into the input folder; the next run processes it
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} models.Document
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /admin/documents/{id}/reprocess [post]
func (h *AdminHandler) ReprocessDocument(c *fiber.Ctx) error {
	if h.Ingest == nil {
		return errorResponse(c, h.Log, errIngestionDisabled, "admin.reprocess")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.reprocess")
	}

	doc, err := h.Ingest.Reprocess(h.runContext(c), id)
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.reprocess")
	}
	return utils.SuccessResponse(c, doc, fiber.StatusOK)
}

// DeleteDocument handles DELETE /api/admin/documents/:id
// @Summary Delete a document
// @Description Removes the document with its keywords and bookmarks
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/documents/{id} [delete]
func (h *AdminHandler) DeleteDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.delete")
	}

	if err := services.DeleteDocument(h.DB.WithContext(c.UserContext()), id); err != nil {
		return errorResponse(c, h.Log, err, "admin.delete")
	}
	h.log().Info("document deleted", zap.Uint64("documentId", id))
	return utils.MutationSuccessResponse(c, "Document deleted", 1)
}

// ListIngestionRuns handles GET /api/admin/ingestion/runs
// @Summary Recent ingestion runs
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum results, default 10"
// @Success 200 {array} models.IngestionRun
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/ingestion/runs [get]
func (h *AdminHandler) ListIngestionRuns(c *fiber.Ctx) error {
	runs, err := services.RecentIngestionRuns(h.DB.WithContext(c.UserContext()), c.QueryInt("limit", 10))
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.runs")
	}
	return utils.SuccessResponse(c, runs, fiber.StatusOK)
}

// Statistics handles GET /api/admin/stats
// @Summary Portal statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.AdminStatistics
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/stats [get]
func (h *AdminHandler) Statistics(c *fiber.Ctx) error {
	stats, err := services.GetAdminStatistics(h.DB.WithContext(c.UserContext()), time.Now().UTC())
	if err != nil {
		return errorResponse(c, h.Log, err, "admin.stats")
	}
	return utils.SuccessResponse(c, stats, fiber.StatusOK)
}

func (h *AdminHandler) log() *zap.Logger {
	return logging.OrNop(h.Log)
}
