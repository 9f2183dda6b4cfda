package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HistoryHandler handles the signed-in user's search history
type HistoryHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// ListHistory handles GET /api/history
// @Summary Recent searches
// @Tags History
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries, default 10, at most 50"
// @Success 200 {array} models.SearchHistory
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /history [get]
func (h *HistoryHandler) ListHistory(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "history.list")
	}

	limit := c.QueryInt("limit", services.DefaultHistoryLimit)
	entries, err := services.RecentSearches(h.DB.WithContext(c.UserContext()), claims.UserID, limit)
	if err != nil {
		return errorResponse(c, h.Log, err, "history.list")
	}
	if entries == nil {
		entries = []models.SearchHistory{}
	}

	return utils.SuccessResponse(c, entries, fiber.StatusOK)
}

// ClearHistory handles DELETE /api/history
// @Summary Clear search history
// @Tags History
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /history [delete]
func (h *HistoryHandler) ClearHistory(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "history.clear")
	}

	affected, err := services.ClearSearchHistory(h.DB.WithContext(c.UserContext()), claims.UserID)
	if err != nil {
		return errorResponse(c, h.Log, err, "history.clear")
	}

	return utils.MutationSuccessResponse(c, "Search history cleared", affected)
}
