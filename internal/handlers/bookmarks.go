package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BookmarkHandler handles the signed-in user's bookmarks
type BookmarkHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// BookmarkRequest is the body of the bookmark add and update routes
type BookmarkRequest struct {
	Notes string `json:"notes"`
}

// AddBookmark handles POST /api/documents/:id/bookmark
// @Summary Bookmark a document
// @Tags Bookmarks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Param body body BookmarkRequest false "Notes"
// @Success 201 {object} models.Bookmark
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/{id}/bookmark [post]
func (h *BookmarkHandler) AddBookmark(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.add")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.add")
	}
	var req BookmarkRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.add")
	}

	bookmark, err := services.AddBookmark(h.DB.WithContext(c.UserContext()), claims.UserID, id, req.Notes)
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.add")
	}

	return utils.SuccessResponse(c, bookmark, fiber.StatusCreated)
}

// UpdateBookmark handles PUT /api/documents/:id/bookmark
// @Summary Update bookmark notes
// @Tags Bookmarks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Param body body BookmarkRequest true "Notes"
// @Success 200 {object} models.Bookmark
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/{id}/bookmark [put]
func (h *BookmarkHandler) UpdateBookmark(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.update")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.update")
	}
	var req BookmarkRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.update")
	}

	bookmark, err := services.UpdateBookmarkNotes(h.DB.WithContext(c.UserContext()), claims.UserID, id, req.Notes)
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.update")
	}

	return utils.SuccessResponse(c, bookmark, fiber.StatusOK)
}

// RemoveBookmark handles DELETE /api/documents/:id/bookmark
// @Summary Remove a bookmark
// @Tags Bookmarks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/{id}/bookmark [delete]
func (h *BookmarkHandler) RemoveBookmark(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.remove")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.remove")
	}

	if err := services.RemoveBookmark(h.DB.WithContext(c.UserContext()), claims.UserID, id); err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.remove")
	}

	return utils.MutationSuccessResponse(c, "Bookmark removed", 1)
}

// ListBookmarks handles GET /api/bookmarks
// @Summary List bookmarks
// @Description The signed-in user's bookmarks, newest first
// @Tags Bookmarks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Bookmark
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /bookmarks [get]
func (h *BookmarkHandler) ListBookmarks(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.list")
	}

	bookmarks, err := services.ListBookmarks(h.DB.WithContext(c.UserContext()), claims.UserID)
	if err != nil {
		return errorResponse(c, h.Log, err, "bookmarks.list")
	}
	if bookmarks == nil {
		bookmarks = []models.Bookmark{}
	}

	return utils.SuccessResponse(c, bookmarks, fiber.StatusOK)
}
