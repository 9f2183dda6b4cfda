package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/localnerve/juriiq/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxRelatedLimit = 20

// DocumentHandler handles search and document routes
type DocumentHandler struct {
	DB     *gorm.DB
	Log    *zap.Logger
	Finder *services.RelatedFinder
}

// SearchRequest is the body of POST /api/documents/search.
// documentType takes a single type or a list; page numbers may be strings.
type SearchRequest struct {
	Query        string                  `json:"query"`
	Page         types.LooseInt          `json:"page"`
	PageSize     types.LooseInt          `json:"pageSize"`
	DocumentType types.OneOrMany[string] `json:"documentType"`
	CourtName    string                  `json:"courtName"`
	DateFrom     string                  `json:"dateFrom"`
	DateTo       string                  `json:"dateTo"`
}

// RelatedResponse lists documents similar to one document
type RelatedResponse struct {
	DocumentID uint64                     `json:"documentId"`
	Related    []services.RelatedDocument `json:"related"`
}

// SummaryResponse carries a regenerated summary
type SummaryResponse struct {
	DocumentID uint64 `json:"documentId"`
	Summary    string `json:"summary"`
}

// SearchDocuments handles GET /api/documents/search
// @Summary Search documents
// @Description Rank completed documents against a free-text query. Results are recorded in the search history.
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param q query string false "Free-text query"
// @Param page query int false "Page number, from 1"
// @Param pageSize query int false "Page size, at most 100"
// @Param type query string false "Document types, repeated or comma-separated"
// @Param court query string false "Court name substring"
// @Param from query string false "Decision date lower bound (YYYY-MM-DD)"
// @Param to query string false "Decision date upper bound (YYYY-MM-DD)"
// @Success 200 {object} services.SearchResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/search [get]
func (h *DocumentHandler) SearchDocuments(c *fiber.Ctx) error {
	docTypes, err := parseDocumentTypes(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.search")
	}

	req := SearchRequest{
		Query:     c.Query("q"),
		Page:      types.LooseInt(c.QueryInt("page", 1)),
		PageSize:  types.LooseInt(c.QueryInt("pageSize", services.DefaultPageSize)),
		CourtName: c.Query("court"),
		DateFrom:  c.Query("from"),
		DateTo:    c.Query("to"),
	}
	return h.search(c, req, docTypes)
}

// SearchDocumentsBody handles POST /api/documents/search
// @Summary Search documents (JSON body)
// @Description Same as the GET form, with the filters in a JSON body
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SearchRequest true "Query and filters"
// @Success 200 {object} services.SearchResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/search [post]
func (h *DocumentHandler) SearchDocumentsBody(c *fiber.Ctx) error {
	var req SearchRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, h.Log, err, "documents.search")
	}
	docTypes, err := toDocumentTypes(req.DocumentType.Values())
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.search")
	}
	return h.search(c, req, docTypes)
}

func (h *DocumentHandler) search(c *fiber.Ctx, req SearchRequest, docTypes []models.DocumentType) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.search")
	}

	from, err := parseDate("dateFrom", req.DateFrom)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.search")
	}
	to, err := parseDate("dateTo", req.DateTo)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.search")
	}
	if from != nil && to != nil && to.Before(*from) {
		return errorResponse(c, h.Log, types.NewValidationError("dateTo", "must not be before dateFrom"), "documents.search")
	}

	result, err := services.SearchDocuments(h.DB.WithContext(c.UserContext()), h.Log, services.SearchInput{
		Query:    req.Query,
		Page:     req.Page.Int(),
		PageSize: req.PageSize.Int(),
		Filters: services.SearchFilters{
			DocumentTypes: docTypes,
			CourtName:     strings.TrimSpace(req.CourtName),
			DateFrom:      from,
			DateTo:        to,
		},
		UserID: claims.UserID,
	})
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.search")
	}

	return utils.SuccessResponse(c, result, fiber.StatusOK)
}

// GetDocument handles GET /api/documents/:id
// @Summary Document detail
// @Description Return a completed document with its keywords, bookmark flag and related documents. Counts a view.
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} services.DocumentDetail
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	claims, err := getClaims(c)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.detail")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.detail")
	}

	detail, err := services.GetDocumentDetail(h.DB.WithContext(c.UserContext()), h.Log, h.Finder, id, claims.UserID)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.detail")
	}

	return utils.SuccessResponse(c, detail, fiber.StatusOK)
}

// GetRelatedDocuments handles GET /api/documents/:id/related
// @Summary Related documents
// @Description Rank other completed documents by content similarity (0-100)
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Param limit query int false "Maximum results, default 5"
// @Success 200 {object} RelatedResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/{id}/related [get]
func (h *DocumentHandler) GetRelatedDocuments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.related")
	}
	limit := c.QueryInt("limit", services.DefaultRelatedLimit)
	if limit < 1 || limit > maxRelatedLimit {
		return errorResponse(c, h.Log, types.NewValidationError("limit", "must be between 1 and 20"), "documents.related")
	}

	db := h.DB.WithContext(c.UserContext())
	doc, err := services.GetSearchableDocument(db, id)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.related")
	}
	related, err := h.Finder.Related(db, doc, limit)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.related")
	}

	return utils.SuccessResponse(c, RelatedResponse{DocumentID: id, Related: related}, fiber.StatusOK)
}

// GetDocumentStatistics handles GET /api/documents/:id/statistics
// @Summary Document statistics
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} services.DocumentStatistics
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/{id}/statistics [get]
func (h *DocumentHandler) GetDocumentStatistics(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.statistics")
	}

	stats, err := services.GetDocumentStatistics(h.DB.WithContext(c.UserContext()), id)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.statistics")
	}

	return utils.SuccessResponse(c, stats, fiber.StatusOK)
}

// RegenerateSummary handles POST /api/documents/:id/summary
// @Summary Regenerate summary
// @Description Rebuild the extractive summary from the stored content
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} SummaryResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /documents/{id}/summary [post]
func (h *DocumentHandler) RegenerateSummary(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.summary")
	}

	summary, err := services.RegenerateSummary(h.DB.WithContext(c.UserContext()), id)
	if err != nil {
		return errorResponse(c, h.Log, err, "documents.summary")
	}

	return utils.SuccessResponse(c, SummaryResponse{DocumentID: id, Summary: summary}, fiber.StatusOK)
}
