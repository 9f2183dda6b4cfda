// common.go
//
// Legal-document search and account portal
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of juriiq.
// juriiq is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// juriiq is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with juriiq.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/ingest"
	"github.com/localnerve/juriiq/internal/middleware"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/localnerve/juriiq/internal/utils"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// getClaims extracts the token claims from context (set by auth middleware)
func getClaims(c *fiber.Ctx) (*services.Claims, error) {
	claims, ok := c.Locals(middleware.LocalsClaims).(*services.Claims)
	if !ok || claims == nil {
		return nil, &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "user not found in context",
			Type:    "auth.authorization.user",
		}
	}
	return claims, nil
}

// parseID reads a positive numeric route parameter
func parseID(c *fiber.Ctx, param string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 64)
	if err != nil || id == 0 {
		return 0, types.NewValidationError(param, "must be a positive integer")
	}
	return id, nil
}

// parseDocumentTypes extracts document types from query parameters,
// supporting both multiple 'type' keys and comma-separated values.
func parseDocumentTypes(c *fiber.Ctx) ([]models.DocumentType, error) {
	var raw []string
	args := c.Context().QueryArgs()
	for key, value := range args.All() {
		if string(key) == "type" {
			raw = append(raw, strings.Split(string(value), ",")...)
		}
	}
	return toDocumentTypes(raw)
}

func toDocumentTypes(raw []string) ([]models.DocumentType, error) {
	seen := make(map[models.DocumentType]struct{})
	var out []models.DocumentType
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		dt, ok := models.ParseDocumentType(v)
		if !ok {
			return nil, types.NewValidationError("type", "unknown document type "+strconv.Quote(v))
		}
		if _, dup := seen[dt]; dup {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}
	return out, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty means unset.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, types.NewValidationError(field, "must be a date in YYYY-MM-DD form")
}

// parseBody decodes the JSON body into v
func parseBody(c *fiber.Ctx, v interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return types.NewValidationError("body", "invalid request body")
	}
	return nil
}

// errorResponse maps a service error onto the error envelope.
// Unexpected errors are logged and answered with a generic message.
func errorResponse(c *fiber.Ctx, log *zap.Logger, err error, errorType string) error {
	var (
		custom    *types.CustomError
		lockout   *types.LockoutError
		blacklist *types.BlacklistError
		devices   *types.DeviceLimitError
		invalid   *types.ValidationError
		notFound  *types.NotFoundError
	)

	switch {
	case errors.Is(err, types.ErrInvalidCredentials):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "auth.credentials")
	case errors.As(err, &lockout):
		return utils.LockoutResponse(c, lockout.Error(), lockout.Minutes())
	case errors.As(err, &blacklist):
		return utils.ErrorResponse(c, blacklist.Error(), fiber.StatusForbidden, "auth.blacklisted")
	case errors.As(err, &devices):
		return utils.ErrorResponse(c, devices.Error(), fiber.StatusForbidden, "auth.deviceLimit")
	case errors.As(err, &invalid):
		if invalid.Conflict {
			return utils.ErrorResponse(c, invalid.Error(), fiber.StatusConflict, errorType)
		}
		return utils.ErrorResponse(c, invalid.Error(), fiber.StatusBadRequest, errorType)
	case errors.As(err, &notFound):
		return utils.NotFoundResponse(c, notFound.Error())
	case errors.Is(err, ingest.ErrRunInProgress):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, errorType)
	case errors.As(err, &custom):
		return utils.ErrorResponse(c, custom.Message, custom.Code, custom.Type)
	}

	if log != nil {
		log.Error("request failed",
			zap.String("type", errorType),
			zap.String("url", c.OriginalURL()),
			zap.Error(err))
	}
	return utils.ErrorResponse(c, "internal server error", fiber.StatusInternalServerError, errorType)
}
