package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/custom", func(c *fiber.Ctx) error {
		return &types.CustomError{Code: fiber.StatusUnauthorized, Message: "Bearer token not found", Type: "auth.authorization.user"}
	})
	app.Get("/fiber", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "too big")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("dial tcp 10.0.0.5:3306: connection refused")
	})

	tests := []struct {
		path    string
		status  int
		message string
		errType string
	}{
		{"/custom", fiber.StatusUnauthorized, "Bearer token not found", "auth.authorization.user"},
		{"/fiber", fiber.StatusRequestEntityTooLarge, "too big", "unknown"},
		{"/boom", fiber.StatusInternalServerError, "internal server error", "unknown"},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)

		raw, _ := io.ReadAll(resp.Body)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, tt.message, body["message"], tt.path)
		assert.Equal(t, tt.errType, body["type"], tt.path)
		assert.Equal(t, false, body["ok"], tt.path)
		assert.Equal(t, tt.path, body["url"], tt.path)
	}
}
