package server

import (
	"context"
	"errors"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/handlers"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options wires the application's collaborators into the router
type Options struct {
	Config *config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Tokens *services.TokenIssuer
	Guard  *services.AccountGuard
	Finder *services.RelatedFinder
	// Ingest is nil when ingestion is disabled
	Ingest handlers.Ingestor
	// BaseContext is cancelled when the service shuts down. Manual ingestion
	// runs started from the admin routes stop with it.
	BaseContext context.Context

	// Metrics registers the Prometheus collectors and serves /metrics.
	// The collectors go to the default registry, so only one app per process may enable it.
	Metrics bool
	// RequestLog writes one line per request
	RequestLog bool
}

// New builds the Fiber app with middleware and routes
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	if opts.RequestLog {
		app.Use(logger.New())
	}
	app.Use(compress.New())

	// Prometheus metrics
	if opts.Metrics {
		prometheus := fiberprometheus.New("juriiq")
		prometheus.RegisterAt(app, "/metrics")
		app.Use(prometheus.Middleware)
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	registerRoutes(app, opts)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
			"type":      "notFound",
		})
	})

	return app
}

// ErrorHandler formats errors that escape the handlers
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	errorType := "unknown"

	var (
		fe *fiber.Error
		ce *types.CustomError
	)
	switch {
	case errors.As(err, &ce):
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
