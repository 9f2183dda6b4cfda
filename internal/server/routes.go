package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/handlers"
	"github.com/localnerve/juriiq/internal/middleware"
)

// registerRoutes mounts the API under /api
func registerRoutes(app *fiber.App, opts Options) {
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	auth := &middleware.Auth{DB: opts.DB, Tokens: opts.Tokens}
	user := auth.AuthUser()
	admin := auth.AuthAdmin()

	// Create handlers
	authHandler := &handlers.AuthHandler{DB: opts.DB, Guard: opts.Guard, Log: opts.Log}
	documentHandler := &handlers.DocumentHandler{DB: opts.DB, Log: opts.Log, Finder: opts.Finder}
	bookmarkHandler := &handlers.BookmarkHandler{DB: opts.DB, Log: opts.Log}
	historyHandler := &handlers.HistoryHandler{DB: opts.DB, Log: opts.Log}
	profileHandler := &handlers.ProfileHandler{DB: opts.DB, Log: opts.Log}
	adminHandler := &handlers.AdminHandler{DB: opts.DB, Log: opts.Log, Ingest: opts.Ingest, Context: opts.BaseContext}
	healthHandler := &handlers.HealthHandler{Config: opts.Config, DB: opts.DB, Log: opts.Log}

	// Public routes
	api.Get("/health", healthHandler.Health)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// User routes (all require user authentication)
	api.Get("/auth/me", user, authHandler.Me)

	docs := api.Group("/documents", user)
	docs.Get("/search", documentHandler.SearchDocuments)
	docs.Post("/search", documentHandler.SearchDocumentsBody)
	docs.Get("/:id", documentHandler.GetDocument)
	docs.Get("/:id/related", documentHandler.GetRelatedDocuments)
	docs.Get("/:id/statistics", documentHandler.GetDocumentStatistics)
	docs.Post("/:id/summary", documentHandler.RegenerateSummary)
	docs.Post("/:id/bookmark", bookmarkHandler.AddBookmark)
	docs.Put("/:id/bookmark", bookmarkHandler.UpdateBookmark)
	docs.Delete("/:id/bookmark", bookmarkHandler.RemoveBookmark)

	api.Get("/bookmarks", user, bookmarkHandler.ListBookmarks)
	api.Get("/history", user, historyHandler.ListHistory)
	api.Delete("/history", user, historyHandler.ClearHistory)
	api.Get("/profile/devices", user, profileHandler.ListDevices)
	api.Delete("/profile/devices/:deviceId", user, profileHandler.DeactivateDevice)

	// Admin-only routes
	adm := api.Group("/admin", admin)
	adm.Get("/users", adminHandler.ListUsers)
	adm.Post("/users/:id/block", adminHandler.BlockUser)
	adm.Post("/users/:id/unblock", adminHandler.UnblockUser)
	adm.Put("/users/:id/subscription", adminHandler.SetSubscription)
	adm.Get("/users/:id/devices", adminHandler.ListUserDevices)
	adm.Delete("/users/:id/devices/:deviceId", adminHandler.DeactivateUserDevice)
	adm.Post("/documents/process", adminHandler.ProcessDocuments)
	adm.Get("/documents/failed", adminHandler.ListFailedDocuments)
	adm.Post("/documents/:id/reprocess", adminHandler.ReprocessDocument)
	adm.Delete("/documents/:id", adminHandler.DeleteDocument)
	adm.Get("/ingestion/runs", adminHandler.ListIngestionRuns)
	adm.Get("/stats", adminHandler.Statistics)
}
