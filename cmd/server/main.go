// main.go
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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/database"
	"github.com/localnerve/juriiq/internal/ingest"
	"github.com/localnerve/juriiq/internal/logging"
	"github.com/localnerve/juriiq/internal/server"
	"github.com/localnerve/juriiq/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/localnerve/juriiq/docs/api" // Swagger docs
)

// @title JuriIQ API
// @version 1.0.0
// @description Legal-document search, ingestion and account portal
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/juriiq
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	if envFilename != "" {
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	guard := services.NewAccountGuard(tokens, cfg.Security, logger)
	if cfg.AdminEmail != "" {
		if _, err := guard.EnsureAdmin(db, services.NormalizeEmail(cfg.AdminEmail), cfg.AdminPassword); err != nil {
			return fmt.Errorf("failed to seed admin account: %w", err)
		}
	}

	finder, err := services.NewRelatedFinder(cfg.RelatedCacheSize)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	opts := server.Options{
		Config:      cfg,
		DB:          db,
		Log:         logger,
		Tokens:      tokens,
		Guard:       guard,
		Finder:      finder,
		BaseContext: gctx,
		Metrics:     true,
		RequestLog:  true,
	}

	var (
		scheduler *ingest.Scheduler
		watcher   *ingest.Watcher
	)
	if cfg.Ingestion.Enabled {
		pipeline, err := ingest.NewPipeline(db, cfg.Ingestion, logger)
		if err != nil {
			return err
		}
		opts.Ingest = pipeline

		scheduler, err = ingest.NewScheduler(pipeline, cfg.Ingestion.Schedule, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		if cfg.Ingestion.OnStartup {
			scheduler.TriggerAsync(ingest.TriggerStartup)
		}
		if cfg.Ingestion.Watch {
			watcher = ingest.NewWatcher(pipeline, pipeline.InputDir(), ingest.DefaultDebounce, logger)
		}
	} else {
		logger.Info("document ingestion is disabled")
	}

	app := server.New(opts)

	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.Port))
		return app.Listen(":" + cfg.Port)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if scheduler != nil {
			errs = append(errs, scheduler.Stop(shutdownCtx))
		}
		errs = append(errs, app.ShutdownWithContext(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}
