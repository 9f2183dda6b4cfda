package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Ingestion    string            `json:"ingestion"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(detailKey string, err error, message string) {
	r.Status = "unhealthy"
	r.Details[detailKey] = err.Error()
	if r.ErrorMessage == "" {
		r.ErrorMessage = message
	} else {
		r.ErrorMessage += "; " + message
	}
}

// HealthCheck pings the database and checks the ingestion folders
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) HealthCheckResult {
	log = logging.OrNop(log)
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.fail("database_error", err, fmt.Sprintf("Database connection error: %v", err))
		log.Warn("health check failed - database connection", zap.Error(err))
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			result.Database = "unreachable"
			result.fail("database_ping_error", err, fmt.Sprintf("Database ping failed: %v", err))
			log.Warn("health check failed - database ping", zap.Error(err))
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	if !cfg.Ingestion.Enabled {
		result.Ingestion = "disabled"
	} else {
		info, err := os.Stat(cfg.Ingestion.InputDir)
		if err == nil && !info.IsDir() {
			err = fmt.Errorf("%s is not a directory", cfg.Ingestion.InputDir)
		}
		if err != nil {
			result.Ingestion = "unavailable"
			result.fail("ingestion_error", err, fmt.Sprintf("Ingestion folder unavailable: %v", err))
			log.Warn("health check failed - ingestion folder", zap.Error(err))
		} else {
			result.Ingestion = "ok"
			result.Details["ingestion_input"] = cfg.Ingestion.InputDir
		}
	}

	if result.Status == "healthy" {
		log.Debug("health check passed - all systems operational")
	}
	return result
}
