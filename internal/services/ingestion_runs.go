package services

import (
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/types"
	"gorm.io/gorm"
)

// CreateIngestionRun stores the start of a pipeline pass
func CreateIngestionRun(db *gorm.DB, run *models.IngestionRun) error {
	return types.Persistence("create ingestion run", db.Create(run).Error)
}

// FinishIngestionRun stores the final counters of a pipeline pass
func FinishIngestionRun(db *gorm.DB, run *models.IngestionRun) error {
	return types.Persistence("finish ingestion run", db.Save(run).Error)
}

// RecentIngestionRuns returns the latest pipeline passes, newest first
func RecentIngestionRuns(db *gorm.DB, limit int) ([]models.IngestionRun, error) {
	if limit <= 0 {
		limit = 10
	}
	runs := []models.IngestionRun{}
	err := quiet(db).Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error
	return runs, types.Persistence("list ingestion runs", err)
}
