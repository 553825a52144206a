package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/db"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

func (r *ReportRepository) Create(ctx context.Context, report *db.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// ListByReporter returns the reporter's reports, newest first.
func (r *ReportRepository) ListByReporter(ctx context.Context, reporterID string) ([]db.Report, error) {
	var reports []db.Report
	err := r.db.WithContext(ctx).
		Where("reporter_id = ?", reporterID).
		Order("created_at DESC, id DESC").
		Find(&reports).Error
	return reports, err
}
