package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReportStorage implements the ReportStorage interface for Badger
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.ReportStorage = (*ReportStorage)(nil)

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) *ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ReportStorage) SaveReport(ctx context.Context, report *models.ReportRecord) error {
	if report.ID == "" {
		return fmt.Errorf("report ID is required")
	}

	if err := s.db.Store().Upsert(report.ID, report); err != nil {
		return models.WrapKind(models.ErrStorage, "failed to save report %s: %v", report.ID, err)
	}
	return nil
}

func (s *ReportStorage) GetReport(ctx context.Context, reportID string) (*models.ReportRecord, error) {
	var report models.ReportRecord
	if err := s.db.Store().Get(reportID, &report); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.WrapKind(models.ErrValidation, "report not found: %s", reportID)
		}
		return nil, models.WrapKind(models.ErrStorage, "failed to get report %s: %v", reportID, err)
	}
	return &report, nil
}

func (s *ReportStorage) ListReports(ctx context.Context, opts *interfaces.ReportListOptions) ([]*models.ReportRecord, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.Type != "" {
			query = query.And("Type").Eq(opts.Type)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var reports []models.ReportRecord
	if err := s.db.Store().Find(&reports, query); err != nil {
		return nil, models.WrapKind(models.ErrStorage, "failed to list reports: %v", err)
	}

	result := make([]*models.ReportRecord, len(reports))
	for i := range reports {
		result[i] = &reports[i]
	}
	return result, nil
}

func (s *ReportStorage) DeleteReport(ctx context.Context, reportID string) error {
	if err := s.db.Store().Delete(reportID, &models.ReportRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return models.WrapKind(models.ErrStorage, "failed to delete report %s: %v", reportID, err)
	}
	return nil
}

func (s *ReportStorage) GetReportsByStatus(ctx context.Context, status models.ReportStatus) ([]*models.ReportRecord, error) {
	var reports []models.ReportRecord
	if err := s.db.Store().Find(&reports, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, models.WrapKind(models.ErrStorage, "failed to query reports by status %s: %v", status, err)
	}

	result := make([]*models.ReportRecord, len(reports))
	for i := range reports {
		result[i] = &reports[i]
	}
	return result, nil
}

func (s *ReportStorage) SaveRecommendationSet(ctx context.Context, set *models.RecommendationSet) error {
	if set.ID == "" {
		return fmt.Errorf("recommendation set ID is required")
	}

	if err := s.db.Store().Upsert(set.ID, set); err != nil {
		return models.WrapKind(models.ErrStorage, "failed to save recommendation set %s: %v", set.ID, err)
	}
	return nil
}

func (s *ReportStorage) GetRecommendationSet(ctx context.Context, setID string) (*models.RecommendationSet, error) {
	var set models.RecommendationSet
	if err := s.db.Store().Get(setID, &set); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.WrapKind(models.ErrValidation, "recommendation set not found: %s", setID)
		}
		return nil, models.WrapKind(models.ErrStorage, "failed to get recommendation set %s: %v", setID, err)
	}
	return &set, nil
}
