package interfaces

import (
	"context"

	"github.com/ternarybob/refero/internal/models"
)

// ReportStorage persists report records and their source recommendation sets.
type ReportStorage interface {
	SaveReport(ctx context.Context, report *models.ReportRecord) error
	GetReport(ctx context.Context, reportID string) (*models.ReportRecord, error)
	ListReports(ctx context.Context, opts *ReportListOptions) ([]*models.ReportRecord, error)
	DeleteReport(ctx context.Context, reportID string) error
	GetReportsByStatus(ctx context.Context, status models.ReportStatus) ([]*models.ReportRecord, error)

	SaveRecommendationSet(ctx context.Context, set *models.RecommendationSet) error
	GetRecommendationSet(ctx context.Context, setID string) (*models.RecommendationSet, error)
}

// ReportListOptions filters and pages report listings.
type ReportListOptions struct {
	Status models.ReportStatus
	Type   models.ReportType
	Limit  int
	Offset int
}

// ArtifactStore persists rendered artifact bytes under storage-relative
// paths. Paths are write-once: regeneration writes a fresh path and only
// then repoints the report record.
type ArtifactStore interface {
	Write(ctx context.Context, relPath string, data []byte) error
	Read(ctx context.Context, relPath string) ([]byte, error)
	Exists(ctx context.Context, relPath string) (bool, error)
	Delete(ctx context.Context, relPath string) error
}

// StorageManager bundles the stores and owns the underlying connections.
type StorageManager interface {
	ReportStorage() ReportStorage
	ArtifactStore() ArtifactStore
	JobQueue() JobQueue
	Close() error
}
