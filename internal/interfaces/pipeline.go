package interfaces

import (
	"context"

	"github.com/ternarybob/refero/internal/models"
)

// Generator builds a report model from a recommendation set. Implementations
// are pure: no I/O, deterministic given identical input, and must return a
// valid empty-state model for an empty set.
type Generator interface {
	Build(report *models.ReportRecord, set *models.RecommendationSet) (*models.ReportModel, error)
}

// TemplateRenderer merges a report model into a document tree. Stateless.
type TemplateRenderer interface {
	Render(model *models.ReportModel) *models.DocumentTree
}

// RenderEngine converts a document tree into final artifact bytes. The two
// strategies (browser, static) expose identical semantics so callers stay
// engine-agnostic.
type RenderEngine interface {
	RenderToBytes(ctx context.Context, doc *models.DocumentTree, kind models.ArtifactKind) ([]byte, error)
	Name() string
	Shutdown() error
}

// Dispatcher is the pipeline entry point.
type Dispatcher interface {
	Submit(ctx context.Context, reportID string, format models.Format, mode models.ExecutionMode) (*SubmitResult, error)
	Status(ctx context.Context, reportID string) (*StatusResult, error)
}

// SubmitResult is the dispatcher's answer to a submission: either an inline
// terminal status (sync) or a job reference (async).
type SubmitResult struct {
	JobID     string               `json:"job_id,omitempty"`
	StatusURL string               `json:"status_url,omitempty"`
	Report    *models.ReportRecord `json:"report,omitempty"`
}

// StatusResult is the status-polling read path payload.
type StatusResult struct {
	ReportID       string              `json:"report_id"`
	Status         models.ReportStatus `json:"status"`
	RetryCount     int                 `json:"retry_count"`
	LastErrorKind  string              `json:"last_error_kind,omitempty"`
	LastError      string              `json:"last_error,omitempty"`
	MarkupReady    bool                `json:"markup_ready"`
	PrintableReady bool                `json:"printable_ready"`
	InFlightJobID  string              `json:"in_flight_job_id,omitempty"`
}
