package models

import "time"

// ReportType identifies which content generator produces the report model.
type ReportType string

const (
	ReportTypeDetailed    ReportType = "detailed"
	ReportTypeExecutive   ReportType = "executive"
	ReportTypeCost        ReportType = "cost"
	ReportTypeSecurity    ReportType = "security"
	ReportTypeOperational ReportType = "operational"
)

// ReportTypes lists all known report types in generation order.
var ReportTypes = []ReportType{
	ReportTypeDetailed,
	ReportTypeExecutive,
	ReportTypeCost,
	ReportTypeSecurity,
	ReportTypeOperational,
}

// IsValid returns true if the report type is one of the known generators.
func (t ReportType) IsValid() bool {
	switch t {
	case ReportTypeDetailed, ReportTypeExecutive, ReportTypeCost, ReportTypeSecurity, ReportTypeOperational:
		return true
	}
	return false
}

// ReportStatus is the lifecycle status of a report record.
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// ReportRecord is the persisted state of one report across its lifecycle.
// Artifact pointers are storage-relative paths, never absolute filesystem
// paths, and are only set after the corresponding bytes are fully stored.
type ReportRecord struct {
	ID          string       `json:"id" badgerhold:"key"`
	Type        ReportType   `json:"type"`
	Status      ReportStatus `json:"status"`
	SourceSetID string       `json:"source_set_id"`

	// Artifact pointers, relative to the artifact store root. Empty when unset.
	MarkupPath    string `json:"markup_path,omitempty"`
	PrintablePath string `json:"printable_path,omitempty"`

	RetryCount    int    `json:"retry_count"`
	LastErrorKind string `json:"last_error_kind,omitempty"`
	LastError     string `json:"last_error,omitempty"`

	// Lease fields used by the job state machine. A record in processing
	// state without a recent heartbeat is reclaimable as stale.
	LeaseOwner  string     `json:"lease_owner,omitempty"`
	LeaseFormat string     `json:"lease_format,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CanTransitionTo reports whether the record may move to the given status.
// Processing is only reachable from pending or failed (retry); completed is
// terminal unless explicitly regenerated.
func (r *ReportRecord) CanTransitionTo(next ReportStatus) bool {
	switch next {
	case ReportStatusProcessing:
		return r.Status == ReportStatusPending || r.Status == ReportStatusFailed
	case ReportStatusCompleted, ReportStatusFailed:
		return r.Status == ReportStatusProcessing
	case ReportStatusPending:
		// Regeneration resets a terminal record back to pending.
		return r.Status == ReportStatusCompleted || r.Status == ReportStatusFailed
	}
	return false
}

// HasArtifact returns true if the pointer for the given kind is set.
func (r *ReportRecord) HasArtifact(kind ArtifactKind) bool {
	switch kind {
	case ArtifactKindMarkup:
		return r.MarkupPath != ""
	case ArtifactKindPrintable:
		return r.PrintablePath != ""
	}
	return false
}
