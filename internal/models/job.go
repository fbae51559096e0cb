package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoMessage is returned when the queue is empty.
var ErrNoMessage = errors.New("no messages in queue")

// ArtifactKind distinguishes the two output forms of a report.
type ArtifactKind string

const (
	ArtifactKindMarkup    ArtifactKind = "markup"
	ArtifactKindPrintable ArtifactKind = "printable"
)

// Format is the requested output format of a generation job.
type Format string

const (
	FormatMarkup    Format = "markup"
	FormatPrintable Format = "printable"
	FormatBoth      Format = "both"
)

// IsValid returns true for a known format value.
func (f Format) IsValid() bool {
	return f == FormatMarkup || f == FormatPrintable || f == FormatBoth
}

// Kinds expands the format into the artifact kinds it covers.
func (f Format) Kinds() []ArtifactKind {
	switch f {
	case FormatMarkup:
		return []ArtifactKind{ArtifactKindMarkup}
	case FormatPrintable:
		return []ArtifactKind{ArtifactKindPrintable}
	case FormatBoth:
		return []ArtifactKind{ArtifactKindMarkup, ArtifactKindPrintable}
	}
	return nil
}

// ExecutionMode selects synchronous inline execution or queued execution.
type ExecutionMode string

const (
	ModeSync  ExecutionMode = "sync"
	ModeAsync ExecutionMode = "async"
)

// GenerationJob is the immutable work item sent to the queue. It is
// transient: the job exists only in the queue, the report record carries
// the durable state.
type GenerationJob struct {
	JobID      string        `json:"job_id"`
	ReportID   string        `json:"report_id"`
	Format     Format        `json:"format"`
	Mode       ExecutionMode `json:"mode"`
	Attempt    int           `json:"attempt"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// NewGenerationJob creates a first-attempt job for the given target.
func NewGenerationJob(reportID string, format Format, mode ExecutionMode) *GenerationJob {
	return &GenerationJob{
		JobID:      "job_" + uuid.New().String(),
		ReportID:   reportID,
		Format:     format,
		Mode:       mode,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NextAttempt returns a copy of the job for the following retry attempt.
func (j *GenerationJob) NextAttempt() *GenerationJob {
	next := *j
	next.Attempt++
	next.EnqueuedAt = time.Now().UTC()
	return &next
}

// RenderedArtifact is a byte payload produced by a rendering engine along
// with the storage-relative path it was written to.
type RenderedArtifact struct {
	Kind    ArtifactKind `json:"kind"`
	Bytes   []byte       `json:"-"`
	RelPath string       `json:"rel_path"`
}
