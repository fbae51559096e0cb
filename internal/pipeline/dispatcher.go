package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// ReportDispatcher is the pipeline entry point: it validates eligibility,
// decides inline versus queued execution, and answers status polls.
type ReportDispatcher struct {
	cfg      *common.Config
	storage  interfaces.ReportStorage
	queue    interfaces.JobQueue
	state    *StateMachine
	executor *Executor
	events   interfaces.EventService
	logger   arbor.ILogger
}

var _ interfaces.Dispatcher = (*ReportDispatcher)(nil)

// NewDispatcher creates the dispatcher
func NewDispatcher(
	cfg *common.Config,
	storage interfaces.ReportStorage,
	queue interfaces.JobQueue,
	state *StateMachine,
	executor *Executor,
	events interfaces.EventService,
	logger arbor.ILogger,
) *ReportDispatcher {
	return &ReportDispatcher{
		cfg:      cfg,
		storage:  storage,
		queue:    queue,
		state:    state,
		executor: executor,
		events:   events,
		logger:   logger,
	}
}

// Submit accepts a generation request. Submitting while a job for the same
// (report, format) is in flight returns the existing job reference instead
// of creating a duplicate.
func (d *ReportDispatcher) Submit(ctx context.Context, reportID string, format models.Format, mode models.ExecutionMode) (*interfaces.SubmitResult, error) {
	if !format.IsValid() {
		return nil, models.WrapKind(models.ErrValidation, "invalid format %q", format)
	}
	if mode != models.ModeSync && mode != models.ModeAsync {
		return nil, models.WrapKind(models.ErrValidation, "invalid mode %q", mode)
	}

	report, err := d.storage.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	// Eligibility: a report without a non-empty recommendation set is not
	// accepted. Generators stay empty-safe for sets emptied mid-job, but a
	// submission against a missing or empty set is a caller error.
	set, err := d.storage.GetRecommendationSet(ctx, report.SourceSetID)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return nil, models.WrapKind(models.ErrValidation,
				"report %s has no recommendation set %s", reportID, report.SourceSetID)
		}
		return nil, err
	}
	if set.IsEmpty() {
		return nil, models.WrapKind(models.ErrValidation,
			"recommendation set %s for report %s is empty", report.SourceSetID, reportID)
	}

	// Idempotent double-submit: hand back the in-flight reference.
	if jobID, ok := d.state.InFlightJob(reportID, format); ok {
		return &interfaces.SubmitResult{
			JobID:     jobID,
			StatusURL: statusURL(reportID),
		}, nil
	}

	// A terminal record is regenerated: reset to pending with a fresh retry
	// budget. Existing artifact pointers survive until new artifacts land.
	if report.Status == models.ReportStatusCompleted || report.Status == models.ReportStatusFailed {
		if report, err = d.state.Regenerate(ctx, reportID); err != nil {
			return nil, err
		}
	}

	if report.Status == models.ReportStatusProcessing {
		// Processing without a registry entry means another process or a
		// crashed worker owns the lease. The reclaimer will free it.
		return nil, models.WrapKind(models.ErrValidation,
			"report %s is already processing", reportID)
	}

	job := models.NewGenerationJob(reportID, format, mode)
	if existing, registered := d.state.Register(reportID, format, job.JobID); !registered {
		return &interfaces.SubmitResult{
			JobID:     existing,
			StatusURL: statusURL(reportID),
		}, nil
	}

	d.publishCreated(job)

	if mode == models.ModeSync {
		return d.runInline(ctx, job)
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		d.state.Release(reportID, format, job.JobID)
		return nil, models.WrapKind(models.ErrStorage, "failed to enqueue job: %v", err)
	}

	d.logger.Info().
		Str("job_id", job.JobID).
		Str("report_id", reportID).
		Str("format", string(format)).
		Msg("Job enqueued")

	return &interfaces.SubmitResult{
		JobID:     job.JobID,
		StatusURL: statusURL(reportID),
	}, nil
}

// runInline executes the job on the calling goroutine, retrying retryable
// failures up to the attempt cap, and returns the terminal record.
func (d *ReportDispatcher) runInline(ctx context.Context, job *models.GenerationJob) (*interfaces.SubmitResult, error) {
	defer d.state.Release(job.ReportID, job.Format, job.JobID)

	workerID := common.NewWorkerID()
	current := job

	for {
		err := d.executor.Execute(ctx, current, workerID)
		if err == nil {
			break
		}

		if !models.IsRetryable(err) || current.Attempt >= d.state.MaxAttempts() {
			break
		}

		current = current.NextAttempt()
		select {
		case <-time.After(d.state.Backoff(current.Attempt)):
		case <-ctx.Done():
			return nil, models.WrapKind(models.ErrEngineTimeout, "submission cancelled: %v", ctx.Err())
		}
	}

	report, err := d.storage.GetReport(ctx, job.ReportID)
	if err != nil {
		return nil, err
	}

	return &interfaces.SubmitResult{
		JobID:  current.JobID,
		Report: report,
	}, nil
}

// Status answers the status-polling read path.
func (d *ReportDispatcher) Status(ctx context.Context, reportID string) (*interfaces.StatusResult, error) {
	report, err := d.storage.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	result := &interfaces.StatusResult{
		ReportID:       report.ID,
		Status:         report.Status,
		RetryCount:     report.RetryCount,
		LastErrorKind:  report.LastErrorKind,
		LastError:      report.LastError,
		MarkupReady:    report.HasArtifact(models.ArtifactKindMarkup),
		PrintableReady: report.HasArtifact(models.ArtifactKindPrintable),
	}
	if jobID, ok := d.state.InFlightJobForReport(reportID); ok {
		result.InFlightJobID = jobID
	}
	return result, nil
}

func (d *ReportDispatcher) publishCreated(job *models.GenerationJob) {
	if d.events == nil {
		return
	}
	d.events.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventJobCreated,
		Payload: map[string]interface{}{
			"job_id":    job.JobID,
			"report_id": job.ReportID,
			"format":    string(job.Format),
			"mode":      string(job.Mode),
		},
	})
}

func statusURL(reportID string) string {
	return fmt.Sprintf("/api/reports/%s/status", reportID)
}
