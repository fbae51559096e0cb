package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// StateMachine guards report lifecycle transitions. The per-(report, format)
// lease is held for a job's full duration: durable lease fields live on the
// report record for crash recovery, while the in-process registry gives
// same-process submissions (sync and async alike) a race-free idempotence
// check and the in-flight job reference.
type StateMachine struct {
	storage interfaces.ReportStorage
	cfg     *common.Config
	logger  arbor.ILogger

	mu         sync.Mutex
	inFlight   map[string]string // lease key -> job ID
	recordLock map[string]*sync.Mutex
}

// NewStateMachine creates the job state machine
func NewStateMachine(storage interfaces.ReportStorage, cfg *common.Config, logger arbor.ILogger) *StateMachine {
	return &StateMachine{
		storage:    storage,
		cfg:        cfg,
		logger:     logger,
		inFlight:   make(map[string]string),
		recordLock: make(map[string]*sync.Mutex),
	}
}

// errSkipSave lets an UpdateReport mutation end the update without writing.
var errSkipSave = errors.New("skip save")

func (sm *StateMachine) reportLock(reportID string) *sync.Mutex {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	lock, ok := sm.recordLock[reportID]
	if !ok {
		lock = &sync.Mutex{}
		sm.recordLock[reportID] = lock
	}
	return lock
}

// UpdateReport applies mutate to the current record and saves it under the
// per-report write lock. Every writer of a report record goes through here:
// an unguarded read-modify-write racing a heartbeat would silently undo
// whatever the other writer stored between its read and save.
func (sm *StateMachine) UpdateReport(ctx context.Context, reportID string, mutate func(*models.ReportRecord) error) (*models.ReportRecord, error) {
	lock := sm.reportLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	report, err := sm.storage.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if err := mutate(report); err != nil {
		if errors.Is(err, errSkipSave) {
			return report, nil
		}
		return nil, err
	}

	if err := sm.storage.SaveReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func leaseKey(reportID string, format models.Format) string {
	return reportID + "/" + string(format)
}

// InFlightJob returns the job currently holding the lease for the target, if
// any.
func (sm *StateMachine) InFlightJob(reportID string, format models.Format) (string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	jobID, ok := sm.inFlight[leaseKey(reportID, format)]
	return jobID, ok
}

// InFlightJobForReport returns any in-flight job for the report regardless of
// format. Used by the status read path.
func (sm *StateMachine) InFlightJobForReport(reportID string) (string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for key, jobID := range sm.inFlight {
		if len(key) > len(reportID) && key[:len(reportID)] == reportID && key[len(reportID)] == '/' {
			return jobID, true
		}
	}
	return "", false
}

// Register claims the in-process lease slot for a job before it is enqueued.
// Returns the already-registered job ID when the slot is taken, which is the
// dispatcher's idempotent double-submit answer.
func (sm *StateMachine) Register(reportID string, format models.Format, jobID string) (string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := leaseKey(reportID, format)
	if existing, ok := sm.inFlight[key]; ok {
		return existing, false
	}
	sm.inFlight[key] = jobID
	return jobID, true
}

// Release drops the in-process lease slot. Only the registered job may
// release it; a reclaimed job's late release must not evict its successor.
func (sm *StateMachine) Release(reportID string, format models.Format, jobID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := leaseKey(reportID, format)
	if sm.inFlight[key] == jobID {
		delete(sm.inFlight, key)
	}
}

// ForceRelease evicts whatever job holds the in-process slot. Used by the
// reclaimer after the durable lease is declared stale.
func (sm *StateMachine) ForceRelease(reportID string, format models.Format) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.inFlight, leaseKey(reportID, format))
}

// AcquireLease transitions the report to processing on behalf of a worker.
// Only pending and failed records are eligible.
func (sm *StateMachine) AcquireLease(ctx context.Context, job *models.GenerationJob, workerID string) (*models.ReportRecord, error) {
	report, err := sm.UpdateReport(ctx, job.ReportID, func(report *models.ReportRecord) error {
		if !report.CanTransitionTo(models.ReportStatusProcessing) {
			return models.WrapKind(models.ErrValidation,
				"report %s cannot start processing from status %s", report.ID, report.Status)
		}

		now := time.Now().UTC()
		report.Status = models.ReportStatusProcessing
		report.LeaseOwner = workerID
		report.LeaseFormat = string(job.Format)
		report.HeartbeatAt = &now
		report.LastAttemptAt = &now
		report.RetryCount = job.Attempt - 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	sm.logger.Debug().
		Str("report_id", report.ID).
		Str("job_id", job.JobID).
		Str("worker_id", workerID).
		Int("attempt", job.Attempt).
		Msg("Lease acquired")

	return report, nil
}

// Heartbeat refreshes the durable lease timestamp so the reclaimer can tell
// a live worker from a dead one.
func (sm *StateMachine) Heartbeat(ctx context.Context, reportID, workerID string) error {
	_, err := sm.UpdateReport(ctx, reportID, func(report *models.ReportRecord) error {
		if report.LeaseOwner != workerID {
			return models.WrapKind(models.ErrStaleWorker,
				"lease for report %s no longer owned by %s", reportID, workerID)
		}

		now := time.Now().UTC()
		report.HeartbeatAt = &now
		return nil
	})
	return err
}

// Complete terminalizes a successful job and clears the lease.
func (sm *StateMachine) Complete(ctx context.Context, reportID string) error {
	_, err := sm.UpdateReport(ctx, reportID, func(report *models.ReportRecord) error {
		if !report.CanTransitionTo(models.ReportStatusCompleted) {
			return models.WrapKind(models.ErrValidation,
				"report %s cannot complete from status %s", reportID, report.Status)
		}

		now := time.Now().UTC()
		report.Status = models.ReportStatusCompleted
		report.CompletedAt = &now
		report.LastErrorKind = ""
		report.LastError = ""
		clearLease(report)
		return nil
	})
	return err
}

// Fail terminalizes or retry-parks a failed job, recording the error kind and
// message for operators.
func (sm *StateMachine) Fail(ctx context.Context, reportID string, cause error) error {
	_, err := sm.UpdateReport(ctx, reportID, func(report *models.ReportRecord) error {
		if report.Status != models.ReportStatusProcessing {
			// Lease already reclaimed or report reset. Nothing to record.
			return errSkipSave
		}

		report.Status = models.ReportStatusFailed
		report.LastErrorKind = models.ErrorKind(cause)
		report.LastError = cause.Error()
		clearLease(report)
		return nil
	})
	return err
}

// Regenerate resets a terminal report back to pending for a fresh run. The
// retry counter resets; existing artifact pointers stay until the new
// generation stores replacements.
func (sm *StateMachine) Regenerate(ctx context.Context, reportID string) (*models.ReportRecord, error) {
	return sm.UpdateReport(ctx, reportID, func(report *models.ReportRecord) error {
		if !report.CanTransitionTo(models.ReportStatusPending) {
			return models.WrapKind(models.ErrValidation,
				"report %s cannot be regenerated from status %s", reportID, report.Status)
		}

		report.Status = models.ReportStatusPending
		report.RetryCount = 0
		report.LastErrorKind = ""
		report.LastError = ""
		clearLease(report)
		return nil
	})
}

// Backoff computes the delay before the given attempt number runs, doubling
// from the base and clamped at the cap.
func (sm *StateMachine) Backoff(attempt int) time.Duration {
	base := sm.cfg.Retry.GetBackoffBase()
	cap := sm.cfg.Retry.GetBackoffCap()

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

// MaxAttempts returns the configured attempt cap.
func (sm *StateMachine) MaxAttempts() int {
	if sm.cfg.Retry.MaxAttempts <= 0 {
		return 3
	}
	return sm.cfg.Retry.MaxAttempts
}

func clearLease(report *models.ReportRecord) {
	report.LeaseOwner = ""
	report.LeaseFormat = ""
	report.HeartbeatAt = nil
}
