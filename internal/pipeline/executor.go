package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
	"github.com/ternarybob/refero/internal/storage/files"
)

// Executor drives one generation job through the full pipeline: generator,
// renderer, engine, artifact store, state machine. Shared by the worker pool
// and by synchronous dispatch, so both paths hold the same lease and follow
// the same transitions.
type Executor struct {
	cfg       *common.Config
	state     *StateMachine
	storage   interfaces.ReportStorage
	artifacts interfaces.ArtifactStore
	registry  interfaces.Generator
	renderer  interfaces.TemplateRenderer
	engine    interfaces.RenderEngine
	events    interfaces.EventService
	logger    arbor.ILogger
}

// NewExecutor wires the pipeline stages together
func NewExecutor(
	cfg *common.Config,
	state *StateMachine,
	storage interfaces.ReportStorage,
	artifacts interfaces.ArtifactStore,
	registry interfaces.Generator,
	renderer interfaces.TemplateRenderer,
	engine interfaces.RenderEngine,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Executor {
	return &Executor{
		cfg:       cfg,
		state:     state,
		storage:   storage,
		artifacts: artifacts,
		registry:  registry,
		renderer:  renderer,
		engine:    engine,
		events:    events,
		logger:    logger,
	}
}

// Execute runs one attempt under the job's wall-clock timeout. The returned
// error carries the kind sentinel the caller's retry decision keys off.
func (e *Executor) Execute(ctx context.Context, job *models.GenerationJob, workerID string) error {
	jobCtx, cancel := context.WithTimeout(ctx, e.cfg.Queue.GetJobTimeout())
	defer cancel()

	report, err := e.state.AcquireLease(jobCtx, job, workerID)
	if err != nil {
		return err
	}

	e.publish(interfaces.EventJobStarted, job, "")

	err = e.run(jobCtx, job, report, workerID)
	if err != nil {
		// A lapsed wall clock is a timeout kind regardless of which stage
		// it interrupted.
		if jobCtx.Err() == context.DeadlineExceeded {
			err = models.WrapKind(models.ErrEngineTimeout,
				"job exceeded wall-clock timeout %s", e.cfg.Queue.GetJobTimeout())
		}
		if failErr := e.state.Fail(context.WithoutCancel(jobCtx), job.ReportID, err); failErr != nil {
			e.logger.Error().Err(failErr).Str("report_id", job.ReportID).Msg("Failed to record job failure")
		}
		e.publish(interfaces.EventJobFailed, job, err.Error())
		return err
	}

	if err := e.state.Complete(jobCtx, job.ReportID); err != nil {
		return err
	}
	e.publish(interfaces.EventJobCompleted, job, "")
	return nil
}

// run performs the pipeline stages, checking for cancellation and external
// report deletion between each.
func (e *Executor) run(ctx context.Context, job *models.GenerationJob, report *models.ReportRecord, workerID string) error {
	set, err := e.storage.GetRecommendationSet(ctx, report.SourceSetID)
	if err != nil && !errors.Is(err, models.ErrValidation) {
		return err
	}
	// A missing source set generates the defined empty state rather than
	// failing: empty input is valid input.

	if err := e.checkpoint(ctx, job, workerID); err != nil {
		return err
	}

	model, err := e.registry.Build(report, set)
	if err != nil {
		return err
	}
	model.GeneratedAt = time.Now().UTC()

	doc := e.renderer.Render(model)

	if err := e.checkpoint(ctx, job, workerID); err != nil {
		return err
	}

	for _, kind := range job.Format.Kinds() {
		data, err := e.engine.RenderToBytes(ctx, doc, kind)
		if err != nil {
			return err
		}

		relPath := files.ArtifactPath(kind, report.ID, report.Type)
		if err := e.artifacts.Write(ctx, relPath, data); err != nil {
			return err
		}

		// Repoint immediately after a successful store. A later kind's
		// failure leaves this artifact available, per the partial-failure
		// contract for format=both.
		if err := e.setPointer(ctx, report.ID, kind, relPath); err != nil {
			return err
		}

		e.logger.Info().
			Str("report_id", report.ID).
			Str("kind", string(kind)).
			Str("path", relPath).
			Int("size", len(data)).
			Str("engine", e.engine.Name()).
			Msg("Artifact generated")

		if err := e.checkpoint(ctx, job, workerID); err != nil {
			return err
		}
	}

	return nil
}

// checkpoint is the cooperative cancellation point between pipeline stages.
// It also detects a report deleted externally mid-job.
func (e *Executor) checkpoint(ctx context.Context, job *models.GenerationJob, workerID string) error {
	if err := ctx.Err(); err != nil {
		return models.WrapKind(models.ErrEngineTimeout, "job cancelled: %v", err)
	}

	report, err := e.storage.GetReport(ctx, job.ReportID)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return models.WrapKind(models.ErrValidation,
				"report %s deleted during generation", job.ReportID)
		}
		return err
	}
	if report.LeaseOwner != workerID {
		return models.WrapKind(models.ErrStaleWorker,
			"lease for report %s reassigned to %s", job.ReportID, report.LeaseOwner)
	}
	return nil
}

// setPointer persists one artifact pointer on the report record. The write
// goes through the state machine's per-report lock so a concurrent heartbeat
// cannot save a snapshot taken before the pointer landed. The prior path, if
// any, is left for the garbage collection sweep.
func (e *Executor) setPointer(ctx context.Context, reportID string, kind models.ArtifactKind, relPath string) error {
	_, err := e.state.UpdateReport(ctx, reportID, func(report *models.ReportRecord) error {
		switch kind {
		case models.ArtifactKindMarkup:
			report.MarkupPath = relPath
		case models.ArtifactKindPrintable:
			report.PrintablePath = relPath
		}
		return nil
	})
	return err
}

func (e *Executor) publish(eventType interfaces.EventType, job *models.GenerationJob, errMsg string) {
	if e.events == nil {
		return
	}
	payload := map[string]interface{}{
		"job_id":    job.JobID,
		"report_id": job.ReportID,
		"format":    string(job.Format),
		"attempt":   job.Attempt,
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	e.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload})
}
