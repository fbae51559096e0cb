package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// artifactSweeper is the optional garbage collection capability of an
// artifact store.
type artifactSweeper interface {
	Sweep(ctx context.Context, referenced map[string]struct{}, minAge time.Duration) (int, error)
}

// Reclaimer is the cron-scheduled self-healing sweep. It returns processing
// reports with lapsed heartbeats to failed so their leases free up, and it
// collects artifact files orphaned by regeneration.
type Reclaimer struct {
	cfg       *common.Config
	storage   interfaces.ReportStorage
	artifacts interfaces.ArtifactStore
	state     *StateMachine
	events    interfaces.EventService
	logger    arbor.ILogger
	cron      *cron.Cron
}

// NewReclaimer creates the stale-lease reclaimer
func NewReclaimer(
	cfg *common.Config,
	storage interfaces.ReportStorage,
	artifacts interfaces.ArtifactStore,
	state *StateMachine,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Reclaimer {
	return &Reclaimer{
		cfg:       cfg,
		storage:   storage,
		artifacts: artifacts,
		state:     state,
		events:    events,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the sweep.
func (r *Reclaimer) Start() error {
	schedule := r.cfg.Queue.ReclaimSchedule
	if schedule == "" {
		schedule = "*/1 * * * *"
	}

	if _, err := r.cron.AddFunc(schedule, r.sweep); err != nil {
		return fmt.Errorf("failed to schedule reclaim sweep: %w", err)
	}

	r.cron.Start()
	r.logger.Info().Str("schedule", schedule).Msg("Stale-lease reclaimer started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reclaimer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Reclaimer) sweep() {
	defer common.RecoverWithCrashFile()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	r.ReclaimStale(ctx)
	r.collectGarbage(ctx)
}

// ReclaimStale fails every processing report whose heartbeat has lapsed past
// twice the visibility timeout. The report becomes retry-eligible instead of
// hanging in processing forever.
func (r *Reclaimer) ReclaimStale(ctx context.Context) int {
	reports, err := r.storage.GetReportsByStatus(ctx, models.ReportStatusProcessing)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to query processing reports")
		return 0
	}

	bound := 2 * r.cfg.Queue.GetVisibilityTimeout()
	cutoff := time.Now().UTC().Add(-bound)
	reclaimed := 0

	for _, report := range reports {
		if report.HeartbeatAt != nil && report.HeartbeatAt.After(cutoff) {
			continue
		}

		cause := models.WrapKind(models.ErrStaleWorker,
			"worker %s stopped heartbeating", report.LeaseOwner)
		if err := r.state.Fail(ctx, report.ID, cause); err != nil {
			r.logger.Error().Err(err).Str("report_id", report.ID).Msg("Failed to reclaim stale lease")
			continue
		}

		r.state.ForceRelease(report.ID, models.Format(report.LeaseFormat))
		reclaimed++

		r.logger.Warn().
			Str("report_id", report.ID).
			Str("lease_owner", report.LeaseOwner).
			Msg("Stale lease reclaimed")

		if r.events != nil {
			r.events.Publish(ctx, interfaces.Event{
				Type: interfaces.EventJobReclaimed,
				Payload: map[string]interface{}{
					"report_id":    report.ID,
					"lease_owner":  report.LeaseOwner,
					"lease_format": report.LeaseFormat,
				},
			})
		}
	}

	return reclaimed
}

// collectGarbage removes artifact files no record points at anymore.
func (r *Reclaimer) collectGarbage(ctx context.Context) {
	sweeper, ok := r.artifacts.(artifactSweeper)
	if !ok {
		return
	}

	reports, err := r.storage.ListReports(ctx, nil)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list reports for artifact sweep")
		return
	}

	referenced := make(map[string]struct{}, len(reports)*2)
	for _, report := range reports {
		if report.MarkupPath != "" {
			referenced[report.MarkupPath] = struct{}{}
		}
		if report.PrintablePath != "" {
			referenced[report.PrintablePath] = struct{}{}
		}
	}

	// An hour of grace keeps the sweep from racing a write that has stored
	// bytes but not yet repointed the record.
	if _, err := sweeper.Sweep(ctx, referenced, time.Hour); err != nil {
		r.logger.Error().Err(err).Msg("Artifact sweep failed")
	}
}
