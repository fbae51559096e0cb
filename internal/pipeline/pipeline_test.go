package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/engine"
	"github.com/ternarybob/refero/internal/generator"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
	"github.com/ternarybob/refero/internal/render"
	"github.com/ternarybob/refero/internal/storage"
)

// failingEngine always fails with an engine startup error.
type failingEngine struct{}

func (e *failingEngine) RenderToBytes(ctx context.Context, doc *models.DocumentTree, kind models.ArtifactKind) ([]byte, error) {
	return nil, models.WrapKind(models.ErrEngineStartup, "engine resource unreachable")
}
func (e *failingEngine) Name() string    { return "failing" }
func (e *failingEngine) Shutdown() error { return nil }

// printableFailingEngine renders markup but fails every printable render.
type printableFailingEngine struct {
	inner interfaces.RenderEngine
}

func (e *printableFailingEngine) RenderToBytes(ctx context.Context, doc *models.DocumentTree, kind models.ArtifactKind) ([]byte, error) {
	if kind == models.ArtifactKindPrintable {
		return nil, models.WrapKind(models.ErrGeneration, "printable composition failed")
	}
	return e.inner.RenderToBytes(ctx, doc, kind)
}
func (e *printableFailingEngine) Name() string    { return "partial" }
func (e *printableFailingEngine) Shutdown() error { return nil }

type testPipeline struct {
	cfg        *common.Config
	storage    interfaces.StorageManager
	state      *StateMachine
	dispatcher *ReportDispatcher
	executor   *Executor
}

func newTestPipeline(t *testing.T, eng interfaces.RenderEngine) *testPipeline {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Storage.Artifacts.Dir = filepath.Join(t.TempDir(), "artifacts")
	cfg.Queue.PollInterval = "10ms"
	cfg.Queue.VisibilityTimeout = "500ms"
	cfg.Retry.BackoffBase = "1ms"
	cfg.Retry.BackoffCap = "10ms"
	cfg.Engine.Kind = "static"

	logger := common.GetLogger()

	manager, err := storage.NewStorageManager(logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	if eng == nil {
		eng = engine.NewStaticEngine(cfg.Engine, logger)
	}

	state := NewStateMachine(manager.ReportStorage(), cfg, logger)
	executor := NewExecutor(cfg, state, manager.ReportStorage(), manager.ArtifactStore(),
		generator.NewRegistry(cfg.Generator), render.NewRenderer(), eng, nil, logger)
	dispatcher := NewDispatcher(cfg, manager.ReportStorage(), manager.JobQueue(), state, executor, nil, logger)

	return &testPipeline{
		cfg:        cfg,
		storage:    manager,
		state:      state,
		dispatcher: dispatcher,
		executor:   executor,
	}
}

func (p *testPipeline) seed(t *testing.T, reportID string, reportType models.ReportType, records []models.RecommendationRecord) {
	t.Helper()
	ctx := context.Background()

	setID := "set_" + reportID
	require.NoError(t, p.storage.ReportStorage().SaveRecommendationSet(ctx, &models.RecommendationSet{
		ID:        setID,
		Records:   records,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, p.storage.ReportStorage().SaveReport(ctx, &models.ReportRecord{
		ID:          reportID,
		Type:        reportType,
		Status:      models.ReportStatusPending,
		SourceSetID: setID,
		CreatedAt:   time.Now().UTC(),
	}))
}

func sampleRecords() []models.RecommendationRecord {
	return []models.RecommendationRecord{
		{ID: "r1", Category: models.CategoryCost, Impact: models.ImpactHigh,
			Text: "Rightsize VM fleet", Resource: "vm-fleet-01",
			MonthlySavings: 1000, Currency: "USD", EffortHours: 8},
		{ID: "r2", Category: models.CategorySecurity, Impact: models.ImpactMedium,
			Text: "Rotate stale access keys", Resource: "iam-keys"},
	}
}

func TestSyncSubmit_CompletesWithBothArtifacts(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_sync", models.ReportTypeCost, sampleRecords())

	result, err := p.dispatcher.Submit(ctx, "rpt_sync", models.FormatBoth, models.ModeSync)
	require.NoError(t, err)
	require.NotNil(t, result.Report)

	assert.Equal(t, models.ReportStatusCompleted, result.Report.Status)
	assert.NotEmpty(t, result.Report.MarkupPath)
	assert.NotEmpty(t, result.Report.PrintablePath)
	assert.Empty(t, result.Report.LeaseOwner)

	// Round-trip: retrieval returns the stored bytes.
	markup, err := p.storage.ArtifactStore().Read(ctx, result.Report.MarkupPath)
	require.NoError(t, err)
	assert.Contains(t, string(markup), "<!DOCTYPE html>")

	printable, err := p.storage.ArtifactStore().Read(ctx, result.Report.PrintablePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(printable[:4]))
}

func TestSubmit_EmptySetRejected(t *testing.T) {
	p := newTestPipeline(t, nil)

	p.seed(t, "rpt_empty", models.ReportTypeSecurity, nil)

	_, err := p.dispatcher.Submit(context.Background(), "rpt_empty", models.FormatMarkup, models.ModeSync)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSubmit_MissingSetRejected(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	require.NoError(t, p.storage.ReportStorage().SaveReport(ctx, &models.ReportRecord{
		ID:          "rpt_nosrc",
		Type:        models.ReportTypeCost,
		Status:      models.ReportStatusPending,
		SourceSetID: "set_never_uploaded",
		CreatedAt:   time.Now().UTC(),
	}))

	_, err := p.dispatcher.Submit(ctx, "rpt_nosrc", models.FormatMarkup, models.ModeSync)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExecutor_SetEmptiedMidFlightCompletesEmptyState(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_drained", models.ReportTypeSecurity, sampleRecords())

	// The set shrinks to nothing after acceptance. Generators produce the
	// defined empty state rather than failing the job.
	require.NoError(t, p.storage.ReportStorage().SaveRecommendationSet(ctx, &models.RecommendationSet{
		ID:        "set_rpt_drained",
		CreatedAt: time.Now().UTC(),
	}))

	job := models.NewGenerationJob("rpt_drained", models.FormatMarkup, models.ModeSync)
	require.NoError(t, p.executor.Execute(ctx, job, "wrk_test"))

	report, err := p.storage.ReportStorage().GetReport(ctx, "rpt_drained")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, report.Status)

	markup, err := p.storage.ArtifactStore().Read(ctx, report.MarkupPath)
	require.NoError(t, err)
	assert.Contains(t, string(markup), "No recommendations")
}

func TestSubmit_UnknownReport(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, err := p.dispatcher.Submit(context.Background(), "rpt_ghost", models.FormatMarkup, models.ModeSync)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSubmit_InvalidFormat(t *testing.T) {
	p := newTestPipeline(t, nil)
	p.seed(t, "rpt_f", models.ReportTypeCost, sampleRecords())

	_, err := p.dispatcher.Submit(context.Background(), "rpt_f", models.Format("docx"), models.ModeSync)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAsyncSubmit_IdempotentDoubleSubmit(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_idem", models.ReportTypeExecutive, sampleRecords())

	first, err := p.dispatcher.Submit(ctx, "rpt_idem", models.FormatBoth, models.ModeAsync)
	require.NoError(t, err)
	require.NotEmpty(t, first.JobID)
	assert.Equal(t, "/api/reports/rpt_idem/status", first.StatusURL)

	// No worker is draining the queue, so the first job is still in flight.
	second, err := p.dispatcher.Submit(ctx, "rpt_idem", models.FormatBoth, models.ModeAsync)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)

	// Only one message made it to the queue.
	n, err := p.storage.JobQueue().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAsyncSubmit_WorkerPoolCompletes(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_async", models.ReportTypeOperational, sampleRecords())

	logger := common.GetLogger()
	pool := NewWorkerPool(p.cfg, p.storage.JobQueue(), p.executor, p.state, logger)
	pool.Start(ctx)
	defer pool.Stop()

	result, err := p.dispatcher.Submit(ctx, "rpt_async", models.FormatMarkup, models.ModeAsync)
	require.NoError(t, err)
	require.NotEmpty(t, result.JobID)

	require.Eventually(t, func() bool {
		status, err := p.dispatcher.Status(ctx, "rpt_async")
		return err == nil && status.Status == models.ReportStatusCompleted
	}, 10*time.Second, 25*time.Millisecond, "job never completed")

	status, err := p.dispatcher.Status(ctx, "rpt_async")
	require.NoError(t, err)
	assert.True(t, status.MarkupReady)
	assert.False(t, status.PrintableReady)
	assert.Empty(t, status.InFlightJobID)
}

func TestSyncSubmit_RetryBoundWithFailingEngine(t *testing.T) {
	p := newTestPipeline(t, &failingEngine{})
	ctx := context.Background()

	p.seed(t, "rpt_fail", models.ReportTypeDetailed, sampleRecords())

	result, err := p.dispatcher.Submit(ctx, "rpt_fail", models.FormatBoth, models.ModeSync)
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusFailed, result.Report.Status)
	assert.Equal(t, "engine_startup", result.Report.LastErrorKind)
	// Attempt cap of 3: the terminal attempt is number 3, so two retries.
	assert.Equal(t, p.cfg.Retry.MaxAttempts-1, result.Report.RetryCount)

	// Pointers stay unset, never partially populated.
	assert.Empty(t, result.Report.MarkupPath)
	assert.Empty(t, result.Report.PrintablePath)
}

func TestSyncSubmit_PartialFailureRetainsMarkup(t *testing.T) {
	logger := common.GetLogger()
	inner := engine.NewStaticEngine(common.NewDefaultConfig().Engine, logger)
	p := newTestPipeline(t, &printableFailingEngine{inner: inner})
	ctx := context.Background()

	p.seed(t, "rpt_partial", models.ReportTypeCost, sampleRecords())

	result, err := p.dispatcher.Submit(ctx, "rpt_partial", models.FormatBoth, models.ModeSync)
	require.NoError(t, err)

	// Markup stored before the printable stage failed: pointer retained.
	assert.Equal(t, models.ReportStatusFailed, result.Report.Status)
	assert.NotEmpty(t, result.Report.MarkupPath)
	assert.Empty(t, result.Report.PrintablePath)
	assert.Equal(t, "generation", result.Report.LastErrorKind)
	assert.Contains(t, result.Report.LastError, "printable")
}

func TestReclaimer_StaleHeartbeat(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_stale", models.ReportTypeCost, sampleRecords())

	// Simulate a crashed worker: processing with a heartbeat far in the past.
	report, err := p.storage.ReportStorage().GetReport(ctx, "rpt_stale")
	require.NoError(t, err)
	stale := time.Now().UTC().Add(-time.Hour)
	report.Status = models.ReportStatusProcessing
	report.LeaseOwner = "wrk_dead"
	report.LeaseFormat = string(models.FormatBoth)
	report.HeartbeatAt = &stale
	require.NoError(t, p.storage.ReportStorage().SaveReport(ctx, report))

	logger := common.GetLogger()
	reclaimer := NewReclaimer(p.cfg, p.storage.ReportStorage(), p.storage.ArtifactStore(), p.state, nil, logger)

	reclaimed := reclaimer.ReclaimStale(ctx)
	assert.Equal(t, 1, reclaimed)

	report, err = p.storage.ReportStorage().GetReport(ctx, "rpt_stale")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, report.Status)
	assert.Equal(t, "stale_worker", report.LastErrorKind)
	assert.Empty(t, report.LeaseOwner)

	// Retry-eligible after reclaim.
	assert.True(t, report.CanTransitionTo(models.ReportStatusProcessing))
}

func TestReclaimer_FreshHeartbeatUntouched(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_live", models.ReportTypeCost, sampleRecords())

	report, err := p.storage.ReportStorage().GetReport(ctx, "rpt_live")
	require.NoError(t, err)
	now := time.Now().UTC()
	report.Status = models.ReportStatusProcessing
	report.LeaseOwner = "wrk_live"
	report.HeartbeatAt = &now
	require.NoError(t, p.storage.ReportStorage().SaveReport(ctx, report))

	logger := common.GetLogger()
	reclaimer := NewReclaimer(p.cfg, p.storage.ReportStorage(), p.storage.ArtifactStore(), p.state, nil, logger)

	assert.Equal(t, 0, reclaimer.ReclaimStale(ctx))

	report, err = p.storage.ReportStorage().GetReport(ctx, "rpt_live")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, report.Status)
}

func TestRegeneration_ResetsRetryAndKeepsPointers(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_regen", models.ReportTypeCost, sampleRecords())

	first, err := p.dispatcher.Submit(ctx, "rpt_regen", models.FormatMarkup, models.ModeSync)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusCompleted, first.Report.Status)
	firstPath := first.Report.MarkupPath

	second, err := p.dispatcher.Submit(ctx, "rpt_regen", models.FormatMarkup, models.ModeSync)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusCompleted, second.Report.Status)

	// Regeneration writes a fresh path, never overwrites the old artifact.
	assert.NotEqual(t, firstPath, second.Report.MarkupPath)
	assert.Equal(t, 0, second.Report.RetryCount)
}

func TestStateMachine_Backoff(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Retry.BackoffBase = "2s"
	cfg.Retry.BackoffCap = "10s"
	sm := NewStateMachine(nil, cfg, common.GetLogger())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{8, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := sm.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestStateMachine_TransitionGuards(t *testing.T) {
	record := &models.ReportRecord{Status: models.ReportStatusCompleted}

	if record.CanTransitionTo(models.ReportStatusProcessing) {
		t.Error("completed must not move directly to processing")
	}
	if !record.CanTransitionTo(models.ReportStatusPending) {
		t.Error("completed must allow regeneration to pending")
	}

	record.Status = models.ReportStatusProcessing
	if record.CanTransitionTo(models.ReportStatusProcessing) {
		t.Error("processing must not re-enter processing")
	}
	if !record.CanTransitionTo(models.ReportStatusFailed) || !record.CanTransitionTo(models.ReportStatusCompleted) {
		t.Error("processing must reach both terminal states")
	}
}

func TestStateMachine_HeartbeatDoesNotEraseConcurrentWrites(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_race", models.ReportTypeCost, sampleRecords())

	job := models.NewGenerationJob("rpt_race", models.FormatBoth, models.ModeAsync)
	_, err := p.state.AcquireLease(ctx, job, "wrk_race")
	require.NoError(t, err)

	// Hammer heartbeats while pointer updates land on the same record. An
	// unserialized read-modify-write would let a heartbeat save a snapshot
	// taken before a pointer write and silently erase it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 400; i++ {
			if err := p.state.Heartbeat(ctx, "rpt_race", "wrk_race"); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 400; i++ {
		relPath := fmt.Sprintf("markup/rpt_race_%d.html", i)
		_, err := p.state.UpdateReport(ctx, "rpt_race", func(r *models.ReportRecord) error {
			r.MarkupPath = relPath
			return nil
		})
		require.NoError(t, err)

		report, err := p.storage.ReportStorage().GetReport(ctx, "rpt_race")
		require.NoError(t, err)
		require.Equal(t, relPath, report.MarkupPath, "pointer erased by concurrent heartbeat")
		require.Equal(t, models.ReportStatusProcessing, report.Status)
	}
	<-done

	// A terminal transition cannot be resurrected by a trailing heartbeat:
	// completing clears the lease, so the heartbeat is rejected as stale.
	require.NoError(t, p.state.Complete(ctx, "rpt_race"))
	err = p.state.Heartbeat(ctx, "rpt_race", "wrk_race")
	assert.ErrorIs(t, err, models.ErrStaleWorker)

	report, err := p.storage.ReportStorage().GetReport(ctx, "rpt_race")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, report.Status)
}

func TestStateMachine_RegistryRaceSafety(t *testing.T) {
	sm := NewStateMachine(nil, common.NewDefaultConfig(), common.GetLogger())

	jobID, registered := sm.Register("rpt_x", models.FormatBoth, "job_1")
	require.True(t, registered)
	require.Equal(t, "job_1", jobID)

	existing, registered := sm.Register("rpt_x", models.FormatBoth, "job_2")
	assert.False(t, registered)
	assert.Equal(t, "job_1", existing)

	// Wrong job cannot release the slot.
	sm.Release("rpt_x", models.FormatBoth, "job_2")
	if _, ok := sm.InFlightJob("rpt_x", models.FormatBoth); !ok {
		t.Fatal("slot released by non-owner")
	}

	sm.Release("rpt_x", models.FormatBoth, "job_1")
	if _, ok := sm.InFlightJob("rpt_x", models.FormatBoth); ok {
		t.Fatal("slot not released by owner")
	}

	// A different format is an independent slot.
	_, registered = sm.Register("rpt_x", models.FormatMarkup, "job_3")
	assert.True(t, registered)
}

func TestExecutor_ReportDeletedMidJob(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	p.seed(t, "rpt_del", models.ReportTypeCost, sampleRecords())

	job := models.NewGenerationJob("rpt_del", models.FormatMarkup, models.ModeSync)
	report, err := p.state.AcquireLease(ctx, job, "wrk_test")
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusProcessing, report.Status)

	require.NoError(t, p.storage.ReportStorage().DeleteReport(ctx, "rpt_del"))

	err = p.executor.checkpoint(ctx, job, "wrk_test")
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.True(t, errors.Is(err, models.ErrValidation))
}
