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

// WorkerPool drains the durable queue with bounded concurrency. Each worker
// polls, executes one job at a time, and heartbeats the visibility window
// while the job is in flight.
type WorkerPool struct {
	cfg      *common.Config
	queue    interfaces.JobQueue
	executor *Executor
	state    *StateMachine
	logger   arbor.ILogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates the worker pool
func NewWorkerPool(cfg *common.Config, queue interfaces.JobQueue, executor *Executor, state *StateMachine, logger arbor.ILogger) *WorkerPool {
	return &WorkerPool{
		cfg:      cfg,
		queue:    queue,
		executor: executor,
		state:    state,
		logger:   logger,
	}
}

// Start launches the configured number of workers.
func (p *WorkerPool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	concurrency := p.cfg.Queue.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	p.logger.Info().
		Int("workers", concurrency).
		Str("poll_interval", p.cfg.Queue.PollInterval).
		Msg("Starting worker pool")

	for i := 0; i < concurrency; i++ {
		workerID := common.NewWorkerID()
		p.wg.Add(1)

		// Stagger startup so workers do not poll in lockstep.
		stagger := time.Duration(i) * 100 * time.Millisecond

		go func(workerID string, stagger time.Duration) {
			defer p.wg.Done()
			defer common.RecoverWithCrashFile()

			select {
			case <-time.After(stagger):
			case <-runCtx.Done():
				return
			}
			p.workerLoop(runCtx, workerID)
		}(workerID, stagger)
	}
}

// Stop cancels all workers and waits for in-flight jobs to wind down.
func (p *WorkerPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

func (p *WorkerPool) workerLoop(ctx context.Context, workerID string) {
	ticker := time.NewTicker(p.cfg.Queue.GetPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drainOnce(ctx, workerID)
		}
	}
}

// drainOnce processes queue messages until the queue is empty or the pool is
// stopped.
func (p *WorkerPool) drainOnce(ctx context.Context, workerID string) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, deleteFn, err := p.queue.Receive(ctx)
		if err != nil {
			if !errors.Is(err, models.ErrNoMessage) {
				p.logger.Error().Err(err).Str("worker_id", workerID).Msg("Queue receive failed")
			}
			return
		}

		p.processJob(ctx, workerID, job, deleteFn)
	}
}

func (p *WorkerPool) processJob(ctx context.Context, workerID string, job *models.GenerationJob, deleteFn func() error) {
	defer func() {
		if r := recover(); r != nil {
			common.WriteCrashFile(r, common.GetStackTrace())
			p.logger.Error().
				Str("worker_id", workerID).
				Str("job_id", job.JobID).
				Msg("Worker panicked, job left to visibility redelivery")
		}
	}()

	p.logger.Debug().
		Str("worker_id", workerID).
		Str("job_id", job.JobID).
		Str("report_id", job.ReportID).
		Int("attempt", job.Attempt).
		Msg("Processing job")

	// Heartbeat loop: extends queue visibility and refreshes the durable
	// lease timestamp while the job runs.
	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go p.heartbeat(hbCtx, workerID, job)

	err := p.executor.Execute(ctx, job, workerID)
	hbCancel()

	if err == nil {
		p.ack(job, deleteFn)
		p.state.Release(job.ReportID, job.Format, job.JobID)
		return
	}

	if models.IsRetryable(err) && job.Attempt < p.state.MaxAttempts() {
		next := job.NextAttempt()
		delay := p.state.Backoff(next.Attempt)

		p.logger.Warn().
			Err(err).
			Str("job_id", job.JobID).
			Str("report_id", job.ReportID).
			Int("next_attempt", next.Attempt).
			Str("delay", delay.String()).
			Msg("Job failed, scheduling retry")

		p.ack(job, deleteFn)
		if enqErr := p.queue.EnqueueWithDelay(ctx, next, delay); enqErr != nil {
			p.logger.Error().Err(enqErr).Str("job_id", job.JobID).Msg("Failed to enqueue retry")
			p.state.Release(job.ReportID, job.Format, job.JobID)
		}
		return
	}

	p.logger.Error().
		Err(err).
		Str("job_id", job.JobID).
		Str("report_id", job.ReportID).
		Int("attempt", job.Attempt).
		Msg("Job terminally failed")

	p.ack(job, deleteFn)
	p.state.Release(job.ReportID, job.Format, job.JobID)
}

func (p *WorkerPool) ack(job *models.GenerationJob, deleteFn func() error) {
	if err := deleteFn(); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to ack queue message")
	}
}

func (p *WorkerPool) heartbeat(ctx context.Context, workerID string, job *models.GenerationJob) {
	interval := p.cfg.Queue.GetVisibilityTimeout() / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.Extend(ctx, job.JobID, p.cfg.Queue.GetVisibilityTimeout()); err != nil {
				p.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to extend visibility")
			}
			if err := p.state.Heartbeat(ctx, job.ReportID, workerID); err != nil {
				p.logger.Warn().Err(err).Str("report_id", job.ReportID).Msg("Heartbeat rejected")
				return
			}
		}
	}
}
