package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/engine"
	"github.com/ternarybob/refero/internal/generator"
	"github.com/ternarybob/refero/internal/handlers"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/pipeline"
	"github.com/ternarybob/refero/internal/render"
	"github.com/ternarybob/refero/internal/services/events"
	"github.com/ternarybob/refero/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	StorageManager interfaces.StorageManager
	EventService   *events.Service

	// Pipeline components
	Engine     interfaces.RenderEngine
	Registry   *generator.Registry
	Renderer   *render.Renderer
	State      *pipeline.StateMachine
	Executor   *pipeline.Executor
	Dispatcher *pipeline.ReportDispatcher
	WorkerPool *pipeline.WorkerPool
	Reclaimer  *pipeline.Reclaimer

	// HTTP handlers
	ReportHandler *handlers.ReportHandler
	StatusHandler *handlers.StatusHandler
	WSHandler     *handlers.WebSocketHandler
}

// New creates the application, wiring storage, pipeline, and handlers.
// Background workers are not started until Start is called.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	storageManager, err := storage.NewStorageManager(logger, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)

	if err := app.initPipeline(); err != nil {
		storageManager.Close()
		cancel()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("engine", app.Engine.Name()).
		Int("worker_concurrency", cfg.Queue.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

// initPipeline builds the generation pipeline from storage up.
func (a *App) initPipeline() error {
	renderEngine, err := engine.New(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create render engine: %w", err)
	}
	a.Engine = renderEngine

	a.Registry = generator.NewRegistry(a.Config.Generator)
	a.Renderer = render.NewRenderer()

	a.State = pipeline.NewStateMachine(a.StorageManager.ReportStorage(), a.Config, a.Logger)

	a.Executor = pipeline.NewExecutor(
		a.Config,
		a.State,
		a.StorageManager.ReportStorage(),
		a.StorageManager.ArtifactStore(),
		a.Registry,
		a.Renderer,
		a.Engine,
		a.EventService,
		a.Logger,
	)

	a.Dispatcher = pipeline.NewDispatcher(
		a.Config,
		a.StorageManager.ReportStorage(),
		a.StorageManager.JobQueue(),
		a.State,
		a.Executor,
		a.EventService,
		a.Logger,
	)

	a.WorkerPool = pipeline.NewWorkerPool(
		a.Config,
		a.StorageManager.JobQueue(),
		a.Executor,
		a.State,
		a.Logger,
	)

	a.Reclaimer = pipeline.NewReclaimer(
		a.Config,
		a.StorageManager.ReportStorage(),
		a.StorageManager.ArtifactStore(),
		a.State,
		a.EventService,
		a.Logger,
	)

	return nil
}

// initHandlers wires the HTTP handlers to the pipeline components.
func (a *App) initHandlers() {
	a.ReportHandler = handlers.NewReportHandler(
		a.Dispatcher,
		a.StorageManager.ReportStorage(),
		a.StorageManager.ArtifactStore(),
		a.Logger,
	)
	a.StatusHandler = handlers.NewStatusHandler(
		a.StorageManager.ReportStorage(),
		a.StorageManager.JobQueue(),
		a.Engine,
		a.Logger,
	)
}

// Start launches the worker pool and the reclaimer.
func (a *App) Start() error {
	a.WorkerPool.Start(a.ctx)
	a.Logger.Info().Msg("Worker pool started")

	if err := a.Reclaimer.Start(); err != nil {
		return fmt.Errorf("failed to start reclaimer: %w", err)
	}
	a.Logger.Info().Msg("Reclaimer started")

	return nil
}

// Close shuts down components in reverse dependency order. In-flight jobs
// are given a chance to finish; anything left mid-flight is redelivered by
// queue visibility on the next start.
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.Logger.Info().Msg("Cancelling background goroutines")
		a.cancelCtx()
		time.Sleep(100 * time.Millisecond)
	}

	if a.Reclaimer != nil {
		a.Reclaimer.Stop()
		a.Logger.Info().Msg("Reclaimer stopped")
	}

	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
		a.Logger.Info().Msg("Worker pool stopped")
	}

	if a.Engine != nil {
		if err := a.Engine.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down render engine")
		}
	}

	if a.WSHandler != nil {
		a.WSHandler.Close(context.Background())
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
