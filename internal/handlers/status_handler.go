package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	storage   interfaces.ReportStorage
	queue     interfaces.JobQueue
	engine    interfaces.RenderEngine
	startedAt time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(storage interfaces.ReportStorage, queue interfaces.JobQueue, engine interfaces.RenderEngine, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage:   storage,
		queue:     queue,
		engine:    engine,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	queueDepth := -1
	if n, err := h.queue.Len(r.Context()); err == nil {
		queueDepth = n
	} else {
		h.logger.Warn().Err(err).Msg("Failed to read queue depth")
	}

	counts := make(map[string]int)
	for _, status := range []models.ReportStatus{
		models.ReportStatusPending,
		models.ReportStatusProcessing,
		models.ReportStatusCompleted,
		models.ReportStatusFailed,
	} {
		reports, err := h.storage.GetReportsByStatus(r.Context(), status)
		if err != nil {
			h.logger.Warn().Err(err).Str("status", string(status)).Msg("Failed to count reports")
			continue
		}
		counts[string(status)] = len(reports)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service":          "refero",
		"version":          common.GetVersion(),
		"engine":           h.engine.Name(),
		"queue_depth":      queueDepth,
		"reports":          counts,
		"uptime_seconds":   int(time.Since(h.startedAt).Seconds()),
		"goroutines_total": common.GetGoroutineCount(),
	})
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": common.GetVersion(),
	})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// NotFoundHandler handles unmatched API routes
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found: "+r.URL.Path)
}
