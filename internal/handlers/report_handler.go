package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// ReportHandler handles HTTP requests for report generation and retrieval.
type ReportHandler struct {
	dispatcher interfaces.Dispatcher
	storage    interfaces.ReportStorage
	artifacts  interfaces.ArtifactStore
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(dispatcher interfaces.Dispatcher, storage interfaces.ReportStorage, artifacts interfaces.ArtifactStore, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{
		dispatcher: dispatcher,
		storage:    storage,
		artifacts:  artifacts,
		validate:   validator.New(),
		logger:     logger,
	}
}

// GenerateRequest is the body of POST /api/reports/{id}/generate. Both
// fields are optional; omitted values fall back to the defaults.
type GenerateRequest struct {
	Format string `json:"format" validate:"omitempty,oneof=markup printable both"`
	Mode   string `json:"mode" validate:"omitempty,oneof=sync async"`
}

// GenerateHandler handles POST /api/reports/{id}/generate
func (h *ReportHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	reportID := extractIDFromPath(r.URL.Path, "/api/reports/", "/generate")
	if reportID == "" {
		WriteError(w, http.StatusBadRequest, "Missing report ID")
		return
	}

	req := GenerateRequest{Format: string(models.FormatBoth), Mode: string(models.ModeAsync)}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	if req.Format == "" {
		req.Format = string(models.FormatBoth)
	}
	if req.Mode == "" {
		req.Mode = string(models.ModeAsync)
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.dispatcher.Submit(r.Context(), reportID, models.Format(req.Format), models.ExecutionMode(req.Mode))
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("report_id", reportID).
			Msg("Generation request rejected")
		WriteDomainError(w, err)
		return
	}

	if req.Mode == string(models.ModeSync) {
		status := http.StatusOK
		if result.Report != nil && result.Report.Status == models.ReportStatusFailed {
			status = http.StatusUnprocessableEntity
		}
		WriteJSON(w, status, map[string]interface{}{
			"job_id": result.JobID,
			"report": result.Report,
		})
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     result.JobID,
		"status_url": result.StatusURL,
	})
}

// StatusHandler handles GET /api/reports/{id}/status
func (h *ReportHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	reportID := extractIDFromPath(r.URL.Path, "/api/reports/", "/status")
	if reportID == "" {
		WriteError(w, http.StatusBadRequest, "Missing report ID")
		return
	}

	status, err := h.dispatcher.Status(r.Context(), reportID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// ArtifactHandler handles GET /api/reports/{id}/artifact?kind=markup|printable
func (h *ReportHandler) ArtifactHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	reportID := extractIDFromPath(r.URL.Path, "/api/reports/", "/artifact")
	if reportID == "" {
		WriteError(w, http.StatusBadRequest, "Missing report ID")
		return
	}

	kind := models.ArtifactKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.ArtifactKindMarkup
	}
	if kind != models.ArtifactKindMarkup && kind != models.ArtifactKindPrintable {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown artifact kind %q", kind))
		return
	}

	report, err := h.storage.GetReport(r.Context(), reportID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if !report.HasArtifact(kind) {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("No %s artifact for report %s", kind, reportID))
		return
	}

	relPath := report.MarkupPath
	if kind == models.ArtifactKindPrintable {
		relPath = report.PrintablePath
	}

	data, err := h.artifacts.Read(r.Context(), relPath)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("report_id", reportID).
			Str("path", relPath).
			Msg("Artifact pointer set but bytes missing")
		WriteDomainError(w, err)
		return
	}

	// Markup renders in the browser; printable downloads.
	if kind == models.ArtifactKindMarkup {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(relPath)))
	} else {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(relPath)))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetReportHandler handles GET /api/reports/{id}
func (h *ReportHandler) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	reportID := extractIDFromPath(r.URL.Path, "/api/reports/", "")
	if reportID == "" {
		WriteError(w, http.StatusBadRequest, "Missing report ID")
		return
	}

	report, err := h.storage.GetReport(r.Context(), reportID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// ListReportsHandler handles GET /api/reports?status=&type=&page=&pageSize=
func (h *ReportHandler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	page, pageSize := GetPaginationParams(r)

	opts := &interfaces.ReportListOptions{
		Limit:  pageSize,
		Offset: page * pageSize,
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		opts.Status = models.ReportStatus(statusStr)
	}
	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		reportType := models.ReportType(typeStr)
		if !reportType.IsValid() {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown report type %q", typeStr))
			return
		}
		opts.Type = reportType
	}

	reports, err := h.storage.ListReports(r.Context(), opts)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports":   reports,
		"count":     len(reports),
		"page":      page,
		"page_size": pageSize,
	})
}
