package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Reports
	mux.HandleFunc("/api/reports", s.app.ReportHandler.ListReportsHandler) // GET - list reports
	mux.HandleFunc("/api/reports/", s.handleReportRoutes)                  // /{id} and subpaths

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}

// reportRoute binds a path suffix under /api/reports/{id} to its handler
type reportRoute struct {
	suffix  string
	handler http.HandlerFunc
}

// handleReportRoutes dispatches /api/reports/{id} and its action subpaths
func (s *Server) handleReportRoutes(w http.ResponseWriter, r *http.Request) {
	routes := []reportRoute{
		{suffix: "/generate", handler: s.app.ReportHandler.GenerateHandler},
		{suffix: "/status", handler: s.app.ReportHandler.StatusHandler},
		{suffix: "/artifact", handler: s.app.ReportHandler.ArtifactHandler},
	}

	for _, route := range routes {
		if strings.HasSuffix(r.URL.Path, route.suffix) {
			route.handler(w, r)
			return
		}
	}

	// GET /api/reports/{id}
	s.app.ReportHandler.GetReportHandler(w, r)
}
