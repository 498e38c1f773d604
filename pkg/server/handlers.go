package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/econdash/pkg/export"
	"github.com/nicktill/econdash/pkg/httpx"
	"github.com/nicktill/econdash/pkg/metrics"
	"github.com/nicktill/econdash/pkg/query"
	"github.com/nicktill/econdash/pkg/server/monitor"
)

// Version is reported by /health
var Version = "1.0.0"

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string                `json:"status"`
	Version string                `json:"version"`
	Uptime  string                `json:"uptime"`
	Load    monitor.LoadStatus    `json:"load"`
	Sources *monitor.SourceStatus `json:"sources,omitempty"`
}

// handleHealth returns service health status. Sources that changed after
// the store was built make the status "stale" but do not fail the check.
func handleHealth(loadMonitor *monitor.LoadMonitor, sourceMonitor *monitor.SourceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:  "healthy",
			Version: Version,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Load:    loadMonitor.Status(),
		}
		statusCode := http.StatusOK

		if sourceMonitor != nil {
			sources := sourceMonitor.Check()
			response.Sources = &sources
			if sources.Stale() {
				response.Status = "stale"
			}
		}
		if !loadMonitor.IsHealthy() {
			response.Status = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// SetupRoutes configures all HTTP routes and returns the handler to serve.
// Request IDs, panic recovery and CORS wrap the router so they also apply
// to unmatched paths and preflight requests.
func SetupRoutes(
	router *mux.Router,
	queryHandler *query.Handler,
	exportHandler *export.Handler,
	loadMonitor *monitor.LoadMonitor,
	sourceMonitor *monitor.SourceMonitor,
	metricsManager *metrics.Manager,
	allowedOrigins []string,
) http.Handler {
	router.Use(metricsMiddleware(metricsManager))

	// Dashboard API
	router.HandleFunc("/metadata", queryHandler.HandleMetadata).Methods(http.MethodGet)
	router.HandleFunc("/data", queryHandler.HandleData).Methods(http.MethodGet)
	router.HandleFunc("/download", exportHandler.HandleDownload).Methods(http.MethodGet)

	// Operations
	router.HandleFunc("/health", handleHealth(loadMonitor, sourceMonitor)).Methods(http.MethodGet)
	router.Handle("/metrics", metricsManager.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondErrorString(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
	})

	var h http.Handler = router
	h = corsMiddleware(allowedOrigins)(h)
	h = recoveryMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}
