package export

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/nicktill/econdash/pkg/httpx"
	"github.com/nicktill/econdash/pkg/logger"
	"github.com/nicktill/econdash/pkg/storage"
)

// Handler serves /download
type Handler struct {
	exporter *Exporter
	log      logger.Logger
}

// NewHandler creates a new export handler
func NewHandler(store storage.Storage, observer Observer) *Handler {
	return &Handler{
		exporter: NewExporter(store, observer),
		log:      logger.Named("export"),
	}
}

// HandleDownload handles GET /download
// Query params:
//   - metric: metric key (required)
//   - countries: comma-separated country codes
//   - start_year, end_year: inclusive integer bounds (required)
//   - format: "csv" or "json" (default: csv)
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, end, err := httpx.YearRange(q)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	opts := Options{
		Metric:    q.Get("metric"),
		Countries: httpx.SplitList(q, "countries"),
		StartYear: start,
		EndYear:   end,
		Format:    q.Get("format"),
	}

	// Buffer so a failure never leaves a partial attachment behind
	var buf bytes.Buffer
	result, err := h.exporter.Export(&buf, opts)
	switch {
	case errors.Is(err, ErrUnknownMetric):
		h.log.Debug(r.Context(), "Rejected export of unknown metric", logger.String("metric", opts.Metric))
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, ErrUnknownFormat):
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		h.log.Error(r.Context(), "Export failed", logger.String("metric", opts.Metric), logger.Error(err))
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("export failed: %w", err))
		return
	}

	contentType := "text/csv"
	if result.Format == FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", result.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Warn(r.Context(), "Failed to write export response", logger.Error(err))
		return
	}

	h.log.Debug(r.Context(), "Exported metric",
		logger.String("metric", result.Metric),
		logger.String("format", result.Format),
		logger.Int("rows", result.Rows),
	)
}
