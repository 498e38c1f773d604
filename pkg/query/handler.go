package query

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/nicktill/econdash/pkg/httpx"
	"github.com/nicktill/econdash/pkg/logger"
	"github.com/nicktill/econdash/pkg/storage"
)

// Handler serves /data and /metadata
type Handler struct {
	engine *Engine
	etag   string
	log    logger.Logger
}

// NewHandler creates a new query handler
func NewHandler(store storage.Storage, opts ...Option) *Handler {
	return &Handler{
		engine: NewEngine(store, opts...),
		etag:   metadataETag(store),
		log:    logger.Named("query"),
	}
}

// Engine returns the engine behind the handler
func (h *Handler) Engine() *Engine {
	return h.engine
}

// HandleData handles GET /data
// Query params:
//   - countries: comma-separated country codes
//   - metrics: comma-separated metric keys (alias: metric)
//   - start_year, end_year: inclusive integer bounds (required)
func (h *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, end, err := httpx.YearRange(q)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	metrics := httpx.SplitList(q, "metrics")
	if metrics == nil {
		metrics = httpx.SplitList(q, "metric")
	}

	req := Request{
		Countries: httpx.SplitList(q, "countries"),
		Metrics:   metrics,
		StartYear: start,
		EndYear:   end,
	}
	result := h.engine.Execute(req)

	h.log.Debug(r.Context(), "Query executed",
		logger.Strings("metrics", req.Metrics),
		logger.Int("countries", len(req.Countries)),
		logger.Int("start_year", start),
		logger.Int("end_year", end),
		logger.Int("returned", len(result)),
	)
	httpx.RespondJSON(w, http.StatusOK, result)
}

// HandleMetadata handles GET /metadata.
// The store never changes, so the ETag is computed once.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", h.etag)
	if etagMatches(r.Header.Get("If-None-Match"), h.etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, h.engine.Metadata())
}

// metadataETag hashes every table fingerprint in registry order.
func metadataETag(store storage.Storage) string {
	d := xxhash.New()
	for _, e := range store.Registry().Entries() {
		_, _ = d.WriteString(e.Key)
		_, _ = d.WriteString(e.Title)
		if tbl, ok := store.Table(e.Key); ok {
			_, _ = d.WriteString(strconv.FormatUint(tbl.Fingerprint, 16))
		}
	}
	return `"` + strconv.FormatUint(d.Sum64(), 16) + `"`
}

// etagMatches reports whether an If-None-Match header names etag. Weak
// tags compare equal to their strong form.
func etagMatches(header, etag string) bool {
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == etag {
			return true
		}
	}
	return false
}
