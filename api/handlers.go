/*
handlers.go - HTTP handlers for the sales analytics API

PURPOSE:
  Exposes the ingestion pipeline and aggregation engine over REST. This is
  the collaborator boundary: it validates date strings into timestamps
  BEFORE calling the engine, stages uploaded files before calling the
  pipeline, and maps error kinds to status codes.

ENDPOINTS:
  GET  /api/analytics/revenue        Revenue by type over a range
  GET  /api/analytics/customers      Customer/order stats over a range
  GET  /api/analytics/profit-margin  Per-product margins over a range
  POST /api/analytics/refresh        Full-replace CSV upload
  GET  /api/health                   Liveness probe

QUERY PARAMETERS:
  from, to      date strings, YYYY-MM-DD or RFC 3339. A bare "to" date is
                widened to the end of that day so the bound stays inclusive.
  revenue_type  product | category | region | total (default total);
                "type" accepted as an alias.

ERROR HANDLING:
  - 400: missing/invalid dates, unknown revenue type, missing or
         malformed upload
  - 500: store or stream failures
  The engine's zero-valued "no data" results pass through as 200s.

SEE ALSO:
  - dto.go: response shapes
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/warp/sales-analytics/analytics"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    analytics.RecordStore
	Engine   *analytics.Engine
	Pipeline *analytics.Pipeline
	Log      *slog.Logger
}

// NewHandler creates a handler serving analytics over the given store.
func NewHandler(store analytics.RecordStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Store:    store,
		Engine:   analytics.NewEngine(store),
		Pipeline: analytics.NewPipeline(log),
		Log:      log,
	}
}

// =============================================================================
// AGGREGATION ENDPOINTS
// =============================================================================

// GetRevenue returns revenue summed over the range, grouped by the
// requested dimension.
// GET /api/analytics/revenue?from=...&to=...&revenue_type=...
func (h *Handler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	typeParam := r.URL.Query().Get("revenue_type")
	if typeParam == "" {
		typeParam = r.URL.Query().Get("type")
	}
	dim, ok := analytics.ParseDimension(typeParam)
	if !ok {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown revenue type %q (use product, category, region or total)", typeParam), nil)
		return
	}

	result, err := h.Engine.RevenueByType(r.Context(), rng, dim)
	if err != nil {
		h.writeEngineError(w, "Failed to calculate revenue", err)
		return
	}

	writeJSON(w, http.StatusOK, toRevenueDTO(result))
}

// GetCustomerOrderStats returns order and customer statistics over the range.
// GET /api/analytics/customers?from=...&to=...
func (h *Handler) GetCustomerOrderStats(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	stats, err := h.Engine.CustomerOrderStats(r.Context(), rng)
	if err != nil {
		h.writeEngineError(w, "Failed to calculate customer stats", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// GetProfitMargin returns per-product profit margins over the range.
// GET /api/analytics/profit-margin?from=...&to=...
func (h *Handler) GetProfitMargin(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	margins, err := h.Engine.ProfitMarginByProduct(r.Context(), rng)
	if err != nil {
		h.writeEngineError(w, "Failed to calculate profit margins", err)
		return
	}

	writeJSON(w, http.StatusOK, toMarginDTO(margins))
}

// =============================================================================
// REFRESH ENDPOINT
// =============================================================================

// maxUploadBytes bounds the in-memory part of multipart parsing.
const maxUploadBytes = 32 << 20

// RefreshData wholesale-replaces the store from an uploaded CSV file.
// The upload is staged to a temp file and cleaned up afterwards.
// POST /api/analytics/refresh  (multipart field "file")
func (h *Handler) RefreshData(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `Missing upload field "file"`, err)
		return
	}
	defer upload.Close()

	staged, err := stageUpload(upload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to stage upload", err)
		return
	}
	defer os.Remove(staged.Name())
	defer staged.Close()

	deleted, summary, err := h.Pipeline.Refresh(r.Context(), staged, h.Store)
	if err != nil {
		if analytics.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Malformed CSV upload", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to refresh analytics data", err)
		return
	}

	h.Log.Info("analytics data refreshed",
		"file", header.Filename,
		"deleted", deleted,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
	)
	writeJSON(w, http.StatusOK, toRefreshResponse(deleted, summary))
}

// stageUpload copies the upload to a temp file and rewinds it for reading.
func stageUpload(upload io.Reader) (*os.File, error) {
	f, err := os.CreateTemp("", "analytics-upload-*.csv")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, upload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// Accepted layouts for the from/to query parameters.
var queryDateLayouts = []string{"2006-01-02", time.RFC3339}

// parseRange validates the from/to parameters into an inclusive range.
// A bare "to" date covers its whole day.
func parseRange(r *http.Request) (analytics.Range, error) {
	from, _, err := parseQueryDate(r.URL.Query().Get("from"), "from")
	if err != nil {
		return analytics.Range{}, err
	}

	to, bareTo, err := parseQueryDate(r.URL.Query().Get("to"), "to")
	if err != nil {
		return analytics.Range{}, err
	}
	if bareTo {
		to = to.Add(24*time.Hour - time.Second)
	}

	rng := analytics.Range{From: from, To: to}
	return rng, rng.Validate()
}

func parseQueryDate(s, name string) (t time.Time, bareDate bool, err error) {
	if s == "" {
		return time.Time{}, false, fmt.Errorf("missing %q parameter", name)
	}
	for _, layout := range queryDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), layout == "2006-01-02", nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid %q date %q (use YYYY-MM-DD or RFC 3339)", name, s)
}

// writeEngineError maps engine failures to status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	if analytics.IsClientError(err) {
		writeError(w, http.StatusBadRequest, message, err)
		return
	}
	if errors.Is(err, analytics.ErrStoreUnavailable) {
		h.Log.Error("record store failure", "err", err)
	}
	writeError(w, http.StatusInternalServerError, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
