package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// IndexHandler serves the computed reference price endpoints.
type IndexHandler struct {
	cache  domain.IndexCache
	store  domain.IndexStore
	logger *slog.Logger
}

// NewIndexHandler creates an IndexHandler. Either backend may be nil when
// the process runs without Redis or Postgres; the corresponding endpoints
// then return 503.
func NewIndexHandler(cache domain.IndexCache, store domain.IndexStore, logger *slog.Logger) *IndexHandler {
	return &IndexHandler{cache: cache, store: store, logger: logger}
}

type indexPointResponse struct {
	Price     float64  `json:"price"`
	Venues    []string `json:"venues"`
	Timestamp string   `json:"timestamp"`
}

// GetLatest returns the most recently published index value from the cache.
// A withheld tick is reported with a null value.
// GET /api/index/latest
func (h *IndexHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "index cache not configured")
		return
	}

	result, err := h.cache.GetLatest(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no index value published yet")
			return
		}
		h.logger.Error("handler: get latest index", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"value":     result.Value,
		"withheld":  result.Withheld(),
		"venues":    result.Venues,
		"timestamp": result.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// ListRecent returns recent persisted index observations, newest first.
// GET /api/index/recent?limit=N
func (h *IndexHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "index history store not configured")
		return
	}

	limit := parseIntParam(r, "limit", 60, 1000)
	points, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("handler: list recent index", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}

	out := make([]indexPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, indexPointResponse{
			Price:     p.Price,
			Venues:    p.Venues,
			Timestamp: p.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": out})
}
