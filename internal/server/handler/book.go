package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/btcindex/internal/book"
)

// BookHandler serves read-only views of the locally maintained order book.
type BookHandler struct {
	engine *book.Engine
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler over the given engine.
func NewBookHandler(engine *book.Engine, logger *slog.Logger) *BookHandler {
	return &BookHandler{engine: engine, logger: logger}
}

type levelResponse struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// GetBook returns the top N levels per side together with the derived
// spread view. Returns 503 until the first snapshot has been applied.
// GET /api/book?depth=N
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Initialized() {
		writeError(w, http.StatusServiceUnavailable, "order book not initialized")
		return
	}

	depth := parseIntParam(r, "depth", 10, 100)
	top := h.engine.TopLevels(depth)

	writeJSON(w, http.StatusOK, map[string]any{
		"product_id":  top.ProductID,
		"bids":        toLevelResponses(top.Bids),
		"asks":        toLevelResponses(top.Asks),
		"spread":      top.Spread.Spread,
		"spread_pct":  top.Spread.SpreadPct,
		"mid_price":   top.Spread.Mid,
		"last_update": top.Spread.LastUpdate.UTC().Format(time.RFC3339Nano),
	})
}

// GetStats returns the engine's observability counters.
// GET /api/book/stats
func (h *BookHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id":     stats.ProductID,
		"initialized":    stats.Initialized,
		"bid_levels":     stats.BidLevels,
		"ask_levels":     stats.AskLevels,
		"total_bid_vol":  stats.TotalBidVol,
		"total_ask_vol":  stats.TotalAskVol,
		"update_count":   stats.UpdateCount,
		"snapshot_count": stats.SnapshotCount,
		"skipped_count":  stats.SkippedCount,
		"last_update":    stats.LastUpdate.UTC().Format(time.RFC3339Nano),
	})
}

func toLevelResponses(levels []book.Level) []levelResponse {
	out := make([]levelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, levelResponse{
			Price:    l.Price.String(),
			Quantity: l.Quantity.String(),
		})
	}
	return out
}
