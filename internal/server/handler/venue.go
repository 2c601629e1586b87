package handler

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/alanyoungcy/btcindex/internal/venue"
)

// VenueHandler serves the most recent per-venue book summaries used as
// index inputs.
type VenueHandler struct {
	store  *venue.BookStore
	logger *slog.Logger
}

// NewVenueHandler creates a VenueHandler over the given store.
func NewVenueHandler(store *venue.BookStore, logger *slog.Logger) *VenueHandler {
	return &VenueHandler{store: store, logger: logger}
}

type venueResponse struct {
	VenueID   string   `json:"venue_id"`
	Mid       *float64 `json:"mid"`
	BidLevels int      `json:"bid_levels"`
	AskLevels int      `json:"ask_levels"`
	Timestamp string   `json:"timestamp"`
}

// ListVenues returns a summary of each venue book currently held in the
// store, sorted by venue id.
// GET /api/venues
func (h *VenueHandler) ListVenues(w http.ResponseWriter, r *http.Request) {
	books := h.store.Snapshot()

	out := make([]venueResponse, 0, len(books))
	for id, b := range books {
		resp := venueResponse{
			VenueID:   id,
			BidLevels: len(b.Bids),
			AskLevels: len(b.Asks),
			Timestamp: time.UnixMilli(b.TS).UTC().Format(time.RFC3339Nano),
		}
		if len(b.Bids) > 0 && len(b.Asks) > 0 {
			m := b.Mid()
			resp.Mid = &m
		}
		out = append(out, resp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VenueID < out[j].VenueID })

	writeJSON(w, http.StatusOK, map[string]any{"venues": out})
}
