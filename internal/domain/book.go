package domain

import "time"

// PriceLevel is a single price+size entry in a venue orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// VenueBook is one exchange's view of the BTC/USD book. It is replaced
// wholesale on every successful fetch or stream message; the index engine
// never mutates it in place.
type VenueBook struct {
	VenueID string
	Bids    []PriceLevel // descending by price
	Asks    []PriceLevel // ascending by price
	TS      int64        // unix millis of the venue's own book timestamp
}

// Mid returns the mid price from the best bid and best ask. Callers must
// ensure both sides are non-empty.
func (b VenueBook) Mid() float64 {
	return (b.Bids[0].Price + b.Asks[0].Price) / 2
}

// Crossed reports whether the book is in an invalid crossed state
// (best bid at or above best ask).
func (b VenueBook) Crossed() bool {
	return b.Bids[0].Price >= b.Asks[0].Price
}

// IndexResult is the outcome of one index computation. A nil Value is the
// withheld case: an expected steady-state outcome when the venue set or
// depth is insufficient, not a fault.
type IndexResult struct {
	Value     *float64
	Venues    []string // contributing venue ids, sorted
	Timestamp time.Time
}

// Withheld reports whether the index was withheld for this tick.
func (r IndexResult) Withheld() bool {
	return r.Value == nil
}
