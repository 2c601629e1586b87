package book

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SpreadInfo is a derived view of the top of book. Spread, SpreadPct and
// Mid are nil while either side is empty or before the first snapshot.
type SpreadInfo struct {
	ProductID  string
	BestBid    *Level
	BestAsk    *Level
	Spread     *float64
	SpreadPct  *float64
	Mid        *float64
	LastUpdate time.Time
}

// TopLevels is a read-only projection of the top n levels per side.
type TopLevels struct {
	ProductID string
	Bids      []Level
	Asks      []Level
	Spread    SpreadInfo
}

// Stats are observability counters for one engine.
type Stats struct {
	ProductID     string
	Initialized   bool
	BidLevels     int
	AskLevels     int
	TotalBidVol   float64
	TotalAskVol   float64
	UpdateCount   int64
	SnapshotCount int64
	SkippedCount  int64
	LastUpdate    time.Time
}

// Engine maintains one product's order book from snapshot and update
// messages. The two side books are mutated only under the engine's lock by
// the single feed goroutine; readers take consistent snapshots of both
// sides together.
//
// Until the first snapshot has been applied the engine is uninitialized:
// updates are rejected (returning false, never panicking) and all derived
// queries report empty/nil. A later snapshot at any time fully replaces
// the book, which is how the feed resynchronizes after a sequence gap.
type Engine struct {
	productID string
	precision int32
	logger    *slog.Logger

	mu          sync.RWMutex
	bids        *PriceLevelBook
	asks        *PriceLevelBook
	initialized bool

	spread    *float64
	spreadPct *float64
	mid       *float64

	updateCount   int64
	snapshotCount int64
	skippedCount  int64
	lastUpdate    time.Time
}

// NewEngine creates an uninitialized order book engine for a product.
// precision is the number of decimal places prices and quantities are
// quantized to; comparisons happen on the quantized fixed-point values so
// equal prices always collide on the same level.
func NewEngine(productID string, precision int32, logger *slog.Logger) *Engine {
	return &Engine{
		productID: productID,
		precision: precision,
		logger:    logger.With(slog.String("component", "book_engine"), slog.String("product", productID)),
		bids:      NewPriceLevelBook(Bid),
		asks:      NewPriceLevelBook(Ask),
	}
}

// parse converts a wire string to a quantized decimal, reporting failure
// for unparseable input so the caller can skip the update.
func (e *Engine) parse(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d.Round(e.precision), true
}

// ProcessSnapshot clears both sides and rebuilds them from the snapshot
// events. Duplicate prices within the message overwrite (last write wins);
// zero or negative quantities are never stored. A message without a
// snapshot event reports failure without touching state.
func (e *Engine) ProcessSnapshot(msg Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := false
	for _, ev := range msg.Events {
		if ev.Type == "snapshot" {
			seen = true
			break
		}
	}
	if !seen {
		e.logger.Warn("snapshot message without snapshot event")
		return false
	}

	e.bids.Clear()
	e.asks.Clear()
	for _, ev := range msg.Events {
		if ev.Type != "snapshot" {
			continue
		}
		for _, up := range ev.Updates {
			e.applyLocked(up)
		}
	}

	e.bids.Resort()
	e.asks.Resort()
	e.recalcLocked()
	e.initialized = true
	e.snapshotCount++
	e.lastUpdate = time.Now()

	e.logger.Info("snapshot applied",
		slog.Int("bid_levels", e.bids.Len()),
		slog.Int("ask_levels", e.asks.Len()),
	)
	return true
}

// ProcessUpdate applies incremental level updates. It requires a prior
// snapshot: on an uninitialized engine it reports failure without touching
// state. A zero new quantity removes the level; any other value is the
// absolute new size at that price.
func (e *Engine) ProcessUpdate(msg Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		e.logger.Warn("update before snapshot, dropping")
		return false
	}

	for _, ev := range msg.Events {
		if ev.Type != "update" {
			continue
		}
		for _, up := range ev.Updates {
			e.applyLocked(up)
		}
	}

	e.bids.Resort()
	e.asks.Resort()
	e.recalcLocked()
	e.updateCount++
	e.lastUpdate = time.Now()
	return true
}

// applyLocked applies one level update to the matching side. Malformed
// updates are skipped and counted; the rest of the batch proceeds.
func (e *Engine) applyLocked(up LevelUpdate) {
	price, ok := e.parse(up.PriceLevel)
	if !ok {
		e.skippedCount++
		return
	}
	qty, ok := e.parse(up.NewQuantity)
	if !ok {
		e.skippedCount++
		return
	}

	var side *PriceLevelBook
	switch up.Side {
	case "bid":
		side = e.bids
	case "offer":
		side = e.asks
	default:
		e.skippedCount++
		return
	}

	if qty.Sign() <= 0 {
		side.Remove(price)
		return
	}
	side.Set(price, qty)
}

// recalcLocked refreshes spread, mid, and spread percentage from the
// current best levels. All three are nil when either side is empty.
func (e *Engine) recalcLocked() {
	bb, okB := e.bids.Best()
	ba, okA := e.asks.Best()
	if !okB || !okA {
		e.spread, e.spreadPct, e.mid = nil, nil, nil
		return
	}

	spread, _ := ba.Price.Sub(bb.Price).Float64()
	mid, _ := ba.Price.Add(bb.Price).Div(decimal.NewFromInt(2)).Float64()
	e.spread = &spread
	e.mid = &mid

	pct := 0.0
	if mid > 0 {
		pct = spread / mid * 100
	}
	e.spreadPct = &pct
}

// SpreadInfo returns the current top-of-book view.
func (e *Engine) SpreadInfo() SpreadInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spreadInfoLocked()
}

func (e *Engine) spreadInfoLocked() SpreadInfo {
	info := SpreadInfo{
		ProductID:  e.productID,
		Spread:     e.spread,
		SpreadPct:  e.spreadPct,
		Mid:        e.mid,
		LastUpdate: e.lastUpdate,
	}
	if bb, ok := e.bids.Best(); ok {
		lvl := bb
		info.BestBid = &lvl
	}
	if ba, ok := e.asks.Best(); ok {
		lvl := ba
		info.BestAsk = &lvl
	}
	return info
}

// TopLevels returns up to n price levels per side with the current spread
// view. It never mutates engine state.
func (e *Engine) TopLevels(n int) TopLevels {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return TopLevels{
		ProductID: e.productID,
		Bids:      e.bids.Levels(n),
		Asks:      e.asks.Levels(n),
		Spread:    e.spreadInfoLocked(),
	}
}

// Initialized reports whether a snapshot has been applied.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// Stats returns the engine's counters and volume totals.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	bidVol, _ := e.bids.TotalVolume().Float64()
	askVol, _ := e.asks.TotalVolume().Float64()
	return Stats{
		ProductID:     e.productID,
		Initialized:   e.initialized,
		BidLevels:     e.bids.Len(),
		AskLevels:     e.asks.Len(),
		TotalBidVol:   bidVol,
		TotalAskVol:   askVol,
		UpdateCount:   e.updateCount,
		SnapshotCount: e.snapshotCount,
		SkippedCount:  e.skippedCount,
		LastUpdate:    e.lastUpdate,
	}
}
