// Package book maintains a per-product limit order book from snapshot and
// incremental level updates, with fixed-point decimal price storage.
package book

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Side identifies which half of the book a PriceLevelBook holds.
type Side int

const (
	Bid Side = iota
	Ask
)

// Level is one price level with its aggregate resting quantity.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// PriceLevelBook is one side of an order book: a price-keyed quantity map
// with a sorted projection. Bids sort descending, asks ascending. A zero
// quantity is never stored; removal is the only zero-quantity semantics.
//
// Decimal values that are numerically equal can carry different exponents
// ("100" vs "100.00"), so map keys are canonicalized strings rather than
// Decimal values.
type PriceLevelBook struct {
	side   Side
	levels map[string]Level
	sorted []Level
}

// NewPriceLevelBook creates an empty side book.
func NewPriceLevelBook(side Side) *PriceLevelBook {
	return &PriceLevelBook{
		side:   side,
		levels: make(map[string]Level),
	}
}

func priceKey(p decimal.Decimal) string { return p.String() }

// Set inserts or overwrites the quantity at a price. Quantities must be
// positive; callers handle zero as removal before reaching here.
func (b *PriceLevelBook) Set(price, quantity decimal.Decimal) {
	b.levels[priceKey(price)] = Level{Price: price, Quantity: quantity}
}

// Remove deletes a price level if present.
func (b *PriceLevelBook) Remove(price decimal.Decimal) {
	delete(b.levels, priceKey(price))
}

// Clear drops every level.
func (b *PriceLevelBook) Clear() {
	b.levels = make(map[string]Level)
	b.sorted = nil
}

// Len returns the number of price levels.
func (b *PriceLevelBook) Len() int { return len(b.levels) }

// Resort rebuilds the sorted projection after a batch of mutations.
func (b *PriceLevelBook) Resort() {
	b.sorted = make([]Level, 0, len(b.levels))
	for _, lvl := range b.levels {
		b.sorted = append(b.sorted, lvl)
	}
	if b.side == Bid {
		sort.Slice(b.sorted, func(i, j int) bool {
			return b.sorted[i].Price.GreaterThan(b.sorted[j].Price)
		})
	} else {
		sort.Slice(b.sorted, func(i, j int) bool {
			return b.sorted[i].Price.LessThan(b.sorted[j].Price)
		})
	}
}

// Best returns the top level (highest bid or lowest ask) and whether the
// side is non-empty. Valid only after Resort.
func (b *PriceLevelBook) Best() (Level, bool) {
	if len(b.sorted) == 0 {
		return Level{}, false
	}
	return b.sorted[0], true
}

// Levels returns up to n levels in sorted order. Valid only after Resort.
func (b *PriceLevelBook) Levels(n int) []Level {
	if n > len(b.sorted) {
		n = len(b.sorted)
	}
	out := make([]Level, n)
	copy(out, b.sorted[:n])
	return out
}

// TotalVolume sums the resting quantity across every level.
func (b *PriceLevelBook) TotalVolume() decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range b.levels {
		total = total.Add(lvl.Quantity)
	}
	return total
}
