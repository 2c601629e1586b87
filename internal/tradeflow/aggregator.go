// Package tradeflow accumulates trade executions between feature
// emissions and produces interval summaries.
package tradeflow

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// Aggregator accumulates buy/sell volume, value and counts since the last
// summary call. SummaryAndReset is a read-and-reset operation: every
// summary covers only the interval since the previous call, so callers
// must draw it at most once per reporting interval.
type Aggregator struct {
	logger *slog.Logger

	mu         sync.Mutex
	buyVolume  float64
	sellVolume float64
	buyValue   float64
	sellValue  float64
	buyCount   int
	sellCount  int
	total      int
	rejected   int64
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	return &Aggregator{
		logger: logger.With(slog.String("component", "tradeflow")),
	}
}

// AddTrade records one execution. Invalid input (non-positive price or
// size, unknown side) is rejected with a false return; it never panics.
func (a *Aggregator) AddTrade(price, size float64, side domain.TradeSide) bool {
	if price <= 0 || size <= 0 {
		a.mu.Lock()
		a.rejected++
		a.mu.Unlock()
		a.logger.Warn("rejecting invalid trade",
			slog.Float64("price", price),
			slog.Float64("size", size),
		)
		return false
	}

	normalized := domain.TradeSide(strings.ToUpper(string(side)))
	if normalized != domain.TradeBuy && normalized != domain.TradeSell {
		a.mu.Lock()
		a.rejected++
		a.mu.Unlock()
		a.logger.Warn("rejecting trade with unknown side", slog.String("side", string(side)))
		return false
	}

	value := price * size

	a.mu.Lock()
	defer a.mu.Unlock()
	if normalized == domain.TradeBuy {
		a.buyVolume += size
		a.buyValue += value
		a.buyCount++
	} else {
		a.sellVolume += size
		a.sellValue += value
		a.sellCount++
	}
	a.total++
	return true
}

// SummaryAndReset returns the summary of all trades since the last call
// and atomically clears the accumulators. It returns nil when no trades
// were recorded in the interval.
func (a *Aggregator) SummaryAndReset() *domain.TradeSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.total == 0 {
		return nil
	}

	totalVolume := a.buyVolume + a.sellVolume
	buyRatio := 0.0
	if totalVolume > 0 {
		buyRatio = a.buyVolume / totalVolume
	}

	summary := &domain.TradeSummary{
		TotalTrades: a.total,
		BuyVolume:   a.buyVolume,
		SellVolume:  a.sellVolume,
		BuyValue:    a.buyValue,
		SellValue:   a.sellValue,
		BuyCount:    a.buyCount,
		SellCount:   a.sellCount,
		TotalVolume: totalVolume,
		NetVolume:   a.buyVolume - a.sellVolume,
		BuyRatio:    buyRatio,
	}

	a.buyVolume, a.sellVolume = 0, 0
	a.buyValue, a.sellValue = 0, 0
	a.buyCount, a.sellCount = 0, 0
	a.total = 0

	return summary
}

// Rejected returns how many trades failed validation since startup.
func (a *Aggregator) Rejected() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejected
}
