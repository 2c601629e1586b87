// Package export builds ML feature records from order book state and
// trade flow and persists them on a throttled cadence.
package export

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/btcindex/internal/book"
	"github.com/alanyoungcy/btcindex/internal/domain"
)

// depthFeatures computes the cumulative volume and VWAP at each configured
// depth checkpoint for one sorted side. Checkpoints beyond the available
// levels report the totals over what exists; an empty side reports zeros.
func depthFeatures(levels []book.Level) []domain.DepthFeature {
	out := make([]domain.DepthFeature, 0, len(domain.FeatureDepthLevels))
	for _, n := range domain.FeatureDepthLevels {
		var vol, value float64
		limit := n
		if limit > len(levels) {
			limit = len(levels)
		}
		for i := 0; i < limit; i++ {
			p, _ := levels[i].Price.Float64()
			q, _ := levels[i].Quantity.Float64()
			vol += q
			value += p * q
		}
		vwap := 0.0
		if vol > 0 {
			vwap = value / vol
		}
		out = append(out, domain.DepthFeature{Levels: n, Volume: vol, VWAP: vwap})
	}
	return out
}

// BuildRecord assembles one feature record from a book projection and the
// trade summary since the previous record. trades may be nil when no
// executions arrived in the interval.
func BuildRecord(top book.TopLevels, trades *domain.TradeSummary, now time.Time) domain.FeatureRecord {
	rec := domain.FeatureRecord{
		ID:        uuid.NewString(),
		ProductID: top.ProductID,
		Timestamp: now,
		Bids:      depthFeatures(top.Bids),
		Asks:      depthFeatures(top.Asks),
	}

	info := top.Spread
	if info.BestBid != nil {
		rec.BestBid, _ = info.BestBid.Price.Float64()
	}
	if info.BestAsk != nil {
		rec.BestAsk, _ = info.BestAsk.Price.Float64()
	}
	if info.Mid != nil {
		rec.MidPrice = *info.Mid
	}
	if info.Spread != nil {
		rec.Spread = *info.Spread
	}
	if info.SpreadPct != nil {
		rec.SpreadPct = *info.SpreadPct
	}
	if trades != nil {
		rec.Trades = *trades
	}
	return rec
}
