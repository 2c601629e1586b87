package domain

import "time"

// FeatureDepthLevels are the per-side depth checkpoints captured in each
// feature record: cumulative volume and VWAP over the top N book levels.
var FeatureDepthLevels = []int{1, 5, 10, 15, 20, 30, 40, 50}

// DepthFeature is the cumulative volume and volume-weighted average price
// over the top Levels price levels of one book side.
type DepthFeature struct {
	Levels int
	Volume float64
	VWAP   float64
}

// FeatureRecord is one fixed-width numeric observation of book shape and
// trade flow, emitted on a throttled cadence for ML feature persistence.
type FeatureRecord struct {
	ID        string
	ProductID string
	Timestamp time.Time

	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Spread    float64
	SpreadPct float64

	Bids []DepthFeature
	Asks []DepthFeature

	// Trade flow since the previous record. Zero-valued when no trades
	// arrived in the interval.
	Trades TradeSummary
}
