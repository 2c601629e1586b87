package domain

import "time"

// TradeSide is the aggressor side of an execution.
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// Trade is a single execution from a venue trade feed.
type Trade struct {
	ProductID string
	Price     float64
	Size      float64
	Side      TradeSide
	Timestamp time.Time
}

// TradeSummary aggregates executions between two feature emissions.
// It is produced by the trade-flow aggregator's read-and-reset call and
// always covers "since last call", never a cumulative total.
type TradeSummary struct {
	TotalTrades int
	BuyVolume   float64
	SellVolume  float64
	BuyValue    float64
	SellValue   float64
	BuyCount    int
	SellCount   int
	TotalVolume float64
	NetVolume   float64
	BuyRatio    float64
}
