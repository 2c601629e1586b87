package export

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/btcindex/internal/book"
	"github.com/alanyoungcy/btcindex/internal/domain"
)

func builtBook(t *testing.T) book.TopLevels {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := book.NewEngine("BTC-USD", 8, logger)

	updates := []book.LevelUpdate{
		{Side: "bid", PriceLevel: "50000", NewQuantity: "1.0"},
		{Side: "bid", PriceLevel: "49999", NewQuantity: "2.0"},
		{Side: "bid", PriceLevel: "49998", NewQuantity: "3.0"},
		{Side: "offer", PriceLevel: "50001", NewQuantity: "1.0"},
		{Side: "offer", PriceLevel: "50002", NewQuantity: "1.0"},
	}
	if !e.ProcessSnapshot(book.Message{Events: []book.Event{{Type: "snapshot", Updates: updates}}}) {
		t.Fatal("snapshot failed")
	}
	return e.TopLevels(50)
}

func TestBuildRecordDepthFeatures(t *testing.T) {
	rec := BuildRecord(builtBook(t), nil, time.Unix(1700000000, 0))

	if rec.ID == "" {
		t.Fatal("record id not assigned")
	}
	if len(rec.Bids) != len(domain.FeatureDepthLevels) {
		t.Fatalf("bid features = %d, want %d", len(rec.Bids), len(domain.FeatureDepthLevels))
	}

	// Level-1 bid: just the best level.
	if rec.Bids[0].Volume != 1.0 || rec.Bids[0].VWAP != 50000 {
		t.Fatalf("l1 bid = %+v", rec.Bids[0])
	}

	// Level-5 bid: all three available levels
	// (1*50000 + 2*49999 + 3*49998) / 6.
	wantVWAP := (50000.0 + 2*49999 + 3*49998) / 6.0
	if rec.Bids[1].Volume != 6.0 {
		t.Fatalf("l5 bid volume = %f, want 6", rec.Bids[1].Volume)
	}
	if diff := rec.Bids[1].VWAP - wantVWAP; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("l5 bid vwap = %f, want %f", rec.Bids[1].VWAP, wantVWAP)
	}

	if rec.BestBid != 50000 || rec.BestAsk != 50001 {
		t.Fatalf("bbo = %f/%f", rec.BestBid, rec.BestAsk)
	}
	if rec.Spread != 1.0 {
		t.Fatalf("spread = %f", rec.Spread)
	}
}

func TestBuildRecordWithTrades(t *testing.T) {
	summary := &domain.TradeSummary{
		TotalTrades: 2,
		BuyVolume:   1.5,
		SellVolume:  0.5,
		TotalVolume: 2.0,
		NetVolume:   1.0,
		BuyRatio:    0.75,
	}
	rec := BuildRecord(builtBook(t), summary, time.Now())
	if rec.Trades.NetVolume != 1.0 || rec.Trades.BuyRatio != 0.75 {
		t.Fatalf("trade summary not carried: %+v", rec.Trades)
	}
}

func TestBuildRecordEmptySide(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := book.NewEngine("BTC-USD", 8, logger)
	if !e.ProcessSnapshot(book.Message{Events: []book.Event{{
		Type: "snapshot",
		Updates: []book.LevelUpdate{
			{Side: "bid", PriceLevel: "50000", NewQuantity: "1.0"},
		},
	}}}) {
		t.Fatal("snapshot failed")
	}

	rec := BuildRecord(e.TopLevels(50), nil, time.Now())
	for _, f := range rec.Asks {
		if f.Volume != 0 || f.VWAP != 0 {
			t.Fatalf("empty ask side must report zeros: %+v", f)
		}
	}
	if rec.BestAsk != 0 || rec.Spread != 0 {
		t.Fatalf("bbo for empty side = %+v", rec)
	}
}
