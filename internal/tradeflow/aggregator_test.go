package tradeflow

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSummaryAndReset(t *testing.T) {
	a := NewAggregator(testLogger())

	if !a.AddTrade(50000, 0.5, domain.TradeBuy) {
		t.Fatal("valid buy rejected")
	}
	if !a.AddTrade(50010, 0.3, domain.TradeBuy) {
		t.Fatal("valid buy rejected")
	}
	if !a.AddTrade(49990, 0.2, domain.TradeSell) {
		t.Fatal("valid sell rejected")
	}

	s := a.SummaryAndReset()
	if s == nil {
		t.Fatal("expected a summary")
	}
	if s.TotalTrades != 3 || s.BuyCount != 2 || s.SellCount != 1 {
		t.Fatalf("counts = %d/%d/%d", s.TotalTrades, s.BuyCount, s.SellCount)
	}
	if got, want := s.BuyVolume, 0.8; !approx(got, want) {
		t.Fatalf("buy volume = %f, want %f", got, want)
	}
	if got, want := s.TotalVolume, 1.0; !approx(got, want) {
		t.Fatalf("total volume = %f, want %f", got, want)
	}
	if got, want := s.NetVolume, 0.6; !approx(got, want) {
		t.Fatalf("net volume = %f, want %f", got, want)
	}
	if got, want := s.BuyRatio, 0.8; !approx(got, want) {
		t.Fatalf("buy ratio = %f, want %f", got, want)
	}

	// Read-and-reset: an immediate second call has nothing to report.
	if s2 := a.SummaryAndReset(); s2 != nil {
		t.Fatalf("expected nil summary after reset, got %+v", s2)
	}
}

func TestAddTradeValidation(t *testing.T) {
	a := NewAggregator(testLogger())

	cases := []struct {
		name  string
		price float64
		size  float64
		side  domain.TradeSide
	}{
		{"zero price", 0, 1, domain.TradeBuy},
		{"negative price", -5, 1, domain.TradeBuy},
		{"zero size", 50000, 0, domain.TradeSell},
		{"negative size", 50000, -1, domain.TradeSell},
		{"unknown side", 50000, 1, domain.TradeSide("HOLD")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if a.AddTrade(tc.price, tc.size, tc.side) {
				t.Fatal("invalid trade accepted")
			}
		})
	}

	if a.Rejected() != int64(len(cases)) {
		t.Fatalf("rejected = %d, want %d", a.Rejected(), len(cases))
	}
	if s := a.SummaryAndReset(); s != nil {
		t.Fatalf("rejected trades must not accumulate, got %+v", s)
	}
}

func TestSideNormalization(t *testing.T) {
	a := NewAggregator(testLogger())

	if !a.AddTrade(50000, 1, domain.TradeSide("buy")) {
		t.Fatal("lowercase side rejected")
	}
	s := a.SummaryAndReset()
	if s == nil || s.BuyCount != 1 {
		t.Fatalf("lowercase buy not counted: %+v", s)
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
