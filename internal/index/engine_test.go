package index

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

func bookAt(venue string, ts time.Time, bids, asks []domain.PriceLevel) domain.VenueBook {
	return domain.VenueBook{
		VenueID: venue,
		Bids:    bids,
		Asks:    asks,
		TS:      ts.UnixMilli(),
	}
}

func TestComputeTwoIdenticalVenues(t *testing.T) {
	e := NewEngine(DefaultParams())
	now := time.Now()

	bids := []domain.PriceLevel{{Price: 100, Size: 1}, {Price: 99, Size: 2}}
	asks := []domain.PriceLevel{{Price: 101, Size: 1}, {Price: 102, Size: 2}}
	books := map[string]domain.VenueBook{
		"coinbase": bookAt("coinbase", now, bids, asks),
		"kraken":   bookAt("kraken", now, bids, asks),
	}

	res := e.Compute(books, now)
	if res.Withheld() {
		t.Fatal("expected a published index, got withheld")
	}
	if *res.Value <= 100 || *res.Value >= 101 {
		t.Fatalf("index %f outside (100, 101)", *res.Value)
	}
	if len(res.Venues) != 2 || res.Venues[0] != "coinbase" || res.Venues[1] != "kraken" {
		t.Fatalf("contributing venues = %v, want [coinbase kraken]", res.Venues)
	}
	// Both venues are identical, so every grid mid is 100.5 and clipping
	// cannot move the weighted sum off it.
	if math.Abs(*res.Value-100.5) > 1e-9 {
		t.Fatalf("index = %f, want 100.5", *res.Value)
	}
}

func TestComputeStaleVenueExcluded(t *testing.T) {
	e := NewEngine(DefaultParams())
	now := time.Now()

	bids := []domain.PriceLevel{{Price: 100, Size: 2}}
	asks := []domain.PriceLevel{{Price: 101, Size: 2}}
	books := map[string]domain.VenueBook{
		"fresh": bookAt("fresh", now, bids, asks),
		"stale": bookAt("stale", now.Add(-2*time.Minute), bids, asks),
	}

	res := e.Compute(books, now)
	if res.Withheld() {
		t.Fatal("expected index from the fresh venue")
	}
	if len(res.Venues) != 1 || res.Venues[0] != "fresh" {
		t.Fatalf("venues = %v, want only [fresh]", res.Venues)
	}
}

func TestComputeCrossedBookExcluded(t *testing.T) {
	e := NewEngine(DefaultParams())
	now := time.Now()

	books := map[string]domain.VenueBook{
		"crossed": bookAt("crossed", now,
			[]domain.PriceLevel{{Price: 102, Size: 2}},
			[]domain.PriceLevel{{Price: 101, Size: 2}},
		),
	}

	res := e.Compute(books, now)
	if !res.Withheld() {
		t.Fatal("crossed single venue should withhold the index")
	}
	if len(res.Venues) != 0 {
		t.Fatalf("venues = %v, want empty", res.Venues)
	}
}

func TestComputeDeviationFilterWithholds(t *testing.T) {
	e := NewEngine(DefaultParams())
	now := time.Now()

	// Mids 100.5 and 120.5: the two-venue median is 110.5 and both venues
	// deviate by roughly 9%, past the 5% band, so nothing survives.
	books := map[string]domain.VenueBook{
		"a": bookAt("a", now,
			[]domain.PriceLevel{{Price: 100, Size: 2}},
			[]domain.PriceLevel{{Price: 101, Size: 2}},
		),
		"b": bookAt("b", now,
			[]domain.PriceLevel{{Price: 120, Size: 2}},
			[]domain.PriceLevel{{Price: 121, Size: 2}},
		),
	}

	res := e.Compute(books, now)
	if !res.Withheld() {
		t.Fatalf("expected withheld index, got %v", *res.Value)
	}
}

func TestComputeDeviationFilterDropsOutlierVenue(t *testing.T) {
	e := NewEngine(DefaultParams())
	now := time.Now()

	mk := func(bid, ask float64) ([]domain.PriceLevel, []domain.PriceLevel) {
		return []domain.PriceLevel{{Price: bid, Size: 2}},
			[]domain.PriceLevel{{Price: ask, Size: 2}}
	}
	b1, a1 := mk(100, 101)
	b2, a2 := mk(100.2, 101.2)
	b3, a3 := mk(140, 141) // ~39% off the median mid

	books := map[string]domain.VenueBook{
		"a":       bookAt("a", now, b1, a1),
		"b":       bookAt("b", now, b2, a2),
		"outlier": bookAt("outlier", now, b3, a3),
	}

	res := e.Compute(books, now)
	if res.Withheld() {
		t.Fatal("expected index from the two agreeing venues")
	}
	for _, v := range res.Venues {
		if v == "outlier" {
			t.Fatal("outlier venue should have been excluded")
		}
	}
}

func TestComputeInsufficientDepthWithholds(t *testing.T) {
	e := NewEngine(DefaultParams())
	now := time.Now()

	// Total tradable volume min(0.4, 0.4) is below the 1 BTC gate.
	books := map[string]domain.VenueBook{
		"thin": bookAt("thin", now,
			[]domain.PriceLevel{{Price: 100, Size: 0.4}},
			[]domain.PriceLevel{{Price: 101, Size: 0.4}},
		),
	}

	res := e.Compute(books, now)
	if !res.Withheld() {
		t.Fatal("expected withheld index on insufficient two-sided depth")
	}
}

func TestComputeEmptyInputWithholds(t *testing.T) {
	e := NewEngine(DefaultParams())
	res := e.Compute(nil, time.Now())
	if !res.Withheld() {
		t.Fatal("expected withheld index for empty venue map")
	}
}

func TestWinsorizedCap(t *testing.T) {
	e := NewEngine(DefaultParams())

	bids := []domain.PriceLevel{
		{Price: 100, Size: 2}, {Price: 99, Size: 4},
	}
	asks := []domain.PriceLevel{
		{Price: 101, Size: 2}, {Price: 102, Size: 4},
	}
	// Sample [2 2 4 4]: one-element winsorization leaves it unchanged,
	// mean 3, sample stdev sqrt(4/3).
	want := 3 + 5*math.Sqrt(4.0/3.0)
	got := e.winsorizedCap(bids, asks)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("cap = %f, want %f", got, want)
	}

	if e.winsorizedCap(nil, nil) != 0 {
		t.Fatal("empty sample must produce a zero cap")
	}
}

func TestWinsorizedCapBoundsOutlier(t *testing.T) {
	e := NewEngine(DefaultParams())

	bids := []domain.PriceLevel{
		{Price: 100, Size: 1}, {Price: 99, Size: 1}, {Price: 98, Size: 1},
	}
	asks := []domain.PriceLevel{
		{Price: 101, Size: 1}, {Price: 102, Size: 1}, {Price: 103, Size: 500},
	}
	cap := e.winsorizedCap(bids, asks)
	if cap >= 500 {
		t.Fatalf("cap %f should bound the 500-size outlier level", cap)
	}
}

func TestComputeClipsOutlierBeforeWeighting(t *testing.T) {
	e := NewEngine(DefaultParams())
	now := time.Now()

	bids := make([]domain.PriceLevel, 10)
	for i := range bids {
		bids[i] = domain.PriceLevel{Price: 100 - 0.1*float64(i), Size: 5}
	}
	asks := []domain.PriceLevel{
		{Price: 101, Size: 1},
		{Price: 101.1, Size: 1},
		{Price: 101.2, Size: 500},
	}

	cap := e.winsorizedCap(bids, asks)
	if cap >= 500 {
		t.Fatalf("cap = %f, outlier level must exceed it", cap)
	}

	// Winsorization replaces the single largest sample element with the
	// second largest, so a book whose outlier is already reduced to the
	// cap produces the same cap, and after clipping the two books are
	// identical. The 500-size level is on the min side: unclipped it
	// would lift the total volume gate from ~14 to 50 and change the
	// weighted sum.
	clipped := make([]domain.PriceLevel, len(asks))
	copy(clipped, asks)
	clipped[2].Size = cap

	withOutlier := e.Compute(map[string]domain.VenueBook{
		"a": bookAt("a", now, bids, asks),
	}, now)
	preClipped := e.Compute(map[string]domain.VenueBook{
		"a": bookAt("a", now, bids, clipped),
	}, now)

	if withOutlier.Withheld() || preClipped.Withheld() {
		t.Fatal("expected both computations to publish")
	}
	if math.Abs(*withOutlier.Value-*preClipped.Value) > 1e-9 {
		t.Fatalf("index %f with the raw outlier, %f with it pre-clipped to the cap; levels must be clipped before weighting",
			*withOutlier.Value, *preClipped.Value)
	}
}

func TestVolumeGrid(t *testing.T) {
	grid := volumeGrid(1, 2.5)
	want := []float64{1, 2, 3}
	if len(grid) != len(want) {
		t.Fatalf("grid = %v, want %v", grid, want)
	}
	for i := range want {
		if grid[i] != want[i] {
			t.Fatalf("grid = %v, want %v", grid, want)
		}
	}
}
