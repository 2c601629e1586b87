package index

import (
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// Engine computes the consolidated reference price from a set of venue
// books. Compute is a pure function of its inputs; the engine carries no
// state between calls beyond its parameters.
type Engine struct {
	params Params
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Params returns the engine's methodology parameters.
func (e *Engine) Params() Params { return e.params }

// Compute runs the full index pipeline over the current venue-book
// snapshot. Any early-exit condition (no fresh venues, no venues within
// the deviation band, a degenerate cap, insufficient two-sided depth)
// yields a withheld result with a nil value; that is an expected outcome,
// not an error.
func (e *Engine) Compute(books map[string]domain.VenueBook, now time.Time) domain.IndexResult {
	res := domain.IndexResult{Timestamp: now}
	nowMS := now.UnixMilli()
	staleMS := e.params.Stale.Milliseconds()

	// Stage 1: freshness + crossing filter.
	fresh := make(map[string]domain.VenueBook, len(books))
	for id, b := range books {
		if len(b.Bids) == 0 || len(b.Asks) == 0 {
			continue
		}
		if nowMS-b.TS > staleMS {
			continue
		}
		if b.Crossed() {
			continue
		}
		fresh[id] = b
	}
	if len(fresh) == 0 {
		return res
	}

	// Stage 2: median-deviation filter on venue mids.
	mids := make([]float64, 0, len(fresh))
	for _, b := range fresh {
		mids = append(mids, b.Mid())
	}
	med := median(mids)
	ok := make(map[string]domain.VenueBook, len(fresh))
	for id, b := range fresh {
		if math.Abs(b.Mid()/med-1) <= e.params.ErrBand {
			ok[id] = b
		}
	}
	if len(ok) == 0 {
		return res
	}

	// Stage 3: consolidate surviving venues by price level.
	bids, asks := consolidate(ok)

	// Stage 4: dynamic outlier cap from the top levels of both sides.
	cap := e.winsorizedCap(bids, asks)
	if cap == 0 {
		return res
	}

	// Stage 5: clip every consolidated level to the cap.
	for i := range bids {
		bids[i].Size = math.Min(bids[i].Size, cap)
	}
	for i := range asks {
		asks[i].Size = math.Min(asks[i].Size, cap)
	}

	// Stage 6: cumulative volume curves, walking out from the best price.
	bv, bp := cumulative(bids)
	av, ap := cumulative(asks)

	// Stage 7: total tradable volume gate.
	total := math.Min(bv[len(bv)-1], av[len(av)-1])
	if total < e.params.SpacingVol {
		return res
	}

	// Stage 8: evenly spaced cumulative-volume grid.
	grid := volumeGrid(e.params.SpacingVol, total)

	// Stage 9: mid and spread curves at each grid depth.
	bidCurve := priceCurve(bv, bp, grid)
	askCurve := priceCurve(av, ap, grid)
	midCurve := make([]float64, len(grid))
	spreadCurve := make([]float64, len(grid))
	for i := range grid {
		midCurve[i] = (bidCurve[i] + askCurve[i]) / 2
		spreadCurve[i] = askCurve[i]/midCurve[i] - 1
	}

	// Stage 10: utilized-depth cutoff where the spread curve stays tight.
	depth := e.params.SpacingVol
	for i := range grid {
		if spreadCurve[i] <= e.params.DevMid && grid[i] > depth {
			depth = grid[i]
		}
	}

	// Stages 11-12: exponential depth weights over the utilized grid,
	// normalized, then the weighted mid-curve sum.
	lam := 1 / (0.3 * depth)
	var wSum, value float64
	weights := make([]float64, 0, len(grid))
	utilized := make([]float64, 0, len(grid))
	for i := range grid {
		if grid[i] > depth {
			break
		}
		w := lam * math.Exp(-lam*grid[i])
		weights = append(weights, w)
		utilized = append(utilized, midCurve[i])
		wSum += w
	}
	for i := range weights {
		value += utilized[i] * (weights[i] / wSum)
	}

	venues := make([]string, 0, len(ok))
	for id := range ok {
		venues = append(venues, id)
	}
	sort.Strings(venues)

	res.Value = &value
	res.Venues = venues
	return res
}

// consolidate merges venue books by summing sizes at identical prices,
// returning bids sorted descending and asks ascending.
func consolidate(books map[string]domain.VenueBook) (bids, asks []domain.PriceLevel) {
	bmap := make(map[float64]float64)
	amap := make(map[float64]float64)
	for _, b := range books {
		for _, lvl := range b.Bids {
			bmap[lvl.Price] += lvl.Size
		}
		for _, lvl := range b.Asks {
			amap[lvl.Price] += lvl.Size
		}
	}
	bids = make([]domain.PriceLevel, 0, len(bmap))
	for p, s := range bmap {
		bids = append(bids, domain.PriceLevel{Price: p, Size: s})
	}
	asks = make([]domain.PriceLevel, 0, len(amap))
	for p, s := range amap {
		asks = append(asks, domain.PriceLevel{Price: p, Size: s})
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return bids, asks
}

// winsorizedCap computes the dynamic size cap: take the top MaxSample
// levels from each side, winsorize the combined sample at 1% per tail
// (minimum one element), then return mean + 5 sample standard deviations.
// A zero cap signals a degenerate or empty book.
func (e *Engine) winsorizedCap(bids, asks []domain.PriceLevel) float64 {
	sample := make([]float64, 0, 2*e.params.MaxSample)
	for i := 0; i < len(bids) && i < e.params.MaxSample; i++ {
		sample = append(sample, bids[i].Size)
	}
	for i := 0; i < len(asks) && i < e.params.MaxSample; i++ {
		sample = append(sample, asks[i].Size)
	}
	n := len(sample)
	if n == 0 {
		return 0
	}
	sort.Float64s(sample)

	k := int(0.01 * float64(n))
	if k < 1 {
		k = 1
	}
	if k >= n {
		k = n - 1
	}
	for i := 0; i < k; i++ {
		sample[i] = sample[k]
	}
	for i := n - k; i < n; i++ {
		sample[i] = sample[n-k-1]
	}

	var sum float64
	for _, v := range sample {
		sum += v
	}
	mean := sum / float64(n)
	if n < 2 {
		return mean
	}
	var ss float64
	for _, v := range sample {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n-1))
	return mean + 5*std
}

// cumulative builds parallel cumulative-size and price arrays from sorted
// levels, walking outward from the best price.
func cumulative(levels []domain.PriceLevel) (vols, prices []float64) {
	vols = make([]float64, len(levels))
	prices = make([]float64, len(levels))
	var total float64
	for i, lvl := range levels {
		total += lvl.Size
		vols[i] = total
		prices[i] = lvl.Price
	}
	return vols, prices
}

// volumeGrid returns spacing, 2*spacing, ... with ceil(total/spacing)
// checkpoints, matching an arange over (spacing, total+spacing).
func volumeGrid(spacing, total float64) []float64 {
	n := int(math.Ceil(total / spacing))
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = spacing * float64(i+1)
	}
	return grid
}

// priceCurve evaluates the price step function at each grid depth: the
// price at the first level whose cumulative volume reaches the checkpoint,
// clamped to the last level.
func priceCurve(vols, prices, grid []float64) []float64 {
	out := make([]float64, len(grid))
	for i, v := range grid {
		idx := sort.SearchFloat64s(vols, v)
		if idx >= len(prices) {
			idx = len(prices) - 1
		}
		out[i] = prices[idx]
	}
	return out
}

// median returns the median of values. The input slice is reordered.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
