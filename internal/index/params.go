// Package index computes the consolidated multi-venue reference price.
package index

import "time"

// Params are the tunable policy constants of the index methodology. Every
// value here is a deliberate parameter of the method, not an incidental
// constant.
type Params struct {
	// SpacingVol is the cumulative-volume grid step, and also the minimum
	// two-sided depth below which the index is withheld.
	SpacingVol float64

	// DevMid is the maximum spread-curve deviation used to pick the
	// utilized depth cutoff.
	DevMid float64

	// ErrBand is the maximum relative deviation of a venue's mid from the
	// cross-venue median before that venue is discarded.
	ErrBand float64

	// MaxSample is how many top levels per side feed the dynamic cap.
	MaxSample int

	// Stale is the maximum age of a venue book before it is dropped.
	Stale time.Duration
}

// DefaultParams returns the standard methodology parameters.
func DefaultParams() Params {
	return Params{
		SpacingVol: 1.0,
		DevMid:     0.005,
		ErrBand:    0.05,
		MaxSample:  50,
		Stale:      30 * time.Second,
	}
}
