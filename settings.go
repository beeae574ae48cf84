// Package lfpanels solves for the transmittance of two stacked display panels
// that together reproduce a target light field, using multiplicative-update
// non-negative factorization over sparse ray incidence matrices.
package lfpanels

import (
	"fmt"
	"runtime"
)

type Settings struct {
	// Number of multiplicative update rounds. Must be positive.
	IterCount int `json:"iter_count"`
	// Initial value of every entry of panel A and panel B, each in [0,1].
	StartingValues [2]float64 `json:"starting_values"`
	// Start from uniform random values in [0,1) instead of StartingValues.
	RNG bool `json:"rng"`
	// Seed for RNG. Zero seeds from the clock.
	Seed uint64 `json:"seed"`
	// Stop once two successive errors differ by less than EarlyStopTolerance.
	// Only the separable and stacked solvers honour it. Works without
	// SaveError; the error is then computed but not returned.
	EarlyStop bool `json:"early_stop"`
	// Force panel pixels no ray reaches to 1.0 (fully transparent).
	Filter bool `json:"filter"`
	// Return the per-iteration spectral error trace.
	SaveError bool `json:"save_error"`
	// Log progress every iteration. Never changes the result.
	DebugPrints bool `json:"debug_prints"`
	// Goroutines used by the sparse kernels.
	Workers int `json:"workers"`
}

// EarlyStopTolerance is the smallest change between successive errors that
// keeps the solver iterating when EarlyStop is set.
const EarlyStopTolerance = 1e-7

func DefaultSettings() Settings {
	return Settings{
		IterCount:      10,
		StartingValues: [2]float64{0.5, 0.5},
		Workers:        runtime.NumCPU(),
	}
}

// Validate reports the first problem found in s.
func (s Settings) Validate() error {
	if s.IterCount <= 0 {
		return fmt.Errorf("%w: iter_count %d must be positive", ErrSettings, s.IterCount)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("%w: workers %d must be positive", ErrSettings, s.Workers)
	}
	for i, v := range s.StartingValues {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("%w: starting_values[%d] = %v outside [0,1]", ErrSettings, i, v)
		}
	}
	return nil
}
