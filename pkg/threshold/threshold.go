// Package threshold selects intensity cut points from sample distributions.
//
// A selector turns the samples of a region into an ascending list of
// thresholds: one value for a binary split, k values for a k+1 class
// partition. Selectors are pure and never retain the samples.
package threshold

import "strconv"

// Selector computes thresholds from samples.
type Selector interface {
	// Thresholds returns the cut points in ascending order.
	Thresholds(samples []float64) ([]float64, error)

	// Name identifies the selector in logs and results.
	Name() string
}

// Fixed always returns its Value.
type Fixed struct {
	Value float64
}

// Thresholds returns [Value].
func (f Fixed) Thresholds([]float64) ([]float64, error) {
	return []float64{f.Value}, nil
}

// Name implements Selector.
func (f Fixed) Name() string {
	return "fixed " + strconv.FormatFloat(f.Value, 'g', -1, 64)
}
