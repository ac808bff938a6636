package threshold

import (
	"volumekit/pkg/histogram"
	"volumekit/pkg/volume"
)

// triangleBins is the fixed resolution of the triangle histogram: one bin
// per unit over [0, 256].
const triangleBins = 256

// Triangle picks the deepest valley of a 256-bin histogram over [0, 256].
//
// A valley is a bin strictly lower than both neighbours. The valley with the
// largest (not smallest) count wins, first occurrence on ties, so empty bins
// are never selected. When no valley exists the threshold is 0.
type Triangle struct{}

// Name implements Selector.
func (Triangle) Name() string { return "triangle" }

// Thresholds implements Selector. Samples outside [0, 256] are discarded.
func (Triangle) Thresholds(samples []float64) ([]float64, error) {
	h, err := histogram.Compute(samples, triangleBins, histogram.Options{
		Range: &volume.Range{Min: 0, Max: triangleBins},
	})
	if err != nil {
		return nil, err
	}
	return []float64{float64(TriangleValley(h.Counts))}, nil
}

// TriangleValley returns the valley bin index chosen from raw counts.
func TriangleValley(counts []float64) int {
	minima := make([]float64, len(counts))
	for i := 1; i < len(counts)-1; i++ {
		if counts[i] < counts[i-1] && counts[i] < counts[i+1] {
			minima[i] = counts[i]
		}
	}

	valley := 0
	for i, m := range minima {
		if m > minima[valley] {
			valley = i
		}
	}

	// Extend left across adjacent valley bins.
	for i := valley; i > 0; i-- {
		if minima[i] == 0 {
			break
		}
		valley = i
	}
	return valley
}
