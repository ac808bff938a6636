package threshold

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"volumekit/pkg/histogram"
	"volumekit/pkg/volume"
)

// DefaultOtsuBins is the histogram resolution used when Otsu.Bins is zero.
const DefaultOtsuBins = 128

// Otsu computes Levels thresholds splitting the samples into Levels+1 classes
// of maximal between-class variance.
//
// The search runs over a Bins-bin histogram spanning the sample range and is
// exact: classes are contiguous bin runs, and every threshold is the upper
// edge of the last bin of its class.
type Otsu struct {
	Levels int
	Bins   int
}

// Name implements Selector.
func (o Otsu) Name() string {
	if o.Levels == 1 {
		return "otsu"
	}
	return fmt.Sprintf("multi-otsu %d", o.Levels)
}

// Thresholds implements Selector.
func (o Otsu) Thresholds(samples []float64) ([]float64, error) {
	if o.Levels < 1 {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "otsu levels %d", o.Levels)
	}
	if len(samples) == 0 {
		return nil, errors.Wrap(volume.ErrInvalidArgument, "otsu needs at least one sample")
	}
	bins := o.Bins
	if bins == 0 {
		bins = DefaultOtsuBins
	}
	if bins < o.Levels+1 {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "%d bins cannot hold %d classes", bins, o.Levels+1)
	}

	h, err := histogram.Compute(samples, bins, histogram.Options{})
	if err != nil {
		return nil, err
	}

	cuts := otsuCuts(h.Counts, h.Centers(), o.Levels+1)
	thresholds := make([]float64, len(cuts))
	for i, c := range cuts {
		thresholds[i] = h.Edges[c]
	}
	return thresholds, nil
}

// otsuCuts partitions the bins into the given number of contiguous classes
// maximizing sum(S_c^2 / W_c), where W_c is the class weight and S_c its
// first moment. It returns the index of the first bin of every class but the
// first, ascending.
func otsuCuts(counts, centers []float64, classes int) []int {
	n := len(counts)
	w := make([]float64, n+1)
	s := make([]float64, n+1)
	for i, c := range counts {
		w[i+1] = w[i] + c
		s[i+1] = s[i] + c*centers[i]
	}
	term := func(i, j int) float64 {
		wc := w[j] - w[i]
		if wc <= 0 {
			return 0
		}
		sc := s[j] - s[i]
		return sc * sc / wc
	}

	// best[c][j]: optimum for c+1 classes covering bins [0, j).
	best := make([][]float64, classes)
	from := make([][]int, classes)
	for c := range best {
		best[c] = make([]float64, n+1)
		from[c] = make([]int, n+1)
		for j := range best[c] {
			best[c][j] = math.Inf(-1)
		}
	}
	for j := 1; j <= n; j++ {
		best[0][j] = term(0, j)
	}
	for c := 1; c < classes; c++ {
		for j := c + 1; j <= n; j++ {
			for i := c; i < j; i++ {
				v := best[c-1][i] + term(i, j)
				if v > best[c][j] {
					best[c][j] = v
					from[c][j] = i
				}
			}
		}
	}

	cuts := make([]int, classes-1)
	j := n
	for c := classes - 1; c > 0; c-- {
		j = from[c][j]
		cuts[c-1] = j
	}
	return cuts
}
