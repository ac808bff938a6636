// Package histogram computes binned intensity histograms of volume samples.
package histogram

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"volumekit/pkg/volume"
)

// Histogram holds N bins over N+1 ascending edges.
type Histogram struct {
	// Edges are the bin boundaries. Bin i covers [Edges[i], Edges[i+1]),
	// the last bin also includes its upper edge.
	Edges []float64

	// Counts holds the number of samples per bin, or max(log10(count), 0)
	// when LogScale is set.
	Counts []float64

	// LogScale reports whether Counts were log10 transformed.
	LogScale bool
}

// Options controls the binning.
type Options struct {
	// Range fixes the histogram bounds. Samples outside it are dropped.
	// When nil the sample minimum and maximum are used.
	Range *volume.Range

	// LogScale replaces each count c with max(log10(c), 0).
	LogScale bool
}

// Compute bins samples into the given number of equal-width bins.
func Compute(samples []float64, bins int, opts Options) (*Histogram, error) {
	if bins < 1 {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "bin count %d", bins)
	}

	var lo, hi float64
	switch {
	case opts.Range != nil:
		if err := opts.Range.Validate(); err != nil {
			return nil, err
		}
		if math.IsInf(opts.Range.Min, 0) || math.IsInf(opts.Range.Max, 0) {
			return nil, errors.Wrapf(volume.ErrInvalidArgument, "histogram range [%g, %g] is not finite",
				opts.Range.Min, opts.Range.Max)
		}
		lo, hi = opts.Range.Min, opts.Range.Max
	case len(samples) == 0:
		lo, hi = 0, 1
	default:
		lo, hi = floats.Min(samples), floats.Max(samples)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	h := &Histogram{
		Edges:  make([]float64, bins+1),
		Counts: make([]float64, bins),
	}
	floats.Span(h.Edges, lo, hi)

	norm := float64(bins) / (hi - lo)
	for _, s := range samples {
		if s < lo || s > hi || math.IsNaN(s) {
			continue
		}
		h.Counts[binIndex(h.Edges, s, lo, norm)]++
	}

	if opts.LogScale {
		h.applyLogScale()
	}
	return h, nil
}

// FromVolume computes the histogram of the voxels inside roi. A nil roi
// selects the whole volume.
func FromVolume(v *volume.Volume, roi *volume.Mask, bins int, opts Options) (*Histogram, error) {
	samples, err := v.MaskedSamples(roi)
	if err != nil {
		return nil, err
	}
	return Compute(samples, bins, opts)
}

// binIndex maps s onto its bin, correcting the linear estimate against the
// edges so floating point rounding never puts a sample on the wrong side.
func binIndex(edges []float64, s, lo, norm float64) int {
	last := len(edges) - 2
	i := int((s - lo) * norm)
	if i > last {
		i = last
	}
	if i < 0 {
		i = 0
	}
	if s < edges[i] && i > 0 {
		i--
	} else if i < last && s >= edges[i+1] {
		i++
	}
	return i
}

func (h *Histogram) applyLogScale() {
	for i, c := range h.Counts {
		if c > 0 {
			h.Counts[i] = math.Max(math.Log10(c), 0)
		}
	}
	h.LogScale = true
}

// Bins returns the number of bins.
func (h *Histogram) Bins() int { return len(h.Counts) }

// Total returns the sum of the counts.
func (h *Histogram) Total() float64 { return floats.Sum(h.Counts) }

// Centers returns the midpoint of every bin.
func (h *Histogram) Centers() []float64 {
	c := make([]float64, len(h.Counts))
	for i := range c {
		c[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}
	return c
}
