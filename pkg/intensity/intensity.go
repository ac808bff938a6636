// Package intensity implements linear intensity rescaling with clipping,
// out-of-window replacement and dtype casting.
package intensity

import (
	"math"

	"github.com/pkg/errors"

	"volumekit/pkg/volume"
)

// Transform describes a linear intensity mapping.
//
// Apply runs, in order: clip to Clip, rescale the clipped data range onto
// Out, replace voxels whose original value lies below Threshold.Min (above
// Threshold.Max) with Below (Above), and cast to DType.
type Transform struct {
	Clip      volume.Range
	Out       volume.Range
	Threshold volume.Range
	Below     float64
	Above     float64
	DType     volume.DType
}

// Default returns a transform that keeps values, rescales onto [0, 1] and
// applies no threshold.
func Default() Transform {
	return Transform{
		Clip:      volume.Unbounded(),
		Out:       volume.Range{Min: 0, Max: 1},
		Threshold: volume.Unbounded(),
		DType:     volume.Float64,
	}
}

// Validate checks the ranges and the target dtype.
func (t Transform) Validate() error {
	if err := t.Clip.Validate(); err != nil {
		return errors.Wrap(err, "clip")
	}
	if math.IsNaN(t.Out.Min) || math.IsNaN(t.Out.Max) {
		return errors.Wrapf(volume.ErrInvalidArgument, "output range [%g, %g]", t.Out.Min, t.Out.Max)
	}
	if !t.DType.Valid() {
		return errors.Wrapf(volume.ErrInvalidArgument, "output dtype %d", int(t.DType))
	}
	return nil
}

// Apply returns the transformed volume. v is not modified.
func (t Transform) Apply(v *volume.Volume) (*volume.Volume, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	out := v.Like(t.DType)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, val := range v.Data {
		c := math.Min(math.Max(val, t.Clip.Min), t.Clip.Max)
		out.Data[i] = c
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	if !(hi > lo) {
		return nil, errors.Wrapf(volume.ErrDegenerateRange, "clipped data range [%g, %g]", lo, hi)
	}

	scale := t.Out.Width() / (hi - lo)
	for i, orig := range v.Data {
		var r float64
		switch {
		case orig < t.Threshold.Min:
			r = t.Below
		case orig > t.Threshold.Max:
			r = t.Above
		default:
			r = (out.Data[i]-lo)*scale + t.Out.Min
		}
		out.Data[i] = t.DType.Cast(r)
	}
	return out, nil
}
