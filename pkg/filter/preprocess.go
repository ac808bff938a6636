package filter

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"volumekit/pkg/volume"
)

// DefaultClip is the CT air level used as the preprocessing clip value.
const DefaultClip = -1024

// Preprocess prepares a volume for volume rendering: values are shifted so
// that the clip value maps to zero, anything below it is zeroed, and one
// output is produced per median radius.
type Preprocess struct {
	// Clip is the value mapped to zero.
	Clip float64

	// Adaptive replaces Clip by the smallest voxel value >= Clip.
	Adaptive bool

	// MedianRadii lists the median filter radii, in voxels along every
	// axis. Zero produces the unsmoothed image.
	MedianRadii []int

	// DType is the output element type.
	DType volume.DType
}

// Output is one preprocessed image.
type Output struct {
	// Radius is the median radius, zero when unsmoothed.
	Radius int

	Volume *volume.Volume
}

// DefaultPreprocess returns adaptive clipping at DefaultClip with a single
// unsmoothed float32 output.
func DefaultPreprocess() Preprocess {
	return Preprocess{
		Clip:        DefaultClip,
		Adaptive:    true,
		MedianRadii: []int{0},
		DType:       volume.Float32,
	}
}

// Validate checks the radii and dtype.
func (p Preprocess) Validate() error {
	if math.IsNaN(p.Clip) {
		return errors.Wrap(volume.ErrInvalidArgument, "clip is NaN")
	}
	if !p.DType.Valid() {
		return errors.Wrapf(volume.ErrInvalidArgument, "dtype %d", int(p.DType))
	}
	for _, r := range p.MedianRadii {
		if r < 0 {
			return errors.Wrapf(volume.ErrInvalidArgument, "median radius %d", r)
		}
	}
	return nil
}

// ClipValue returns the effective clip value for v.
func (p Preprocess) ClipValue(v *volume.Volume) (float64, error) {
	if !p.Adaptive {
		return p.Clip, nil
	}
	clip := math.Inf(1)
	for _, val := range v.Data {
		if val >= p.Clip && val < clip {
			clip = val
		}
	}
	if math.IsInf(clip, 1) {
		return 0, errors.Wrapf(volume.ErrEmptyMask, "no voxel at or above clip %g", p.Clip)
	}
	return clip, nil
}

// Shift returns v - clip with negative results set to zero, as Float64, and
// the clip value used.
func (p Preprocess) Shift(v *volume.Volume) (*volume.Volume, float64, error) {
	if err := v.Validate(); err != nil {
		return nil, 0, err
	}
	clip, err := p.ClipValue(v)
	if err != nil {
		return nil, 0, err
	}
	out := v.Like(volume.Float64)
	for i, val := range v.Data {
		out.Data[i] = math.Max(val-clip, 0)
	}
	return out, clip, nil
}

// Apply shifts v and returns one output per median radius, in the order of
// MedianRadii, each cast to DType. An empty MedianRadii yields the
// unsmoothed image only.
func (p Preprocess) Apply(v *volume.Volume) ([]Output, float64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	shifted, clip, err := p.Shift(v)
	if err != nil {
		return nil, 0, err
	}

	radii := p.MedianRadii
	if len(radii) == 0 {
		radii = []int{0}
	}
	outputs := make([]Output, 0, len(radii))
	for _, r := range radii {
		filtered, err := Median(shifted, []int{r})
		if err != nil {
			return nil, 0, errors.Wrapf(err, "median radius %d", r)
		}
		filtered.DType = p.DType
		for i, val := range filtered.Data {
			filtered.Data[i] = p.DType.Cast(val)
		}
		outputs = append(outputs, Output{Radius: r, Volume: filtered})
	}
	return outputs, clip, nil
}

// OutputName returns base for the unsmoothed output and base-m<radius>
// otherwise.
func OutputName(base string, radius int) string {
	if radius == 0 {
		return base
	}
	return fmt.Sprintf("%s-m%d", base, radius)
}
