// Package partition splits a region of interest into disjoint segments by
// comparing voxel intensities against thresholds.
package partition

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"volumekit/pkg/volume"
)

// Segment is a named mask.
type Segment struct {
	Name  string
	Mask  *volume.Mask
	Color *Color
}

// Color is an RGB triple with components in [0, 1].
type Color struct {
	R, G, B float64
}

// DefaultNames are used by Binary when a name is empty.
var DefaultNames = [2]string{"below", "above"}

// Binary splits the ROI at t: voxels with v < t go to the first segment,
// v >= t to the second. A nil roi selects the whole volume.
func Binary(v *volume.Volume, roi *volume.Mask, t float64, names [2]string) ([]Segment, error) {
	if err := checkROI(v, roi); err != nil {
		return nil, err
	}
	for i := range names {
		if names[i] == "" {
			names[i] = DefaultNames[i]
		}
	}

	below := volume.NewMask(v.Geometry)
	above := volume.NewMask(v.Geometry)
	for i, val := range v.Data {
		if roi != nil && !roi.Data[i] {
			continue
		}
		if val < t {
			below.Data[i] = true
		} else {
			above.Data[i] = true
		}
	}

	return []Segment{
		{Name: names[0], Mask: below},
		{Name: names[1], Mask: above},
	}, nil
}

// Labels assigns every voxel a class label: 0 outside the ROI, otherwise one
// plus the number of cuts at or below the value. A value equal to a cut
// belongs to the upper class, as in Binary, so labels range over
// 1..len(cuts)+1.
func Labels(v *volume.Volume, roi *volume.Mask, cuts []float64) ([]int, error) {
	if err := checkROI(v, roi); err != nil {
		return nil, err
	}
	if !sort.Float64sAreSorted(cuts) {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "cuts %v are not ascending", cuts)
	}

	labels := make([]int, len(v.Data))
	for i, val := range v.Data {
		if roi != nil && !roi.Data[i] {
			continue
		}
		labels[i] = 1 + sort.Search(len(cuts), func(j int) bool { return cuts[j] > val })
	}
	return labels, nil
}

// Classes returns one segment per label 1..len(cuts)+1. name may be nil, in
// which case segments are called "class <label>".
func Classes(v *volume.Volume, roi *volume.Mask, cuts []float64, name func(label int) string) ([]Segment, error) {
	labels, err := Labels(v, roi, cuts)
	if err != nil {
		return nil, err
	}
	if name == nil {
		name = func(label int) string { return fmt.Sprintf("class %d", label) }
	}

	segs := make([]Segment, len(cuts)+1)
	for i := range segs {
		segs[i] = Segment{Name: name(i + 1), Mask: volume.NewMask(v.Geometry)}
	}
	for i, l := range labels {
		if l > 0 {
			segs[l-1].Mask.Data[i] = true
		}
	}
	return segs, nil
}

func checkROI(v *volume.Volume, roi *volume.Mask) error {
	if roi == nil {
		return nil
	}
	return volume.CheckShape(v.Geometry, roi.Geometry)
}
