// Package autocrop crops a volume to the bounding box of its foreground.
//
// The foreground comes either from a region mask or from an inclusive
// intensity window, optionally cleaned by a binary opening. The box is
// grown by a border, clamped to the volume and the crop keeps the physical
// position of every voxel.
package autocrop

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"volumekit/pkg/volume"
)

// Box is an inclusive index range per axis.
type Box struct {
	Lo []int
	Hi []int
}

// Shape returns the number of voxels along each axis.
func (b Box) Shape() []int {
	s := make([]int, len(b.Lo))
	for i := range s {
		s[i] = b.Hi[i] - b.Lo[i] + 1
	}
	return s
}

func (b Box) String() string { return fmt.Sprintf("%v..%v", b.Lo, b.Hi) }

// Options selects the foreground and the crop margins.
type Options struct {
	// ROI is the foreground when set. Otherwise voxels inside Threshold are.
	ROI       *volume.Mask
	Threshold volume.Range

	// CleanRadius enables a binary opening with a box of this radius. One
	// value applies to every axis.
	CleanRadius []int

	// Border grows the box on every side. One value applies to every axis.
	Border []int
}

// Autocrop returns the cropped volume and the box it was cut from.
func Autocrop(v *volume.Volume, opts Options) (*volume.Volume, Box, error) {
	if err := v.Validate(); err != nil {
		return nil, Box{}, err
	}

	var fg *volume.Mask
	if opts.ROI != nil {
		if err := volume.CheckShape(v.Geometry, opts.ROI.Geometry); err != nil {
			return nil, Box{}, err
		}
		fg = opts.ROI
	} else {
		if err := opts.Threshold.Validate(); err != nil {
			return nil, Box{}, err
		}
		fg = Threshold(v, opts.Threshold)
	}

	radius, err := broadcast(opts.CleanRadius, v.NDim(), "clean radius")
	if err != nil {
		return nil, Box{}, err
	}
	border, err := broadcast(opts.Border, v.NDim(), "border")
	if err != nil {
		return nil, Box{}, err
	}

	if anyPositive(radius) {
		if fg, err = Opening(fg, radius); err != nil {
			return nil, Box{}, err
		}
	}

	box, err := BoundingBox(fg)
	if err != nil {
		return nil, Box{}, err
	}
	box = box.Expand(border, v.Shape)

	out, err := Crop(v, box)
	if err != nil {
		return nil, Box{}, err
	}
	return out, box, nil
}

// Threshold returns the mask of voxels with r.Min <= value <= r.Max.
func Threshold(v *volume.Volume, r volume.Range) *volume.Mask {
	m := volume.NewMask(v.Geometry)
	for i, val := range v.Data {
		m.Data[i] = r.Contains(val)
	}
	return m
}

// BoundingBox returns the smallest box holding every set voxel.
func BoundingBox(m *volume.Mask) (Box, error) {
	n := m.NDim()
	box := Box{Lo: make([]int, n), Hi: make([]int, n)}
	for i := range box.Lo {
		box.Lo[i] = m.Shape[i]
		box.Hi[i] = -1
	}

	found := false
	coords := make([]int, n)
	for idx, in := range m.Data {
		if !in {
			continue
		}
		found = true
		m.Coords(idx, coords)
		for i, c := range coords {
			if c < box.Lo[i] {
				box.Lo[i] = c
			}
			if c > box.Hi[i] {
				box.Hi[i] = c
			}
		}
	}
	if !found {
		return Box{}, errors.Wrap(volume.ErrEmptyMask, "no foreground voxels")
	}
	return box, nil
}

// Expand grows the box by border on each side and clamps it to [0, shape-1].
func (b Box) Expand(border, shape []int) Box {
	out := Box{Lo: make([]int, len(b.Lo)), Hi: make([]int, len(b.Hi))}
	for i := range b.Lo {
		out.Lo[i] = max(b.Lo[i]-border[i], 0)
		out.Hi[i] = min(b.Hi[i]+border[i], shape[i]-1)
	}
	return out
}

// Crop extracts the voxels inside box. The output origin is the physical
// position of the box corner; spacing, direction and dtype are kept.
func Crop(v *volume.Volume, box Box) (*volume.Volume, error) {
	g, err := cropGeometry(v.Geometry, box)
	if err != nil {
		return nil, err
	}
	out := &volume.Volume{Geometry: g, DType: v.DType, Data: make([]float64, g.Len())}
	copyBox(g, v.Geometry, box, func(dst, src int) { out.Data[dst] = v.Data[src] })
	return out, nil
}

// CropMask extracts the voxels of m inside box.
func CropMask(m *volume.Mask, box Box) (*volume.Mask, error) {
	g, err := cropGeometry(m.Geometry, box)
	if err != nil {
		return nil, err
	}
	out := &volume.Mask{Geometry: g, Data: make([]bool, g.Len())}
	copyBox(g, m.Geometry, box, func(dst, src int) { out.Data[dst] = m.Data[src] })
	return out, nil
}

func cropGeometry(src volume.Geometry, box Box) (volume.Geometry, error) {
	n := src.NDim()
	if len(box.Lo) != n || len(box.Hi) != n {
		return volume.Geometry{}, errors.Wrapf(volume.ErrInvalidArgument, "box %v for %d axes", box, n)
	}
	for i := 0; i < n; i++ {
		if box.Lo[i] < 0 || box.Hi[i] >= src.Shape[i] || box.Lo[i] > box.Hi[i] {
			return volume.Geometry{}, errors.Wrapf(volume.ErrInvalidArgument, "box %v outside shape %v", box, src.Shape)
		}
	}

	// origin + D * (spacing .* lo)
	offset := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		offset.SetVec(i, src.Spacing[i]*float64(box.Lo[i]))
	}
	var shift mat.VecDense
	shift.MulVec(mat.NewDense(n, n, append([]float64(nil), src.Direction...)), offset)

	g := src.Clone()
	g.Shape = box.Shape()
	for i := range g.Origin {
		g.Origin[i] += shift.AtVec(i)
	}
	return g, nil
}

// copyBox calls set for every voxel of the cropped geometry g with its flat
// index in g and the matching flat index in src.
func copyBox(g, src volume.Geometry, box Box, set func(dst, src int)) {
	coords := make([]int, g.NDim())
	for dst := 0; dst < g.Len(); dst++ {
		g.Coords(dst, coords)
		for i := range coords {
			coords[i] += box.Lo[i]
		}
		set(dst, src.Index(coords...))
	}
}

func anyPositive(vals []int) bool {
	for _, v := range vals {
		if v > 0 {
			return true
		}
	}
	return false
}
