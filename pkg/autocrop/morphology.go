package autocrop

import (
	"github.com/pkg/errors"

	"volumekit/pkg/volume"
)

// Erode keeps a voxel when every voxel of the box of the given per-axis
// radius around it is set. Voxels outside the volume count as set.
func Erode(m *volume.Mask, radius []int) (*volume.Mask, error) {
	return boxFilter(m, radius, func(count, window int) bool { return count == window })
}

// Dilate sets a voxel when any voxel of the box around it is set. Voxels
// outside the volume count as unset.
func Dilate(m *volume.Mask, radius []int) (*volume.Mask, error) {
	return boxFilter(m, radius, func(count, _ int) bool { return count > 0 })
}

// Opening erodes then dilates with the same box, removing foreground
// structures thinner than the element.
func Opening(m *volume.Mask, radius []int) (*volume.Mask, error) {
	eroded, err := Erode(m, radius)
	if err != nil {
		return nil, err
	}
	return Dilate(eroded, radius)
}

// boxFilter applies a box element one axis at a time. keep decides each
// output voxel from the number of set voxels in the window clipped to the
// volume and the clipped window length.
func boxFilter(m *volume.Mask, radius []int, keep func(count, window int) bool) (*volume.Mask, error) {
	r, err := broadcast(radius, m.NDim(), "radius")
	if err != nil {
		return nil, err
	}

	cur := m.Clone()
	strides := m.Strides()
	line := make([]int, 0)
	for axis, ra := range r {
		if ra == 0 || m.Shape[axis] == 1 {
			continue
		}
		n := m.Shape[axis]
		stride := strides[axis]
		if cap(line) < n+1 {
			line = make([]int, n+1)
		}
		prefix := line[:n+1]

		next := volume.NewMask(m.Geometry)
		coords := make([]int, m.NDim())
		for start := range cur.Data {
			m.Coords(start, coords)
			if coords[axis] != 0 {
				continue
			}
			for i := 0; i < n; i++ {
				prefix[i+1] = prefix[i]
				if cur.Data[start+i*stride] {
					prefix[i+1]++
				}
			}
			for i := 0; i < n; i++ {
				lo, hi := i-ra, i+ra+1
				if lo < 0 {
					lo = 0
				}
				if hi > n {
					hi = n
				}
				next.Data[start+i*stride] = keep(prefix[hi]-prefix[lo], hi-lo)
			}
		}
		cur = next
	}
	return cur, nil
}

// broadcast expands a scalar or per-axis parameter to ndim entries. An empty
// slice means zero on every axis.
func broadcast(vals []int, ndim int, what string) ([]int, error) {
	out := make([]int, ndim)
	switch len(vals) {
	case 0:
	case 1:
		for i := range out {
			out[i] = vals[0]
		}
	case ndim:
		copy(out, vals)
	default:
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "%s %v for %d axes", what, vals, ndim)
	}
	for _, v := range out {
		if v < 0 {
			return nil, errors.Wrapf(volume.ErrInvalidArgument, "negative %s %v", what, vals)
		}
	}
	return out, nil
}
