package filter

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"volumekit/pkg/blockreduce"
	"volumekit/pkg/volume"
)

// Median replaces every voxel by the median of the box of the given radius
// around it. radius holds one value for every axis or one per axis; zero
// leaves an axis unfiltered. Out-of-volume neighbours replicate the nearest
// border voxel. The result keeps the input dtype.
func Median(v *volume.Volume, radius []int) (*volume.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	r, err := broadcastRadius(radius, v.NDim())
	if err != nil {
		return nil, err
	}

	window := 1
	for _, ri := range r {
		window *= 2*ri + 1
	}
	out := v.Clone()
	if window == 1 {
		return out, nil
	}

	// Split the output into contiguous chunks, one gather buffer each.
	workers := runtime.NumCPU()
	chunk := (len(v.Data) + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < len(v.Data); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(v.Data))
		g.Go(func() error {
			medianRange(v, r, window, lo, hi, out.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// medianRange filters the flat indices [lo, hi) of v into dst.
func medianRange(v *volume.Volume, radius []int, window, lo, hi int, dst []float64) {
	n := v.NDim()
	buf := make([]float64, window)
	center := make([]int, n)
	offset := make([]int, n)
	at := make([]int, n)

	for idx := lo; idx < hi; idx++ {
		v.Coords(idx, center)
		for i := range offset {
			offset[i] = -radius[i]
		}
		for k := 0; k < window; k++ {
			for i := range at {
				at[i] = min(max(center[i]+offset[i], 0), v.Shape[i]-1)
			}
			buf[k] = v.Data[v.Index(at...)]

			for i := range offset {
				offset[i]++
				if offset[i] <= radius[i] {
					break
				}
				offset[i] = -radius[i]
			}
		}
		dst[idx] = blockreduce.Median.Apply(buf)
	}
}

func broadcastRadius(radius []int, ndim int) ([]int, error) {
	if len(radius) == 0 {
		return make([]int, ndim), nil
	}
	out := make([]int, ndim)
	switch len(radius) {
	case 1:
		for i := range out {
			out[i] = radius[0]
		}
	case ndim:
		copy(out, radius)
	default:
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "radius %v for %d axes", radius, ndim)
	}
	for _, r := range out {
		if r < 0 {
			return nil, errors.Wrapf(volume.ErrInvalidArgument, "negative radius %v", radius)
		}
	}
	return out, nil
}
