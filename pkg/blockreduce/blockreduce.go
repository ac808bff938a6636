// Package blockreduce downsamples volumes by reducing disjoint blocks.
package blockreduce

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volumekit/pkg/volume"
)

// Func is a reduction applied to the values of one block.
type Func int

const (
	Min Func = iota
	Max
	Mean
	Median
	Std
)

var funcNames = [...]string{
	Min:    "min",
	Max:    "max",
	Mean:   "mean",
	Median: "median",
	Std:    "std",
}

// ParseFunc resolves a reduction name such as "median".
func ParseFunc(s string) (Func, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range funcNames {
		if n == name {
			return Func(f), nil
		}
	}
	return 0, errors.Wrapf(volume.ErrInvalidArgument, "unknown reduction function %q", s)
}

func (f Func) String() string {
	if f < 0 || int(f) >= len(funcNames) {
		return "unknown"
	}
	return funcNames[f]
}

// Apply reduces values. values may be reordered.
func (f Func) Apply(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	switch f {
	case Min:
		return floats.Min(values)
	case Max:
		return floats.Max(values)
	case Mean:
		return stat.Mean(values, nil)
	case Median:
		return median(values)
	case Std:
		return stat.PopStdDev(values, nil)
	}
	return math.NaN()
}

// keepsDType reports whether outputs are always input values.
func (f Func) keepsDType() bool { return f == Min || f == Max }

// median sorts values in place and averages the middle pair for even counts.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

// MinValue returns the smallest voxel value, the customary pad for Reduce.
func MinValue(v *volume.Volume) float64 {
	return v.DataRange().Min
}

// Reduce downsamples v by the integer factors in block.
//
// A single factor applies to every axis. Each axis is right-padded with pad
// up to a multiple of its factor, and every disjoint block is replaced by
// fn over its values, so the output shape is ceil(shape/block). Padding is
// virtual: positions beyond the input read pad.
func Reduce(v *volume.Volume, block []int, fn Func, pad float64) (*volume.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if fn < 0 || int(fn) >= len(funcNames) {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "unknown reduction function %d", int(fn))
	}
	factors, err := broadcastBlock(block, v.NDim())
	if err != nil {
		return nil, err
	}

	n := v.NDim()
	g := volume.Geometry{
		Shape:     make([]int, n),
		Spacing:   make([]float64, n),
		Origin:    append([]float64(nil), v.Origin...),
		Direction: append([]float64(nil), v.Direction...),
	}
	blockLen := 1
	for i, b := range factors {
		g.Shape[i] = (v.Shape[i] + b - 1) / b
		g.Spacing[i] = v.Spacing[i] * float64(b)
		blockLen *= b
	}

	dtype := volume.Float64
	if fn.keepsDType() {
		dtype = v.DType
	}
	out := &volume.Volume{Geometry: g, DType: dtype, Data: make([]float64, g.Len())}

	buf := make([]float64, blockLen)
	outCoord := make([]int, n)
	offset := make([]int, n)
	inCoord := make([]int, n)
	for o := range out.Data {
		g.Coords(o, outCoord)
		for i := range offset {
			offset[i] = 0
		}
		for k := 0; k < blockLen; k++ {
			inside := true
			for i := range inCoord {
				inCoord[i] = outCoord[i]*factors[i] + offset[i]
				if inCoord[i] >= v.Shape[i] {
					inside = false
				}
			}
			if inside {
				buf[k] = v.Data[v.Index(inCoord...)]
			} else {
				buf[k] = pad
			}
			step(offset, factors)
		}
		out.Data[o] = fn.Apply(buf)
	}
	return out, nil
}

// step advances an odometer over the block offsets, axis 0 fastest.
func step(offset, factors []int) {
	for i := range offset {
		offset[i]++
		if offset[i] < factors[i] {
			return
		}
		offset[i] = 0
	}
}

func broadcastBlock(block []int, ndim int) ([]int, error) {
	factors := make([]int, ndim)
	switch len(block) {
	case 1:
		for i := range factors {
			factors[i] = block[0]
		}
	case ndim:
		copy(factors, block)
	default:
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "block %v for %d axes", block, ndim)
	}
	for _, b := range factors {
		if b < 1 {
			return nil, errors.Wrapf(volume.ErrInvalidBlockSize, "block %v", block)
		}
	}
	return factors, nil
}
