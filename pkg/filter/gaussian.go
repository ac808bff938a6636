// Package filter provides smoothing filters over volumes: Gaussian blur,
// difference of Gaussians, median filtering and the clip-and-shift
// preprocessing used before volume rendering.
package filter

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"volumekit/pkg/volume"
)

// truncate is the kernel half width in standard deviations.
const truncate = 3.0

// FWHMToSigma converts a full width at half maximum into the standard
// deviation of the matching Gaussian.
func FWHMToSigma(fwhm float64) float64 {
	return fwhm / (2 * math.Sqrt(2*math.Ln2))
}

// Gaussian blurs v with an isotropic Gaussian of standard deviation sigma,
// given in physical units and converted per axis through the spacing. Edges
// replicate the border voxel. The result keeps the input dtype, rounding to
// the nearest integer for integer types.
func Gaussian(v *volume.Volume, sigma float64) (*volume.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "sigma %g", sigma)
	}

	out := v.Clone()
	if sigma == 0 {
		return out, nil
	}
	for axis := range v.Shape {
		kernel := gaussianKernel(sigma / v.Spacing[axis])
		if len(kernel) > 1 {
			convolveAxis(out.Data, v.Geometry, axis, kernel)
		}
	}
	integer := v.DType.IsInteger()
	for i, val := range out.Data {
		if integer {
			val = math.Round(val)
		}
		out.Data[i] = v.DType.Cast(val)
	}
	return out, nil
}

// Smooth blurs v with a Gaussian given by its full width at half maximum.
func Smooth(v *volume.Volume, fwhm float64) (*volume.Volume, error) {
	if fwhm < 0 {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "fwhm %g", fwhm)
	}
	return Gaussian(v, FWHMToSigma(fwhm))
}

// gaussianKernel returns a normalized kernel of radius ceil(3 sigma) voxels.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(truncate * sigma))
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// convolveAxis convolves every line of data along axis with kernel, in
// place. Lines are padded by replicating their end values.
func convolveAxis(data []float64, g volume.Geometry, axis int, kernel []float64) {
	radius := len(kernel) / 2
	length := g.Shape[axis]
	stride := g.Strides()[axis]

	padded := make([]float64, length+2*radius)
	for start := range data {
		if (start/stride)%length != 0 {
			continue
		}
		for k := 0; k < length; k++ {
			padded[radius+k] = data[start+k*stride]
		}
		for k := 0; k < radius; k++ {
			padded[k] = padded[radius]
			padded[radius+length+k] = padded[radius+length-1]
		}
		for k := 0; k < length; k++ {
			data[start+k*stride] = floats.Dot(kernel, padded[k:k+len(kernel)])
		}
	}
}

// Subtract returns a - b as a Float64 volume with the geometry of a.
func Subtract(a, b *volume.Volume) (*volume.Volume, error) {
	if err := volume.CheckShape(a.Geometry, b.Geometry); err != nil {
		return nil, err
	}
	out := a.Like(volume.Float64)
	floats.SubTo(out.Data, a.Data, b.Data)
	return out, nil
}

// DifferenceOfGaussians smooths v with two widths and returns the first
// result minus the second. A width of zero stands for v itself. Both
// smoothed images keep the dtype of v; the difference is Float64.
func DifferenceOfGaussians(v *volume.Volume, fwhmA, fwhmB float64) (*volume.Volume, error) {
	if fwhmA == fwhmB {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "both widths are %g", fwhmA)
	}
	a, err := Smooth(v, fwhmA)
	if err != nil {
		return nil, err
	}
	b, err := Smooth(v, fwhmB)
	if err != nil {
		return nil, err
	}
	return Subtract(a, b)
}
