package filter

import (
	"errors"
	"math"
	"testing"

	"volumekit/pkg/volume"
)

// createImpulse returns a 1D volume of length n holding 1 at its centre
func createImpulse(n int) *volume.Volume {
	v := volume.New(n)
	v.Data[n/2] = 1
	return v
}

// TestFWHMToSigma verifies the width conversion
func TestFWHMToSigma(t *testing.T) {
	if got := FWHMToSigma(2 * math.Sqrt(2*math.Ln2)); math.Abs(got-1) > 1e-12 {
		t.Errorf("Expected sigma 1, got %g", got)
	}
	if FWHMToSigma(0) != 0 {
		t.Error("Zero width should give zero sigma")
	}
}

// TestGaussianImpulse verifies kernel normalization and symmetry
func TestGaussianImpulse(t *testing.T) {
	v := createImpulse(21)
	out, err := Gaussian(v, 1)
	if err != nil {
		t.Fatalf("Gaussian failed: %v", err)
	}

	sum := 0.0
	for _, val := range out.Data {
		sum += val
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("Blur should preserve the total, got %g", sum)
	}
	if math.Abs(out.Data[9]-out.Data[11]) > 1e-15 {
		t.Errorf("Blur should be symmetric, got %g and %g", out.Data[9], out.Data[11])
	}
	if !(out.Data[10] > out.Data[9] && out.Data[9] > out.Data[8]) {
		t.Error("Blur should peak at the impulse")
	}
	if out.Data[3] != 0 {
		t.Errorf("Kernel should be truncated at three sigma, got %g", out.Data[3])
	}
	if v.Data[10] != 1 {
		t.Error("Gaussian must not modify its input")
	}
}

// TestGaussianSpacing verifies that sigma is given in physical units
func TestGaussianSpacing(t *testing.T) {
	fine, _ := Gaussian(createImpulse(21), 1)

	coarse := createImpulse(21)
	coarse.Spacing = []float64{2}
	got, err := Gaussian(coarse, 2)
	if err != nil {
		t.Fatalf("Gaussian failed: %v", err)
	}
	for i := range got.Data {
		if math.Abs(got.Data[i]-fine.Data[i]) > 1e-12 {
			t.Fatalf("Voxel %d: expected %g, got %g", i, fine.Data[i], got.Data[i])
		}
	}
}

// TestGaussianKeepsConstantsAndDType verifies edge replication and casting
func TestGaussianKeepsConstantsAndDType(t *testing.T) {
	v := volume.New(5, 4, 3)
	v.DType = volume.Int16
	for i := range v.Data {
		v.Data[i] = 300
	}

	out, err := Smooth(v, 3)
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}
	if out.DType != volume.Int16 {
		t.Errorf("Expected int16 output, got %v", out.DType)
	}
	for i, val := range out.Data {
		if val != 300 {
			t.Fatalf("Voxel %d: constant image changed to %g", i, val)
		}
	}

	if _, err := Gaussian(v, -1); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for negative sigma, got %v", err)
	}
	same, err := Gaussian(v, 0)
	if err != nil || same == v || same.Data[0] != 300 {
		t.Errorf("Zero sigma should return a copy, got %v", err)
	}
}

// TestDifferenceOfGaussians verifies the subtraction of two smoothed images
func TestDifferenceOfGaussians(t *testing.T) {
	v := createImpulse(21)
	dog, err := DifferenceOfGaussians(v, 0, 2)
	if err != nil {
		t.Fatalf("DifferenceOfGaussians failed: %v", err)
	}
	smooth, _ := Smooth(v, 2)
	if got, want := dog.Data[10], 1-smooth.Data[10]; math.Abs(got-want) > 1e-12 {
		t.Errorf("Expected centre %g, got %g", want, got)
	}
	if dog.DType != volume.Float64 {
		t.Errorf("Expected float64 difference, got %v", dog.DType)
	}

	if _, err := DifferenceOfGaussians(v, 2, 2); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for equal widths, got %v", err)
	}
	if _, err := Subtract(v, volume.New(3)); !errors.Is(err, volume.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

// TestMedian verifies impulse removal and border replication
func TestMedian(t *testing.T) {
	v := volume.New(5)
	copy(v.Data, []float64{5, 0, 0, 9, 0})

	out, err := Median(v, []int{1})
	if err != nil {
		t.Fatalf("Median failed: %v", err)
	}
	want := []float64{5, 0, 0, 0, 0}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("Voxel %d: expected %g, got %g", i, want[i], out.Data[i])
		}
	}
	if v.Data[3] != 9 {
		t.Error("Median must not modify its input")
	}
}

// TestMedianPerAxis verifies per-axis radii on a 3D volume
func TestMedianPerAxis(t *testing.T) {
	v := volume.New(5, 3, 2)
	for i := range v.Data {
		v.Data[i] = float64(i % 7)
	}
	v.Set(100, 2, 1, 1)

	out, err := Median(v, []int{1, 0, 0})
	if err != nil {
		t.Fatalf("Median failed: %v", err)
	}
	for y := 0; y < 3; y++ {
		for z := 0; z < 2; z++ {
			row := volume.New(5)
			for x := 0; x < 5; x++ {
				row.Data[x] = v.At(x, y, z)
			}
			ref, _ := Median(row, []int{1})
			for x := 0; x < 5; x++ {
				if out.At(x, y, z) != ref.Data[x] {
					t.Errorf("(%d,%d,%d): expected %g, got %g", x, y, z, ref.Data[x], out.At(x, y, z))
				}
			}
		}
	}

	if _, err := Median(v, []int{1, 1}); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for two radii on three axes, got %v", err)
	}
	if _, err := Median(v, []int{-1}); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a negative radius, got %v", err)
	}
}

// TestPreprocess verifies clipping, shifting and the median outputs
func TestPreprocess(t *testing.T) {
	v := volume.New(5)
	v.DType = volume.Int16
	copy(v.Data, []float64{-2000, -1000, -500, 100, 100})

	p := DefaultPreprocess()
	p.MedianRadii = []int{0, 1}
	outputs, clip, err := p.Apply(v)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if clip != -1000 {
		t.Errorf("Adaptive clip should be the smallest value >= -1024, got %g", clip)
	}
	if len(outputs) != 2 || outputs[0].Radius != 0 || outputs[1].Radius != 1 {
		t.Fatalf("Unexpected outputs %+v", outputs)
	}

	want := []float64{0, 0, 500, 1100, 1100}
	for i := range want {
		if outputs[0].Volume.Data[i] != want[i] {
			t.Errorf("Voxel %d: expected %g, got %g", i, want[i], outputs[0].Volume.Data[i])
		}
	}
	if outputs[0].Volume.DType != volume.Float32 {
		t.Errorf("Expected float32 output, got %v", outputs[0].Volume.DType)
	}
	if got := outputs[1].Volume.Data[2]; got != 500 {
		t.Errorf("Median of [0 500 1100] should be 500, got %g", got)
	}

	p.Adaptive = false
	fixed, clip, _ := p.Apply(v)
	if clip != DefaultClip || fixed[0].Volume.Data[1] != 24 {
		t.Errorf("Fixed clip should shift by 1024, got clip %g and %g", clip, fixed[0].Volume.Data[1])
	}

	p.Adaptive = true
	p.Clip = 1000
	if _, _, err := p.Apply(v); !errors.Is(err, volume.ErrEmptyMask) {
		t.Errorf("Expected ErrEmptyMask when no voxel reaches the clip, got %v", err)
	}
}

// TestOutputName verifies the per-radius naming
func TestOutputName(t *testing.T) {
	if OutputName("ct_PV", 0) != "ct_PV" || OutputName("ct_PV", 3) != "ct_PV-m3" {
		t.Errorf("Unexpected names %q, %q", OutputName("ct_PV", 0), OutputName("ct_PV", 3))
	}
}
