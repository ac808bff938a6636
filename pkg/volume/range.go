package volume

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Range is a closed intensity interval [Min, Max].
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Unbounded returns (-Inf, +Inf).
func Unbounded() Range { return Range{Min: math.Inf(-1), Max: math.Inf(1)} }

// Contains reports whether Min <= v <= Max.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Width returns Max - Min.
func (r Range) Width() float64 { return r.Max - r.Min }

// Validate rejects reversed bounds and NaNs.
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
		return errors.Wrapf(ErrInvalidArgument, "range [%g, %g]", r.Min, r.Max)
	}
	return nil
}

// DataRange returns the minimum and maximum value of the volume.
func (v *Volume) DataRange() Range {
	if len(v.Data) == 0 {
		return Range{}
	}
	return Range{Min: floats.Min(v.Data), Max: floats.Max(v.Data)}
}
