// Package volume holds the data model shared by the toolkit: dense scalar
// volumes, binary masks and the geometry (spacing, origin, direction) that
// places them in physical space.
package volume

import (
	"github.com/pkg/errors"
)

// Geometry describes the voxel grid of a volume or mask.
//
// Axis 0 varies fastest in the flat data layout, so a 3-D volume of shape
// (nx, ny, nz) stores voxel (x, y, z) at x + y*nx + z*nx*ny.
type Geometry struct {
	// Shape is the number of voxels along each axis.
	Shape []int

	// Spacing is the physical voxel size along each axis, strictly positive.
	Spacing []float64

	// Origin is the physical position of voxel 0.
	Origin []float64

	// Direction is the row-major n x n orientation matrix. Column i is the
	// physical direction of axis i.
	Direction []float64
}

// NewGeometry returns a geometry with unit spacing, zero origin and identity
// direction for the given shape.
func NewGeometry(shape ...int) Geometry {
	n := len(shape)
	g := Geometry{
		Shape:     append([]int(nil), shape...),
		Spacing:   make([]float64, n),
		Origin:    make([]float64, n),
		Direction: Identity(n),
	}
	for i := range g.Spacing {
		g.Spacing[i] = 1
	}
	return g
}

// Identity returns the row-major n x n identity matrix.
func Identity(n int) []float64 {
	d := make([]float64, n*n)
	for i := 0; i < n; i++ {
		d[i*n+i] = 1
	}
	return d
}

// NDim returns the number of axes.
func (g Geometry) NDim() int { return len(g.Shape) }

// Len returns the total number of voxels.
func (g Geometry) Len() int {
	if len(g.Shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range g.Shape {
		n *= s
	}
	return n
}

// Strides returns the flat-index step of each axis.
func (g Geometry) Strides() []int {
	strides := make([]int, len(g.Shape))
	step := 1
	for i, s := range g.Shape {
		strides[i] = step
		step *= s
	}
	return strides
}

// Index converts per-axis coordinates into a flat index. Coordinates are not
// bounds checked.
func (g Geometry) Index(coords ...int) int {
	idx := 0
	step := 1
	for i, c := range coords {
		idx += c * step
		step *= g.Shape[i]
	}
	return idx
}

// Coords converts a flat index into per-axis coordinates, writing into dst
// when it has the right length.
func (g Geometry) Coords(idx int, dst []int) []int {
	if len(dst) != len(g.Shape) {
		dst = make([]int, len(g.Shape))
	}
	for i, s := range g.Shape {
		dst[i] = idx % s
		idx /= s
	}
	return dst
}

// SameShape reports whether both geometries have identical shapes.
func (g Geometry) SameShape(o Geometry) bool {
	if len(g.Shape) != len(o.Shape) {
		return false
	}
	for i := range g.Shape {
		if g.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (g Geometry) Clone() Geometry {
	return Geometry{
		Shape:     append([]int(nil), g.Shape...),
		Spacing:   append([]float64(nil), g.Spacing...),
		Origin:    append([]float64(nil), g.Origin...),
		Direction: append([]float64(nil), g.Direction...),
	}
}

// VoxelVolume returns the physical volume of a single voxel, the product of
// the spacings.
func (g Geometry) VoxelVolume() float64 {
	v := 1.0
	for _, s := range g.Spacing {
		v *= s
	}
	return v
}

// Validate checks the geometry invariants.
func (g Geometry) Validate() error {
	n := len(g.Shape)
	if n == 0 {
		return errors.Wrap(ErrInvalidArgument, "geometry has no axes")
	}
	for i, s := range g.Shape {
		if s < 1 {
			return errors.Wrapf(ErrInvalidArgument, "axis %d has length %d", i, s)
		}
	}
	if len(g.Spacing) != n || len(g.Origin) != n {
		return errors.Wrapf(ErrInvalidArgument, "spacing/origin length %d/%d for %d axes",
			len(g.Spacing), len(g.Origin), n)
	}
	for i, s := range g.Spacing {
		if !(s > 0) {
			return errors.Wrapf(ErrInvalidArgument, "spacing %g on axis %d is not positive", s, i)
		}
	}
	if len(g.Direction) != n*n {
		return errors.Wrapf(ErrInvalidArgument, "direction has %d entries, want %d", len(g.Direction), n*n)
	}
	return nil
}

// Volume is a dense scalar array with geometry metadata.
type Volume struct {
	Geometry

	// DType is the nominal element type. Values are held as float64
	// regardless; DType drives casting and serialization.
	DType DType

	// Data holds the voxel values in flat layout.
	Data []float64
}

// New allocates a zero-filled float64 volume of the given shape with default
// geometry.
func New(shape ...int) *Volume {
	g := NewGeometry(shape...)
	return &Volume{Geometry: g, DType: Float64, Data: make([]float64, g.Len())}
}

// FromData wraps data in a volume of the given geometry. The slice is not
// copied.
func FromData(g Geometry, dtype DType, data []float64) (*Volume, error) {
	v := &Volume{Geometry: g, DType: dtype, Data: data}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks the geometry and that the data length matches the shape.
func (v *Volume) Validate() error {
	if err := v.Geometry.Validate(); err != nil {
		return err
	}
	if !v.DType.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "unknown dtype %d", int(v.DType))
	}
	if len(v.Data) != v.Len() {
		return errors.Wrapf(ErrInvalidArgument, "data has %d values, shape %v needs %d",
			len(v.Data), v.Shape, v.Len())
	}
	return nil
}

// At returns the value at the given coordinates.
func (v *Volume) At(coords ...int) float64 { return v.Data[v.Index(coords...)] }

// Set stores a value at the given coordinates.
func (v *Volume) Set(val float64, coords ...int) { v.Data[v.Index(coords...)] = val }

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	return &Volume{
		Geometry: v.Geometry.Clone(),
		DType:    v.DType,
		Data:     append([]float64(nil), v.Data...),
	}
}

// Like returns a zero-filled volume with the same geometry and the given
// dtype.
func (v *Volume) Like(dtype DType) *Volume {
	return &Volume{Geometry: v.Geometry.Clone(), DType: dtype, Data: make([]float64, len(v.Data))}
}

// MaskedSamples returns the values inside the mask, in flat order. A nil mask
// selects every voxel.
func (v *Volume) MaskedSamples(m *Mask) ([]float64, error) {
	if m == nil {
		return append([]float64(nil), v.Data...), nil
	}
	if err := CheckShape(v.Geometry, m.Geometry); err != nil {
		return nil, err
	}
	samples := make([]float64, 0, m.Count())
	for i, in := range m.Data {
		if in {
			samples = append(samples, v.Data[i])
		}
	}
	return samples, nil
}

// CheckShape fails with ErrShapeMismatch when the mask geometry does not match
// the reference shape.
func CheckShape(ref, mask Geometry) error {
	if !ref.SameShape(mask) {
		return errors.Wrapf(ErrShapeMismatch, "mask shape %v, volume shape %v", mask.Shape, ref.Shape)
	}
	return nil
}

// Mask is a binary volume. Its shape equals its reference volume's shape.
type Mask struct {
	Geometry

	// Data holds one flag per voxel in flat layout.
	Data []bool
}

// NewMask allocates an empty mask with a copy of the given geometry.
func NewMask(g Geometry) *Mask {
	c := g.Clone()
	return &Mask{Geometry: c, Data: make([]bool, c.Len())}
}

// Full returns a mask with every voxel set.
func Full(g Geometry) *Mask {
	m := NewMask(g)
	for i := range m.Data {
		m.Data[i] = true
	}
	return m
}

// MaskFromVolume sets every voxel whose value equals one. Any value other
// than 0 or 1 is rejected.
func MaskFromVolume(v *Volume) (*Mask, error) {
	m := NewMask(v.Geometry)
	for i, val := range v.Data {
		switch val {
		case 0:
		case 1:
			m.Data[i] = true
		default:
			return nil, errors.Wrapf(ErrInvalidArgument, "mask value %g at index %d is not 0 or 1", val, i)
		}
	}
	return m, nil
}

// Validate checks the geometry and the data length.
func (m *Mask) Validate() error {
	if err := m.Geometry.Validate(); err != nil {
		return err
	}
	if len(m.Data) != m.Len() {
		return errors.Wrapf(ErrInvalidArgument, "mask has %d values, shape %v needs %d",
			len(m.Data), m.Shape, m.Len())
	}
	return nil
}

// At reports whether the voxel at the given coordinates is set.
func (m *Mask) At(coords ...int) bool { return m.Data[m.Index(coords...)] }

// Set stores a flag at the given coordinates.
func (m *Mask) Set(val bool, coords ...int) { m.Data[m.Index(coords...)] = val }

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, in := range m.Data {
		if in {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	return &Mask{Geometry: m.Geometry.Clone(), Data: append([]bool(nil), m.Data...)}
}

// Volume converts the mask to a uint8 volume of zeros and ones.
func (m *Mask) Volume() *Volume {
	v := &Volume{Geometry: m.Geometry.Clone(), DType: Uint8, Data: make([]float64, len(m.Data))}
	for i, in := range m.Data {
		if in {
			v.Data[i] = 1
		}
	}
	return v
}
