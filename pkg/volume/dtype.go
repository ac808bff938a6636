package volume

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// DType is the nominal element type of a volume.
type DType int

const (
	Invalid DType = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

var dtypeNames = map[DType]string{
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Float32: "float32",
	Float64: "float64",
}

// Aliases accepted by ParseDType, including the C-style labels used by the
// imaging tools volumes usually come from.
var dtypeAliases = map[string]DType{
	"int8_t":   Int8,
	"uint8_t":  Uint8,
	"int16_t":  Int16,
	"uint16_t": Uint16,
	"int32_t":  Int32,
	"int":      Int32,
	"uint32_t": Uint32,
	"float":    Float32,
	"double":   Float64,
}

// ParseDType resolves a dtype name.
func ParseDType(s string) (DType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d, n := range dtypeNames {
		if n == name {
			return d, nil
		}
	}
	if d, ok := dtypeAliases[name]; ok {
		return d, nil
	}
	return Invalid, errors.Wrapf(ErrInvalidArgument, "unknown dtype %q", s)
}

// String returns the canonical name.
func (d DType) String() string {
	if n, ok := dtypeNames[d]; ok {
		return n
	}
	return "invalid"
}

// Valid reports whether d is one of the enumerated types.
func (d DType) Valid() bool {
	_, ok := dtypeNames[d]
	return ok
}

// IsInteger reports whether d is an integer type.
func (d DType) IsInteger() bool { return d.Valid() && d != Float32 && d != Float64 }

// Size returns the encoded size in bytes.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Limits returns the representable range.
func (d DType) Limits() (lo, hi float64) {
	switch d {
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint8:
		return 0, math.MaxUint8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Uint32:
		return 0, math.MaxUint32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	}
	return math.Inf(-1), math.Inf(1)
}

// Cast converts v to the nearest value representable in d. Integer targets
// truncate toward zero and saturate at the type limits, NaN becomes 0.
// Float32 rounds through float32, so out-of-range values become infinities.
func (d DType) Cast(v float64) float64 {
	switch {
	case d == Float64:
		return v
	case d == Float32:
		return float64(float32(v))
	case d.IsInteger():
		if math.IsNaN(v) {
			return 0
		}
		lo, hi := d.Limits()
		t := math.Trunc(v)
		if t < lo {
			return lo
		}
		if t > hi {
			return hi
		}
		return t
	}
	return v
}

// Put encodes a value, already cast to d, into b using the given byte order.
func (d DType) Put(order binary.ByteOrder, b []byte, v float64) {
	switch d {
	case Int8:
		b[0] = byte(int8(v))
	case Uint8:
		b[0] = uint8(v)
	case Int16:
		order.PutUint16(b, uint16(int16(v)))
	case Uint16:
		order.PutUint16(b, uint16(v))
	case Int32:
		order.PutUint32(b, uint32(int32(v)))
	case Uint32:
		order.PutUint32(b, uint32(v))
	case Float32:
		order.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		order.PutUint64(b, math.Float64bits(v))
	}
}

// Get decodes one value of type d from b.
func (d DType) Get(order binary.ByteOrder, b []byte) float64 {
	switch d {
	case Int8:
		return float64(int8(b[0]))
	case Uint8:
		return float64(b[0])
	case Int16:
		return float64(int16(order.Uint16(b)))
	case Uint16:
		return float64(order.Uint16(b))
	case Int32:
		return float64(int32(order.Uint32(b)))
	case Uint32:
		return float64(order.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case Float64:
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler.
func (d DType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown dtype %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(text []byte) error {
	parsed, err := ParseDType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
