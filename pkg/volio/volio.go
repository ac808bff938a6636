// Package volio reads and writes volumes as a YAML header next to a raw
// little-endian data file.
//
// A volume stored as "ct" consists of ct.yaml:
//
//	shape: [512, 512, 120]
//	spacing: [0.7, 0.7, 2.5]
//	origin: [0, 0, 0]
//	direction: [1, 0, 0, 0, 1, 0, 0, 0, 1]
//	dtype: int16
//	byteOrder: little
//	data: ct.raw
//
// and ct.raw holding prod(shape) elements of dtype, axis 0 fastest.
package volio

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"volumekit/pkg/volume"
)

const (
	// HeaderExt is the extension of header files.
	HeaderExt = ".yaml"
	// DataExt is the extension of raw data files.
	DataExt = ".raw"

	littleEndian = "little"
)

// Header is the YAML description of a stored volume.
type Header struct {
	Shape     []int        `yaml:"shape,flow"`
	Spacing   []float64    `yaml:"spacing,flow"`
	Origin    []float64    `yaml:"origin,flow"`
	Direction []float64    `yaml:"direction,flow"`
	DType     volume.DType `yaml:"dtype"`
	ByteOrder string       `yaml:"byteOrder"`
	Data      string       `yaml:"data"`
}

// Geometry returns the geometry described by the header.
func (h *Header) Geometry() volume.Geometry {
	return volume.Geometry{
		Shape:     append([]int(nil), h.Shape...),
		Spacing:   append([]float64(nil), h.Spacing...),
		Origin:    append([]float64(nil), h.Origin...),
		Direction: append([]float64(nil), h.Direction...),
	}
}

// Paths returns the header and data file paths for a volume path given
// with or without the header extension.
func Paths(path string) (header, data string) {
	base := strings.TrimSuffix(path, HeaderExt)
	return base + HeaderExt, base + DataExt
}

// Write stores v at path. Values are cast to v.DType before encoding.
func Write(path string, v *volume.Volume) error {
	if err := v.Validate(); err != nil {
		return err
	}
	headerPath, dataPath := Paths(path)
	if err := os.MkdirAll(filepath.Dir(headerPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	h := Header{
		Shape:     v.Shape,
		Spacing:   v.Spacing,
		Origin:    v.Origin,
		Direction: v.Direction,
		DType:     v.DType,
		ByteOrder: littleEndian,
		Data:      filepath.Base(dataPath),
	}
	if err := writeHeader(headerPath, &h); err != nil {
		return err
	}
	return writeData(dataPath, v)
}

// Read loads the volume stored at path.
func Read(path string) (*volume.Volume, error) {
	headerPath, _ := Paths(path)
	h, err := ReadHeader(headerPath)
	if err != nil {
		return nil, err
	}

	g := h.Geometry()
	if err := g.Validate(); err != nil {
		return nil, errors.Wrapf(err, "header %s", headerPath)
	}
	if !h.DType.Valid() {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "header %s has no dtype", headerPath)
	}

	dataPath := h.Data
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(headerPath), dataPath)
	}
	data, err := readData(dataPath, h.DType, g.Len())
	if err != nil {
		return nil, err
	}
	return volume.FromData(g, h.DType, data)
}

// WriteMask stores m as a uint8 volume of zeros and ones.
func WriteMask(path string, m *volume.Mask) error {
	return Write(path, m.Volume())
}

// ReadMask loads a mask. Any stored value other than 0 or 1 is rejected.
func ReadMask(path string) (*volume.Mask, error) {
	v, err := Read(path)
	if err != nil {
		return nil, err
	}
	m, err := volume.MaskFromVolume(v)
	if err != nil {
		return nil, errors.Wrapf(err, "mask %s", path)
	}
	return m, nil
}

// ReadHeader parses a header file.
func ReadHeader(path string) (*Header, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read volume header")
	}
	var h Header
	if err := yaml.Unmarshal(raw, &h); err != nil {
		return nil, errors.Wrapf(err, "failed to parse volume header %s", path)
	}
	if h.ByteOrder != "" && h.ByteOrder != littleEndian {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "unsupported byte order %q", h.ByteOrder)
	}
	if h.Data == "" {
		_, data := Paths(path)
		h.Data = filepath.Base(data)
	}
	return &h, nil
}

func writeHeader(path string, h *Header) error {
	raw, err := yaml.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "failed to encode volume header")
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return errors.Wrap(err, "failed to write volume header")
	}
	return nil
}

func writeData(path string, v *volume.Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create data file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	size := v.DType.Size()
	buf := make([]byte, size)
	for _, val := range v.Data {
		v.DType.Put(binary.LittleEndian, buf, v.DType.Cast(val))
		if _, err := w.Write(buf); err != nil {
			return errors.Wrap(err, "failed to write volume data")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "failed to write volume data")
	}
	return f.Close()
}

func readData(path string, dtype volume.DType, n int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open data file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat data file")
	}
	size := dtype.Size()
	if want := int64(n * size); info.Size() != want {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "data file %s has %d bytes, want %d",
			path, info.Size(), want)
	}

	r := bufio.NewReader(f)
	data := make([]float64, n)
	buf := make([]byte, size)
	for i := range data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, "failed to read volume data")
		}
		data[i] = dtype.Get(binary.LittleEndian, buf)
	}
	return data, nil
}
