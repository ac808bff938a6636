// Package visualization renders slice previews of volumes and segment masks.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"volumekit/pkg/autocrop"
	"volumekit/pkg/partition"
	"volumekit/pkg/volume"
)

// Viewer extracts 2D slices from a 3D volume. Intensities are windowed to
// the volume's data range.
type Viewer struct {
	// vol holds the 3D volume being viewed
	vol *volume.Volume

	// window maps intensities onto the 16-bit gray range
	window volume.Range
}

// NewViewer creates a viewer over a 3D volume
func NewViewer(v *volume.Volume) (*Viewer, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if v.NDim() != 3 {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "viewer needs a 3D volume, got %d axes", v.NDim())
	}
	return &Viewer{vol: v, window: v.DataRange()}, nil
}

// SetWindow overrides the display window.
func (v *Viewer) SetWindow(r volume.Range) { v.window = r }

// plane describes the image layout of a slice: image column/row axes and
// the coordinates of pixel (col, row).
type plane struct {
	cols, rows int
	coords     func(col, row int) (x, y, z int)
}

// slicePlane resolves an axis name into the slice layout at position
func slicePlane(shape []int, axis string, position int) (plane, error) {
	if position < 0 {
		return plane{}, errors.Wrap(volume.ErrInvalidArgument, "position must be non-negative")
	}
	width, height, depth := shape[0], shape[1], shape[2]

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= width {
			return plane{}, errors.Wrapf(volume.ErrInvalidArgument, "position %d exceeds width %d", position, width)
		}
		return plane{depth, height, func(c, r int) (int, int, int) { return position, r, c }}, nil
	case "y", "Y":
		// Extract slice along XZ plane
		if position >= height {
			return plane{}, errors.Wrapf(volume.ErrInvalidArgument, "position %d exceeds height %d", position, height)
		}
		return plane{width, depth, func(c, r int) (int, int, int) { return c, position, r }}, nil
	case "z", "Z":
		// Extract slice along XY plane
		if position >= depth {
			return plane{}, errors.Wrapf(volume.ErrInvalidArgument, "position %d exceeds depth %d", position, depth)
		}
		return plane{width, height, func(c, r int) (int, int, int) { return c, r, position }}, nil
	}
	return plane{}, errors.Wrapf(volume.ErrInvalidArgument, "invalid axis: %s (must be x, y, or z)", axis)
}

func axisLength(shape []int, axis string) (int, error) {
	switch axis {
	case "x", "X":
		return shape[0], nil
	case "y", "Y":
		return shape[1], nil
	case "z", "Z":
		return shape[2], nil
	}
	return 0, errors.Wrapf(volume.ErrInvalidArgument, "invalid axis: %s (must be x, y, or z)", axis)
}

// gray maps an intensity through the window
func (v *Viewer) gray(val float64) uint16 {
	w := v.window.Width()
	if !(w > 0) {
		return 0
	}
	return uint16(math.Max(0, math.Min(65535, (val-v.window.Min)/w*65535)))
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	p, err := slicePlane(v.vol.Shape, axis, position)
	if err != nil {
		return nil, err
	}

	img := image.NewGray16(image.Rect(0, 0, p.cols, p.rows))
	for r := 0; r < p.rows; r++ {
		for c := 0; c < p.cols; c++ {
			x, y, z := p.coords(c, r)
			img.SetGray16(c, r, color.Gray16{Y: v.gray(v.vol.At(x, y, z))})
		}
	}
	return img, nil
}

// MaskSlice renders a mask slice in black and white
func (v *Viewer) MaskSlice(m *volume.Mask, axis string, position int) (*image.Gray, error) {
	if err := volume.CheckShape(v.vol.Geometry, m.Geometry); err != nil {
		return nil, err
	}
	p, err := slicePlane(m.Shape, axis, position)
	if err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, p.cols, p.rows))
	for r := 0; r < p.rows; r++ {
		for c := 0; c < p.cols; c++ {
			x, y, z := p.coords(c, r)
			if m.At(x, y, z) {
				img.SetGray(c, r, color.Gray{Y: 255})
			}
		}
	}
	return img, nil
}

// OverlaySlice draws the colored segments over an intensity slice. Later
// segments are drawn on top; segments without a color are skipped.
func (v *Viewer) OverlaySlice(segs []partition.Segment, axis string, position int, alpha float64) (*image.RGBA, error) {
	base, err := v.ExtractSlice(axis, position)
	if err != nil {
		return nil, err
	}
	p, _ := slicePlane(v.vol.Shape, axis, position)
	for _, s := range segs {
		if err := volume.CheckShape(v.vol.Geometry, s.Mask.Geometry); err != nil {
			return nil, errors.Wrapf(err, "segment %q", s.Name)
		}
	}

	img := image.NewRGBA(base.Bounds())
	for r := 0; r < p.rows; r++ {
		for c := 0; c < p.cols; c++ {
			g := float64(base.Gray16At(c, r).Y) / 65535
			red, green, blue := g, g, g
			x, y, z := p.coords(c, r)
			for _, s := range segs {
				if s.Color == nil || !s.Mask.At(x, y, z) {
					continue
				}
				red = (1-alpha)*red + alpha*s.Color.R
				green = (1-alpha)*green + alpha*s.Color.G
				blue = (1-alpha)*blue + alpha*s.Color.B
			}
			img.SetRGBA(c, r, color.RGBA{R: to8(red), G: to8(green), B: to8(blue), A: 255})
		}
	}
	return img, nil
}

func to8(f float64) uint8 { return uint8(math.Max(0, math.Min(255, math.Round(f*255)))) }

// ExtractRegion extracts a 3D subregion from the volume, keeping its
// physical placement
func (v *Viewer) ExtractRegion(start, size []int) (*volume.Volume, error) {
	if len(start) != 3 || len(size) != 3 {
		return nil, errors.Wrap(volume.ErrInvalidArgument, "region needs three start and size values")
	}
	box := autocrop.Box{Lo: make([]int, 3), Hi: make([]int, 3)}
	for i := range start {
		if size[i] <= 0 {
			return nil, errors.Wrap(volume.ErrInvalidArgument, "size dimensions must be positive")
		}
		box.Lo[i] = start[i]
		box.Hi[i] = start[i] + size[i] - 1
	}
	return autocrop.Crop(v.vol, box)
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create slice file")
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		return errors.Wrap(err, "failed to encode slice")
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves a sequence of slices along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	maxPos, err := axisLength(v.vol.Shape, axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create slice directory")
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveMiddleSlices writes the central x, y and z slices of the volume, with
// the segments overlaid when any are given. It returns the written paths.
func (v *Viewer) SaveMiddleSlices(segs []partition.Segment, outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create preview directory")
	}

	var paths []string
	for i, axis := range []string{"x", "y", "z"} {
		pos := v.vol.Shape[i] / 2

		var img image.Image
		var err error
		if len(segs) > 0 {
			img, err = v.OverlaySlice(segs, axis, pos, 0.5)
		} else {
			img, err = v.ExtractSlice(axis, pos)
		}
		if err != nil {
			return nil, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%03d.jpg", prefix, axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return nil, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
