package volio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"volumekit/pkg/partition"
)

// IndexFile is the name of the segment index inside a segment directory.
const IndexFile = "segments.yaml"

// SegmentEntry describes one stored segment.
type SegmentEntry struct {
	Name  string    `yaml:"name"`
	File  string    `yaml:"file"`
	Color []float64 `yaml:"color,flow,omitempty"`
}

// SegmentIndex lists the segments of a directory in order.
type SegmentIndex struct {
	Segments []SegmentEntry `yaml:"segments"`
}

// WriteSegments stores every segment mask in dir along with an index.
func WriteSegments(dir string, segs []partition.Segment) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create segment directory")
	}

	var index SegmentIndex
	for i, s := range segs {
		file := fmt.Sprintf("%02d_%s", i, slug(s.Name))
		if err := WriteMask(filepath.Join(dir, file), s.Mask); err != nil {
			return errors.Wrapf(err, "segment %q", s.Name)
		}
		entry := SegmentEntry{Name: s.Name, File: file + HeaderExt}
		if s.Color != nil {
			entry.Color = []float64{s.Color.R, s.Color.G, s.Color.B}
		}
		index.Segments = append(index.Segments, entry)
	}

	raw, err := yaml.Marshal(&index)
	if err != nil {
		return errors.Wrap(err, "failed to encode segment index")
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFile), raw, 0644); err != nil {
		return errors.Wrap(err, "failed to write segment index")
	}
	return nil
}

// ReadSegments loads the segments listed in dir's index.
func ReadSegments(dir string) ([]partition.Segment, error) {
	raw, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read segment index")
	}
	var index SegmentIndex
	if err := yaml.Unmarshal(raw, &index); err != nil {
		return nil, errors.Wrap(err, "failed to parse segment index")
	}

	segs := make([]partition.Segment, 0, len(index.Segments))
	for _, e := range index.Segments {
		m, err := ReadMask(filepath.Join(dir, e.File))
		if err != nil {
			return nil, errors.Wrapf(err, "segment %q", e.Name)
		}
		s := partition.Segment{Name: e.Name, Mask: m}
		if len(e.Color) == 3 {
			s.Color = &partition.Color{R: e.Color[0], G: e.Color[1], B: e.Color[2]}
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// slug turns a segment name into a file name component.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "segment"
	}
	return b.String()
}
