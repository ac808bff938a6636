package segmentation

import "volumekit/pkg/partition"

// palette holds the display colors assigned to segments by position.
var palette = []partition.Color{
	{R: 0.50, G: 0.68, B: 0.50},
	{R: 0.95, G: 0.84, B: 0.57},
	{R: 0.69, G: 0.48, B: 0.39},
	{R: 0.44, G: 0.72, B: 0.83},
	{R: 0.85, G: 0.40, B: 0.31},
	{R: 0.87, G: 0.51, B: 0.75},
	{R: 0.56, G: 0.46, B: 0.76},
	{R: 0.98, G: 0.61, B: 0.21},
}

// totalColor is reserved for the Total segment.
var totalColor = partition.Color{R: 0.80, G: 0.80, B: 0.80}

// ColorAt returns the palette color for the i-th segment, cycling when
// there are more segments than colors.
func ColorAt(i int) partition.Color {
	return palette[i%len(palette)]
}

func colorize(segs []partition.Segment) {
	for i := range segs {
		c := ColorAt(i)
		segs[i].Color = &c
	}
}
