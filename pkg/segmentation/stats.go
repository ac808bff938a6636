package segmentation

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volumekit/pkg/blockreduce"
	"volumekit/pkg/volume"
)

// smooth keeps the overlap ratios finite for empty masks.
const smooth = 0.001

// Stats summarizes a segment over an intensity volume.
type Stats struct {
	Name       string  `yaml:"name"`
	VoxelCount int     `yaml:"voxelCount"`
	VolumeCCM  float64 `yaml:"volumeCCM"`
	Mean       float64 `yaml:"mean"`
	StdDev     float64 `yaml:"stdDev"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	Median     float64 `yaml:"median"`
}

// Measure computes voxel count, physical volume in cubic centimetres
// (spacing in millimetres) and intensity statistics of v inside the segment.
// Intensity fields are zero for an empty segment.
func Measure(seg Segment, v *volume.Volume) (Stats, error) {
	samples, err := v.MaskedSamples(seg.Mask)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{
		Name:       seg.Name,
		VoxelCount: len(samples),
		VolumeCCM:  float64(len(samples)) * seg.Mask.VoxelVolume() / 1000,
	}
	if len(samples) == 0 {
		return s, nil
	}
	s.Mean, s.StdDev = stat.PopMeanStdDev(samples, nil)
	s.Min = floats.Min(samples)
	s.Max = floats.Max(samples)
	s.Median = blockreduce.Median.Apply(samples)
	return s, nil
}

// MeasureAll measures every segment.
func MeasureAll(segs []Segment, v *volume.Volume) ([]Stats, error) {
	out := make([]Stats, len(segs))
	for i, seg := range segs {
		s, err := Measure(seg, v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Overlap compares a reference mask A with a test mask B.
type Overlap struct {
	TP int `yaml:"tp"`
	FP int `yaml:"fp"`
	FN int `yaml:"fn"`
	TN int `yaml:"tn"`

	Intersection int `yaml:"intersection"`
	Union        int `yaml:"union"`

	Dice      float64 `yaml:"dice"`
	Jaccard   float64 `yaml:"jaccard"`
	Precision float64 `yaml:"precision"`
	Recall    float64 `yaml:"recall"`
	FPR       float64 `yaml:"fpr"`
	FNR       float64 `yaml:"fnr"`

	// VolumeSimilarity is 2(|B|-|A|)/(|A|+|B|), zero when both are empty.
	VolumeSimilarity float64 `yaml:"volumeSimilarity"`

	OverlapCCM float64 `yaml:"overlapCCM"`
	AOnlyCCM   float64 `yaml:"aOnlyCCM"`
	BOnlyCCM   float64 `yaml:"bOnlyCCM"`
}

// Compare computes voxel overlap measures between two masks of the same
// shape. Ratios carry a 0.001 smoothing term in the denominator.
func Compare(a, b *volume.Mask) (Overlap, error) {
	if err := volume.CheckShape(a.Geometry, b.Geometry); err != nil {
		return Overlap{}, err
	}

	var o Overlap
	for i := range a.Data {
		switch {
		case a.Data[i] && b.Data[i]:
			o.TP++
		case b.Data[i]:
			o.FP++
		case a.Data[i]:
			o.FN++
		default:
			o.TN++
		}
	}
	o.Intersection = o.TP
	o.Union = o.TP + o.FP + o.FN

	sizeA := float64(o.TP + o.FN)
	sizeB := float64(o.TP + o.FP)
	tp, fp, fn, tn := float64(o.TP), float64(o.FP), float64(o.FN), float64(o.TN)

	o.Dice = 2 * tp / (sizeA + sizeB + smooth)
	o.Jaccard = tp / (float64(o.Union) + smooth)
	o.Precision = tp / (sizeB + smooth)
	o.Recall = tp / (sizeA + smooth)
	o.FPR = fp / (fp + tn + smooth)
	o.FNR = fn / (fn + tp + smooth)
	if sizeA+sizeB > 0 {
		o.VolumeSimilarity = 2 * (sizeB - sizeA) / (sizeA + sizeB)
	}

	ccm := a.VoxelVolume() / 1000
	o.OverlapCCM = tp * ccm
	o.AOnlyCCM = fn * ccm
	o.BOnlyCCM = fp * ccm
	return o, nil
}
