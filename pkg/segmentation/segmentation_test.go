package segmentation

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"volumekit/pkg/volume"
)

// createCube returns a 3x3x3 zero volume with 100 at the centre
func createCube() *volume.Volume {
	v := volume.New(3, 3, 3)
	v.Set(100, 1, 1, 1)
	return v
}

// createTwoTissue returns a volume with two well separated intensity populations
func createTwoTissue() *volume.Volume {
	v := volume.New(8, 8, 4)
	for i := range v.Data {
		if i%2 == 0 {
			v.Data[i] = 40 + float64(i%5)
		} else {
			v.Data[i] = 180 + float64(i%7)
		}
	}
	return v
}

// TestParseWorkflow verifies workflow names
func TestParseWorkflow(t *testing.T) {
	for _, w := range Workflows() {
		got, err := ParseWorkflow(w.String())
		if err != nil || got != w {
			t.Errorf("ParseWorkflow(%q) = %v, %v", w.String(), got, err)
		}
	}
	if _, err := ParseWorkflow("kmeans"); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}

	ws, err := ParseWorkflows([]string{"otsu", "Multi-Otsu"})
	if err != nil || len(ws) != 2 || ws[1] != MultiOtsu {
		t.Errorf("ParseWorkflows returned %v, %v", ws, err)
	}
}

// TestFixedWorkflowCube verifies the reference 3x3x3 scenario end to end
func TestFixedWorkflowCube(t *testing.T) {
	a := NewAssembler(&Params{FixedThreshold: 50}, zerolog.Nop())

	res, err := a.Run(Fixed, createCube(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Total.Name != TotalName || res.Total.Mask.Count() != 27 {
		t.Errorf("Unexpected total segment %q with %d voxels", res.Total.Name, res.Total.Mask.Count())
	}
	if len(res.Segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(res.Segments))
	}
	if res.Segments[0].Name != "below 50.0" || res.Segments[1].Name != "above 50.0" {
		t.Errorf("Unexpected names %q, %q", res.Segments[0].Name, res.Segments[1].Name)
	}
	if res.Segments[0].Mask.Count() != 26 || res.Segments[1].Mask.Count() != 1 {
		t.Errorf("Expected 26/1 split, got %d/%d", res.Segments[0].Mask.Count(), res.Segments[1].Mask.Count())
	}
	if res.Segments[0].Color == nil || *res.Segments[0].Color == *res.Segments[1].Color {
		t.Error("Segments should get distinct palette colors")
	}
	if len(res.All()) != 3 {
		t.Errorf("All should prepend the total segment")
	}
}

// TestTriangleWorkflowNames verifies triangle segment naming
func TestTriangleWorkflowNames(t *testing.T) {
	a := NewAssembler(nil, zerolog.Nop())
	res, err := a.Run(Triangle, createTwoTissue(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Segments[0].Name != "lower triangle" || res.Segments[1].Name != "upper triangle" {
		t.Errorf("Unexpected names %q, %q", res.Segments[0].Name, res.Segments[1].Name)
	}
	if len(res.Thresholds) != 1 {
		t.Errorf("Expected one threshold, got %v", res.Thresholds)
	}
}

// TestOtsuWorkflowsPartitionROI verifies completeness and disjointness of the Otsu classes
func TestOtsuWorkflowsPartitionROI(t *testing.T) {
	v := createTwoTissue()
	roi := volume.NewMask(v.Geometry)
	for i := range roi.Data {
		roi.Data[i] = i < 200
	}

	a := NewAssembler(&Params{MultiOtsuClasses: 3}, zerolog.Nop())
	for _, w := range []Workflow{Otsu, MultiOtsu} {
		res, err := a.Run(w, v, roi)
		if err != nil {
			t.Fatalf("%v: Run failed: %v", w, err)
		}

		wantSegs := 2
		if w == MultiOtsu {
			wantSegs = 3
		}
		if len(res.Segments) != wantSegs {
			t.Fatalf("%v: expected %d segments, got %d", w, wantSegs, len(res.Segments))
		}
		if res.Segments[0].Name != "Otsu mask 1" {
			t.Errorf("%v: unexpected name %q", w, res.Segments[0].Name)
		}

		for i := range roi.Data {
			n := 0
			for _, s := range res.Segments {
				if s.Mask.Data[i] {
					n++
				}
			}
			if (roi.Data[i] && n != 1) || (!roi.Data[i] && n != 0) {
				t.Fatalf("%v: voxel %d belongs to %d segments", w, i, n)
			}
		}
	}

	res, _ := a.Run(Otsu, v, roi)
	for i := range roi.Data {
		if roi.Data[i] && res.Segments[0].Mask.Data[i] != (v.Data[i] < 100) {
			t.Fatalf("Otsu should separate the two populations at voxel %d", i)
		}
	}
}

// TestMultiOtsuDefaultClasses verifies that the default multi-Otsu run yields three masks
func TestMultiOtsuDefaultClasses(t *testing.T) {
	a := NewAssembler(nil, zerolog.Nop())
	res, err := a.Run(MultiOtsu, createTwoTissue(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Segments) != DefaultMultiOtsuClasses || len(res.Thresholds) != DefaultMultiOtsuClasses-1 {
		t.Errorf("Expected %d segments, got %d with thresholds %v",
			DefaultMultiOtsuClasses, len(res.Segments), res.Thresholds)
	}
	if res.Segments[2].Name != "Otsu mask 3" {
		t.Errorf("Unexpected name %q", res.Segments[2].Name)
	}

	bad := NewAssembler(&Params{MultiOtsuClasses: 1}, zerolog.Nop())
	if _, err := bad.Run(MultiOtsu, createTwoTissue(), nil); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for one class, got %v", err)
	}
}

// TestMultiOtsuEdgeAlignedValues verifies that integer values sitting on histogram
// edges land in the class Otsu chose for them
func TestMultiOtsuEdgeAlignedValues(t *testing.T) {
	v := volume.New(30, 10, 10)
	levels := []float64{0, 1, 128}
	for i := range v.Data {
		v.Data[i] = levels[i%3]
	}

	a := NewAssembler(&Params{MultiOtsuClasses: 3}, zerolog.Nop())
	res, err := a.Run(MultiOtsu, v, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(res.Segments))
	}
	for i, s := range res.Segments {
		if n := s.Mask.Count(); n != 1000 {
			t.Errorf("%s: expected 1000 voxels, got %d (thresholds %v)", s.Name, n, res.Thresholds)
		}
		for j, in := range s.Mask.Data {
			if in && v.Data[j] != levels[i] {
				t.Fatalf("%s holds value %g", s.Name, v.Data[j])
			}
		}
	}
}

// TestFormatThreshold verifies fixed workflow segment naming
func TestFormatThreshold(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{20, "20.0"},
		{-1024, "-1024.0"},
		{20.5, "20.5"},
		{1e6, "1000000.0"},
	}
	for _, tc := range tests {
		if got := formatThreshold(tc.in); got != tc.want {
			t.Errorf("formatThreshold(%g) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestRunShapeMismatch verifies ROI checking
func TestRunShapeMismatch(t *testing.T) {
	a := NewAssembler(nil, zerolog.Nop())
	roi := volume.NewMask(volume.NewGeometry(2, 2, 2))
	if _, err := a.Run(Fixed, createCube(), roi); !errors.Is(err, volume.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

// TestRunAll verifies concurrent execution, ordering and logging
func TestRunAll(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf))
	a := NewAssembler(&Params{FixedThreshold: 100, NumCores: 2}, logger)

	workflows := []Workflow{MultiOtsu, Fixed, Otsu, Triangle}
	results, err := a.RunAll(context.Background(), workflows, createTwoTissue(), nil)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	for i, w := range workflows {
		if results[i].Workflow != w {
			t.Errorf("Result %d: expected %v, got %v", i, w, results[i].Workflow)
		}
	}

	if n := strings.Count(buf.String(), `"message":"workflow finished"`); n != len(workflows) {
		t.Errorf("Expected %d finish events, got %d", len(workflows), n)
	}
	if !strings.Contains(buf.String(), `"component":"segmentation"`) {
		t.Error("Expected component field in log output")
	}
}

// TestRunAllError verifies that a failing workflow fails the batch
func TestRunAllError(t *testing.T) {
	a := NewAssembler(nil, zerolog.Nop())
	empty := volume.NewMask(volume.NewGeometry(3, 3, 3))

	_, err := a.RunAll(context.Background(), []Workflow{Fixed, Otsu}, createCube(), empty)
	if !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Otsu over an empty ROI should fail with ErrInvalidArgument, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.RunAll(ctx, []Workflow{Fixed}, createCube(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestMeasure verifies segment statistics
func TestMeasure(t *testing.T) {
	v := volume.New(4)
	copy(v.Data, []float64{1, 2, 3, 10})
	v.Spacing = []float64{2}
	m := volume.Full(v.Geometry)
	m.Data[3] = false

	s, err := Measure(Segment{Name: "lung", Mask: m}, v)
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
	}
	if s.Name != "lung" || s.VoxelCount != 3 {
		t.Errorf("Unexpected name/count %q/%d", s.Name, s.VoxelCount)
	}
	if math.Abs(s.VolumeCCM-0.006) > 1e-12 {
		t.Errorf("Expected 0.006 ccm, got %g", s.VolumeCCM)
	}
	if s.Mean != 2 || s.Median != 2 || s.Min != 1 || s.Max != 3 {
		t.Errorf("Unexpected intensity stats %+v", s)
	}
	if math.Abs(s.StdDev-math.Sqrt(2.0/3)) > 1e-12 {
		t.Errorf("Expected population std %g, got %g", math.Sqrt(2.0/3), s.StdDev)
	}
	if v.Data[0] != 1 {
		t.Error("Measure must not reorder the volume")
	}

	empty, err := Measure(Segment{Mask: volume.NewMask(v.Geometry)}, v)
	if err != nil || empty.VoxelCount != 0 || empty.Mean != 0 {
		t.Errorf("Unexpected stats for empty segment: %+v, %v", empty, err)
	}
}

// TestCompare verifies overlap measures
func TestCompare(t *testing.T) {
	g := volume.NewGeometry(10)
	g.Spacing = []float64{10}
	a := volume.NewMask(g)
	b := volume.NewMask(g)
	for i := 0; i < 4; i++ {
		a.Data[i] = true
	}
	for i := 2; i < 8; i++ {
		b.Data[i] = true
	}

	o, err := Compare(a, b)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if o.TP != 2 || o.FN != 2 || o.FP != 4 || o.TN != 2 || o.Union != 8 {
		t.Errorf("Unexpected confusion counts %+v", o)
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"dice", o.Dice, 4 / 10.001},
		{"jaccard", o.Jaccard, 2 / 8.001},
		{"precision", o.Precision, 2 / 6.001},
		{"recall", o.Recall, 2 / 4.001},
		{"volume similarity", o.VolumeSimilarity, 2 * 2 / 10.0},
		{"overlap ccm", o.OverlapCCM, 0.02},
		{"A only ccm", o.AOnlyCCM, 0.02},
		{"B only ccm", o.BOnlyCCM, 0.04},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-12 {
			t.Errorf("%s: expected %g, got %g", c.name, c.want, c.got)
		}
	}

	self, _ := Compare(a, a)
	if math.Abs(self.Dice-8/8.001) > 1e-12 {
		t.Errorf("Self dice should be close to 1, got %g", self.Dice)
	}

	if _, err := Compare(a, volume.NewMask(volume.NewGeometry(5))); !errors.Is(err, volume.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}
