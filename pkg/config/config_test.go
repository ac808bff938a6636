package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"volumekit/pkg/blockreduce"
	"volumekit/pkg/segmentation"
	"volumekit/pkg/volume"
)

// TestDefaultConfig verifies that the defaults validate and map onto the toolkit types
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}

	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least one core, got %d", cfg.Processing.NumCores)
	}
	ws, err := cfg.Workflows()
	if err != nil || len(ws) != 1 || ws[0] != segmentation.Otsu {
		t.Errorf("Unexpected default workflows %v, %v", ws, err)
	}
	fn, err := cfg.DownsampleFunc()
	if err != nil || fn != blockreduce.Mean {
		t.Errorf("Unexpected default function %v, %v", fn, err)
	}
	tr, err := cfg.Transform()
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if !math.IsInf(tr.Clip.Min, -1) || tr.DType != volume.Float64 {
		t.Errorf("Unexpected default transform %+v", tr)
	}
	if cfg.Autocrop.Threshold != (volume.Range{Min: 0, Max: 100}) {
		t.Errorf("Unexpected default autocrop threshold %v", cfg.Autocrop.Threshold)
	}
	if cfg.SegmentationParams().MultiOtsuClasses != 3 {
		t.Errorf("Expected three multi-Otsu classes by default")
	}

	pre, err := cfg.PreprocessFilter()
	if err != nil || pre.Clip != -1024 || !pre.Adaptive || pre.DType != volume.Float32 {
		t.Errorf("Unexpected default preprocess %+v, %v", pre, err)
	}
	a, b, err := cfg.DoGWidths()
	if err != nil || a != 2 || b != 4 {
		t.Errorf("Unexpected default DoG widths %g, %g, %v", a, b, err)
	}
}

// TestLoadMissingConfig verifies that a missing file yields the defaults
func TestLoadMissingConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Histogram.Bins != DefaultConfig().Histogram.Bins {
		t.Errorf("Expected default bins, got %d", cfg.Histogram.Bins)
	}
}

// TestSaveLoadRoundTrip verifies that a saved config loads back unchanged
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Segmentation.Workflows = []string{"fixed", "multi-otsu"}
	cfg.Segmentation.FixedThreshold = 120
	cfg.Downsample.BlockSize = []int{2, 2, 1}
	pad := -1024.0
	cfg.Downsample.PadValue = &pad
	cfg.Intensity.DType = "uint8"
	cfg.Intensity.Out = volume.Range{Min: 0, Max: 255}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if len(got.Segmentation.Workflows) != 2 || got.Segmentation.FixedThreshold != 120 {
		t.Errorf("Segmentation section did not round trip: %+v", got.Segmentation)
	}
	if len(got.Downsample.BlockSize) != 3 || got.Downsample.BlockSize[2] != 1 {
		t.Errorf("Block size did not round trip: %v", got.Downsample.BlockSize)
	}
	if got.PadValue(volume.New(1)) != -1024 {
		t.Errorf("Pad value did not round trip")
	}
	if !math.IsInf(got.Intensity.Clip.Max, 1) {
		t.Errorf("Unbounded clip should survive YAML, got %v", got.Intensity.Clip)
	}
	params := got.SegmentationParams()
	if params.FixedThreshold != 120 || params.NumCores != cfg.Processing.NumCores {
		t.Errorf("Unexpected assembler params %+v", params)
	}
}

// TestPadValueDefaultsToMinimum verifies the image-minimum pad
func TestPadValueDefaultsToMinimum(t *testing.T) {
	v := volume.New(3)
	copy(v.Data, []float64{5, -7, 2})
	if got := DefaultConfig().PadValue(v); got != -7 {
		t.Errorf("Expected pad -7, got %g", got)
	}
}

// TestLoadInvalidConfig verifies validation on load
func TestLoadInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown workflow", "segmentation:\n  workflows: [kmeans]\n"},
		{"unknown function", "downsample:\n  function: mode\n"},
		{"zero block", "downsample:\n  blockSize: [0]\n"},
		{"bad dtype", "intensity:\n  dtype: complex\n"},
		{"zero bins", "histogram:\n  bins: 0\n"},
		{"one multi-otsu class", "segmentation:\n  multiOtsuClasses: 1\n"},
		{"equal dog widths", "smoothing:\n  dog: [2, 2]\n"},
		{"negative fwhm", "smoothing:\n  fwhm: -1\n"},
		{"negative median radius", "preprocess:\n  medianRadii: [0, -1]\n"},
		{"bad preprocess dtype", "preprocess:\n  dtype: rgb\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			if _, err := LoadConfig(path); !errors.Is(err, volume.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

// TestCreateDefaultConfigFile verifies the init-config output
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := LoadConfig(path); err != nil {
		t.Errorf("Default config file should load: %v", err)
	}
}
