// Package config provides configuration loading and management for volumekit.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"volumekit/pkg/blockreduce"
	"volumekit/pkg/filter"
	"volumekit/pkg/histogram"
	"volumekit/pkg/intensity"
	"volumekit/pkg/segmentation"
	"volumekit/pkg/threshold"
	"volumekit/pkg/volume"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds how many workflows run in parallel
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Histogram display parameters
	Histogram struct {
		// Bins is the number of histogram bins
		Bins int `yaml:"bins"`

		// LogScale shows log10 counts
		LogScale bool `yaml:"logScale"`
	} `yaml:"histogram"`

	// Segmentation workflow parameters
	Segmentation struct {
		// Workflows lists the workflows the segment command runs
		Workflows []string `yaml:"workflows"`

		// FixedThreshold is the cut point of the fixed workflow
		FixedThreshold float64 `yaml:"fixedThreshold"`

		// MultiOtsuClasses is the number of multi-Otsu segments
		MultiOtsuClasses int `yaml:"multiOtsuClasses"`

		// OtsuBins is the histogram resolution of the Otsu search
		OtsuBins int `yaml:"otsuBins"`
	} `yaml:"segmentation"`

	// Block downsampling parameters
	Downsample struct {
		// BlockSize is one factor for every axis or one per axis
		BlockSize []int `yaml:"blockSize,flow"`

		// Function is one of min, max, mean, median, std
		Function string `yaml:"function"`

		// PadValue fills partial blocks. Unset pads with the image minimum.
		PadValue *float64 `yaml:"padValue,omitempty"`
	} `yaml:"downsample"`

	// Linear intensity transform parameters
	Intensity struct {
		Clip      volume.Range `yaml:"clip"`
		Out       volume.Range `yaml:"out"`
		Threshold volume.Range `yaml:"threshold"`
		Below     float64      `yaml:"below"`
		Above     float64      `yaml:"above"`

		// DType is the output element type
		DType string `yaml:"dtype"`
	} `yaml:"intensity"`

	// Autocrop parameters
	Autocrop struct {
		// Threshold selects the foreground when no ROI is given
		Threshold volume.Range `yaml:"threshold"`

		// CleanRadius enables a binary opening when positive
		CleanRadius []int `yaml:"cleanRadius,flow"`

		// Border grows the bounding box on every side
		Border []int `yaml:"border,flow"`
	} `yaml:"autocrop"`

	// Gaussian smoothing parameters
	Smoothing struct {
		// FWHM is the full width at half maximum of the smooth command, in
		// physical units
		FWHM float64 `yaml:"fwhm"`

		// DoG holds the two widths of the difference of Gaussians. Zero
		// stands for the unsmoothed image.
		DoG []float64 `yaml:"dog,flow"`
	} `yaml:"smoothing"`

	// Volume rendering preprocessing parameters
	Preprocess struct {
		// Clip is the value mapped to zero
		Clip float64 `yaml:"clip"`

		// Adaptive moves Clip up to the smallest voxel value at or above it
		Adaptive bool `yaml:"adaptive"`

		// MedianRadii lists one output per median radius, 0 for unsmoothed
		MedianRadii []int `yaml:"medianRadii,flow"`

		// DType is the output element type
		DType string `yaml:"dtype"`
	} `yaml:"preprocess"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// PreviewDir receives JPEG slice previews when set
		PreviewDir string `yaml:"previewDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Histogram.Bins = 50
	cfg.Histogram.LogScale = false

	cfg.Segmentation.Workflows = []string{"otsu"}
	cfg.Segmentation.FixedThreshold = 0
	cfg.Segmentation.MultiOtsuClasses = segmentation.DefaultMultiOtsuClasses
	cfg.Segmentation.OtsuBins = threshold.DefaultOtsuBins

	cfg.Downsample.BlockSize = []int{2}
	cfg.Downsample.Function = blockreduce.Mean.String()

	tr := intensity.Default()
	cfg.Intensity.Clip = tr.Clip
	cfg.Intensity.Out = tr.Out
	cfg.Intensity.Threshold = tr.Threshold
	cfg.Intensity.DType = tr.DType.String()

	cfg.Autocrop.Threshold = volume.Range{Min: 0, Max: 100}
	cfg.Autocrop.CleanRadius = []int{0}
	cfg.Autocrop.Border = []int{0}

	cfg.Smoothing.FWHM = 2
	cfg.Smoothing.DoG = []float64{2, 4}

	pre := filter.DefaultPreprocess()
	cfg.Preprocess.Clip = pre.Clip
	cfg.Preprocess.Adaptive = pre.Adaptive
	cfg.Preprocess.MedianRadii = pre.MedianRadii
	cfg.Preprocess.DType = pre.DType.String()

	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", configPath)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks every section that the commands parse.
func (c *Config) Validate() error {
	if c.Histogram.Bins < 1 {
		return errors.Wrapf(volume.ErrInvalidArgument, "histogram.bins %d", c.Histogram.Bins)
	}
	if _, err := c.Workflows(); err != nil {
		return errors.Wrap(err, "segmentation.workflows")
	}
	if c.Segmentation.MultiOtsuClasses < 2 {
		return errors.Wrapf(volume.ErrInvalidArgument, "segmentation.multiOtsuClasses %d", c.Segmentation.MultiOtsuClasses)
	}
	if c.Segmentation.OtsuBins < 0 {
		return errors.Wrapf(volume.ErrInvalidArgument, "segmentation.otsuBins %d", c.Segmentation.OtsuBins)
	}
	if _, err := blockreduce.ParseFunc(c.Downsample.Function); err != nil {
		return errors.Wrap(err, "downsample.function")
	}
	for _, b := range c.Downsample.BlockSize {
		if b < 1 {
			return errors.Wrapf(volume.ErrInvalidBlockSize, "downsample.blockSize %v", c.Downsample.BlockSize)
		}
	}
	tr, err := c.Transform()
	if err != nil {
		return errors.Wrap(err, "intensity")
	}
	if err := tr.Validate(); err != nil {
		return errors.Wrap(err, "intensity")
	}
	if err := c.Autocrop.Threshold.Validate(); err != nil {
		return errors.Wrap(err, "autocrop.threshold")
	}
	if c.Smoothing.FWHM < 0 {
		return errors.Wrapf(volume.ErrInvalidArgument, "smoothing.fwhm %g", c.Smoothing.FWHM)
	}
	if _, _, err := c.DoGWidths(); err != nil {
		return errors.Wrap(err, "smoothing.dog")
	}
	pre, err := c.PreprocessFilter()
	if err != nil {
		return errors.Wrap(err, "preprocess")
	}
	if err := pre.Validate(); err != nil {
		return errors.Wrap(err, "preprocess")
	}
	return nil
}

// Workflows parses the configured workflow names.
func (c *Config) Workflows() ([]segmentation.Workflow, error) {
	return segmentation.ParseWorkflows(c.Segmentation.Workflows)
}

// SegmentationParams returns the assembler parameters.
func (c *Config) SegmentationParams() *segmentation.Params {
	return &segmentation.Params{
		FixedThreshold:   c.Segmentation.FixedThreshold,
		MultiOtsuClasses: c.Segmentation.MultiOtsuClasses,
		OtsuBins:         c.Segmentation.OtsuBins,
		NumCores:         c.Processing.NumCores,
	}
}

// HistogramOptions returns the histogram bin count and options.
func (c *Config) HistogramOptions() (int, histogram.Options) {
	return c.Histogram.Bins, histogram.Options{LogScale: c.Histogram.LogScale}
}

// DownsampleFunc parses the reduction function.
func (c *Config) DownsampleFunc() (blockreduce.Func, error) {
	return blockreduce.ParseFunc(c.Downsample.Function)
}

// PadValue returns the configured pad or the minimum of v.
func (c *Config) PadValue(v *volume.Volume) float64 {
	if c.Downsample.PadValue != nil {
		return *c.Downsample.PadValue
	}
	return blockreduce.MinValue(v)
}

// Transform builds the intensity transform.
func (c *Config) Transform() (intensity.Transform, error) {
	dtype, err := volume.ParseDType(c.Intensity.DType)
	if err != nil {
		return intensity.Transform{}, err
	}
	return intensity.Transform{
		Clip:      c.Intensity.Clip,
		Out:       c.Intensity.Out,
		Threshold: c.Intensity.Threshold,
		Below:     c.Intensity.Below,
		Above:     c.Intensity.Above,
		DType:     dtype,
	}, nil
}

// DoGWidths returns the two difference of Gaussians widths.
func (c *Config) DoGWidths() (float64, float64, error) {
	w := c.Smoothing.DoG
	if len(w) != 2 || w[0] < 0 || w[1] < 0 || w[0] == w[1] {
		return 0, 0, errors.Wrapf(volume.ErrInvalidArgument, "need two distinct non-negative widths, got %v", w)
	}
	return w[0], w[1], nil
}

// PreprocessFilter builds the preprocessing filter.
func (c *Config) PreprocessFilter() (filter.Preprocess, error) {
	dtype, err := volume.ParseDType(c.Preprocess.DType)
	if err != nil {
		return filter.Preprocess{}, err
	}
	return filter.Preprocess{
		Clip:        c.Preprocess.Clip,
		Adaptive:    c.Preprocess.Adaptive,
		MedianRadii: c.Preprocess.MedianRadii,
		DType:       dtype,
	}, nil
}
