package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	uniplot "github.com/aybabtme/uniplot/histogram"
	"github.com/pkg/errors"

	"volumekit/pkg/autocrop"
	"volumekit/pkg/blockreduce"
	"volumekit/pkg/config"
	"volumekit/pkg/histogram"
	"volumekit/pkg/segmentation"
	"volumekit/pkg/visualization"
	"volumekit/pkg/volio"
	"volumekit/pkg/volume"
)

// readInputs loads the input volume and the optional ROI mask.
func readInputs(input, roiPath string) (*volume.Volume, *volume.Mask, error) {
	v, err := volio.Read(input)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read volume %s", input)
	}
	if roiPath == "" {
		return v, nil, nil
	}
	roi, err := volio.ReadMask(roiPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read ROI %s", roiPath)
	}
	if err := volume.CheckShape(v.Geometry, roi.Geometry); err != nil {
		return nil, nil, err
	}
	return v, roi, nil
}

func runSegment(args []string) error {
	var common commonFlags
	fs := newFlagSet("segment", &common)
	roiPath := fs.String("roi", "", "ROI mask (default: whole volume)")
	workflows := fs.String("workflows", "", "Comma separated workflows, overriding the configuration")
	fixed := fs.Float64("threshold", 0, "Fixed workflow threshold, overriding the configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := common.requireInput(); err != nil {
		return err
	}
	if err := common.requireOutput(); err != nil {
		return err
	}
	e, err := common.load()
	if err != nil {
		return err
	}

	if *workflows != "" {
		e.cfg.Segmentation.Workflows = parseList(*workflows)
	}
	if isSet(fs, "threshold") {
		e.cfg.Segmentation.FixedThreshold = *fixed
	}
	ws, err := e.cfg.Workflows()
	if err != nil {
		return err
	}

	v, roi, err := readInputs(common.input, *roiPath)
	if err != nil {
		return err
	}

	start := time.Now()
	assembler := segmentation.NewAssembler(e.cfg.SegmentationParams(), e.logger)
	results, err := assembler.RunAll(context.Background(), ws, v, roi)
	if err != nil {
		return err
	}

	for _, res := range results {
		dir := filepath.Join(common.output, res.Workflow.String())
		segs := res.All()
		if err := volio.WriteSegments(dir, segs); err != nil {
			return errors.Wrapf(err, "failed to write %s segments", res.Workflow)
		}

		stats, err := segmentation.MeasureAll(segs, v)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s (thresholds %v) -> %s\n", res.Workflow, res.Thresholds, dir)
		if err := printStats(os.Stdout, stats); err != nil {
			return err
		}

		if e.cfg.Output.PreviewDir != "" {
			if err := savePreviews(v, res.Segments, e.cfg.Output.PreviewDir, res.Workflow.String()); err != nil {
				e.logger.Warn().Err(err).Str("workflow", res.Workflow.String()).Msg("failed to save previews")
			}
		}
	}

	e.logger.Info().
		Int("workflows", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("segmentation completed")
	return nil
}

func runHistogram(args []string) error {
	var common commonFlags
	fs := newFlagSet("histogram", &common)
	roiPath := fs.String("roi", "", "ROI mask (default: whole volume)")
	bins := fs.Int("bins", 0, "Number of bins, overriding the configuration")
	logScale := fs.Bool("log", false, "Show log10 counts")
	plot := fs.Bool("plot", false, "Render a terminal bar chart")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := common.requireInput(); err != nil {
		return err
	}
	e, err := common.load()
	if err != nil {
		return err
	}

	n, opts := e.cfg.HistogramOptions()
	if *bins > 0 {
		n = *bins
	}
	opts.LogScale = opts.LogScale || *logScale

	v, roi, err := readInputs(common.input, *roiPath)
	if err != nil {
		return err
	}
	samples, err := v.MaskedSamples(roi)
	if err != nil {
		return err
	}

	h, err := histogram.Compute(samples, n, opts)
	if err != nil {
		return err
	}

	if *plot {
		if len(samples) == 0 {
			return errors.Wrap(volume.ErrEmptyMask, "nothing to plot")
		}
		return uniplot.Fprint(os.Stdout, uniplot.Hist(n, samples), uniplot.Linear(50))
	}

	label := "count"
	if h.LogScale {
		label = "log10 count"
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "low\thigh\t%s\n", label)
	for i, c := range h.Counts {
		fmt.Fprintf(w, "%g\t%g\t%g\n", h.Edges[i], h.Edges[i+1], c)
	}
	return w.Flush()
}

func runDownsample(args []string) error {
	var common commonFlags
	fs := newFlagSet("downsample", &common)
	block := fs.String("block", "", "Block size, one value or one per axis, overriding the configuration")
	fn := fs.String("func", "", "Reduction function (min, max, mean, median, std)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := common.requireInput(); err != nil {
		return err
	}
	if err := common.requireOutput(); err != nil {
		return err
	}
	e, err := common.load()
	if err != nil {
		return err
	}

	if *block != "" {
		if e.cfg.Downsample.BlockSize, err = parseInts(*block); err != nil {
			return err
		}
	}
	if *fn != "" {
		e.cfg.Downsample.Function = *fn
	}
	reduce, err := e.cfg.DownsampleFunc()
	if err != nil {
		return err
	}

	v, err := volio.Read(common.input)
	if err != nil {
		return err
	}
	out, err := blockreduce.Reduce(v, e.cfg.Downsample.BlockSize, reduce, e.cfg.PadValue(v))
	if err != nil {
		return err
	}
	if err := volio.Write(common.output, out); err != nil {
		return err
	}

	e.logger.Info().
		Ints("from", v.Shape).
		Ints("to", out.Shape).
		Str("function", reduce.String()).
		Msg("volume downsampled")
	return nil
}

func runRescale(args []string) error {
	var common commonFlags
	fs := newFlagSet("rescale", &common)
	dtype := fs.String("dtype", "", "Output dtype, overriding the configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := common.requireInput(); err != nil {
		return err
	}
	if err := common.requireOutput(); err != nil {
		return err
	}
	e, err := common.load()
	if err != nil {
		return err
	}

	if *dtype != "" {
		e.cfg.Intensity.DType = *dtype
	}
	tr, err := e.cfg.Transform()
	if err != nil {
		return err
	}

	v, err := volio.Read(common.input)
	if err != nil {
		return err
	}
	out, err := tr.Apply(v)
	if err != nil {
		return err
	}
	if err := volio.Write(common.output, out); err != nil {
		return err
	}

	r := out.DataRange()
	e.logger.Info().
		Str("dtype", out.DType.String()).
		Float64("min", r.Min).
		Float64("max", r.Max).
		Msg("volume rescaled")
	return nil
}

func runAutocrop(args []string) error {
	var common commonFlags
	fs := newFlagSet("autocrop", &common)
	roiPath := fs.String("roi", "", "Foreground mask (default: threshold from the configuration)")
	border := fs.String("border", "", "Border, one value or one per axis, overriding the configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := common.requireInput(); err != nil {
		return err
	}
	if err := common.requireOutput(); err != nil {
		return err
	}
	e, err := common.load()
	if err != nil {
		return err
	}

	if *border != "" {
		if e.cfg.Autocrop.Border, err = parseInts(*border); err != nil {
			return err
		}
	}

	v, roi, err := readInputs(common.input, *roiPath)
	if err != nil {
		return err
	}
	out, box, err := autocrop.Autocrop(v, autocropOptions(e.cfg, roi))
	if err != nil {
		return err
	}
	if err := volio.Write(common.output, out); err != nil {
		return err
	}

	e.logger.Info().
		Stringer("box", box).
		Ints("shape", out.Shape).
		Floats64("origin", out.Origin).
		Msg("volume cropped")
	return nil
}

func autocropOptions(cfg *config.Config, roi *volume.Mask) autocrop.Options {
	return autocrop.Options{
		ROI:         roi,
		Threshold:   cfg.Autocrop.Threshold,
		CleanRadius: cfg.Autocrop.CleanRadius,
		Border:      cfg.Autocrop.Border,
	}
}

func runStats(args []string) error {
	var common commonFlags
	fs := newFlagSet("stats", &common)
	segDir := fs.String("segments", "", "Segment directory written by the segment command")
	reference := fs.String("reference", "", "Reference mask to compare every segment with")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := common.requireInput(); err != nil {
		return err
	}
	if *segDir == "" {
		return errors.New("missing -segments")
	}
	if _, err := common.load(); err != nil {
		return err
	}

	v, err := volio.Read(common.input)
	if err != nil {
		return err
	}
	segs, err := volio.ReadSegments(*segDir)
	if err != nil {
		return err
	}
	stats, err := segmentation.MeasureAll(segs, v)
	if err != nil {
		return err
	}
	if err := printStats(os.Stdout, stats); err != nil {
		return err
	}

	if *reference == "" {
		return nil
	}
	ref, err := volio.ReadMask(*reference)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "\nsegment\tdice\tjaccard\tprecision\trecall\toverlap ccm\tref only ccm\tsegment only ccm\n")
	for _, s := range segs {
		o, err := segmentation.Compare(ref, s.Mask)
		if err != nil {
			return errors.Wrapf(err, "segment %q", s.Name)
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.3f\t%.3f\t%.3f\n",
			s.Name, o.Dice, o.Jaccard, o.Precision, o.Recall, o.OverlapCCM, o.AOnlyCCM, o.BOnlyCCM)
	}
	return w.Flush()
}

func runInitConfig(args []string) error {
	var common commonFlags
	fs := newFlagSet("init-config", &common)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.CreateDefaultConfigFile(common.configPath); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", common.configPath)
	return nil
}

func printStats(out io.Writer, stats []segmentation.Stats) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "segment\tvoxels\tvolume ccm\tmean\tstd\tmin\tmax\tmedian\n")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%.2f\t%.2f\t%g\t%g\t%g\n",
			s.Name, s.VoxelCount, s.VolumeCCM, s.Mean, s.StdDev, s.Min, s.Max, s.Median)
	}
	return w.Flush()
}

func savePreviews(v *volume.Volume, segs []segmentation.Segment, dir, prefix string) error {
	if v.NDim() != 3 {
		return errors.Wrap(volume.ErrInvalidArgument, "previews need a 3D volume")
	}
	viewer, err := visualization.NewViewer(v)
	if err != nil {
		return err
	}
	_, err = viewer.SaveMiddleSlices(segs, dir, prefix)
	return err
}
