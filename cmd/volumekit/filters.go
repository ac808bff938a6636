package main

import (
	"strings"

	"github.com/pkg/errors"

	"volumekit/pkg/filter"
	"volumekit/pkg/volio"
)

func runSmooth(args []string) error {
	var common commonFlags
	fs := newFlagSet("smooth", &common)
	fwhm := fs.Float64("fwhm", 0, "Full width at half maximum in physical units, overriding the configuration")
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
	if isSet(fs, "fwhm") {
		e.cfg.Smoothing.FWHM = *fwhm
	}

	v, err := volio.Read(common.input)
	if err != nil {
		return err
	}
	out, err := filter.Smooth(v, e.cfg.Smoothing.FWHM)
	if err != nil {
		return err
	}
	if err := volio.Write(common.output, out); err != nil {
		return err
	}

	e.logger.Info().
		Float64("fwhm", e.cfg.Smoothing.FWHM).
		Float64("sigma", filter.FWHMToSigma(e.cfg.Smoothing.FWHM)).
		Msg("volume smoothed")
	return nil
}

func runDoG(args []string) error {
	var common commonFlags
	fs := newFlagSet("dog", &common)
	widths := fs.String("fwhm", "", "Two widths a,b giving smooth(a) - smooth(b); 0 is the input itself")
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
	if *widths != "" {
		if e.cfg.Smoothing.DoG, err = parseFloats(*widths); err != nil {
			return err
		}
	}
	a, b, err := e.cfg.DoGWidths()
	if err != nil {
		return err
	}

	v, err := volio.Read(common.input)
	if err != nil {
		return err
	}
	out, err := filter.DifferenceOfGaussians(v, a, b)
	if err != nil {
		return err
	}
	if err := volio.Write(common.output, out); err != nil {
		return err
	}

	e.logger.Info().Float64("first", a).Float64("second", b).Msg("difference of Gaussians written")
	return nil
}

func runPreprocess(args []string) error {
	var common commonFlags
	fs := newFlagSet("preprocess", &common)
	clip := fs.Float64("clip", 0, "Clip value, overriding the configuration")
	adaptive := fs.Bool("adaptive", true, "Move the clip up to the smallest voxel value at or above it")
	radii := fs.String("median", "", "Median radii, one output each (0 is unsmoothed)")
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

	if isSet(fs, "clip") {
		e.cfg.Preprocess.Clip = *clip
	}
	if isSet(fs, "adaptive") {
		e.cfg.Preprocess.Adaptive = *adaptive
	}
	if *radii != "" {
		if e.cfg.Preprocess.MedianRadii, err = parseInts(*radii); err != nil {
			return err
		}
	}
	if *dtype != "" {
		e.cfg.Preprocess.DType = *dtype
	}
	pre, err := e.cfg.PreprocessFilter()
	if err != nil {
		return err
	}

	v, err := volio.Read(common.input)
	if err != nil {
		return err
	}
	outputs, used, err := pre.Apply(v)
	if err != nil {
		return err
	}

	header, _ := volio.Paths(common.output)
	base := strings.TrimSuffix(header, volio.HeaderExt)
	for _, o := range outputs {
		path := filter.OutputName(base, o.Radius) + volio.HeaderExt
		if err := volio.Write(path, o.Volume); err != nil {
			return errors.Wrapf(err, "median radius %d", o.Radius)
		}
		e.logger.Info().
			Str("path", path).
			Float64("clip", used).
			Int("median", o.Radius).
			Msg("preprocessed image written")
	}
	return nil
}
