// Package segmentation assembles threshold selectors and partitioners into
// the segmentation workflows and measures their results.
package segmentation

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"volumekit/internal/logging"
	"volumekit/pkg/partition"
	"volumekit/pkg/threshold"
	"volumekit/pkg/volume"
)

// Segment is a named, colored mask.
type Segment = partition.Segment

// TotalName names the segment holding the whole ROI.
const TotalName = "Total"

// DefaultMultiOtsuClasses is the number of multi-Otsu segments when Params
// leaves it unset.
const DefaultMultiOtsuClasses = 3

// Params holds the workflow parameters.
type Params struct {
	// FixedThreshold is the cut point of the Fixed workflow.
	FixedThreshold float64

	// MultiOtsuClasses is the number of segments of the MultiOtsu workflow,
	// one more than its threshold count. Zero selects DefaultMultiOtsuClasses.
	MultiOtsuClasses int

	// OtsuBins is the histogram resolution of both Otsu workflows. Zero
	// selects threshold.DefaultOtsuBins.
	OtsuBins int

	// NumCores bounds the number of workflows RunAll executes at once. Zero
	// or less uses every CPU.
	NumCores int
}

// Result is the output of one workflow.
type Result struct {
	Workflow Workflow

	// Thresholds are the cut points the workflow used, ascending.
	Thresholds []float64

	// Total covers the ROI.
	Total Segment

	// Segments partition Total.
	Segments []Segment
}

// All returns Total followed by the workflow segments.
func (r *Result) All() []Segment {
	return append([]Segment{r.Total}, r.Segments...)
}

// Assembler runs segmentation workflows.
type Assembler struct {
	params Params
	logger zerolog.Logger
}

// NewAssembler creates an assembler. A nil params uses the defaults.
func NewAssembler(params *Params, logger zerolog.Logger) *Assembler {
	a := &Assembler{logger: logging.Component(logger, "segmentation")}
	if params != nil {
		a.params = *params
	}
	if a.params.MultiOtsuClasses == 0 {
		a.params.MultiOtsuClasses = DefaultMultiOtsuClasses
	}
	return a
}

// Params returns the effective parameters.
func (a *Assembler) Params() Params { return a.params }

// Selector returns the threshold selector backing w.
func (a *Assembler) Selector(w Workflow) (threshold.Selector, error) {
	switch w {
	case Fixed:
		return threshold.Fixed{Value: a.params.FixedThreshold}, nil
	case Triangle:
		return threshold.Triangle{}, nil
	case Otsu:
		return threshold.Otsu{Levels: 1, Bins: a.params.OtsuBins}, nil
	case MultiOtsu:
		if a.params.MultiOtsuClasses < 2 {
			return nil, errors.Wrapf(volume.ErrInvalidArgument, "multi-otsu needs at least 2 classes, got %d", a.params.MultiOtsuClasses)
		}
		return threshold.Otsu{Levels: a.params.MultiOtsuClasses - 1, Bins: a.params.OtsuBins}, nil
	}
	return nil, errors.Wrapf(volume.ErrInvalidArgument, "unknown workflow %d", int(w))
}

// Run executes one workflow over the ROI of v. A nil roi selects the whole
// volume.
func (a *Assembler) Run(w Workflow, v *volume.Volume, roi *volume.Mask) (*Result, error) {
	start := time.Now()
	log := a.logger.With().Str("workflow", w.String()).Logger()

	sel, err := a.Selector(w)
	if err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if roi == nil {
		roi = volume.Full(v.Geometry)
	}
	samples, err := v.MaskedSamples(roi)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("samples", len(samples)).Msg("workflow started")

	thresholds, err := sel.Thresholds(samples)
	if err != nil {
		return nil, errors.Wrapf(err, "%s thresholds", sel.Name())
	}

	var segs []Segment
	switch w {
	case Fixed, Triangle:
		names := [2]string{"lower triangle", "upper triangle"}
		if w == Fixed {
			t := formatThreshold(thresholds[0])
			names = [2]string{"below " + t, "above " + t}
		}
		segs, err = partition.Binary(v, roi, thresholds[0], names)
	default:
		segs, err = partition.Classes(v, roi, thresholds, func(label int) string {
			return fmt.Sprintf("Otsu mask %d", label)
		})
	}
	if err != nil {
		return nil, err
	}
	colorize(segs)

	total := totalColor
	res := &Result{
		Workflow:   w,
		Thresholds: thresholds,
		Total:      Segment{Name: TotalName, Mask: roi.Clone(), Color: &total},
		Segments:   segs,
	}

	log.Info().
		Floats64("thresholds", thresholds).
		Int("segments", len(segs)).
		Dur("elapsed", time.Since(start)).
		Msg("workflow finished")
	return res, nil
}

// RunAll executes the workflows concurrently, at most NumCores at a time.
// Results are in request order; the first failure cancels the remaining
// workflows and is returned.
func (a *Assembler) RunAll(ctx context.Context, workflows []Workflow, v *volume.Volume, roi *volume.Mask) ([]*Result, error) {
	limit := a.params.NumCores
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]*Result, len(workflows))
	for i, w := range workflows {
		i, w := i, w
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := a.Run(w, v, roi)
			if err != nil {
				return errors.Wrapf(err, "workflow %s", w)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// formatThreshold prints t in decimal, keeping a fractional part so that
// whole numbers read as "20.0".
func formatThreshold(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if math.IsInf(t, 0) || math.IsNaN(t) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
