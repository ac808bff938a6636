package segmentation

import (
	"strings"

	"github.com/pkg/errors"

	"volumekit/pkg/volume"
)

// Workflow names one of the segmentation recipes.
type Workflow int

const (
	// Fixed splits the ROI at a user supplied threshold.
	Fixed Workflow = iota
	// Triangle splits the ROI at the triangle valley of its histogram.
	Triangle
	// Otsu splits the ROI into two Otsu classes.
	Otsu
	// MultiOtsu splits the ROI into MultiOtsuClasses Otsu classes.
	MultiOtsu
)

var workflowNames = [...]string{
	Fixed:     "fixed",
	Triangle:  "triangle",
	Otsu:      "otsu",
	MultiOtsu: "multi-otsu",
}

// Workflows lists every workflow in declaration order.
func Workflows() []Workflow { return []Workflow{Fixed, Triangle, Otsu, MultiOtsu} }

func (w Workflow) String() string {
	if w < 0 || int(w) >= len(workflowNames) {
		return "unknown"
	}
	return workflowNames[w]
}

// ParseWorkflow resolves a workflow name such as "multi-otsu".
func ParseWorkflow(s string) (Workflow, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for w, n := range workflowNames {
		if n == name {
			return Workflow(w), nil
		}
	}
	return 0, errors.Wrapf(volume.ErrInvalidArgument, "unknown workflow %q", s)
}

// ParseWorkflows resolves a list of names.
func ParseWorkflows(names []string) ([]Workflow, error) {
	out := make([]Workflow, 0, len(names))
	for _, n := range names {
		w, err := ParseWorkflow(n)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// MarshalText implements encoding.TextMarshaler.
func (w Workflow) MarshalText() ([]byte, error) {
	if w < 0 || int(w) >= len(workflowNames) {
		return nil, errors.Wrapf(volume.ErrInvalidArgument, "unknown workflow %d", int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Workflow) UnmarshalText(text []byte) error {
	parsed, err := ParseWorkflow(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
