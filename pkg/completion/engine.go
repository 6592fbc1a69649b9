// Package completion grows a sparse multi-label volume into a complete one.
//
// Two strategies are available. Morphological slice interpolation fills the
// empty slices between labelled slices by blending signed distance fields of
// matching 2D regions. GrowCut lets every label compete for the unlabelled
// voxels along the cheapest paths through a reference intensity volume.
package completion

import (
	"errors"
	"fmt"

	"segcomplete/internal/models"
	"segcomplete/pkg/config"
)

var log = config.NamedLogger("completion")

var (
	// ErrUnsupportedMethod is returned for method tags no strategy handles
	ErrUnsupportedMethod = errors.New("unsupported completion method")

	// ErrMissingReference is returned when GrowCut runs without intensities
	ErrMissingReference = errors.New("reference volume required")
)

// Method selects the completion strategy
type Method int

const (
	// MorphologicalSliceInterpolation fills gaps between labelled slices
	MorphologicalSliceInterpolation Method = iota

	// GrowCut propagates seeds through the reference intensities
	GrowCut
)

func (m Method) String() string {
	switch m {
	case MorphologicalSliceInterpolation:
		return config.MethodMorphologicalSliceInterpolation
	case GrowCut:
		return config.MethodGrowCut
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps a method tag such as "GROWCUT" to a Method
func ParseMethod(s string) (Method, error) {
	switch s {
	case config.MethodMorphologicalSliceInterpolation:
		return MorphologicalSliceInterpolation, nil
	case config.MethodGrowCut:
		return GrowCut, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
}

// SkipReason names why an operation did not produce a result
type SkipReason string

// SkipInsufficientSegments means fewer distinct seed labels than the
// strategy needs
const SkipInsufficientSegments SkipReason = "InsufficientSegments"

// Outcome tells a completed run apart from a skipped one. Skips are not
// errors: there was nothing to do.
type Outcome struct {
	Skipped bool
	Reason  SkipReason
}

// Completed is the outcome of a run that produced a volume
func Completed() Outcome { return Outcome{} }

// Skipped is the outcome of a run that produced nothing
func Skipped(reason SkipReason) Outcome { return Outcome{Skipped: true, Reason: reason} }

func (o Outcome) String() string {
	if o.Skipped {
		return "skipped: " + string(o.Reason)
	}
	return "completed"
}

// Params holds the tunable values of both strategies
type Params struct {
	// SliceAxis fixes the interpolation axis (0, 1, 2); -1 selects it
	// automatically
	SliceAxis int

	// ObjectSize is the expected object size in mm3 (GrowCut footprint)
	ObjectSize float64

	// ContrastNoiseRatio scales the intensity terms of the GrowCut cost
	ContrastNoiseRatio float64

	// PriorStrength discounts steps into voxels the Prior volume already
	// assigns to the propagating label
	PriorStrength float64

	// Prior is an optional earlier label volume on the merged grid
	Prior *models.OrientedVolume
}

// DefaultParams returns the values the segment editor ships with
func DefaultParams() Params {
	return Params{
		SliceAxis:          -1,
		ObjectSize:         5.0,
		ContrastNoiseRatio: 0.8,
		PriorStrength:      0.003,
	}
}

// ParamsFromConfig reads strategy parameters from the auto-complete section
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		SliceAxis:          cfg.AutoComplete.SliceAxis,
		ObjectSize:         cfg.AutoComplete.ObjectSize,
		ContrastNoiseRatio: cfg.AutoComplete.ContrastNoiseRatio,
		PriorStrength:      cfg.AutoComplete.PriorSegmentConfidence,
	}
}

// Strategy is one completion algorithm
type Strategy interface {
	// Name returns the method tag
	Name() string

	// MinimumSeedLabels is the number of distinct labels needed to run
	MinimumSeedLabels() int

	// Complete returns a new label volume over merged's extent in which
	// every voxel is 0 or one of merged's labels
	Complete(merged, reference *models.OrientedVolume, params Params) (*models.OrientedVolume, error)
}

// StrategyFor returns the strategy implementing a method
func StrategyFor(m Method) (Strategy, error) {
	switch m {
	case MorphologicalSliceInterpolation:
		return &Interpolator{}, nil
	case GrowCut:
		return &GrowCutter{}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedMethod, m)
}

// Engine runs completion requests
type Engine struct{}

// NewEngine creates a completion engine
func NewEngine() *Engine {
	return &Engine{}
}

// Run completes merged with the selected method. A request with too few
// seed labels is skipped: the outcome says so and the volume is nil. The
// seed count is checked before the grow-cut reference. The inputs are never
// modified.
func (e *Engine) Run(merged, reference *models.OrientedVolume, method Method, params Params) (Outcome, *models.OrientedVolume, error) {
	strategy, err := StrategyFor(method)
	if err != nil {
		return Outcome{}, nil, err
	}
	if merged == nil || merged.Extent.IsEmpty() {
		return Outcome{}, nil, fmt.Errorf("completion requires a non-empty merged labelmap")
	}

	labels := merged.Labels()
	if len(labels) < strategy.MinimumSeedLabels() {
		log.Infof("%s needs %d seed labels, found %d; skipping",
			strategy.Name(), strategy.MinimumSeedLabels(), len(labels))
		return Skipped(SkipInsufficientSegments), nil, nil
	}
	if method == GrowCut && reference == nil {
		log.Error("grow-cut requested without a reference volume")
		return Outcome{}, nil, fmt.Errorf("%s: %w", strategy.Name(), ErrMissingReference)
	}

	log.Debugf("running %s on %v with labels %v", strategy.Name(), merged.Extent, labels)
	completed, err := strategy.Complete(merged, reference, params)
	if err != nil {
		return Outcome{}, nil, fmt.Errorf("%s: %w", strategy.Name(), err)
	}
	return Completed(), completed, nil
}

// Complete runs a single request on a fresh engine. The volume is nil when
// the request was skipped.
func Complete(merged, reference *models.OrientedVolume, method Method, params Params) (*models.OrientedVolume, error) {
	_, completed, err := NewEngine().Run(merged, reference, method, params)
	return completed, err
}
