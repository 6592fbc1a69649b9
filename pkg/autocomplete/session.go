// Package autocomplete drives the preview/apply workflow of completing a
// segmentation from a few drawn slices or seeds.
//
// A Session collects the participating segments, brings their binary
// labelmaps onto one grid, merges them, runs the selected completion method
// and splits the result back into per-segment masks. The result is held as a
// preview until it is applied to the segmentation or cancelled.
package autocomplete

import (
	"errors"
	"fmt"
	"strings"

	"segcomplete/internal/models"
	"segcomplete/pkg/completion"
	"segcomplete/pkg/config"
	"segcomplete/pkg/geometry"
	"segcomplete/pkg/labelmap"
)

var log = config.NamedLogger("autocomplete")

// Skip reasons reported by a Session in addition to those of the completion
// engine
const (
	SkipNoEligibleSegments completion.SkipReason = "NoEligibleSegments"
	SkipEmptyGeometry      completion.SkipReason = "EmptyGeometry"
	SkipNothingToApply     completion.SkipReason = "NothingToApply"
)

// PreviewResult is the outcome of one Preview call
type PreviewResult struct {
	// Method that produced the preview
	Method completion.Method

	// Outcome tells whether a preview was produced or why not
	Outcome completion.Outcome

	// Masks holds one completed binary mask per participating segment
	Masks map[string]*models.OrientedVolume

	// Assignment maps segment IDs to the labels of Completed
	Assignment labelmap.LabelAssignment

	// Completed is the completed label volume
	Completed *models.OrientedVolume

	// Warnings lists non-fatal observations (resampled or cropped masks,
	// empty segments)
	Warnings []string
}

// Session holds the state of one auto-complete workflow over a segmentation
type Session struct {
	segmentation *models.Segmentation
	reference    *models.OrientedVolume
	cfg          *config.Config
	engine       *completion.Engine

	cache   *geometryCache
	preview *PreviewResult
}

// geometryCache keeps the aligned masks of the last participating segment set
type geometryCache struct {
	key    string
	grid   *models.OrientedVolume
	bounds models.Extent
	masks  []*models.OrientedVolume
	notes  []string
}

// NewSession creates a session over a segmentation. reference is the
// intensity volume (required for GrowCut, optional otherwise); when present
// it defines the working grid. A nil cfg uses the defaults.
func NewSession(segmentation *models.Segmentation, reference *models.OrientedVolume, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Session{
		segmentation: segmentation,
		reference:    reference,
		cfg:          cfg,
		engine:       completion.NewEngine(),
	}
}

// Preview completes the participating segments with method. overrides uses
// the editor parameter names (ObjectSize, ContrastNoiseRatio, ...) and is
// applied on top of the session configuration for this call only; method
// takes precedence over an AutoCompleteMethod override.
//
// Skipped previews are reported through the result Outcome and leave the
// previous preview in place. Errors are reserved for failed preconditions.
func (s *Session) Preview(method completion.Method, overrides map[string]string) (*PreviewResult, error) {
	cfg, err := s.cfg.WithParameters(overrides)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	priority, err := labelmap.ParsePriority(cfg.AutoComplete.Priority)
	if err != nil {
		return nil, err
	}
	policy, err := labelmap.ParseExtentPolicy(cfg.AutoComplete.ExtentPolicy)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{Method: method}
	ids := s.participatingIDs(cfg)
	if len(ids) == 0 {
		log.Info("no segments to complete; skipping")
		result.Outcome = completion.Skipped(SkipNoEligibleSegments)
		return result, nil
	}

	cache, err := s.geometry(ids)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, cache.notes...)

	extent, err := labelmap.CommonExtent(policy, cache.masks, cache.bounds, cfg.AutoComplete.Margin)
	if errors.Is(err, geometry.ErrEmptyGeometry) {
		log.Infof("nothing to complete: %v", err)
		result.Outcome = completion.Skipped(SkipEmptyGeometry)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	inputs := make([]labelmap.Input, len(ids))
	for n, id := range ids {
		mask := cache.masks[n]
		if mask != nil && !extent.ContainsExtent(mask.Extent) {
			cropped := geometry.PadToExtent(mask, extent)
			if cropped.CountNonZero() < mask.CountNonZero() {
				result.Warnings = append(result.Warnings, fmt.Sprintf("segment %s was cropped to the working extent", id))
			}
			mask = cropped
		}
		inputs[n] = labelmap.Input{ID: id, Mask: mask}
	}

	merged, assignment, err := labelmap.Merge(inputs, labelmap.MergeOptions{
		Geometry: cache.grid,
		Extent:   extent,
		Priority: priority,
	})
	if err != nil {
		return nil, err
	}

	// every preview starts without a prior so equal inputs give equal results
	outcome, completed, err := s.engine.Run(merged, s.reference, method, completion.ParamsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	result.Outcome = outcome
	if outcome.Skipped {
		return result, nil
	}

	result.Assignment = assignment
	result.Completed = completed
	result.Masks = labelmap.Split(completed, assignment)
	s.preview = result
	log.Debugf("preview ready: %d segments with %s", len(ids), method)
	return result, nil
}

// Apply writes the masks of a preview into the segmentation and resets the
// session. A nil result applies the current preview. Applying a skipped
// result, or nothing, is reported as a skip.
func (s *Session) Apply(result *PreviewResult) (completion.Outcome, error) {
	if result == nil {
		result = s.preview
	}
	if result == nil || result.Outcome.Skipped || len(result.Masks) == 0 {
		log.Info("no preview to apply")
		return completion.Skipped(SkipNothingToApply), nil
	}
	for _, id := range result.Assignment.SegmentIDs() {
		if err := s.segmentation.SetBinaryLabelmap(id, result.Masks[id]); err != nil {
			return completion.Outcome{}, fmt.Errorf("applying preview: %w", err)
		}
	}
	log.Infof("applied %s to %d segments", result.Method, len(result.Masks))
	s.Reset()
	return completion.Completed(), nil
}

// Cancel discards the preview and the cached geometry
func (s *Session) Cancel() {
	log.Debug("preview cancelled")
	s.Reset()
}

// Reset drops all cached state so the next preview starts from scratch
func (s *Session) Reset() {
	s.cache = nil
	s.preview = nil
}

// CurrentPreview returns the preview awaiting Apply, or nil
func (s *Session) CurrentPreview() *PreviewResult {
	return s.preview
}

// participatingIDs returns the segments with a binary labelmap, visible ones
// only when so configured, in table order
func (s *Session) participatingIDs(cfg *config.Config) []string {
	candidates := s.segmentation.SegmentIDs()
	if cfg.AutoComplete.VisibleSegmentsOnly {
		candidates = s.segmentation.VisibleSegmentIDs()
	}
	var ids []string
	for _, id := range candidates {
		if s.segmentation.Segment(id).BinaryLabelmap != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// geometry returns the aligned masks for ids, reusing the cache while the
// participating masks are the same
func (s *Session) geometry(ids []string) (*geometryCache, error) {
	key := s.cacheKey(ids)
	if s.cache != nil && s.cache.key == key {
		return s.cache, nil
	}

	c := &geometryCache{key: key}
	if s.reference != nil {
		c.grid = s.reference
		c.bounds = s.reference.Extent
	} else {
		c.grid = s.segmentation.Segment(ids[0]).BinaryLabelmap
		c.bounds = models.EmptyExtent()
	}

	c.masks = make([]*models.OrientedVolume, len(ids))
	for n, id := range ids {
		mask := s.segmentation.Segment(id).BinaryLabelmap
		if !mask.HasForeground() {
			c.notes = append(c.notes, fmt.Sprintf("segment %s is empty", id))
		}
		if !mask.SameGrid(c.grid, 1e-6) {
			aligned, err := geometry.Resample(mask, c.grid, true)
			if err != nil {
				return nil, fmt.Errorf("aligning segment %s: %w", id, err)
			}
			c.notes = append(c.notes, fmt.Sprintf("segment %s was resampled onto the working grid", id))
			mask = aligned
		}
		c.masks[n] = mask
		if s.reference == nil {
			c.bounds = c.bounds.Union(mask.Extent)
		}
	}

	s.cache = c
	return c, nil
}

func (s *Session) cacheKey(ids []string) string {
	parts := make([]string, len(ids))
	for n, id := range ids {
		mask := s.segmentation.Segment(id).BinaryLabelmap
		parts[n] = fmt.Sprintf("%s:%p:%v", id, mask, mask.Extent)
	}
	return strings.Join(parts, "|")
}
