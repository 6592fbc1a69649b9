package labelmap

import (
	"errors"
	"fmt"
	"sort"

	"segcomplete/internal/models"
	"segcomplete/pkg/config"
	"segcomplete/pkg/geometry"
)

var log = config.NamedLogger("labelmap")

// ErrDimensionMismatch is returned when a mask does not fit the output grid
var ErrDimensionMismatch = errors.New("dimension mismatch")

// gridTolerance matches the tolerance used by the geometry package
const gridTolerance = 1e-6

// Input is one segment taking part in a merge
type Input struct {
	// ID of the segment in the segmentation
	ID string

	// Mask is the binary labelmap (non-zero = inside). Nil or empty masks
	// still receive a label.
	Mask *models.OrientedVolume
}

// MergeOptions describes the output volume of a merge
type MergeOptions struct {
	// Geometry supplies origin, spacing and directions of the output grid
	Geometry *models.OrientedVolume

	// Extent of the output volume on that grid
	Extent models.Extent

	// Priority resolves voxels claimed by more than one mask
	Priority Priority
}

// LabelAssignment maps segment IDs to the label values of a merged volume
type LabelAssignment map[string]int

// SegmentIDs returns the assigned segment IDs ordered by label value
func (a LabelAssignment) SegmentIDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(x, y int) bool { return a[ids[x]] < a[ids[y]] })
	return ids
}

// SegmentForLabel returns the segment ID holding a label value
func (a LabelAssignment) SegmentForLabel(label int) (string, bool) {
	for id, l := range a {
		if l == label {
			return id, true
		}
	}
	return "", false
}

// Merge writes the given masks into one Short label volume. Segments get
// labels 1..N in the order of segments; where masks overlap, opts.Priority
// decides the winner. Masks must lie on the output grid and keep their
// foreground inside opts.Extent, otherwise ErrDimensionMismatch is returned.
// Merge never resamples.
func Merge(segments []Input, opts MergeOptions) (*models.OrientedVolume, LabelAssignment, error) {
	if opts.Geometry == nil {
		return nil, nil, fmt.Errorf("merge requires an output geometry")
	}
	if opts.Extent.IsEmpty() {
		return nil, nil, fmt.Errorf("merge into empty extent: %w", geometry.ErrEmptyGeometry)
	}

	assignment := make(LabelAssignment, len(segments))
	for n, s := range segments {
		if _, dup := assignment[s.ID]; dup {
			return nil, nil, fmt.Errorf("%w: %s", models.ErrDuplicateSegment, s.ID)
		}
		assignment[s.ID] = n + 1
	}

	for _, s := range segments {
		if err := checkFits(s, opts); err != nil {
			return nil, nil, err
		}
	}

	merged := models.NewVolumeLike(opts.Geometry, opts.Extent, models.Short)

	// Later writes overwrite earlier ones
	order := make([]int, len(segments))
	for n := range order {
		order[n] = n
	}
	if opts.Priority == HigherInTableWins {
		for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
			order[l], order[r] = order[r], order[l]
		}
	}

	for _, n := range order {
		s := segments[n]
		if s.Mask == nil {
			continue
		}
		label := float64(n + 1)
		overlap := s.Mask.Extent.Intersect(opts.Extent)
		if overlap.IsEmpty() {
			continue
		}
		for k := overlap[4]; k <= overlap[5]; k++ {
			for j := overlap[2]; j <= overlap[3]; j++ {
				src := s.Mask.Index(overlap[0], j, k)
				dst := merged.Index(overlap[0], j, k)
				for i := overlap[0]; i <= overlap[1]; i++ {
					if s.Mask.Data[src] != 0 {
						merged.Data[dst] = label
					}
					src++
					dst++
				}
			}
		}
	}

	log.Debugf("merged %d segments into %v (%s)", len(segments), opts.Extent, opts.Priority)
	return merged, assignment, nil
}

func checkFits(s Input, opts MergeOptions) error {
	if s.Mask == nil || s.Mask.Extent.IsEmpty() {
		return nil
	}
	if !s.Mask.SameGrid(opts.Geometry, gridTolerance) {
		return fmt.Errorf("%w: segment %s is not on the output grid", ErrDimensionMismatch, s.ID)
	}
	if opts.Extent.ContainsExtent(s.Mask.Extent) {
		return nil
	}
	effective := geometry.EffectiveExtent(s.Mask)
	if !opts.Extent.ContainsExtent(effective) {
		return fmt.Errorf("%w: segment %s foreground %v exceeds output extent %v",
			ErrDimensionMismatch, s.ID, effective, opts.Extent)
	}
	return nil
}
