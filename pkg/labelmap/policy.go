// Package labelmap converts between per-segment binary masks and a single
// multi-label volume. Merge flattens masks into labels 1..N; Split turns a
// completed label volume back into one binary mask per segment.
package labelmap

import (
	"fmt"

	"segcomplete/internal/models"
	"segcomplete/pkg/config"
	"segcomplete/pkg/geometry"
)

// Priority decides which segment keeps a voxel claimed by several masks
type Priority int

const (
	// HigherInTableWins gives overlapping voxels to the segment that comes
	// first in the segment table
	HigherInTableWins Priority = iota

	// LaterInTableWins gives overlapping voxels to the last merged segment
	LaterInTableWins
)

func (p Priority) String() string {
	switch p {
	case HigherInTableWins:
		return config.PriorityHigherInTableWins
	case LaterInTableWins:
		return config.PriorityLaterInTableWins
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority maps a configuration string to a Priority
func ParsePriority(s string) (Priority, error) {
	switch s {
	case config.PriorityHigherInTableWins, "":
		return HigherInTableWins, nil
	case config.PriorityLaterInTableWins:
		return LaterInTableWins, nil
	}
	return HigherInTableWins, fmt.Errorf("unknown priority policy %q", s)
}

// ExtentPolicy selects which voxels of the participating masks define the
// common working extent
type ExtentPolicy int

const (
	// UnionOfSegments uses the allocated extent of every mask
	UnionOfSegments ExtentPolicy = iota

	// UnionOfEffectiveSegments uses the tight extent of the foreground of
	// every mask
	UnionOfEffectiveSegments

	// UnionOfEffectiveSegmentsPadded is UnionOfEffectiveSegments grown by a
	// margin on every side
	UnionOfEffectiveSegmentsPadded
)

func (p ExtentPolicy) String() string {
	switch p {
	case UnionOfSegments:
		return config.ExtentUnionOfSegments
	case UnionOfEffectiveSegments:
		return config.ExtentUnionOfEffectiveSegments
	case UnionOfEffectiveSegmentsPadded:
		return config.ExtentUnionOfEffectiveSegmentsPadded
	default:
		return fmt.Sprintf("ExtentPolicy(%d)", int(p))
	}
}

// ParseExtentPolicy maps a configuration string to an ExtentPolicy
func ParseExtentPolicy(s string) (ExtentPolicy, error) {
	switch s {
	case config.ExtentUnionOfSegments, "":
		return UnionOfSegments, nil
	case config.ExtentUnionOfEffectiveSegments:
		return UnionOfEffectiveSegments, nil
	case config.ExtentUnionOfEffectiveSegmentsPadded:
		return UnionOfEffectiveSegmentsPadded, nil
	}
	return UnionOfSegments, fmt.Errorf("unknown extent policy %q", s)
}

// CommonExtent computes the working extent of a set of same-grid masks under
// the given policy, clamped to reference. The margin only applies to
// UnionOfEffectiveSegmentsPadded. Nil masks are ignored.
func CommonExtent(policy ExtentPolicy, masks []*models.OrientedVolume, reference models.Extent, margin [3]int) (models.Extent, error) {
	extents := make([]models.Extent, 0, len(masks))
	for _, m := range masks {
		if m == nil {
			continue
		}
		switch policy {
		case UnionOfSegments:
			extents = append(extents, m.Extent)
		case UnionOfEffectiveSegments, UnionOfEffectiveSegmentsPadded:
			extents = append(extents, geometry.EffectiveExtent(m))
		default:
			return models.EmptyExtent(), fmt.Errorf("unknown extent policy %v", policy)
		}
	}

	if policy != UnionOfEffectiveSegmentsPadded {
		margin = [3]int{}
	}
	return geometry.ReduceExtent(extents, reference, margin)
}
