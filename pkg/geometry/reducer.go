// Package geometry computes working extents for sets of binary masks and moves
// volumes between voxel grids.
package geometry

import (
	"errors"
	"fmt"

	"segcomplete/internal/models"
)

// ErrEmptyGeometry is returned when a set of masks yields no voxel to work on.
// Callers treat it as a skip condition.
var ErrEmptyGeometry = errors.New("empty geometry")

// ReduceExtent computes the working extent for a set of masks: the axis-wise
// union of all non-empty mask extents, expanded by margin on both sides of
// each axis and clamped to the reference extent.
//
// Which extents are passed in is the caller's policy: allocated mask extents
// for a union of segments, or EffectiveExtent results for a union of
// effective (non-empty) segments.
//
// Returns ErrEmptyGeometry if no extent is non-empty or if the union lies
// completely outside the reference extent.
func ReduceExtent(maskExtents []models.Extent, reference models.Extent, margin [3]int) (models.Extent, error) {
	for a, m := range margin {
		if m < 0 {
			return models.EmptyExtent(), fmt.Errorf("negative margin %d along axis %d", m, a)
		}
	}

	union := models.EmptyExtent()
	for _, e := range maskExtents {
		union = union.Union(e)
	}
	if union.IsEmpty() {
		return models.EmptyExtent(), fmt.Errorf("%w: no non-empty mask", ErrEmptyGeometry)
	}

	reduced := union.Expand(margin).Intersect(reference)
	if reduced.IsEmpty() {
		return models.EmptyExtent(), fmt.Errorf("%w: masks %v lie outside reference %v", ErrEmptyGeometry, union, reference)
	}
	return reduced, nil
}

// EffectiveExtent returns the tight bounding extent of the non-zero voxels of
// a volume, or the empty extent if there are none.
func EffectiveExtent(v *models.OrientedVolume) models.Extent {
	if v == nil || v.Extent.IsEmpty() {
		return models.EmptyExtent()
	}
	e := models.Extent{
		v.Extent[1] + 1, v.Extent[0] - 1,
		v.Extent[3] + 1, v.Extent[2] - 1,
		v.Extent[5] + 1, v.Extent[4] - 1,
	}
	found := false
	for idx, x := range v.Data {
		if x == 0 {
			continue
		}
		found = true
		i, j, k := v.IJK(idx)
		e[0], e[1] = min(e[0], i), max(e[1], i)
		e[2], e[3] = min(e[2], j), max(e[3], j)
		e[4], e[5] = min(e[4], k), max(e[5], k)
	}
	if !found {
		return models.EmptyExtent()
	}
	return e
}

// PhysicalBounds returns the physical size of an extent along each index
// axis, measured across the outer faces of its edge voxels.
func PhysicalBounds(v *models.OrientedVolume, e models.Extent) [3]float64 {
	var size [3]float64
	if e.IsEmpty() {
		return size
	}
	for a := 0; a < 3; a++ {
		size[a] = float64(e.Max(a)-e.Min(a)+1) * v.Spacing[a]
	}
	return size
}
