package labelmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segcomplete/internal/models"
	"segcomplete/pkg/geometry"
)

// box returns a 0/1 mask over extent with the sub-box [lo, hi] set
func box(extent models.Extent, lo, hi [3]int) *models.OrientedVolume {
	m := models.NewOrientedVolume(extent, models.UnsignedChar)
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				m.Set(i, j, k, 1)
			}
		}
	}
	return m
}

func overlappingPair() (a, b *models.OrientedVolume) {
	grid := models.ExtentFromDims(10, 10, 10)
	a = box(grid, [3]int{0, 0, 0}, [3]int{5, 5, 5})
	b = box(grid, [3]int{4, 4, 4}, [3]int{9, 9, 9})
	return a, b
}

func TestMergePriorityHigherInTableWins(t *testing.T) {
	a, b := overlappingPair()
	opts := MergeOptions{Geometry: a, Extent: a.Extent, Priority: HigherInTableWins}

	merged, assignment, err := Merge([]Input{{ID: "A", Mask: a}, {ID: "B", Mask: b}}, opts)
	require.NoError(t, err)
	assert.Equal(t, LabelAssignment{"A": 1, "B": 2}, assignment)
	assert.Equal(t, models.Short, merged.ScalarType)

	// the 2x2x2 overlap belongs to A
	assert.Equal(t, 1.0, merged.At(4, 4, 4))
	assert.Equal(t, 1.0, merged.At(5, 5, 5))
	assert.Equal(t, 2.0, merged.At(6, 6, 6))

	// swapping the table order swaps the winner
	merged, assignment, err = Merge([]Input{{ID: "B", Mask: b}, {ID: "A", Mask: a}}, opts)
	require.NoError(t, err)
	assert.Equal(t, assignment["B"], int(merged.At(4, 4, 4)))
	assert.Equal(t, assignment["A"], int(merged.At(3, 3, 3)))
}

func TestMergePriorityLaterInTableWins(t *testing.T) {
	a, b := overlappingPair()
	opts := MergeOptions{Geometry: a, Extent: a.Extent, Priority: LaterInTableWins}

	merged, _, err := Merge([]Input{{ID: "A", Mask: a}, {ID: "B", Mask: b}}, opts)
	require.NoError(t, err)
	assert.Equal(t, 2.0, merged.At(4, 4, 4))
	assert.Equal(t, 1.0, merged.At(3, 3, 3))
}

func TestMergeNonOverlappingIsOrderIndependent(t *testing.T) {
	grid := models.ExtentFromDims(8, 8, 8)
	a := box(grid, [3]int{0, 0, 0}, [3]int{2, 2, 2})
	b := box(grid, [3]int{5, 5, 5}, [3]int{7, 7, 7})

	for _, p := range []Priority{HigherInTableWins, LaterInTableWins} {
		opts := MergeOptions{Geometry: a, Extent: grid, Priority: p}
		ab, assignAB, err := Merge([]Input{{ID: "A", Mask: a}, {ID: "B", Mask: b}}, opts)
		require.NoError(t, err)
		ba, assignBA, err := Merge([]Input{{ID: "B", Mask: b}, {ID: "A", Mask: a}}, opts)
		require.NoError(t, err)

		for idx := range ab.Data {
			idAB, _ := assignAB.SegmentForLabel(int(ab.Data[idx]))
			idBA, _ := assignBA.SegmentForLabel(int(ba.Data[idx]))
			require.Equal(t, idAB, idBA, "voxel %d", idx)
		}
	}
}

func TestMergeSkipsEmptyMasksButKeepsLabels(t *testing.T) {
	grid := models.ExtentFromDims(4, 4, 4)
	a := box(grid, [3]int{1, 1, 1}, [3]int{2, 2, 2})

	merged, assignment, err := Merge([]Input{
		{ID: "empty", Mask: models.NewOrientedVolume(grid, models.UnsignedChar)},
		{ID: "nil"},
		{ID: "A", Mask: a},
	}, MergeOptions{Geometry: a, Extent: grid})
	require.NoError(t, err)
	assert.Equal(t, 3, assignment["A"])
	assert.Equal(t, []int{3}, merged.Labels())

	masks := Split(merged, assignment)
	assert.Len(t, masks, 3)
	assert.Equal(t, 0, masks["nil"].CountNonZero())
	assert.Equal(t, 0, masks["empty"].CountNonZero())
	assert.Equal(t, 8, masks["A"].CountNonZero())
}

func TestMergeDimensionMismatch(t *testing.T) {
	grid := models.ExtentFromDims(6, 6, 6)
	a := box(grid, [3]int{0, 0, 0}, [3]int{1, 1, 1})

	shifted := a.Clone()
	shifted.Origin = [3]float64{0.5, 0, 0}
	_, _, err := Merge([]Input{{ID: "A", Mask: shifted}}, MergeOptions{Geometry: a, Extent: grid})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	// foreground outside the output extent
	_, _, err = Merge([]Input{{ID: "A", Mask: a}}, MergeOptions{Geometry: a, Extent: models.NewExtent(2, 5, 2, 5, 2, 5)})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	// a larger allocation is fine as long as the foreground fits
	_, _, err = Merge([]Input{{ID: "A", Mask: a}}, MergeOptions{Geometry: a, Extent: models.NewExtent(0, 2, 0, 2, 0, 2)})
	assert.NoError(t, err)
}

func TestMergeRejectsDuplicateIDsAndEmptyExtent(t *testing.T) {
	grid := models.ExtentFromDims(2, 2, 2)
	a := box(grid, [3]int{0, 0, 0}, [3]int{0, 0, 0})

	_, _, err := Merge([]Input{{ID: "A", Mask: a}, {ID: "A", Mask: a}}, MergeOptions{Geometry: a, Extent: grid})
	assert.True(t, errors.Is(err, models.ErrDuplicateSegment))

	_, _, err = Merge([]Input{{ID: "A", Mask: a}}, MergeOptions{Geometry: a, Extent: models.EmptyExtent()})
	assert.True(t, errors.Is(err, geometry.ErrEmptyGeometry))
}

func TestSplitInvertsMergeWithoutOverlap(t *testing.T) {
	grid := models.ExtentFromDims(10, 10, 10)
	inputs := []Input{
		{ID: "liver", Mask: box(grid, [3]int{0, 0, 0}, [3]int{3, 9, 2})},
		{ID: "kidney", Mask: box(grid, [3]int{5, 0, 0}, [3]int{9, 4, 9})},
		{ID: "spleen", Mask: box(grid, [3]int{5, 6, 3}, [3]int{6, 9, 9})},
	}

	merged, assignment, err := Merge(inputs, MergeOptions{Geometry: inputs[0].Mask, Extent: grid})
	require.NoError(t, err)

	masks := Split(merged, assignment)
	for _, in := range inputs {
		got := masks[in.ID]
		require.NotNil(t, got)
		assert.Equal(t, models.UnsignedChar, got.ScalarType)
		assert.Equal(t, in.Mask.Data, got.Data, in.ID)
	}
	assert.Equal(t, []string{"liver", "kidney", "spleen"}, assignment.SegmentIDs())
}

func TestCommonExtentPolicies(t *testing.T) {
	grid := models.ExtentFromDims(20, 20, 20)
	a := box(grid, [3]int{2, 3, 4}, [3]int{5, 6, 7})
	b := box(models.NewExtent(0, 15, 0, 15, 0, 15), [3]int{10, 10, 10}, [3]int{12, 12, 12})
	masks := []*models.OrientedVolume{a, nil, b}

	e, err := CommonExtent(UnionOfSegments, masks, grid, [3]int{3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, grid, e)

	e, err = CommonExtent(UnionOfEffectiveSegments, masks, grid, [3]int{3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, models.NewExtent(2, 12, 3, 12, 4, 12), e)

	e, err = CommonExtent(UnionOfEffectiveSegmentsPadded, masks, grid, [3]int{3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, models.NewExtent(0, 15, 0, 15, 1, 15), e)

	_, err = CommonExtent(UnionOfEffectiveSegments, []*models.OrientedVolume{models.NewOrientedVolume(grid, models.UnsignedChar)}, grid, [3]int{})
	assert.True(t, errors.Is(err, geometry.ErrEmptyGeometry))
}

func TestParsePolicies(t *testing.T) {
	p, err := ParsePriority("LATER_IN_TABLE_WINS")
	require.NoError(t, err)
	assert.Equal(t, LaterInTableWins, p)
	_, err = ParsePriority("RANDOM")
	assert.Error(t, err)

	e, err := ParseExtentPolicy("UNION_OF_EFFECTIVE_SEGMENTS_PADDED")
	require.NoError(t, err)
	assert.Equal(t, UnionOfEffectiveSegmentsPadded, e)
	assert.Equal(t, "UNION_OF_EFFECTIVE_SEGMENTS_PADDED", e.String())
	_, err = ParseExtentPolicy("NONE")
	assert.Error(t, err)
}
