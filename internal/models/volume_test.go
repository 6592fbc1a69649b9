package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtentOperations(t *testing.T) {
	a := NewExtent(0, 4, 0, 4, 0, 4)
	b := NewExtent(3, 9, -2, 1, 2, 2)

	assert.Equal(t, NewExtent(0, 9, -2, 4, 0, 4), a.Union(b))
	assert.Equal(t, NewExtent(3, 4, 0, 1, 2, 2), a.Intersect(b))
	assert.Equal(t, [3]int{5, 5, 5}, a.Dims())
	assert.Equal(t, 125, a.NumVoxels())
	assert.Equal(t, NewExtent(-1, 5, -2, 6, 0, 4), a.Expand([3]int{1, 2, 0}))

	assert.True(t, EmptyExtent().IsEmpty())
	assert.Equal(t, 0, EmptyExtent().NumVoxels())
	assert.Equal(t, a, a.Union(EmptyExtent()))
	assert.True(t, a.Intersect(NewExtent(10, 12, 0, 0, 0, 0)).IsEmpty())
	assert.True(t, a.ContainsExtent(NewExtent(1, 2, 1, 2, 1, 2)))
	assert.False(t, a.ContainsExtent(b))
	assert.True(t, a.ContainsExtent(EmptyExtent()))
}

func TestVolumeIndexing(t *testing.T) {
	v := NewOrientedVolume(NewExtent(2, 5, -1, 1, 10, 11), Short)
	require.Len(t, v.Data, 4*3*2)

	v.Set(3, 0, 11, 7)
	assert.Equal(t, 7.0, v.At(3, 0, 11))
	i, j, k := v.IJK(v.Index(3, 0, 11))
	assert.Equal(t, [3]int{3, 0, 11}, [3]int{i, j, k})

	// writes and reads outside the extent are ignored
	v.Set(0, 0, 0, 9)
	assert.Equal(t, 0.0, v.At(0, 0, 0))
	assert.Equal(t, 1, v.CountNonZero())
}

func TestScalarTypeClamp(t *testing.T) {
	assert.Equal(t, 255.0, UnsignedChar.Clamp(300))
	assert.Equal(t, 0.0, UnsignedChar.Clamp(-4))
	assert.Equal(t, 3.0, UnsignedChar.Clamp(2.6))
	assert.Equal(t, float64(math.MaxInt16), Short.Clamp(1e6))
	assert.Equal(t, float64(math.MinInt16), Short.Clamp(-1e6))
	assert.Equal(t, 2.25, Double.Clamp(2.25))
}

func TestImageToWorldRoundTrip(t *testing.T) {
	v := NewOrientedVolume(ExtentFromDims(4, 4, 4), UnsignedChar)
	v.Spacing = [3]float64{0.5, 2, 3}
	v.Origin = [3]float64{10, -5, 1}
	v.Directions = [3][3]float64{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}

	w := v.IndexToWorld(1, 2, 3)
	assert.InDelta(t, 10-4.0, w[0], 1e-12)
	assert.InDelta(t, -5+0.5, w[1], 1e-12)
	assert.InDelta(t, 1+9.0, w[2], 1e-12)

	inv, err := v.WorldToImage()
	require.NoError(t, err)
	ijk := [3]float64{}
	for r := 0; r < 3; r++ {
		ijk[r] = inv.At(r, 0)*w[0] + inv.At(r, 1)*w[1] + inv.At(r, 2)*w[2] + inv.At(r, 3)
	}
	assert.InDelta(t, 1, ijk[0], 1e-9)
	assert.InDelta(t, 2, ijk[1], 1e-9)
	assert.InDelta(t, 3, ijk[2], 1e-9)
}

func TestSameGridAndLabels(t *testing.T) {
	a := NewOrientedVolume(ExtentFromDims(3, 3, 3), Short)
	b := NewVolumeLike(a, NewExtent(1, 2, 1, 2, 1, 2), UnsignedChar)
	assert.True(t, a.SameGrid(b, 1e-6))

	b.Origin[0] = 0.5
	assert.False(t, a.SameGrid(b, 1e-6))

	a.Set(0, 0, 0, 3)
	a.Set(1, 1, 1, 1)
	a.Set(2, 2, 2, 3)
	assert.Equal(t, []int{1, 3}, a.Labels())
}

func TestSegmentationTable(t *testing.T) {
	s := NewSegmentation()
	require.NoError(t, s.AddSegment(NewSegment("Test", "first")))
	require.NoError(t, s.AddSegment(NewSegment(s.GenerateUniqueSegmentID("Test"), "second")))
	hidden := NewSegment(s.GenerateUniqueSegmentID("Test"), "third")
	hidden.Visible = false
	require.NoError(t, s.AddSegment(hidden))

	assert.Equal(t, []string{"Test", "Test_1", "Test_2"}, s.SegmentIDs())
	assert.Equal(t, []string{"Test", "Test_1"}, s.VisibleSegmentIDs())

	err := s.AddSegment(NewSegment("Test", "dup"))
	assert.True(t, errors.Is(err, ErrDuplicateSegment))

	err = s.SetBinaryLabelmap("missing", nil)
	assert.True(t, errors.Is(err, ErrSegmentNotFound))

	require.NoError(t, s.RemoveSegment("Test_1"))
	assert.Equal(t, []string{"Test", "Test_2"}, s.SegmentIDs())
	assert.False(t, s.ContainsClosedSurface())
}
