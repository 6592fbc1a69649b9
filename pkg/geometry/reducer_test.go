package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segcomplete/internal/models"
)

func TestReduceExtentUnionMarginAndClamp(t *testing.T) {
	reference := models.ExtentFromDims(20, 20, 10)
	masks := []models.Extent{
		models.NewExtent(2, 5, 3, 4, 0, 1),
		models.EmptyExtent(),
		models.NewExtent(10, 19, 1, 2, 4, 6),
	}

	got, err := ReduceExtent(masks, reference, [3]int{2, 2, 2})
	require.NoError(t, err)

	// union is [2..19, 1..4, 0..6]; margin pushes i to 21 and k to -2, both clamped
	assert.Equal(t, models.NewExtent(0, 19, 0, 6, 0, 8), got)
}

func TestReduceExtentContainment(t *testing.T) {
	reference := models.NewExtent(-5, 5, -5, 5, -5, 5)
	cases := [][]models.Extent{
		{models.NewExtent(-5, -5, 0, 0, 0, 0)},
		{models.NewExtent(-3, 2, -1, 4, 0, 5), models.NewExtent(0, 1, 0, 1, -5, -4)},
		{models.NewExtent(4, 8, 4, 8, 4, 8)},
	}
	for _, masks := range cases {
		for _, margin := range [][3]int{{0, 0, 0}, {1, 2, 3}, {10, 10, 10}} {
			got, err := ReduceExtent(masks, reference, margin)
			require.NoError(t, err)
			assert.True(t, reference.ContainsExtent(got), "result %v escapes reference", got)

			union := models.EmptyExtent()
			for _, m := range masks {
				union = union.Union(m)
			}
			assert.True(t, got.ContainsExtent(union.Intersect(reference)), "result %v misses %v", got, union)
		}
	}
}

func TestReduceExtentEmptyGeometry(t *testing.T) {
	reference := models.ExtentFromDims(10, 10, 10)

	_, err := ReduceExtent(nil, reference, [3]int{})
	assert.True(t, errors.Is(err, ErrEmptyGeometry))

	_, err = ReduceExtent([]models.Extent{models.EmptyExtent()}, reference, [3]int{1, 1, 1})
	assert.True(t, errors.Is(err, ErrEmptyGeometry))

	_, err = ReduceExtent([]models.Extent{models.NewExtent(20, 25, 0, 1, 0, 1)}, reference, [3]int{})
	assert.True(t, errors.Is(err, ErrEmptyGeometry))
}

func TestReduceExtentIsDeterministic(t *testing.T) {
	reference := models.ExtentFromDims(30, 30, 30)
	masks := []models.Extent{models.NewExtent(3, 9, 4, 4, 10, 12), models.NewExtent(1, 2, 20, 21, 0, 0)}
	first, err := ReduceExtent(masks, reference, [3]int{1, 0, 1})
	require.NoError(t, err)
	for n := 0; n < 5; n++ {
		again, err := ReduceExtent(masks, reference, [3]int{1, 0, 1})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEffectiveExtent(t *testing.T) {
	v := models.NewOrientedVolume(models.NewExtent(-2, 7, 0, 9, 3, 8), models.UnsignedChar)
	assert.True(t, EffectiveExtent(v).IsEmpty())
	assert.True(t, EffectiveExtent(nil).IsEmpty())

	v.Set(-1, 4, 5, 1)
	v.Set(3, 2, 7, 1)
	assert.Equal(t, models.NewExtent(-1, 3, 2, 4, 5, 7), EffectiveExtent(v))

	size := PhysicalBounds(v, EffectiveExtent(v))
	assert.Equal(t, [3]float64{5, 3, 3}, size)
}
