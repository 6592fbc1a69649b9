package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"segcomplete/internal/models"
)

func TestPadToExtent(t *testing.T) {
	src := models.NewOrientedVolume(models.NewExtent(2, 3, 2, 3, 2, 3), models.UnsignedChar)
	src.Fill(1)

	out := PadToExtent(src, models.ExtentFromDims(5, 5, 5))
	assert.Equal(t, 8, out.CountNonZero())
	assert.Equal(t, 1.0, out.At(3, 3, 3))
	assert.Equal(t, 0.0, out.At(4, 4, 4))

	cropped := PadToExtent(src, models.ExtentFromDims(3, 3, 3))
	assert.Equal(t, 1, cropped.CountNonZero())
}

func TestResampleSameGridUsesExtents(t *testing.T) {
	reference := models.NewOrientedVolume(models.ExtentFromDims(4, 4, 4), models.Short)
	src := models.NewVolumeLike(reference, models.NewExtent(3, 6, 0, 0, 0, 0), models.UnsignedChar)
	src.Fill(1)

	out, err := Resample(src, reference, false)
	require.NoError(t, err)
	assert.Equal(t, reference.Extent, out.Extent)
	assert.Equal(t, 1, out.CountNonZero())
	assert.Equal(t, models.UnsignedChar, out.ScalarType)

	padded, err := Resample(src, reference, true)
	require.NoError(t, err)
	assert.Equal(t, models.NewExtent(0, 6, 0, 3, 0, 3), padded.Extent)
	assert.Equal(t, 4, padded.CountNonZero())
}

func TestResampleToCoarserGrid(t *testing.T) {
	// 1 mm source fully set inside [4..7]^3
	src := models.NewOrientedVolume(models.ExtentFromDims(12, 12, 12), models.UnsignedChar)
	for k := 4; k <= 7; k++ {
		for j := 4; j <= 7; j++ {
			for i := 4; i <= 7; i++ {
				src.Set(i, j, k, 1)
			}
		}
	}

	// 2 mm reference grid covering the same space
	reference := models.NewOrientedVolume(models.ExtentFromDims(6, 6, 6), models.Short)
	reference.Spacing = [3]float64{2, 2, 2}

	out, err := Resample(src, reference, false)
	require.NoError(t, err)
	// reference voxel n samples source voxel 2n: 4 and 6 are inside along each axis
	assert.Equal(t, 8, out.CountNonZero())
	assert.Equal(t, 1.0, out.At(2, 2, 2))
	assert.Equal(t, 1.0, out.At(3, 3, 3))
	assert.Equal(t, 0.0, out.At(4, 4, 4))
}

func TestResampleWithWorldTransform(t *testing.T) {
	src := models.NewOrientedVolume(models.ExtentFromDims(3, 3, 3), models.UnsignedChar)
	src.Set(0, 0, 0, 1)
	reference := models.NewOrientedVolume(models.ExtentFromDims(6, 3, 3), models.UnsignedChar)

	// the source lives 2 mm further along x in the reference world
	shift := mat.NewDense(4, 4, []float64{
		1, 0, 0, 2,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	out, err := ResampleWithTransform(src, reference, false, shift)
	require.NoError(t, err)
	assert.Equal(t, 1, out.CountNonZero())
	assert.Equal(t, 1.0, out.At(2, 0, 0))
}

func TestResampleRequiresVolumes(t *testing.T) {
	_, err := Resample(nil, models.NewOrientedVolume(models.ExtentFromDims(1, 1, 1), models.Short), false)
	assert.Error(t, err)
}
