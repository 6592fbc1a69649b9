package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"segcomplete/internal/models"
)

// gridTolerance is the largest difference in origin, spacing or direction
// components for which two volumes are treated as sharing one grid.
const gridTolerance = 1e-6

// PadToExtent copies a volume into a new extent on the same grid. Voxels of the
// new extent not covered by src are zero; voxels of src outside it are dropped.
func PadToExtent(src *models.OrientedVolume, extent models.Extent) *models.OrientedVolume {
	out := models.NewVolumeLike(src, extent, src.ScalarType)
	overlap := src.Extent.Intersect(extent)
	if overlap.IsEmpty() {
		return out
	}
	for k := overlap[4]; k <= overlap[5]; k++ {
		for j := overlap[2]; j <= overlap[3]; j++ {
			srcRow := src.Index(overlap[0], j, k)
			dstRow := out.Index(overlap[0], j, k)
			n := overlap[1] - overlap[0] + 1
			copy(out.Data[dstRow:dstRow+n], src.Data[srcRow:srcRow+n])
		}
	}
	return out
}

// Resample maps src onto the voxel grid of reference using nearest-neighbour
// interpolation. The output has src's scalar type and covers reference's
// extent; with pad set it is enlarged to also contain every voxel of src.
// Output voxels whose centre maps outside src are zero.
func Resample(src, reference *models.OrientedVolume, pad bool) (*models.OrientedVolume, error) {
	return ResampleWithTransform(src, reference, pad, nil)
}

// ResampleWithTransform is Resample with an additional 4x4 world transform
// applied from the src world frame to the reference world frame (for
// volumes under different parent transforms). A nil transform is identity.
func ResampleWithTransform(src, reference *models.OrientedVolume, pad bool, srcToReference *mat.Dense) (*models.OrientedVolume, error) {
	if src == nil || reference == nil {
		return nil, fmt.Errorf("resample requires both a source and a reference volume")
	}

	if srcToReference == nil && src.SameGrid(reference, gridTolerance) {
		extent := reference.Extent
		if pad {
			extent = extent.Union(src.Extent)
		}
		return PadToExtent(src, extent), nil
	}

	// refIndex -> world(ref) -> world(src) -> srcIndex
	srcWorldToImage, err := src.WorldToImage()
	if err != nil {
		return nil, err
	}
	refToWorld := reference.ImageToWorld()
	if srcToReference != nil {
		var referenceToSrc mat.Dense
		if err := referenceToSrc.Inverse(srcToReference); err != nil {
			return nil, fmt.Errorf("world transform is singular: %w", err)
		}
		var moved mat.Dense
		moved.Mul(&referenceToSrc, refToWorld)
		refToWorld = &moved
	}
	var refToSrc mat.Dense
	refToSrc.Mul(srcWorldToImage, refToWorld)

	extent := reference.Extent
	if pad {
		var srcToRef mat.Dense
		if err := srcToRef.Inverse(&refToSrc); err != nil {
			return nil, fmt.Errorf("index transform is singular: %w", err)
		}
		extent = extent.Union(mapExtent(src.Extent, &srcToRef))
	}

	out := models.NewVolumeLike(reference, extent, src.ScalarType)
	if extent.IsEmpty() {
		return out, nil
	}

	t := refToSrc.RawMatrix()
	at := func(r, c int) float64 { return t.Data[r*t.Stride+c] }
	for k := extent[4]; k <= extent[5]; k++ {
		for j := extent[2]; j <= extent[3]; j++ {
			for i := extent[0]; i <= extent[1]; i++ {
				fi, fj, fk := float64(i), float64(j), float64(k)
				si := int(math.Round(at(0, 0)*fi + at(0, 1)*fj + at(0, 2)*fk + at(0, 3)))
				sj := int(math.Round(at(1, 0)*fi + at(1, 1)*fj + at(1, 2)*fk + at(1, 3)))
				sk := int(math.Round(at(2, 0)*fi + at(2, 1)*fj + at(2, 2)*fk + at(2, 3)))
				if src.Contains(si, sj, sk) {
					out.Data[out.Index(i, j, k)] = src.Data[src.Index(si, sj, sk)]
				}
			}
		}
	}
	return out, nil
}

// mapExtent returns the smallest extent containing the eight corners of e
// mapped through the 4x4 index transform m.
func mapExtent(e models.Extent, m *mat.Dense) models.Extent {
	if e.IsEmpty() {
		return models.EmptyExtent()
	}
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	corner := mat.NewVecDense(4, nil)
	var mapped mat.VecDense
	for c := 0; c < 8; c++ {
		corner.SetVec(0, float64(e[c&1]))
		corner.SetVec(1, float64(e[2+(c>>1)&1]))
		corner.SetVec(2, float64(e[4+(c>>2)&1]))
		corner.SetVec(3, 1)
		mapped.MulVec(m, corner)
		for a := 0; a < 3; a++ {
			lo[a] = math.Min(lo[a], mapped.AtVec(a))
			hi[a] = math.Max(hi[a], mapped.AtVec(a))
		}
	}
	return models.Extent{
		int(math.Floor(lo[0] + 0.5)), int(math.Ceil(hi[0] - 0.5)),
		int(math.Floor(lo[1] + 0.5)), int(math.Ceil(hi[1] - 0.5)),
		int(math.Floor(lo[2] + 0.5)), int(math.Ceil(hi[2] - 0.5)),
	}
}
