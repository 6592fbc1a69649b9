package models

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ScalarType tags the value range a volume's voxels are stored in.
// Voxel values are always held as float64 but are rounded and clamped
// to the tagged range whenever they are written.
type ScalarType int

const (
	// UnsignedChar is used for binary masks and small label volumes
	UnsignedChar ScalarType = iota

	// Short is used for merged labelmaps and intensity volumes
	Short

	// Double stores values unchanged
	Double
)

func (t ScalarType) String() string {
	switch t {
	case UnsignedChar:
		return "unsigned char"
	case Short:
		return "short"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("ScalarType(%d)", int(t))
	}
}

// Clamp rounds and clamps v to the range representable by the scalar type
func (t ScalarType) Clamp(v float64) float64 {
	switch t {
	case UnsignedChar:
		return math.Max(0, math.Min(255, math.Round(v)))
	case Short:
		return math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v)))
	default:
		return v
	}
}

// OrientedVolume is an axis-aligned voxel buffer placed in world space by an
// image-to-world affine transform.
//
// Voxel (i, j, k) is addressed with absolute indices inside Extent, and its
// centre lies at
//
//	world = Directions * (Spacing ⊙ (i, j, k)) + Origin
//
// Two volumes that share Origin, Spacing and Directions lie on the same voxel
// grid and differ only in the part of the grid they cover (their Extent).
type OrientedVolume struct {
	// Extent is the covered index range [iMin, iMax, jMin, jMax, kMin, kMax]
	Extent Extent

	// Spacing is the physical size of a voxel along each index axis in mm
	Spacing [3]float64

	// Origin is the world position of index (0, 0, 0)
	Origin [3]float64

	// Directions holds the unit direction of index axis c in column c
	Directions [3][3]float64

	// ScalarType controls rounding and clamping on Set
	ScalarType ScalarType

	// Data holds the voxel values with i varying fastest
	Data []float64
}

// IdentityDirections returns the axis-aligned direction matrix
func IdentityDirections() [3][3]float64 {
	return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// NewOrientedVolume allocates a zero-filled volume with unit spacing, zero
// origin and identity directions.
func NewOrientedVolume(extent Extent, scalarType ScalarType) *OrientedVolume {
	v := &OrientedVolume{
		Extent:     extent,
		Spacing:    [3]float64{1, 1, 1},
		Directions: IdentityDirections(),
		ScalarType: scalarType,
	}
	v.Data = make([]float64, extent.NumVoxels())
	return v
}

// NewVolumeLike allocates a zero-filled volume on the same grid as geometry
// covering the given extent.
func NewVolumeLike(geometry *OrientedVolume, extent Extent, scalarType ScalarType) *OrientedVolume {
	v := NewOrientedVolume(extent, scalarType)
	v.CopyGeometry(geometry)
	return v
}

// CopyGeometry copies spacing, origin and directions (not extent or data)
func (v *OrientedVolume) CopyGeometry(from *OrientedVolume) {
	v.Spacing = from.Spacing
	v.Origin = from.Origin
	v.Directions = from.Directions
}

// Clone returns a deep copy of the volume
func (v *OrientedVolume) Clone() *OrientedVolume {
	c := *v
	c.Data = make([]float64, len(v.Data))
	copy(c.Data, v.Data)
	return &c
}

// Dims returns the number of voxels along each axis
func (v *OrientedVolume) Dims() [3]int {
	return v.Extent.Dims()
}

// Contains reports whether the absolute index lies inside the extent
func (v *OrientedVolume) Contains(i, j, k int) bool {
	return v.Extent.Contains(i, j, k)
}

// Index returns the offset of (i, j, k) in Data. The index must be inside the extent.
func (v *OrientedVolume) Index(i, j, k int) int {
	d := v.Extent.Dims()
	return (k-v.Extent[4])*d[0]*d[1] + (j-v.Extent[2])*d[0] + (i - v.Extent[0])
}

// IJK converts a Data offset back into absolute indices
func (v *OrientedVolume) IJK(idx int) (int, int, int) {
	d := v.Extent.Dims()
	plane := d[0] * d[1]
	k := idx / plane
	rem := idx - k*plane
	j := rem / d[0]
	i := rem - j*d[0]
	return i + v.Extent[0], j + v.Extent[2], k + v.Extent[4]
}

// At returns the voxel value, or 0 outside the extent
func (v *OrientedVolume) At(i, j, k int) float64 {
	if !v.Extent.Contains(i, j, k) {
		return 0
	}
	return v.Data[v.Index(i, j, k)]
}

// Set writes a voxel value clamped to the scalar type. Writes outside the
// extent are ignored.
func (v *OrientedVolume) Set(i, j, k int, value float64) {
	if !v.Extent.Contains(i, j, k) {
		return
	}
	v.Data[v.Index(i, j, k)] = v.ScalarType.Clamp(value)
}

// Fill sets every voxel to value
func (v *OrientedVolume) Fill(value float64) {
	value = v.ScalarType.Clamp(value)
	for i := range v.Data {
		v.Data[i] = value
	}
}

// CountNonZero returns the number of voxels with a non-zero value
func (v *OrientedVolume) CountNonZero() int {
	n := 0
	for _, x := range v.Data {
		if x != 0 {
			n++
		}
	}
	return n
}

// HasForeground reports whether any voxel is non-zero
func (v *OrientedVolume) HasForeground() bool {
	if v == nil {
		return false
	}
	for _, x := range v.Data {
		if x != 0 {
			return true
		}
	}
	return false
}

// VoxelVolume returns the physical volume of one voxel in mm3
func (v *OrientedVolume) VoxelVolume() float64 {
	return v.Spacing[0] * v.Spacing[1] * v.Spacing[2]
}

// ImageToWorld returns the 4x4 homogeneous index-to-world matrix
func (v *OrientedVolume) ImageToWorld() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, v.Directions[r][c]*v.Spacing[c])
		}
		m.Set(r, 3, v.Origin[r])
	}
	m.Set(3, 3, 1)
	return m
}

// WorldToImage returns the inverse of ImageToWorld
func (v *OrientedVolume) WorldToImage() (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(v.ImageToWorld()); err != nil {
		return nil, fmt.Errorf("image-to-world matrix is singular: %w", err)
	}
	return &inv, nil
}

// IndexToWorld maps a continuous index position to world coordinates
func (v *OrientedVolume) IndexToWorld(i, j, k float64) [3]float64 {
	idx := [3]float64{i * v.Spacing[0], j * v.Spacing[1], k * v.Spacing[2]}
	var w [3]float64
	for r := 0; r < 3; r++ {
		w[r] = v.Origin[r]
		for c := 0; c < 3; c++ {
			w[r] += v.Directions[r][c] * idx[c]
		}
	}
	return w
}

// SameGrid reports whether both volumes share origin, spacing and directions
// within tol. Volumes on the same grid can be combined voxel by voxel using
// absolute indices.
func (v *OrientedVolume) SameGrid(o *OrientedVolume, tol float64) bool {
	for a := 0; a < 3; a++ {
		if math.Abs(v.Spacing[a]-o.Spacing[a]) > tol || math.Abs(v.Origin[a]-o.Origin[a]) > tol {
			return false
		}
		for b := 0; b < 3; b++ {
			if math.Abs(v.Directions[a][b]-o.Directions[a][b]) > tol {
				return false
			}
		}
	}
	return true
}

// Labels returns the distinct non-zero values present in the volume in
// ascending order.
func (v *OrientedVolume) Labels() []int {
	seen := make(map[int]bool)
	for _, x := range v.Data {
		if x != 0 {
			seen[int(x)] = true
		}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}
