package models

import "fmt"

// Extent is an inclusive voxel index range [iMin, iMax, jMin, jMax, kMin, kMax].
// An extent with max < min on any axis is empty.
type Extent [6]int

// NewExtent builds an extent from per-axis bounds
func NewExtent(iMin, iMax, jMin, jMax, kMin, kMax int) Extent {
	return Extent{iMin, iMax, jMin, jMax, kMin, kMax}
}

// EmptyExtent returns the canonical empty extent
func EmptyExtent() Extent {
	return Extent{0, -1, 0, -1, 0, -1}
}

// ExtentFromDims returns the extent starting at index 0 with the given size
func ExtentFromDims(nx, ny, nz int) Extent {
	return Extent{0, nx - 1, 0, ny - 1, 0, nz - 1}
}

// IsEmpty reports whether the extent covers no voxel
func (e Extent) IsEmpty() bool {
	return e[1] < e[0] || e[3] < e[2] || e[5] < e[4]
}

// Dims returns the number of voxels along each axis (zero when empty)
func (e Extent) Dims() [3]int {
	if e.IsEmpty() {
		return [3]int{}
	}
	return [3]int{e[1] - e[0] + 1, e[3] - e[2] + 1, e[5] - e[4] + 1}
}

// NumVoxels returns the number of voxels covered
func (e Extent) NumVoxels() int {
	d := e.Dims()
	return d[0] * d[1] * d[2]
}

// Min returns the lower bound along axis a
func (e Extent) Min(a int) int { return e[2*a] }

// Max returns the upper bound along axis a
func (e Extent) Max(a int) int { return e[2*a+1] }

// Contains reports whether the index lies inside the extent
func (e Extent) Contains(i, j, k int) bool {
	return i >= e[0] && i <= e[1] && j >= e[2] && j <= e[3] && k >= e[4] && k <= e[5]
}

// ContainsExtent reports whether o lies completely inside e.
// The empty extent is contained in every extent.
func (e Extent) ContainsExtent(o Extent) bool {
	if o.IsEmpty() {
		return true
	}
	if e.IsEmpty() {
		return false
	}
	for a := 0; a < 3; a++ {
		if o[2*a] < e[2*a] || o[2*a+1] > e[2*a+1] {
			return false
		}
	}
	return true
}

// Union returns the smallest extent containing both. Empty operands are ignored.
func (e Extent) Union(o Extent) Extent {
	if e.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return e
	}
	var u Extent
	for a := 0; a < 3; a++ {
		u[2*a] = min(e[2*a], o[2*a])
		u[2*a+1] = max(e[2*a+1], o[2*a+1])
	}
	return u
}

// Intersect returns the overlap of both extents, which may be empty
func (e Extent) Intersect(o Extent) Extent {
	if e.IsEmpty() || o.IsEmpty() {
		return EmptyExtent()
	}
	var r Extent
	for a := 0; a < 3; a++ {
		r[2*a] = max(e[2*a], o[2*a])
		r[2*a+1] = min(e[2*a+1], o[2*a+1])
	}
	if r.IsEmpty() {
		return EmptyExtent()
	}
	return r
}

// Expand grows the extent by margin voxels on both sides of each axis
func (e Extent) Expand(margin [3]int) Extent {
	if e.IsEmpty() {
		return e
	}
	var r Extent
	for a := 0; a < 3; a++ {
		r[2*a] = e[2*a] - margin[a]
		r[2*a+1] = e[2*a+1] + margin[a]
	}
	return r
}

func (e Extent) String() string {
	if e.IsEmpty() {
		return "[empty]"
	}
	return fmt.Sprintf("[%d..%d, %d..%d, %d..%d]", e[0], e[1], e[2], e[3], e[4], e[5])
}
