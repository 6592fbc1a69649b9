package completion

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"segcomplete/internal/models"
)

// plane is one slice of a label volume perpendicular to an index axis.
// Pixel (u, v) is stored at v*nu+u; u and v run along the two remaining
// axes in increasing axis order.
type plane struct {
	axis   int
	nu, nv int
	su, sv float64
	labels []int
}

// inPlaneAxes returns the two index axes spanning a slice perpendicular to axis
func inPlaneAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func newPlane(v *models.OrientedVolume, axis int) *plane {
	ua, va := inPlaneAxes(axis)
	d := v.Dims()
	p := &plane{
		axis: axis,
		nu:   d[ua],
		nv:   d[va],
		su:   v.Spacing[ua],
		sv:   v.Spacing[va],
	}
	p.labels = make([]int, p.nu*p.nv)
	return p
}

// voxel maps pixel (u, v) of slice s to absolute volume indices
func (p *plane) voxel(vol *models.OrientedVolume, s, u, v int) (int, int, int) {
	ua, va := inPlaneAxes(p.axis)
	var ijk [3]int
	ijk[p.axis] = s
	ijk[ua] = vol.Extent.Min(ua) + u
	ijk[va] = vol.Extent.Min(va) + v
	return ijk[0], ijk[1], ijk[2]
}

// read fills the plane from slice s of vol
func (p *plane) read(vol *models.OrientedVolume, s int) {
	for v := 0; v < p.nv; v++ {
		for u := 0; u < p.nu; u++ {
			i, j, k := p.voxel(vol, s, u, v)
			p.labels[v*p.nu+u] = int(vol.At(i, j, k))
		}
	}
}

// write stores the plane into slice s of vol
func (p *plane) write(vol *models.OrientedVolume, s int) {
	for v := 0; v < p.nv; v++ {
		for u := 0; u < p.nu; u++ {
			i, j, k := p.voxel(vol, s, u, v)
			vol.Set(i, j, k, float64(p.labels[v*p.nu+u]))
		}
	}
}

// components labels the 4-connected regions of label l. comp holds the
// component number of every pixel or -1, n is the number of components.
func (p *plane) components(l int) (comp []int, n int) {
	comp = make([]int, len(p.labels))
	for i := range comp {
		comp[i] = -1
	}
	var stack []int
	for start, x := range p.labels {
		if x != l || comp[start] >= 0 {
			continue
		}
		comp[start] = n
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			px := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			u, v := px%p.nu, px/p.nu
			for _, nb := range [4][2]int{{u - 1, v}, {u + 1, v}, {u, v - 1}, {u, v + 1}} {
				if nb[0] < 0 || nb[0] >= p.nu || nb[1] < 0 || nb[1] >= p.nv {
					continue
				}
				q := nb[1]*p.nu + nb[0]
				if p.labels[q] == l && comp[q] < 0 {
					comp[q] = n
					stack = append(stack, q)
				}
			}
		}
		n++
	}
	return comp, n
}

// signedDistance returns, for every pixel, the physical distance to the
// nearest pixel outside the mask (negated, for pixels inside) or to the
// nearest pixel inside the mask (for pixels outside). A mask that fills the
// whole plane gets the plane diagonal as its interior depth.
func (p *plane) signedDistance(mask []bool) []float64 {
	var inside, outside Points2D
	for px, in := range mask {
		pt := Point2D{U: float64(px%p.nu) * p.su, V: float64(px/p.nu) * p.sv}
		if in {
			inside = append(inside, pt)
		} else {
			outside = append(outside, pt)
		}
	}

	diagonal := math.Hypot(float64(p.nu)*p.su, float64(p.nv)*p.sv)
	var insideTree, outsideTree *kdtree.Tree
	if len(inside) > 0 {
		insideTree = kdtree.New(inside, false)
	}
	if len(outside) > 0 {
		outsideTree = kdtree.New(outside, false)
	}

	phi := make([]float64, len(mask))
	for px, in := range mask {
		pt := Point2D{U: float64(px%p.nu) * p.su, V: float64(px/p.nu) * p.sv}
		switch {
		case in && outsideTree == nil:
			phi[px] = -diagonal
		case in:
			_, d2 := outsideTree.Nearest(pt)
			phi[px] = -math.Sqrt(d2)
		case insideTree == nil:
			phi[px] = diagonal
		default:
			_, d2 := insideTree.Nearest(pt)
			phi[px] = math.Sqrt(d2)
		}
	}
	return phi
}

// depth returns the largest interior distance of a signed distance field
func depth(phi []float64) float64 {
	d := 0.0
	for _, x := range phi {
		if -x > d {
			d = -x
		}
	}
	return d
}
