package completion

import (
	"fmt"
	"math"
	"sort"

	"segcomplete/internal/models"
)

// Interpolator fills the empty slices between labelled slices along one axis.
//
// Slices holding any label are kept as they are. Every label is interpolated
// on its own between the slices that hold it: its 2D regions on two
// consecutive such slices are paired by overlap, and every pair is blended
// through signed distance fields weighted by slice position. A region with
// no partner shrinks toward its deepest point and is gone half way across
// the gap. Where several labels claim a pixel, the one with the smallest
// blended distance wins, the lower label on a tie. Outside the first and
// last slice of a label nothing of it is added.
type Interpolator struct{}

// Name returns the method tag
func (it *Interpolator) Name() string { return MorphologicalSliceInterpolation.String() }

// MinimumSeedLabels returns 1: a single label can be interpolated
func (it *Interpolator) MinimumSeedLabels() int { return 1 }

// Complete interpolates merged along params.SliceAxis, or along the axis with
// the most empty slices between labelled ones when SliceAxis is -1
func (it *Interpolator) Complete(merged, _ *models.OrientedVolume, params Params) (*models.OrientedVolume, error) {
	axis := params.SliceAxis
	if axis < -1 || axis > 2 {
		return nil, fmt.Errorf("invalid slice axis %d", axis)
	}
	if axis == -1 {
		axis = SelectSliceAxis(merged)
	}

	out := merged.Clone()
	out.ScalarType = models.Short

	fixed := make(map[int]bool)
	for _, s := range labelledSlices(merged, axis) {
		fixed[s] = true
	}

	// claims collects the winning label per pixel of every filled slice
	claims := make(map[int]*sliceClaims)
	perLabel := slicesPerLabel(merged, axis)
	for _, l := range sortedKeys(perLabel) {
		known := perLabel[l]
		for n := 0; n+1 < len(known); n++ {
			s0, s1 := known[n], known[n+1]
			if s1-s0 < 2 {
				continue
			}
			it.fillGap(merged, axis, l, s0, s1, fixed, claims)
		}
	}
	log.Debugf("interpolated %d labels along axis %d into %d slices", len(perLabel), axis, len(claims))

	target := newPlane(merged, axis)
	for s, c := range claims {
		copy(target.labels, c.labels)
		target.write(out, s)
	}
	return out, nil
}

// SelectSliceAxis returns the axis with the most empty slices between its
// first and last labelled slice. Ties prefer k, then j, then i.
func SelectSliceAxis(v *models.OrientedVolume) int {
	best, bestGaps := 2, -1
	for _, axis := range []int{2, 1, 0} {
		known := labelledSlices(v, axis)
		gaps := 0
		if len(known) > 0 {
			gaps = known[len(known)-1] - known[0] + 1 - len(known)
		}
		if gaps > bestGaps {
			best, bestGaps = axis, gaps
		}
	}
	return best
}

// labelledSlices returns the absolute indices of slices along axis that hold
// at least one non-zero voxel, in increasing order
func labelledSlices(v *models.OrientedVolume, axis int) []int {
	d := v.Dims()
	hit := make([]bool, d[axis])
	for idx, x := range v.Data {
		if x == 0 {
			continue
		}
		i, j, k := v.IJK(idx)
		ijk := [3]int{i, j, k}
		hit[ijk[axis]-v.Extent.Min(axis)] = true
	}
	var known []int
	for s, h := range hit {
		if h {
			known = append(known, s+v.Extent.Min(axis))
		}
	}
	return known
}

// slicesPerLabel returns, for every label, the absolute indices of the
// slices along axis that hold it, in increasing order
func slicesPerLabel(v *models.OrientedVolume, axis int) map[int][]int {
	hits := make(map[int]map[int]bool)
	for idx, x := range v.Data {
		if x == 0 {
			continue
		}
		i, j, k := v.IJK(idx)
		l := int(x)
		if hits[l] == nil {
			hits[l] = make(map[int]bool)
		}
		hits[l][[3]int{i, j, k}[axis]] = true
	}
	out := make(map[int][]int, len(hits))
	for l, set := range hits {
		out[l] = sortedKeys(set)
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// regionField is the blending source for one group of matched regions
type regionField struct {
	from, to []float64
}

// sliceClaims holds the best label per pixel of one filled slice and its
// blended distance
type sliceClaims struct {
	labels []int
	phi    []float64
}

// fillGap interpolates label l between its slices s0 and s1 and records the
// pixels it claims on every slice in between that holds no label
func (it *Interpolator) fillGap(merged *models.OrientedVolume, axis, l, s0, s1 int, fixed map[int]bool, claims map[int]*sliceClaims) {
	a := newPlane(merged, axis)
	a.read(merged, s0)
	b := newPlane(merged, axis)
	b.read(merged, s1)
	fields := matchRegions(a, b, l)

	// blends this close to zero count as boundary, not inside
	eps := 1e-9 * math.Min(a.su, a.sv)

	span := float64(s1 - s0)
	for s := s0 + 1; s < s1; s++ {
		if fixed[s] {
			continue
		}
		// both weights are exact ratios so mirrored gaps blend identically
		w0, w1 := float64(s1-s)/span, float64(s-s0)/span

		c := claims[s]
		for px := range a.labels {
			phi := 0.0
			for n, f := range fields {
				blended := w0*f.from[px] + w1*f.to[px]
				if n == 0 || blended < phi {
					phi = blended
				}
			}
			if phi >= -eps {
				continue
			}
			if c == nil {
				c = &sliceClaims{labels: make([]int, len(a.labels)), phi: make([]float64, len(a.labels))}
				claims[s] = c
			}
			// labels arrive in increasing order, so a tie keeps the lower one
			if c.labels[px] == 0 || phi < c.phi[px] {
				c.labels[px], c.phi[px] = l, phi
			}
		}
	}
}

// matchRegions pairs the 4-connected regions of label l on a and b by overlap
// and returns one blending field per group of connected pairs
func matchRegions(a, b *plane, l int) []regionField {
	compA, nA := a.components(l)
	compB, nB := b.components(l)

	// nodes 0..nA-1 are regions of a, nA..nA+nB-1 regions of b
	groups := newDisjointSet(nA + nB)
	for px := range compA {
		if compA[px] >= 0 && compB[px] >= 0 {
			groups.union(compA[px], nA+compB[px])
		}
	}

	type group struct{ maskA, maskB []bool }
	byRoot := make(map[int]*group)
	var order []int
	member := func(node int) *group {
		r := groups.find(node)
		g, ok := byRoot[r]
		if !ok {
			g = &group{}
			byRoot[r] = g
			order = append(order, r)
		}
		return g
	}
	for px := range compA {
		if compA[px] >= 0 {
			g := member(compA[px])
			if g.maskA == nil {
				g.maskA = make([]bool, len(compA))
			}
			g.maskA[px] = true
		}
	}
	for px := range compB {
		if compB[px] >= 0 {
			g := member(nA + compB[px])
			if g.maskB == nil {
				g.maskB = make([]bool, len(compB))
			}
			g.maskB[px] = true
		}
	}

	fields := make([]regionField, 0, len(order))
	for _, r := range order {
		g := byRoot[r]
		switch {
		case g.maskA != nil && g.maskB != nil:
			fields = append(fields, regionField{from: a.signedDistance(g.maskA), to: b.signedDistance(g.maskB)})
		case g.maskA != nil:
			from := a.signedDistance(g.maskA)
			fields = append(fields, regionField{from: from, to: constantField(len(from), depth(from))})
		default:
			to := b.signedDistance(g.maskB)
			fields = append(fields, regionField{from: constantField(len(to), depth(to)), to: to})
		}
	}
	return fields
}

func constantField(n int, value float64) []float64 {
	f := make([]float64, n)
	for i := range f {
		f[i] = value
	}
	return f
}

// disjointSet is a union-find forest with path halving
type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	d := &disjointSet{parent: make([]int, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

func (d *disjointSet) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

func (d *disjointSet) union(x, y int) {
	rx, ry := d.find(x), d.find(y)
	if rx == ry {
		return
	}
	if rx < ry {
		d.parent[ry] = rx
	} else {
		d.parent[rx] = ry
	}
}
