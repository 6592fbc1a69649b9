package completion

import (
	"container/heap"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"segcomplete/internal/models"
	"segcomplete/pkg/geometry"
)

// minimumSigma keeps the cost finite on constant intensity volumes
const minimumSigma = 1e-6

// GrowCutter lets every seeded label compete for the unlabelled voxels.
//
// The reference intensities are resampled onto the merged grid, cast to
// Short and smoothed with a box footprint derived from ObjectSize. Labels
// then spread over the 6-neighbourhood along cheapest paths, where a step of
// physical length h into voxel q costs
//
//	h * (1 + CNR * (|I(q) - I(p)| + |I(q) - mean(label)|) / sigma)
//
// discounted by (1 - PriorStrength) when Prior already gives q that label.
// Seed voxels keep their label and every voxel ends up with one.
type GrowCutter struct{}

// Name returns the method tag
func (g *GrowCutter) Name() string { return GrowCut.String() }

// MinimumSeedLabels returns 2: a single label has nothing to compete with
func (g *GrowCutter) MinimumSeedLabels() int { return 2 }

// Complete runs the competition on the merged extent
func (g *GrowCutter) Complete(merged, reference *models.OrientedVolume, params Params) (*models.OrientedVolume, error) {
	if reference == nil {
		return nil, ErrMissingReference
	}
	if params.ContrastNoiseRatio < 0 {
		return nil, fmt.Errorf("contrast/noise ratio must be non-negative, got %g", params.ContrastNoiseRatio)
	}
	if params.PriorStrength < 0 || params.PriorStrength >= 1 {
		return nil, fmt.Errorf("prior strength must be in [0, 1), got %g", params.PriorStrength)
	}

	intensity, err := geometry.Resample(reference, merged, false)
	if err != nil {
		return nil, fmt.Errorf("resampling reference: %w", err)
	}
	intensity.ScalarType = models.Short
	for i, v := range intensity.Data {
		intensity.Data[i] = models.Short.Clamp(v)
	}

	radius := FootprintRadius(params.ObjectSize, merged.VoxelVolume())
	smoothed := boxSmooth(intensity.Data, merged.Dims(), radius)

	sigma := stat.StdDev(smoothed, nil)
	if math.IsNaN(sigma) || sigma < minimumSigma {
		sigma = minimumSigma
	}
	means := labelMeans(merged, smoothed)
	log.Debugf("grow-cut footprint radius %d, sigma %.3f, label means %v", radius, sigma, means)

	out := models.NewVolumeLike(merged, merged.Extent, models.Short)
	g.propagate(merged, out, smoothed, means, sigma, params)
	return out, nil
}

// FootprintRadius derives the smoothing radius in voxels from the expected
// object size: kernel = round(cbrt(round(objectSize/voxelVolume) * 1000)),
// radius = kernel / 10.
func FootprintRadius(objectSize, voxelVolume float64) int {
	if objectSize <= 0 || voxelVolume <= 0 {
		return 0
	}
	voxels := math.Round(objectSize / voxelVolume)
	kernel := int(math.Round(math.Cbrt(voxels * 1000)))
	return kernel / 10
}

// labelMeans returns the mean smoothed intensity under the seeds of each label
func labelMeans(merged *models.OrientedVolume, smoothed []float64) map[int]float64 {
	samples := make(map[int][]float64)
	for idx, v := range merged.Data {
		if v != 0 {
			samples[int(v)] = append(samples[int(v)], smoothed[idx])
		}
	}
	means := make(map[int]float64, len(samples))
	for l, s := range samples {
		means[l] = stat.Mean(s, nil)
	}
	return means
}

// boxSmooth averages values over a (2r+1)^3 box, clipped at the volume
// border, as three separable passes
func boxSmooth(values []float64, dims [3]int, r int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if r <= 0 {
		return out
	}
	stride := [3]int{1, dims[0], dims[0] * dims[1]}
	line := make([]float64, 0, max(dims[0], dims[1], dims[2]))
	for axis := 0; axis < 3; axis++ {
		n := dims[axis]
		for start := range out {
			// visit each line along axis once, from its first voxel
			if (start/stride[axis])%n != 0 {
				continue
			}
			line = line[:0]
			for s := 0; s < n; s++ {
				line = append(line, out[start+s*stride[axis]])
			}
			for s := 0; s < n; s++ {
				lo, hi := max(0, s-r), min(n-1, s+r)
				out[start+s*stride[axis]] = floats.Sum(line[lo:hi+1]) / float64(hi-lo+1)
			}
		}
	}
	return out
}

// front is one tentative claim of a voxel by a label
type front struct {
	cost  float64
	index int
	label int
}

// frontQueue orders claims by cost, then voxel index, then label
type frontQueue []front

func (q frontQueue) Len() int { return len(q) }
func (q frontQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	if q[i].index != q[j].index {
		return q[i].index < q[j].index
	}
	return q[i].label < q[j].label
}
func (q frontQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *frontQueue) Push(x any)   { *q = append(*q, x.(front)) }
func (q *frontQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

func (g *GrowCutter) propagate(merged, out *models.OrientedVolume, intensity []float64, means map[int]float64, sigma float64, params Params) {
	n := len(merged.Data)
	best := make([]float64, n)
	settled := make([]bool, n)
	q := &frontQueue{}

	for idx, v := range merged.Data {
		best[idx] = math.Inf(1)
		if v != 0 {
			best[idx] = 0
			heap.Push(q, front{cost: 0, index: idx, label: int(v)})
		}
	}

	type step struct {
		di, dj, dk int
		length     float64
	}
	steps := []step{
		{-1, 0, 0, merged.Spacing[0]}, {1, 0, 0, merged.Spacing[0]},
		{0, -1, 0, merged.Spacing[1]}, {0, 1, 0, merged.Spacing[1]},
		{0, 0, -1, merged.Spacing[2]}, {0, 0, 1, merged.Spacing[2]},
	}

	for q.Len() > 0 {
		f := heap.Pop(q).(front)
		if settled[f.index] {
			continue
		}
		settled[f.index] = true
		out.Data[f.index] = float64(f.label)

		i, j, k := merged.IJK(f.index)
		for _, s := range steps {
			ni, nj, nk := i+s.di, j+s.dj, k+s.dk
			if !merged.Contains(ni, nj, nk) {
				continue
			}
			nb := merged.Index(ni, nj, nk)
			if settled[nb] || merged.Data[nb] != 0 {
				continue
			}
			c := s.length * (1 + params.ContrastNoiseRatio*
				(math.Abs(intensity[nb]-intensity[f.index])+math.Abs(intensity[nb]-means[f.label]))/sigma)
			if params.Prior != nil && int(params.Prior.At(ni, nj, nk)) == f.label {
				c *= 1 - params.PriorStrength
			}
			cost := f.cost + c
			if cost <= best[nb] {
				best[nb] = cost
				heap.Push(q, front{cost: cost, index: nb, label: f.label})
			}
		}
	}
}
