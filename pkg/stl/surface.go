// Package stl builds closed triangle surfaces from binary labelmaps, measures
// them and reads and writes them as binary STL files.
package stl

import (
	"math"

	"segcomplete/internal/models"
)

// SurfaceExtractor turns the foreground of a binary labelmap into a closed
// surface made of the exposed voxel faces. Every face between a foreground
// voxel and a background (or out-of-extent) voxel becomes two triangles in
// world coordinates with outward normals, so the surface is watertight and
// encloses exactly the foreground voxels.
type SurfaceExtractor struct {
	mask *models.OrientedVolume
}

// NewSurfaceExtractor creates an extractor for mask (non-zero = inside)
func NewSurfaceExtractor(mask *models.OrientedVolume) *SurfaceExtractor {
	return &SurfaceExtractor{mask: mask}
}

// faceOffsets lists the six face directions as index offsets
var faceOffsets = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// Extract returns the surface mesh. An empty mask yields an empty mesh.
func (e *SurfaceExtractor) Extract() *models.TriangleMesh {
	mesh := &models.TriangleMesh{}
	m := e.mask
	if m == nil || m.Extent.IsEmpty() {
		return mesh
	}

	for idx, v := range m.Data {
		if v == 0 {
			continue
		}
		i, j, k := m.IJK(idx)
		for _, off := range faceOffsets {
			if m.At(i+off[0], j+off[1], k+off[2]) != 0 {
				continue
			}
			a, b := e.face([3]int{i, j, k}, off)
			mesh.Triangles = append(mesh.Triangles, a, b)
		}
	}
	log.Debugf("extracted %d triangles from %d voxels", len(mesh.Triangles), m.CountNonZero())
	return mesh
}

// face returns the two triangles covering the face of voxel c toward off
func (e *SurfaceExtractor) face(c [3]int, off [3]int) (models.Triangle, models.Triangle) {
	axis := 0
	for a := 0; a < 3; a++ {
		if off[a] != 0 {
			axis = a
		}
	}
	u, v := (axis+1)%3, (axis+2)%3

	corner := func(du, dv float64) [3]float64 {
		p := [3]float64{float64(c[0]), float64(c[1]), float64(c[2])}
		p[axis] += 0.5 * float64(off[axis])
		p[u] += du
		p[v] += dv
		return e.mask.IndexToWorld(p[0], p[1], p[2])
	}
	c0 := corner(-0.5, -0.5)
	c1 := corner(0.5, -0.5)
	c2 := corner(0.5, 0.5)
	c3 := corner(-0.5, 0.5)

	centre := e.mask.IndexToWorld(float64(c[0]), float64(c[1]), float64(c[2]))
	outward := sub(corner(0, 0), centre)

	normal := normalize(cross(sub(c1, c0), sub(c2, c0)))
	if dot(normal, outward) < 0 {
		c1, c3 = c3, c1
		normal = scale(normal, -1)
	}
	return models.Triangle{Normal: normal, Vertex1: c0, Vertex2: c1, Vertex3: c2},
		models.Triangle{Normal: normal, Vertex1: c0, Vertex2: c2, Vertex3: c3}
}

// MassProperties returns the surface area (mm2) and enclosed volume (mm3) of
// a closed mesh. The volume sums the signed volumes of the tetrahedra formed
// by each triangle and the origin.
func MassProperties(mesh *models.TriangleMesh) (area, volume float64) {
	if mesh == nil {
		return 0, 0
	}
	for _, t := range mesh.Triangles {
		area += 0.5 * length(cross(sub(t.Vertex2, t.Vertex1), sub(t.Vertex3, t.Vertex1)))
		volume += dot(t.Vertex1, cross(t.Vertex2, t.Vertex3)) / 6
	}
	return area, math.Abs(volume)
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func scale(a [3]float64, s float64) [3]float64 {
	return [3]float64{a[0] * s, a[1] * s, a[2] * s}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func length(a [3]float64) float64 {
	return math.Sqrt(dot(a, a))
}

func normalize(a [3]float64) [3]float64 {
	l := length(a)
	if l == 0 {
		return a
	}
	return scale(a, 1/l)
}
