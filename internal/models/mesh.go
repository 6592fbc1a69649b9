package models

// Triangle is one facet of a closed surface in world coordinates (mm).
// Vertices are ordered counter-clockwise when seen from outside, so Normal
// points outward.
type Triangle struct {
	Normal  [3]float64
	Vertex1 [3]float64
	Vertex2 [3]float64
	Vertex3 [3]float64
}

// TriangleMesh is a closed triangulated surface
type TriangleMesh struct {
	Triangles []Triangle
}

// NumberOfTriangles returns the number of facets
func (m *TriangleMesh) NumberOfTriangles() int {
	if m == nil {
		return 0
	}
	return len(m.Triangles)
}

// Bounds returns the world bounding box as [xMin, xMax, yMin, yMax, zMin, zMax].
// ok is false for an empty mesh.
func (m *TriangleMesh) Bounds() (bounds [6]float64, ok bool) {
	if m.NumberOfTriangles() == 0 {
		return bounds, false
	}
	first := true
	for _, t := range m.Triangles {
		for _, v := range [3][3]float64{t.Vertex1, t.Vertex2, t.Vertex3} {
			for a := 0; a < 3; a++ {
				if first || v[a] < bounds[2*a] {
					bounds[2*a] = v[a]
				}
				if first || v[a] > bounds[2*a+1] {
					bounds[2*a+1] = v[a]
				}
			}
			first = false
		}
	}
	return bounds, true
}
