package stl

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"segcomplete/internal/models"
)

// sphereMask returns a size^3 mask with a voxelized sphere of radius size/4
func sphereMask(size int, spacing [3]float64) *models.OrientedVolume {
	mask := models.NewOrientedVolume(models.ExtentFromDims(size, size, size), models.UnsignedChar)
	mask.Spacing = spacing
	radius := float64(size) / 4.0
	center := float64(size) / 2.0
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				if math.Sqrt(dx*dx+dy*dy+dz*dz) < radius {
					mask.Set(x, y, z, 1)
				}
			}
		}
	}
	return mask
}

// TestSurfaceExtractorSphere verifies a voxelized sphere gives a closed surface with outward normals
func TestSurfaceExtractorSphere(t *testing.T) {
	size := 20
	mask := sphereMask(size, [3]float64{1, 1, 1})
	mesh := NewSurfaceExtractor(mask).Extract()

	if mesh.NumberOfTriangles() < 100 {
		t.Errorf("Expected at least 100 triangles for sphere, got %d", mesh.NumberOfTriangles())
	}

	center := float64(size) / 2.0
	for n, triangle := range mesh.Triangles {
		c := [3]float64{
			(triangle.Vertex1[0]+triangle.Vertex2[0]+triangle.Vertex3[0])/3 - center,
			(triangle.Vertex1[1]+triangle.Vertex2[1]+triangle.Vertex3[1])/3 - center,
			(triangle.Vertex1[2]+triangle.Vertex2[2]+triangle.Vertex3[2])/3 - center,
		}
		if dot(c, triangle.Normal) <= 0 {
			t.Fatalf("Triangle %d normal points inward: centre %v normal %v", n, c, triangle.Normal)
		}
	}

	// a voxel surface encloses exactly the voxel volume
	_, volume := MassProperties(mesh)
	want := float64(mask.CountNonZero())
	if math.Abs(volume-want) > 1e-6*want {
		t.Errorf("Expected enclosed volume %f, got %f", want, volume)
	}
}

// TestMassPropertiesSingleVoxel verifies area and volume scale with spacing
func TestMassPropertiesSingleVoxel(t *testing.T) {
	mask := models.NewOrientedVolume(models.NewExtent(3, 3, -1, -1, 7, 7), models.UnsignedChar)
	mask.Spacing = [3]float64{2, 3, 4}
	mask.Origin = [3]float64{-10, 5, 2}
	mask.Fill(1)

	mesh := NewSurfaceExtractor(mask).Extract()
	if mesh.NumberOfTriangles() != 12 {
		t.Fatalf("Expected 12 triangles, got %d", mesh.NumberOfTriangles())
	}

	area, volume := MassProperties(mesh)
	if math.Abs(area-52) > 1e-9 {
		t.Errorf("Expected area 52, got %f", area)
	}
	if math.Abs(volume-24) > 1e-9 {
		t.Errorf("Expected volume 24, got %f", volume)
	}

	bounds, ok := mesh.Bounds()
	if !ok {
		t.Fatal("Expected bounds for non-empty mesh")
	}
	// voxel 3 along x with spacing 2 spans 5..7 mm from the origin
	if bounds[0] != -10+5 || bounds[1] != -10+7 {
		t.Errorf("Unexpected x bounds %v", bounds)
	}
}

// TestMassPropertiesFlippedDirections verifies a mirrored grid keeps outward normals
func TestMassPropertiesFlippedDirections(t *testing.T) {
	mask := models.NewOrientedVolume(models.ExtentFromDims(2, 1, 1), models.UnsignedChar)
	mask.Directions = [3][3]float64{{-1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	mask.Fill(1)

	mesh := NewSurfaceExtractor(mask).Extract()
	if mesh.NumberOfTriangles() != 20 {
		t.Fatalf("Expected 20 triangles, got %d", mesh.NumberOfTriangles())
	}
	area, volume := MassProperties(mesh)
	if math.Abs(area-10) > 1e-9 || math.Abs(volume-2) > 1e-9 {
		t.Errorf("Expected area 10 and volume 2, got %f and %f", area, volume)
	}
	for _, tri := range mesh.Triangles {
		if tri.Normal[0] < -0.5 && tri.Vertex1[0] > -0.4 {
			t.Errorf("Normal %v points into the mirrored volume", tri.Normal)
		}
	}
}

// TestEmptyMask verifies an empty mask gives an empty mesh
func TestEmptyMask(t *testing.T) {
	mask := models.NewOrientedVolume(models.ExtentFromDims(4, 4, 4), models.UnsignedChar)
	mesh := NewSurfaceExtractor(mask).Extract()
	if mesh.NumberOfTriangles() != 0 {
		t.Errorf("Expected no triangles, got %d", mesh.NumberOfTriangles())
	}
	if area, volume := MassProperties(mesh); area != 0 || volume != 0 {
		t.Errorf("Expected zero mass properties, got %f, %f", area, volume)
	}
}

// TestSaveToSTL verifies that the STL file can be written and read back
func TestSaveToSTL(t *testing.T) {
	triangles := []models.Triangle{
		{
			Normal:  [3]float64{0, 0, 1},
			Vertex1: [3]float64{0, 0, 0},
			Vertex2: [3]float64{1, 0, 0},
			Vertex3: [3]float64{0, 1, 0},
		},
		{
			Normal:  [3]float64{0, 0, -1},
			Vertex1: [3]float64{0.5, 0.25, -2},
			Vertex2: [3]float64{0, 1, -2},
			Vertex3: [3]float64{1, 0, -2},
		},
	}

	path := filepath.Join(t.TempDir(), "test.stl")
	if err := SaveToSTL(path, triangles); err != nil {
		t.Fatalf("Failed to save STL: %v", err)
	}

	// STL header: 80 bytes, triangle count: 4 bytes, 50 bytes per triangle
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat output file: %v", err)
	}
	if want := int64(80 + 4 + 50*len(triangles)); info.Size() != want {
		t.Errorf("Expected %d bytes, got %d", want, info.Size())
	}

	mesh, err := LoadSTL(path)
	if err != nil {
		t.Fatalf("Failed to load STL: %v", err)
	}
	if mesh.NumberOfTriangles() != len(triangles) {
		t.Fatalf("Expected %d triangles, got %d", len(triangles), mesh.NumberOfTriangles())
	}
	for n := range triangles {
		if mesh.Triangles[n] != triangles[n] {
			t.Errorf("Triangle %d changed: %v != %v", n, mesh.Triangles[n], triangles[n])
		}
	}
}

// TestReadSTLTruncated verifies a short stream is reported
func TestReadSTLTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSTL(&buf, []models.Triangle{{}}); err != nil {
		t.Fatalf("Failed to write STL: %v", err)
	}
	data := buf.Bytes()[:buf.Len()-10]
	if _, err := ReadSTL(bytes.NewReader(data)); err == nil {
		t.Error("Expected an error for truncated data")
	}
}

// BenchmarkSurfaceExtractor benchmarks surface extraction of a sphere
func BenchmarkSurfaceExtractor(b *testing.B) {
	mask := sphereMask(32, [3]float64{1, 1, 1})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewSurfaceExtractor(mask).Extract()
	}
}
