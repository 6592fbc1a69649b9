package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"segcomplete/internal/models"
	"segcomplete/pkg/config"
)

var log = config.NamedLogger("stl")

const (
	headerSize   = 80
	triangleSize = 50
)

// SaveToSTL writes triangles to path as a binary STL file
func SaveToSTL(path string, triangles []models.Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating STL file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteSTL(w, triangles); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("error writing STL file: %w", err)
	}
	log.Debugf("wrote %d triangles to %s", len(triangles), path)
	return nil
}

// WriteSTL encodes triangles in binary STL format
func WriteSTL(w io.Writer, triangles []models.Triangle) error {
	var header [headerSize]byte
	copy(header[:], "segcomplete closed surface")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("error writing STL header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("error writing triangle count: %w", err)
	}

	var buf [triangleSize]byte
	for _, t := range triangles {
		off := 0
		for _, vec := range [4][3]float64{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, x := range vec {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(x)))
				off += 4
			}
		}
		// attribute byte count
		buf[48], buf[49] = 0, 0
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("error writing triangle: %w", err)
		}
	}
	return nil
}

// LoadSTL reads a binary STL file
func LoadSTL(path string) (*models.TriangleMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening STL file: %w", err)
	}
	defer f.Close()
	return ReadSTL(bufio.NewReader(f))
}

// ReadSTL decodes a binary STL stream
func ReadSTL(r io.Reader) (*models.TriangleMesh, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("error reading STL header: %w", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("error reading triangle count: %w", err)
	}

	mesh := &models.TriangleMesh{Triangles: make([]models.Triangle, 0, count)}
	var buf [triangleSize]byte
	for n := uint32(0); n < count; n++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("error reading triangle %d of %d: %w", n, count, err)
		}
		var vecs [4][3]float64
		off := 0
		for v := range vecs {
			for c := 0; c < 3; c++ {
				vecs[v][c] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
				off += 4
			}
		}
		mesh.Triangles = append(mesh.Triangles, models.Triangle{
			Normal: vecs[0], Vertex1: vecs[1], Vertex2: vecs[2], Vertex3: vecs[3],
		})
	}
	return mesh, nil
}
