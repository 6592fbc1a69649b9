// Package visualization renders planes of reference volumes and labelmaps as
// images and writes them to disk.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"

	"segcomplete/internal/models"
	"segcomplete/pkg/config"
	"segcomplete/pkg/geometry"
	"segcomplete/pkg/labelmap"
)

var log = config.NamedLogger("visualization")

// Viewer extracts axis-aligned planes of a volume. Grey viewers map the
// window [low, high] linearly to 16-bit grey; label viewers paint every
// label with its colour and leave the background black.
type Viewer struct {
	volume *models.OrientedVolume

	// grey window
	low, high float64

	// colors is nil for grey viewers
	colors map[int]color.RGBA
}

// NewViewer creates a grey viewer whose window spans the volume's value range
func NewViewer(volume *models.OrientedVolume) *Viewer {
	v := &Viewer{volume: volume}
	if len(volume.Data) > 0 {
		v.low = floats.Min(volume.Data)
		v.high = floats.Max(volume.Data)
	}
	return v
}

// NewLabelViewer creates a viewer that paints the labels of a merged
// labelmap. Labels without a colour get one from a fixed palette.
func NewLabelViewer(labels *models.OrientedVolume, colors map[int]models.Color) *Viewer {
	v := &Viewer{volume: labels, colors: make(map[int]color.RGBA)}
	for _, l := range labels.Labels() {
		if c, ok := colors[l]; ok {
			v.colors[l] = toRGBA(c)
		} else {
			n := (l - 1) % len(palette)
			if n < 0 {
				n += len(palette)
			}
			v.colors[l] = palette[n]
		}
	}
	return v
}

// LabelColors returns the segment colours keyed by the labels they were
// assigned in a merge
func LabelColors(segmentation *models.Segmentation, assignment labelmap.LabelAssignment) map[int]models.Color {
	colors := make(map[int]models.Color, len(assignment))
	for id, l := range assignment {
		if seg := segmentation.Segment(id); seg != nil {
			colors[l] = seg.Color
		}
	}
	return colors
}

var palette = []color.RGBA{
	{R: 128, G: 174, B: 128, A: 255},
	{R: 241, G: 214, B: 145, A: 255},
	{R: 177, G: 122, B: 101, A: 255},
	{R: 111, G: 184, B: 210, A: 255},
	{R: 216, G: 101, B: 79, A: 255},
	{R: 221, G: 130, B: 101, A: 255},
}

func toRGBA(c models.Color) color.RGBA {
	ch := func(f float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255)) }
	return color.RGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: 255}
}

// SetWindow changes the grey window
func (v *Viewer) SetWindow(low, high float64) {
	v.low, v.high = low, high
}

// ParseAxis maps "x", "y" and "z" (or "i", "j", "k") to index axes 0, 1 and 2
func ParseAxis(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x", "i":
		return 0, nil
	case "y", "j":
		return 1, nil
	case "z", "k":
		return 2, nil
	}
	return -1, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// planeAxes returns the index axes spanning image columns and rows
func planeAxes(axis int) (u, w int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

// ExtractSlice extracts the plane at absolute index position along axis.
// Image columns and rows follow the two remaining index axes in order.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	a, err := ParseAxis(axis)
	if err != nil {
		return nil, err
	}
	e := v.volume.Extent
	if e.IsEmpty() || position < e.Min(a) || position > e.Max(a) {
		return nil, fmt.Errorf("position %d outside [%d, %d] on axis %s", position, e.Min(a), e.Max(a), axis)
	}

	u, w := planeAxes(a)
	dims := e.Dims()
	rect := image.Rect(0, 0, dims[u], dims[w])

	var gray *image.Gray16
	var rgba *image.RGBA
	if v.colors == nil {
		gray = image.NewGray16(rect)
	} else {
		rgba = image.NewRGBA(rect)
	}

	var ijk [3]int
	ijk[a] = position
	for y := 0; y < dims[w]; y++ {
		for x := 0; x < dims[u]; x++ {
			ijk[u] = e.Min(u) + x
			ijk[w] = e.Min(w) + y
			value := v.volume.At(ijk[0], ijk[1], ijk[2])
			if gray != nil {
				gray.SetGray16(x, y, color.Gray16{Y: v.grey(value)})
				continue
			}
			c := color.RGBA{A: 255}
			if value != 0 {
				c = v.colors[int(value)]
			}
			rgba.SetRGBA(x, y, c)
		}
	}
	if gray != nil {
		return gray, nil
	}
	return rgba, nil
}

// ExtractRegion copies the part of the volume covered by region, which must
// lie inside the volume's extent
func (v *Viewer) ExtractRegion(region models.Extent) (*models.OrientedVolume, error) {
	if region.IsEmpty() {
		return nil, fmt.Errorf("region %s is empty", region)
	}
	if !v.volume.Extent.ContainsExtent(region) {
		return nil, fmt.Errorf("region %s extends beyond volume extent %s", region, v.volume.Extent)
	}
	return geometry.PadToExtent(v.volume, region), nil
}

func (v *Viewer) grey(value float64) uint16 {
	if v.high <= v.low {
		return 0
	}
	f := (value - v.low) / (v.high - v.low)
	return uint16(math.Round(math.Max(0, math.Min(1, f)) * 65535))
}

// SaveSlice writes an image in the format given by the file extension:
// .png, .tif/.tiff (deflate compressed, 16-bit grey preserved) or .jpg
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(file, img)
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return fmt.Errorf("unsupported image format %q", filepath.Ext(filename))
	}
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", filename, err)
	}
	return nil
}

// SaveSliceSequence extracts every plane along axis and writes them to
// outputDir as slice_<axis>_<index>.<format>. It returns the written paths.
func (v *Viewer) SaveSliceSequence(axis, outputDir, format string) ([]string, error) {
	a, err := ParseAxis(axis)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	e := v.volume.Extent
	var paths []string
	for pos := e.Min(a); pos <= e.Max(a); pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return paths, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", axis, pos, format))
		if err := SaveSlice(img, filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	log.Debugf("saved %d %s-axis slices to %s", len(paths), axis, outputDir)
	return paths, nil
}
