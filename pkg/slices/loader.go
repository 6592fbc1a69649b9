// Package slices reads stacks of numbered 2D images into volumes.
package slices

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/tiff"

	"segcomplete/internal/models"
	"segcomplete/pkg/config"
)

var log = config.NamedLogger("slices")

// Params controls how a slice stack is read
type Params struct {
	// Dir holds the slice images
	Dir string

	// Spacing is the voxel size (in-plane x, in-plane y, slice gap) in mm.
	// Zero components default to 1.
	Spacing [3]float64

	// Threshold binarises the stack when positive: grey values at or above
	// it become 1 in an UnsignedChar mask
	Threshold float64

	// NumWorkers bounds the number of images decoded concurrently.
	// Zero uses all CPUs.
	NumWorkers int
}

var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// ListSlices returns the image files of dir sorted by the number in their names
func ListSlices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PNG, JPEG or TIFF images found in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// extractNumber returns the number formed by the digits of a file name, or 0
func extractNumber(filename string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

// LoadStack decodes every slice of p.Dir. All slices must share one size.
func LoadStack(p Params) (*models.SliceStack, error) {
	files, err := ListSlices(p.Dir)
	if err != nil {
		return nil, err
	}

	workers := p.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	stack := &models.SliceStack{
		Slices:  make([]models.Slice, len(files)),
		Spacing: p.Spacing,
	}
	for a := range stack.Spacing {
		if stack.Spacing[a] <= 0 {
			stack.Spacing[a] = 1
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	sem := make(chan struct{}, workers)
	for n, name := range files {
		wg.Add(1)
		go func(n int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			img, err := loadImage(filepath.Join(p.Dir, name))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to load image %s: %w", name, err)
				}
				return
			}
			stack.Slices[n] = models.Slice{Image: img, Index: n, Filename: name}
		}(n, name)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	bounds := stack.Slices[0].Image.Bounds()
	stack.Width, stack.Height = bounds.Dx(), bounds.Dy()
	for _, s := range stack.Slices[1:] {
		if b := s.Image.Bounds(); b.Dx() != stack.Width || b.Dy() != stack.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d", s.Filename, b.Dx(), b.Dy(), stack.Width, stack.Height)
		}
	}

	log.Debugf("loaded %d slices of %dx%d from %s", stack.Depth(), stack.Width, stack.Height, p.Dir)
	return stack, nil
}

// ToVolume stacks the slices along k. Grey values are on the 8-bit scale
// (16-bit images keep fractional precision before rounding) and stored as
// Short, or binarised into an UnsignedChar mask when threshold is positive.
func ToVolume(stack *models.SliceStack, threshold float64) *models.OrientedVolume {
	scalarType := models.Short
	if threshold > 0 {
		scalarType = models.UnsignedChar
	}
	volume := models.NewOrientedVolume(models.ExtentFromDims(stack.Width, stack.Height, stack.Depth()), scalarType)
	volume.Spacing = stack.Spacing

	for k, s := range stack.Slices {
		b := s.Image.Bounds()
		for y := 0; y < stack.Height; y++ {
			for x := 0; x < stack.Width; x++ {
				g := color.Gray16Model.Convert(s.Image.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				value := float64(g.Y) / 257
				if threshold > 0 {
					if value >= threshold {
						value = 1
					} else {
						value = 0
					}
				}
				volume.Set(x, y, k, value)
			}
		}
	}
	return volume
}

// Load reads p.Dir into a volume
func Load(p Params) (*models.OrientedVolume, error) {
	stack, err := LoadStack(p)
	if err != nil {
		return nil, err
	}
	return ToVolume(stack, p.Threshold), nil
}

// loadImage decodes a PNG, JPEG or TIFF file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Decode(file)
	case ".jpg", ".jpeg":
		return jpeg.Decode(file)
	case ".tif", ".tiff":
		return tiff.Decode(file)
	}
	return nil, fmt.Errorf("unsupported image format %q", filepath.Ext(path))
}

// SaveMask writes a binary mask as numbered 8-bit PNG slices along k,
// foreground white. The files read back with Load and a positive threshold.
func SaveMask(mask *models.OrientedVolume, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	e := mask.Extent
	dims := e.Dims()
	for k := e.Min(2); k <= e.Max(2); k++ {
		img := image.NewGray(image.Rect(0, 0, dims[0], dims[1]))
		for j := e.Min(1); j <= e.Max(1); j++ {
			for i := e.Min(0); i <= e.Max(0); i++ {
				if mask.At(i, j, k) != 0 {
					img.SetGray(i-e.Min(0), j-e.Min(1), color.Gray{Y: math.MaxUint8})
				}
			}
		}
		if err := writePNG(filepath.Join(dir, fmt.Sprintf("mask_%03d.png", k-e.Min(2))), img); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
