package models

import (
	"image"
)

// Slice is one 2D image of a slice stack read from disk
type Slice struct {
	// Image holds the decoded pixels
	Image image.Image

	// Index is the position of the slice in the sorted stack
	Index int

	// Filename is the file the slice was read from
	Filename string
}

// SliceStack is an ordered sequence of equally sized slices that together
// describe a volume along the k axis.
type SliceStack struct {
	// Slices are sorted by their numeric filename order
	Slices []Slice

	// Width and Height are the pixel dimensions shared by all slices
	Width, Height int

	// Spacing is the voxel size (in-plane x, in-plane y, slice gap) in mm
	Spacing [3]float64
}

// Depth returns the number of slices
func (s *SliceStack) Depth() int {
	return len(s.Slices)
}
