package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSegmentNotFound is returned when a segment ID is not part of the segmentation
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrDuplicateSegment is returned when adding a segment whose ID is already used
	ErrDuplicateSegment = errors.New("segment ID already exists")
)

// Color is an RGB triple with components in [0, 1]
type Color [3]float64

// Segment is one named region of interest of a segmentation. It carries one
// or more geometric representations of the same region.
type Segment struct {
	// ID is the stable identifier of the segment inside its segmentation
	ID string

	// Name is the display name
	Name string

	// Color is the display color
	Color Color

	// Visible controls whether the segment participates in operations that
	// only consider visible segments
	Visible bool

	// BinaryLabelmap is the voxel representation (non-zero = inside). May be nil.
	BinaryLabelmap *OrientedVolume

	// ClosedSurface is the triangulated surface representation. May be nil.
	ClosedSurface *TriangleMesh

	// Tags holds free-form string metadata
	Tags map[string]string
}

// NewSegment creates a visible segment with the given ID and name
func NewSegment(id, name string) *Segment {
	return &Segment{
		ID:      id,
		Name:    name,
		Visible: true,
		Tags:    make(map[string]string),
	}
}

// Segmentation is an ordered collection of segments. The order is the
// segment table order and is significant for merge priority.
type Segmentation struct {
	segments []*Segment
}

// NewSegmentation creates an empty segmentation
func NewSegmentation() *Segmentation {
	return &Segmentation{}
}

// AddSegment appends a segment at the end of the table
func (s *Segmentation) AddSegment(seg *Segment) error {
	if seg == nil || seg.ID == "" {
		return fmt.Errorf("segment must have a non-empty ID")
	}
	if s.Segment(seg.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateSegment, seg.ID)
	}
	if seg.Tags == nil {
		seg.Tags = make(map[string]string)
	}
	s.segments = append(s.segments, seg)
	return nil
}

// RemoveSegment deletes a segment from the table
func (s *Segmentation) RemoveSegment(id string) error {
	for i, seg := range s.segments {
		if seg.ID == id {
			s.segments = append(s.segments[:i], s.segments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
}

// Segment returns the segment with the given ID, or nil
func (s *Segmentation) Segment(id string) *Segment {
	for _, seg := range s.segments {
		if seg.ID == id {
			return seg
		}
	}
	return nil
}

// NumberOfSegments returns the size of the segment table
func (s *Segmentation) NumberOfSegments() int {
	return len(s.segments)
}

// SegmentIDs returns all segment IDs in table order
func (s *Segmentation) SegmentIDs() []string {
	ids := make([]string, 0, len(s.segments))
	for _, seg := range s.segments {
		ids = append(ids, seg.ID)
	}
	return ids
}

// VisibleSegmentIDs returns the IDs of visible segments in table order
func (s *Segmentation) VisibleSegmentIDs() []string {
	var ids []string
	for _, seg := range s.segments {
		if seg.Visible {
			ids = append(ids, seg.ID)
		}
	}
	return ids
}

// SetBinaryLabelmap replaces the binary labelmap representation of a segment
func (s *Segmentation) SetBinaryLabelmap(id string, mask *OrientedVolume) error {
	seg := s.Segment(id)
	if seg == nil {
		return fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
	}
	seg.BinaryLabelmap = mask
	return nil
}

// ContainsClosedSurface reports whether every segment has a closed surface
func (s *Segmentation) ContainsClosedSurface() bool {
	if len(s.segments) == 0 {
		return false
	}
	for _, seg := range s.segments {
		if seg.ClosedSurface == nil {
			return false
		}
	}
	return true
}

// GenerateUniqueSegmentID returns prefix, or prefix_N with the smallest N >= 1
// that is not already in use.
func (s *Segmentation) GenerateUniqueSegmentID(prefix string) string {
	if s.Segment(prefix) == nil {
		return prefix
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s_%d", prefix, n)
		if s.Segment(id) == nil {
			return id
		}
	}
}
