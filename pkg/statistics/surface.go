package statistics

import (
	"segcomplete/internal/models"
	"segcomplete/pkg/stl"
)

// ClosedSurfaceCalculator measures the closed surface of a segment
type ClosedSurfaceCalculator struct {
	// GenerateSurface builds a surface from the binary labelmap for
	// segments that have none. The segment itself is not modified.
	GenerateSurface bool
}

// Name returns "Closed Surface"
func (c *ClosedSurfaceCalculator) Name() string { return "Closed Surface" }

// Keys returns surface area and enclosed volumes
func (c *ClosedSurfaceCalculator) Keys() []MetricKey {
	return keysOf(c.Name(), "surface_mm2", "volume_mm3", "volume_cm3")
}

// DefaultKeys returns all keys
func (c *ClosedSurfaceCalculator) DefaultKeys() []MetricKey {
	return c.Keys()
}

// Info describes a Closed Surface key
func (c *ClosedSurfaceCalculator) Info(key MetricKey) (MeasurementInfo, bool) {
	if key.Calculator != c.Name() {
		return MeasurementInfo{}, false
	}
	if key.Measurement == "surface_mm2" {
		return MeasurementInfo{Name: "Surface mm2", Description: "Surface area in mm2", Units: "mm2"}, true
	}
	if key.Measurement == "voxel_count" {
		return MeasurementInfo{}, false
	}
	info, ok := volumeInfo[key.Measurement]
	return info, ok
}

// Compute integrates area and volume over the segment's closed surface.
// Without a surface every value is absent.
func (c *ClosedSurfaceCalculator) Compute(in Input, requested []MetricKey) map[MetricKey]float64 {
	stats := make(map[MetricKey]float64)
	if in.Segment == nil {
		return stats
	}
	mesh := in.Segment.ClosedSurface
	if mesh == nil && c.GenerateSurface && in.Segment.BinaryLabelmap != nil {
		mesh = stl.NewSurfaceExtractor(in.Segment.BinaryLabelmap).Extract()
	}
	if mesh == nil {
		return stats
	}
	name := c.Name()

	area, volume := stl.MassProperties(mesh)
	if wants(requested, name, "surface_mm2") {
		stats[MetricKey{name, "surface_mm2"}] = area
	}
	if wants(requested, name, "volume_mm3") {
		stats[MetricKey{name, "volume_mm3"}] = volume
	}
	if wants(requested, name, "volume_cm3") {
		stats[MetricKey{name, "volume_cm3"}] = volume * cm3PerMM3
	}
	return stats
}

// GenerateClosedSurfaces builds surfaces for every segment of segmentation
// that has a binary labelmap but no closed surface
func GenerateClosedSurfaces(segmentation *models.Segmentation) int {
	n := 0
	for _, id := range segmentation.SegmentIDs() {
		seg := segmentation.Segment(id)
		if seg.ClosedSurface != nil || seg.BinaryLabelmap == nil {
			continue
		}
		seg.ClosedSurface = stl.NewSurfaceExtractor(seg.BinaryLabelmap).Extract()
		n++
	}
	return n
}
