package statistics

import (
	"segcomplete/pkg/geometry"
)

// LabelmapCalculator measures the binary labelmap of a segment
type LabelmapCalculator struct{}

// Name returns "Labelmap"
func (c *LabelmapCalculator) Name() string { return "Labelmap" }

// Keys returns voxel count, volumes and the three axis diameters
func (c *LabelmapCalculator) Keys() []MetricKey {
	return keysOf(c.Name(), "voxel_count", "volume_mm3", "volume_cm3", "diameter_x", "diameter_y", "diameter_z")
}

// DefaultKeys returns voxel count and volumes
func (c *LabelmapCalculator) DefaultKeys() []MetricKey {
	return keysOf(c.Name(), "voxel_count", "volume_mm3", "volume_cm3")
}

var diameterInfo = map[string]MeasurementInfo{
	"diameter_x": {Name: "Diameter X mm", Description: "Diameter along the first axis of the segmentation in mm", Units: "mm"},
	"diameter_y": {Name: "Diameter Y mm", Description: "Diameter along the second axis of the segmentation in mm", Units: "mm"},
	"diameter_z": {Name: "Diameter Z mm", Description: "Diameter along the third axis of the segmentation in mm", Units: "mm"},
}

// Info describes a Labelmap key
func (c *LabelmapCalculator) Info(key MetricKey) (MeasurementInfo, bool) {
	if key.Calculator != c.Name() {
		return MeasurementInfo{}, false
	}
	if info, ok := volumeInfo[key.Measurement]; ok {
		return info, true
	}
	info, ok := diameterInfo[key.Measurement]
	return info, ok
}

// Compute counts the foreground voxels of the segment's labelmap. Nothing is
// reported for a segment without a labelmap; diameters are absent for an
// empty one.
func (c *LabelmapCalculator) Compute(in Input, requested []MetricKey) map[MetricKey]float64 {
	stats := make(map[MetricKey]float64)
	if in.Segment == nil || in.Segment.BinaryLabelmap == nil {
		return stats
	}
	mask := in.Segment.BinaryLabelmap
	name := c.Name()

	count := float64(mask.CountNonZero())
	volume := count * mask.VoxelVolume()
	if wants(requested, name, "voxel_count") {
		stats[MetricKey{name, "voxel_count"}] = count
	}
	if wants(requested, name, "volume_mm3") {
		stats[MetricKey{name, "volume_mm3"}] = volume
	}
	if wants(requested, name, "volume_cm3") {
		stats[MetricKey{name, "volume_cm3"}] = volume * cm3PerMM3
	}

	effective := geometry.EffectiveExtent(mask)
	if effective.IsEmpty() {
		return stats
	}
	size := geometry.PhysicalBounds(mask, effective)
	for a, m := range []string{"diameter_x", "diameter_y", "diameter_z"} {
		if wants(requested, name, m) {
			stats[MetricKey{name, m}] = size[a]
		}
	}
	return stats
}
