package statistics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"segcomplete/pkg/geometry"
)

// ScalarVolumeCalculator measures reference intensities under a segment
type ScalarVolumeCalculator struct{}

// Name returns "Scalar Volume"
func (c *ScalarVolumeCalculator) Name() string { return "Scalar Volume" }

// Keys returns voxel count, volumes and the intensity statistics
func (c *ScalarVolumeCalculator) Keys() []MetricKey {
	return keysOf(c.Name(), "voxel_count", "volume_mm3", "volume_cm3", "min", "max", "mean", "stdev")
}

// DefaultKeys returns all keys
func (c *ScalarVolumeCalculator) DefaultKeys() []MetricKey {
	return c.Keys()
}

var intensityInfo = map[string]MeasurementInfo{
	"min":   {Name: "Minimum", Description: "Minimum scalar value"},
	"max":   {Name: "Maximum", Description: "Maximum scalar value"},
	"mean":  {Name: "Mean", Description: "Mean scalar value"},
	"stdev": {Name: "Standard deviation", Description: "Standard deviation of scalar values"},
}

// Info describes a Scalar Volume key
func (c *ScalarVolumeCalculator) Info(key MetricKey) (MeasurementInfo, bool) {
	if key.Calculator != c.Name() {
		return MeasurementInfo{}, false
	}
	if info, ok := volumeInfo[key.Measurement]; ok {
		return info, true
	}
	info, ok := intensityInfo[key.Measurement]
	return info, ok
}

// Compute resamples the segment's labelmap onto the reference grid and
// measures the reference voxels it covers. Counts and volumes use the
// reference spacing. Intensity statistics are absent when no voxel is
// covered; nothing is reported without a reference or labelmap.
func (c *ScalarVolumeCalculator) Compute(in Input, requested []MetricKey) map[MetricKey]float64 {
	stats := make(map[MetricKey]float64)
	if in.Reference == nil || in.Segment == nil || in.Segment.BinaryLabelmap == nil {
		return stats
	}
	name := c.Name()

	mask, err := geometry.Resample(in.Segment.BinaryLabelmap, in.Reference, false)
	if err != nil {
		log.Warnf("cannot resample segment %s onto the reference: %v", in.Segment.ID, err)
		return stats
	}

	var values []float64
	for idx, m := range mask.Data {
		if m != 0 {
			values = append(values, in.Reference.Data[idx])
		}
	}

	count := float64(len(values))
	volume := count * in.Reference.VoxelVolume()
	if wants(requested, name, "voxel_count") {
		stats[MetricKey{name, "voxel_count"}] = count
	}
	if wants(requested, name, "volume_mm3") {
		stats[MetricKey{name, "volume_mm3"}] = volume
	}
	if wants(requested, name, "volume_cm3") {
		stats[MetricKey{name, "volume_cm3"}] = volume * cm3PerMM3
	}
	if len(values) == 0 {
		return stats
	}

	if wants(requested, name, "min") {
		stats[MetricKey{name, "min"}] = floats.Min(values)
	}
	if wants(requested, name, "max") {
		stats[MetricKey{name, "max"}] = floats.Max(values)
	}
	if wants(requested, name, "mean") {
		stats[MetricKey{name, "mean"}] = stat.Mean(values, nil)
	}
	if wants(requested, name, "stdev") {
		stats[MetricKey{name, "stdev"}] = stat.PopStdDev(values, nil)
	}
	return stats
}
