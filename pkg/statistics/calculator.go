// Package statistics computes per-segment measurements (voxel counts,
// volumes, intensity statistics, surface measures) and exports them as a
// table or CSV.
//
// Measurements come from independent calculators. Each one owns a fixed set
// of keys, describes them without computing anything, and only reports the
// values it can actually compute: an absent value means "not available" and
// is never reported as zero.
package statistics

import (
	"fmt"
	"strings"

	"segcomplete/internal/models"
)

// MetricKey identifies one measurement of one calculator
type MetricKey struct {
	Calculator  string
	Measurement string
}

// SegmentKey is the leading column holding the segment name
var SegmentKey = MetricKey{Measurement: "Segment"}

// String renders the key as "Calculator.measurement"
func (k MetricKey) String() string {
	if k.Calculator == "" {
		return k.Measurement
	}
	return k.Calculator + "." + k.Measurement
}

// ParseMetricKey parses "Calculator.measurement" or "Segment"
func ParseMetricKey(s string) (MetricKey, error) {
	if s == SegmentKey.Measurement {
		return SegmentKey, nil
	}
	dot := strings.LastIndex(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		return MetricKey{}, fmt.Errorf("malformed metric key %q", s)
	}
	return MetricKey{Calculator: s[:dot], Measurement: s[dot+1:]}, nil
}

// MeasurementInfo describes a measurement independently of its value
type MeasurementInfo struct {
	Name        string
	Description string
	Units       string

	// Integer marks counts that are rendered without decimals
	Integer bool
}

// Input is what a calculator sees of one segment
type Input struct {
	Segment *models.Segment

	// Reference is the optional intensity volume
	Reference *models.OrientedVolume
}

// Calculator computes a family of measurements for a segment
type Calculator interface {
	// Name is the calculator name, the prefix of its keys
	Name() string

	// Keys lists every measurement the calculator supports
	Keys() []MetricKey

	// DefaultKeys lists the measurements enabled unless configured otherwise
	DefaultKeys() []MetricKey

	// Info describes a key, without computing it
	Info(key MetricKey) (MeasurementInfo, bool)

	// Compute returns the requested measurements that are available
	Compute(in Input, requested []MetricKey) map[MetricKey]float64
}

func keysOf(calculator string, measurements ...string) []MetricKey {
	keys := make([]MetricKey, len(measurements))
	for n, m := range measurements {
		keys[n] = MetricKey{Calculator: calculator, Measurement: m}
	}
	return keys
}

func contains(keys []MetricKey, key MetricKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// wants reports whether measurement m of calculator c was requested
func wants(requested []MetricKey, c, m string) bool {
	return contains(requested, MetricKey{Calculator: c, Measurement: m})
}

// volumeInfo is shared by calculators that report voxel count and volumes
var volumeInfo = map[string]MeasurementInfo{
	"voxel_count": {Name: "Voxel count", Description: "Number of voxels", Units: "voxels", Integer: true},
	"volume_mm3":  {Name: "Volume mm3", Description: "Volume in mm3", Units: "mm3"},
	"volume_cm3":  {Name: "Volume cm3", Description: "Volume in cm3", Units: "cm3"},
}

// cm3PerMM3 converts cubic millimetres to cubic centimetres
const cm3PerMM3 = 0.001
