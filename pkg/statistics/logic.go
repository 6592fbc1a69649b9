package statistics

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"segcomplete/internal/models"
	"segcomplete/pkg/config"
)

var log = config.NamedLogger("statistics")

// NotAvailable is the text rendered for absent values
const NotAvailable = ""

// Logic runs the calculators over the segments of a segmentation and keeps
// the results, one row per segment in the order segments were measured.
type Logic struct {
	calculators []Calculator
	enabled     map[string]bool

	segmentIDs []string
	names      map[string]string
	values     map[string]map[MetricKey]float64
}

// NewLogic creates a statistics logic with the Labelmap, Scalar Volume and
// Closed Surface calculators. Enable flags and the surface generation option
// are taken from the statistics section of cfg; a nil cfg uses defaults.
func NewLogic(cfg *config.Config) *Logic {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	l := NewLogicWithCalculators(
		&LabelmapCalculator{},
		&ScalarVolumeCalculator{},
		&ClosedSurfaceCalculator{GenerateSurface: cfg.Statistics.GenerateClosedSurface},
	)
	for name, on := range cfg.Statistics.Enabled {
		l.SetEnabled(name, on)
	}
	return l
}

// NewLogicWithCalculators creates a statistics logic over the given
// calculators, each enabled with its default keys
func NewLogicWithCalculators(calculators ...Calculator) *Logic {
	l := &Logic{
		calculators: calculators,
		enabled:     make(map[string]bool),
	}
	for _, c := range calculators {
		l.enabled[c.Name()] = true
		defaults := c.DefaultKeys()
		for _, k := range c.Keys() {
			l.enabled[k.String()] = contains(defaults, k)
		}
	}
	l.Reset()
	return l
}

// SetEnabled switches a calculator (by name) or a single measurement (by
// key string, e.g. "Labelmap.diameter_x") on or off
func (l *Logic) SetEnabled(name string, on bool) {
	if _, known := l.enabled[name]; !known {
		log.Warnf("ignoring unknown calculator or measurement %q", name)
		return
	}
	l.enabled[name] = on
}

// IsEnabled reports the enabled state of a calculator or measurement
func (l *Logic) IsEnabled(name string) bool {
	return l.enabled[name]
}

// Calculators returns the registered calculators
func (l *Logic) Calculators() []Calculator {
	return l.calculators
}

// Reset clears all results
func (l *Logic) Reset() {
	l.segmentIDs = nil
	l.names = make(map[string]string)
	l.values = make(map[string]map[MetricKey]float64)
}

// Keys returns the segment column followed by every key of every calculator
func (l *Logic) Keys() []MetricKey {
	keys := []MetricKey{SegmentKey}
	for _, c := range l.calculators {
		keys = append(keys, c.Keys()...)
	}
	return keys
}

// SegmentIDs returns the measured segments in row order
func (l *Logic) SegmentIDs() []string {
	return l.segmentIDs
}

// ComputeStatistics clears previous results and measures every segment, or
// only the visible ones
func (l *Logic) ComputeStatistics(segmentation *models.Segmentation, reference *models.OrientedVolume, visibleOnly bool) {
	l.Reset()

	ids := segmentation.SegmentIDs()
	if visibleOnly {
		ids = segmentation.VisibleSegmentIDs()
	}
	if len(ids) == 0 {
		log.Debug("no segments to measure")
	}
	for _, id := range ids {
		l.UpdateStatisticsForSegment(id, segmentation, reference)
	}
}

// UpdateStatisticsForSegment measures one segment, replacing its previous
// values and leaving other rows untouched. It returns false if the segment
// does not exist.
func (l *Logic) UpdateStatisticsForSegment(id string, segmentation *models.Segmentation, reference *models.OrientedVolume) bool {
	seg := segmentation.Segment(id)
	if seg == nil {
		log.Debugf("segment %s does not exist; nothing to update", id)
		return false
	}

	if _, seen := l.names[id]; !seen {
		l.segmentIDs = append(l.segmentIDs, id)
	}
	l.names[id] = seg.Name

	values := make(map[MetricKey]float64)
	in := Input{Segment: seg, Reference: reference}
	for _, c := range l.calculators {
		if !l.enabled[c.Name()] {
			continue
		}
		var requested []MetricKey
		for _, k := range c.Keys() {
			if l.enabled[k.String()] {
				requested = append(requested, k)
			}
		}
		if len(requested) == 0 {
			continue
		}
		for k, v := range c.Compute(in, requested) {
			values[k] = v
		}
	}
	l.values[id] = values
	return true
}

// Value returns a measured value; ok is false when it is not available
func (l *Logic) Value(id string, key MetricKey) (value float64, ok bool) {
	value, ok = l.values[id][key]
	return value, ok
}

// Info describes a key using the calculator that owns it
func (l *Logic) Info(key MetricKey) (MeasurementInfo, bool) {
	if key == SegmentKey {
		return MeasurementInfo{Name: "Segment", Description: "Segment name"}, true
	}
	for _, c := range l.calculators {
		if c.Name() == key.Calculator {
			return c.Info(key)
		}
	}
	return MeasurementInfo{}, false
}

// ValueAsString renders a value for display: counts as integers, other
// values with three decimals, the segment name for SegmentKey and
// NotAvailable for absent values
func (l *Logic) ValueAsString(id string, key MetricKey) string {
	if key == SegmentKey {
		if name, ok := l.names[id]; ok {
			return name
		}
		return NotAvailable
	}
	v, ok := l.Value(id, key)
	if !ok {
		return NotAvailable
	}
	if info, _ := l.Info(key); info.Integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%0.3f", v)
}

// NonEmptyKeys returns the keys with a value for at least one segment
func (l *Logic) NonEmptyKeys() []MetricKey {
	var keys []MetricKey
	for _, k := range l.Keys() {
		for _, id := range l.segmentIDs {
			if k == SegmentKey {
				keys = append(keys, k)
				break
			}
			if _, ok := l.values[id][k]; ok {
				keys = append(keys, k)
				break
			}
		}
	}
	return keys
}

func (l *Logic) exportKeys(nonEmptyOnly bool) []MetricKey {
	if nonEmptyOnly {
		return l.NonEmptyKeys()
	}
	return l.Keys()
}

// Column describes one exported column
type Column struct {
	Key         MetricKey
	Name        string
	Description string
	Units       string
}

// Table is the in-memory export: one column per key, one row per segment
type Table struct {
	Columns []Column
	Rows    [][]string
}

// ExportToTable renders the results as a table of display strings
func (l *Logic) ExportToTable(nonEmptyOnly bool) *Table {
	keys := l.exportKeys(nonEmptyOnly)
	table := &Table{Columns: make([]Column, len(keys))}
	for n, k := range keys {
		col := Column{Key: k, Name: k.String()}
		if info, ok := l.Info(k); ok {
			col.Name = info.Name
			col.Description = info.Description
			col.Units = info.Units
		}
		table.Columns[n] = col
	}
	for _, id := range l.segmentIDs {
		row := make([]string, len(keys))
		for n, k := range keys {
			row[n] = l.ValueAsString(id, k)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// ExportToString renders the results as CSV text: a header of quoted keys,
// then one line per segment with the segment name and the raw values,
// leaving absent values empty
func (l *Logic) ExportToString(nonEmptyOnly bool) string {
	keys := l.exportKeys(nonEmptyOnly)
	var b strings.Builder

	header := make([]string, len(keys))
	for n, k := range keys {
		header[n] = strconv.Quote(k.String())
	}
	b.WriteString(strings.Join(header, ","))

	for _, id := range l.segmentIDs {
		fields := make([]string, len(keys))
		for n, k := range keys {
			if k == SegmentKey {
				fields[n] = l.names[id]
				continue
			}
			if v, ok := l.Value(id, k); ok {
				fields[n] = formatRaw(v, l.isInteger(k))
			}
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(fields, ","))
	}
	return b.String()
}

// ExportToCSVFile writes ExportToString to path
func (l *Logic) ExportToCSVFile(path string, nonEmptyOnly bool) error {
	if err := os.WriteFile(path, []byte(l.ExportToString(nonEmptyOnly)), 0644); err != nil {
		return fmt.Errorf("error writing statistics file: %w", err)
	}
	log.Debugf("wrote statistics of %d segments to %s", len(l.segmentIDs), path)
	return nil
}

func (l *Logic) isInteger(k MetricKey) bool {
	info, _ := l.Info(k)
	return info.Integer
}

// formatRaw renders a value at full precision, keeping a decimal point on
// whole non-count values
func formatRaw(v float64, integer bool) string {
	if integer {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
