// Package config provides configuration loading and management for segcomplete.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Method tags accepted in the AutoCompleteMethod parameter
const (
	MethodMorphologicalSliceInterpolation = "MORPHOLOGICAL_SLICE_INTERPOLATION"
	MethodGrowCut                         = "GROWCUT"
)

// Extent policy names accepted in the autoComplete.extentPolicy setting
const (
	ExtentUnionOfSegments                = "UNION_OF_SEGMENTS"
	ExtentUnionOfEffectiveSegments       = "UNION_OF_EFFECTIVE_SEGMENTS"
	ExtentUnionOfEffectiveSegmentsPadded = "UNION_OF_EFFECTIVE_SEGMENTS_PADDED"
)

// Priority policy names accepted in the autoComplete.priority setting
const (
	PriorityHigherInTableWins = "HIGHER_IN_TABLE_WINS"
	PriorityLaterInTableWins  = "LATER_IN_TABLE_WINS"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Auto-complete parameters
	AutoComplete struct {
		// Method selects the completion algorithm
		Method string `yaml:"method"`

		// ExtentPolicy controls which segments define the working extent
		ExtentPolicy string `yaml:"extentPolicy"`

		// Margin is the padding in voxels used by the padded extent policy
		Margin [3]int `yaml:"margin"`

		// Priority decides which segment wins where masks overlap
		Priority string `yaml:"priority"`

		// VisibleSegmentsOnly restricts the operation to visible segments
		VisibleSegmentsOnly bool `yaml:"visibleSegmentsOnly"`

		// SliceAxis fixes the interpolation axis (0, 1, 2) or -1 for automatic
		SliceAxis int `yaml:"sliceAxis"`

		// ObjectSize is the expected object size in mm3 used to derive the
		// grow-cut footprint kernel
		ObjectSize float64 `yaml:"objectSize"`

		// ContrastNoiseRatio controls grow-cut sensitivity to intensity differences
		ContrastNoiseRatio float64 `yaml:"contrastNoiseRatio"`

		// PriorSegmentConfidence weights persistence of previously assigned labels
		PriorSegmentConfidence float64 `yaml:"priorSegmentConfidence"`
	} `yaml:"autoComplete"`

	// Statistics parameters
	Statistics struct {
		// VisibleSegmentsOnly restricts statistics to visible segments
		VisibleSegmentsOnly bool `yaml:"visibleSegmentsOnly"`

		// NonEmptyKeysOnly drops columns without any value from exports
		NonEmptyKeysOnly bool `yaml:"nonEmptyKeysOnly"`

		// GenerateClosedSurface creates missing closed surfaces from labelmaps
		GenerateClosedSurface bool `yaml:"generateClosedSurface"`

		// Enabled maps calculator names ("Labelmap") and measurement keys
		// ("Labelmap.voxel_count") to their enabled state. Missing entries
		// fall back to each calculator's defaults.
		Enabled map[string]bool `yaml:"enabled"`
	} `yaml:"statistics"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// SliceFormat is the image format used when exporting slices (png or tiff)
		SliceFormat string `yaml:"sliceFormat"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// These are the values the segment editor used for its auto-complete effect
	cfg.AutoComplete.Method = MethodMorphologicalSliceInterpolation
	cfg.AutoComplete.ExtentPolicy = ExtentUnionOfSegments
	cfg.AutoComplete.Margin = [3]int{1, 1, 1}
	cfg.AutoComplete.Priority = PriorityHigherInTableWins
	cfg.AutoComplete.VisibleSegmentsOnly = true
	cfg.AutoComplete.SliceAxis = -1
	cfg.AutoComplete.ObjectSize = 5.0
	cfg.AutoComplete.ContrastNoiseRatio = 0.8
	cfg.AutoComplete.PriorSegmentConfidence = 0.003

	cfg.Statistics.VisibleSegmentsOnly = true
	cfg.Statistics.NonEmptyKeysOnly = true
	cfg.Statistics.GenerateClosedSurface = false
	cfg.Statistics.Enabled = map[string]bool{}

	cfg.Output.Verbose = false
	cfg.Output.SliceFormat = "png"

	return cfg
}

// Validate checks enumerated settings and numeric ranges
func (c *Config) Validate() error {
	switch c.AutoComplete.Method {
	case MethodMorphologicalSliceInterpolation, MethodGrowCut:
	default:
		return fmt.Errorf("unknown auto-complete method %q", c.AutoComplete.Method)
	}
	switch c.AutoComplete.ExtentPolicy {
	case ExtentUnionOfSegments, ExtentUnionOfEffectiveSegments, ExtentUnionOfEffectiveSegmentsPadded:
	default:
		return fmt.Errorf("unknown extent policy %q", c.AutoComplete.ExtentPolicy)
	}
	switch c.AutoComplete.Priority {
	case PriorityHigherInTableWins, PriorityLaterInTableWins:
	default:
		return fmt.Errorf("unknown priority policy %q", c.AutoComplete.Priority)
	}
	for a, m := range c.AutoComplete.Margin {
		if m < 0 {
			return fmt.Errorf("margin along axis %d must be non-negative, got %d", a, m)
		}
	}
	if c.AutoComplete.SliceAxis < -1 || c.AutoComplete.SliceAxis > 2 {
		return fmt.Errorf("slice axis must be -1, 0, 1 or 2, got %d", c.AutoComplete.SliceAxis)
	}
	if c.AutoComplete.ObjectSize <= 0 {
		return fmt.Errorf("object size must be positive, got %g", c.AutoComplete.ObjectSize)
	}
	if c.AutoComplete.ContrastNoiseRatio < 0 {
		return fmt.Errorf("contrast-noise ratio must be non-negative, got %g", c.AutoComplete.ContrastNoiseRatio)
	}
	if c.AutoComplete.PriorSegmentConfidence < 0 || c.AutoComplete.PriorSegmentConfidence >= 1 {
		return fmt.Errorf("prior segment confidence must be in [0, 1), got %g", c.AutoComplete.PriorSegmentConfidence)
	}
	switch c.Output.SliceFormat {
	case "png", "tiff":
	default:
		return fmt.Errorf("unknown slice format %q", c.Output.SliceFormat)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if cfg.Statistics.Enabled == nil {
		cfg.Statistics.Enabled = map[string]bool{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
