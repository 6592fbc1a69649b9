package config

import (
	"fmt"
	"sort"
	"strconv"
)

// Parameter names of the string-keyed parameter map shared with editors
const (
	ParamAutoCompleteMethod     = "AutoCompleteMethod"
	ParamObjectSize             = "ObjectSize"
	ParamContrastNoiseRatio     = "ContrastNoiseRatio"
	ParamPriorSegmentConfidence = "PriorSegmentConfidence"
	ParamSliceAxis              = "SliceAxis"
	ParamExtentPolicy           = "ExtentPolicy"
	ParamPriority               = "Priority"
)

// Parameters renders the auto-complete settings as the string map editors
// persist, e.g. {"AutoCompleteMethod": "GROWCUT"}.
func (c *Config) Parameters() map[string]string {
	ac := c.AutoComplete
	return map[string]string{
		ParamAutoCompleteMethod:     ac.Method,
		ParamObjectSize:             strconv.FormatFloat(ac.ObjectSize, 'g', -1, 64),
		ParamContrastNoiseRatio:     strconv.FormatFloat(ac.ContrastNoiseRatio, 'g', -1, 64),
		ParamPriorSegmentConfidence: strconv.FormatFloat(ac.PriorSegmentConfidence, 'g', -1, 64),
		ParamSliceAxis:              strconv.Itoa(ac.SliceAxis),
		ParamExtentPolicy:           ac.ExtentPolicy,
		ParamPriority:               ac.Priority,
	}
}

// WithParameters returns a copy of the configuration with the given string
// parameters applied on top. Unknown keys are rejected so typos do not pass
// silently. The receiver is never modified.
func (c *Config) WithParameters(params map[string]string) (*Config, error) {
	out := *c
	out.Statistics.Enabled = make(map[string]bool, len(c.Statistics.Enabled))
	for k, v := range c.Statistics.Enabled {
		out.Statistics.Enabled[k] = v
	}

	// Apply in key order so error messages are deterministic
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params[key]
		var err error
		switch key {
		case ParamAutoCompleteMethod:
			out.AutoComplete.Method = value
		case ParamExtentPolicy:
			out.AutoComplete.ExtentPolicy = value
		case ParamPriority:
			out.AutoComplete.Priority = value
		case ParamObjectSize:
			out.AutoComplete.ObjectSize, err = strconv.ParseFloat(value, 64)
		case ParamContrastNoiseRatio:
			out.AutoComplete.ContrastNoiseRatio, err = strconv.ParseFloat(value, 64)
		case ParamPriorSegmentConfidence:
			out.AutoComplete.PriorSegmentConfidence, err = strconv.ParseFloat(value, 64)
		case ParamSliceAxis:
			out.AutoComplete.SliceAxis, err = strconv.Atoi(value)
		default:
			return nil, fmt.Errorf("unknown parameter %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for parameter %s: %w", value, key, err)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
