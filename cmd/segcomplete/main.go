package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"segcomplete/internal/models"
	"segcomplete/pkg/autocomplete"
	"segcomplete/pkg/completion"
	"segcomplete/pkg/config"
	"segcomplete/pkg/slices"
	"segcomplete/pkg/statistics"
	"segcomplete/pkg/stl"
	"segcomplete/pkg/visualization"
)

var log = config.NamedLogger("main")

// listFlag collects a repeatable string flag
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	var segmentDirs, overrides listFlag
	configPath := flag.String("config", "", "YAML configuration file (defaults are used when empty)")
	createConfig := flag.String("create-config", "", "Write a default configuration file to this path and exit")
	referenceDir := flag.String("reference", "", "Directory of numbered grey slices forming the reference volume")
	flag.Var(&segmentDirs, "segment", "Segment mask stack as name=dir (repeatable, table order)")
	spacing := flag.String("spacing", "1,1,1", "Voxel spacing x,y,slice-gap in mm")
	threshold := flag.Float64("threshold", 128, "Grey value at or above which mask pixels are foreground")
	methodName := flag.String("method", "", "Auto-complete method (MORPHOLOGICAL_SLICE_INTERPOLATION or GROWCUT); config value when empty")
	flag.Var(&overrides, "set", "Parameter override as Name=value (repeatable)")
	outputDir := flag.String("output", "output", "Directory for completed masks, statistics, STL and slices")
	statsFile := flag.String("stats", "statistics.csv", "Statistics CSV file name inside the output directory (empty disables)")
	exportSTL := flag.Bool("stl", false, "Write one STL surface per completed segment")
	extractSlices := flag.Bool("extract-slices", false, "Save label-coloured slices of the completed labelmap along all axes")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *createConfig != "" {
		if err := config.CreateDefaultConfigFile(*createConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *createConfig)
		return
	}

	if len(segmentDirs) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	config.SetVerbose(*verbose || cfg.Output.Verbose)

	voxelSpacing, err := parseSpacing(*spacing)
	if err != nil {
		log.Fatalf("Invalid spacing: %v", err)
	}
	params, err := parseOverrides(overrides)
	if err != nil {
		log.Fatalf("Invalid parameter override: %v", err)
	}

	method := cfg.AutoComplete.Method
	if m, ok := params[config.ParamAutoCompleteMethod]; ok {
		method = m
	}
	if *methodName != "" {
		method = *methodName
	}
	m, err := completion.ParseMethod(method)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println("================================")
	fmt.Println("SEGMENTATION AUTO-COMPLETE")
	fmt.Println("================================")

	segmentation := models.NewSegmentation()
	for _, arg := range segmentDirs {
		name, dir, ok := strings.Cut(arg, "=")
		if !ok || name == "" || dir == "" {
			log.Fatalf("Segment %q must be given as name=dir", arg)
		}
		mask, err := slices.Load(slices.Params{Dir: dir, Spacing: voxelSpacing, Threshold: *threshold})
		if err != nil {
			log.Fatalf("Failed to load segment %s: %v", name, err)
		}
		seg := models.NewSegment(segmentation.GenerateUniqueSegmentID(name), name)
		seg.BinaryLabelmap = mask
		if err := segmentation.AddSegment(seg); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("Loaded segment %s: %d voxels in %s\n", name, mask.CountNonZero(), mask.Extent)
	}

	var reference *models.OrientedVolume
	if *referenceDir != "" {
		if reference, err = slices.Load(slices.Params{Dir: *referenceDir, Spacing: voxelSpacing}); err != nil {
			log.Fatalf("Failed to load reference: %v", err)
		}
		fmt.Printf("Loaded reference volume %s\n", reference.Extent)
	}

	session := autocomplete.NewSession(segmentation, reference, cfg)

	fmt.Printf("Running %s...\n", m)
	startTime := time.Now()
	result, err := session.Preview(m, params)
	if err != nil {
		log.Fatalf("Auto-complete failed: %v", err)
	}
	for _, w := range result.Warnings {
		log.Warn(w)
	}
	if result.Outcome.Skipped {
		fmt.Printf("Nothing to do: %s\n", result.Outcome.Reason)
		return
	}
	fmt.Printf("Auto-complete finished in %.2f seconds\n", time.Since(startTime).Seconds())

	completed, assignment := result.Completed, result.Assignment
	if _, err := session.Apply(result); err != nil {
		log.Fatalf("Failed to apply result: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	for _, id := range segmentation.SegmentIDs() {
		dir := filepath.Join(*outputDir, "masks", id)
		if err := slices.SaveMask(segmentation.Segment(id).BinaryLabelmap, dir); err != nil {
			log.Fatalf("Failed to save mask of %s: %v", id, err)
		}
		fmt.Printf("Saved completed mask of %s to %s\n", id, dir)
	}

	if *exportSTL {
		statistics.GenerateClosedSurfaces(segmentation)
		for _, id := range segmentation.SegmentIDs() {
			path := filepath.Join(*outputDir, id+".stl")
			if err := stl.SaveToSTL(path, segmentation.Segment(id).ClosedSurface.Triangles); err != nil {
				log.Fatalf("Failed to save STL for %s: %v", id, err)
			}
			fmt.Printf("Saved surface of %s to %s\n", id, path)
		}
	}

	if *statsFile != "" {
		logic := statistics.NewLogic(cfg)
		logic.ComputeStatistics(segmentation, reference, cfg.Statistics.VisibleSegmentsOnly)
		path := filepath.Join(*outputDir, *statsFile)
		if err := logic.ExportToCSVFile(path, cfg.Statistics.NonEmptyKeysOnly); err != nil {
			log.Fatalf("%v", err)
		}
		printTable(logic.ExportToTable(cfg.Statistics.NonEmptyKeysOnly))
		fmt.Printf("Statistics saved to %s\n", path)
	}

	if *extractSlices {
		viewer := visualization.NewLabelViewer(completed, visualization.LabelColors(segmentation, assignment))
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(*outputDir, "slices", axis)
			if _, err := viewer.SaveSliceSequence(axis, axisDir, cfg.Output.SliceFormat); err != nil {
				log.Warnf("Failed to save %s-axis slices: %v", axis, err)
				continue
			}
			fmt.Printf("Saved %s-axis slices to %s\n", axis, axisDir)
		}
	}
}

func parseSpacing(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected three comma separated values, got %q", s)
	}
	for a, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v <= 0 {
			return out, fmt.Errorf("spacing component %q must be a positive number", p)
		}
		out[a] = v
	}
	return out, nil
}

func parseOverrides(list []string) (map[string]string, error) {
	params := make(map[string]string, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not Name=value", kv)
		}
		params[k] = v
	}
	return params, nil
}

func printTable(table *statistics.Table) {
	names := make([]string, len(table.Columns))
	for n, c := range table.Columns {
		names[n] = c.Name
		if c.Units != "" {
			names[n] += " [" + c.Units + "]"
		}
	}
	fmt.Println(strings.Join(names, "\t"))
	for _, row := range table.Rows {
		fmt.Println(strings.Join(row, "\t"))
	}
}
