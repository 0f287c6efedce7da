// Command classify groups an executor run's measurement logs into
// classes and mines bit constraints and linear relations from each
// class, following the flow classifier_analyzer.py lays out: classify
// every experiment directory under -o into a class id, then hand the
// resulting { class -> measurements } map to the analyzer.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scy-phy/plumber-go/pkgs/analyzer"
	"github.com/scy-phy/plumber-go/pkgs/ast"
	"github.com/scy-phy/plumber-go/pkgs/classification"
	"github.com/scy-phy/plumber-go/pkgs/codegen"
	"github.com/scy-phy/plumber-go/pkgs/config"
	"github.com/scy-phy/plumber-go/pkgs/measurement"
	"github.com/scy-phy/plumber-go/pkgs/parser"
)

func main() {
	var (
		outdir     string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classifies and analyzes the results of GTS execution based on user-defined criteria.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(outdir, configPath)
		},
	}

	cmd.Flags().StringVarP(&outdir, "outdir", "o", "", "Output directory of the executor to load the logs from")
	cmd.Flags().StringVarP(&configPath, "config", "c", "classifier.ini", "Configuration file for the classifier")
	_ = cmd.MarkFlagRequired("outdir")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(outdir, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	measurementMethod, err := cfg.GetStringOrError(config.SectionGeneral, config.KeyMeasurementMethod)
	if err != nil {
		return err
	}
	classificationMethod, err := cfg.GetStringOrError(config.SectionGeneral, config.KeyClassificationMethod)
	if err != nil {
		return err
	}
	method, ok := classification.Methods[classificationMethod]
	if !ok {
		return fmt.Errorf("unknown classification method %q", classificationMethod)
	}

	entries, err := os.ReadDir(outdir)
	if err != nil {
		return fmt.Errorf("reading outdir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	classified := map[int][]analyzer.Measurement{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		experimentDir := filepath.Join(outdir, entry.Name())
		fmt.Printf("classifying experiment %s...\n", experimentDir)

		m, err := parseMeasurement(experimentDir, measurementMethod)
		if err != nil {
			return fmt.Errorf("%s: %w", experimentDir, err)
		}

		classID, err := method(m, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", experimentDir, err)
		}
		classified[classID] = append(classified[classID], m)
		fmt.Printf("classified %s into class %d.\n", experimentDir, classID)
	}

	fuzzed, err := fuzzedBitsRange(outdir, cfg)
	if err != nil {
		return err
	}

	results, err := analyzer.AnalyzeFuzzedBits(classified, fuzzed)
	if err != nil {
		return err
	}

	printResults(results)
	return nil
}

func parseMeasurement(experimentDir, method string) (measurement.Measurement, error) {
	switch method {
	case config.MeasurementCache:
		return measurement.ParseCache(experimentDir)
	case config.MeasurementTime:
		return measurement.ParseInt(experimentDir, "time")
	case config.MeasurementBranchPredictor:
		return measurement.ParseInt(experimentDir, "mispredictions")
	default:
		return nil, fmt.Errorf("unknown measurement method %q", method)
	}
}

// fuzzedBitsRange recovers the bit window the analyzer should mine by
// re-parsing the GTS the generator wrote to outdir/gts.txt and locating
// its Fuzz operator. [general].fuzzed_bits_mode in the classifier config
// ("offset" or "cache_line") overrides the recovered mode when a GTS
// fuzzes more than one field or none at all.
func fuzzedBitsRange(outdir string, cfg *config.Config) (analyzer.FuzzedBitsRange, error) {
	arch, err := cfg.GetStringOrError(config.SectionGeneral, config.KeyCPUArchitecture)
	if err != nil {
		return analyzer.FuzzedBitsRange{}, err
	}
	target, err := codegen.TargetForArchitecture(arch)
	if err != nil {
		return analyzer.FuzzedBitsRange{}, err
	}

	mode, ok := cfg.GetString(config.SectionGeneral, "fuzzed_bits_mode")
	if !ok {
		gtsBytes, err := os.ReadFile(filepath.Join(outdir, "gts.txt"))
		if err != nil {
			return analyzer.FuzzedBitsRange{}, fmt.Errorf("could not recover fuzzed bits range: %w", err)
		}
		gts, err := parser.New().Parse(string(gtsBytes))
		if err != nil {
			return analyzer.FuzzedBitsRange{}, fmt.Errorf("reparsing %s/gts.txt: %w", outdir, err)
		}
		fuzzMode, found := ast.FindFuzzMode(gts.Main)
		if !found && gts.Precondition != nil {
			fuzzMode, found = ast.FindFuzzMode(gts.Precondition)
		}
		if !found {
			return analyzer.FuzzedBitsRange{}, fmt.Errorf("GTS contains no fuzz operator; set [general] fuzzed_bits_mode explicitly")
		}
		if fuzzMode == '@' {
			mode = "offset"
		} else {
			mode = "cache_line"
		}
	}

	switch mode {
	case "offset":
		return analyzer.FuzzedBitsRange{Lo: 0, Hi: target.OffsetBits()}, nil
	case "cache_line":
		lo := target.OffsetBits()
		return analyzer.FuzzedBitsRange{Lo: lo, Hi: lo + target.SetBits()}, nil
	default:
		return analyzer.FuzzedBitsRange{}, fmt.Errorf("invalid fuzzed_bits_mode %q", mode)
	}
}

func printResults(results []analyzer.ClassResult) {
	for _, r := range results {
		fmt.Printf("==== class %d ====\n", r.ClassID)
		for _, c := range r.Constraints {
			fmt.Printf("constraint: %s[%d] = %d (match rate %.4f)\n", c.Register, c.Bit, c.Value, c.MatchRate)
		}
		for _, rel := range r.Relations {
			fmt.Printf("relation: %s = %d*%s + %d (match rate %.4f)\n", rel.Register2, rel.A, rel.Register1, rel.B, rel.MatchRate)
		}
	}
}
