// Command gen turns a Generative Testcase Specification into concrete
// assembly testcases, following the CLI surface plumber/main.py
// defines: parse the GTS, expand it into experiments, code-generate
// each one (retrying on a recoverable offset conflict), and either
// print the result or write one subdirectory per experiment under an
// output directory.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scy-phy/plumber-go/pkgs/codegen"
	"github.com/scy-phy/plumber-go/pkgs/driver"
	"github.com/scy-phy/plumber-go/pkgs/parser"
)

const defaultStateFile = "state.json"

func main() {
	var (
		deterministicFile string
		verbose           bool
		outdir            string
	)

	cmd := &cobra.Command{
		Use:   "gen [flags] GTS",
		Short: "Transforms a Generative Testcase Specification (GTS) into assembly code.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], cmd.Flags().Changed("deterministic"), deterministicFile, verbose, outdir)
		},
	}

	cmd.Flags().StringVarP(&deterministicFile, "deterministic", "d", defaultStateFile,
		"Load placeholder mappings from the given state JSON file (default \"state.json\" if the flag is given without a value) and keep them across experiments, then write the final mappings back to it. If the file does not exist yet, every experiment gets fresh mappings and the last experiment's are written.")
	cmd.Flags().Lookup("deterministic").NoOptDefVal = defaultStateFile
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable more detailed output.")
	cmd.Flags().StringVarP(&outdir, "outdir", "o", "", "Output directory to store the generated code files in. If omitted, the generated code is written to stdout.")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(gtsText string, deterministic bool, stateFile string, verbose bool, outdir string) error {
	if verbose {
		p := parser.New()
		gts, err := p.Parse(gtsText)
		if err != nil {
			return fmt.Errorf("parsing GTS: %w", err)
		}
		fmt.Println("====== AST =====")
		fmt.Println(gts.String())
	}

	var initialState *codegen.DeterministicState
	if deterministic {
		if state, err := loadState(stateFile); err == nil {
			initialState = state
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("loading deterministic state %s: %w", stateFile, err)
		}
	}

	target := codegen.ARM64Target{}
	result, err := driver.Run(gtsText, target, rand.Uint64(), rand.Uint64(), initialState)
	if err != nil {
		return fmt.Errorf("code generation failed: %w", err)
	}

	if verbose {
		fmt.Printf("====== Expanded GTS: %d experiment(s) =====\n", len(result.Experiments))
	}

	if outdir != "" {
		if err := os.MkdirAll(outdir, 0o755); err != nil {
			return fmt.Errorf("creating outdir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outdir, "gts.txt"), []byte(gtsText), 0o644); err != nil {
			return fmt.Errorf("writing gts.txt: %w", err)
		}
	}

	for i, exp := range result.Experiments {
		if outdir != "" {
			if err := writeExperiment(outdir, i, exp); err != nil {
				return err
			}
		}
		if verbose || outdir == "" {
			printExperiment(exp)
		}
	}

	if deterministic {
		if err := saveState(stateFile, result.FinalState); err != nil {
			return fmt.Errorf("writing deterministic state %s: %w", stateFile, err)
		}
	}

	return nil
}

func writeExperiment(outdir string, index int, exp driver.Experiment) error {
	codedir := filepath.Join(outdir, fmt.Sprintf("%08d", index))
	if err := os.MkdirAll(codedir, 0o755); err != nil {
		return fmt.Errorf("creating experiment dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(codedir, "asm_setup.h"), []byte(exp.Setup), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(codedir, "asm.h"), []byte(exp.Main), 0o644); err != nil {
		return err
	}
	registersJSON, err := json.Marshal(exp.Registers)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(codedir, "registers.json"), registersJSON, 0o644)
}

func printExperiment(exp driver.Experiment) {
	fmt.Println("==== SETUP ====")
	fmt.Println(exp.Setup)
	fmt.Println("==== MAIN ====")
	fmt.Println(exp.Main)
	fmt.Println("==== REGISTERS ====")
	registersJSON, _ := json.Marshal(exp.Registers)
	fmt.Println(string(registersJSON))
}

func loadState(path string) (*codegen.DeterministicState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state codegen.DeterministicState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("malformed deterministic state file: %w", err)
	}
	return &state, nil
}

func saveState(path string, state codegen.DeterministicState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
