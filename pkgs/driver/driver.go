// Package driver wires the lexer/parser/AST/codegen pipeline together
// the way plumber/main.py's GTS.codegen driver loop does: expand a GTS
// once, then for every resulting experiment reset the generator (unless
// running deterministically) and emit its setup/main assembly plus the
// register-contents map the analyzer later consumes. It also owns the
// bounded offset-conflict retry the spec's CodegenOffsetException
// recovery policy calls for.
package driver

import (
	"fmt"

	"github.com/scy-phy/plumber-go/pkgs/ast"
	"github.com/scy-phy/plumber-go/pkgs/codegen"
	"github.com/scy-phy/plumber-go/pkgs/parser"
)

// MaxOffsetRetries bounds how many attempts Run makes at generating the
// whole experiment batch; after a CodegenOffsetException the batch is
// regenerated from scratch until this many attempts have failed, per spec.md
// §7's "bounded retry with fresh randomness (3 attempts)".
const MaxOffsetRetries = 3

// Experiment is one fully code-generated testcase: ready-to-write setup
// and main assembly text plus the register contents the analyzer needs.
type Experiment struct {
	Setup     string
	Main      string
	Registers map[string]uint64
}

// Result is the full output of running one GTS through the pipeline.
type Result struct {
	GTS         *ast.GTS
	Experiments []Experiment
	FinalState  codegen.DeterministicState
}

// Run parses text, expands it, and code-generates every resulting
// experiment against target. If initialState is non-nil the generator
// starts in deterministic mode, replaying initialState's mappings
// before expansion; the returned Result.FinalState is always populated
// (from the generator's tables) so callers can persist it for the next
// deterministic run.
func Run(text string, target codegen.Target, poolSeed, mnemonicSeed uint64, initialState *codegen.DeterministicState) (*Result, error) {
	p := parser.New()
	gts, err := p.Parse(text)
	if err != nil {
		return nil, err
	}

	gen := codegen.NewGenerator(target, poolSeed, mnemonicSeed)
	if initialState != nil {
		if err := gen.LoadState(*initialState); err != nil {
			return nil, err
		}
	}

	var result *Result
	var lastErr error
	for attempt := 0; attempt < MaxOffsetRetries; attempt++ {
		result, lastErr = runOnce(gts, gen)
		if lastErr == nil {
			return result, nil
		}
		if _, ok := lastErr.(*codegen.OffsetError); !ok {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("driver: code generation failed after %d attempts: %w", MaxOffsetRetries, lastErr)
}

// runOnce expands gts and generates code for every experiment exactly
// once; it returns the first *codegen.OffsetError it hits so Run can
// decide whether to retry.
func runOnce(gts *ast.GTS, gen *codegen.Generator) (*Result, error) {
	state := ast.NewExpansionState(gen)

	var precondition ast.Experiment
	if gts.Precondition != nil {
		exps, err := gts.Precondition.Expand(state)
		if err != nil {
			return nil, err
		}
		if len(exps) != 1 {
			return nil, &ast.SemanticError{Message: "precondition must expand to a single experiment"}
		}
		precondition = exps[0]
	}

	experiments, err := gts.ExpandMain(state)
	if err != nil {
		return nil, err
	}

	out := make([]Experiment, 0, len(experiments))
	for _, exp := range experiments {
		if err := gen.Reset(); err != nil {
			return nil, err
		}
		setupText, mainText, registers, err := gen.GenerateSections(precondition, exp)
		if err != nil {
			return nil, err
		}
		out = append(out, Experiment{Setup: setupText, Main: mainText, Registers: registers})
	}

	return &Result{GTS: gts, Experiments: out, FinalState: gen.DumpState()}, nil
}
