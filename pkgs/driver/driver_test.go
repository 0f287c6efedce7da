package driver

import (
	"strings"
	"testing"

	"github.com/scy-phy/plumber-go/pkgs/codegen"
)

func TestRunS1SingleMemory(t *testing.T) {
	result, err := Run("M", codegen.ARM64Target{}, 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Experiments) != 1 {
		t.Fatalf("want 1 experiment, got %d", len(result.Experiments))
	}
	exp := result.Experiments[0]
	if !strings.Contains(exp.Main, "ldr x0,") {
		t.Errorf("want a memory load in main code, got %q", exp.Main)
	}
	if !strings.HasPrefix(exp.Setup, "// SETUP\n") {
		t.Errorf("want setup text to start with SETUP banner, got %q", exp.Setup)
	}
	if !strings.Contains(exp.Setup, "// PRECONDITION\n") {
		t.Errorf("want setup text to carry a PRECONDITION banner, got %q", exp.Setup)
	}
}

func TestRunWithPrecondition(t *testing.T) {
	result, err := Run("P(N) M", codegen.ARM64Target{}, 2, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	exp := result.Experiments[0]
	preconditionSection := strings.SplitN(exp.Setup, "// PRECONDITION\n", 2)[1]
	if !strings.Contains(preconditionSection, "nop") {
		t.Errorf("want the precondition's nop in the setup text's PRECONDITION section, got %q", preconditionSection)
	}
	if strings.Contains(exp.Main, "nop") {
		t.Errorf("precondition code must not leak into main text, got %q", exp.Main)
	}
}

func TestRunDeterministicReplayProducesSameAddresses(t *testing.T) {
	first, err := Run("M", codegen.ARM64Target{}, 10, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run("M", codegen.ARM64Target{}, 99, 99, &first.FinalState)
	if err != nil {
		t.Fatal(err)
	}
	for reg, val := range first.Experiments[0].Registers {
		if second.Experiments[0].Registers[reg] != val {
			t.Errorf("register %s: want %#x, got %#x", reg, val, second.Experiments[0].Registers[reg])
		}
	}
}

func TestRunEmptyGTSFails(t *testing.T) {
	if _, err := Run("", codegen.ARM64Target{}, 1, 1, nil); err == nil {
		t.Fatal("want an error for empty GTS source")
	}
}
