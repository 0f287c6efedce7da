package codegen

import (
	"math/rand/v2"
	"testing"

	"github.com/scy-phy/plumber-go/pkgs/ast"
)

func TestPoolUniqueness(t *testing.T) {
	p := NewPool("test", 0, 64, rand.New(rand.NewPCG(1, 1)))
	seen := make(map[int]bool)
	for i := 0; i < p.Capacity(); i++ {
		v, err := p.PopRandom()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if seen[v] {
			t.Fatalf("draw %d: value %d returned twice", i, v)
		}
		seen[v] = true
	}
	if _, err := p.PopRandom(); err == nil {
		t.Fatal("want PoolExhaustionError after capacity() draws")
	}
}

func TestPoolCrossesRemainderThreshold(t *testing.T) {
	p := NewPool("test", 0, 20, rand.New(rand.NewPCG(7, 7)))
	for i := 0; i < 20; i++ {
		if _, err := p.PopRandom(); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}
}

func defaultMemExperiment() ast.Experiment {
	return ast.Experiment{&ast.Memory{
		SetAttr: ast.DefaultAttr(ast.PlaceholderSet),
		TagAttr: ast.DefaultAttr(ast.PlaceholderTag),
	}}
}

func TestDeterministicReplay(t *testing.T) {
	g1 := NewGenerator(ARM64Target{}, 42, 99)
	if err := g1.Reset(); err != nil {
		t.Fatal(err)
	}
	_, _, regs1, err := g1.Generate(defaultMemExperiment())
	if err != nil {
		t.Fatal(err)
	}
	state := g1.DumpState()

	g2 := NewGenerator(ARM64Target{}, 1, 99)
	if err := g2.LoadState(state); err != nil {
		t.Fatal(err)
	}
	if err := g2.Reset(); err != nil {
		t.Fatal(err)
	}
	_, _, regs2, err := g2.Generate(defaultMemExperiment())
	if err != nil {
		t.Fatal(err)
	}

	for reg, val := range regs1 {
		if regs2[reg] != val {
			t.Errorf("register %s: want %#x, got %#x", reg, val, regs2[reg])
		}
	}
}

func TestMemoryOffsetOverrideOutOfBounds(t *testing.T) {
	g := NewGenerator(ARM64Target{}, 3, 3)
	if err := g.Reset(); err != nil {
		t.Fatal(err)
	}
	bad := -1
	exp := ast.Experiment{&ast.Memory{
		SetAttr:     ast.DefaultAttr(ast.PlaceholderSet),
		TagAttr:     ast.DefaultAttr(ast.PlaceholderTag),
		OverrideSet: &bad,
	}}
	if _, _, _, err := g.Generate(exp); err == nil {
		t.Fatal("want OffsetError for out-of-bounds override")
	}
}

func TestMisalignedBranchDistanceViolatesInvariant(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want a precondition violation for a non-multiple-of-4 branch distance")
		}
	}()
	g := NewGenerator(ARM64Target{}, 5, 5)
	if err := g.Reset(); err != nil {
		t.Fatal(err)
	}
	exp := ast.Experiment{&ast.Branch{
		CondAttr: ast.DefaultAttr(ast.PlaceholderCondition),
		Taken:    true,
		Distance: 13,
	}}
	g.Generate(exp)
}
