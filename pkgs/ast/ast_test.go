package ast

import "testing"

// fakeGenerator supplies the reference target's fuzzed-field widths
// without pulling in the codegen package.
type fakeGenerator struct{}

func (fakeGenerator) OffsetWidth() int { return 6 }
func (fakeGenerator) SetWidth() int    { return 7 }

func newState() *ExpansionState {
	return NewExpansionState(fakeGenerator{})
}

func memDefault() *Memory {
	return &Memory{SetAttr: DefaultAttr(PlaceholderSet), TagAttr: DefaultAttr(PlaceholderTag)}
}

func TestProductLaw(t *testing.T) {
	a := &Expression{Children: []Node{memDefault()}}
	b := &Expression{Children: []Node{&Nop{}}}
	e := &Expression{Children: []Node{a, b}}

	exps, err := e.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != 1 {
		t.Fatalf("want 1 experiment, got %d", len(exps))
	}
	if len(exps[0]) != 2 {
		t.Fatalf("want length-2 experiment, got %d", len(exps[0]))
	}
	if _, ok := exps[0][0].(*Memory); !ok {
		t.Errorf("want first directive Memory, got %T", exps[0][0])
	}
	if _, ok := exps[0][1].(*Nop); !ok {
		t.Errorf("want second directive Nop, got %T", exps[0][1])
	}
}

func TestLoopWithoutVariable(t *testing.T) {
	loop := &Loop{Body: &Expression{Children: []Node{memDefault()}}, N: 3}
	exps, err := loop.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != 1 || len(exps[0]) != 3 {
		t.Fatalf("want 1 experiment of length 3, got %d experiments of length %v", len(exps), exps)
	}
}

func TestLoopWithVariable(t *testing.T) {
	body := &Expression{Children: []Node{
		&Memory{
			SetAttr: &AttrValue{Head: mustPlaceholder(t, "s1"), Terms: []Term{{Sign: 1, IsIdent: true, Ident: "i"}}},
			TagAttr: DefaultAttr(PlaceholderTag),
		},
	}}
	loop := &Loop{Body: body, N: 4, HasVar: true, Step: 1, Var: "i"}
	exps, err := loop.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != 1 || len(exps[0]) != 4 {
		t.Fatalf("want 1 experiment of length 4, got %v", exps)
	}
	for i, d := range exps[0] {
		m := d.(*Memory)
		if m.ComputedOffsetSet != i {
			t.Errorf("directive %d: want computed offset %d, got %d", i, i, m.ComputedOffsetSet)
		}
	}
}

func TestFuzzCardinality(t *testing.T) {
	body := &Expression{Children: []Node{memDefault()}}
	fz := &Fuzz{Body: body, Mode: '@'}
	exps, err := fz.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != 64 {
		t.Fatalf("want 64 experiments, got %d", len(exps))
	}
	seen := make(map[int]bool)
	for _, e := range exps {
		m := e[0].(*Memory)
		if m.OverrideOffset == nil {
			t.Fatal("want OverrideOffset set")
		}
		seen[*m.OverrideOffset] = true
	}
	if len(seen) != 64 {
		t.Fatalf("want offsets to cover [0,64) exactly once each, got %d distinct values", len(seen))
	}
}

func TestFuzzTwoMemoryCardinality(t *testing.T) {
	body := &Expression{Children: []Node{memDefault(), memDefault()}}
	fz := &Fuzz{Body: body, Mode: '$'}
	exps, err := fz.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	want := 1 << (7 * 2)
	if len(exps) != want {
		t.Fatalf("want %d experiments, got %d", want, len(exps))
	}
	pairs := make(map[[2]int]bool)
	for _, e := range exps {
		m1 := e[0].(*Memory)
		m2 := e[1].(*Memory)
		pairs[[2]int{*m1.OverrideSet, *m2.OverrideSet}] = true
	}
	if len(pairs) != want {
		t.Fatalf("want %d distinct pairs, got %d", want, len(pairs))
	}
}

func TestShuffleDedup(t *testing.T) {
	body := &Expression{Children: []Node{&Nop{}, &Nop{}, &Nop{}}}
	sh := &Shuffle{Body: body}
	exps, err := sh.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	// Three structurally identical Nops: every permutation collapses to
	// one experiment after dedup.
	if len(exps) != 1 {
		t.Fatalf("want 1 deduplicated experiment, got %d", len(exps))
	}
}

func TestSubsetExcludesTrivial(t *testing.T) {
	body := &Expression{Children: []Node{
		&Arithmetic{UAttr: DefaultAttr(PlaceholderOperand), VAttr: DefaultAttr(PlaceholderOperand)},
		&Nop{},
	}}
	su := &Subset{Body: body}
	exps, err := su.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range exps {
		if len(e) == 0 || len(e) == 2 {
			t.Fatalf("want only proper non-empty subsets, got length %d", len(e))
		}
	}
}

func TestMergePivotEvolutionStaysInBounds(t *testing.T) {
	left := &Expression{Children: []Node{&Nop{}, &Arithmetic{UAttr: DefaultAttr(PlaceholderOperand), VAttr: DefaultAttr(PlaceholderOperand)}}}
	right := &Expression{Children: []Node{&Nop{}, &Nop{}}}
	m := &Merge{Left: left, Right: right}

	exps, err := m.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) == 0 {
		t.Fatal("want at least the unchanged concatenation")
	}
	length := len(exps[0])
	if exps[0].String() != (Experiment{left.Children[0].(Directive), left.Children[1].(Directive), right.Children[0].(Directive), right.Children[1].(Directive)}).String() {
		t.Errorf("first variant should be the unchanged concatenation, got %s", exps[0])
	}
	for _, e := range exps {
		if len(e) != length {
			t.Fatalf("variant changed length: want %d, got %d", length, len(e))
		}
	}
}

func mustPlaceholder(t *testing.T, name string) Placeholder {
	t.Helper()
	p, err := ParsePlaceholder(name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func memWithSet(t *testing.T, setName string) *Memory {
	t.Helper()
	return &Memory{SetAttr: &AttrValue{Head: mustPlaceholder(t, setName)}, TagAttr: DefaultAttr(PlaceholderTag)}
}

// TestMergePivotEvolutionMatchesReferenceSequence pins the exact ordered
// variant list for a 2-vs-2 merge, not just length/first-element
// invariants: A=[s1,s2], B=[s3,s4] should walk ABMN -> AMBN -> MANB ->
// MNAB, since each variant's pivot swaps chain against the previous
// variant rather than being re-derived from the original concatenation.
func TestMergePivotEvolutionMatchesReferenceSequence(t *testing.T) {
	a := memWithSet(t, "s1")
	b := memWithSet(t, "s2")
	m := memWithSet(t, "s3")
	n := memWithSet(t, "s4")

	left := &Expression{Children: []Node{a, b}}
	right := &Expression{Children: []Node{m, n}}
	merge := &Merge{Left: left, Right: right}

	exps, err := merge.Expand(newState())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		(Experiment{a, b, m, n}).String(),
		(Experiment{a, m, b, n}).String(),
		(Experiment{m, a, n, b}).String(),
		(Experiment{m, n, a, b}).String(),
	}
	if len(exps) != len(want) {
		t.Fatalf("want %d variants, got %d: %v", len(want), len(exps), exps)
	}
	for i, w := range want {
		if exps[i].String() != w {
			t.Errorf("variant %d: want %s, got %s", i, w, exps[i])
		}
	}
}
