package analyzer

import (
	"testing"
)

// fakeMeasurement is a test double satisfying Measurement directly,
// without pulling in pkgs/measurement's log-parsing machinery.
type fakeMeasurement struct {
	regs map[string]uint64
}

func (f fakeMeasurement) RegisterContents() (map[string]uint64, error) {
	return f.regs, nil
}

func TestSolveAffineMod2K(t *testing.T) {
	pairs := [][2]uint64{{0, 5}, {1, 8}, {2, 11}, {3, 14}}
	a, b, ok := SolveAffineMod2K(pairs, 7)
	if !ok {
		t.Fatal("expected solvable system")
	}
	if a != 3 || b != 5 {
		t.Errorf("want a=3, b=5, got a=%d, b=%d", a, b)
	}
}

func TestSolveAffineMod2KInconsistent(t *testing.T) {
	pairs := [][2]uint64{{0, 5}, {1, 8}, {2, 99}}
	if _, _, ok := SolveAffineMod2K(pairs, 7); ok {
		t.Fatal("expected inconsistent system to be rejected")
	}
}

func TestSolveAffineMod2KNeedsTwoPairs(t *testing.T) {
	if _, _, ok := SolveAffineMod2K([][2]uint64{{0, 5}}, 7); ok {
		t.Fatal("expected single pair to be unsolvable")
	}
}

// TestExtractRelationsSoundness exercises Step 2b + validation directly
// (testable property 9): fed every (x, y=3x+5 mod 128) pair with no
// noise, it must solve to exactly a=3, b=5, and validating against a
// class where the relation holds for every measurement must report
// match rate 1.0.
func TestExtractRelationsSoundness(t *testing.T) {
	const k = 7
	const mod = 1 << k
	fuzzed := FuzzedBitsRange{Lo: 0, Hi: k}

	var candidates []pairCandidate
	var contents []map[string]uint64
	for x := uint64(0); x < mod; x++ {
		y := (3*x + 5) % mod
		candidates = append(candidates, pairCandidate{reg1: "rA", reg2: "rB", val1: x, val2: y})
		contents = append(contents, map[string]uint64{"rA": x, "rB": y})
	}

	relations := extractRelations(candidates, fuzzed)
	if len(relations) != 1 {
		t.Fatalf("want exactly 1 relation, got %d", len(relations))
	}
	rel := relations[0]
	if rel.Register1 != "rA" || rel.Register2 != "rB" || rel.A != 3 || rel.B != 5 {
		t.Fatalf("want relation rA_rB: y = 3*x + 5, got %+v", rel)
	}

	validateRelations(relations, contents, fuzzed)
	if relations[0].MatchRate != 1.0 {
		t.Errorf("want match rate 1.0, got %v", relations[0].MatchRate)
	}
}

// TestExtractConstraintsDetection exercises Step 2a + validation
// directly (testable property 10): every candidate shares bit 1 set,
// with bits 0 and 2 varying freely, so the only constraint extracted
// must be (r, bit 1, value 1), and validating against a class where
// that bit is constant for every measurement reports match rate 1.0.
func TestExtractConstraintsDetection(t *testing.T) {
	fuzzed := FuzzedBitsRange{Lo: 0, Hi: 3}
	candidates := []candidateAddr{
		{register: "r", value: 0b010},
		{register: "r", value: 0b011},
		{register: "r", value: 0b110},
		{register: "r", value: 0b111},
	}

	constraints := extractConstraints(candidates, fuzzed)
	if len(constraints) != 1 {
		t.Fatalf("want exactly 1 constraint, got %d: %+v", len(constraints), constraints)
	}
	c := constraints[0]
	if c.Register != "r" || c.Bit != 1 || c.Value != 1 {
		t.Fatalf("want constraint (r, bit 1, value 1), got %+v", c)
	}

	contents := []map[string]uint64{
		{"r": 0b010},
		{"r": 0b011},
		{"r": 0b110},
		{"r": 0b111},
	}
	validateConstraints(constraints, contents)
	if constraints[0].MatchRate != 1.0 {
		t.Errorf("want match rate 1.0, got %v", constraints[0].MatchRate)
	}
}

// TestExtractRelationsRejectsInsufficientEquations mirrors spec.md
// §4.5's "skip" failure semantics: a register pair with fewer than two
// recorded equations yields no relation.
func TestExtractRelationsRejectsInsufficientEquations(t *testing.T) {
	candidates := []pairCandidate{{reg1: "rA", reg2: "rB", val1: 1, val2: 8}}
	if relations := extractRelations(candidates, FuzzedBitsRange{Lo: 0, Hi: 7}); len(relations) != 0 {
		t.Fatalf("want no relation from a single equation, got %+v", relations)
	}
}

// TestAnalyzeFuzzedBitsUniformNoSignal is the trivial baseline case: a
// full, uniform sweep with no hidden correlation produces no candidates
// at all, hence no constraints and no relations for that class.
func TestAnalyzeFuzzedBitsUniformNoSignal(t *testing.T) {
	const k = 3
	const width = 1 << k
	fuzzed := FuzzedBitsRange{Lo: 0, Hi: k}

	var measurements []Measurement
	for v1 := uint64(0); v1 < width; v1++ {
		for v2 := uint64(0); v2 < width; v2++ {
			measurements = append(measurements, fakeMeasurement{regs: map[string]uint64{"rA": v1, "rB": v2}})
		}
	}

	results, err := AnalyzeFuzzedBits(map[int][]Measurement{0: measurements}, fuzzed)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 class result, got %d", len(results))
	}
	if len(results[0].Constraints) != 0 {
		t.Errorf("want no constraints over a uniform sweep, got %+v", results[0].Constraints)
	}
	if len(results[0].Relations) != 0 {
		t.Errorf("want no relations over a uniform sweep, got %+v", results[0].Relations)
	}
}

// TestAnalyzeFuzzedBitsFindsOverrepresentedRelation runs the full
// pipeline (candidate selection through validation) over a uniform
// 8x8 baseline with one extra measurement added on the rB = 3*rA+5
// (mod 8) diagonal for every rA value. Every off-relation pair then
// matches its uniform-sampling expectation exactly (not a candidate);
// every on-relation pair is over-represented by the extra draw (a
// candidate), so the relation is recovered with no pair-candidate
// noise, while both registers' single-value candidates span their
// full range and so yield no constraint.
func TestAnalyzeFuzzedBitsFindsOverrepresentedRelation(t *testing.T) {
	const k = 3
	const width = 1 << k
	fuzzed := FuzzedBitsRange{Lo: 0, Hi: k}

	var measurements []Measurement
	for v1 := uint64(0); v1 < width; v1++ {
		for v2 := uint64(0); v2 < width; v2++ {
			measurements = append(measurements, fakeMeasurement{regs: map[string]uint64{"rA": v1, "rB": v2}})
		}
	}
	for v1 := uint64(0); v1 < width; v1++ {
		v2 := (3*v1 + 5) % width
		measurements = append(measurements, fakeMeasurement{regs: map[string]uint64{"rA": v1, "rB": v2}})
	}

	results, err := AnalyzeFuzzedBits(map[int][]Measurement{0: measurements}, fuzzed)
	if err != nil {
		t.Fatal(err)
	}
	if len(results[0].Constraints) != 0 {
		t.Errorf("want no constraints, got %+v", results[0].Constraints)
	}
	if len(results[0].Relations) != 1 {
		t.Fatalf("want exactly 1 relation, got %d: %+v", len(results[0].Relations), results[0].Relations)
	}
	rel := results[0].Relations[0]
	if rel.Register1 != "rA" || rel.Register2 != "rB" || rel.A != 3 || rel.B != 5 {
		t.Fatalf("want relation rA_rB: y = 3*x + 5, got %+v", rel)
	}
	const wantMatchRate = 16.0 / 72.0
	if diff := rel.MatchRate - wantMatchRate; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("want match rate %v, got %v", wantMatchRate, rel.MatchRate)
	}
}
