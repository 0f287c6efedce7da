// Package analyzer mines per-class bit constraints and pairwise linear
// relations from classified measurements, per spec.md §4.5. Grounded in
// analysis/analysis_functions.py and analysis/analysis_utils.py: the
// candidate-selection counting functions (occ1/occN/expected1/expectedN)
// and the per-register-pair linear system are carried over verbatim in
// structure, with sympy.solve replaced by SolveAffineMod2K (solver.go)
// since a full symbolic CAS has no Go equivalent in the retrieved pack.
package analyzer

import (
	"fmt"
	"sort"
)

// Measurement is the read-only view the analyzer needs of a classified
// testcase: its final register contents. This is a minimal Go interface
// rather than a concrete type so the analyzer has no compile-time
// dependency on pkgs/measurement's log-parsing machinery — the Go
// analogue of the Python analyzer's TYPE_CHECKING-only import of
// Measurement. pkgs/measurement's Cache and Int types already satisfy
// it structurally.
type Measurement interface {
	RegisterContents() (map[string]uint64, error)
}

// FuzzedBitsRange is the half-open bit window [Lo, Hi) that fuzz
// operators enumerated and the analyzer mines for constraints and
// relations.
type FuzzedBitsRange struct {
	Lo, Hi int
}

func (r FuzzedBitsRange) width() int { return r.Hi - r.Lo }

// Constraint records that bit i of register Register holds a constant
// Bit value across every candidate address seen for a class.
type Constraint struct {
	Register string
	Bit      int
	Value    int

	// MatchRate is the fraction of the class's measurements whose
	// register actually holds Value at bit Bit.
	MatchRate float64
}

// Relation records a linear relation Reg2 ≡ A*Reg1 + B (mod 2^k)
// inferred from candidate interrelated address bits.
type Relation struct {
	Register1, Register2 string
	A, B                  uint64

	// MatchRate is the fraction of the class's measurements that
	// actually satisfy the relation.
	MatchRate float64
}

// ClassResult is one class's mined constraints and relations.
type ClassResult struct {
	ClassID     int
	Constraints []Constraint
	Relations   []Relation
}

// candidateAddr is a (register, bits-value) pair whose occurrence count
// across a class's measurements deviated from the uniform-sampling
// expectation.
type candidateAddr struct {
	register string
	value    uint64
}

// AnalyzeFuzzedBits runs candidate selection, constraint extraction,
// relation extraction, and validation over every class in
// classification, per spec.md §4.5. A class with no measurements is
// skipped silently; a register pair whose linear system is unsolvable
// contributes no relation. Non-linear dependencies are never inferred.
func AnalyzeFuzzedBits(classification map[int][]Measurement, fuzzed FuzzedBitsRange) ([]ClassResult, error) {
	registers, err := commonRegisters(classification)
	if err != nil {
		return nil, err
	}

	classIDs := make([]int, 0, len(classification))
	for id := range classification {
		classIDs = append(classIDs, id)
	}
	sort.Ints(classIDs)

	var results []ClassResult
	for _, classID := range classIDs {
		bittable := classification[classID]
		if len(bittable) == 0 {
			continue
		}
		contents, err := registerContentsTable(bittable)
		if err != nil {
			return nil, err
		}

		candidates := candidateSingle(contents, registers, fuzzed)
		pairCandidates := candidatePairs(contents, registers, fuzzed)

		constraints := extractConstraints(candidates, fuzzed)
		relations := extractRelations(pairCandidates, fuzzed)

		validateConstraints(constraints, contents)
		validateRelations(relations, contents, fuzzed)

		results = append(results, ClassResult{
			ClassID:     classID,
			Constraints: constraints,
			Relations:   relations,
		})
	}
	return results, nil
}

// registerContentsTable reads every measurement's register contents
// once, up front, so candidate selection and validation don't re-parse.
func registerContentsTable(bittable []Measurement) ([]map[string]uint64, error) {
	out := make([]map[string]uint64, len(bittable))
	for i, m := range bittable {
		contents, err := m.RegisterContents()
		if err != nil {
			return nil, fmt.Errorf("analyzer: %w", err)
		}
		out[i] = contents
	}
	return out, nil
}

// commonRegisters returns the sorted register names of one non-empty
// class (whichever map iteration reaches first), per spec.md §4.5's
// stated assumption that all testcases use the same set of registers.
func commonRegisters(classification map[int][]Measurement) ([]string, error) {
	for _, bittable := range classification {
		if len(bittable) == 0 {
			continue
		}
		contents, err := bittable[0].RegisterContents()
		if err != nil {
			return nil, fmt.Errorf("analyzer: %w", err)
		}
		names := make([]string, 0, len(contents))
		for name := range contents {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	return nil, fmt.Errorf("analyzer: no non-empty class to determine register set")
}

// fuzzedBits extracts bits [lo, hi) of v as a right-shifted value.
func fuzzedBits(v uint64, r FuzzedBitsRange) uint64 {
	mask := uint64(1)<<uint(r.width()) - 1
	return (v >> uint(r.Lo)) & mask
}

// expected1 is the occurrence count expected under uniform sampling for
// one (register, value) pair: 2^(k*(|R|-1)).
func expected1(numRegisters int, r FuzzedBitsRange) int {
	return 1 << uint(r.width()*(numRegisters-1))
}

// expectedN generalizes expected1 to n simultaneously fixed registers:
// 2^(k*(|R|-n)).
func expectedN(n, numRegisters int, r FuzzedBitsRange) int {
	return 1 << uint(r.width()*(numRegisters-n))
}

// occ1 counts measurements where register's fuzzed bits equal value.
func occ1(contents []map[string]uint64, register string, r FuzzedBitsRange, value uint64) int {
	count := 0
	for _, c := range contents {
		if v, ok := c[register]; ok && fuzzedBits(v, r) == value {
			count++
		}
	}
	return count
}

// occN counts measurements where every named register's fuzzed bits
// equal the corresponding value.
func occN(contents []map[string]uint64, registers []string, r FuzzedBitsRange, values []uint64) int {
	count := 0
	for _, c := range contents {
		all := true
		for i, reg := range registers {
			v, ok := c[reg]
			if !ok || fuzzedBits(v, r) != values[i] {
				all = false
				break
			}
		}
		if all {
			count++
		}
	}
	return count
}

// candidateSingle is Step 1: for each register and each value in
// [0, 2^k), flag (register, value) as a candidate single-address bits
// entry if its occurrence count deviates from the uniform expectation.
func candidateSingle(contents []map[string]uint64, registers []string, r FuzzedBitsRange) []candidateAddr {
	expected := expected1(len(registers), r)
	var out []candidateAddr
	for _, reg := range registers {
		for v := uint64(0); v < 1<<uint(r.width()); v++ {
			if occ1(contents, reg, r, v) != expected {
				out = append(out, candidateAddr{register: reg, value: v})
			}
		}
	}
	return out
}

// pairCandidate is one candidate interrelated-bits entry: two
// (register, value) pairs whose joint occurrence count deviated from
// the uniform expectation.
type pairCandidate struct {
	reg1, reg2 string
	val1, val2 uint64
}

// candidatePairs is Step 1': the pairwise analogue of candidateSingle,
// over every unordered register pair and every (v1, v2) combination.
func candidatePairs(contents []map[string]uint64, registers []string, r FuzzedBitsRange) []pairCandidate {
	expected := expectedN(2, len(registers), r)
	width := uint64(1) << uint(r.width())
	var out []pairCandidate
	for i := 0; i < len(registers); i++ {
		for j := i + 1; j < len(registers); j++ {
			reg1, reg2 := registers[i], registers[j]
			for v1 := uint64(0); v1 < width; v1++ {
				for v2 := uint64(0); v2 < width; v2++ {
					count := occN(contents, []string{reg1, reg2}, r, []uint64{v1, v2})
					if count != expected {
						out = append(out, pairCandidate{reg1: reg1, reg2: reg2, val1: v1, val2: v2})
					}
				}
			}
		}
	}
	return out
}

// extractConstraints is Step 2a: for each bit position and each
// register, the bit is a constraint if it is identical across every
// candidate value recorded for that register; otherwise it's rejected.
func extractConstraints(candidates []candidateAddr, r FuzzedBitsRange) []Constraint {
	var out []Constraint
	for bit := r.Lo; bit < r.Hi; bit++ {
		localBit := bit - r.Lo
		first := map[string]*int{}
		rejected := map[string]bool{}
		order := []string{}
		for _, c := range candidates {
			b := 0
			if c.value&(1<<uint(localBit)) != 0 {
				b = 1
			}
			if rejected[c.register] {
				continue
			}
			if cur, ok := first[c.register]; ok {
				if *cur != b {
					rejected[c.register] = true
					delete(first, c.register)
				}
				continue
			}
			v := b
			first[c.register] = &v
			order = append(order, c.register)
		}
		for _, reg := range order {
			if b, ok := first[reg]; ok {
				out = append(out, Constraint{Register: reg, Bit: bit, Value: *b})
			}
		}
	}
	return out
}

// extractRelations is Step 2b: each candidate pair entry becomes a
// linear equation a*v1 + b ≡ v2 (mod 2^k); equations are grouped by
// register pair, and any pair with >= 2 equations is solved.
func extractRelations(candidates []pairCandidate, r FuzzedBitsRange) []Relation {
	type pairKey struct{ reg1, reg2 string }
	equations := map[pairKey][][2]uint64{}
	var order []pairKey
	for _, c := range candidates {
		key := pairKey{c.reg1, c.reg2}
		if _, ok := equations[key]; !ok {
			order = append(order, key)
		}
		equations[key] = append(equations[key], [2]uint64{c.val1, c.val2})
	}

	var out []Relation
	for _, key := range order {
		eqs := equations[key]
		if len(eqs) < 2 {
			continue
		}
		a, b, ok := SolveAffineMod2K(eqs, r.width())
		if !ok {
			continue
		}
		out = append(out, Relation{Register1: key.reg1, Register2: key.reg2, A: a, B: b})
	}
	return out
}

// validateConstraints fills in each constraint's match rate: the
// fraction of the class's measurements whose register actually holds
// the claimed bit value.
func validateConstraints(constraints []Constraint, contents []map[string]uint64) {
	for i := range constraints {
		c := &constraints[i]
		satisfied, total := 0, 0
		for _, reg := range contents {
			v, ok := reg[c.Register]
			total++
			if ok && int((v>>uint(c.Bit))&1) == c.Value {
				satisfied++
			}
		}
		c.MatchRate = rate(satisfied, total)
	}
}

// validateRelations fills in each relation's match rate: the fraction
// of the class's measurements that satisfy
// reg2 ≡ a*reg1 + b (mod 2^k).
func validateRelations(relations []Relation, contents []map[string]uint64, r FuzzedBitsRange) {
	mod := uint64(1) << uint(r.width())
	for i := range relations {
		rel := &relations[i]
		satisfied, total := 0, 0
		for _, reg := range contents {
			v1, ok1 := reg[rel.Register1]
			v2, ok2 := reg[rel.Register2]
			total++
			if ok1 && ok2 && v2%mod == (rel.A*v1+rel.B)%mod {
				satisfied++
			}
		}
		rel.MatchRate = rate(satisfied, total)
	}
}

func rate(satisfied, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(satisfied) / float64(total)
}
