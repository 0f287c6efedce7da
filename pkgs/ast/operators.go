package ast

import (
	"fmt"
	"math/rand/v2"
)

// Loop is `[E]n` (replicate) or `[E]n,step,var` (bind var over a
// stepped range, each bound expansion appended into one experiment).
type Loop struct {
	Body   Node
	N      int
	HasVar bool
	Step   int
	Var    string
}

func (l *Loop) Expand(state *ExpansionState) ([]Experiment, error) {
	if !l.HasVar {
		bodyExps, err := l.Body.Expand(state)
		if err != nil {
			return nil, err
		}
		out := make([]Experiment, len(bodyExps))
		for i, e := range bodyExps {
			rep := make(Experiment, 0, len(e)*l.N)
			for n := 0; n < l.N; n++ {
				rep = append(rep, cloneExperiment(e)...)
			}
			out[i] = rep
		}
		return out, nil
	}

	state.Push()
	defer state.Pop()

	var result Experiment
	for i := 0; i < l.N; i += l.Step {
		state.Bind(l.Var, i)
		exps, err := l.Body.Expand(state)
		if err != nil {
			return nil, err
		}
		if len(exps) != 1 {
			return nil, &SemanticError{Message: "loop body with a loop variable must expand to a singleton"}
		}
		result = append(result, exps[0]...)
	}
	return []Experiment{result}, nil
}

func (l *Loop) String() string {
	if !l.HasVar {
		return fmt.Sprintf("[%s]%d", l.Body, l.N)
	}
	return fmt.Sprintf("[%s]%d,%d,%s", l.Body, l.N, l.Step, l.Var)
}

// Wildcard is `#k`: one experiment of k directives chosen uniformly at
// random from {Arithmetic, Nop}.
type Wildcard struct {
	K int
}

func (w *Wildcard) Expand(state *ExpansionState) ([]Experiment, error) {
	exp := make(Experiment, w.K)
	for i := 0; i < w.K; i++ {
		if rand.IntN(2) == 0 {
			exp[i] = &Arithmetic{UAttr: DefaultAttr(PlaceholderOperand), VAttr: DefaultAttr(PlaceholderOperand)}
		} else {
			exp[i] = &Nop{}
		}
	}
	return []Experiment{exp}, nil
}

func (w *Wildcard) String() string { return fmt.Sprintf("#%d", w.K) }

// Shuffle is `(E)!`: for each experiment of E, all permutations,
// deduplicated by structural hash, unioned across E's experiments. The
// dedup pass is local to this Shuffle invocation, not global.
type Shuffle struct {
	Body Node
}

func (s *Shuffle) Expand(state *ExpansionState) ([]Experiment, error) {
	bodyExps, err := s.Body.Expand(state)
	if err != nil {
		return nil, err
	}
	var all []Experiment
	for _, e := range bodyExps {
		all = append(all, permutations(e)...)
	}
	return dedupExperiments(all), nil
}

func (s *Shuffle) String() string { return fmt.Sprintf("(%s)!", s.Body) }

// Subset is `(E)S`: powerset of each experiment excluding the empty and
// full element, order-preserving, deduplicated.
type Subset struct {
	Body Node
}

func (s *Subset) Expand(state *ExpansionState) ([]Experiment, error) {
	bodyExps, err := s.Body.Expand(state)
	if err != nil {
		return nil, err
	}
	var all []Experiment
	for _, e := range bodyExps {
		all = append(all, powersetExcludingTrivial(e)...)
	}
	return dedupExperiments(all), nil
}

func (s *Subset) String() string { return fmt.Sprintf("(%s)S", s.Body) }

// Slide is `(E)n`: for each experiment with at least one M, emit n
// copies; the i-th copy (0-indexed) adds i to the fixed_offset of the
// set attribute of every M. Experiments with no M pass through
// unchanged.
type Slide struct {
	Body Node
	N    int
}

func (s *Slide) Expand(state *ExpansionState) ([]Experiment, error) {
	bodyExps, err := s.Body.Expand(state)
	if err != nil {
		return nil, err
	}
	var out []Experiment
	for _, e := range bodyExps {
		if len(memoryPositions(e)) == 0 {
			out = append(out, e)
			continue
		}
		for i := 0; i < s.N; i++ {
			copyExp := cloneExperiment(e)
			for _, pos := range memoryPositions(copyExp) {
				m := copyExp[pos].(*Memory)
				m.FixedOffsetSet += i
			}
			out = append(out, copyExp)
		}
	}
	return out, nil
}

func (s *Slide) String() string { return fmt.Sprintf("(%s)%d", s.Body, s.N) }

// Merge is `(E1:E2)+`: both sides must expand to singletons. Emits the
// straight concatenation plus a sequence of pivot-swap mutants.
type Merge struct {
	Left  Node
	Right Node
}

func (m *Merge) Expand(state *ExpansionState) ([]Experiment, error) {
	leftExps, err := m.Left.Expand(state)
	if err != nil {
		return nil, err
	}
	rightExps, err := m.Right.Expand(state)
	if err != nil {
		return nil, err
	}
	if len(leftExps) != 1 || len(rightExps) != 1 {
		return nil, &SemanticError{Message: "merge operands must each expand to a singleton"}
	}
	left, right := leftExps[0], rightExps[0]

	combined := make(Experiment, 0, len(left)+len(right))
	combined = append(combined, left...)
	combined = append(combined, right...)
	length := len(combined)

	results := []Experiment{cloneExperiment(combined)}

	// The pivot set always names the first of each pair of indices to
	// swap. Every later variant is produced by swapping pivots in the
	// *previous* variant (updated), not by re-deriving from combined —
	// the mutations chain cumulatively.
	pivots := map[int]bool{len(left) - 1: true}
	updated := swapPivots(combined, pivots)
	results = append(results, updated)

	// First, widen the pivot set outward from the initial pivot,
	// emitting one chained variant per widening step, until the pivot
	// set can no longer grow (the lowest pivot has reached the left
	// edge).
	growing := true
	for growing {
		for _, p := range sortedKeys(pivots) {
			delete(pivots, p)
			low, high := p-1, p+1
			if low <= 0 {
				growing = false
			}
			if low >= 0 {
				pivots[low] = true
			}
			if high+1 < length {
				pivots[high] = true
			}
		}
		if len(pivots) >= 1 {
			updated = swapPivots(updated, pivots)
			results = append(results, updated)
		}
	}

	// Then narrow the pivot set back inward from both ends, again
	// emitting one chained variant per step, until at most one pivot
	// remains.
	shrinking := true
	for shrinking {
		oldPivots := sortedKeys(pivots)
		for i, p := range oldPivots {
			delete(pivots, p)
			low, high := p-1, p+1
			if low >= 0 && i > 0 {
				pivots[low] = true
			}
			if high+1 < length && i < len(oldPivots)-1 {
				pivots[high] = true
			}
		}
		if len(pivots) <= 1 {
			shrinking = false
		}
		if len(pivots) >= 1 {
			updated = swapPivots(updated, pivots)
			results = append(results, updated)
		}
	}

	return results, nil
}

// swapPivots returns a copy of exp with, for every pivot position p,
// elements p and p+1 swapped. A pivot whose pair falls outside exp's
// bounds is silently skipped.
func swapPivots(exp Experiment, pivots map[int]bool) Experiment {
	result := cloneExperiment(exp)
	for _, p := range sortedKeys(pivots) {
		i1, i2 := p, p+1
		if i1 < 0 || i2 >= len(exp) {
			continue
		}
		result[i1], result[i2] = result[i2], result[i1]
	}
	return result
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func (m *Merge) String() string { return fmt.Sprintf("(%s:%s)+", m.Left, m.Right) }

// Fuzz is `<E>@` (offset field) or `<E>$` (set/cache-line field): for
// each experiment, enumerate every combination of the fuzzed field
// across all its M directives.
type Fuzz struct {
	Body Node
	// Mode is '@' for offset-field fuzzing, '$' for set-field fuzzing.
	Mode byte
}

func (f *Fuzz) Expand(state *ExpansionState) ([]Experiment, error) {
	bodyExps, err := f.Body.Expand(state)
	if err != nil {
		return nil, err
	}
	k := state.Gen.SetWidth()
	if f.Mode == '@' {
		k = state.Gen.OffsetWidth()
	}

	var all []Experiment
	for _, e := range bodyExps {
		positions := memoryPositions(e)
		m := len(positions)
		total := 1 << uint(k*m)
		for combo := 0; combo < total; combo++ {
			copyExp := cloneExperiment(e)
			for j, pos := range positions {
				field := (combo >> uint(j*k)) & ((1 << uint(k)) - 1)
				mem := copyExp[pos].(*Memory)
				v := field
				if f.Mode == '@' {
					mem.OverrideOffset = &v
				} else {
					mem.OverrideSet = &v
				}
			}
			all = append(all, copyExp)
		}
	}
	return all, nil
}

func (f *Fuzz) String() string { return fmt.Sprintf("<%s>%c", f.Body, f.Mode) }

// Repetition is `|E|n`: concatenate n copies of each expanded experiment
// of E.
type Repetition struct {
	Body Node
	N    int
}

func (r *Repetition) Expand(state *ExpansionState) ([]Experiment, error) {
	bodyExps, err := r.Body.Expand(state)
	if err != nil {
		return nil, err
	}
	out := make([]Experiment, len(bodyExps))
	for i, e := range bodyExps {
		rep := make(Experiment, 0, len(e)*r.N)
		for n := 0; n < r.N; n++ {
			rep = append(rep, cloneExperiment(e)...)
		}
		out[i] = rep
	}
	return out, nil
}

func (r *Repetition) String() string { return fmt.Sprintf("|%s|%d", r.Body, r.N) }
