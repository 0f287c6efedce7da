package ast

import (
	"fmt"
	"hash/fnv"
)

// product computes the concatenation product of a list of per-child
// expansion sets, preserving order: prod({a,b},{c,d}) = {ac,ad,bc,bd}.
func product(sets [][]Experiment) []Experiment {
	result := []Experiment{{}}
	for _, set := range sets {
		next := make([]Experiment, 0, len(result)*len(set))
		for _, acc := range result {
			for _, e := range set {
				combined := make(Experiment, 0, len(acc)+len(e))
				combined = append(combined, acc...)
				combined = append(combined, e...)
				next = append(next, combined)
			}
		}
		result = next
	}
	return result
}

// hashDirective returns a stable hash of a directive's canonical string
// form, used as the per-element hash in hashExperiment.
func hashDirective(d Directive) uint64 {
	h := fnv.New64a()
	h.Write([]byte(d.String()))
	return h.Sum64()
}

// hashExperiment computes the commutative XOR-fold
// hash_list(l) = XOR_i H(i || hash(l[i])), salting each element's hash
// with its position so that equal-length experiments with the same
// elements in a different order hash differently.
func hashExperiment(e Experiment) uint64 {
	var acc uint64
	for i, d := range e {
		h := fnv.New64a()
		fmt.Fprintf(h, "%d:%d", i, hashDirective(d))
		acc ^= h.Sum64()
	}
	return acc
}

// dedupExperiments removes experiments whose hashExperiment collides with
// one already seen, preserving first-seen order.
func dedupExperiments(in []Experiment) []Experiment {
	seen := make(map[uint64]struct{}, len(in))
	out := make([]Experiment, 0, len(in))
	for _, e := range in {
		h := hashExperiment(e)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, e)
	}
	return out
}

// cloneExperiment deep-copies only the Memory directives of e, since they
// are the only directive kind mutated after construction (by Fuzz/Slide);
// every other directive kind is safe to share by pointer.
func cloneExperiment(e Experiment) Experiment {
	out := make(Experiment, len(e))
	for i, d := range e {
		if m, ok := d.(*Memory); ok {
			out[i] = m.Clone()
		} else {
			out[i] = d
		}
	}
	return out
}

// memoryPositions returns the indices of Memory directives within e, in
// order.
func memoryPositions(e Experiment) []int {
	var positions []int
	for i, d := range e {
		if _, ok := d.(*Memory); ok {
			positions = append(positions, i)
		}
	}
	return positions
}

// permutations returns every ordering of e via Heap's algorithm.
func permutations(e Experiment) []Experiment {
	n := len(e)
	if n == 0 {
		return []Experiment{e}
	}
	var out []Experiment
	working := append(Experiment(nil), e...)
	c := make([]int, n)

	out = append(out, append(Experiment(nil), working...))
	i := 0
	for i < n {
		if c[i] < i {
			if i%2 == 0 {
				working[0], working[i] = working[i], working[0]
			} else {
				working[c[i]], working[i] = working[i], working[c[i]]
			}
			out = append(out, append(Experiment(nil), working...))
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
	return out
}

// powersetExcludingTrivial returns every non-empty, non-full subsequence
// of e, preserving relative order.
func powersetExcludingTrivial(e Experiment) []Experiment {
	n := len(e)
	var out []Experiment
	for mask := 1; mask < (1<<uint(n))-1; mask++ {
		var subset Experiment
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				subset = append(subset, e[i])
			}
		}
		out = append(out, subset)
	}
	return out
}
