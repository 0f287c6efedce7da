package ast

// FindFuzzMode walks n looking for the first Fuzz operator in the tree
// and reports its mode ('@' for offset-field fuzzing, '$' for
// set-field fuzzing). It is used downstream of expansion, by the
// classifier, to recover which address field a GTS fuzzed without
// re-deriving it from the expanded experiments themselves.
func FindFuzzMode(n Node) (mode byte, found bool) {
	switch v := n.(type) {
	case nil:
		return 0, false
	case *Fuzz:
		return v.Mode, true
	case *Expression:
		for _, c := range v.Children {
			if m, ok := FindFuzzMode(c); ok {
				return m, true
			}
		}
	case *Loop:
		return FindFuzzMode(v.Body)
	case *Shuffle:
		return FindFuzzMode(v.Body)
	case *Subset:
		return FindFuzzMode(v.Body)
	case *Slide:
		return FindFuzzMode(v.Body)
	case *Repetition:
		return FindFuzzMode(v.Body)
	case *Merge:
		if m, ok := FindFuzzMode(v.Left); ok {
			return m, true
		}
		return FindFuzzMode(v.Right)
	}
	return 0, false
}
