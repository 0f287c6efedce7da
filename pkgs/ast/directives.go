package ast

import "fmt"

// Memory is the `M` directive: a load from an address whose set and tag
// bits come from the placeholder mapping plus any resolved offset.
// Its address fields are the only part of the AST mutated after
// construction, by Fuzz and Slide during expansion.
type Memory struct {
	SetAttr *AttrValue
	TagAttr *AttrValue

	// ComputedOffsetSet/Tag are the resolved arithmetic tail of each
	// attribute, filled in during Expand.
	ComputedOffsetSet int
	ComputedOffsetTag int

	// FixedOffsetSet accumulates Slide's per-copy increment.
	FixedOffsetSet int

	// OverrideSet/OverrideOffset are set by Fuzz; nil means "not
	// overridden, use the computed value".
	OverrideSet    *int
	OverrideOffset *int
}

func (m *Memory) directive() {}

// Clone returns a deep copy so that later Fuzz/Slide mutation of one
// expanded experiment's M never aliases another's.
func (m *Memory) Clone() *Memory {
	clone := *m
	if m.OverrideSet != nil {
		v := *m.OverrideSet
		clone.OverrideSet = &v
	}
	if m.OverrideOffset != nil {
		v := *m.OverrideOffset
		clone.OverrideOffset = &v
	}
	return &clone
}

func (m *Memory) Expand(state *ExpansionState) ([]Experiment, error) {
	setOffset, err := m.SetAttr.EvalOffset(state)
	if err != nil {
		return nil, err
	}
	tagOffset, err := m.TagAttr.EvalOffset(state)
	if err != nil {
		return nil, err
	}
	out := m.Clone()
	out.ComputedOffsetSet = setOffset
	out.ComputedOffsetTag = tagOffset
	return []Experiment{{out}}, nil
}

func (m *Memory) String() string {
	return fmt.Sprintf("M_s=%s,t=%s", m.SetAttr, m.TagAttr)
}

// Arithmetic is the `A` directive: combines two operand-valued
// registers with add or eor (chosen at codegen time).
type Arithmetic struct {
	UAttr *AttrValue
	VAttr *AttrValue
}

func (a *Arithmetic) directive() {}

func (a *Arithmetic) Expand(state *ExpansionState) ([]Experiment, error) {
	return []Experiment{{a}}, nil
}

func (a *Arithmetic) String() string {
	return fmt.Sprintf("A_u=%s,v=%s", a.UAttr, a.VAttr)
}

// Branch is the `B` directive: a conditional jump guarded by a named
// stored boolean.
type Branch struct {
	CondAttr *AttrValue
	Taken    Bool
	Distance int
}

func (b *Branch) directive() {}

func (b *Branch) Expand(state *ExpansionState) ([]Experiment, error) {
	return []Experiment{{b}}, nil
}

func (b *Branch) String() string {
	return fmt.Sprintf("B_c=%s,b=%s,d=%d", b.CondAttr, b.Taken, b.Distance)
}

// StoreCondition is the `S` directive: writes a named boolean slot.
type StoreCondition struct {
	CondAttr *AttrValue
	Value    Bool
}

func (s *StoreCondition) directive() {}

func (s *StoreCondition) Expand(state *ExpansionState) ([]Experiment, error) {
	return []Experiment{{s}}, nil
}

func (s *StoreCondition) String() string {
	return fmt.Sprintf("S_c=%s,b=%s", s.CondAttr, s.Value)
}

// Nop is the `N` directive: a placeholder instruction with no attributes.
type Nop struct{}

func (n *Nop) directive() {}

func (n *Nop) Expand(state *ExpansionState) ([]Experiment, error) {
	return []Experiment{{n}}, nil
}

func (n *Nop) String() string { return "N" }

// DefaultAttr returns the *DEFAULT placeholder attribute for kind, used
// when a directive omits an attribute the grammar allows.
func DefaultAttr(kind PlaceholderKind) *AttrValue {
	return &AttrValue{Head: defaultPlaceholder(kind)}
}
