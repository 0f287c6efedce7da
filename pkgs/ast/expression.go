package ast

import "strings"

// Expression is an ordered concatenation of children (Directives or
// Operators). Its expansion is the product-of-sets of its children's
// expansions.
type Expression struct {
	Children []Node
}

func (e *Expression) Expand(state *ExpansionState) ([]Experiment, error) {
	if len(e.Children) == 0 {
		return nil, &SemanticError{Message: "empty expression"}
	}
	sets := make([][]Experiment, len(e.Children))
	for i, c := range e.Children {
		exps, err := c.Expand(state)
		if err != nil {
			return nil, err
		}
		sets[i] = exps
	}
	return product(sets), nil
}

func (e *Expression) String() string {
	var b strings.Builder
	for i, c := range e.Children {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.String())
	}
	return b.String()
}

// GTS is the top-level parse result: an optional precondition
// expression plus the mandatory main expression.
type GTS struct {
	Precondition *Expression
	Main         *Expression
}

// ExpandMain expands the main expression. The precondition is not
// expanded here; callers expand Precondition separately (typically once,
// since it feeds a fixed precondition block shared by every generated
// experiment).
func (g *GTS) ExpandMain(state *ExpansionState) ([]Experiment, error) {
	exps, err := g.Main.Expand(state)
	if err != nil {
		return nil, err
	}
	if len(exps) == 0 {
		return nil, &SemanticError{Message: "main expression expanded to no experiments"}
	}
	return exps, nil
}

func (g *GTS) String() string {
	if g.Precondition == nil {
		return g.Main.String()
	}
	return "P(" + g.Precondition.String() + ") " + g.Main.String()
}
