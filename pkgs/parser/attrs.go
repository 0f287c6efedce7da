package parser

import (
	"github.com/scy-phy/plumber-go/pkgs/ast"
	"github.com/scy-phy/plumber-go/pkgs/lexer"
)

// rawValue is a parsed `value` production before it is interpreted as a
// placeholder-headed AttrValue, a T/F Bool, or a bare DIGITS int —
// interpretation depends on which attribute name it was assigned to.
type rawValue struct {
	head  lexer.Token
	terms []rawTerm
}

type rawTerm struct {
	sign int
	tok  lexer.Token
}

// parseAttrs parses an optional `'_' IDENT '=' value (',' IDENT '='
// value)*` clause. Attribute names not in allowed are rejected; a name
// repeated within one clause is rejected, per the parser's documented
// behavior on attribute collisions.
func (p *Parser) parseAttrs(allowed []string) (map[string]rawValue, error) {
	attrs := map[string]rawValue{}
	tok, ok := p.lex.Peek(0)
	if !ok || tok.Kind != lexer.UNDERSCORE {
		return attrs, nil
	}
	p.lex.Consume()

	for {
		nameTok, ok := p.lex.Expect(lexer.IDENTIFIER)
		if !ok {
			return nil, p.errf("expected attribute name")
		}
		if !containsStr(allowed, nameTok.StrValue) {
			return nil, p.errAt(nameTok, "attribute %q is not valid here", nameTok.StrValue)
		}
		if _, ok := p.lex.Expect(lexer.EQUALS); !ok {
			return nil, p.errf("expected '=' after attribute %q", nameTok.StrValue)
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, exists := attrs[nameTok.StrValue]; exists {
			return nil, p.errAt(nameTok, "duplicate attribute %q", nameTok.StrValue)
		}
		attrs[nameTok.StrValue] = val

		next, ok := p.lex.Peek(0)
		if !ok || next.Kind != lexer.COMMA {
			break
		}
		p.lex.Consume()
	}
	return attrs, nil
}

// parseValue parses `(IDENT|DIGITS) (('+'|'-') (IDENT|DIGITS))*`.
func (p *Parser) parseValue() (rawValue, error) {
	head, ok := p.lex.Consume()
	if !ok || (head.Kind != lexer.IDENTIFIER && head.Kind != lexer.DIGITS) {
		return rawValue{}, p.errf("expected a value (identifier or digits)")
	}
	rv := rawValue{head: head}
	for {
		tok, ok := p.lex.Peek(0)
		if !ok || (tok.Kind != lexer.PLUS && tok.Kind != lexer.MINUS) {
			break
		}
		signTok, _ := p.lex.Consume()
		sign := 1
		if signTok.Kind == lexer.MINUS {
			sign = -1
		}
		operand, ok := p.lex.Consume()
		if !ok || (operand.Kind != lexer.IDENTIFIER && operand.Kind != lexer.DIGITS) {
			return rawValue{}, p.errf("expected identifier or digits after %q", signTok.Kind)
		}
		rv.terms = append(rv.terms, rawTerm{sign: sign, tok: operand})
	}
	return rv, nil
}

// toAttrValue interprets rv's head as a placeholder and its tail as a
// signed arithmetic expression.
func (p *Parser) toAttrValue(rv rawValue) (*ast.AttrValue, error) {
	if rv.head.Kind != lexer.IDENTIFIER {
		return nil, p.errAt(rv.head, "expected a placeholder, got %s", rv.head.Kind)
	}
	ph, err := ast.ParsePlaceholder(rv.head.StrValue)
	if err != nil {
		return nil, p.errAt(rv.head, "%v", err)
	}
	terms := make([]ast.Term, len(rv.terms))
	for i, t := range rv.terms {
		if t.tok.Kind == lexer.IDENTIFIER {
			terms[i] = ast.Term{Sign: t.sign, IsIdent: true, Ident: t.tok.StrValue}
		} else {
			terms[i] = ast.Term{Sign: t.sign, IntVal: t.tok.IntValue}
		}
	}
	return &ast.AttrValue{Head: ph, Terms: terms}, nil
}

// toBool interprets rv as a bare T/F literal.
func (p *Parser) toBool(rv rawValue) (bool, error) {
	if len(rv.terms) != 0 || rv.head.Kind != lexer.IDENTIFIER {
		return false, p.errAt(rv.head, "expected 'T' or 'F'")
	}
	switch rv.head.StrValue {
	case "T":
		return true, nil
	case "F":
		return false, nil
	default:
		return false, p.errAt(rv.head, "expected 'T' or 'F', got %q", rv.head.StrValue)
	}
}

// toInt interprets rv as a bare DIGITS literal (no identifiers, no
// arithmetic tail).
func (p *Parser) toInt(rv rawValue) (int, error) {
	if len(rv.terms) != 0 || rv.head.Kind != lexer.DIGITS {
		return 0, p.errAt(rv.head, "expected an integer")
	}
	return rv.head.IntValue, nil
}

func (p *Parser) attrOrDefault(attrs map[string]rawValue, name string, kind ast.PlaceholderKind) (*ast.AttrValue, error) {
	rv, ok := attrs[name]
	if !ok {
		return ast.DefaultAttr(kind), nil
	}
	return p.toAttrValue(rv)
}

func (p *Parser) boolOrDefault(attrs map[string]rawValue, name string, def bool) (bool, error) {
	rv, ok := attrs[name]
	if !ok {
		return def, nil
	}
	return p.toBool(rv)
}

func (p *Parser) intOrDefault(attrs map[string]rawValue, name string, def int) (int, error) {
	rv, ok := attrs[name]
	if !ok {
		return def, nil
	}
	return p.toInt(rv)
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
