// Package parser builds a GTS abstract syntax tree from its token
// stream by recursive descent, per the grammar in the language
// reference: a GTS is an optional precondition expression followed by a
// mandatory main expression, each expression a sequence of directives
// and operators.
package parser

import (
	"github.com/scy-phy/plumber-go/pkgs/ast"
	"github.com/scy-phy/plumber-go/pkgs/lexer"
)

// Parser turns GTS source text into an *ast.GTS. It owns a single
// reusable Lexer.
type Parser struct {
	lex *lexer.Lexer
}

// New returns a Parser ready to Parse GTS source.
func New() *Parser {
	return &Parser{lex: lexer.New()}
}

// Parse consumes text in one pass. The input must be non-empty; parsing
// is all-or-nothing, so any failure returns a *SyntaxError (or the
// lexer's *LexicalError) and no partial AST.
func (p *Parser) Parse(text string) (*ast.GTS, error) {
	if text == "" {
		return nil, &SyntaxError{Message: "GTS source must be non-empty"}
	}
	p.lex.Feed(text)

	gts := &ast.GTS{}
	if tok, ok := p.lex.Peek(0); ok && tok.Kind == lexer.PRECONDITION_P {
		p.lex.Consume()
		if _, ok := p.lex.Expect(lexer.LPAREN); !ok {
			return nil, p.errf("expected '(' after precondition marker 'P'")
		}
		pre, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, ok := p.lex.Expect(lexer.RPAREN); !ok {
			return nil, p.errf("expected ')' closing precondition")
		}
		gts.Precondition = pre
	}

	main, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	gts.Main = main

	if err := p.lex.Err(); err != nil {
		return nil, err
	}
	if tok, ok := p.lex.Peek(0); ok {
		return nil, p.errAt(tok, "unexpected trailing input")
	}
	return gts, nil
}

// parseExpression parses zero or more directives/operators, stopping at
// the first token that cannot start one (the caller validates whatever
// follows: ')', ']', '>', a closing '|', or end of input).
func (p *Parser) parseExpression() (*ast.Expression, error) {
	var children []ast.Node
loop:
	for {
		tok, ok := p.lex.Peek(0)
		if !ok {
			break
		}
		switch tok.Kind {
		case lexer.IDENTIFIER:
			if !isDirectiveLetter(tok.StrValue) {
				break loop
			}
			d, err := p.parseDirective()
			if err != nil {
				return nil, err
			}
			children = append(children, d)

		case lexer.LBRACKET:
			op, err := p.parseLoop()
			if err != nil {
				return nil, err
			}
			children = append(children, op)

		case lexer.WILDCARD_HASH:
			op, err := p.parseWildcard()
			if err != nil {
				return nil, err
			}
			children = append(children, op)

		case lexer.LPAREN:
			op, err := p.parseParenOp()
			if err != nil {
				return nil, err
			}
			children = append(children, op)

		case lexer.LANGLE:
			op, err := p.parseFuzz()
			if err != nil {
				return nil, err
			}
			children = append(children, op)

		case lexer.REPETITION_PIPE:
			// Disambiguation: a '|' immediately followed by DIGITS
			// closes an enclosing repetition; it does not start one.
			if next, ok := p.lex.Peek(1); ok && next.Kind == lexer.DIGITS {
				break loop
			}
			op, err := p.parseRepetition()
			if err != nil {
				return nil, err
			}
			children = append(children, op)

		default:
			break loop
		}
	}
	return &ast.Expression{Children: children}, nil
}

func isDirectiveLetter(s string) bool {
	return s == "A" || s == "B" || s == "S" || s == "M" || s == "N"
}

func (p *Parser) parseDirective() (ast.Directive, error) {
	tok, _ := p.lex.Consume()
	switch tok.StrValue {
	case "A":
		attrs, err := p.parseAttrs([]string{"u", "v"})
		if err != nil {
			return nil, err
		}
		u, err := p.attrOrDefault(attrs, "u", ast.PlaceholderOperand)
		if err != nil {
			return nil, err
		}
		v, err := p.attrOrDefault(attrs, "v", ast.PlaceholderOperand)
		if err != nil {
			return nil, err
		}
		return &ast.Arithmetic{UAttr: u, VAttr: v}, nil

	case "B":
		attrs, err := p.parseAttrs([]string{"c", "b", "d"})
		if err != nil {
			return nil, err
		}
		c, err := p.attrOrDefault(attrs, "c", ast.PlaceholderCondition)
		if err != nil {
			return nil, err
		}
		b, err := p.boolOrDefault(attrs, "b", true)
		if err != nil {
			return nil, err
		}
		d, err := p.intOrDefault(attrs, "d", 12)
		if err != nil {
			return nil, err
		}
		return &ast.Branch{CondAttr: c, Taken: ast.Bool(b), Distance: d}, nil

	case "S":
		attrs, err := p.parseAttrs([]string{"c", "b"})
		if err != nil {
			return nil, err
		}
		c, err := p.attrOrDefault(attrs, "c", ast.PlaceholderCondition)
		if err != nil {
			return nil, err
		}
		b, err := p.boolOrDefault(attrs, "b", true)
		if err != nil {
			return nil, err
		}
		return &ast.StoreCondition{CondAttr: c, Value: ast.Bool(b)}, nil

	case "M":
		attrs, err := p.parseAttrs([]string{"s", "t"})
		if err != nil {
			return nil, err
		}
		s, err := p.attrOrDefault(attrs, "s", ast.PlaceholderSet)
		if err != nil {
			return nil, err
		}
		tg, err := p.attrOrDefault(attrs, "t", ast.PlaceholderTag)
		if err != nil {
			return nil, err
		}
		return &ast.Memory{SetAttr: s, TagAttr: tg}, nil

	case "N":
		return &ast.Nop{}, nil

	default:
		return nil, p.errAt(tok, "unrecognized directive %q", tok.StrValue)
	}
}

func (p *Parser) parseLoop() (ast.Node, error) {
	p.lex.Consume() // '['
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, ok := p.lex.Expect(lexer.RBRACKET); !ok {
		return nil, p.errf("expected ']' closing loop body")
	}
	nTok, ok := p.lex.Expect(lexer.DIGITS)
	if !ok {
		return nil, p.errf("expected loop count")
	}
	l := &ast.Loop{Body: body, N: nTok.IntValue}

	if next, ok := p.lex.Peek(0); ok && next.Kind == lexer.COMMA {
		p.lex.Consume()
		stepTok, ok := p.lex.Expect(lexer.DIGITS)
		if !ok {
			return nil, p.errf("expected loop step")
		}
		if _, ok := p.lex.Expect(lexer.COMMA); !ok {
			return nil, p.errf("expected ',' before loop variable")
		}
		varTok, ok := p.lex.Expect(lexer.IDENTIFIER)
		if !ok {
			return nil, p.errf("expected loop variable name")
		}
		l.HasVar = true
		l.Step = stepTok.IntValue
		l.Var = varTok.StrValue
	}
	return l, nil
}

func (p *Parser) parseWildcard() (ast.Node, error) {
	p.lex.Consume() // '#'
	nTok, ok := p.lex.Expect(lexer.DIGITS)
	if !ok {
		return nil, p.errf("expected wildcard count after '#'")
	}
	return &ast.Wildcard{K: nTok.IntValue}, nil
}

func (p *Parser) parseParenOp() (ast.Node, error) {
	p.lex.Consume() // '('
	left, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	var right *ast.Expression
	if next, ok := p.lex.Peek(0); ok && next.Kind == lexer.COLON {
		p.lex.Consume()
		right, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, ok := p.lex.Expect(lexer.RPAREN); !ok {
		return nil, p.errf("expected ')' closing parenthesized operator")
	}

	tok, ok := p.lex.Peek(0)
	if !ok {
		return nil, p.errf("expected operator suffix ('!', 'S', a count, or '+')")
	}
	switch {
	case tok.Kind == lexer.SHUFFLE_EXCL:
		p.lex.Consume()
		if right != nil {
			return nil, p.errAt(tok, "shuffle takes a single operand")
		}
		return &ast.Shuffle{Body: left}, nil

	case tok.Kind == lexer.IDENTIFIER && tok.StrValue == "S":
		p.lex.Consume()
		if right != nil {
			return nil, p.errAt(tok, "subset takes a single operand")
		}
		return &ast.Subset{Body: left}, nil

	case tok.Kind == lexer.DIGITS:
		p.lex.Consume()
		if right != nil {
			return nil, p.errAt(tok, "slide takes a single operand")
		}
		return &ast.Slide{Body: left, N: tok.IntValue}, nil

	case tok.Kind == lexer.PLUS:
		p.lex.Consume()
		if right == nil {
			return nil, p.errAt(tok, "merge requires a ':'-separated second operand")
		}
		return &ast.Merge{Left: left, Right: right}, nil

	default:
		return nil, p.errAt(tok, "unrecognized operator suffix")
	}
}

func (p *Parser) parseFuzz() (ast.Node, error) {
	p.lex.Consume() // '<'
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, ok := p.lex.Expect(lexer.RANGLE); !ok {
		return nil, p.errf("expected '>' closing fuzz operand")
	}
	tok, ok := p.lex.Peek(0)
	if !ok {
		return nil, p.errf("expected '@' or '$' after fuzz operand")
	}
	switch tok.Kind {
	case lexer.FUZZ_OFFSET_AT:
		p.lex.Consume()
		return &ast.Fuzz{Body: body, Mode: '@'}, nil
	case lexer.FUZZ_CL_DOLLAR:
		p.lex.Consume()
		return &ast.Fuzz{Body: body, Mode: '$'}, nil
	default:
		return nil, p.errAt(tok, "expected '@' or '$' after fuzz operand")
	}
}

func (p *Parser) parseRepetition() (ast.Node, error) {
	p.lex.Consume() // opening '|'
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, ok := p.lex.Expect(lexer.REPETITION_PIPE); !ok {
		return nil, p.errf("expected closing '|' for repetition")
	}
	nTok, ok := p.lex.Expect(lexer.DIGITS)
	if !ok {
		return nil, p.errf("expected repetition count")
	}
	return &ast.Repetition{Body: body, N: nTok.IntValue}, nil
}
