package parser

import (
	"fmt"

	"github.com/scy-phy/plumber-go/pkgs/lexer"
)

// SyntaxError reports a parse failure: the offending token (if any) and
// what the parser expected to see instead. Parsing is all-or-nothing —
// there is no error recovery.
type SyntaxError struct {
	Message  string
	Token    lexer.Token
	HasToken bool
}

func (e *SyntaxError) Error() string {
	if e.HasToken {
		return fmt.Sprintf("syntax error at %s: %s (got %s)", e.Token.Pos, e.Message, e.Token)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

func (p *Parser) errf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if tok, ok := p.lex.Peek(0); ok {
		return &SyntaxError{Message: msg, Token: tok, HasToken: true}
	}
	return &SyntaxError{Message: msg + " (reached end of input)"}
}

func (p *Parser) errAt(tok lexer.Token, format string, args ...interface{}) error {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Token: tok, HasToken: true}
}
