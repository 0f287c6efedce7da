package lexer

import "fmt"

// LexicalError reports an illegal character encountered while scanning.
type LexicalError struct {
	Char byte
	Pos  Position
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("lexical error at %s: illegal character %q", e.Pos, e.Char)
}
