package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tokenKinds(toks []Token) []TokenKind {
	kinds := make([]TokenKind, len(toks))
	for i, t := range toks {
		kinds[i] = t.Kind
	}
	return kinds
}

func scanAll(t *testing.T, input string) []Token {
	t.Helper()
	l := New()
	l.Feed(input)
	var toks []Token
	for {
		tok, ok := l.Consume()
		if !ok {
			if err := l.Err(); err != nil {
				t.Fatalf("unexpected lexical error: %v", err)
			}
			break
		}
		toks = append(toks, tok)
	}
	return toks
}

func TestLexerPunctuation(t *testing.T) {
	input := "([<>,:_=+-#!@$|])"
	want := []TokenKind{
		LPAREN, LBRACKET, LANGLE, RANGLE, COMMA, COLON, UNDERSCORE, EQUALS,
		PLUS, MINUS, WILDCARD_HASH, SHUFFLE_EXCL, FUZZ_OFFSET_AT,
		FUZZ_CL_DOLLAR, REPETITION_PIPE, RBRACKET, RPAREN,
	}
	got := tokenKinds(scanAll(t, input))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLexerDigits(t *testing.T) {
	toks := scanAll(t, "0 42 1000")
	want := []int{0, 42, 1000}
	got := make([]int, len(toks))
	for i, tok := range toks {
		if tok.Kind != DIGITS {
			t.Fatalf("token %d: want DIGITS, got %s", i, tok.Kind)
		}
		got[i] = tok.IntValue
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("digit values mismatch (-want +got):\n%s", diff)
	}
}

func TestLexerIdentifierVsPrecondition(t *testing.T) {
	toks := scanAll(t, "P Param addr1")
	if len(toks) != 3 {
		t.Fatalf("want 3 tokens, got %d", len(toks))
	}
	if toks[0].Kind != PRECONDITION_P {
		t.Errorf("token 0: want PRECONDITION_P, got %s", toks[0].Kind)
	}
	if toks[1].Kind != IDENTIFIER || toks[1].StrValue != "Param" {
		t.Errorf("token 1: want IDENTIFIER(Param), got %s(%q)", toks[1].Kind, toks[1].StrValue)
	}
	if toks[2].Kind != IDENTIFIER || toks[2].StrValue != "addr1" {
		t.Errorf("token 2: want IDENTIFIER(addr1), got %s(%q)", toks[2].Kind, toks[2].StrValue)
	}
}

func TestLexerIgnoresWhitespace(t *testing.T) {
	a := scanAll(t, "M(addr0,8)")
	b := scanAll(t, "  M ( addr0 , 8 )  ")
	if diff := cmp.Diff(tokenKinds(a), tokenKinds(b)); diff != "" {
		t.Errorf("whitespace changed token kinds (-compact +spaced):\n%s", diff)
	}
}

func TestLexerIllegalCharacter(t *testing.T) {
	l := New()
	l.Feed("M(addr0, ?)")
	for {
		_, ok := l.Consume()
		if !ok {
			break
		}
	}
	err := l.Err()
	if err == nil {
		t.Fatal("want lexical error for '?', got nil")
	}
	lexErr, ok := err.(*LexicalError)
	if !ok {
		t.Fatalf("want *LexicalError, got %T", err)
	}
	if lexErr.Char != '?' {
		t.Errorf("want illegal char '?', got %q", lexErr.Char)
	}
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	l := New()
	l.Feed("M(8)")

	first, ok := l.Peek(0)
	if !ok || first.Kind != IDENTIFIER {
		t.Fatalf("Peek(0): want IDENTIFIER, got %+v ok=%v", first, ok)
	}
	second, ok := l.Peek(1)
	if !ok || second.Kind != LPAREN {
		t.Fatalf("Peek(1): want LPAREN, got %+v ok=%v", second, ok)
	}

	consumed, ok := l.Consume()
	if !ok || consumed.Kind != IDENTIFIER {
		t.Fatalf("Consume: want IDENTIFIER, got %+v ok=%v", consumed, ok)
	}
	if consumed != first {
		t.Errorf("peeked and consumed token differ: peeked=%+v consumed=%+v", first, consumed)
	}
}

func TestLexerExpect(t *testing.T) {
	l := New()
	l.Feed("(8)")

	if _, ok := l.Expect(LPAREN); !ok {
		t.Fatal("Expect(LPAREN) failed on '('")
	}
	if _, ok := l.Expect(LPAREN); ok {
		t.Fatal("Expect(LPAREN) unexpectedly matched DIGITS")
	}
	if _, ok := l.Expect(DIGITS); !ok {
		t.Fatal("Expect(DIGITS) failed on '8'")
	}
	if _, ok := l.Expect(RPAREN); !ok {
		t.Fatal("Expect(RPAREN) failed on ')'")
	}
	if _, ok := l.Peek(0); ok {
		t.Fatal("want exhausted input after consuming '(8)'")
	}
}

func TestLexerPositionTracking(t *testing.T) {
	toks := scanAll(t, "M(8,\n16)")
	if len(toks) == 0 {
		t.Fatal("want at least one token")
	}
	last := toks[len(toks)-1]
	if last.Pos.Line != 2 {
		t.Errorf("want last token on line 2, got line %d", last.Pos.Line)
	}
}
