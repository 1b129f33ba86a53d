package lexer

import (
	"testing"

	"ccil/token"
)

// inOrder un-reverses a Scan() result back to source order for readable
// test assertions.
func inOrder(toks []token.Token) []token.Token {
	out := make([]token.Token, len(toks))
	for i, t := range toks {
		out[len(toks)-1-i] = t
	}
	return out
}

func TestScanOperators(t *testing.T) {
	toks, err := New("== != <= >= << >> && || + - * / %").Scan()
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	got := inOrder(toks)
	want := []token.Type{
		token.EQEQ, token.NOTEQ, token.LE, token.GE, token.SHL, token.SHR,
		token.AMPAMP, token.PIPEPIPE, token.PLUS, token.MINUS, token.STAR,
		token.SLASH, token.PERCENT, token.EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("token %d = %v, want %v", i, got[i].Type, w)
		}
	}
}

func TestScanKeywordsVsIdentifier(t *testing.T) {
	toks, err := New("var func for while print return if true false null varx").Scan()
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	got := inOrder(toks)
	want := []token.Type{
		token.VAR, token.FUNC, token.FOR, token.WHILE, token.PRINT,
		token.RETURN, token.IF, token.BOOLEAN, token.BOOLEAN, token.NULL,
		token.IDENT, token.EOF,
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("token %d = %v, want %v", i, got[i].Type, w)
		}
	}
	if got[10].Literal != "varx" {
		t.Errorf("identifier literal = %v, want %q", got[10].Literal, "varx")
	}
}

func TestScanLiterals(t *testing.T) {
	toks, err := New(`123 1.5 "ab" true`).Scan()
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	got := inOrder(toks)
	if got[0].Type != token.NUMBER || got[0].Literal != int32(123) {
		t.Errorf("token 0 = %+v, want NUMBER(123)", got[0])
	}
	if got[1].Type != token.FLOAT || got[1].Literal != 1.5 {
		t.Errorf("token 1 = %+v, want FLOAT(1.5)", got[1])
	}
	if got[2].Type != token.STRING || got[2].Literal != "ab" {
		t.Errorf("token 2 = %+v, want STRING(ab)", got[2])
	}
	if got[3].Type != token.BOOLEAN || got[3].Literal != true {
		t.Errorf("token 3 = %+v, want BOOLEAN(true)", got[3])
	}
}

func TestScanReversesSequence(t *testing.T) {
	toks, err := New("1;").Scan()
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if toks[0].Type != token.EOF {
		t.Errorf("reversed[0] = %v, want EOF", toks[0].Type)
	}
	if toks[len(toks)-1].Type != token.NUMBER {
		t.Errorf("reversed[last] = %v, want NUMBER", toks[len(toks)-1].Type)
	}
}

func TestUnterminatedString(t *testing.T) {
	_, err := New(`"abc`).Scan()
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestLineComment(t *testing.T) {
	toks, err := New("1 // comment\n2").Scan()
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	got := inOrder(toks)
	want := []token.Type{token.NUMBER, token.NEWLINE, token.NUMBER, token.EOF}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("token %d = %v, want %v", i, got[i].Type, w)
		}
	}
}
