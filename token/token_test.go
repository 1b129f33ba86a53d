package token

import "testing"

func TestNewUsesCanonicalLexeme(t *testing.T) {
	tok := New(PLUS, 1, 2)
	if tok.Lexeme != "+" {
		t.Errorf("New(PLUS) lexeme = %q, want %q", tok.Lexeme, "+")
	}
	if tok.Type != PLUS {
		t.Errorf("New(PLUS) type = %v, want PLUS", tok.Type)
	}
}

func TestNewLiteral(t *testing.T) {
	tok := NewLiteral(NUMBER, "42", int32(42), 3, 10)
	if tok.Lexeme != "42" || tok.Literal != int32(42) {
		t.Errorf("NewLiteral() = %+v", tok)
	}
}

func TestKeywordsTable(t *testing.T) {
	cases := map[string]Type{
		"var": VAR, "func": FUNC, "for": FOR, "while": WHILE,
		"print": PRINT, "return": RETURN, "if": IF,
		"true": BOOLEAN, "false": BOOLEAN, "null": NULL,
	}
	for word, want := range cases {
		got, ok := Keywords[word]
		if !ok {
			t.Errorf("Keywords[%q] missing", word)
			continue
		}
		if got != want {
			t.Errorf("Keywords[%q] = %v, want %v", word, got, want)
		}
	}
	if _, ok := Keywords["varx"]; ok {
		t.Errorf("Keywords[%q] should not exist", "varx")
	}
}

func TestIsLiteral(t *testing.T) {
	if !New(NUMBER, 0, 0).IsLiteral() {
		t.Error("NUMBER should be a literal token")
	}
	if New(PLUS, 0, 0).IsLiteral() {
		t.Error("PLUS should not be a literal token")
	}
}
