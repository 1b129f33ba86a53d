package treewalk

import (
	"bytes"
	"strings"
	"testing"

	"ccil/lexer"
	"ccil/parser"
)

func mustRun(t *testing.T, src string) string {
	t.Helper()
	toks, err := lexer.New(src).Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	exprs, err := parser.New(toks).FullParse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	var buf bytes.Buffer
	interp := New()
	interp.Stdout = &buf
	if err := interp.Run(exprs); err != nil {
		t.Fatalf("run error: %v", err)
	}
	return buf.String()
}

func TestArithmeticPrint(t *testing.T) {
	if got := mustRun(t, "print(1 + 2 * 3);"); strings.TrimSpace(got) != "7" {
		t.Errorf("got %q, want 7", got)
	}
}

func TestVariableAssignment(t *testing.T) {
	if got := mustRun(t, "var x = 5; x = x + 1; print(x);"); strings.TrimSpace(got) != "6" {
		t.Errorf("got %q, want 6", got)
	}
}

func TestStringLiteral(t *testing.T) {
	if got := mustRun(t, `var s = "hi"; print(s);`); strings.TrimSpace(got) != "hi" {
		t.Errorf("got %q, want hi", got)
	}
}

func TestIfStatement(t *testing.T) {
	src := `var x = 10; if (x > 5) { print(1); }`
	if got := mustRun(t, src); strings.TrimSpace(got) != "1" {
		t.Errorf("got %q, want 1", got)
	}
}

func TestWhileLoop(t *testing.T) {
	src := `var i = 0; while (i < 3) { print(i); i = i + 1; }`
	want := "0\n1\n2\n"
	if got := mustRun(t, src); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	src := `func add(a, b) { return a + b; } print(add(2, 3));`
	if got := mustRun(t, src); strings.TrimSpace(got) != "5" {
		t.Errorf("got %q, want 5", got)
	}
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	toks, err := lexer.New("var x = 1 / 0;").Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	exprs, err := parser.New(toks).FullParse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if err := New().Run(exprs); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}
