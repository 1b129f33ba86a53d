package vm

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"ccil/opcode"
)

func arg(n int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(n))
	return buf[:]
}

func withOutput(t *testing.T, build func(table *opcode.Table) []byte) string {
	t.Helper()
	table := opcode.MustNewTable()
	chunk := build(table)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	machine := New(table)
	machine.Stdout = w

	if err := machine.Run(chunk); err != nil {
		t.Fatalf("Run: %v", err)
	}
	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestArithmeticAndWrite(t *testing.T) {
	out := withOutput(t, func(table *opcode.Table) []byte {
		var chunk []byte
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(2)...)
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(3)...)
		chunk = append(chunk, opcode.ADD)
		chunk = append(chunk, opcode.WRITE)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.EXIT)
		return chunk
	})
	if out != "5\n" {
		t.Errorf("got %q, want %q", out, "5\n")
	}
}

func TestStoreLoadRoundtrip(t *testing.T) {
	out := withOutput(t, func(table *opcode.Table) []byte {
		var chunk []byte
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(42)...)
		chunk = append(chunk, opcode.STORE)
		chunk = append(chunk, arg(0)...)
		chunk = append(chunk, arg(int32(TagNumber))...)
		chunk = append(chunk, opcode.LOAD)
		chunk = append(chunk, arg(0)...)
		chunk = append(chunk, opcode.WRITE)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.EXIT)
		return chunk
	})
	if out != "42\n" {
		t.Errorf("got %q, want %q", out, "42\n")
	}
}

func TestDivisionByZero(t *testing.T) {
	table := opcode.MustNewTable()
	var chunk []byte
	chunk = append(chunk, opcode.CONST)
	chunk = append(chunk, arg(1)...)
	chunk = append(chunk, opcode.CONST)
	chunk = append(chunk, arg(0)...)
	chunk = append(chunk, opcode.DIV)
	chunk = append(chunk, opcode.EXIT)

	machine := New(table)
	err := machine.Run(chunk)
	if err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestJumpSkipsInstructions(t *testing.T) {
	table := opcode.MustNewTable()
	var chunk []byte
	chunk = append(chunk, opcode.JUMP)
	jumpTarget := len(chunk)
	chunk = append(chunk, arg(0)...) // patched below
	chunk = append(chunk, opcode.EXIT)
	chunk = append(chunk, opcode.EXIT) // unreachable without the jump
	skipTo := len(chunk) - 1
	binary.LittleEndian.PutUint32(chunk[jumpTarget:jumpTarget+4], uint32(skipTo))

	machine := New(table)
	if err := machine.Run(chunk); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestUnknownOpcodeErrors(t *testing.T) {
	table := opcode.MustNewTable()
	machine := New(table)
	if err := machine.Run([]byte{0x09}); err == nil {
		t.Fatal("expected an error for an unassigned opcode byte")
	}
}

func TestPopFromEmptyStackErrors(t *testing.T) {
	table := opcode.MustNewTable()
	machine := New(table)
	if err := machine.Run([]byte{opcode.POP}); err == nil {
		t.Fatal("expected an error popping an empty stack")
	}
}

func TestMaxStackDepthExceeded(t *testing.T) {
	table := opcode.MustNewTable()
	var chunk []byte
	for i := 0; i < 3; i++ {
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(int32(i))...)
	}
	chunk = append(chunk, opcode.EXIT)

	machine := New(table)
	machine.MaxStackDepth = 2
	if err := machine.Run(chunk); err == nil {
		t.Fatal("expected an error once the stack exceeds MaxStackDepth")
	}
}

// TestCallAndReturnRoundtrip hand-assembles a one-parameter function using
// the same ROT-based calling convention the compiler package emits (see
// compiler.compileFunctionDeclaration/compileReturn): CALL leaves the
// return address on top of the pushed argument, so the callee's first move
// is ROT 1 to tuck the address below the argument before STORE-ing it, and
// the epilogue ROTs the return value back above the address before
// RETURN so the caller finds the value left on the stack.
func TestCallAndReturnRoundtrip(t *testing.T) {
	out := withOutput(t, func(table *opcode.Table) []byte {
		var chunk []byte

		chunk = append(chunk, opcode.JUMP)
		skipOperand := len(chunk)
		chunk = append(chunk, arg(0)...) // patched to skip the function body

		entry := len(chunk)
		chunk = append(chunk, opcode.ROT)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.STORE)
		chunk = append(chunk, arg(0)...)
		chunk = append(chunk, arg(int32(TagNumber))...)
		chunk = append(chunk, opcode.LOAD)
		chunk = append(chunk, arg(0)...)
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.ADD)
		chunk = append(chunk, opcode.ROT)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.RETURN)
		chunk = append(chunk, arg(0)...)

		binary.LittleEndian.PutUint32(chunk[skipOperand:skipOperand+4], uint32(len(chunk)))

		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(5)...)
		chunk = append(chunk, opcode.CALL)
		chunk = append(chunk, arg(int32(entry))...)
		chunk = append(chunk, opcode.WRITE)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.EXIT)
		return chunk
	})
	if out != "6\n" {
		t.Errorf("got %q, want %q", out, "6\n")
	}
}

// TestIfzBranches covers both paths of IFZ: a zero operand takes the
// jump (skipping the body), a nonzero operand falls through into it.
// compileIf/compileWhile/compileFor (compiler/compiler.go) only ever emit
// IFZ, never IFNZ, so this is the opcode that actually needs coverage;
// TestIfnzBranches below exercises its mirror image for completeness.
func TestIfzBranches(t *testing.T) {
	build := func(cond int32) []byte {
		var chunk []byte
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(cond)...)
		chunk = append(chunk, opcode.IFZ)
		skipOperand := len(chunk)
		chunk = append(chunk, arg(0)...) // patched below
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.WRITE)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.EXIT)
		binary.LittleEndian.PutUint32(chunk[skipOperand:skipOperand+4], uint32(len(chunk)-1))
		return chunk
	}

	if out := withOutput(t, func(table *opcode.Table) []byte { return build(0) }); out != "" {
		t.Errorf("IFZ with a zero operand should skip the body, got output %q", out)
	}
	if out := withOutput(t, func(table *opcode.Table) []byte { return build(1) }); out != "1\n" {
		t.Errorf("IFZ with a nonzero operand should fall through into the body, got output %q", out)
	}
}

// TestIfnzBranches is IFZ's mirror: a nonzero operand takes the jump, a
// zero operand falls through.
func TestIfnzBranches(t *testing.T) {
	build := func(cond int32) []byte {
		var chunk []byte
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(cond)...)
		chunk = append(chunk, opcode.IFNZ)
		skipOperand := len(chunk)
		chunk = append(chunk, arg(0)...) // patched below
		chunk = append(chunk, opcode.CONST)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.WRITE)
		chunk = append(chunk, arg(1)...)
		chunk = append(chunk, opcode.EXIT)
		binary.LittleEndian.PutUint32(chunk[skipOperand:skipOperand+4], uint32(len(chunk)-1))
		return chunk
	}

	if out := withOutput(t, func(table *opcode.Table) []byte { return build(1) }); out != "" {
		t.Errorf("IFNZ with a nonzero operand should skip the body, got output %q", out)
	}
	if out := withOutput(t, func(table *opcode.Table) []byte { return build(0) }); out != "1\n" {
		t.Errorf("IFNZ with a zero operand should fall through into the body, got output %q", out)
	}
}

func TestWriteToStdinIsFatal(t *testing.T) {
	table := opcode.MustNewTable()
	var chunk []byte
	chunk = append(chunk, opcode.CONST)
	chunk = append(chunk, arg(1)...)
	chunk = append(chunk, opcode.WRITE)
	chunk = append(chunk, arg(0)...)

	machine := New(table)
	if err := machine.Run(chunk); err == nil {
		t.Fatal("expected an error writing to fd 0")
	}
}
