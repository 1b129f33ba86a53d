package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"ccil/chunkfile"
	"ccil/opcode"
)

// disasmCmd renders a bytecode chunk back into the assembler's textual
// opcode-per-line form, sharing the same opcode table the assembler and
// VM use. It is the assembler's inverse: `asm` turns text into bytes,
// `disasm` turns bytes back into (re-assemblable) text.
type disasmCmd struct{}

func (*disasmCmd) Name() string     { return "disasm" }
func (*disasmCmd) Synopsis() string { return "Disassemble a bytecode chunk to opcode text" }
func (*disasmCmd) Usage() string {
	return `disasm <file.ccilc>:
  Print one OPCODE line per instruction, with the byte offset as a
  trailing comment.
`
}

func (*disasmCmd) SetFlags(f *flag.FlagSet) {}

func (*disasmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "💥 file not provided")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fail("failed to read file: %v", err)
	}

	header, code, err := chunkfile.Read(bytes.NewReader(data))
	if err != nil {
		return fail("%v", err)
	}
	if header != nil {
		fmt.Printf("// version %d.%d.%d, assembler=%v, timestamp=%d\n",
			header.VersionMajor, header.VersionMinor, header.VersionPatch,
			header.WroteByAssembler(), header.Timestamp)
	}

	table := opcode.MustNewTable()
	offset := 0
	for offset < len(code) {
		op, ok := table.ByByte(code[offset])
		if !ok {
			return fail("unknown opcode 0x%02X at offset %d", code[offset], offset)
		}
		operands := make([]int32, op.NumParams)
		for i := 0; i < op.NumParams; i++ {
			start := offset + 1 + 4*i
			if start+4 > len(code) {
				return fail("truncated argument for %s at offset %d", op.Symbol, offset)
			}
			operands[i] = int32(le32(code[start : start+4]))
		}
		fmt.Printf("%-8s%s // %d\n", op.Symbol, formatArgs(operands), offset)
		offset += 1 + 4*op.NumParams
	}
	return subcommands.ExitSuccess
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func formatArgs(args []int32) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d", a)
	}
	return s
}
