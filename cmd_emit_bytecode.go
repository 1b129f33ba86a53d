package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"ccil/chunkfile"
	"ccil/compiler"
	"ccil/opcode"
)

// emitCmd compiles a source file to a headered bytecode chunk on disk,
// without executing it. The chunk can later be run directly by `run`,
// which auto-detects the chunkfile magic. The string pool is not written
// to the file, so a chunk that prints a string literal fails at WRITES
// when run.
type emitCmd struct {
	output string
}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "Compile a CCIL source file to a bytecode chunk" }
func (*emitCmd) Usage() string {
	return `emit <file.ccil> -o <output>:
  Compile source to a headered bytecode file without executing it.
`
}

func (cmd *emitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.output, "o", "", "output path for the compiled chunk (defaults to <input>.ccilc)")
}

func (cmd *emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "💥 file not provided")
		return subcommands.ExitUsageError
	}
	input := args[0]
	// Flags may also follow the file name: parse what comes after it.
	if err := f.Parse(args[1:]); err != nil {
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fail("failed to read file: %v", err)
	}

	exprs, err := parseSource(string(data))
	if err != nil {
		return fail("%v", err)
	}

	code, err := compiler.New(opcode.MustNewTable()).Compile(exprs)
	if err != nil {
		return fail("%v", err)
	}

	out := cmd.output
	if out == "" {
		out = input + "c"
	}
	f2, err := os.Create(out)
	if err != nil {
		return fail("creating %s: %v", out, err)
	}
	defer f2.Close()

	opts := chunkfile.WriteOptions{
		VersionMajor: 1, VersionMinor: 0, VersionPatch: 0,
		Timestamp: uint32(time.Now().Unix()),
	}
	if err := chunkfile.Write(f2, code, opts); err != nil {
		return fail("%v", err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(code), out)
	return subcommands.ExitSuccess
}
