package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"ccil/assembler"
	"ccil/chunkfile"
	"ccil/config"
	"ccil/opcode"
	"ccil/vm"
)

// asmCmd implements CCIL's standalone textual assembler: a thin,
// line-based translator from opcode mnemonics to the instruction bytes
// the compiler would otherwise emit. It shares the opcode table with the
// compiler and VM but performs none of their type inference.
type asmCmd struct {
	execute bool
	output  string
}

func (*asmCmd) Name() string     { return "asm" }
func (*asmCmd) Synopsis() string { return "Assemble a textual opcode listing into a bytecode chunk" }
func (*asmCmd) Usage() string {
	return `asm <input.ccil-asm> [-e] [-o <output>]:
  Translate one opcode per line into bytecode. With -e, assemble and run
  in-process instead of writing a file.
`
}

func (cmd *asmCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.execute, "e", false, "assemble and execute in-process instead of writing a file")
	f.BoolVar(&cmd.execute, "execute", false, "assemble and execute in-process instead of writing a file")
	f.StringVar(&cmd.output, "o", "", "output path for the assembled chunk")
}

func (cmd *asmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "💥 file not provided")
		return subcommands.ExitUsageError
	}
	// Flags may also follow the file name: parse what comes after it.
	if err := f.Parse(args[1:]); err != nil {
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load("ccil.toml")
	if err != nil {
		return fail("%v", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fail("failed to read file: %v", err)
	}

	table := opcode.MustNewTable()
	code, err := assembler.Assemble(string(data), table)
	if err != nil {
		return fail("%v", err)
	}

	if cmd.execute {
		machine := vm.New(table)
		machine.Debug = cfg.VM.Debug
		machine.MaxStackDepth = cfg.VM.MaxStackDepth
		if err := machine.Run(code); err != nil {
			return fail("%v", err)
		}
		return subcommands.ExitSuccess
	}

	out := cmd.output
	if out == "" {
		out = args[0] + "c"
	}
	outFile, err := os.Create(out)
	if err != nil {
		return fail("creating %s: %v", out, err)
	}
	defer outFile.Close()

	opts := chunkfile.WriteOptions{
		VersionMajor: 1, VersionMinor: 0, VersionPatch: 0,
		AssemblerProduced: cfg.Assembler.DefaultFlagsAssemblerBit,
		Timestamp:         uint32(time.Now().Unix()),
	}
	if err := chunkfile.Write(outFile, code, opts); err != nil {
		return fail("%v", err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(code), out)
	return subcommands.ExitSuccess
}
