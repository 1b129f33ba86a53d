package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"ccil/ast"
	"ccil/chunkfile"
	"ccil/compiler"
	"ccil/config"
	"ccil/lexer"
	"ccil/opcode"
	"ccil/parser"
	"ccil/treewalk"
	"ccil/vm"
)

// runCmd executes one CCIL program: a source file is lexed, parsed, and
// compiled before running; a file already carrying the chunkfile magic is
// executed directly, skipping the front end entirely.
type runCmd struct {
	debug    bool
	dumpAST  bool
	astOut   string
	treeWalk bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute a CCIL source or bytecode file" }
func (*runCmd) Usage() string {
	return `run <file.ccil | file.ccilc> [-d] [--dump-ast] [--ast-out <file>] [--tree-walk]:
  Execute CCIL code from a source file or a previously emitted bytecode
  chunk (auto-detected by the chunkfile magic).
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.debug, "d", false, "print the compiled instruction bytes before executing")
	f.BoolVar(&r.debug, "debug", false, "print the compiled instruction bytes before executing")
	f.BoolVar(&r.dumpAST, "dump-ast", false, "print the parsed expression tree as JSON before compiling")
	f.StringVar(&r.astOut, "ast-out", "", "also write the parsed expression tree as JSON to this file")
	f.BoolVar(&r.treeWalk, "tree-walk", false, "also evaluate with the tree-walk reference interpreter and print its output for comparison")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "💥 file not provided")
		return subcommands.ExitUsageError
	}
	// Flags may also follow the file name: parse what comes after it.
	if err := f.Parse(args[1:]); err != nil {
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fail("failed to read file: %v", err)
	}

	cfg, err := config.Load("ccil.toml")
	if err != nil {
		return fail("%v", err)
	}

	table := opcode.MustNewTable()

	header, payload, err := chunkfile.Read(bytes.NewReader(data))
	if err != nil {
		return fail("reading bytecode: %v", err)
	}
	if header != nil {
		if r.debug {
			fmt.Fprintf(os.Stderr, "header: version %d.%d.%d, assembler=%v, timestamp=%d\n",
				header.VersionMajor, header.VersionMinor, header.VersionPatch,
				header.WroteByAssembler(), header.Timestamp)
		}
		machine := vm.New(table)
		machine.Debug = r.debug || cfg.VM.Debug
		machine.MaxStackDepth = cfg.VM.MaxStackDepth
		if err := machine.Run(payload); err != nil {
			return fail("%v", err)
		}
		return subcommands.ExitSuccess
	}

	exprs, err := parseSource(string(data))
	if err != nil {
		return fail("%v", err)
	}

	if r.dumpAST {
		if _, err := ast.DumpJSON(exprs); err != nil {
			return fail("dumping AST: %v", err)
		}
	}
	if r.astOut != "" {
		if err := ast.WriteJSONToFile(exprs, r.astOut); err != nil {
			return fail("%v", err)
		}
	}

	if r.treeWalk {
		interp := treewalk.New()
		if err := interp.Run(exprs); err != nil {
			fmt.Fprintf(os.Stderr, "tree-walk: %v\n", err)
		}
	}

	c := compiler.New(table)
	code, err := c.Compile(exprs)
	if err != nil {
		return fail("%v", err)
	}
	if r.debug {
		fmt.Fprintf(os.Stderr, "bytecode (%d bytes): % x\n", len(code), code)
	}

	machine := vm.New(table)
	machine.Debug = r.debug || cfg.VM.Debug
	machine.MaxStackDepth = cfg.VM.MaxStackDepth
	machine.SetStringPool(c.StringPool)
	if err := machine.Run(code); err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}

// parseSource runs the lexer and parser over src, translating either
// failure into a single user-facing error.
func parseSource(src string) ([]ast.Expr, error) {
	tokens, err := lexer.New(src).Scan()
	if err != nil {
		return nil, err
	}
	return parser.New(tokens).FullParse()
}
