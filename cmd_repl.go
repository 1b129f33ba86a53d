package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"ccil/compiler"
	"ccil/config"
	"ccil/lexer"
	"ccil/opcode"
	"ccil/parser"
	"ccil/vm"
)

const banner = `
   ____ ____ ___ _
  / ___/ ___|_ _| |
 | |  | |    | || |
 | |__| |___ | || |___
  \____\____|___|_____|
`

// replCmd is CCIL's read-eval-print loop. Per spec.md §5, one Compiler
// and one VM are created at startup and reused across iterations: the
// compiler's variable ids and string-pool offsets stay stable from line
// to line, and the VM keeps executing each new chunk against its
// existing stack and variable store.
type replCmd struct {
	debug bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive CCIL session" }
func (*replCmd) Usage() string {
	return `repl [-d]:
  Start an interactive read-eval-print loop.
`
}

func (r *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.debug, "d", false, "print compiled instruction bytes for each line")
}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load("ccil.toml")
	if err != nil {
		return fail("%v", err)
	}

	fmt.Print(banner)
	fmt.Println("Welcome to CCIL. Type 'exit' to quit.")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       ">>> ",
		HistoryFile:  cfg.REPL.HistoryFile,
		HistoryLimit: cfg.REPL.HistorySize,
	})
	if err != nil {
		return fail("starting readline: %v", err)
	}
	defer rl.Close()

	table := opcode.MustNewTable()
	c := compiler.New(table)
	machine := vm.New(table)
	machine.Debug = r.debug || cfg.VM.Debug
	machine.MaxStackDepth = cfg.VM.MaxStackDepth

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF on Ctrl-D, readline.ErrInterrupt on Ctrl-C
			return subcommands.ExitSuccess
		}
		if strings.TrimSpace(line) == "exit" {
			return subcommands.ExitSuccess
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		tokens, err := lexer.New(line).Scan()
		if err != nil {
			fmt.Println(err)
			continue
		}
		exprs, err := parser.New(tokens).FullParse()
		if err != nil {
			fmt.Println(err)
			continue
		}

		code, err := c.Compile(exprs)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if r.debug {
			fmt.Printf("bytecode: % x\n", code)
		}

		machine.SetStringPool(c.StringPool)
		if err := machine.Run(code); err != nil {
			fmt.Println(err)
		}
	}
}
