// CCIL is the command-line front end for the tokenizer, parser, compiler,
// and virtual machine implemented in the packages beside this file.
// Subcommands are wired with google/subcommands: one flat cmd_*.go file
// per subcommand, registered here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&replCmd{}, "")
	subcommands.Register(&emitCmd{}, "")
	subcommands.Register(&asmCmd{}, "")
	subcommands.Register(&disasmCmd{}, "")

	// Bare `ccil` with no subcommand and no flags drops into the REPL,
	// matching spec.md §6's "no argument starts a REPL" runtime surface.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "repl")
	}

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "💥 "+format+"\n", args...)
	return subcommands.ExitFailure
}
