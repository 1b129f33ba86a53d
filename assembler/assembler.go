// Package assembler translates CCIL's line-oriented textual assembly
// into a flat instruction chunk, sharing the opcode registry with the
// compiler and the VM. Grounded on the original source's assembler: one
// instruction per line, blank lines and trailing `//` comments ignored,
// opcode lookup case-insensitive, argument count checked against the
// opcode's declared parameter count.
package assembler

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"ccil/opcode"
)

// Error marks a malformed assembly source line.
type Error struct {
	Line    int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("assembler: line %d: %s", e.Line, e.Message)
}

// Assemble turns source into a flat instruction chunk (no header — the
// caller wraps it with chunkfile.Write if one is wanted).
func Assemble(source string, table *opcode.Table) ([]byte, error) {
	var chunk []byte
	for i, rawLine := range strings.Split(source, "\n") {
		lineNo := i + 1
		line := rawLine
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		symbol := fields[0]
		op, ok := table.BySymbol(symbol)
		if !ok {
			return nil, Error{Line: lineNo, Message: fmt.Sprintf("invalid opcode %q", symbol)}
		}

		argFields := fields[1:]
		if len(argFields) != op.NumParams {
			return nil, Error{Line: lineNo, Message: fmt.Sprintf(
				"expected %d argument(s) for %s, got %d", op.NumParams, op.Symbol, len(argFields))}
		}

		chunk = append(chunk, op.Byte)
		for _, a := range argFields {
			n, err := strconv.ParseInt(a, 10, 32)
			if err != nil {
				return nil, Error{Line: lineNo, Message: fmt.Sprintf("argument %q is not a number", a)}
			}
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(int32(n)))
			chunk = append(chunk, buf[:]...)
		}
	}
	return chunk, nil
}
