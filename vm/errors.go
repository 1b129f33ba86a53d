package vm

import "fmt"

// RuntimeError is the VM's uniform failure type: unknown opcode, stack
// underflow, division by zero, a write to stdin, and so on. Offset is the
// byte offset of the instruction that failed, filled in by handle's
// deferred wrapper so call sites don't have to thread it through every
// helper.
type RuntimeError struct {
	Offset  int
	Message string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("💥 RuntimeError at offset %d: %s", e.Offset, e.Message)
}
