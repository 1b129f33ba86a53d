package treewalk

import "fmt"

// RuntimeError is the tree-walk evaluator's own error type, distinct from
// vm.RuntimeError: it carries a source line/column instead of a chunk
// offset, since the tree-walker never leaves the AST.
type RuntimeError struct {
	Line    int
	Column  int
	Message string
}

func newRuntimeError(line, column int, message string) RuntimeError {
	return RuntimeError{Line: line, Column: column, Message: message}
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("💥 tree-walk runtime error:\nline:%d, column:%d - %s", e.Line, e.Column, e.Message)
}
