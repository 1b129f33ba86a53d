package parser

import "fmt"

// SyntaxError is raised for any malformed construct: unexpected token,
// unbalanced brackets, an if/while condition that is a comma list, a
// function parameter that isn't a bare name, and so on.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func newSyntaxError(line, column int, message string) *SyntaxError {
	return &SyntaxError{Line: line, Column: column, Message: message}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("💥 syntax error:\nline:%d, column:%d - %s", e.Line, e.Column, e.Message)
}
