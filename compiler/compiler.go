// Package compiler walks a parsed expression tree and emits CCIL bytecode,
// sharing its instruction registry with the assembler and the virtual
// machine. A single Compiler is long-lived across repeated Compile calls so
// a REPL session keeps its variable ids and string pool stable from one
// line to the next.
package compiler

import (
	"encoding/binary"
	"fmt"

	"ccil/ast"
	"ccil/opcode"
	"ccil/token"
)

// variable tracks one name's dense insertion-ordinal id and its most
// recently inferred type. The type is overwritten, not merged, on every
// reassignment, matching the "last write wins" rule for the REPL.
type variable struct {
	id  int
	typ TypeID
}

// Compiler owns the state that must survive across separate Compile calls:
// the variable table, the string pool, and the shared opcode registry.
type Compiler struct {
	table     *opcode.Table
	variables map[string]*variable
	nextVarID int

	stringOffsets map[string]int
	StringPool    []byte
}

// New builds a Compiler against the given opcode registry.
func New(table *opcode.Table) *Compiler {
	return &Compiler{
		table:         table,
		variables:     make(map[string]*variable),
		stringOffsets: make(map[string]int),
	}
}

// funcEntry records where a declared function's body begins, in bytes
// relative to the start of the current Compile call's output. Functions
// are only callable within the chunk that declares them: each Compile call
// starts a fresh byte stream, so jump targets never span REPL lines.
type funcEntry struct {
	entry  int
	params []string
}

// session holds everything scoped to a single Compile call.
type session struct {
	c         *Compiler
	out       []byte
	functions map[string]funcEntry
}

// Compile emits bytecode for a sequence of top-level statements. Variable
// ids and string-pool offsets are shared with prior and future calls on
// the same Compiler; function declarations and their jump targets are not.
func (c *Compiler) Compile(statements []ast.Expr) ([]byte, error) {
	s := &session{c: c, functions: make(map[string]funcEntry)}
	for _, stmt := range statements {
		if _, err := s.dispatch(stmt); err != nil {
			return nil, err
		}
	}
	return s.out, nil
}

func (s *session) op(symbol string) byte {
	def, ok := s.c.table.BySymbol(symbol)
	if !ok {
		panic(DeveloperError{Message: fmt.Sprintf("unknown opcode %q", symbol)})
	}
	return def.Byte
}

func (s *session) emit(symbol string, args ...int32) {
	s.out = append(s.out, s.op(symbol))
	for _, a := range args {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(a))
		s.out = append(s.out, buf[:]...)
	}
}

// emitPlaceholderJump emits a jump opcode with a zeroed operand and
// returns the byte offset of that operand, to be fixed up by patchJump
// once the true target is known.
func (s *session) emitPlaceholderJump(symbol string) int {
	s.emit(symbol, 0)
	return len(s.out) - 4
}

func (s *session) patchJump(operandPos int, target int) {
	binary.LittleEndian.PutUint32(s.out[operandPos:operandPos+4], uint32(int32(target)))
}

// resolveVariable returns the existing binding for name, or creates one
// with the next dense id and UNKNOWN type.
func (s *session) resolveVariable(name string) *variable {
	if v, ok := s.c.variables[name]; ok {
		return v
	}
	v := &variable{id: s.c.nextVarID, typ: UNKNOWN}
	s.c.nextVarID++
	s.c.variables[name] = v
	return v
}

// internString deduplicates s into the shared pool and returns its byte
// offset, appending a trailing NUL the first time it's seen.
func (s *session) internString(str string) int32 {
	if off, ok := s.c.stringOffsets[str]; ok {
		return int32(off)
	}
	off := len(s.c.StringPool)
	s.c.stringOffsets[str] = off
	s.c.StringPool = append(s.c.StringPool, []byte(str)...)
	s.c.StringPool = append(s.c.StringPool, 0)
	return int32(off)
}

// dispatch emits bytecode for one node and reports the static type it
// leaves on the stack (UNKNOWN for statements that push nothing meaningful).
func (s *session) dispatch(e ast.Expr) (TypeID, error) {
	switch n := e.(type) {
	case ast.Empty:
		return UNKNOWN, nil
	case ast.Literal:
		return s.compileLiteral(n)
	case ast.Variable:
		v := s.resolveVariable(n.Name.Lexeme)
		s.emit("LOAD", int32(v.id))
		return v.typ, nil
	case ast.Unary:
		return s.compileUnary(n)
	case ast.Binary:
		return s.compileBinary(n)
	case ast.Grouping:
		return s.dispatch(n.Child)
	case ast.CurlyGrouping:
		return s.dispatch(n.Child)
	case ast.SquareGrouping:
		return s.dispatch(n.Child)
	case ast.CommaSeparatedList:
		var last TypeID
		for _, item := range n.Items {
			t, err := s.dispatch(item)
			if err != nil {
				return UNKNOWN, err
			}
			last = t
		}
		return last, nil
	case ast.Subexprs:
		for _, stmt := range n.Statements {
			if _, err := s.dispatch(stmt); err != nil {
				return UNKNOWN, err
			}
		}
		return UNKNOWN, nil
	case ast.VariableDeclaration:
		return s.compileBinary(n.Assignment)
	case ast.PrintStatement:
		return s.compilePrint(n)
	case ast.IfStatement:
		return UNKNOWN, s.compileIf(n)
	case ast.WhileLoop:
		return UNKNOWN, s.compileWhile(n)
	case ast.ForLoop:
		return UNKNOWN, s.compileFor(n)
	case ast.FunctionDeclaration:
		return UNKNOWN, s.compileFunctionDeclaration(n)
	case ast.FunctionCall:
		return s.compileFunctionCall(n)
	case ast.ReturnStatement:
		return UNKNOWN, s.compileReturn(n)
	default:
		return UNKNOWN, DeveloperError{Message: fmt.Sprintf("no compiler handler for %T", e)}
	}
}

func (s *session) compileLiteral(lit ast.Literal) (TypeID, error) {
	tok := lit.Tok
	switch tok.Type {
	case token.NUMBER:
		n, ok := tok.Literal.(int32)
		if !ok {
			return UNKNOWN, DeveloperError{Message: "NUMBER literal token carries no int32 payload"}
		}
		s.emit("CONST", n)
		return NUMBER, nil
	case token.FLOAT:
		return UNKNOWN, SemanticError{Message: "floating-point literals have no bytecode representation yet"}
	case token.STRING:
		str, ok := tok.Literal.(string)
		if !ok {
			return UNKNOWN, DeveloperError{Message: "STRING literal token carries no string payload"}
		}
		s.emit("CONST", s.internString(str))
		return STRING, nil
	case token.BOOLEAN:
		b, _ := tok.Literal.(bool)
		if b {
			s.emit("CONST", 1)
		} else {
			s.emit("CONST", 0)
		}
		return BOOLEAN, nil
	case token.NULL:
		s.emit("CONST", 0)
		return NULL, nil
	default:
		return UNKNOWN, DeveloperError{Message: fmt.Sprintf("literal token %s has no compiled form", tok.Type)}
	}
}

func (s *session) compileUnary(u ast.Unary) (TypeID, error) {
	childType, err := s.dispatch(u.Child)
	if err != nil {
		return UNKNOWN, err
	}
	switch u.Op.Type {
	case token.MINUS:
		if childType != NUMBER {
			return UNKNOWN, SemanticError{Message: fmt.Sprintf("unary '-' requires NUMBER, got %s", childType)}
		}
		s.emit("NEG")
		return NUMBER, nil
	case token.TILDE:
		if childType != NUMBER {
			return UNKNOWN, SemanticError{Message: fmt.Sprintf("unary '~' requires NUMBER, got %s", childType)}
		}
		s.emit("BNOT")
		return NUMBER, nil
	case token.BANG:
		s.emit("NOT")
		return BOOLEAN, nil
	default:
		return UNKNOWN, DeveloperError{Message: fmt.Sprintf("unary operator %s has no compiled form", u.Op.Type)}
	}
}

func (s *session) compileBinary(b ast.Binary) (TypeID, error) {
	if b.Op.Type == token.ASSIGN {
		return s.compileAssign(b)
	}

	leftType, err := s.dispatch(b.Left)
	if err != nil {
		return UNKNOWN, err
	}
	rightType, err := s.dispatch(b.Right)
	if err != nil {
		return UNKNOWN, err
	}

	numeric := func(symbol string) (TypeID, error) {
		if leftType != NUMBER || rightType != NUMBER {
			return UNKNOWN, SemanticError{Message: fmt.Sprintf(
				"'%s' requires (NUMBER, NUMBER), got (%s, %s)", b.Op.Lexeme, leftType, rightType)}
		}
		s.emit(symbol)
		return NUMBER, nil
	}

	switch b.Op.Type {
	case token.PLUS:
		return numeric("ADD")
	case token.MINUS:
		return numeric("SUB")
	case token.STAR:
		return numeric("MUL")
	case token.SLASH:
		return numeric("DIV")
	case token.PERCENT:
		return numeric("MOD")
	case token.AMP:
		return numeric("BAND")
	case token.PIPE:
		return numeric("BOR")
	case token.CARET:
		return numeric("BXOR")
	case token.SHL:
		return numeric("SHL")
	case token.SHR:
		return numeric("SHRA")
	case token.AMPAMP:
		s.emit("AND")
		return BOOLEAN, nil
	case token.PIPEPIPE:
		s.emit("OR")
		return BOOLEAN, nil
	case token.EQEQ, token.NOTEQ, token.LT, token.LE, token.GT, token.GE:
		return UNKNOWN, SemanticError{Message: fmt.Sprintf(
			"comparison operator '%s' has no corresponding opcode in this instruction set yet", b.Op.Lexeme)}
	default:
		return UNKNOWN, DeveloperError{Message: fmt.Sprintf("binary operator %s has no compiled form", b.Op.Type)}
	}
}

func (s *session) compileAssign(b ast.Binary) (TypeID, error) {
	name, ok := b.Left.(ast.Variable)
	if !ok {
		return UNKNOWN, DeveloperError{Message: "left-hand side of assignment is not a variable"}
	}
	rhsType, err := s.dispatch(b.Right)
	if err != nil {
		return UNKNOWN, err
	}
	v := s.resolveVariable(name.Name.Lexeme)
	v.typ = rhsType
	s.emit("STORE", int32(v.id), int32(v.typ))
	return UNKNOWN, nil
}

func (s *session) compilePrint(p ast.PrintStatement) (TypeID, error) {
	argType, err := s.dispatch(p.Arg)
	if err != nil {
		return UNKNOWN, err
	}
	if argType == STRING {
		s.emit("WRITES", 1)
	} else {
		s.emit("WRITE", 1)
	}
	return UNKNOWN, nil
}

// compileIf uses a jump-if-false-then-patch technique: the condition is
// left on the stack, a placeholder IFZ skips the body, and its operand is
// patched to the first instruction after the body.
func (s *session) compileIf(n ast.IfStatement) error {
	if _, ok := n.Cond.(ast.CommaSeparatedList); ok {
		return SemanticError{Message: "if-condition must be a single expression, not a comma list"}
	}
	if _, err := s.dispatch(n.Cond); err != nil {
		return err
	}
	skip := s.emitPlaceholderJump("IFZ")
	if _, err := s.dispatch(n.Body); err != nil {
		return err
	}
	s.patchJump(skip, len(s.out))
	return nil
}

func (s *session) compileWhile(n ast.WhileLoop) error {
	if _, ok := n.Cond.(ast.CommaSeparatedList); ok {
		return SemanticError{Message: "while-condition must be a single expression, not a comma list"}
	}
	loopStart := len(s.out)
	if _, err := s.dispatch(n.Cond); err != nil {
		return err
	}
	exit := s.emitPlaceholderJump("IFZ")
	if _, err := s.dispatch(n.Body); err != nil {
		return err
	}
	s.emit("JUMP", int32(loopStart))
	s.patchJump(exit, len(s.out))
	return nil
}

func isEmpty(e ast.Expr) bool {
	_, ok := e.(ast.Empty)
	return ok || e == nil
}

func (s *session) compileFor(n ast.ForLoop) error {
	if !isEmpty(n.Init) {
		if _, err := s.dispatch(n.Init); err != nil {
			return err
		}
	}
	loopStart := len(s.out)
	var exit int
	hasCond := !isEmpty(n.Cond)
	if hasCond {
		if _, err := s.dispatch(n.Cond); err != nil {
			return err
		}
		exit = s.emitPlaceholderJump("IFZ")
	}
	if _, err := s.dispatch(n.Body); err != nil {
		return err
	}
	if !isEmpty(n.Post) {
		if _, err := s.dispatch(n.Post); err != nil {
			return err
		}
	}
	s.emit("JUMP", int32(loopStart))
	if hasCond {
		s.patchJump(exit, len(s.out))
	}
	return nil
}

// compileFunctionDeclaration inlines the function body in the instruction
// stream, guarded by a leading jump so straight-line execution skips over
// it, and binds parameters by popping caller-pushed arguments in reverse
// order (the last argument pushed is the first one on top of the stack).
//
// CALL leaves the return address on top of the N pushed arguments
// (arg1,...,argN,retAddr), but RETURN expects to find it directly beneath
// whatever it pops, so the prologue's first move is ROT N: pop retAddr and
// reinsert it below the arguments (retAddr,arg1,...,argN) before storing
// them into parameter variables one at a time.
func (s *session) compileFunctionDeclaration(n ast.FunctionDeclaration) error {
	name := n.Name.Name.Lexeme
	if _, exists := s.functions[name]; exists {
		return SemanticError{Message: fmt.Sprintf("function %q already declared in this chunk", name)}
	}
	skip := s.emitPlaceholderJump("JUMP")
	entry := len(s.out)

	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		pv, ok := p.(ast.Variable)
		if !ok {
			return DeveloperError{Message: "function parameter is not a Variable node"}
		}
		params[i] = pv.Name.Lexeme
	}
	s.functions[name] = funcEntry{entry: entry, params: params}

	if len(params) > 0 {
		s.emit("ROT", int32(len(params)))
	}
	for i := len(params) - 1; i >= 0; i-- {
		v := s.resolveVariable(params[i])
		v.typ = NUMBER
		s.emit("STORE", int32(v.id), int32(v.typ))
	}
	if _, err := s.dispatch(n.Body); err != nil {
		return err
	}
	if bodyFallsThrough(n.Body) {
		s.emit("RETURN", 0)
	}
	s.patchJump(skip, len(s.out))
	return nil
}

// bodyFallsThrough reports whether a function body can reach its own end
// without having already executed a ReturnStatement, in which case the
// caller still needs an epilogue to pop the return address and jump back.
// A body whose last top-level statement is a return never falls through;
// anything else (including an empty body) does.
func bodyFallsThrough(body ast.Subexprs) bool {
	if len(body.Statements) == 0 {
		return true
	}
	_, isReturn := body.Statements[len(body.Statements)-1].(ast.ReturnStatement)
	return !isReturn
}

func (s *session) compileFunctionCall(n ast.FunctionCall) (TypeID, error) {
	name := n.Name.Name.Lexeme
	fn, ok := s.functions[name]
	if !ok {
		return UNKNOWN, SemanticError{Message: fmt.Sprintf("call to undefined function %q", name)}
	}
	if len(n.Args) != len(fn.params) {
		return UNKNOWN, SemanticError{Message: fmt.Sprintf(
			"%q expects %d argument(s), got %d", name, len(fn.params), len(n.Args))}
	}
	for _, arg := range n.Args {
		if _, err := s.dispatch(arg); err != nil {
			return UNKNOWN, err
		}
	}
	s.emit("CALL", int32(fn.entry))
	return UNKNOWN, nil
}

func (s *session) compileReturn(n ast.ReturnStatement) error {
	if !isEmpty(n.Value) {
		if _, err := s.dispatch(n.Value); err != nil {
			return err
		}
		// The return value now sits on top of the return address pushed
		// by CALL. RETURN only ever pops a discard count and then the
		// return address itself, so rotate the address back above the
		// value: the jump pops the address and leaves the value behind
		// for the caller.
		s.emit("ROT", 1)
	}
	s.emit("RETURN", 0)
	return nil
}
