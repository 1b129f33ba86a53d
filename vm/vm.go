// Package vm implements CCIL's stack-based virtual machine: a tight
// dispatch loop over a flat instruction chunk, a 32-bit operand stack, and
// a tagged variable store.
package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"ccil/opcode"
)

// TypeTag mirrors compiler.TypeID numerically — STORE's second argument is
// exactly the int32 the compiler wrote there, so the two enums must stay
// in lockstep. Kept as a separate, VM-local type so this package doesn't
// need to import the compiler.
type TypeTag int32

const (
	TagUnknown TypeTag = iota
	TagNumber
	TagFloat
	TagString
	TagBoolean
	TagNull
)

// Value is a tagged variable value. The operand stack never carries a
// tag — only a variable's resting value does, consulted when LOAD
// re-pushes it. WRITE and WRITES format the popped integer by opcode and
// never look at a tag.
type Value struct {
	Tag       TypeTag
	Number    int32
	StrOffset int32
	Bool      bool
}

// VM is the runtime: operand stack, variable store, a read-only borrow of
// the compiler's string pool, and the set of files opened beyond
// stdout/stderr. Reused across REPL iterations: SetStringPool lets a caller
// rebind a growing string pool without losing stack or variable state.
type VM struct {
	stack       Stack
	variables   map[int32]Value
	stringPool  []byte
	table       *opcode.Table
	openedFiles []*os.File
	Debug       bool

	// MaxStackDepth caps the operand stack, guarding against runaway
	// recursion in CALL-heavy programs. Zero means unlimited.
	MaxStackDepth int

	Stdout *os.File
	Stderr *os.File
}

// New builds a VM against the given opcode registry. The string pool is
// empty until SetStringPool is called — the caller's Compiler is the
// source of truth for it.
func New(table *opcode.Table) *VM {
	return &VM{
		variables: make(map[int32]Value),
		table:     table,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// push appends to the operand stack, failing once MaxStackDepth (if set)
// is exceeded rather than growing without bound.
func (vm *VM) push(v int32) error {
	if vm.MaxStackDepth > 0 && len(vm.stack) >= vm.MaxStackDepth {
		return RuntimeError{Message: fmt.Sprintf("operand stack exceeded max depth %d", vm.MaxStackDepth)}
	}
	vm.stack.Push(v)
	return nil
}

// SetStringPool rebinds the VM's read-only view of the string pool. Called
// after every compile in a REPL session, since the pool only grows.
func (vm *VM) SetStringPool(pool []byte) {
	vm.stringPool = pool
}

func (vm *VM) readString(offset int32) (string, error) {
	if offset < 0 || int(offset) > len(vm.stringPool) {
		return "", RuntimeError{Message: fmt.Sprintf("string pool offset %d out of range", offset)}
	}
	end := bytes.IndexByte(vm.stringPool[offset:], 0)
	if end < 0 {
		return "", RuntimeError{Message: fmt.Sprintf("unterminated string at pool offset %d", offset)}
	}
	return string(vm.stringPool[int(offset) : int(offset)+end]), nil
}

// Run executes chunk starting at offset 0 (or immediately after a header,
// if the caller has already stripped one — Run itself never inspects the
// header). Execution stops at EXIT or the end of the chunk.
func (vm *VM) Run(chunk []byte) error {
	offset := 0
	for offset < len(chunk) {
		op, ok := vm.table.ByByte(chunk[offset])
		if !ok {
			return RuntimeError{Offset: offset, Message: fmt.Sprintf("unknown opcode 0x%02X", chunk[offset])}
		}
		args := make([]int32, op.NumParams)
		for i := 0; i < op.NumParams; i++ {
			start := offset + 1 + 4*i
			if start+4 > len(chunk) {
				return RuntimeError{Offset: offset, Message: fmt.Sprintf("truncated argument for %s", op.Symbol)}
			}
			args[i] = int32(binary.LittleEndian.Uint32(chunk[start : start+4]))
		}
		if vm.Debug {
			fmt.Fprintf(vm.Stderr, "%04d  %-6s %v  stack=%v\n", offset, op.Symbol, args, []int32(vm.stack))
		}
		next, halt, err := vm.handle(op, args, offset)
		if err != nil {
			return err
		}
		if halt {
			return nil
		}
		offset = next
	}
	return nil
}

func (vm *VM) size(op opcode.OpCode) int {
	return 1 + 4*op.NumParams
}

func (vm *VM) pop() (int32, error) {
	v, ok := vm.stack.Pop()
	if !ok {
		return 0, RuntimeError{Message: "pop from empty stack"}
	}
	return v, nil
}

// handle executes one instruction and returns the next offset, or halt=true
// on EXIT. Every RuntimeError it returns is stamped with offset on the way
// out, so individual cases and helpers don't each have to set it.
func (vm *VM) handle(op opcode.OpCode, args []int32, offset int) (next int, halt bool, err error) {
	defer func() {
		if re, ok := err.(RuntimeError); ok {
			re.Offset = offset
			err = re
		}
	}()
	switch op.Byte {
	case opcode.NOP:
		return offset + vm.size(op), false, nil

	case opcode.CONST:
		if err := vm.push(args[0]); err != nil {
			return 0, false, err
		}

	case opcode.POP:
		if _, err := vm.pop(); err != nil {
			return 0, false, err
		}

	case opcode.DROP:
		if !vm.stack.DropN(args[0]) {
			return 0, false, RuntimeError{Message: "DROP: not enough items on stack"}
		}

	case opcode.COPY:
		if !vm.stack.CopyDepth(args[0]) {
			return 0, false, RuntimeError{Message: "COPY: depth out of range"}
		}

	case opcode.STORE:
		val, err := vm.pop()
		if err != nil {
			return 0, false, err
		}
		tagged, err := tagValue(TypeTag(args[1]), val)
		if err != nil {
			return 0, false, err
		}
		vm.variables[args[0]] = tagged

	case opcode.LOAD:
		v, ok := vm.variables[args[0]]
		if !ok {
			return 0, false, RuntimeError{Message: fmt.Sprintf("read of undeclared variable %d", args[0])}
		}
		if err := vm.push(untagValue(v)); err != nil {
			return 0, false, err
		}

	case opcode.SWAP:
		if !vm.stack.Swap() {
			return 0, false, RuntimeError{Message: "SWAP: fewer than two items on stack"}
		}

	case opcode.ROT:
		if !vm.stack.RotN(args[0]) {
			return 0, false, RuntimeError{Message: "ROT: depth out of range"}
		}

	case opcode.NEG:
		a, err := vm.pop()
		if err != nil {
			return 0, false, err
		}
		if err := vm.push(-a); err != nil {
			return 0, false, err
		}

	case opcode.ADD, opcode.SUB, opcode.MUL, opcode.DIV, opcode.MOD:
		result, err := vm.arith(op.Byte)
		if err != nil {
			return 0, false, err
		}
		if err := vm.push(result); err != nil {
			return 0, false, err
		}

	case opcode.BNOT:
		a, err := vm.pop()
		if err != nil {
			return 0, false, err
		}
		if err := vm.push(^a); err != nil {
			return 0, false, err
		}

	case opcode.BOR, opcode.BAND, opcode.BXOR, opcode.SHL, opcode.SHRL, opcode.SHRA:
		result, err := vm.bitwise(op.Byte)
		if err != nil {
			return 0, false, err
		}
		if err := vm.push(result); err != nil {
			return 0, false, err
		}

	case opcode.NOT:
		a, err := vm.pop()
		if err != nil {
			return 0, false, err
		}
		if err := vm.push(boolToInt(a == 0)); err != nil {
			return 0, false, err
		}

	case opcode.OR, opcode.AND, opcode.XOR:
		result, err := vm.logical(op.Byte)
		if err != nil {
			return 0, false, err
		}
		if err := vm.push(result); err != nil {
			return 0, false, err
		}

	case opcode.JUMP:
		return int(args[0]), false, nil

	case opcode.IFZ:
		a, err := vm.pop()
		if err != nil {
			return 0, false, err
		}
		if a == 0 {
			return int(args[0]), false, nil
		}

	case opcode.IFNZ:
		a, err := vm.pop()
		if err != nil {
			return 0, false, err
		}
		if a != 0 {
			return int(args[0]), false, nil
		}

	case opcode.CALL:
		if err := vm.push(int32(offset + vm.size(op))); err != nil {
			return 0, false, err
		}
		return int(args[0]), false, nil

	case opcode.RETURN:
		if !vm.stack.DropN(args[0]) {
			return 0, false, RuntimeError{Message: "RETURN: not enough locals to pop"}
		}
		retAddr, err := vm.pop()
		if err != nil {
			return 0, false, RuntimeError{Message: "RETURN: no return address on stack"}
		}
		return int(retAddr), false, nil

	case opcode.EXIT:
		return 0, true, nil

	case opcode.WRITE:
		return vm.writeNumber(args[0], offset+vm.size(op))

	case opcode.WRITES:
		return vm.writeString(args[0], offset+vm.size(op))

	default:
		return 0, false, RuntimeError{Message: fmt.Sprintf("%s has no VM handler", op.Symbol)}
	}
	return offset + vm.size(op), false, nil
}

func (vm *VM) arith(b byte) (int32, error) {
	rhs, err := vm.pop()
	if err != nil {
		return 0, err
	}
	lhs, err := vm.pop()
	if err != nil {
		return 0, err
	}
	switch b {
	case opcode.ADD:
		return lhs + rhs, nil
	case opcode.SUB:
		return lhs - rhs, nil
	case opcode.MUL:
		return lhs * rhs, nil
	case opcode.DIV:
		if rhs == 0 {
			return 0, RuntimeError{Message: "division by zero"}
		}
		return lhs / rhs, nil
	case opcode.MOD:
		if rhs == 0 {
			return 0, RuntimeError{Message: "modulo by zero"}
		}
		return lhs % rhs, nil
	}
	panic("unreachable")
}

func (vm *VM) bitwise(b byte) (int32, error) {
	rhs, err := vm.pop()
	if err != nil {
		return 0, err
	}
	lhs, err := vm.pop()
	if err != nil {
		return 0, err
	}
	switch b {
	case opcode.BOR:
		return lhs | rhs, nil
	case opcode.BAND:
		return lhs & rhs, nil
	case opcode.BXOR:
		return lhs ^ rhs, nil
	case opcode.SHL:
		return lhs << uint32(rhs), nil
	case opcode.SHRL:
		return int32(uint32(lhs) >> uint32(rhs)), nil
	case opcode.SHRA:
		return lhs >> uint32(rhs), nil
	}
	panic("unreachable")
}

func (vm *VM) logical(b byte) (int32, error) {
	rhs, err := vm.pop()
	if err != nil {
		return 0, err
	}
	lhs, err := vm.pop()
	if err != nil {
		return 0, err
	}
	l, r := lhs != 0, rhs != 0
	switch b {
	case opcode.OR:
		return boolToInt(l || r), nil
	case opcode.AND:
		return boolToInt(l && r), nil
	case opcode.XOR:
		return boolToInt(l != r), nil
	}
	panic("unreachable")
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// tagValue implements STORE's promotion from a raw popped integer to a
// tagged variable value, per the type-id argument.
func tagValue(tag TypeTag, raw int32) (Value, error) {
	switch tag {
	case TagString:
		return Value{Tag: tag, StrOffset: raw}, nil
	case TagNumber:
		return Value{Tag: tag, Number: raw}, nil
	case TagBoolean:
		return Value{Tag: tag, Bool: raw != 0}, nil
	case TagNull:
		return Value{Tag: tag}, nil
	default:
		return Value{}, RuntimeError{Message: fmt.Sprintf("STORE: type tag %d is not implemented", tag)}
	}
}

// untagValue implements LOAD's inverse: the raw integer representation of
// a tagged value, as it would sit on the operand stack.
func untagValue(v Value) int32 {
	switch v.Tag {
	case TagString:
		return v.StrOffset
	case TagBoolean:
		return boolToInt(v.Bool)
	case TagNumber:
		return v.Number
	default:
		return 0
	}
}

// File-descriptor routing per spec: 0 is stdin (writing there is fatal), 1
// is stdout, 2 is stderr, and anything higher indexes the opened-files
// list. No instruction in this set ever opens a file, so that list is
// always empty — a write to fd >= 3 can only ever fail.
func (vm *VM) fileFor(fd int32) (*os.File, error) {
	switch fd {
	case 0:
		return nil, RuntimeError{Message: "write to stdin (fd 0) is fatal"}
	case 1:
		return vm.Stdout, nil
	case 2:
		return vm.Stderr, nil
	default:
		idx := int(fd) - 2
		if idx < 1 || idx > len(vm.openedFiles) {
			return nil, RuntimeError{Message: fmt.Sprintf("no open file at descriptor %d", fd)}
		}
		return vm.openedFiles[idx-1], nil
	}
}

func (vm *VM) writeNumber(fd int32, nextOffset int) (int, bool, error) {
	v, err := vm.pop()
	if err != nil {
		return 0, false, err
	}
	f, err := vm.fileFor(fd)
	if err != nil {
		return 0, false, err
	}
	fmt.Fprintf(f, "%d\n", v)
	return nextOffset, false, nil
}

func (vm *VM) writeString(fd int32, nextOffset int) (int, bool, error) {
	offset, err := vm.pop()
	if err != nil {
		return 0, false, err
	}
	s, err := vm.readString(offset)
	if err != nil {
		return 0, false, err
	}
	f, err := vm.fileFor(fd)
	if err != nil {
		return 0, false, err
	}
	fmt.Fprintf(f, "%s\n", s)
	return nextOffset, false, nil
}
