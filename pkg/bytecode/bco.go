package bytecode

import (
	"fmt"

	"github.com/nebula-lang/nebula/pkg/value"
)

// ArgDescriptor records the call-site arity contract for a BCO.
type ArgDescriptor struct {
	MinArgs  int
	MaxArgs  int
	Variadic bool
}

// Role distinguishes a procedure (Sub, no result) from a function
// (Function, yields a result) so the VM can enforce the "refuse
// procedures"/"refuse functions" call-site flags.
type Role byte

const (
	RoleProcedure Role = iota
	RoleFunction
)

// LineEntry maps an instruction index to a source line, used to build
// backtraces.
type LineEntry struct {
	InstructionIndex int
	Line             int
}

// Label is a symbolic jump target used during compilation, resolved to
// an absolute instruction index by Relocate.
type Label int

// pendingJump records an instruction whose Arg still holds a Label,
// awaiting resolution.
type pendingJump struct {
	instructionIndex int
	label            Label
}

// BCO (Bytecode Object) is the compiled, immutable unit of one
// compilation: code, literal pool, name pool, a local-variable name
// table, an argument
// descriptor, a role flag, a line table, and optional source
// file/subroutine names. It implements value.Subroutine structurally
// (IsFunction/Arity/Name) so pkg/value never imports this package.
type BCO struct {
	Code     []Instruction
	Literals []value.Value
	Names    []string
	Locals   []string
	Args     ArgDescriptor
	Role     Role
	Lines    []LineEntry

	SourceFile string
	SubName    string

	labels      map[Label]int
	pendingJmps []pendingJump
	relocated   bool
}

// NewBCO creates an empty, mutable BCO ready for code emission.
func NewBCO(role Role, sourceFile, subName string) *BCO {
	return &BCO{
		Role:       role,
		SourceFile: sourceFile,
		SubName:    subName,
		labels:     make(map[Label]int),
	}
}

// IsFunction satisfies value.Subroutine.
func (b *BCO) IsFunction() bool { return b.Role == RoleFunction }

// Arity satisfies value.Subroutine.
func (b *BCO) Arity() (min, max int, variadic bool) {
	return b.Args.MinArgs, b.Args.MaxArgs, b.Args.Variadic
}

// Name satisfies value.Subroutine.
func (b *BCO) Name() string {
	if b.SubName != "" {
		return b.SubName
	}
	return "<anonymous>"
}

// Emit appends an instruction and returns its index.
func (b *BCO) Emit(op Opcode, minor byte, arg uint16) int {
	b.Code = append(b.Code, Instruction{Op: op, Minor: minor, Arg: arg})
	return len(b.Code) - 1
}

// EmitLine records that the instruction about to be emitted corresponds
// to the given source line.
func (b *BCO) EmitLine(line int) {
	b.Lines = append(b.Lines, LineEntry{InstructionIndex: len(b.Code), Line: line})
}

// LineForPC returns the source line active at the given instruction
// index, using the last LineEntry at or before pc.
func (b *BCO) LineForPC(pc int) int {
	line := 0
	for _, e := range b.Lines {
		if e.InstructionIndex > pc {
			break
		}
		line = e.Line
	}
	return line
}

// NewLabel allocates a fresh symbolic jump target.
func (b *BCO) NewLabel() Label {
	l := Label(len(b.labels) + 1)
	b.labels[l] = -1
	return l
}

// PlaceLabel binds l to the next instruction that will be emitted.
func (b *BCO) PlaceLabel(l Label) {
	b.labels[l] = len(b.Code)
}

// EmitJump emits a jump instruction whose Arg is a placeholder, to be
// fixed up to l's absolute index during Relocate.
func (b *BCO) EmitJump(minor byte, l Label) int {
	idx := b.Emit(OpJump, minor, 0)
	b.pendingJmps = append(b.pendingJmps, pendingJump{instructionIndex: idx, label: l})
	return idx
}

// AddLiteral appends v to the literal pool, returning its index. Equal
// literals are not merged: each call adds a new slot.
func (b *BCO) AddLiteral(v value.Value) uint16 {
	b.Literals = append(b.Literals, v)
	return uint16(len(b.Literals) - 1)
}

// AddName interns name into the name pool, returning its index.
func (b *BCO) AddName(name string) uint16 {
	for i, n := range b.Names {
		if n == name {
			return uint16(i)
		}
	}
	b.Names = append(b.Names, name)
	return uint16(len(b.Names) - 1)
}

// AddLocal declares a local variable slot, returning its index.
func (b *BCO) AddLocal(name string) uint16 {
	b.Locals = append(b.Locals, name)
	return uint16(len(b.Locals) - 1)
}

// Relocate resolves every symbolic label recorded via EmitJump to an
// absolute instruction index and marks the BCO immutable for the VM.
// Calling it twice is a no-op.
func (b *BCO) Relocate() error {
	if b.relocated {
		return nil
	}
	for _, pj := range b.pendingJmps {
		target, ok := b.labels[pj.label]
		if !ok || target < 0 {
			return fmt.Errorf("bytecode: unplaced label %d referenced by instruction %d", pj.label, pj.instructionIndex)
		}
		b.Code[pj.instructionIndex].Arg = uint16(target)
	}
	b.pendingJmps = nil
	b.relocated = true
	return nil
}

// Relocated reports whether Relocate has successfully run.
func (b *BCO) Relocated() bool { return b.relocated }
