package bytecode

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Disassemble writes a human-readable instruction/constant-pool listing
// of b to w. When colorize is true, opcodes are colorized by
// family the way a terminal disassembler view would; callers pass false
// when w is not a TTY (see cmd/nebula, which checks go-isatty).
func Disassemble(w io.Writer, b *BCO, colorize bool) {
	fmt.Fprintf(w, "; sub %q  file %q  role=%v  args=[%d,%d] variadic=%v\n",
		b.Name(), b.SourceFile, b.Role, b.Args.MinArgs, b.Args.MaxArgs, b.Args.Variadic)

	opColor := color.New(color.FgCyan)
	argColor := color.New(color.FgYellow)
	paint := func(s string, c *color.Color) string {
		if !colorize {
			return s
		}
		return c.Sprint(s)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PC", "LINE", "OPCODE", "MINOR", "ARG", "DETAIL"})
	table.SetAutoWrapText(false)

	for pc, inst := range b.Code {
		line := b.LineForPC(pc)
		detail := detailFor(b, inst)
		table.Append([]string{
			fmt.Sprintf("%04d", pc),
			fmt.Sprintf("%d", line),
			paint(inst.Op.String(), opColor),
			minorString(inst.Op, inst.Minor),
			paint(fmt.Sprintf("%d", inst.Arg), argColor),
			detail,
		})
	}
	table.Render()

	if len(b.Literals) > 0 {
		fmt.Fprintln(w, "; literals")
		lt := tablewriter.NewWriter(w)
		lt.SetHeader([]string{"INDEX", "VALUE"})
		for i, lit := range b.Literals {
			lt.Append([]string{fmt.Sprintf("%d", i), lit.String()})
		}
		lt.Render()
	}
}

func minorString(op Opcode, minor byte) string {
	switch op {
	case OpPush, OpStore, OpPop:
		return Scope(minor).String()
	case OpBinary, OpFusedBinary, OpFusedCompare, OpFusedCompare2:
		return BinOp(minor).String()
	case OpUnary, OpFusedUnary, OpInplaceUnary:
		return UnOp(minor).String()
	case OpJump:
		return JumpCondition(minor).String()
	case OpSpecial:
		return Special(minor).String()
	default:
		return fmt.Sprintf("%d", minor)
	}
}

func detailFor(b *BCO, inst Instruction) string {
	switch inst.Op {
	case OpPush, OpStore, OpPop:
		switch Scope(inst.Minor) {
		case ScopeNamedVariable, ScopeNamedShared:
			if int(inst.Arg) < len(b.Names) {
				return b.Names[inst.Arg]
			}
		case ScopeLocal, ScopeStatic:
			if int(inst.Arg) < len(b.Locals) {
				return b.Locals[inst.Arg]
			}
		case ScopeLiteral:
			if int(inst.Arg) < len(b.Literals) {
				return b.Literals[inst.Arg].String()
			}
		}
	}
	return ""
}
