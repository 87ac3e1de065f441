package compiler

import (
	"github.com/nebula-lang/nebula/pkg/ast"
	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

// compileExpr emits code that leaves exactly one value on the stack.
func (c *Compiler) compileExpr(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.NullLiteral:
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Null()))
	case *ast.IntegerLiteral:
		c.compileIntegerLiteral(e)
	case *ast.FloatLiteral:
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Float(e.Value)))
	case *ast.StringLiteral:
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.String(e.Value)))
	case *ast.BooleanLiteral:
		arg := uint16(0)
		if e.Value {
			arg = 1
		}
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeBoolean), arg)
	case *ast.Identifier:
		c.compileIdentifierRead(e)
	case *ast.Sequence:
		c.compileExpr(e.First)
		c.bco.Emit(bytecode.OpPop, 0, 0)
		c.compileExpr(e.Second)
	case *ast.Assignment:
		c.compileExpr(e.Value)
		c.compileAssignTo(e.Target)
	case *ast.Logical:
		c.compileLogical(e)
	case *ast.Not:
		c.compileExpr(e.Operand)
		c.bco.Emit(bytecode.OpUnary, byte(bytecode.UnNot), 0)
	case *ast.Binary:
		c.compileBinary(e)
	case *ast.Unary:
		c.compileUnary(e)
	case *ast.Power:
		c.compileExpr(e.Radix)
		c.compileExpr(e.Exponent)
		c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinPow), 0)
	case *ast.Member:
		c.compileExpr(e.Receiver)
		nameIdx := c.bco.AddName(e.Field)
		c.bco.Emit(bytecode.OpMemRef, 0, nameIdx)
	case *ast.IndirectCall:
		c.compileIndirectCall(e)
	case *ast.BuiltinCall:
		c.compileBuiltinCall(e)
	case *ast.FileNumber:
		c.compileExpr(e.Operand)
		c.bco.Emit(bytecode.OpUnary, byte(bytecode.UnFileNr), 0)
	default:
		c.errorf("unsupported expression %T", expr)
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Null()))
	}
}

func (c *Compiler) compileIntegerLiteral(e *ast.IntegerLiteral) {
	if e.Value >= 0 && e.Value <= 0xFFFF {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeInteger), uint16(e.Value))
		return
	}
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Int(e.Value)))
}

// compileIdentifierRead resolves a bare identifier to Local, Static, or
// NamedVariable scope: locals declared in the current frame
// win, otherwise the instruction defers to the context-chain search the
// VM performs at runtime for NamedVariable/NamedShared pushes.
func (c *Compiler) compileIdentifierRead(e *ast.Identifier) {
	if idx, ok := c.localSlot(e.Name); ok {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), idx)
		return
	}
	nameIdx := c.bco.AddName(e.Name)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeNamedVariable), nameIdx)
}

// compileAssignTo emits the store half of an assignment; the value to
// store is assumed already on the stack (assignment leaves it there so
// assignments can themselves be used as values).
func (c *Compiler) compileAssignTo(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		if idx, ok := c.localSlot(t.Name); ok {
			c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeLocal), idx)
			return
		}
		nameIdx := c.bco.AddName(t.Name)
		c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeNamedVariable), nameIdx)
	case *ast.Member:
		c.compileExpr(t.Receiver)
		nameIdx := c.bco.AddName(t.Field)
		c.bco.Emit(bytecode.OpMemRef, 1, nameIdx)
	case *ast.IndirectCall:
		c.compileExpr(t.Callee)
		for _, a := range t.Args {
			c.compileExpr(a)
		}
		c.bco.Emit(bytecode.OpStack, 0, uint16(len(t.Args)))
	default:
		c.errorf("invalid assignment target %T", target)
	}
}

// compileLogical implements short-circuiting And/Or; Xor always
// evaluates both operands since it has no short-circuit identity.
func (c *Compiler) compileLogical(e *ast.Logical) {
	if e.Op == "XOR" {
		c.compileExpr(e.Left)
		c.compileExpr(e.Right)
		c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinXor), 0)
		return
	}

	shortCircuitOn := bytecode.JumpIfTrue
	if e.Op == "AND" {
		shortCircuitOn = bytecode.JumpIfFalse
	}

	skip := c.bco.NewLabel()
	end := c.bco.NewLabel()

	c.compileExpr(e.Left)
	c.bco.EmitJump(byte(shortCircuitOn), skip)
	c.bco.Emit(bytecode.OpPop, 0, 0)
	c.compileExpr(e.Right)
	c.bco.EmitJump(byte(bytecode.JumpAlways), end)
	c.bco.PlaceLabel(skip)
	c.bco.PlaceLabel(end)
}

var binOpByToken = map[string]bytecode.BinOp{
	"AND": bytecode.BinAnd, "OR": bytecode.BinOr, "XOR": bytecode.BinXor,
	"+": bytecode.BinAdd, "-": bytecode.BinSub, "*": bytecode.BinMul,
	"/": bytecode.BinDiv, `\`: bytecode.BinIDiv, "MOD": bytecode.BinMod,
	"#": bytecode.BinConcat, "&": bytecode.BinConcatEmpty,
	"=": bytecode.BinEq, "<>": bytecode.BinNe,
	"<": bytecode.BinLt, ">": bytecode.BinGt,
	"<=": bytecode.BinLe, ">=": bytecode.BinGe,
}

func (c *Compiler) compileBinary(e *ast.Binary) {
	c.compileExpr(e.Left)
	c.compileExpr(e.Right)
	op, ok := binOpByToken[e.Op]
	if !ok {
		c.errorf("unknown binary operator %q", e.Op)
		return
	}
	if op.HasNCTwin() && !e.CaseSensitive {
		op = op + 1
	}
	c.bco.Emit(bytecode.OpBinary, byte(op), 0)
}

var unOpByToken = map[string]bytecode.UnOp{
	"+": bytecode.UnPositive, "-": bytecode.UnNegate,
}

func (c *Compiler) compileUnary(e *ast.Unary) {
	c.compileExpr(e.Operand)
	op, ok := unOpByToken[e.Op]
	if !ok {
		c.errorf("unknown unary operator %q", e.Op)
		return
	}
	c.bco.Emit(bytecode.OpUnary, byte(op), 0)
}

// compileIndirectCall implements the calling convention: args
// pushed left-to-right, then the callee, then `call N`.
func (c *Compiler) compileIndirectCall(e *ast.IndirectCall) {
	for _, a := range e.Args {
		c.compileExpr(a)
	}
	c.compileExpr(e.Callee)
	c.bco.Emit(bytecode.OpIndirectCall, byte(bytecode.CallRefuseProcedures), uint16(len(e.Args)))
}
