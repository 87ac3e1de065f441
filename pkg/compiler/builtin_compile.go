package compiler

import (
	"github.com/nebula-lang/nebula/pkg/ast"
	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

// compileBuiltinCall emits the bytecode pattern for one of the closed
// intrinsics, dispatching by BuiltinKind rather than by name so every
// member of a family shares one emission path.
func (c *Compiler) compileBuiltinCall(e *ast.BuiltinCall) {
	entry, ok := c.builtins.Lookup(e.Name)
	if !ok {
		c.errorf("unknown built-in %s", e.Name)
		return
	}

	switch entry.Kind {
	case BuiltinFold:
		c.compileFoldBuiltin(entry, e.Args)
	case BuiltinUnary:
		c.compileExpr(e.Args[0])
		c.bco.Emit(bytecode.OpUnary, entry.Op, 0)
	case BuiltinBinary:
		c.compileExpr(e.Args[0])
		c.compileExpr(e.Args[1])
		c.bco.Emit(bytecode.OpBinary, entry.Op, 0)
	case BuiltinOneOrTwo:
		c.compileExpr(e.Args[0])
		if len(e.Args) == 2 {
			c.compileExpr(e.Args[1])
		} else {
			c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeInteger), 1)
		}
		c.bco.Emit(bytecode.OpBinary, entry.Op, 0)
	case BuiltinCaseOp:
		c.compileCaseOpBuiltin(entry, e.Args)
	case BuiltinIf:
		c.compileIfBuiltin(e.Args)
	case BuiltinCount:
		c.compileCountBuiltin(entry, e.Args)
	case BuiltinFind:
		c.compileFindBuiltin(entry, e.Args)
	case BuiltinMid:
		c.compileMidBuiltin(e.Args)
	case BuiltinStrCase:
		// StrCase compiles its argument with the case-sensitive flag
		// forced on; since the Parser has already finished building the
		// AST by the time the compiler walks it, the case-sensitivity
		// decision was captured per-Binary-node at parse time (see
		// ast.Binary.CaseSensitive) and StrCase itself emits no opcode.
		c.compileExpr(e.Args[0])
	case BuiltinKey:
		c.compileKeyBuiltin(e.Args)
	case BuiltinEval:
		c.compileExpr(e.Args[0])
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialEvalExpr), 0)
	case BuiltinNewHash:
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialNewHash), 0)
	default:
		c.errorf("unhandled built-in kind for %s", e.Name)
	}
}

// compileFoldBuiltin emits `<a0>; (<ai>; binop)*` for Min/Max/BitAnd/
// BitOr/BitXor. A single-argument BitAnd/Or/Xor call ORs with 0 first to
// force an integer type-check.
func (c *Compiler) compileFoldBuiltin(entry BuiltinEntry, args []ast.Expression) {
	op := bytecode.BinOp(entry.Op)
	c.compileExpr(args[0])
	if len(args) == 1 && (op == bytecode.BinBitAnd || op == bytecode.BinBitOr || op == bytecode.BinBitXor) {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeInteger), 0)
		c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinBitOr), 0)
		return
	}
	for _, a := range args[1:] {
		c.compileExpr(a)
		c.bco.Emit(bytecode.OpBinary, entry.Op, 0)
	}
}

// compileCaseOpBuiltin handles First/Rest/InStr: First/Rest swap their
// operand order relative to Find before emitting.
func (c *Compiler) compileCaseOpBuiltin(entry BuiltinEntry, args []ast.Expression) {
	op := bytecode.BinOp(entry.Op)
	switch op {
	case bytecode.BinFirstStr, bytecode.BinRestStr:
		c.compileExpr(args[1])
		c.compileExpr(args[0])
	default:
		c.compileExpr(args[0])
		c.compileExpr(args[1])
	}
	if !c.caseSensitiveHint(args) {
		op = op + 1
	}
	c.bco.Emit(bytecode.OpBinary, byte(op), 0)
}

// caseSensitiveHint reads the ambient case-sensitivity flag off the
// first Binary-shaped argument, falling back to case-insensitive (the
// ambient default) when no such hint is present.
func (c *Compiler) caseSensitiveHint(args []ast.Expression) bool {
	for _, a := range args {
		if b, ok := a.(*ast.Binary); ok {
			return b.CaseSensitive
		}
	}
	return false
}

func (c *Compiler) compileIfBuiltin(args []ast.Expression) {
	elseLabel := c.bco.NewLabel()
	endLabel := c.bco.NewLabel()

	c.compileExpr(args[0])
	c.bco.EmitJump(byte(bytecode.JumpIfFalse|bytecode.JumpPopAlways), elseLabel)
	c.compileExpr(args[1])
	c.bco.EmitJump(byte(bytecode.JumpAlways), endLabel)
	c.bco.PlaceLabel(elseLabel)
	if len(args) == 3 {
		c.compileExpr(args[2])
	} else {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Null()))
	}
	c.bco.PlaceLabel(endLabel)
}

// compileCountBuiltin implements Count(a[,q]) and the CountShips/
// CountPlanets specializations, which push the host SHIP/PLANET global
// and pre-fix q's implicit first argument to ID.
func (c *Compiler) compileCountBuiltin(entry BuiltinEntry, args []ast.Expression) {
	var collection ast.Expression
	var predicate ast.Expression
	if entry.Op == 1 || entry.Op == 2 {
		globalName := "SHIP"
		if entry.Op == 2 {
			globalName = "PLANET"
		}
		collection = &ast.Identifier{Name: globalName}
		if len(args) > 0 {
			predicate = args[0]
		}
	} else {
		collection = args[0]
		if len(args) > 1 {
			predicate = args[1]
		}
	}

	counterSlot := c.declareLocal("$count")
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeInteger), 0)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeLocal), counterSlot)
	c.bco.Emit(bytecode.OpPop, 0, 0)

	c.compileExpr(collection)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialFirstIndex), 0)
	endLabel := c.bco.NewLabel()
	c.bco.EmitJump(byte(bytecode.JumpIfFalse|bytecode.JumpPopAlways), endLabel)

	loopLabel := c.bco.NewLabel()
	c.bco.PlaceLabel(loopLabel)
	if predicate != nil {
		c.compileExpr(predicate)
	} else {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeBoolean), 1)
	}
	skipInc := c.bco.NewLabel()
	c.bco.EmitJump(byte(bytecode.JumpIfFalse|bytecode.JumpPopAlways), skipInc)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), counterSlot)
	c.bco.Emit(bytecode.OpUnary, byte(bytecode.UnIncrement), 0)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeLocal), counterSlot)
	c.bco.Emit(bytecode.OpPop, 0, 0)
	c.bco.PlaceLabel(skipInc)

	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialNextIndex), 0)
	c.bco.EmitJump(byte(bytecode.JumpIfTrue|bytecode.JumpPopAlways), loopLabel)
	c.bco.PlaceLabel(endLabel)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialEndIndex), 0)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), counterSlot)
}

// compileFindBuiltin implements Find(a,q,v) and FindShip/FindPlanet.
func (c *Compiler) compileFindBuiltin(entry BuiltinEntry, args []ast.Expression) {
	var collection, predicate, extract ast.Expression
	if entry.Op == 1 || entry.Op == 2 {
		globalName := "SHIP"
		if entry.Op == 2 {
			globalName = "PLANET"
		}
		collection = &ast.Identifier{Name: globalName}
		predicate = args[0]
		extract = &ast.Member{Receiver: &ast.Identifier{Name: "$it"}, Field: "ID"}
	} else {
		collection, predicate, extract = args[0], args[1], args[2]
	}

	c.compileExpr(collection)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialFirstIndex), 0)
	notFoundLabel := c.bco.NewLabel()
	endLabel := c.bco.NewLabel()
	c.bco.EmitJump(byte(bytecode.JumpIfFalse|bytecode.JumpPopAlways), notFoundLabel)

	loopLabel := c.bco.NewLabel()
	c.bco.PlaceLabel(loopLabel)
	c.compileExpr(predicate)
	foundLabel := c.bco.NewLabel()
	c.bco.EmitJump(byte(bytecode.JumpIfTrue|bytecode.JumpPopAlways), foundLabel)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialNextIndex), 0)
	c.bco.EmitJump(byte(bytecode.JumpIfTrue|bytecode.JumpPopAlways), loopLabel)
	c.bco.EmitJump(byte(bytecode.JumpAlways), notFoundLabel)

	c.bco.PlaceLabel(foundLabel)
	c.compileExpr(extract)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialEndIndex), 0)
	c.bco.EmitJump(byte(bytecode.JumpAlways), endLabel)

	c.bco.PlaceLabel(notFoundLabel)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Null()))
	c.bco.PlaceLabel(endLabel)
}

// compileMidBuiltin implements Mid(s,p,n) as `s; p; LCut; n; RCut`.
func (c *Compiler) compileMidBuiltin(args []ast.Expression) {
	c.compileExpr(args[0])
	c.compileExpr(args[1])
	c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinLCut), 0)
	if len(args) == 3 {
		c.compileExpr(args[2])
		c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinRCut), 0)
	}
}

// compileKeyBuiltin implements Key(m,k): m must be an identifier naming
// a keymap, compiled as a literal keymap-lookup then KeyFind.
func (c *Compiler) compileKeyBuiltin(args []ast.Expression) {
	ident, ok := args[0].(*ast.Identifier)
	if !ok {
		c.errorf("Key's first argument must be a keymap name")
		return
	}
	nameIdx := c.bco.AddName(ident.Name)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeNamedShared), nameIdx)
	c.compileExpr(args[1])
	c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinKeyFind), 0)
}
