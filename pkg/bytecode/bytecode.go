// Package bytecode defines the instruction set, binary/unary operation
// tables, and the Bytecode Object (BCO) container.
//
// Instructions are (major opcode, minor opcode, 16-bit argument) triples
// rather than a single packed operand: the major opcode selects the
// dispatch family in pkg/vm, the minor opcode selects a scope or a
// specific operation within that family (a push scope, a binary op, a
// jump condition mask), and the argument is either a literal/name/local
// index or an immediate small integer.
package bytecode

// Opcode is a major instruction family.
type Opcode byte

const (
	OpPush Opcode = iota
	OpStore
	OpPop
	OpBinary
	OpUnary
	OpTernary
	OpJump
	OpIndirectCall
	OpStack
	OpMemRef
	OpDim
	OpSpecial
	OpFusedUnary
	OpFusedBinary
	OpFusedCompare
	OpFusedCompare2
	OpInplaceUnary
)

var opcodeNames = map[Opcode]string{
	OpPush: "push", OpStore: "store", OpPop: "pop", OpBinary: "binary",
	OpUnary: "unary", OpTernary: "ternary", OpJump: "jump",
	OpIndirectCall: "call", OpStack: "stack", OpMemRef: "memref",
	OpDim: "dim", OpSpecial: "special", OpFusedUnary: "funary",
	OpFusedBinary: "fbinary", OpFusedCompare: "fcompare",
	OpFusedCompare2: "fcompare2", OpInplaceUnary: "iunary",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "unknown"
}

// Scope is the minor opcode for OpPush/OpStore/OpPop: where the named or
// literal value lives.
type Scope byte

const (
	ScopeNamedVariable Scope = iota // context-chain lookup by name pool index
	ScopeLocal                      // current frame's local slot
	ScopeStatic                     // outermost frame's local slot
	ScopeShared                     // World global value slot
	ScopeNamedShared                // World global, resolved by name pool index
	ScopeLiteral                    // literal pool index
	ScopeInteger                    // small integer immediate, stored in Arg
	ScopeBoolean                    // small boolean immediate, stored in Arg
)

var scopeNames = map[Scope]string{
	ScopeNamedVariable: "named", ScopeLocal: "local", ScopeStatic: "static",
	ScopeShared: "shared", ScopeNamedShared: "namedshared",
	ScopeLiteral: "lit", ScopeInteger: "int", ScopeBoolean: "bool",
}

func (s Scope) String() string {
	if n, ok := scopeNames[s]; ok {
		return n
	}
	return "unknown"
}

// JumpCondition is the minor-opcode bitmask for OpJump.
type JumpCondition byte

const (
	JumpIfTrue   JumpCondition = 1 << iota
	JumpIfFalse
	JumpIfEmpty
	JumpPopAlways
	JumpAlways
	// JumpCatch and JumpDecZero occupy the same minor-opcode byte range as
	// the bitmask above but are mutually exclusive with it and with each
	// other: a Catch or DecZero instruction never combines with
	// IfTrue/IfFalse/IfEmpty/PopAlways/Always.
	JumpCatch
	JumpDecZero
)

func (j JumpCondition) String() string {
	switch j {
	case JumpCatch:
		return "catch"
	case JumpDecZero:
		return "deczero"
	}
	var out string
	add := func(bit JumpCondition, name string) {
		if j&bit != 0 {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	add(JumpIfTrue, "t")
	add(JumpIfFalse, "f")
	add(JumpIfEmpty, "e")
	add(JumpPopAlways, "pop")
	add(JumpAlways, "always")
	if out == "" {
		return "none"
	}
	return out
}

// BinOp enumerates the closed binary-operation set. Operations
// with an "_NC" (no-case, i.e. case-insensitive) twin are listed as
// consecutive pairs so the compiler can select plain-or-NC via "+1".
type BinOp byte

const (
	BinAnd BinOp = iota
	BinOr
	BinXor
	BinAdd
	BinSub
	BinMul
	BinDiv
	BinIDiv
	BinMod
	BinPow
	BinConcat
	BinConcatEmpty
	BinEq
	BinEqNC
	BinNe
	BinNeNC
	BinLt
	BinLtNC
	BinLe
	BinLeNC
	BinGt
	BinGtNC
	BinGe
	BinGeNC
	BinMin
	BinMinNC
	BinMax
	BinMaxNC
	BinFirstStr
	BinFirstStrNC
	BinRestStr
	BinRestStrNC
	BinFindStr
	BinFindStrNC
	BinBitAnd
	BinBitOr
	BinBitXor
	BinStr
	BinATan
	BinLCut
	BinRCut
	BinEndCut
	BinStrMult
	BinKeyAddParent
	BinKeyFind
	BinArrayDim
)

var binOpNames = [...]string{
	"and", "or", "xor", "add", "sub", "mul", "div", "idiv", "mod", "pow",
	"concat", "concatempty",
	"eq", "eq_nc", "ne", "ne_nc", "lt", "lt_nc", "le", "le_nc",
	"gt", "gt_nc", "ge", "ge_nc",
	"min", "min_nc", "max", "max_nc",
	"firststr", "firststr_nc", "reststr", "reststr_nc", "findstr", "findstr_nc",
	"bitand", "bitor", "bitxor", "str", "atan",
	"lcut", "rcut", "endcut", "strmult",
	"keyaddparent", "keyfind", "arraydim",
}

func (b BinOp) String() string {
	if int(b) < len(binOpNames) {
		return binOpNames[b]
	}
	return "unknown"
}

// HasNCTwin reports whether b is the case-sensitive half of a plain/_NC
// pair, in which case b+1 is its case-insensitive twin.
func (b BinOp) HasNCTwin() bool {
	switch b {
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe, BinMin, BinMax,
		BinFirstStr, BinRestStr, BinFindStr:
		return true
	}
	return false
}

// UnOp enumerates the unary operations.
type UnOp byte

const (
	UnIdentity UnOp = iota
	UnNegate
	UnPositive
	UnNot
	UnToBool
	UnIncrement
	UnDecrement
	UnAbs
	UnAsc
	UnChr
	UnStr
	UnVal
	UnZap
	UnIsEmpty
	UnIsNum
	UnIsString
	UnIsArray
	UnTrunc
	UnRound
	UnSin
	UnCos
	UnTan
	UnExp
	UnLog
	UnSqrt
	UnTrim
	UnLTrim
	UnRTrim
	UnFileNr
	UnKeyLookup
	UnAtom
	UnAtomStr
	UnBitNot
	UnLen
)

var unOpNames = [...]string{
	"identity", "negate", "positive", "not", "tobool", "inc", "dec", "abs",
	"asc", "chr", "str", "val", "zap", "isempty", "isnum", "isstring",
	"isarray", "trunc", "round", "sin", "cos", "tan", "exp", "log", "sqrt",
	"trim", "ltrim", "rtrim", "filenr", "keylookup", "atom", "atomstr",
	"bitnot", "len",
}

func (u UnOp) String() string {
	if int(u) < len(unOpNames) {
		return unOpNames[u]
	}
	return "unknown"
}

// Special enumerates the OpSpecial minor opcodes.
type Special byte

const (
	SpecialUncatch Special = iota
	SpecialReturn
	SpecialWith
	SpecialEndWith
	SpecialFirstIndex
	SpecialNextIndex
	SpecialEndIndex
	SpecialEvalStatement
	SpecialEvalExpr
	SpecialDefineSub
	SpecialDefineShipProperty
	SpecialDefinePlanetProperty
	SpecialLoad
	SpecialPrint
	SpecialAddHook
	SpecialRunHook
	SpecialThrow
	SpecialTerminate
	SpecialSuspend
	SpecialNewArray
	SpecialMakeList
	SpecialNewHash
	SpecialInstance
	SpecialResizeArray
	SpecialBind
	SpecialFirst
	SpecialNext
	SpecialRestart
)

var specialNames = [...]string{
	"uncatch", "return", "with", "endwith", "firstindex", "nextindex",
	"endindex", "evalstatement", "evalexpr", "definesub",
	"defineshipproperty", "defineplanetproperty", "load", "print",
	"addhook", "runhook", "throw", "terminate", "suspend", "newarray",
	"makelist", "newhash", "instance", "resizearray", "bind", "first", "next",
	"restart",
}

func (s Special) String() string {
	if int(s) < len(specialNames) {
		return specialNames[s]
	}
	return "unknown"
}

// CallFlag modifies the indirect-call calling convention.
type CallFlag byte

const (
	CallPlain CallFlag = iota
	CallRefuseProcedures // function-position call: callee must be a function
	CallRefuseFunctions  // statement-position call: callee must be a procedure
)

// Instruction is one bytecode instruction: a major opcode, a minor
// opcode/scope/binop/unop/special byte, and a 16-bit argument.
type Instruction struct {
	Op    Opcode
	Minor byte
	Arg   uint16
}
