package compiler

import "github.com/nebula-lang/nebula/pkg/bytecode"

// BuiltinKind classifies how a built-in's bytecode pattern is shaped, so
// the expression compiler's compileBuiltinCall (in builtin_compile.go) can
// share one switch across built-in families instead of one function
// per intrinsic.
type BuiltinKind byte

const (
	BuiltinFold       BuiltinKind = iota // Min/Max/BitAnd/BitOr/BitXor
	BuiltinUnary                         // single-arg unary op
	BuiltinBinary                        // two-arg binary op
	BuiltinOneOrTwo                      // Mid-like: 1 or 2 meaningful args, second optional
	BuiltinCaseOp                        // First/Rest/InStr: case-sensitive pair, swapped operands
	BuiltinIf                            // If(c,t,[e])
	BuiltinCount                         // Count(a[,q])
	BuiltinFind                          // Find(a,q,v)
	BuiltinMid                           // Mid(s,p,n)
	BuiltinStrCase                       // StrCase(e)
	BuiltinKey                           // Key(m,k)
	BuiltinEval                          // Eval(s)
	BuiltinNewHash                       // NewHash()
)

// BuiltinEntry is one row of the closed built-ins table:
// (Name, min-args, max-args, factory kind, opcode-arg).
type BuiltinEntry struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 means unbounded
	Kind    BuiltinKind
	// Op carries the bytecode.UnOp or bytecode.BinOp this entry emits, as
	// a plain byte so BuiltinTable doesn't need to import both enums'
	// packages twice; compileBuiltinCall in builtin_compile.go casts it back.
	Op byte
}

// BuiltinTable is the compile-time-resolved intrinsic dispatch table.
type BuiltinTable struct {
	byName map[string]BuiltinEntry
}

// NewBuiltinTable constructs the closed built-in dispatch table.
func NewBuiltinTable() *BuiltinTable {
	entries := []BuiltinEntry{
		{"MIN", 1, -1, BuiltinFold, byte(bytecode.BinMin)},
		{"MAX", 1, -1, BuiltinFold, byte(bytecode.BinMax)},
		{"BITAND", 1, -1, BuiltinFold, byte(bytecode.BinBitAnd)},
		{"BITOR", 1, -1, BuiltinFold, byte(bytecode.BinBitOr)},
		{"BITXOR", 1, -1, BuiltinFold, byte(bytecode.BinBitXor)},

		{"ABS", 1, 1, BuiltinUnary, byte(bytecode.UnAbs)},
		{"ASC", 1, 1, BuiltinUnary, byte(bytecode.UnAsc)},
		{"CHR", 1, 1, BuiltinUnary, byte(bytecode.UnChr)},
		{"INT", 1, 1, BuiltinUnary, byte(bytecode.UnTrunc)},
		{"LEN", 1, 1, BuiltinUnary, byte(bytecode.UnLen)},
		{"LOG", 1, 1, BuiltinUnary, byte(bytecode.UnLog)},
		{"ROUND", 1, 1, BuiltinUnary, byte(bytecode.UnRound)},
		{"SIN", 1, 1, BuiltinUnary, byte(bytecode.UnSin)},
		{"COS", 1, 1, BuiltinUnary, byte(bytecode.UnCos)},
		{"TAN", 1, 1, BuiltinUnary, byte(bytecode.UnTan)},
		{"SQRT", 1, 1, BuiltinUnary, byte(bytecode.UnSqrt)},
		{"TRIM", 1, 1, BuiltinUnary, byte(bytecode.UnTrim)},
		{"LTRIM", 1, 1, BuiltinUnary, byte(bytecode.UnLTrim)},
		{"RTRIM", 1, 1, BuiltinUnary, byte(bytecode.UnRTrim)},
		{"VAL", 1, 1, BuiltinUnary, byte(bytecode.UnVal)},
		{"ZAP", 1, 1, BuiltinUnary, byte(bytecode.UnZap)},
		{"STR", 1, 1, BuiltinUnary, byte(bytecode.UnStr)},
		{"STRING", 1, 1, BuiltinUnary, byte(bytecode.UnStr)},
		{"EXP", 1, 1, BuiltinUnary, byte(bytecode.UnExp)},
		// ATan is a BinOp (two operands, y then x) rather than a UnOp; the
		// one-argument call form defaults the second operand to 1.
		{"ATAN", 1, 2, BuiltinOneOrTwo, byte(bytecode.BinATan)},

		{"FIRST", 2, 2, BuiltinCaseOp, byte(bytecode.BinFirstStr)},
		{"REST", 2, 2, BuiltinCaseOp, byte(bytecode.BinRestStr)},
		{"INSTR", 2, 2, BuiltinCaseOp, byte(bytecode.BinFindStr)},

		{"IF", 2, 3, BuiltinIf, 0},
		{"COUNT", 1, 2, BuiltinCount, 0},
		{"FIND", 3, 3, BuiltinFind, 0},
		{"COUNTSHIPS", 0, 1, BuiltinCount, 1},
		{"COUNTPLANETS", 0, 1, BuiltinCount, 2},
		{"FINDSHIP", 1, 2, BuiltinFind, 1},
		{"FINDPLANET", 1, 2, BuiltinFind, 2},

		{"MID", 2, 3, BuiltinMid, 0},
		{"STRCASE", 1, 1, BuiltinStrCase, 0},
		{"KEY", 2, 2, BuiltinKey, 0},
		{"EVAL", 1, 1, BuiltinEval, 0},
		{"NEWHASH", 0, 0, BuiltinNewHash, 0},
	}

	t := &BuiltinTable{byName: make(map[string]BuiltinEntry, len(entries))}
	for _, e := range entries {
		t.byName[e.Name] = e
	}
	return t
}

// Lookup finds a built-in by its (already upper-cased) name.
func (t *BuiltinTable) Lookup(name string) (BuiltinEntry, bool) {
	e, ok := t.byName[name]
	return e, ok
}

// Names returns every built-in name, used by pkg/completion.
func (t *BuiltinTable) Names() []string {
	out := make([]string, 0, len(t.byName))
	for n := range t.byName {
		out = append(out, n)
	}
	return out
}
