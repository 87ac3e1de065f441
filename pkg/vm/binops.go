package vm

import (
	"math"
	"strings"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

// asFloatPair coerces two numeric-ish Values to float64 for arithmetic
// that must tolerate mixed Integer/Float/Boolean operands.
func asFloatPair(a, b value.Value) (float64, float64) {
	return asFloat(a), asFloat(b)
}

func asFloat(v value.Value) float64 {
	switch v.Kind() {
	case value.KindInteger, value.KindBoolean, value.KindFileHandle:
		return float64(v.AsInt())
	case value.KindFloat:
		return v.AsFloat()
	default:
		return 0
	}
}

// bothInteger reports whether a and b are both representable as plain
// Integers (Integer or Boolean kind), so arithmetic can stay in the
// Integer domain instead of promoting to Float.
func bothInteger(a, b value.Value) bool {
	intLike := func(v value.Value) bool {
		return v.Kind() == value.KindInteger || v.Kind() == value.KindBoolean
	}
	return intLike(a) && intLike(b)
}

// addInt32 adds two int64s already narrowed from Integer Values,
// promoting to Float on 32-bit signed overflow.
func addInt32(a, b int64) value.Value {
	r := a + b
	if r > math.MaxInt32 || r < math.MinInt32 {
		return value.Float(float64(r))
	}
	return value.Int64(r)
}

func mulInt32(a, b int64) value.Value {
	r := a * b
	if r > math.MaxInt32 || r < math.MinInt32 {
		return value.Float(float64(r))
	}
	return value.Int64(r)
}

// binaryOp evaluates one BinOp against two already-popped operands,
// implementing the Null-propagation rule ("any operand is Null
// => result is Null") for every op except the documented exceptions.
func (p *Process) binaryOp(op bytecode.BinOp, a, b value.Value) (value.Value, *Error) {
	switch op {
	case bytecode.BinAnd:
		if value.AnyNull(a, b) {
			return value.Null(), nil
		}
		return value.Bool(a.IsTruthy() && b.IsTruthy()), nil
	case bytecode.BinOr:
		if value.AnyNull(a, b) {
			return value.Null(), nil
		}
		return value.Bool(a.IsTruthy() || b.IsTruthy()), nil
	case bytecode.BinXor:
		if value.AnyNull(a, b) {
			return value.Null(), nil
		}
		return value.Bool(a.IsTruthy() != b.IsTruthy()), nil
	case bytecode.BinAdd:
		return p.arith(op, a, b)
	case bytecode.BinSub:
		return p.arith(op, a, b)
	case bytecode.BinMul:
		return p.arith(op, a, b)
	case bytecode.BinDiv:
		return p.arith(op, a, b)
	case bytecode.BinIDiv:
		return p.arith(op, a, b)
	case bytecode.BinMod:
		return p.arith(op, a, b)
	case bytecode.BinPow:
		return p.arith(op, a, b)
	case bytecode.BinConcat:
		if value.AnyNull(a, b) {
			return value.Null(), nil
		}
		return value.String(a.String() + b.String()), nil
	case bytecode.BinConcatEmpty:
		s1, s2 := "", ""
		if !a.IsNull() {
			s1 = a.String()
		}
		if !b.IsNull() {
			s2 = b.String()
		}
		return value.String(s1 + s2), nil
	case bytecode.BinEq, bytecode.BinEqNC:
		return p.compareEq(op, a, b)
	case bytecode.BinNe, bytecode.BinNeNC:
		v, err := p.compareEq(bytecode.BinEq+(op-bytecode.BinNe), a, b)
		if err != nil {
			return v, err
		}
		if v.IsNull() {
			return v, nil
		}
		return value.Bool(!v.AsBool()), nil
	case bytecode.BinLt, bytecode.BinLtNC, bytecode.BinLe, bytecode.BinLeNC,
		bytecode.BinGt, bytecode.BinGtNC, bytecode.BinGe, bytecode.BinGeNC:
		return p.compareOrder(op, a, b)
	case bytecode.BinMin, bytecode.BinMinNC:
		return p.minMax(op, a, b, true)
	case bytecode.BinMax, bytecode.BinMaxNC:
		return p.minMax(op, a, b, false)
	case bytecode.BinFirstStr, bytecode.BinFirstStrNC:
		return p.firstRest(op, a, b, true)
	case bytecode.BinRestStr, bytecode.BinRestStrNC:
		return p.firstRest(op, a, b, false)
	case bytecode.BinFindStr, bytecode.BinFindStrNC:
		return p.findStr(op, a, b)
	case bytecode.BinBitAnd, bytecode.BinBitOr, bytecode.BinBitXor:
		return p.bitwise(op, a, b)
	case bytecode.BinStr:
		return value.String(p.formatValue(a, b)), nil
	case bytecode.BinATan:
		if value.AnyNull(a, b) {
			return value.Null(), nil
		}
		return value.Float(math.Atan2(asFloat(a), asFloat(b))), nil
	case bytecode.BinLCut:
		return p.cutString(a, b, true)
	case bytecode.BinRCut:
		return p.cutString(a, b, false)
	case bytecode.BinEndCut:
		return p.endCut(a, b)
	case bytecode.BinStrMult:
		return p.strMult(a, b)
	case bytecode.BinKeyAddParent:
		return p.keyAddParent(a, b)
	case bytecode.BinKeyFind:
		return p.keyFind(a, b)
	case bytecode.BinArrayDim:
		return p.arrayDim(a, b)
	default:
		return value.Null(), newError(InternalError, "unknown binary op %s", op)
	}
}

func (p *Process) arith(op bytecode.BinOp, a, b value.Value) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return value.Null(), newError(TypeError, "expected numeric operands for %s", op)
	}
	if bothInteger(a, b) {
		ai, bi := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.BinAdd:
			return addInt32(ai, bi), nil
		case bytecode.BinSub:
			return addInt32(ai, -bi), nil
		case bytecode.BinMul:
			return mulInt32(ai, bi), nil
		case bytecode.BinIDiv:
			if bi == 0 {
				return value.Null(), newError(RangeError, "integer division by zero")
			}
			return value.Int64(ai / bi), nil
		case bytecode.BinMod:
			if bi == 0 {
				return value.Null(), newError(RangeError, "modulo by zero")
			}
			return value.Int64(ai % bi), nil
		}
	}
	af, bf := asFloatPair(a, b)
	switch op {
	case bytecode.BinAdd:
		return value.Float(af + bf), nil
	case bytecode.BinSub:
		return value.Float(af - bf), nil
	case bytecode.BinMul:
		return value.Float(af * bf), nil
	case bytecode.BinDiv:
		if bf == 0 {
			return value.Null(), newError(RangeError, "division by zero")
		}
		return value.Float(af / bf), nil
	case bytecode.BinIDiv:
		if bf == 0 {
			return value.Null(), newError(RangeError, "integer division by zero")
		}
		return value.Int64(int64(af / bf)), nil
	case bytecode.BinMod:
		if bf == 0 {
			return value.Null(), newError(RangeError, "modulo by zero")
		}
		return value.Float(math.Mod(af, bf)), nil
	case bytecode.BinPow:
		return value.Float(math.Pow(af, bf)), nil
	}
	return value.Null(), newError(InternalError, "unreachable arith op %s", op)
}

func (p *Process) compareEq(op bytecode.BinOp, a, b value.Value) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	caseSensitive := op == bytecode.BinEq
	if a.Kind() == value.KindString || b.Kind() == value.KindString {
		sa, sb := a.String(), b.String()
		if !caseSensitive {
			sa, sb = strings.ToUpper(sa), strings.ToUpper(sb)
		}
		return value.Bool(sa == sb), nil
	}
	if a.IsNumeric() && b.IsNumeric() {
		return value.Bool(asFloat(a) == asFloat(b)), nil
	}
	return value.Bool(a.Kind() == b.Kind() && a.String() == b.String()), nil
}

func (p *Process) compareOrder(op bytecode.BinOp, a, b value.Value) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	caseSensitive := op%2 == 0
	var cmp int
	if a.Kind() == value.KindString || b.Kind() == value.KindString {
		sa, sb := a.String(), b.String()
		if !caseSensitive {
			sa, sb = strings.ToUpper(sa), strings.ToUpper(sb)
		}
		cmp = strings.Compare(sa, sb)
	} else if a.IsNumeric() && b.IsNumeric() {
		af, bf := asFloatPair(a, b)
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	} else {
		return value.Null(), newError(TypeError, "cannot order-compare %s and %s", a.Kind(), b.Kind())
	}
	switch op {
	case bytecode.BinLt, bytecode.BinLtNC:
		return value.Bool(cmp < 0), nil
	case bytecode.BinLe, bytecode.BinLeNC:
		return value.Bool(cmp <= 0), nil
	case bytecode.BinGt, bytecode.BinGtNC:
		return value.Bool(cmp > 0), nil
	default: // Ge, GeNC
		return value.Bool(cmp >= 0), nil
	}
}

func (p *Process) minMax(op bytecode.BinOp, a, b value.Value, wantMin bool) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	cmpOp := bytecode.BinLt
	if op == bytecode.BinMinNC || op == bytecode.BinMaxNC {
		cmpOp = bytecode.BinLtNC
	}
	lt, err := p.compareOrder(cmpOp, a, b)
	if err != nil {
		return value.Null(), err
	}
	aLess := lt.IsTruthy()
	if wantMin == aLess {
		return a, nil
	}
	return b, nil
}

// firstRest implements the First(n,s)/Rest(n,s) family: the n leftmost
// (First) or everything-after-n (Rest) characters of s, after the
// compiler's operand swap (a is the count, b is the string).
func (p *Process) firstRest(op bytecode.BinOp, a, b value.Value, first bool) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	n := int(a.AsInt())
	s := b.AsString()
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	if first {
		return value.String(s[:n]), nil
	}
	return value.String(s[n:]), nil
}

// findStr implements FindStr(needle,haystack): 1-based index of the
// first occurrence, or 0 if absent, matching BASIC-family InStr
// conventions.
func (p *Process) findStr(op bytecode.BinOp, a, b value.Value) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	needle, haystack := a.AsString(), b.AsString()
	if op == bytecode.BinFindStrNC {
		needle, haystack = strings.ToUpper(needle), strings.ToUpper(haystack)
	}
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return value.Int(0), nil
	}
	return value.Int(int32(idx + 1)), nil
}

func (p *Process) bitwise(op bytecode.BinOp, a, b value.Value) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	if a.Kind() != value.KindInteger || b.Kind() != value.KindInteger {
		return value.Null(), newError(TypeError, "expected integer operands for %s", op)
	}
	ai, bi := int32(a.AsInt()), int32(b.AsInt())
	switch op {
	case bytecode.BinBitAnd:
		return value.Int(ai & bi), nil
	case bytecode.BinBitOr:
		return value.Int(ai | bi), nil
	default:
		return value.Int(ai ^ bi), nil
	}
}

// formatValue implements Str(v[,width]): a right-justified numeric/string
// rendering padded to an optional width.
func (p *Process) formatValue(a, b value.Value) string {
	s := a.String()
	if b.IsNull() {
		return s
	}
	width := int(b.AsInt())
	for len(s) < width {
		s = " " + s
	}
	return s
}

// cutString implements the Mid(s,p,n) pattern's two halves: LCut drops
// the first p characters, RCut then truncates the remainder to n.
func (p *Process) cutString(a, b value.Value, left bool) (value.Value, *Error) {
	if a.IsNull() {
		return value.Null(), nil
	}
	s := a.AsString()
	if b.IsNull() {
		return value.String(s), nil
	}
	n := int(b.AsInt())
	if left {
		if n < 0 {
			n = 0
		}
		if n > len(s) {
			n = len(s)
		}
		return value.String(s[n:]), nil
	}
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return value.String(s[:n]), nil
}

func (p *Process) endCut(a, b value.Value) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	s := a.AsString()
	n := int(b.AsInt())
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return value.String(s[:len(s)-n]), nil
}

func (p *Process) strMult(a, b value.Value) (value.Value, *Error) {
	if value.AnyNull(a, b) {
		return value.Null(), nil
	}
	s := a.AsString()
	n := int(b.AsInt())
	if n < 0 {
		n = 0
	}
	return value.String(strings.Repeat(s, n)), nil
}

// keyAddParent resolves both operands by name through the World's keymap
// registry (CreateKeymap pushes name literals, not Keymap values, so a
// chain of parent clauses folds left to right) and links them.
func (p *Process) keyAddParent(a, b value.Value) (value.Value, *Error) {
	child, err := p.resolveKeymap(a)
	if err != nil {
		return value.Null(), err
	}
	parent, err := p.resolveKeymap(b)
	if err != nil {
		return value.Null(), err
	}
	child.AddParent(parent)
	return value.Ref(value.KindKeymap, child), nil
}

func (p *Process) resolveKeymap(v value.Value) (*value.Keymap, *Error) {
	if km, ok := v.Keymap(); ok {
		return km, nil
	}
	if v.Kind() == value.KindString {
		return p.world.DefineKeymap(v.AsString()), nil
	}
	return nil, newError(TypeError, "expected a keymap or keymap name")
}

func (p *Process) keyFind(a, b value.Value) (value.Value, *Error) {
	km, ok := a.Keymap()
	if !ok {
		return value.Null(), newError(TypeError, "expected a keymap")
	}
	cmd, ok := km.Find(int(b.AsInt()))
	if !ok {
		return value.Null(), nil
	}
	return value.String(cmd), nil
}

// arrayDim implements ArrayDim(arr,n): the size of dimension n (1-based),
// or the dimension count when n is 0.
func (p *Process) arrayDim(a, b value.Value) (value.Value, *Error) {
	arr, ok := a.Array()
	if !ok {
		return value.Null(), newError(TypeError, "expected an array")
	}
	n := int(b.AsInt())
	dims := arr.Dims()
	if n == 0 {
		return value.Int(int32(len(dims))), nil
	}
	if n < 1 || n > len(dims) {
		return value.Null(), newError(RangeError, "dimension %d out of range", n)
	}
	return value.Int(int32(dims[n-1])), nil
}
