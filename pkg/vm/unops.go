package vm

import (
	"math"
	"strconv"
	"strings"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

// unaryOp evaluates one UnOp against an already-popped operand, per the
// Null-propagation rule and its documented exceptions (IsEmpty, IsNum,
// IsString, IsArray always produce a Boolean, never Null; Not/ToBool treat
// Null as a third, falsy-but-distinct state).
func (p *Process) unaryOp(op bytecode.UnOp, v value.Value) (value.Value, *Error) {
	switch op {
	case bytecode.UnIdentity:
		return v, nil
	case bytecode.UnIsEmpty:
		return value.Bool(v.IsNull()), nil
	case bytecode.UnIsNum:
		return value.Bool(v.IsNumeric()), nil
	case bytecode.UnIsString:
		return value.Bool(v.Kind() == value.KindString), nil
	case bytecode.UnIsArray:
		return value.Bool(v.Kind() == value.KindArray), nil
	case bytecode.UnNot:
		return value.Bool(!v.IsTruthy()), nil
	case bytecode.UnToBool:
		return value.Bool(v.IsTruthy()), nil
	case bytecode.UnZap:
		if !v.IsTruthy() {
			return value.Null(), nil
		}
		return v, nil
	}

	if v.IsNull() {
		return value.Null(), nil
	}

	switch op {
	case bytecode.UnNegate:
		if !v.IsNumeric() {
			return value.Null(), newError(TypeError, "cannot negate %s", v.Kind())
		}
		if v.Kind() == value.KindFloat {
			return value.Float(-v.AsFloat()), nil
		}
		return addInt32(0, -v.AsInt()), nil
	case bytecode.UnPositive:
		if !v.IsNumeric() {
			return value.Null(), newError(TypeError, "expected a numeric operand")
		}
		return v, nil
	case bytecode.UnIncrement:
		return p.unaryOp(bytecode.UnIdentity, addOne(v, 1))
	case bytecode.UnDecrement:
		return p.unaryOp(bytecode.UnIdentity, addOne(v, -1))
	case bytecode.UnAbs:
		if v.Kind() == value.KindFloat {
			return value.Float(math.Abs(v.AsFloat())), nil
		}
		n := v.AsInt()
		if n < 0 {
			n = -n
		}
		return value.Int64(n), nil
	case bytecode.UnAsc:
		s := v.AsString()
		if s == "" {
			return value.Int(0), nil
		}
		return value.Int(int32(s[0])), nil
	case bytecode.UnChr:
		return value.String(string(rune(v.AsInt()))), nil
	case bytecode.UnStr:
		return value.String(v.String()), nil
	case bytecode.UnVal:
		s := strings.TrimSpace(v.AsString())
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return addInt32(n, 0), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.Float(f), nil
		}
		return value.Int(0), nil
	case bytecode.UnTrunc:
		return value.Int64(int64(asFloat(v))), nil
	case bytecode.UnRound:
		return value.Int64(int64(math.Round(asFloat(v)))), nil
	case bytecode.UnSin:
		return value.Float(math.Sin(asFloat(v))), nil
	case bytecode.UnCos:
		return value.Float(math.Cos(asFloat(v))), nil
	case bytecode.UnTan:
		return value.Float(math.Tan(asFloat(v))), nil
	case bytecode.UnExp:
		return value.Float(math.Exp(asFloat(v))), nil
	case bytecode.UnLog:
		f := asFloat(v)
		if f <= 0 {
			return value.Null(), newError(RangeError, "log of non-positive value")
		}
		return value.Float(math.Log(f)), nil
	case bytecode.UnSqrt:
		f := asFloat(v)
		if f < 0 {
			return value.Null(), newError(RangeError, "square root of negative value")
		}
		return value.Float(math.Sqrt(f)), nil
	case bytecode.UnTrim:
		return value.String(strings.TrimSpace(v.AsString())), nil
	case bytecode.UnLTrim:
		return value.String(strings.TrimLeft(v.AsString(), " \t")), nil
	case bytecode.UnRTrim:
		return value.String(strings.TrimRight(v.AsString(), " \t")), nil
	case bytecode.UnFileNr:
		if v.Kind() == value.KindFileHandle {
			return value.Int(int32(v.AsInt())), nil
		}
		return value.FileHandle(int(v.AsInt())), nil
	case bytecode.UnKeyLookup:
		km, ok := p.world.Keymap(v.AsString())
		if !ok {
			return value.Null(), nil
		}
		return value.Ref(value.KindKeymap, km), nil
	case bytecode.UnAtom:
		return value.String(strings.ToUpper(v.AsString())), nil
	case bytecode.UnAtomStr:
		return value.String(v.AsString()), nil
	case bytecode.UnBitNot:
		if v.Kind() != value.KindInteger {
			return value.Null(), newError(TypeError, "expected an integer operand")
		}
		return value.Int(^int32(v.AsInt())), nil
	case bytecode.UnLen:
		return p.lenOf(v)
	default:
		return value.Null(), newError(InternalError, "unknown unary op %s", op)
	}
}

func addOne(v value.Value, delta int64) value.Value {
	if v.Kind() == value.KindFloat {
		return value.Float(v.AsFloat() + float64(delta))
	}
	return addInt32(v.AsInt(), delta)
}

func (p *Process) lenOf(v value.Value) (value.Value, *Error) {
	switch v.Kind() {
	case value.KindString:
		return value.Int(int32(len(v.AsString()))), nil
	case value.KindArray:
		a, _ := v.Array()
		return value.Int(int32(a.Len())), nil
	case value.KindHash:
		h, _ := v.Hash()
		return value.Int(int32(h.Len())), nil
	default:
		return value.Null(), newError(TypeError, "cannot take Len of %s", v.Kind())
	}
}
