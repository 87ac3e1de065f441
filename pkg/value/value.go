// Package value implements the tagged Value model shared by the compiler,
// the bytecode object, and the virtual machine.
//
// A Value is a small tagged struct rather than an interface: scalars
// (Null, Integer, Float, Boolean) live entirely inline so pushing one onto
// the VM's value stack never allocates. Aggregates (Array, Hash, Keymap,
// Subroutine, Closure, structures, Context) are held behind a single
// `any` field and recovered with a type switch in the accessor methods.
//
// Integer arithmetic that overflows 32 bits promotes to Float, matching
// the "signed 32-bit, with arithmetic overflow promoting to Float" rule.
// Truthiness and Null-propagation are implemented here so every component
// that needs them (compiler folds, VM binary/unary ops, builtins) shares
// one definition.
package value

import "fmt"

// Kind tags the active variant of a Value.
type Kind byte

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindString
	KindFileHandle
	KindArray
	KindHash
	KindKeymap
	KindSubroutine
	KindClosure
	KindStructType
	KindStructInstance
	KindContext
)

// String names a Kind for diagnostics and disassembly.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindString:
		return "String"
	case KindFileHandle:
		return "FileHandle"
	case KindArray:
		return "Array"
	case KindHash:
		return "Hash"
	case KindKeymap:
		return "Keymap"
	case KindSubroutine:
		return "Subroutine"
	case KindClosure:
		return "Closure"
	case KindStructType:
		return "StructType"
	case KindStructInstance:
		return "StructInstance"
	case KindContext:
		return "Context"
	default:
		return "Unknown"
	}
}

// Value is the tagged union every stack, frame slot, and Context property
// exchanges. The zero Value is Null.
type Value struct {
	kind Kind
	i64  int64
	f64  float64
	str  string
	ref  any
}

// Null returns the empty value.
func Null() Value { return Value{kind: KindNull} }

// Int wraps a 32-bit integer. Callers that compute results larger than
// 32 bits should use Float directly, per the overflow-promotes-to-Float
// rule; Int itself does not re-check range, it is the VM's binary/unary
// operators that decide when to promote.
func Int(v int32) Value { return Value{kind: KindInteger, i64: int64(v)} }

// Int64 stores an already-widened integer without a 32-bit range check;
// used internally for values that started as int32 but passed through
// arithmetic that stayed within 32-bit range after widening.
func Int64(v int64) Value { return Value{kind: KindInteger, i64: v} }

// Float wraps a 64-bit float.
func Float(v float64) Value { return Value{kind: KindFloat, f64: v} }

// Bool wraps a boolean. Booleans are a distinct Kind from Integer so they
// display as YES/NO, but IsTruthy/ToNumber treat them interchangeably with
// integers in numeric contexts.
func Bool(v bool) Value { return Value{kind: KindBoolean, i64: boolToInt(v)} }

// String wraps an immutable UTF-8 string.
func String(v string) Value { return Value{kind: KindString, str: v} }

// FileHandle wraps a small integer naming an entry in the host file table.
func FileHandle(n int) Value { return Value{kind: KindFileHandle, i64: int64(n)} }

// Ref wraps an aggregate payload (Array, Hash, Keymap, Subroutine, Closure,
// StructType, StructInstance, or Context) under the given Kind.
func Ref(k Kind, payload any) Value { return Value{kind: k, ref: payload} }

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Kind reports the active variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the Null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer payload; only meaningful when Kind is
// KindInteger, KindBoolean, or KindFileHandle.
func (v Value) AsInt() int64 { return v.i64 }

// AsFloat returns the float payload; only meaningful when Kind is KindFloat.
func (v Value) AsFloat() float64 { return v.f64 }

// AsBool returns the boolean payload; only meaningful when Kind is
// KindBoolean.
func (v Value) AsBool() bool { return v.i64 != 0 }

// AsString returns the string payload; only meaningful when Kind is
// KindString.
func (v Value) AsString() string { return v.str }

// Ref returns the aggregate payload; only meaningful for aggregate Kinds.
func (v Value) Ref() any { return v.ref }

// Context returns the Context payload and true if v holds one.
func (v Value) Context() (Context, bool) {
	if v.kind != KindContext {
		return nil, false
	}
	c, ok := v.ref.(Context)
	return c, ok
}

// Subroutine returns the Subroutine payload and true if v holds a
// Subroutine or Closure (closures delegate Arity through the wrapped sub).
func (v Value) Subroutine() (Subroutine, bool) {
	switch v.kind {
	case KindSubroutine:
		s, ok := v.ref.(Subroutine)
		return s, ok
	case KindClosure:
		c, ok := v.ref.(*Closure)
		if !ok {
			return nil, false
		}
		return c, true
	default:
		return nil, false
	}
}

// Array returns the Array payload and true if v holds one.
func (v Value) Array() (*Array, bool) {
	a, ok := v.ref.(*Array)
	return a, ok && v.kind == KindArray
}

// Hash returns the Hash payload and true if v holds one.
func (v Value) Hash() (*Hash, bool) {
	h, ok := v.ref.(*Hash)
	return h, ok && v.kind == KindHash
}

// Keymap returns the Keymap payload and true if v holds one.
func (v Value) Keymap() (*Keymap, bool) {
	k, ok := v.ref.(*Keymap)
	return k, ok && v.kind == KindKeymap
}

// Callable reports whether v supports the call/index protocol: arrays,
// hashes, subroutines, closures, and host procedures (procedures are
// plain Subroutines whose Go implementation is a builtin shim rather than
// a BCO — callers distinguish by type-asserting Subroutine).
func (v Value) Callable() bool {
	switch v.kind {
	case KindArray, KindHash, KindSubroutine, KindClosure:
		return true
	default:
		return false
	}
}

// String renders v for diagnostics. It never fails; unprintable aggregates
// fall back to their Kind name.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindInteger:
		return fmt.Sprintf("%d", v.i64)
	case KindFloat:
		return fmt.Sprintf("%g", v.f64)
	case KindBoolean:
		if v.AsBool() {
			return "YES"
		}
		return "NO"
	case KindString:
		return v.str
	case KindFileHandle:
		return fmt.Sprintf("#%d", v.i64)
	case KindContext:
		if c, ok := v.Context(); ok {
			return c.String(true)
		}
	}
	if s, ok := v.ref.(fmt.Stringer); ok {
		return s.String()
	}
	return v.kind.String()
}
