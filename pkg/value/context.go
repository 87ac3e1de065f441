package value

// PropertyIndex is the opaque handle Lookup returns; it is valid only for
// the lifetime of the Context instance (or a Clone of it) that produced
// it, per the Context protocol's lifetime invariant.
type PropertyIndex int

// TypeHint classifies a property for reflection/completion purposes.
type TypeHint byte

const (
	TypeHintAny TypeHint = iota
	TypeHintInteger
	TypeHintFloat
	TypeHintBoolean
	TypeHintString
	TypeHintArray
	TypeHintHash
	TypeHintSubroutine
	TypeHintContext
)

// PropertyAcceptor receives (name, type-hint) pairs from EnumProperties.
type PropertyAcceptor func(name string, hint TypeHint)

// HostRef is an opaque back-reference to the underlying host entity that a
// Context wraps (a ship ID, a planet ID, ...). The host bridge defines its
// concrete shape; the VM only ever passes it through.
type HostRef any

// Context is the uniform property-access interface every host or scripted
// object exposes to the VM.
//
// Implementations MUST make Lookup pure (repeated lookups of the same
// name, case-insensitively, return the same index for the object's
// lifetime) and MUST make Next visit each entity of an iteration sequence
// at most once, eventually returning false.
type Context interface {
	// Lookup resolves name (case-insensitively) to a property index.
	// ok is false when no such property exists.
	Lookup(name string) (idx PropertyIndex, ok bool)

	// Get reads the property at idx.
	Get(idx PropertyIndex) Value

	// Set writes value to the property at idx. It returns
	// ErrNotAssignable if the property is read-only.
	Set(idx PropertyIndex, v Value) error

	// Next advances to the next sibling in an iteration sequence. It
	// returns false once the sequence is exhausted; after that, no
	// further Get/Set/Next calls are valid for this instance.
	Next() bool

	// Clone returns a deep-enough copy to iterate independently of the
	// receiver (so two nested ForEach loops over the same collection do
	// not interfere).
	Clone() Context

	// EnumProperties enumerates every (name, type-hint) pair this
	// Context exposes, in the host's chosen order.
	EnumProperties(accept PropertyAcceptor)

	// HostObject returns the back-reference to the underlying host
	// entity, or nil if this Context has none (e.g. a pure data
	// structure).
	HostObject() HostRef

	// String renders a diagnostic representation. When readable is
	// true the result should be suitable for backtraces ("at <string>");
	// when false a terser form is acceptable.
	String(readable bool) string

	// Store serializes the Context, or returns ErrNotSerializable if the
	// concrete type cannot be persisted (bound to a live host object,
	// for instance).
	Store(w *Encoder) error
}

// Subroutine is implemented by anything callable as a procedure or
// function: compiled BCOs and host-provided procedures alike. It is kept
// as an interface in this package (rather than importing the bytecode
// package) specifically to avoid value<->bytecode import cycle, since BCO
// must hold a literal pool of Values.
type Subroutine interface {
	// IsFunction reports whether the subroutine yields a result (a
	// Function) or not (a Procedure).
	IsFunction() bool

	// Arity returns the minimum and maximum accepted argument counts,
	// and whether excess arguments are packed into a variadic Array.
	Arity() (min, max int, variadic bool)

	// Name returns a diagnostic name for backtraces.
	Name() string
}

// Closure binds a Subroutine together with zero or more leading
// arguments, supplied at Closure-creation time ("Bind" statement).
type Closure struct {
	Sub    Subroutine
	Bound  []Value
}

// IsFunction delegates to the wrapped Subroutine.
func (c *Closure) IsFunction() bool { return c.Sub.IsFunction() }

// Arity reports the wrapped Subroutine's arity reduced by the number of
// bound arguments.
func (c *Closure) Arity() (min, max int, variadic bool) {
	smin, smax, variadic := c.Sub.Arity()
	min = smin - len(c.Bound)
	if min < 0 {
		min = 0
	}
	if smax >= 0 {
		max = smax - len(c.Bound)
		if max < 0 {
			max = 0
		}
	} else {
		max = smax
	}
	return min, max, variadic
}

// Name delegates to the wrapped Subroutine.
func (c *Closure) Name() string { return c.Sub.Name() }

// String renders a diagnostic form.
func (c *Closure) String() string { return "Closure(" + c.Sub.Name() + ")" }
