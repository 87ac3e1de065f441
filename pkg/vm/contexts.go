package vm

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nebula-lang/nebula/pkg/value"
)

// lookupCacheKey identifies one (Context implementation, property name)
// pair. Caching by Go type rather than by Context instance relies on
// Lookup being pure: every instance of a given
// concrete Context type resolves a name to the same index, so one
// memoized entry serves every instance (every Ship, not just one).
type lookupCacheKey struct {
	typ  string
	name string
}

// memberLookupCache memoizes Context.Lookup across the hot OpMemRef path,
// relying on repeated lookups of the same name yielding the same index,
// to avoid a fresh Lookup call (often a map or linear scan inside the
// host's NameTable) on every property access inside a loop.
var memberLookupCache, _ = lru.New[lookupCacheKey, value.PropertyIndex](4096)

func cachedLookup(ctx value.Context, name string) (value.PropertyIndex, bool) {
	key := lookupCacheKey{typ: fmt.Sprintf("%T", ctx), name: name}
	if idx, ok := memberLookupCache.Get(key); ok {
		return idx, true
	}
	idx, ok := ctx.Lookup(name)
	if !ok {
		return 0, false
	}
	memberLookupCache.Add(key, idx)
	return idx, true
}

// sequenceIterator is what first-index extracts from a Callable collection
// via make-first-context: a cursor over Values. A value.Context
// already satisfies this protocol via its own Next/Clone, so a host
// object can be iterated directly without an adapter.
type sequenceIterator interface {
	// Valid reports whether Value is meaningful right now.
	Valid() bool
	// Value returns the Value at the current cursor position.
	Value() value.Value
	// Advance moves to the next element, returning the new Valid().
	Advance() bool
}

// makeIterator builds a sequenceIterator over v, the "Callable that can
// make_first_context" case. Arrays and Hashes get built-in
// adapters; a Context iterates via its own Next/Clone (a host ship/planet
// collection context already knows how to walk its members); anything
// else is a TypeError.
func makeIterator(v value.Value) (sequenceIterator, *Error) {
	switch v.Kind() {
	case value.KindArray:
		a, _ := v.Array()
		return &arrayIterator{values: a.Slice()}, nil
	case value.KindHash:
		h, _ := v.Hash()
		return &hashIterator{h: h}, nil
	case value.KindContext:
		ctx, _ := v.Context()
		return &contextIterator{ctx: ctx.Clone()}, nil
	default:
		return nil, newError(TypeError, "expected an iterable collection, got %s", v.Kind())
	}
}

type arrayIterator struct {
	values []value.Value
	idx    int
}

func (it *arrayIterator) Valid() bool { return it.idx < len(it.values) }
func (it *arrayIterator) Value() value.Value {
	if !it.Valid() {
		return value.Null()
	}
	return it.values[it.idx]
}
func (it *arrayIterator) Advance() bool {
	it.idx++
	return it.Valid()
}

// hashIterator walks a Hash's values in insertion order; the current
// key is exposed to predicate expressions via the iterator context's
// "$KEY" synthetic property.
type hashIterator struct {
	h   *value.Hash
	idx int
}

func (it *hashIterator) Valid() bool { return it.idx < it.h.Len() }
func (it *hashIterator) Value() value.Value {
	if !it.Valid() {
		return value.Null()
	}
	_, v := it.h.At(it.idx)
	return v
}
func (it *hashIterator) Advance() bool {
	it.idx++
	return it.Valid()
}
func (it *hashIterator) currentKey() string {
	if !it.Valid() {
		return ""
	}
	k, _ := it.h.At(it.idx)
	return k
}

// contextIterator adapts a live value.Context (a host ship/planet
// collection, for instance) to sequenceIterator using its own
// Next/Clone iteration contract.
type contextIterator struct {
	ctx   value.Context
	valid bool
	first bool
}

func (it *contextIterator) Valid() bool {
	if !it.first {
		it.first = true
		it.valid = true
	}
	return it.valid
}
func (it *contextIterator) Value() value.Value {
	if !it.Valid() {
		return value.Null()
	}
	return value.Ref(value.KindContext, it.ctx)
}
func (it *contextIterator) Advance() bool {
	it.valid = it.ctx.Next()
	return it.valid
}

// iterContext is the Context the VM pushes onto the Process's context
// stack for the lifetime of a first-index/next-index/end-index region.
// It exposes the synthetic "$IT" property (the whole current
// element) plus, when the current element itself is a Context or
// StructInstance, the element's own properties, so an unqualified name
// in a loop/Count/Find predicate resolves to a field of the current
// element without an explicit receiver.
type iterContext struct {
	it    sequenceIterator
	inner value.Context // non-nil if the current element is itself a Context or StructInstance
}

func newIterContext(it sequenceIterator) *iterContext {
	ic := &iterContext{it: it}
	ic.resync()
	return ic
}

func (ic *iterContext) resync() {
	ic.inner = nil
	if !ic.it.Valid() {
		return
	}
	cur := ic.it.Value()
	if ctx, ok := cur.Context(); ok {
		ic.inner = ctx
	} else if cur.Kind() == value.KindStructInstance {
		ic.inner = &valueContext{v: cur}
	}
}

// Lookup resolves "$IT" to index 0; any other name delegates to the
// current element's own Context, offset by 1 to keep the index space
// disjoint from the synthetic slot.
func (ic *iterContext) Lookup(name string) (value.PropertyIndex, bool) {
	if strings.EqualFold(name, "$IT") {
		return 0, true
	}
	if hi, ok := ic.it.(*hashIterator); ok && strings.EqualFold(name, "$KEY") {
		_ = hi
		return -1, true
	}
	if ic.inner != nil {
		if idx, ok := ic.inner.Lookup(name); ok {
			return idx + 1, true
		}
	}
	return 0, false
}

func (ic *iterContext) Get(idx value.PropertyIndex) value.Value {
	switch {
	case idx == 0:
		return ic.it.Value()
	case idx == -1:
		if hi, ok := ic.it.(*hashIterator); ok {
			return value.String(hi.currentKey())
		}
		return value.Null()
	case ic.inner != nil:
		return ic.inner.Get(idx - 1)
	default:
		return value.Null()
	}
}

func (ic *iterContext) Set(idx value.PropertyIndex, v value.Value) error {
	if idx > 0 && ic.inner != nil {
		return ic.inner.Set(idx-1, v)
	}
	return value.ErrNotAssignable
}

// Next advances the underlying iterator and re-derives the inner
// element context; callers consult the returned bool, mirroring
// Context's own Next semantics.
func (ic *iterContext) Next() bool {
	ok := ic.it.Advance()
	ic.resync()
	return ok
}

func (ic *iterContext) Clone() value.Context {
	return &iterContext{it: ic.it, inner: ic.inner}
}

func (ic *iterContext) EnumProperties(accept value.PropertyAcceptor) {
	accept("$IT", value.TypeHintAny)
	if ic.inner != nil {
		ic.inner.EnumProperties(accept)
	}
}

func (ic *iterContext) HostObject() value.HostRef {
	if ic.inner != nil {
		return ic.inner.HostObject()
	}
	return nil
}

func (ic *iterContext) String(readable bool) string {
	if ic.inner != nil {
		return ic.inner.String(readable)
	}
	return ic.it.Value().String()
}

func (ic *iterContext) Store(w *value.Encoder) error {
	return value.ErrNotSerializable
}

// memberLookup resolves a dot-access receiver to a (get, set) pair for
// OpMemRef: a Context uses its own protocol; a StructInstance looks up
// its field table; a Hash treats member access as a key lookup,
// auto-vivifying the key on Set (record-like usage).
func memberLookup(recv value.Value, name string) (get func() value.Value, set func(value.Value) error, err *Error) {
	switch recv.Kind() {
	case value.KindContext:
		ctx, _ := recv.Context()
		idx, ok := cachedLookup(ctx, name)
		if !ok {
			return nil, nil, newError(UnknownIdentifier, "no property %q", name)
		}
		return func() value.Value { return ctx.Get(idx) },
			func(v value.Value) error { return ctx.Set(idx, v) }, nil
	case value.KindStructInstance:
		si, _ := recv.Ref().(*value.StructInstance)
		idx, ok := si.Type.FieldIndex(name)
		if !ok {
			return nil, nil, newError(UnknownIdentifier, "struct %s has no field %q", si.Type.Name, name)
		}
		return func() value.Value { return si.Get(idx) },
			func(v value.Value) error { si.Set(idx, v); return nil }, nil
	case value.KindHash:
		h, _ := recv.Hash()
		return func() value.Value { v, _ := h.Get(name); return v },
			func(v value.Value) error { h.Set(name, v); return nil }, nil
	default:
		return nil, nil, newError(TypeError, "cannot access member %q of %s", name, recv.Kind())
	}
}
