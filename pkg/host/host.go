// Package host provides the building blocks an embedding program uses
// to bridge its own objects into the scripting language: a sorted name
// table choosing stable property indices, and a
// small accessor-table helper that turns a plain Go struct into a
// value.Context without hand-writing Lookup/Get/Set for every field.
package host

import (
	"sort"
	"strings"

	"github.com/nebula-lang/nebula/pkg/value"
)

// NameTable assigns each registered name a stable index, chosen in
// sorted order once the table is Frozen, so the host chooses property
// indices via a sorted name table rather than declaration order.
type NameTable struct {
	names  []string
	index  map[string]int
	frozen bool
}

// NewNameTable creates an empty NameTable.
func NewNameTable() *NameTable {
	return &NameTable{index: make(map[string]int)}
}

// Add registers name; its index is assigned later by Freeze. Registration order
// does not matter: Freeze re-sorts before indices are handed out, so two
// NameTables fed the same name set in different orders end up with
// identical Lookup results.
func (t *NameTable) Add(name string) {
	if t.frozen {
		panic("host: NameTable.Add after Freeze")
	}
	key := strings.ToUpper(name)
	if _, ok := t.index[key]; ok {
		return
	}
	t.index[key] = -1 // placeholder, resolved by Freeze
	t.names = append(t.names, name)
}

// Freeze assigns final sorted indices. Must be called once, after every
// Add and before any Lookup/Name call.
func (t *NameTable) Freeze() {
	sort.Slice(t.names, func(i, j int) bool {
		return strings.ToUpper(t.names[i]) < strings.ToUpper(t.names[j])
	})
	for i, n := range t.names {
		t.index[strings.ToUpper(n)] = i
	}
	t.frozen = true
}

// Lookup resolves name (case-insensitively) to its index.
func (t *NameTable) Lookup(name string) (value.PropertyIndex, bool) {
	i, ok := t.index[strings.ToUpper(name)]
	if !ok {
		return 0, false
	}
	return value.PropertyIndex(i), true
}

// Name returns the canonical (as-registered) spelling of idx.
func (t *NameTable) Name(idx value.PropertyIndex) string {
	return t.names[idx]
}

// Len returns the number of registered names.
func (t *NameTable) Len() int { return len(t.names) }

// Accessor is one property binding in an accessor table: Get is
// mandatory, Set is nil for a read-only property (returning
// value.ErrNotAssignable from Context.Set).
type Accessor struct {
	Name string
	Hint value.TypeHint
	Get  func() value.Value
	Set  func(value.Value) error
}

// Bridge adapts a fixed Accessor table to value.Context, so a
// host-defined property is reached via the Context protocol without
// the host implementing it by hand. Embed Bridge in a host object's own Context
// implementation (or use it directly) to avoid hand-writing
// Lookup/Get/Set/EnumProperties for every property.
type Bridge struct {
	table   *NameTable
	fields  []Accessor
	hostRef value.HostRef
	display string
}

// NewBridge builds a Bridge over fields, whose Name values must already
// be registered (and Frozen) in table; fields is indexed by table's
// property index, so len(fields) must equal table.Len() and fields[i]
// must name the same property as table.Name(i).
func NewBridge(table *NameTable, fields []Accessor, hostRef value.HostRef, display string) *Bridge {
	return &Bridge{table: table, fields: fields, hostRef: hostRef, display: display}
}

func (b *Bridge) Lookup(name string) (value.PropertyIndex, bool) {
	return b.table.Lookup(name)
}

func (b *Bridge) Get(idx value.PropertyIndex) value.Value {
	return b.fields[idx].Get()
}

func (b *Bridge) Set(idx value.PropertyIndex, v value.Value) error {
	f := b.fields[idx]
	if f.Set == nil {
		return value.ErrNotAssignable
	}
	return f.Set(v)
}

// Next reports false: a Bridge is a single object, not a sequence. A
// host collection Context (e.g. "every Ship") composes a Bridge per
// element with its own iteration logic instead of embedding one.
func (b *Bridge) Next() bool { return false }

// Clone returns a shallow copy sharing the same accessor closures; safe
// because a Bridge carries no per-iteration cursor state of its own.
func (b *Bridge) Clone() value.Context {
	c := *b
	return &c
}

func (b *Bridge) EnumProperties(accept value.PropertyAcceptor) {
	for i, f := range b.fields {
		_ = i
		accept(f.Name, f.Hint)
	}
}

func (b *Bridge) HostObject() value.HostRef { return b.hostRef }

func (b *Bridge) String(readable bool) string {
	if b.display != "" {
		return b.display
	}
	return "<host object>"
}

func (b *Bridge) Store(e *value.Encoder) error { return value.ErrNotSerializable }
