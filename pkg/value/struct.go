package value

import "fmt"

// StructType is the metadata describing a named struct's field order,
// produced by a `Struct ... EndStruct` declaration.
type StructType struct {
	Name   string
	Fields []string
	index  map[string]int
}

// NewStructType builds a StructType from an ordered field-name list.
func NewStructType(name string, fields []string) *StructType {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	return &StructType{Name: name, Fields: fields, index: idx}
}

// FieldIndex resolves a field name to its slot, case-sensitively (field
// names are interned from the declaration; case folding happens at the
// Context.Lookup layer, not here).
func (t *StructType) FieldIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *StructType) String() string { return "StructType(" + t.Name + ")" }

// StructInstance maps a StructType's field indices to Values.
type StructInstance struct {
	Type   *StructType
	Fields []Value
}

// NewStructInstance allocates an instance of t with every field Null.
func NewStructInstance(t *StructType) *StructInstance {
	return &StructInstance{Type: t, Fields: make([]Value, len(t.Fields))}
}

// Get reads field i.
func (s *StructInstance) Get(i int) Value { return s.Fields[i] }

// Set writes field i.
func (s *StructInstance) Set(i int, v Value) { s.Fields[i] = v }

func (s *StructInstance) String() string {
	return fmt.Sprintf("%s instance", s.Type.Name)
}
