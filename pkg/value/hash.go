package value

import "strings"

// Hash is an insertion-ordered mapping from String keys to Values.
type Hash struct {
	keys   []string
	byKey  map[string]int // key -> index into values
	values []Value
}

// NewHash returns an empty Hash.
func NewHash() *Hash {
	return &Hash{byKey: make(map[string]int)}
}

// Get returns the value for key, or Null with ok=false if absent.
func (h *Hash) Get(key string) (Value, bool) {
	i, ok := h.byKey[key]
	if !ok {
		return Null(), false
	}
	return h.values[i], true
}

// Set inserts or overwrites key's value, preserving original insertion
// order on overwrite.
func (h *Hash) Set(key string, v Value) {
	if i, ok := h.byKey[key]; ok {
		h.values[i] = v
		return
	}
	h.byKey[key] = len(h.values)
	h.keys = append(h.keys, key)
	h.values = append(h.values, v)
}

// Delete removes key, if present, compacting the order slices.
func (h *Hash) Delete(key string) {
	i, ok := h.byKey[key]
	if !ok {
		return
	}
	delete(h.byKey, key)
	h.keys = append(h.keys[:i], h.keys[i+1:]...)
	h.values = append(h.values[:i], h.values[i+1:]...)
	for k, idx := range h.byKey {
		if idx > i {
			h.byKey[k] = idx - 1
		}
	}
}

// Len returns the number of entries.
func (h *Hash) Len() int { return len(h.keys) }

// Keys returns the keys in insertion order.
func (h *Hash) Keys() []string { return h.keys }

// At returns the i-th (key, value) pair in insertion order.
func (h *Hash) At(i int) (string, Value) { return h.keys[i], h.values[i] }

func (h *Hash) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range h.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(h.values[i].String())
	}
	b.WriteByte('}')
	return b.String()
}
