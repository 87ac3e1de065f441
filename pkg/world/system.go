package world

import (
	"strings"

	"github.com/nebula-lang/nebula/pkg/value"
)

// systemContext implements the well-known "System" global referenced by
// scripts as System.Err: after a Try/Catch handler runs, System.Err
// carries the caught message. It is seeded
// into every World under the name "System".
type systemContext struct {
	err string
}

func newSystemContext() *systemContext { return &systemContext{} }

func (s *systemContext) Lookup(name string) (value.PropertyIndex, bool) {
	if strings.EqualFold(name, "Err") {
		return 0, true
	}
	return 0, false
}

func (s *systemContext) Get(idx value.PropertyIndex) value.Value {
	if idx == 0 {
		return value.String(s.err)
	}
	return value.Null()
}

func (s *systemContext) Set(idx value.PropertyIndex, v value.Value) error {
	if idx == 0 {
		s.err = v.AsString()
		return nil
	}
	return value.ErrNotAssignable
}

func (s *systemContext) Next() bool {
	return false
}
func (s *systemContext) Clone() value.Context {
	return &systemContext{err: s.err}
}
func (s *systemContext) EnumProperties(accept value.PropertyAcceptor) {
	accept("Err", value.TypeHintString)
}
func (s *systemContext) HostObject() value.HostRef { return nil }
func (s *systemContext) String(readable bool) string {
	return "System"
}
func (s *systemContext) Store(w *value.Encoder) error { return value.ErrNotSerializable }
