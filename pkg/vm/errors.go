// Package vm implements the bytecode virtual machine: a single-threaded
// stack interpreter executing one Process's four stacks (value, frame,
// context, exception).
package vm

import (
	"fmt"
	"strings"

	"github.com/go-stack/stack"
)

// ErrorKind is the closed error-kind set the VM can raise.
type ErrorKind byte

const (
	TypeError ErrorKind = iota
	RangeError
	UnknownIdentifier
	NotAssignable
	NotSerializable
	ArgumentCount
	GarbageAtEnd
	InternalError
	UserError
	FileError
)

var errorKindNames = [...]string{
	"TypeError", "RangeError", "UnknownIdentifier", "NotAssignable",
	"NotSerializable", "ArgumentCount", "GarbageAtEnd", "InternalError",
	"UserError", "FileError",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "UnknownError"
}

// BacktraceFrame names one active Frame at the moment an Error was
// raised: file, line, subroutine, and context string.
type BacktraceFrame struct {
	SubName    string
	SourceFile string
	Line       int
	// ContextString is the at most one readable Context.String(true) a
	// frame contributes, or "" if the frame's context stack has none.
	ContextString string
}

// Error is a script-level runtime error: a Kind, a message, and the
// accumulated backtrace. It implements the error interface so it
// composes with ordinary Go error handling at the host boundary, but the
// VM itself never relies on panic/recover to move it around — Run
// returns it as a plain value, with errors surfacing as Result-style
// returns inside the dispatcher.
type Error struct {
	Kind      ErrorKind
	Message   string
	Backtrace []BacktraceFrame

	// GoStack is the Go-level call site that raised an InternalError (an
	// opcode-fetch bug, a stack-underflow assertion, ...), distinct from
	// the language-level Backtrace above. It is nil for every other Kind:
	// those are expected, script-level failures with no Go bug to locate.
	GoStack stack.CallStack
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	for i, f := range e.Backtrace {
		name := f.SubName
		if name == "" {
			name = fmt.Sprintf("file '%s', line %d", f.SourceFile, f.Line)
		} else {
			name = fmt.Sprintf("%s, file '%s', line %d", name, f.SourceFile, f.Line)
		}
		if i == 0 {
			fmt.Fprintf(&b, "\n  in %s", name)
		} else {
			fmt.Fprintf(&b, "\n  called by %s", name)
		}
		if f.ContextString != "" {
			fmt.Fprintf(&b, " at %s", f.ContextString)
		}
	}
	return b.String()
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if kind == InternalError {
		e.GoStack = stack.Trace().TrimRuntime()
	}
	return e
}
