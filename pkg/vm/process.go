package vm

import (
	"strings"

	"github.com/google/uuid"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
	"github.com/nebula-lang/nebula/pkg/world"
)

// State is a Process's scheduling state.
type State byte

const (
	StateSuspended State = iota
	StateFrozen
	StateRunnable
	StateRunning
	StateWaiting
	StateEnded
	StateTerminated
	StateFailed
)

var stateNames = [...]string{
	"Suspended", "Frozen", "Runnable", "Running", "Waiting",
	"Ended", "Terminated", "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// handler is one active Try scope on the Process's exception stack:
// the sizes to truncate the other three stacks to, and the
// instruction index to resume at, recorded when the matching
// jump-catch instruction ran.
type handler struct {
	valueSize   int
	contextSize int
	frameSize   int
	target      int
}

// Frame is one activation of a BCO on a Process's frame stack. The
// value and context stacks are shared across every Frame of a Process;
// valueBase/contextBase are this Frame's floor into them, so Return (or
// an unhandled error unwinding past this Frame) knows how much to
// truncate.
type Frame struct {
	bco    *bytecode.BCO
	pc     int
	locals []value.Value
	dimmed []bool

	valueBase   int
	contextBase int

	// wantsResult is false only for a Process's outermost Frame, which
	// has no caller to hand a result back to.
	wantsResult bool

	// staticSlots records every local index this Frame dimmed as Static,
	// so popFrame can flush the final value back to the World.
	staticSlots []int

	// line is the source line of the instruction currently executing,
	// refreshed before every dispatch for backtrace construction.
	line int
}

func newFrame(bco *bytecode.BCO, wantsResult bool, valueBase, contextBase int) *Frame {
	return &Frame{
		bco:         bco,
		locals:      make([]value.Value, len(bco.Locals)),
		dimmed:      make([]bool, len(bco.Locals)),
		valueBase:   valueBase,
		contextBase: contextBase,
		wantsResult: wantsResult,
	}
}

// localSlot finds the Locals index matching name, used by OpDim (whose
// Arg is a Names-pool index, not a Locals-pool index) and by
// SpecialResizeArray's generic name resolution.
func (f *Frame) localSlot(name string) (int, bool) {
	for i, n := range f.bco.Locals {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

// recordStatic adds slot to staticSlots if not already present, so
// popFrame flushes each Static-dimmed local back to the World exactly
// once.
func (f *Frame) recordStatic(slot int) {
	for _, s := range f.staticSlots {
		if s == slot {
			return
		}
	}
	f.staticSlots = append(f.staticSlots, slot)
}

// Process is one cooperatively scheduled script execution: the four
// stacks (value, frame, context, exception) plus the scheduling
// state and identity metadata.
type Process struct {
	world *world.World

	values   []value.Value
	frames   []*Frame
	context  []value.Context
	handlers []handler

	state State

	Name         string
	Priority     int
	ID           int
	GroupID      int
	Kind         string
	LastError    *Error
	Notification any

	// CorrelationID is a per-Process UUID for log correlation across a
	// scheduler run, independent of the small integer ID the scheduler
	// and World use as an in-process map key.
	CorrelationID uuid.UUID

	// Temporary processes implement the "cannot suspend/wait a
	// temporary process" rule.
	Temporary bool

	// ActiveKeymap is the keymap most recently selected by UseKeymap,
	// consulted by key-event dispatch outside the VM.
	ActiveKeymap *value.Keymap

	// BreakCheck, when set, is consulted between instructions only:
	// a true result converts the Process to Terminated before the
	// next instruction dispatches, implementing the scheduler's
	// mid-run cancellation hook.
	BreakCheck func() bool
}

// NewProcess creates a Process seeded with the World's global context
// list (so an unqualified name always eventually reaches the host's
// ambient objects via the NamedVariable search).
func NewProcess(w *world.World, id int, name, kind string, temporary bool) *Process {
	return &Process{
		world:         w,
		context:       append([]value.Context(nil), w.GlobalContexts()...),
		state:         StateRunnable,
		Name:          name,
		ID:            id,
		Kind:          kind,
		Temporary:     temporary,
		CorrelationID: uuid.New(),
	}
}

// Start pushes entry as the Process's outermost Frame. The outermost
// Frame wants no result: there is no caller to hand one back to.
func (p *Process) Start(entry *bytecode.BCO, args []value.Value) *Error {
	return p.enterFrame(entry, args, false)
}

func (p *Process) State() State { return p.state }

// SetRunnable transitions the Process to Runnable, the scheduler-side
// half of the Suspended/Waiting/Frozen -> Runnable edges (the wake
// side of Suspend/Wait/suspend_for_ui and of an editor releasing a
// Frozen Process).
func (p *Process) SetRunnable() { p.state = StateRunnable }

// SetRunning transitions the Process to Running immediately before the
// scheduler calls Run.
func (p *Process) SetRunning() { p.state = StateRunning }

// Terminate forces the Process to Terminated on scheduler demand (as
// opposed to the script-level `terminate` opcode, which sets the same
// state from inside dispatch).
func (p *Process) Terminate() { p.state = StateTerminated }

// --- value stack ---------------------------------------------------------

func (p *Process) pushValue(v value.Value) { p.values = append(p.values, v) }

func (p *Process) popValue() value.Value {
	v := p.values[len(p.values)-1]
	p.values = p.values[:len(p.values)-1]
	return v
}

func (p *Process) peekValue() value.Value {
	return p.values[len(p.values)-1]
}

// StackTop reports the value left on the value stack after a Run, for a
// host (REPL, debugger) that wants to show the result of a one-shot
// expression statement without the script having to assign it anywhere.
// It returns false on an empty stack, which is the common case for a
// Process that ended after a statement with no residual value.
func (p *Process) StackTop() (value.Value, bool) {
	if len(p.values) == 0 {
		return value.Null(), false
	}
	return p.peekValue(), true
}

func (p *Process) popValues(n int) []value.Value {
	start := len(p.values) - n
	out := append([]value.Value(nil), p.values[start:]...)
	p.values = p.values[:start]
	return out
}

// --- context stack ---------------------------------------------------------

func (p *Process) pushContext(ctx value.Context) { p.context = append(p.context, ctx) }

func (p *Process) popContext() value.Context {
	ctx := p.context[len(p.context)-1]
	p.context = p.context[:len(p.context)-1]
	return ctx
}

func (p *Process) peekContext() value.Context {
	if len(p.context) == 0 {
		return nil
	}
	return p.context[len(p.context)-1]
}

// lookupNamed implements the "bare NamedVariable push searches the
// context stack top-to-bottom" rule, falling back to the World's
// globals when no context claims the name.
func (p *Process) lookupNamed(name string) (value.Value, bool) {
	for i := len(p.context) - 1; i >= 0; i-- {
		ctx := p.context[i]
		if idx, ok := cachedLookup(ctx, name); ok {
			return ctx.Get(idx), true
		}
	}
	return p.world.Global(name)
}

// storeNamed writes a NamedVariable: the first context (top-to-bottom)
// that claims the name is written through; with no match, the World
// global is created/overwritten, mirroring lookupNamed's search order.
func (p *Process) storeNamed(name string, v value.Value) *Error {
	for i := len(p.context) - 1; i >= 0; i-- {
		ctx := p.context[i]
		if idx, ok := cachedLookup(ctx, name); ok {
			if err := ctx.Set(idx, v); err != nil {
				return newError(NotAssignable, "cannot assign %q: %v", name, err)
			}
			return nil
		}
	}
	p.world.SetGlobal(name, v)
	return nil
}

// --- frames ---------------------------------------------------------------

func (p *Process) currentFrame() *Frame { return p.frames[len(p.frames)-1] }

// resolveCallable unwraps a Closure into its underlying BCO and the
// bound-argument prefix, or fails for anything not ultimately backed by
// compiled bytecode (the only Subroutine shape this VM produces; a host
// bridge that wants to expose native procedures would need its own
// Subroutine implementation and a case here).
func resolveCallable(callee value.Value) (*bytecode.BCO, []value.Value, *Error) {
	switch callee.Kind() {
	case value.KindSubroutine:
		sub, _ := callee.Subroutine()
		bco, ok := sub.(*bytecode.BCO)
		if !ok {
			return nil, nil, newError(TypeError, "subroutine %s is not callable from script", sub.Name())
		}
		return bco, nil, nil
	case value.KindClosure:
		sub, _ := callee.Subroutine()
		closure := sub.(*value.Closure)
		bco, ok := closure.Sub.(*bytecode.BCO)
		if !ok {
			return nil, nil, newError(TypeError, "subroutine %s is not callable from script", closure.Name())
		}
		return bco, closure.Bound, nil
	default:
		return nil, nil, newError(TypeError, "expected a Subroutine or Closure, got %s", callee.Kind())
	}
}

// enterFrame implements the calling convention once callee and args
// are already resolved: argument-count checking against the BCO's
// min/max, variadic excess packed into a one-dimensional Array assigned
// to the implicit last local, and a fresh Frame pushed.
//
// The compiler always sets MinArgs == MaxArgs == len(params) even for a
// variadic BCO (the variadic flag alone signals that excess args pack
// into the final parameter), so a variadic call relaxes the upper bound
// to unlimited and the lower bound to len(params)-1.
func (p *Process) enterFrame(bco *bytecode.BCO, args []value.Value, wantsResult bool) *Error {
	min, max, variadic := bco.Args.MinArgs, bco.Args.MaxArgs, bco.Args.Variadic
	n := len(args)

	if variadic {
		nFixed := max - 1
		if nFixed < 0 {
			nFixed = 0
		}
		if n < nFixed {
			return newError(ArgumentCount, "%s: expected at least %d arguments, got %d", bco.Name(), nFixed, n)
		}
		frame := newFrame(bco, wantsResult, len(p.values), len(p.context))
		for i := 0; i < nFixed; i++ {
			frame.locals[i] = args[i]
			frame.dimmed[i] = true
		}
		if max > 0 {
			rest := value.FromSlice(args[nFixed:])
			frame.locals[nFixed] = value.Ref(value.KindArray, rest)
			frame.dimmed[nFixed] = true
		}
		p.frames = append(p.frames, frame)
		return nil
	}

	if n < min || n > max {
		return newError(ArgumentCount, "%s: expected %d argument(s), got %d", bco.Name(), min, n)
	}
	frame := newFrame(bco, wantsResult, len(p.values), len(p.context))
	for i := 0; i < n; i++ {
		frame.locals[i] = args[i]
		frame.dimmed[i] = true
	}
	p.frames = append(p.frames, frame)
	return nil
}

// call resolves callee (a Subroutine or Closure Value) and invokes it
// with args: a Subroutine/Closure on TOS with N arguments underneath
// enters a new Frame.
func (p *Process) call(callee value.Value, args []value.Value, wantsResult bool) *Error {
	bco, bound, err := resolveCallable(callee)
	if err != nil {
		return err
	}
	if len(bound) > 0 {
		args = append(append([]value.Value(nil), bound...), args...)
	}
	return p.enterFrame(bco, args, wantsResult)
}

// popFrame tears down the current Frame, flushing any Static locals back
// to the World and truncating the value/context stacks to this Frame's
// floor before (optionally) pushing its result.
func (p *Process) popFrame(result value.Value) {
	f := p.frames[len(p.frames)-1]
	p.frames = p.frames[:len(p.frames)-1]

	for _, slot := range f.staticSlots {
		p.world.FlushStatic(f.bco, slot, f.locals[slot])
	}

	p.values = p.values[:f.valueBase]
	p.context = p.context[:f.contextBase]

	if f.wantsResult {
		p.pushValue(result)
	}
}

// pushHandler records a Try scope's checkpoint on the exception stack.
func (p *Process) pushHandler(target int) {
	p.handlers = append(p.handlers, handler{
		valueSize:   len(p.values),
		contextSize: len(p.context),
		frameSize:   len(p.frames),
		target:      target,
	})
}

func (p *Process) popHandler() (handler, bool) {
	if len(p.handlers) == 0 {
		return handler{}, false
	}
	h := p.handlers[len(p.handlers)-1]
	p.handlers = p.handlers[:len(p.handlers)-1]
	return h, true
}

// raise implements the error-propagation policy: the most recent handler
// truncates the value/context/frame stacks to its recorded sizes, pushes
// the error message as a string, and resumes at its target. With no
// handler, the Process fails and err (with the accumulated backtrace) is
// returned to the host.
func (p *Process) raise(err *Error) *Error {
	h, ok := p.popHandler()
	if !ok {
		err.Backtrace = p.backtrace()
		p.state = StateFailed
		p.LastError = err
		p.world.SetSystemErr(err.Message)
		return err
	}
	p.frames = p.frames[:h.frameSize]
	p.context = p.context[:h.contextSize]
	p.values = p.values[:h.valueSize]
	p.world.SetSystemErr(err.Message)
	p.pushValue(value.String(err.Message))
	p.currentFrame().pc = h.target
	return nil
}

// backtrace renders the current frame stack into a backtrace-frame
// list, innermost first.
func (p *Process) backtrace() []BacktraceFrame {
	frames := make([]BacktraceFrame, 0, len(p.frames))
	for i := len(p.frames) - 1; i >= 0; i-- {
		f := p.frames[i]
		bt := BacktraceFrame{
			SubName:    f.bco.SubName,
			SourceFile: f.bco.SourceFile,
			Line:       f.bco.LineForPC(f.pc),
		}
		if ctx := p.peekContext(); ctx != nil && i == len(p.frames)-1 {
			bt.ContextString = ctx.String(true)
		}
		frames = append(frames, bt)
	}
	return frames
}
