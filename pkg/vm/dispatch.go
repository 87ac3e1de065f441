package vm

import (
	"strings"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/value"
)

// Run executes the Process until it leaves the Running state.
func (p *Process) Run() *Error {
	p.state = StateRunning
	return p.runUntil(0)
}

// runUntil dispatches instructions until the frame stack has unwound to
// depth or the Process is no longer Running (a yield point was hit, it
// ended, or it failed). Every dispatch error not swallowed by an active
// handler is returned to the caller.
func (p *Process) runUntil(depth int) *Error {
	for len(p.frames) > depth {
		if p.state != StateRunning {
			return nil
		}
		if p.BreakCheck != nil && p.BreakCheck() {
			p.state = StateTerminated
			return nil
		}
		if err := p.step(); err != nil {
			if final := p.raise(err); final != nil {
				return final
			}
		}
	}
	return nil
}

// step executes exactly one instruction of the current frame, including
// the "frame fell off the end of its code" bookkeeping.
func (p *Process) step() *Error {
	f := p.currentFrame()
	if f.pc >= len(f.bco.Code) {
		if len(p.frames) == 1 {
			p.frames = p.frames[:0]
			p.state = StateEnded
			return nil
		}
		p.popFrame(value.Null())
		return nil
	}

	inst := f.bco.Code[f.pc]
	f.line = f.bco.LineForPC(f.pc)
	f.pc++

	switch inst.Op {
	case bytecode.OpPush:
		return p.execPush(f, bytecode.Scope(inst.Minor), inst.Arg)
	case bytecode.OpStore:
		return p.execStore(f, bytecode.Scope(inst.Minor), inst.Arg)
	case bytecode.OpPop:
		p.popValue()
		return nil
	case bytecode.OpBinary:
		b := p.popValue()
		a := p.popValue()
		v, err := p.binaryOp(bytecode.BinOp(inst.Minor), a, b)
		if err != nil {
			return err
		}
		p.pushValue(v)
		return nil
	case bytecode.OpUnary:
		v := p.popValue()
		r, err := p.unaryOp(bytecode.UnOp(inst.Minor), v)
		if err != nil {
			return err
		}
		p.pushValue(r)
		return nil
	case bytecode.OpTernary:
		// Never emitted by the current compiler (If(...) compiles to a
		// jump pair instead); kept for completeness against the VM's
		// closed opcode list.
		elseV := p.popValue()
		thenV := p.popValue()
		cond := p.popValue()
		if cond.IsTruthy() {
			p.pushValue(thenV)
		} else {
			p.pushValue(elseV)
		}
		return nil
	case bytecode.OpJump:
		return p.execJump(f, bytecode.JumpCondition(inst.Minor), int(inst.Arg))
	case bytecode.OpIndirectCall:
		return p.execIndirectCall(bytecode.CallFlag(inst.Minor), int(inst.Arg))
	case bytecode.OpStack:
		return p.execIndexedAssign(int(inst.Arg))
	case bytecode.OpMemRef:
		return p.execMemRef(f, inst.Minor, inst.Arg)
	case bytecode.OpDim:
		return p.execDim(f, bytecode.Scope(inst.Minor), inst.Arg)
	case bytecode.OpSpecial:
		return p.execSpecial(f, bytecode.Special(inst.Minor), inst.Arg)
	case bytecode.OpFusedUnary:
		v := f.locals[inst.Arg]
		r, err := p.unaryOp(bytecode.UnOp(inst.Minor), v)
		if err != nil {
			return err
		}
		p.pushValue(r)
		return nil
	case bytecode.OpFusedBinary:
		left := p.popValue()
		right := f.locals[inst.Arg]
		v, err := p.binaryOp(bytecode.BinOp(inst.Minor), left, right)
		if err != nil {
			return err
		}
		p.pushValue(v)
		return nil
	case bytecode.OpFusedCompare:
		b := p.popValue()
		a := p.popValue()
		v, err := p.binaryOp(bytecode.BinOp(inst.Minor), a, b)
		if err != nil {
			return err
		}
		if !v.IsTruthy() {
			f.pc = int(inst.Arg)
		}
		return nil
	case bytecode.OpFusedCompare2:
		b := p.popValue()
		a := p.popValue()
		v, err := p.binaryOp(bytecode.BinOp(inst.Minor), a, b)
		if err != nil {
			return err
		}
		if v.IsTruthy() {
			f.pc = int(inst.Arg)
		}
		return nil
	case bytecode.OpInplaceUnary:
		v := f.locals[inst.Arg]
		r, err := p.unaryOp(bytecode.UnOp(inst.Minor), v)
		if err != nil {
			return err
		}
		f.locals[inst.Arg] = r
		return nil
	default:
		return newError(InternalError, "unknown opcode %s", inst.Op)
	}
}

// execJump implements the jump minor-opcode bitmask plus the two
// mutually exclusive Catch/DecZero modes.
func (p *Process) execJump(f *Frame, cond bytecode.JumpCondition, target int) *Error {
	switch cond {
	case bytecode.JumpCatch:
		p.pushHandler(target)
		return nil
	case bytecode.JumpDecZero:
		// Never emitted by the current compiler (For uses an explicit
		// compare instead); generic completeness fallback.
		v := p.popValue()
		n := v.AsInt() - 1
		if n <= 0 {
			return nil
		}
		p.pushValue(value.Int(n))
		f.pc = target
		return nil
	}

	if cond&bytecode.JumpAlways != 0 {
		f.pc = target
		return nil
	}

	v := p.peekValue()
	taken := false
	if cond&bytecode.JumpIfTrue != 0 && v.IsTruthy() {
		taken = true
	}
	if cond&bytecode.JumpIfFalse != 0 && !v.IsTruthy() {
		taken = true
	}
	if cond&bytecode.JumpIfEmpty != 0 && v.IsNull() {
		taken = true
	}
	if cond&bytecode.JumpPopAlways != 0 {
		p.popValue()
	}
	if taken {
		f.pc = target
	}
	return nil
}

// execPush dispatches OpPush by scope. ScopeLocal and ScopeStatic share a
// handler: ordinary reads of a Static-scoped variable are indistinguishable
// from Local ones once compiled (both resolve through the same
// compile-time local-slot map), so Static only behaves specially at
// OpDim.
func (p *Process) execPush(f *Frame, scope bytecode.Scope, arg uint16) *Error {
	switch scope {
	case bytecode.ScopeNamedVariable:
		v, _ := p.lookupNamed(f.bco.Names[arg])
		p.pushValue(v)
	case bytecode.ScopeLocal, bytecode.ScopeStatic:
		p.pushValue(f.locals[arg])
	case bytecode.ScopeShared, bytecode.ScopeNamedShared:
		v, _ := p.world.Global(f.bco.Names[arg])
		p.pushValue(v)
	case bytecode.ScopeLiteral:
		p.pushValue(f.bco.Literals[arg])
	case bytecode.ScopeInteger:
		p.pushValue(value.Int(int32(arg)))
	case bytecode.ScopeBoolean:
		p.pushValue(value.Bool(arg != 0))
	default:
		return newError(InternalError, "push: unknown scope %s", scope)
	}
	return nil
}

// execStore dispatches OpStore. Assignments leave their value on the
// stack (an explicit OpPop follows at every statement-level call site),
// so execStore only ever peeks.
func (p *Process) execStore(f *Frame, scope bytecode.Scope, arg uint16) *Error {
	v := p.peekValue()
	switch scope {
	case bytecode.ScopeNamedVariable:
		return p.storeNamed(f.bco.Names[arg], v)
	case bytecode.ScopeLocal, bytecode.ScopeStatic:
		f.locals[arg] = v
		f.dimmed[arg] = true
	case bytecode.ScopeShared, bytecode.ScopeNamedShared:
		p.world.SetGlobal(f.bco.Names[arg], v)
	default:
		return newError(InternalError, "store: cannot store to scope %s", scope)
	}
	return nil
}

// execIndirectCall implements the calling convention: args then
// callee are popped, the CallFlag sub-mode is checked against the
// callee's procedure/function shape, and a result is always produced
// (null for a procedure that falls off its end) so the compiler's
// trailing OpPop in statement position always has something to discard.
func (p *Process) execIndirectCall(flag bytecode.CallFlag, n int) *Error {
	callee := p.popValue()
	args := p.popValues(n)

	sub, ok := callee.Subroutine()
	if !ok {
		return newError(TypeError, "expected a Subroutine or Closure, got %s", callee.Kind())
	}
	if flag == bytecode.CallRefuseProcedures && !sub.IsFunction() {
		return newError(TypeError, "expected a function, got a procedure")
	}
	if flag == bytecode.CallRefuseFunctions && sub.IsFunction() {
		return newError(TypeError, "expected a procedure, got a function")
	}
	return p.call(callee, args, true)
}

// execIndexedAssign implements `t(args):=value` (OpStack): value was
// pushed first, then callee, then args left-to-right, so args come off
// the stack first and value is peeked (not popped) to stay the
// expression's own result.
func (p *Process) execIndexedAssign(n int) *Error {
	args := p.popValues(n)
	callee := p.popValue()
	v := p.peekValue()

	switch callee.Kind() {
	case value.KindArray:
		arr, _ := callee.Array()
		idx := make([]int, len(args))
		for i, a := range args {
			idx[i] = int(a.AsInt())
		}
		if err := arr.Set(v, idx...); err != nil {
			return newError(RangeError, "%v", err)
		}
	case value.KindHash:
		h, _ := callee.Hash()
		if len(args) != 1 {
			return newError(ArgumentCount, "hash index expects 1 key, got %d", len(args))
		}
		h.Set(args[0].AsString(), v)
	default:
		return newError(TypeError, "cannot index-assign into %s", callee.Kind())
	}
	return nil
}

// execMemRef implements OpMemRef: Minor 0 reads, Minor 1 writes, through
// memberLookup's Context/StructInstance/Hash dispatch.
func (p *Process) execMemRef(f *Frame, minor byte, arg uint16) *Error {
	name := f.bco.Names[arg]
	recv := p.popValue()
	get, set, err := memberLookup(recv, name)
	if err != nil {
		return err
	}
	if minor == 0 {
		p.pushValue(get())
		return nil
	}
	v := p.peekValue()
	if serr := set(v); serr != nil {
		return newError(NotAssignable, "cannot assign %q: %v", name, serr)
	}
	return nil
}

// execDim implements the Dim rule per scope: Local always
// initializes, Static initializes only the first time a given (BCO,
// slot) site is reached, Shared/NamedShared (synonyms at this layer)
// create the World global only if absent.
func (p *Process) execDim(f *Frame, scope bytecode.Scope, arg uint16) *Error {
	init := p.popValue()
	name := f.bco.Names[arg]

	switch scope {
	case bytecode.ScopeLocal:
		slot, ok := f.localSlot(name)
		if !ok {
			return newError(InternalError, "dim: no local slot for %q", name)
		}
		f.locals[slot] = init
		f.dimmed[slot] = true
	case bytecode.ScopeStatic:
		slot, ok := f.localSlot(name)
		if !ok {
			return newError(InternalError, "dim: no local slot for %q", name)
		}
		v := p.world.Static(f.bco, slot, init)
		f.locals[slot] = v
		f.dimmed[slot] = true
		f.recordStatic(slot)
	default: // ScopeShared, ScopeNamedShared
		p.world.DefineIfAbsent(name, init)
	}
	return nil
}

// resolveVariable finds the get/set pair for name the way ReDim
// needs: it is the only operation whose target name was not
// already disambiguated between Local and Shared at compile time, so it
// must search the current frame's locals before falling back to the
// context stack and the World globals (mirroring lookupNamed/storeNamed,
// with the added frame-local check).
func (p *Process) resolveVariable(f *Frame, name string) (get func() value.Value, set func(value.Value), ok bool) {
	if slot, found := f.localSlot(name); found && f.dimmed[slot] {
		return func() value.Value { return f.locals[slot] },
			func(v value.Value) { f.locals[slot] = v }, true
	}
	for i := len(p.context) - 1; i >= 0; i-- {
		ctx := p.context[i]
		if idx, found := ctx.Lookup(name); found {
			return func() value.Value { return ctx.Get(idx) },
				func(v value.Value) { _ = ctx.Set(idx, v) }, true
		}
	}
	if _, found := p.world.Global(name); found {
		return func() value.Value { v, _ := p.world.Global(name); return v },
			func(v value.Value) { p.world.SetGlobal(name, v) }, true
	}
	return nil, nil, false
}

// execSpecial dispatches OpSpecial's 28 minor opcodes.
func (p *Process) execSpecial(f *Frame, special bytecode.Special, arg uint16) *Error {
	switch special {
	case bytecode.SpecialUncatch:
		p.popHandler()
		return nil

	case bytecode.SpecialReturn:
		v := p.popValue()
		p.popFrame(v)
		if len(p.frames) == 0 {
			p.state = StateEnded
		}
		return nil

	case bytecode.SpecialWith:
		v := p.popValue()
		ctx, err := p.asContext(v)
		if err != nil {
			return err
		}
		p.pushContext(ctx)
		return nil

	case bytecode.SpecialEndWith:
		p.popContext()
		return nil

	case bytecode.SpecialFirstIndex:
		v := p.popValue()
		it, err := makeIterator(v)
		if err != nil {
			return err
		}
		if !it.Valid() {
			p.pushValue(value.Bool(false))
			return nil
		}
		p.pushContext(newIterContext(it))
		p.pushValue(value.Bool(true))
		return nil

	case bytecode.SpecialNextIndex:
		ic, ok := p.peekContext().(*iterContext)
		if !ok {
			return newError(InternalError, "next-index with no active iterator")
		}
		if ic.Next() {
			p.pushValue(value.Bool(true))
		} else {
			p.popContext()
			p.pushValue(value.Bool(false))
		}
		return nil

	case bytecode.SpecialEndIndex:
		if ctx := p.peekContext(); ctx != nil {
			if _, ok := ctx.(*iterContext); ok {
				p.popContext()
			}
		}
		return nil

	case bytecode.SpecialFirst:
		ic, ok := p.peekContext().(*iterContext)
		if !ok {
			return newError(InternalError, "first with no active iterator")
		}
		p.pushValue(ic.it.Value())
		return nil

	case bytecode.SpecialNext:
		// Never emitted by the current compiler (ForEach uses
		// first/next-index/first instead); generic completeness
		// fallback: advance and push the new current element.
		ic, ok := p.peekContext().(*iterContext)
		if !ok {
			return newError(InternalError, "next with no active iterator")
		}
		if ic.Next() {
			p.pushValue(ic.it.Value())
		} else {
			p.popContext()
			p.pushValue(value.Null())
		}
		return nil

	case bytecode.SpecialEvalStatement:
		n := int(arg)
		lines := p.popValues(n)
		var src strings.Builder
		for i, l := range lines {
			if i > 0 {
				src.WriteByte('\n')
			}
			src.WriteString(l.AsString())
		}
		bco, cerr := compiler.Compile(src.String(), f.bco.SourceFile+":eval", compiler.OptimizeDefault)
		if cerr != nil {
			return newError(UserError, "%v", cerr)
		}
		return p.enterFrame(bco, nil, true)

	case bytecode.SpecialEvalExpr:
		v := p.popValue()
		if v.Kind() != value.KindString {
			return newError(TypeError, "Eval expects a String, got %s", v.Kind())
		}
		bco, cerr := compiler.CompileExpression(v.AsString(), f.bco.SourceFile+":eval", compiler.OptimizeDefault)
		if cerr != nil {
			return newError(UserError, "%v", cerr)
		}
		return p.enterFrame(bco, nil, true)

	case bytecode.SpecialDefineSub:
		sub := p.popValue()
		p.world.SetGlobal(f.bco.Names[arg], sub)
		return nil

	case bytecode.SpecialDefineShipProperty:
		name := p.popValue()
		p.world.AddShipProperty(name.AsString())
		return nil

	case bytecode.SpecialDefinePlanetProperty:
		name := p.popValue()
		p.world.AddPlanetProperty(name.AsString())
		return nil

	case bytecode.SpecialLoad:
		n := int(arg)
		callee := p.popValue()
		args := p.popValues(n)
		return p.call(callee, args, true)

	case bytecode.SpecialPrint:
		v := p.popValue()
		w := p.world.Files().Writer(0)
		_, _ = w.Write([]byte(v.String()))
		return nil

	case bytecode.SpecialAddHook:
		event := f.bco.Names[arg]
		sub, _ := p.world.Global("ON$" + event)
		p.world.AddHook(event, sub)
		return nil

	case bytecode.SpecialRunHook:
		event := f.bco.Names[arg]
		for _, sub := range p.world.Hooks(event) {
			depth := len(p.frames)
			if err := p.call(sub, nil, false); err != nil {
				return err
			}
			if err := p.runUntil(depth); err != nil {
				return err
			}
			if p.state != StateRunning {
				return nil
			}
		}
		return nil

	case bytecode.SpecialThrow:
		msg := p.popValue()
		return newError(UserError, "%s", msg.AsString())

	case bytecode.SpecialTerminate:
		p.state = StateTerminated
		return nil

	case bytecode.SpecialSuspend:
		if p.Temporary {
			return newError(UserError, "Cannot suspend/wait temporary process")
		}
		if arg == 0 {
			p.state = StateSuspended
		} else {
			p.state = StateWaiting
		}
		return nil

	case bytecode.SpecialNewArray:
		// Never emitted by the current compiler (arrays are declared via
		// Dim's dims, not this special); generic completeness fallback
		// building a rank-0 array.
		p.pushValue(value.Ref(value.KindArray, value.NewArray()))
		return nil

	case bytecode.SpecialMakeList:
		// Never emitted by the current compiler; generic completeness
		// fallback treating arg as the element count to pack off the
		// value stack into a 1-D Array.
		elems := p.popValues(int(arg))
		p.pushValue(value.Ref(value.KindArray, value.FromSlice(elems)))
		return nil

	case bytecode.SpecialNewHash:
		p.pushValue(value.Ref(value.KindHash, value.NewHash()))
		return nil

	case bytecode.SpecialInstance:
		name := p.popValue()
		p.ActiveKeymap = p.world.DefineKeymap(name.AsString())
		return nil

	case bytecode.SpecialResizeArray:
		return p.execResizeArray(f, arg)

	case bytecode.SpecialBind:
		n := int(arg)
		callee := p.popValue()
		args := p.popValues(n)
		sub, ok := callee.Subroutine()
		if !ok {
			return newError(TypeError, "Bind: expected a Subroutine or Closure, got %s", callee.Kind())
		}
		closure := &value.Closure{Sub: sub, Bound: args}
		p.pushValue(value.Ref(value.KindClosure, closure))
		return nil

	case bytecode.SpecialRestart:
		p.restart()
		return nil

	default:
		return newError(InternalError, "unknown special opcode %s", special)
	}
}

func (p *Process) execResizeArray(f *Frame, nameArg uint16) *Error {
	name := f.bco.Names[nameArg]
	get, set, ok := p.resolveVariable(f, name)
	if !ok {
		return newError(UnknownIdentifier, "ReDim: unknown variable %q", name)
	}
	arr, isArray := get().Array()
	if !isArray {
		return newError(TypeError, "ReDim: %q is not an Array", name)
	}
	rank := len(arr.Dims())
	dims := p.popValues(rank)
	newDims := make([]int, rank)
	for i, d := range dims {
		newDims[i] = int(d.AsInt())
	}
	set(value.Ref(value.KindArray, arr.Redim(newDims...)))
	return nil
}

// restart implements `Restart`: the Process resumes execution from the
// first instruction of its outermost Frame, discarding every inner call,
// handler, and pushed context. Static locals are not reset: they persist
// on the World independently of any one Frame.
func (p *Process) restart() {
	f0 := p.frames[0]
	f0.pc = 0
	for i := range f0.locals {
		f0.locals[i] = value.Null()
		f0.dimmed[i] = false
	}
	f0.staticSlots = nil
	p.frames = p.frames[:1]
	p.values = p.values[:f0.valueBase]
	p.context = p.context[:f0.contextBase]
	p.handlers = nil
}

// asContext adapts a With target to a value.Context: a Context value is
// used directly, a StructInstance or Hash is wrapped so member access and
// bare-name resolution both work inside the With block.
func (p *Process) asContext(v value.Value) (value.Context, *Error) {
	if ctx, ok := v.Context(); ok {
		return ctx, nil
	}
	switch v.Kind() {
	case value.KindStructInstance, value.KindHash:
		return &valueContext{v: v}, nil
	default:
		return nil, newError(TypeError, "cannot open a With scope on %s", v.Kind())
	}
}

// valueContext adapts a StructInstance or Hash to the Context protocol
// for With, whose body may reference the target's fields/keys as bare
// names or via an explicit receiver.
type valueContext struct {
	v value.Value
}

func (vc *valueContext) Lookup(name string) (value.PropertyIndex, bool) {
	switch vc.v.Kind() {
	case value.KindStructInstance:
		si, _ := vc.v.Ref().(*value.StructInstance)
		i, ok := si.Type.FieldIndex(name)
		return value.PropertyIndex(i), ok
	case value.KindHash:
		h, _ := vc.v.Hash()
		for i, k := range h.Keys() {
			if strings.EqualFold(k, name) {
				return value.PropertyIndex(i), true
			}
		}
	}
	return 0, false
}

func (vc *valueContext) Get(idx value.PropertyIndex) value.Value {
	switch vc.v.Kind() {
	case value.KindStructInstance:
		si, _ := vc.v.Ref().(*value.StructInstance)
		return si.Get(int(idx))
	case value.KindHash:
		h, _ := vc.v.Hash()
		_, v := h.At(int(idx))
		return v
	}
	return value.Null()
}

func (vc *valueContext) Set(idx value.PropertyIndex, v value.Value) error {
	switch vc.v.Kind() {
	case value.KindStructInstance:
		si, _ := vc.v.Ref().(*value.StructInstance)
		si.Set(int(idx), v)
		return nil
	case value.KindHash:
		h, _ := vc.v.Hash()
		k, _ := h.At(int(idx))
		h.Set(k, v)
		return nil
	}
	return value.ErrNotAssignable
}

func (vc *valueContext) Next() bool { return false }

func (vc *valueContext) Clone() value.Context { return &valueContext{v: vc.v} }

func (vc *valueContext) EnumProperties(accept value.PropertyAcceptor) {
	switch vc.v.Kind() {
	case value.KindStructInstance:
		si, _ := vc.v.Ref().(*value.StructInstance)
		for _, field := range si.Type.Fields {
			accept(field, value.TypeHintAny)
		}
	case value.KindHash:
		h, _ := vc.v.Hash()
		for _, k := range h.Keys() {
			accept(k, value.TypeHintAny)
		}
	}
}

func (vc *valueContext) HostObject() value.HostRef { return nil }

func (vc *valueContext) String(readable bool) string { return vc.v.String() }

func (vc *valueContext) Store(w *value.Encoder) error { return value.ErrNotSerializable }
