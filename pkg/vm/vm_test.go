package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/value"
	"github.com/nebula-lang/nebula/pkg/vm"
	"github.com/nebula-lang/nebula/pkg/world"
)

// run compiles source as a full program and drives it to completion on a
// fresh World, returning the Process and World for inspection. It does not
// assert the Process ended cleanly: tests exercising error paths want the
// Process left Failed.
func run(t *testing.T, source string) (*vm.Process, *world.World) {
	t.Helper()
	w := world.NewWorld(nil)
	bco, err := compiler.Compile(source, "test.neb", compiler.OptimizeOff)
	require.NoError(t, err)

	p := vm.NewProcess(w, 1, "test", "test", false)
	require.Nil(t, p.Start(bco, nil))
	p.Run()
	return p, w
}

func globalInt(t *testing.T, w *world.World, name string) int64 {
	t.Helper()
	v, ok := w.Global(name)
	require.True(t, ok, "global %s not set", name)
	return v.AsInt()
}

func globalBool(t *testing.T, w *world.World, name string) bool {
	t.Helper()
	v, ok := w.Global(name)
	require.True(t, ok, "global %s not set", name)
	return v.AsBool()
}

func globalString(t *testing.T, w *world.World, name string) string {
	t.Helper()
	v, ok := w.Global(name)
	require.True(t, ok, "global %s not set", name)
	return v.AsString()
}

func TestArithmeticExpressionYieldsComputedResult(t *testing.T) {
	p, w := run(t, `Dim Shared Result = 1 + 2 * 3`)
	require.Equal(t, vm.StateEnded, p.State())
	require.EqualValues(t, 7, globalInt(t, w, "Result"))
}

func TestStrCaseFlipsComparisonCaseSensitivity(t *testing.T) {
	p, w := run(t, `
Dim Shared Plain = ("Foo" = "foo")
Dim Shared Strict = StrCase("Foo" = "foo")
`)
	require.Equal(t, vm.StateEnded, p.State())
	require.True(t, globalBool(t, w, "Plain"), "ambient comparisons are case-insensitive")
	require.False(t, globalBool(t, w, "Strict"), "StrCase(...) forces a case-sensitive comparison")
}

func TestIfBuiltinSelectsBranchByTruthiness(t *testing.T) {
	p, w := run(t, `
Dim Shared WhenFalse = If(0, "yes", "no")
Dim Shared WhenTrue = If(1, "yes", "no")
Dim Shared NoElse = If(0, "yes")
`)
	require.Equal(t, vm.StateEnded, p.State())
	require.Equal(t, "no", globalString(t, w, "WhenFalse"))
	require.Equal(t, "yes", globalString(t, w, "WhenTrue"))

	v, ok := w.Global("NoElse")
	require.True(t, ok)
	require.True(t, v.IsNull(), "If with no else branch defaults to Null")
}

func TestEvalExpressionCompilesAndRunsAString(t *testing.T) {
	p, w := run(t, `Dim Shared Result = Eval("1+1")`)
	require.Equal(t, vm.StateEnded, p.State())
	require.EqualValues(t, 2, globalInt(t, w, "Result"))
}

func TestEvalStatementErrorFailsProcessAndSetsSystemErr(t *testing.T) {
	p, w := run(t, `Eval "Abort \"boom\""`)
	require.Equal(t, vm.StateFailed, p.State())
	require.NotNil(t, p.LastError)
	require.Equal(t, vm.UserError, p.LastError.Kind)

	sys, ok := w.Global("System")
	require.True(t, ok)
	ctx, ok := sys.Context()
	require.True(t, ok)
	idx, ok := ctx.Lookup("Err")
	require.True(t, ok)
	require.Equal(t, "boom", ctx.Get(idx).AsString())
}

func TestTryCatchRestoresStacksAndResumesAfterEndTry(t *testing.T) {
	p, w := run(t, `
Dim Shared Before = 0
Dim Shared After = 0
Try
Before := 1
Abort "boom"
Before := 99
EndTry
After := 1
`)
	require.Equal(t, vm.StateEnded, p.State(), "an error caught by Try must not fail the Process")
	require.EqualValues(t, 1, globalInt(t, w, "Before"), "the statement right before Abort must have run")
	require.EqualValues(t, 1, globalInt(t, w, "After"), "execution must resume after EndTry")

	sysErr, ok := w.Global("System")
	require.True(t, ok)
	ctx, ok := sysErr.Context()
	require.True(t, ok)
	idx, ok := ctx.Lookup("Err")
	require.True(t, ok)
	require.Equal(t, "boom", ctx.Get(idx).AsString())
}

func TestArgumentCountErrorOnTooFewArguments(t *testing.T) {
	p, _ := run(t, `
Sub Greet(first, last)
	Print first
EndSub
Call Greet("Ringworld")
`)
	require.Equal(t, vm.StateFailed, p.State())
	require.NotNil(t, p.LastError)
	require.Equal(t, vm.ArgumentCount, p.LastError.Kind)
}

func TestArgumentCountErrorOnTooManyArguments(t *testing.T) {
	p, _ := run(t, `
Sub Greet(name)
	Print name
EndSub
Call Greet("Ringworld", "Louis")
`)
	require.Equal(t, vm.StateFailed, p.State())
	require.NotNil(t, p.LastError)
	require.Equal(t, vm.ArgumentCount, p.LastError.Kind)
}

// TestVariadicCallPacksExcessArgsIntoArray builds its BCO directly with the
// bytecode package rather than through the parser: the source-level grammar
// has no variadic-parameter syntax yet, but the calling convention itself
// (MinArgs==MaxArgs==len(params), Variadic packs the tail into the last
// local) is exercised the same way a host-constructed BCO would reach it.
func TestVariadicCallPacksExcessArgsIntoArray(t *testing.T) {
	bco := bytecode.NewBCO(bytecode.RoleFunction, "test.neb", "variadic_fn")
	bco.AddLocal("first")
	bco.AddLocal("rest")
	bco.Args = bytecode.ArgDescriptor{MinArgs: 2, MaxArgs: 2, Variadic: true}

	bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), 1)
	nameIdx := bco.AddName("Result")
	bco.Emit(bytecode.OpDim, byte(bytecode.ScopeShared), nameIdx)
	litIdx := bco.AddLiteral(value.Null())
	bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), litIdx)
	bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialReturn), 0)
	require.NoError(t, bco.Relocate())

	w := world.NewWorld(nil)
	p := vm.NewProcess(w, 1, "test", "test", false)
	args := []value.Value{value.Int64(1), value.Int64(2), value.Int64(3), value.Int64(4)}
	require.Nil(t, p.Start(bco, args))
	p.Run()
	require.Equal(t, vm.StateEnded, p.State())

	result, ok := w.Global("Result")
	require.True(t, ok)
	arr, ok := result.Array()
	require.True(t, ok)
	require.Equal(t, 3, arr.Len())
	got := arr.Slice()
	require.EqualValues(t, 2, got[0].AsInt())
	require.EqualValues(t, 3, got[1].AsInt())
	require.EqualValues(t, 4, got[2].AsInt())
}

func TestVariadicCallRejectsTooFewFixedArguments(t *testing.T) {
	bco := bytecode.NewBCO(bytecode.RoleFunction, "test.neb", "variadic_fn")
	bco.AddLocal("first")
	bco.AddLocal("rest")
	bco.Args = bytecode.ArgDescriptor{MinArgs: 2, MaxArgs: 2, Variadic: true}
	bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), bco.AddLiteral(value.Null()))
	bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialReturn), 0)
	require.NoError(t, bco.Relocate())

	w := world.NewWorld(nil)
	p := vm.NewProcess(w, 1, "test", "test", false)
	err := p.Start(bco, nil)
	require.NotNil(t, err)
	require.Equal(t, vm.ArgumentCount, err.Kind)
}
