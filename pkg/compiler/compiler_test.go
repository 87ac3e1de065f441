package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/compiler"
)

func compileOK(t *testing.T, source string, level compiler.OptimizeLevel) *bytecode.BCO {
	t.Helper()
	bco, err := compiler.Compile(source, "test.neb", level)
	require.NoError(t, err)
	require.NotNil(t, bco)
	return bco
}

func TestCompileArithmeticExpressionStatement(t *testing.T) {
	bco := compileOK(t, `Dim x = 1 + 2 * 3`, compiler.OptimizeOff)
	require.NotEmpty(t, bco.Code)
}

func TestCompileIfElse(t *testing.T) {
	bco := compileOK(t, `
Dim x = 1
If x > 0 Then
	Print "positive"
Else
	Print "non-positive"
EndIf
`, compiler.OptimizeOff)

	var sawJump bool
	for _, in := range bco.Code {
		if in.Op == bytecode.OpJump {
			sawJump = true
		}
	}
	require.True(t, sawJump, "expected at least one jump instruction")
}

func TestCompileForLoop(t *testing.T) {
	bco := compileOK(t, `
Dim total = 0
For i := 1 To 10
	total = total + i
Next
`, compiler.OptimizeOff)

	var sawAdd bool
	for _, in := range bco.Code {
		if in.Op == bytecode.OpBinary && bytecode.BinOp(in.Minor) == bytecode.BinAdd {
			sawAdd = true
		}
	}
	require.True(t, sawAdd, "expected a BinAdd for the loop increment or body")
}

func TestCompileForEachUsesIndexProtocol(t *testing.T) {
	bco := compileOK(t, `
ForEach ship In Fleet Do
	Print ship
Next
`, compiler.OptimizeOff)

	specials := map[bytecode.Special]bool{}
	for _, in := range bco.Code {
		if in.Op == bytecode.OpSpecial {
			specials[bytecode.Special(in.Minor)] = true
		}
	}
	require.True(t, specials[bytecode.SpecialFirstIndex])
	require.True(t, specials[bytecode.SpecialNextIndex])
	require.True(t, specials[bytecode.SpecialEndIndex])
}

func TestCompileSubAndCallArgOrder(t *testing.T) {
	bco := compileOK(t, `
Sub Greet(name)
	Print name
EndSub
Call Greet("Ringworld")
`, compiler.OptimizeOff)

	// The Call statement pushes its arguments before the callee (the
	// calling convention); find the IndirectCall and check the instruction
	// right before it is the callee's NamedVariable push, preceded by the
	// literal push of the string argument.
	for i, in := range bco.Code {
		if in.Op == bytecode.OpIndirectCall {
			require.Greater(t, i, 1)
			require.Equal(t, bytecode.OpPush, bco.Code[i-1].Op)
			require.Equal(t, byte(bytecode.ScopeNamedVariable), bco.Code[i-1].Minor)
			require.Equal(t, bytecode.OpPush, bco.Code[i-2].Op)
			require.Equal(t, byte(bytecode.ScopeLiteral), bco.Code[i-2].Minor)
			break
		}
	}
}

func TestCompileBuiltinMin(t *testing.T) {
	bco := compileOK(t, `Dim x = Min(3, 1, 2)`, compiler.OptimizeOff)

	var count int
	for _, in := range bco.Code {
		if in.Op == bytecode.OpBinary && bytecode.BinOp(in.Minor) == bytecode.BinMin {
			count++
		}
	}
	require.Equal(t, 2, count, "Min with 3 args folds into 2 binary Min ops")
}

func TestCompileBuiltinMid(t *testing.T) {
	bco := compileOK(t, `Dim x = Mid("hello", 2, 3)`, compiler.OptimizeOff)

	var sawLCut, sawRCut bool
	for _, in := range bco.Code {
		if in.Op == bytecode.OpBinary {
			switch bytecode.BinOp(in.Minor) {
			case bytecode.BinLCut:
				sawLCut = true
			case bytecode.BinRCut:
				sawRCut = true
			}
		}
	}
	require.True(t, sawLCut)
	require.True(t, sawRCut)
}

func TestCompileBuiltinIfTernary(t *testing.T) {
	bco := compileOK(t, `Dim x = If(1 > 0, "yes", "no")`, compiler.OptimizeOff)
	require.NotEmpty(t, bco.Code)
}

func TestPeepholeFusesLocalBinaryOperand(t *testing.T) {
	// total + i: i is a bare local identifier, so its push lands directly
	// before the Add, which is the shape fused-binary collapses.
	bco := compileOK(t, `
Dim total = 0
For i := 1 To 5
	total = total + i
Next
`, compiler.OptimizeDefault)

	var sawFusedBinary bool
	for _, in := range bco.Code {
		if in.Op == bytecode.OpFusedBinary {
			sawFusedBinary = true
		}
	}
	require.True(t, sawFusedBinary, "expected at least one fused-binary instruction after optimization")
}

func TestPeepholePreservesJumpTargets(t *testing.T) {
	source := `
Dim x = 1
If x > 0 Then
	x = x + 1
Else
	x = x - 1
EndIf
Print x
`
	unoptimized := compileOK(t, source, compiler.OptimizeOff)
	optimized := compileOK(t, source, compiler.OptimizeDefault)

	for _, in := range optimized.Code {
		if in.Op == bytecode.OpJump || in.Op == bytecode.OpFusedCompare || in.Op == bytecode.OpFusedCompare2 {
			require.LessOrEqual(t, int(in.Arg), len(optimized.Code))
		}
	}
	require.LessOrEqual(t, len(optimized.Code), len(unoptimized.Code))
}

func TestCompileTryCatch(t *testing.T) {
	bco := compileOK(t, `
Try
	Abort "boom"
EndTry
`, compiler.OptimizeOff)

	var sawCatch, sawUncatch bool
	for _, in := range bco.Code {
		if in.Op == bytecode.OpJump && bytecode.JumpCondition(in.Minor) == bytecode.JumpCatch {
			sawCatch = true
		}
		if in.Op == bytecode.OpSpecial && bytecode.Special(in.Minor) == bytecode.SpecialUncatch {
			sawUncatch = true
		}
	}
	require.True(t, sawCatch)
	require.True(t, sawUncatch)
}

func TestCompileStructDeclAndDimAs(t *testing.T) {
	bco := compileOK(t, `
Struct Point
	X
	Y
EndStruct
Dim p As Point
`, compiler.OptimizeOff)
	require.NotEmpty(t, bco.Code)
}

func TestParserReportsErrors(t *testing.T) {
	_, err := compiler.Compile(`If`, "bad.neb", compiler.OptimizeOff)
	require.Error(t, err)
}
