package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

func buildSampleBCO(t *testing.T) *bytecode.BCO {
	t.Helper()
	b := bytecode.NewBCO(bytecode.RoleFunction, "demo.neb", "DOUBLE")
	litIdx := b.AddLiteral(value.Int(2))
	b.AddLocal("N")
	b.EmitLine(1)
	b.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), 0)
	b.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), litIdx)
	b.Emit(bytecode.OpBinary, byte(bytecode.BinMul), 0)
	b.Emit(bytecode.OpSpecial, byte(bytecode.SpecialReturn), 0)
	b.Args = bytecode.ArgDescriptor{MinArgs: 1, MaxArgs: 1}
	require.NoError(t, b.Relocate())
	return b
}

func TestEncodeDecodeBCORoundTrip(t *testing.T) {
	original := buildSampleBCO(t)

	var buf bytes.Buffer
	enc := value.NewEncoder(&buf)
	require.NoError(t, bytecode.EncodeBCO(enc, original))

	dec := value.NewDecoder(&buf)
	tag, _, err := dec.ReadTagPayload()
	require.NoError(t, err)
	require.Equal(t, value.TagBCORef, tag)

	got, err := bytecode.DecodeBCO(dec)
	require.NoError(t, err)

	require.Equal(t, original.Code, got.Code)
	require.Equal(t, original.Names, got.Names)
	require.Equal(t, original.Locals, got.Locals)
	require.Equal(t, original.SourceFile, got.SourceFile)
	require.Equal(t, original.SubName, got.SubName)
	require.True(t, got.IsFunction())

	if diff := cmp.Diff(original.Literals[0].String(), got.Literals[0].String()); diff != "" {
		t.Errorf("literal mismatch (-want +got):\n%s", diff)
	}
}

func TestRelocateResolvesLabels(t *testing.T) {
	b := bytecode.NewBCO(bytecode.RoleProcedure, "", "")
	end := b.NewLabel()
	b.Emit(bytecode.OpPush, byte(bytecode.ScopeBoolean), 1)
	jumpIdx := b.EmitJump(byte(bytecode.JumpIfFalse), end)
	b.Emit(bytecode.OpPush, byte(bytecode.ScopeInteger), 7)
	b.PlaceLabel(end)
	require.NoError(t, b.Relocate())
	require.Equal(t, uint16(len(b.Code)), b.Code[jumpIdx].Arg)
}

func TestDisassembleDoesNotPanic(t *testing.T) {
	b := buildSampleBCO(t)
	var buf bytes.Buffer
	bytecode.Disassemble(&buf, b, false)
	require.NotEmpty(t, buf.String())
}
