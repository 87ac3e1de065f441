package value_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/value"
)

func TestTruthiness(t *testing.T) {
	assert.False(t, value.Null().IsTruthy())
	assert.False(t, value.Int(0).IsTruthy())
	assert.True(t, value.Int(1).IsTruthy())
	assert.False(t, value.Bool(false).IsTruthy())
	assert.True(t, value.Bool(true).IsTruthy())
	assert.False(t, value.String("").IsTruthy())
	assert.True(t, value.String("x").IsTruthy())
	assert.False(t, value.Float(0).IsTruthy())
}

func TestBooleanDisplay(t *testing.T) {
	assert.Equal(t, "YES", value.Bool(true).String())
	assert.Equal(t, "NO", value.Bool(false).String())
}

func TestAnyNull(t *testing.T) {
	assert.True(t, value.AnyNull(value.Int(1), value.Null()))
	assert.False(t, value.AnyNull(value.Int(1), value.String("a")))
}

func TestArrayRedim(t *testing.T) {
	a := value.NewArray(2, 2)
	require.NoError(t, a.Set(value.Int(1), 0, 0))
	require.NoError(t, a.Set(value.Int(2), 1, 1))

	b := a.Redim(3, 3)
	v, err := b.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.AsInt())

	v, err = b.Get(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.AsInt())

	// original array must not alias the resized one.
	require.NoError(t, b.Set(value.Int(99), 0, 0))
	v, err = a.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.AsInt())
}

func TestHashInsertionOrder(t *testing.T) {
	h := value.NewHash()
	h.Set("b", value.Int(2))
	h.Set("a", value.Int(1))
	h.Set("b", value.Int(20))
	assert.Equal(t, []string{"b", "a"}, h.Keys())
	v, ok := h.Get("b")
	require.True(t, ok)
	assert.Equal(t, int64(20), v.AsInt())
}

func TestKeymapIdentityAndInheritance(t *testing.T) {
	parent := value.NewKeymap("Parent")
	parent.Bind(1, "FIRE")
	child := value.NewKeymap("Child")
	child.AddParent(parent)

	cmd, ok := child.Find(1)
	require.True(t, ok)
	assert.Equal(t, "FIRE", cmd)

	other := value.NewKeymap("Child")
	assert.NotSame(t, child, other)
}

func TestSerializationRoundTrip(t *testing.T) {
	cases := []value.Value{
		value.Null(),
		value.Int(42),
		value.Float(3.5),
		value.Bool(true),
		value.String("hello"),
	}
	for _, v := range cases {
		var buf bytes.Buffer
		enc := value.NewEncoder(&buf)
		require.NoError(t, value.Encode(enc, v))

		dec := value.NewDecoder(&buf)
		got, err := value.Decode(dec)
		require.NoError(t, err)
		assert.Equal(t, v.Kind(), got.Kind())
		assert.Equal(t, v.String(), got.String())
	}
}

func TestNotSerializable(t *testing.T) {
	var buf bytes.Buffer
	enc := value.NewEncoder(&buf)
	err := value.Encode(enc, value.FileHandle(3))
	assert.ErrorIs(t, err, value.ErrNotSerializable)
}
