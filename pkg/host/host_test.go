package host_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/host"
	"github.com/nebula-lang/nebula/pkg/value"
)

func TestNameTableAssignsSortedIndicesRegardlessOfAddOrder(t *testing.T) {
	a := host.NewNameTable()
	a.Add("Zed")
	a.Add("Alpha")
	a.Add("mid")
	a.Freeze()

	b := host.NewNameTable()
	b.Add("mid")
	b.Add("Zed")
	b.Add("Alpha")
	b.Freeze()

	require.Equal(t, 3, a.Len())
	require.Equal(t, 3, b.Len())

	for _, name := range []string{"Zed", "Alpha", "mid"} {
		ai, ok := a.Lookup(name)
		require.True(t, ok)
		bi, ok := b.Lookup(name)
		require.True(t, ok)
		require.Equal(t, ai, bi, "index for %s must not depend on registration order", name)
	}

	alphaIdx, _ := a.Lookup("Alpha")
	midIdx, _ := a.Lookup("mid")
	zedIdx, _ := a.Lookup("Zed")
	require.Less(t, int(alphaIdx), int(midIdx))
	require.Less(t, int(midIdx), int(zedIdx))
}

func TestNameTableLookupIsCaseInsensitive(t *testing.T) {
	n := host.NewNameTable()
	n.Add("Speed")
	n.Freeze()

	idx, ok := n.Lookup("SPEED")
	require.True(t, ok)
	require.Equal(t, "Speed", n.Name(idx))

	_, ok = n.Lookup("Unknown")
	require.False(t, ok)
}

func TestBridgeGetSetRoundTripsWritableProperty(t *testing.T) {
	names := host.NewNameTable()
	names.Add("Speed")
	names.Freeze()

	speed := 10.0
	fields := []host.Accessor{
		{
			Name: "Speed",
			Hint: value.TypeHintFloat,
			Get:  func() value.Value { return value.Float(speed) },
			Set: func(v value.Value) error {
				speed = v.AsFloat()
				return nil
			},
		},
	}

	b := host.NewBridge(names, fields, "ship-1", "Ship 1")
	idx, ok := b.Lookup("Speed")
	require.True(t, ok)
	require.Equal(t, 10.0, b.Get(idx).AsFloat())

	require.NoError(t, b.Set(idx, value.Float(25.0)))
	require.Equal(t, 25.0, b.Get(idx).AsFloat())
	require.Equal(t, 25.0, speed)

	require.Equal(t, "ship-1", b.HostObject())
	require.Equal(t, "Ship 1", b.String(true))
}

func TestBridgeSetReturnsNotAssignableForReadOnlyProperty(t *testing.T) {
	names := host.NewNameTable()
	names.Add("Name")
	names.Freeze()

	fields := []host.Accessor{
		{
			Name: "Name",
			Hint: value.TypeHintString,
			Get:  func() value.Value { return value.String("Rocinante") },
			// Set left nil: read-only.
		},
	}

	b := host.NewBridge(names, fields, nil, "")
	idx, ok := b.Lookup("Name")
	require.True(t, ok)

	err := b.Set(idx, value.String("Anything"))
	require.ErrorIs(t, err, value.ErrNotAssignable)
	require.Equal(t, "Rocinante", b.Get(idx).AsString())
}

func TestBridgeEnumPropertiesVisitsEveryFieldWithItsHint(t *testing.T) {
	names := host.NewNameTable()
	names.Add("Speed")
	names.Add("Name")
	names.Add("Cargo")
	names.Freeze()

	fields := make([]host.Accessor, names.Len())
	fields[mustIndex(t, names, "Speed")] = host.Accessor{Name: "Speed", Hint: value.TypeHintFloat, Get: func() value.Value { return value.Float(0) }}
	fields[mustIndex(t, names, "Name")] = host.Accessor{Name: "Name", Hint: value.TypeHintString, Get: func() value.Value { return value.String("") }}
	fields[mustIndex(t, names, "Cargo")] = host.Accessor{Name: "Cargo", Hint: value.TypeHintArray, Get: func() value.Value { return value.Null() }}

	b := host.NewBridge(names, fields, nil, "")

	seen := make(map[string]value.TypeHint)
	b.EnumProperties(func(name string, hint value.TypeHint) {
		seen[name] = hint
	})

	require.Len(t, seen, 3)
	require.Equal(t, value.TypeHintFloat, seen["Speed"])
	require.Equal(t, value.TypeHintString, seen["Name"])
	require.Equal(t, value.TypeHintArray, seen["Cargo"])
}

func TestBridgeCloneIsIndependentAndNextReportsSingleObject(t *testing.T) {
	names := host.NewNameTable()
	names.Add("Speed")
	names.Freeze()

	fields := []host.Accessor{
		{Name: "Speed", Hint: value.TypeHintFloat, Get: func() value.Value { return value.Float(5) }},
	}
	b := host.NewBridge(names, fields, nil, "")

	require.False(t, b.Next(), "a Bridge is a single object, not a sequence")

	clone := b.Clone()
	require.NotSame(t, b, clone)
	idx, _ := names.Lookup("Speed")
	require.Equal(t, 5.0, clone.Get(idx).AsFloat())
}

func TestBridgeStoreIsNotSerializable(t *testing.T) {
	names := host.NewNameTable()
	names.Freeze()
	b := host.NewBridge(names, nil, nil, "")
	err := b.Store(nil)
	require.ErrorIs(t, err, value.ErrNotSerializable)
}

func mustIndex(t *testing.T, n *host.NameTable, name string) int {
	t.Helper()
	idx, ok := n.Lookup(name)
	require.True(t, ok)
	return int(idx)
}
