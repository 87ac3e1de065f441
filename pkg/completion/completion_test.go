package completion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/completion"
	"github.com/nebula-lang/nebula/pkg/value"
	"github.com/nebula-lang/nebula/pkg/world"
)

func TestListFiltersByStemCaseInsensitively(t *testing.T) {
	l := completion.NewList("Pr")
	l.Add("Print")
	l.Add("Proc")
	l.Add("Other")
	assert.ElementsMatch(t, []string{"Print", "Proc"}, l.Words())
}

func TestListRejectsEmbeddedDollar(t *testing.T) {
	l := completion.NewList("CC")
	l.Add("CC$foo")
	l.Add("CC$")
	assert.Equal(t, []string{"CC$"}, l.Words())
}

func TestListDedupesCaseInsensitively(t *testing.T) {
	l := completion.NewList("")
	l.Add("Name")
	l.Add("NAME")
	assert.Len(t, l.Words(), 1)
}

func TestImmediateCompletionIsLongestCommonPrefix(t *testing.T) {
	l := completion.NewList("Pr")
	l.Add("Print")
	l.Add("Process")
	assert.Equal(t, "Pr", l.ImmediateCompletion())

	l2 := completion.NewList("Pri")
	l2.Add("Print")
	l2.Add("Prism")
	assert.Equal(t, "Pri", l2.ImmediateCompletion())

	l3 := completion.NewList("Print")
	l3.Add("Print")
	assert.Equal(t, "Print", l3.ImmediateCompletion())
}

func TestCompleteOffersGlobalsKeywordsAndCommands(t *testing.T) {
	w := world.NewWorld(nil)
	w.SetGlobal("MyShip", value.Int(1))
	w.AddSpecialCommand("Help")

	out := completion.Complete("My", nil, w, nil)
	require.Contains(t, out.Words(), "MYSHIP")

	out2 := completion.Complete("Hel", nil, w, nil)
	assert.Contains(t, out2.Words(), "Help")

	out3 := completion.Complete("Di", nil, w, nil)
	assert.Contains(t, out3.Words(), "DIM")
}

func TestCompleteEmptyStemYieldsNothing(t *testing.T) {
	w := world.NewWorld(nil)
	out := completion.Complete("  ", nil, w, nil)
	assert.True(t, out.IsEmpty())
}

func TestCompleteInsideAddConfigStringOffersConfigNames(t *testing.T) {
	w := world.NewWorld(nil)
	cfg := func() []string { return []string{"Backup.Dir", "Backup.Turn"} }

	out := completion.Complete(`AddConfig("Back`, nil, w, cfg)
	assert.ElementsMatch(t, []string{"Backup.Dir", "Backup.Turn"}, out.Words())
}
