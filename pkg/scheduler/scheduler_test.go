package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/scheduler"
	"github.com/nebula-lang/nebula/pkg/vm"
	"github.com/nebula-lang/nebula/pkg/world"
)

func TestTickRunsOneRunnableProcessPerGroup(t *testing.T) {
	w := world.NewWorld(nil)
	s := scheduler.New(w, nil)

	bco1, err := compiler.Compile(`Dim Shared A = 0
A := A + 1`, "p1.neb", compiler.OptimizeOff)
	require.NoError(t, err)
	bco2, err := compiler.Compile(`Dim Shared B = 0
B := B + 1`, "p2.neb", compiler.OptimizeOff)
	require.NoError(t, err)

	p1, verr := s.Spawn(bco1, scheduler.SpawnOptions{Name: "p1", GroupID: 1})
	require.Nil(t, verr)
	p2, verr := s.Spawn(bco2, scheduler.SpawnOptions{Name: "p2", GroupID: 1})
	require.Nil(t, verr)

	require.Equal(t, vm.StateRunnable, p1.State())
	require.Equal(t, vm.StateRunnable, p2.State())

	for s.Tick() > 0 {
	}

	require.Equal(t, vm.StateEnded, p1.State())
	require.Equal(t, vm.StateEnded, p2.State())

	a, ok := w.Global("A")
	require.True(t, ok)
	require.EqualValues(t, 1, a.AsInt())
}

func TestSuspendedProcessSurvivesTicksUntilWoken(t *testing.T) {
	w := world.NewWorld(nil)
	s := scheduler.New(w, nil)

	bco, err := compiler.Compile(`Suspend
Dim Shared Done = 1`, "p.neb", compiler.OptimizeOff)
	require.NoError(t, err)

	p, verr := s.Spawn(bco, scheduler.SpawnOptions{Name: "p", GroupID: 7})
	require.Nil(t, verr)

	s.Tick()
	require.Equal(t, vm.StateSuspended, p.State())

	s.Tick()
	require.Equal(t, vm.StateSuspended, p.State(), "a Suspended process must not resume on its own")

	require.True(t, s.Wake(p.ID))
	require.Equal(t, vm.StateRunnable, p.State())

	for s.Tick() > 0 {
	}
	require.Equal(t, vm.StateEnded, p.State())

	_, ok := w.Global("Done")
	require.True(t, ok)
}

func TestTerminateForcesTerminalState(t *testing.T) {
	w := world.NewWorld(nil)
	s := scheduler.New(w, nil)

	bco, err := compiler.Compile(`Wait`, "p.neb", compiler.OptimizeOff)
	require.NoError(t, err)

	p, verr := s.Spawn(bco, scheduler.SpawnOptions{Name: "p", GroupID: 3})
	require.Nil(t, verr)

	s.Tick()
	require.Equal(t, vm.StateWaiting, p.State())

	require.True(t, s.Terminate(p.ID))
	require.Equal(t, vm.StateTerminated, p.State())

	s.Tick()
	require.Len(t, s.Processes(3), 0)
}

func TestTemporaryProcessCannotSuspend(t *testing.T) {
	w := world.NewWorld(nil)
	s := scheduler.New(w, nil)

	bco, err := compiler.Compile(`Suspend`, "p.neb", compiler.OptimizeOff)
	require.NoError(t, err)

	p, verr := s.Spawn(bco, scheduler.SpawnOptions{Name: "p", GroupID: 9, Temporary: true})
	require.Nil(t, verr)

	s.Tick()
	require.Equal(t, vm.StateFailed, p.State())
	require.NotNil(t, p.LastError)
}
