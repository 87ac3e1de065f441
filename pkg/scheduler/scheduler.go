// Package scheduler implements the cooperative process-group scheduling
// model: a process list owns Processes and groups them by
// process-group id, one Process per group runs at a time, and a tick
// picks the next runnable Process in each group in a stable,
// implementation-defined order.
package scheduler

import (
	"context"
	"log/slog"
	"sort"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
	"github.com/nebula-lang/nebula/pkg/vm"
	"github.com/nebula-lang/nebula/pkg/world"
)

// group holds one process-group's member list and the round-robin
// cursor used to pick the next Process to run in it, giving a stable
// order without favoring any one member.
type group struct {
	id      int
	members []*vm.Process
	cursor  int
}

// Scheduler drives a World's Processes to completion one tick at a time.
// It is not safe for concurrent use: this is single-threaded cooperative
// scheduling within one World.
type Scheduler struct {
	world  *world.World
	groups map[int]*group
	order  []int // group ids in first-seen order, for a stable Tick sweep

	byID map[int]*vm.Process

	Logger *slog.Logger
}

// New creates a Scheduler driving w.
func New(w *world.World, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		world:  w,
		groups: make(map[int]*group),
		byID:   make(map[int]*vm.Process),
		Logger: logger,
	}
}

// SpawnOptions configures a new Process's identity metadata.
type SpawnOptions struct {
	Name      string
	Kind      string
	GroupID   int
	Priority  int
	Temporary bool
	Args      []value.Value
}

// Spawn compiles-free-starts entry as a new Process in the given group,
// pushed onto the group's member list and left Runnable for the next
// Tick to pick up.
func (s *Scheduler) Spawn(entry *bytecode.BCO, opts SpawnOptions) (*vm.Process, *vm.Error) {
	id := s.world.AllocateProcessID()
	p := vm.NewProcess(s.world, id, opts.Name, opts.Kind, opts.Temporary)
	p.Priority = opts.Priority
	p.GroupID = opts.GroupID
	if err := p.Start(entry, opts.Args); err != nil {
		return nil, err
	}
	s.add(p)
	return p, nil
}

func (s *Scheduler) add(p *vm.Process) {
	g, ok := s.groups[p.GroupID]
	if !ok {
		g = &group{id: p.GroupID}
		s.groups[p.GroupID] = g
		s.order = append(s.order, p.GroupID)
	}
	g.members = append(g.members, p)
	s.byID[p.ID] = p
}

// Process looks up a live Process by id.
func (s *Scheduler) Process(id int) (*vm.Process, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Wake transitions a Suspended or Waiting Process back to Runnable, the
// scheduler-side half of the Suspend/Wait/suspend_for_ui yield points.
func (s *Scheduler) Wake(id int) bool {
	p, ok := s.byID[id]
	if !ok {
		return false
	}
	switch p.State() {
	case vm.StateSuspended, vm.StateWaiting, vm.StateFrozen:
		p.SetRunnable()
		return true
	default:
		return false
	}
}

// Terminate forces id to Terminated immediately ("scheduler demand"),
// regardless of its current state.
func (s *Scheduler) Terminate(id int) bool {
	p, ok := s.byID[id]
	if !ok {
		return false
	}
	p.Terminate()
	return true
}

// Tick runs exactly one Runnable Process per group once, in the group's
// round-robin order, then reaps every Process that reached a terminal
// state this tick. It returns the number of groups that either ran a
// Process this tick or had at least one non-terminal member.
func (s *Scheduler) Tick() int {
	active := 0
	for _, gid := range s.order {
		g := s.groups[gid]
		if s.tickGroup(g) {
			active++
		}
	}
	s.reap()
	return active
}

// tickGroup advances one group's round-robin cursor to the next Runnable
// member (if any) and runs it to its next yield point.
func (s *Scheduler) tickGroup(g *group) bool {
	n := len(g.members)
	if n == 0 {
		return false
	}
	anyLive := false
	for i := 0; i < n; i++ {
		idx := (g.cursor + i) % n
		p := g.members[idx]
		if isTerminal(p.State()) {
			continue
		}
		anyLive = true
		if p.State() != vm.StateRunnable {
			continue
		}
		g.cursor = (idx + 1) % n
		p.SetRunning()
		if err := p.Run(); err != nil {
			s.Logger.Error("process failed", "pid", p.ID, "correlation_id", p.CorrelationID, "name", p.Name, "error", err.Error())
		}
		return true
	}
	return anyLive
}

// reap drops every terminal Process from its group's member list, once
// per Tick, so dead Processes never block a round-robin cursor.
func (s *Scheduler) reap() {
	for _, gid := range s.order {
		g := s.groups[gid]
		live := g.members[:0]
		for _, p := range g.members {
			if isTerminal(p.State()) {
				delete(s.byID, p.ID)
				continue
			}
			live = append(live, p)
		}
		g.members = live
	}
}

func isTerminal(st vm.State) bool {
	switch st {
	case vm.StateEnded, vm.StateTerminated, vm.StateFailed:
		return true
	default:
		return false
	}
}

// Run ticks the Scheduler until every group is idle (no Runnable or
// Running member remains — only Suspended/Waiting/Frozen Processes, if
// any, survive) or ctx is done. The Go context only bounds the *host*
// driving loop; it has no relationship to the language-level Context
// protocol.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Tick() == 0 {
			return nil
		}
		runnable := false
		for _, g := range s.groups {
			for _, p := range g.members {
				if p.State() == vm.StateRunnable {
					runnable = true
				}
			}
		}
		if !runnable {
			return nil
		}
	}
}

// GroupIDs returns every known group id in ascending order, for
// diagnostics and the CLI's process-list command.
func (s *Scheduler) GroupIDs() []int {
	out := append([]int(nil), s.order...)
	sort.Ints(out)
	return out
}

// Processes returns every live Process in group id, in round-robin
// member order.
func (s *Scheduler) Processes(groupID int) []*vm.Process {
	g, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	return append([]*vm.Process(nil), g.members...)
}
