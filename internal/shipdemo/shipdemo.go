// Package shipdemo is a small, illustrative host object model — Ship and
// Planet records exposed through the Context protocol — standing in for
// the real game model a host embedding this runtime would provide. It
// exists so the REPL's `nebula demo` subcommand, and the tests that
// exercise pkg/host end to end, have something concrete to point at.
package shipdemo

import (
	"fmt"

	"github.com/nebula-lang/nebula/pkg/host"
	"github.com/nebula-lang/nebula/pkg/value"
	"github.com/nebula-lang/nebula/pkg/world"
)

// Ship is a minimal starship record: identity, position, a four-mineral
// cargo hold, and a friendly code, echoing the dotted ship-property
// naming convention (LOC.X, CARGO.N, ...) of the genre this runtime's
// scripts were designed to automate.
type Ship struct {
	ID      int
	Name    string
	Owner   int
	X, Y    int
	Neutronium, Tritanium, Duranium, Molybdenum int
	Crew    int
	Damage  int
	FCode   string
}

// Planet is a minimal planet record: identity, position, population, and
// the same four-mineral stock a Ship carries.
type Planet struct {
	ID         int
	Name       string
	Owner      int
	X, Y       int
	Population int
	Neutronium, Tritanium, Duranium, Molybdenum int
}

var shipTable = buildShipTable()
var planetTable = buildPlanetTable()

func buildShipTable() *host.NameTable {
	t := host.NewNameTable()
	for _, n := range []string{
		"ID", "NAME", "OWNER$", "LOC.X", "LOC.Y",
		"CARGO.N", "CARGO.T", "CARGO.D", "CARGO.M",
		"CREW", "DAMAGE", "FCODE",
	} {
		t.Add(n)
	}
	t.Freeze()
	return t
}

func buildPlanetTable() *host.NameTable {
	t := host.NewNameTable()
	for _, n := range []string{
		"ID", "NAME", "OWNER$", "LOC.X", "LOC.Y", "COLONISTS",
		"CARGO.N", "CARGO.T", "CARGO.D", "CARGO.M",
	} {
		t.Add(n)
	}
	t.Freeze()
	return t
}

// Context builds the value.Context the VM sees for s. FCODE and NAME are
// the only writable properties, matching the real game's SetName/SetFCode
// methods being the narrow mutation surface on an otherwise read-only
// ship record.
func (s *Ship) Context() value.Context {
	fields := []host.Accessor{
		{Name: "ID", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.ID)) }},
		{Name: "NAME", Hint: value.TypeHintString,
			Get: func() value.Value { return value.String(s.Name) },
			Set: func(v value.Value) error { s.Name = v.AsString(); return nil },
		},
		{Name: "OWNER$", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Owner)) }},
		{Name: "LOC.X", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.X)) }},
		{Name: "LOC.Y", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Y)) }},
		{Name: "CARGO.N", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Neutronium)) }},
		{Name: "CARGO.T", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Tritanium)) }},
		{Name: "CARGO.D", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Duranium)) }},
		{Name: "CARGO.M", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Molybdenum)) }},
		{Name: "CREW", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Crew)) }},
		{Name: "DAMAGE", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(s.Damage)) }},
		{Name: "FCODE", Hint: value.TypeHintString,
			Get: func() value.Value { return value.String(s.FCode) },
			Set: func(v value.Value) error { s.FCode = v.AsString(); return nil },
		},
	}
	return host.NewBridge(shipTable, byTableIndex(shipTable, fields), s, fmt.Sprintf("Ship(%d)", s.ID))
}

// byTableIndex reorders fields so that fields[i] names table.Name(i),
// the layout NewBridge expects.
func byTableIndex(table *host.NameTable, fields []host.Accessor) []host.Accessor {
	out := make([]host.Accessor, len(fields))
	for _, f := range fields {
		idx, _ := table.Lookup(f.Name)
		out[idx] = f
	}
	return out
}

// Context builds the value.Context the VM sees for p. Every property is
// read-only: this demo has no SetColonists-equivalent mutation method.
func (p *Planet) Context() value.Context {
	fields := []host.Accessor{
		{Name: "ID", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.ID)) }},
		{Name: "NAME", Hint: value.TypeHintString, Get: func() value.Value { return value.String(p.Name) }},
		{Name: "OWNER$", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.Owner)) }},
		{Name: "LOC.X", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.X)) }},
		{Name: "LOC.Y", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.Y)) }},
		{Name: "COLONISTS", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.Population)) }},
		{Name: "CARGO.N", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.Neutronium)) }},
		{Name: "CARGO.T", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.Tritanium)) }},
		{Name: "CARGO.D", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.Duranium)) }},
		{Name: "CARGO.M", Hint: value.TypeHintInteger, Get: func() value.Value { return value.Int(int32(p.Molybdenum)) }},
	}
	return host.NewBridge(planetTable, byTableIndex(planetTable, fields), p, fmt.Sprintf("Planet(%d)", p.ID))
}

// Universe is a tiny fixed universe: a handful of ships and planets
// seeded as World globals, the way a real host exposes SHIP(n)/PLANET(n)
// accessor arrays — here flattened to named globals since pkg/vm has no
// indexed-array-of-context type of its own.
type Universe struct {
	Ships   []*Ship
	Planets []*Planet
}

// NewUniverse builds a small fixed scenario: two ships, two planets, one
// ship in orbit of one planet.
func NewUniverse() *Universe {
	return &Universe{
		Ships: []*Ship{
			{ID: 1, Name: "USS Fearless", Owner: 1, X: 1200, Y: 1800, Neutronium: 40, Tritanium: 10, Duranium: 10, Molybdenum: 5, Crew: 300, FCode: "NUK"},
			{ID: 2, Name: "Scout Redshift", Owner: 1, X: 1500, Y: 1500, Neutronium: 10, Crew: 20, FCode: "???"},
		},
		Planets: []*Planet{
			{ID: 1, Name: "Terra", Owner: 1, X: 1200, Y: 1800, Population: 900, Neutronium: 500, Tritanium: 200, Duranium: 150, Molybdenum: 90},
			{ID: 2, Name: "Nowhere", X: 4000, Y: 4000},
		},
	}
}

// Install registers every ship and planet in u as a World global
// ("Ship1", "Ship2", ..., "Planet1", "Planet2", ...) rather than handing
// back a constructor Callable, since this VM has no native-Callable hook
// for a host constructor function (pkg/vm's resolveCallable only ever
// unwraps compiled bytecode).
func (u *Universe) Install(w *world.World) {
	for _, s := range u.Ships {
		w.SetGlobal(fmt.Sprintf("Ship%d", s.ID), value.Ref(value.KindContext, s.Context()))
	}
	for _, p := range u.Planets {
		w.SetGlobal(fmt.Sprintf("Planet%d", p.ID), value.Ref(value.KindContext, p.Context()))
	}
}
