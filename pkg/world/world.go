package world

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

// World is the process-wide shared state: global values, the
// ship/planet property name tables, the keymap registry, the
// script-visible file table, and the seed context list every new
// Process's context stack starts from.
type World struct {
	globalNames  map[string]int
	globalValues []value.Value

	shipPropertyNames   []string
	shipPropertyIndex   map[string]int
	planetPropertyNames []string
	planetPropertyIndex map[string]int

	keymaps map[string]*value.Keymap

	files *FileTable

	Logger *slog.Logger

	globalContexts []value.Context

	nextProcessID int

	hooks map[string][]value.Value

	statics map[staticKey]value.Value

	specialCommands []string

	// SessionID identifies one World's lifetime for log correlation
	// across a CLI run, replacing a bare incrementing counter.
	SessionID uuid.UUID
}

// staticKey identifies one Static-scoped Dim site: a particular local
// slot of a particular compiled subroutine. Statics live on the World
// (not the Process) so every caller of a given Sub shares one persisted
// value, matching how the Sub itself is a single World global.
type staticKey struct {
	bco  *bytecode.BCO
	slot int
}

// Static implements the Static-Dim rule for the Static scope: it
// creates the slot with init the first time it is reached and returns the
// previously stored value (discarding init) on every later call.
func (w *World) Static(bco *bytecode.BCO, slot int, init value.Value) value.Value {
	key := staticKey{bco, slot}
	if v, ok := w.statics[key]; ok {
		return v
	}
	if w.statics == nil {
		w.statics = make(map[staticKey]value.Value)
	}
	w.statics[key] = init
	return init
}

// FlushStatic writes back the frame-local value of a Static slot so the
// next call to the same subroutine observes it, per Static's persist-
// across-calls semantics.
func (w *World) FlushStatic(bco *bytecode.BCO, slot int, v value.Value) {
	if w.statics == nil {
		w.statics = make(map[staticKey]value.Value)
	}
	w.statics[staticKey{bco, slot}] = v
}

// AddHook registers sub to fire whenever RunHook(event) executes, per
// On event...EndOn: adding to a hook appends a call rather than
// replacing the previous registration.
func (w *World) AddHook(event string, sub value.Value) {
	key := strings.ToUpper(event)
	if w.hooks == nil {
		w.hooks = make(map[string][]value.Value)
	}
	w.hooks[key] = append(w.hooks[key], sub)
}

// Hooks returns every subroutine registered under event, in registration
// order.
func (w *World) Hooks(event string) []value.Value {
	return w.hooks[strings.ToUpper(event)]
}

// NewWorld constructs an empty World. A nil logger falls back to
// slog.Default(), following banksean-sand's initSlog pattern of always
// having a live *slog.Logger to hand to subsystems.
func NewWorld(logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	w := &World{
		globalNames:         make(map[string]int),
		shipPropertyIndex:   make(map[string]int),
		planetPropertyIndex: make(map[string]int),
		keymaps:             make(map[string]*value.Keymap),
		files:               newFileTable(),
		Logger:              logger,
		SessionID:           uuid.New(),
	}
	w.SetGlobal("System", value.Ref(value.KindContext, newSystemContext()))
	return w
}

// Global reads a World-level value by name (case-insensitive).
func (w *World) Global(name string) (value.Value, bool) {
	idx, ok := w.globalNames[strings.ToUpper(name)]
	if !ok {
		return value.Null(), false
	}
	return w.globalValues[idx], true
}

// SetGlobal writes a World-level value by name, creating the slot if
// this is the first assignment to name.
func (w *World) SetGlobal(name string, v value.Value) {
	key := strings.ToUpper(name)
	if idx, ok := w.globalNames[key]; ok {
		w.globalValues[idx] = v
		return
	}
	idx := len(w.globalValues)
	w.globalNames[key] = idx
	w.globalValues = append(w.globalValues, v)
}

// DefineIfAbsent implements the Dim-on-a-shared-scope rule:
// it creates name with the initializer only if name does not already
// exist, otherwise the initializer is discarded.
func (w *World) DefineIfAbsent(name string, v value.Value) {
	if _, ok := w.globalNames[strings.ToUpper(name)]; ok {
		return
	}
	w.SetGlobal(name, v)
}

// SetSystemErr updates the well-known System.Err property, used by the
// VM's Try/Catch handler and by Throw.
func (w *World) SetSystemErr(msg string) {
	v, ok := w.Global("System")
	if !ok {
		return
	}
	if ctx, ok := v.Context(); ok {
		_ = ctx.Set(0, value.String(msg))
	}
}

// Keymap resolves a registered keymap by name.
func (w *World) Keymap(name string) (*value.Keymap, bool) {
	k, ok := w.keymaps[strings.ToUpper(name)]
	return k, ok
}

// DefineKeymap creates (or returns the existing) keymap named name, for
// CreateKeymap.
func (w *World) DefineKeymap(name string) *value.Keymap {
	key := strings.ToUpper(name)
	if k, ok := w.keymaps[key]; ok {
		return k
	}
	k := value.NewKeymap(name)
	w.keymaps[key] = k
	return k
}

// AddGlobalContext appends a host context to the seed list every new
// Process's context stack is initialized from.
func (w *World) AddGlobalContext(ctx value.Context) {
	w.globalContexts = append(w.globalContexts, ctx)
}

// GlobalContexts returns the seed context list.
func (w *World) GlobalContexts() []value.Context {
	return w.globalContexts
}

// AddShipProperty registers a user-defined ship property name (from
// CreateShipProperty), returning its per-object storage index.
func (w *World) AddShipProperty(name string) int {
	key := strings.ToUpper(name)
	if i, ok := w.shipPropertyIndex[key]; ok {
		return i
	}
	i := len(w.shipPropertyNames)
	w.shipPropertyIndex[key] = i
	w.shipPropertyNames = append(w.shipPropertyNames, name)
	return i
}

// AddPlanetProperty registers a user-defined planet property name.
func (w *World) AddPlanetProperty(name string) int {
	key := strings.ToUpper(name)
	if i, ok := w.planetPropertyIndex[key]; ok {
		return i
	}
	i := len(w.planetPropertyNames)
	w.planetPropertyIndex[key] = i
	w.planetPropertyNames = append(w.planetPropertyNames, name)
	return i
}

// ShipPropertyNames returns every registered ship property name, in
// registration order.
func (w *World) ShipPropertyNames() []string { return w.shipPropertyNames }

// PlanetPropertyNames returns every registered planet property name, in
// registration order.
func (w *World) PlanetPropertyNames() []string { return w.planetPropertyNames }

// AddSpecialCommand registers a host-only console command name (e.g. a
// REPL/CLI builtin that is not a script global or a language keyword),
// so completion can offer it alongside globals and keywords.
func (w *World) AddSpecialCommand(name string) {
	w.specialCommands = append(w.specialCommands, name)
}

// SpecialCommands returns every registered host-only command name, in
// registration order.
func (w *World) SpecialCommands() []string {
	return w.specialCommands
}

// GlobalNames returns every World-global name, in no particular order,
// for completion and diagnostics. Names are upper-cased, matching how
// they are stored in globalNames; callers that need display-cased names
// keep their own record of the original spelling.
func (w *World) GlobalNames() []string {
	out := make([]string, 0, len(w.globalNames))
	for name := range w.globalNames {
		out = append(out, name)
	}
	return out
}

// AllocateProcessID hands out the next unique process id.
func (w *World) AllocateProcessID() int {
	w.nextProcessID++
	return w.nextProcessID
}

// Files exposes the World's script-visible file table.
func (w *World) Files() *FileTable { return w.files }

// FileTable is the script-visible I/O surface backing the "File handle"
// value variant: a small integer names an entry here. Handle 0 conventionally
// means "no file" (print goes to Stdout); negative handles are invalid.
type FileTable struct {
	entries []io.Writer
}

func newFileTable() *FileTable {
	return &FileTable{entries: []io.Writer{os.Stdout}}
}

// SetDefault replaces handle 0, the writer Print targets when a script
// gives no explicit file number, following banksean-sand's pattern of
// letting the host redirect a program's default console to a log file.
func (t *FileTable) SetDefault(w io.Writer) {
	t.entries[0] = w
}

// Open registers w under a fresh handle and returns it.
func (t *FileTable) Open(w io.Writer) int {
	t.entries = append(t.entries, w)
	return len(t.entries) - 1
}

// Writer resolves a file handle to its io.Writer: handle 0 is the
// default writer (Stdout unless SetDefault replaced it), a closed handle
// yields io.Discard, and an out-of-range handle falls back to Stdout.
func (t *FileTable) Writer(handle int) io.Writer {
	if handle < 0 || handle >= len(t.entries) {
		return os.Stdout
	}
	return t.entries[handle]
}

// OpenPath opens path for appending (creating it if absent) and registers
// it under a fresh handle, retrying transient open failures — a network
// mount still settling, a momentarily locked save file — with exponential
// backoff instead of failing the Process on the first EBUSY/EAGAIN.
func (t *FileTable) OpenPath(path string) (int, error) {
	var f *os.File
	open := func() error {
		var oerr error
		f, oerr = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		return oerr
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.Retry(open, policy); err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	return t.Open(f), nil
}

// Close releases the file at handle, replacing its slot with a discard
// writer so the handle number stays stable but subsequent writes vanish.
func (t *FileTable) Close(handle int) {
	if handle <= 0 || handle >= len(t.entries) {
		return
	}
	if c, ok := t.entries[handle].(io.Closer); ok {
		_ = c.Close()
	}
	t.entries[handle] = io.Discard
}
