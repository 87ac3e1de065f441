// Package completion implements a script-line completion list: given a
// partial script line and a cursor position, produce the ordered set of
// candidate words a REPL or editor would offer.
package completion

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/value"
	"github.com/nebula-lang/nebula/pkg/world"
)

// List accumulates unique, stem-filtered candidates, matching
// game::interface::CompletionList's "reject anything with a non-terminal
// $" and longest-common-prefix rules. Dedup is keyed by the upper-cased
// spelling so the union of several property/global/keyword sources never
// offers the same candidate twice under different casing.
type List struct {
	stem  string
	seen  mapset.Set[string]
	words []string
}

// NewList creates an empty List filtering to candidates starting with
// stem (case-insensitive).
func NewList(stem string) *List {
	return &List{stem: stem, seen: mapset.NewThreadUnsafeSet[string]()}
}

// Add offers candidate for inclusion. It is rejected if it is shorter
// than the stem, does not start with the stem (case-insensitive), or
// contains a '$' anywhere but its last character (internal-name filter).
func (l *List) Add(candidate string) {
	if len(candidate) < len(l.stem) {
		return
	}
	if !strings.EqualFold(candidate[:len(l.stem)], l.stem) {
		return
	}
	if n := strings.IndexByte(candidate, '$'); n >= 0 && n != len(candidate)-1 {
		return
	}
	key := strings.ToUpper(candidate)
	if !l.seen.Add(key) {
		return
	}
	l.words = append(l.words, candidate)
}

// Words returns every surviving candidate, sorted for stable display.
func (l *List) Words() []string {
	out := append([]string(nil), l.words...)
	sort.Strings(out)
	return out
}

// IsEmpty reports whether no candidate survived filtering.
func (l *List) IsEmpty() bool { return l.seen.Cardinality() == 0 }

// ImmediateCompletion returns the longest common prefix of every
// surviving candidate (which is at least the stem itself), or "" if
// there are no candidates.
func (l *List) ImmediateCompletion() string {
	if len(l.words) == 0 {
		return ""
	}
	first := l.words[0]
	length := len(first)
	for _, w := range l.words[1:] {
		if len(w) < length {
			length = len(w)
		}
		for i := len(l.stem); i < length; i++ {
			if w[i] != first[i] {
				length = i
				break
			}
		}
	}
	return first[:length]
}

// parseState tracks the small state machine that recognizes an
// AddConfig(...) or Cfg("... call while scanning the line up to the
// cursor: inside a quoted string whose outer call is AddConfig(...) or
// Cfg(..., completion switches to offering configuration option names.
type parseState int

const (
	stateNormal parseState = iota
	stateSeenConfigCommand
	stateSeenConfigFunction
	stateSeenConfigFunctionParen
	stateSeenQuote
)

func isWordStart(ch byte) bool {
	return ch == '_' || ch == '$' ||
		(ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}

func isWordContinue(ch byte) bool {
	return isWordStart(ch) || (ch >= '0' && ch <= '9') || ch == '.'
}

// scan walks text up to the cursor, returning the identifier stem under
// the cursor, whether a command word is still syntactically valid there,
// and whether the cursor sits inside an AddConfig(...)/Cfg("...
// argument string.
func scan(text string) (stem string, acceptCommands bool, inConfigString bool) {
	state := stateNormal
	acceptCommands = true
	var cur strings.Builder

	flush := func(next byte) {
		word := cur.String()
		if word != "" {
			switch {
			case acceptCommands && strings.EqualFold(word, "ADDCONFIG"):
				state = stateSeenConfigCommand
			case strings.EqualFold(word, "CFG"):
				state = stateSeenConfigFunction
			default:
				state = stateNormal
			}
		}
		switch next {
		case ' ':
			// whitespace never changes state on its own
		case '(':
			if state == stateSeenConfigFunction || state == stateSeenConfigCommand {
				state = stateSeenConfigFunctionParen
			} else {
				state = stateNormal
			}
		case '"', '\'':
			if state == stateSeenConfigFunctionParen || state == stateSeenConfigCommand {
				state = stateSeenQuote
			} else {
				state = stateNormal
			}
		default:
			state = stateNormal
		}
		if next != ' ' || word != "" {
			acceptCommands = false
		}
		cur.Reset()
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if (cur.Len() == 0 && isWordStart(ch)) || (cur.Len() > 0 && isWordContinue(ch)) {
			cur.WriteByte(ch)
			continue
		}
		flush(ch)
	}
	stem = cur.String()
	return stem, acceptCommands, state == stateSeenQuote
}

// ConfigNames supplies host configuration option names for the
// AddConfig(...)/Cfg("... case; a CLI embedding this runtime backs it
// with its actual option registry.
type ConfigNames func() []string

// Complete builds the candidate list for a script line. text must already
// be truncated at the cursor position (callers slice the full line
// themselves); contexts is the Context stack active at that point
// (innermost first); w supplies globals and any registered host
// commands. cfg may be nil if the host has no configuration surface.
func Complete(text string, contexts []value.Context, w *world.World, cfg ConfigNames) *List {
	stem, acceptCommands, inConfigString := scan(text)
	out := NewList(stem)
	if stem == "" {
		return out
	}

	if inConfigString {
		if cfg != nil {
			for _, name := range cfg() {
				out.Add(name)
			}
		}
		return out
	}

	accept := func(name string, hint value.TypeHint) {
		isCommand := hint == value.TypeHintSubroutine
		if isCommand && !acceptCommands {
			return
		}
		out.Add(name)
	}
	for _, ctx := range contexts {
		ctx.EnumProperties(accept)
	}
	for _, name := range w.GlobalNames() {
		out.Add(name)
	}
	for _, name := range compiler.StatementKeywords() {
		out.Add(name)
	}
	for _, name := range w.SpecialCommands() {
		out.Add(name)
	}
	return out
}
