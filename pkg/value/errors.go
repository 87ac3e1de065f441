package value

import "errors"

// ErrNotAssignable is returned by Context.Set when the target property is
// read-only.
var ErrNotAssignable = errors.New("not assignable")

// ErrNotSerializable is returned by Store (and by Encode for Values whose
// Kind can never be persisted: file handles, Subroutines/Closures,
// Keymaps, and Contexts whose Store rejects). Encode writes every Hash
// with its keys and values; it has no save-context check for Hashes.
var ErrNotSerializable = errors.New("not serializable")
