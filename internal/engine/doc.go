// Package engine keeps a signed-in user's schedule document in memory and
// in sync with a remote store.
//
// Local edits mark the document dirty and are saved as a whole after a
// debounce interval. Every save comes back from the store as a snapshot
// (the echo); snapshots are ignored while a save is in flight and for a
// short guard window afterwards, and never overwrite unsaved local edits.
// The first snapshot of a session is migrated to the current shape and any
// repaired fields are written back once; a user without a document gets the
// default seed, saved once.
//
// The transitions live in a pure function over explicit events so they can
// be tested without timers; the Engine runs the resulting effects against
// the store and a Clock.
package engine
