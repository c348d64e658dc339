package engine

// State is the externally visible engine state.
type State int

const (
	// StateUnauthenticated means no user is signed in.
	StateUnauthenticated State = iota
	// StateSubscribing means a user is signed in and the first snapshot
	// has not arrived yet.
	StateSubscribing
	// StateClean means local state matches what was last saved or received.
	StateClean
	// StateDirty means local edits are waiting for the debounce to fire.
	StateDirty
	// StateSaving means a save is in flight.
	StateSaving
	// StateBlocked means the subscription reported an error.
	StateBlocked
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateSubscribing:
		return "subscribing"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Status is the three-state save indicator shown to the user. Save
// failures degrade to StatusIdle; the error is available from LastError.
type Status int

const (
	// StatusIdle means auto-save is ready.
	StatusIdle Status = iota
	// StatusSaving means a save is in flight.
	StatusSaving
	// StatusSaved is shown briefly after a successful save.
	StatusSaved
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	default:
		return "unknown"
	}
}
