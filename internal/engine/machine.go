package engine

// phase is the coarse position of the machine. Ready is split into Clean
// and Dirty by machine.dirty.
type phase int

const (
	phaseUnauthenticated phase = iota
	phaseSubscribing
	phaseReady
	phaseSaving
	phaseBlocked
)

// machine is the complete sync state, without the document itself.
type machine struct {
	phase phase

	// dirty marks local edits not captured by any save. During phaseSaving
	// it marks edits made after the in-flight save was issued.
	dirty bool

	// guard suppresses incoming snapshots and holds back saves. It opens
	// when remote state is installed or a save is issued, and closes a
	// guard window after the install or the save's success.
	guard bool

	// debouncing mirrors whether a debounce timer is pending.
	debouncing bool

	status Status
}

// State maps the machine to its public state.
func (m machine) State() State {
	switch m.phase {
	case phaseSubscribing:
		return StateSubscribing
	case phaseReady:
		if m.dirty {
			return StateDirty
		}
		return StateClean
	case phaseSaving:
		return StateSaving
	case phaseBlocked:
		return StateBlocked
	default:
		return StateUnauthenticated
	}
}

type eventKind int

const (
	evSignIn eventKind = iota
	evSignOut
	evSnapshot
	evLocalChange
	evDebounceFired
	evSaveSucceeded
	evSaveFailed
	evGuardExpired
	evStatusExpired
	evFlush
)

// snapshotKind classifies a subscription delivery.
type snapshotKind int

const (
	snapshotEmpty snapshotKind = iota // brand-new user
	snapshotDoc
	snapshotErr
)

// event is one input to step. Only the fields its kind needs are set.
type event struct {
	kind eventKind

	// evSnapshot
	snap    snapshotKind
	changed bool // normalization changed something that must be written back
}

type effectKind int

const (
	effInstallSeed effectKind = iota
	effInstallSnapshot
	effStartDebounce
	effCancelDebounce
	effStartGuard
	effCancelGuard
	effSaveFull
	effSaveCorrective
	effSetStatus
	effStartStatusTimer
	effCancelStatusTimer
	effSubscribe
	effUnsubscribe
	effDropState
	effRecordError
	effClearError
)

type effect struct {
	kind   effectKind
	status Status // effSetStatus
}

func setStatus(s Status) effect { return effect{kind: effSetStatus, status: s} }

// step is the transition table. It is pure: given the current machine and
// an event it returns the next machine and the effects to run, in order.
func step(m machine, ev event) (machine, []effect) {
	if ev.kind == evSignOut {
		return machine{}, []effect{
			{kind: effCancelDebounce},
			{kind: effCancelGuard},
			{kind: effCancelStatusTimer},
			{kind: effUnsubscribe},
			{kind: effDropState},
			setStatus(StatusIdle),
		}
	}
	if m.phase == phaseUnauthenticated && ev.kind != evSignIn {
		return m, nil
	}

	switch ev.kind {
	case evSignIn:
		if m.phase != phaseUnauthenticated {
			return m, nil
		}
		m.phase = phaseSubscribing
		return m, []effect{{kind: effSubscribe}}

	case evSnapshot:
		return onSnapshot(m, ev)

	case evLocalChange:
		if m.phase != phaseReady && m.phase != phaseSaving {
			return m, nil
		}
		m.dirty = true
		m.debouncing = true
		return m, []effect{{kind: effCancelDebounce}, {kind: effStartDebounce}}

	case evDebounceFired:
		m.debouncing = false
		if !m.dirty || (m.phase != phaseReady && m.phase != phaseSaving) {
			return m, nil
		}
		if m.phase == phaseSaving || m.guard {
			m.debouncing = true
			return m, []effect{{kind: effStartDebounce}}
		}
		m.phase = phaseSaving
		m.dirty = false
		m.guard = true
		m.status = StatusSaving
		return m, []effect{
			{kind: effCancelGuard},
			{kind: effCancelStatusTimer},
			setStatus(StatusSaving),
			{kind: effSaveFull},
		}

	case evFlush:
		if m.phase != phaseReady || !m.dirty {
			return m, nil
		}
		m.phase = phaseSaving
		m.dirty = false
		m.guard = true
		m.debouncing = false
		m.status = StatusSaving
		return m, []effect{
			{kind: effCancelDebounce},
			{kind: effCancelGuard},
			{kind: effCancelStatusTimer},
			setStatus(StatusSaving),
			{kind: effSaveFull},
		}

	case evSaveSucceeded:
		if m.phase != phaseSaving {
			return m, nil
		}
		m.phase = phaseReady
		m.status = StatusSaved
		return m, []effect{
			{kind: effStartGuard},
			{kind: effClearError},
			setStatus(StatusSaved),
			{kind: effStartStatusTimer},
		}

	case evSaveFailed:
		if m.phase != phaseSaving {
			return m, nil
		}
		m.phase = phaseReady
		m.dirty = true
		m.guard = false
		m.status = StatusIdle
		return m, []effect{
			{kind: effCancelGuard},
			{kind: effRecordError},
			setStatus(StatusIdle),
		}

	case evGuardExpired:
		if m.phase == phaseSaving {
			return m, nil
		}
		m.guard = false
		return m, nil

	case evStatusExpired:
		if m.status != StatusSaved {
			return m, nil
		}
		m.status = StatusIdle
		return m, []effect{setStatus(StatusIdle)}
	}

	return m, nil
}

func onSnapshot(m machine, ev event) (machine, []effect) {
	if ev.snap == snapshotErr {
		m.phase = phaseBlocked
		m.dirty = false
		m.guard = false
		m.debouncing = false
		m.status = StatusIdle
		return m, []effect{
			{kind: effCancelDebounce},
			{kind: effCancelGuard},
			{kind: effCancelStatusTimer},
			{kind: effRecordError},
			setStatus(StatusIdle),
		}
	}

	first := m.phase == phaseSubscribing || m.phase == phaseBlocked
	if !first {
		// Echoes of our own saves land while the guard is open or a save is
		// in flight; pending local edits win over remote content.
		if m.phase != phaseReady || m.guard || m.dirty {
			return m, nil
		}
	}

	m.guard = true
	effects := []effect{{kind: effClearError}}
	if m.debouncing {
		m.debouncing = false
		effects = append(effects, effect{kind: effCancelDebounce})
	}

	if ev.snap == snapshotEmpty {
		m.phase = phaseSaving
		m.dirty = false
		m.status = StatusSaving
		return m, append(effects,
			effect{kind: effInstallSeed},
			effect{kind: effCancelStatusTimer},
			setStatus(StatusSaving),
			effect{kind: effSaveFull},
		)
	}

	effects = append(effects, effect{kind: effInstallSnapshot})
	if !ev.changed {
		m.phase = phaseReady
		m.dirty = false
		return m, append(effects, effect{kind: effStartGuard})
	}
	m.phase = phaseSaving
	m.dirty = false
	m.status = StatusSaving
	return m, append(effects,
		effect{kind: effCancelStatusTimer},
		setStatus(StatusSaving),
		effect{kind: effSaveCorrective},
	)
}
