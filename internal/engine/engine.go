package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mschirtzinger/dayline/internal/logging"
	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/seed"
)

var (
	// ErrNotSignedIn is returned by operations that need a signed-in user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrNotReady is returned by edits made before the first snapshot was
	// installed, or while the subscription is failing.
	ErrNotReady = errors.New("document not loaded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
)

// Default timings.
const (
	DefaultDebounceInterval    = 1500 * time.Millisecond
	DefaultGuardWindow         = 100 * time.Millisecond
	DefaultSavedStatusDuration = 2 * time.Second
	DefaultSaveTimeout         = 30 * time.Second
)

// Options configures an Engine.
type Options struct {
	// DebounceInterval is the quiet period after the last local edit before
	// the document is saved.
	DebounceInterval time.Duration
	// GuardWindow is how long incoming snapshots are ignored after remote
	// state is installed or a save succeeds.
	GuardWindow time.Duration
	// SavedStatusDuration is how long StatusSaved is shown.
	SavedStatusDuration time.Duration
	// SaveTimeout bounds each Store.Save call.
	SaveTimeout time.Duration

	Clock  Clock
	Logger zerolog.Logger

	// OnStatus is called after every status change, outside the engine lock.
	OnStatus func(Status)
	// OnRemoteChange is called with a copy of the document each time remote
	// state is installed, outside the engine lock.
	OnRemoteChange func(schema.Document)
}

// DefaultOptions returns options with the default timings, the real clock
// and the process logger.
func DefaultOptions() Options {
	return Options{
		DebounceInterval:    DefaultDebounceInterval,
		GuardWindow:         DefaultGuardWindow,
		SavedStatusDuration: DefaultSavedStatusDuration,
		SaveTimeout:         DefaultSaveTimeout,
		Clock:               RealClock{},
		Logger:              logging.Component("engine"),
	}
}

// Engine keeps one user's document in memory and in sync with a remote
// store. All methods are safe for concurrent use.
type Engine struct {
	store   remote.Store
	records remote.RecordStore
	opts    Options
	clock   Clock
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	m           machine
	userID      string
	session     uint64
	doc         schema.Document
	unsubscribe func()
	debounce    timerSlot
	guard       timerSlot
	statusTimer timerSlot
	lastErr     error
	closed      bool

	// loaded is closed once the session's first snapshot was handled.
	loaded     chan struct{}
	loadedDone bool

	// saveDone is closed when the machine leaves phaseSaving.
	saveDone chan struct{}
}

// timerSlot holds one cancellable timer. seq changes on every start and
// stop so a callback that raced with Stop can be recognized as stale.
type timerSlot struct {
	t   Timer
	seq uint64
}

func (s *timerSlot) stop() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.seq++
}

// input is an event plus the data the engine needs to run its effects.
type input struct {
	ev      event
	session uint64
	seq     uint64 // timer events

	doc     schema.Document // evSnapshot with snapshotDoc
	changed schema.FieldSet
	steps   []string
	err     error // evSnapshot with snapshotErr, evSaveFailed

	ctx    context.Context // evSignIn
	subErr *error          // evSignIn
}

// New returns a signed-out engine. records may be nil, in which case the
// record operations fail.
func New(store remote.Store, records remote.RecordStore, opts Options) *Engine {
	if opts.DebounceInterval <= 0 {
		opts.DebounceInterval = DefaultDebounceInterval
	}
	if opts.GuardWindow <= 0 {
		opts.GuardWindow = DefaultGuardWindow
	}
	if opts.SavedStatusDuration <= 0 {
		opts.SavedStatusDuration = DefaultSavedStatusDuration
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:   store,
		records: records,
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SignIn subscribes to userID's document. Signing in as another user
// signs the current one out first; signing in again as the same user is a
// no-op. ctx bounds establishing the subscription only.
func (e *Engine) SignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	var actions []func()
	if e.m.phase != phaseUnauthenticated {
		if e.userID == userID {
			e.mu.Unlock()
			return nil
		}
		actions = e.handleLocked(input{ev: event{kind: evSignOut}, session: e.session})
	}
	e.userID = userID
	var subErr error
	actions = append(actions, e.handleLocked(input{
		ev:      event{kind: evSignIn},
		session: e.session,
		ctx:     ctx,
		subErr:  &subErr,
	})...)
	e.mu.Unlock()

	run(actions)
	if subErr != nil {
		return fmt.Errorf("failed to subscribe: %w", subErr)
	}
	return nil
}

// SignOut cancels pending work, unsubscribes and drops local state. A save
// already in flight is not cancelled but its result is discarded.
func (e *Engine) SignOut() {
	e.mu.Lock()
	actions := e.handleLocked(input{ev: event{kind: evSignOut}, session: e.session})
	e.mu.Unlock()
	run(actions)
}

// Close signs out and releases the engine. In-flight saves are cancelled.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	actions := e.handleLocked(input{ev: event{kind: evSignOut}, session: e.session})
	e.mu.Unlock()
	run(actions)
	e.cancel()
	return nil
}

// UserID returns the signed-in user, or "".
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.State()
}

// Status returns the save indicator.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.status
}

// LastError returns the error of the last failed save or subscription, or
// nil once a later save or snapshot succeeded.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Snapshot returns a copy of the local document.
func (e *Engine) Snapshot() schema.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// SetTasks replaces the task list.
func (e *Engine) SetTasks(tasks []schema.Task) error {
	tasks = append([]schema.Task(nil), tasks...)
	seen := make(map[string]bool, len(tasks))
	for i := range tasks {
		tasks[i].SetDefaults()
		if err := tasks[i].Validate(); err != nil {
			return fmt.Errorf("invalid task %q: %w", tasks[i].ID, err)
		}
		if seen[tasks[i].ID] {
			return fmt.Errorf("duplicate task id %q", tasks[i].ID)
		}
		seen[tasks[i].ID] = true
	}
	return e.edit(func(d *schema.Document) { d.Tasks = tasks })
}

// SetGroups replaces the group list.
func (e *Engine) SetGroups(groups []schema.TaskGroup) error {
	if err := schema.ValidateGroups(groups); err != nil {
		return err
	}
	groups = append([]schema.TaskGroup(nil), groups...)
	return e.edit(func(d *schema.Document) { d.Groups = groups })
}

// SetMilestones replaces the milestone list.
func (e *Engine) SetMilestones(milestones []schema.Milestone) error {
	for i := range milestones {
		if err := milestones[i].Validate(); err != nil {
			return fmt.Errorf("invalid milestone %q: %w", milestones[i].ID, err)
		}
	}
	milestones = append([]schema.Milestone(nil), milestones...)
	return e.edit(func(d *schema.Document) { d.Milestones = milestones })
}

// SetTemplates replaces the schedule templates. Every slot must be valid;
// the templates need not tile the day.
func (e *Engine) SetTemplates(st schema.ScheduleTemplates) error {
	for _, a := range schema.Archetypes {
		for i, slot := range st.Get(a) {
			if !slot.Valid() {
				return fmt.Errorf("invalid %s slot %d", a, i)
			}
		}
	}
	st = st.Clone()
	return e.edit(func(d *schema.Document) { d.ScheduleTemplates = st })
}

// ImportBackup applies the fields carried by b to the local document and
// schedules a save. It returns the fields that were replaced.
func (e *Engine) ImportBackup(b *migrate.Backup) (schema.FieldSet, error) {
	partial, err := migrate.ImportBackup(b)
	if err != nil {
		return 0, err
	}
	if partial.IsEmpty() {
		return 0, nil
	}
	if err := e.edit(partial.ApplyTo); err != nil {
		return 0, err
	}
	return partial.Fields(), nil
}

// Flush saves pending local edits now instead of waiting for the debounce.
// A save already in flight is waited for first, and edits made while it ran
// are saved after it. It returns the save error when the edits could not be
// saved.
func (e *Engine) Flush() error {
	for {
		e.mu.Lock()
		switch e.m.phase {
		case phaseUnauthenticated:
			e.mu.Unlock()
			return ErrNotSignedIn
		case phaseSaving:
			done := e.saveDoneLocked()
			e.mu.Unlock()
			select {
			case <-done:
				continue
			case <-e.ctx.Done():
				return ErrClosed
			}
		}
		actions := e.handleLocked(input{ev: event{kind: evFlush}, session: e.session})
		e.mu.Unlock()
		if len(actions) == 0 {
			return nil
		}
		run(actions)

		e.mu.Lock()
		err := e.lastErr
		failed := e.m.phase == phaseReady && e.m.dirty && err != nil
		e.mu.Unlock()
		if failed {
			return err
		}
	}
}

// saveDoneLocked returns a channel closed when the in-flight save settles.
// Caller must hold e.mu.
func (e *Engine) saveDoneLocked() <-chan struct{} {
	if e.saveDone == nil {
		e.saveDone = make(chan struct{})
	}
	return e.saveDone
}

// edit applies fn to the local document and records a local change.
func (e *Engine) edit(fn func(*schema.Document)) error {
	e.mu.Lock()
	switch e.m.phase {
	case phaseUnauthenticated:
		e.mu.Unlock()
		return ErrNotSignedIn
	case phaseSubscribing, phaseBlocked:
		e.mu.Unlock()
		return ErrNotReady
	}
	fn(&e.doc)
	actions := e.handleLocked(input{ev: event{kind: evLocalChange}, session: e.session})
	e.mu.Unlock()
	run(actions)
	return nil
}

func run(actions []func()) {
	for _, a := range actions {
		a()
	}
}

// dispatch feeds an asynchronous event into the machine.
func (e *Engine) dispatch(in input) {
	e.mu.Lock()
	actions := e.handleLocked(in)
	e.mu.Unlock()
	run(actions)
}

// handleLocked steps the machine and performs the effects that only touch
// engine state. Effects that call out (store, hooks) are returned as
// actions for the caller to run after releasing e.mu. Caller must hold e.mu.
func (e *Engine) handleLocked(in input) []func() {
	if in.session != e.session || !e.timerCurrent(in) {
		return nil
	}

	prev := e.m.phase
	next, effects := step(e.m, in.ev)
	e.m = next
	if prev == phaseSubscribing && next.phase != phaseSubscribing {
		e.markLoaded()
	}
	if prev == phaseSaving && next.phase != phaseSaving && e.saveDone != nil {
		close(e.saveDone)
		e.saveDone = nil
	}

	var actions []func()
	for _, eff := range effects {
		switch eff.kind {
		case effInstallSeed:
			e.doc = seed.Document()
			e.logger.Info().Str("user", e.userID).Msg("no document found, installing defaults")
		case effInstallSnapshot:
			e.doc = in.doc
			if len(in.steps) > 0 {
				e.logger.Info().Str("user", e.userID).Strs("steps", in.steps).Msg("migrated stored document")
			}
			if hook := e.opts.OnRemoteChange; hook != nil {
				doc := in.doc.Clone()
				actions = append(actions, func() { hook(doc) })
			}
		case effStartDebounce:
			e.startTimer(&e.debounce, e.opts.DebounceInterval, evDebounceFired)
		case effCancelDebounce:
			e.debounce.stop()
		case effStartGuard:
			e.startTimer(&e.guard, e.opts.GuardWindow, evGuardExpired)
		case effCancelGuard:
			e.guard.stop()
		case effStartStatusTimer:
			e.startTimer(&e.statusTimer, e.opts.SavedStatusDuration, evStatusExpired)
		case effCancelStatusTimer:
			e.statusTimer.stop()
		case effSaveFull:
			actions = append(actions, e.saveAction(e.doc.Clone().Full()))
		case effSaveCorrective:
			e.logger.Debug().Str("user", e.userID).Stringer("fields", in.changed).Msg("writing back migrated fields")
			actions = append(actions, e.saveAction(e.doc.Clone().Only(in.changed)))
		case effSetStatus:
			if hook := e.opts.OnStatus; hook != nil {
				s := eff.status
				actions = append(actions, func() { hook(s) })
			}
		case effSubscribe:
			e.loaded = make(chan struct{})
			e.loadedDone = false
			actions = append(actions, e.subscribeAction(in.ctx, in.subErr))
		case effUnsubscribe:
			if unsub := e.unsubscribe; unsub != nil {
				e.unsubscribe = nil
				actions = append(actions, unsub)
			}
		case effDropState:
			e.doc = schema.Document{}
			e.userID = ""
			e.session++
			e.markLoaded()
		case effRecordError:
			e.lastErr = in.err
			e.logger.Error().Err(in.err).Str("user", e.userID).Msg("sync failed")
		case effClearError:
			e.lastErr = nil
		}
	}
	return actions
}

func (e *Engine) markLoaded() {
	if e.loaded != nil && !e.loadedDone {
		close(e.loaded)
		e.loadedDone = true
	}
}

// WaitReady blocks until the first snapshot of the current session has been
// handled. It returns the subscription error when the engine is Blocked.
func (e *Engine) WaitReady(ctx context.Context) error {
	e.mu.Lock()
	if e.m.phase == phaseUnauthenticated {
		e.mu.Unlock()
		return ErrNotSignedIn
	}
	loaded := e.loaded
	e.mu.Unlock()

	select {
	case <-loaded:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.m.phase {
	case phaseUnauthenticated:
		return ErrNotSignedIn
	case phaseBlocked:
		if e.lastErr != nil {
			return e.lastErr
		}
		return ErrNotReady
	}
	return nil
}

// timerCurrent reports whether a timer event belongs to the timer that is
// currently armed. Non-timer events are always current.
func (e *Engine) timerCurrent(in input) bool {
	var slot *timerSlot
	switch in.ev.kind {
	case evDebounceFired:
		slot = &e.debounce
	case evGuardExpired:
		slot = &e.guard
	case evStatusExpired:
		slot = &e.statusTimer
	default:
		return true
	}
	if slot.t == nil || slot.seq != in.seq {
		return false
	}
	slot.t = nil
	return true
}

// startTimer arms slot. Caller must hold e.mu.
func (e *Engine) startTimer(slot *timerSlot, d time.Duration, kind eventKind) {
	slot.stop()
	session, seq := e.session, slot.seq
	slot.t = e.clock.AfterFunc(d, func() {
		e.dispatch(input{ev: event{kind: kind}, session: session, seq: seq})
	})
}

// saveAction returns an action that saves partial and feeds the outcome
// back. Caller must hold e.mu.
func (e *Engine) saveAction(partial schema.PartialDocument) func() {
	session, userID := e.session, e.userID
	return func() {
		ctx, cancel := context.WithTimeout(e.ctx, e.opts.SaveTimeout)
		defer cancel()

		start := e.clock.Now()
		err := e.store.Save(ctx, userID, partial)
		if err != nil {
			e.dispatch(input{
				ev:      event{kind: evSaveFailed},
				session: session,
				err:     fmt.Errorf("failed to save %s: %w", partial.Fields(), err),
			})
			return
		}
		e.logger.Debug().
			Str("user", userID).
			Stringer("fields", partial.Fields()).
			Dur("took", e.clock.Now().Sub(start)).
			Msg("saved")
		e.dispatch(input{ev: event{kind: evSaveSucceeded}, session: session})
	}
}

// subscribeAction returns an action that opens the subscription for the
// current session. Caller must hold e.mu.
func (e *Engine) subscribeAction(ctx context.Context, errOut *error) func() {
	session, userID := e.session, e.userID
	if ctx == nil {
		ctx = e.ctx
	}
	return func() {
		unsub, err := e.store.Subscribe(ctx, userID, func(s remote.Snapshot) {
			e.onSnapshot(session, s)
		})
		if err != nil {
			if errOut != nil {
				*errOut = err
			}
			e.dispatch(input{
				ev:      event{kind: evSnapshot, snap: snapshotErr},
				session: session,
				err:     fmt.Errorf("failed to subscribe: %w", err),
			})
			return
		}

		e.mu.Lock()
		stale := e.session != session
		if !stale {
			e.unsubscribe = unsub
		}
		e.mu.Unlock()
		if stale {
			unsub()
		}
	}
}

// onSnapshot classifies and normalizes a delivery before handing it to the
// machine. Normalization runs outside the lock.
func (e *Engine) onSnapshot(session uint64, s remote.Snapshot) {
	in := input{ev: event{kind: evSnapshot}, session: session}
	switch {
	case s.Err != nil:
		in.ev.snap = snapshotErr
		in.err = fmt.Errorf("subscription failed: %w", s.Err)
	case s.Doc == nil:
		in.ev.snap = snapshotEmpty
	default:
		res := migrate.Normalize(s.Doc)
		in.ev.snap = snapshotDoc
		in.ev.changed = res.Changed != 0
		in.doc = res.Doc
		in.changed = res.Changed
		in.steps = res.Steps
	}
	e.dispatch(in)
}
