package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/seed"
)

var t0 = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store *remote.MemoryStore, mod func(*Options)) (*Engine, *FakeClock) {
	t.Helper()
	clock := NewFakeClock(t0)
	opts := Options{Clock: clock, Logger: zerolog.Nop()}
	if mod != nil {
		mod(&opts)
	}
	e := New(store, store, opts)
	t.Cleanup(func() { _ = e.Close() })
	return e, clock
}

// seededStore returns a store holding a current-shape document for user.
func seededStore(user string) *remote.MemoryStore {
	store := remote.NewMemoryStore()
	store.Seed(user, migrate.RawFromDocument(seed.Document()))
	return store
}

func withTask(title string) []schema.Task {
	return append(seed.Tasks(), schema.Task{ID: "task-" + title, Title: title})
}

func storedTaskTitles(t *testing.T, store *remote.MemoryStore, user string) []string {
	t.Helper()
	raw := store.Document(user)
	require.NotNil(t, raw)
	var out []string
	for _, v := range raw.Get("tasks.#.title").Array() {
		out = append(out, v.String())
	}
	return out
}

type statusLog struct {
	mu  sync.Mutex
	got []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, s)
}

func (l *statusLog) all() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.got...)
}

func TestEngine_FirstTimeUserSavesSeedOnce(t *testing.T) {
	store := remote.NewMemoryStore()
	e, clock := newTestEngine(t, store, nil)

	require.NoError(t, e.SignIn(context.Background(), "u1"))

	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, StateClean, e.State())
	assert.Equal(t, StatusSaved, e.Status())
	assert.Equal(t, seed.Document(), e.Snapshot())

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, store.Saves(), "echo of the seed save must not trigger another save")
	assert.Equal(t, StatusIdle, e.Status())

	res := migrate.Normalize(store.Document("u1"))
	assert.Zero(t, res.Changed)
}

func TestEngine_NoWriteLoopUnderEcho(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, nil)

	require.NoError(t, e.SignIn(context.Background(), "u1"))
	assert.Equal(t, 0, store.Saves(), "a current document needs no write-back")

	require.NoError(t, e.SetTasks(withTask("write")))
	assert.Equal(t, StateDirty, e.State())

	clock.Advance(DefaultDebounceInterval)
	assert.Equal(t, 1, store.Saves())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, StateClean, e.State())
}

func TestEngine_DebounceCoalescesEdits(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	for i := 0; i < 5; i++ {
		require.NoError(t, e.SetTasks(withTask(fmt.Sprintf("edit-%d", i))))
		clock.Advance(500 * time.Millisecond)
		assert.Equal(t, 0, store.Saves(), "edit %d", i)
	}

	clock.Advance(DefaultDebounceInterval)
	assert.Equal(t, 1, store.Saves())
	assert.Contains(t, storedTaskTitles(t, store, "u1"), "edit-4")
	assert.NotContains(t, storedTaskTitles(t, store, "u1"), "edit-3")
}

func TestEngine_SignOutMidDebounceDoesNotSave(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	require.NoError(t, e.SetTasks(withTask("lost")))
	clock.Advance(time.Second)
	e.SignOut()
	clock.Advance(time.Minute)

	assert.Equal(t, 0, store.Saves())
	assert.Equal(t, StateUnauthenticated, e.State())
	assert.Equal(t, schema.Document{}, e.Snapshot())
	assert.Zero(t, clock.Pending())
	assert.ErrorIs(t, e.SetTasks(withTask("x")), ErrNotSignedIn)
}

func TestEngine_SaveFailureKeepsDirty(t *testing.T) {
	store := seededStore("u1")
	statuses := &statusLog{}
	e, clock := newTestEngine(t, store, func(o *Options) { o.OnStatus = statuses.record })
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	boom := errors.New("quota exceeded")
	attempts := 0
	store.SaveHook = func(string, schema.PartialDocument) error {
		attempts++
		return boom
	}

	require.NoError(t, e.SetTasks(withTask("fails")))
	clock.Advance(DefaultDebounceInterval)

	assert.Equal(t, StateDirty, e.State())
	assert.Equal(t, StatusIdle, e.Status())
	assert.ErrorIs(t, e.LastError(), boom)
	assert.Equal(t, []Status{StatusSaving, StatusIdle}, statuses.all())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, attempts, "no automatic retry")

	// The next edit retries with the full document.
	store.SaveHook = nil
	require.NoError(t, e.SetTasks(withTask("retried")))
	clock.Advance(DefaultDebounceInterval)
	assert.Equal(t, StateClean, e.State())
	assert.NoError(t, e.LastError())
	assert.Contains(t, storedTaskTitles(t, store, "u1"), "retried")
}

func TestEngine_StatusSequence(t *testing.T) {
	store := seededStore("u1")
	statuses := &statusLog{}
	e, clock := newTestEngine(t, store, func(o *Options) { o.OnStatus = statuses.record })
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	require.NoError(t, e.SetTasks(withTask("a")))
	clock.Advance(DefaultDebounceInterval)
	assert.Equal(t, []Status{StatusSaving, StatusSaved}, statuses.all())

	clock.Advance(DefaultSavedStatusDuration)
	assert.Equal(t, []Status{StatusSaving, StatusSaved, StatusIdle}, statuses.all())
}

func TestEngine_LegacyDocumentWrittenBackOnce(t *testing.T) {
	store := remote.NewMemoryStore()
	raw, err := migrate.NewRawDocument([]byte(`{
		"theme": "dark",
		"tasks": [{"id":"t1","title":"X","dueDate":"2025-01-10","priority":"HIGH","category":"work"}]
	}`))
	require.NoError(t, err)
	store.Seed("u1", raw)

	e, clock := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	assert.Equal(t, 1, store.Saves())
	clock.Advance(time.Minute)
	assert.Equal(t, 1, store.Saves())

	stored := store.Document("u1")
	assert.Equal(t, "dark", stored.Get("theme").String(), "unknown fields survive the write-back")
	assert.Zero(t, migrate.Normalize(stored).Changed)

	doc := e.Snapshot()
	require.NotEmpty(t, doc.Tasks)
	assert.Equal(t, "2025-01-10", doc.Tasks[0].StartDate)
	assert.Equal(t, "09:00", doc.Tasks[0].StartTime)
}

// deniedStore fails every subscription.
type deniedStore struct {
	err   error
	saves int
}

func (s *deniedStore) Subscribe(_ context.Context, _ string, fn func(remote.Snapshot)) (func(), error) {
	fn(remote.Snapshot{Err: s.err})
	return func() {}, nil
}

func (s *deniedStore) Save(context.Context, string, schema.PartialDocument) error {
	s.saves++
	return nil
}

func TestEngine_SubscriptionErrorBlocks(t *testing.T) {
	denied := errors.New("permission denied")
	store := &deniedStore{err: denied}
	e := New(store, nil, Options{Clock: NewFakeClock(t0), Logger: zerolog.Nop()})
	defer e.Close()

	require.NoError(t, e.SignIn(context.Background(), "u1"))

	assert.Equal(t, StateBlocked, e.State())
	assert.ErrorIs(t, e.LastError(), denied)
	assert.Zero(t, store.saves, "no seeding on error")
	assert.ErrorIs(t, e.SetTasks(seed.Tasks()), ErrNotReady)
}

func TestEngine_BlockedRecoversOnSnapshot(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))
	clock.Advance(time.Second)

	store.Fail("u1", errors.New("token expired"))
	assert.Equal(t, StateBlocked, e.State())

	milestones := []schema.Milestone{{ID: "m1", Label: "Lunch", Time: "12:00"}}
	require.NoError(t, store.Save(context.Background(), "u1", schema.PartialDocument{Milestones: &milestones}))

	assert.Equal(t, StateClean, e.State())
	assert.NoError(t, e.LastError())
	assert.Equal(t, milestones, e.Snapshot().Milestones)
}

func TestEngine_EditDuringGuardIsSavedAfterGuard(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, func(o *Options) {
		o.DebounceInterval = 10 * time.Millisecond
		o.GuardWindow = 100 * time.Millisecond
	})
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	require.NoError(t, e.SetTasks(withTask("early")))
	clock.Advance(50 * time.Millisecond)
	assert.Equal(t, 0, store.Saves(), "held back while the guard is open")
	assert.Equal(t, StateDirty, e.State())

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, store.Saves())
	assert.Contains(t, storedTaskTitles(t, store, "u1"), "early")
}

func TestEngine_RemoteChangeInstalledWhenClean(t *testing.T) {
	store := seededStore("u1")
	var remoteDocs []schema.Document
	e, clock := newTestEngine(t, store, func(o *Options) {
		o.OnRemoteChange = func(d schema.Document) { remoteDocs = append(remoteDocs, d) }
	})
	require.NoError(t, e.SignIn(context.Background(), "u1"))
	clock.Advance(time.Second)

	milestones := []schema.Milestone{{ID: "m1", Label: "Gym", Time: "18:00"}}
	require.NoError(t, store.Save(context.Background(), "u1", schema.PartialDocument{Milestones: &milestones}))

	assert.Equal(t, milestones, e.Snapshot().Milestones)
	assert.Len(t, remoteDocs, 2)
	assert.Equal(t, 1, store.Saves(), "a current remote change needs no write-back")
}

func TestEngine_DirtyStateWinsOverSnapshot(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))
	clock.Advance(time.Second)

	require.NoError(t, e.SetTasks(withTask("local")))

	remoteTasks := withTask("remote")
	require.NoError(t, store.Save(context.Background(), "u1", schema.PartialDocument{Tasks: &remoteTasks}))
	assert.Equal(t, StateDirty, e.State())

	clock.Advance(DefaultDebounceInterval)
	titles := storedTaskTitles(t, store, "u1")
	assert.Contains(t, titles, "local")
	assert.NotContains(t, titles, "remote")
}

func TestEngine_StaleSessionSaveDiscarded(t *testing.T) {
	store := seededStore("a")
	e, clock := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "a"))
	clock.Advance(time.Second)

	switched := false
	store.SaveHook = func(userID string, _ schema.PartialDocument) error {
		if userID == "a" && !switched {
			switched = true
			require.NoError(t, e.SignIn(context.Background(), "b"))
		}
		return nil
	}

	require.NoError(t, e.SetTasks(withTask("from-a")))
	clock.Advance(DefaultDebounceInterval)

	require.True(t, switched)
	assert.Equal(t, "b", e.UserID())
	assert.Equal(t, StateClean, e.State())
	assert.Equal(t, seed.Document(), e.Snapshot())
	assert.Contains(t, storedTaskTitles(t, store, "a"), "from-a")
	assert.NotContains(t, storedTaskTitles(t, store, "b"), "from-a")
}

func TestEngine_SignInSameUserIsNoop(t *testing.T) {
	store := seededStore("u1")
	e, _ := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))
	require.NoError(t, e.SetTasks(withTask("pending")))

	require.NoError(t, e.SignIn(context.Background(), "u1"))
	assert.Equal(t, StateDirty, e.State())

	assert.Error(t, e.SignIn(context.Background(), ""))
}

func TestEngine_Close(t *testing.T) {
	store := seededStore("u1")
	e, _ := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, StateUnauthenticated, e.State())
	assert.ErrorIs(t, e.SignIn(context.Background(), "u1"), ErrClosed)
}

func TestEngine_SetterValidation(t *testing.T) {
	store := seededStore("u1")
	e, _ := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	assert.Error(t, e.SetTasks([]schema.Task{{ID: "x"}}))
	assert.Error(t, e.SetTasks([]schema.Task{{ID: "x", Title: "a"}, {ID: "x", Title: "b"}}))
	assert.Error(t, e.SetGroups([]schema.TaskGroup{{Name: "no key"}}))
	assert.Error(t, e.SetTemplates(schema.ScheduleTemplates{Workday: []schema.TimeSlot{{StartTime: "09:00"}}}))
	assert.Equal(t, StateClean, e.State())

	require.NoError(t, e.SetMilestones([]schema.Milestone{{ID: "m", Label: "Tea", Time: "16:00"}}))
	assert.Equal(t, StateDirty, e.State())
}

func TestEngine_ImportBackup(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, nil)
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	milestones := []schema.Milestone{{ID: "m1", Label: "Wake", Time: "06:30"}}
	fields, err := e.ImportBackup(&migrate.Backup{Version: migrate.BackupVersion, Milestones: &milestones})
	require.NoError(t, err)
	assert.Equal(t, schema.FieldSet(0).With(schema.FieldMilestones), fields)

	clock.Advance(DefaultDebounceInterval)
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, "Wake", store.Document("u1").Get("milestones.0.label").String())

	_, err = e.ImportBackup(&migrate.Backup{Version: migrate.BackupVersion + 1})
	assert.ErrorIs(t, err, migrate.ErrUnsupportedBackup)
}

func TestEngine_ToggleCompletion(t *testing.T) {
	store := seededStore("u1")
	e, _ := newTestEngine(t, store, nil)
	ctx := context.Background()
	task := schema.Task{ID: "task-1", Title: "Run", Category: "health", StartTime: "07:00", EndTime: "07:30"}
	today := t0.Format(schema.DateLayout)

	_, err := e.ToggleCompletion(ctx, task, today, schema.RecordCompleted, ToggleOptions{})
	assert.ErrorIs(t, err, ErrNotSignedIn)

	require.NoError(t, e.SignIn(ctx, "u1"))

	rec, err := e.ToggleCompletion(ctx, task, today, schema.RecordCompleted, ToggleOptions{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, today+"-task-1", rec.ID)
	assert.Equal(t, "07:00", rec.ActualStartTime)

	done, err := e.CompletedOn(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, map[string]schema.RecordStatus{"task-1": schema.RecordCompleted}, done)

	// Same status again toggles off.
	rec, err = e.ToggleCompletion(ctx, task, today, schema.RecordCompleted, ToggleOptions{})
	require.NoError(t, err)
	assert.Nil(t, rec)
	n, err := store.CountRecords(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// A different status supersedes.
	_, err = e.ToggleCompletion(ctx, task, today, schema.RecordSkipped, ToggleOptions{})
	require.NoError(t, err)
	_, err = e.ToggleCompletion(ctx, task, today, schema.RecordCompleted, ToggleOptions{})
	require.NoError(t, err)
	done, err = e.CompletedOn(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, schema.RecordCompleted, done["task-1"])
	n, err = store.CountRecords(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.ToggleCompletion(ctx, task, "2025-03-02", schema.RecordCompleted, ToggleOptions{})
	assert.ErrorIs(t, err, ErrNotToday)

	// Document saves are untouched by records.
	assert.Equal(t, 0, store.Saves())
}

func TestEngine_NoRecordStore(t *testing.T) {
	e := New(seededStore("u1"), nil, Options{Clock: NewFakeClock(t0), Logger: zerolog.Nop()})
	defer e.Close()
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	_, err := e.CompletedOn(context.Background(), "2025-03-03")
	assert.ErrorIs(t, err, ErrNoRecordStore)
}

func TestFakeClock_OrderAndStop(t *testing.T) {
	clock := NewFakeClock(t0)
	var fired []string
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clock.AfterFunc(time.Second, func() {
		fired = append(fired, "a")
		clock.AfterFunc(500*time.Millisecond, func() { fired = append(fired, "a2") })
	})
	stopped := clock.AfterFunc(time.Second, func() { fired = append(fired, "never") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "a2", "b"}, fired)
	assert.Equal(t, t0.Add(3*time.Second), clock.Now())
	assert.Zero(t, clock.Pending())
}

func TestEngine_Flush(t *testing.T) {
	store := seededStore("u1")
	e, clock := newTestEngine(t, store, nil)
	assert.ErrorIs(t, e.Flush(), ErrNotSignedIn)
	require.NoError(t, e.SignIn(context.Background(), "u1"))

	require.NoError(t, e.Flush(), "nothing to flush")
	assert.Equal(t, 0, store.Saves())

	require.NoError(t, e.SetTasks(withTask("now")))
	require.NoError(t, e.Flush())
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, StateClean, e.State())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, store.Saves(), "debounce was cancelled by the flush")

	boom := errors.New("offline")
	store.SaveHook = func(string, schema.PartialDocument) error { return boom }
	require.NoError(t, e.SetTasks(withTask("later")))
	assert.ErrorIs(t, e.Flush(), boom)
	assert.Equal(t, StateDirty, e.State())
}

func TestEngine_WaitReady(t *testing.T) {
	ctx := context.Background()
	store := seededStore("u1")
	e, _ := newTestEngine(t, store, nil)
	assert.ErrorIs(t, e.WaitReady(ctx), ErrNotSignedIn)

	require.NoError(t, e.SignIn(ctx, "u1"))
	assert.NoError(t, e.WaitReady(ctx))

	denied := errors.New("permission denied")
	blocked := New(&deniedStore{err: denied}, nil, Options{Clock: NewFakeClock(t0), Logger: zerolog.Nop()})
	defer blocked.Close()
	require.NoError(t, blocked.SignIn(ctx, "u1"))
	assert.ErrorIs(t, blocked.WaitReady(ctx), denied)
}

// silentStore accepts subscriptions but never delivers.
type silentStore struct{}

func (silentStore) Subscribe(context.Context, string, func(remote.Snapshot)) (func(), error) {
	return func() {}, nil
}

func (silentStore) Save(context.Context, string, schema.PartialDocument) error { return nil }

func TestEngine_WaitReadyHonoursContext(t *testing.T) {
	e := New(silentStore{}, nil, Options{Clock: NewFakeClock(t0), Logger: zerolog.Nop()})
	defer e.Close()
	require.NoError(t, e.SignIn(context.Background(), "u1"))
	assert.Equal(t, StateSubscribing, e.State())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.WaitReady(ctx), context.DeadlineExceeded)

	// Signing out releases waiters.
	done := make(chan error, 1)
	go func() { done <- e.WaitReady(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	e.SignOut()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotSignedIn)
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return after SignOut")
	}
}

// asyncStore delivers snapshots on their own goroutines and holds every
// save until release is closed, like a networked store.
type asyncStore struct {
	*remote.MemoryStore
	release chan struct{}
}

func (s *asyncStore) Subscribe(ctx context.Context, userID string, fn func(remote.Snapshot)) (func(), error) {
	return s.MemoryStore.Subscribe(ctx, userID, func(snap remote.Snapshot) { go fn(snap) })
}

func (s *asyncStore) Save(ctx context.Context, userID string, partial schema.PartialDocument) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.MemoryStore.Save(ctx, userID, partial)
}

func TestEngine_FlushWaitsForInFlightSave(t *testing.T) {
	ctx := context.Background()
	store := &asyncStore{MemoryStore: remote.NewMemoryStore(), release: make(chan struct{})}
	e := New(store, store, Options{Clock: NewFakeClock(t0), Logger: zerolog.Nop()})
	defer e.Close()

	require.NoError(t, e.SignIn(ctx, "u1"))
	require.NoError(t, e.WaitReady(ctx))
	require.Equal(t, StateSaving, e.State(), "seed save still in flight")

	require.NoError(t, e.SetTasks(withTask("X")))

	flushed := make(chan error, 1)
	go func() { flushed <- e.Flush() }()
	close(store.release)

	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("flush did not return")
	}
	assert.Equal(t, StateClean, e.State())
	assert.Equal(t, 2, store.Saves(), "seed save, then the edit")
	assert.Contains(t, storedTaskTitles(t, store.MemoryStore, "u1"), "X")
}

func TestEngine_FlushReturnsWhenClosedDuringSave(t *testing.T) {
	ctx := context.Background()
	store := &asyncStore{MemoryStore: remote.NewMemoryStore(), release: make(chan struct{})}
	e := New(store, store, Options{Clock: NewFakeClock(t0), Logger: zerolog.Nop()})

	require.NoError(t, e.SignIn(ctx, "u1"))
	require.NoError(t, e.WaitReady(ctx))
	require.Equal(t, StateSaving, e.State())

	flushed := make(chan error, 1)
	go func() { flushed <- e.Flush() }()
	require.NoError(t, e.Close())

	select {
	case err := <-flushed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("flush did not return after close")
	}
}

func TestEngine_InvalidStoredTaskDoesNotBlockEdits(t *testing.T) {
	store := remote.NewMemoryStore()
	raw, err := migrate.NewRawDocument([]byte(`{"tasks":[{"id":"t1","title":"X","priority":"LOW","startDate":"2025-01-10"}]}`))
	require.NoError(t, err)
	store.Seed("u1", raw)
	e, _ := newTestEngine(t, store, nil)

	require.NoError(t, e.SignIn(context.Background(), "u1"))
	assert.Equal(t, 1, store.Saves(), "repair written back once")
	assert.Equal(t, "2025-01-10", store.Document("u1").Get(`tasks.#(id=="t1").endDate`).String())

	tasks := append(e.Snapshot().Tasks, schema.Task{ID: "task-new", Title: "New"})
	require.NoError(t, e.SetTasks(tasks))
	require.NoError(t, e.Flush())
	assert.Contains(t, storedTaskTitles(t, store, "u1"), "New")
}

func TestEngine_ToggleCompletionWithDetails(t *testing.T) {
	store := seededStore("u1")
	e, _ := newTestEngine(t, store, nil)
	ctx := context.Background()
	require.NoError(t, e.SignIn(ctx, "u1"))
	task := schema.Task{ID: "task-1", Title: "Run", Category: "health", StartTime: "07:00", EndTime: "07:30"}
	today := e.Today()

	_, err := e.ToggleCompletion(ctx, task, today, schema.RecordCompleted, ToggleOptions{})
	require.NoError(t, err)

	opts := ToggleOptions{
		ActualEndTime: "07:45",
		Notes:         "5k in the rain",
		Attachments:   []schema.Attachment{{Name: "route", URL: "https://example.com/route"}},
	}
	rec, err := e.ToggleCompletion(ctx, task, today, schema.RecordCompleted, opts)
	require.NoError(t, err)
	require.NotNil(t, rec, "details supersede instead of toggling off")
	assert.Equal(t, "07:00", rec.ActualStartTime)
	assert.Equal(t, "07:45", rec.ActualEndTime)

	recs, err := store.RecordsByDate(ctx, "u1", today)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "5k in the rain", recs[0].Notes)
	assert.Equal(t, opts.Attachments, recs[0].Attachments)

	_, err = e.ToggleCompletion(ctx, task, today, schema.RecordCompleted, ToggleOptions{ActualStartTime: "7am"})
	assert.Error(t, err)
}
