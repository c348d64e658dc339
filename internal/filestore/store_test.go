package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/seed"
)

// snapshotLog collects deliveries from watcher goroutines.
type snapshotLog struct {
	mu    sync.Mutex
	snaps []remote.Snapshot
}

func (l *snapshotLog) add(s remote.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, s)
}

func (l *snapshotLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.snaps)
}

func (l *snapshotLog) last() remote.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snaps[len(l.snaps)-1]
}

// waitFor polls until cond holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open() with empty dir should fail")
	}
}

func TestSubscribe_NewUser(t *testing.T) {
	s := openTestStore(t)
	var log snapshotLog

	unsubscribe, err := s.Subscribe(context.Background(), "alice", log.add)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer unsubscribe()

	if log.len() != 1 {
		t.Fatalf("deliveries = %d, want 1", log.len())
	}
	if snap := log.last(); snap.Doc != nil || snap.Err != nil {
		t.Errorf("initial snapshot = %+v, want empty", snap)
	}
}

func TestSave_EchoOnce(t *testing.T) {
	s := openTestStore(t)
	var log snapshotLog

	unsubscribe, err := s.Subscribe(context.Background(), "alice", log.add)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer unsubscribe()

	if err := s.Save(context.Background(), "alice", seed.Document().Full()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if log.len() != 2 {
		t.Fatalf("deliveries after Save = %d, want 2", log.len())
	}

	// The watcher sees our own write but must not deliver it again.
	time.Sleep(300 * time.Millisecond)
	if log.len() != 2 {
		t.Errorf("own write delivered twice: %d deliveries", log.len())
	}
}

func TestSave_KeepsUnknownFields(t *testing.T) {
	s := openTestStore(t)
	path := filepath.Join(s.Dir(), "alice.json")
	if err := os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	groups := seed.Groups()
	if err := s.Save(context.Background(), "alice", schema.PartialDocument{Groups: &groups}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	doc, err := remote.Fetch(context.Background(), s, "alice")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if doc.Get("theme").String() != "dark" {
		t.Error("unknown field dropped")
	}
	if doc.Get("groups.#").Int() != int64(len(groups)) {
		t.Error("groups not saved")
	}
}

func TestExternalWrite_Delivered(t *testing.T) {
	s := openTestStore(t)
	var log snapshotLog

	unsubscribe, err := s.Subscribe(context.Background(), "alice", log.add)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer unsubscribe()

	// Another device replaces the file.
	path := filepath.Join(s.Dir(), "alice.json")
	if err := os.WriteFile(path, []byte(`{"milestones":[{"id":"m","label":"M","time":"08:00"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return log.len() >= 2 }) {
		t.Fatal("external write was not delivered")
	}
	snap := log.last()
	if snap.Doc == nil || snap.Doc.Get("milestones.0.id").String() != "m" {
		t.Errorf("delivered snapshot = %+v", snap)
	}
}

func TestExternalWrite_OtherUserIgnored(t *testing.T) {
	s := openTestStore(t)
	var log snapshotLog

	unsubscribe, err := s.Subscribe(context.Background(), "alice", log.add)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer unsubscribe()

	if err := os.WriteFile(filepath.Join(s.Dir(), "bob.json"), []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if log.len() != 1 {
		t.Errorf("deliveries = %d, want 1", log.len())
	}
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	task := schema.Task{ID: "t1", Title: "Run", Category: "health"}

	for _, date := range []string{"2025-01-10", "2025-01-09"} {
		if err := s.PutRecord(ctx, "alice", schema.NewRecord(task, date, schema.RecordCompleted, now)); err != nil {
			t.Fatalf("PutRecord() failed: %v", err)
		}
	}

	recs, err := s.RecordsInRange(ctx, "alice", remote.MinDate, remote.MaxDate)
	if err != nil {
		t.Fatalf("RecordsInRange() failed: %v", err)
	}
	if len(recs) != 2 || recs[0].Date != "2025-01-09" {
		t.Errorf("RecordsInRange() = %+v", recs)
	}

	if err := s.DeleteRecord(ctx, "alice", schema.RecordID("2025-01-09", "t1")); err != nil {
		t.Fatalf("DeleteRecord() failed: %v", err)
	}
	count, err := s.CountRecords(ctx, "alice")
	if err != nil {
		t.Fatalf("CountRecords() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountRecords() = %d, want 1", count)
	}

	day, err := s.RecordsByDate(ctx, "alice", "2025-01-10")
	if err != nil || len(day) != 1 {
		t.Errorf("RecordsByDate() = %v, %v", day, err)
	}
}

func TestClose(t *testing.T) {
	s, err := Open(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if err := s.Save(context.Background(), "alice", schema.PartialDocument{}); err != remote.ErrClosed {
		t.Errorf("Save() after Close = %v, want ErrClosed", err)
	}
}

func TestUserFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"alice.json", "alice", true},
		{"a%40b.json", "a@b", true},
		{"alice.records.json", "", false},
		{"alice.json.tmp", "", false},
		{".hidden.json", "", false},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := userFromFilename(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("userFromFilename(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
