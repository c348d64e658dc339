// Package filestore keeps one JSON document per user in a directory and
// pushes changes made by other writers, such as a sync client updating a
// shared folder from another device, to subscribers via fsnotify.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/schema"
)

const (
	documentSuffix = ".json"
	recordsSuffix  = ".records.json"
)

var (
	_ remote.Store       = (*Store)(nil)
	_ remote.RecordStore = (*Store)(nil)
)

// Config holds configuration for the file store.
type Config struct {
	// Dir holds the document and record files. Created if missing.
	Dir string

	// Debounce is how long a document file must be quiet before an external
	// change is read and delivered. This batches rapid writes together.
	Debounce time.Duration

	// Logger for store activity.
	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		Logger:   zerolog.Nop(),
	}
}

type subscriber struct {
	fn     func(remote.Snapshot)
	active atomic.Bool
}

func (s *subscriber) deliver(snap remote.Snapshot) {
	if s.active.Load() {
		s.fn(snap)
	}
}

// Store is a directory-backed remote.Store and remote.RecordStore.
type Store struct {
	cfg     Config
	watcher *Watcher

	// writeMu serializes read-merge-write cycles.
	writeMu sync.Mutex

	mu       sync.Mutex
	subs     map[string]map[int]*subscriber
	nextSub  int
	known    map[string][]byte // last content written or delivered, per user
	debounce map[string]*time.Timer
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open creates the directory if needed and starts watching it.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig(cfg.Dir).Debounce
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	watcher, err := NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(cfg.Dir); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:      cfg,
		watcher:  watcher,
		subs:     make(map[string]map[int]*subscriber),
		known:    make(map[string][]byte),
		debounce: make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// Close stops watching and drops all subscriptions.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, timer := range s.debounce {
		timer.Stop()
	}
	for _, subs := range s.subs {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	s.subs = make(map[string]map[int]*subscriber)
	s.mu.Unlock()

	s.cancel()
	err := s.watcher.Stop()
	s.wg.Wait()
	return err
}

func (s *Store) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			if event.Op == OpDelete {
				continue
			}
			s.schedule(event.UserID)
		case err, ok := <-s.watcher.Errors():
			if !ok {
				return
			}
			s.cfg.Logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// schedule debounces reloads of one user's document.
func (s *Store) schedule(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.subs[userID]) == 0 {
		return
	}
	if timer, exists := s.debounce[userID]; exists {
		timer.Stop()
	}
	s.debounce[userID] = time.AfterFunc(s.cfg.Debounce, func() {
		s.reload(userID)
	})
}

// reload reads a document changed by another writer and delivers it unless
// it is the content this store last wrote or delivered.
func (s *Store) reload(userID string) {
	s.mu.Lock()
	delete(s.debounce, userID)
	s.mu.Unlock()

	data, err := os.ReadFile(s.documentPath(userID))
	if err != nil {
		if !os.IsNotExist(err) {
			s.cfg.Logger.Warn().Err(err).Str("user", userID).Msg("failed to read changed document")
		}
		return
	}
	doc, err := migrate.NewRawDocument(data)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Str("user", userID).Msg("ignoring unreadable document")
		return
	}

	s.mu.Lock()
	if bytes.Equal(s.known[userID], data) {
		s.mu.Unlock()
		return
	}
	s.known[userID] = data
	subs := s.subscribers(userID)
	s.mu.Unlock()

	s.cfg.Logger.Debug().Str("user", userID).Msg("external document change")
	for _, sub := range subs {
		sub.deliver(remote.Snapshot{Doc: doc})
	}
}

// Subscribe implements remote.Store.
func (s *Store) Subscribe(ctx context.Context, userID string, fn func(remote.Snapshot)) (func(), error) {
	path := s.documentPath(userID)

	sub := &subscriber{fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, remote.ErrClosed
	}
	id := s.nextSub
	s.nextSub++
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[int]*subscriber)
	}
	s.subs[userID][id] = sub
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[userID], id)
			s.mu.Unlock()
			sub.active.Store(false)
		})
	}

	doc, data, err := readDocument(path)
	switch {
	case err != nil:
		sub.deliver(remote.Snapshot{Err: err})
	default:
		if data != nil {
			s.mu.Lock()
			s.known[userID] = data
			s.mu.Unlock()
		}
		sub.deliver(remote.Snapshot{Doc: doc})
	}

	return unsubscribe, nil
}

// Save implements remote.Store.
func (s *Store) Save(ctx context.Context, userID string, partial schema.PartialDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return remote.ErrClosed
	}

	s.writeMu.Lock()
	path := s.documentPath(userID)
	current, _, err := readDocument(path)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Str("user", userID).Msg("replacing unreadable document")
		current = nil
	}
	next, err := current.Apply(partial)
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to merge document: %w", err)
	}
	data := next.Bytes()
	if err := writeAtomic(path, data); err != nil {
		s.writeMu.Unlock()
		return err
	}

	s.mu.Lock()
	s.known[userID] = data
	subs := s.subscribers(userID)
	s.mu.Unlock()
	s.writeMu.Unlock()

	for _, sub := range subs {
		sub.deliver(remote.Snapshot{Doc: next})
	}
	return nil
}

// subscribers returns the subscriptions of userID in registration order.
// Caller must hold s.mu.
func (s *Store) subscribers(userID string) []*subscriber {
	ids := make([]int, 0, len(s.subs[userID]))
	for id := range s.subs[userID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*subscriber, len(ids))
	for i, id := range ids {
		out[i] = s.subs[userID][id]
	}
	return out
}

// PutRecord implements remote.RecordStore.
func (s *Store) PutRecord(ctx context.Context, userID string, rec schema.DailyRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	return s.updateRecords(userID, func(recs map[string]schema.DailyRecord) {
		recs[rec.ID] = rec
	})
}

// DeleteRecord implements remote.RecordStore.
func (s *Store) DeleteRecord(ctx context.Context, userID, id string) error {
	return s.updateRecords(userID, func(recs map[string]schema.DailyRecord) {
		delete(recs, id)
	})
}

// RecordsByDate implements remote.RecordStore.
func (s *Store) RecordsByDate(ctx context.Context, userID, date string) ([]schema.DailyRecord, error) {
	return s.RecordsInRange(ctx, userID, date, date)
}

// RecordsInRange implements remote.RecordStore.
func (s *Store) RecordsInRange(ctx context.Context, userID, from, to string) ([]schema.DailyRecord, error) {
	recs, err := s.readRecords(userID)
	if err != nil {
		return nil, err
	}
	var out []schema.DailyRecord
	for _, rec := range recs {
		if rec.Date >= from && rec.Date <= to {
			out = append(out, rec)
		}
	}
	remote.SortRecords(out)
	return out, nil
}

// CountRecords implements remote.RecordStore.
func (s *Store) CountRecords(ctx context.Context, userID string) (int, error) {
	recs, err := s.readRecords(userID)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (s *Store) updateRecords(userID string, fn func(map[string]schema.DailyRecord)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	recs, err := s.readRecords(userID)
	if err != nil {
		return err
	}
	fn(recs)

	list := make([]schema.DailyRecord, 0, len(recs))
	for _, rec := range recs {
		list = append(list, rec)
	}
	remote.SortRecords(list)

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return writeAtomic(s.recordsPath(userID), data)
}

func (s *Store) readRecords(userID string) (map[string]schema.DailyRecord, error) {
	recs := make(map[string]schema.DailyRecord)
	// #nosec G304 - path built from the store directory
	data, err := os.ReadFile(s.recordsPath(userID))
	if os.IsNotExist(err) {
		return recs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var list []schema.DailyRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	for _, rec := range list {
		recs[rec.ID] = rec
	}
	return recs, nil
}

func (s *Store) documentPath(userID string) string {
	return filepath.Join(s.cfg.Dir, escapeUser(userID)+documentSuffix)
}

func (s *Store) recordsPath(userID string) string {
	return filepath.Join(s.cfg.Dir, escapeUser(userID)+recordsSuffix)
}

// readDocument returns the stored document and its bytes, or nils when the
// file does not exist.
func readDocument(path string) (*migrate.RawDocument, []byte, error) {
	// #nosec G304 - path built from the store directory
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := migrate.NewRawDocument(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse document %s: %w", path, err)
	}
	return doc, data, nil
}

// writeAtomic writes data via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func escapeUser(userID string) string {
	return url.PathEscape(userID)
}

func unescapeUser(name string) (string, bool) {
	id, err := url.PathUnescape(name)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}
