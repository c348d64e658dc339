package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/schema"
)

// MemoryStore is an in-process Backend. Save delivers the echo to every
// subscriber on the saving goroutine before it returns, which makes it the
// strictest store to run the engine against. Subscribers may call Save from
// inside a delivery.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]*migrate.RawDocument
	records map[string]map[string]schema.DailyRecord
	subs    map[string]map[int]*subscription
	nextSub int
	closed  bool

	// SaveHook, when set, runs at the start of every Save. A non-nil error
	// fails the save without writing. Tests use it to inject failures.
	SaveHook func(userID string, partial schema.PartialDocument) error

	saves int
}

type subscription struct {
	fn     func(Snapshot)
	active atomic.Bool
}

func (s *subscription) deliver(snap Snapshot) {
	if s.active.Load() {
		s.fn(snap)
	}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]*migrate.RawDocument),
		records: make(map[string]map[string]schema.DailyRecord),
		subs:    make(map[string]map[int]*subscription),
	}
}

// Seed stores doc for userID without notifying subscribers.
func (m *MemoryStore) Seed(userID string, doc *migrate.RawDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[userID] = doc
}

// Document returns the stored document, or nil.
func (m *MemoryStore) Document(userID string) *migrate.RawDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[userID]
}

// Saves returns how many saves succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Subscribe implements Store.
func (m *MemoryStore) Subscribe(ctx context.Context, userID string, fn func(Snapshot)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &subscription{fn: fn}
	sub.active.Store(true)
	id := m.nextSub
	m.nextSub++
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[int]*subscription)
	}
	m.subs[userID][id] = sub
	current := m.docs[userID]
	m.mu.Unlock()

	sub.deliver(Snapshot{Doc: current})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[userID], id)
			m.mu.Unlock()
			sub.active.Store(false)
		})
	}, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, userID string, partial schema.PartialDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.SaveHook != nil {
		if err := m.SaveHook(userID, partial); err != nil {
			return err
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	next, err := m.docs[userID].Apply(partial)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to merge document: %w", err)
	}
	m.docs[userID] = next
	m.saves++
	subs := m.subscribers(userID)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(Snapshot{Doc: next})
	}
	return nil
}

// Fail delivers err to every subscriber of userID.
func (m *MemoryStore) Fail(userID string, err error) {
	m.mu.Lock()
	subs := m.subscribers(userID)
	m.mu.Unlock()
	for _, sub := range subs {
		sub.deliver(Snapshot{Err: err})
	}
}

// subscribers returns the subscriptions of userID in registration order.
// Caller must hold m.mu.
func (m *MemoryStore) subscribers(userID string) []*subscription {
	ids := make([]int, 0, len(m.subs[userID]))
	for id := range m.subs[userID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*subscription, len(ids))
	for i, id := range ids {
		out[i] = m.subs[userID][id]
	}
	return out
}

// Close drops all subscriptions. Later calls return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, subs := range m.subs {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	m.subs = make(map[string]map[int]*subscription)
	return nil
}

// PutRecord implements RecordStore.
func (m *MemoryStore) PutRecord(ctx context.Context, userID string, rec schema.DailyRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.records[userID] == nil {
		m.records[userID] = make(map[string]schema.DailyRecord)
	}
	m.records[userID][rec.ID] = rec
	return nil
}

// DeleteRecord implements RecordStore.
func (m *MemoryStore) DeleteRecord(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.records[userID], id)
	return nil
}

// RecordsByDate implements RecordStore.
func (m *MemoryStore) RecordsByDate(ctx context.Context, userID, date string) ([]schema.DailyRecord, error) {
	return m.RecordsInRange(ctx, userID, date, date)
}

// RecordsInRange implements RecordStore.
func (m *MemoryStore) RecordsInRange(ctx context.Context, userID, from, to string) ([]schema.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []schema.DailyRecord
	for _, rec := range m.records[userID] {
		if rec.Date >= from && rec.Date <= to {
			out = append(out, rec)
		}
	}
	SortRecords(out)
	return out, nil
}

// CountRecords implements RecordStore.
func (m *MemoryStore) CountRecords(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.records[userID]), nil
}

// SortRecords orders records by date then task id.
func SortRecords(recs []schema.DailyRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date < recs[j].Date
		}
		return recs[i].TaskID < recs[j].TaskID
	})
}
