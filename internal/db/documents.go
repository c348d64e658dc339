package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/schema"
)

var (
	_ remote.Store       = (*DB)(nil)
	_ remote.RecordStore = (*DB)(nil)
)

type subscriber struct {
	fn     func(remote.Snapshot)
	active atomic.Bool
}

func (s *subscriber) deliver(snap remote.Snapshot) {
	if s.active.Load() {
		s.fn(snap)
	}
}

// GetDocument returns the stored document of userID, or nil if the user
// has none.
func (db *DB) GetDocument(ctx context.Context, userID string) (*migrate.RawDocument, error) {
	var data string
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document for %s: %w", userID, err)
	}

	doc, err := migrate.NewRawDocument([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("corrupt document for %s: %w", userID, err)
	}
	return doc, nil
}

// PutDocument replaces the stored document of userID without notifying
// subscribers. It is meant for seeding and restores.
func (db *DB) PutDocument(ctx context.Context, userID string, doc *migrate.RawDocument) error {
	return db.putDocument(ctx, db.conn, userID, doc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) putDocument(ctx context.Context, ex execer, userID string, doc *migrate.RawDocument) error {
	query := `
	INSERT INTO documents (user_id, data, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at
	`
	_, err := ex.ExecContext(ctx, query,
		userID,
		string(doc.Bytes()),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document for %s: %w", userID, err)
	}
	return nil
}

// Save implements remote.Store. The merge runs in a transaction; the merged
// document is pushed to subscribers after commit.
func (db *DB) Save(ctx context.Context, userID string, partial schema.PartialDocument) error {
	if db.closed.Load() {
		return remote.ErrClosed
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current *migrate.RawDocument
	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE user_id = ?`, userID).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read document for %s: %w", userID, err)
	default:
		if current, err = migrate.NewRawDocument([]byte(data)); err != nil {
			db.logger.Warn().Err(err).Str("user", userID).Msg("replacing corrupt document")
			current = nil
		}
	}

	next, err := current.Apply(partial)
	if err != nil {
		return fmt.Errorf("failed to merge document: %w", err)
	}
	if err := db.putDocument(ctx, tx, userID, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.logger.Debug().Str("user", userID).Stringer("fields", partial.Fields()).Msg("saved document")
	for _, s := range db.subscribers(userID) {
		s.deliver(remote.Snapshot{Doc: next})
	}
	return nil
}

// Subscribe implements remote.Store. The current document is delivered on
// the calling goroutine before Subscribe returns.
func (db *DB) Subscribe(ctx context.Context, userID string, fn func(remote.Snapshot)) (func(), error) {
	if db.closed.Load() {
		return nil, remote.ErrClosed
	}

	s := &subscriber{fn: fn}
	s.active.Store(true)
	db.mu.Lock()
	if db.closed.Load() {
		db.mu.Unlock()
		return nil, remote.ErrClosed
	}
	id := db.nextSub
	db.nextSub++
	if db.subs[userID] == nil {
		db.subs[userID] = make(map[int]*subscriber)
	}
	db.subs[userID][id] = s
	db.mu.Unlock()

	unsubscribe := func() {
		db.mu.Lock()
		delete(db.subs[userID], id)
		db.mu.Unlock()
		s.active.Store(false)
	}

	doc, err := db.GetDocument(ctx, userID)
	if err != nil {
		s.deliver(remote.Snapshot{Err: err})
	} else {
		s.deliver(remote.Snapshot{Doc: doc})
	}

	var once sync.Once
	return func() { once.Do(unsubscribe) }, nil
}

func (db *DB) subscribers(userID string) []*subscriber {
	db.mu.Lock()
	defer db.mu.Unlock()
	ids := make([]int, 0, len(db.subs[userID]))
	for id := range db.subs[userID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*subscriber, len(ids))
	for i, id := range ids {
		out[i] = db.subs[userID][id]
	}
	return out
}

// ListUsers returns the ids of all users with a stored document.
func (db *DB) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
