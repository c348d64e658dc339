// Package db provides the embedded SQLite backend for dayline.
//
// One database holds every user's schedule document and daily completion
// records. It implements remote.Store and remote.RecordStore so the sync
// engine and the push hub can run on top of it.
//
// Architecture:
//   - Database file: <state_dir>/dayline.db
//   - WAL mode: concurrent readers during writes
//   - Schema: documents, daily_records tables
//   - Documents are stored as opaque JSON so legacy shapes and unknown
//     fields survive partial saves
//
// Subscriptions are in-process: every Save made through a DB is pushed to
// that DB's subscribers after commit. Writers in other processes are not
// observed; share one DB through the hub instead.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rs/zerolog"
)

// DB wraps the SQLite connection.
type DB struct {
	conn   *sql.DB
	path   string
	logger zerolog.Logger

	// closed is set once by Close. conn stays non-nil afterwards so
	// concurrent callers get errors from database/sql instead of a nil
	// dereference.
	closed atomic.Bool

	mu      sync.Mutex
	subs    map[string]map[int]*subscriber
	nextSub int
}

// Option configures Open.
type Option func(*DB)

// WithLogger sets the logger used for subscription and close diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// Open creates a new database connection at the specified path.
//
// The database is opened with WAL for concurrent reads. If the database
// doesn't exist, it is created; call InitSchema before use.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	db, err := db.Open(filepath.Join(stateDir, "dayline.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string, opts ...Option) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection. Transactions take
	// the write lock up front so read-merge-write saves never deadlock.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_txlock=immediate", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		path:   path,
		logger: zerolog.Nop(),
		subs:   make(map[string]map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection and drops all subscriptions.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	db.mu.Lock()
	for _, subs := range db.subs {
		for _, s := range subs {
			s.active.Store(false)
		}
	}
	db.subs = make(map[string]map[int]*subscriber)
	db.mu.Unlock()

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Warn().Err(err).Msg("failed to checkpoint WAL")
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,  -- JSON object, any historical shape
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_records (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,  -- date + "-" + task_id
		date TEXT NOT NULL,
		task_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		actual_start_time TEXT,
		actual_end_time TEXT,
		notes TEXT,
		attachments TEXT,  -- JSON array
		created_at TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_user_date ON daily_records(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_records_task ON daily_records(user_id, task_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}
