// Package remote defines the contract between the sync engine and a
// per-user document store that pushes live updates.
package remote

import (
	"context"
	"errors"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/schema"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Snapshot is one delivery of a subscription.
//
// Exactly one of three shapes is delivered:
//   - Doc == nil, Err == nil: the user has no document yet
//   - Doc != nil: the stored document, in whatever shape it was persisted
//   - Err != nil: the subscription failed (e.g. permission denied)
type Snapshot struct {
	Doc *migrate.RawDocument
	Err error
}

// Store persists one document per user and pushes changes to subscribers.
//
// Subscribe delivers the current state once right away and then after every
// write, including writes made by the subscriber itself (the echo). Save
// shallow-merges: only the non-nil fields of partial are written, other
// fields, known or not, are preserved.
type Store interface {
	// Subscribe registers fn for userID. Deliveries follow the order in
	// which writes were applied. The returned function cancels the
	// subscription; it is safe to call more than once.
	Subscribe(ctx context.Context, userID string, fn func(Snapshot)) (unsubscribe func(), err error)

	// Save merges partial into the user's document, creating it if needed.
	Save(ctx context.Context, userID string, partial schema.PartialDocument) error
}

// RecordStore holds the append-only daily completion records of each user.
// A record written with an existing id supersedes the old one.
type RecordStore interface {
	PutRecord(ctx context.Context, userID string, rec schema.DailyRecord) error

	// DeleteRecord removes a record. Deleting a missing record is not an error.
	DeleteRecord(ctx context.Context, userID, id string) error

	RecordsByDate(ctx context.Context, userID, date string) ([]schema.DailyRecord, error)

	// RecordsInRange returns records with from <= date <= to, ordered by
	// date then task id.
	RecordsInRange(ctx context.Context, userID, from, to string) ([]schema.DailyRecord, error)

	CountRecords(ctx context.Context, userID string) (int, error)
}

// Backend is a store that also keeps daily records.
type Backend interface {
	Store
	RecordStore
}
