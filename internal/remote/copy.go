package remote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mschirtzinger/dayline/internal/migrate"
)

// Date bounds that cover every record.
const (
	MinDate = "0000-01-01"
	MaxDate = "9999-12-31"
)

// Fetch returns the current document of userID by taking the first delivery
// of a short-lived subscription. A nil document means the user has none.
func Fetch(ctx context.Context, store Store, userID string) (*migrate.RawDocument, error) {
	first := make(chan Snapshot, 1)
	unsubscribe, err := store.Subscribe(ctx, userID, func(s Snapshot) {
		select {
		case first <- s:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer unsubscribe()

	select {
	case s := <-first:
		if s.Err != nil {
			return nil, fmt.Errorf("failed to read document: %w", s.Err)
		}
		return s.Doc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CopyStats summarizes a Copy.
type CopyStats struct {
	Document      bool
	Records       int
	RecordsFailed int
}

// Copy normalizes the document of userID in src and writes it in full to
// dst, then copies every daily record. Individual record failures are logged
// and counted but don't stop the copy.
func Copy(ctx context.Context, src, dst Backend, userID string, logger zerolog.Logger) (CopyStats, error) {
	var stats CopyStats

	raw, err := Fetch(ctx, src, userID)
	if err != nil {
		return stats, err
	}
	if raw != nil {
		res := migrate.Normalize(raw)
		if err := dst.Save(ctx, userID, res.Doc.Full()); err != nil {
			return stats, fmt.Errorf("failed to save document: %w", err)
		}
		stats.Document = true
		logger.Info().Str("user", userID).Stringer("version", res.Version).Msg("copied document")
	}

	records, err := src.RecordsInRange(ctx, userID, MinDate, MaxDate)
	if err != nil {
		return stats, fmt.Errorf("failed to list records: %w", err)
	}
	for _, rec := range records {
		if err := dst.PutRecord(ctx, userID, rec); err != nil {
			logger.Warn().Err(err).Str("record", rec.ID).Msg("failed to copy record")
			stats.RecordsFailed++
			continue
		}
		stats.Records++
	}

	logger.Info().
		Int("records", stats.Records).
		Int("failed", stats.RecordsFailed).
		Msg("copy complete")
	return stats, nil
}
