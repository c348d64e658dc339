package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mschirtzinger/dayline/internal/schema"
)

var (
	// ErrNoRecordStore is returned by record operations when the engine was
	// built without a record store.
	ErrNoRecordStore = errors.New("no record store configured")
	// ErrNotToday is returned when toggling a task on a day other than today.
	ErrNotToday = errors.New("records can only be toggled for today")
)

// Today returns the current date in schema.DateLayout, per the engine clock.
func (e *Engine) Today() string {
	return e.clock.Now().Format(schema.DateLayout)
}

// ToggleOptions carries the optional details of a completion record.
// Empty times fall back to the task's own window.
type ToggleOptions struct {
	ActualStartTime string
	ActualEndTime   string
	Notes           string
	Attachments     []schema.Attachment
}

func (o ToggleOptions) empty() bool {
	return o.ActualStartTime == "" && o.ActualEndTime == "" && o.Notes == "" && len(o.Attachments) == 0
}

// ToggleCompletion marks task as status for date, which must be today.
// If the task already carries a record with the same status on that day
// and opts is empty, the record is deleted instead. Otherwise any existing
// record is superseded. It returns the record now in effect, or nil after
// a delete.
func (e *Engine) ToggleCompletion(ctx context.Context, task schema.Task, date string, status schema.RecordStatus, opts ToggleOptions) (*schema.DailyRecord, error) {
	userID, err := e.recordUser()
	if err != nil {
		return nil, err
	}
	if date != e.Today() {
		return nil, fmt.Errorf("%w (got %s)", ErrNotToday, date)
	}

	rec := schema.NewRecord(task, date, status, e.clock.Now())
	if opts.ActualStartTime != "" {
		rec.ActualStartTime = opts.ActualStartTime
	}
	if opts.ActualEndTime != "" {
		rec.ActualEndTime = opts.ActualEndTime
	}
	rec.Notes = opts.Notes
	rec.Attachments = append([]schema.Attachment(nil), opts.Attachments...)
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	if !opts.empty() {
		return e.putRecord(ctx, userID, rec)
	}

	existing, err := e.records.RecordsByDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", date, err)
	}
	for _, r := range existing {
		if r.ID == rec.ID && r.Status == status {
			if err := e.records.DeleteRecord(ctx, userID, rec.ID); err != nil {
				return nil, fmt.Errorf("failed to delete record %s: %w", rec.ID, err)
			}
			e.logger.Debug().Str("user", userID).Str("record", rec.ID).Msg("record removed")
			return nil, nil
		}
	}

	return e.putRecord(ctx, userID, rec)
}

func (e *Engine) putRecord(ctx context.Context, userID string, rec schema.DailyRecord) (*schema.DailyRecord, error) {
	if err := e.records.PutRecord(ctx, userID, rec); err != nil {
		return nil, fmt.Errorf("failed to write record %s: %w", rec.ID, err)
	}
	e.logger.Debug().Str("user", userID).Str("record", rec.ID).Str("status", string(rec.Status)).Msg("record written")
	return &rec, nil
}

// CompletedOn returns the recorded status of each task on date, keyed by
// task id.
func (e *Engine) CompletedOn(ctx context.Context, date string) (map[string]schema.RecordStatus, error) {
	userID, err := e.recordUser()
	if err != nil {
		return nil, err
	}
	recs, err := e.records.RecordsByDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", date, err)
	}
	out := make(map[string]schema.RecordStatus, len(recs))
	for _, r := range recs {
		out[r.TaskID] = r.Status
	}
	return out, nil
}

func (e *Engine) recordUser() (string, error) {
	if e.records == nil {
		return "", ErrNoRecordStore
	}
	userID := e.UserID()
	if userID == "" {
		return "", ErrNotSignedIn
	}
	return userID, nil
}
