package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mschirtzinger/dayline/internal/schema"
)

// PutRecord implements remote.RecordStore. A record with an existing id
// supersedes the stored one.
func (db *DB) PutRecord(ctx context.Context, userID string, rec schema.DailyRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	attachmentsJSON, err := json.Marshal(rec.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	query := `
	INSERT INTO daily_records (
		user_id, id, date, task_id, title, category, status,
		actual_start_time, actual_end_time, notes, attachments, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, id) DO UPDATE SET
		title = excluded.title,
		category = excluded.category,
		status = excluded.status,
		actual_start_time = excluded.actual_start_time,
		actual_end_time = excluded.actual_end_time,
		notes = excluded.notes,
		attachments = excluded.attachments,
		created_at = excluded.created_at
	`

	_, err = db.conn.ExecContext(ctx, query,
		userID,
		rec.ID,
		rec.Date,
		rec.TaskID,
		rec.Title,
		rec.Category,
		string(rec.Status),
		nullString(rec.ActualStartTime),
		nullString(rec.ActualEndTime),
		nullString(rec.Notes),
		string(attachmentsJSON),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteRecord implements remote.RecordStore.
// Returns nil if the record doesn't exist (idempotent).
func (db *DB) DeleteRecord(ctx context.Context, userID, id string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM daily_records WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// RecordsByDate implements remote.RecordStore.
func (db *DB) RecordsByDate(ctx context.Context, userID, date string) ([]schema.DailyRecord, error) {
	return db.RecordsInRange(ctx, userID, date, date)
}

// RecordsInRange implements remote.RecordStore.
func (db *DB) RecordsInRange(ctx context.Context, userID, from, to string) ([]schema.DailyRecord, error) {
	query := `
	SELECT id, date, task_id, title, category, status,
	       actual_start_time, actual_end_time, notes, attachments, created_at
	FROM daily_records
	WHERE user_id = ? AND date >= ? AND date <= ?
	ORDER BY date ASC, task_id ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountRecords implements remote.RecordStore.
func (db *DB) CountRecords(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_records WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// scanRecords is a helper function to scan multiple records from query results.
func scanRecords(rows *sql.Rows) ([]schema.DailyRecord, error) {
	var records []schema.DailyRecord

	for rows.Next() {
		var rec schema.DailyRecord
		var status, createdAt string
		var startTime, endTime, notes, attachmentsJSON sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.Date,
			&rec.TaskID,
			&rec.Title,
			&rec.Category,
			&status,
			&startTime,
			&endTime,
			&notes,
			&attachmentsJSON,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.Status = schema.RecordStatus(status)
		rec.ActualStartTime = startTime.String
		rec.ActualEndTime = endTime.String
		rec.Notes = notes.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		if attachmentsJSON.Valid && attachmentsJSON.String != "" && attachmentsJSON.String != "null" {
			if err := json.Unmarshal([]byte(attachmentsJSON.String), &rec.Attachments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
			}
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// nullString converts an optional string to a nullable SQL value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
