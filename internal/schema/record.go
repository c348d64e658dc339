package schema

import (
	"fmt"
	"time"
)

// RecordStatus is the outcome recorded for a task on a given day.
type RecordStatus string

const (
	RecordCompleted RecordStatus = "completed"
	RecordSkipped   RecordStatus = "skipped"
)

// DailyRecord is an append-only fact: on Date, the task identified by
// Title and Category was completed or skipped. Records are never mutated;
// toggling a task off and on again writes a new record with the same ID.
type DailyRecord struct {
	ID              string       `json:"id"` // Date + "-" + TaskID
	Date            string       `json:"date"`
	TaskID          string       `json:"taskId"`
	Title           string       `json:"title"`
	Category        string       `json:"category"`
	Status          RecordStatus `json:"status"`
	ActualStartTime string       `json:"actualStartTime,omitempty"`
	ActualEndTime   string       `json:"actualEndTime,omitempty"`
	Notes           string       `json:"notes,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// RecordID returns the canonical record id for a task on a day.
func RecordID(date, taskID string) string {
	return date + "-" + taskID
}

// NewRecord builds the record for marking task on date.
func NewRecord(task Task, date string, status RecordStatus, now time.Time) DailyRecord {
	return DailyRecord{
		ID:              RecordID(date, task.ID),
		Date:            date,
		TaskID:          task.ID,
		Title:           task.Title,
		Category:        task.Category,
		Status:          status,
		ActualStartTime: task.StartTime,
		ActualEndTime:   task.EndTime,
		CreatedAt:       now.UTC(),
	}
}

// Validate checks if the record has valid field values.
func (r *DailyRecord) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("taskId is required")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", r.Date, err)
	}
	if r.ID != RecordID(r.Date, r.TaskID) {
		return fmt.Errorf("id %q does not match date and task (want %q)", r.ID, RecordID(r.Date, r.TaskID))
	}
	if r.Status != RecordCompleted && r.Status != RecordSkipped {
		return fmt.Errorf("status must be completed or skipped (got %q)", r.Status)
	}
	for _, v := range []string{r.ActualStartTime, r.ActualEndTime} {
		if v != "" && !ValidClock(v) {
			return fmt.Errorf("invalid time of day %q", v)
		}
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}
