// Package schema provides the data structures for the dayline document.
package schema

import (
	"fmt"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DateLayout is the calendar-day format used for every date string.
const DateLayout = "2006-01-02"

// TimeLayout is the wall-clock format used for every time-of-day string.
const TimeLayout = "15:04"

// Attachment is a file or link attached to a task or a daily record.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Task is a schedulable unit of work.
//
// A task without StartDate recurs indefinitely. When StartDate is set,
// EndDate must be set as well and must not precede it.
type Task struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Task Content =====
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`

	// ===== Scheduling =====
	StartDate string `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate   string `json:"endDate,omitempty"`   // YYYY-MM-DD
	StartTime string `json:"startTime,omitempty"` // HH:MM
	EndTime   string `json:"endTime,omitempty"`   // HH:MM
	Recurring string `json:"recurring,omitempty"`

	// ===== Classification =====
	Category string `json:"category"` // TaskGroup.Key

	// ===== Extras =====
	Notes             string       `json:"notes,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	EstimatedDuration int          `json:"estimatedDuration,omitempty"` // minutes
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("priority must be LOW, MEDIUM or HIGH (got %q)", t.Priority)
	}
	if t.StartDate != "" || t.EndDate != "" {
		if t.StartDate == "" || t.EndDate == "" {
			return fmt.Errorf("startDate and endDate must be set together")
		}
		if _, err := time.Parse(DateLayout, t.StartDate); err != nil {
			return fmt.Errorf("invalid startDate %q: %w", t.StartDate, err)
		}
		if _, err := time.Parse(DateLayout, t.EndDate); err != nil {
			return fmt.Errorf("invalid endDate %q: %w", t.EndDate, err)
		}
		if t.EndDate < t.StartDate {
			return fmt.Errorf("endDate %s is before startDate %s", t.EndDate, t.StartDate)
		}
	}
	for _, v := range []string{t.StartTime, t.EndTime} {
		if v != "" && !ValidClock(v) {
			return fmt.Errorf("invalid time of day %q", v)
		}
	}
	if t.EstimatedDuration < 0 {
		return fmt.Errorf("estimatedDuration must not be negative (got %d)", t.EstimatedDuration)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
}

// IsRecurring reports whether the task has no date bounds.
func (t *Task) IsRecurring() bool {
	return t.StartDate == ""
}

// ActiveOn reports whether the task is scheduled on the given day (YYYY-MM-DD).
func (t *Task) ActiveOn(day string) bool {
	if t.IsRecurring() {
		return true
	}
	return day >= t.StartDate && day <= t.EndDate
}

// ValidClock reports whether s is a well-formed HH:MM time of day.
func ValidClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// Minutes converts an HH:MM string to minutes past midnight.
// Returns -1 if the string is malformed.
func Minutes(s string) int {
	t, err := time.Parse(TimeLayout, s)
	if err != nil || len(s) != 5 {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}
