package migrate

import (
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/mschirtzinger/dayline/internal/schema"
)

// Default window assigned to tasks migrated from a single due date.
const (
	LegacyStartTime = "09:00"
	LegacyEndTime   = "10:00"
)

// RawTask is a task as it may appear in storage: the current fields plus
// the legacy single due date.
type RawTask struct {
	schema.Task
	DueDate string `json:"dueDate,omitempty"`
}

// MigrateTask upgrades a legacy task. When DueDate is present and StartDate
// is absent, the due date becomes a one-day range with a default one-hour
// window; the due date is dropped either way. Tasks already in the current
// shape pass through, so applying it twice is the same as applying it once.
func MigrateTask(raw RawTask) (schema.Task, bool) {
	task := raw.Task
	if raw.DueDate == "" || task.StartDate != "" {
		return task, false
	}
	task.StartDate = raw.DueDate
	task.EndDate = raw.DueDate
	task.StartTime = LegacyStartTime
	task.EndTime = LegacyEndTime
	return task, true
}

// MigrateTasks applies MigrateTask to every task and reports whether any
// task changed.
func MigrateTasks(raw []RawTask) ([]schema.Task, bool) {
	out := make([]schema.Task, 0, len(raw))
	changed := false
	for _, r := range raw {
		t, c := MigrateTask(r)
		changed = changed || c
		out = append(out, t)
	}
	return out, changed
}

// MaxTitleLength is the longest title a repaired task keeps.
const MaxTitleLength = 500

// RepairTask brings a stored task back within the task invariants. A lone
// or earlier endDate is replaced by startDate, a lone endDate becomes a
// one-day range, unparseable dates make the task recurring again, and
// malformed times of day are cleared. Tasks without a title cannot be
// repaired; ok is false for them.
func RepairTask(task schema.Task) (out schema.Task, changed, ok bool) {
	if task.Title == "" {
		return task, true, false
	}
	if len(task.Title) > MaxTitleLength {
		task.Title = truncate(task.Title, MaxTitleLength)
		changed = true
	}
	if !task.Priority.Valid() {
		task.Priority = schema.PriorityMedium
		changed = true
	}

	start, end := validDate(task.StartDate), validDate(task.EndDate)
	switch {
	case task.StartDate == "" && task.EndDate == "":
	case start && end && task.EndDate >= task.StartDate:
	case start:
		task.EndDate = task.StartDate
		changed = true
	case end:
		task.StartDate = task.EndDate
		changed = true
	default:
		task.StartDate, task.EndDate = "", ""
		changed = true
	}

	if task.StartTime != "" && !schema.ValidClock(task.StartTime) {
		task.StartTime = ""
		changed = true
	}
	if task.EndTime != "" && !schema.ValidClock(task.EndTime) {
		task.EndTime = ""
		changed = true
	}
	if task.EstimatedDuration < 0 {
		task.EstimatedDuration = 0
		changed = true
	}
	return task, changed, true
}

// RepairTasks applies RepairTask to every task, dropping the ones that
// cannot be repaired and later duplicates of an id.
func RepairTasks(tasks []schema.Task) ([]schema.Task, bool) {
	out := make([]schema.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	changed := false
	for _, t := range tasks {
		if seen[t.ID] {
			changed = true
			continue
		}
		fixed, c, ok := RepairTask(t)
		changed = changed || c
		if !ok {
			continue
		}
		seen[t.ID] = true
		out = append(out, fixed)
	}
	return out, changed
}

func validDate(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse(schema.DateLayout, s)
	return err == nil
}

func truncate(s string, n int) string {
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// decodeTasks reads a task array leniently. Elements that are not objects
// or have no id are dropped; scalar fields of the wrong type are coerced.
// The second result reports whether anything was dropped or repaired.
func decodeTasks(v gjson.Result) ([]RawTask, bool) {
	if !v.IsArray() {
		return nil, v.Exists()
	}
	var out []RawTask
	repaired := false
	v.ForEach(func(_, t gjson.Result) bool {
		if !t.IsObject() || t.Get("id").String() == "" {
			repaired = true
			return true
		}
		raw := RawTask{
			Task: schema.Task{
				ID:                t.Get("id").String(),
				Title:             t.Get("title").String(),
				Description:       t.Get("description").String(),
				Priority:          schema.Priority(t.Get("priority").String()),
				Completed:         t.Get("completed").Bool(),
				StartDate:         t.Get("startDate").String(),
				EndDate:           t.Get("endDate").String(),
				StartTime:         t.Get("startTime").String(),
				EndTime:           t.Get("endTime").String(),
				Recurring:         t.Get("recurring").String(),
				Category:          t.Get("category").String(),
				Notes:             t.Get("notes").String(),
				Attachments:       decodeAttachments(t.Get("attachments")),
				EstimatedDuration: int(t.Get("estimatedDuration").Int()),
			},
			DueDate: t.Get("dueDate").String(),
		}
		if !raw.Priority.Valid() {
			raw.Priority = schema.PriorityMedium
			repaired = true
		}
		out = append(out, raw)
		return true
	})
	return out, repaired
}

func decodeAttachments(v gjson.Result) []schema.Attachment {
	if !v.IsArray() {
		return nil
	}
	var out []schema.Attachment
	v.ForEach(func(_, a gjson.Result) bool {
		if a.IsObject() {
			out = append(out, schema.Attachment{
				Name: a.Get("name").String(),
				URL:  a.Get("url").String(),
				Type: a.Get("type").String(),
			})
		}
		return true
	})
	return out
}
