// Package seed provides the canonical baseline dataset used for first-time
// users and for backfilling entries missing from existing documents.
package seed

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mschirtzinger/dayline/internal/schema"
)

// DefaultTaskPrefix reserves the id namespace of canonical tasks.
// User-created tasks never carry it, see NewTaskID.
const DefaultTaskPrefix = "default-"

// NewTaskID returns a fresh id for a user-created task.
func NewTaskID() string {
	return "task-" + uuid.NewString()
}

// IsDefaultTaskID reports whether id belongs to the canonical namespace.
func IsDefaultTaskID(id string) bool {
	return strings.HasPrefix(id, DefaultTaskPrefix)
}

// Groups returns the canonical task groups.
func Groups() []schema.TaskGroup {
	return []schema.TaskGroup{
		{Key: "work", Name: "Work", Emoji: "💼", Color: "blue", Icon: "briefcase", Size: "large"},
		{Key: "health", Name: "Health", Emoji: "🏃", Color: "green", Icon: "heart", Size: "medium"},
		{Key: "learning", Name: "Learning", Emoji: "📚", Color: "purple", Icon: "book", Size: "medium"},
		{Key: "personal", Name: "Personal", Emoji: "🏠", Color: "orange", Icon: "home", Size: "medium"},
		{Key: "family", Name: "Family", Emoji: "👨‍👩‍👧", Color: "pink", Icon: "users", Size: "medium"},
		{Key: "rest", Name: "Rest", Emoji: "😴", Color: "gray", Icon: "moon", Size: "small"},
	}
}

// Tasks returns the canonical tasks. They carry no dates, so they recur daily.
func Tasks() []schema.Task {
	return []schema.Task{
		{
			ID: DefaultTaskPrefix + "morning-review", Title: "Morning review",
			Description: "Review today's plan and priorities",
			Priority:    schema.PriorityMedium, Category: "personal",
			StartTime: "07:30", EndTime: "08:00", EstimatedDuration: 30,
		},
		{
			ID: DefaultTaskPrefix + "deep-work", Title: "Deep work block",
			Description: "Focused work on the most important project",
			Priority:    schema.PriorityHigh, Category: "work",
			StartTime: "09:00", EndTime: "11:00", EstimatedDuration: 120,
		},
		{
			ID: DefaultTaskPrefix + "exercise", Title: "Exercise",
			Description: "At least 30 minutes of movement",
			Priority:    schema.PriorityMedium, Category: "health",
			StartTime: "18:00", EndTime: "18:45", EstimatedDuration: 45,
		},
		{
			ID: DefaultTaskPrefix + "reading", Title: "Reading",
			Description: "Read a book chapter",
			Priority:    schema.PriorityLow, Category: "learning",
			StartTime: "21:00", EndTime: "21:30", EstimatedDuration: 30,
		},
		{
			ID: DefaultTaskPrefix + "family-time", Title: "Family time",
			Priority: schema.PriorityHigh, Category: "family",
			StartTime: "19:00", EndTime: "20:00", EstimatedDuration: 60,
		},
	}
}

// Milestones returns the canonical day markers.
func Milestones() []schema.Milestone {
	return []schema.Milestone{
		{ID: "wake", Label: "Wake up", Time: "07:00", Emoji: "⏰"},
		{ID: "breakfast", Label: "Breakfast", Time: "07:15", Emoji: "🍳"},
		{ID: "lunch", Label: "Lunch", Time: "12:30", Emoji: "🥗"},
		{ID: "dinner", Label: "Dinner", Time: "19:00", Emoji: "🍽"},
		{ID: "sleep", Label: "Sleep", Time: "23:00", Emoji: "🌙"},
	}
}

// Templates returns the canonical schedule templates. Each archetype tiles
// a full day without gaps.
func Templates() schema.ScheduleTemplates {
	return schema.ScheduleTemplates{
		Workday:  Template(schema.Workday),
		Saturday: Template(schema.Saturday),
		Sunday:   Template(schema.Sunday),
	}
}

// Template returns the canonical slots of one archetype.
func Template(a schema.Archetype) []schema.TimeSlot {
	switch a {
	case schema.Saturday:
		return slots(
			"08:00", "health",
			"10:00", "personal",
			"13:00", "rest",
			"14:00", "family",
			"18:00", "learning",
			"21:00", "personal",
			"00:00", "rest",
		)
	case schema.Sunday:
		return slots(
			"08:00", "health",
			"09:00", "family",
			"12:00", "rest",
			"13:00", "learning",
			"16:00", "personal",
			"19:00", "family",
			"22:00", "rest",
		)
	default:
		return slots(
			"07:00", "personal",
			"09:00", "work",
			"12:30", "rest",
			"13:30", "work",
			"18:00", "health",
			"19:00", "family",
			"21:00", "learning",
			"23:00", "rest",
		)
	}
}

// slots builds a day tiling from (start, group) pairs; each slot ends where
// the next starts and the last one wraps to the first.
func slots(pairs ...string) []schema.TimeSlot {
	n := len(pairs) / 2
	out := make([]schema.TimeSlot, 0, n)
	for i := 0; i < n; i++ {
		next := pairs[((i+1)%n)*2]
		out = append(out, schema.TimeSlot{
			StartTime: pairs[i*2],
			EndTime:   next,
			GroupKey:  pairs[i*2+1],
		})
	}
	return out
}

// Document returns the full seed document for a brand-new user.
func Document() schema.Document {
	return schema.Document{
		Tasks:             Tasks(),
		Groups:            Groups(),
		Milestones:        Milestones(),
		ScheduleTemplates: Templates(),
	}
}
