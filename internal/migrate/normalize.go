package migrate

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/seed"
)

// Result is the outcome of normalizing a stored document.
type Result struct {
	// Doc is the document in the current shape.
	Doc schema.Document
	// Version is the shape the stored document was in.
	Version Version
	// Changed lists the fields that differ from storage and must be
	// written back. Empty when storage is already current.
	Changed schema.FieldSet
	// Steps describes what was changed, for logs and dry runs.
	Steps []string
}

// Normalize runs the full migration pipeline over a stored document:
// task migration, default task and group merge, milestone fallback, then
// schedule template migration and repair. It never fails; malformed input
// is filtered out or replaced by defaults.
func Normalize(raw *RawDocument) Result {
	res := Result{Version: raw.Version()}
	note := func(f schema.Field, format string, args ...any) {
		res.Changed = res.Changed.With(f)
		res.Steps = append(res.Steps, fmt.Sprintf(format, args...))
	}

	// Tasks
	rawTasks, repaired := decodeTasks(raw.Get("tasks"))
	tasks, migrated := MigrateTasks(rawTasks)
	if repaired {
		note(schema.FieldTasks, "dropped or repaired malformed tasks")
	}
	if migrated {
		note(schema.FieldTasks, "migrated legacy dueDate tasks")
	}
	tasks, fixed := RepairTasks(tasks)
	if fixed {
		note(schema.FieldTasks, "repaired or dropped invalid tasks")
	}
	merged := seed.MergeDefaultTasks(tasks, seed.Tasks())
	if len(merged) != len(tasks) {
		note(schema.FieldTasks, "added %d default tasks", len(merged)-len(tasks))
	}
	res.Doc.Tasks = merged

	// Groups
	groups, dropped := decodeGroups(raw.Get("groups"))
	if dropped {
		note(schema.FieldGroups, "dropped malformed groups")
	}
	mergedGroups := seed.MergeDefaultGroups(groups)
	if len(mergedGroups) != len(groups) {
		note(schema.FieldGroups, "added %d default groups", len(mergedGroups)-len(groups))
	}
	res.Doc.Groups = mergedGroups

	// Milestones
	milestones := decodeMilestones(raw.Get("milestones"))
	if len(milestones) == 0 {
		milestones = seed.Milestones()
		note(schema.FieldMilestones, "installed default milestones")
	}
	res.Doc.Milestones = milestones

	// Schedule templates
	var templates RawTemplates
	switch {
	case raw.Has("scheduleTemplates"):
		templates = decodeTemplates(raw.Get("scheduleTemplates"))
	case raw.Has("schedule"):
		legacy := MigrateLegacySingleSchedule(raw)
		templates = RawTemplates{
			schema.Workday:  legacy.Workday,
			schema.Saturday: legacy.Saturday,
			schema.Sunday:   legacy.Sunday,
		}
		note(schema.FieldScheduleTemplates, "migrated legacy single schedule")
	default:
		templates = RawTemplates{}
	}
	repairedTemplates, replaced := RepairScheduleTemplates(templates)
	if len(replaced) > 0 {
		note(schema.FieldScheduleTemplates, "replaced templates with defaults: %v", replaced)
	}
	res.Doc.ScheduleTemplates = repairedTemplates

	return res
}

func decodeGroups(v gjson.Result) ([]schema.TaskGroup, bool) {
	if !v.IsArray() {
		return nil, v.Exists()
	}
	var out []schema.TaskGroup
	dropped := false
	seen := make(map[string]bool)
	v.ForEach(func(_, g gjson.Result) bool {
		key := g.Get("key").String()
		if !g.IsObject() || key == "" || seen[key] {
			dropped = true
			return true
		}
		seen[key] = true
		out = append(out, schema.TaskGroup{
			Key:   key,
			Name:  g.Get("name").String(),
			Emoji: g.Get("emoji").String(),
			Color: g.Get("color").String(),
			Icon:  g.Get("icon").String(),
			Size:  g.Get("size").String(),
		})
		return true
	})
	return out, dropped
}

func decodeMilestones(v gjson.Result) []schema.Milestone {
	var out []schema.Milestone
	v.ForEach(func(_, m gjson.Result) bool {
		if m.IsObject() {
			out = append(out, schema.Milestone{
				ID:    m.Get("id").String(),
				Label: m.Get("label").String(),
				Time:  m.Get("time").String(),
				Emoji: m.Get("emoji").String(),
			})
		}
		return true
	})
	return out
}
