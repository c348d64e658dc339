package migrate

import (
	"github.com/tidwall/gjson"

	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/seed"
)

// MinValidSlots is the fewest valid slots an archetype may keep after
// repair before it is replaced by the default archetype.
const MinValidSlots = 3

// RawTemplates holds the slot lists found in storage, keyed by archetype.
// An archetype missing from the map was absent from the payload.
type RawTemplates map[schema.Archetype][]schema.TimeSlot

// RepairScheduleTemplates drops malformed slots from every archetype and
// substitutes the default archetype wholesale when fewer than MinValidSlots
// valid slots remain. It returns the archetypes that were replaced; a
// non-empty result means the repaired templates should be written back.
func RepairScheduleTemplates(raw RawTemplates) (schema.ScheduleTemplates, []schema.Archetype) {
	var out schema.ScheduleTemplates
	var replaced []schema.Archetype
	for _, a := range schema.Archetypes {
		valid := filterValid(raw[a])
		if len(valid) < MinValidSlots {
			out.Set(a, seed.Template(a))
			replaced = append(replaced, a)
			continue
		}
		out.Set(a, valid)
	}
	return out, replaced
}

// MigrateLegacySingleSchedule converts the flat "schedule" array of a V1
// document: its valid entries become the workday archetype, the weekend
// archetypes fall back to defaults. Returns nil when the legacy field is
// absent.
func MigrateLegacySingleSchedule(raw *RawDocument) *schema.ScheduleTemplates {
	if raw == nil || !raw.Has("schedule") {
		return nil
	}
	st := schema.ScheduleTemplates{
		Workday:  filterValid(decodeSlots(raw.Get("schedule"))),
		Saturday: seed.Template(schema.Saturday),
		Sunday:   seed.Template(schema.Sunday),
	}
	return &st
}

func filterValid(slots []schema.TimeSlot) []schema.TimeSlot {
	out := make([]schema.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

func decodeTemplates(v gjson.Result) RawTemplates {
	raw := make(RawTemplates)
	if !v.IsObject() {
		return raw
	}
	for _, a := range schema.Archetypes {
		if slots := v.Get(string(a)); slots.Exists() {
			raw[a] = decodeSlots(slots)
		}
	}
	return raw
}

func decodeSlots(v gjson.Result) []schema.TimeSlot {
	if !v.IsArray() {
		return nil
	}
	var out []schema.TimeSlot
	v.ForEach(func(_, s gjson.Result) bool {
		if !s.IsObject() {
			out = append(out, schema.TimeSlot{})
			return true
		}
		slot := schema.TimeSlot{
			StartTime: s.Get("startTime").String(),
			EndTime:   s.Get("endTime").String(),
			GroupKey:  s.Get("groupKey").String(),
		}
		s.Get("assignedTaskIds").ForEach(func(_, id gjson.Result) bool {
			if id.String() != "" {
				slot.AssignedTaskIDs = append(slot.AssignedTaskIDs, id.String())
			}
			return true
		})
		out = append(out, slot)
		return true
	})
	return out
}
