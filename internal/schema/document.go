package schema

import (
	"slices"
	"strings"
)

// Document is the synchronized unit owned by the sync engine.
type Document struct {
	Tasks             []Task            `json:"tasks"`
	Groups            []TaskGroup       `json:"groups"`
	Milestones        []Milestone       `json:"milestones"`
	ScheduleTemplates ScheduleTemplates `json:"scheduleTemplates"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{
		Tasks:             slices.Clone(d.Tasks),
		Groups:            slices.Clone(d.Groups),
		Milestones:        slices.Clone(d.Milestones),
		ScheduleTemplates: d.ScheduleTemplates.Clone(),
	}
	for i := range out.Tasks {
		out.Tasks[i].Attachments = slices.Clone(out.Tasks[i].Attachments)
	}
	return out
}

// Full returns a partial document carrying every field.
func (d Document) Full() PartialDocument {
	c := d.Clone()
	return PartialDocument{
		Tasks:             &c.Tasks,
		Groups:            &c.Groups,
		Milestones:        &c.Milestones,
		ScheduleTemplates: &c.ScheduleTemplates,
	}
}

// Only returns a partial document carrying the fields in set.
func (d Document) Only(set FieldSet) PartialDocument {
	full := d.Full()
	var p PartialDocument
	if set.Has(FieldTasks) {
		p.Tasks = full.Tasks
	}
	if set.Has(FieldGroups) {
		p.Groups = full.Groups
	}
	if set.Has(FieldMilestones) {
		p.Milestones = full.Milestones
	}
	if set.Has(FieldScheduleTemplates) {
		p.ScheduleTemplates = full.ScheduleTemplates
	}
	return p
}

// PartialDocument is a shallow-merge update: nil fields are left untouched.
type PartialDocument struct {
	Tasks             *[]Task            `json:"tasks,omitempty"`
	Groups            *[]TaskGroup       `json:"groups,omitempty"`
	Milestones        *[]Milestone       `json:"milestones,omitempty"`
	ScheduleTemplates *ScheduleTemplates `json:"scheduleTemplates,omitempty"`
}

// Fields returns the set of fields carried by p.
func (p PartialDocument) Fields() FieldSet {
	var set FieldSet
	if p.Tasks != nil {
		set = set.With(FieldTasks)
	}
	if p.Groups != nil {
		set = set.With(FieldGroups)
	}
	if p.Milestones != nil {
		set = set.With(FieldMilestones)
	}
	if p.ScheduleTemplates != nil {
		set = set.With(FieldScheduleTemplates)
	}
	return set
}

// IsEmpty reports whether p carries no field.
func (p PartialDocument) IsEmpty() bool {
	return p.Fields() == 0
}

// ApplyTo merges p into d.
func (p PartialDocument) ApplyTo(d *Document) {
	if p.Tasks != nil {
		d.Tasks = slices.Clone(*p.Tasks)
	}
	if p.Groups != nil {
		d.Groups = slices.Clone(*p.Groups)
	}
	if p.Milestones != nil {
		d.Milestones = slices.Clone(*p.Milestones)
	}
	if p.ScheduleTemplates != nil {
		d.ScheduleTemplates = p.ScheduleTemplates.Clone()
	}
}

// Field names a top-level document field.
type Field uint8

const (
	FieldTasks Field = 1 << iota
	FieldGroups
	FieldMilestones
	FieldScheduleTemplates
)

// AllFields lists every top-level field.
var AllFields = []Field{FieldTasks, FieldGroups, FieldMilestones, FieldScheduleTemplates}

// String returns the persisted JSON name of the field.
func (f Field) String() string {
	switch f {
	case FieldTasks:
		return "tasks"
	case FieldGroups:
		return "groups"
	case FieldMilestones:
		return "milestones"
	case FieldScheduleTemplates:
		return "scheduleTemplates"
	default:
		return "unknown"
	}
}

// FieldSet is a bit set of fields.
type FieldSet uint8

// With returns the set plus f.
func (s FieldSet) With(f Field) FieldSet { return s | FieldSet(f) }

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool { return s&FieldSet(f) != 0 }

// String lists the field names, comma separated.
func (s FieldSet) String() string {
	var names []string
	for _, f := range AllFields {
		if s.Has(f) {
			names = append(names, f.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
