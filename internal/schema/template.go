package schema

import (
	"fmt"
	"time"
)

// TimeSlot is the interval [StartTime, EndTime) tagged with a group.
// EndTime at or before StartTime wraps past midnight.
type TimeSlot struct {
	StartTime       string   `json:"startTime"`
	EndTime         string   `json:"endTime"`
	GroupKey        string   `json:"groupKey"`
	AssignedTaskIDs []string `json:"assignedTaskIds,omitempty"`
}

// Valid reports whether the slot carries a start, an end and a group key.
func (s TimeSlot) Valid() bool {
	return s.StartTime != "" && s.EndTime != "" && s.GroupKey != ""
}

// Duration returns the slot length, wrapping past midnight.
// Returns 0 for malformed times.
func (s TimeSlot) Duration() time.Duration {
	start, end := Minutes(s.StartTime), Minutes(s.EndTime)
	if start < 0 || end < 0 {
		return 0
	}
	if end <= start {
		end += 24 * 60
	}
	return time.Duration(end-start) * time.Minute
}

// Archetype is one of the three recurring day patterns.
type Archetype string

const (
	Workday  Archetype = "workday"
	Saturday Archetype = "saturday"
	Sunday   Archetype = "sunday"
)

// Archetypes lists every archetype in a stable order.
var Archetypes = []Archetype{Workday, Saturday, Sunday}

// ArchetypeFor classifies a calendar day.
func ArchetypeFor(day time.Time) Archetype {
	switch day.Weekday() {
	case time.Saturday:
		return Saturday
	case time.Sunday:
		return Sunday
	default:
		return Workday
	}
}

// ScheduleTemplates holds one slot list per archetype.
type ScheduleTemplates struct {
	Workday  []TimeSlot `json:"workday"`
	Saturday []TimeSlot `json:"saturday"`
	Sunday   []TimeSlot `json:"sunday"`
}

// Get returns the slots of an archetype.
func (st *ScheduleTemplates) Get(a Archetype) []TimeSlot {
	switch a {
	case Workday:
		return st.Workday
	case Saturday:
		return st.Saturday
	case Sunday:
		return st.Sunday
	}
	return nil
}

// Set replaces the slots of an archetype.
func (st *ScheduleTemplates) Set(a Archetype, slots []TimeSlot) {
	switch a {
	case Workday:
		st.Workday = slots
	case Saturday:
		st.Saturday = slots
	case Sunday:
		st.Sunday = slots
	}
}

// Clone returns a deep copy.
func (st ScheduleTemplates) Clone() ScheduleTemplates {
	var out ScheduleTemplates
	for _, a := range Archetypes {
		out.Set(a, CloneSlots(st.Get(a)))
	}
	return out
}

// CloneSlots copies a slot list including assigned task ids.
func CloneSlots(slots []TimeSlot) []TimeSlot {
	if slots == nil {
		return nil
	}
	out := make([]TimeSlot, len(slots))
	for i, s := range slots {
		out[i] = s
		if s.AssignedTaskIDs != nil {
			out[i].AssignedTaskIDs = append([]string(nil), s.AssignedTaskIDs...)
		}
	}
	return out
}

// VisibleSlots returns the slots of an archetype that can be rendered:
// malformed slots and slots whose group is unknown are left out. They are
// not removed from the stored template.
func (st *ScheduleTemplates) VisibleSlots(a Archetype, groups []TaskGroup) []TimeSlot {
	idx := GroupIndex(groups)
	var out []TimeSlot
	for _, s := range st.Get(a) {
		if !s.Valid() {
			continue
		}
		if _, ok := idx[s.GroupKey]; !ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CheckTiling verifies that slots cover a full day without gaps or overlaps,
// in order, starting anywhere.
func CheckTiling(slots []TimeSlot) error {
	if len(slots) == 0 {
		return fmt.Errorf("no slots")
	}
	var total time.Duration
	for i, s := range slots {
		if !s.Valid() {
			return fmt.Errorf("slot %d is malformed", i)
		}
		d := s.Duration()
		if d == 0 {
			return fmt.Errorf("slot %d has invalid times %s-%s", i, s.StartTime, s.EndTime)
		}
		next := slots[(i+1)%len(slots)]
		if s.EndTime != next.StartTime {
			return fmt.Errorf("gap between slot %d (ends %s) and next slot (starts %s)", i, s.EndTime, next.StartTime)
		}
		total += d
	}
	if total != 24*time.Hour {
		return fmt.Errorf("slots cover %v, want 24h", total)
	}
	return nil
}
