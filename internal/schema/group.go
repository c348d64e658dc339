package schema

import "fmt"

// TaskGroup is a named category. Key is the join key used by Task.Category
// and TimeSlot.GroupKey, and is never repurposed once persisted.
type TaskGroup struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Emoji string `json:"emoji,omitempty"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Size  string `json:"size,omitempty"`
}

// Validate checks if the group has a key and a name.
func (g *TaskGroup) Validate() error {
	if g.Key == "" {
		return fmt.Errorf("key is required")
	}
	if g.Name == "" {
		return fmt.Errorf("name is required for group %s", g.Key)
	}
	return nil
}

// ValidateGroups checks each group and the uniqueness of keys.
func ValidateGroups(groups []TaskGroup) error {
	seen := make(map[string]bool, len(groups))
	for i := range groups {
		if err := groups[i].Validate(); err != nil {
			return err
		}
		if seen[groups[i].Key] {
			return fmt.Errorf("duplicate group key %q", groups[i].Key)
		}
		seen[groups[i].Key] = true
	}
	return nil
}

// GroupIndex maps group keys to groups.
func GroupIndex(groups []TaskGroup) map[string]TaskGroup {
	idx := make(map[string]TaskGroup, len(groups))
	for _, g := range groups {
		idx[g.Key] = g
	}
	return idx
}

// Milestone is a fixed-time marker on the day timeline (wake, meals, sleep).
// Milestones are neither schedulable nor completable.
type Milestone struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Time  string `json:"time"` // HH:MM
	Emoji string `json:"emoji,omitempty"`
}

// Validate checks the milestone id and time.
func (m *Milestone) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !ValidClock(m.Time) {
		return fmt.Errorf("invalid time %q for milestone %s", m.Time, m.ID)
	}
	return nil
}
