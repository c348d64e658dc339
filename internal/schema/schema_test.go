package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskValidate(t *testing.T) {
	base := Task{ID: "t1", Title: "Write report", Priority: PriorityHigh, Category: "work"}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{name: "valid recurring", mutate: func(*Task) {}},
		{name: "valid dated", mutate: func(t *Task) { t.StartDate, t.EndDate = "2025-01-10", "2025-01-12" }},
		{name: "missing id", mutate: func(t *Task) { t.ID = "" }, wantErr: true},
		{name: "missing title", mutate: func(t *Task) { t.Title = "" }, wantErr: true},
		{name: "bad priority", mutate: func(t *Task) { t.Priority = "URGENT" }, wantErr: true},
		{name: "start without end", mutate: func(t *Task) { t.StartDate = "2025-01-10" }, wantErr: true},
		{name: "end before start", mutate: func(t *Task) { t.StartDate, t.EndDate = "2025-01-12", "2025-01-10" }, wantErr: true},
		{name: "bad date", mutate: func(t *Task) { t.StartDate, t.EndDate = "2025-13-01", "2025-13-02" }, wantErr: true},
		{name: "bad time", mutate: func(t *Task) { t.StartTime = "9:00" }, wantErr: true},
		{name: "negative duration", mutate: func(t *Task) { t.EstimatedDuration = -5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskSetDefaults(t *testing.T) {
	task := Task{ID: "t1", Title: "x"}
	task.SetDefaults()
	assert.Equal(t, PriorityMedium, task.Priority)
}

func TestTaskActiveOn(t *testing.T) {
	recurring := Task{ID: "r"}
	assert.True(t, recurring.ActiveOn("2030-05-05"))

	dated := Task{ID: "d", StartDate: "2025-01-10", EndDate: "2025-01-12"}
	assert.False(t, dated.ActiveOn("2025-01-09"))
	assert.True(t, dated.ActiveOn("2025-01-10"))
	assert.True(t, dated.ActiveOn("2025-01-12"))
	assert.False(t, dated.ActiveOn("2025-01-13"))
}

func TestTimeSlotDuration(t *testing.T) {
	assert.Equal(t, 90*time.Minute, TimeSlot{StartTime: "09:00", EndTime: "10:30"}.Duration())
	assert.Equal(t, 8*time.Hour, TimeSlot{StartTime: "23:00", EndTime: "07:00"}.Duration())
	assert.Equal(t, time.Duration(0), TimeSlot{StartTime: "bad", EndTime: "07:00"}.Duration())
}

func TestVisibleSlots(t *testing.T) {
	groups := []TaskGroup{{Key: "work", Name: "Work"}}
	st := ScheduleTemplates{Workday: []TimeSlot{
		{StartTime: "09:00", EndTime: "12:00", GroupKey: "work"},
		{StartTime: "12:00", EndTime: "13:00", GroupKey: "from-other-device"},
		{StartTime: "13:00", EndTime: "", GroupKey: "work"},
	}}

	visible := st.VisibleSlots(Workday, groups)
	require.Len(t, visible, 1)
	assert.Equal(t, "09:00", visible[0].StartTime)
	assert.Len(t, st.Workday, 3, "hidden slots stay in the template")
}

func TestCheckTiling(t *testing.T) {
	ok := []TimeSlot{
		{StartTime: "07:00", EndTime: "19:00", GroupKey: "a"},
		{StartTime: "19:00", EndTime: "07:00", GroupKey: "b"},
	}
	assert.NoError(t, CheckTiling(ok))

	gap := []TimeSlot{
		{StartTime: "07:00", EndTime: "18:00", GroupKey: "a"},
		{StartTime: "19:00", EndTime: "07:00", GroupKey: "b"},
	}
	assert.Error(t, CheckTiling(gap))
	assert.Error(t, CheckTiling(nil))
}

func TestArchetypeFor(t *testing.T) {
	assert.Equal(t, Saturday, ArchetypeFor(time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Sunday, ArchetypeFor(time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Workday, ArchetypeFor(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)))
}

func TestValidateGroups_Duplicate(t *testing.T) {
	err := ValidateGroups([]TaskGroup{{Key: "a", Name: "A"}, {Key: "a", Name: "B"}})
	assert.ErrorContains(t, err, "duplicate")
}

func TestDailyRecord(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	task := Task{ID: "t1", Title: "Run", Category: "health", StartTime: "07:00", EndTime: "07:30"}

	rec := NewRecord(task, "2025-01-10", RecordCompleted, now)
	assert.Equal(t, "2025-01-10-t1", rec.ID)
	assert.Equal(t, "Run", rec.Title)
	assert.Equal(t, "07:00", rec.ActualStartTime)
	require.NoError(t, rec.Validate())

	rec.ID = "wrong"
	assert.Error(t, rec.Validate())
}

func TestPartialDocument(t *testing.T) {
	doc := Document{
		Tasks:  []Task{{ID: "t1", Title: "a", Priority: PriorityLow}},
		Groups: []TaskGroup{{Key: "g", Name: "G"}},
	}

	p := doc.Only(FieldSet(0).With(FieldTasks))
	assert.Equal(t, FieldSet(0).With(FieldTasks), p.Fields())
	assert.Nil(t, p.Groups)

	target := Document{Groups: []TaskGroup{{Key: "keep", Name: "Keep"}}}
	p.ApplyTo(&target)
	assert.Equal(t, doc.Tasks, target.Tasks)
	assert.Equal(t, "keep", target.Groups[0].Key, "fields absent from the partial are untouched")

	assert.True(t, PartialDocument{}.IsEmpty())
	assert.Equal(t, "tasks,groups,milestones,scheduleTemplates", doc.Full().Fields().String())
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := Document{ScheduleTemplates: ScheduleTemplates{Workday: []TimeSlot{
		{StartTime: "09:00", EndTime: "10:00", GroupKey: "g", AssignedTaskIDs: []string{"t1"}},
	}}}
	c := doc.Clone()
	c.ScheduleTemplates.Workday[0].AssignedTaskIDs[0] = "changed"
	assert.Equal(t, "t1", doc.ScheduleTemplates.Workday[0].AssignedTaskIDs[0])
}
