package seed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/dayline/internal/schema"
)

func TestTemplatesTileFullDay(t *testing.T) {
	st := Templates()
	for _, a := range schema.Archetypes {
		t.Run(string(a), func(t *testing.T) {
			slots := st.Get(a)
			require.GreaterOrEqual(t, len(slots), 3)
			assert.NoError(t, schema.CheckTiling(slots))
		})
	}
}

func TestSeedReferencesKnownGroups(t *testing.T) {
	idx := schema.GroupIndex(Groups())
	require.NoError(t, schema.ValidateGroups(Groups()))

	for _, task := range Tasks() {
		require.NoError(t, task.Validate(), task.ID)
		assert.Contains(t, idx, task.Category, task.ID)
		assert.True(t, IsDefaultTaskID(task.ID))
	}

	st := Templates()
	for _, a := range schema.Archetypes {
		for _, s := range st.Get(a) {
			assert.Contains(t, idx, s.GroupKey)
		}
	}

	for _, m := range Milestones() {
		assert.NoError(t, m.Validate())
	}
}

func TestNewTaskIDOutsideDefaultNamespace(t *testing.T) {
	id := NewTaskID()
	assert.True(t, strings.HasPrefix(id, "task-"))
	assert.False(t, IsDefaultTaskID(id))
	assert.NotEqual(t, id, NewTaskID())
}

func TestMergeDefaultTasks_SetUnion(t *testing.T) {
	loaded := []schema.Task{
		{ID: "task-1", Title: "Mine"},
		{ID: DefaultTaskPrefix + "exercise", Title: "Renamed by user"},
	}
	defaults := Tasks()

	merged := MergeDefaultTasks(loaded, defaults)

	// Loaded entries first, unchanged.
	require.GreaterOrEqual(t, len(merged), 2)
	assert.Equal(t, loaded, merged[:2])

	// Exactly the defaults not already present are appended.
	want := 0
	for _, d := range defaults {
		if d.ID != DefaultTaskPrefix+"exercise" {
			want++
		}
	}
	assert.Len(t, merged, len(loaded)+want)

	ids := make(map[string]int)
	for _, m := range merged {
		ids[m.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, id)
	}

	// Idempotent.
	assert.Equal(t, merged, MergeDefaultTasks(merged, defaults))
}

func TestMergeDefaultGroups(t *testing.T) {
	loaded := []schema.TaskGroup{{Key: "side-project", Name: "Side project"}, {Key: "work", Name: "Job"}}

	merged := MergeDefaultGroups(loaded)
	assert.Equal(t, loaded, merged[:2])
	assert.Len(t, merged, len(Groups())+1)
	assert.Equal(t, merged, MergeDefaultGroups(merged))

	assert.Equal(t, Groups(), MergeDefaultGroups(nil))
}

func TestDocument(t *testing.T) {
	doc := Document()
	assert.NotEmpty(t, doc.Tasks)
	assert.NotEmpty(t, doc.Groups)
	assert.NotEmpty(t, doc.Milestones)

	// Fresh copies on every call.
	doc.Tasks[0].Title = "changed"
	assert.NotEqual(t, "changed", Document().Tasks[0].Title)
}
