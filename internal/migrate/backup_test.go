package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/seed"
)

func TestBackup_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	doc := seed.Document()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	prev, err := WriteBackupFile(path, ExportBackup(doc, now), WriteOptions{})
	require.NoError(t, err)
	assert.Empty(t, prev)

	b, err := ReadBackupFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackupVersion, b.Version)
	assert.True(t, now.Equal(b.ExportedAt))

	p, err := ImportBackup(b)
	require.NoError(t, err)

	var got schema.Document
	p.ApplyTo(&got)
	assert.Equal(t, doc, got)
}

func TestImportBackup_Partial(t *testing.T) {
	tasks := []RawTask{
		{Task: schema.Task{ID: "t1", Title: "X"}, DueDate: "2025-01-10"},
	}
	p, err := ImportBackup(&Backup{Version: BackupVersion, Tasks: &tasks})
	require.NoError(t, err)

	assert.Equal(t, schema.FieldSet(0).With(schema.FieldTasks), p.Fields())
	require.Len(t, *p.Tasks, 1)
	got := (*p.Tasks)[0]
	assert.Equal(t, "2025-01-10", got.StartDate)
	assert.Equal(t, LegacyStartTime, got.StartTime)
	assert.Equal(t, schema.PriorityMedium, got.Priority)
}

func TestImportBackup_NewerVersion(t *testing.T) {
	_, err := ImportBackup(&Backup{Version: BackupVersion + 1})
	assert.ErrorIs(t, err, ErrUnsupportedBackup)
}

func TestReadBackupFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadBackupFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0600))
	_, err = ReadBackupFile(bad)
	assert.Error(t, err)

	newer := filepath.Join(dir, "newer.json")
	require.NoError(t, os.WriteFile(newer, []byte(`{"version":99}`), 0600))
	_, err = ReadBackupFile(newer)
	assert.ErrorIs(t, err, ErrUnsupportedBackup)
}

func TestWriteBackupFile_KeepPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "export.json")
	now := time.Now()

	_, err := WriteBackupFile(path, ExportBackup(seed.Document(), now), WriteOptions{KeepPrevious: true})
	require.NoError(t, err)

	prev, err := WriteBackupFile(path, ExportBackup(schema.Document{}, now), WriteOptions{KeepPrevious: true})
	require.NoError(t, err)
	require.NotEmpty(t, prev)

	old, err := ReadBackupFile(prev)
	require.NoError(t, err)
	assert.Len(t, *old.Tasks, len(seed.Tasks()))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
