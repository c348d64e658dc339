package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mschirtzinger/dayline/internal/schema"
)

// BackupVersion is the backup file format written by this version.
const BackupVersion = 1

// ErrUnsupportedBackup is returned for backup files written by a newer format.
var ErrUnsupportedBackup = errors.New("unsupported backup version")

// Backup is the exported backup file. Every document field is optional so
// that partial backups import only what they carry.
type Backup struct {
	Version           int                       `json:"version"`
	ExportedAt        time.Time                 `json:"exportedAt"`
	Tasks             *[]RawTask                `json:"tasks,omitempty"`
	Groups            *[]schema.TaskGroup       `json:"groups,omitempty"`
	Milestones        *[]schema.Milestone       `json:"milestones,omitempty"`
	ScheduleTemplates *schema.ScheduleTemplates `json:"scheduleTemplates,omitempty"`
}

// ExportBackup builds a full backup of doc.
func ExportBackup(doc schema.Document, now time.Time) *Backup {
	doc = doc.Clone()
	tasks := make([]RawTask, len(doc.Tasks))
	for i, t := range doc.Tasks {
		tasks[i] = RawTask{Task: t}
	}
	return &Backup{
		Version:           BackupVersion,
		ExportedAt:        now.UTC(),
		Tasks:             &tasks,
		Groups:            &doc.Groups,
		Milestones:        &doc.Milestones,
		ScheduleTemplates: &doc.ScheduleTemplates,
	}
}

// ImportBackup converts a backup into a partial update. Tasks go through
// MigrateTask so old exports land in the current shape; fields missing from
// the backup stay nil and are left untouched by the store.
func ImportBackup(b *Backup) (schema.PartialDocument, error) {
	if b.Version > BackupVersion {
		return schema.PartialDocument{}, fmt.Errorf("%w: %d (newest supported is %d)", ErrUnsupportedBackup, b.Version, BackupVersion)
	}

	var p schema.PartialDocument
	if b.Tasks != nil {
		tasks, _ := MigrateTasks(*b.Tasks)
		for i := range tasks {
			tasks[i].SetDefaults()
		}
		tasks, _ = RepairTasks(tasks)
		p.Tasks = &tasks
	}
	if b.Groups != nil {
		groups := append([]schema.TaskGroup{}, *b.Groups...)
		p.Groups = &groups
	}
	if b.Milestones != nil {
		milestones := append([]schema.Milestone{}, *b.Milestones...)
		p.Milestones = &milestones
	}
	if b.ScheduleTemplates != nil {
		st := b.ScheduleTemplates.Clone()
		p.ScheduleTemplates = &st
	}
	return p, nil
}

// WriteOptions configures WriteBackupFile.
type WriteOptions struct {
	// KeepPrevious copies an existing file at the destination to
	// {path}.backup.{timestamp} before overwriting it.
	KeepPrevious bool
}

// WriteBackupFile writes b to path atomically via a temp file. It returns the
// path of the preserved previous file, if any.
func WriteBackupFile(path string, b *Backup, opts WriteOptions) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	var previous string
	if opts.KeepPrevious {
		// #nosec G304 - controlled path from CLI
		existing, err := os.ReadFile(path)
		switch {
		case err == nil:
			previous = path + ".backup." + time.Now().Format("20060102-150405")
			if err := os.WriteFile(previous, existing, 0600); err != nil {
				return "", fmt.Errorf("failed to preserve previous backup: %w", err)
			}
		case !os.IsNotExist(err):
			return "", fmt.Errorf("failed to read existing backup: %w", err)
		}
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	return previous, nil
}

// ReadBackupFile reads and parses a backup file.
func ReadBackupFile(path string) (*Backup, error) {
	// #nosec G304 - controlled path from CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file %s: %w", path, err)
	}

	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse backup file %s: %w", path, err)
	}
	if b.Version > BackupVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBackup, b.Version)
	}
	return &b, nil
}
