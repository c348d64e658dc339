package main

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/engine"
	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var doneCmd = &cobra.Command{
	Use:     "done <task>",
	GroupID: "plan",
	Short:   "Toggle today's completion of a task",
	Long: `Mark a task completed (or skipped with --skip) for today. Running the same
command again without details removes the mark. The task is matched by id,
then by title.

Example usage:
  dayline done "Exercise" --end 07:45 --notes "5k in the rain"
  dayline done task-1 --attach https://example.com/route.gpx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		skip, _ := f.GetBool("skip")
		opts := engine.ToggleOptions{}
		opts.ActualStartTime, _ = f.GetString("start")
		opts.ActualEndTime, _ = f.GetString("end")
		opts.Notes, _ = f.GetString("notes")
		links, _ := f.GetStringArray("attach")
		opts.Attachments = attachments(links)
		status := schema.RecordCompleted
		if skip {
			status = schema.RecordSkipped
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		task, err := findTask(s.Snapshot().Tasks, args[0])
		if err != nil {
			return err
		}

		rec, err := s.ToggleCompletion(ctx, task, s.Today(), status, opts)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Printf("%s Cleared %s for today\n", ui.RenderMuted("○"), task.Title)
			return nil
		}
		fmt.Printf("%s %s marked %s\n", statusMark(rec.Status), task.Title, rec.Status)
		return nil
	},
}

// attachments turns links into attachments named after their last path
// element.
func attachments(links []string) []schema.Attachment {
	var out []schema.Attachment
	for _, link := range links {
		name := path.Base(strings.TrimRight(link, "/"))
		if name == "." || name == "/" {
			name = link
		}
		out = append(out, schema.Attachment{Name: name, URL: link})
	}
	return out
}

// findTask matches ref against task ids, then case-insensitively against
// titles. An ambiguous title is an error.
func findTask(tasks []schema.Task, ref string) (schema.Task, error) {
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
	}
	var matches []schema.Task
	for _, t := range tasks {
		if strings.EqualFold(t.Title, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return schema.Task{}, fmt.Errorf("no task with id or title %q", ref)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, t := range matches {
			ids[i] = t.ID
		}
		return schema.Task{}, fmt.Errorf("title %q is ambiguous, use an id: %s", ref, strings.Join(ids, ", "))
	}
}

func init() {
	f := doneCmd.Flags()
	f.Bool("skip", false, "record the task as skipped instead of completed")
	f.String("start", "", "actual start time (HH:MM), defaults to the task's start")
	f.String("end", "", "actual end time (HH:MM), defaults to the task's end")
	f.String("notes", "", "notes for the record")
	f.StringArray("attach", nil, "link to attach (repeatable)")
	rootCmd.AddCommand(doneCmd)
}
