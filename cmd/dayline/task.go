package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/seed"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "plan",
	Short:   "Add or remove tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Long: `Add a task to the user's document. Without --on or --from/--until the task
recurs every day. Dates accept YYYY-MM-DD or natural language.

Example usage:
  dayline task add "Stretch" --start 07:00 --end 07:15 --category health
  dayline task add "Dentist" --on "next tuesday" --start 14:00 --end 15:00`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		on, _ := f.GetString("on")
		from, _ := f.GetString("from")
		until, _ := f.GetString("until")
		start, _ := f.GetString("start")
		end, _ := f.GetString("end")
		category, _ := f.GetString("category")
		priority, _ := f.GetString("priority")
		notes, _ := f.GetString("notes")

		task := schema.Task{
			ID:        seed.NewTaskID(),
			Title:     args[0],
			Priority:  schema.Priority(priority),
			StartTime: start,
			EndTime:   end,
			Category:  category,
			Notes:     notes,
		}

		now := time.Now()
		if on != "" {
			from, until = on, on
		}
		if from != "" || until != "" {
			var err error
			if task.StartDate, err = parseDay(from, now); err != nil {
				return err
			}
			task.EndDate = task.StartDate
			if until != "" {
				if task.EndDate, err = parseDay(until, now); err != nil {
					return err
				}
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}
		tasks := append(s.Snapshot().Tasks, task)
		if err := s.SetTasks(tasks); err != nil {
			_ = s.Close()
			return err
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}

		fmt.Printf("%s Added %s %s\n", ui.RenderPass("✓"), task.Title, ui.RenderMuted("("+task.ID+")"))
		return nil
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <task>",
	Short: "Remove a task by id or title",
	Long: `Remove a task. Default tasks come back on the next sign-in, since missing
defaults are always merged into the document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}

		current := s.Snapshot().Tasks
		task, err := findTask(current, args[0])
		if err != nil {
			_ = s.Close()
			return err
		}
		kept := make([]schema.Task, 0, len(current))
		for _, t := range current {
			if t.ID != task.ID {
				kept = append(kept, t)
			}
		}
		if err := s.SetTasks(kept); err != nil {
			_ = s.Close()
			return err
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("failed to save tasks: %w", err)
		}

		fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), task.Title)
		if seed.IsDefaultTaskID(task.ID) {
			fmt.Printf("   %s %s is a default task and will be restored on next sign-in\n", ui.RenderWarn("⚠"), task.ID)
		}
		return nil
	},
}

func init() {
	f := taskAddCmd.Flags()
	f.String("on", "", "single day the task happens")
	f.String("from", "", "first day of the task")
	f.String("until", "", "last day of the task")
	f.String("start", "", "start time (HH:MM)")
	f.String("end", "", "end time (HH:MM)")
	f.StringP("category", "c", "", "group key")
	f.StringP("priority", "p", string(schema.PriorityMedium), "LOW, MEDIUM or HIGH")
	f.String("notes", "", "free-form notes")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
