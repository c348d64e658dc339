package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var todayCmd = &cobra.Command{
	Use:     "today",
	GroupID: "plan",
	Short:   "Show today's schedule, milestones and tasks",
	Long: `Show the schedule template for today (workday, saturday or sunday), the
milestones and every task active today with its completion state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		now := time.Now()
		day := s.Today()
		doc := s.Snapshot()
		done, err := s.CompletedOn(ctx, day)
		if err != nil {
			return err
		}

		archetype := schema.ArchetypeFor(now)
		groups := schema.GroupIndex(doc.Groups)
		titles := make(map[string]string, len(doc.Tasks))
		for _, t := range doc.Tasks {
			titles[t.ID] = t.Title
		}

		fmt.Printf("\n%s %s (%s)\n\n", ui.RenderAccent("📅"), now.Format("Monday, January 2"), archetype)

		rows := [][]string{{"TIME", "BLOCK", "ASSIGNED"}}
		for _, slot := range doc.ScheduleTemplates.VisibleSlots(archetype, doc.Groups) {
			g := groups[slot.GroupKey]
			var assigned []string
			for _, id := range slot.AssignedTaskIDs {
				if title, ok := titles[id]; ok {
					assigned = append(assigned, title)
				}
			}
			rows = append(rows, []string{
				slot.StartTime + "-" + slot.EndTime,
				strings.TrimSpace(g.Emoji + " " + g.Name),
				strings.Join(assigned, ", "),
			})
		}
		fmt.Println(ui.RenderHeader("Schedule"))
		fmt.Print(ui.Table(rows))

		if len(doc.Milestones) > 0 {
			milestones := append([]schema.Milestone(nil), doc.Milestones...)
			sort.SliceStable(milestones, func(i, j int) bool { return milestones[i].Time < milestones[j].Time })
			fmt.Println("\n" + ui.RenderHeader("Milestones"))
			for _, m := range milestones {
				fmt.Printf("  %s  %s %s\n", m.Time, m.Emoji, m.Label)
			}
		}

		tasks := tasksForDay(doc.Tasks, day)
		fmt.Println("\n" + ui.RenderHeader("Tasks"))
		if len(tasks) == 0 {
			fmt.Println(ui.RenderMuted("  nothing scheduled"))
		}
		for _, t := range tasks {
			when := t.StartTime
			if when == "" {
				when = "     "
			}
			fmt.Printf("  %s %s  %s %s\n", statusMark(done[t.ID]), when, t.Title, ui.RenderMuted("("+t.ID+")"))
		}
		fmt.Println()
		return nil
	},
}

// tasksForDay returns the tasks active on day, timed tasks first in start
// order, then untimed ones by title.
func tasksForDay(tasks []schema.Task, day string) []schema.Task {
	var out []schema.Task
	for _, t := range tasks {
		if t.ActiveOn(day) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.StartTime == "") != (b.StartTime == "") {
			return a.StartTime != ""
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.Title < b.Title
	})
	return out
}

func statusMark(s schema.RecordStatus) string {
	switch s {
	case schema.RecordCompleted:
		return ui.RenderPass("✓")
	case schema.RecordSkipped:
		return ui.RenderWarn("–")
	default:
		return ui.RenderMuted("○")
	}
}

func init() {
	rootCmd.AddCommand(todayCmd)
}
